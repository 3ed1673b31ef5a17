/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package inputlog

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/seriesdb/seriesdb/status"
)

// InputLog owns the N shards and the session->shard pinning table.
// Pinning is expressed as a plain map keyed by session handle rather than
// literal OS-thread-local storage, per spec.md section 9's design note:
// "a per-process registry keyed by session handle, populated on first
// write; recycled on session destruction ... scoped to Storage" — here
// scoped to the InputLog instance Storage owns, so no package-level global
// is needed.
type InputLog struct {
	baseDir    string
	InstanceID uuid.UUID
	shards     []*Shard

	mu       sync.Mutex
	pins     map[any]int // session handle -> shard index
	roundRobin int
}

// Open creates or resumes an N-shard input log rooted at baseDir. Each
// shard lives in its own subdirectory ("0", "1", ... per spec.md section 6).
func Open(baseDir string, numShards int, bufferThreshold int) (*InputLog, error) {
	if numShards <= 0 {
		return nil, status.New(status.BadInput, "numShards must be > 0")
	}
	if bufferThreshold <= 0 {
		bufferThreshold = DefaultBufferThreshold
	}
	if err := os.MkdirAll(baseDir, 0750); err != nil {
		return nil, status.Wrap(status.IoError, "mkdir input log base", err)
	}
	id, err := loadOrCreateManifest(baseDir)
	if err != nil {
		return nil, err
	}
	l := &InputLog{baseDir: baseDir, InstanceID: id, pins: make(map[any]int)}
	for i := 0; i < numShards; i++ {
		sh, err := newShard(filepath.Join(baseDir, strconv.Itoa(i)), i, bufferThreshold)
		if err != nil {
			return nil, err
		}
		l.shards = append(l.shards, sh)
	}
	return l, nil
}

func loadOrCreateManifest(baseDir string) (uuid.UUID, error) {
	path := filepath.Join(baseDir, "MANIFEST")
	if b, err := os.ReadFile(path); err == nil && len(b) == 16 {
		var id uuid.UUID
		copy(id[:], b)
		return id, nil
	}
	id := newInstanceID()
	if err := os.WriteFile(path, id[:], 0640); err != nil {
		return uuid.UUID{}, status.Wrap(status.IoError, "write input log manifest", err)
	}
	return id, nil
}

// NumShards returns the shard count.
func (l *InputLog) NumShards() int { return len(l.shards) }

// Shard returns shard i directly, for tests and for Storage's sync worker
// sweep over all shards.
func (l *InputLog) Shard(i int) *Shard { return l.shards[i] }

// AssignShard pins handle to a shard, choosing round-robin on first use
// and returning the same shard on every later call for the same handle —
// this is the "assignment is stable per session" contract of spec.md
// section 4.2.
func (l *InputLog) AssignShard(handle any) *Shard {
	l.mu.Lock()
	defer l.mu.Unlock()
	if idx, ok := l.pins[handle]; ok {
		return l.shards[idx]
	}
	idx := l.roundRobin % len(l.shards)
	l.roundRobin++
	l.pins[handle] = idx
	return l.shards[idx]
}

// ReleaseSession forgets handle's pin, per spec.md section 3's Session
// lifecycle ("destroyed by its owner; on destruction flushes its log
// shard assignment"). The shard itself is unaffected; only the routing
// entry is dropped.
func (l *InputLog) ReleaseSession(handle any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.pins, handle)
}

// Close flushes and closes every shard. Idempotent at the shard level.
func (l *InputLog) Close() error {
	var first error
	for _, sh := range l.shards {
		if err := sh.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
