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

// Package metastore is the durable registry of series id<->name and rescue
// points spec.md lists as an out-of-scope collaborator (section 1), persisted
// here as one JSON snapshot per database, the same schema.json-plus-backup
// shape the teacher uses for a table's persistedSchema (storage/schema_fs.go).
package metastore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/seriesdb/seriesdb/status"
	"github.com/seriesdb/seriesdb/volume"
)

// SeriesEntry is one row of the series dictionary table.
type SeriesEntry struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// VolumeSetConfig is one row of the volume catalog table: everything
// BlockStore needs to reopen the same backend it was created with.
type VolumeSetConfig struct {
	Backend     string          `json:"backend"`
	BackendArgs json.RawMessage `json:"backend_args,omitempty"`
	NumVolumes  uint32          `json:"num_volumes"`
	PageSize    int             `json:"page_size"`
}

// EngineParameters is the engine parameters table: the open-time knobs a
// database was created with, re-applied verbatim on every reopen.
type EngineParameters struct {
	NumShards       int `json:"num_shards"`
	BufferThreshold int `json:"buffer_threshold"`
	SyncPeriodMs    int `json:"sync_period_ms"`
}

type snapshot struct {
	Series       []SeriesEntry             `json:"series"`
	RescuePoints map[uint64][]volume.Addr  `json:"rescue_points"`
	Volumes      VolumeSetConfig           `json:"volumes"`
	Params       EngineParameters          `json:"params"`
	Collisions   uint64                    `json:"collisions"`
}

// Store is the metadata store: series dictionary, rescue points, volume
// catalog and engine parameters, all living in one JSON file per database
// (spec.md section 6 "Metadata store (relational file)").
type Store struct {
	path string

	mu   sync.Mutex
	snap snapshot
}

func emptySnapshot() snapshot {
	return snapshot{RescuePoints: map[uint64][]volume.Addr{}}
}

// Open loads path if it exists, or starts from an empty snapshot.
func Open(path string) (*Store, error) {
	s := &Store{path: path, snap: emptySnapshot()}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		// fall back to the backup copy, same rescue strategy as the
		// teacher's ReadSchema()/schema.json.old.
		raw, err = os.ReadFile(path + ".old")
		if err != nil {
			return nil, status.Wrap(status.IoError, "read metastore snapshot", err)
		}
	}
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.snap); err != nil {
		return nil, status.Wrap(status.Internal, "corrupt metastore snapshot", err)
	}
	if s.snap.RescuePoints == nil {
		s.snap.RescuePoints = map[uint64][]volume.Addr{}
	}
	return s, nil
}

// save rewrites and fsyncs the snapshot file, keeping the previous version
// as a .old backup first, matching FileStorage.WriteSchema's rescue-copy
// strategy.
func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return status.Wrap(status.IoError, "mkdir metastore dir", err)
	}
	data, err := json.MarshalIndent(s.snap, "", "  ")
	if err != nil {
		return status.Wrap(status.Internal, "marshal metastore snapshot", err)
	}
	if stat, err := os.Stat(s.path); err == nil && stat.Size() > 0 {
		_ = os.Rename(s.path, s.path+".old")
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return status.Wrap(status.IoError, "write metastore snapshot", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return status.Wrap(status.IoError, "write metastore snapshot", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return status.Wrap(status.IoError, "fsync metastore snapshot", err)
	}
	if err := f.Close(); err != nil {
		return status.Wrap(status.IoError, "close metastore snapshot", err)
	}
	return nil
}

// LoadSeries returns every declared (id, canonical name) pair, used to
// repopulate the global NameRegistry during Storage's open sequence.
func (s *Store) LoadSeries() []SeriesEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SeriesEntry, len(s.snap.Series))
	copy(out, s.snap.Series)
	return out
}

// SaveSeries persists the current full series dictionary and fsyncs it.
func (s *Store) SaveSeries(entries []SeriesEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Series = entries
	return s.save()
}

// RescuePointsFor returns the last known rescue-point addresses for id, if any.
func (s *Store) RescuePointsFor(id uint64) ([]volume.Addr, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addrs, ok := s.snap.RescuePoints[id]
	return addrs, ok
}

// UpdateRescuePoints persists a fresh set of rescue-point addresses for id,
// the durable side of Storage.update_rescue_points (spec.md section 3).
func (s *Store) UpdateRescuePoints(id uint64, addrs []volume.Addr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.RescuePoints[id] = addrs
	return s.save()
}

// VolumeCatalog returns the persisted volume-set configuration.
func (s *Store) VolumeCatalog() VolumeSetConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Volumes
}

// SetVolumeCatalog persists the volume-set configuration, written once at
// new_database time and never again.
func (s *Store) SetVolumeCatalog(cfg VolumeSetConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Volumes = cfg
	return s.save()
}

// EngineParameters returns the persisted engine parameters.
func (s *Store) EngineParameters() EngineParameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Params
}

// SetEngineParameters persists cfg, written once at new_database time.
func (s *Store) SetEngineParameters(cfg EngineParameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Params = cfg
	return s.save()
}

// Collisions returns the running count of same-(series,timestamp) writes
// resolved by "later-in-shard-order wins" (spec.md section 4.2/8 scenario 6).
func (s *Store) Collisions() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Collisions
}

// IncrCollisions bumps the collision counter and persists it.
func (s *Store) IncrCollisions() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Collisions++
	return s.save()
}

// Remove deletes the metastore's on-disk files entirely (spec.md section 6
// remove_storage).
func (s *Store) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = os.Remove(s.path + ".old")
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return status.Wrap(status.IoError, "remove metastore snapshot", err)
	}
	return nil
}
