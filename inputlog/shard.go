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
	"sort"
	"sync"
	"sync/atomic"

	"github.com/seriesdb/seriesdb/log"
	"github.com/seriesdb/seriesdb/status"
)

// DefaultBufferThreshold is the in-memory buffer size (bytes) a shard
// accumulates before it asks the fsync worker to rotate+sync it.
const DefaultBufferThreshold = 256 * 1024

// Shard is one of the InputLog's N independent append-only partitions.
// Each session is pinned to one shard for its lifetime, assigned round-robin
// by InputLog.AssignShard, so several sessions can share a shard; Append is
// serialized by the shard's mutex and hands full buffers to the shard's
// dedicated fsync worker.
type Shard struct {
	idx       int
	dir       string
	threshold int

	mu        sync.Mutex
	cur       *segment
	closed    []*segmentMeta // rotated, awaiting reclamation once below watermark
	nextSeq   uint64
	rotating  bool
	stopped   bool

	rotateCh chan *segment
	doneCh   chan struct{}

	watermark atomic.Uint64 // segment seqs <= watermark are eligible for reclamation
	logger    zerologLike
}

type segmentMeta struct {
	seq  uint64
	path string
}

// zerologLike avoids importing zerolog's concrete type into every file
// that just wants to log a line; Shard uses the package-level log.Logger
// via this tiny seam so tests can swap it for a no-op.
type zerologLike interface {
	Warn(component, msg string)
}

type shardLogger struct{ component string }

func (l shardLogger) Warn(component, msg string) {
	log.WithComponent(component).Warn().Msg(msg)
}

// newShard opens (or creates) shard idx under dir, resuming its segment
// sequence counter from whatever is already on disk.
func newShard(dir string, idx int, threshold int) (*Shard, error) {
	s := &Shard{
		idx:       idx,
		dir:       dir,
		threshold: threshold,
		rotateCh:  make(chan *segment, 1),
		doneCh:    make(chan struct{}),
		logger:    shardLogger{},
	}
	existing, err := listSegments(dir)
	if err != nil {
		return nil, err
	}
	for _, m := range existing {
		if m.seq >= s.nextSeq {
			s.nextSeq = m.seq + 1
		}
	}
	s.closed = existing
	cur, err := createSegment(dir, s.nextSeq)
	if err != nil {
		return nil, err
	}
	s.nextSeq++
	s.cur = cur
	go s.fsyncWorker()
	return s, nil
}

func listSegments(dir string) ([]*segmentMeta, error) {
	// scanning is delegated to recovery.go's scanDir so both paths
	// (open-time resume, recovery-time replay) agree on what a segment is.
	return scanDir(dir)
}

// Append encodes and buffers rec. It returns status.Overflow (spec.md
// section 4.2 "WouldStall") when the shard's background fsync worker has
// not yet caught up with a previous rotation; the caller is expected to
// retry with backoff (spec.md section 4.4 step 2).
func (s *Shard) Append(rec Record) error {
	frame := EncodeRecord(rec)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return status.New(status.Closed, "input log shard closed")
	}
	if s.rotating {
		return status.New(status.Overflow, "shard buffer full, rotation in flight")
	}
	if err := s.cur.append(frame); err != nil {
		return err
	}
	if s.cur.size >= s.threshold {
		toRotate := s.cur
		next, err := createSegment(s.dir, s.nextSeq)
		if err != nil {
			return err
		}
		s.nextSeq++
		s.cur = next
		s.rotating = true
		select {
		case s.rotateCh <- toRotate:
		default:
			// should not happen: rotating guard above prevents a second
			// concurrent rotation request, but stay non-blocking regardless.
		}
	}
	return nil
}

// fsyncWorker is the shard's dedicated background thread (spec.md section
// 5 "one dedicated background thread per role: ... log-shard fsync worker
// (one per shard)"). It flushes and fsyncs a rotated segment, then
// compresses it once durable.
func (s *Shard) fsyncWorker() {
	for {
		select {
		case seg, ok := <-s.rotateCh:
			if !ok {
				return
			}
			if err := seg.flush(); err != nil {
				s.logger.Warn("inputlog", "segment fsync failed: "+err.Error())
			}
			path := seg.path
			seq := seg.seq
			seg.close()

			s.mu.Lock()
			s.closed = append(s.closed, &segmentMeta{seq: seq, path: path})
			s.rotating = false
			s.mu.Unlock()

			if compressed, err := compressClosed(path); err == nil {
				s.mu.Lock()
				for _, m := range s.closed {
					if m.seq == seq {
						m.path = compressed
					}
				}
				s.mu.Unlock()
			}
		case <-s.doneCh:
			return
		}
	}
}

// CurrentSeq reports the active segment's sequence number, the highest
// seq a sync worker may safely advance the watermark to once it has
// confirmed every record appended so far is durably reflected in the
// column store (spec.md section 4.3 sync worker duty (iii)).
func (s *Shard) CurrentSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur.seq
}

// Watermark reports the highest segment sequence number known to be fully
// committed to the column store, below (and including) which segments are
// eligible for deletion.
func (s *Shard) Watermark() uint64 { return s.watermark.Load() }

// AdvanceWatermark is called by the sync worker (spec.md section 4.3) once
// the column store has durably committed everything through seq.
func (s *Shard) AdvanceWatermark(seq uint64) {
	for {
		cur := s.watermark.Load()
		if seq <= cur {
			return
		}
		if s.watermark.CompareAndSwap(cur, seq) {
			return
		}
	}
}

// ReclaimBelowWatermark deletes closed segments whose sequence number is
// at or below the current watermark (spec.md section 4.2 "A background
// task deletes segments below the watermark"). Returns the number removed.
func (s *Shard) ReclaimBelowWatermark() int {
	wm := s.watermark.Load()
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []*segmentMeta
	removed := 0
	for _, m := range s.closed {
		if m.seq <= wm {
			if err := removeSegmentFile(m.path); err == nil {
				removed++
				continue
			}
		}
		kept = append(kept, m)
	}
	s.closed = kept
	return removed
}

// Close flushes and closes the active segment and stops the fsync worker.
// Idempotent.
func (s *Shard) Close() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	cur := s.cur
	s.mu.Unlock()

	close(s.doneCh)
	return cur.close()
}

// segmentsForRecovery returns every segment on disk for this shard
// (closed and active) sorted by sequence number, oldest first — the order
// spec.md section 4.2 requires replay to honor.
func (s *Shard) segmentsForRecovery() []*segmentMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := append([]*segmentMeta(nil), s.closed...)
	all = append(all, &segmentMeta{seq: s.cur.seq, path: s.cur.path})
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	return all
}
