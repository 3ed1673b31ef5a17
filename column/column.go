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

// Package column is the numeric column store spec.md lists as an
// out-of-scope collaborator (section 1: "tree-per-series compressed
// encoding") kept intentionally small here: one in-memory sorted tail per
// series, spilled to fixed-size volume pages on rotation. It exists only so
// Session.write and the query Scan processor (spec.md section 4.4/4.5) have
// a real thing to call; the interesting compression scheme original_source/
// would have specified is explicitly out of scope.
package column

import (
	"encoding/binary"
	"sort"
	"sync"

	"github.com/seriesdb/seriesdb/status"
	"github.com/seriesdb/seriesdb/volume"
)

// Sample is one (timestamp, value) pair of a series, the column store's
// internal unit — distinct from sample.Sample, which additionally carries
// payload flags for the query pipeline's control markers.
type Sample struct {
	Timestamp uint64
	Value     float64
}

const sampleWidth = 16 // 8 bytes timestamp + 8 bytes float64, little-endian

// RescueCallback is invoked whenever a tail rotation produces a fresh set of
// rescue-point addresses for a series, matching spec.md section 4.4 step 3
// ("the session forwards [them] to Storage.update_rescue_points").
type RescueCallback func(id uint64, addrs []volume.Addr)

type tail struct {
	mu         sync.Mutex
	samples    []Sample // kept sorted ascending by Timestamp
	dirtyBytes int
	addrs      []volume.Addr
}

// Store is the per-database column store: one tail per known series id.
type Store struct {
	vol       *volume.Manager
	threshold int // dirty bytes accumulated before a tail auto-rotates
	onRescue  RescueCallback

	mu    sync.RWMutex
	tails map[uint64]*tail
}

// NewStore builds a column store writing pages through vol, rotating a
// series' tail to fresh pages once threshold bytes have accumulated since
// its last rotation.
func NewStore(vol *volume.Manager, threshold int, onRescue RescueCallback) *Store {
	return &Store{vol: vol, threshold: threshold, onRescue: onRescue, tails: make(map[uint64]*tail)}
}

func (s *Store) tailFor(id uint64) *tail {
	s.mu.RLock()
	t, ok := s.tails[id]
	s.mu.RUnlock()
	if ok {
		return t
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tails[id]; ok {
		return t
	}
	t = &tail{}
	s.tails[id] = t
	return t
}

// OpenSeries reads back a series' tail from its last known rescue-point
// addresses, the per-series re-open spec.md section 4.3 step 3 describes
// ("opening each known series at its last known address or rescue points").
func (s *Store) OpenSeries(id uint64, addrs []volume.Addr) error {
	t := s.tailFor(id)
	t.mu.Lock()
	defer t.mu.Unlock()
	var samples []Sample
	for _, addr := range addrs {
		page, err := s.vol.ReadPage(addr)
		if err != nil {
			return status.Wrap(status.IoError, "read rescue point page", err)
		}
		samples = append(samples, decodePage(page)...)
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].Timestamp < samples[j].Timestamp })
	t.samples = samples
	t.addrs = addrs
	return nil
}

// CommitWrite inserts (timestamp, value) into id's tail, overwriting any
// existing sample at that exact timestamp, and returns whether it did —
// the collision signal inputlog.RecoveryCallbacks.CommitWrite and
// spec.md section 4.2's "later write (in shard order) wins" both need. It
// matches RecoveryCallbacks.CommitWrite's signature exactly so a Store can
// be wired in as the recovery target directly.
func (s *Store) CommitWrite(id, timestamp uint64, value float64) (overwritten bool) {
	t := s.tailFor(id)
	t.mu.Lock()
	i := sort.Search(len(t.samples), func(i int) bool { return t.samples[i].Timestamp >= timestamp })
	if i < len(t.samples) && t.samples[i].Timestamp == timestamp {
		t.samples[i].Value = value
		overwritten = true
	} else {
		t.samples = append(t.samples, Sample{})
		copy(t.samples[i+1:], t.samples[i:])
		t.samples[i] = Sample{Timestamp: timestamp, Value: value}
	}
	t.dirtyBytes += sampleWidth
	rotate := t.dirtyBytes >= s.threshold
	t.mu.Unlock()

	if rotate {
		// best-effort: a failed rotation just leaves the tail dirtier than
		// it should be, it does not lose data or fail the write itself.
		_, _ = s.Flush(id)
	}
	return overwritten
}

// Scan returns id's samples in [begin, end] inclusive, ascending if
// forward (begin <= end) or descending otherwise, per spec.md section 4.5
// ("direction is determined by begin vs end").
func (s *Store) Scan(id uint64, begin, end uint64, forward bool) []Sample {
	t := s.tailFor(id)
	t.mu.Lock()
	defer t.mu.Unlock()

	lo, hi := begin, end
	if !forward {
		lo, hi = end, begin
	}
	i := sort.Search(len(t.samples), func(i int) bool { return t.samples[i].Timestamp >= lo })
	j := sort.Search(len(t.samples), func(j int) bool { return t.samples[j].Timestamp > hi })
	out := make([]Sample, j-i)
	copy(out, t.samples[i:j])
	if !forward {
		for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
			out[l], out[r] = out[r], out[l]
		}
	}
	return out
}

// Flush forces a tail rotation for id regardless of its dirty-byte count,
// the column-store half of the sync worker's "forces column-store tail
// commits" duty (spec.md section 4.3). It returns the fresh rescue-point
// addresses, which it also reports through onRescue.
func (s *Store) Flush(id uint64) ([]volume.Addr, error) {
	t := s.tailFor(id)
	t.mu.Lock()
	samples := make([]Sample, len(t.samples))
	copy(samples, t.samples)
	t.mu.Unlock()

	addrs, err := s.writePages(samples)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.addrs = addrs
	t.dirtyBytes = 0
	t.mu.Unlock()

	if s.onRescue != nil {
		s.onRescue(id, addrs)
	}
	return addrs, nil
}

// FlushAll rotates every series currently held open, used by Storage.close
// to make sure nothing is lost before the volume manager is closed.
func (s *Store) FlushAll() (map[uint64][]volume.Addr, error) {
	s.mu.RLock()
	ids := make([]uint64, 0, len(s.tails))
	for id := range s.tails {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	out := make(map[uint64][]volume.Addr, len(ids))
	for _, id := range ids {
		addrs, err := s.Flush(id)
		if err != nil {
			return out, err
		}
		out[id] = addrs
	}
	return out, nil
}

func (s *Store) writePages(samples []Sample) ([]volume.Addr, error) {
	pageSize := s.vol.PageSize()
	perPage := (pageSize - 4) / sampleWidth // 4-byte count header, see encodePage
	if perPage == 0 {
		return nil, status.New(status.BadInput, "page size too small for one sample")
	}
	var addrs []volume.Addr
	for off := 0; off < len(samples) || off == 0; off += perPage {
		end := off + perPage
		if end > len(samples) {
			end = len(samples)
		}
		addr := s.vol.Allocate()
		if err := s.vol.WritePage(addr, encodePage(samples[off:end])); err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
		if end == len(samples) {
			break
		}
	}
	return addrs, nil
}

func encodePage(samples []Sample) []byte {
	buf := make([]byte, 4+len(samples)*sampleWidth)
	binary.LittleEndian.PutUint32(buf, uint32(len(samples)))
	for i, s := range samples {
		off := 4 + i*sampleWidth
		binary.LittleEndian.PutUint64(buf[off:], s.Timestamp)
		binary.LittleEndian.PutUint64(buf[off+8:], float64bits(s.Value))
	}
	return buf
}

func decodePage(page []byte) []Sample {
	if len(page) < 4 {
		return nil
	}
	n := binary.LittleEndian.Uint32(page)
	out := make([]Sample, 0, n)
	for i := uint32(0); i < n; i++ {
		off := 4 + int(i)*sampleWidth
		if off+sampleWidth > len(page) {
			break
		}
		ts := binary.LittleEndian.Uint64(page[off:])
		val := float64frombits(binary.LittleEndian.Uint64(page[off+8:]))
		out = append(out, Sample{Timestamp: ts, Value: val})
	}
	return out
}
