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
package query

import (
	"container/heap"
	"runtime/debug"
	"sync"

	"github.com/jtolds/gls"

	"github.com/seriesdb/seriesdb/column"
	"github.com/seriesdb/seriesdb/log"
	"github.com/seriesdb/seriesdb/sample"
)

// OrderBy selects how a Scan merges multiple series (spec.md section 4.5).
type OrderBy int

const (
	OrderByTime OrderBy = iota
	OrderBySeries
)

// ScanSpec describes one Scan-mode query: spec.md section 4.5's
// "iterates the column store over ids x [begin, end], respecting
// order_by". Direction per series is forward if Begin <= End.
type ScanSpec struct {
	Store   *column.Store
	IDs     []uint64
	Begin   uint64
	End     uint64
	OrderBy OrderBy
}

type scanError struct {
	id    uint64
	err   any
	stack []byte
}

// Produce drives ScanSpec as a sample producer: it fetches every id's
// samples in parallel (mirroring the teacher's gls.Go per-shard fan-out in
// storage/scan_order.go), then merges them according to OrderBy, yielding
// samples downstream until yield returns false or input is exhausted.
func (sp ScanSpec) Produce(yield func(Sample) bool) {
	forward := sp.Begin <= sp.End

	type seriesResult struct {
		id      uint64
		samples []column.Sample
		err     *scanError
	}
	results := make(chan seriesResult, len(sp.IDs))
	var wg sync.WaitGroup
	wg.Add(len(sp.IDs))
	gls.Go(func() {
		for _, id := range sp.IDs {
			id := id
			go func() {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						results <- seriesResult{id: id, err: &scanError{id, r, debug.Stack()}}
					}
				}()
				results <- seriesResult{id: id, samples: sp.Store.Scan(id, sp.Begin, sp.End, forward)}
			}()
		}
		wg.Wait()
		close(results)
	})

	bySeries := make(map[uint64][]column.Sample, len(sp.IDs))
	for r := range results {
		if r.err != nil {
			// a panic during one series' scan does not abort the whole
			// query; it is treated as that series having no data, same
			// fail-soft posture the teacher's scan_order.go takes for a
			// per-shard panic before re-raising at the aggregation point.
			log.WithComponent("query").Error().
				Uint64("series", r.err.id).
				Bytes("stack", r.err.stack).
				Interface("panic", r.err.err).
				Msg("scan panicked for series")
			continue
		}
		bySeries[r.id] = r.samples
	}

	switch sp.OrderBy {
	case OrderBySeries:
		for _, id := range sp.IDs {
			for _, s := range bySeries[id] {
				if !yield(toDataSample(id, s)) {
					return
				}
			}
		}
	default: // OrderByTime
		sp.mergeByTime(bySeries, forward, yield)
	}
}

// seriesCursor is one series' position in the time-ordered merge heap.
type seriesCursor struct {
	id      uint64
	samples []column.Sample
	pos     int
}

func (c *seriesCursor) head() column.Sample { return c.samples[c.pos] }
func (c *seriesCursor) exhausted() bool     { return c.pos >= len(c.samples) }

// timeHeap is a container/heap.Interface over active seriesCursors, root
// being whichever has the next timestamp to emit (ascending if forward,
// descending otherwise) — the same shardqueue/globalqueue shape the
// teacher uses in storage/scan_order.go, specialized from shard-local
// sorted item lists to per-series sample slices.
type timeHeap struct {
	cursors []*seriesCursor
	forward bool
}

func (h *timeHeap) Len() int { return len(h.cursors) }
func (h *timeHeap) Less(i, j int) bool {
	a, b := h.cursors[i].head().Timestamp, h.cursors[j].head().Timestamp
	if h.forward {
		return a < b
	}
	return a > b
}
func (h *timeHeap) Swap(i, j int) { h.cursors[i], h.cursors[j] = h.cursors[j], h.cursors[i] }
func (h *timeHeap) Push(x any)    { h.cursors = append(h.cursors, x.(*seriesCursor)) }
func (h *timeHeap) Pop() any {
	n := len(h.cursors)
	c := h.cursors[n-1]
	h.cursors[n-1] = nil
	h.cursors = h.cursors[:n-1]
	return c
}

func (sp ScanSpec) mergeByTime(bySeries map[uint64][]column.Sample, forward bool, yield func(Sample) bool) {
	h := &timeHeap{forward: forward}
	for _, id := range sp.IDs {
		samples := bySeries[id]
		if len(samples) > 0 {
			heap.Push(h, &seriesCursor{id: id, samples: samples})
		}
	}
	heap.Init(h)
	for h.Len() > 0 {
		c := h.cursors[0]
		if !yield(toDataSample(c.id, c.head())) {
			return
		}
		c.pos++
		if c.exhausted() {
			heap.Pop(h)
		} else {
			heap.Fix(h, 0)
		}
	}
}

func toDataSample(id uint64, s column.Sample) Sample {
	return sample.Value(id, s.Timestamp, s.Value)
}
