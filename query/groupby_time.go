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
	"github.com/seriesdb/seriesdb/sample"
	"github.com/seriesdb/seriesdb/status"
)

// groupByTimeNode is spec.md section 4.5's "Group-by-time": a stateful
// operator holding step, the current [lower, upper) window and a
// first_hit flag, emitting HI_MARGIN/LO_MARGIN markers as the window
// advances or retreats to keep ts inside [lower, upper).
type groupByTimeNode struct {
	step     uint64
	lower    uint64
	upper    uint64
	firstHit bool
	next     Node
}

func newGroupByTimeNode(step uint64, next Node) *groupByTimeNode {
	return &groupByTimeNode{step: step, next: next}
}

func (n *groupByTimeNode) Start() error {
	if n.step == 0 {
		return status.New(status.BadInput, "group-by-time step must be > 0")
	}
	return nil
}

func (n *groupByTimeNode) Put(s Sample) bool {
	if s.Payload.Flags.Has(sample.Empty) {
		return n.next.Put(s) // pass-through, no window update
	}

	if !n.firstHit {
		n.lower = (s.Timestamp / n.step) * n.step
		n.upper = n.lower + n.step
		n.firstHit = true
	}

	for s.Timestamp >= n.upper {
		if !n.next.Put(sample.Marker(s.ParamID, n.upper, sample.HiMargin)) {
			return false
		}
		n.lower += n.step
		n.upper += n.step
	}
	for s.Timestamp < n.lower {
		if !n.next.Put(sample.Marker(s.ParamID, n.upper, sample.LoMargin)) {
			return false
		}
		n.lower -= n.step
		n.upper -= n.step
	}

	return n.next.Put(s)
}

func (n *groupByTimeNode) Complete()                  { n.next.Complete() }
func (n *groupByTimeNode) SetError(err *status.Error) { n.next.SetError(err) }
func (n *groupByTimeNode) Requirements() []Requirement { return nil }
