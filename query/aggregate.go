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

// AggregateKind is one of the operator nodes spec.md section 4.5
// "Aggregate/derivative" names.
type AggregateKind int

const (
	AggregateSum AggregateKind = iota
	AggregateMean
	AggregateDerivative
)

// aggregateNode folds real samples within one group-by-time bucket into a
// single value, emitted when the bucket's closing HI_MARGIN/LO_MARGIN
// marker arrives; the marker itself is then forwarded so further bucketing
// downstream still sees its boundary. Derivative instead emits one sample
// per input pair and ignores bucket boundaries; it does not require an
// upstream group-by.
type aggregateNode struct {
	kind AggregateKind
	next Node

	sum   float64
	count int

	lastParamID   uint64
	lastTimestamp uint64

	havePrev bool
	prev     Sample
}

func newAggregateNode(kind AggregateKind, next Node) *aggregateNode {
	return &aggregateNode{kind: kind, next: next}
}

func (n *aggregateNode) Start() error { return nil }

func (n *aggregateNode) Put(s Sample) bool {
	if n.kind == AggregateDerivative {
		return n.putDerivative(s)
	}

	if s.Payload.Flags.Has(sample.HiMargin) || s.Payload.Flags.Has(sample.LoMargin) {
		if n.count > 0 {
			if !n.next.Put(sample.Value(s.ParamID, s.Timestamp, n.finalize())) {
				return false
			}
			n.sum, n.count = 0, 0
		}
		return n.next.Put(s)
	}
	if s.Payload.Flags.Has(sample.Empty) {
		return n.next.Put(s)
	}

	n.sum += s.Payload.Value
	n.count++
	n.lastParamID, n.lastTimestamp = s.ParamID, s.Timestamp
	return true
}

func (n *aggregateNode) finalize() float64 {
	if n.kind == AggregateMean {
		return n.sum / float64(n.count)
	}
	return n.sum
}

func (n *aggregateNode) putDerivative(s Sample) bool {
	if s.IsControl() {
		return n.next.Put(s)
	}
	if !n.havePrev {
		n.prev = s
		n.havePrev = true
		return true
	}
	dt := s.Timestamp - n.prev.Timestamp
	var rate float64
	if dt != 0 {
		rate = (s.Payload.Value - n.prev.Payload.Value) / float64(dt)
	}
	n.prev = s
	return n.next.Put(sample.Value(s.ParamID, s.Timestamp, rate))
}

// Complete closes the final, still-open bucket (spec.md section 4.5
// "complete drains residual state (e.g., closes the final time bucket)")
// before forwarding completion downstream. Derivative has no buckets to
// close.
func (n *aggregateNode) Complete() {
	if n.kind != AggregateDerivative && n.count > 0 {
		n.next.Put(sample.Value(n.lastParamID, n.lastTimestamp, n.finalize()))
		n.sum, n.count = 0, 0
	}
	n.next.Complete()
}
func (n *aggregateNode) SetError(err *status.Error) { n.next.SetError(err) }

func (n *aggregateNode) Requirements() []Requirement {
	if n.kind == AggregateDerivative {
		return nil
	}
	return []Requirement{RequiresGroupBy}
}
