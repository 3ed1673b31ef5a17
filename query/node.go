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

import "github.com/seriesdb/seriesdb/status"

// Requirement is a capability bit a Node declares about itself, used by the
// builder to validate the chain before running it (spec.md section 4.5:
// "Nodes declare requirements ... the builder validates the chain against
// these").
type Requirement int

const (
	// RequiresGroupBy means this node only makes sense downstream of a
	// GroupByTime or GroupByTag node (e.g. an aggregate that closes buckets
	// on HI_MARGIN/LO_MARGIN markers).
	RequiresGroupBy Requirement = iota
	// Terminal means this node must be the last in the chain (it owns the
	// cursor and has nothing meaningful downstream of it).
	Terminal
)

// Node is the capability set spec.md section 4.5/9 describes: "Node and
// IStreamProcessor are capability sets {start, put, complete, set_error,
// requirements}". A linear chain of Nodes is built bottom-up; each owns a
// reference to the next (or, for a Terminal node, to the Cursor).
type Node interface {
	Start() error
	Put(s Sample) (cont bool)
	Complete()
	SetError(err *status.Error)
	Requirements() []Requirement
}

// terminalNode adapts a Cursor into the Node capability set, used as the
// tail of every operator chain this package builds.
type terminalNode struct {
	cursor Cursor
}

func newTerminalNode(c Cursor) *terminalNode { return &terminalNode{cursor: c} }

func (n *terminalNode) Start() error                { return nil }
func (n *terminalNode) Put(s Sample) bool            { return n.cursor.Put(s) }
func (n *terminalNode) Complete()                    { n.cursor.Complete() }
func (n *terminalNode) SetError(err *status.Error)   { n.cursor.SetError(err) }
func (n *terminalNode) Requirements() []Requirement  { return []Requirement{Terminal} }

// validateChain checks that every RequiresGroupBy node in chain has a
// GroupByTime or GroupByTag node somewhere upstream of it, and that only
// the last node declares Terminal.
func validateChain(chain []Node) error {
	sawGroupBy := false
	for i, n := range chain {
		for _, req := range n.Requirements() {
			switch req {
			case RequiresGroupBy:
				if !sawGroupBy {
					return status.New(status.BadInput, "operator requires an upstream group-by node")
				}
			case Terminal:
				if i != len(chain)-1 {
					return status.New(status.BadInput, "terminal operator is not last in chain")
				}
			}
		}
		if _, ok := n.(*groupByTimeNode); ok {
			sawGroupBy = true
		}
		if _, ok := n.(*groupByTagNode); ok {
			sawGroupBy = true
		}
	}
	return nil
}

// runChain starts every node in chain (outermost first), pumps samples
// from produce into chain[0] — which, by construction, forwards to
// chain[1] and so on down to the terminal node — and completes the chain
// once produce is exhausted or a downstream Put returns false.
func runChain(chain []Node, produce func(yield func(Sample) bool)) {
	for _, n := range chain {
		if err := n.Start(); err != nil {
			chain[0].SetError(toStatusError(err))
			return
		}
	}
	produce(func(s Sample) bool {
		return chain[0].Put(s)
	})
	chain[0].Complete()
}

func toStatusError(err error) *status.Error {
	if se, ok := err.(*status.Error); ok {
		return se
	}
	return status.Wrap(status.Internal, "operator start failed", err)
}
