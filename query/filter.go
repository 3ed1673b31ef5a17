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

// Predicate tests a data sample (never a control marker) for inclusion.
type Predicate func(s Sample) bool

// filterNode drops data samples Pred rejects; control markers always pass
// through untouched so downstream windowing still sees its boundaries.
type filterNode struct {
	pred Predicate
	next Node
}

func newFilterNode(pred Predicate, next Node) *filterNode {
	return &filterNode{pred: pred, next: next}
}

func (n *filterNode) Start() error { return nil }

func (n *filterNode) Put(s Sample) bool {
	if s.IsControl() || n.pred(s) {
		return n.next.Put(s)
	}
	return true
}

func (n *filterNode) Complete()                  { n.next.Complete() }
func (n *filterNode) SetError(err *status.Error) { n.next.SetError(err) }
func (n *filterNode) Requirements() []Requirement { return nil }
