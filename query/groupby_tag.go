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
	"github.com/seriesdb/seriesdb/registry"
	"github.com/seriesdb/seriesdb/status"
)

// groupByTagNode rewrites sample.ParamID through a dictionary materialized
// at build time from the query's tag predicates (spec.md section 4.5
// "Group-by-tag"), dropping samples for series the dictionary doesn't
// cover. It also installs a transient Matcher for the query's duration so
// downstream name lookups see the tag-grouped labels.
type groupByTagNode struct {
	toTransient map[uint64]uint64
	names       map[uint64]string // transient id -> display label
	local       *registry.Local
	scope       registry.Scope
	next        Node
}

func newGroupByTagNode(toTransient map[uint64]uint64, names map[uint64]string, local *registry.Local, next Node) *groupByTagNode {
	return &groupByTagNode{toTransient: toTransient, names: names, local: local, next: next}
}

func (n *groupByTagNode) Start() error {
	if n.local != nil {
		n.scope = n.local.SetMatcher(registry.MatcherFunc(func(id uint64) (string, bool) {
			name, ok := n.names[id]
			return name, ok
		}))
	}
	return nil
}

func (n *groupByTagNode) Put(s Sample) bool {
	if s.Payload.Flags != 0 {
		return n.next.Put(s) // markers/EMPTY pass through, not keyed by series
	}
	transient, ok := n.toTransient[s.ParamID]
	if !ok {
		return true // unmapped sample dropped, upstream keeps pulling
	}
	s.ParamID = transient
	return n.next.Put(s)
}

func (n *groupByTagNode) Complete() {
	n.scope.Release()
	n.next.Complete()
}
func (n *groupByTagNode) SetError(err *status.Error) { n.next.SetError(err) }
func (n *groupByTagNode) Requirements() []Requirement { return nil }
