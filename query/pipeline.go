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
	"github.com/seriesdb/seriesdb/column"
	"github.com/seriesdb/seriesdb/registry"
	"github.com/seriesdb/seriesdb/seriesname"
)

// transientIDBase reserves the high half of the id space for group-by-tag's
// synthetic ids, so they can never collide with a real series id minted by
// registry.Global.ResolveOrAllocate (which starts at 0 and counts up).
const transientIDBase = uint64(1) << 63

// Pipeline builds and drives a query per spec.md section 4.5: the parser
// materializes a property tree which is traversed into a ReshapeRequest
// plus operator descriptors. ParseRequest already performs that traversal,
// so Pipeline.Execute works straight off the decoded ReshapeRequest.
type Pipeline struct {
	Global *registry.Global
	Store  *column.Store
	Local  *registry.Local // session-local matcher scope for group-by-tag substitution
}

// Execute resolves req against the registry and column store, builds the
// operator chain, validates it, and pumps samples into cursor until
// completion, an error, or the cursor returning false from Put.
func (p Pipeline) Execute(req *ReshapeRequest, cursor Cursor) error {
	wherePred, err := ParseWhere(req.Where)
	if err != nil {
		cursor.SetError(toStatusError(err))
		return err
	}

	var metricPred registry.Predicate
	for _, m := range req.Metrics {
		mp := registry.MetricStartsWith(m)
		if metricPred == nil {
			metricPred = mp
		} else {
			metricPred = registry.Or(metricPred, mp)
		}
	}
	pred := registry.And(metricPred, wherePred)
	matches := p.Global.Search(pred)

	chain := buildChain(req, matches, cursor, p.Local)
	if err := validateChain(chain); err != nil {
		cursor.SetError(toStatusError(err))
		return err
	}

	if req.Mode == ModeMetadata {
		ms := MetadataSpec{Global: p.Global, Pred: pred}
		runChain(chain, ms.Produce)
		return nil
	}

	ids := make([]uint64, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	sp := ScanSpec{Store: p.Store, IDs: ids, Begin: req.Begin, End: req.End, OrderBy: req.OrderBy}
	runChain(chain, sp.Produce)
	return nil
}

// buildChain wires the operator nodes spec.md section 9 names — in order
// Filter, GroupByTime, GroupByTag, Aggregate — ahead of the terminal
// cursor sink, filtering raw values before they are bucketed or summed.
// Construction runs tail-to-head since every node holds a reference to
// its successor; the returned slice is head-first, the order
// validateChain and runChain expect.
func buildChain(req *ReshapeRequest, matches []registry.NamedID, cursor Cursor, local *registry.Local) []Node {
	var next Node = newTerminalNode(cursor)
	var tailToHead []Node
	tailToHead = append(tailToHead, next)

	if req.HasAggregate {
		next = newAggregateNode(req.Aggregate, next)
		tailToHead = append(tailToHead, next)
	}
	if req.GroupByTag != "" {
		toTransient, names := buildGroupByTagDictionary(req.GroupByTag, matches)
		next = newGroupByTagNode(toTransient, names, local, next)
		tailToHead = append(tailToHead, next)
	}
	if req.GroupByTimeStep > 0 {
		next = newGroupByTimeNode(req.GroupByTimeStep, next)
		tailToHead = append(tailToHead, next)
	}
	if req.HasValueFilter {
		next = newFilterNode(valueComparison(req.FilterOp, req.FilterValue), next)
		tailToHead = append(tailToHead, next)
	}

	headToTail := make([]Node, len(tailToHead))
	for i, n := range tailToHead {
		headToTail[len(tailToHead)-1-i] = n
	}
	return headToTail
}

// valueComparison builds the Predicate a Filter operator node tests each
// data sample's value against.
func valueComparison(op string, threshold float64) Predicate {
	switch op {
	case ">":
		return func(s Sample) bool { return s.Payload.Value > threshold }
	case ">=":
		return func(s Sample) bool { return s.Payload.Value >= threshold }
	case "<":
		return func(s Sample) bool { return s.Payload.Value < threshold }
	case "<=":
		return func(s Sample) bool { return s.Payload.Value <= threshold }
	case "!=":
		return func(s Sample) bool { return s.Payload.Value != threshold }
	default: // "==", validated by request.go's validateFilterOp
		return func(s Sample) bool { return s.Payload.Value == threshold }
	}
}

// buildGroupByTagDictionary assigns one transient id per distinct value of
// tagKey observed across matches (spec.md section 4.5 "Group-by-tag": "A
// dictionary source_id -> transient_id materialized at build time from the
// query's tag predicates").
func buildGroupByTagDictionary(tagKey string, matches []registry.NamedID) (toTransient map[uint64]uint64, names map[uint64]string) {
	toTransient = make(map[uint64]uint64, len(matches))
	names = make(map[uint64]string)
	valueToTransient := make(map[string]uint64)
	next := transientIDBase
	for _, m := range matches {
		value := tagValue(m.Name, tagKey)
		tid, ok := valueToTransient[value]
		if !ok {
			tid = next
			next++
			valueToTransient[value] = tid
			names[tid] = value
		}
		toTransient[m.ID] = tid
	}
	return toTransient, names
}

func tagValue(canonical, key string) string {
	s, err := seriesname.Parse([]byte(canonical))
	if err != nil {
		return ""
	}
	for _, t := range s.Tags {
		if t.Key == key {
			return t.Value
		}
	}
	return ""
}
