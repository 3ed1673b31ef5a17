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
	"github.com/seriesdb/seriesdb/sample"
)

// MetadataSpec describes a Metadata-mode query (spec.md section 4.5): it
// never touches the column store, instead iterating the NameRegistry
// filtered by pred and emitting one synthetic sample per matching series,
// whose Payload.Size carries the byte length of the series' canonical name
// (the name itself is not carried in the sample).
type MetadataSpec struct {
	Global *registry.Global
	Pred   registry.Predicate
	Names  func(id uint64) string // not set or read by Produce
}

// Produce iterates the global registry via Search and yields one metadata
// sample per match; the sample's Payload.Size carries the byte length of
// the canonical name.
func (ms MetadataSpec) Produce(yield func(Sample) bool) {
	for _, entry := range ms.Global.Search(ms.Pred) {
		s := sample.Value(entry.ID, 0, 0)
		s.Payload.Size = uint16(len(entry.Name))
		if !yield(s) {
			return
		}
	}
}
