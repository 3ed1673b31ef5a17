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

// Package query is the query dispatch plane spec.md section 4.5 describes:
// a JSON request is parsed into a property tree, which builds a linear
// operator chain that pumps sample.Sample values into a caller-supplied
// cursor under backpressure.
package query

import (
	"github.com/seriesdb/seriesdb/sample"
	"github.com/seriesdb/seriesdb/status"
)

// Sample is re-exported at package level so operator and cursor signatures
// don't force every caller to also import the sample package.
type Sample = sample.Sample

// Cursor is the downstream sink for query results (spec.md section 6,
// "Cursor interface (in-process)"). Put returning false means the cursor
// is full or cancelled; the pipeline must stop pulling immediately.
type Cursor interface {
	Put(s Sample) (cont bool)
	SetError(err *status.Error)
	Complete()
}

// CollectingCursor is a Cursor that buffers every sample it receives, the
// shape test code and simple in-process callers need most often.
type CollectingCursor struct {
	Samples []Sample
	Err     *status.Error
	Limit   int // 0 means unlimited
}

func (c *CollectingCursor) Put(s Sample) bool {
	c.Samples = append(c.Samples, s)
	if c.Limit > 0 && len(c.Samples) >= c.Limit {
		return false
	}
	return true
}

func (c *CollectingCursor) SetError(err *status.Error) { c.Err = err }
func (c *CollectingCursor) Complete()                  {}
