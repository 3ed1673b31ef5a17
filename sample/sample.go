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
// Package sample defines the wire-level unit of data the engine moves
// between sessions, the input log and the query pipeline.
package sample

// Flags are reserved payload bits. EMPTY, LoMargin and HiMargin double as
// in-band control records flowing through the operator stream alongside
// real samples.
type Flags uint16

const (
	Empty    Flags = 1 << iota // pass-through marker, carries no value
	LoMargin                   // emitted when a group-by-time window must retreat
	HiMargin                   // emitted when a group-by-time window must advance
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Payload is the value carried by a Sample.
type Payload struct {
	Value float64
	Size  uint16
	Flags Flags
}

// Sample is a single (series, time, value) observation, or a control
// record (Payload.Flags != 0) inserted by an operator.
type Sample struct {
	ParamID   uint64
	Timestamp uint64
	Payload   Payload
}

// Value is a convenience constructor for an ordinary data point.
func Value(paramID, timestamp uint64, v float64) Sample {
	return Sample{ParamID: paramID, Timestamp: timestamp, Payload: Payload{Value: v}}
}

// Marker builds a LO_MARGIN/HI_MARGIN control record for the given window
// boundary timestamp. The value carried is meaningless for markers.
func Marker(paramID uint64, ts uint64, f Flags) Sample {
	return Sample{ParamID: paramID, Timestamp: ts, Payload: Payload{Flags: f}}
}

// IsControl reports whether s is a marker/empty record rather than real data.
func (s Sample) IsControl() bool {
	return s.Payload.Flags != 0
}
