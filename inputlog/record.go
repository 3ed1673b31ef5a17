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
// Package inputlog implements the InputLog (spec.md section 4.2): a
// sharded, append-only, crash-consistent record of every id allocation
// and every write. Segment framing follows spec.md section 6's on-disk
// format: length-prefixed records with a CRC and a type tag.
package inputlog

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/seriesdb/seriesdb/status"
)

// RecordType tags the payload that follows the length prefix.
type RecordType byte

const (
	TypeSeriesDecl RecordType = 1
	TypeWrite      RecordType = 2
)

// Record is either a SeriesDecl or a Write (spec.md section 3
// "InputLog records. Two kinds").
type Record interface {
	recordType() RecordType
	encodePayload() []byte
}

// SeriesDecl records a freshly-allocated param_id and the canonical name
// it denotes. Replaying it is idempotent by id (spec.md section 4.2).
type SeriesDecl struct {
	ID   uint64
	Name string
}

func (SeriesDecl) recordType() RecordType { return TypeSeriesDecl }

func (d SeriesDecl) encodePayload() []byte {
	b := make([]byte, 8+len(d.Name))
	binary.LittleEndian.PutUint64(b[0:8], d.ID)
	copy(b[8:], d.Name)
	return b
}

func decodeSeriesDecl(b []byte) (SeriesDecl, error) {
	if len(b) < 8 {
		return SeriesDecl{}, status.New(status.IoError, "truncated SeriesDecl record")
	}
	return SeriesDecl{ID: binary.LittleEndian.Uint64(b[0:8]), Name: string(b[8:])}, nil
}

// Write records one sample appended to a series.
type Write struct {
	ID        uint64
	Timestamp uint64
	Value     float64
}

func (Write) recordType() RecordType { return TypeWrite }

func (w Write) encodePayload() []byte {
	b := make([]byte, 24)
	binary.LittleEndian.PutUint64(b[0:8], w.ID)
	binary.LittleEndian.PutUint64(b[8:16], w.Timestamp)
	binary.LittleEndian.PutUint64(b[16:24], float64bits(w.Value))
	return b
}

func decodeWrite(b []byte) (Write, error) {
	if len(b) != 24 {
		return Write{}, status.New(status.IoError, "truncated Write record")
	}
	return Write{
		ID:        binary.LittleEndian.Uint64(b[0:8]),
		Timestamp: binary.LittleEndian.Uint64(b[8:16]),
		Value:     float64frombits(binary.LittleEndian.Uint64(b[16:24])),
	}, nil
}

// EncodeRecord frames rec as: 4-byte little-endian length (type+payload),
// 1-byte type tag, payload, 4-byte CRC32 (IEEE) over type+payload.
func EncodeRecord(rec Record) []byte {
	payload := rec.encodePayload()
	body := make([]byte, 1+len(payload))
	body[0] = byte(rec.recordType())
	copy(body[1:], payload)
	sum := crc32.ChecksumIEEE(body)

	out := make([]byte, 4+len(body)+4)
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(body)))
	copy(out[4:], body)
	binary.LittleEndian.PutUint32(out[4+len(body):], sum)
	return out
}

// DecodeRecord reverses EncodeRecord on a single already-length-delimited
// frame (without the 4-byte length prefix, with the trailing CRC still
// attached). It validates the CRC and returns the typed record.
func DecodeRecord(frame []byte) (Record, error) {
	if len(frame) < 1+4 {
		return nil, status.New(status.IoError, "short record frame")
	}
	body := frame[:len(frame)-4]
	wantSum := binary.LittleEndian.Uint32(frame[len(frame)-4:])
	if crc32.ChecksumIEEE(body) != wantSum {
		return nil, status.New(status.IoError, "record CRC mismatch")
	}
	switch RecordType(body[0]) {
	case TypeSeriesDecl:
		return decodeSeriesDecl(body[1:])
	case TypeWrite:
		return decodeWrite(body[1:])
	default:
		return nil, status.New(status.IoError, "unknown record type")
	}
}
