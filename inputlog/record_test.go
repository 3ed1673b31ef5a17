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
package inputlog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordRoundTrip(t *testing.T) {
	decl := SeriesDecl{ID: 7, Name: "cpu host=a"}
	frame := EncodeRecord(decl)
	// strip the 4-byte length prefix the way readFrames does internally
	got, err := DecodeRecord(frame[4:])
	require.NoError(t, err)
	require.Equal(t, decl, got)

	w := Write{ID: 7, Timestamp: 123, Value: 3.5}
	frame = EncodeRecord(w)
	got, err = DecodeRecord(frame[4:])
	require.NoError(t, err)
	require.Equal(t, w, got)
}

func TestRecordCRCMismatch(t *testing.T) {
	frame := EncodeRecord(Write{ID: 1, Timestamp: 1, Value: 1})
	body := frame[4:]
	body[0] ^= 0xFF // corrupt the type tag byte
	_, err := DecodeRecord(body)
	require.Error(t, err)
}
