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

func TestShardAppendAndRecover(t *testing.T) {
	dir := t.TempDir()
	sh, err := newShard(dir, 0, 64) // tiny threshold to force rotation quickly
	require.NoError(t, err)

	require.NoError(t, sh.Append(SeriesDecl{ID: 1, Name: "cpu host=a"}))
	for i := 0; i < 10; i++ {
		require.NoError(t, sh.Append(Write{ID: 1, Timestamp: uint64(i), Value: float64(i)}))
	}
	require.NoError(t, sh.Close())

	sh2, err := newShard(dir, 0, 64)
	require.NoError(t, err)
	defer sh2.Close()

	var names []string
	var writes []Write
	for _, seg := range sh2.segmentsForRecovery() {
		err := replaySegment(seg, func(rec Record) {
			switch r := rec.(type) {
			case SeriesDecl:
				names = append(names, r.Name)
			case Write:
				writes = append(writes, r)
			}
		}, nil)
		require.NoError(t, err)
	}
	require.Equal(t, []string{"cpu host=a"}, names)
	require.Len(t, writes, 10)
}

func TestShardBackpressure(t *testing.T) {
	dir := t.TempDir()
	sh, err := newShard(dir, 0, 8) // threshold smaller than one record
	require.NoError(t, err)
	defer sh.Close()

	require.NoError(t, sh.Append(Write{ID: 1, Timestamp: 1, Value: 1}))
	// the append above already crossed the threshold and kicked off a
	// rotation; a second append arriving before the fsync worker clears
	// "rotating" must be rejected as Overflow.
	sh.mu.Lock()
	sh.rotating = true
	sh.mu.Unlock()
	err = sh.Append(Write{ID: 1, Timestamp: 2, Value: 2})
	require.Error(t, err)
}
