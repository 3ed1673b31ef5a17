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
package column

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seriesdb/seriesdb/volume"
)

func newTestManager(t *testing.T) *volume.Manager {
	t.Helper()
	backend, err := volume.Open("file", t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	return volume.NewManager(backend, 64, 4)
}

func TestCommitWriteAndScanOrdering(t *testing.T) {
	store := NewStore(newTestManager(t), 1<<20, nil)

	require.False(t, store.CommitWrite(1, 10, 1.0))
	require.False(t, store.CommitWrite(1, 11, 2.0))
	require.False(t, store.CommitWrite(1, 5, 0.5))

	forward := store.Scan(1, 0, 100, true)
	require.Equal(t, []Sample{{5, 0.5}, {10, 1.0}, {11, 2.0}}, forward)

	backward := store.Scan(1, 100, 0, false)
	require.Equal(t, []Sample{{11, 2.0}, {10, 1.0}, {5, 0.5}}, backward)
}

func TestCommitWriteCollision(t *testing.T) {
	store := NewStore(newTestManager(t), 1<<20, nil)

	require.False(t, store.CommitWrite(1, 5, 1.0))
	overwritten := store.CommitWrite(1, 5, 2.0)
	require.True(t, overwritten)

	got := store.Scan(1, 0, 10, true)
	require.Equal(t, []Sample{{5, 2.0}}, got)
}

func TestFlushAndReopenFromRescuePoints(t *testing.T) {
	mgr := newTestManager(t)
	var lastAddrs []volume.Addr
	store := NewStore(mgr, 1<<20, func(id uint64, addrs []volume.Addr) {
		lastAddrs = addrs
	})

	for i := uint64(0); i < 5; i++ {
		store.CommitWrite(42, i, float64(i))
	}
	addrs, err := store.Flush(42)
	require.NoError(t, err)
	require.NotEmpty(t, addrs)
	require.Equal(t, addrs, lastAddrs)

	reopened := NewStore(mgr, 1<<20, nil)
	require.NoError(t, reopened.OpenSeries(42, addrs))
	got := reopened.Scan(42, 0, 10, true)
	require.Len(t, got, 5)
	for i, s := range got {
		require.Equal(t, uint64(i), s.Timestamp)
		require.Equal(t, float64(i), s.Value)
	}
}

func TestAutoRotateOnThreshold(t *testing.T) {
	mgr := newTestManager(t)
	rotated := 0
	store := NewStore(mgr, sampleWidth*2, func(id uint64, addrs []volume.Addr) {
		rotated++
	})

	store.CommitWrite(1, 1, 1.0)
	store.CommitWrite(1, 2, 2.0)
	require.Equal(t, 1, rotated)
}

func TestFlushAllCoversEverySeries(t *testing.T) {
	mgr := newTestManager(t)
	store := NewStore(mgr, 1<<20, nil)
	store.CommitWrite(1, 1, 1.0)
	store.CommitWrite(2, 1, 2.0)

	all, err := store.FlushAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.NotEmpty(t, all[1])
	require.NotEmpty(t, all[2])
}
