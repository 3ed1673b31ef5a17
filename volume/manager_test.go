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
package volume

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileBackendRoundTrip(t *testing.T) {
	dir := t.TempDir()
	backend, err := newFileBackend(dir)
	require.NoError(t, err)
	defer backend.Close()

	mgr := NewManager(backend, 64, 2)
	addr := mgr.Allocate()
	payload := []byte("hello page")
	require.NoError(t, mgr.WritePage(addr, payload))

	got, err := mgr.ReadPage(addr)
	require.NoError(t, err)
	require.Equal(t, payload, got[:len(payload)])
	require.Len(t, got, 64)
}

func TestManagerAllocateRoundRobin(t *testing.T) {
	dir := t.TempDir()
	backend, err := newFileBackend(dir)
	require.NoError(t, err)
	defer backend.Close()

	mgr := NewManager(backend, 16, 3)
	addrs := make([]Addr, 6)
	for i := range addrs {
		addrs[i] = mgr.Allocate()
	}
	for i, a := range addrs {
		require.Equal(t, uint32(i%3), a.VolumeID)
	}
	require.Equal(t, uint64(0), addrs[0].PageID)
	require.Equal(t, uint64(1), addrs[3].PageID) // second pass over volume 0
}

func TestManagerWritePageTooLarge(t *testing.T) {
	dir := t.TempDir()
	backend, err := newFileBackend(dir)
	require.NoError(t, err)
	defer backend.Close()

	mgr := NewManager(backend, 4, 1)
	err = mgr.WritePage(Addr{}, []byte("too long for a 4-byte page"))
	require.Error(t, err)
}

func TestColdArchiveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewColdArchive(dir)
	require.NoError(t, err)

	addr := Addr{VolumeID: 1, PageID: 7}
	payload := []byte("cold data worth compressing")
	require.NoError(t, archive.Store(addr, payload))

	got, ok, err := archive.Load(addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, payload, got)

	_, ok, err = archive.Load(Addr{VolumeID: 9, PageID: 9})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("nonexistent", t.TempDir(), nil)
	require.Error(t, err)
}
