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
package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveOrAllocateAllocatesOnceAndIsIdempotent(t *testing.T) {
	var declared []string
	g := NewGlobal(func(id uint64, canonical string) { declared = append(declared, canonical) })

	id1 := g.ResolveOrAllocate("cpu host=a")
	id2 := g.ResolveOrAllocate("cpu host=a")
	id3 := g.ResolveOrAllocate("cpu host=b")

	require.Equal(t, id1, id2)
	require.NotEqual(t, id1, id3)
	require.Equal(t, []string{"cpu host=a", "cpu host=b"}, declared)
}

func TestIDOfAndNameOfRoundTrip(t *testing.T) {
	g := NewGlobal(nil)
	id := g.ResolveOrAllocate("mem host=a")

	got, ok := g.IDOf("mem host=a")
	require.True(t, ok)
	require.Equal(t, id, got)

	name, err := g.NameOf(id)
	require.NoError(t, err)
	require.Equal(t, "mem host=a", name)

	_, ok = g.IDOf("mem host=b")
	require.False(t, ok)
}

func TestNameOfUnknownIDIsNotFound(t *testing.T) {
	g := NewGlobal(nil)
	_, err := g.NameOf(999)
	require.Error(t, err)
}

func TestLoadSnapshotSeedsNextID(t *testing.T) {
	g := NewGlobal(nil)
	g.LoadSnapshot(map[uint64]string{5: "cpu host=a", 2: "cpu host=b"})

	name, err := g.NameOf(5)
	require.NoError(t, err)
	require.Equal(t, "cpu host=a", name)

	id := g.ResolveOrAllocate("cpu host=c")
	require.Equal(t, uint64(6), id)
}

func TestSuggestOrdersByNameAndRespectsLimit(t *testing.T) {
	g := NewGlobal(nil)
	g.ResolveOrAllocate("cpu host=b")
	g.ResolveOrAllocate("cpu host=a")
	g.ResolveOrAllocate("cpu host=c")
	g.ResolveOrAllocate("mem host=a")

	all := g.Suggest("cpu", 0)
	require.Len(t, all, 3)
	require.Equal(t, "cpu host=a", all[0].Name)
	require.Equal(t, "cpu host=b", all[1].Name)
	require.Equal(t, "cpu host=c", all[2].Name)

	limited := g.Suggest("cpu", 2)
	require.Len(t, limited, 2)
}

func TestSearchWithPredicates(t *testing.T) {
	g := NewGlobal(nil)
	g.ResolveOrAllocate("cpu host=a region=eu")
	g.ResolveOrAllocate("cpu host=b region=us")
	g.ResolveOrAllocate("mem host=a region=eu")

	cpuOnly := g.Search(MetricStartsWith("cpu"))
	require.Len(t, cpuOnly, 2)

	euCPU := g.Search(And(MetricStartsWith("cpu"), TagEquals("region", "eu")))
	require.Len(t, euCPU, 1)
	require.Equal(t, "cpu host=a region=eu", euCPU[0].Name)

	usOrMem := g.Search(Or(TagEquals("region", "us"), MetricStartsWith("mem")))
	require.Len(t, usOrMem, 2)

	notEU := g.Search(Not(TagEquals("region", "eu")))
	require.Len(t, notEU, 1)
	require.Equal(t, "cpu host=b region=us", notEU[0].Name)
}

func TestLenCountsInternedSeries(t *testing.T) {
	g := NewGlobal(nil)
	require.Equal(t, 0, g.Len())
	g.ResolveOrAllocate("cpu host=a")
	g.ResolveOrAllocate("cpu host=b")
	require.Equal(t, 2, g.Len())
}
