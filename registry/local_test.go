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

func TestLocalResolveAllocatesThroughGlobalOnce(t *testing.T) {
	var declared int
	g := NewGlobal(func(id uint64, canonical string) { declared++ })
	l := NewLocal(g)

	id1, declared1 := l.Resolve("cpu host=a")
	require.True(t, declared1)
	id2, declared2 := l.Resolve("cpu host=a")
	require.False(t, declared2)
	require.Equal(t, id1, id2)
	require.Equal(t, 1, declared)
}

func TestLocalResolvePicksUpIDPublishedByAnotherSession(t *testing.T) {
	g := NewGlobal(nil)
	writer := NewLocal(g)
	reader := NewLocal(g)

	id, _ := writer.Resolve("cpu host=a")

	gotID, declared := reader.Resolve("cpu host=a")
	require.False(t, declared)
	require.Equal(t, id, gotID)
}

func TestLocalNameOfPrefersMatcherThenCacheThenGlobal(t *testing.T) {
	g := NewGlobal(nil)
	l := NewLocal(g)
	id, _ := l.Resolve("cpu host=a")

	name, err := l.NameOf(id)
	require.NoError(t, err)
	require.Equal(t, "cpu host=a", name)

	scope := l.SetMatcher(MatcherFunc(func(lookup uint64) (string, bool) {
		if lookup == id {
			return "renamed", true
		}
		return "", false
	}))
	name, err = l.NameOf(id)
	require.NoError(t, err)
	require.Equal(t, "renamed", name)
	scope.Release()

	name, err = l.NameOf(id)
	require.NoError(t, err)
	require.Equal(t, "cpu host=a", name)
}

func TestLocalNameOfFallsBackToGlobalForUnobservedID(t *testing.T) {
	g := NewGlobal(nil)
	writer := NewLocal(g)
	id, _ := writer.Resolve("cpu host=a")

	reader := NewLocal(g)
	name, err := reader.NameOf(id)
	require.NoError(t, err)
	require.Equal(t, "cpu host=a", name)
}

func TestLocalForgetDropsCachedEntry(t *testing.T) {
	g := NewGlobal(nil)
	l := NewLocal(g)
	id, _ := l.Resolve("cpu host=a")
	l.Forget("cpu host=a")

	require.Empty(t, l.byName)
	require.Empty(t, l.byID)

	name, err := l.NameOf(id)
	require.NoError(t, err)
	require.Equal(t, "cpu host=a", name)
}
