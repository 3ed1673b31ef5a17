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

func alwaysMiss(uint64) (string, bool) { return "", false }

func TestSetMatcherAndReleaseRestoresPreviousMatcher(t *testing.T) {
	g := NewGlobal(nil)
	l := NewLocal(g)

	outer := l.SetMatcher(MatcherFunc(func(id uint64) (string, bool) { return "outer", true }))
	name, ok := l.matcher[len(l.matcher)-1].NameOf(1)
	require.True(t, ok)
	require.Equal(t, "outer", name)

	inner := l.SetMatcher(MatcherFunc(func(id uint64) (string, bool) { return "inner", true }))
	name, ok = l.matcher[len(l.matcher)-1].NameOf(1)
	require.True(t, ok)
	require.Equal(t, "inner", name)

	inner.Release()
	require.Len(t, l.matcher, 1)
	name, ok = l.matcher[len(l.matcher)-1].NameOf(1)
	require.True(t, ok)
	require.Equal(t, "outer", name)

	outer.Release()
	require.Empty(t, l.matcher)
}

func TestNestedScopesAreLIFO(t *testing.T) {
	g := NewGlobal(nil)
	l := NewLocal(g)

	a := l.SetMatcher(MatcherFunc(alwaysMiss))
	b := l.SetMatcher(MatcherFunc(alwaysMiss))
	c := l.SetMatcher(MatcherFunc(alwaysMiss))
	require.Len(t, l.matcher, 3)

	c.Release()
	require.Len(t, l.matcher, 2)
	b.Release()
	require.Len(t, l.matcher, 1)
	a.Release()
	require.Empty(t, l.matcher)
}

func TestReleaseOutOfOrderIsNoopNotCorrupting(t *testing.T) {
	g := NewGlobal(nil)
	l := NewLocal(g)

	a := l.SetMatcher(MatcherFunc(alwaysMiss))
	b := l.SetMatcher(MatcherFunc(alwaysMiss))

	a.Release() // releasing the outer scope first unwinds the whole stack
	require.Empty(t, l.matcher)

	b.Release() // must not panic or touch an unrelated, already-released stack
	require.Empty(t, l.matcher)
}

func TestMatcherFuncAdaptsPlainFunction(t *testing.T) {
	var m Matcher = MatcherFunc(func(id uint64) (string, bool) {
		if id == 7 {
			return "seven", true
		}
		return "", false
	})
	name, ok := m.NameOf(7)
	require.True(t, ok)
	require.Equal(t, "seven", name)

	_, ok = m.NameOf(8)
	require.False(t, ok)
}
