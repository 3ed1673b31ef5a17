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

func TestMetricStartsWith(t *testing.T) {
	p := MetricStartsWith("cpu")
	require.True(t, p(NamedID{Name: "cpu host=a"}))
	require.False(t, p(NamedID{Name: "mem host=a"}))
	require.True(t, p(NamedID{Name: "cpufan host=a"}))
}

func TestTagEquals(t *testing.T) {
	p := TagEquals("host", "a")
	require.True(t, p(NamedID{Name: "cpu host=a region=eu"}))
	require.True(t, p(NamedID{Name: "cpu region=eu host=a"}))
	require.False(t, p(NamedID{Name: "cpu host=ab region=eu"}))
	require.False(t, p(NamedID{Name: "cpu host=b"}))
}

func TestTagRegexMatchesValue(t *testing.T) {
	p, err := TagRegex("host", "^a[0-9]+$")
	require.NoError(t, err)
	require.True(t, p(NamedID{Name: "cpu host=a12"}))
	require.False(t, p(NamedID{Name: "cpu host=b12"}))
	require.False(t, p(NamedID{Name: "cpu host=a12x"}))
}

func TestMetricRegexMatchesMetricSegmentOnly(t *testing.T) {
	p, err := MetricRegex("^cpu.*")
	require.NoError(t, err)
	require.True(t, p(NamedID{Name: "cpufan host=a"}))
	require.False(t, p(NamedID{Name: "mem host=cpu"}))
}

func TestTagRegexRejectsBadPattern(t *testing.T) {
	_, err := TagRegex("host", "(unclosed")
	require.Error(t, err)
}

func TestAndShortCircuitsLeftToRight(t *testing.T) {
	var calls []string
	record := func(name string, result bool) Predicate {
		return func(NamedID) bool { calls = append(calls, name); return result }
	}
	p := And(record("a", false), record("b", true))
	require.False(t, p(NamedID{}))
	require.Equal(t, []string{"a"}, calls)
}

func TestOrShortCircuitsLeftToRight(t *testing.T) {
	var calls []string
	record := func(name string, result bool) Predicate {
		return func(NamedID) bool { calls = append(calls, name); return result }
	}
	p := Or(record("a", true), record("b", false))
	require.True(t, p(NamedID{}))
	require.Equal(t, []string{"a"}, calls)
}

func TestNotNegates(t *testing.T) {
	p := Not(MetricStartsWith("cpu"))
	require.False(t, p(NamedID{Name: "cpu host=a"}))
	require.True(t, p(NamedID{Name: "mem host=a"}))
}

func TestAndOrNotCompose(t *testing.T) {
	p := And(
		MetricStartsWith("cpu"),
		Or(TagEquals("region", "eu"), Not(TagEquals("host", "b"))),
	)
	require.True(t, p(NamedID{Name: "cpu host=a region=us"}))
	require.False(t, p(NamedID{Name: "cpu host=b region=us"}))
	require.True(t, p(NamedID{Name: "cpu host=b region=eu"}))
}
