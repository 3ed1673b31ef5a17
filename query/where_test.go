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
package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seriesdb/seriesdb/registry"
)

func TestParseWhereEmptyMatchesEverything(t *testing.T) {
	p, err := ParseWhere("")
	require.NoError(t, err)
	require.True(t, p(registry.NamedID{Name: "cpu host=a"}))
}

func TestParseWhereSimpleEquality(t *testing.T) {
	p, err := ParseWhere(`host = "a"`)
	require.NoError(t, err)
	require.True(t, p(registry.NamedID{Name: "cpu host=a"}))
	require.False(t, p(registry.NamedID{Name: "cpu host=b"}))
}

func TestParseWhereInequality(t *testing.T) {
	p, err := ParseWhere(`host != "a"`)
	require.NoError(t, err)
	require.False(t, p(registry.NamedID{Name: "cpu host=a"}))
	require.True(t, p(registry.NamedID{Name: "cpu host=b"}))
}

func TestParseWhereRegexOnTag(t *testing.T) {
	p, err := ParseWhere(`host ~ /^a[0-9]+$/`)
	require.NoError(t, err)
	require.True(t, p(registry.NamedID{Name: "cpu host=a12"}))
	require.False(t, p(registry.NamedID{Name: "cpu host=b12"}))
}

func TestParseWhereMetricComparison(t *testing.T) {
	p, err := ParseWhere(`metric = "cpu"`)
	require.NoError(t, err)
	require.True(t, p(registry.NamedID{Name: "cpu host=a"}))
	require.False(t, p(registry.NamedID{Name: "mem host=a"}))
}

func TestParseWhereAndOr(t *testing.T) {
	p, err := ParseWhere(`host = "a" AND region = "eu" OR host = "b"`)
	require.NoError(t, err)
	require.True(t, p(registry.NamedID{Name: "cpu host=a region=eu"}))
	require.False(t, p(registry.NamedID{Name: "cpu host=a region=us"}))
	require.True(t, p(registry.NamedID{Name: "cpu host=b region=us"}))
}

func TestParseWhereNotAndParens(t *testing.T) {
	p, err := ParseWhere(`NOT (host = "a" OR host = "b")`)
	require.NoError(t, err)
	require.False(t, p(registry.NamedID{Name: "cpu host=a"}))
	require.False(t, p(registry.NamedID{Name: "cpu host=b"}))
	require.True(t, p(registry.NamedID{Name: "cpu host=c"}))
}

func TestParseWhereNestedParens(t *testing.T) {
	p, err := ParseWhere(`metric ~ /^cpu/ AND (host = "a" OR NOT region != "eu")`)
	require.NoError(t, err)
	require.True(t, p(registry.NamedID{Name: "cpu host=a region=us"}))
	require.True(t, p(registry.NamedID{Name: "cpu host=z region=eu"}))
	require.False(t, p(registry.NamedID{Name: "cpu host=z region=us"}))
	require.False(t, p(registry.NamedID{Name: "mem host=a region=eu"}))
}

func TestParseWhereRejectsMalformed(t *testing.T) {
	_, err := ParseWhere(`host = `)
	require.Error(t, err)
}

func TestParseWhereRejectsBadRegex(t *testing.T) {
	_, err := ParseWhere(`host ~ /(unclosed/`)
	require.Error(t, err)
}
