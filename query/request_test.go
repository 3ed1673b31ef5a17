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

	"github.com/seriesdb/seriesdb/status"
)

func TestParseRequestMinimal(t *testing.T) {
	req, err := ParseRequest([]byte(`{"select": ["cpu"]}`))
	require.NoError(t, err)
	require.Equal(t, []string{"cpu"}, req.Metrics)
	require.Equal(t, ModeScan, req.Mode)
	require.Equal(t, OrderByTime, req.OrderBy)
	require.False(t, req.HasAggregate)
	require.Zero(t, req.GroupByTimeStep)
}

func TestParseRequestFullySpecified(t *testing.T) {
	req, err := ParseRequest([]byte(`{
		"select": ["cpu", "mem"],
		"where": "host = \"a\"",
		"group-by": {"time": 60, "tag": "region"},
		"order-by": "series",
		"range": {"from": 10, "to": 20},
		"mode": "metadata",
		"operators": [{"aggregate": "mean"}]
	}`))
	require.NoError(t, err)
	require.Equal(t, []string{"cpu", "mem"}, req.Metrics)
	require.Equal(t, `host = "a"`, req.Where)
	require.Equal(t, uint64(60), req.GroupByTimeStep)
	require.Equal(t, "region", req.GroupByTag)
	require.Equal(t, OrderBySeries, req.OrderBy)
	require.Equal(t, uint64(10), req.Begin)
	require.Equal(t, uint64(20), req.End)
	require.Equal(t, ModeMetadata, req.Mode)
	require.True(t, req.HasAggregate)
	require.Equal(t, AggregateMean, req.Aggregate)
}

func TestParseRequestDerivativeOperator(t *testing.T) {
	req, err := ParseRequest([]byte(`{"select": ["cpu"], "operators": [{"derivative": true}]}`))
	require.NoError(t, err)
	require.True(t, req.HasAggregate)
	require.Equal(t, AggregateDerivative, req.Aggregate)
}

func TestParseRequestRejectsEmptySelect(t *testing.T) {
	_, err := ParseRequest([]byte(`{"select": []}`))
	require.Error(t, err)
	require.Equal(t, status.QueryParseError, status.CodeOf(err))
}

func TestParseRequestRejectsMalformedJSON(t *testing.T) {
	_, err := ParseRequest([]byte(`{not json`))
	require.Error(t, err)
	require.Equal(t, status.QueryParseError, status.CodeOf(err))
}

func TestParseRequestRejectsUnknownMode(t *testing.T) {
	_, err := ParseRequest([]byte(`{"select": ["cpu"], "mode": "bogus"}`))
	require.Error(t, err)
	require.Equal(t, status.QueryParseError, status.CodeOf(err))
}

func TestParseRequestFilterOperator(t *testing.T) {
	req, err := ParseRequest([]byte(`{"select": ["cpu"], "operators": [{"filter": {"op": ">=", "value": 3.5}}]}`))
	require.NoError(t, err)
	require.True(t, req.HasValueFilter)
	require.Equal(t, ">=", req.FilterOp)
	require.Equal(t, 3.5, req.FilterValue)
}

func TestParseRequestRejectsUnknownFilterOperator(t *testing.T) {
	_, err := ParseRequest([]byte(`{"select": ["cpu"], "operators": [{"filter": {"op": "~=", "value": 1}}]}`))
	require.Error(t, err)
	require.Equal(t, status.QueryParseError, status.CodeOf(err))
}

func TestParseRequestRejectsUnknownAggregate(t *testing.T) {
	_, err := ParseRequest([]byte(`{"select": ["cpu"], "operators": [{"aggregate": "bogus"}]}`))
	require.Error(t, err)
	require.Equal(t, status.QueryParseError, status.CodeOf(err))
}
