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

	"github.com/seriesdb/seriesdb/column"
	"github.com/seriesdb/seriesdb/registry"
	"github.com/seriesdb/seriesdb/volume"
)

func newTestPipeline(t *testing.T) (Pipeline, *registry.Global) {
	t.Helper()
	backend, err := volume.Open("file", t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	mgr := volume.NewManager(backend, 64, 4)
	store := column.NewStore(mgr, 1<<20, nil)
	global := registry.NewGlobal(nil)
	return Pipeline{Global: global, Store: store}, global
}

func TestPipelineScanOrdersByTimeAcrossSeries(t *testing.T) {
	p, global := newTestPipeline(t)
	idA := global.ResolveOrAllocate("cpu host=a")
	idB := global.ResolveOrAllocate("cpu host=b")

	require.False(t, p.Store.CommitWrite(idA, 10, 1))
	require.False(t, p.Store.CommitWrite(idA, 30, 3))
	require.False(t, p.Store.CommitWrite(idB, 20, 2))

	req, err := ParseRequest([]byte(`{"select": ["cpu"], "range": {"from": 0, "to": 100}}`))
	require.NoError(t, err)

	cursor := &CollectingCursor{}
	require.NoError(t, p.Execute(req, cursor))
	require.Nil(t, cursor.Err)
	require.Len(t, cursor.Samples, 3)
	require.Equal(t, uint64(10), cursor.Samples[0].Timestamp)
	require.Equal(t, uint64(20), cursor.Samples[1].Timestamp)
	require.Equal(t, uint64(30), cursor.Samples[2].Timestamp)
}

func TestPipelineScanFiltersByWhere(t *testing.T) {
	p, global := newTestPipeline(t)
	idA := global.ResolveOrAllocate("cpu host=a")
	idB := global.ResolveOrAllocate("cpu host=b")
	require.False(t, p.Store.CommitWrite(idA, 10, 1))
	require.False(t, p.Store.CommitWrite(idB, 10, 2))

	req, err := ParseRequest([]byte(`{"select": ["cpu"], "where": "host = \"a\"", "range": {"from": 0, "to": 100}}`))
	require.NoError(t, err)

	cursor := &CollectingCursor{}
	require.NoError(t, p.Execute(req, cursor))
	require.Len(t, cursor.Samples, 1)
	require.Equal(t, idA, cursor.Samples[0].ParamID)
}

func TestPipelineMetadataMode(t *testing.T) {
	p, global := newTestPipeline(t)
	global.ResolveOrAllocate("cpu host=a")
	global.ResolveOrAllocate("mem host=a")

	req, err := ParseRequest([]byte(`{"select": ["cpu"], "mode": "metadata"}`))
	require.NoError(t, err)

	cursor := &CollectingCursor{}
	require.NoError(t, p.Execute(req, cursor))
	require.Len(t, cursor.Samples, 1)
}

func TestPipelineAggregateRequiresGroupBy(t *testing.T) {
	p, global := newTestPipeline(t)
	global.ResolveOrAllocate("cpu host=a")

	req, err := ParseRequest([]byte(`{"select": ["cpu"], "operators": [{"aggregate": "sum"}]}`))
	require.NoError(t, err)

	cursor := &CollectingCursor{}
	err = p.Execute(req, cursor)
	require.Error(t, err)
	require.NotNil(t, cursor.Err)
}

func TestPipelineGroupByTimeAndSum(t *testing.T) {
	p, global := newTestPipeline(t)
	id := global.ResolveOrAllocate("cpu host=a")
	require.False(t, p.Store.CommitWrite(id, 0, 1))
	require.False(t, p.Store.CommitWrite(id, 5, 2))
	require.False(t, p.Store.CommitWrite(id, 10, 3))

	req, err := ParseRequest([]byte(`{
		"select": ["cpu"],
		"range": {"from": 0, "to": 20},
		"group-by": {"time": 10},
		"operators": [{"aggregate": "sum"}]
	}`))
	require.NoError(t, err)

	cursor := &CollectingCursor{}
	require.NoError(t, p.Execute(req, cursor))
	require.Nil(t, cursor.Err)

	var dataValues []float64
	for _, s := range cursor.Samples {
		if !s.IsControl() {
			dataValues = append(dataValues, s.Payload.Value)
		}
	}
	require.Contains(t, dataValues, float64(3)) // bucket [0,10): samples at 0 and 5
}

func TestPipelineGroupByTagRewritesParamID(t *testing.T) {
	p, global := newTestPipeline(t)
	idEU := global.ResolveOrAllocate("cpu host=a region=eu")
	idUS := global.ResolveOrAllocate("cpu host=b region=us")
	require.False(t, p.Store.CommitWrite(idEU, 1, 10))
	require.False(t, p.Store.CommitWrite(idUS, 2, 20))

	req, err := ParseRequest([]byte(`{
		"select": ["cpu"],
		"range": {"from": 0, "to": 100},
		"group-by": {"tag": "region"}
	}`))
	require.NoError(t, err)

	cursor := &CollectingCursor{}
	require.NoError(t, p.Execute(req, cursor))
	require.Len(t, cursor.Samples, 2)
	for _, s := range cursor.Samples {
		require.GreaterOrEqual(t, s.ParamID, transientIDBase)
	}
	require.NotEqual(t, cursor.Samples[0].ParamID, cursor.Samples[1].ParamID)
}

func TestPipelineValueFilterDropsBelowThreshold(t *testing.T) {
	p, global := newTestPipeline(t)
	id := global.ResolveOrAllocate("cpu host=a")
	require.False(t, p.Store.CommitWrite(id, 1, 5))
	require.False(t, p.Store.CommitWrite(id, 2, 15))

	req, err := ParseRequest([]byte(`{
		"select": ["cpu"],
		"range": {"from": 0, "to": 100},
		"operators": [{"filter": {"op": ">", "value": 10}}]
	}`))
	require.NoError(t, err)

	cursor := &CollectingCursor{}
	require.NoError(t, p.Execute(req, cursor))
	require.Len(t, cursor.Samples, 1)
	require.Equal(t, float64(15), cursor.Samples[0].Payload.Value)
}

func TestPipelineBadWhereSurfacesQueryParseError(t *testing.T) {
	p, global := newTestPipeline(t)
	global.ResolveOrAllocate("cpu host=a")

	req, err := ParseRequest([]byte(`{"select": ["cpu"], "where": "host = "}`))
	require.NoError(t, err)

	cursor := &CollectingCursor{}
	err = p.Execute(req, cursor)
	require.Error(t, err)
	require.NotNil(t, cursor.Err)
}
