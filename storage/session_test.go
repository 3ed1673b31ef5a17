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
package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seriesdb/seriesdb/query"
	"github.com/seriesdb/seriesdb/status"
)

func newTestSession(t *testing.T) (*Storage, *Session) {
	t.Helper()
	st, err := OpenEmpty()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	sess, err := st.CreateWriteSession()
	require.NoError(t, err)
	t.Cleanup(sess.Close)
	return st, sess
}

func TestInitSeriesIDIsIdempotent(t *testing.T) {
	_, sess := newTestSession(t)
	id1, err := sess.InitSeriesID([]byte("cpu host=a"))
	require.NoError(t, err)
	id2, err := sess.InitSeriesID([]byte("cpu host=a"))
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

func TestNameOfInitSeriesIDRoundTrip(t *testing.T) {
	_, sess := newTestSession(t)
	id, err := sess.InitSeriesID([]byte("cpu host=a region=eu"))
	require.NoError(t, err)
	name, err := sess.GetSeriesName(id)
	require.NoError(t, err)
	require.Equal(t, "cpu host=a region=eu", string(name))
}

func TestGetSeriesIDsExpandsJoinedName(t *testing.T) {
	_, sess := newTestSession(t)
	_, err := sess.InitSeriesID([]byte("cpu host=a"))
	require.NoError(t, err)
	_, err = sess.InitSeriesID([]byte("mem host=a"))
	require.NoError(t, err)

	ids, err := sess.GetSeriesIDs([]byte("cpu:mem host=a"))
	require.NoError(t, err)
	require.Len(t, ids, 2)

	cpuName, err := sess.GetSeriesName(ids[0])
	require.NoError(t, err)
	require.Equal(t, "cpu host=a", string(cpuName))
	memName, err := sess.GetSeriesName(ids[1])
	require.NoError(t, err)
	require.Equal(t, "mem host=a", string(memName))
}

func TestGetSeriesIDsRejectsUndeclaredSubName(t *testing.T) {
	_, sess := newTestSession(t)
	_, err := sess.GetSeriesIDs([]byte("cpu:mem host=a"))
	require.Error(t, err)
	require.Equal(t, status.NotFound, status.CodeOf(err))
}

func TestWriteThenQueryRoundTrip(t *testing.T) {
	_, sess := newTestSession(t)
	require.NoError(t, sess.Write(WriteRequest{Name: []byte("cpu host=a"), Timestamp: 10, Value: 1.0}))
	require.NoError(t, sess.Write(WriteRequest{Name: []byte("cpu host=b"), Timestamp: 20, Value: 2.0}))

	cursor := &query.CollectingCursor{}
	require.NoError(t, sess.Query(cursor, []byte(`{"select": ["cpu"], "range": {"from": 0, "to": 100}}`)))
	require.Nil(t, cursor.Err)
	require.Len(t, cursor.Samples, 2)
}

func TestWriteWithExplicitParamIDSkipsResolution(t *testing.T) {
	_, sess := newTestSession(t)
	id, err := sess.InitSeriesID([]byte("cpu host=a"))
	require.NoError(t, err)

	require.NoError(t, sess.Write(WriteRequest{ParamID: id, HasParamID: true, Timestamp: 5, Value: 9.0}))

	cursor := &query.CollectingCursor{}
	require.NoError(t, sess.Query(cursor, []byte(`{"select": ["cpu"], "range": {"from": 0, "to": 100}}`)))
	require.Len(t, cursor.Samples, 1)
	require.Equal(t, 9.0, cursor.Samples[0].Payload.Value)
}

func TestSuggestReturnsPrefixMatches(t *testing.T) {
	_, sess := newTestSession(t)
	_, err := sess.InitSeriesID([]byte("cpu host=a"))
	require.NoError(t, err)
	_, err = sess.InitSeriesID([]byte("mem host=a"))
	require.NoError(t, err)

	cursor := &query.CollectingCursor{}
	require.NoError(t, sess.Suggest(cursor, "cpu", 0))
	require.Len(t, cursor.Samples, 1)
}

func TestSearchEvaluatesWhereGrammar(t *testing.T) {
	_, sess := newTestSession(t)
	_, err := sess.InitSeriesID([]byte("cpu host=a"))
	require.NoError(t, err)
	_, err = sess.InitSeriesID([]byte("cpu host=b"))
	require.NoError(t, err)

	cursor := &query.CollectingCursor{}
	require.NoError(t, sess.Search(cursor, `host = "a"`))
	require.Len(t, cursor.Samples, 1)
}

func TestSearchRejectsBadGrammarWithQueryParseError(t *testing.T) {
	_, sess := newTestSession(t)
	cursor := &query.CollectingCursor{}
	err := sess.Search(cursor, `host = `)
	require.Error(t, err)
	require.Equal(t, status.QueryParseError, status.CodeOf(err))
	require.NotNil(t, cursor.Err)
}

func TestWriteFailsOnDegradedStorage(t *testing.T) {
	_, sess := newTestSession(t)
	sess.storage.degraded.Store(true)
	err := sess.Write(WriteRequest{Name: []byte("cpu host=a"), Timestamp: 1, Value: 1})
	require.Error(t, err)
	require.Equal(t, status.IoError, status.CodeOf(err))
}
