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
	"sync/atomic"

	"github.com/seriesdb/seriesdb/inputlog"
	"github.com/seriesdb/seriesdb/query"
	"github.com/seriesdb/seriesdb/registry"
	"github.com/seriesdb/seriesdb/seriesname"
	"github.com/seriesdb/seriesdb/status"
)

// Session is a single writer/reader handle bound to one Storage, matching
// spec.md section 4.4: "a reference to Storage; a local NameRegistry view;
// a reference to its InputLog shard (established lazily on first write and
// pinned thread-locally); a column-store session handle."
//
// The column-store session handle spec.md mentions is just the Storage's
// shared *column.Store here: column.Store.CommitWrite is already safe for
// concurrent per-series callers (spec.md section 5 "Column store per-series
// tail: owned by at most one writer session at a time ... resolved by
// per-series lock at the column store layer"), so Session needs no
// additional state beyond the registry cache and its shard pin.
type Session struct {
	storage *Storage
	local   *registry.Local

	shard *inputlog.Shard
	closed atomic.Bool
}

// WriteRequest is one sample to append, named or already resolved to a
// param_id (spec.md section 4.4 write pipeline step 1).
type WriteRequest struct {
	ParamID    uint64
	HasParamID bool
	Name       []byte // raw series name, used when HasParamID is false

	Timestamp uint64
	Value     float64
}

func (sess *Session) checkOpen() error {
	if sess.closed.Load() {
		return status.New(status.Closed, "session closed")
	}
	if sess.storage.closing.Load() {
		return status.New(status.Closed, "storage closed")
	}
	return nil
}

func (sess *Session) shardHandle() *inputlog.Shard {
	if sess.shard == nil {
		sess.shard = sess.storage.log.AssignShard(sess)
	}
	return sess.shard
}

// InitSeriesID resolves a raw series name to its param_id, allocating and
// declaring one if this is the first time any session has ever seen it
// (spec.md section 6 "init_series_id(name_bytes) -> id"). The SeriesDecl
// is logged to this session's own shard, not via registry.Global's
// onDeclare hook, precisely because registry.Local.Resolve already tells
// the caller whether it minted a new id ("purely informational for
// callers that want to log their own side effects", per local.go) — doing
// it here lets a failed append (Overflow) surface to the caller instead of
// being silently swallowed inside a callback with no error return.
func (sess *Session) InitSeriesID(rawName []byte) (uint64, error) {
	if err := sess.checkOpen(); err != nil {
		return 0, err
	}
	series, err := seriesname.Parse(rawName)
	if err != nil {
		return 0, err
	}
	canonical := series.String()
	id, declared := sess.local.Resolve(canonical)
	if declared && sess.storage.log != nil {
		if err := sess.shardHandle().Append(inputlog.SeriesDecl{ID: id, Name: canonical}); err != nil {
			return id, err
		}
	}
	return id, nil
}

// GetSeriesIDs expands a (possibly joined "a:b:c tag=v") raw name into its
// already-declared ids, in order, matching spec.md section 6
// "get_series_ids(joined_name, out_ids[])". Every sub-name must already be
// known; GetSeriesIDs never allocates.
func (sess *Session) GetSeriesIDs(joinedRaw []byte) ([]uint64, error) {
	if err := sess.checkOpen(); err != nil {
		return nil, err
	}
	parts, err := seriesname.ParseJoined(joinedRaw)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, len(parts))
	for i, part := range parts {
		canonical := part.String()
		id, ok := sess.storage.global.IDOf(canonical)
		if !ok {
			return nil, status.New(status.NotFound, "series not yet declared: "+canonical)
		}
		sess.local.Resolve(canonical)
		ids[i] = id
	}
	return ids, nil
}

// GetSeriesName resolves id back to its canonical name (spec.md section 6
// "get_series_name(id) -> bytes").
func (sess *Session) GetSeriesName(id uint64) ([]byte, error) {
	if err := sess.checkOpen(); err != nil {
		return nil, err
	}
	name, err := sess.local.NameOf(id)
	if err != nil {
		return nil, err
	}
	return []byte(name), nil
}

// Write runs the pipeline spec.md section 4.4 names: resolve the id if
// necessary, append the Write record to the bound log shard (Overflow on
// backpressure), then commit it to the column store. Rescue-point
// forwarding happens automatically through the onRescue callback wired at
// Storage construction, rather than here, since a tail rotation can also
// be triggered by the sync worker outside any session's call stack.
func (sess *Session) Write(req WriteRequest) error {
	if err := sess.checkOpen(); err != nil {
		return err
	}
	if sess.storage.degraded.Load() {
		return status.New(status.IoError, "storage is in a degraded state")
	}

	id := req.ParamID
	if !req.HasParamID {
		var err error
		id, err = sess.InitSeriesID(req.Name)
		if err != nil {
			return err
		}
	}

	if sess.storage.log != nil {
		if err := sess.shardHandle().Append(inputlog.Write{ID: id, Timestamp: req.Timestamp, Value: req.Value}); err != nil {
			return err
		}
	}
	if sess.storage.colStore != nil {
		sess.storage.colStore.CommitWrite(id, req.Timestamp, req.Value)
	}
	return nil
}

// Query builds a pipeline for text (spec.md section 4.5) and drives it to
// completion or to the first false from cursor, per spec.md section 4.4
// "query/suggest/search are read-only; they build a pipeline and drive it
// to completion or to the first false from the downstream cursor."
func (sess *Session) Query(cursor query.Cursor, text []byte) error {
	if err := sess.checkOpen(); err != nil {
		cursor.SetError(asStatusError(err))
		return err
	}
	req, err := query.ParseRequest(text)
	if err != nil {
		cursor.SetError(asStatusError(err))
		return err
	}
	pipeline := query.Pipeline{Global: sess.storage.global, Store: sess.storage.colStore, Local: sess.local}
	return pipeline.Execute(req, cursor)
}

// Suggest answers a typeahead prefix query directly against the
// NameRegistry's ordered index (spec.md section 4.1 suggest(prefix,
// limit)), resolving open question (b)'s "minimum set" for suggest in
// favor of the registry's own prefix search rather than the full where
// grammar search uses — a prefix lookup has no boolean structure to parse.
func (sess *Session) Suggest(cursor query.Cursor, prefix string, limit int) error {
	if err := sess.checkOpen(); err != nil {
		cursor.SetError(asStatusError(err))
		return err
	}
	for _, nid := range sess.storage.global.Suggest(prefix, limit) {
		if !cursor.Put(metadataSample(nid)) {
			return nil
		}
	}
	cursor.Complete()
	return nil
}

// Search evaluates a where-clause predicate (the same boolean grammar
// query's "where" field uses, per spec.md section 9 open question (b))
// against the whole registry and streams one metadata sample per match.
func (sess *Session) Search(cursor query.Cursor, text string) error {
	if err := sess.checkOpen(); err != nil {
		cursor.SetError(asStatusError(err))
		return err
	}
	pred, err := query.ParseWhere(text)
	if err != nil {
		cursor.SetError(asStatusError(err))
		return err
	}
	for _, nid := range sess.storage.global.Search(pred) {
		if !cursor.Put(metadataSample(nid)) {
			return nil
		}
	}
	cursor.Complete()
	return nil
}

func metadataSample(nid registry.NamedID) query.Sample {
	s := query.Sample{ParamID: nid.ID}
	s.Payload.Size = uint16(len(nid.Name))
	return s
}

func asStatusError(err error) *status.Error {
	if se, ok := err.(*status.Error); ok {
		return se
	}
	return status.Wrap(status.Internal, "unexpected error", err)
}

// Close releases the session's shard pin and drops it from Storage's close
// barrier. Idempotent.
func (sess *Session) Close() {
	if !sess.closed.CompareAndSwap(false, true) {
		return
	}
	if sess.shard != nil && sess.storage.log != nil {
		sess.storage.log.ReleaseSession(sess)
	}
	sess.storage.sessionWG.Done()
}
