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
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/seriesdb/seriesdb/inputlog"
	"github.com/seriesdb/seriesdb/metastore"
	"github.com/seriesdb/seriesdb/status"
)

// GenerateReport writes a point-in-time JSON summary of the database at
// path to out, matching spec.md section 6's "generate_report(path, out)".
// It is modeled on the teacher's db.ShowTables()/ChangeSettings()
// introspection shape (storage/database.go, storage/settings.go): a flat
// tree of the facts an operator would want without opening the database
// for writes.
func GenerateReport(path string, out io.Writer) error {
	meta, err := metastore.Open(filepath.Join(path, metastoreDefaultName))
	if err != nil {
		return err
	}
	report := map[string]any{
		"series_count": len(meta.LoadSeries()),
		"collisions":   meta.Collisions(),
		"volumes":      meta.VolumeCatalog(),
		"params":       meta.EngineParameters(),
	}
	return writeJSON(out, report)
}

// GenerateRecoveryReport replays path's input log against its
// metastore-known series and writes the resulting inputlog.Report to out,
// matching spec.md section 6's "generate_recovery_report(path, out)". This
// performs the same replay (and torn-tail truncation) a real open would;
// there is no column store standing in for a dry-run target, so
// CommitWrite here is a no-op counter rather than a real commit.
func GenerateRecoveryReport(path string, out io.Writer) error {
	meta, err := metastore.Open(filepath.Join(path, metastoreDefaultName))
	if err != nil {
		return err
	}
	params := meta.EngineParameters()
	if params.NumShards == 0 {
		params.NumShards = defaultNumShards
	}
	if params.BufferThreshold == 0 {
		params.BufferThreshold = inputlog.DefaultBufferThreshold
	}

	known := make(map[uint64]struct{})
	for _, e := range meta.LoadSeries() {
		known[e.ID] = struct{}{}
	}

	ilog, err := inputlog.Open(filepath.Join(path, inputLogDefaultDirName), params.NumShards, params.BufferThreshold)
	if err != nil {
		return err
	}
	defer ilog.Close()

	report, err := ilog.Recover(inputlog.RecoveryCallbacks{
		DeclareSeries: func(id uint64, _ string) { known[id] = struct{}{} },
		KnownSeries:   func(id uint64) bool { _, ok := known[id]; return ok },
		CommitWrite:   func(uint64, uint64, float64) bool { return false },
	})
	if err != nil {
		return err
	}
	return writeJSON(out, report)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return status.Wrap(status.Internal, "encode report", err)
	}
	return nil
}

// RemoveStorage deletes every on-disk artifact of the database named name,
// matching spec.md section 6's "remove_storage(name, wal_path, force)".
// wal_path overrides the input log location when it was not kept under
// name (e.g. an externally mounted WAL volume); it defaults to
// name/inputlog. With force set, removal proceeds best-effort past
// individual failures instead of stopping at the first one, mirroring the
// teacher's DropDatabase's unconditional delete (storage/database.go) but
// preserving the first error for a non-force caller to inspect.
func RemoveStorage(name, walPath string, force bool) error {
	var firstErr error
	attempt := func(err error) bool {
		if err == nil {
			return true
		}
		if firstErr == nil {
			firstErr = err
		}
		return force
	}

	meta, err := metastore.Open(filepath.Join(name, metastoreDefaultName))
	if err == nil {
		if !attempt(meta.Remove()) {
			return firstErr
		}
	} else if !attempt(err) {
		return firstErr
	}

	if walPath == "" {
		walPath = filepath.Join(name, inputLogDefaultDirName)
	}
	if !attempt(removeAllIfExists(walPath)) {
		return firstErr
	}
	if !attempt(removeAllIfExists(filepath.Join(name, volumesDefaultDirName))) {
		return firstErr
	}
	if !attempt(removeAllIfExists(name)) {
		return firstErr
	}
	return firstErr
}

func removeAllIfExists(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return status.Wrap(status.IoError, "remove "+path, err)
	}
	return nil
}
