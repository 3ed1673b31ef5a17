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
// Package volume is the paged block store spec.md section 1 lists as an
// out-of-scope external collaborator ("specified only at their
// interface"). It exists here in minimal form so Storage has something
// concrete to open/allocate against; the interesting algorithmic surface
// of the engine is the facade and pipeline above it, not this package.
//
// Backend pluggability mirrors the teacher's PersistenceEngine/
// PersistenceFactory split (storage/persistence.go) and its
// BackendRegistry init()-registration pattern (storage/persistence-ceph.go).
package volume

import (
	"encoding/json"

	"github.com/seriesdb/seriesdb/status"
)

// Addr identifies one fixed-size page within one volume.
type Addr struct {
	VolumeID uint32
	PageID   uint64
}

// Backend is the storage medium a volume set is written to. One
// implementation (file) is always available; s3/ceph are domain-stack
// extras wired to the same interface, selected by the backend name recorded
// in the volume catalog when a database is opened (storage.NewDatabase
// always records "file").
type Backend interface {
	WritePage(volID uint32, pageID uint64, data []byte) error
	ReadPage(volID uint32, pageID uint64, pageSize int) ([]byte, error)
	Sync() error
	Close() error
	Remove() error
}

// Factory builds a Backend for one database from its raw JSON config, the
// same shape BackendRegistry entries take in the teacher.
type Factory func(basePath string, raw json.RawMessage) (Backend, error)

// BackendRegistry maps a configured backend name ("file", "s3", "ceph") to
// its Factory. Populated by each backend's init().
var BackendRegistry = map[string]Factory{}

// Open resolves name through BackendRegistry and constructs a Backend.
func Open(name, basePath string, raw json.RawMessage) (Backend, error) {
	f, ok := BackendRegistry[name]
	if !ok {
		return nil, status.New(status.BadInput, "unknown volume backend: "+name)
	}
	return f(basePath, raw)
}
