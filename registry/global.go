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
// Package registry implements the NameRegistry (spec.md section 4.1): a
// process-wide, read-mostly string<->param_id dictionary with a
// single-writer mutex, plus the per-session local cache and transient
// matcher substitution used during query execution.
//
// The global table follows the teacher's two-structure trick
// (storage/transaction.go's NonLockingReadMap-backed bitmap, storage/index.go's
// btree): id->name lookups go through a NonLockingReadMap (lock-free reads,
// serialized writes, grounded on launix-de/NonLockingReadMap), while
// name->id lookups go through a copy-on-write google/btree.BTreeG so
// suggest(prefix) can do an ordered range scan without blocking writers.
package registry

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/btree"
	NonLockingReadMap "github.com/launix-de/NonLockingReadMap"

	"github.com/seriesdb/seriesdb/status"
)

// idEntry is the NonLockingReadMap element for the id->name direction.
type idEntry struct {
	ID   uint64
	Name string
}

func (e *idEntry) GetKey() uint64    { return e.ID }
func (e *idEntry) ComputeSize() uint { return 16 + uint(len(e.Name)) }

// nameEntry is the btree element for the name->id direction.
type nameEntry struct {
	Name string
	ID   uint64
}

func nameEntryLess(a, b nameEntry) bool { return a.Name < b.Name }

// DeclareFunc is called by resolve/publish whenever a brand-new id is
// minted, so Global can be wired to an input-log SeriesDecl append without
// the registry package importing inputlog (which would create an import
// cycle: inputlog replays SeriesDecl back into the registry on recovery).
type DeclareFunc func(id uint64, canonical string)

// Global is the authoritative, process-wide NameRegistry view. It lives on
// Storage (spec.md section 3 "NameRegistry ... Global: authoritative;
// lives in Storage").
type Global struct {
	mu       sync.Mutex // serializes id allocation + dictionary insert
	byID     NonLockingReadMap.NonLockingReadMap[idEntry, uint64]
	byName   atomic.Pointer[btree.BTreeG[nameEntry]] // copy-on-write snapshot
	nextID   uint64
	onDeclare DeclareFunc
}

// NewGlobal constructs an empty global registry. onDeclare may be nil; when
// set, it is invoked (while holding mu) every time a new id is allocated,
// so a caller can append the matching SeriesDecl to an input-log shard
// before any reader can observe the new mapping. Storage passes nil and
// logs SeriesDecl records from Session instead.
func NewGlobal(onDeclare DeclareFunc) *Global {
	g := &Global{
		byID:      NonLockingReadMap.New[idEntry, uint64](),
		onDeclare: onDeclare,
	}
	g.byName.Store(btree.NewG(32, nameEntryLess))
	return g
}

// LoadSnapshot seeds the registry from a metadata-store dictionary dump
// (spec.md section 4.3 open sequence step 1) or from input-log recovery.
// It bypasses onDeclare: the records it is fed are already durable.
func (g *Global) LoadSnapshot(entries map[uint64]string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t := g.byName.Load().Clone()
	for id, name := range entries {
		g.byID.Set(&idEntry{ID: id, Name: name})
		t.ReplaceOrInsert(nameEntry{Name: name, ID: id})
		if id >= g.nextID {
			g.nextID = id + 1
		}
	}
	g.byName.Store(t)
}

// IDOf looks up an already-published canonical name. Lock-free.
func (g *Global) IDOf(canonical string) (uint64, bool) {
	t := g.byName.Load()
	var found uint64
	var ok bool
	t.AscendGreaterOrEqual(nameEntry{Name: canonical}, func(item nameEntry) bool {
		if item.Name == canonical {
			found, ok = item.ID, true
		}
		return false // only need the first hit
	})
	return found, ok
}

// NameOf returns the canonical string for id, or NotFound. Lock-free.
func (g *Global) NameOf(id uint64) (string, error) {
	e := g.byID.Get(id)
	if e == nil {
		return "", status.New(status.NotFound, "no such series id")
	}
	return e.Name, nil
}

// ResolveOrAllocate returns the id for canonical, allocating and publishing
// a new one if it has never been observed. Publication order matters for
// recovery: onDeclare (which appends the SeriesDecl to the input log) runs
// before the new mapping becomes visible to readers, so a crash between
// "id allocated" and "log record fsynced" can only ever be observed as "id
// never existed", never as "id exists but was never logged".
func (g *Global) ResolveOrAllocate(canonical string) uint64 {
	if id, ok := g.IDOf(canonical); ok {
		return id
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	// re-check under lock: another writer may have published it already
	if id, ok := g.IDOf(canonical); ok {
		return id
	}
	id := g.nextID
	g.nextID++
	if g.onDeclare != nil {
		g.onDeclare(id, canonical)
	}
	g.byID.Set(&idEntry{ID: id, Name: canonical})
	t := g.byName.Load().Clone()
	t.ReplaceOrInsert(nameEntry{Name: canonical, ID: id})
	g.byName.Store(t)
	return id
}

// Suggest returns up to limit (id, name) pairs whose canonical name starts
// with prefix, in ascending lexicographic order. Lock-free.
func (g *Global) Suggest(prefix string, limit int) []NamedID {
	t := g.byName.Load()
	var out []NamedID
	t.AscendGreaterOrEqual(nameEntry{Name: prefix}, func(item nameEntry) bool {
		if !strings.HasPrefix(item.Name, prefix) {
			return false
		}
		out = append(out, NamedID{ID: item.ID, Name: item.Name})
		return limit <= 0 || len(out) < limit
	})
	return out
}

// NamedID pairs a param_id with its canonical name, as returned by
// Suggest/Search.
type NamedID struct {
	ID   uint64
	Name string
}

// Predicate is the extensibility hook spec.md's open question (b) asks
// for: Search accepts any predicate over a NamedID, with four built-ins
// (MetricStartsWith, MetricRegex, TagEquals, TagRegex) and the And/Or/Not
// combinators provided in predicate.go.
type Predicate func(NamedID) bool

// Search scans the whole dictionary applying pred. It is O(N) by design:
// arbitrary predicates cannot in general use the prefix index.
func (g *Global) Search(pred Predicate) []NamedID {
	t := g.byName.Load()
	var out []NamedID
	t.Ascend(func(item nameEntry) bool {
		nid := NamedID{ID: item.ID, Name: item.Name}
		if pred(nid) {
			out = append(out, nid)
		}
		return true
	})
	return out
}

// Len reports the number of interned series. Used by stats reporting.
func (g *Global) Len() int {
	return g.byName.Load().Len()
}
