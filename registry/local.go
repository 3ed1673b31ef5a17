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

// Local is a per-session cache of ids already observed by that session. It
// is single-threaded by construction (owned by exactly one Session) and
// never allocates new ids itself (spec.md section 3: "Local: a cache of
// ids already observed by that session, populated lazily; never allocates
// new ids").
type Local struct {
	global  *Global
	byName  map[string]uint64
	byID    map[uint64]string
	matcher []Matcher // LIFO stack of substituted matchers, see matcher.go
}

// NewLocal creates a session-local view backed by global.
func NewLocal(global *Global) *Local {
	return &Local{
		global: global,
		byName: make(map[string]uint64),
		byID:   make(map[uint64]string),
	}
}

// Resolve looks up canonical in the local cache; on miss it consults (and,
// if necessary, allocates through) the global registry, then populates the
// local cache. declared reports whether this call minted a brand-new id
// (the caller uses this to decide whether a SeriesDecl still needs to be
// logged — ResolveOrAllocate already ran onDeclare, so this is purely
// informational for callers that want to log their own side effects).
func (l *Local) Resolve(canonical string) (id uint64, declared bool) {
	if id, ok := l.byName[canonical]; ok {
		return id, false
	}
	if id, ok := l.global.IDOf(canonical); ok {
		l.byName[canonical] = id
		l.byID[id] = canonical
		return id, false
	}
	id = l.global.ResolveOrAllocate(canonical)
	l.byName[canonical] = id
	l.byID[id] = canonical
	return id, true
}

// NameOf resolves id to its canonical name, preferring the currently-installed
// matcher substitution (see matcher.go), then the local cache, then the
// global registry.
func (l *Local) NameOf(id uint64) (string, error) {
	if len(l.matcher) > 0 {
		if name, ok := l.matcher[len(l.matcher)-1].NameOf(id); ok {
			return name, nil
		}
	}
	if name, ok := l.byID[id]; ok {
		return name, nil
	}
	name, err := l.global.NameOf(id)
	if err != nil {
		return "", err
	}
	l.byID[id] = name
	l.byName[name] = id
	return name, nil
}

// Forget drops a cached name, used by tests that simulate a session
// observing an id it never resolved itself (e.g. after a matcher pop).
func (l *Local) Forget(canonical string) {
	if id, ok := l.byName[canonical]; ok {
		delete(l.byName, canonical)
		delete(l.byID, id)
	}
}
