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

// Matcher resolves a transient id (e.g. one minted by group-by-tag) to a
// display name. It is the interface query.GroupByTag installs while a
// query runs (spec.md section 4.1 "Matcher substitution").
type Matcher interface {
	NameOf(id uint64) (name string, ok bool)
}

// MatcherFunc adapts a plain function to Matcher.
type MatcherFunc func(id uint64) (string, bool)

func (f MatcherFunc) NameOf(id uint64) (string, bool) { return f(id) }

// Scope is the token returned by Local.SetMatcher; releasing it (via
// Release, typically deferred) pops exactly the matcher it pushed. Nested
// Set/Release pairs are LIFO, as required by spec.md section 4.1: "This
// substitution is scoped: set/clear must be paired; behavior under nesting
// is defined as LIFO."
type Scope struct {
	l     *Local
	depth int // stack length expected at Release time
}

// SetMatcher pushes m onto the matcher stack and returns a Scope whose
// Release restores the previous matcher (or clears it, if this was the
// only one installed).
func (l *Local) SetMatcher(m Matcher) Scope {
	l.matcher = append(l.matcher, m)
	return Scope{l: l, depth: len(l.matcher)}
}

// Release pops the matcher this Scope installed. Calling Release more than
// once, or out of LIFO order relative to a still-open nested Scope, is a
// programmer error; Release is a no-op if the stack has already unwound
// past this scope's depth (e.g. because a caller released an outer scope
// first by mistake) rather than corrupting an unrelated scope's matcher.
func (s Scope) Release() {
	if s.l == nil || len(s.l.matcher) < s.depth || len(s.l.matcher) == 0 {
		return
	}
	s.l.matcher = s.l.matcher[:s.depth-1]
}
