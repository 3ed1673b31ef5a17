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
// Package seriesname implements the "series parser" collaborator spec.md
// marks out of scope at the interface level only: tokenizing a raw series
// name into a metric plus a tag set, producing the canonical string form,
// and expanding the joined "a:b:c tag=v" shorthand into its cross product.
package seriesname

import (
	"sort"
	"strings"

	"github.com/seriesdb/seriesdb/status"
)

// Tag is one key=value pair of a series identity.
type Tag struct {
	Key   string
	Value string
}

// Series is a parsed (metric, tag-set) identity, not yet interned.
type Series struct {
	Metric string
	Tags   []Tag // kept sorted by Key after Canonicalize
}

// Canonicalize sorts tags lexicographically by key, matching spec section 3:
// "metric tag1=v1 tag2=v2, tags sorted lexicographically".
func (s *Series) Canonicalize() {
	sort.Slice(s.Tags, func(i, j int) bool { return s.Tags[i].Key < s.Tags[j].Key })
}

// String renders the canonical textual form.
func (s Series) String() string {
	var b strings.Builder
	b.WriteString(s.Metric)
	for _, t := range s.Tags {
		b.WriteByte(' ')
		b.WriteString(t.Key)
		b.WriteByte('=')
		b.WriteString(t.Value)
	}
	return b.String()
}

// Parse tokenizes a single (non-joined) raw name into metric+tags and
// returns them as a Series. raw must not contain ':' in the metric
// position; use ParseJoined for that.
func Parse(raw []byte) (Series, error) {
	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return Series{}, status.New(status.BadInput, "empty series name")
	}
	s := Series{Metric: fields[0]}
	if strings.Contains(s.Metric, ":") {
		return Series{}, status.New(status.BadInput, "joined metric not allowed here: "+s.Metric)
	}
	seen := make(map[string]struct{}, len(fields)-1)
	for _, f := range fields[1:] {
		kv := strings.SplitN(f, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return Series{}, status.New(status.BadInput, "malformed tag: "+f)
		}
		if _, dup := seen[kv[0]]; dup {
			return Series{}, status.New(status.BadInput, "duplicate tag: "+kv[0])
		}
		seen[kv[0]] = struct{}{}
		s.Tags = append(s.Tags, Tag{Key: kv[0], Value: kv[1]})
	}
	s.Canonicalize()
	return s, nil
}

// ParseJoined expands "a:b:c tag=v" into {a tag=v, b tag=v, c tag=v}, per
// spec.md section 4.1 "Joined form". It fails with BadInput if any
// sub-name is itself tagged (a sub-name containing '=').
func ParseJoined(raw []byte) ([]Series, error) {
	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return nil, status.New(status.BadInput, "empty series name")
	}
	metrics := strings.Split(fields[0], ":")
	for _, m := range metrics {
		if m == "" {
			return nil, status.New(status.BadInput, "empty metric segment in joined name")
		}
		if strings.Contains(m, "=") {
			return nil, status.New(status.BadInput, "sub-name parses as tagged: "+m)
		}
	}
	var tags []Tag
	seen := make(map[string]struct{}, len(fields)-1)
	for _, f := range fields[1:] {
		kv := strings.SplitN(f, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return nil, status.New(status.BadInput, "malformed tag: "+f)
		}
		if _, dup := seen[kv[0]]; dup {
			return nil, status.New(status.BadInput, "duplicate tag: "+kv[0])
		}
		seen[kv[0]] = struct{}{}
		tags = append(tags, Tag{Key: kv[0], Value: kv[1]})
	}
	out := make([]Series, len(metrics))
	for i, m := range metrics {
		s := Series{Metric: m, Tags: append([]Tag(nil), tags...)}
		s.Canonicalize()
		out[i] = s
	}
	return out, nil
}

// IsJoined reports whether raw uses the "a:b:c ..." joined shorthand.
func IsJoined(raw []byte) bool {
	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return false
	}
	return strings.Contains(fields[0], ":")
}
