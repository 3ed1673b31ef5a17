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

import (
	"regexp"
	"strings"

	"github.com/seriesdb/seriesdb/seriesname"
)

// MetricStartsWith matches a NamedID whose metric segment (the token
// before the first space) begins with prefix.
func MetricStartsWith(prefix string) Predicate {
	return func(n NamedID) bool {
		metric, _, _ := strings.Cut(n.Name, " ")
		return strings.HasPrefix(metric, prefix)
	}
}

// TagEquals matches a NamedID carrying key=value among its tags.
func TagEquals(key, value string) Predicate {
	needle := " " + key + "=" + value
	return func(n NamedID) bool {
		return strings.Contains(n.Name, needle) &&
			(strings.HasSuffix(n.Name, needle) || strings.Contains(n.Name, needle+" "))
	}
}

// TagRegex matches a NamedID carrying a tag named key whose value matches
// pattern. Returns the regexp compile error unchanged if pattern does not
// compile; query's where parser wraps it as QueryParseError.
func TagRegex(key, pattern string) (Predicate, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return func(n NamedID) bool {
		for _, f := range strings.Fields(n.Name)[1:] {
			k, v, ok := strings.Cut(f, "=")
			if ok && k == key && re.MatchString(v) {
				return true
			}
		}
		return false
	}, nil
}

// MetricRegex matches a NamedID whose metric segment matches pattern.
// Returns an error if pattern does not compile, same contract as TagRegex.
func MetricRegex(pattern string) (Predicate, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return func(n NamedID) bool {
		metric, _, _ := strings.Cut(n.Name, " ")
		return re.MatchString(metric)
	}, nil
}

// And combines predicates with logical AND, short-circuiting left to right.
func And(preds ...Predicate) Predicate {
	return func(n NamedID) bool {
		for _, p := range preds {
			if !p(n) {
				return false
			}
		}
		return true
	}
}

// Or combines predicates with logical OR, short-circuiting left to right;
// the extensibility hook spec.md section 9 open question (b) asks for,
// exercised by query's nested where grammar (`a AND (b OR c)`).
func Or(preds ...Predicate) Predicate {
	return func(n NamedID) bool {
		for _, p := range preds {
			if p(n) {
				return true
			}
		}
		return false
	}
}

// Not negates pred.
func Not(pred Predicate) Predicate {
	return func(n NamedID) bool { return !pred(n) }
}

// parsedTags exposes the tag set of a name for predicates that need more
// than substring matching, by re-parsing the canonical name with
// seriesname.Parse; a name that fails to parse yields nil.
func parsedTags(n NamedID) []seriesname.Tag {
	s, err := seriesname.Parse([]byte(n.Name))
	if err != nil {
		return nil
	}
	return s.Tags
}
