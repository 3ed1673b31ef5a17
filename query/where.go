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

// where.go implements the "where" clause mini-language (spec.md section
// 6's query text field of the same name): a boolean expression over tag
// and metric comparisons, e.g. `metric ~ /^cpu/ AND (host = "a" OR NOT
// region != "eu")`. Unlike the seriesname package's canonical form (a fixed
// two-level split with no recursion), this grammar genuinely nests, so it
// is built with launix-de/go-packrat/v2 the way the teacher's scm package
// builds its own recursive grammars in scm/packrat.go.
package query

import (
	"fmt"
	"strconv"
	"strings"

	packrat "github.com/launix-de/go-packrat/v2"

	"github.com/seriesdb/seriesdb/registry"
	"github.com/seriesdb/seriesdb/status"
)

// lazyParser forwards to a packrat.Parser assigned after construction, the
// same indirection the teacher's UndefinedParser provides for recursive
// grammar rules (there via a deferred environment lookup, here via a
// pointer filled in once at init time).
type lazyParser struct {
	target *packrat.Parser
}

func (l *lazyParser) Match(s *packrat.Scanner) *packrat.Node {
	return (*l.target).Match(s)
}

var (
	identToken = packrat.NewRegexParser(`[A-Za-z_][A-Za-z0-9_.]*`, false, true)
	valueToken = packrat.NewRegexParser(`"(?:[^"\\]|\\.)*"|/(?:[^/\\]|\\.)*/|[^\s()]+`, false, true)
	cmpOp      = packrat.NewOrParser(
		packrat.NewAtomParser("!=", false, true),
		packrat.NewAtomParser("=", false, true),
		packrat.NewAtomParser("~", false, true),
	)

	comparisonParser = packrat.NewAndParser(identToken, cmpOp, valueToken)

	exprParser packrat.Parser
	notParser  packrat.Parser

	exprRef = &lazyParser{target: &exprParser}
	notRef  = &lazyParser{target: &notParser}

	parenGroupParser = packrat.NewAndParser(packrat.NewAtomParser("(", false, true), exprRef, packrat.NewAtomParser(")", false, true))
	atomParser       = packrat.NewOrParser(parenGroupParser, comparisonParser)
	notGroupParser   = packrat.NewAndParser(packrat.NewAtomParser("NOT", true, true), notRef)

	andKleene = packrat.NewKleeneParser(notRef, packrat.NewAtomParser("AND", true, true))
	orKleene  = packrat.NewKleeneParser(andKleene, packrat.NewAtomParser("OR", true, true))

	whereRoot = packrat.NewAndParser(orKleene, packrat.NewEndParser(true))
)

func init() {
	notParser = packrat.NewOrParser(notGroupParser, atomParser)
	exprParser = orKleene
}

// ParseWhere compiles a where-clause string into a registry.Predicate. An
// empty string matches everything.
func ParseWhere(src string) (registry.Predicate, error) {
	if strings.TrimSpace(src) == "" {
		return func(registry.NamedID) bool { return true }, nil
	}
	scanner := packrat.NewScanner(src, packrat.SkipWhitespaceAndCommentsRegex)
	node, err := packrat.Parse(whereRoot, scanner)
	if err != nil {
		return nil, status.Wrap(status.QueryParseError, "where clause parse error", err)
	}
	// whereRoot is AndParser(orKleene, $); the expression itself is child 0.
	return buildOrExpr(node.Children[0])
}

// buildOrExpr consumes an orKleene node: Children alternate
// [andExpr, "OR", andExpr, "OR", ...].
func buildOrExpr(n *packrat.Node) (registry.Predicate, error) {
	var preds []registry.Predicate
	for i := 0; i < len(n.Children); i += 2 {
		p, err := buildAndExpr(n.Children[i])
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	if len(preds) == 1 {
		return preds[0], nil
	}
	return registry.Or(preds...), nil
}

// buildAndExpr consumes an andKleene node: Children alternate
// [notExpr, "AND", notExpr, "AND", ...].
func buildAndExpr(n *packrat.Node) (registry.Predicate, error) {
	var preds []registry.Predicate
	for i := 0; i < len(n.Children); i += 2 {
		p, err := buildNotExpr(n.Children[i])
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	if len(preds) == 1 {
		return preds[0], nil
	}
	return registry.And(preds...), nil
}

// buildNotExpr consumes a notParser node: either the notGroupParser
// alternative ("NOT" notExpr) or a plain atom.
func buildNotExpr(n *packrat.Node) (registry.Predicate, error) {
	alt := n.Children[0]
	if alt.Parser == packrat.Parser(notGroupParser) {
		inner, err := buildNotExpr(alt.Children[1])
		if err != nil {
			return nil, err
		}
		return registry.Not(inner), nil
	}
	return buildAtom(alt)
}

// buildAtom consumes an atomParser node: either a parenthesized
// sub-expression or a leaf comparison.
func buildAtom(n *packrat.Node) (registry.Predicate, error) {
	alt := n.Children[0]
	if alt.Parser == packrat.Parser(parenGroupParser) {
		return buildOrExpr(alt.Children[1])
	}
	return buildComparison(alt)
}

func buildComparison(n *packrat.Node) (registry.Predicate, error) {
	ident := n.Children[0].Matched
	op := n.Children[1].Matched
	rawValue := n.Children[2].Matched
	value, isRegex, err := decodeValue(rawValue)
	if err != nil {
		return nil, err
	}

	if isRegex {
		var pred registry.Predicate
		var rerr error
		if ident == "metric" {
			pred, rerr = registry.MetricRegex(value)
		} else {
			pred, rerr = registry.TagRegex(ident, value)
		}
		if rerr != nil {
			return nil, status.Wrap(status.QueryParseError, "invalid regex in where clause", rerr)
		}
		if op == "!=" {
			return registry.Not(pred), nil
		}
		return pred, nil
	}

	var pred registry.Predicate
	if ident == "metric" {
		pred = func(n registry.NamedID) bool {
			metric, _, _ := strings.Cut(n.Name, " ")
			return metric == value
		}
	} else {
		pred = registry.TagEquals(ident, value)
	}
	if op == "!=" {
		return registry.Not(pred), nil
	}
	return pred, nil
}

// decodeValue strips quoting/regex delimiters from a raw matched value
// token, reporting whether it was a /regex/ literal.
func decodeValue(raw string) (value string, isRegex bool, err error) {
	switch {
	case len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"':
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			return "", false, fmt.Errorf("invalid quoted value %q: %w", raw, err)
		}
		return unquoted, false, nil
	case len(raw) >= 2 && raw[0] == '/' && raw[len(raw)-1] == '/':
		return raw[1 : len(raw)-1], true, nil
	default:
		return raw, false, nil
	}
}
