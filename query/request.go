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
package query

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/seriesdb/seriesdb/status"
)

// rawRequest is the JSON document shape spec.md section 6 names: "fields
// select, where, group-by, order-by, range: { from, to }, and optional
// operator list".
type rawRequest struct {
	Select    []string         `json:"select"`
	Where     string           `json:"where"`
	GroupBy   *rawGroupBy      `json:"group-by"`
	OrderBy   string           `json:"order-by"`
	Range     *rawRange        `json:"range"`
	Operators []rawOperatorSet `json:"operators"`
	Mode      string           `json:"mode"` // "scan" (default) or "metadata"
}

type rawGroupBy struct {
	Time *uint64 `json:"time"` // step in the series' native timestamp unit
	Tag  string  `json:"tag"`
}

type rawRange struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

type rawOperatorSet struct {
	Aggregate  string          `json:"aggregate"`
	Derivative bool            `json:"derivative"`
	Filter     *rawValueFilter `json:"filter"`
}

// rawValueFilter is the Filter operator node spec.md section 9 names
// ("GroupByTime, GroupByTag, Filter, Aggregate"): a comparison against
// each sample's raw value, evaluated before any group-by/aggregate stage.
type rawValueFilter struct {
	Op    string  `json:"op"`
	Value float64 `json:"value"`
}

// ReshapeRequest is the parsed form spec.md section 4.5 names: "ReshapeRequest
// { select: {ids, [begin, end]}, group_by, order_by }" plus the operator
// descriptors that follow it in the chain.
type ReshapeRequest struct {
	Metrics []string
	Where   string
	Begin   uint64
	End     uint64
	Mode    Mode

	GroupByTimeStep uint64 // 0 means no group-by-time
	GroupByTag      string // "" means no group-by-tag

	Aggregate    AggregateKind
	HasAggregate bool

	FilterOp       string
	FilterValue    float64
	HasValueFilter bool

	OrderBy OrderBy
}

// Mode selects which producer builds the head of the pipeline.
type Mode int

const (
	ModeScan Mode = iota
	ModeMetadata
)

// ParseRequest decodes a query-text JSON document into a ReshapeRequest.
// Unknown tokens and malformed JSON both fail with QueryParseError, per
// spec.md section 4.5: "Unknown tokens fail with QueryParserError."
func ParseRequest(text []byte) (*ReshapeRequest, error) {
	var raw rawRequest
	dec := json.NewDecoder(bytes.NewReader(text))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, status.Wrap(status.QueryParseError, "malformed query JSON", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, status.New(status.QueryParseError, "trailing data after query JSON")
	}
	if len(raw.Select) == 0 {
		return nil, status.New(status.QueryParseError, "select must name at least one series or metric")
	}

	req := &ReshapeRequest{
		Metrics: raw.Select,
		Where:   raw.Where,
	}

	if raw.Range != nil {
		req.Begin, req.End = raw.Range.From, raw.Range.To
	}

	switch raw.Mode {
	case "", "scan":
		req.Mode = ModeScan
	case "metadata":
		req.Mode = ModeMetadata
	default:
		return nil, status.New(status.QueryParseError, "unknown mode: "+raw.Mode)
	}

	switch raw.OrderBy {
	case "", "time", "TIME":
		req.OrderBy = OrderByTime
	case "series", "SERIES":
		req.OrderBy = OrderBySeries
	default:
		return nil, status.New(status.QueryParseError, "unknown order-by: "+raw.OrderBy)
	}

	if raw.GroupBy != nil {
		if raw.GroupBy.Time != nil {
			req.GroupByTimeStep = *raw.GroupBy.Time
		}
		req.GroupByTag = raw.GroupBy.Tag
	}

	for _, op := range raw.Operators {
		switch {
		case op.Aggregate != "":
			kind, err := parseAggregateKind(op.Aggregate)
			if err != nil {
				return nil, err
			}
			req.Aggregate, req.HasAggregate = kind, true
		case op.Derivative:
			req.Aggregate, req.HasAggregate = AggregateDerivative, true
		}
		if op.Filter != nil {
			if err := validateFilterOp(op.Filter.Op); err != nil {
				return nil, err
			}
			req.FilterOp, req.FilterValue, req.HasValueFilter = op.Filter.Op, op.Filter.Value, true
		}
	}

	return req, nil
}

func validateFilterOp(op string) error {
	switch op {
	case ">", ">=", "<", "<=", "==", "!=":
		return nil
	default:
		return status.New(status.QueryParseError, "unknown filter operator: "+op)
	}
}

func parseAggregateKind(name string) (AggregateKind, error) {
	switch name {
	case "sum":
		return AggregateSum, nil
	case "mean", "avg", "average":
		return AggregateMean, nil
	case "derivative", "rate":
		return AggregateDerivative, nil
	default:
		return 0, status.New(status.QueryParseError, "unknown aggregate: "+name)
	}
}
