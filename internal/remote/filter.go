// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package remote

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Op is a predicate operator.
type Op string

const (
	OpEq Op = "eq"
	OpIn Op = "in"
)

// Predicate restricts one column.
type Predicate struct {
	Column string
	Op     Op
	Values []any
}

// OrderBy sorts results by one column.
type OrderBy struct {
	Column     string
	Descending bool
}

// Filter is an ordered conjunction of predicates plus projection, ordering
// and limit. The zero Filter matches every row. Builder methods return a
// new Filter and never modify the receiver.
type Filter struct {
	Predicates []Predicate
	// Columns is a PostgREST select expression, "*" when empty.
	Columns string
	Orders  []OrderBy
	Limit   int
}

// Where starts a Filter with an equality predicate.
func Where(column string, value any) Filter {
	return Filter{}.Eq(column, value)
}

// Eq adds column = value.
func (f Filter) Eq(column string, value any) Filter {
	return f.with(Predicate{Column: column, Op: OpEq, Values: []any{value}})
}

// In adds column IN (values). An empty list matches nothing.
func (f Filter) In(column string, values ...any) Filter {
	return f.with(Predicate{Column: column, Op: OpIn, Values: slices.Clone(values)})
}

// Select sets the projection.
func (f Filter) Select(columns string) Filter {
	f.Predicates = slices.Clone(f.Predicates)
	f.Orders = slices.Clone(f.Orders)
	f.Columns = columns
	return f
}

// Order appends a sort key.
func (f Filter) Order(column string, descending bool) Filter {
	f.Predicates = slices.Clone(f.Predicates)
	f.Orders = append(slices.Clone(f.Orders), OrderBy{Column: column, Descending: descending})
	return f
}

// WithLimit caps the number of rows returned. Zero means no limit.
func (f Filter) WithLimit(n int) Filter {
	f.Predicates = slices.Clone(f.Predicates)
	f.Orders = slices.Clone(f.Orders)
	f.Limit = n
	return f
}

func (f Filter) with(p Predicate) Filter {
	f.Predicates = append(slices.Clone(f.Predicates), p)
	f.Orders = slices.Clone(f.Orders)
	return f
}

// Empty reports whether some In predicate has no values, which matches no
// rows. Callers can skip the round trip.
func (f Filter) Empty() bool {
	for _, p := range f.Predicates {
		if p.Op == OpIn && len(p.Values) == 0 {
			return true
		}
	}
	return false
}

// Values encodes the filter as PostgREST query parameters:
// col=eq.v, col=in.(a,b), select=..., order=col.desc, limit=n.
func (f Filter) Values() url.Values {
	q := url.Values{}
	for _, p := range f.Predicates {
		switch p.Op {
		case OpEq:
			q.Add(p.Column, "eq."+formatValue(p.Values[0], false))
		case OpIn:
			parts := make([]string, len(p.Values))
			for i, v := range p.Values {
				parts[i] = formatValue(v, true)
			}
			q.Add(p.Column, "in.("+strings.Join(parts, ",")+")")
		}
	}
	if f.Columns != "" {
		q.Set("select", f.Columns)
	}
	if len(f.Orders) > 0 {
		parts := make([]string, len(f.Orders))
		for i, o := range f.Orders {
			dir := "asc"
			if o.Descending {
				dir = "desc"
			}
			parts[i] = o.Column + "." + dir
		}
		q.Set("order", strings.Join(parts, ","))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}

// formatValue renders a value for a query parameter. Inside in-lists,
// values containing reserved characters are double-quoted.
func formatValue(v any, quoted bool) string {
	var s string
	switch x := v.(type) {
	case nil:
		s = "null"
	case string:
		s = x
	case time.Time:
		s = x.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		s = x.String()
	default:
		s = fmt.Sprint(x)
	}
	if quoted && strings.ContainsAny(s, `,()"\ `) {
		s = `"` + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`) + `"`
	}
	return s
}

// Match reports whether row satisfies every predicate. Values are compared
// by their string form so that numbers decoded from JSON match integer
// filter values.
func (f Filter) Match(row Row) bool {
	for _, p := range f.Predicates {
		got, ok := row[p.Column]
		if !ok {
			return false
		}
		g := formatValue(got, false)
		matched := false
		for _, want := range p.Values {
			if g == formatValue(want, false) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// String renders the filter for logs.
func (f Filter) String() string {
	return f.Values().Encode()
}
