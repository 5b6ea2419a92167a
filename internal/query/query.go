// Package query implements the generic list-query pipeline: it parses an
// untrusted client query (filters, keyword search, sort, projection,
// pagination) into a predicate that is executed twice against the store —
// once to count the full matching population, once to fetch the requested
// page.
package query

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Defaults applied when the client omits or mangles pagination inputs.
const (
	DefaultPage     = 1
	DefaultPageSize = 50
)

// Op enumerates the supported filter operators.
type Op string

const (
	OpEq  Op = "eq"
	OpGte Op = "gte"
	OpGt  Op = "gt"
	OpLte Op = "lte"
	OpLt  Op = "lt"
)

// Filter is a single field predicate taken from the query string.
type Filter struct {
	Field string
	Op    Op
	Value string
}

// SortKey is one component of the requested sort order.
type SortKey struct {
	Field string
	Desc  bool
}

// Spec is the client-supplied query specification. It is untrusted: every
// consumer must resolve its fields against a Collection's allow-list before
// touching the store.
type Spec struct {
	Filters  []Filter
	Keyword  string
	Sort     []SortKey
	Fields   []string
	Page     int
	PageSize int
}

// reserved query-string keys that are never treated as field filters.
var reserved = map[string]bool{
	"page":     true,
	"sort":     true,
	"limit":    true,
	"pageSize": true,
	"fields":   true,
	"keyword":  true,
}

// ParseSpec extracts a Spec from raw query parameters. Parsing is permissive:
// malformed page/limit values degrade to defaults, and everything else is
// carried through verbatim for the Collection allow-list to vet.
//
// Any key outside the reserved set is a field filter. A key of the form
// field[gte|gt|lte|lt] becomes a range bound; a bare key is an equality test.
func ParseSpec(values url.Values) Spec {
	spec := Spec{
		Keyword:  values.Get("keyword"),
		Page:     positiveIntOr(values.Get("page"), DefaultPage),
		PageSize: positiveIntOr(limitParam(values), DefaultPageSize),
	}

	if sort := values.Get("sort"); sort != "" {
		spec.Sort = parseSortKeys(sort)
	}
	if fields := values.Get("fields"); fields != "" {
		spec.Fields = splitClean(fields)
	}

	for key, vals := range values {
		if reserved[key] || len(vals) == 0 {
			continue
		}
		field, op := splitFilterKey(key)
		spec.Filters = append(spec.Filters, Filter{Field: field, Op: op, Value: vals[0]})
	}
	// url.Values is a map; order the filters so the built SQL is stable.
	sort.Slice(spec.Filters, func(i, j int) bool {
		a, b := spec.Filters[i], spec.Filters[j]
		if a.Field != b.Field {
			return a.Field < b.Field
		}
		return a.Op < b.Op
	})

	return spec
}

// Skip returns the offset implied by the page and page size.
func (s Spec) Skip() int {
	return (s.Page - 1) * s.PageSize
}

// limitParam reads the page size, accepting both the canonical "limit" key
// and the "pageSize" synonym.
func limitParam(values url.Values) string {
	if v := values.Get("limit"); v != "" {
		return v
	}
	return values.Get("pageSize")
}

// positiveIntOr parses raw as a positive integer, falling back to def for
// anything non-numeric, zero, or negative. Pagination inputs must never
// coerce to zero.
func positiveIntOr(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// parseSortKeys parses a comma-separated sort list; a leading '-' marks the
// key as descending.
func parseSortKeys(raw string) []SortKey {
	parts := splitClean(raw)
	keys := make([]SortKey, 0, len(parts))
	for _, p := range parts {
		if strings.HasPrefix(p, "-") {
			keys = append(keys, SortKey{Field: p[1:], Desc: true})
			continue
		}
		keys = append(keys, SortKey{Field: p})
	}
	return keys
}

// splitFilterKey splits "price[gte]" into ("price", OpGte). Keys without a
// recognized operator suffix are equality filters.
func splitFilterKey(key string) (string, Op) {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return key, OpEq
	}
	field, suffix := key[:open], key[open+1:len(key)-1]
	switch Op(suffix) {
	case OpGte, OpGt, OpLte, OpLt:
		return field, Op(suffix)
	}
	return key, OpEq
}

func splitClean(raw string) []string {
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
