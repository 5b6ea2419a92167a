package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind declares how a field's raw query-string value is parsed before it is
// bound as a SQL argument. Values that fail to parse are dropped silently —
// malformed filters degrade rather than fail.
type Kind int

const (
	Text Kind = iota
	Numeric
	Bool
	Time
)

// Field declares a single exposed field of a Collection.
type Field struct {
	// Name is the field name clients use in filters, sorts, and projections.
	Name string
	// Column is the backing SQL column.
	Column string
	// Kind controls value parsing for filter arguments.
	Kind Kind
	// Internal marks bookkeeping fields excluded from the default projection.
	Internal bool
}

// Collection describes a listable table: the allow-list of fields clients may
// filter, sort, and project by, the columns scanned by keyword search, and
// the shared alias table applied to both filters and sorts. Fields outside
// the allow-list are ignored, never passed through to the store.
type Collection struct {
	Table string
	// Fields is the exposed-field allow-list, in SELECT order.
	Fields []Field
	// Aliases redirects an exposed name to another exposed name before
	// resolution. Both the filter and the sort stage consult it, so e.g.
	// "price" can target the effective (discounted) price everywhere.
	Aliases map[string]string
	// KeywordFields are the exposed names OR-matched by a keyword search.
	KeywordFields []string
	// DefaultSort applies when the client requests no valid sort key.
	DefaultSort []SortKey
}

// Scope is a caller-imposed predicate ANDed ahead of every client filter.
// It cannot be overridden or widened by query-string input.
type Scope struct {
	Column string
	Value  any
}

// Query is a fully resolved query against one collection: the shared
// predicate feeds both the count pass and the fetch pass.
type Query struct {
	c      *Collection
	spec   Spec
	scopes []Scope
}

// Build resolves a client Spec against the collection's allow-list, with any
// caller-imposed scopes applied first.
func (c *Collection) Build(spec Spec, scopes ...Scope) *Query {
	return &Query{c: c, spec: spec, scopes: scopes}
}

// field resolves an exposed name through the alias table to its declaration.
func (c *Collection) field(name string) (Field, bool) {
	if alias, ok := c.Aliases[name]; ok {
		name = alias
	}
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// CountSQL returns the count pass: the full filter+search predicate with no
// sort, projection, or pagination. The result is the authoritative
// totalMatching for pagination metadata.
func (q *Query) CountSQL() (string, []any) {
	where, args := q.buildWhere()
	return "SELECT count(*) FROM " + q.c.Table + where, args
}

// SelectSQL returns the fetch pass: the same predicate as CountSQL plus
// sort, projection, and LIMIT/OFFSET.
func (q *Query) SelectSQL() (string, []any) {
	where, args := q.buildWhere()

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(q.projection())
	b.WriteString(" FROM ")
	b.WriteString(q.c.Table)
	b.WriteString(where)
	b.WriteString(" ORDER BY ")
	b.WriteString(q.orderBy())

	args = append(args, q.spec.PageSize, q.spec.Skip())
	fmt.Fprintf(&b, " LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	return b.String(), args
}

// Pagination derives the page metadata from the count pass result. It must
// be fed the pre-pagination totalMatching, never the fetched page length.
func (q *Query) Pagination(total int64) Pagination {
	return paginate(q.spec.Page, q.spec.PageSize, total)
}

// buildWhere assembles the shared predicate: scopes first, then allow-listed
// field filters, then the keyword OR-group.
func (q *Query) buildWhere() (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	for _, s := range q.scopes {
		conds = append(conds, s.Column+" = "+arg(s.Value))
	}

	for _, f := range q.spec.Filters {
		fld, ok := q.c.field(f.Field)
		if !ok {
			continue
		}
		v, ok := parseValue(fld.Kind, f.Value)
		if !ok {
			continue
		}
		conds = append(conds, fld.Column+" "+sqlOp(f.Op)+" "+arg(v))
	}

	if q.spec.Keyword != "" && len(q.c.KeywordFields) > 0 {
		or := make([]string, 0, len(q.c.KeywordFields))
		for _, name := range q.c.KeywordFields {
			fld, ok := q.c.field(name)
			if !ok {
				continue
			}
			or = append(or, fld.Column+" ILIKE "+arg("%"+q.spec.Keyword+"%"))
		}
		if len(or) > 0 {
			conds = append(conds, "("+strings.Join(or, " OR ")+")")
		}
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// projection returns the SELECT list: the client's requested fields filtered
// through the allow-list, or every non-internal field by default. Columns are
// aliased to their exposed names so result rows carry client-facing keys; an
// explicitly requested field keeps the name the client used even when an
// alias redirected it to another column.
func (q *Query) projection() string {
	var cols []string
	appendField := func(column, name string) {
		if column == name {
			cols = append(cols, column)
			return
		}
		cols = append(cols, column+` AS "`+name+`"`)
	}

	for _, name := range q.spec.Fields {
		if f, ok := q.c.field(name); ok {
			appendField(f.Column, name)
		}
	}
	if len(cols) > 0 {
		return strings.Join(cols, ", ")
	}

	for _, f := range q.c.Fields {
		if !f.Internal {
			appendField(f.Column, f.Name)
		}
	}
	return strings.Join(cols, ", ")
}

// orderBy returns the ORDER BY list from the allow-listed sort keys, falling
// back to the collection default. The alias table applies here exactly as it
// does for filters.
func (q *Query) orderBy() string {
	keys := q.resolveSort(q.spec.Sort)
	if len(keys) == 0 {
		keys = q.resolveSort(q.c.DefaultSort)
	}
	if len(keys) == 0 {
		keys = []string{"created_at DESC"}
	}
	return strings.Join(keys, ", ")
}

func (q *Query) resolveSort(sort []SortKey) []string {
	var keys []string
	for _, k := range sort {
		fld, ok := q.c.field(k.Field)
		if !ok {
			continue
		}
		dir := " ASC"
		if k.Desc {
			dir = " DESC"
		}
		keys = append(keys, fld.Column+dir)
	}
	return keys
}

func sqlOp(op Op) string {
	switch op {
	case OpGte:
		return ">="
	case OpGt:
		return ">"
	case OpLte:
		return "<="
	case OpLt:
		return "<"
	default:
		return "="
	}
}

// parseValue converts a raw query-string value according to the field kind.
func parseValue(kind Kind, raw string) (any, bool) {
	switch kind {
	case Numeric:
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, false
		}
		return d, true
	case Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, false
		}
		return b, true
	case Time:
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, false
		}
		return t, true
	default:
		return raw, true
	}
}
