package store

import (
	"fmt"
	"strings"
)

// Builder constructs SELECT queries with a fluent API.
type Builder struct {
	table   string
	columns []string
	where   []whereClause
	orderBy []orderClause
	limit   int
}

type whereClause struct {
	expr string
	args []any
}

type orderClause struct {
	column string
	desc   bool
}

// NewQueryBuilder creates a query builder for table.
func NewQueryBuilder(table string) *Builder {
	return &Builder{table: table}
}

// Select specifies the columns to retrieve.
func (b *Builder) Select(columns ...string) *Builder {
	b.columns = append(b.columns, columns...)
	return b
}

// Where adds a custom condition. Conditions are combined with AND.
//
//	Where("range_start <= ? AND ? < range_end", addr, addr)
func (b *Builder) Where(expr string, args ...any) *Builder {
	b.where = append(b.where, whereClause{expr: expr, args: args})
	return b
}

// In adds an IN clause. An empty value list skips the filter.
func (b *Builder) In(column string, values ...any) *Builder {
	if len(values) == 0 {
		return b
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	return b.Where(fmt.Sprintf("%s IN (%s)", column, placeholders), values...)
}

// Covers adds the half-open range condition start <= addr < end.
func (b *Builder) Covers(start, end string, addr uint64) *Builder {
	return b.Where(fmt.Sprintf("%s <= ? AND ? < %s", start, end), addr, addr)
}

// OrderBy adds ORDER BY clauses. A "-" prefix sorts descending.
//
//	OrderBy("unit_index", "-inline_depth")
func (b *Builder) OrderBy(columns ...string) *Builder {
	for _, col := range columns {
		desc := strings.HasPrefix(col, "-")
		b.orderBy = append(b.orderBy, orderClause{column: strings.TrimPrefix(col, "-"), desc: desc})
	}
	return b
}

// Limit sets the maximum number of rows to return.
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// Build returns the query string and its arguments.
func (b *Builder) Build() (string, []any, error) {
	if b.table == "" {
		return "", nil, fmt.Errorf("table name is required")
	}

	var (
		query strings.Builder
		args  []any
	)
	query.WriteString("SELECT ")
	if len(b.columns) == 0 {
		query.WriteString("*")
	} else {
		query.WriteString(strings.Join(b.columns, ", "))
	}
	query.WriteString(" FROM ")
	query.WriteString(b.table)

	if len(b.where) > 0 {
		exprs := make([]string, len(b.where))
		for i, w := range b.where {
			exprs[i] = w.expr
			args = append(args, w.args...)
		}
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(exprs, " AND "))
	}

	if len(b.orderBy) > 0 {
		parts := make([]string, len(b.orderBy))
		for i, o := range b.orderBy {
			parts[i] = o.column
			if o.desc {
				parts[i] += " DESC"
			}
		}
		query.WriteString(" ORDER BY ")
		query.WriteString(strings.Join(parts, ", "))
	}

	if b.limit > 0 {
		query.WriteString(" LIMIT ?")
		args = append(args, b.limit)
	}
	return query.String(), args, nil
}

// MustBuild builds the query and panics on error.
func (b *Builder) MustBuild() (string, []any) {
	q, args, err := b.Build()
	if err != nil {
		panic(err)
	}
	return q, args
}
