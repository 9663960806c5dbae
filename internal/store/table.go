package store

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
)

// Execer is an interface that matches both *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Table maps rows of a DuckDB table onto values of the struct type T. Columns
// come from `duckdb:"name[,pk]"` field tags, in field order.
type Table[T any] struct {
	db        Execer
	tableName string
	columns   []string
	pkColumns []string
	fieldMap  map[string]int
}

// NewTable creates a Table[T]. T must be a struct with `duckdb` tags.
func NewTable[T any](db Execer, tableName string) *Table[T] {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		panic("Table generic type T must be a struct")
	}

	tbl := &Table[T]{
		db:        db,
		tableName: tableName,
		fieldMap:  make(map[string]int),
	}
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("duckdb")
		if tag == "" || tag == "-" {
			continue
		}
		parts := strings.Split(tag, ",")
		col := strings.TrimSpace(parts[0])
		tbl.columns = append(tbl.columns, col)
		tbl.fieldMap[col] = i
		for _, opt := range parts[1:] {
			if strings.TrimSpace(opt) == "pk" {
				tbl.pkColumns = append(tbl.pkColumns, col)
			}
		}
	}
	return tbl
}

func (t *Table[T]) insertQuery() string {
	placeholders := make([]string, len(t.columns))
	updates := make([]string, 0, len(t.columns))
	for i, col := range t.columns {
		placeholders[i] = "?"
		if !t.isPK(col) {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
		}
	}

	// #nosec G201 - table and column names come from struct tags
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.tableName,
		strings.Join(t.columns, ", "),
		strings.Join(placeholders, ", "),
	)
	if len(t.pkColumns) > 0 {
		clause := "DO NOTHING"
		if len(updates) > 0 {
			clause = "DO UPDATE SET " + strings.Join(updates, ", ")
		}
		query += fmt.Sprintf(" ON CONFLICT (%s) %s", strings.Join(t.pkColumns, ", "), clause)
	}
	return query
}

func (t *Table[T]) isPK(col string) bool {
	for _, pk := range t.pkColumns {
		if pk == col {
			return true
		}
	}
	return false
}

func (t *Table[T]) values(item *T) []any {
	val := reflect.ValueOf(item).Elem()
	values := make([]any, len(t.columns))
	for i, col := range t.columns {
		values[i] = val.Field(t.fieldMap[col]).Interface()
	}
	return values
}

// Upsert inserts item, replacing the non-key columns of an existing row with
// the same primary key.
func (t *Table[T]) Upsert(ctx context.Context, item *T) error {
	_, err := t.db.ExecContext(ctx, t.insertQuery(), t.values(item)...)
	return err
}

// BatchInsert inserts items through a single prepared statement. Run it on a
// transaction to make the batch atomic.
func (t *Table[T]) BatchInsert(ctx context.Context, items []T) error {
	if len(items) == 0 {
		return nil
	}

	stmt, err := t.db.PrepareContext(ctx, t.insertQuery())
	if err != nil {
		return fmt.Errorf("prepare %s insert: %w", t.tableName, err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range items {
		if _, err := stmt.ExecContext(ctx, t.values(&items[i])...); err != nil {
			return fmt.Errorf("insert into %s: %w", t.tableName, err)
		}
	}
	return nil
}

// DeleteWhere removes every row whose column equals value.
func (t *Table[T]) DeleteWhere(ctx context.Context, column string, value any) error {
	if _, ok := t.fieldMap[column]; !ok {
		return fmt.Errorf("column %s does not exist in table %s", column, t.tableName)
	}
	// #nosec G201 - column is checked against the struct tags above
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", t.tableName, column)
	_, err := t.db.ExecContext(ctx, query, value)
	return err
}

// Get retrieves the row whose first primary-key column equals id. It returns
// sql.ErrNoRows when there is none.
func (t *Table[T]) Get(ctx context.Context, id any) (*T, error) {
	if len(t.pkColumns) == 0 {
		return nil, fmt.Errorf("no primary key defined for table %s", t.tableName)
	}
	q, args := NewQueryBuilder(t.tableName).
		Select(t.columns...).
		Where(t.pkColumns[0]+" = ?", id).
		MustBuild()

	var item T
	if err := t.db.QueryRowContext(ctx, q, args...).Scan(t.dest(&item)...); err != nil {
		return nil, err
	}
	return &item, nil
}

// Query runs a query built by b, which must select the table's columns in
// order, and scans every row.
func (t *Table[T]) Query(ctx context.Context, b *Builder) ([]T, error) {
	q, args, err := b.Build()
	if err != nil {
		return nil, err
	}
	rows, err := t.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.tableName, err)
	}
	defer func() { _ = rows.Close() }()

	var items []T
	for rows.Next() {
		var item T
		if err := rows.Scan(t.dest(&item)...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.tableName, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Select starts a query over every column of the table.
func (t *Table[T]) Select() *Builder {
	return NewQueryBuilder(t.tableName).Select(t.columns...)
}

func (t *Table[T]) dest(item *T) []any {
	val := reflect.ValueOf(item).Elem()
	dest := make([]any, len(t.columns))
	for i, col := range t.columns {
		dest[i] = val.Field(t.fieldMap[col]).Addr().Interface()
	}
	return dest
}
