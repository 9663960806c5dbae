package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"net/url"
	"strings"

	duckdbDriver "github.com/marcboeker/go-duckdb"
)

// connectionSettings run on every pooled connection.
var connectionSettings = []string{
	"SET preserve_insertion_order = true",
	"SET enable_progress_bar = false",
}

// OpenDB opens a DuckDB database. An empty dsn or ":memory:" opens an
// in-memory database.
func OpenDB(dsn string) (*sql.DB, error) {
	dsn = withAccessMode(dsn)

	connector, err := duckdbDriver.NewConnector(dsn, func(execer driver.ExecerContext) error {
		ctx := context.Background()
		for _, query := range connectionSettings {
			if _, err := execer.ExecContext(ctx, query, nil); err != nil {
				// Non-fatal: the settings only affect ordering and console output.
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return sql.OpenDB(connector), nil
}

// withAccessMode pins file databases to read-write access unless the dsn
// already chooses a mode.
func withAccessMode(dsn string) string {
	if dsn == "" || dsn == ":memory:" {
		return dsn
	}

	path, query, _ := strings.Cut(dsn, "?")
	params, err := url.ParseQuery(query)
	if err != nil {
		return dsn
	}
	if !params.Has("access_mode") {
		params.Set("access_mode", "read_write")
	}
	return path + "?" + params.Encode()
}

// dsnName returns the database file named by dsn, or ":memory:".
func dsnName(dsn string) string {
	path, _, _ := strings.Cut(dsn, "?")
	if path == "" {
		return ":memory:"
	}
	return path
}
