package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrNotReadOnly rejects statements that could modify the database.
var ErrNotReadOnly = errors.New("only read-only statements are allowed")

// Rows is a materialized query result.
type Rows struct {
	Columns []string
	Rows    []map[string]any
	// Truncated is set when more than the requested limit was available.
	Truncated bool
}

// ReadOnly reports whether q starts with a keyword that cannot write.
func ReadOnly(q string) bool {
	words := strings.FieldsFunc(q, func(r rune) bool { return !unicode.IsLetter(r) })
	if len(words) == 0 {
		return false
	}
	switch strings.ToUpper(words[0]) {
	case "SELECT", "WITH", "SHOW", "DESCRIBE", "SUMMARIZE", "EXPLAIN", "FROM":
		return true
	}
	return false
}

// Query runs a read-only statement and returns at most limit rows.
func Query(ctx context.Context, db *sql.DB, q string, limit int) (Rows, error) {
	if !ReadOnly(q) {
		return Rows{}, ErrNotReadOnly
	}
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return Rows{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Rows{}, fmt.Errorf("columns: %w", err)
	}
	out := Rows{Columns: cols, Rows: []map[string]any{}}
	for rows.Next() {
		if len(out.Rows) == limit {
			out.Truncated = true
			break
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Rows{}, fmt.Errorf("scan: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out.Rows = append(out.Rows, row)
	}
	return out, rows.Err()
}

// Tables lists the tables of the main schema.
func Tables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
