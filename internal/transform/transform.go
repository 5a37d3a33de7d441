// Package transform loads a dataset into a local SQLite database and runs
// the SQL transform scripts against it.
package transform

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JonMunkholm/csvgate/internal/database"
	"github.com/JonMunkholm/csvgate/internal/dataset"
	_ "modernc.org/sqlite"
)

// DefaultTable receives the staged dataset.
const DefaultTable = "transactions"

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens (or creates) the SQLite file at path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite has a single writer.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return &DB{conn: conn, path: path}, nil
}

// Close closes the database.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file.
func (db *DB) Path() string {
	return db.path
}

// Conn returns the underlying connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// LoadDataset replaces table with the rows of d. Every column is TEXT and
// null cells are stored as NULL. Returns the number of rows written.
func (db *DB) LoadDataset(ctx context.Context, d *dataset.Dataset, table string) (int, error) {
	if len(d.Columns) == 0 {
		return 0, fmt.Errorf("load %s: dataset has no columns", table)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // No-op if already committed

	quoted := database.QuoteIdentifier(table)
	cols := make([]string, len(d.Columns))
	defs := make([]string, len(d.Columns))
	marks := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		cols[i] = database.QuoteIdentifier(c)
		defs[i] = cols[i] + " TEXT"
		marks[i] = "?"
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoted); err != nil {
		return 0, fmt.Errorf("drop %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quoted, strings.Join(defs, ", "))); err != nil {
		return 0, fmt.Errorf("create %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoted, strings.Join(cols, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(d.Columns))
	for i, row := range d.Rows {
		for j, c := range row {
			if c.Null {
				args[j] = nil
			} else {
				args[j] = c.Raw
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("insert row %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	slog.Info("dataset loaded", "table", table, "rows", len(d.Rows), "db", db.path)
	return len(d.Rows), nil
}

// ScriptError reports which transform script failed.
type ScriptError struct {
	Script string
	Err    error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("transform %s: %v", e.Script, e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// RunScripts executes every *.sql file in dir in name order. The first
// failing script stops the run. A missing dir runs nothing. Returns the
// names of the scripts that completed.
func (db *DB) RunScripts(ctx context.Context, dir string) ([]string, error) {
	scripts, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("list transforms: %w", err)
	}
	sort.Strings(scripts)

	ran := make([]string, 0, len(scripts))
	for _, path := range scripts {
		name := filepath.Base(path)
		body, err := os.ReadFile(path)
		if err != nil {
			return ran, &ScriptError{Script: name, Err: err}
		}

		slog.Info("running transform", "script", name)
		if _, err := db.conn.ExecContext(ctx, string(body)); err != nil {
			return ran, &ScriptError{Script: name, Err: err}
		}
		ran = append(ran, name)
	}
	return ran, nil
}
