// Package warehouse bulk loads a validated dataset into PostgreSQL.
//
// Rows are streamed with the COPY protocol into a temporary table of TEXT
// columns, then moved into the target table with a single INSERT ... SELECT
// that trims values and turns blanks into NULL. Everything happens in one
// transaction, so a failed load leaves the target untouched.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"unicode"

	"github.com/JonMunkholm/csvgate/internal/database"
	"github.com/JonMunkholm/csvgate/internal/dataset"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNoColumns is returned when the dataset has no columns to load.
var ErrNoColumns = errors.New("warehouse: dataset has no columns")

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Loader loads datasets into a PostgreSQL database.
type Loader struct {
	db DB
}

// NewLoader creates a Loader.
func NewLoader(db DB) *Loader {
	return &Loader{db: db}
}

// EnsureTable executes the DDL script at ddlPath. A missing script is not an
// error; it reports false so the caller can log that the table is assumed to
// exist.
func (l *Loader) EnsureTable(ctx context.Context, ddlPath string) (bool, error) {
	ddl, err := os.ReadFile(ddlPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read ddl %s: %w", ddlPath, err)
	}
	if strings.TrimSpace(string(ddl)) == "" {
		return false, nil
	}
	if _, err := l.db.Exec(ctx, string(ddl)); err != nil {
		return false, fmt.Errorf("execute ddl %s: %w", ddlPath, err)
	}
	return true, nil
}

// Load copies every row of d into table and returns the number of rows
// inserted. CSV headers map to lower snake_case table columns.
func (l *Loader) Load(ctx context.Context, d *dataset.Dataset, table string) (int64, error) {
	plan, err := newPlan(d, table)
	if err != nil {
		return 0, err
	}

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	if _, err := tx.Exec(ctx, plan.createTemp); err != nil {
		return 0, fmt.Errorf("create temp table: %w", err)
	}

	copied, err := tx.CopyFrom(ctx, pgx.Identifier{plan.tempTable}, plan.tempColumns, pgx.CopyFromRows(copyRows(d)))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", plan.tempTable, err)
	}

	tag, err := tx.Exec(ctx, plan.insert)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	slog.Info("warehouse load complete",
		"table", table,
		"copied", copied,
		"inserted", tag.RowsAffected())
	return tag.RowsAffected(), nil
}

// plan holds the SQL for one load.
type plan struct {
	tempTable   string
	tempColumns []string
	createTemp  string
	insert      string
}

const tempTableName = "tmp_raw_csv"

func newPlan(d *dataset.Dataset, table string) (*plan, error) {
	if len(d.Columns) == 0 {
		return nil, ErrNoColumns
	}

	p := &plan{tempTable: tempTableName, tempColumns: d.Columns}

	defs := make([]string, len(d.Columns))
	targets := make([]string, len(d.Columns))
	selects := make([]string, len(d.Columns))
	seen := make(map[string]string, len(d.Columns))
	for i, col := range d.Columns {
		quoted := database.QuoteIdentifier(col)
		defs[i] = quoted + " TEXT"

		target := toDBColumnName(col)
		if prev, dup := seen[target]; dup {
			return nil, fmt.Errorf("warehouse: columns %q and %q both map to %q", prev, col, target)
		}
		seen[target] = col
		targets[i] = database.QuoteIdentifier(target)
		selects[i] = fmt.Sprintf("NULLIF(trim(%s), '')", quoted)
	}

	p.createTemp = fmt.Sprintf("CREATE TEMP TABLE %s (%s) ON COMMIT DROP",
		database.QuoteIdentifier(p.tempTable), strings.Join(defs, ", "))
	p.insert = fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
		quoteTable(table), strings.Join(targets, ", "), strings.Join(selects, ", "),
		database.QuoteIdentifier(p.tempTable))
	return p, nil
}

// copyRows converts the dataset into COPY rows. Null cells become NULL.
func copyRows(d *dataset.Dataset) [][]any {
	rows := make([][]any, len(d.Rows))
	for i, row := range d.Rows {
		vals := make([]any, len(row))
		for j, c := range row {
			if c.Null {
				continue
			}
			vals[j] = c.Raw
		}
		rows[i] = vals
	}
	return rows
}

// quoteTable quotes a possibly schema-qualified table name.
func quoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = database.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// toDBColumnName converts a CSV header to a database column name.
// "Transaction ID" -> "transaction_id", "Total-Amount" -> "total_amount".
func toDBColumnName(name string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.TrimSpace(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
