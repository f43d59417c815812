// Package sqlite backs the tabular store with a local SQLite file. The
// logical tables and headers stay spreadsheet-shaped; this adapter only maps
// them onto fixed SQL schemas so a local deployment needs no Google account.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pocketfin/internal/tabular"

	_ "modernc.org/sqlite"
)

// tableSpec maps a logical table to its SQL shape. Column order defines
// header order in scans.
type tableSpec struct {
	sqlName string
	columns []column
	idCol   string // SQL column backing the id header, "" when the table has none
}

type column struct {
	header string
	col    string
}

var specs = map[string]tableSpec{
	tabular.TableMovements: {
		sqlName: "movements",
		idCol:   "id",
		columns: []column{
			{"id", "id"},
			{"date", "date"},
			{"accounting_month", "accounting_month"},
			{"type", "type"},
			{"raw_category", "raw_category"},
			{"amount", "amount"},
			{"note", "note"},
			{"created_at", "created_at"},
		},
	},
	tabular.TableCategories: {
		sqlName: "category_map",
		columns: []column{
			{"RawCategory", "raw_category"},
			{"StdCategory", "std_category"},
			{"Bucket", "bucket"},
			{"Active?", "active"},
		},
	},
	tabular.TableSettings: {
		sqlName: "settings",
		columns: []column{
			{"Key", "key"},
			{"Value", "value"},
		},
	},
	tabular.TableBudgets: {
		sqlName: "budgets",
		columns: []column{
			{"Bucket", "bucket"},
			{"MonthlyLimit", "monthly_limit"},
		},
	},
}

type Store struct {
	db *sql.DB
}

var _ tabular.Store = (*Store)(nil)

// New opens (or creates) the database at dbPath and runs pending migrations.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) ScanAll(ctx context.Context, table string) (tabular.Table, error) {
	spec, err := specFor(table)
	if err != nil {
		return tabular.Table{}, err
	}
	cols := make([]string, len(spec.columns))
	headers := make([]string, len(spec.columns))
	for i, c := range spec.columns {
		cols[i] = quoteIdent(c.col)
		headers[i] = c.header
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", strings.Join(cols, ", "), spec.sqlName)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return tabular.Table{}, fmt.Errorf("scan %s: %w", table, err)
	}
	defer rows.Close()

	out := tabular.Table{Name: table, Headers: headers}
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return tabular.Table{}, fmt.Errorf("scan %s row: %w", table, err)
		}
		row := make(tabular.Row, len(headers))
		for i, h := range headers {
			row[h] = vals[i].String
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return tabular.Table{}, fmt.Errorf("scan %s: %w", table, err)
	}
	return out, nil
}

func (s *Store) AppendRow(ctx context.Context, table string, row tabular.Row) error {
	spec, err := specFor(table)
	if err != nil {
		return err
	}
	cols := make([]string, len(spec.columns))
	marks := make([]string, len(spec.columns))
	args := make([]any, len(spec.columns))
	for i, c := range spec.columns {
		cols[i] = quoteIdent(c.col)
		marks[i] = "?"
		args[i] = row[c.header]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		spec.sqlName, strings.Join(cols, ", "), strings.Join(marks, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("append to %s: %w", table, err)
	}
	return nil
}

func (s *Store) UpdateRowByID(ctx context.Context, table, id string, patch tabular.Row) (tabular.Row, bool, error) {
	spec, err := specFor(table)
	if err != nil {
		return nil, false, err
	}
	if spec.idCol == "" {
		return nil, false, fmt.Errorf("table %s: missing column %q", table, tabular.IDColumn)
	}
	var sets []string
	var args []any
	for _, c := range spec.columns {
		if v, ok := patch[c.header]; ok && c.header != tabular.IDColumn {
			sets = append(sets, quoteIdent(c.col)+" = ?")
			args = append(args, v)
		}
	}
	if len(sets) > 0 {
		args = append(args, id)
		query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
			spec.sqlName, strings.Join(sets, ", "), quoteIdent(spec.idCol))
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return nil, false, fmt.Errorf("update %s: %w", table, err)
		}
	}
	return s.rowByID(ctx, spec, table, id)
}

func (s *Store) DeleteRowByID(ctx context.Context, table, id string) (bool, error) {
	spec, err := specFor(table)
	if err != nil {
		return false, err
	}
	if spec.idCol == "" {
		return false, fmt.Errorf("table %s: missing column %q", table, tabular.IDColumn)
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", spec.sqlName, quoteIdent(spec.idCol))
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete from %s: %w", table, err)
	}
	return n > 0, nil
}

func (s *Store) rowByID(ctx context.Context, spec tableSpec, table, id string) (tabular.Row, bool, error) {
	cols := make([]string, len(spec.columns))
	for i, c := range spec.columns {
		cols[i] = quoteIdent(c.col)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		strings.Join(cols, ", "), spec.sqlName, quoteIdent(spec.idCol))
	vals := make([]sql.NullString, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	err := s.db.QueryRowContext(ctx, query, id).Scan(ptrs...)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select %s by id: %w", table, err)
	}
	row := make(tabular.Row, len(spec.columns))
	for i, c := range spec.columns {
		row[c.header] = vals[i].String
	}
	return row, true, nil
}

func specFor(table string) (tableSpec, error) {
	spec, ok := specs[table]
	if !ok {
		return tableSpec{}, fmt.Errorf("%s: %w", table, tabular.ErrTableMissing)
	}
	return spec, nil
}

// quoteIdent guards reserved words like "key". Identifiers come from the
// static specs above, never from input.
func quoteIdent(s string) string {
	return `"` + s + `"`
}
