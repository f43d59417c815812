// Package tabular defines the narrow port to the tabular persistence
// backend. The ledger service is written against this interface only, so it
// can run unchanged on Google Sheets, SQLite, or the in-memory fake.
package tabular

import (
	"context"
	"errors"
	"fmt"
)

// Table names, matching the sheets of the original spreadsheet.
const (
	TableMovements  = "Movimientos"
	TableCategories = "Mapa_Categorias"
	TableSettings   = "Settings"
	TableBudgets    = "Presupuestos"
)

// IDColumn is the column UpdateRowByID and DeleteRowByID match on.
const IDColumn = "id"

// ErrTableMissing signals that the named table does not exist in the
// backend. For optional tables (budgets) callers treat it as an empty set;
// for required tables it is a structural failure.
var ErrTableMissing = errors.New("table missing")

type (
	// Row is one record keyed by column header. Values are the store's
	// string rendering; normalization happens in the ledger service.
	Row map[string]string

	// Table is the result of a full-range scan.
	Table struct {
		Name    string
		Headers []string
		Rows    []Row
	}

	// Store is the persistence port: full scans plus row-level mutation by
	// id. No transactions, no partial scans; personal-scale data volumes
	// make a full scan per read acceptable.
	Store interface {
		ScanAll(ctx context.Context, table string) (Table, error)
		AppendRow(ctx context.Context, table string, row Row) error
		// UpdateRowByID applies patch to the row whose id column equals id.
		// The bool reports whether a row matched.
		UpdateRowByID(ctx context.Context, table string, id string, patch Row) (Row, bool, error)
		// DeleteRowByID removes the matching row, reporting whether one was
		// found. A missing row is not an error.
		DeleteRowByID(ctx context.Context, table string, id string) (bool, error)
	}
)

// HasHeader reports whether the table carries the given column.
func (t Table) HasHeader(name string) bool {
	for _, h := range t.Headers {
		if h == name {
			return true
		}
	}
	return false
}

// RequireHeaders returns an error naming the first missing column, so
// structural problems surface instead of producing zeroed aggregates.
func (t Table) RequireHeaders(names ...string) error {
	for _, n := range names {
		if !t.HasHeader(n) {
			return fmt.Errorf("table %s: missing column %q", t.Name, n)
		}
	}
	return nil
}
