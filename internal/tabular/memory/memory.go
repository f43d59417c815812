// Package memory implements the tabular store in process memory. It is the
// default backend for local runs and the fake the service tests run against.
package memory

import (
	"context"
	"fmt"
	"sync"

	"pocketfin/internal/tabular"
)

type Store struct {
	mu     sync.Mutex
	tables map[string]*table
}

type table struct {
	headers []string
	rows    []tabular.Row
}

// New returns an empty store with no tables. Tables must be seeded before
// use; scanning an unseeded table yields ErrTableMissing, which mirrors a
// spreadsheet without that sheet.
func New() *Store {
	return &Store{tables: map[string]*table{}}
}

// NewWithDefaults returns a store seeded with the four standard tables,
// all empty. Settings defaults then apply at read time in the ledger.
func NewWithDefaults() *Store {
	s := New()
	s.Seed(tabular.TableMovements, []string{"id", "date", "accounting_month", "type", "raw_category", "amount", "note", "created_at"}, nil)
	s.Seed(tabular.TableCategories, []string{"RawCategory", "StdCategory", "Bucket", "Active?"}, nil)
	s.Seed(tabular.TableSettings, []string{"Key", "Value"}, nil)
	s.Seed(tabular.TableBudgets, []string{"Bucket", "MonthlyLimit"}, nil)
	return s
}

// Seed creates or replaces a table with the given headers and rows.
func (s *Store) Seed(name string, headers []string, rows []tabular.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &table{headers: append([]string(nil), headers...)}
	for _, r := range rows {
		t.rows = append(t.rows, cloneRow(r))
	}
	s.tables[name] = t
}

// Drop removes a table, so tests can simulate a structurally broken store.
func (s *Store) Drop(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables, name)
}

func (s *Store) ScanAll(_ context.Context, name string) (tabular.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return tabular.Table{}, fmt.Errorf("%s: %w", name, tabular.ErrTableMissing)
	}
	out := tabular.Table{
		Name:    name,
		Headers: append([]string(nil), t.headers...),
		Rows:    make([]tabular.Row, 0, len(t.rows)),
	}
	for _, r := range t.rows {
		out.Rows = append(out.Rows, cloneRow(r))
	}
	return out, nil
}

func (s *Store) AppendRow(_ context.Context, name string, row tabular.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, tabular.ErrTableMissing)
	}
	t.rows = append(t.rows, cloneRow(row))
	return nil
}

func (s *Store) UpdateRowByID(_ context.Context, name, id string, patch tabular.Row) (tabular.Row, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return nil, false, fmt.Errorf("%s: %w", name, tabular.ErrTableMissing)
	}
	for _, r := range t.rows {
		if r[tabular.IDColumn] == id {
			for k, v := range patch {
				r[k] = v
			}
			return cloneRow(r), true, nil
		}
	}
	return nil, false, nil
}

func (s *Store) DeleteRowByID(_ context.Context, name, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return false, fmt.Errorf("%s: %w", name, tabular.ErrTableMissing)
	}
	for i, r := range t.rows {
		if r[tabular.IDColumn] == id {
			t.rows = append(t.rows[:i], t.rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func cloneRow(r tabular.Row) tabular.Row {
	out := make(tabular.Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

var _ tabular.Store = (*Store)(nil)
