package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"pocketfin/internal/core"
	"pocketfin/internal/tabular"
	"pocketfin/internal/tabular/memory"
)

func newTestService(store *memory.Store) *Service {
	s := New(store, time.UTC)
	s.now = func() time.Time {
		return time.Date(2026, time.January, 9, 10, 0, 0, 0, time.UTC)
	}
	return s
}

func seedSettings(store *memory.Store, kv map[string]string) {
	rows := []tabular.Row{}
	for k, v := range kv {
		rows = append(rows, tabular.Row{"Key": k, "Value": v})
	}
	store.Seed(tabular.TableSettings, []string{"Key", "Value"}, rows)
}

func TestGetSettingsDefaults(t *testing.T) {
	svc := newTestService(memory.NewWithDefaults())
	settings, err := svc.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if settings.DaySwitch() != 10 {
		t.Errorf("DaySwitch = %d, want 10", settings.DaySwitch())
	}
	if !settings.WritesEnabled() {
		t.Error("writes must default to enabled")
	}
	if settings.StartingTotal() != 2500 {
		t.Errorf("StartingTotal = %v, want 2500", settings.StartingTotal())
	}
	if settings.GoalBase() != 5000 {
		t.Errorf("GoalBase = %v, want 5000", settings.GoalBase())
	}
}

func TestSettingsReadFreshEachRequest(t *testing.T) {
	store := memory.NewWithDefaults()
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := svc.AddMovement(ctx, AddInput{Amount: 10, Date: "2026-01-05"}); err != nil {
		t.Fatalf("add with writes enabled: %v", err)
	}

	seedSettings(store, map[string]string{core.SettingWritesEnabled: "FALSE"})
	_, err := svc.AddMovement(ctx, AddInput{Amount: 10, Date: "2026-01-05"})
	if !errors.Is(err, ErrWritesDisabled) {
		t.Fatalf("expected ErrWritesDisabled after settings change, got %v", err)
	}
}

func TestAddMovementDerivesAccountingMonth(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2026-01-09", "2026-01"},
		{"2026-01-10", "2026-02"},
		{"2025-12-15", "2026-01"},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			svc := newTestService(memory.NewWithDefaults())
			m, err := svc.AddMovement(context.Background(), AddInput{Amount: 50, Date: tt.date})
			if err != nil {
				t.Fatalf("add: %v", err)
			}
			if m.AccountingMonth != tt.want {
				t.Errorf("accounting month = %q, want %q", m.AccountingMonth, tt.want)
			}
		})
	}
}

func TestAddMovementExplicitMonthWins(t *testing.T) {
	svc := newTestService(memory.NewWithDefaults())
	m, err := svc.AddMovement(context.Background(), AddInput{
		Amount: 50, Date: "2026-01-20", AccountingMonth: "2026-01",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if m.AccountingMonth != "2026-01" {
		t.Errorf("explicit month overridden: got %q", m.AccountingMonth)
	}
}

func TestAddMovementDefaults(t *testing.T) {
	store := memory.NewWithDefaults()
	svc := newTestService(store)
	m, err := svc.AddMovement(context.Background(), AddInput{Amount: 12.5, RawCategory: "Supermercado", Date: "2026-01-05"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if m.Type != core.TypeExpense {
		t.Errorf("type = %q, want default %q", m.Type, core.TypeExpense)
	}
	if m.ID != "1767952800000" {
		t.Errorf("id = %q, want millisecond token of the fixed clock", m.ID)
	}
	if m.CreatedAt != "2026-01-09T10:00:00.000Z" {
		t.Errorf("created_at = %q", m.CreatedAt)
	}

	tbl, err := store.ScanAll(context.Background(), tabular.TableMovements)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(tbl.Rows) != 1 || tbl.Rows[0]["amount"] != "12.5" {
		t.Errorf("stored row wrong: %v", tbl.Rows)
	}
}

func TestAddMovementNegativeAmount(t *testing.T) {
	svc := newTestService(memory.NewWithDefaults())
	_, err := svc.AddMovement(context.Background(), AddInput{Amount: -5})
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateMovementPartialPatch(t *testing.T) {
	store := memory.NewWithDefaults()
	svc := newTestService(store)
	ctx := context.Background()

	added, err := svc.AddMovement(ctx, AddInput{Amount: 50, RawCategory: "Supermercado", Date: "2026-01-05", Note: "week"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	note := "groceries"
	updated, err := svc.UpdateMovement(ctx, added.ID, UpdatePatch{Note: &note})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Note != "groceries" {
		t.Errorf("note = %q", updated.Note)
	}
	if updated.Amount != 50 || updated.RawCategory != "Supermercado" {
		t.Errorf("untouched fields changed: %+v", updated)
	}
}

func TestUpdateMovementErrors(t *testing.T) {
	svc := newTestService(memory.NewWithDefaults())
	ctx := context.Background()

	note := "x"
	if _, err := svc.UpdateMovement(ctx, "nope", UpdatePatch{Note: &note}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.UpdateMovement(ctx, "  ", UpdatePatch{Note: &note}); !IsValidation(err) {
		t.Errorf("blank id: expected validation error, got %v", err)
	}
	bad := -1.0
	added, _ := svc.AddMovement(ctx, AddInput{Amount: 5, Date: "2026-01-05"})
	if _, err := svc.UpdateMovement(ctx, added.ID, UpdatePatch{Amount: &bad}); !IsValidation(err) {
		t.Errorf("negative amount: expected validation error, got %v", err)
	}
}

func TestDeleteMovement(t *testing.T) {
	svc := newTestService(memory.NewWithDefaults())
	ctx := context.Background()

	added, err := svc.AddMovement(ctx, AddInput{Amount: 5, Date: "2026-01-05"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	found, err := svc.DeleteMovement(ctx, added.ID)
	if err != nil || !found {
		t.Fatalf("delete: found=%v err=%v", found, err)
	}
	found, err = svc.DeleteMovement(ctx, added.ID)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if found {
		t.Error("deleting a missing id must report false, not error")
	}
}

func TestGetMovementsFiltersAndSorts(t *testing.T) {
	store := memory.NewWithDefaults()
	store.Seed(tabular.TableMovements, []string{"id", "date", "accounting_month", "type", "raw_category", "amount", "note", "created_at"}, []tabular.Row{
		{"id": "1", "date": "2026-01-05", "accounting_month": "2026-01", "type": "Gasto", "amount": "10", "created_at": "2026-01-05T08:00:00Z"},
		{"id": "2", "date": "2026-01-06", "accounting_month": "2026-01-01T00:00:00.000Z", "type": "Gasto", "amount": "20", "created_at": "2026-01-06T08:00:00Z"},
		{"id": "3", "date": "2026-02-12", "accounting_month": "2026-02", "type": "Gasto", "amount": "30", "created_at": "2026-02-12T08:00:00Z"},
	})
	svc := newTestService(store)

	movs, err := svc.GetMovements(context.Background(), "2026-01")
	if err != nil {
		t.Fatalf("get movements: %v", err)
	}
	if len(movs) != 2 {
		t.Fatalf("len = %d, want 2 (timestamp-shaped month must normalize into the filter)", len(movs))
	}
	if movs[0].ID != "2" || movs[1].ID != "1" {
		t.Errorf("order wrong, want newest first: %v, %v", movs[0].ID, movs[1].ID)
	}

	all, err := svc.GetMovements(context.Background(), "")
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("empty filter must return everything, got %d", len(all))
	}
}

func TestGetCategoriesFiltersInactive(t *testing.T) {
	store := memory.NewWithDefaults()
	store.Seed(tabular.TableCategories, []string{"RawCategory", "StdCategory", "Bucket", "Active?"}, []tabular.Row{
		{"RawCategory": "Supermercado", "StdCategory": "Groceries", "Bucket": "Essentials", "Active?": "YES"},
		{"RawCategory": "Tabaco", "StdCategory": "Tobacco", "Bucket": "Vices", "Active?": "NO"},
		{"RawCategory": "", "StdCategory": "Ghost", "Bucket": "X", "Active?": "YES"},
		{"RawCategory": "Alquiler", "StdCategory": "Rent", "Bucket": "Essentials", "Active?": "yes"},
	})
	svc := newTestService(store)

	cats, err := svc.GetCategories(context.Background())
	if err != nil {
		t.Fatalf("get categories: %v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(cats), cats)
	}
	if cats[0].Raw != "Alquiler" || cats[1].Raw != "Supermercado" {
		t.Errorf("sort order wrong: %+v", cats)
	}
}

func TestGetBudgetsMissingTableIsEmpty(t *testing.T) {
	store := memory.NewWithDefaults()
	store.Drop(tabular.TableBudgets)
	svc := newTestService(store)

	budgets, err := svc.GetBudgets(context.Background())
	if err != nil {
		t.Fatalf("budgets without table: %v", err)
	}
	if len(budgets) != 0 {
		t.Errorf("want empty, got %+v", budgets)
	}
}

func TestGetSummary(t *testing.T) {
	store := memory.NewWithDefaults()
	store.Seed(tabular.TableCategories, []string{"RawCategory", "StdCategory", "Bucket", "Active?"}, []tabular.Row{
		{"RawCategory": "Supermercado", "StdCategory": "Groceries", "Bucket": "Essentials", "Active?": "YES"},
	})
	store.Seed(tabular.TableMovements, []string{"id", "date", "accounting_month", "type", "raw_category", "amount", "note", "created_at"}, []tabular.Row{
		{"id": "1", "date": "2026-01-02", "accounting_month": "2026-01", "type": "Ingreso", "raw_category": "Nomina", "amount": "1000", "created_at": "2026-01-02T08:00:00Z"},
		{"id": "2", "date": "2026-01-05", "accounting_month": "2026-01", "type": "Gasto", "raw_category": "Supermercado", "amount": "200", "created_at": "2026-01-05T08:00:00Z"},
		{"id": "3", "date": "2026-01-06", "accounting_month": "2026-01", "type": "Gasto", "raw_category": "Casino", "amount": "100", "created_at": "2026-01-06T08:00:00Z"},
		{"id": "4", "date": "2026-02-15", "accounting_month": "2026-02", "type": "Gasto", "raw_category": "Supermercado", "amount": "999", "created_at": "2026-02-15T08:00:00Z"},
	})
	svc := newTestService(store)

	sum, err := svc.GetSummary(context.Background(), "2026-01")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Income != 1000 {
		t.Errorf("income = %v, want 1000", sum.Income)
	}
	if sum.Expense != 300 {
		t.Errorf("expense = %v, want 300", sum.Expense)
	}
	if sum.Net != 700 {
		t.Errorf("net = %v, want 700", sum.Net)
	}
	if sum.BucketTotals["Essentials"] != 200 {
		t.Errorf("Essentials = %v, want 200", sum.BucketTotals["Essentials"])
	}
	if sum.BucketTotals[core.UncategorizedBucket] != 100 {
		t.Errorf("Uncategorized = %v, want 100", sum.BucketTotals[core.UncategorizedBucket])
	}
	if sum.StartingTotal != 2500 || sum.ProjectedTotal != 3200 {
		t.Errorf("projection wrong: starting=%v projected=%v", sum.StartingTotal, sum.ProjectedTotal)
	}
	if sum.GoalBase != 5000 {
		t.Errorf("goal base = %v, want 5000", sum.GoalBase)
	}
}

func TestGetSummaryBucketTotalsSumToExpense(t *testing.T) {
	store := memory.NewWithDefaults()
	store.Seed(tabular.TableMovements, []string{"id", "date", "accounting_month", "type", "raw_category", "amount", "note", "created_at"}, []tabular.Row{
		{"id": "1", "accounting_month": "2026-01", "type": "Gasto", "raw_category": "A", "amount": "10.10", "created_at": "a"},
		{"id": "2", "accounting_month": "2026-01", "type": "Gasto", "raw_category": "B", "amount": "20.25", "created_at": "b"},
		{"id": "3", "accounting_month": "2026-01", "type": "Gasto", "raw_category": "C", "amount": "0.65", "created_at": "c"},
	})
	svc := newTestService(store)

	sum, err := svc.GetSummary(context.Background(), "2026-01")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	var total float64
	for _, v := range sum.BucketTotals {
		total += v
	}
	if got := core.Round2(total); got != sum.Expense {
		t.Errorf("bucket totals sum %v != expense %v", got, sum.Expense)
	}
}

func TestStructuralFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("movements table dropped", func(t *testing.T) {
		store := memory.NewWithDefaults()
		store.Drop(tabular.TableMovements)
		svc := newTestService(store)
		if _, err := svc.GetMovements(ctx, ""); !IsStructural(err) {
			t.Errorf("expected structural error, got %v", err)
		}
		if _, err := svc.GetSummary(ctx, "2026-01"); !IsStructural(err) {
			t.Errorf("summary must fail structurally too, got %v", err)
		}
	})

	t.Run("movement column removed", func(t *testing.T) {
		store := memory.NewWithDefaults()
		store.Seed(tabular.TableMovements, []string{"id", "date", "type", "amount"}, nil)
		svc := newTestService(store)
		if _, err := svc.GetMovements(ctx, ""); !IsStructural(err) {
			t.Errorf("expected structural error, got %v", err)
		}
	})

	t.Run("category column removed", func(t *testing.T) {
		store := memory.NewWithDefaults()
		store.Seed(tabular.TableCategories, []string{"RawCategory", "Bucket"}, nil)
		svc := newTestService(store)
		if _, err := svc.GetCategories(ctx); !IsStructural(err) {
			t.Errorf("expected structural error, got %v", err)
		}
	})
}
