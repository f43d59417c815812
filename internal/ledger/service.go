// Package ledger implements the application core: reading movements out of
// the tabular store, normalizing months, aggregating monthly summaries, and
// applying mutations. Settings are re-read on every request; the store may
// be edited out-of-band at any time.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"pocketfin/internal/core"
	"pocketfin/internal/tabular"
)

// movementHeaders are the columns every movement row must carry. A store
// without them is structurally broken and every request fails fast.
var movementHeaders = []string{
	"id", "date", "accounting_month", "type",
	"raw_category", "amount", "note", "created_at",
}

type Service struct {
	store tabular.Store
	loc   *time.Location
	now   func() time.Time
}

func New(store tabular.Store, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, loc: loc, now: time.Now}
}

// GetSettings reads the settings table and applies the documented defaults.
func (s *Service) GetSettings(ctx context.Context) (core.Settings, error) {
	tbl, err := s.store.ScanAll(ctx, tabular.TableSettings)
	if err != nil {
		return nil, &StructuralError{Table: tabular.TableSettings, Err: err}
	}
	if err := tbl.RequireHeaders("Key", "Value"); err != nil {
		return nil, &StructuralError{Table: tabular.TableSettings, Err: err}
	}
	out := core.Settings{}
	for _, row := range tbl.Rows {
		k := strings.TrimSpace(row["Key"])
		if k == "" {
			continue
		}
		out[k] = strings.TrimSpace(row["Value"])
	}
	return out.WithDefaults(), nil
}

// GetCategories returns the active category mappings sorted by raw label.
// Inactive mappings are absent, not hidden.
func (s *Service) GetCategories(ctx context.Context) ([]core.CategoryMapping, error) {
	tbl, err := s.store.ScanAll(ctx, tabular.TableCategories)
	if err != nil {
		return nil, &StructuralError{Table: tabular.TableCategories, Err: err}
	}
	if err := tbl.RequireHeaders("RawCategory", "StdCategory", "Bucket", "Active?"); err != nil {
		return nil, &StructuralError{Table: tabular.TableCategories, Err: err}
	}
	out := []core.CategoryMapping{}
	for _, row := range tbl.Rows {
		if strings.ToUpper(strings.TrimSpace(row["Active?"])) != "YES" {
			continue
		}
		raw := strings.TrimSpace(row["RawCategory"])
		if raw == "" {
			continue
		}
		out = append(out, core.CategoryMapping{
			Raw:      raw,
			Standard: strings.TrimSpace(row["StdCategory"]),
			Bucket:   strings.TrimSpace(row["Bucket"]),
		})
	}
	core.SortMappings(out)
	return out, nil
}

// GetBudgets returns the per-bucket monthly limits. The budgets table is
// optional: an absent table or missing headers yield an empty set.
func (s *Service) GetBudgets(ctx context.Context) ([]core.BudgetLimit, error) {
	tbl, err := s.store.ScanAll(ctx, tabular.TableBudgets)
	if errors.Is(err, tabular.ErrTableMissing) {
		return []core.BudgetLimit{}, nil
	}
	if err != nil {
		return nil, &StructuralError{Table: tabular.TableBudgets, Err: err}
	}
	if !tbl.HasHeader("Bucket") || !tbl.HasHeader("MonthlyLimit") {
		return []core.BudgetLimit{}, nil
	}
	out := []core.BudgetLimit{}
	for _, row := range tbl.Rows {
		bucket := strings.TrimSpace(row["Bucket"])
		if bucket == "" {
			continue
		}
		limit, _ := parseAmount(row["MonthlyLimit"])
		out = append(out, core.BudgetLimit{Bucket: bucket, MonthlyLimit: limit})
	}
	return out, nil
}

// GetMovements returns the movements attributed to monthFilter, or all
// movements when the filter is empty, newest first. Every stored month and
// date is re-normalized on the way out, so upstream auto-formatting cannot
// break filtering.
func (s *Service) GetMovements(ctx context.Context, monthFilter string) ([]core.Movement, error) {
	tbl, err := s.store.ScanAll(ctx, tabular.TableMovements)
	if err != nil {
		return nil, &StructuralError{Table: tabular.TableMovements, Err: err}
	}
	if err := tbl.RequireHeaders(movementHeaders...); err != nil {
		return nil, &StructuralError{Table: tabular.TableMovements, Err: err}
	}
	out := []core.Movement{}
	for _, row := range tbl.Rows {
		m := s.rowToMovement(row)
		if monthFilter != "" && m.AccountingMonth != monthFilter {
			continue
		}
		out = append(out, m)
	}
	core.SortByCreatedAtDesc(out)
	return out, nil
}

// GetSummary aggregates one month: income, expense, net, per-bucket expense
// totals, and the savings projection. Settings, categories, and movements
// are fetched concurrently; any failure fails the whole summary.
func (s *Service) GetSummary(ctx context.Context, monthFilter string) (core.Summary, error) {
	var (
		settings core.Settings
		cats     []core.CategoryMapping
		movs     []core.Movement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		settings, err = s.GetSettings(gctx)
		return err
	})
	g.Go(func() (err error) {
		cats, err = s.GetCategories(gctx)
		return err
	})
	g.Go(func() (err error) {
		movs, err = s.GetMovements(gctx, monthFilter)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Summary{}, err
	}

	mapper := NewMapper(cats)
	var income, expense float64
	buckets := map[string]float64{}
	for _, m := range movs {
		if m.IsIncome() {
			income += m.Amount
			continue
		}
		expense += m.Amount
		buckets[mapper.ResolveBucket(m.RawCategory)] += m.Amount
	}
	for k, v := range buckets {
		buckets[k] = core.Round2(v)
	}
	net := income - expense
	starting := settings.StartingTotal()

	return core.Summary{
		Month:          monthFilter,
		Income:         core.Round2(income),
		Expense:        core.Round2(expense),
		Net:            core.Round2(net),
		BucketTotals:   buckets,
		StartingTotal:  starting,
		GoalBase:       settings.GoalBase(),
		ProjectedTotal: core.Round2(starting + net),
	}, nil
}

// AddInput is the payload for AddMovement. AccountingMonth is optional;
// when empty it is derived from Date and the configured switch day, which
// keeps the derivation rule in exactly one place.
type AddInput struct {
	Amount          float64
	Type            string
	RawCategory     string
	Date            string
	AccountingMonth string
	Note            string
}

// AddMovement validates and appends one movement. The id is a millisecond
// timestamp token, as in the pre-existing data.
func (s *Service) AddMovement(ctx context.Context, in AddInput) (core.Movement, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return core.Movement{}, err
	}
	if !settings.WritesEnabled() {
		return core.Movement{}, ErrWritesDisabled
	}
	if in.Amount < 0 {
		return core.Movement{}, &ValidationError{Field: "amount", Reason: "must not be negative"}
	}

	now := s.now()
	typ := strings.TrimSpace(in.Type)
	if typ == "" {
		typ = core.TypeExpense
	}
	date := core.NormalizeDate(s.loc, in.Date)
	month := core.NormalizeMonth(s.loc, in.AccountingMonth)
	if month == "" && date != "" {
		month = core.AccountingMonthForDate(date, settings.DaySwitch())
	}

	m := core.Movement{
		ID:              strconv.FormatInt(now.UnixMilli(), 10),
		Date:            date,
		AccountingMonth: month,
		Type:            typ,
		RawCategory:     strings.TrimSpace(in.RawCategory),
		Amount:          in.Amount,
		Note:            in.Note,
		CreatedAt:       now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if err := s.store.AppendRow(ctx, tabular.TableMovements, movementToRow(m)); err != nil {
		return core.Movement{}, fmt.Errorf("append movement: %w", err)
	}
	slog.InfoContext(ctx, "Movement added",
		"id", m.ID, "type", m.Type, "amount", m.Amount, "accounting_month", m.AccountingMonth)
	return m, nil
}

// UpdatePatch carries the fields an update may change. Nil fields keep
// their stored values.
type UpdatePatch struct {
	Date            *string
	AccountingMonth *string
	Type            *string
	RawCategory     *string
	Amount          *float64
	Note            *string
}

// UpdateMovement applies a partial patch and returns the post-update record,
// re-normalized. An unknown id is ErrNotFound.
func (s *Service) UpdateMovement(ctx context.Context, id string, patch UpdatePatch) (core.Movement, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return core.Movement{}, err
	}
	if !settings.WritesEnabled() {
		return core.Movement{}, ErrWritesDisabled
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Movement{}, &ValidationError{Field: "id", Reason: "missing"}
	}

	row := tabular.Row{}
	if patch.Date != nil {
		row["date"] = core.NormalizeDate(s.loc, *patch.Date)
	}
	if patch.AccountingMonth != nil {
		// Normalized before storage so the text defense in the adapters
		// always sees a plain YYYY-MM.
		row["accounting_month"] = core.NormalizeMonth(s.loc, *patch.AccountingMonth)
	}
	if patch.Type != nil {
		row["type"] = strings.TrimSpace(*patch.Type)
	}
	if patch.RawCategory != nil {
		row["raw_category"] = strings.TrimSpace(*patch.RawCategory)
	}
	if patch.Amount != nil {
		if *patch.Amount < 0 {
			return core.Movement{}, &ValidationError{Field: "amount", Reason: "must not be negative"}
		}
		row["amount"] = formatAmount(*patch.Amount)
	}
	if patch.Note != nil {
		row["note"] = *patch.Note
	}

	updated, found, err := s.store.UpdateRowByID(ctx, tabular.TableMovements, id, row)
	if err != nil {
		return core.Movement{}, fmt.Errorf("update movement: %w", err)
	}
	if !found {
		return core.Movement{}, ErrNotFound
	}
	slog.InfoContext(ctx, "Movement updated", "id", id, "fields", len(row))
	return s.rowToMovement(updated), nil
}

// DeleteMovement removes a movement, reporting whether one matched. A
// missing id is false, not an error.
func (s *Service) DeleteMovement(ctx context.Context, id string) (bool, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return false, err
	}
	if !settings.WritesEnabled() {
		return false, ErrWritesDisabled
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return false, &ValidationError{Field: "id", Reason: "missing"}
	}
	found, err := s.store.DeleteRowByID(ctx, tabular.TableMovements, id)
	if err != nil {
		return false, fmt.Errorf("delete movement: %w", err)
	}
	slog.InfoContext(ctx, "Movement delete", "id", id, "found", found)
	return found, nil
}

func (s *Service) rowToMovement(row tabular.Row) core.Movement {
	amount, _ := parseAmount(row["amount"])
	return core.Movement{
		ID:              strings.TrimSpace(row["id"]),
		Date:            core.NormalizeDate(s.loc, row["date"]),
		AccountingMonth: core.NormalizeMonth(s.loc, row["accounting_month"]),
		Type:            strings.TrimSpace(row["type"]),
		RawCategory:     strings.TrimSpace(row["raw_category"]),
		Amount:          amount,
		Note:            row["note"],
		CreatedAt:       strings.TrimSpace(row["created_at"]),
	}
}

func movementToRow(m core.Movement) tabular.Row {
	return tabular.Row{
		"id":               m.ID,
		"date":             m.Date,
		"accounting_month": m.AccountingMonth,
		"type":             m.Type,
		"raw_category":     m.RawCategory,
		"amount":           formatAmount(m.Amount),
		"note":             m.Note,
		"created_at":       m.CreatedAt,
	}
}

// parseAmount tolerates a decimal comma, as spreadsheet locales produce.
func parseAmount(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func formatAmount(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
