package core

import (
	"sort"
	"strings"
)

// Movement labels as they appear in the backing sheet. The store predates
// this service, so the localized labels are part of the data format.
const (
	TypeIncome  = "Ingreso"
	TypeExpense = "Gasto"
)

// UncategorizedBucket collects expenses whose raw category has no active
// mapping.
const UncategorizedBucket = "Uncategorized"

type (
	// Movement is one ledger entry. Amount is a non-negative magnitude;
	// the sign is implied by Type.
	Movement struct {
		ID              string  `json:"id"`
		Date            string  `json:"date"`             // YYYY-MM-DD
		AccountingMonth string  `json:"accounting_month"` // YYYY-MM
		Type            string  `json:"type"`
		RawCategory     string  `json:"raw_category"`
		Amount          float64 `json:"amount"`
		Note            string  `json:"note"`
		CreatedAt       string  `json:"created_at"` // ISO instant, sort key only
	}

	// CategoryMapping maps a free-text raw category to a standard name and
	// an aggregation bucket.
	CategoryMapping struct {
		Raw      string `json:"raw"`
		Standard string `json:"std"`
		Bucket   string `json:"bucket"`
	}

	// BudgetLimit is an optional monthly spending cap per bucket.
	BudgetLimit struct {
		Bucket       string  `json:"bucket"`
		MonthlyLimit float64 `json:"monthlyLimit"`
	}

	// Summary is the monthly aggregation returned by the ledger service.
	Summary struct {
		Month          string             `json:"month"`
		Income         float64            `json:"income"`
		Expense        float64            `json:"expense"`
		Net            float64            `json:"net"`
		BucketTotals   map[string]float64 `json:"bucketTotals"`
		StartingTotal  float64            `json:"startingTotal"`
		GoalBase       float64            `json:"goalBase"`
		ProjectedTotal float64            `json:"projectedTotal"`
	}
)

// IsIncome reports whether the movement counts as income. Anything that is
// not the income label is treated as expense-like, so a typo'd type lands on
// the expense side.
func (m Movement) IsIncome() bool {
	return strings.EqualFold(strings.TrimSpace(m.Type), TypeIncome)
}

// SortByCreatedAtDesc orders movements newest first. The sort is stable so
// that movements created in the same millisecond keep their store order.
func SortByCreatedAtDesc(movs []Movement) {
	sort.SliceStable(movs, func(i, j int) bool {
		return movs[i].CreatedAt > movs[j].CreatedAt
	})
}

// SortMappings orders category mappings by raw category, case-insensitively,
// for presentation as a selectable list.
func SortMappings(maps []CategoryMapping) {
	sort.SliceStable(maps, func(i, j int) bool {
		return strings.ToLower(maps[i].Raw) < strings.ToLower(maps[j].Raw)
	})
}
