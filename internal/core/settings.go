package core

import (
	"strconv"
	"strings"
)

// Settings keys as stored in the Settings table. The key names predate this
// service and are kept for compatibility with existing spreadsheets.
const (
	SettingDaySwitch     = "contable_day_switch"
	SettingWritesEnabled = "writes_enabled"
	SettingStartingTotal = "starting_total"
	SettingGoalBase      = "goal_base"
)

// Settings is the flat key→value configuration read fresh on every request.
// The store is the source of truth and may be edited out-of-band, so there
// is no cross-request cache.
type Settings map[string]string

// WithDefaults returns a copy with the documented defaults filled in for
// absent keys.
func (s Settings) WithDefaults() Settings {
	out := make(Settings, len(s)+4)
	for k, v := range s {
		out[k] = v
	}
	if out[SettingDaySwitch] == "" {
		out[SettingDaySwitch] = "10"
	}
	if out[SettingWritesEnabled] == "" {
		out[SettingWritesEnabled] = "TRUE"
	}
	if out[SettingStartingTotal] == "" {
		out[SettingStartingTotal] = "2500"
	}
	if out[SettingGoalBase] == "" {
		out[SettingGoalBase] = "5000"
	}
	return out
}

// DaySwitch returns the accounting cutover day, falling back to the default
// when the stored value is not a usable day of month.
func (s Settings) DaySwitch() int {
	if d, err := strconv.Atoi(strings.TrimSpace(s[SettingDaySwitch])); err == nil && d >= 1 && d <= 31 {
		return d
	}
	return 10
}

// WritesEnabled reports whether mutations are allowed.
func (s Settings) WritesEnabled() bool {
	return strings.ToUpper(strings.TrimSpace(s[SettingWritesEnabled])) == "TRUE"
}

// StartingTotal is the balance the monthly projection starts from.
func (s Settings) StartingTotal() float64 {
	return s.floatValue(SettingStartingTotal, 0)
}

// GoalBase is the savings-goal reference amount.
func (s Settings) GoalBase() float64 {
	return s.floatValue(SettingGoalBase, 5000)
}

func (s Settings) floatValue(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(strings.TrimSpace(s[key]), 64); err == nil {
		return f
	}
	return fallback
}
