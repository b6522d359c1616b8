package resolve

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DateLayout is the date format used in habit entries and configuration.
const DateLayout = "2006-01-02"

// HabitType is the kind of value a habit records.
type HabitType string

const (
	HabitBoolean HabitType = "boolean"
	HabitNumber  HabitType = "number"
	HabitText    HabitType = "text"
	HabitRating  HabitType = "rating"
)

// ParseHabitType maps a string to a habit type. Unknown strings are boolean.
func ParseHabitType(s string) HabitType {
	switch HabitType(strings.ToLower(s)) {
	case HabitNumber:
		return HabitNumber
	case HabitText:
		return HabitText
	case HabitRating:
		return HabitRating
	default:
		return HabitBoolean
	}
}

// Habit describes a tracked habit.
type Habit struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Type        HabitType `json:"habit_type"`
	Unit        string    `json:"unit,omitempty"`
	Color       string    `json:"color,omitempty"`
	Target      float64   `json:"target_value,omitempty"`
	Archived    bool      `json:"archived"`
}

// HabitEntry is one logged value.
type HabitEntry struct {
	ID      int64  `json:"id"`
	HabitID int64  `json:"habit_id"`
	Date    string `json:"date"`
	Value   string `json:"value"`
}

// HabitWithEntries pairs a habit with its entries by date.
type HabitWithEntries struct {
	Habit   Habit                 `json:"habit"`
	Entries map[string]HabitEntry `json:"entries_by_date"`
}

// Value returns the value logged on date, or "".
func (h HabitWithEntries) Value(date string) string {
	return h.Entries[date].Value
}

// Done reports whether the habit counts as completed on date.
func (h HabitWithEntries) Done(date string) bool {
	v := h.Value(date)
	switch h.Habit.Type {
	case HabitBoolean:
		return v == "true" || v == "1" || v == "yes"
	case HabitNumber:
		if h.Habit.Target > 0 {
			var n float64
			if _, err := fmt.Sscanf(v, "%g", &n); err != nil {
				return false
			}
			return n >= h.Habit.Target
		}
	}
	return v != ""
}

// HabitView is the layout of a habit block.
type HabitView string

const (
	HabitViewTable    HabitView = "table"
	HabitViewCalendar HabitView = "calendar"
	HabitViewStreak   HabitView = "streak"
	HabitViewList     HabitView = "list"
)

// DateRange is a date range preset.
type DateRange string

const (
	RangeSingleDay  DateRange = "single_day"
	RangeLast7Days  DateRange = "last_7_days"
	RangeLast30Days DateRange = "last_30_days"
	RangeThisWeek   DateRange = "this_week"
	RangeThisMonth  DateRange = "this_month"
	RangeCustom     DateRange = "custom"
)

// HabitConfig is the parsed body of a habit block.
type HabitConfig struct {
	Habits      []string  `yaml:"habits" json:"habits"`
	View        HabitView `yaml:"view" json:"view"`
	Orientation string    `yaml:"orientation" json:"orientation"`
	DateRange   DateRange `yaml:"date_range" json:"date_range"`
	Date        string    `yaml:"date" json:"date,omitempty"`
	StartDate   string    `yaml:"start_date" json:"start_date,omitempty"`
	EndDate     string    `yaml:"end_date" json:"end_date,omitempty"`
	Editable    *bool     `yaml:"editable" json:"editable,omitempty"`
	ShowSummary *bool     `yaml:"show_summary" json:"show_summary,omitempty"`
}

// IsEditable reports whether cells accept edits. Defaults to true.
func (c *HabitConfig) IsEditable() bool {
	return c.Editable == nil || *c.Editable
}

// Summary reports whether the summary row is shown. Defaults to true.
func (c *HabitConfig) Summary() bool {
	return c.ShowSummary == nil || *c.ShowSummary
}

// Vertical reports the vertical table orientation.
func (c *HabitConfig) Vertical() bool {
	return strings.EqualFold(c.Orientation, "vertical")
}

// ParseHabitConfig parses and validates the YAML body of a habit block.
func ParseHabitConfig(body string) (*HabitConfig, error) {
	var cfg HabitConfig
	if strings.TrimSpace(body) != "" {
		if err := yaml.Unmarshal([]byte(body), &cfg); err != nil {
			return nil, &ConfigError{Err: fmt.Errorf("%w: %v", ErrInvalidConfig, err)}
		}
	}
	if cfg.View == "" {
		cfg.View = HabitViewTable
	}
	if cfg.DateRange == "" {
		cfg.DateRange = RangeLast7Days
	}
	if cfg.Orientation == "" {
		cfg.Orientation = "horizontal"
	}

	switch cfg.View {
	case HabitViewTable, HabitViewCalendar, HabitViewStreak, HabitViewList:
	default:
		return nil, &ConfigError{Field: "view", Err: fmt.Errorf("%w: %q", ErrInvalidConfig, cfg.View)}
	}
	switch cfg.DateRange {
	case RangeSingleDay, RangeLast7Days, RangeLast30Days, RangeThisWeek, RangeThisMonth:
	case RangeCustom:
		if cfg.StartDate == "" || cfg.EndDate == "" {
			return nil, &ConfigError{Field: "date_range", Err: fmt.Errorf("%w: custom range needs start_date and end_date", ErrInvalidConfig)}
		}
	default:
		return nil, &ConfigError{Field: "date_range", Err: fmt.Errorf("%w: %q", ErrInvalidConfig, cfg.DateRange)}
	}
	for _, f := range []struct{ name, v string }{{"date", cfg.Date}, {"start_date", cfg.StartDate}, {"end_date", cfg.EndDate}} {
		if f.v == "" {
			continue
		}
		if _, err := time.Parse(DateLayout, f.v); err != nil {
			return nil, &ConfigError{Field: f.name, Err: fmt.Errorf("%w: %v", ErrInvalidConfig, err)}
		}
	}
	return &cfg, nil
}

// Range computes the concrete start and end dates for the configuration.
// today is used when no reference date is set.
func (c *HabitConfig) Range(today time.Time) (start, end time.Time) {
	ref := today
	if c.Date != "" {
		if d, err := time.Parse(DateLayout, c.Date); err == nil {
			ref = d
		}
	}
	ref = time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)

	switch c.DateRange {
	case RangeSingleDay:
		return ref, ref
	case RangeLast30Days:
		return ref.AddDate(0, 0, -29), ref
	case RangeThisWeek:
		offset := (int(ref.Weekday()) + 6) % 7
		start = ref.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 6)
	case RangeThisMonth:
		start = time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, -1)
	case RangeCustom:
		s, err1 := time.Parse(DateLayout, c.StartDate)
		e, err2 := time.Parse(DateLayout, c.EndDate)
		if err1 == nil && err2 == nil && !e.Before(s) {
			return s, e
		}
	}
	return ref.AddDate(0, 0, -6), ref
}

// Dates lists every date from start to end inclusive.
func Dates(start, end time.Time) []string {
	var out []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(DateLayout))
	}
	return out
}

// HabitResult is the response to a habit block.
type HabitResult struct {
	Habits     []HabitWithEntries `json:"habits"`
	RangeStart string             `json:"date_range_start"`
	RangeEnd   string             `json:"date_range_end"`
	Error      string             `json:"error,omitempty"`
}

// Dates lists the dates of the result's range.
func (r *HabitResult) Dates() []string {
	s, err1 := time.Parse(DateLayout, r.RangeStart)
	e, err2 := time.Parse(DateLayout, r.RangeEnd)
	if err1 != nil || err2 != nil {
		return nil
	}
	return Dates(s, e)
}

// Clone returns a deep copy, so optimistic edits never touch cached values.
func (r *HabitResult) Clone() *HabitResult {
	out := *r
	out.Habits = make([]HabitWithEntries, len(r.Habits))
	for i, h := range r.Habits {
		entries := make(map[string]HabitEntry, len(h.Entries))
		for k, v := range h.Entries {
			entries[k] = v
		}
		out.Habits[i] = HabitWithEntries{Habit: h.Habit, Entries: entries}
	}
	return &out
}
