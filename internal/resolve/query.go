package resolve

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"gopkg.in/yaml.v3"
)

// Operator is a property filter operator.
type Operator string

// Supported operators.
const (
	OpExists         Operator = "exists"
	OpNotExists      Operator = "not_exists"
	OpEquals         Operator = "equals"
	OpNotEquals      Operator = "not_equals"
	OpContains       Operator = "contains"
	OpStartsWith     Operator = "starts_with"
	OpEndsWith       Operator = "ends_with"
	OpContainsAll    Operator = "contains_all"
	OpContainsAny    Operator = "contains_any"
	OpDateOn         Operator = "date_on"
	OpDateBefore     Operator = "date_before"
	OpDateAfter      Operator = "date_after"
	OpDateOnOrBefore Operator = "date_on_or_before"
	OpDateOnOrAfter  Operator = "date_on_or_after"
)

var operators = map[Operator]bool{
	OpExists: true, OpNotExists: true, OpEquals: true, OpNotEquals: true,
	OpContains: true, OpStartsWith: true, OpEndsWith: true,
	OpContainsAll: true, OpContainsAny: true,
	OpDateOn: true, OpDateBefore: true, OpDateAfter: true,
	OpDateOnOrBefore: true, OpDateOnOrAfter: true,
}

// Valid reports whether op is supported.
func (op Operator) Valid() bool {
	return operators[op]
}

// NeedsValue reports whether the operator compares against a value.
func (op Operator) NeedsValue() bool {
	return op != OpExists && op != OpNotExists
}

// Filter is one property condition.
type Filter struct {
	Key      string   `yaml:"key" json:"key"`
	Operator Operator `yaml:"operator" json:"operator"`
	Value    string   `yaml:"value,omitempty" json:"value,omitempty"`
}

// MatchMode combines filters.
type MatchMode string

const (
	MatchAll MatchMode = "all"
	MatchAny MatchMode = "any"
)

// ResultType selects what a query returns.
type ResultType string

const (
	ResultTasks ResultType = "tasks"
	ResultNotes ResultType = "notes"
	ResultBoth  ResultType = "both"
)

// ViewType is the layout of query results.
type ViewType string

const (
	ViewTable  ViewType = "table"
	ViewList   ViewType = "list"
	ViewKanban ViewType = "kanban"
	ViewCard   ViewType = "card"
)

// Sort orders results by a property.
type Sort struct {
	Property  string `yaml:"property" json:"property"`
	Direction string `yaml:"direction" json:"direction"`
}

// Desc reports a descending sort.
func (s *Sort) Desc() bool {
	return s != nil && strings.EqualFold(s.Direction, "desc")
}

// KanbanConfig configures the kanban layout.
type KanbanConfig struct {
	GroupBy           string   `yaml:"group_by" json:"group_by"`
	CardFields        []string `yaml:"card_fields" json:"card_fields"`
	ShowUncategorized *bool    `yaml:"show_uncategorized" json:"show_uncategorized,omitempty"`
}

// Uncategorized reports whether items without the group property get a column.
func (k *KanbanConfig) Uncategorized() bool {
	return k.ShowUncategorized == nil || *k.ShowUncategorized
}

// CardConfig configures the card layout.
type CardConfig struct {
	CoverProperty string   `yaml:"cover_property" json:"cover_property,omitempty"`
	DisplayFields []string `yaml:"display_fields" json:"display_fields"`
	Columns       int      `yaml:"columns" json:"columns"`
}

// ViewConfig selects and configures a layout.
type ViewConfig struct {
	Type    ViewType      `yaml:"view_type" json:"view_type"`
	Columns []string      `yaml:"columns" json:"columns"`
	Sort    *Sort         `yaml:"sort" json:"sort,omitempty"`
	Kanban  *KanbanConfig `yaml:"kanban" json:"kanban,omitempty"`
	Card    *CardConfig   `yaml:"card" json:"card,omitempty"`
}

// QuerySpec is the part of a query shared by the block and its tabs.
type QuerySpec struct {
	Filters          []Filter   `yaml:"filters" json:"filters"`
	MatchMode        MatchMode  `yaml:"match_mode" json:"match_mode"`
	ResultType       ResultType `yaml:"result_type" json:"result_type"`
	IncludeCompleted bool       `yaml:"include_completed" json:"include_completed"`
	Limit            int        `yaml:"limit" json:"limit"`
	View             ViewConfig `yaml:"view" json:"view"`
}

// Tab is a named sub-query.
type Tab struct {
	Name      string `yaml:"name" json:"name"`
	QuerySpec `yaml:",inline"`
}

// QueryConfig is the parsed body of a query block.
type QueryConfig struct {
	QuerySpec `yaml:",inline"`
	Tabs      []Tab `yaml:"tabs" json:"tabs,omitempty"`
}

// DefaultQueryLimit is used when a query sets no limit.
const DefaultQueryLimit = 50

func (q *QuerySpec) applyDefaults() {
	if q.MatchMode == "" {
		q.MatchMode = MatchAll
	}
	if q.ResultType == "" {
		q.ResultType = ResultTasks
	}
	if q.Limit <= 0 {
		q.Limit = DefaultQueryLimit
	}
	if q.View.Type == "" {
		q.View.Type = ViewTable
	}
	if q.View.Type == ViewKanban && q.View.Kanban == nil {
		q.View.Kanban = &KanbanConfig{GroupBy: "priority", CardFields: []string{"description", "due_date"}}
	}
	if q.View.Type == ViewCard && q.View.Card == nil {
		q.View.Card = &CardConfig{DisplayFields: []string{"description"}}
	}
}

func (q *QuerySpec) validate(path string) error {
	switch q.MatchMode {
	case MatchAll, MatchAny:
	default:
		return &ConfigError{Field: path + "match_mode", Err: fmt.Errorf("%w: %q", ErrInvalidConfig, q.MatchMode)}
	}
	switch q.ResultType {
	case ResultTasks, ResultNotes, ResultBoth:
	default:
		return &ConfigError{Field: path + "result_type", Err: fmt.Errorf("%w: %q", ErrInvalidConfig, q.ResultType)}
	}
	switch q.View.Type {
	case ViewTable, ViewList, ViewKanban, ViewCard:
	default:
		return &ConfigError{Field: path + "view.view_type", Err: fmt.Errorf("%w: %q", ErrInvalidConfig, q.View.Type)}
	}
	for i, f := range q.Filters {
		field := fmt.Sprintf("%sfilters[%d]", path, i)
		if f.Key == "" {
			return &ConfigError{Field: field + ".key", Err: fmt.Errorf("%w: empty key", ErrInvalidConfig)}
		}
		if !f.Operator.Valid() {
			return &ConfigError{Field: field + ".operator", Err: fmt.Errorf("%w: %q", ErrUnknownOperator, f.Operator)}
		}
	}
	return nil
}

// ParseQueryConfig parses and validates the YAML body of a query block.
func ParseQueryConfig(body string) (*QueryConfig, error) {
	var cfg QueryConfig
	if strings.TrimSpace(body) != "" {
		if err := yaml.Unmarshal([]byte(body), &cfg); err != nil {
			return nil, &ConfigError{Err: fmt.Errorf("%w: %v", ErrInvalidConfig, err)}
		}
	}
	cfg.applyDefaults()
	if err := cfg.validate(""); err != nil {
		return nil, err
	}
	for i := range cfg.Tabs {
		cfg.Tabs[i].applyDefaults()
		if err := cfg.Tabs[i].validate(fmt.Sprintf("tabs[%d].", i)); err != nil {
			return nil, err
		}
		if cfg.Tabs[i].Name == "" {
			cfg.Tabs[i].Name = fmt.Sprintf("Tab %d", i+1)
		}
	}
	return &cfg, nil
}

// ItemType discriminates query results.
type ItemType string

const (
	ItemTask ItemType = "task"
	ItemNote ItemType = "note"
)

// Item is one query result with a flat property bag.
//
// Props holds a JSON object. Task items carry description, completed,
// context, priority and due_date alongside the note's own properties.
type Item struct {
	Type  ItemType `json:"item_type"`
	ID    int64    `json:"id"`
	Path  string   `json:"path"`
	Title string   `json:"title"`
	Props string   `json:"properties"`
}

// Prop returns a property as a string, or "" when missing.
func (it Item) Prop(key string) string {
	return gjson.Get(it.Props, escapeKey(key)).String()
}

// HasProp reports whether the property is present.
func (it Item) HasProp(key string) bool {
	return gjson.Get(it.Props, escapeKey(key)).Exists()
}

// PropList returns a property as a list. Scalar values become one element.
func (it Item) PropList(key string) []string {
	r := gjson.Get(it.Props, escapeKey(key))
	if !r.Exists() {
		return nil
	}
	if r.IsArray() {
		var out []string
		for _, v := range r.Array() {
			out = append(out, v.String())
		}
		return out
	}
	return []string{r.String()}
}

// WithProp returns a copy of the item with key set to value.
func (it Item) WithProp(key string, value any) (Item, error) {
	props := it.Props
	if props == "" {
		props = "{}"
	}
	updated, err := sjson.Set(props, escapeKey(key), value)
	if err != nil {
		return it, err
	}
	it.Props = updated
	return it, nil
}

// Label returns the text that names the item: the task description or the
// note title, falling back to the path.
func (it Item) Label() string {
	if it.Type == ItemTask {
		if d := it.Prop("description"); d != "" {
			return d
		}
	}
	if it.Title != "" {
		return it.Title
	}
	return it.Path
}

// escapeKey escapes gjson path syntax in a property key.
func escapeKey(key string) string {
	if !strings.ContainsAny(key, `.*?|#@\`) {
		return key
	}
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// TabResult holds the results of one tab.
type TabResult struct {
	Name       string     `json:"name"`
	Items      []Item     `json:"results"`
	TotalCount int        `json:"total_count"`
	View       ViewConfig `json:"view"`
}

// QueryResult is the response to a query block.
type QueryResult struct {
	Items      []Item      `json:"results"`
	TotalCount int         `json:"total_count"`
	Tabs       []TabResult `json:"tab_results,omitempty"`
	Error      string      `json:"error,omitempty"`
}
