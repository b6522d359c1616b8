package resolve

import (
	"sort"
	"strings"
	"time"
)

// Match reports whether item satisfies filter.
func Match(item Item, f Filter) bool {
	switch f.Operator {
	case OpExists:
		return item.HasProp(f.Key)
	case OpNotExists:
		return !item.HasProp(f.Key)
	}
	if !item.HasProp(f.Key) {
		return f.Operator == OpNotEquals
	}

	value := item.Prop(f.Key)
	want := f.Value
	switch f.Operator {
	case OpEquals:
		return strings.EqualFold(value, want)
	case OpNotEquals:
		return !strings.EqualFold(value, want)
	case OpContains:
		for _, v := range item.PropList(f.Key) {
			if strings.Contains(strings.ToLower(v), strings.ToLower(want)) {
				return true
			}
		}
		return false
	case OpStartsWith:
		return strings.HasPrefix(strings.ToLower(value), strings.ToLower(want))
	case OpEndsWith:
		return strings.HasSuffix(strings.ToLower(value), strings.ToLower(want))
	case OpContainsAll, OpContainsAny:
		have := make(map[string]bool)
		for _, v := range item.PropList(f.Key) {
			have[strings.ToLower(strings.TrimSpace(v))] = true
		}
		wants := splitList(want)
		for _, w := range wants {
			ok := have[strings.ToLower(w)]
			if f.Operator == OpContainsAny && ok {
				return true
			}
			if f.Operator == OpContainsAll && !ok {
				return false
			}
		}
		return f.Operator == OpContainsAll && len(wants) > 0
	case OpDateOn, OpDateBefore, OpDateAfter, OpDateOnOrBefore, OpDateOnOrAfter:
		return matchDate(value, want, f.Operator)
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// matchDate compares the date part of value against want. "today" is
// accepted as want.
func matchDate(value, want string, op Operator) bool {
	if len(value) >= len(DateLayout) {
		value = value[:len(DateLayout)]
	}
	v, err := time.Parse(DateLayout, value)
	if err != nil {
		return false
	}
	var w time.Time
	if strings.EqualFold(want, "today") {
		now := time.Now()
		w = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	} else if w, err = time.Parse(DateLayout, want); err != nil {
		return false
	}

	switch op {
	case OpDateOn:
		return v.Equal(w)
	case OpDateBefore:
		return v.Before(w)
	case OpDateAfter:
		return v.After(w)
	case OpDateOnOrBefore:
		return !v.After(w)
	case OpDateOnOrAfter:
		return !v.Before(w)
	}
	return false
}

// MatchAllFilters combines filters by mode. An empty filter list matches.
func MatchAllFilters(item Item, filters []Filter, mode MatchMode) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		ok := Match(item, f)
		if mode == MatchAny && ok {
			return true
		}
		if mode != MatchAny && !ok {
			return false
		}
	}
	return mode != MatchAny
}

// Execute runs spec over items: type and completion filtering, property
// filters, sort and limit. It returns the page and the total match count.
func Execute(items []Item, spec QuerySpec) ([]Item, int) {
	var out []Item
	for _, it := range items {
		switch spec.ResultType {
		case ResultTasks:
			if it.Type != ItemTask {
				continue
			}
		case ResultNotes:
			if it.Type != ItemNote {
				continue
			}
		}
		if it.Type == ItemTask && !spec.IncludeCompleted && it.Prop("completed") == "true" {
			continue
		}
		if !MatchAllFilters(it, spec.Filters, spec.MatchMode) {
			continue
		}
		out = append(out, it)
	}

	if s := spec.View.Sort; s != nil && s.Property != "" {
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i].Prop(s.Property), out[j].Prop(s.Property)
			if s.Desc() {
				return a > b
			}
			return a < b
		})
	}

	total := len(out)
	if spec.Limit > 0 && len(out) > spec.Limit {
		out = out[:spec.Limit]
	}
	return out, total
}
