package widget

import (
	"strconv"

	"github.com/dshills/livemark/internal/resolve"
)

// ActionKind identifies what activating a view segment does.
type ActionKind uint8

const (
	ActToggleCallout ActionKind = iota
	ActSelectTab
	ActToggleFilter
	ActClearFilters
	ActToggleHabit
	ActSetHabit
	ActFollowLink
	ActToggleTask
)

// String returns the string representation of the action kind.
func (k ActionKind) String() string {
	switch k {
	case ActToggleCallout:
		return "fold"
	case ActSelectTab:
		return "tab"
	case ActToggleFilter:
		return "filter"
	case ActClearFilters:
		return "filters"
	case ActToggleHabit, ActSetHabit:
		return "habit"
	case ActFollowLink:
		return "link"
	case ActToggleTask:
		return "task"
	default:
		return "unknown"
	}
}

// Action is an interaction offered by a view.
type Action struct {
	ID   string
	Kind ActionKind

	// Index is the tab index for ActSelectTab.
	Index int

	// Key and Value are the filter property and value, or the habit value.
	Key   string
	Value string

	HabitID int64
	Date    string

	Link resolve.Link
}

// id returns the stable identifier of the action within its view.
func (a Action) id() string {
	switch a.Kind {
	case ActSelectTab:
		return "tab:" + strconv.Itoa(a.Index)
	case ActToggleFilter:
		return "filter:" + a.Key + "=" + a.Value
	case ActClearFilters:
		return "filters:clear"
	case ActToggleHabit:
		return "habit:" + strconv.FormatInt(a.HabitID, 10) + ":" + a.Date
	case ActSetHabit:
		return "habit:" + strconv.FormatInt(a.HabitID, 10) + ":" + a.Date + "=" + a.Value
	case ActFollowLink:
		if a.Link.ID != 0 {
			return "link:" + a.Link.Path + "#" + strconv.FormatInt(a.Link.ID, 10)
		}
		return "link:" + a.Link.Path
	default:
		return a.Kind.String()
	}
}
