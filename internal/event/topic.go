package event

import "strings"

// Topic is a hierarchical event type using dot notation.
type Topic string

// Topics published by livemark and its collaborators.
const (
	TopicNoteSaved       Topic = "note.saved"
	TopicPropertyChanged Topic = "note.property.changed"
	TopicHabitLogged     Topic = "habit.entry.logged"
	TopicConfigReloaded  Topic = "config.reloaded"
)

// Wildcard segments.
const (
	WildcardSingle = "*"
	WildcardMulti  = "**"
	Separator      = "."
)

// String returns the topic as a string.
func (t Topic) String() string {
	return string(t)
}

// Segments returns the topic split by the separator.
func (t Topic) Segments() []string {
	if t == "" {
		return nil
	}
	return strings.Split(string(t), Separator)
}

// IsWildcard reports whether the topic contains a wildcard segment.
func (t Topic) IsWildcard() bool {
	return strings.Contains(string(t), WildcardSingle)
}

// IsValid reports whether the topic is non-empty and has no empty segments.
func (t Topic) IsValid() bool {
	if t == "" {
		return false
	}
	for _, seg := range t.Segments() {
		if seg == "" {
			return false
		}
	}
	return true
}

// Matches reports whether t matches pattern.
func (t Topic) Matches(pattern Topic) bool {
	return matchSegments(t.Segments(), pattern.Segments())
}

func matchSegments(topic, pattern []string) bool {
	ti := 0
	for pi := 0; pi < len(pattern); pi++ {
		switch pattern[pi] {
		case WildcardMulti:
			for ; ti <= len(topic); ti++ {
				if matchSegments(topic[ti:], pattern[pi+1:]) {
					return true
				}
			}
			return false
		case WildcardSingle:
			if ti >= len(topic) {
				return false
			}
		default:
			if ti >= len(topic) || pattern[pi] != topic[ti] {
				return false
			}
		}
		ti++
	}
	return ti == len(topic)
}
