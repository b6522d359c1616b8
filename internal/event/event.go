package event

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is one external state change.
type Event struct {
	ID      string
	Topic   Topic
	Payload any
	Source  string
	Time    time.Time
}

// New creates an event with a fresh ID and the current time.
func New(t Topic, payload any, source string) Event {
	return Event{
		ID:      uuid.NewString(),
		Topic:   t,
		Payload: payload,
		Source:  source,
		Time:    time.Now(),
	}
}

// NoteSaved is the payload of TopicNoteSaved.
type NoteSaved struct {
	// Path is the vault-relative path of the note, with extension.
	Path string
}

// Targets returns the embed targets that may refer to the note: its path
// without extension and its base name.
func (n NoteSaved) Targets() []string {
	p := strings.TrimSuffix(n.Path, path.Ext(n.Path))
	base := path.Base(p)
	if base == p {
		return []string{p}
	}
	return []string{p, base}
}

// PropertyChanged is the payload of TopicPropertyChanged.
type PropertyChanged struct {
	NoteID string
	Key    string
}

// HabitLogged is the payload of TopicHabitLogged.
type HabitLogged struct {
	HabitID string
	Date    string
}

// ConfigReloaded is the payload of TopicConfigReloaded. Config holds the new
// configuration value; its concrete type belongs to the publisher.
type ConfigReloaded struct {
	Path   string
	Config any
}

// NoteSavedEvent builds a TopicNoteSaved event.
func NoteSavedEvent(p string) Event {
	return New(TopicNoteSaved, NoteSaved{Path: p}, "host")
}

// PropertyChangedEvent builds a TopicPropertyChanged event.
func PropertyChangedEvent(noteID, key string) Event {
	return New(TopicPropertyChanged, PropertyChanged{NoteID: noteID, Key: key}, "host")
}

// HabitLoggedEvent builds a TopicHabitLogged event.
func HabitLoggedEvent(habitID, date string) Event {
	return New(TopicHabitLogged, HabitLogged{HabitID: habitID, Date: date}, "host")
}
