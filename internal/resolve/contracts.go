package resolve

import "context"

// QueryResolver executes the raw body of a query block.
type QueryResolver interface {
	ResolveQuery(ctx context.Context, raw string) (*QueryResult, error)
}

// HabitResolver executes the raw body of a habit block.
type HabitResolver interface {
	ResolveHabits(ctx context.Context, raw string) (*HabitResult, error)
}

// EmbedResolver resolves a note or media target.
type EmbedResolver interface {
	ResolveEmbed(ctx context.Context, req EmbedRequest) (*EmbedResult, error)
}

// Mutator applies writes requested by interactive widgets.
type Mutator interface {
	ToggleHabit(ctx context.Context, habitID int64, date string) error
	SetHabitEntry(ctx context.Context, habitID int64, date, value string) error
	SetNoteProperty(ctx context.Context, noteID int64, key, value, typ string) error
}

// Link identifies a navigation target.
type Link struct {
	ID    int64  `json:"id,omitempty"`
	Path  string `json:"path"`
	Title string `json:"title,omitempty"`
}

// Navigator follows links on user activation. The engine never navigates itself.
type Navigator interface {
	FollowLink(ctx context.Context, link Link) error
}

// Edit replaces [From, To) of the document version it was computed against.
type Edit struct {
	From    int    `json:"from"`
	To      int    `json:"to"`
	Text    string `json:"text"`
	Version uint64 `json:"version"`
}

// Editor applies document edits. The engine never mutates text itself.
type Editor interface {
	ApplyEdit(ctx context.Context, edit Edit) error
}

// Collaborators bundles every contract. Nil members disable the features
// that need them.
type Collaborators struct {
	Query     QueryResolver
	Habits    HabitResolver
	Embeds    EmbedResolver
	Mutations Mutator
	Navigator Navigator
	Editor    Editor
}

// Full wraps one value that implements every contract.
func Full(v interface {
	QueryResolver
	HabitResolver
	EmbedResolver
	Mutator
	Navigator
	Editor
}) Collaborators {
	return Collaborators{
		Query:     v,
		Habits:    v,
		Embeds:    v,
		Mutations: v,
		Navigator: v,
		Editor:    v,
	}
}
