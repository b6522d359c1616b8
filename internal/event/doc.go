// Package event provides the topic-based bus that carries external state
// changes into livemark.
//
// # Topics
//
// Topics use dot notation:
//
//	note.saved
//	note.property.changed
//	habit.entry.logged
//	config.reloaded
//
// Subscriptions may use wildcards. "*" matches exactly one segment and
// "**" matches zero or more:
//
//	note.*      matches note.saved (not note.property.changed)
//	note.**     matches note.saved and note.property.changed
//	**          matches everything
//
// # Delivery
//
// Delivery is synchronous in the publisher's goroutine, in subscription
// order. A panicking handler is recovered and reported as a *PanicError; the
// remaining handlers still run.
package event
