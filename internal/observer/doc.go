// Package observer holds the reference collaborators that react to entity
// events: a timestamped log file, a mail notifier, and the SQLite journal.
//
// Each sink is an event.Observer and is attached by the caller with
// whatever event filter it wants; the store treats them all alike.
package observer
