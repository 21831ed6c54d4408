// Package event implements the in-process observer dispatcher.
//
// Observers register against event names, or against Wildcard to hear
// everything. Notify delivers synchronously on the caller's goroutine:
//
//	d := event.New(subject)
//	d.Attach(auditor)                    // wildcard
//	d.Attach(mailer, "entity:created")   // one event
//	err := d.Notify("entity:created", u) // mailer, then auditor
//
// # Ordering
//
// The delivery set for an event is its own bucket followed by the wildcard
// bucket, each in attach order. Notifying Wildcard itself delivers the
// wildcard bucket once.
//
// # Failure
//
// Observers are not isolated from each other. The first error stops delivery
// and is returned wrapped in *ObserverError.
package event
