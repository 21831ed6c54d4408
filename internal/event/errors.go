package event

import "fmt"

// ObserverError reports an observer that failed during Notify. Deliveries
// after Index were not made.
type ObserverError struct {
	// Event is the notified event name.
	Event string

	// Index is the failing observer's position in the delivery set
	// (specific bucket first, then wildcard).
	Index int

	// Err is the error the observer returned.
	Err error
}

func (e *ObserverError) Error() string {
	return fmt.Sprintf("observer %d failed on %q: %v", e.Index, e.Event, e.Err)
}

func (e *ObserverError) Unwrap() error {
	return e.Err
}
