package testutil

import (
	"errors"
	"sync"

	"github.com/roach88/userwatch/internal/event"
)

// Delivery is one observer invocation captured by a Recorder.
type Delivery struct {
	Observer string
	Subject  event.Subject
	Event    string
	Data     any
}

// Log collects deliveries from several recorders in the order they happened.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type Log struct {
	mu         sync.Mutex
	deliveries []Delivery
}

// NewLog creates an empty delivery log.
func NewLog() *Log {
	return &Log{}
}

func (l *Log) add(d Delivery) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deliveries = append(l.deliveries, d)
}

// Deliveries returns a copy of everything recorded so far.
func (l *Log) Deliveries() []Delivery {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Delivery, len(l.deliveries))
	copy(out, l.deliveries)
	return out
}

// Observers returns the observer names in delivery order.
func (l *Log) Observers() []string {
	ds := l.Deliveries()
	names := make([]string, len(ds))
	for i, d := range ds {
		names[i] = d.Observer
	}
	return names
}

// Reset discards all recorded deliveries.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deliveries = nil
}

// Recorder is an event.Observer that appends every delivery to a Log.
//
// Recorders are compared by pointer, so two recorders with the same name
// are still distinct registrations.
type Recorder struct {
	Name string
	log  *Log

	// Err, when set, is returned from every Update after recording.
	Err error

	// OnUpdate, when set, runs after recording and before returning.
	// Tests use it to re-enter the dispatcher mid-delivery.
	OnUpdate func(subject event.Subject, name string, data any)
}

// NewRecorder creates a recorder that writes to log.
func NewRecorder(name string, log *Log) *Recorder {
	return &Recorder{Name: name, log: log}
}

// Update implements event.Observer.
func (r *Recorder) Update(subject event.Subject, name string, data any) error {
	r.log.add(Delivery{Observer: r.Name, Subject: subject, Event: name, Data: data})
	if r.OnUpdate != nil {
		r.OnUpdate(subject, name, data)
	}
	return r.Err
}

// ErrInjected is a convenience error for failing recorders.
var ErrInjected = errors.New("injected observer failure")
