package event

import (
	"log/slog"
	"reflect"
	"slices"
	"sync"
)

// Wildcard is the reserved event name whose observers receive every event.
const Wildcard = "*"

// Subject is the reference handed to observers alongside each event.
// The entity store passes itself.
type Subject any

// Observer reacts to events delivered by a Dispatcher.
//
// Returning an error aborts the remaining deliveries of that Notify call and
// surfaces the error to its caller.
type Observer interface {
	Update(subject Subject, name string, data any) error
}

// ObserverFunc adapts a function to the Observer interface.
//
// Func values are not comparable, so attach a *ObserverFunc when the observer
// needs to be detached later:
//
//	fn := event.ObserverFunc(func(s event.Subject, name string, data any) error { ... })
//	d.Attach(&fn, "entity:created")
//	d.Detach(&fn, "entity:created")
type ObserverFunc func(subject Subject, name string, data any) error

// Update calls f.
func (f ObserverFunc) Update(subject Subject, name string, data any) error {
	return f(subject, name, data)
}

// Dispatcher owns the registration table: event name to an ordered list of
// observers, plus the wildcard bucket.
//
// Delivery order for Notify(name) is the bucket for name in attach order,
// then the wildcard bucket in attach order.
//
// Thread-safety: the table may be read and changed from several goroutines.
// The lock is held only to snapshot or mutate the table, never while an
// observer runs, so observers may call Attach, Detach or Notify on the same
// dispatcher. Concurrent Notify calls are not ordered relative to each other.
type Dispatcher struct {
	mu      sync.Mutex
	subject Subject
	buckets map[string][]Observer
}

// New creates a dispatcher whose notifications carry subject.
func New(subject Subject) *Dispatcher {
	return &Dispatcher{
		subject: subject,
		buckets: make(map[string][]Observer),
	}
}

// SetSubject replaces the subject passed to observers. Used by owners that
// must construct the dispatcher before themselves.
func (d *Dispatcher) SetSubject(subject Subject) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subject = subject
}

// Attach appends o to the bucket of each named event. With no names, o is
// attached to the wildcard bucket.
//
// There is no deduplication: attaching the same observer twice to the same
// event delivers to it twice per matching Notify.
func (d *Dispatcher) Attach(o Observer, names ...string) {
	if o == nil {
		return
	}
	if len(names) == 0 {
		names = []string{Wildcard}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, name := range names {
		name = normalize(name)
		d.buckets[name] = append(d.buckets[name], o)
	}
}

// Detach removes one registration of o from the bucket of each named event.
// With no names, the wildcard bucket is used.
//
// Only the named bucket is searched. A registration of o under any other
// name, including the wildcard, is untouched unless that name is passed.
// Detaching an observer that is not registered is a no-op.
func (d *Dispatcher) Detach(o Observer, names ...string) {
	if o == nil {
		return
	}
	if len(names) == 0 {
		names = []string{Wildcard}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, name := range names {
		name = normalize(name)
		bucket := d.buckets[name]
		i := slices.IndexFunc(bucket, func(x Observer) bool { return sameObserver(x, o) })
		if i < 0 {
			continue
		}
		next := slices.Delete(bucket, i, i+1)
		if len(next) == 0 {
			delete(d.buckets, name)
			continue
		}
		d.buckets[name] = next
	}
}

// Notify delivers (subject, name, data) to the observers of name, then to
// the wildcard observers, synchronously and in attach order. An empty name
// is the wildcard, in which case only the wildcard bucket is delivered.
//
// The delivery set is snapshotted before the first observer runs; attach or
// detach calls made by observers apply to later notifications only.
//
// The first observer error stops delivery and is returned as an
// *ObserverError.
func (d *Dispatcher) Notify(name string, data any) error {
	name = normalize(name)
	subject, targets := d.snapshot(name)

	slog.Debug("notify", "event", name, "observers", len(targets))

	for i, o := range targets {
		if err := o.Update(subject, name, data); err != nil {
			return &ObserverError{Event: name, Index: i, Err: err}
		}
	}
	return nil
}

// snapshot copies the delivery set for name under the lock.
func (d *Dispatcher) snapshot(name string) (Subject, []Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	specific := d.buckets[name]
	var wildcard []Observer
	if name != Wildcard {
		wildcard = d.buckets[Wildcard]
	}

	targets := make([]Observer, 0, len(specific)+len(wildcard))
	targets = append(targets, specific...)
	targets = append(targets, wildcard...)
	return d.subject, targets
}

// Observers returns a copy of the bucket for name, in attach order.
func (d *Dispatcher) Observers(name string) []Observer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.buckets[normalize(name)])
}

// Events returns the names that currently have at least one observer, sorted.
func (d *Dispatcher) Events() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	names := make([]string, 0, len(d.buckets))
	for name := range d.buckets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func normalize(name string) string {
	if name == "" {
		return Wildcard
	}
	return name
}

// sameObserver reports whether a and b are the same registration target.
// Observers whose dynamic type is not comparable (a bare ObserverFunc, for
// one) never match, where == would panic.
func sameObserver(a, b Observer) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
