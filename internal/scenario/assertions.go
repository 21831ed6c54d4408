package scenario

import (
	"fmt"
	"strings"

	"github.com/roach88/userwatch/internal/attr"
	"github.com/roach88/userwatch/internal/entity"
)

// AssertionError is returned when an assertion fails.
// It carries the trace to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] step %d %s -> %s\n", i+1, ev.Step, ev.Event, ev.Observer)
		}
	}
	return buf.String()
}

func evaluate(a Assertion, res *Result, refs map[string]string) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(res.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(res.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(res.Trace, a)
	case AssertFinalEntity:
		return assertFinalEntity(res.Final, a, refs)
	case AssertFinalCount:
		return assertFinalCount(res.Final, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func matches(ev TraceEvent, event, observer string) bool {
	return ev.Event == event && (observer == "" || ev.Observer == observer)
}

func describe(event, observer string) string {
	if observer == "" {
		return event
	}
	return fmt.Sprintf("%s to %s", event, observer)
}

// assertTraceContains checks that at least one matching delivery happened.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if matches(ev, a.Event, a.Observer) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describe(a.Event, a.Observer),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first delivery of each event appears in
// the given order. Intervening deliveries are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, ev := range trace {
		for _, want := range a.Events {
			if matches(ev, want, a.Observer) && positions[want] == 0 {
				positions[want] = i + 1
			}
		}
	}

	for _, want := range a.Events {
		if positions[want] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all events present: %v", a.Events),
				Actual:   fmt.Sprintf("missing event: %s", want),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Events); i++ {
		prev, curr := a.Events[i-1], a.Events[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", a.Events),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks the exact number of matching deliveries.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if matches(ev, a.Event, a.Observer) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d deliveries of %s", a.Count, describe(a.Event, a.Observer)),
			Actual:   fmt.Sprintf("%d deliveries", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalEntity checks that an entity exists and holds the given
// attributes (subset semantics).
func assertFinalEntity(final []entity.Entity, a Assertion, refs map[string]string) error {
	id := a.ID
	if a.Ref != "" {
		id = refs[a.Ref]
	}

	want, err := attr.FromMap(a.Attrs)
	if err != nil {
		return fmt.Errorf("final_entity: %w", err)
	}

	for _, e := range final {
		if e.ID != id {
			continue
		}
		for _, k := range want.SortedKeys() {
			got, ok := e.Get(k)
			if !ok || got != want[k] {
				return &AssertionError{
					Type:     AssertFinalEntity,
					Expected: fmt.Sprintf("entity %s with %s=%s", id, k, attr.Format(want[k])),
					Actual:   e.String(),
				}
			}
		}
		return nil
	}

	return &AssertionError{
		Type:     AssertFinalEntity,
		Expected: fmt.Sprintf("entity %s", id),
		Actual:   "not found",
	}
}

// assertFinalCount checks the size of the final collection.
func assertFinalCount(final []entity.Entity, a Assertion) error {
	if len(final) != a.Count {
		return &AssertionError{
			Type:     AssertFinalCount,
			Expected: fmt.Sprintf("%d entities", a.Count),
			Actual:   fmt.Sprintf("%d entities", len(final)),
		}
	}
	return nil
}
