package scenario

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/roach88/userwatch/internal/attr"
	"github.com/roach88/userwatch/internal/entity"
	"github.com/roach88/userwatch/internal/event"
	"github.com/roach88/userwatch/internal/testutil"
)

// SeedLabel is the source name reported in the scenario's init event.
const SeedLabel = "seed"

// TraceEvent is one observer delivery.
type TraceEvent struct {
	Step     int    `json:"step"` // 0 for the initial load
	Observer string `json:"observer"`
	Event    string `json:"event"`
	Payload  any    `json:"payload"`
}

// Result is the outcome of a scenario run.
type Result struct {
	Pass   bool
	Trace  []TraceEvent
	Final  []entity.Entity
	Errors []error // failed assertions
}

// StepError reports a step whose outcome did not match its expect_error.
type StepError struct {
	Step int // 1-based
	Op   string
	Want string
	Err  error
}

func (e *StepError) Error() string {
	switch {
	case e.Want == "":
		return fmt.Sprintf("step %d (%s): unexpected error: %v", e.Step, e.Op, e.Err)
	case e.Err == nil:
		return fmt.Sprintf("step %d (%s): expected %s, got success", e.Step, e.Op, e.Want)
	default:
		return fmt.Sprintf("step %d (%s): expected %s, got: %v", e.Step, e.Op, e.Want, e.Err)
	}
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// recorder is the observer behind each ObserverSpec.
type recorder struct {
	spec   ObserverSpec
	step   *int
	result *Result
}

func (r *recorder) Update(_ event.Subject, name string, data any) error {
	r.result.Trace = append(r.result.Trace, TraceEvent{
		Step:     *r.step,
		Observer: r.spec.Name,
		Event:    name,
		Payload:  data,
	})
	for _, f := range r.spec.Fail {
		if f == event.Wildcard || f == name {
			return fmt.Errorf("observer %s: %w", r.spec.Name, testutil.ErrInjected)
		}
	}
	return nil
}

// Run executes s against a fresh store.
//
// On a step failure the partial result is returned along with a *StepError.
func Run(s *Scenario) (*Result, error) {
	res := &Result{}
	store := entity.NewStore(entity.WithIDGenerator(testutil.NewSequentialIDs("id")))

	step := 0
	recorders := make(map[string]*recorder, len(s.Observers))
	for _, spec := range s.Observers {
		r := &recorder{spec: spec, step: &step, result: res}
		recorders[spec.Name] = r
		store.Attach(r, spec.Events...)
	}

	src, err := seedSource(s)
	if err != nil {
		return nil, err
	}
	if err := store.Load(src); err != nil {
		return res, fmt.Errorf("load seed: %w", err)
	}

	refs := make(map[string]string)
	for i, st := range s.Steps {
		step = i + 1
		err := apply(store, st, refs, recorders)
		if err := check(step, st, err); err != nil {
			res.Final = store.List()
			return res, err
		}
	}

	res.Final = store.List()
	for _, a := range s.Assertions {
		if err := evaluate(a, res, refs); err != nil {
			res.Errors = append(res.Errors, err)
		}
	}
	res.Pass = len(res.Errors) == 0
	return res, nil
}

func apply(store *entity.Store, st Step, refs map[string]string, recorders map[string]*recorder) error {
	switch st.Op {
	case OpCreate:
		attrs, err := attr.FromMap(st.Attrs)
		if err != nil {
			return err
		}
		e, err := store.Create(attrs)
		// The entity exists even when an observer failed.
		if st.As != "" && e.ID != "" {
			refs[st.As] = e.ID
		}
		return err

	case OpUpdate:
		attrs, err := attr.FromMap(st.Attrs)
		if err != nil {
			return err
		}
		_, err = store.Update(target(st, refs), attrs)
		return err

	case OpDelete:
		_, err := store.Delete(target(st, refs))
		return err

	case OpAttach:
		store.Attach(recorders[st.Observer], st.Events...)
		return nil

	case OpDetach:
		store.Detach(recorders[st.Observer], st.Events...)
		return nil
	}
	return fmt.Errorf("unknown op %q", st.Op)
}

func target(st Step, refs map[string]string) string {
	if st.Ref != "" {
		return refs[st.Ref]
	}
	return st.ID
}

func check(step int, st Step, err error) error {
	var ok bool
	switch st.ExpectError {
	case "":
		ok = err == nil
	case ExpectNotFound:
		ok = errors.Is(err, entity.ErrNotFound)
	case ExpectObserverFailure:
		var oe *event.ObserverError
		ok = errors.As(err, &oe)
	}
	if ok {
		return nil
	}
	return &StepError{Step: step, Op: st.Op, Want: st.ExpectError, Err: err}
}

func seedSource(s *Scenario) (*entity.MemorySource, error) {
	src := &entity.MemorySource{Label: SeedLabel}
	for i, row := range s.Seed {
		fields := make(map[string]any, len(row))
		for k, v := range row {
			if k != entity.KeyID {
				fields[k] = v
			}
		}
		id, ok := seedID(row[entity.KeyID])
		if !ok {
			return nil, fmt.Errorf("seed[%d]: invalid id %v", i, row[entity.KeyID])
		}
		attrs, err := attr.FromMap(fields)
		if err != nil {
			return nil, fmt.Errorf("seed[%d]: %w", i, err)
		}
		src.Records = append(src.Records, entity.Record{
			Line:  i + 1,
			ID:    id,
			Attrs: attrs,
		})
	}
	return src, nil
}

// Render formats a result as text: one canonical JSON line per delivery,
// then one line per remaining entity.
func Render(name string, res *Result) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# scenario: %s\n", name)
	for _, ev := range res.Trace {
		line, err := attr.MarshalCanonical(map[string]any{
			"step":     ev.Step,
			"observer": ev.Observer,
			"event":    ev.Event,
			"payload":  ev.Payload,
		})
		if err != nil {
			return nil, fmt.Errorf("render step %d: %w", ev.Step, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteString("# final\n")
	for _, e := range res.Final {
		line, err := attr.MarshalCanonical(e)
		if err != nil {
			return nil, fmt.Errorf("render entity %s: %w", e.ID, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
