package scenario

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted sequence of store operations.
type Scenario struct {
	// Name uniquely identifies this scenario; it names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario demonstrates.
	Description string `yaml:"description"`

	// Seed lists records loaded before the first step. Each record must
	// carry an "id". When empty, the store's built-in seed is loaded.
	Seed []map[string]any `yaml:"seed,omitempty"`

	// Observers are attached, in order, before the seed is loaded.
	Observers []ObserverSpec `yaml:"observers"`

	// Steps run in order after loading.
	Steps []Step `yaml:"steps"`

	// Assertions are checked against the trace and final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ObserverSpec declares a recording observer.
type ObserverSpec struct {
	Name string `yaml:"name"`

	// Events to attach to. Empty means the wildcard.
	Events []string `yaml:"events,omitempty"`

	// Fail makes the observer return an error after recording, on every
	// event listed. "*" fails on everything.
	Fail []string `yaml:"fail,omitempty"`
}

// Step is one operation.
type Step struct {
	// Op is one of: create, update, delete, attach, detach.
	Op string `yaml:"op"`

	// ID targets an entity by identifier (update, delete).
	ID string `yaml:"id,omitempty"`

	// Ref targets an entity created earlier under an "as" label.
	Ref string `yaml:"ref,omitempty"`

	// As labels the entity a create step makes.
	As string `yaml:"as,omitempty"`

	// Attrs are the attributes for create and update.
	Attrs map[string]any `yaml:"attrs,omitempty"`

	// Observer and Events select the registration for attach and detach.
	Observer string   `yaml:"observer,omitempty"`
	Events   []string `yaml:"events,omitempty"`

	// ExpectError names the error the step must fail with:
	// "not_found" or "observer_failure".
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion checks the recorded trace or the final collection.
type Assertion struct {
	// Type is one of: trace_contains, trace_order, trace_count,
	// final_entity, final_count.
	Type string `yaml:"type"`

	// Event and Observer select deliveries (trace_contains, trace_count).
	// An empty Observer matches any observer.
	Event    string `yaml:"event,omitempty"`
	Observer string `yaml:"observer,omitempty"`

	// Events must appear in this order (trace_order).
	Events []string `yaml:"events,omitempty"`

	// Count is the exact number expected (trace_count, final_count).
	Count int `yaml:"count,omitempty"`

	// ID, Ref and Attrs select an entity and the attributes it must hold
	// (final_entity, subset match).
	ID    string         `yaml:"id,omitempty"`
	Ref   string         `yaml:"ref,omitempty"`
	Attrs map[string]any `yaml:"attrs,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalEntity   = "final_entity"
	AssertFinalCount    = "final_count"
)

// Step operations.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpAttach = "attach"
	OpDetach = "detach"
)

// Expected error kinds.
const (
	ExpectNotFound        = "not_found"
	ExpectObserverFailure = "observer_failure"
)

// Load reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains unknown
// fields, or fails validation.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a scenario.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validate(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validate(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	observers := make(map[string]bool, len(s.Observers))
	for i, o := range s.Observers {
		if o.Name == "" {
			return fmt.Errorf("observers[%d]: name is required", i)
		}
		if observers[o.Name] {
			return fmt.Errorf("observers[%d]: duplicate name %q", i, o.Name)
		}
		observers[o.Name] = true
	}

	for i, r := range s.Seed {
		v, ok := r["id"]
		if !ok {
			return fmt.Errorf("seed[%d]: id is required", i)
		}
		if _, ok := seedID(v); !ok {
			return fmt.Errorf("seed[%d]: id must be a non-empty string or integer, got %v", i, v)
		}
	}

	labels := make(map[string]bool)
	for i, step := range s.Steps {
		switch step.Op {
		case OpCreate:
			if step.As != "" {
				labels[step.As] = true
			}
		case OpUpdate, OpDelete:
			if step.ID == "" && step.Ref == "" {
				return fmt.Errorf("steps[%d]: %s needs id or ref", i, step.Op)
			}
			if step.Ref != "" && !labels[step.Ref] {
				return fmt.Errorf("steps[%d]: unknown ref %q", i, step.Ref)
			}
		case OpAttach, OpDetach:
			if !observers[step.Observer] {
				return fmt.Errorf("steps[%d]: unknown observer %q", i, step.Observer)
			}
		default:
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}

		switch step.ExpectError {
		case "", ExpectNotFound, ExpectObserverFailure:
		default:
			return fmt.Errorf("steps[%d]: unknown expect_error %q", i, step.ExpectError)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a, labels); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion, labels map[string]bool) error {
	switch a.Type {
	case AssertTraceContains, AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("%s requires event", a.Type)
		}
	case AssertTraceOrder:
		if len(a.Events) < 2 {
			return fmt.Errorf("trace_order requires at least two events")
		}
	case AssertFinalEntity:
		if a.ID == "" && a.Ref == "" {
			return fmt.Errorf("final_entity requires id or ref")
		}
		if a.Ref != "" && !labels[a.Ref] {
			return fmt.Errorf("unknown ref %q", a.Ref)
		}
	case AssertFinalCount:
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// seedID converts a decoded seed id to its string form. Only non-empty
// strings and integers qualify; null, floats and collections do not.
func seedID(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		return id, id != ""
	case int:
		return strconv.Itoa(id), true
	case int64:
		return strconv.FormatInt(id, 10), true
	case uint64:
		return strconv.FormatUint(id, 10), true
	default:
		return "", false
	}
}
