package scenario

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/userwatch/internal/attr"
	"github.com/roach88/userwatch/internal/entity"
	"github.com/roach88/userwatch/internal/event"
)

func TestParse_Valid(t *testing.T) {
	s, err := Parse([]byte(`
name: ok
observers:
  - name: a
    events: [entity:created]
steps:
  - op: create
    as: x
    attrs: {name: X, age: 3}
  - op: update
    ref: x
    attrs: {admin: true}
  - op: detach
    observer: a
    events: [entity:created]
`))
	require.NoError(t, err)
	assert.Equal(t, "ok", s.Name)
	require.Len(t, s.Steps, 3)
	assert.Equal(t, map[string]any{"name": "X", "age": 3}, s.Steps[0].Attrs)
	assert.Equal(t, "x", s.Steps[1].Ref)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", "name: a\nbogus: 1\nsteps: [{op: create}]", "field bogus not found"},
		{"missing name", "steps: [{op: create}]", "name is required"},
		{"no steps", "name: a", "steps list is required"},
		{"unknown op", "name: a\nsteps: [{op: upsert}]", `unknown op "upsert"`},
		{"update without target", "name: a\nsteps: [{op: update}]", "update needs id or ref"},
		{"ref before as", "name: a\nsteps: [{op: delete, ref: x}, {op: create, as: x}]", `unknown ref "x"`},
		{"unknown observer", "name: a\nsteps: [{op: attach, observer: ghost}]", `unknown observer "ghost"`},
		{"duplicate observer", "name: a\nobservers: [{name: o}, {name: o}]\nsteps: [{op: create}]", `duplicate name "o"`},
		{"seed without id", "name: a\nseed: [{name: A}]\nsteps: [{op: create}]", "seed[0]: id is required"},
		{"seed with null id", "name: a\nseed: [{id: ~, name: Ghost}]\nsteps: [{op: create}]", "seed[0]: id must be a non-empty string or integer"},
		{"seed with list id", "name: a\nseed: [{id: [1, 2], name: A}]\nsteps: [{op: create}]", "seed[0]: id must be a non-empty string or integer"},
		{"seed with empty id", "name: a\nseed: [{id: \"\", name: A}]\nsteps: [{op: create}]", "seed[0]: id must be a non-empty string or integer"},
		{"bad expect_error", "name: a\nsteps: [{op: create, expect_error: boom}]", `unknown expect_error "boom"`},
		{"bad assertion", "name: a\nsteps: [{op: create}]\nassertions: [{type: vibes}]", `unknown assertion type "vibes"`},
		{"short trace_order", "name: a\nsteps: [{op: create}]\nassertions: [{type: trace_order, events: [x]}]", "at least two events"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestRun_DefaultSeed(t *testing.T) {
	s := &Scenario{
		Name:      "default_seed",
		Observers: []ObserverSpec{{Name: "all"}},
		Steps:     []Step{{Op: OpCreate, Attrs: map[string]any{"name": "Z"}}},
	}

	res, err := Run(s)
	require.NoError(t, err)
	assert.True(t, res.Pass)

	require.Len(t, res.Trace, 2)
	assert.Equal(t, TraceEvent{Step: 0, Observer: "all", Event: entity.EventInit, Payload: SeedLabel}, res.Trace[0])
	assert.Equal(t, entity.EventCreated, res.Trace[1].Event)

	require.Len(t, res.Final, 4)
	assert.Equal(t, "id-1", res.Final[3].ID)
}

func TestRun_AttachMidway(t *testing.T) {
	s := &Scenario{
		Name:      "attach_midway",
		Seed:      []map[string]any{{"id": "a", "name": "A"}},
		Observers: []ObserverSpec{{Name: "late", Events: []string{entity.EventDeleted}}},
		Steps: []Step{
			{Op: OpDetach, Observer: "late", Events: []string{entity.EventDeleted}},
			{Op: OpDelete, ID: "a"},
			{Op: OpAttach, Observer: "late", Events: []string{entity.EventCreated}},
			{Op: OpCreate, Attrs: map[string]any{"name": "B"}},
		},
	}

	res, err := Run(s)
	require.NoError(t, err)
	require.Len(t, res.Trace, 1)
	assert.Equal(t, 4, res.Trace[0].Step)
	assert.Equal(t, entity.EventCreated, res.Trace[0].Event)
}

func TestRun_UnexpectedError(t *testing.T) {
	s := &Scenario{
		Name:  "unexpected",
		Seed:  []map[string]any{{"id": "a"}},
		Steps: []Step{{Op: OpDelete, ID: "missing"}},
	}

	res, err := Run(s)
	require.Error(t, err)
	require.NotNil(t, res)

	var se *StepError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 1, se.Step)
	assert.ErrorIs(t, err, entity.ErrNotFound)
	assert.Len(t, res.Final, 1)
}

func TestRun_ExpectedErrorDidNotHappen(t *testing.T) {
	s := &Scenario{
		Name:  "no_error",
		Seed:  []map[string]any{{"id": "a"}},
		Steps: []Step{{Op: OpDelete, ID: "a", ExpectError: ExpectNotFound}},
	}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected not_found, got success")
}

func TestRun_ObserverFailureKeepsMutation(t *testing.T) {
	s := &Scenario{
		Name: "fails",
		Seed: []map[string]any{{"id": "a", "name": "A"}},
		Observers: []ObserverSpec{
			{Name: "bad", Fail: []string{event.Wildcard}, Events: []string{entity.EventUpdated}},
			{Name: "never"},
		},
		Steps: []Step{{Op: OpUpdate, ID: "a", Attrs: map[string]any{"name": "B"}, ExpectError: ExpectObserverFailure}},
	}

	res, err := Run(s)
	require.NoError(t, err)

	var observers []string
	for _, ev := range res.Trace {
		if ev.Step == 1 {
			observers = append(observers, ev.Observer)
		}
	}
	assert.Equal(t, []string{"bad"}, observers)

	v, ok := res.Final[0].Get("name")
	require.True(t, ok)
	assert.Equal(t, attr.String("B"), v)
}

func TestRun_AssertionFailuresAreCollected(t *testing.T) {
	s := &Scenario{
		Name:      "assert",
		Seed:      []map[string]any{{"id": "a", "name": "A"}},
		Observers: []ObserverSpec{{Name: "o"}},
		Steps:     []Step{{Op: OpUpdate, ID: "a", Attrs: map[string]any{"name": "B"}}},
		Assertions: []Assertion{
			{Type: AssertTraceContains, Event: entity.EventUpdated, Observer: "o"},
			{Type: AssertTraceContains, Event: entity.EventDeleted},
			{Type: AssertFinalEntity, ID: "a", Attrs: map[string]any{"name": "A"}},
			{Type: AssertFinalCount, Count: 1},
		},
	}

	res, err := Run(s)
	require.NoError(t, err)
	assert.False(t, res.Pass)
	require.Len(t, res.Errors, 2)

	var ae *AssertionError
	require.True(t, errors.As(res.Errors[0], &ae))
	assert.Equal(t, AssertTraceContains, ae.Type)
	require.True(t, errors.As(res.Errors[1], &ae))
	assert.Equal(t, AssertFinalEntity, ae.Type)
	assert.Contains(t, ae.Error(), "name=A")
}

func TestTraceOrder(t *testing.T) {
	trace := []TraceEvent{
		{Event: "a", Observer: "x"},
		{Event: "b", Observer: "y"},
		{Event: "c", Observer: "x"},
	}

	assert.NoError(t, assertTraceOrder(trace, Assertion{Events: []string{"a", "c"}}))
	assert.Error(t, assertTraceOrder(trace, Assertion{Events: []string{"c", "a"}}))
	assert.Error(t, assertTraceOrder(trace, Assertion{Events: []string{"a", "b"}, Observer: "x"}))
}

func TestRender(t *testing.T) {
	res := &Result{
		Trace: []TraceEvent{{Step: 0, Observer: "o", Event: entity.EventInit, Payload: "seed"}},
		Final: []entity.Entity{{ID: "1"}},
	}
	out, err := Render("r", res)
	require.NoError(t, err)
	assert.Equal(t, "# scenario: r\n"+
		`{"event":"entity:init","observer":"o","payload":"seed","step":0}`+"\n"+
		"# final\n"+
		`{"id":"1"}`+"\n", string(out))
}

func TestGoldenScenarios(t *testing.T) {
	files, err := filepath.Glob("testdata/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, path := range files {
		s, err := Load(path)
		require.NoError(t, err, path)

		t.Run(s.Name, func(t *testing.T) {
			res, err := Run(s)
			require.NoError(t, err)
			for _, e := range res.Errors {
				t.Error(e)
			}
			require.NoError(t, AssertGolden(t, s.Name, res))
		})
	}
}
