package scenario

import (
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden executes a scenario and compares its rendered trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/scenario -update
func RunWithGolden(t *testing.T, s *Scenario) error {
	t.Helper()

	res, err := Run(s)
	if err != nil {
		return err
	}
	return AssertGolden(t, s.Name, res)
}

// AssertGolden compares an already computed result against the golden file
// for name.
func AssertGolden(t *testing.T, name string, res *Result) error {
	t.Helper()

	out, err := Render(name, res)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, out)
	return nil
}
