package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/planq/internal/engine"
)

// Snapshot is the golden representation of a scenario run.
type Snapshot struct {
	Scenario string         `json:"scenario"`
	Steps    []StepSnapshot `json:"steps"`
}

// StepSnapshot condenses one step result to what reviewers compare:
// outcome, primary row ids, aggregate and warnings.
type StepSnapshot struct {
	Name       string           `json:"name"`
	Caller     string           `json:"caller,omitempty"`
	Success    bool             `json:"success"`
	Code       engine.ErrorCode `json:"code,omitempty"`
	Error      string           `json:"error,omitempty"`
	RowCount   int              `json:"rowCount"`
	IDs        []any            `json:"ids,omitempty"`
	Aggregated any              `json:"aggregated,omitempty"`
	Warnings   []string         `json:"warnings,omitempty"`
}

// NewSnapshot builds the snapshot of result.
func NewSnapshot(name string, result *Result) Snapshot {
	snap := Snapshot{Scenario: name, Steps: make([]StepSnapshot, 0, len(result.Steps))}
	for _, step := range result.Steps {
		res := step.Result
		s := StepSnapshot{
			Name:     step.Name,
			Caller:   step.Caller,
			Success:  res.Success,
			Code:     res.Code,
			Error:    res.Error,
			RowCount: res.RowCount,
			Warnings: res.Warnings,
		}
		if res.IsAggregate {
			s.Aggregated = normalize(res.Aggregated)
		} else {
			for _, row := range res.Data {
				s.IDs = append(s.IDs, row["id"])
			}
		}
		snap.Steps = append(snap.Steps, s)
	}
	return snap
}

// MarshalSnapshot encodes snap as indented JSON with a trailing newline.
func MarshalSnapshot(snap Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario, fails t on expectation mismatches and
// compares the snapshot against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(context.Background(), scenario, WithDir(t.TempDir()))
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(NewSnapshot(scenarioName, result))
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
