package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/planq/internal/plan"
	"github.com/roach88/planq/internal/sqlstore"
)

// Scenario defines a conformance scenario: a seeded database and a sequence
// of plan executions with expected outcomes.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file and
	// is used as the execution ID of every step.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Now freezes the clock used for relative dates.
	// Zero means testutil.ReferenceTime.
	Now time.Time `yaml:"now,omitempty"`

	// Demo seeds the built-in demo data set before Fixtures.
	Demo bool `yaml:"demo,omitempty"`

	// Fixtures are rows inserted before the steps run.
	Fixtures sqlstore.Fixtures `yaml:"fixtures,omitempty"`

	// Engine overrides executor limits.
	Engine EngineSettings `yaml:"engine,omitempty"`

	// Steps are executed in order against the same database.
	Steps []Step `yaml:"steps"`
}

// EngineSettings are executor overrides. Zero values keep the defaults.
type EngineSettings struct {
	MaxDepth              int      `yaml:"max_depth,omitempty"`
	SoftLimit             int      `yaml:"soft_limit,omitempty"`
	HardLimit             int      `yaml:"hard_limit,omitempty"`
	AggregationRowCeiling int      `yaml:"aggregation_row_ceiling,omitempty"`
	CaseInsensitiveFields []string `yaml:"case_insensitive_fields,omitempty"`
}

// Step executes one plan on behalf of Caller.
type Step struct {
	Name   string          `yaml:"name"`
	Caller string          `yaml:"caller"`
	Plan   *plan.QueryPlan `yaml:"plan"`

	// Expect is checked against the result. If nil, the step only feeds the
	// golden snapshot.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected result of a step. Unset fields are not
// checked.
type Expect struct {
	Success *bool  `yaml:"success,omitempty"`
	Code    string `yaml:"code,omitempty"`

	// ErrorContains is a substring of the error message.
	ErrorContains string `yaml:"error_contains,omitempty"`

	RowCount *int `yaml:"row_count,omitempty"`

	// IDs are the primary "id" values of the returned rows, in order.
	IDs []any `yaml:"ids,omitempty"`

	// Rows are matched pairwise against the returned rows.
	// Subset match: only specified fields are validated.
	Rows []map[string]any `yaml:"rows,omitempty"`

	// Aggregated is compared exactly against the aggregated value.
	Aggregated any `yaml:"aggregated,omitempty"`

	// Warnings is the expected number of warnings.
	Warnings *int `yaml:"warnings,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	names := make(map[string]string, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		if prev, dup := names[s.Name]; dup {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", filepath.Base(path), s.Name, prev)
		}
		names[s.Name] = filepath.Base(path)
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Name == "" {
			return fmt.Errorf("steps[%d]: name is required", i)
		}
		if step.Plan == nil {
			return fmt.Errorf("steps[%d]: plan is required", i)
		}
		if e := step.Expect; e != nil && e.Code != "" && e.Success != nil && *e.Success {
			return fmt.Errorf("steps[%d].expect: code is set on a successful expectation", i)
		}
	}

	return nil
}
