package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/planq/internal/engine"
	"github.com/roach88/planq/internal/schema"
	"github.com/roach88/planq/internal/sqlstore"
	"github.com/roach88/planq/internal/testutil"
)

// Harness executes scenario steps against one seeded database with a
// frozen clock and a fixed execution ID.
type Harness struct {
	exec   *engine.Executor
	logger *slog.Logger
}

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	dir    string
	logger *slog.Logger
}

// WithDir places the scenario database in dir instead of a fresh temporary
// directory.
func WithDir(dir string) Option {
	return func(c *runConfig) {
		c.dir = dir
	}
}

// WithLogger sets the engine logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh SQLite database:
//  1. Create the database and apply the CRM schema
//  2. Seed demo data and fixtures
//  3. Execute steps in order, checking expect clauses
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := &runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(cfg)
	}

	dir := cfg.dir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "planq-scenario-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create scenario directory: %w", err)
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}

	st, err := sqlstore.Open(filepath.Join(dir, scenario.Name+".db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	if scenario.Demo {
		if err := st.SeedFixtures(ctx, sqlstore.DemoFixtures()); err != nil {
			return nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}
	if len(scenario.Fixtures) > 0 {
		if err := st.SeedFixtures(ctx, scenario.Fixtures); err != nil {
			return nil, fmt.Errorf("failed to seed fixtures: %w", err)
		}
	}

	h := newHarness(st, scenario, cfg.logger)

	result := NewResult()
	for i, step := range scenario.Steps {
		res := h.exec.Execute(ctx, step.Plan, step.Caller)
		result.Steps = append(result.Steps, StepResult{Name: step.Name, Caller: step.Caller, Result: res})

		h.logger.Debug("scenario step completed",
			"scenario", scenario.Name,
			"step", i,
			"name", step.Name,
			"success", res.Success,
			"code", res.Code,
		)

		if step.Expect == nil {
			continue
		}
		for _, msg := range CheckExpect(step.Expect, res) {
			result.AddError(fmt.Sprintf("step %d (%s): %s", i, step.Name, msg))
		}
	}

	return result, nil
}

func newHarness(st *sqlstore.SQLite, scenario *Scenario, logger *slog.Logger) *Harness {
	clock := testutil.NewFixedClock(scenario.Now)
	es := scenario.Engine
	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithClock(clock.Now),
		engine.WithIDGenerator(testutil.NewFixedIDGenerator(scenario.Name)),
		engine.WithMaxDepth(es.MaxDepth),
		engine.WithLimits(es.SoftLimit, es.HardLimit),
		engine.WithAggregationRowCeiling(es.AggregationRowCeiling),
	}
	if es.CaseInsensitiveFields != nil {
		opts = append(opts, engine.WithCaseInsensitiveFields(es.CaseInsensitiveFields))
	}
	return &Harness{
		exec:   engine.New(st, schema.Default(), opts...),
		logger: logger,
	}
}
