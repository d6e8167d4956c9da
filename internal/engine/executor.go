package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/planq/internal/aggregate"
	"github.com/roach88/planq/internal/metrics"
	"github.com/roach88/planq/internal/plan"
	"github.com/roach88/planq/internal/schema"
	"github.com/roach88/planq/internal/store"
	"github.com/roach88/planq/internal/translate"
)

const (
	// DefaultTimeout bounds each store round-trip.
	DefaultTimeout = 15 * time.Second

	// DefaultMaxDepth bounds subquery nesting.
	DefaultMaxDepth = 5

	// DefaultAggregationRowCeiling bounds the rows fetched for aggregation.
	DefaultAggregationRowCeiling = 10000
)

// Executor runs query plans against a backend.
//
// Thread-safety: an Executor holds no mutable state after construction and
// is safe for concurrent use.
type Executor struct {
	backend    store.Backend
	registry   *schema.Registry
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	ids        IDGenerator
	timeout    time.Duration
	maxDepth   int
	softLimit  int
	hardLimit  int
	rowCeiling int

	caseInsensitive []string
	translator      *translate.Translator
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout sets the budget of each store round-trip.
//
// Default: 15s (DefaultTimeout)
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records executions on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// WithClock sets the reference time source for relative dates.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator sets the execution ID source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Executor) {
		if g != nil {
			e.ids = g
		}
	}
}

// WithMaxDepth sets the maximum subquery nesting depth.
//
// Default: 5 (DefaultMaxDepth)
func WithMaxDepth(depth int) Option {
	return func(e *Executor) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// WithLimits sets the soft and hard row ceilings.
//
// Default: 100 / 1000 (plan.DefaultSoftLimit / plan.DefaultHardLimit)
func WithLimits(soft, hard int) Option {
	return func(e *Executor) {
		if soft > 0 {
			e.softLimit = soft
		}
		if hard > 0 {
			e.hardLimit = hard
		}
	}
}

// WithAggregationRowCeiling bounds the rows fetched for an aggregation.
//
// Default: 10000 (DefaultAggregationRowCeiling)
func WithAggregationRowCeiling(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.rowCeiling = n
		}
	}
}

// WithCaseInsensitiveFields replaces the registry's default set of fields
// whose eq and like filters ignore case.
func WithCaseInsensitiveFields(fields []string) Option {
	return func(e *Executor) {
		e.caseInsensitive = fields
	}
}

// New creates an Executor over backend and registry.
func New(backend store.Backend, reg *schema.Registry, opts ...Option) *Executor {
	e := &Executor{
		backend:    backend,
		registry:   reg,
		logger:     slog.Default(),
		now:        time.Now,
		ids:        UUIDv7Generator{},
		timeout:    DefaultTimeout,
		maxDepth:   DefaultMaxDepth,
		softLimit:  plan.DefaultSoftLimit,
		hardLimit:  plan.DefaultHardLimit,
		rowCeiling: DefaultAggregationRowCeiling,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.caseInsensitive == nil {
		e.caseInsensitive = reg.CaseInsensitiveFields()
	}
	e.translator = translate.New(
		translate.WithClock(e.now),
		translate.WithCaseInsensitiveFields(e.caseInsensitive),
	)
	return e
}

// Registry returns the schema registry plans are validated against.
func (e *Executor) Registry() *schema.Registry {
	return e.registry
}

// Validate checks p with the executor's row ceilings.
func (e *Executor) Validate(p *plan.QueryPlan) plan.ValidationResult {
	vr := plan.Validate(p, e.registry, plan.WithLimits(e.softLimit, e.hardLimit))
	e.metrics.Validated(string(vr.Code))
	return vr
}

// execution carries per-invocation state through the pipeline.
type execution struct {
	id       string
	caller   string
	log      *slog.Logger
	warnings []string
}

func (x *execution) warn(format string, args ...any) {
	x.warnings = append(x.warnings, fmt.Sprintf(format, args...))
}

// outcome is the product of one (possibly nested) plan run.
type outcome struct {
	columns  []string
	rows     []store.Row
	agg      *aggregate.Result
	rowCount int
}

// Execute runs p on behalf of caller.
//
// Execute never returns nil and never panics on a bad plan: every failure
// is reported through the result's Code and Error.
func (e *Executor) Execute(ctx context.Context, p *plan.QueryPlan, caller string) *QueryResult {
	start := time.Now()
	x := &execution{id: e.ids.Generate(), caller: caller}
	x.log = e.logger.With("execution_id", x.id)

	intent := ""
	if p != nil {
		intent = p.Intent
	}
	x.log.Debug("execution started", "intent", intent, "caller", caller)

	vr := e.Validate(p)
	x.warnings = append(x.warnings, vr.Warnings...)
	if !vr.Valid {
		err := rejection(vr)
		e.finish(x, start, err)
		return failedResult(x.id, err, x.warnings)
	}

	out, err := e.run(ctx, x, p, 0, false)
	if err != nil {
		e.finish(x, start, err)
		return failedResult(x.id, err, x.warnings)
	}
	e.finish(x, start, nil)

	res := &QueryResult{
		Success:     true,
		ExecutionID: x.id,
		Columns:     out.columns,
		RowCount:    out.rowCount,
		Warnings:    x.warnings,
	}
	if out.agg != nil {
		res.IsAggregate = true
		res.Aggregated = out.agg.Value()
	} else {
		res.Data = out.rows
	}
	return res
}

func (e *Executor) finish(x *execution, start time.Time, err error) {
	elapsed := time.Since(start)
	code := string(CodeOf(err))
	if err != nil && code == "" {
		code = string(CodeExecutionFailed)
	}
	e.metrics.ObserveExecution(code, elapsed)
	if err != nil {
		x.log.Warn("execution failed", "code", code, "error", err, "duration", elapsed)
		return
	}
	x.log.Info("execution complete", "duration", elapsed, "warnings", len(x.warnings))
}

// rejection converts a failed validation into a QueryError.
func rejection(vr plan.ValidationResult) *QueryError {
	if vr.Code == plan.CodeAggregationError {
		return &QueryError{Code: CodeAggregationError, Field: vr.Field, Message: vr.Error}
	}
	return NewSchemaViolation(vr.Field, vr.Error)
}

// run executes an already validated plan at the given nesting depth.
// Subquery runs lift the default row and group limits so identifier sets
// are complete.
func (e *Executor) run(ctx context.Context, x *execution, p *plan.QueryPlan, depth int, forSubquery bool) (*outcome, error) {
	work := p.Clone()

	if err := e.resolveSubqueries(ctx, x, work, depth); err != nil {
		return nil, err
	}

	if x.caller == "" && e.touchesTenant(work) {
		return nil, &QueryError{Code: CodeExecutionFailed, Message: "caller identity is required for tenant-scoped tables"}
	}
	for _, inj := range InjectSecurityFilters(work, e.registry, x.caller) {
		x.log.Warn("security filter injected",
			"table", inj.Table,
			"field", schema.QualifiedField(inj.Table, e.registry.OwnerField()),
			"reason", inj.Reason,
			"depth", depth)
		e.metrics.SecurityInjected(inj.Table)
	}

	q, err := e.buildQuery(work, forSubquery)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, contextError(err)
	}
	qctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	x.log.Debug("store query",
		"table", q.Table,
		"joins", len(q.Joins),
		"predicates", len(q.Predicates),
		"limit", q.Limit,
		"depth", depth)
	rs, err := e.backend.Select(qctx, q)
	if err != nil {
		return nil, storeError(q.Table, err)
	}
	e.metrics.ObserveRows(len(rs.Rows))

	out := &outcome{columns: rs.Columns, rows: rs.Rows, rowCount: len(rs.Rows)}
	if work.Aggregation == nil {
		return out, nil
	}

	if len(rs.Rows) >= e.rowCeiling {
		x.warn("aggregation input reached the row ceiling of %d; the result may be incomplete", e.rowCeiling)
	}
	limit := work.Limit
	if forSubquery && limit == nil {
		limit = &e.rowCeiling
	}
	res, err := aggregate.Apply(rs.Rows, aggregate.Spec{
		Aggregation: *work.Aggregation,
		Sort:        work.Sort,
		Limit:       limit,
		Tables:      work.Tables,
	})
	if err != nil {
		return nil, NewAggregationError(err.Error(), err)
	}
	out.agg = res
	out.rows = nil
	return out, nil
}

func (e *Executor) touchesTenant(p *plan.QueryPlan) bool {
	for _, t := range p.Tables {
		if e.registry.IsTenantScoped(t) {
			return true
		}
	}
	return false
}
