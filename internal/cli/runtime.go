package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/planq/internal/config"
	"github.com/roach88/planq/internal/engine"
	"github.com/roach88/planq/internal/metrics"
	"github.com/roach88/planq/internal/schema"
	"github.com/roach88/planq/internal/sqlstore"
	"github.com/roach88/planq/internal/store"
)

// runtime bundles what a command needs to execute plans.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *schema.Registry
	metrics  *metrics.Metrics
	backend  store.Backend
	closer   func()
}

func (r *runtime) Close() {
	if r.closer != nil {
		r.closer()
	}
}

// openRuntime loads the config, the registry and, when withBackend is set,
// the configured store. dsn overrides the configured DSN when non-empty.
func (o *RootOptions) openRuntime(ctx context.Context, logOut io.Writer, dsn string, withBackend bool) (*runtime, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if dsn != "" {
		cfg.Database.DSN = dsn
	}

	rt := &runtime{
		cfg:     cfg,
		logger:  o.newLogger(cfg.Log, logOut),
		metrics: metrics.New(),
	}
	rt.registry, err = loadRegistry(cfg.Schema)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load schema", err)
	}
	if !withBackend {
		return rt, nil
	}

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pg, err := sqlstore.OpenPostgres(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		rt.backend, rt.closer = pg, pg.Close
	default:
		db, err := sqlstore.Open(cfg.Database.DSN)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		rt.backend, rt.closer = db, func() { _ = db.Close() }
	}
	rt.logger.Debug("store opened", "driver", cfg.Database.Driver)
	return rt, nil
}

// executor creates an Executor configured from the engine section.
func (r *runtime) executor(opts ...engine.Option) *engine.Executor {
	ec := r.cfg.Engine
	base := []engine.Option{
		engine.WithLogger(r.logger),
		engine.WithMetrics(r.metrics),
		engine.WithTimeout(ec.Timeout),
		engine.WithMaxDepth(ec.MaxDepth),
		engine.WithLimits(ec.SoftLimit, ec.HardLimit),
		engine.WithAggregationRowCeiling(ec.AggregationRowCeiling),
	}
	if ec.CaseInsensitiveFields != nil {
		base = append(base, engine.WithCaseInsensitiveFields(ec.CaseInsensitiveFields))
	}
	return engine.New(r.backend, r.registry, append(base, opts...)...)
}

func loadRegistry(path string) (*schema.Registry, error) {
	if path == "" {
		return schema.Default(), nil
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	return schema.Load(path, src)
}

// readInput reads a plan or fixture file; "-" means stdin.
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
