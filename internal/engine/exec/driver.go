package exec

import (
	"context"
	"errors"
	"time"

	"go.trai.ch/fab/internal/adapters/logger" //nolint:depguard // The driver owns sink construction per run
	"go.trai.ch/fab/internal/core/domain"
	"go.trai.ch/fab/internal/core/ports"
	"go.trai.ch/fab/internal/engine/pool"
)

// Engine drives builds: it owns the collaborators that outlive a single run
// and creates the per-run state (logger, pool, context) at Run entry.
type Engine struct {
	tracer ports.Tracer
	fp     ports.Fingerprinter
	expand ports.FilesetExpander
}

// NewEngine creates an Engine with the given collaborators.
func NewEngine(tracer ports.Tracer, fp ports.Fingerprinter, expand ports.FilesetExpander) *Engine {
	return &Engine{tracer: tracer, fp: fp, expand: expand}
}

// Run builds the wanted targets against the given registry. The want list
// from the options wins over scriptWants when non-empty. On failure the
// aggregate error tree is flattened and reported through the log; the
// returned error is non-nil only for configuration problems or, when
// FailOnError is set, for a failed build.
func (e *Engine) Run(ctx context.Context, opts domain.Options, reg *domain.Registry, scriptWants []string) error {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return err
	}

	wants := opts.Want
	if len(wants) == 0 {
		wants = scriptWants
	}
	if len(wants) == 0 {
		return domain.ErrNoWants
	}

	log, err := logger.NewFanOut(opts)
	if err != nil {
		return err
	}
	defer log.Close() //nolint:errcheck // Best effort close of the file sink

	p := pool.New(ctx, opts.Threads)
	defer p.Reset()

	ec := &Context{
		opts:   opts,
		reg:    reg,
		log:    log,
		tracer: e.tracer,
		fp:     e.fp,
		expand: e.expand,
		pool:   p,
		valid:  domain.Valid,
	}

	start := time.Now()

	// Every want becomes a root task immediately; Submit never blocks.
	futures := make([]*pool.Future, len(wants))
	for i, name := range wants {
		t := domain.ResolveTarget(opts, reg, name)
		futures[i] = p.Submit(t, ec.compile(t))
	}

	var errs []error
	for _, f := range futures {
		if _, werr := f.Wait(ctx); werr != nil {
			errs = append(errs, werr)
		}
	}
	elapsed := time.Since(start).Round(time.Millisecond)

	if len(errs) == 0 {
		log.Logf(domain.LevelMessage, "Build completed in %s", elapsed)
		return nil
	}

	buildErr := errors.Join(errs...)
	for _, leaf := range domain.Flatten(buildErr) {
		log.Logf(domain.LevelError, "Error: %v", leaf)
		// zerr renders the full report, stack and metadata included, via %+v.
		log.Logf(domain.LevelVerbose, "%+v", leaf)
	}
	log.Logf(domain.LevelError, "Build failed after running for %s", elapsed)

	if opts.FailOnError {
		return errors.Join(domain.ErrBuildFailed, buildErr)
	}
	return nil
}
