// Package exec implements the execution context rule bodies run under and
// the driver that turns a want list into a concurrent build.
package exec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.trai.ch/fab/internal/core/domain"
	"go.trai.ch/fab/internal/core/ports"
	"go.trai.ch/fab/internal/engine/pool"
	"go.trai.ch/zerr"
)

// Context is the ambient state visible to every action during a run. One
// Context is created per run and shared by reference across all of the
// run's tasks; it is immutable after creation.
type Context struct {
	opts   domain.Options
	reg    *domain.Registry
	log    domain.Logger
	tracer ports.Tracer
	fp     ports.Fingerprinter
	expand ports.FilesetExpander
	pool   *pool.Pool

	// valid is the rule-local rebuild status. The incremental-build checker
	// that would set it is not implemented; it is always Valid.
	valid domain.Validity
}

var _ domain.RunContext = (*Context)(nil)

// Options returns the options the run was started with.
func (ec *Context) Options() domain.Options { return ec.opts }

// Logf emits a record to the run's logger.
func (ec *Context) Logf(level domain.Level, format string, args ...any) {
	ec.log.Logf(level, format, args...)
}

// Need suspends the calling action until every named target has been
// produced. Names resolve like wants: phony wins over file.
func (ec *Context) Need(ctx context.Context, names ...string) error {
	targets := make([]domain.Target, len(names))
	for i, name := range names {
		targets[i] = domain.ResolveTarget(ec.opts, ec.reg, name)
	}
	return ec.NeedTargets(ctx, targets...)
}

// NeedTargets is Need for already-resolved targets. The caller's worker
// slot is released while the dependencies build and re-acquired before
// returning; an empty list completes immediately without touching the
// permit count.
func (ec *Context) NeedTargets(ctx context.Context, targets ...domain.Target) error {
	if len(targets) == 0 {
		return nil
	}

	ec.pool.ReleaseSlot()
	defer ec.pool.AcquireSlot()

	futures := make([]*pool.Future, len(targets))
	for i, t := range targets {
		futures[i] = ec.pool.Submit(t, ec.compile(t))
	}

	// Waiting in submission order keeps the primary error deterministic;
	// every future is already running, so nothing is serialized by this.
	var errs []error
	for _, f := range futures {
		if _, err := f.Wait(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NeedFileset expands the fileset against the project root and needs every
// matched file.
func (ec *Context) NeedFileset(ctx context.Context, fs domain.Fileset) error {
	files, err := ec.expand.Expand(ctx, ec.opts.ProjectRoot, fs)
	if err != nil {
		return err
	}
	return ec.Need(ctx, files...)
}

// WhenNeeded needs file and then runs body if the file's rule is considered
// in need of its product. The rebuild checker is not implemented, so the
// status is always Valid and body always runs.
func (ec *Context) WhenNeeded(ctx context.Context, file string, body func(context.Context) error) error {
	if err := ec.Need(ctx, file); err != nil {
		return err
	}
	if ec.valid != domain.Valid {
		return nil
	}
	return body(ctx)
}

// compile binds a target to the deferred computation that produces it: the
// matched rule's action run under this context, or a no-op for a
// pre-existing source file with no rule.
func (ec *Context) compile(t domain.Target) pool.Thunk {
	return func(ctx context.Context) (domain.Artifact, error) {
		rule, ok := ec.reg.Locate(t, ec.opts.ProjectRoot)
		if !ok {
			if t.IsFile() {
				if info, err := os.Stat(t.Name()); err == nil && !info.IsDir() {
					return ec.sourceArtifact(t)
				}
			}
			return domain.Artifact{}, zerr.With(domain.ErrNoRule, "target", t.String())
		}
		return ec.runRule(ctx, rule, t)
	}
}

func (ec *Context) runRule(ctx context.Context, rule domain.Rule, t domain.Target) (domain.Artifact, error) {
	ctx, span := ec.tracer.Start(ctx, t.String())
	defer span.End()

	ec.Logf(domain.LevelNormal, "building %s", t)

	if err := rule.Action(ctx, ec, t); err != nil {
		span.RecordError(err)
		return domain.Artifact{}, zerr.With(
			zerr.Wrap(err, domain.ErrActionFailed.Error()),
			"target", t.String(),
		)
	}

	art := domain.Artifact{Target: t, BuiltAt: time.Now()}
	if t.IsFile() {
		art.Path = t.Name()
		if digest, err := ec.fp.DigestFile(t.Name()); err == nil {
			art.Digest = digest
			span.SetAttribute("digest", fmt.Sprintf("%016x", digest))
			ec.Logf(domain.LevelVerbose, "built %s (digest %016x)", t, digest)
		}
	}
	return art, nil
}

// sourceArtifact treats a file with no rule but present on disk as a
// pre-existing input: success, no action run.
func (ec *Context) sourceArtifact(t domain.Target) (domain.Artifact, error) {
	art := domain.Artifact{Target: t, Path: t.Name(), BuiltAt: time.Now()}
	if digest, err := ec.fp.DigestFile(t.Name()); err == nil {
		art.Digest = digest
	}
	ec.Logf(domain.LevelVerbose, "using source file %s", t.Name())
	return art, nil
}
