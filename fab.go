// Package fab is a programmable build engine. A build script declares rules
// producing file or phony targets and a list of wants; the engine executes
// the matched rules concurrently, discovering dependencies as actions call
// Need, with at-most-once execution per target and a fixed worker budget.
//
// A minimal build script:
//
//	func main() {
//		fab.New(fab.Options{Threads: 4}).
//			Phony("all", func(ctx context.Context, rc fab.RunContext, _ fab.Target) error {
//				return rc.Need(ctx, "bin/app")
//			}).
//			AddRule("bin/*", buildBinary).
//			Want("all").
//			Main()
//	}
package fab

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.trai.ch/fab/internal/adapters/fileset"
	"go.trai.ch/fab/internal/adapters/fs"
	"go.trai.ch/fab/internal/adapters/telemetry"
	"go.trai.ch/fab/internal/core/domain"
	"go.trai.ch/fab/internal/core/ports"
	"go.trai.ch/fab/internal/engine/exec"
)

// Re-exported model types, so a build script needs only this package.
type (
	// Options configures a run; see the field documentation on the
	// underlying type.
	Options = domain.Options
	// Target identifies a buildable thing: a file path or a phony name.
	Target = domain.Target
	// Action is the body of a rule.
	Action = domain.Action
	// RunContext is the ambient state an action runs under.
	RunContext = domain.RunContext
	// Rule pairs a pattern with an action.
	Rule = domain.Rule
	// Fileset declaratively describes files under the project root.
	Fileset = domain.Fileset
	// Artifact is the handle a completed build returns for a target.
	Artifact = domain.Artifact
	// Level is a log verbosity level.
	Level = domain.Level
	// Logger is the sink contract for Options.CustomLogger.
	Logger = domain.Logger
	// Tracer records per-rule progress; see WithTracer.
	Tracer = ports.Tracer
)

// Log levels, ascending in verbosity.
const (
	LevelError   = domain.LevelError
	LevelWarn    = domain.LevelWarn
	LevelMessage = domain.LevelMessage
	LevelCommand = domain.LevelCommand
	LevelNormal  = domain.LevelNormal
	LevelVerbose = domain.LevelVerbose
	LevelChatty  = domain.LevelChatty
)

// NewFileset builds a fileset from include globs.
func NewFileset(include ...string) Fileset {
	return domain.NewFileset(include...)
}

// FilePattern compiles a file glob; useful with Rules for pre-built rules.
func FilePattern(glob string) (domain.TargetPattern, error) {
	return domain.FilePattern(glob)
}

// PhonyPattern returns a pattern matching exactly the given phony name.
func PhonyPattern(name string) domain.TargetPattern {
	return domain.PhonyPattern(name)
}

// Builder accumulates options, rules, and wants, and hands them to the
// engine. Declaring a pattern twice replaces the earlier rule; the last
// writer wins.
type Builder struct {
	opts   Options
	reg    *domain.Registry
	wants  []string
	errs   []error
	tracer ports.Tracer
}

// New creates a Builder with the given options.
func New(opts Options) *Builder {
	return &Builder{
		opts:   opts,
		reg:    domain.NewRegistry(),
		tracer: telemetry.NewNoOpTracer(),
	}
}

// AddRule declares a file rule: the glob pattern on the left, the action
// producing matching files on the right. The action receives the resolved
// file target.
func (b *Builder) AddRule(glob string, action Action) *Builder {
	pattern, err := domain.FilePattern(glob)
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	b.reg.Add(domain.Rule{Pattern: pattern, Action: action})
	return b
}

// Phony declares a named rule with no file product.
func (b *Builder) Phony(name string, action Action) *Builder {
	b.reg.Add(domain.Rule{Pattern: domain.PhonyPattern(name), Action: action})
	return b
}

// Rule adds an already-constructed rule.
func (b *Builder) Rule(r Rule) *Builder {
	b.reg.Add(r)
	return b
}

// Rules adds a batch of rules in order.
func (b *Builder) Rules(rules ...Rule) *Builder {
	for _, r := range rules {
		b.reg.Add(r)
	}
	return b
}

// Want appends to the script-declared want list.
func (b *Builder) Want(names ...string) *Builder {
	b.wants = append(b.wants, names...)
	return b
}

// WantOverride sets the option-level want list, which wins over anything
// declared with Want.
func (b *Builder) WantOverride(names ...string) *Builder {
	b.opts.Want = names
	return b
}

// WithTracer attaches a progress tracer (for example the progrock
// recorder); the default is a no-op.
func (b *Builder) WithTracer(t Tracer) *Builder {
	b.tracer = t
	return b
}

// Run executes the build and returns its outcome. Pattern errors collected
// during declaration surface here, before anything runs.
func (b *Builder) Run(ctx context.Context) error {
	if len(b.errs) > 0 {
		return errors.Join(b.errs...)
	}
	engine := exec.NewEngine(b.tracer, fs.NewFingerprinter(), fileset.NewExpander())
	return engine.Run(ctx, b.opts, b.reg, b.wants)
}

// Main runs the build under a signal-aware context and exits the process
// on fatal error. It is the terminal call of a standalone build script.
func (b *Builder) Main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := b.Run(ctx); err != nil {
		// zerr prints a full report with metadata via %+v.
		_, _ = fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}
