package domain

import "context"

// Validity is the rebuild status of a rule during a run. Only Valid exists
// today; the incremental-build checker that will produce other values is not
// implemented yet, but WhenNeeded already consults this placeholder.
type Validity uint8

const (
	// Valid means the rule's product is considered up to date once built.
	Valid Validity = iota
)

// RunContext is the ambient state visible to an action while it runs. The
// engine's execution context implements it; actions never see the concrete
// type.
type RunContext interface {
	// Need suspends the action until every named target has been produced.
	// Names resolve like wants: phony first, file under the project root
	// otherwise. The caller's worker slot is released while waiting.
	Need(ctx context.Context, names ...string) error

	// NeedTargets is Need for already-resolved targets.
	NeedTargets(ctx context.Context, targets ...Target) error

	// NeedFileset expands the fileset against the project root and needs
	// every matched file.
	NeedFileset(ctx context.Context, fs Fileset) error

	// WhenNeeded needs the named file and then runs body if the file's rule
	// is considered in need of its product. With the rebuild checker not yet
	// implemented the status is always Valid, so body always runs.
	WhenNeeded(ctx context.Context, file string, body func(context.Context) error) error

	// Logf emits a record to the run's logger.
	Logf(level Level, format string, args ...any)

	// Options returns the options the run was started with.
	Options() Options
}

// Action is the user-supplied body of a rule. For file rules the resolved
// file target is passed; for phony rules the target carries the phony name.
type Action func(ctx context.Context, rc RunContext, target Target) error

// Rule pairs a target pattern with the action that produces matching targets.
type Rule struct {
	Pattern TargetPattern
	Action  Action
}
