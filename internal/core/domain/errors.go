package domain

import (
	"errors"

	"go.trai.ch/zerr"
)

var (
	// ErrNoRule is returned when no rule matches a target and no file exists
	// at its path.
	ErrNoRule = zerr.New("no rule to build target")

	// ErrActionFailed wraps an error returned (or a panic raised) by a user
	// action.
	ErrActionFailed = zerr.New("action failed")

	// ErrCancelled is the result of a future aborted by a pool reset.
	ErrCancelled = zerr.New("build cancelled")

	// ErrConfig is returned for invalid options.
	ErrConfig = zerr.New("invalid options")

	// ErrInternal is the sentinel for a broken engine invariant. No engine
	// code path returns it: a future completed a second time keeps its first
	// result and the second completion is ignored.
	ErrInternal = zerr.New("internal invariant violated")

	// ErrNoWants is returned when neither the options nor the script declare
	// any target to build.
	ErrNoWants = zerr.New("no targets requested")

	// ErrBuildFailed is the fatal error the driver surfaces when
	// FailOnError is set and any want failed.
	ErrBuildFailed = zerr.New("build failed")
)

// Flatten expands a tree of aggregate errors (errors.Join groups, possibly
// nested, possibly hidden behind wrap chains) into its leaf errors,
// preserving order. A wrap chain with a single cause is kept whole so leaf
// messages retain their context; a wrapper around a multi-error group is
// dropped in favor of the group's leaves.
func Flatten(err error) []error {
	if err == nil {
		return nil
	}
	if group, ok := err.(interface{ Unwrap() []error }); ok {
		var leaves []error
		for _, e := range group.Unwrap() {
			leaves = append(leaves, Flatten(e)...)
		}
		return leaves
	}
	if u := errors.Unwrap(err); u != nil {
		if inner := Flatten(u); len(inner) > 1 {
			return inner
		}
	}
	return []error{err}
}
