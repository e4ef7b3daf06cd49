package ports

import (
	"context"
	"io"
)

// Executor runs a single command for a declarative shell rule.
//
//go:generate go run go.uber.org/mock/mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type Executor interface {
	// Execute runs argv in dir with the given extra environment entries
	// ("KEY=VALUE") merged over the process environment, streaming combined
	// output to out. It returns an error if the command cannot be started
	// or exits non-zero.
	Execute(ctx context.Context, dir string, argv []string, env []string, out io.Writer) error
}
