package ports

import (
	"context"

	"go.trai.ch/fab/internal/core/domain"
)

// FilesetExpander expands a declarative fileset into concrete paths.
type FilesetExpander interface {
	// Expand returns the project-root-relative paths matched by the
	// fileset, sorted.
	Expand(ctx context.Context, projectRoot string, fs domain.Fileset) ([]string, error)
}
