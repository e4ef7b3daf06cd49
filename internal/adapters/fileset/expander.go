// Package fileset expands declarative filesets against the project root.
package fileset

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"go.trai.ch/fab/internal/core/domain"
	"go.trai.ch/fab/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

var _ ports.FilesetExpander = (*Expander)(nil)

// Expander expands filesets using doublestar globs.
type Expander struct{}

// NewExpander creates a new Expander.
func NewExpander() *Expander {
	return &Expander{}
}

// Expand returns the project-root-relative paths matched by the fileset,
// sorted and deduplicated. Include globs are expanded concurrently.
func (e *Expander) Expand(ctx context.Context, projectRoot string, fset domain.Fileset) ([]string, error) {
	base := projectRoot
	if fset.Dir != "" {
		base = filepath.Join(projectRoot, fset.Dir)
	}
	fsys := os.DirFS(base)

	var mu sync.Mutex
	var matches []string

	g, _ := errgroup.WithContext(ctx)
	for _, include := range fset.Include {
		g.Go(func() error {
			found, err := doublestar.Glob(fsys, filepath.ToSlash(include), doublestar.WithFilesOnly())
			if err != nil {
				return zerr.With(zerr.Wrap(err, "invalid fileset glob"), "glob", include)
			}
			mu.Lock()
			matches = append(matches, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dir := filepath.ToSlash(fset.Dir)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if excluded(fset.Exclude, m) {
			continue
		}
		out = append(out, filepath.FromSlash(path.Join(dir, m)))
	}

	slices.Sort(out)
	return slices.Compact(out), nil
}

func excluded(globs []string, rel string) bool {
	for _, g := range globs {
		if ok, err := doublestar.Match(filepath.ToSlash(g), rel); err == nil && ok {
			return true
		}
	}
	return false
}
