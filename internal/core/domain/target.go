// Package domain contains the core domain model for the build engine:
// targets, patterns, rules, the rule registry, and the option record.
package domain

import (
	"path/filepath"
	"unique"
)

// TargetKind discriminates the two target variants.
type TargetKind uint8

const (
	// TargetFile identifies a target backed by a filesystem path.
	TargetFile TargetKind = iota
	// TargetPhony identifies a named target with no file on disk.
	TargetPhony
)

// Target identifies a buildable thing: either a file rooted at the project
// root or a phony name. The payload is interned so targets are cheap to copy
// and usable as map keys even when the same path is referenced from many
// rules.
type Target struct {
	kind TargetKind
	name unique.Handle[string]
}

// FileTarget returns a file target for the given path. The path is cleaned
// but not resolved against any root; use ResolveTarget for name resolution.
func FileTarget(path string) Target {
	return Target{kind: TargetFile, name: unique.Make(filepath.Clean(path))}
}

// PhonyTarget returns a phony target with the given name.
func PhonyTarget(name string) Target {
	return Target{kind: TargetPhony, name: unique.Make(name)}
}

// Kind returns the target variant.
func (t Target) Kind() TargetKind { return t.kind }

// IsFile reports whether the target is a file target.
func (t Target) IsFile() bool { return t.kind == TargetFile }

// IsPhony reports whether the target is a phony target.
func (t Target) IsPhony() bool { return t.kind == TargetPhony }

// Name returns the payload: the file path for file targets, the phony name
// otherwise.
func (t Target) Name() string {
	var zero unique.Handle[string]
	if t.name == zero {
		return ""
	}
	return t.name.Value()
}

// IsZero reports whether the target is the zero value.
func (t Target) IsZero() bool {
	var zero unique.Handle[string]
	return t.name == zero
}

// String renders the target for diagnostics.
func (t Target) String() string {
	if t.IsPhony() {
		return "phony:" + t.Name()
	}
	return t.Name()
}

// ResolveTarget maps a target name from a want list or a need call to a
// Target. A name that matches a phony pattern in the registry resolves to the
// phony target; anything else resolves to a file target under the project
// root. Phony deliberately wins over file when a bare name would match both.
func ResolveTarget(opts Options, reg *Registry, name string) Target {
	if reg != nil && reg.HasPhony(name) {
		return PhonyTarget(name)
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(opts.ProjectRoot, path)
	}
	return FileTarget(path)
}
