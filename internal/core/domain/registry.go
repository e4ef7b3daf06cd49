package domain

import (
	"iter"
	"path/filepath"
)

// Registry is an ordered collection of rules keyed by target pattern.
// Declaration order is preserved because file-pattern lookup is
// first-declared-wins; a plain map would lose the tie-break. Redeclaring a
// pattern replaces the rule in place, keeping its original position.
//
// The registry is built single-threaded by the script builder and frozen
// once a run starts, so it carries no lock.
type Registry struct {
	rules []Rule
	index map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Add inserts a rule, replacing any earlier rule with the same pattern key.
func (r *Registry) Add(rule Rule) {
	key := rule.Pattern.Key()
	if i, ok := r.index[key]; ok {
		r.rules[i] = rule
		return
	}
	r.index[key] = len(r.rules)
	r.rules = append(r.rules, rule)
}

// Len returns the number of distinct patterns declared.
func (r *Registry) Len() int { return len(r.rules) }

// HasPhony reports whether a phony rule with the given name is declared.
func (r *Registry) HasPhony(name string) bool {
	_, ok := r.index[PhonyPattern(name).Key()]
	return ok
}

// Locate finds the rule for a target. Phony targets match by exact name.
// File targets are matched against file patterns in declaration order, with
// the path taken relative to the project root; the first match wins.
func (r *Registry) Locate(t Target, projectRoot string) (Rule, bool) {
	if t.IsPhony() {
		i, ok := r.index[PhonyPattern(t.Name()).Key()]
		if !ok {
			return Rule{}, false
		}
		return r.rules[i], true
	}

	rel := t.Name()
	if projectRoot != "" {
		if p, err := filepath.Rel(projectRoot, t.Name()); err == nil {
			rel = p
		}
	}
	rel = filepath.ToSlash(rel)

	for _, rule := range r.rules {
		if rule.Pattern.MatchFile(rel) {
			return rule, true
		}
	}
	return Rule{}, false
}

// All returns an iterator over the rules in declaration order.
func (r *Registry) All() iter.Seq[Rule] {
	return func(yield func(Rule) bool) {
		for _, rule := range r.rules {
			if !yield(rule) {
				return
			}
		}
	}
}
