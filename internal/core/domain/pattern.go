package domain

import (
	"regexp"
	"strings"

	"go.trai.ch/zerr"
)

// PatternKind discriminates the two pattern variants.
type PatternKind uint8

const (
	// PatternFile matches file targets by glob.
	PatternFile PatternKind = iota
	// PatternPhony matches a phony target by exact name.
	PatternPhony
)

// TargetPattern is the left-hand side of a rule: a file glob or an exact
// phony name. File globs are compiled once, at declaration.
type TargetPattern struct {
	kind PatternKind
	raw  string
	re   *regexp.Regexp
}

// FilePattern compiles a shell-style mask into a file pattern. The mask
// accepts both '/' and '\' as separators. '*' matches one or more characters
// within a path segment, '**' matches zero or more whole segments, '?'
// matches a single character, and '.' is literal.
func FilePattern(glob string) (TargetPattern, error) {
	norm := strings.ReplaceAll(glob, `\`, "/")
	re, err := compileGlob(norm)
	if err != nil {
		return TargetPattern{}, zerr.With(zerr.Wrap(err, "invalid file pattern"), "pattern", glob)
	}
	return TargetPattern{kind: PatternFile, raw: norm, re: re}, nil
}

// PhonyPattern returns a pattern matching exactly the given phony name.
func PhonyPattern(name string) TargetPattern {
	return TargetPattern{kind: PatternPhony, raw: name}
}

// Kind returns the pattern variant.
func (p TargetPattern) Kind() PatternKind { return p.kind }

// String returns the declared pattern text (separator-normalized for globs).
func (p TargetPattern) String() string { return p.raw }

// Key identifies the pattern within a registry. Declaring a second rule with
// the same key replaces the first.
func (p TargetPattern) Key() string {
	if p.kind == PatternPhony {
		return "phony\x00" + p.raw
	}
	return "file\x00" + p.raw
}

// MatchFile reports whether the compiled glob matches the given
// slash-separated path, relative to the project root.
func (p TargetPattern) MatchFile(rel string) bool {
	if p.kind != PatternFile || p.re == nil {
		return false
	}
	return p.re.MatchString(rel)
}

// MatchPhony reports whether the pattern matches the given phony name.
func (p TargetPattern) MatchPhony(name string) bool {
	return p.kind == PatternPhony && p.raw == name
}

// compileGlob translates a separator-normalized mask into an anchored regexp.
// '**' crosses separators; '*' and '?' do not.
func compileGlob(mask string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")

	runes := []rune(mask)
	for i := 0; i < len(runes); {
		switch c := runes[i]; {
		case c == '/' && string(runes[i+1:]) == "**":
			// Trailing "/**": zero or more whole segments below this point.
			b.WriteString(`(?:/[^/]+)*`)
			i = len(runes)
		case c == '*' && i+1 < len(runes) && runes[i+1] == '*':
			if i+2 < len(runes) && runes[i+2] == '/' {
				// "**/": zero or more leading segments.
				b.WriteString(`(?:[^/]+/)*`)
				i += 3
			} else {
				b.WriteString(`.*`)
				i += 2
			}
		case c == '*':
			b.WriteString(`[^/]+`)
			i++
		case c == '?':
			b.WriteString(`[^/]`)
			i++
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}

	b.WriteString("$")
	return regexp.Compile(b.String())
}
