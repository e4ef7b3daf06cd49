package domain

import (
	"strings"

	"go.trai.ch/zerr"
)

// Level is a log verbosity level. Levels ascend in verbosity from LevelError
// to LevelChatty; a sink configured at level L emits every record whose level
// is <= L. The zero value means "unset" so option defaulting can distinguish
// an absent level from an explicit error-only configuration.
type Level int

const (
	// LevelError is for build failures and fatal conditions.
	LevelError Level = iota + 1
	// LevelWarn is for recoverable oddities.
	LevelWarn
	// LevelMessage is for the one-line build summary.
	LevelMessage
	// LevelCommand echoes the commands a rule executes.
	LevelCommand
	// LevelNormal is for per-target progress.
	LevelNormal
	// LevelVerbose is for detailed engine tracing, including full error
	// reports.
	LevelVerbose
	// LevelChatty is for everything else.
	LevelChatty
)

var levelNames = map[Level]string{
	LevelError:   "error",
	LevelWarn:    "warn",
	LevelMessage: "message",
	LevelCommand: "command",
	LevelNormal:  "normal",
	LevelVerbose: "verbose",
	LevelChatty:  "chatty",
}

// String returns the lowercase level name.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unset"
}

// ParseLevel parses a level name as used in configuration files.
func ParseLevel(s string) (Level, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for l, name := range levelNames {
		if name == want {
			return l, nil
		}
	}
	return 0, zerr.With(ErrConfig, "log_level", s)
}

// Logger is the sink contract the engine logs through. It is part of the
// option record (CustomLogger), so it lives with the domain model rather
// than the ports. Implementations must be safe for concurrent use.
type Logger interface {
	Logf(level Level, format string, args ...any)
}
