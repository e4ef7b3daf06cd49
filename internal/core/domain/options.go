package domain

import (
	"path/filepath"

	"go.trai.ch/zerr"
)

// DefaultThreads is the worker budget used when Options.Threads is unset.
const DefaultThreads = 4

// Options configures a run. The zero value is usable: defaults are applied
// by WithDefaults at run entry.
type Options struct {
	// ProjectRoot is the directory target names resolve against.
	// Defaults to the current directory.
	ProjectRoot string

	// Threads bounds the number of rule bodies doing real work at once.
	// Rules suspended on Need do not count. Defaults to DefaultThreads.
	Threads int

	// ConsoleLevel filters the console sink. Defaults to LevelMessage.
	ConsoleLevel Level

	// FileLevel filters the file sink. Defaults to LevelVerbose.
	FileLevel Level

	// FileLogPath enables the plain-text file sink when non-empty.
	FileLogPath string

	// CustomLogger, when non-nil, receives every record regardless of the
	// sink levels above.
	CustomLogger Logger

	// Want overrides the script-declared want list when non-empty.
	Want []string

	// FailOnError makes the driver surface a build failure as a fatal
	// engine error instead of logging and returning normally.
	FailOnError bool
}

// WithDefaults returns a copy with unset fields filled in and the project
// root made absolute.
func (o Options) WithDefaults() Options {
	if o.ProjectRoot == "" {
		o.ProjectRoot = "."
	}
	if abs, err := filepath.Abs(o.ProjectRoot); err == nil {
		o.ProjectRoot = abs
	}
	if o.Threads == 0 {
		o.Threads = DefaultThreads
	}
	if o.ConsoleLevel == 0 {
		o.ConsoleLevel = LevelMessage
	}
	if o.FileLevel == 0 {
		o.FileLevel = LevelVerbose
	}
	return o
}

// Validate rejects option records the engine cannot run with.
func (o Options) Validate() error {
	if o.Threads <= 0 {
		return zerr.With(ErrConfig, "threads", o.Threads)
	}
	if o.ConsoleLevel < LevelError || o.ConsoleLevel > LevelChatty {
		return zerr.With(ErrConfig, "console_level", int(o.ConsoleLevel))
	}
	if o.FileLevel < LevelError || o.FileLevel > LevelChatty {
		return zerr.With(ErrConfig, "file_level", int(o.FileLevel))
	}
	return nil
}
