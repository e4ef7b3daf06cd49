// Package logger implements the fan-out log sink with per-destination
// verbosity.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.trai.ch/fab/internal/core/domain"
	"go.trai.ch/zerr"
)

// sink is one destination with its own threshold. Writes are serialized per
// sink so concurrent rules cannot interleave partial lines.
type sink struct {
	mu    sync.Mutex
	w     io.Writer
	level domain.Level
}

func (s *sink) emit(level domain.Level, msg string) {
	if level > s.level {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.w, msg)
}

// FanOut fans records out to a console sink, an optional plain-text file
// sink, and an optional custom logger, each filtered independently.
type FanOut struct {
	sinks  []*sink
	custom domain.Logger
	closer io.Closer
}

var _ domain.Logger = (*FanOut)(nil)

// NewFanOut builds the run's logger from the options. The console sink
// writes to stderr at ConsoleLevel; FileLogPath, when set, adds a file sink
// at FileLevel; CustomLogger, when set, receives every record unfiltered.
func NewFanOut(opts domain.Options) (*FanOut, error) {
	f := &FanOut{custom: opts.CustomLogger}
	f.sinks = append(f.sinks, &sink{w: os.Stderr, level: opts.ConsoleLevel})

	if opts.FileLogPath != "" {
		file, err := os.OpenFile(opts.FileLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // Path comes from the user's own options
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to open log file"), "path", opts.FileLogPath)
		}
		f.sinks = append(f.sinks, &sink{w: file, level: opts.FileLevel})
		f.closer = file
	}
	return f, nil
}

// NewForWriter builds a single-sink fan-out over an explicit writer.
func NewForWriter(w io.Writer, level domain.Level) *FanOut {
	return &FanOut{sinks: []*sink{{w: w, level: level}}}
}

// Logf formats the record once and hands it to every sink.
func (f *FanOut) Logf(level domain.Level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	for _, s := range f.sinks {
		s.emit(level, msg)
	}
	if f.custom != nil {
		f.custom.Logf(level, format, args...)
	}
}

// Close releases the file sink, if any.
func (f *FanOut) Close() error {
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}
