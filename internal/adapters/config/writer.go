package config

import (
	"strings"

	"go.trai.ch/fab/internal/core/domain"
)

// logWriter routes command output into the run's logger line by line.
type logWriter struct {
	rc    domain.RunContext
	level domain.Level
}

func newLogWriter(rc domain.RunContext, level domain.Level) *logWriter {
	return &logWriter{rc: rc, level: level}
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	for line := range strings.Lines(strings.TrimSuffix(string(p), "\n")) {
		w.rc.Logf(w.level, "%s", strings.TrimSuffix(line, "\n"))
	}
	return len(p), nil
}
