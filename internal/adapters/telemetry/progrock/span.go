package progrock

import (
	"fmt"

	"github.com/vito/progrock"
)

// Span implements ports.Span wrapping *progrock.VertexRecorder.
type Span struct {
	vertex *progrock.VertexRecorder
	err    error
}

// End marks the vertex done, carrying any recorded error.
func (s *Span) End() {
	s.vertex.Done(s.err)
}

// RecordError remembers the error for End.
func (s *Span) RecordError(err error) {
	s.err = err
}

// SetAttribute writes the pair onto the vertex output.
func (s *Span) SetAttribute(key string, value any) {
	_, _ = fmt.Fprintf(s.vertex.Stdout(), "%s=%v\n", key, value)
}
