// Package ports defines the interfaces the engine depends on.
package ports

import "context"

// Tracer records per-rule progress. The progrock adapter renders it as a
// live vertex tree; the noop adapter is the default for library embedding.
//
//go:generate go run go.uber.org/mock/mockgen -source=tracer.go -destination=mocks/mock_tracer.go -package=mocks
type Tracer interface {
	// Start opens a span for one rule execution and returns the context the
	// rule runs under. The noop and progrock adapters return ctx unchanged;
	// the span is not stored in the context.
	Start(ctx context.Context, name string) (context.Context, Span)
}

// Span is one rule execution being recorded.
type Span interface {
	// End closes the span.
	End()

	// RecordError marks the span failed.
	RecordError(err error)

	// SetAttribute attaches a key/value to the span.
	SetAttribute(key string, value any)
}
