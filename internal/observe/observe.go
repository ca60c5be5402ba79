// Package observe bundles the structured logger and the tracer handed to
// every membank component.
package observe

import (
	"context"
	"io"

	"github.com/felixgeelhaar/bolt/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("membank")

// Observer handles logging and tracing.
type Observer struct {
	log *bolt.Logger
}

func newObserver(handler bolt.Handler, verbose bool) *Observer {
	l := bolt.New(handler)
	if !verbose {
		l.SetLevel(bolt.WARN)
	}
	return &Observer{log: l}
}

// New returns an Observer writing human-readable lines to out.
// Unless verbose, only warnings and errors are emitted.
func New(out io.Writer, verbose bool) *Observer {
	return newObserver(bolt.NewConsoleHandler(out), verbose)
}

// NewJSON is New with one JSON object per line.
func NewJSON(out io.Writer, verbose bool) *Observer {
	return newObserver(bolt.NewJSONHandler(out), verbose)
}

// Discard returns an Observer that drops all log output.
func Discard() *Observer {
	return New(io.Discard, false)
}

// OrDiscard returns o, or a discarding Observer when o is nil.
func OrDiscard(o *Observer) *Observer {
	if o == nil {
		return Discard()
	}
	return o
}

func (o *Observer) Log() *bolt.Logger {
	return o.log
}

// StartSpan starts a span on the membank tracer.
func (o *Observer) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// EndSpan records err on the span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Close flushes nothing today; handlers write synchronously.
func (o *Observer) Close() error {
	return nil
}
