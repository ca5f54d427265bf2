package association

import (
	"context"

	"github.com/datawire/dlib/dlog"
)

// Logger is the narrow logging surface the association needs. The core
// itself is context-free and synchronous, with no suspension points, so
// rather than threading a context.Context through every method the
// association captures one Logger at construction time.
type Logger interface {
	Tracef(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// dlogLogger adapts dlib's context-scoped dlog package to the Logger
// interface by closing over the context captured when the association
// (or the endpoint hosting it) was created.
type dlogLogger struct {
	ctx context.Context
}

// NewDlogLogger wraps ctx as a Logger.
func NewDlogLogger(ctx context.Context) Logger {
	return dlogLogger{ctx: ctx}
}

func (l dlogLogger) Tracef(format string, args ...interface{}) { dlog.Tracef(l.ctx, format, args...) }
func (l dlogLogger) Debugf(format string, args ...interface{}) { dlog.Debugf(l.ctx, format, args...) }
func (l dlogLogger) Errorf(format string, args ...interface{}) { dlog.Errorf(l.ctx, format, args...) }

// noopLogger is used when a caller constructs an Association without
// supplying a Logger.
type noopLogger struct{}

func (noopLogger) Tracef(string, ...interface{}) {}
func (noopLogger) Debugf(string, ...interface{}) {}
func (noopLogger) Errorf(string, ...interface{}) {}
