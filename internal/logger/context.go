package logger

import (
	"context"
	"sync"
)

type ctxKey struct{}

var (
	fallbackMu sync.RWMutex
	fallback   = New(nil)
)

// GetDefault returns the logger used when a context carries none.
func GetDefault() *Logger {
	fallbackMu.RLock()
	defer fallbackMu.RUnlock()
	return fallback
}

// SetDefaultLogger replaces the fallback logger. nil is ignored.
func SetDefaultLogger(l *Logger) {
	if l == nil {
		return
	}
	fallbackMu.Lock()
	fallback = l
	fallbackMu.Unlock()
}

// WithContext attaches l to ctx.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger attached to ctx, or the default one.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
			return l
		}
	}
	return GetDefault()
}

// Annotate returns a context whose logger carries fields in addition to the current ones.
func Annotate(ctx context.Context, fields Fields) context.Context {
	return FromContext(ctx).WithFields(fields).WithContext(ctx)
}

// WithRun tags every later log line with the run ID.
func WithRun(ctx context.Context, id string) context.Context {
	return Annotate(ctx, Fields{FieldRunID: id})
}

// WithComponent tags log lines with the emitting component.
func WithComponent(ctx context.Context, name string) context.Context {
	return Annotate(ctx, Fields{FieldComponent: name})
}

// WithFile tags log lines with the file being captioned.
func WithFile(ctx context.Context, path string) context.Context {
	return Annotate(ctx, Fields{FieldFile: path})
}

// RunID returns the run ID carried by the context logger, if any.
func RunID(ctx context.Context) string {
	id, _ := FromContext(ctx).Data[FieldRunID].(string)
	return id
}
