package logging

import (
	"context"
	"errors"
	"log/slog"
)

// Fanout sends every record to each handler that accepts its level. A
// failing sink does not stop the others.
type Fanout struct {
	sinks []slog.Handler
}

func NewFanout(sinks ...slog.Handler) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.sinks {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *Fanout) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range f.sinks {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f *Fanout) WithGroup(name string) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f *Fanout) each(fn func(slog.Handler) slog.Handler) *Fanout {
	out := make([]slog.Handler, len(f.sinks))
	for i, h := range f.sinks {
		out[i] = fn(h)
	}
	return &Fanout{sinks: out}
}
