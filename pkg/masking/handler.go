package masking

import (
	"context"
	"log/slog"
)

// Handler wraps an slog.Handler and masks every attribute value's string
// representation before it reaches the wrapped handler, so every call
// site in the codebase gets redaction for free rather than each log call
// needing to remember to mask its own arguments.
type Handler struct {
	next    slog.Handler
	service *Service
}

// NewHandler wraps next with the built-in redaction pattern set.
func NewHandler(next slog.Handler, service *Service) *Handler {
	return &Handler{next: next, service: service}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	masked := slog.NewRecord(record.Time, record.Level, h.service.Mask(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		masked.AddAttrs(h.maskAttr(a))
		return true
	})
	return h.next.Handle(ctx, masked)
}

func (h *Handler) maskAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		masked := make([]slog.Attr, len(group))
		for i, ga := range group {
			masked[i] = h.maskAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(masked...)}
	}
	return slog.Attr{Key: a.Key, Value: slog.StringValue(h.service.Mask(a.Value.String()))}
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = h.maskAttr(a)
	}
	return &Handler{next: h.next.WithAttrs(masked), service: h.service}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name), service: h.service}
}
