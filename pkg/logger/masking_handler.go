package logger

import (
	"context"
	"log/slog"
	"strings"
)

// maskRule tells how a sensitive attribute is rendered. keep is the number of
// trailing characters left visible.
type maskRule struct {
	keep int
}

var sensitiveKeys = map[string]maskRule{
	"password":        {},
	"token":           {},
	"secret":          {},
	"api_key":         {},
	"authorization":   {},
	"idempotency_key": {},
	"account_number":  {keep: 4},
	"upi_id":          {keep: 4},
	"ifsc_code":       {keep: 4},
}

// MaskingHandler hides credentials and payout details in log records,
// including attributes nested in groups and those bound with Logger.With.
type MaskingHandler struct {
	next slog.Handler
}

// NewMaskingHandler wraps next.
func NewMaskingHandler(next slog.Handler) *MaskingHandler {
	return &MaskingHandler{next: next}
}

func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		masked[i] = maskAttr(attr)
	}
	return &MaskingHandler{next: h.next.WithAttrs(masked)}
}

func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{next: h.next.WithGroup(name)}
}

func (h *MaskingHandler) Handle(ctx context.Context, record slog.Record) error {
	out := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(maskAttr(attr))
		return true
	})
	return h.next.Handle(ctx, out)
}

func maskAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() == slog.KindGroup {
		group := attr.Value.Group()
		masked := make([]slog.Attr, len(group))
		for i, a := range group {
			masked[i] = maskAttr(a)
		}
		return slog.Attr{Key: attr.Key, Value: slog.GroupValue(masked...)}
	}

	rule, ok := sensitiveKeys[strings.ToLower(attr.Key)]
	if !ok {
		return attr
	}
	return slog.String(attr.Key, mask(attr.Value.Resolve().String(), rule.keep))
}

func mask(value string, keep int) string {
	if keep <= 0 || len(value) <= keep*2 {
		return "***"
	}
	return "***" + value[len(value)-keep:]
}
