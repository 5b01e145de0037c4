package ctxlogger

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// AppendCtx returns a context carrying the given slog attribute in addition
// to any attributes already stored on the context.
func AppendCtx(parent context.Context, attr slog.Attr) context.Context {
	if parent == nil {
		parent = context.Background()
	}

	if attrs, ok := parent.Value(ctxKey{}).([]slog.Attr); ok {
		newAttrs := make([]slog.Attr, 0, len(attrs)+1)
		newAttrs = append(newAttrs, attrs...)
		newAttrs = append(newAttrs, attr)
		return context.WithValue(parent, ctxKey{}, newAttrs)
	}

	return context.WithValue(parent, ctxKey{}, []slog.Attr{attr})
}

// ContextHandler adds attributes stored on the context to every record.
type ContextHandler struct {
	slog.Handler
}

func (h ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(ctxKey{}).([]slog.Attr); ok {
		for _, attr := range attrs {
			r.AddAttrs(attr)
		}
	}

	return h.Handler.Handle(ctx, r)
}
