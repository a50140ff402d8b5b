package slog

import (
	"context"
	"log/slog"
)

type contextKey int

const taskIDKey contextKey = 0

// WithTaskID returns a context that carries a task ID for log records.
func WithTaskID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, taskIDKey, id)
}

// TaskID returns the task ID carried by ctx, if any.
func TaskID(ctx context.Context) string {
	id, _ := ctx.Value(taskIDKey).(string)
	return id
}

// TaskHandler adds a task_id attribute to records logged with a context
// created by WithTaskID.
type TaskHandler struct {
	slog.Handler
}

// NewTaskHandler wraps h.
func NewTaskHandler(h slog.Handler) *TaskHandler {
	return &TaskHandler{Handler: h}
}

// Handle adds the task ID and delegates to the wrapped handler.
func (h *TaskHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := TaskID(ctx); id != "" {
		r.AddAttrs(slog.String("task_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs keeps the wrapper around the derived handler.
func (h *TaskHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TaskHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup keeps the wrapper around the derived handler.
func (h *TaskHandler) WithGroup(name string) slog.Handler {
	return &TaskHandler{Handler: h.Handler.WithGroup(name)}
}
