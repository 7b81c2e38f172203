package logging

import (
	"context"
	"log/slog"

	"experimenter/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRequestID is the standardized key for HTTP request correlation identifiers.
	FieldRequestID = "request_id"
	// FieldExperiment is the standardized key for experiment slugs.
	FieldExperiment = "experiment"
	// FieldUser is the standardized key for the acting user's email.
	FieldUser = "user"
	// FieldTaskID is the standardized key for background task identifiers.
	FieldTaskID = "task_id"
	// FieldEventType tags notable lifecycle events (status changes, task failures).
	FieldEventType = "event_type"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRequestID, rid))
	}
	if slug, ok := services.ExperimentFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldExperiment, slug))
	}
	if user, ok := services.UserFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldUser, user))
	}
	if id, ok := services.TaskIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldTaskID, id))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
