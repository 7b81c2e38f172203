package services

import "context"

type contextKey string

const (
	requestIDKey  contextKey = "request_id"
	experimentKey contextKey = "experiment"
	userKey       contextKey = "user"
	taskIDKey     contextKey = "task_id"
)

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithExperiment annotates context with the experiment slug being handled.
func WithExperiment(ctx context.Context, slug string) context.Context {
	if slug == "" {
		return ctx
	}
	return context.WithValue(ctx, experimentKey, slug)
}

// ExperimentFromContext returns the experiment slug if present.
func ExperimentFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(experimentKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithUser annotates context with the acting user's email.
func WithUser(ctx context.Context, email string) context.Context {
	if email == "" {
		return ctx
	}
	return context.WithValue(ctx, userKey, email)
}

// UserFromContext returns the acting user's email if present.
func UserFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(userKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithTaskID annotates context with the background task identifier.
func WithTaskID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, taskIDKey, id)
}

// TaskIDFromContext extracts the background task identifier if present.
func TaskIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(taskIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}
