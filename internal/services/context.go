package services

import "context"

type contextKey string

const (
	taskIDKey    contextKey = "task_id"
	operationKey contextKey = "operation"
	courseKey    contextKey = "course"
)

// WithTaskID annotates context with a download task identifier.
func WithTaskID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, taskIDKey, id)
}

// TaskIDFromContext extracts the download task identifier if present.
func TaskIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(taskIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithOperation annotates context with the portal operation name.
func WithOperation(ctx context.Context, op string) context.Context {
	if op == "" {
		return ctx
	}
	return context.WithValue(ctx, operationKey, op)
}

// OperationFromContext returns the portal operation name if present.
func OperationFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(operationKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithCourse annotates context with a course display name.
func WithCourse(ctx context.Context, course string) context.Context {
	if course == "" {
		return ctx
	}
	return context.WithValue(ctx, courseKey, course)
}

// CourseFromContext returns the course display name if present.
func CourseFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(courseKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
