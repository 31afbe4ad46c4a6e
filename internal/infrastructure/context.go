package infrastructure

import (
	"context"

	"github.com/google/uuid"
)

type contextKey int

const (
	traceIDKey contextKey = iota
	jobIDKey
	seriesKey
)

// Series identifies one (center, item) volume series
type Series struct {
	Center string
	Item   string
}

// GenerateTraceID returns a new random trace id
func GenerateTraceID() string {
	return uuid.New().String()
}

// WithTraceID returns a copy of ctx carrying traceID
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// GetTraceID returns the trace id carried by ctx, or ""
func GetTraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// EnsureTraceID returns ctx unchanged when it already has a trace id and a
// copy with a fresh one otherwise.
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) != "" {
		return ctx
	}
	return WithTraceID(ctx, GenerateTraceID())
}

// WithJobID marks ctx as running on behalf of a ranking job
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobIDKey, jobID)
}

// GetJobID returns the ranking job id carried by ctx, or ""
func GetJobID(ctx context.Context) string {
	id, _ := ctx.Value(jobIDKey).(string)
	return id
}

// WithSeries marks ctx as evaluating the (center, item) series
func WithSeries(ctx context.Context, center, item string) context.Context {
	return context.WithValue(ctx, seriesKey, Series{Center: center, Item: item})
}

// SeriesFromContext returns the series carried by ctx
func SeriesFromContext(ctx context.Context) (Series, bool) {
	s, ok := ctx.Value(seriesKey).(Series)
	return s, ok
}
