package websocket

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kosonkh7/SOPO-Dashboard/internal/infrastructure"
)

// hubMetrics records connection and broadcast counts. A nil *hubMetrics
// records nothing.
type hubMetrics struct {
	connectionsActive metric.Int64UpDownCounter
	messagesTotal     metric.Int64Counter
	droppedMessages   metric.Int64Counter
}

func newHubMetrics() (*hubMetrics, error) {
	meter := otel.Meter(infrastructure.MeterName)

	connectionsActive, err := meter.Int64UpDownCounter(
		"websocket_connections_active",
		metric.WithDescription("Number of active WebSocket connections"),
	)
	if err != nil {
		return nil, err
	}

	messagesTotal, err := meter.Int64Counter(
		"websocket_messages_total",
		metric.WithDescription("Total number of WebSocket messages delivered to clients"),
	)
	if err != nil {
		return nil, err
	}

	droppedMessages, err := meter.Int64Counter(
		"websocket_dropped_messages_total",
		metric.WithDescription("Messages dropped because a queue was full"),
	)
	if err != nil {
		return nil, err
	}

	return &hubMetrics{
		connectionsActive: connectionsActive,
		messagesTotal:     messagesTotal,
		droppedMessages:   droppedMessages,
	}, nil
}

func (m *hubMetrics) connectionChanged(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.connectionsActive.Add(ctx, delta)
}

func (m *hubMetrics) delivered(ctx context.Context, messageType string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.messagesTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String("type", messageType)))
}

func (m *hubMetrics) dropped(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.droppedMessages.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
