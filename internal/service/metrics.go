package service

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/dom/league-chat/internal/service"

type messageMetrics struct {
	persisted metric.Int64Counter
	pushed    metric.Int64Counter
	rejected  metric.Int64Counter
}

// newMessageMetrics uses the global meter provider; instruments are no-ops
// until an SDK provider is installed.
func newMessageMetrics() *messageMetrics {
	meter := otel.Meter(instrumentationName)

	persisted, _ := meter.Int64Counter("chat_messages_persisted_total",
		metric.WithDescription("Messages durably stored"))
	pushed, _ := meter.Int64Counter("chat_messages_pushed_total",
		metric.WithDescription("Messages pushed to an online recipient"))
	rejected, _ := meter.Int64Counter("chat_messages_rejected_total",
		metric.WithDescription("Send attempts that failed validation or persistence"))

	return &messageMetrics{
		persisted: persisted,
		pushed:    pushed,
		rejected:  rejected,
	}
}
