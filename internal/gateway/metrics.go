package gateway

import (
	"context"
	"strconv"
	"time"

	"github.com/fyrsmithlabs/ragbrain/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/ragbrain/internal/gateway"

// Metrics holds gateway request instruments.
type Metrics struct {
	duration metric.Float64Histogram
	requests metric.Int64Counter
	errors   metric.Int64Counter
}

// NewMetrics creates gateway metrics on the global meter provider.
func NewMetrics(logger *logging.Logger) *Metrics {
	return newMetrics(otel.Meter(instrumentationName), logger)
}

func newMetrics(meter metric.Meter, logger *logging.Logger) *Metrics {
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx := context.Background()
	m := &Metrics{}
	var err error

	m.duration, err = meter.Float64Histogram(
		"ragbrain.gateway.request.duration",
		metric.WithDescription("Latency of gateway calls by operation and HTTP status"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create gateway duration histogram", zap.Error(err))
	}

	m.requests, err = meter.Int64Counter(
		"ragbrain.gateway.requests",
		metric.WithDescription("Gateway calls by operation and HTTP status"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create gateway request counter", zap.Error(err))
	}

	m.errors, err = meter.Int64Counter(
		"ragbrain.gateway.errors",
		metric.WithDescription("Failed gateway calls by operation and error class (transport, parse, status)"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create gateway error counter", zap.Error(err))
	}
	return m
}

// Record records one call.
func (m *Metrics) Record(ctx context.Context, op string, status int, d time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("status", strconv.Itoa(status)),
	)
	if m.duration != nil {
		m.duration.Record(ctx, d.Seconds(), attrs)
	}
	if m.requests != nil {
		m.requests.Add(ctx, 1, attrs)
	}
	if err != nil && m.errors != nil {
		m.errors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", op),
			attribute.String("class", errorClass(err)),
		))
	}
}

func errorClass(err error) string {
	switch err.(type) {
	case *TransportError:
		return "transport"
	case *ParseError:
		return "parse"
	case *StatusError:
		return "status"
	default:
		return "other"
	}
}
