package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/xpdflow/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment.
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections.
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns defaults for a local collector.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the instruments recorded by the reduction pipeline.
type Metrics struct {
	framesTotal       metric.Int64Counter
	nodeDuration      metric.Float64Histogram
	nodeErrors        metric.Int64Counter
	maskFlagged       metric.Int64Counter
	maskDuration      metric.Float64Histogram
	operationTotal    metric.Int64Counter
	operationDuration metric.Float64Histogram
	errorTotal        metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	framesTotal, err := meter.Int64Counter("frames.total",
		metric.WithDescription("Frames emitted into the pipeline by input port"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frames.total counter: %w", err)
	}

	nodeDuration, err := meter.Float64Histogram("node.duration",
		metric.WithDescription("Duration of stream node executions in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating node.duration histogram: %w", err)
	}

	nodeErrors, err := meter.Int64Counter("node.errors",
		metric.WithDescription("Stream node executions that returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating node.errors counter: %w", err)
	}

	maskFlagged, err := meter.Int64Counter("mask.flagged",
		metric.WithDescription("Pixels flagged as outliers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating mask.flagged counter: %w", err)
	}

	maskDuration, err := meter.Float64Histogram("mask.duration",
		metric.WithDescription("Duration of outlier mask computations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating mask.duration histogram: %w", err)
	}

	operationTotal, err := meter.Int64Counter("operation.total",
		metric.WithDescription("Total number of operations"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating operation.total counter: %w", err)
	}

	operationDuration, err := meter.Float64Histogram("operation.duration",
		metric.WithDescription("Duration of operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating operation.duration histogram: %w", err)
	}

	errorTotal, err := meter.Int64Counter("error.total",
		metric.WithDescription("Total errors by type and component"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating error.total counter: %w", err)
	}

	return &Metrics{
		framesTotal:       framesTotal,
		nodeDuration:      nodeDuration,
		nodeErrors:        nodeErrors,
		maskFlagged:       maskFlagged,
		maskDuration:      maskDuration,
		operationTotal:    operationTotal,
		operationDuration: operationDuration,
		errorTotal:        errorTotal,
	}, nil
}

// RecordFrame counts a value emitted into an input port.
func (m *Metrics) RecordFrame(ctx context.Context, port string) {
	m.framesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("port", port)))
}

// RecordNode records one stream node execution.
func (m *Metrics) RecordNode(ctx context.Context, node, status string, duration time.Duration) {
	m.nodeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("node", node),
		attribute.String("status", status),
	))
	if status != "ok" {
		m.nodeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("node", node)))
	}
}

// RecordMask records one outlier mask computation.
func (m *Metrics) RecordMask(ctx context.Context, method string, flagged int, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("method", method))
	m.maskFlagged.Add(ctx, int64(flagged), attrs)
	m.maskDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordOperation records an operation execution.
func (m *Metrics) RecordOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
	m.operationTotal.Add(ctx, 1, attrs)
	m.operationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("operation", operation),
	))
}

// RecordError records an error by type and component.
func (m *Metrics) RecordError(ctx context.Context, errType, component string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", errType),
		attribute.String("component", component),
	))
}
