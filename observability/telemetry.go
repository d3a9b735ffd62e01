package observability

import (
	"context"
	"errors"
	"time"
)

// TelemetryConfig switches the OTLP exporters on. Both are off by default.
type TelemetryConfig struct {
	Tracing    bool          `yaml:"tracing" mapstructure:"tracing"`
	Metrics    bool          `yaml:"metrics" mapstructure:"metrics"`
	Endpoint   string        `yaml:"endpoint" mapstructure:"endpoint"`
	Secure     bool          `yaml:"secure" mapstructure:"secure"`
	SampleRate float64       `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	Interval   time.Duration `yaml:"interval" mapstructure:"interval"`
}

// ApplyDefaults fills the collector endpoint, sample rate and interval.
func (c *TelemetryConfig) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1
	}
	if c.Interval == 0 {
		c.Interval = 15 * time.Second
	}
}

// ShutdownFunc flushes and stops the providers started by StartTelemetry.
type ShutdownFunc func(ctx context.Context) error

// StartTelemetry initializes the enabled providers and installs them as the
// otel globals.
func StartTelemetry(ctx context.Context, cfg TelemetryConfig, service, version, environment string) (ShutdownFunc, error) {
	var shutdowns []ShutdownFunc
	shutdown := func(ctx context.Context) error {
		var errs []error
		for i := len(shutdowns) - 1; i >= 0; i-- {
			errs = append(errs, shutdowns[i](ctx))
		}
		return errors.Join(errs...)
	}

	if cfg.Tracing {
		tp, err := InitTracer(ctx, TracerConfig{
			ServiceName:    service,
			ServiceVersion: version,
			Environment:    environment,
			Endpoint:       cfg.Endpoint,
			Insecure:       !cfg.Secure,
			SampleRate:     cfg.SampleRate,
		})
		if err != nil {
			return nil, err
		}
		shutdowns = append(shutdowns, tp.Shutdown)
	}
	if cfg.Metrics {
		mp, err := InitMeter(ctx, &MeterConfig{
			ServiceName:    service,
			ServiceVersion: version,
			Environment:    environment,
			Endpoint:       cfg.Endpoint,
			Insecure:       !cfg.Secure,
			Interval:       cfg.Interval,
		})
		if err != nil {
			_ = shutdown(ctx)
			return nil, err
		}
		shutdowns = append(shutdowns, mp.Shutdown)
	}
	return shutdown, nil
}
