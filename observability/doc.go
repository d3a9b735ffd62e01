// Package observability wires OpenTelemetry tracing and metrics into the
// reduction pipeline.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("xpdflow"))
//	defer tp.Shutdown(ctx)
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("xpdflow"))
//	defer mp.Shutdown(ctx)
//	metrics, err := observability.NewMetrics(observability.Meter("xpdflow"))
//	metrics.RecordNode(ctx, "gen_mask", "ok", duration)
//
// Health:
//
//	health := observability.NewServiceHealth("xpdflow", version)
//	health.AddComponent(observability.Health{Name: "pipeline", Status: observability.HealthStatusUp})
package observability
