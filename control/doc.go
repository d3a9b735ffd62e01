// Package control serves the runtime settings of a running reduction over
// HTTP so an operator can switch the masking mode, adjust mask and PDF
// options, force a mask recomputation and check health without rebuilding
// the graph.
//
//	GET   /healthz               component health
//	GET   /settings              current settings snapshot
//	PUT   /settings/mask/mode    {"mode": "first"}
//	PATCH /settings/mask         {"alpha": 2.5, "upper_thresh": null}
//	POST  /settings/mask/reset   recompute the first-mode mask on the next frame
//	PUT   /settings/calibration  {"enabled": false}
//	PATCH /settings/pdf          {"qmax": 20, "rpoly": null}
//
// Successful responses wrap their payload as {"data": ...}. Failures are
// rendered as errors.ErrorResponse with the status of the AppError.
//
// Server implements component.Component:
//
//	srv := control.New(cfg.ControlAddr, pipeline.Runtime(), registry.HealthAll, log)
//	_ = registry.Register(srv)
package control
