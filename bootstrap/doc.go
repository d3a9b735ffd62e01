// Package bootstrap assembles an xpdflow process: logging, telemetry, the
// runtime settings, the reduction pipeline and its control surface, all
// managed by one component registry.
//
//	cfg, err := reduction.LoadConfig()
//	app, err := bootstrap.NewApp(ctx, cfg, bootstrap.WithWatch("config.yml"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = app.RunTask(ctx, func(ctx context.Context) error {
//	    return feedSeries(ctx, app.Pipeline)
//	})
//
// Run blocks until SIGINT, SIGTERM or context cancellation. RunTask runs a
// finite workflow and shuts down when it returns.
package bootstrap
