package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/xpdflow/component"
	"github.com/kbukum/xpdflow/control"
	"github.com/kbukum/xpdflow/logger"
	"github.com/kbukum/xpdflow/observability"
	"github.com/kbukum/xpdflow/reduction"
	"github.com/kbukum/xpdflow/settings"
	"github.com/kbukum/xpdflow/version"
)

// componentLoggers are the named loggers the packages look up with
// logger.Get; NewApp binds them to the app logger.
var componentLoggers = []string{"component", "config", "gate", "link", "mask", "reduction", "settings"}

// App is one xpdflow process.
type App struct {
	Name       string
	Version    string
	Cfg        *reduction.Config
	Runtime    *settings.Runtime
	Pipeline   *reduction.Pipeline
	Control    *control.Server
	Components *component.Registry
	Metrics    *observability.Metrics
	Logger     *logger.Logger

	gracefulTimeout time.Duration
	telemetry       observability.ShutdownFunc

	onStart []Hook
	onReady []Hook
	onStop  []Hook
}

// NewApp applies defaults to cfg, validates it and builds every component.
// Nothing is started until Run or RunTask.
func NewApp(ctx context.Context, cfg *reduction.Config, opts ...Option) (*App, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	o := resolveOptions(opts)

	app := &App{
		Name:            cfg.Name,
		Version:         cfg.Version,
		Cfg:             cfg,
		gracefulTimeout: 15 * time.Second,
	}
	if app.Version == "" {
		app.Version = version.Short()
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}
	base := o.logger
	if base == nil {
		logger.Init(cfg.Logging)
		base = logger.GetGlobalLogger()
	}
	app.Logger = base.WithFields(logger.Fields("version", app.Version))
	logger.SetGlobalLogger(app.Logger)
	logger.RegisterDefaults(componentLoggers...)
	app.Components = component.NewRegistry()

	shutdown, err := observability.StartTelemetry(ctx, cfg.Telemetry, cfg.Name, app.Version, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	app.telemetry = shutdown

	if err := app.build(cfg, o); err != nil {
		_ = shutdown(ctx)
		return nil, err
	}
	return app, nil
}

func (a *App) build(cfg *reduction.Config, o *appOptions) error {
	metrics, err := observability.NewMetrics(observability.Meter(cfg.Name))
	if err != nil {
		return err
	}
	a.Metrics = metrics

	if a.Runtime, err = cfg.NewRuntime(); err != nil {
		return err
	}
	if o.watch != "" {
		if _, err := reduction.WatchRuntime(o.watch, a.Runtime); err != nil {
			return err
		}
	}

	pipelineOpts := append([]reduction.Option{
		reduction.WithLogger(a.Logger.WithComponent("reduction")),
		reduction.WithMetrics(metrics),
	}, o.pipeline...)
	if a.Pipeline, err = reduction.New(cfg, a.Runtime, pipelineOpts...); err != nil {
		return err
	}
	if err := a.Components.Register(a.Pipeline); err != nil {
		return err
	}

	if o.noControl {
		return nil
	}
	a.Control = control.New(cfg.ControlAddr, a.Runtime, a.Components.HealthAll, a.Logger,
		control.WithService(cfg.Name, a.Version))
	return a.Components.Register(a.Control)
}

// ReadyCheck verifies that all registered components are healthy.
func (a *App) ReadyCheck(ctx context.Context) error {
	var unhealthy []string
	for _, h := range a.Components.HealthAll(ctx) {
		if h.Status != component.StatusHealthy {
			detail := h.Name + "=" + string(h.Status)
			if h.Message != "" {
				detail += "(" + h.Message + ")"
			}
			unhealthy = append(unhealthy, detail)
		}
	}
	if len(unhealthy) > 0 {
		return fmt.Errorf("unhealthy components: %v", unhealthy)
	}
	return nil
}

// Run starts every component and blocks until a shutdown signal or ctx is
// done, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		return err
	}
	a.Logger.Info("xpdflow ready, waiting for shutdown signal")
	a.WaitForSignal(ctx)
	return a.stop()
}

// RunTask starts every component, runs task and shuts down when it returns.
// SIGINT and SIGTERM cancel the task's context.
func (a *App) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.startup(ctx); err != nil {
		return err
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			a.Logger.Info("received signal, canceling task", logger.Fields("signal", sig.String()))
			cancel()
		case <-taskCtx.Done():
		}
	}()

	taskErr := task(taskCtx)
	if stopErr := a.stop(); stopErr != nil && taskErr == nil {
		return stopErr
	}
	return taskErr
}

func (a *App) startup(ctx context.Context) error {
	start := time.Now()
	a.Logger.Info("starting", logger.Fields("name", a.Name, "version", a.Version))

	if err := a.Components.StartAll(ctx); err != nil {
		_ = a.stop()
		return fmt.Errorf("initialization failed: %w", err)
	}
	if err := runHooks(ctx, a.onStart); err != nil {
		_ = a.stop()
		return fmt.Errorf("onStart hook failed: %w", err)
	}
	if err := a.ReadyCheck(ctx); err != nil {
		a.Logger.Warn("ready check reported issues", logger.Fields(logger.FieldError, err.Error()))
	}
	if err := runHooks(ctx, a.onReady); err != nil {
		_ = a.stop()
		return fmt.Errorf("onReady hook failed: %w", err)
	}

	fields := logger.Fields(
		"pipeline", a.Cfg.Pipeline,
		logger.FieldChunk, a.Pipeline.Chunks(),
		logger.FieldMaskMode, string(a.Runtime.MaskMode()),
		logger.FieldDuration, time.Since(start).Milliseconds(),
	)
	if a.Control != nil {
		fields["control"] = a.Control.Addr()
	}
	a.Logger.Info("startup complete", fields)
	return nil
}

// WaitForSignal blocks until SIGINT, SIGTERM or ctx is done.
func (a *App) WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("received shutdown signal", logger.Fields("signal", sig.String()))
		return sig
	case <-ctx.Done():
		a.Logger.Info("context canceled, shutting down")
		return nil
	}
}

// Shutdown stops the app. Use it when managing the lifecycle yourself.
func (a *App) Shutdown(_ context.Context) error {
	return a.stop()
}

// stop runs the stop hooks, stops components in reverse order and flushes
// telemetry, all within the graceful timeout.
func (a *App) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	var shutdownErr error
	if err := runHooks(ctx, a.onStop); err != nil {
		a.Logger.Error("onStop hook error", logger.Fields(logger.FieldError, err.Error()))
		shutdownErr = err
	}
	if err := a.Components.StopAll(ctx); err != nil {
		a.Logger.Error("shutdown completed with errors", logger.Fields(logger.FieldError, err.Error()))
		if shutdownErr == nil {
			shutdownErr = err
		}
	}
	if err := a.telemetry(ctx); err != nil {
		a.Logger.Error("telemetry flush failed", logger.Fields(logger.FieldError, err.Error()))
		if shutdownErr == nil {
			shutdownErr = err
		}
	}
	a.Logger.Info("shutdown complete")
	return shutdownErr
}
