package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/xpdflow/component"
	"github.com/kbukum/xpdflow/logger"
	"github.com/kbukum/xpdflow/reduction"
	"github.com/kbukum/xpdflow/settings"
	"github.com/kbukum/xpdflow/version"
)

func newTestConfig() *reduction.Config {
	return &reduction.Config{ControlAddr: "127.0.0.1:0", Workers: 1}
}

func newTestApp(t *testing.T, cfg *reduction.Config, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{WithLogger(logger.NewNop()), WithGracefulTimeout(5 * time.Second)}, opts...)
	app, err := NewApp(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	return app
}

func TestNewApp(t *testing.T) {
	app := newTestApp(t, newTestConfig(), WithoutControl())

	if app.Name != reduction.ServiceName || app.Version != version.Short() {
		t.Errorf("unexpected identity %q %q", app.Name, app.Version)
	}
	if app.Pipeline == nil || app.Runtime == nil || app.Metrics == nil {
		t.Fatal("expected pipeline, runtime and metrics")
	}
	if app.Pipeline.Runtime() != app.Runtime {
		t.Error("pipeline does not read the app runtime")
	}
	if app.Components.Get("reduction") == nil {
		t.Error("pipeline not registered")
	}
	if app.Control != nil || app.Components.Get("control") != nil {
		t.Error("control surface built despite WithoutControl")
	}
}

func TestNewApp_ConfiguredVersion(t *testing.T) {
	cfg := newTestConfig()
	cfg.Version = "2.1.0"
	app := newTestApp(t, cfg, WithoutControl())
	if app.Version != "2.1.0" {
		t.Errorf("expected 2.1.0, got %q", app.Version)
	}
}

func TestNewApp_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*reduction.Config)
	}{
		{"invalid mask mode", func(c *reduction.Config) { c.MaskMode = "sometimes" }},
		{"unknown pipeline", func(c *reduction.Config) { c.Pipeline = "ghost" }},
		{"missing calibration dir", func(c *reduction.Config) { c.CalibrationDir = filepath.Join(t.TempDir(), "nope") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig()
			tt.modify(cfg)
			if _, err := NewApp(context.Background(), cfg, WithLogger(logger.NewNop())); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestRunTask_Lifecycle(t *testing.T) {
	app := newTestApp(t, newTestConfig())

	var order []string
	record := func(name string) Hook {
		return func(context.Context) error {
			order = append(order, name)
			return nil
		}
	}
	app.OnStart(record("start"))
	app.OnReady(record("ready"))
	app.OnStop(record("stop"))

	err := app.RunTask(context.Background(), func(ctx context.Context) error {
		order = append(order, "task")
		if err := app.ReadyCheck(ctx); err != nil {
			return err
		}

		resp, err := http.Get("http://" + app.Control.Addr() + "/healthz")
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		var body map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK || body["status"] != "up" {
			return fmt.Errorf("unexpected health %d %v", resp.StatusCode, body)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask failed: %v", err)
	}

	if want := []string{"start", "ready", "task", "stop"}; !reflect.DeepEqual(order, want) {
		t.Errorf("expected %v, got %v", want, order)
	}
	if h := app.Pipeline.Health(context.Background()); h.Status != component.StatusUnhealthy {
		t.Errorf("expected a stopped pipeline, got %s", h.Status)
	}
}

func TestRunTask_ReturnsTaskError(t *testing.T) {
	app := newTestApp(t, newTestConfig(), WithoutControl())
	boom := fmt.Errorf("detector offline")
	if err := app.RunTask(context.Background(), func(context.Context) error { return boom }); err != boom {
		t.Fatalf("expected the task error, got %v", err)
	}
}

func TestRunTask_StartHookFailure(t *testing.T) {
	app := newTestApp(t, newTestConfig(), WithoutControl())
	app.OnStart(func(context.Context) error { return fmt.Errorf("no beam") })

	ran := false
	err := app.RunTask(context.Background(), func(context.Context) error {
		ran = true
		return nil
	})
	if err == nil || ran {
		t.Fatalf("expected startup to fail before the task, err=%v ran=%v", err, ran)
	}
	if h := app.Pipeline.Health(context.Background()); h.Status != component.StatusUnhealthy {
		t.Errorf("expected the pipeline to be stopped, got %s", h.Status)
	}
}

func TestRun_ContextCancel(t *testing.T) {
	app := newTestApp(t, newTestConfig(), WithoutControl())
	ctx, cancel := context.WithCancel(context.Background())
	app.OnReady(func(context.Context) error {
		cancel()
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWithWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xpdflow.yml")
	if err := os.WriteFile(path, []byte("mask_mode: none\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	app := newTestApp(t, newTestConfig(), WithoutControl(), WithWatch(path))
	if app.Runtime.MaskMode() != settings.ModeNone {
		t.Fatalf("expected the watched mode, got %s", app.Runtime.MaskMode())
	}
}

func TestNewApp_BindsComponentLoggers(t *testing.T) {
	prev := logger.GetGlobalLogger()
	t.Cleanup(func() {
		logger.SetGlobalLogger(prev)
		logger.RegisterDefaults(componentLoggers...)
	})

	var buf bytes.Buffer
	base := logger.NewWithWriter(&logger.Config{Level: "info", Format: "json"}, "xpdflow", &buf)
	cfg := newTestConfig()
	cfg.Version = "3.0.1"
	app := newTestApp(t, cfg, WithoutControl(), WithLogger(base))

	if logger.GetGlobalLogger() != app.Logger {
		t.Fatal("app logger is not the global logger")
	}

	buf.Reset()
	logger.Get("gate").Info("frame cached")
	var m map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &m); err != nil {
		t.Fatalf("invalid log line %q: %v", buf.String(), err)
	}
	if m[logger.FieldComponent] != "gate" || m["version"] != "3.0.1" {
		t.Errorf("expected component=gate and version=3.0.1, got %v", m)
	}
}
