package bootstrap

import (
	"time"

	"github.com/kbukum/xpdflow/logger"
	"github.com/kbukum/xpdflow/reduction"
)

// Option configures the App during creation.
type Option func(*appOptions)

type appOptions struct {
	logger          *logger.Logger
	gracefulTimeout *time.Duration
	watch           string
	noControl       bool
	pipeline        []reduction.Option
}

func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets a custom logger. If not set, the global logger is
// initialized from the config's Logging section. Either way the app logger
// becomes the global logger behind logger.Get.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) {
		o.logger = l
	}
}

// WithGracefulTimeout sets the maximum duration for graceful shutdown.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) {
		o.gracefulTimeout = &d
	}
}

// WithWatch pushes later edits of the config file at path into the
// runtime settings.
func WithWatch(path string) Option {
	return func(o *appOptions) {
		o.watch = path
	}
}

// WithoutControl skips the HTTP control surface.
func WithoutControl() Option {
	return func(o *appOptions) {
		o.noControl = true
	}
}

// WithPipelineOptions forwards options to reduction.New.
func WithPipelineOptions(opts ...reduction.Option) Option {
	return func(o *appOptions) {
		o.pipeline = append(o.pipeline, opts...)
	}
}
