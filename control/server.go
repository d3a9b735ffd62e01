package control

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/xpdflow/component"
	"github.com/kbukum/xpdflow/errors"
	"github.com/kbukum/xpdflow/logger"
	"github.com/kbukum/xpdflow/settings"
	"github.com/kbukum/xpdflow/version"
)

// DefaultAddr is used when no listen address is configured.
const DefaultAddr = "127.0.0.1:8642"

const componentName = "control"

// HealthChecker reports the health of the managed components, typically
// component.Registry.HealthAll.
type HealthChecker func(ctx context.Context) []component.Health

// Option configures a Server.
type Option func(*Server)

// WithService sets the service name and version reported by /healthz.
// The version defaults to the build version.
func WithService(name, version string) Option {
	return func(s *Server) { s.service, s.version = name, version }
}

// Server is the HTTP control surface of one Runtime.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	rt         *settings.Runtime
	checker    HealthChecker
	service    string
	version    string
	log        *logger.Logger

	mu       sync.Mutex
	listener net.Listener
}

var _ component.Component = (*Server)(nil)

// New creates a server for rt listening on addr. checker may be nil.
func New(addr string, rt *settings.Runtime, checker HealthChecker, log *logger.Logger, opts ...Option) *Server {
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if addr == "" {
		addr = DefaultAddr
	}
	if log == nil {
		log = logger.Get(componentName)
	}
	log = log.WithComponent(componentName)

	engine := gin.New()
	engine.Use(recovery(log), requestID(), requestLogger(log))

	s := &Server{
		engine:  engine,
		rt:      rt,
		checker: checker,
		service: "xpdflow",
		version: version.Short(),
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(engine, &http2.Server{IdleTimeout: 120 * time.Second}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, for tests and for mounting elsewhere.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Addr returns the bound address once started, the configured one before.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Name implements component.Component.
func (s *Server) Name() string { return componentName }

// Start binds the listener and serves in the background. It returns once
// the port is bound.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return errors.Configuration(fmt.Sprintf("control surface cannot bind %s", s.httpServer.Addr)).WithCause(err)
	}
	s.listener = ln

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("control surface stopped", logger.Fields(logger.FieldError, err.Error()))
		}
	}()
	s.log.WithContext(ctx).Info("control surface listening", logger.Fields("addr", ln.Addr().String()))
	return nil
}

// Stop shuts the server down, waiting at most five seconds for in-flight
// requests. A stopped server cannot be started again.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Internal(fmt.Errorf("control surface shutdown: %w", err))
	}
	s.listener = nil
	s.log.WithContext(ctx).Info("control surface stopped")
	return nil
}

// Health implements component.Component.
func (s *Server) Health(_ context.Context) component.Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return component.Health{Name: componentName, Status: component.StatusDegraded, Message: "not listening"}
	}
	return component.Health{Name: componentName, Status: component.StatusHealthy}
}
