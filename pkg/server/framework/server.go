// Package framework is a minimal web framework.
package framework

import (
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/spendgate/spendgate/config"
)

type contextKey string

const (
	TraceIDKey       contextKey = "traceID"
	ShutdownErrorKey contextKey = "shutdownError"
)

func (c contextKey) String() string {
	return string(c)
}

// Server is the entrypoint into our application and what configures our context
// object for each of our http routers.
type Server struct {
	*http.Server
	router   *gin.Engine
	tracer   trace.Tracer
	shutdown chan os.Signal
}

// Handler is a route handler that can return an error, inspected by the errors
// middleware.
type Handler func(c *gin.Context) error

// NewServer creates a Server that handles a set of routes for the application.
func NewServer(cfg config.ServerConfig, handler *gin.Engine, shutdown chan os.Signal) *Server {
	var tracer trace.Tracer
	if cfg.JaegerEnabled {
		tracer = otel.Tracer(config.ServiceName)
	}
	return &Server{
		Server: &http.Server{
			Addr:              cfg.APIHost,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
		router:   handler,
		tracer:   tracer,
		shutdown: shutdown,
	}
}

// Handle sets a handler function for a given HTTP method and path pair on the
// server router.
func (s *Server) Handle(method, path string, handler Handler) {
	h := func(c *gin.Context) {
		// init a span, but only if the tracer is initialized
		if s.tracer != nil {
			_, span := s.tracer.Start(c, path)
			c.Set(TraceIDKey.String(), span.SpanContext().TraceID().String())
			span.SetAttributes(
				attribute.String("method", method),
				attribute.String("path", path),
				attribute.String("host", c.Request.Host),
				attribute.String("user-agent", c.Request.UserAgent()),
			)
			defer span.End()
		}

		if err := handler(c); err != nil {
			// errors that make it here weren't extracted by the errors
			// middleware; they are unsafe and worth shutting down over
			logrus.WithError(err).Error("request failed")
			if IsShutdown(err) {
				logrus.WithError(err).Error("unsafe error, shutting down")
				s.SignalShutdown()
			}
		}
	}
	s.router.Handle(method, path, h)
}

// SignalShutdown is used to gracefully shut down the server when an integrity
// issue is identified.
func (s *Server) SignalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

// RequestState carries per-request bookkeeping for middleware.
type RequestState struct {
	TraceID    string
	Now        time.Time
	StatusCode int
}
