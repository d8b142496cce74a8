package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mindgate/internal/core/bridge"
	"mindgate/internal/core/engine"
	"mindgate/internal/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// Uploader issues signed upload URLs for reference images
type Uploader interface {
	SignUpload(ctx context.Context, filename string) ([]byte, error)
}

// Options holds everything the HTTP surface needs
type Options struct {
	Addr string
	// MasterKey guards /v1 and /proxy; "" or "1" disables the check
	MasterKey  string
	Bridge     *bridge.Bridge
	Registry   *engine.Registry
	ImageModel string
	Uploader   Uploader
	// RelayClient sends upload bodies to signed URLs
	RelayClient *http.Client
	Logger      *logger.Logger
	// Gatherer is served on MetricsPath when set
	Gatherer    prometheus.Gatherer
	MetricsPath string
}

// Server represents the HTTP server
type Server struct {
	opts   Options
	log    *logger.Logger
	router chi.Router
	server *http.Server
}

// New creates a new Server instance
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.RelayClient == nil {
		opts.RelayClient = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	s := &Server{
		opts: opts,
		log:  opts.Logger.Named("server"),
	}
	s.router = s.routes()
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, middleware.Recoverer, CORSMiddleware)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	if s.opts.Gatherer != nil {
		r.Handle(s.opts.MetricsPath, promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.opts.MasterKey))

		r.Route("/v1", func(r chi.Router) {
			r.Get("/models", s.handleModels)
			r.Post("/chat/completions", s.handleChatCompletions)
			r.Post("/images/generations", s.handleImageGenerations)
			r.Get("/tasks/query", s.handleTaskQuery)
		})

		r.Route("/proxy/upload", func(r chi.Router) {
			r.Get("/sign", s.handleUploadSign)
			r.Post("/sign", s.handleUploadSign)
			r.Post("/file", s.handleUploadFile)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody("not found", "not_found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed", "method_not_allowed"))
	})
	return r
}

// writeTimeout keeps the longest SSE stream inside the server's write deadline
func (s *Server) writeTimeout() time.Duration {
	if s.opts.Bridge == nil {
		return 15 * time.Second
	}
	p := s.opts.Bridge.Policies().Stream
	return p.Deadline + p.Interval + 30*time.Second
}

// Start starts the HTTP server and blocks until SIGINT/SIGTERM
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.writeTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting MindGate", zap.String("addr", s.opts.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}
	s.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return s.server.Shutdown(ctx)
}
