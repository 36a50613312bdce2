package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/op/go-logging"

	"picdrop/internal/assets"
	"picdrop/internal/audit"
	"picdrop/internal/logger"
)

type BuildInfo struct {
	Version string
	Commit  string
}

type UploadConfig struct {
	MaxBytes   int64 // 0 = no limit
	ImagesOnly bool
}

type RateLimitConfig struct {
	Requests int // per Window per client IP; 0 disables
	Window   time.Duration
}

type Config struct {
	Addr       string // e.g. ":3000"
	Build      BuildInfo
	Store      assets.Store
	Auth       AuthConfig
	Audit      audit.Recorder // nil means audit.Nop
	Logger     *logging.Logger
	Upload     UploadConfig
	CORSOrigin string // "" means "*"
	RateLimit  RateLimitConfig
	TrustProxy bool
}

type Server struct {
	cfg        Config
	log        *logging.Logger
	metrics    *Metrics
	limiter    *rateLimiter
	lockout    *authLockout
	handler    http.Handler
	httpServer *http.Server
	started    time.Time
}

func New(cfg Config) *Server {
	if cfg.Audit == nil {
		cfg.Audit = audit.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}

	s := &Server{
		cfg:     cfg,
		log:     cfg.Logger,
		metrics: NewMetrics(),
		started: time.Now(),
	}
	if cfg.RateLimit.Requests > 0 && cfg.RateLimit.Window > 0 {
		s.limiter = newRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}
	if cfg.Auth.MaxFailures > 0 && cfg.Auth.Lockout > 0 {
		s.lockout = newAuthLockout(cfg.Auth.MaxFailures, cfg.Auth.Lockout, cfg.Auth.Lockout)
	}

	mux := http.NewServeMux()

	// Public gallery and delivery
	mux.HandleFunc("GET /get-images", s.handleListImages)
	mux.HandleFunc("GET /uploads/{id}", s.handleDelivery)

	// Admin operations
	mux.Handle("POST /upload", s.admin(http.HandlerFunc(s.handleUpload)))
	mux.Handle("DELETE /delete/{id}", s.admin(http.HandlerFunc(s.handleDelete)))
	mux.Handle("GET /audit", s.admin(http.HandlerFunc(s.handleAudit)))

	// Probes and metrics
	mux.HandleFunc("GET /health", s.HandleHealth)
	mux.HandleFunc("GET /live", s.HandleLive)
	mux.HandleFunc("GET /ready", s.HandleReady)
	mux.Handle("GET /metrics", s.PrometheusHandler())

	// Wrap middleware: requestID -> logging -> security headers -> CORS -> gzip -> mux
	var handler http.Handler = mux
	handler = compressionMiddleware(handler)
	handler = corsMiddleware(cfg.CORSOrigin, handler)
	handler = securityHeadersMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          logger.Std(cfg.Logger),
	}
	return s
}

// admin gates a handler behind rate limiting and basic auth. The limiter
// runs first so failed guesses count against the client.
func (s *Server) admin(next http.Handler) http.Handler {
	h := s.requireBasicAuth(next)
	if s.limiter != nil {
		h = s.limiter.middleware(s.cfg.TrustProxy, h)
	}
	return h
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Metrics returns the server's counters.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.stop()
	}
	return s.httpServer.Shutdown(ctx)
}
