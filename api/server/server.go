// Package server exposes the REST surface of the diagnosis ledger gateway.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medigateway/core/audit"
	"medigateway/core/config"
	"medigateway/core/ledger"
	"medigateway/core/ratelimit"
	"medigateway/core/validation"
)

const apiVersion = "1.0.0"

type Server struct {
	cfg       config.Config
	log       *slog.Logger
	ledger    *ledger.Manager
	validator *validation.FormValidator
	audit     audit.Logger
	limiter   *ratelimit.KeyLimiter
	metrics   *Metrics
	startTime time.Time
}

func NewServer(cfg config.Config, log *slog.Logger, manager *ledger.Manager, validator *validation.FormValidator, auditLog audit.Logger) *Server {
	return &Server{
		cfg:       cfg,
		log:       log,
		ledger:    manager,
		validator: validator,
		audit:     auditLog,
		limiter:   ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst, 15*time.Minute),
		metrics:   NewMetrics(),
		startTime: time.Now(),
	}
}

// Routes assembles the mux and the middleware chain. Order follows the
// request path: request id, response observers, rate limit, then routing.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	RegisterDiagnosisAPI(mux, s)
	RegisterHealthAPI(mux, s)
	RegisterAuditAPI(mux, s)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("/", s.handleIndex)

	var handler http.Handler = mux
	handler = s.withRateLimit(handler)
	handler = s.withObservers(handler, s.logObserver(), s.metrics.RequestObserver())
	handler = s.withRequestID(handler)
	return handler
}

// Start serves until the listener fails or a termination signal arrives,
// then drains in-flight requests.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info("gateway listening",
		"addr", s.cfg.ListenAddr,
		"environment", s.cfg.Env,
		"channel", s.cfg.Channel,
		"contract", s.cfg.ContractID,
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		s.log.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, r, routeNotFound(r))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Medical Diagnosis Blockchain API",
		"version": apiVersion,
		"status":  "Running",
		"endpoints": map[string]string{
			"health":    "/api/health",
			"diagnosis": "/api/diagnosis",
		},
	})
}
