package server

import (
	"errors"
	"net/http"
	"time"

	"medigateway/core/apierror"
	"medigateway/core/ledger"
	"medigateway/core/txrouter"
)

// RegisterHealthAPI wires the liveness, ledger-connectivity and combined
// probes. All three are read-only and safe to run alongside business
// traffic.
func RegisterHealthAPI(mux *http.ServeMux, s *Server) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/health/blockchain", s.handleBlockchainHealth)
	mux.HandleFunc("GET /api/health/detailed", s.handleDetailedHealth)
}

// pingLedger exercises the full acquire/dispatch/release cycle with a
// trivial read-only call.
func (s *Server) pingLedger() error {
	return s.ledger.WithSession(func(c ledger.Contract) error {
		_, err := txrouter.Dispatch(c, txrouter.ListForms())
		return err
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sys := s.systemMetrics()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"uptime":      sys.UptimeSeconds,
		"version":     apiVersion,
		"environment": s.cfg.Env,
		"memory": map[string]string{
			"used":  sys.MemoryUsed,
			"total": sys.MemoryTotal,
		},
	})
}

func (s *Server) handleBlockchainHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.pingLedger(); err != nil {
		status := "unhealthy"
		label := "Blockchain connection failed"
		var tagged *apierror.TaggedError
		if errors.As(err, &tagged) && tagged.Source == apierror.SourceIdentity {
			label = "Blockchain identity not found"
		}
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    status,
			"error":     label,
			"message":   err.Error(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"blockchain": map[string]interface{}{
			"connected": true,
			"network":   s.cfg.Channel,
			"contract":  s.cfg.ContractID,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleDetailedHealth(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	sys := s.systemMetrics()
	system := map[string]interface{}{
		"status":      "healthy",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"uptime":      sys.UptimeSeconds,
		"version":     apiVersion,
		"environment": s.cfg.Env,
		"goVersion":   sys.GoVersion,
		"platform":    sys.Platform,
		"arch":        sys.Arch,
		"memory": map[string]string{
			"used":  sys.MemoryUsed,
			"total": sys.MemoryTotal,
		},
		"cpu": map[string]float64{
			"loadPercent": sys.CPULoadPercent,
		},
	}

	blockchain := map[string]interface{}{
		"status":    "healthy",
		"connected": true,
		"network":   s.cfg.Channel,
		"contract":  s.cfg.ContractID,
	}
	overall := "healthy"
	if err := s.pingLedger(); err != nil {
		blockchain = map[string]interface{}{
			"status":    "unhealthy",
			"connected": false,
			"error":     err.Error(),
		}
		overall = "degraded"
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"overall": map[string]interface{}{
			"status":       overall,
			"responseTime": time.Since(start).String(),
			"timestamp":    time.Now().UTC().Format(time.RFC3339),
		},
		"components": map[string]interface{}{
			"system":     system,
			"blockchain": blockchain,
		},
	})
}
