package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"medigateway/core/apierror"
	"medigateway/core/validation"
)

// errorBody is the error half of the response envelope. Stack and Details
// are attached in development mode only, except validation details which
// the caller always receives.
type errorBody struct {
	Message    string      `json:"message"`
	StatusCode int         `json:"statusCode"`
	Timestamp  string      `json:"timestamp"`
	Stack      string      `json:"stack,omitempty"`
	Details    interface{} `json:"details,omitempty"`
	RequestID  string      `json:"requestId,omitempty"`
}

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("response encode failed", "error", err)
	}
}

// writeError classifies err and renders the stable error envelope.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	classified := apierror.Classify(err, s.cfg.Production())

	s.log.Error("request failed",
		"method", r.Method,
		"url", r.URL.Path,
		"statusCode", classified.StatusCode,
		"operational", classified.IsOperational,
		"request_id", requestIDFrom(r.Context()),
		"error", err,
	)

	body := errorBody{
		Message:    classified.Message,
		StatusCode: classified.StatusCode,
		Timestamp:  classified.Timestamp.Format(time.RFC3339),
		RequestID:  clientRequestIDFrom(r.Context()),
	}

	var valErr *validation.Error
	if errors.As(err, &valErr) {
		body.Details = valErr.Details
	} else if !s.cfg.Production() {
		body.Details = err.Error()
	}
	if !s.cfg.Production() {
		body.Stack = string(debug.Stack())
	}

	s.writeJSON(w, classified.StatusCode, errorEnvelope{Success: false, Error: body})
}

func routeNotFound(r *http.Request) error {
	return apierror.NewAPIError(http.StatusNotFound,
		fmt.Sprintf("Route %s not found", r.URL.Path))
}
