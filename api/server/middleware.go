package server

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"medigateway/core/apierror"
)

type ctxKey int

const requestIDKey ctxKey = iota

type requestIDInfo struct {
	id         string
	fromClient bool
}

func requestIDFrom(ctx context.Context) string {
	info, _ := ctx.Value(requestIDKey).(requestIDInfo)
	return info.id
}

// clientRequestIDFrom returns the request id only when the caller supplied
// it. Minted ids stay out of response bodies; they still appear in logs and
// the X-Request-Id response header.
func clientRequestIDFrom(ctx context.Context) string {
	info, _ := ctx.Value(requestIDKey).(requestIDInfo)
	if !info.fromClient {
		return ""
	}
	return info.id
}

// withRequestID adopts the caller's X-Request-Id or mints one, and echoes
// it on the response.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := requestIDInfo{id: r.Header.Get("X-Request-Id"), fromClient: true}
		if info.id == "" {
			info = requestIDInfo{id: uuid.NewString()}
		}
		w.Header().Set("X-Request-Id", info.id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, info)))
	})
}

// ResponseInfo is handed to observers once a handler has completed.
type ResponseInfo struct {
	Method     string
	Path       string
	StatusCode int
	Duration   time.Duration
	RequestID  string
}

// ResponseObserver runs after the response is written. Observers replace
// any interception of the response writer by downstream code.
type ResponseObserver func(ResponseInfo)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (s *Server) withObservers(next http.Handler, observers ...ResponseObserver) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		info := ResponseInfo{
			Method:     r.Method,
			Path:       r.URL.Path,
			StatusCode: rec.status,
			Duration:   time.Since(start),
			RequestID:  requestIDFrom(r.Context()),
		}
		for _, observe := range observers {
			observe(info)
		}
	})
}

func (s *Server) logObserver() ResponseObserver {
	return func(info ResponseInfo) {
		s.log.Info("request completed",
			"method", info.Method,
			"url", info.Path,
			"statusCode", info.StatusCode,
			"duration_ms", info.Duration.Milliseconds(),
			"request_id", info.RequestID,
		)
	}
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientIP(r), time.Now()) {
			s.writeError(w, r, apierror.NewAPIError(http.StatusTooManyRequests,
				"Too many requests, please try again later"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth enforces either a bearer JWT or an API key when the
// deployment configures them. With neither configured it passes through.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.JWTSecret == "" && s.cfg.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		if key := r.Header.Get("X-API-Key"); key != "" && s.cfg.APIKey != "" {
			if key == s.cfg.APIKey {
				next.ServeHTTP(w, r)
				return
			}
			s.writeError(w, r, apierror.NewAPIError(http.StatusUnauthorized, "Unauthorized"))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") || s.cfg.JWTSecret == "" {
			s.writeError(w, r, apierror.NewAPIError(http.StatusUnauthorized, "Unauthorized"))
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		token, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
			return []byte(s.cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			if err == nil {
				err = jwt.ErrTokenUnverifiable
			}
			s.writeError(w, r, apierror.Tag(apierror.SourceToken, err))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
