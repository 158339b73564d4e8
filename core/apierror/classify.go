// Package apierror turns any failure in the request path into a stable
// (statusCode, message, isOperational) triple. Classification is a fixed
// prioritized chain; ledger errors are refined by message markers the
// chaincode and Fabric runtime are known to emit.
package apierror

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"medigateway/core/validation"
)

// Source is the explicit origin tag attached to errors before they reach
// Classify. Tagging replaces shape probing on error values.
type Source int

const (
	SourceUnknown Source = iota
	SourceValidation
	SourceCast
	SourceToken
	SourcePayloadTooLarge
	SourceBadJSON
	SourceIdentity
	SourceConnectivity
	SourceLedger
)

// TaggedError wraps an error with its source. The message is passed through
// untouched so marker-based refinement still sees the original text.
type TaggedError struct {
	Source Source
	Err    error
}

func (e *TaggedError) Error() string { return e.Err.Error() }
func (e *TaggedError) Unwrap() error { return e.Err }

// Tag annotates err with a source. A nil err returns nil.
func Tag(src Source, err error) error {
	if err == nil {
		return nil
	}
	return &TaggedError{Source: src, Err: err}
}

func sourceOf(err error) Source {
	var te *TaggedError
	if errors.As(err, &te) {
		return te.Source
	}
	return SourceUnknown
}

// APIError is a pre-classified operational error raised by handlers that
// already know the status and public message (e.g. a 404 naming the form).
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string { return e.Message }

// NewAPIError builds an operational error with a fixed status code.
func NewAPIError(statusCode int, message string) *APIError {
	return &APIError{StatusCode: statusCode, Message: message}
}

// ClassifiedError is the stable outcome of classification, rendered into
// the HTTP error envelope by the server layer.
type ClassifiedError struct {
	StatusCode    int       `json:"statusCode"`
	Message       string    `json:"message"`
	IsOperational bool      `json:"-"`
	Timestamp     time.Time `json:"timestamp"`
}

// Classify maps err onto a ClassifiedError. In production mode the message
// of any non-operational error is masked.
func Classify(err error, production bool) ClassifiedError {
	c := ClassifiedError{
		StatusCode:    http.StatusInternalServerError,
		Message:       err.Error(),
		IsOperational: false,
		Timestamp:     time.Now().UTC(),
	}

	var apiErr *APIError
	var valErr *validation.Error
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &apiErr):
		c.StatusCode = apiErr.StatusCode
		c.Message = apiErr.Message
		c.IsOperational = true
	case errors.As(err, &valErr) || sourceOf(err) == SourceValidation:
		c.StatusCode = http.StatusBadRequest
		c.Message = "Validation Error: " + err.Error()
		c.IsOperational = true
	case errors.As(err, &typeErr) || sourceOf(err) == SourceCast:
		c.StatusCode = http.StatusBadRequest
		c.Message = "Invalid data format"
		c.IsOperational = true
	case sourceOf(err) == SourceToken || isTokenError(err):
		c.StatusCode = http.StatusUnauthorized
		c.IsOperational = true
		if errors.Is(err, jwt.ErrTokenExpired) {
			c.Message = "Token expired"
		} else {
			c.Message = "Invalid token"
		}
	case errors.As(err, &tooLarge) || sourceOf(err) == SourcePayloadTooLarge:
		c.StatusCode = http.StatusBadRequest
		c.Message = "File size too large"
		c.IsOperational = true
	case errors.As(err, &syntaxErr) || sourceOf(err) == SourceBadJSON:
		c.StatusCode = http.StatusBadRequest
		c.Message = "Invalid JSON format"
		c.IsOperational = true
	}

	// Ledger refinement runs independently of the chain above: a raw Fabric
	// failure carries the "chaincode" marker and can upgrade a default 500.
	if msg := err.Error(); strings.Contains(msg, "chaincode") {
		switch {
		case strings.Contains(msg, "does not exist"):
			c.StatusCode = http.StatusNotFound
			c.Message = "Resource not found on blockchain"
			c.IsOperational = true
		case strings.Contains(msg, "already exists"):
			c.StatusCode = http.StatusConflict
			c.Message = "Resource already exists on blockchain"
			c.IsOperational = true
		case strings.Contains(msg, "MVCC_READ_CONFLICT"):
			c.StatusCode = http.StatusConflict
			c.Message = "Concurrent modification error"
			c.IsOperational = true
		case strings.Contains(msg, "Failed to connect"):
			c.StatusCode = http.StatusServiceUnavailable
			c.Message = "Blockchain service temporarily unavailable"
			c.IsOperational = true
		}
	}

	if c.StatusCode == http.StatusInternalServerError {
		switch sourceOf(err) {
		case SourceIdentity:
			c.StatusCode = http.StatusServiceUnavailable
			c.Message = "Blockchain identity not found"
			c.IsOperational = true
		case SourceConnectivity:
			c.StatusCode = http.StatusServiceUnavailable
			c.Message = "Blockchain service temporarily unavailable"
			c.IsOperational = true
		}
	}

	if production && !c.IsOperational {
		c.Message = "Internal server error"
	}
	return c
}

func isTokenError(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired) ||
		errors.Is(err, jwt.ErrTokenMalformed) ||
		errors.Is(err, jwt.ErrTokenNotValidYet) ||
		errors.Is(err, jwt.ErrSignatureInvalid) ||
		errors.Is(err, jwt.ErrTokenSignatureInvalid) ||
		errors.Is(err, jwt.ErrTokenUnverifiable)
}
