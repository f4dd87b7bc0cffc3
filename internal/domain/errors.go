package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorKind is the stable classification stored with failed audit entries.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindMissingCredential ErrorKind = "missing_credential"
	KindAuth              ErrorKind = "auth"
	KindQuota             ErrorKind = "quota"
	KindRateLimit         ErrorKind = "rate_limit"
	KindInvalidRequest    ErrorKind = "invalid_request"
	KindServer            ErrorKind = "server"
	KindHTTP              ErrorKind = "http"
	KindNetwork           ErrorKind = "network"
	KindTimeout           ErrorKind = "timeout"
	KindCancelled         ErrorKind = "cancelled"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindParse             ErrorKind = "parse"
	KindImage             ErrorKind = "image"
	KindUnknown           ErrorKind = "unknown"
)

// ErrNoRecipesParsed is returned when generated text contains no usable recipe section.
var ErrNoRecipesParsed = errors.New("no recipes parsed from response")

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type MissingCredentialError struct {
	Provider Provider
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("%s api key is not configured", e.Provider)
}

// ProviderHTTPError carries a non-2xx provider response.
type ProviderHTTPError struct {
	Provider Provider
	Status   int
	Body     string
}

func (e *ProviderHTTPError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.Status, e.Body)
}

// Kind maps the HTTP status onto an error category.
func (e *ProviderHTTPError) Kind() ErrorKind {
	switch {
	case e.Status == http.StatusBadRequest:
		return KindInvalidRequest
	case e.Status == http.StatusUnauthorized, e.Status == http.StatusForbidden:
		return KindAuth
	case e.Status == http.StatusPaymentRequired:
		return KindQuota
	case e.Status == http.StatusTooManyRequests:
		return KindRateLimit
	case e.Status >= 500 && e.Status <= 599:
		return KindServer
	default:
		return KindHTTP
	}
}

type TimeoutError struct {
	Provider Provider
	After    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s call timed out after %s", e.Provider, e.After)
}

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// CancelledError reports a call abandoned by its caller.
type CancelledError struct {
	Provider Provider
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("%s call cancelled", e.Provider)
}

func (e *CancelledError) Unwrap() error { return context.Canceled }

// NetworkError is a transport failure that produced no HTTP status.
type NetworkError struct {
	Provider Provider
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("failed to call %s: %v", e.Provider, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

type MalformedResponseError struct {
	Provider Provider
	Path     string
	Reason   string
}

func (e *MalformedResponseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("malformed %s response: %s", e.Provider, e.Reason)
	}
	return fmt.Sprintf("malformed %s response at %q: %s", e.Provider, e.Path, e.Reason)
}

type CalorieParseError struct {
	Reason string
}

func (e *CalorieParseError) Error() string {
	return "failed to parse calorie estimate: " + e.Reason
}

type PlanParseError struct {
	Reason string
}

func (e *PlanParseError) Error() string {
	return "failed to parse plan: " + e.Reason
}

type ImageDecodeError struct {
	Err error
}

func (e *ImageDecodeError) Error() string {
	return fmt.Sprintf("failed to decode image: %v", e.Err)
}

func (e *ImageDecodeError) Unwrap() error { return e.Err }

type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("failed to encode image: %v", e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// KindOf classifies err for audit and API responses.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var (
		validation *ValidationError
		missing    *MissingCredentialError
		httpErr    *ProviderHTTPError
		timeout    *TimeoutError
		cancelled  *CancelledError
		network    *NetworkError
		malformed  *MalformedResponseError
		calories   *CalorieParseError
		plan       *PlanParseError
		decode     *ImageDecodeError
		encode     *EncodeError
	)

	switch {
	case errors.As(err, &validation):
		return KindValidation
	case errors.As(err, &missing):
		return KindMissingCredential
	case errors.As(err, &httpErr):
		return httpErr.Kind()
	case errors.As(err, &timeout):
		return KindTimeout
	case errors.As(err, &cancelled):
		return KindCancelled
	case errors.As(err, &network):
		return KindNetwork
	case errors.As(err, &malformed):
		return KindMalformedResponse
	case errors.Is(err, ErrNoRecipesParsed), errors.As(err, &calories), errors.As(err, &plan):
		return KindParse
	case errors.As(err, &decode), errors.As(err, &encode):
		return KindImage
	}
	return KindUnknown
}

// Retryable reports whether repeating the same call, possibly on another
// provider, has a reasonable chance of succeeding. The gateway itself never
// retries.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindNetwork, KindRateLimit, KindServer:
		return true
	}
	return false
}
