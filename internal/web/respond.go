package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vbonduro/nutriai/internal/domain"
)

// statusClientClosedRequest is the nginx convention for a caller that went away.
const statusClientClosedRequest = 499

// maxJSONBody bounds request bodies of the JSON endpoints.
const maxJSONBody = 1 << 20

type errorResponse struct {
	Error     string           `json:"error"`
	Kind      domain.ErrorKind `json:"kind"`
	Retryable bool             `json:"retryable"`
}

func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation, domain.KindImage:
		return http.StatusBadRequest
	case domain.KindMissingCredential:
		return http.StatusServiceUnavailable
	case domain.KindAuth, domain.KindQuota, domain.KindRateLimit, domain.KindInvalidRequest,
		domain.KindServer, domain.KindHTTP, domain.KindNetwork, domain.KindMalformedResponse:
		return http.StatusBadGateway
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	case domain.KindCancelled:
		return statusClientClosedRequest
	case domain.KindParse:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("write response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{
		Error:     err.Error(),
		Kind:      domain.KindOf(err),
		Retryable: domain.Retryable(err),
	}, s.logger)
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &domain.ValidationError{Field: "body", Reason: "too large"}
		}
		return &domain.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()}
	}
	return nil
}

// provider maps a request's provider name to a Provider. Unknown names are
// passed through so the gateway rejects and records them.
func (s *Server) provider(name string) domain.Provider {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return s.defaultProvider
	}
	return domain.Provider(name)
}
