// Package provider defines the adapter contract shared by the OpenAI, Gemini
// and DeepSeek backends and the single HTTP send path they all use.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vbonduro/nutriai/internal/domain"
)

// maxErrorBody bounds how much of a failed response body is kept.
const maxErrorBody = 4 << 10

// Adapter builds provider-specific HTTP requests. Adapters hold no mutable
// state and are safe for concurrent use.
type Adapter interface {
	Provider() domain.Provider
	Model() string
	BuildTextRequest(ctx context.Context, req domain.TextRequest) (*http.Request, error)
	BuildVisionRequest(ctx context.Context, req domain.VisionRequest) (*http.Request, error)
}

// Credentials resolves per-provider settings. Empty BaseURL or Model values
// mean the adapter default applies.
type Credentials interface {
	APIKey(p domain.Provider) string
	BaseURL(p domain.Provider) string
	Model(p domain.Provider) string
}

// StaticCredentials is a fixed Credentials map, handy for tests and one-off CLI runs.
type StaticCredentials map[domain.Provider]Settings

type Settings struct {
	APIKey  string
	BaseURL string
	Model   string
}

func (c StaticCredentials) APIKey(p domain.Provider) string  { return c[p].APIKey }
func (c StaticCredentials) BaseURL(p domain.Provider) string { return c[p].BaseURL }
func (c StaticCredentials) Model(p domain.Provider) string   { return c[p].Model }

// Resolve returns the key, base URL and model for p, applying defaults.
// A blank key is reported as a MissingCredentialError.
func Resolve(creds Credentials, p domain.Provider, defaultBaseURL, defaultModel string) (key, baseURL, model string, err error) {
	key = creds.APIKey(p)
	if key == "" {
		return "", "", "", &domain.MissingCredentialError{Provider: p}
	}
	return key, Or(creds.BaseURL(p), defaultBaseURL), Or(creds.Model(p), defaultModel), nil
}

// Or returns v, or def when v is empty.
func Or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// VisionPrompt appends the user note, if any, to the prompt.
func VisionPrompt(req domain.VisionRequest) string {
	if req.Note == "" {
		return req.Prompt
	}
	return req.Prompt + "\n\nNote: " + req.Note
}

// NewJSONRequest creates a POST request carrying body as JSON.
func NewJSONRequest(ctx context.Context, url string, body any) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// NewHTTPClient returns a client whose transport emits otel client spans.
// Per-call deadlines come from the request context, so no client timeout is set.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// Send performs req and returns the raw response body. Context errors are
// returned unwrapped so the caller can tell a deadline from a cancel.
func Send(client *http.Client, req *http.Request, p domain.Provider) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &domain.NetworkError{Provider: p, Err: stripQuery(err)}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close provider response body", "provider", p, "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &domain.ProviderHTTPError{Provider: p, Status: resp.StatusCode, Body: string(errBody)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &domain.NetworkError{Provider: p, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	return body, nil
}

// stripQuery drops the query string from the URL a transport error reports,
// since some providers carry the API key there.
func stripQuery(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	if i := strings.IndexByte(urlErr.URL, '?'); i >= 0 {
		urlErr.URL = urlErr.URL[:i]
	}
	return err
}
