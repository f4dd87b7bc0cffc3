package gemini

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/vbonduro/nutriai/internal/domain"
	"github.com/vbonduro/nutriai/internal/provider"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-1.5-pro"
)

// request types mirror the generateContent API structure.
type request struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// Adapter authenticates with the key query parameter; no auth header is sent.
type Adapter struct {
	creds provider.Credentials
}

func New(creds provider.Credentials) *Adapter {
	return &Adapter{creds: creds}
}

func (a *Adapter) Provider() domain.Provider { return domain.Gemini }

func (a *Adapter) Model() string {
	return provider.Or(a.creds.Model(domain.Gemini), defaultModel)
}

func (a *Adapter) BuildTextRequest(ctx context.Context, req domain.TextRequest) (*http.Request, error) {
	key, baseURL, model, err := provider.Resolve(a.creds, domain.Gemini, defaultBaseURL, defaultModel)
	if err != nil {
		return nil, err
	}

	body := request{
		Contents:         []content{{Role: "user", Parts: []part{{Text: req.User}}}},
		GenerationConfig: generationConfig{Temperature: 0.4, MaxOutputTokens: 4096},
	}
	if req.System != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}
	return provider.NewJSONRequest(ctx, endpoint(baseURL, model, key), body)
}

func (a *Adapter) BuildVisionRequest(ctx context.Context, req domain.VisionRequest) (*http.Request, error) {
	key, baseURL, model, err := provider.Resolve(a.creds, domain.Gemini, defaultBaseURL, defaultModel)
	if err != nil {
		return nil, err
	}

	body := request{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: provider.VisionPrompt(req)},
				{InlineData: &inlineData{MimeType: provider.Or(req.MimeType, "image/jpeg"), Data: req.ImageBase64}},
			},
		}},
		GenerationConfig: generationConfig{Temperature: 0.3, MaxOutputTokens: 2048},
	}
	return provider.NewJSONRequest(ctx, endpoint(baseURL, model, key), body)
}

func endpoint(baseURL, model, key string) string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(baseURL, "/"), url.PathEscape(model), url.QueryEscape(key))
}
