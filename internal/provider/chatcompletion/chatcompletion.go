// Package chatcompletion builds the OpenAI-compatible chat completion
// envelope used by both the OpenAI and DeepSeek adapters.
package chatcompletion

import (
	"context"
	"net/http"

	"github.com/vbonduro/nutriai/internal/domain"
	"github.com/vbonduro/nutriai/internal/provider"
)

const (
	textTemperature   = 0.7
	visionTemperature = 0.2
)

type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

// Message content is either a plain string or a []Part.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type Part struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// TextBody returns a system+user conversation. A blank system prompt is omitted.
func TextBody(model string, req domain.TextRequest) Request {
	var msgs []Message
	if req.System != "" {
		msgs = append(msgs, Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, Message{Role: "user", Content: req.User})
	return Request{Model: model, Messages: msgs, Temperature: textTemperature}
}

// VisionBody returns a single user message carrying the prompt and the image
// as a data URL.
func VisionBody(model string, req domain.VisionRequest) Request {
	return Request{
		Model: model,
		Messages: []Message{{
			Role: "user",
			Content: []Part{
				{Type: "text", Text: provider.VisionPrompt(req)},
				{Type: "image_url", ImageURL: &ImageURL{URL: DataURL(req.MimeType, req.ImageBase64)}},
			},
		}},
		Temperature: visionTemperature,
	}
}

func DataURL(mimeType, b64 string) string {
	return "data:" + provider.Or(mimeType, "image/jpeg") + ";base64," + b64
}

// NewRequest creates an authenticated POST to url.
func NewRequest(ctx context.Context, url, apiKey string, body Request) (*http.Request, error) {
	req, err := provider.NewJSONRequest(ctx, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return req, nil
}
