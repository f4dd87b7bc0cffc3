// Package extract pulls the generated text out of a provider response body.
package extract

import (
	"github.com/tidwall/gjson"

	"github.com/vbonduro/nutriai/internal/domain"
)

var paths = map[domain.Provider]string{
	domain.OpenAI:   "choices.0.message.content",
	domain.DeepSeek: "choices.0.message.content",
	domain.Gemini:   "candidates.0.content.parts.0.text",
}

// Path returns the gjson path of the generated text for p.
func Path(p domain.Provider) (string, bool) {
	path, ok := paths[p]
	return path, ok
}

// Text returns the generated text exactly as the provider sent it.
func Text(raw []byte, p domain.Provider) (string, error) {
	path, ok := paths[p]
	if !ok {
		return "", &domain.MalformedResponseError{Provider: p, Reason: "no extraction path for provider"}
	}
	if !gjson.ValidBytes(raw) {
		return "", &domain.MalformedResponseError{Provider: p, Reason: "response is not valid JSON"}
	}

	res := gjson.GetBytes(raw, path)
	if !res.Exists() {
		return "", &domain.MalformedResponseError{Provider: p, Path: path, Reason: "field missing"}
	}
	if res.Type != gjson.String {
		return "", &domain.MalformedResponseError{Provider: p, Path: path, Reason: "field is not a string"}
	}
	return res.Str, nil
}
