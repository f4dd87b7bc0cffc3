package openai

import (
	"context"
	"net/http"
	"strings"

	"github.com/vbonduro/nutriai/internal/domain"
	"github.com/vbonduro/nutriai/internal/provider"
	"github.com/vbonduro/nutriai/internal/provider/chatcompletion"
)

const (
	defaultBaseURL = "https://api.openai.com"
	defaultModel   = "gpt-4o-mini"
)

type Adapter struct {
	creds provider.Credentials
}

func New(creds provider.Credentials) *Adapter {
	return &Adapter{creds: creds}
}

func (a *Adapter) Provider() domain.Provider { return domain.OpenAI }

func (a *Adapter) Model() string {
	return provider.Or(a.creds.Model(domain.OpenAI), defaultModel)
}

func (a *Adapter) BuildTextRequest(ctx context.Context, req domain.TextRequest) (*http.Request, error) {
	key, baseURL, model, err := provider.Resolve(a.creds, domain.OpenAI, defaultBaseURL, defaultModel)
	if err != nil {
		return nil, err
	}
	return chatcompletion.NewRequest(ctx, endpoint(baseURL), key, chatcompletion.TextBody(model, req))
}

func (a *Adapter) BuildVisionRequest(ctx context.Context, req domain.VisionRequest) (*http.Request, error) {
	key, baseURL, model, err := provider.Resolve(a.creds, domain.OpenAI, defaultBaseURL, defaultModel)
	if err != nil {
		return nil, err
	}
	return chatcompletion.NewRequest(ctx, endpoint(baseURL), key, chatcompletion.VisionBody(model, req))
}

func endpoint(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/v1/chat/completions"
}
