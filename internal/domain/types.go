package domain

import (
	"fmt"
	"strings"
	"time"
)

// Provider identifies one of the supported AI backends. The set is closed.
type Provider string

const (
	OpenAI   Provider = "openai"
	Gemini   Provider = "gemini"
	DeepSeek Provider = "deepseek"
)

// Providers returns every supported provider in a stable order.
func Providers() []Provider {
	return []Provider{OpenAI, Gemini, DeepSeek}
}

func (p Provider) String() string { return string(p) }

// Valid reports whether p is a member of the closed provider set.
func (p Provider) Valid() bool {
	switch p {
	case OpenAI, Gemini, DeepSeek:
		return true
	}
	return false
}

// ParseProvider maps a case-insensitive name to a Provider.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", &ValidationError{Field: "provider", Reason: fmt.Sprintf("unsupported provider %q", s)}
	}
	return p, nil
}

// CallType labels a gateway operation in the audit log.
type CallType string

const (
	CallRecipes       CallType = "recipes"
	CallCaloriesPhoto CallType = "calories_photo"
	CallCaloriesText  CallType = "calories_text"
	CallPlan          CallType = "plan"
	CallText          CallType = "text"
)

type TextRequest struct {
	System string
	User   string
}

type VisionRequest struct {
	Prompt      string
	ImageBase64 string
	MimeType    string
	Note        string
}

type Recipe struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Ingredients []string `json:"ingredients"`
	Steps       []string `json:"steps"`
	Calories    *int     `json:"calories,omitempty"`
	Markdown    string   `json:"markdown"`
}

type CalorieEstimate struct {
	Kcal       int      `json:"kcal"`
	Confidence string   `json:"confidence"`
	Breakdown  []string `json:"breakdown,omitempty"`
	Details    string   `json:"details"`
}

type PlanRequest struct {
	Goal              string   `json:"goal"`
	Weeks             int      `json:"weeks"`
	SessionsPerWeek   int      `json:"sessions_per_week"`
	MinutesPerSession int      `json:"minutes_per_session"`
	Equipment         []string `json:"equipment"`
}

// Validate rejects plan requests that must never reach a provider.
func (r PlanRequest) Validate() error {
	if strings.TrimSpace(r.Goal) == "" {
		return &ValidationError{Field: "goal", Reason: "must not be empty"}
	}
	if r.Weeks < 1 {
		return &ValidationError{Field: "weeks", Reason: "must be at least 1"}
	}
	if r.SessionsPerWeek < 1 {
		return &ValidationError{Field: "sessions_per_week", Reason: "must be at least 1"}
	}
	if r.MinutesPerSession < 1 {
		return &ValidationError{Field: "minutes_per_session", Reason: "must be at least 1"}
	}
	return nil
}

type Plan struct {
	Request PlanRequest `json:"request"`
	Content string      `json:"content"`
}

// AiLogEntry is one audit record. Entries are append-only.
type AiLogEntry struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	CallType        CallType  `json:"call_type"`
	Provider        Provider  `json:"provider"`
	Model           string    `json:"model"`
	Prompt          string    `json:"prompt"`
	Result          string    `json:"result"`
	Error           string    `json:"error,omitempty"`
	ErrorKind       ErrorKind `json:"error_kind,omitempty"`
	Success         bool      `json:"success"`
	DurationMs      int64     `json:"duration_ms"`
	EstimatedTokens int       `json:"estimated_tokens"`
}
