// Package gateway runs AI calls end to end: validate, request, extract,
// parse, then record exactly one audit entry per call.
package gateway

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vbonduro/nutriai/internal/audit"
	"github.com/vbonduro/nutriai/internal/domain"
	"github.com/vbonduro/nutriai/internal/imagecodec"
	"github.com/vbonduro/nutriai/internal/parse"
	"github.com/vbonduro/nutriai/internal/provider"
	"github.com/vbonduro/nutriai/internal/provider/deepseek"
	"github.com/vbonduro/nutriai/internal/provider/gemini"
	"github.com/vbonduro/nutriai/internal/provider/openai"
	"github.com/vbonduro/nutriai/internal/tokens"
)

const tracerName = "github.com/vbonduro/nutriai/internal/gateway"

// Gateway is immutable after New and safe for concurrent use. The audit sink
// is the only shared state.
type Gateway struct {
	adapters map[domain.Provider]provider.Adapter
	audit    audit.Sink
	client   *http.Client
	logger   *slog.Logger
	tracer   trace.Tracer
	tokens   tokens.Counter
	now      func() time.Time
	newID    func() string

	textTimeout   time.Duration
	visionTimeout time.Duration
	maxKcal       int
	jpegQuality   int
	maxImageDim   int
	maxImagePx    int
	recipeCount   int
	promptLimit   int
	resultLimit   int
}

func New(creds provider.Credentials, sink audit.Sink, opts ...Option) *Gateway {
	g := &Gateway{
		adapters: map[domain.Provider]provider.Adapter{
			domain.OpenAI:   openai.New(creds),
			domain.Gemini:   gemini.New(creds),
			domain.DeepSeek: deepseek.New(creds),
		},
		audit:         sink,
		client:        provider.NewHTTPClient(),
		logger:        slog.Default(),
		tracer:        otel.Tracer(tracerName),
		tokens:        tokens.NewTiktokenCounter(),
		now:           time.Now,
		newID:         uuid.NewString,
		textTimeout:   DefaultTextTimeout,
		visionTimeout: DefaultVisionTimeout,
		maxKcal:       DefaultMaxCalories,
		jpegQuality:   DefaultJPEGQuality,
		maxImageDim:   DefaultMaxImageDim,
		maxImagePx:    DefaultMaxImagePixels,
		recipeCount:   DefaultRecipeCount,
		promptLimit:   DefaultPromptLogLimit,
		resultLimit:   DefaultResultLogLimit,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateRecipes asks p for recipes matching prompt and parses the markdown
// sections into at most the configured number of recipes.
func (g *Gateway) GenerateRecipes(ctx context.Context, prompt string, p domain.Provider) ([]domain.Recipe, error) {
	return execute(ctx, g, call[[]domain.Recipe]{
		callType: domain.CallRecipes,
		provider: p,
		timeout:  g.textTimeout,
		validate: func() error { return requireText("prompt", prompt) },
		text: func() domain.TextRequest {
			return domain.TextRequest{System: recipeSystemPrompt, User: recipeUserPrompt(prompt, g.recipeCount)}
		},
		parse: func(text string) ([]domain.Recipe, error) {
			recipes, err := parse.Recipes(text, g.newID)
			if err != nil {
				return nil, err
			}
			if len(recipes) > g.recipeCount {
				recipes = recipes[:g.recipeCount]
			}
			return recipes, nil
		},
	})
}

// EstimateCaloriesFromPhoto re-encodes image as JPEG and asks p for a calorie
// estimate. note is optional extra context from the user.
func (g *Gateway) EstimateCaloriesFromPhoto(ctx context.Context, image []byte, note string, p domain.Provider) (domain.CalorieEstimate, error) {
	var encoded string
	note = strings.TrimSpace(note)

	return execute(ctx, g, call[domain.CalorieEstimate]{
		callType: domain.CallCaloriesPhoto,
		provider: p,
		timeout:  g.visionTimeout,
		logPrompt: func() string {
			if note == "" {
				return photoInstruction
			}
			return photoInstruction + "\n\nNote: " + note
		},
		validate: func() error {
			if len(image) == 0 {
				return &domain.ValidationError{Field: "image", Reason: "must not be empty"}
			}
			enc := imagecodec.Encoder{Quality: g.jpegQuality, MaxDimension: g.maxImageDim, MaxPixels: g.maxImagePx}
			var err error
			encoded, err = enc.Encode(bytes.NewReader(image))
			if err != nil {
				return err
			}
			g.logger.Debug("encoded meal photo",
				"input_size", humanize.Bytes(uint64(len(image))),
				"encoded_size", humanize.Bytes(uint64(len(encoded))),
			)
			return nil
		},
		vision: func() domain.VisionRequest {
			return domain.VisionRequest{
				Prompt:      photoPrompt(),
				ImageBase64: encoded,
				MimeType:    imagecodec.MimeType,
				Note:        note,
			}
		},
		parse: func(text string) (domain.CalorieEstimate, error) {
			return parse.Calories(text, g.maxKcal)
		},
	})
}

// EstimateCaloriesFromText estimates calories for a meal the user described
// in words instead of photographing.
func (g *Gateway) EstimateCaloriesFromText(ctx context.Context, description string, p domain.Provider) (domain.CalorieEstimate, error) {
	return execute(ctx, g, call[domain.CalorieEstimate]{
		callType: domain.CallCaloriesText,
		provider: p,
		timeout:  g.textTimeout,
		validate: func() error { return requireText("description", description) },
		text: func() domain.TextRequest {
			return domain.TextRequest{System: calorieSystemPrompt, User: calorieTextPrompt(description)}
		},
		parse: func(text string) (domain.CalorieEstimate, error) {
			return parse.Calories(text, g.maxKcal)
		},
	})
}

func (g *Gateway) GeneratePlan(ctx context.Context, req domain.PlanRequest, p domain.Provider) (domain.Plan, error) {
	return execute(ctx, g, call[domain.Plan]{
		callType: domain.CallPlan,
		provider: p,
		timeout:  g.textTimeout,
		validate: req.Validate,
		text: func() domain.TextRequest {
			return domain.TextRequest{System: planSystemPrompt, User: planUserPrompt(req)}
		},
		parse: func(text string) (domain.Plan, error) {
			return parse.Plan(req, text)
		},
	})
}

// CallText sends a free-form prompt and returns the generated text unchanged.
func (g *Gateway) CallText(ctx context.Context, req domain.TextRequest, p domain.Provider) (string, error) {
	return execute(ctx, g, call[string]{
		callType: domain.CallText,
		provider: p,
		timeout:  g.textTimeout,
		validate: func() error { return requireText("user", req.User) },
		text:     func() domain.TextRequest { return req },
		parse:    func(text string) (string, error) { return text, nil },
	})
}

// Model reports the model p would be called with.
func (g *Gateway) Model(p domain.Provider) string {
	if a, ok := g.adapters[p]; ok {
		return a.Model()
	}
	return ""
}

func requireText(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return &domain.ValidationError{Field: field, Reason: "must not be empty"}
	}
	return nil
}
