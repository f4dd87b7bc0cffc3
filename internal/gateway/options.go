package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/vbonduro/nutriai/internal/imagecodec"
	"github.com/vbonduro/nutriai/internal/provider"
	"github.com/vbonduro/nutriai/internal/tokens"
)

const (
	DefaultTextTimeout    = 30 * time.Second
	DefaultVisionTimeout  = 60 * time.Second
	DefaultMaxCalories    = 20000
	DefaultJPEGQuality    = 85
	DefaultMaxImageDim    = 1568
	DefaultMaxImagePixels = imagecodec.DefaultMaxPixels
	DefaultRecipeCount    = 10
	DefaultPromptLogLimit = 500
	DefaultResultLogLimit = 1000
)

type Option func(*Gateway)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

// WithHTTPClient replaces the otel-instrumented default client.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) { g.client = client }
}

// WithTimeouts sets the per-call deadlines. Non-positive values keep the default.
func WithTimeouts(text, vision time.Duration) Option {
	return func(g *Gateway) {
		if text > 0 {
			g.textTimeout = text
		}
		if vision > 0 {
			g.visionTimeout = vision
		}
	}
}

func WithMaxCalories(kcal int) Option {
	return func(g *Gateway) {
		if kcal > 0 {
			g.maxKcal = kcal
		}
	}
}

func WithJPEGQuality(quality int) Option {
	return func(g *Gateway) { g.jpegQuality = quality }
}

// WithMaxImageDimension bounds the long edge of uploaded photos. Zero disables scaling.
func WithMaxImageDimension(px int) Option {
	return func(g *Gateway) { g.maxImageDim = px }
}

// WithMaxImagePixels rejects photos whose declared width*height exceeds px
// before they are decoded. Non-positive values keep the default.
func WithMaxImagePixels(px int) Option {
	return func(g *Gateway) {
		if px > 0 {
			g.maxImagePx = px
		}
	}
}

func WithRecipeCount(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.recipeCount = n
		}
	}
}

// WithLogLimits caps how many characters of prompt and result are written to
// each audit entry.
func WithLogLimits(prompt, result int) Option {
	return func(g *Gateway) {
		if prompt > 0 {
			g.promptLimit = prompt
		}
		if result > 0 {
			g.resultLimit = result
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithIDGenerator replaces uuid.NewString for audit entries and recipes.
func WithIDGenerator(newID func() string) Option {
	return func(g *Gateway) { g.newID = newID }
}

func WithTokenCounter(c tokens.Counter) Option {
	return func(g *Gateway) { g.tokens = c }
}

// WithAdapter overrides the adapter registered for a.Provider().
func WithAdapter(a provider.Adapter) Option {
	return func(g *Gateway) { g.adapters[a.Provider()] = a }
}

// WithTracerProvider takes spans from tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(g *Gateway) { g.tracer = tp.Tracer(tracerName) }
}
