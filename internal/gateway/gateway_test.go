package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/sync/errgroup"

	"github.com/vbonduro/nutriai/internal/audit"
	"github.com/vbonduro/nutriai/internal/domain"
	"github.com/vbonduro/nutriai/internal/provider"
	"github.com/vbonduro/nutriai/internal/tokens"
)

const recipeMarkdown = `## Overnight Oats
Ingredients:
- 50 g oats
- 150 ml milk
Steps:
1. Mix.
2. Chill overnight.
Calories: 350

## Chickpea Salad
Ingredients:
- 1 can chickpeas
Steps:
1. Drain and toss.
`

// fakeProviders serves both the chat completion and generateContent shapes.
type fakeProviders struct {
	server *httptest.Server
	hits   atomic.Int32
	reply  string
	status int
	// handle replaces the default reply when set.
	handle func(w http.ResponseWriter, r *http.Request, body []byte)
	last   atomic.Value
}

type fakeOption func(*fakeProviders)

func withStatus(status int) fakeOption {
	return func(f *fakeProviders) { f.status = status }
}

func withHandler(h func(w http.ResponseWriter, r *http.Request, body []byte)) fakeOption {
	return func(f *fakeProviders) { f.handle = h }
}

func newFakeProviders(t *testing.T, reply string, opts ...fakeOption) *fakeProviders {
	t.Helper()
	f := &fakeProviders{reply: reply, status: http.StatusOK}
	for _, opt := range opts {
		opt(f)
	}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		body, _ := io.ReadAll(r.Body)
		f.last.Store(body)
		if f.handle != nil {
			f.handle(w, r, body)
			return
		}
		if f.status != http.StatusOK {
			http.Error(w, "provider says no", f.status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		var resp any
		if strings.Contains(r.URL.Path, ":generateContent") {
			resp = map[string]any{"candidates": []any{map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": f.reply}}}}}}
		} else {
			resp = map[string]any{"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": f.reply}}}}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeProviders) lastBody() []byte {
	b, _ := f.last.Load().([]byte)
	return b
}

func (f *fakeProviders) creds() provider.StaticCredentials {
	return provider.StaticCredentials{
		domain.OpenAI:   {APIKey: "sk-openai", BaseURL: f.server.URL},
		domain.Gemini:   {APIKey: "g-key", BaseURL: f.server.URL},
		domain.DeepSeek: {APIKey: "ds-key", BaseURL: f.server.URL},
	}
}

func seqIDs() func() string {
	var n atomic.Int32
	return func() string { return fmt.Sprintf("id-%d", n.Add(1)) }
}

func newTestGateway(f *fakeProviders, sink audit.Sink, opts ...Option) *Gateway {
	base := []Option{
		WithHTTPClient(f.server.Client()),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithTokenCounter(tokens.Estimator{}),
		WithIDGenerator(seqIDs()),
	}
	return New(f.creds(), sink, append(base, opts...)...)
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for x := range 32 {
		for y := range 24 {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x * 8), B: uint8(y * 10), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func onlyEntry(t *testing.T, m *audit.Memory) domain.AiLogEntry {
	t.Helper()
	entries := m.Entries()
	require.Len(t, entries, 1)
	return entries[0]
}

func TestGenerateRecipesOpenAI(t *testing.T) {
	f := newFakeProviders(t, recipeMarkdown)
	sink := audit.NewMemory()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := newTestGateway(f, sink, WithClock(func() time.Time { return fixed }))

	recipes, err := g.GenerateRecipes(context.Background(), "high protein breakfast", domain.OpenAI)
	require.NoError(t, err)
	require.Len(t, recipes, 2)
	assert.Equal(t, "Overnight Oats", recipes[0].Title)
	assert.Equal(t, "Chickpea Salad", recipes[1].Title)
	require.NotNil(t, recipes[0].Calories)
	assert.Equal(t, 350, *recipes[0].Calories)

	body := f.lastBody()
	assert.Equal(t, "gpt-4o-mini", gjson.GetBytes(body, "model").String())
	assert.Contains(t, gjson.GetBytes(body, "messages.1.content").String(), "Suggest 10 recipes for: high protein breakfast")

	entry := onlyEntry(t, sink)
	assert.True(t, entry.Success)
	assert.Equal(t, domain.CallRecipes, entry.CallType)
	assert.Equal(t, domain.OpenAI, entry.Provider)
	assert.Equal(t, "gpt-4o-mini", entry.Model)
	assert.Equal(t, fixed, entry.Timestamp)
	assert.Contains(t, entry.Prompt, "high protein breakfast")
	assert.Contains(t, entry.Result, "Overnight Oats")
	assert.Empty(t, entry.Error)
	assert.Positive(t, entry.EstimatedTokens)
}

func TestGenerateRecipesRespectsCount(t *testing.T) {
	f := newFakeProviders(t, recipeMarkdown)
	g := newTestGateway(f, audit.NewMemory(), WithRecipeCount(1))

	recipes, err := g.GenerateRecipes(context.Background(), "breakfast", domain.DeepSeek)
	require.NoError(t, err)
	assert.Len(t, recipes, 1)
	assert.Contains(t, gjson.GetBytes(f.lastBody(), "messages.1.content").String(), "Suggest 1 recipes")
}

func TestEstimateCaloriesFromPhotoGemini(t *testing.T) {
	reply := `{"estimated_calories": 540, "confidence": "high", "food_items": ["rice", "chicken"], "description": "Chicken with rice"}`
	f := newFakeProviders(t, reply)
	sink := audit.NewMemory()
	g := newTestGateway(f, sink)

	est, err := g.EstimateCaloriesFromPhoto(context.Background(), testPNG(t), "dinner plate", domain.Gemini)
	require.NoError(t, err)
	assert.Equal(t, 540, est.Kcal)
	assert.Equal(t, "high", est.Confidence)
	assert.Equal(t, []string{"rice", "chicken"}, est.Breakdown)

	body := f.lastBody()
	assert.Equal(t, "image/jpeg", gjson.GetBytes(body, "contents.0.parts.1.inline_data.mime_type").String())
	assert.NotEmpty(t, gjson.GetBytes(body, "contents.0.parts.1.inline_data.data").String())
	assert.Contains(t, gjson.GetBytes(body, "contents.0.parts.0.text").String(), "dinner plate")

	entry := onlyEntry(t, sink)
	assert.True(t, entry.Success)
	assert.Equal(t, domain.CallCaloriesPhoto, entry.CallType)
	assert.Equal(t, domain.Gemini, entry.Provider)
	assert.Contains(t, entry.Prompt, "dinner plate")
	assert.NotContains(t, entry.Prompt, gjson.GetBytes(body, "contents.0.parts.1.inline_data.data").String())
}

func TestEstimateCaloriesFromTextDeepSeek(t *testing.T) {
	f := newFakeProviders(t, "That is roughly 620 kcal.")
	sink := audit.NewMemory()
	g := newTestGateway(f, sink)

	est, err := g.EstimateCaloriesFromText(context.Background(), "two slices of pizza", domain.DeepSeek)
	require.NoError(t, err)
	assert.Equal(t, 620, est.Kcal)
	assert.Equal(t, domain.CallCaloriesText, onlyEntry(t, sink).CallType)
}

func TestGeneratePlan(t *testing.T) {
	f := newFakeProviders(t, "\n## Week 1\n- Squats 3x8\n")
	sink := audit.NewMemory()
	g := newTestGateway(f, sink)

	req := domain.PlanRequest{Goal: "get stronger", Weeks: 8, SessionsPerWeek: 3, MinutesPerSession: 45, Equipment: []string{"barbell"}}
	plan, err := g.GeneratePlan(context.Background(), req, domain.OpenAI)
	require.NoError(t, err)
	assert.Equal(t, "## Week 1\n- Squats 3x8", plan.Content)
	assert.Equal(t, req, plan.Request)
	assert.Contains(t, gjson.GetBytes(f.lastBody(), "messages.1.content").String(), "Available equipment: barbell")
	assert.Equal(t, domain.CallPlan, onlyEntry(t, sink).CallType)
}

func TestCallTextReturnsRawText(t *testing.T) {
	f := newFakeProviders(t, "  keep my spaces \n")
	g := newTestGateway(f, audit.NewMemory())

	text, err := g.CallText(context.Background(), domain.TextRequest{System: "s", User: "u"}, domain.Gemini)
	require.NoError(t, err)
	assert.Equal(t, "  keep my spaces \n", text)
}

func TestTimeoutProducesOneFailedEntry(t *testing.T) {
	f := newFakeProviders(t, "", withHandler(func(w http.ResponseWriter, r *http.Request, _ []byte) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	sink := audit.NewMemory()
	g := newTestGateway(f, sink, WithTimeouts(50*time.Millisecond, 50*time.Millisecond))

	_, err := g.CallText(context.Background(), domain.TextRequest{User: "hello"}, domain.OpenAI)

	var timeout *domain.TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 50*time.Millisecond, timeout.After)
	assert.True(t, domain.Retryable(err))

	entry := onlyEntry(t, sink)
	assert.False(t, entry.Success)
	assert.Equal(t, domain.KindTimeout, entry.ErrorKind)
	assert.NotEmpty(t, entry.Error)
}

func TestCallerCancelIsCancelledAndStillLogged(t *testing.T) {
	arrived := make(chan struct{})
	f := newFakeProviders(t, "", withHandler(func(w http.ResponseWriter, r *http.Request, _ []byte) {
		close(arrived)
		<-r.Context().Done()
	}))
	sink := audit.NewMemory()
	g := newTestGateway(f, sink)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-arrived
		cancel()
	}()

	_, err := g.EstimateCaloriesFromText(ctx, "soup", domain.DeepSeek)

	var cancelled *domain.CancelledError
	require.ErrorAs(t, err, &cancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.KindCancelled, onlyEntry(t, sink).ErrorKind)
}

func TestIdenticalCallsAreNotDeduplicated(t *testing.T) {
	f := newFakeProviders(t, "hi")
	sink := audit.NewMemory()
	g := newTestGateway(f, sink)

	for range 2 {
		_, err := g.CallText(context.Background(), domain.TextRequest{User: "same"}, domain.OpenAI)
		require.NoError(t, err)
	}

	assert.Equal(t, int32(2), f.hits.Load())
	entries := sink.Entries()
	require.Len(t, entries, 2)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
}

func TestValidationHappensBeforeNetwork(t *testing.T) {
	tests := []struct {
		name  string
		call  func(g *Gateway) error
		field string
	}{
		{"blank recipe prompt", func(g *Gateway) error {
			_, err := g.GenerateRecipes(context.Background(), "   ", domain.OpenAI)
			return err
		}, "prompt"},
		{"empty image", func(g *Gateway) error {
			_, err := g.EstimateCaloriesFromPhoto(context.Background(), nil, "", domain.Gemini)
			return err
		}, "image"},
		{"blank description", func(g *Gateway) error {
			_, err := g.EstimateCaloriesFromText(context.Background(), "", domain.Gemini)
			return err
		}, "description"},
		{"zero weeks", func(g *Gateway) error {
			_, err := g.GeneratePlan(context.Background(), domain.PlanRequest{Goal: "run", SessionsPerWeek: 1, MinutesPerSession: 1}, domain.OpenAI)
			return err
		}, "weeks"},
		{"blank user text", func(g *Gateway) error {
			_, err := g.CallText(context.Background(), domain.TextRequest{System: "only system"}, domain.DeepSeek)
			return err
		}, "user"},
		{"unknown provider", func(g *Gateway) error {
			_, err := g.CallText(context.Background(), domain.TextRequest{User: "hi"}, domain.Provider("anthropic"))
			return err
		}, "provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeProviders(t, "unused")
			sink := audit.NewMemory()
			g := newTestGateway(f, sink)

			err := tt.call(g)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Zero(t, f.hits.Load())

			entry := onlyEntry(t, sink)
			assert.False(t, entry.Success)
			assert.Equal(t, domain.KindValidation, entry.ErrorKind)
		})
	}
}

func TestUndecodableImageNeverReachesProvider(t *testing.T) {
	f := newFakeProviders(t, "unused")
	sink := audit.NewMemory()
	g := newTestGateway(f, sink)

	_, err := g.EstimateCaloriesFromPhoto(context.Background(), []byte("not an image"), "", domain.OpenAI)

	var decodeErr *domain.ImageDecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Zero(t, f.hits.Load())
	assert.Equal(t, domain.KindImage, onlyEntry(t, sink).ErrorKind)
}

func TestPhotoOverPixelLimitNeverReachesProvider(t *testing.T) {
	f := newFakeProviders(t, "unused")
	sink := audit.NewMemory()
	g := newTestGateway(f, sink, WithMaxImagePixels(100))

	_, err := g.EstimateCaloriesFromPhoto(context.Background(), testPNG(t), "", domain.Gemini)

	var decodeErr *domain.ImageDecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Zero(t, f.hits.Load())
	assert.Equal(t, domain.KindImage, onlyEntry(t, sink).ErrorKind)
}

func TestMissingCredential(t *testing.T) {
	f := newFakeProviders(t, "unused")
	sink := audit.NewMemory()
	g := New(provider.StaticCredentials{domain.OpenAI: {BaseURL: f.server.URL}}, sink,
		WithHTTPClient(f.server.Client()),
		WithTokenCounter(tokens.Estimator{}),
	)

	_, err := g.CallText(context.Background(), domain.TextRequest{User: "hi"}, domain.OpenAI)

	var missing *domain.MissingCredentialError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, domain.OpenAI, missing.Provider)
	assert.Zero(t, f.hits.Load())
	assert.Equal(t, domain.KindMissingCredential, onlyEntry(t, sink).ErrorKind)
}

func TestNetworkErrorDoesNotLeakGeminiKey(t *testing.T) {
	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closed.Close()

	sink := audit.NewMemory()
	g := New(provider.StaticCredentials{domain.Gemini: {APIKey: "SECRET-GEMINI-KEY", BaseURL: closed.URL}}, sink,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithTokenCounter(tokens.Estimator{}),
	)

	_, err := g.CallText(context.Background(), domain.TextRequest{User: "hi"}, domain.Gemini)

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.NotContains(t, err.Error(), "SECRET-GEMINI-KEY")

	entry := onlyEntry(t, sink)
	assert.Equal(t, domain.KindNetwork, entry.ErrorKind)
	assert.NotEmpty(t, entry.Error)
	assert.NotContains(t, entry.Error, "SECRET-GEMINI-KEY")
}

func TestProviderHTTPError(t *testing.T) {
	f := newFakeProviders(t, "", withStatus(http.StatusTooManyRequests))
	sink := audit.NewMemory()
	g := newTestGateway(f, sink)

	_, err := g.CallText(context.Background(), domain.TextRequest{User: "hi"}, domain.OpenAI)

	var httpErr *domain.ProviderHTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.Status)
	assert.Contains(t, httpErr.Body, "provider says no")
	assert.True(t, domain.Retryable(err))
	assert.Equal(t, domain.KindRateLimit, onlyEntry(t, sink).ErrorKind)
}

func TestMalformedResponse(t *testing.T) {
	f := newFakeProviders(t, "", withHandler(func(w http.ResponseWriter, r *http.Request, _ []byte) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	sink := audit.NewMemory()
	g := newTestGateway(f, sink)

	_, err := g.CallText(context.Background(), domain.TextRequest{User: "hi"}, domain.DeepSeek)

	var malformed *domain.MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, domain.KindMalformedResponse, onlyEntry(t, sink).ErrorKind)
}

func TestParseFailureKeepsRawResult(t *testing.T) {
	f := newFakeProviders(t, "Sorry, I only talk about the weather.")
	sink := audit.NewMemory()
	g := newTestGateway(f, sink)

	_, err := g.GenerateRecipes(context.Background(), "dinner", domain.OpenAI)
	require.ErrorIs(t, err, domain.ErrNoRecipesParsed)

	entry := onlyEntry(t, sink)
	assert.False(t, entry.Success)
	assert.Equal(t, domain.KindParse, entry.ErrorKind)
	assert.Equal(t, "Sorry, I only talk about the weather.", entry.Result)
}

func TestCalorieParseFailure(t *testing.T) {
	f := newFakeProviders(t, "I cannot see any food.")
	g := newTestGateway(f, audit.NewMemory())

	_, err := g.EstimateCaloriesFromPhoto(context.Background(), testPNG(t), "", domain.OpenAI)

	var parseErr *domain.CalorieParseError
	assert.ErrorAs(t, err, &parseErr)
}

type failingSink struct {
	calls atomic.Int32
}

func (s *failingSink) Append(context.Context, domain.AiLogEntry) error {
	s.calls.Add(1)
	return errors.New("disk full")
}

func TestAuditFailureDoesNotMaskResult(t *testing.T) {
	f := newFakeProviders(t, "fine")
	sink := &failingSink{}
	g := newTestGateway(f, sink)

	text, err := g.CallText(context.Background(), domain.TextRequest{User: "hi"}, domain.OpenAI)
	require.NoError(t, err)
	assert.Equal(t, "fine", text)
	assert.Equal(t, int32(1), sink.calls.Load())
}

func TestAuditFailureDoesNotMaskError(t *testing.T) {
	f := newFakeProviders(t, "", withStatus(http.StatusUnauthorized))
	g := newTestGateway(f, &failingSink{})

	_, err := g.CallText(context.Background(), domain.TextRequest{User: "hi"}, domain.OpenAI)

	var httpErr *domain.ProviderHTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, domain.KindAuth, domain.KindOf(err))
}

func TestLogLimitsTruncate(t *testing.T) {
	f := newFakeProviders(t, strings.Repeat("r", 50))
	sink := audit.NewMemory()
	g := newTestGateway(f, sink, WithLogLimits(10, 20))

	_, err := g.CallText(context.Background(), domain.TextRequest{User: strings.Repeat("ü", 30)}, domain.OpenAI)
	require.NoError(t, err)

	entry := onlyEntry(t, sink)
	assert.Equal(t, strings.Repeat("ü", 10), entry.Prompt)
	assert.Len(t, entry.Result, 20)
}

func TestConcurrentCallsEachLogOnce(t *testing.T) {
	f := newFakeProviders(t, "ok")
	sink := audit.NewMemory()
	g := newTestGateway(f, sink)

	providers := domain.Providers()
	var eg errgroup.Group
	for i := range 30 {
		p := providers[i%len(providers)]
		eg.Go(func() error {
			_, err := g.CallText(context.Background(), domain.TextRequest{User: fmt.Sprint("call ", i)}, p)
			return err
		})
	}
	require.NoError(t, eg.Wait())

	assert.Equal(t, int32(30), f.hits.Load())
	entries := sink.Entries()
	assert.Len(t, entries, 30)

	ids := make(map[string]bool)
	for _, e := range entries {
		ids[e.ID] = true
		assert.True(t, e.Success)
	}
	assert.Len(t, ids, 30)
}

func TestWithAdapterOverride(t *testing.T) {
	f := newFakeProviders(t, "from stub")
	sink := audit.NewMemory()
	g := newTestGateway(f, sink, WithAdapter(stubAdapter{url: f.server.URL}))

	text, err := g.CallText(context.Background(), domain.TextRequest{User: "hi"}, domain.OpenAI)
	require.NoError(t, err)
	assert.Equal(t, "from stub", text)
	assert.Equal(t, "stub-model", g.Model(domain.OpenAI))
	assert.Equal(t, "stub-model", onlyEntry(t, sink).Model)
}

type stubAdapter struct {
	url string
}

func (stubAdapter) Provider() domain.Provider { return domain.OpenAI }
func (stubAdapter) Model() string             { return "stub-model" }

func (a stubAdapter) BuildTextRequest(ctx context.Context, req domain.TextRequest) (*http.Request, error) {
	return provider.NewJSONRequest(ctx, a.url+"/stub", map[string]string{"q": req.User})
}

func (a stubAdapter) BuildVisionRequest(ctx context.Context, req domain.VisionRequest) (*http.Request, error) {
	return provider.NewJSONRequest(ctx, a.url+"/stub", map[string]string{"q": req.Prompt})
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestSpanPerCall(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	f := newFakeProviders(t, "", withStatus(http.StatusUnauthorized))
	g := newTestGateway(f, audit.NewMemory(), WithTracerProvider(tp))

	_, err := g.CallText(context.Background(), domain.TextRequest{User: "hi"}, domain.Gemini)
	require.Error(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, "gateway.text", s.Name())
	assert.Equal(t, codes.Error, s.Status().Code)

	attrs := spanAttrs(s)
	assert.Equal(t, "gemini", attrs["ai.provider"].AsString())
	assert.Equal(t, "gemini-1.5-pro", attrs["ai.model"].AsString())
	assert.False(t, attrs["ai.success"].AsBool())
	assert.Equal(t, "auth", attrs["ai.error_kind"].AsString())
}
