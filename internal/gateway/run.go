package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vbonduro/nutriai/internal/domain"
	"github.com/vbonduro/nutriai/internal/extract"
	"github.com/vbonduro/nutriai/internal/provider"
)

// call describes one operation. Exactly one of text or vision is set.
type call[T any] struct {
	callType domain.CallType
	provider domain.Provider
	timeout  time.Duration
	validate func() error
	text     func() domain.TextRequest
	vision   func() domain.VisionRequest
	// logPrompt overrides the prompt recorded in the audit entry.
	logPrompt func() string
	parse     func(text string) (T, error)
}

// outcome collects what the audit entry needs as the call moves through
// Validating, Requesting, Extracting and Parsing.
type outcome struct {
	model  string
	prompt string
	result string
	err    error
}

func execute[T any](ctx context.Context, g *Gateway, c call[T]) (T, error) {
	start := g.now()
	ctx, span := g.tracer.Start(ctx, "gateway."+string(c.callType))
	defer span.End()

	value, out := run(ctx, g, c)

	g.record(ctx, c.callType, c.provider, start, out)

	span.SetAttributes(
		attribute.String("ai.call_type", string(c.callType)),
		attribute.String("ai.provider", string(c.provider)),
		attribute.String("ai.model", out.model),
		attribute.Bool("ai.success", out.err == nil),
	)
	if out.err != nil {
		span.SetAttributes(attribute.String("ai.error_kind", string(domain.KindOf(out.err))))
		span.RecordError(out.err)
		span.SetStatus(codes.Error, out.err.Error())
	}

	if out.err != nil {
		var zero T
		return zero, out.err
	}
	return value, nil
}

func (c call[T]) promptForLog() string {
	switch {
	case c.logPrompt != nil:
		return c.logPrompt()
	case c.text != nil:
		return c.text().User
	}
	return ""
}

func run[T any](ctx context.Context, g *Gateway, c call[T]) (T, outcome) {
	var zero T
	var out outcome

	// Validating
	out.prompt = c.promptForLog()
	adapter, ok := g.adapters[c.provider]
	if !ok || !c.provider.Valid() {
		out.err = &domain.ValidationError{Field: "provider", Reason: fmt.Sprintf("unsupported provider %q", c.provider)}
		return zero, out
	}
	out.model = adapter.Model()

	if c.validate != nil {
		if err := c.validate(); err != nil {
			out.err = err
			return zero, out
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		req *http.Request
		err error
	)
	if c.vision != nil {
		req, err = adapter.BuildVisionRequest(callCtx, c.vision())
	} else {
		req, err = adapter.BuildTextRequest(callCtx, c.text())
	}
	if err != nil {
		out.err = err
		return zero, out
	}

	// Requesting
	body, err := provider.Send(g.client, req, c.provider)
	if err != nil {
		out.err = contextError(ctx, callCtx, err, c.provider, c.timeout)
		return zero, out
	}

	// Extracting
	text, err := extract.Text(body, c.provider)
	if err != nil {
		out.err = err
		return zero, out
	}
	out.result = text

	// Parsing
	value, err := c.parse(text)
	if err != nil {
		out.err = err
		return zero, out
	}
	return value, out
}

// contextError maps context failures to TimeoutError or CancelledError. A
// caller cancel wins over a deadline that expired at the same time.
func contextError(parent, callCtx context.Context, err error, p domain.Provider, timeout time.Duration) error {
	switch {
	case errors.Is(parent.Err(), context.Canceled):
		return &domain.CancelledError{Provider: p}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return &domain.TimeoutError{Provider: p, After: timeout}
	case errors.Is(err, context.Canceled):
		return &domain.CancelledError{Provider: p}
	}
	return err
}

// record writes the audit entry and the per-call log line. Append failures
// are logged and never replace the call result.
func (g *Gateway) record(ctx context.Context, callType domain.CallType, p domain.Provider, start time.Time, out outcome) {
	duration := g.now().Sub(start)
	entry := domain.AiLogEntry{
		ID:              g.newID(),
		Timestamp:       start.UTC(),
		CallType:        callType,
		Provider:        p,
		Model:           out.model,
		Prompt:          truncate(out.prompt, g.promptLimit),
		Result:          truncate(out.result, g.resultLimit),
		Success:         out.err == nil,
		DurationMs:      duration.Milliseconds(),
		EstimatedTokens: g.tokens.Count(out.prompt) + g.tokens.Count(out.result),
	}
	if out.err != nil {
		entry.Error = out.err.Error()
		entry.ErrorKind = domain.KindOf(out.err)
	}

	// The entry is written even when the caller has gone away.
	if err := g.audit.Append(context.WithoutCancel(ctx), entry); err != nil {
		g.logger.Error("failed to append ai log entry", "call_type", callType, "provider", p, "error", err)
		trace.SpanFromContext(ctx).RecordError(err, trace.WithAttributes(attribute.String("ai.stage", "audit")))
	}

	attrs := []any{
		"call_type", callType,
		"provider", p,
		"model", out.model,
		"success", entry.Success,
		"duration_ms", entry.DurationMs,
		"estimated_tokens", entry.EstimatedTokens,
	}
	if out.err != nil {
		attrs = append(attrs, "error_kind", entry.ErrorKind, "retryable", domain.Retryable(out.err), "error", out.err)
		g.logger.Warn("ai call failed", attrs...)
		return
	}
	g.logger.Info("ai call", attrs...)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
