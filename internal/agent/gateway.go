// Package agent talks to the text-generation backend: a retrying Gateway in
// front of a Backend, plus the prompt templates used by the attempt loop.
package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/harrison/fixloop/internal/budget"
	"github.com/harrison/fixloop/internal/models"
)

// Request is a single completion request.
type Request struct {
	Prompt    string
	MaxTokens int // Maximum completion tokens
}

// Backend performs one round-trip. Failures must be *TransportError or
// *ContractError; any other error is treated as a transport failure.
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// GatewayLogger receives generation call events.
type GatewayLogger interface {
	LogGenerationCall(attempt, maxAttempts, promptChars int)
	LogGenerationRetry(attempt int, err error, delay time.Duration)
	LogGenerationDone(attempt int, elapsed time.Duration, outputChars int)
}

// GatewayConfig holds the call-level retry policy.
type GatewayConfig struct {
	MaxRetries  int           // Extra attempts after a transport failure (0 = try once)
	RetryDelay  time.Duration // Wait between attempts
	CallTimeout time.Duration // Deadline for one round-trip (0 = none)
	MaxTokens   int           // Completion token limit passed to the backend
}

// Gateway wraps a Backend with its own retry budget.
type Gateway struct {
	backend Backend
	cfg     GatewayConfig
	logger  GatewayLogger // can be nil
	tracer  trace.Tracer
}

// NewGateway creates a Gateway in front of backend.
func NewGateway(backend Backend, cfg GatewayConfig, logger GatewayLogger) *Gateway {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Gateway{
		backend: backend,
		cfg:     cfg,
		logger:  logger,
		tracer:  otel.Tracer("github.com/harrison/fixloop/internal/agent"),
	}
}

// Generate sends prompt to the backend and returns the generated text.
// Only transport failures are retried. A contract violation, or running out
// of attempts, returns a *GenerationError wrapping the last error.
func (g *Gateway) Generate(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	ctx, span := g.tracer.Start(ctx, "agent.generate", trace.WithAttributes(
		attribute.Int("prompt_chars", len(prompt)),
		attribute.Int("max_retries", g.cfg.MaxRetries),
	))
	defer span.End()

	attempts := models.NewRetryBudget("generation", g.cfg.MaxRetries+1)
	req := Request{Prompt: prompt, MaxTokens: g.cfg.MaxTokens}

	var lastErr error
	for {
		n, ok := attempts.Take()
		if !ok {
			break
		}
		if g.logger != nil {
			g.logger.LogGenerationCall(n, attempts.Limit(), len(prompt))
		}

		start := time.Now()
		text, err := g.call(ctx, req)
		if err == nil {
			span.SetAttributes(attribute.Int("attempts", n))
			if g.logger != nil {
				g.logger.LogGenerationDone(n, time.Since(start), len(text))
			}
			return text, nil
		}
		lastErr = err

		if IsContractError(err) || ctx.Err() != nil {
			break
		}
		if attempts.Exhausted() {
			break
		}

		if g.logger != nil {
			g.logger.LogGenerationRetry(n, err, g.cfg.RetryDelay)
		}
		if werr := budget.Wait(ctx, g.cfg.RetryDelay); werr != nil {
			lastErr = werr
			break
		}
	}

	span.SetStatus(codes.Error, lastErr.Error())
	return "", &GenerationError{Attempts: attempts.Used(), Err: lastErr}
}

// call performs one round-trip under the per-call deadline and normalises
// the error into the transport/contract taxonomy.
func (g *Gateway) call(ctx context.Context, req Request) (string, error) {
	callCtx := ctx
	if g.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.cfg.CallTimeout)
		defer cancel()
	}

	text, err := g.backend.Complete(callCtx, req)
	if err == nil {
		return text, nil
	}

	var ce *ContractError
	var te *TransportError
	switch {
	case errors.As(err, &ce), errors.As(err, &te):
		return "", err
	default:
		return "", &TransportError{Err: err}
	}
}
