// Package gateway wraps every LLM call with bounded retry and failure
// classification so pipeline stages degrade gracefully instead of aborting.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"newsdesk/internal/ports"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = time.Second
)

// Deps wires the gateway's collaborators.
type Deps struct {
	Client ports.ChatCompleter
	Logger *slog.Logger

	// MaxAttempts and InitialBackoff override the retry policy; zero values
	// keep the defaults. Tests shrink the backoff to keep runs fast.
	MaxAttempts    int
	InitialBackoff time.Duration
}

// Gateway is the single entry point for external LLM calls. It owns the
// client's shared network session and releases it exactly once on Close.
type Gateway struct {
	client      ports.ChatCompleter
	logger      *slog.Logger
	maxAttempts int
	initial     time.Duration
	closeOnce   sync.Once
}

// New constructs the gateway.
func New(deps Deps) *Gateway {
	g := &Gateway{
		client:      deps.Client,
		logger:      deps.Logger,
		maxAttempts: deps.MaxAttempts,
		initial:     deps.InitialBackoff,
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	if g.maxAttempts <= 0 {
		g.maxAttempts = defaultMaxAttempts
	}
	if g.initial <= 0 {
		g.initial = defaultInitialBackoff
	}
	return g
}

// Complete performs the call with exponential backoff on transient failures.
// The second return value reports success: on exhausted retries or a
// permanent error it is false and the caller skips the row this cycle.
func (g *Gateway) Complete(ctx context.Context, req ports.ChatRequest) (string, bool) {
	if g.client == nil {
		return "", false
	}

	attempt := 0
	operation := func() (string, error) {
		attempt++
		text, err := g.client.Complete(ctx, req)
		if err == nil {
			return text, nil
		}
		if errors.Is(err, ports.ErrTransient) {
			g.logger.Warn("llm call failed",
				"attempt", attempt, "max_attempts", g.maxAttempts, "error", err)
			return "", err
		}
		return "", backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = g.initial
	policy.Multiplier = 2
	policy.RandomizationFactor = 0

	text, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(g.maxAttempts)),
	)
	if err != nil {
		g.logger.Error("llm call abandoned", "attempts", attempt, "error", err)
		return "", false
	}

	return text, true
}

// Close releases the shared session. Runs at most once regardless of how
// the pipeline run ended.
func (g *Gateway) Close() {
	g.closeOnce.Do(func() {
		if closer, ok := g.client.(interface{ Close() }); ok {
			closer.Close()
		}
	})
}
