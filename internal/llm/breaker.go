package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	appErrors "channelflow-backend/pkg/errors"
)

// BreakerProvider wraps a Provider with a circuit breaker so a failing
// upstream degrades into fast Unavailable errors instead of piled-up timeouts.
type BreakerProvider struct {
	inner  Provider
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewBreakerProvider wraps inner with a shared breaker for both call paths.
func NewBreakerProvider(inner Provider, logger *zap.Logger) *BreakerProvider {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Only trip once there is enough traffic to judge.
			if counts.Requests < 3 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &BreakerProvider{inner: inner, cb: cb, logger: logger}
}

// Complete proxies to the inner provider through the breaker.
func (p *BreakerProvider) Complete(ctx context.Context, prompt string, options CompletionOptions) (string, error) {
	out, err := p.cb.Execute(func() (any, error) {
		return p.inner.Complete(ctx, prompt, options)
	})
	if err != nil {
		return "", p.mapErr(err)
	}
	return out.(string), nil
}

// Embed proxies to the inner provider through the breaker.
func (p *BreakerProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out, err := p.cb.Execute(func() (any, error) {
		return p.inner.Embed(ctx, texts)
	})
	if err != nil {
		return nil, p.mapErr(err)
	}
	return out.([][]float32), nil
}

// IsAvailable reports the inner provider's availability unless the breaker
// is open.
func (p *BreakerProvider) IsAvailable() bool {
	return p.inner.IsAvailable() && p.cb.State() != gobreaker.StateOpen
}

func (p *BreakerProvider) mapErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return appErrors.NewUnavailable("llm circuit open", err)
	}
	return err
}
