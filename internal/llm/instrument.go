package llm

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// InstrumentedProvider wraps a Provider and counts every call by operation
// and outcome. It sits outside the circuit breaker, so rejected calls are
// counted as errors too.
type InstrumentedProvider struct {
	inner Provider
	calls *prometheus.CounterVec
}

// NewInstrumentedProvider wraps inner with call counting. The counter vec
// must carry the labels (operation, status).
func NewInstrumentedProvider(inner Provider, calls *prometheus.CounterVec) *InstrumentedProvider {
	return &InstrumentedProvider{inner: inner, calls: calls}
}

func (p *InstrumentedProvider) Complete(ctx context.Context, prompt string, options CompletionOptions) (string, error) {
	text, err := p.inner.Complete(ctx, prompt, options)
	p.calls.WithLabelValues("complete", callStatus(err)).Inc()
	return text, err
}

func (p *InstrumentedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := p.inner.Embed(ctx, texts)
	p.calls.WithLabelValues("embed", callStatus(err)).Inc()
	return vecs, err
}

// IsAvailable reports the inner provider's availability.
func (p *InstrumentedProvider) IsAvailable() bool {
	return p.inner.IsAvailable()
}

func callStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
