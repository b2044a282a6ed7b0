package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockProvider provides a deterministic implementation for testing and
// development. Completions are looked up by prompt substring; embeddings are
// letter-frequency vectors unless pinned explicitly, so identical texts always
// score similarity 1.
type MockProvider struct {
	mu          sync.Mutex
	available   bool
	completions map[string]string
	defaultText string
	embeddings  map[string][]float32
	err         error
}

// NewMockProvider creates a new mock LLM provider
func NewMockProvider() *MockProvider {
	return &MockProvider{
		available:   true,
		completions: make(map[string]string),
		defaultText: "0",
		embeddings:  make(map[string][]float32),
	}
}

// SetAvailable toggles the provider's availability.
func (m *MockProvider) SetAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
}

// SetError makes every call fail with err until cleared with nil.
func (m *MockProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetCompletion registers a canned reply for prompts containing substring.
func (m *MockProvider) SetCompletion(substring, reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completions[substring] = reply
}

// SetDefaultCompletion sets the reply used when no substring matches.
func (m *MockProvider) SetDefaultCompletion(reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultText = reply
}

// SetEmbedding pins the vector returned for an exact text.
func (m *MockProvider) SetEmbedding(text string, vec []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeddings[text] = vec
}

// IsAvailable returns whether the mock provider is available
func (m *MockProvider) IsAvailable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// Complete returns the canned reply whose substring matches the prompt.
func (m *MockProvider) Complete(ctx context.Context, prompt string, options CompletionOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.callErr(); err != nil {
		return "", err
	}
	for substring, reply := range m.completions {
		if strings.Contains(prompt, substring) {
			return reply, nil
		}
	}
	return m.defaultText, nil
}

// Embed returns pinned or derived vectors for each text.
func (m *MockProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.callErr(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if vec, ok := m.embeddings[t]; ok {
			out[i] = vec
			continue
		}
		out[i] = letterFrequencyVector(t)
	}
	return out, nil
}

func (m *MockProvider) callErr() error {
	if !m.available {
		return fmt.Errorf("mock provider is not available")
	}
	return m.err
}

// letterFrequencyVector maps text onto a 27-dim vector of letter counts
// (index 26 collects everything else). Crude, but similar wording produces
// similar vectors, which is all development mode needs.
func letterFrequencyVector(text string) []float32 {
	vec := make([]float32, 27)
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z':
			vec[r-'a']++
		case r == ' ':
			// Spaces carry no signal.
		default:
			vec[26]++
		}
	}
	return vec
}
