package llm

import (
	"context"
	"fmt"
)

// Generation is the result of one model completion.
type Generation struct {
	Text         string `json:"text"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// Generator produces a completion from an upstream model provider.
type Generator interface {
	Generate(ctx context.Context, prompt, model string, maxTokens int, temperature float64) (*Generation, error)
}

// Mock returns canned responses for tests and deterministic generation
// when no upstream is configured.
type Mock struct {
	Response string
	Err      error
	Calls    int
}

func (m *Mock) Generate(_ context.Context, prompt, model string, _ int, _ float64) (*Generation, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	text := m.Response
	if text == "" {
		text = fmt.Sprintf("mock response for %q", prompt)
	}
	return &Generation{
		Text:         text,
		Model:        model,
		InputTokens:  len(prompt) / 4,
		OutputTokens: len(text) / 4,
	}, nil
}
