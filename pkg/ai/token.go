package ai

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/medgate/medgate/pkg/config"
)

// CountTokens returns the number of tokens in a string for a specific model.
func CountTokens(model string, text string) int {
	tkm, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback encoding if the model is unknown
		tkm, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			// Last resort: rough whitespace estimate so callers never fail on counting
			return approxTokens(text)
		}
	}

	return len(tkm.Encode(text, nil, nil))
}

// EstimateCost calculates the USD price of a request from the configured
// per-1k-token rates. Unknown models cost zero rather than erroring: pricing is
// accounting metadata, never a correctness dependency.
func EstimateCost(model string, inputTokens, outputTokens int, models map[string]config.ModelConfig) float64 {
	mc, ok := models[model]
	if !ok {
		return 0
	}
	inputCost := (float64(inputTokens) / 1000.0) * mc.InputPricePer1K
	outputCost := (float64(outputTokens) / 1000.0) * mc.OutputPricePer1K
	return inputCost + outputCost
}

func approxTokens(text string) int {
	// ~4 chars per token is the usual rule of thumb for English text
	return (len(text) + 3) / 4
}
