package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/medgate/medgate/pkg/config"
)

func TestCountTokensNeverZeroForText(t *testing.T) {
	n := CountTokens("gpt-3.5-turbo", "What causes migraines?")
	assert.Greater(t, n, 0)

	// Unknown models fall back rather than failing.
	n = CountTokens("totally-unknown-model", "What causes migraines?")
	assert.Greater(t, n, 0)
}

func TestCountTokensScalesWithLength(t *testing.T) {
	short := CountTokens("gpt-3.5-turbo", "hi")
	long := CountTokens("gpt-3.5-turbo", "Describe the pathophysiology of myocardial infarction in detail, including the role of plaque rupture and thrombus formation.")
	assert.Greater(t, long, short)
}

func TestEstimateCost(t *testing.T) {
	models := map[string]config.ModelConfig{
		"gpt-4": {InputPricePer1K: 0.03, OutputPricePer1K: 0.06},
	}

	cost := EstimateCost("gpt-4", 1000, 500, models)
	assert.InDelta(t, 0.03+0.03, cost, 1e-9)

	assert.Equal(t, 0.0, EstimateCost("unknown", 1000, 500, models))
}
