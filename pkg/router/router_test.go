package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medgate/medgate/pkg/config"
)

func testStore() *config.Store {
	return config.NewStaticStore(&config.Config{
		Models: map[string]config.ModelConfig{
			"gpt-3.5-turbo": {Tier: 1, MaxTokens: 1024},
			"gpt-4":         {Tier: 2, MaxTokens: 2048},
			"gpt-4-turbo":   {Tier: 3, MaxTokens: 4096},
		},
		Roles: map[string]config.RoleConfig{
			"patient":   {AllowedModels: []string{"gpt-3.5-turbo"}},
			"physician": {AllowedModels: []string{"gpt-3.5-turbo", "gpt-4"}, ClinicalShorthand: true},
			"admin":     {AllowedModels: []string{"gpt-3.5-turbo", "gpt-4", "gpt-4-turbo"}, ClinicalShorthand: true},
		},
		Router: config.RouterConfig{HistorySize: 100, MinTokensSaved: 1, MinSavingsPercent: 1},
	})
}

const complexClinicalQuery = "A 67-year-old male presents with acute substernal chest discomfort, " +
	"elevated troponin, and diffuse st-segment changes suggestive of myocardial injury or pericarditis. " +
	"Please outline the differential diagnosis, how to rule out pulmonary embolism versus acute infarction, " +
	"the recommended workup sequence, and the risk stratification criteria you would weigh when deciding " +
	"between urgent catheterization and conservative management in this comorbid patient."

func TestSelectModelSingleModelRoleShortCircuits(t *testing.T) {
	r, err := New(testStore())
	require.NoError(t, err)

	sel, err := r.SelectModel(complexClinicalQuery, "patient")
	require.NoError(t, err)

	assert.Equal(t, "gpt-3.5-turbo", sel.Decision.SelectedModel)
	assert.Equal(t, "role restriction", sel.Decision.RoutingReason)
}

func TestSelectModelSimpleQueryGetsCheapestTier(t *testing.T) {
	r, err := New(testStore())
	require.NoError(t, err)

	sel, err := r.SelectModel("I have a headache.", "admin")
	require.NoError(t, err)

	assert.Equal(t, "gpt-3.5-turbo", sel.Decision.SelectedModel)
	assert.Less(t, sel.Decision.ComplexityScore, 0.3)
	assert.Contains(t, sel.Decision.RoutingReason, "complexity-based selection")
}

func TestSelectModelComplexQueryGetsMostCapableTier(t *testing.T) {
	r, err := New(testStore())
	require.NoError(t, err)

	sel, err := r.SelectModel(complexClinicalQuery, "admin")
	require.NoError(t, err)

	assert.Equal(t, "gpt-4-turbo", sel.Decision.SelectedModel)
	assert.Greater(t, sel.Decision.ComplexityScore, 0.6)
}

func TestSelectModelClampsToRoleAllowedSet(t *testing.T) {
	r, err := New(testStore())
	require.NoError(t, err)

	// The catalog-wide recommendation is gpt-4-turbo; a physician tops out at gpt-4.
	sel, err := r.SelectModel(complexClinicalQuery, "physician")
	require.NoError(t, err)

	assert.Equal(t, "gpt-4", sel.Decision.SelectedModel)
}

func TestSelectModelUnknownRoleFails(t *testing.T) {
	r, err := New(testStore())
	require.NoError(t, err)

	_, err = r.SelectModel("hello", "nurse")
	assert.Error(t, err)
}

func TestSelectModelNeverEscapesAllowedSet(t *testing.T) {
	r, err := New(testStore())
	require.NoError(t, err)
	cfg := testStore().Get()

	messages := []string{
		"",
		"I have a headache.",
		"What should I know about managing blood pressure and diabetes together?",
		complexClinicalQuery,
	}
	for role := range cfg.Roles {
		allowed := cfg.ModelsByTier(role)
		for _, msg := range messages {
			sel, err := r.SelectModel(msg, role)
			require.NoError(t, err)
			assert.Contains(t, allowed, sel.Decision.SelectedModel,
				"role %s, message %q", role, msg)
		}
	}
}

func TestRecommendationThresholds(t *testing.T) {
	a := NewComplexityAnalyzer([]string{"gpt-3.5-turbo", "gpt-4", "gpt-4-turbo"})

	assert.Equal(t, "gpt-3.5-turbo", a.recommend(0.1))
	assert.Equal(t, "gpt-4", a.recommend(0.45))
	assert.Equal(t, "gpt-4-turbo", a.recommend(0.8))
}

func TestRecommendationWithTwoModelCatalogSkipsMidTier(t *testing.T) {
	a := NewComplexityAnalyzer([]string{"gpt-3.5-turbo", "gpt-4"})

	assert.Equal(t, "gpt-3.5-turbo", a.recommend(0.45))
	assert.Equal(t, "gpt-4", a.recommend(0.8))
}

func TestAnalyzeEmptyTextScoresZero(t *testing.T) {
	a := NewComplexityAnalyzer([]string{"gpt-3.5-turbo", "gpt-4"})

	analysis := a.Analyze("   ")
	assert.Equal(t, 0.0, analysis.OverallScore)
	assert.Equal(t, "gpt-3.5-turbo", analysis.Recommendation)
}

func TestAnalyzeDecimalsAreNotSentenceBoundaries(t *testing.T) {
	assert.Equal(t, 2, countSentences("Temp is 37.5 degrees. Dose was 0.5 mg."))
	assert.Equal(t, 1, countSentences("Patient weighs 70.25 kg"))
	assert.Equal(t, 3, countSentences("One. Two! Three?"))

	a := NewComplexityAnalyzer([]string{"gpt-3.5-turbo", "gpt-4"})
	withDecimals := a.Analyze("My temperature has been 38.5 degrees since yesterday evening and paracetamol is not helping at all.")
	plain := a.Analyze("My temperature has been quite high degrees since yesterday evening and paracetamol is not helping at all.")
	assert.Equal(t, plain.Indicators.SentenceCount, withDecimals.Indicators.SentenceCount)
}

func TestRoutingAnalytics(t *testing.T) {
	r, err := New(testStore())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := r.SelectModel("I have a headache.", "patient")
		require.NoError(t, err)
	}
	_, err = r.SelectModel(complexClinicalQuery, "admin")
	require.NoError(t, err)

	analytics := r.GetRoutingAnalytics(time.Hour)
	assert.Equal(t, 4, analytics.TotalRequests)
	assert.Equal(t, 3, analytics.ModelUsage["gpt-3.5-turbo"].Count)
	assert.Equal(t, 1, analytics.ModelUsage["gpt-4-turbo"].Count)
	assert.InDelta(t, 75.0, analytics.ModelUsage["gpt-3.5-turbo"].Percentage, 0.01)
	assert.Greater(t, analytics.Complexity.Max, analytics.Complexity.Min)
}
