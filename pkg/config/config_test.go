package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		Models: map[string]ModelConfig{
			"gpt-3.5-turbo": {Tier: 1, MaxTokens: 1024, InputPricePer1K: 0.0005, OutputPricePer1K: 0.0015},
			"gpt-4":         {Tier: 2, MaxTokens: 2048, InputPricePer1K: 0.03, OutputPricePer1K: 0.06},
			"gpt-4-turbo":   {Tier: 3, MaxTokens: 4096, InputPricePer1K: 0.01, OutputPricePer1K: 0.03},
		},
		Roles: map[string]RoleConfig{
			"patient":   {AllowedModels: []string{"gpt-3.5-turbo"}, MaxQueriesPerHour: 50},
			"physician": {AllowedModels: []string{"gpt-4", "gpt-3.5-turbo"}, MaxQueriesPerHour: 200, ClinicalShorthand: true},
			"admin":     {AllowedModels: []string{"gpt-4-turbo", "gpt-3.5-turbo", "gpt-4"}, MaxQueriesPerHour: 500, ClinicalShorthand: true},
		},
		Cache:    CacheConfig{Backend: "memory", MaxEntries: 100},
		Security: SecurityConfig{BlockThreshold: 0.7},
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	require.NoError(t, testConfig().Validate())
}

func TestValidateRejectsUnknownModelReference(t *testing.T) {
	cfg := testConfig()
	cfg.Roles["patient"] = RoleConfig{AllowedModels: []string{"gpt-99"}}
	assert.ErrorContains(t, cfg.Validate(), "unknown model")
}

func TestValidateRejectsEmptyCatalog(t *testing.T) {
	cfg := testConfig()
	cfg.Models = nil
	assert.ErrorContains(t, cfg.Validate(), "catalog is empty")
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.Security.BlockThreshold = 1.5
	assert.ErrorContains(t, cfg.Validate(), "block_threshold")
}

func TestValidateRejectsBadCacheBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.Backend = "etcd"
	assert.ErrorContains(t, cfg.Validate(), "cache backend")
}

func TestRoleLookup(t *testing.T) {
	cfg := testConfig()

	role := cfg.Role("physician")
	require.NotNil(t, role)
	assert.True(t, role.ClinicalShorthand)
	assert.Equal(t, 200, role.MaxQueriesPerHour)

	assert.Nil(t, cfg.Role("nurse"))
}

func TestEligibilityClassIsOrderIndependent(t *testing.T) {
	cfg := testConfig()

	// admin lists its models out of tier order; the class is still sorted.
	assert.Equal(t, "gpt-3.5-turbo,gpt-4,gpt-4-turbo", cfg.EligibilityClass("admin"))
	assert.Equal(t, "gpt-3.5-turbo,gpt-4", cfg.EligibilityClass("physician"))
	assert.Equal(t, "gpt-3.5-turbo", cfg.EligibilityClass("patient"))
	assert.Equal(t, "none", cfg.EligibilityClass("nurse"))
}

func TestModelsByTierOrdersCheapestFirst(t *testing.T) {
	cfg := testConfig()

	assert.Equal(t, []string{"gpt-3.5-turbo", "gpt-4", "gpt-4-turbo"}, cfg.ModelsByTier("admin"))
	assert.Equal(t, []string{"gpt-3.5-turbo", "gpt-4"}, cfg.ModelsByTier("physician"))
	assert.Nil(t, cfg.ModelsByTier("nurse"))
}

func TestStoreGetReturnsCopy(t *testing.T) {
	store := NewStaticStore(testConfig())

	first := store.Get()
	first.Security.BlockThreshold = 0.1

	assert.Equal(t, 0.7, store.Get().Security.BlockThreshold)
}
