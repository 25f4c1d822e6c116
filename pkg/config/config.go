package config

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all the configuration for the gateway.
// The structure tags (mapstructure) tell Viper which YAML field maps to which Go struct field.
type Config struct {
	Server   ServerConfig           `mapstructure:"server"`
	Redis    RedisConfig            `mapstructure:"redis"`
	Models   map[string]ModelConfig `mapstructure:"models"`
	Roles    map[string]RoleConfig  `mapstructure:"roles"`
	Cache    CacheConfig            `mapstructure:"cache"`
	Security SecurityConfig         `mapstructure:"security"`
	Router   RouterConfig           `mapstructure:"router"`
	Latency  LatencyConfig          `mapstructure:"latency"`
	Audit    AuditConfig            `mapstructure:"audit"`
	LLM      LLMConfig              `mapstructure:"llm"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

// ModelConfig describes one entry in the model catalog. Tier orders models from
// cheapest (lowest) to most capable (highest) and drives complexity routing.
type ModelConfig struct {
	Tier             int     `mapstructure:"tier"`
	MaxTokens        int     `mapstructure:"max_tokens"`
	Temperature      float64 `mapstructure:"temperature"`
	InputPricePer1K  float64 `mapstructure:"input_price_per_1k"`
	OutputPricePer1K float64 `mapstructure:"output_price_per_1k"`
}

// RoleConfig is the static role policy supplied at startup. The request path
// treats it as read-only.
type RoleConfig struct {
	AllowedModels     []string `mapstructure:"allowed_models"`
	MaxQueriesPerHour int      `mapstructure:"max_queries_per_hour"`
	ClinicalShorthand bool     `mapstructure:"clinical_shorthand"`
}

type CacheConfig struct {
	Backend    string        `mapstructure:"backend"` // "memory" or "redis"
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max_entries"`
}

type SecurityConfig struct {
	BlockThreshold float64 `mapstructure:"block_threshold"`
}

type RouterConfig struct {
	HistorySize       int     `mapstructure:"history_size"`
	MinTokensSaved    int     `mapstructure:"min_tokens_saved"`
	MinSavingsPercent float64 `mapstructure:"min_savings_percent"`
}

type LatencyConfig struct {
	MaxProfiles int `mapstructure:"max_profiles"`
}

type AuditConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	RetentionDays int  `mapstructure:"retention_days"`
}

type LLMConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Store wraps configuration with thread-safe access and hot-reload updates.
type Store struct {
	mu  sync.RWMutex
	cfg *Config
}

func (s *Store) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg == nil {
		return nil
	}
	cpy := *s.cfg
	return &cpy
}

func (s *Store) set(cfg *Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// NewStaticStore wraps an already-built config. Used by tests and embedders that
// manage configuration themselves.
func NewStaticStore(cfg *Config) *Store {
	s := &Store{}
	s.set(cfg)
	return s
}

// LoadAndWatch loads the config and watches for on-disk changes.
// A reload that fails validation keeps the previous config in place.
func LoadAndWatch() (*Store, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.AddConfigPath("./configs")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	store := &Store{}
	if err := refresh(v, store); err != nil {
		return nil, err
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		if err := refresh(v, store); err != nil {
			log.Printf("[CONFIG] reload failed: %v", err)
		} else {
			log.Printf("[CONFIG] reloaded from %s", e.Name)
		}
	})

	return store, nil
}

// Load loads once and does not watch.
func Load() (*Config, error) {
	store, err := LoadAndWatch()
	if err != nil {
		return nil, err
	}
	return store.Get(), nil
}

func refresh(v *viper.Viper, store *Store) error {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	store.set(&cfg)
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server::port", ":8080")
	v.SetDefault("cache::backend", "memory")
	v.SetDefault("cache::ttl", "24h")
	v.SetDefault("cache::max_entries", 1000)
	v.SetDefault("security::block_threshold", 0.7)
	v.SetDefault("router::history_size", 1000)
	v.SetDefault("router::min_tokens_saved", 3)
	v.SetDefault("router::min_savings_percent", 5.0)
	v.SetDefault("latency::max_profiles", 1000)
	v.SetDefault("audit::retention_days", 30)
	v.SetDefault("llm::timeout", "60s")
}

// Validate checks the policy invariants the request path relies on. It runs at
// startup and on every hot reload, never per request.
func (c *Config) Validate() error {
	if len(c.Models) == 0 {
		return fmt.Errorf("config: model catalog is empty")
	}
	if len(c.Roles) == 0 {
		return fmt.Errorf("config: no roles configured")
	}
	for name, role := range c.Roles {
		if len(role.AllowedModels) == 0 {
			return fmt.Errorf("config: role %q has no allowed models", name)
		}
		for _, m := range role.AllowedModels {
			if _, ok := c.Models[m]; !ok {
				return fmt.Errorf("config: role %q references unknown model %q", name, m)
			}
		}
	}
	if c.Security.BlockThreshold < 0 || c.Security.BlockThreshold > 1 {
		return fmt.Errorf("config: security block_threshold %.2f outside [0,1]", c.Security.BlockThreshold)
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("config: cache max_entries must be positive")
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		return fmt.Errorf("config: unknown cache backend %q", c.Cache.Backend)
	}
	return nil
}

// Role returns the policy for a role name, or nil if the role is unknown.
func (c *Config) Role(name string) *RoleConfig {
	role, ok := c.Roles[name]
	if !ok {
		return nil
	}
	return &role
}

// EligibilityClass is a deterministic identifier for a role's allowed-model set.
// Roles whose sets are identical share a class (and may share cache entries).
func (c *Config) EligibilityClass(role string) string {
	rc, ok := c.Roles[role]
	if !ok {
		return "none"
	}
	models := make([]string, len(rc.AllowedModels))
	copy(models, rc.AllowedModels)
	sort.Strings(models)
	return strings.Join(models, ",")
}

// ModelsByTier returns a role's allowed models ordered cheapest first.
func (c *Config) ModelsByTier(role string) []string {
	rc, ok := c.Roles[role]
	if !ok {
		return nil
	}
	models := make([]string, len(rc.AllowedModels))
	copy(models, rc.AllowedModels)
	sort.Slice(models, func(i, j int) bool {
		return c.Models[models[i]].Tier < c.Models[models[j]].Tier
	})
	return models
}
