package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/medgate/medgate/pkg/api"
	"github.com/medgate/medgate/pkg/audit"
	"github.com/medgate/medgate/pkg/cache"
	"github.com/medgate/medgate/pkg/config"
	"github.com/medgate/medgate/pkg/latency"
	"github.com/medgate/medgate/pkg/llm"
	"github.com/medgate/medgate/pkg/pipeline"
	"github.com/medgate/medgate/pkg/ratelimit"
	"github.com/medgate/medgate/pkg/router"
	"github.com/medgate/medgate/pkg/security"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	// 1. Load Config with hot reload
	cfgStore, err := config.LoadAndWatch()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := cfgStore.Get()
	if cfg == nil {
		log.Fatal("Config could not be read")
	}

	// 2. Initialize Redis (if enabled)
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		fmt.Println("✅ Redis configured:", cfg.Redis.Address)
	}

	// 3. Response cache
	var cacheStore cache.Store
	if cfg.Cache.Backend == "redis" {
		if !cfg.Redis.Enabled {
			log.Fatal("Redis cache backend requires redis to be enabled")
		}
		cacheStore, err = cache.NewRedis(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Cache.TTL)
		if err != nil {
			log.Fatalf("Could not connect to Redis cache: %v", err)
		}
		fmt.Println("✅ Redis response cache enabled")
	} else {
		cacheStore, err = cache.NewMemory(cfg.Cache.MaxEntries, cfg.Cache.TTL)
		if err != nil {
			log.Fatalf("Could not create memory cache: %v", err)
		}
		fmt.Printf("✅ In-memory response cache enabled (%d entries, TTL %s)\n",
			cfg.Cache.MaxEntries, cfg.Cache.TTL)
	}

	// 4. Security components
	redactor := security.NewRedactor(security.NewPatternDetector())
	guardrail := security.NewGuardrailValidator(nil, cfg.Security.BlockThreshold)
	medical := security.NewMedicalSafetyGate()

	// 5. Router and latency tracking
	rt, err := router.New(cfgStore)
	if err != nil {
		log.Fatalf("Failed to create router: %v", err)
	}
	tracker := latency.NewTracker(cfg.Latency.MaxProfiles)

	// 6. Audit sink
	var auditor audit.Sink = audit.LogSink{}
	if cfg.Audit.Enabled && rdb != nil {
		auditor = audit.NewRedisSink(rdb, cfg.Audit.RetentionDays)
		fmt.Printf("✅ Audit trail enabled (retention: %d days)\n", cfg.Audit.RetentionDays)
	}

	// 7. Upstream model client
	generator := llm.NewOpenAIClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Timeout)

	// 8. Per-role rate limiting (distributed if Redis is available)
	var limiter ratelimit.Limiter
	if rdb != nil {
		limiter = ratelimit.NewRedisLimiter(rdb)
	} else {
		limiter = ratelimit.NewLocalLimiter()
	}

	pipe := pipeline.New(cfgStore, redactor, guardrail, medical, rt, cacheStore, generator, tracker, auditor)

	// 9. HTTP server
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	handlers := api.New(cfgStore, pipe, rt, tracker, cacheStore, limiter)
	handlers.RegisterRoutes(mux)

	fmt.Println("\n🚀 MedGate Features Active:")
	fmt.Println("   - Chat Endpoint:   http://localhost" + cfg.Server.Port + "/v1/chat")
	fmt.Println("   - Metrics:         http://localhost" + cfg.Server.Port + "/metrics")
	fmt.Println("   - Health Check:    http://localhost" + cfg.Server.Port + "/health")
	fmt.Println("\n📊 Configuration can be hot-reloaded by editing configs/config.yaml")
	fmt.Printf("\n🎯 Server listening on %s\n", cfg.Server.Port)

	if err := http.ListenAndServe(cfg.Server.Port, mux); err != nil {
		log.Fatal("Server failed:", err)
	}
}
