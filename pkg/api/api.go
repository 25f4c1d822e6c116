package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/medgate/medgate/pkg/cache"
	"github.com/medgate/medgate/pkg/config"
	"github.com/medgate/medgate/pkg/latency"
	"github.com/medgate/medgate/pkg/pipeline"
	"github.com/medgate/medgate/pkg/ratelimit"
	"github.com/medgate/medgate/pkg/router"
)

// API exposes the chat endpoint and the analytics surface.
type API struct {
	cfgStore *config.Store
	pipe     *pipeline.Pipeline
	router   *router.Router
	tracker  *latency.Tracker
	cache    cache.Store
	limiter  ratelimit.Limiter
}

func New(cfgStore *config.Store, pipe *pipeline.Pipeline, rt *router.Router, tracker *latency.Tracker, cacheStore cache.Store, limiter ratelimit.Limiter) *API {
	return &API{
		cfgStore: cfgStore,
		pipe:     pipe,
		router:   rt,
		tracker:  tracker,
		cache:    cacheStore,
		limiter:  limiter,
	}
}

// RegisterRoutes registers all endpoints.
func (api *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/chat", api.handleChat)

	// Analytics
	mux.HandleFunc("/v1/stats/routing", api.handleRoutingStats)
	mux.HandleFunc("/v1/stats/latency", api.handleLatencyStats)
	mux.HandleFunc("/v1/stats/cache", api.handleCacheStats)
	mux.HandleFunc("/v1/stats/recommendations", api.handleRecommendations)
}

// handleChat runs one message through the pipeline.
func (api *API) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req pipeline.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Message == "" || req.Role == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "message and role are required"})
		return
	}

	cfg := api.cfgStore.Get()
	role := cfg.Role(req.Role)
	if role == nil {
		respondJSON(w, http.StatusForbidden, map[string]string{"error": "unknown role"})
		return
	}
	if !api.limiter.Allow(r.Context(), req.Role, req.UserID, role.MaxQueriesPerHour) {
		respondJSON(w, http.StatusTooManyRequests, map[string]string{"error": "query budget exceeded"})
		return
	}

	result, err := api.pipe.Process(r.Context(), req)
	if err != nil {
		var blocked *pipeline.BlockedError
		if errors.As(err, &blocked) {
			respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"blocked":    true,
				"reason":     blocked.Reason,
				"risk_score": blocked.RiskScore,
			})
			return
		}
		var genErr *pipeline.GenerationError
		if errors.As(err, &genErr) {
			respondJSON(w, http.StatusBadGateway, map[string]string{"error": "model generation failed"})
			return
		}
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "request processing failed"})
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (api *API) handleRoutingStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, api.router.GetRoutingAnalytics(parsePeriod(r)))
}

func (api *API) handleLatencyStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	period := parsePeriod(r)
	payload := map[string]interface{}{
		"analytics": api.tracker.Analytics(period),
	}
	if limit := r.URL.Query().Get("slowest"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			payload["slowest_requests"] = api.tracker.SlowestRequests(n, period)
		}
	}
	respondJSON(w, http.StatusOK, payload)
}

func (api *API) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, api.cache.Stats())
}

func (api *API) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"recommendations": api.router.GetModelRecommendations(api.cache.Stats()),
	})
}

// parsePeriod reads ?period=1h style durations, defaulting to 24h.
func parsePeriod(r *http.Request) time.Duration {
	if raw := r.URL.Query().Get("period"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
	}
	return 24 * time.Hour
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
