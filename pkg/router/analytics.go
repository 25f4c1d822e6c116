package router

import (
	"fmt"
	"time"

	"github.com/medgate/medgate/pkg/cache"
)

// ModelUsage is usage accounting for a single model.
type ModelUsage struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// ComplexityStats summarize complexity scores over a period.
type ComplexityStats struct {
	Avg float64 `json:"avg"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// OptimizationStats summarize optimizer effectiveness over a period.
type OptimizationStats struct {
	Applied          int     `json:"applied"`
	TotalTokensSaved int     `json:"total_tokens_saved"`
	Rate             float64 `json:"rate"`
}

// Analytics aggregates the routing history for a period.
type Analytics struct {
	Period        time.Duration         `json:"period"`
	TotalRequests int                   `json:"total_requests"`
	ModelUsage    map[string]ModelUsage `json:"model_usage"`
	Complexity    ComplexityStats       `json:"complexity"`
	Optimization  OptimizationStats     `json:"optimization"`
}

// GetRoutingAnalytics aggregates decisions made within the period.
func (r *Router) GetRoutingAnalytics(period time.Duration) *Analytics {
	decisions := r.snapshot(period)

	a := &Analytics{
		Period:        period,
		TotalRequests: len(decisions),
		ModelUsage:    make(map[string]ModelUsage),
	}
	if len(decisions) == 0 {
		return a
	}

	counts := make(map[string]int)
	sum := 0.0
	a.Complexity.Min = decisions[0].ComplexityScore
	a.Complexity.Max = decisions[0].ComplexityScore

	for _, d := range decisions {
		counts[d.SelectedModel]++
		sum += d.ComplexityScore
		if d.ComplexityScore < a.Complexity.Min {
			a.Complexity.Min = d.ComplexityScore
		}
		if d.ComplexityScore > a.Complexity.Max {
			a.Complexity.Max = d.ComplexityScore
		}
		if d.OptimizationApplied {
			a.Optimization.Applied++
			a.Optimization.TotalTokensSaved += d.TokensSaved
		}
	}

	a.Complexity.Avg = sum / float64(len(decisions))
	a.Optimization.Rate = float64(a.Optimization.Applied) / float64(len(decisions))
	for model, count := range counts {
		a.ModelUsage[model] = ModelUsage{
			Count:      count,
			Percentage: float64(count) / float64(len(decisions)) * 100,
		}
	}
	return a
}

// GetModelRecommendations derives qualitative suggestions from routing and
// cache statistics. Advisory output only; nothing here is enforced.
func (r *Router) GetModelRecommendations(cacheStats cache.Stats) []string {
	var recs []string

	analytics := r.GetRoutingAnalytics(24 * time.Hour)
	if analytics.TotalRequests == 0 {
		return []string{"no routing history yet; recommendations need traffic"}
	}

	if cacheStats.Hits+cacheStats.Misses > 20 && cacheStats.HitRate < 0.2 {
		recs = append(recs, fmt.Sprintf(
			"cache hit rate is low (%.0f%%); consider a longer TTL or reviewing key normalization",
			cacheStats.HitRate*100))
	}

	if top, usage := dominantModel(analytics.ModelUsage); usage > 90 {
		recs = append(recs, fmt.Sprintf(
			"%s serves %.0f%% of traffic; verify the complexity thresholds still differentiate queries", top, usage))
	}

	if analytics.Optimization.Rate < 0.1 && analytics.TotalRequests > 20 {
		recs = append(recs, "prompt optimization rarely applies; thresholds may be too strict for this traffic")
	} else if analytics.Optimization.TotalTokensSaved > 0 {
		recs = append(recs, fmt.Sprintf(
			"prompt optimization saved %d tokens over the period", analytics.Optimization.TotalTokensSaved))
	}

	if analytics.Complexity.Avg > 0.6 {
		recs = append(recs, "average complexity is high; expect most traffic on the capable tier")
	}

	if len(recs) == 0 {
		recs = append(recs, "routing and caching look healthy; no changes recommended")
	}
	return recs
}

func dominantModel(usage map[string]ModelUsage) (string, float64) {
	top, pct := "", 0.0
	for model, u := range usage {
		if u.Percentage > pct {
			top, pct = model, u.Percentage
		}
	}
	return top, pct
}
