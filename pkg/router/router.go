// Package router selects a model for each request from the role policy and
// the message's complexity, optimizes the outgoing prompt, and keeps a bounded
// history of decisions for analytics.
package router

import (
	"fmt"
	"sync"
	"time"

	"github.com/medgate/medgate/pkg/config"
)

// RoutingDecision records one model selection. Appended whole to the history;
// no partial decision is ever committed.
type RoutingDecision struct {
	SelectedModel       string    `json:"selected_model"`
	RoutingReason       string    `json:"routing_reason"`
	ComplexityScore     float64   `json:"complexity_score"`
	OptimizationApplied bool      `json:"optimization_applied"`
	TokensSaved         int       `json:"tokens_saved"`
	Role                string    `json:"role"`
	Timestamp           time.Time `json:"timestamp"`
}

// Selection bundles the decision with the analyses that produced it.
type Selection struct {
	Decision     RoutingDecision
	Complexity   *ComplexityAnalysis
	Optimization *OptimizationResult
	// Prompt is the text to send to the model: the optimized message when the
	// optimizer recommends it, the original otherwise.
	Prompt string
}

// Router is shared by all concurrent requests; its history is guarded.
type Router struct {
	cfgStore  *config.Store
	analyzer  *ComplexityAnalyzer
	optimizer *PromptOptimizer

	mu      sync.Mutex
	history []RoutingDecision
	next    int
	filled  bool
	maxHist int
}

// New creates a Router from the config store. The history is a ring buffer of
// cfg.Router.HistorySize decisions.
func New(cfgStore *config.Store) (*Router, error) {
	cfg := cfgStore.Get()
	if cfg == nil {
		return nil, fmt.Errorf("router: config not loaded")
	}

	ordered := orderedCatalog(cfg)
	size := cfg.Router.HistorySize
	if size <= 0 {
		size = 1000
	}

	return &Router{
		cfgStore:  cfgStore,
		analyzer:  NewComplexityAnalyzer(ordered),
		optimizer: NewPromptOptimizer(cfg.Router.MinTokensSaved, cfg.Router.MinSavingsPercent),
		history:   make([]RoutingDecision, size),
		maxHist:   size,
	}, nil
}

func orderedCatalog(cfg *config.Config) []string {
	ordered := make([]string, 0, len(cfg.Models))
	for name := range cfg.Models {
		ordered = append(ordered, name)
	}
	// Insertion sort by tier; the catalog is small.
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && cfg.Models[ordered[j]].Tier < cfg.Models[ordered[j-1]].Tier; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}
	return ordered
}

// SelectModel picks a model for the message under the role's policy.
//
// Priority order: a role restricted to a single model short-circuits with
// "role restriction"; otherwise the complexity recommendation applies, clamped
// to the role's allowed set. Optimization never changes which model is
// selected, only the payload sent.
func (r *Router) SelectModel(message, role string) (*Selection, error) {
	cfg := r.cfgStore.Get()
	if cfg == nil {
		return nil, fmt.Errorf("router: config not loaded")
	}

	allowed := cfg.ModelsByTier(role)
	if len(allowed) == 0 {
		return nil, fmt.Errorf("router: unknown role %q", role)
	}

	analysis := r.analyzer.Analyze(message)

	var model, reason string
	if len(allowed) == 1 {
		model = allowed[0]
		reason = "role restriction"
	} else {
		model = clampToAllowed(analysis.Recommendation, allowed, cfg)
		reason = fmt.Sprintf("complexity-based selection (score %.2f)", analysis.OverallScore)
	}

	rolePolicy := cfg.Role(role)
	optimization := r.optimizer.Optimize(message, model, rolePolicy != nil && rolePolicy.ClinicalShorthand)

	prompt := message
	if optimization.ShouldUseOptimized {
		prompt = optimization.OptimizedMessage
	}

	decision := RoutingDecision{
		SelectedModel:       model,
		RoutingReason:       reason,
		ComplexityScore:     analysis.OverallScore,
		OptimizationApplied: optimization.ShouldUseOptimized,
		TokensSaved:         optimization.TokensSaved,
		Role:                role,
		Timestamp:           time.Now(),
	}
	r.record(decision)

	return &Selection{
		Decision:     decision,
		Complexity:   analysis,
		Optimization: optimization,
		Prompt:       prompt,
	}, nil
}

// clampToAllowed maps the catalog-wide recommendation onto the role's allowed
// set: the exact model if allowed, otherwise the most capable allowed model
// not above the recommended tier, otherwise the cheapest allowed.
func clampToAllowed(recommended string, allowed []string, cfg *config.Config) string {
	recommendedTier := cfg.Models[recommended].Tier

	best := ""
	for _, m := range allowed {
		if m == recommended {
			return m
		}
		if cfg.Models[m].Tier <= recommendedTier {
			best = m // allowed is ordered cheapest first
		}
	}
	if best != "" {
		return best
	}
	return allowed[0]
}

func (r *Router) record(d RoutingDecision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[r.next] = d
	r.next = (r.next + 1) % r.maxHist
	if r.next == 0 {
		r.filled = true
	}
}

// snapshot returns decisions within the period, oldest data bounded by the
// ring size.
func (r *Router) snapshot(period time.Duration) []RoutingDecision {
	cutoff := time.Now().Add(-period)

	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.next
	if r.filled {
		n = r.maxHist
	}
	out := make([]RoutingDecision, 0, n)
	for i := 0; i < n; i++ {
		if d := r.history[i]; !d.Timestamp.Before(cutoff) {
			out = append(out, d)
		}
	}
	return out
}
