// Package latency records per-request stage durations across the chat
// pipeline and aggregates them into performance analytics.
package latency

import (
	"sync"
	"time"
)

// StageMeasurement is one timed pipeline stage within a request.
type StageMeasurement struct {
	Name       string            `json:"name"`
	DurationMS float64           `json:"duration_ms"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// RequestProfile is the complete latency record for one request, finalized at
// request end and retained for the analytics window.
type RequestProfile struct {
	RequestID           string             `json:"request_id"`
	Role                string             `json:"role"`
	Model               string             `json:"model"`
	TotalDurationMS     float64            `json:"total_duration_ms"`
	Stages              []StageMeasurement `json:"stages"`
	CacheHit            bool               `json:"cache_hit"`
	OptimizationApplied bool               `json:"optimization_applied"`
	Timestamp           time.Time          `json:"timestamp"`
}

// StageDuration returns the duration of a named stage, or zero if the stage
// never ran.
func (p *RequestProfile) StageDuration(name string) float64 {
	for _, s := range p.Stages {
		if s.Name == name {
			return s.DurationMS
		}
	}
	return 0
}

// Breakdown returns per-stage durations in milliseconds, keyed by stage
// name. This is the map callers see as latency_breakdown.
func (p *RequestProfile) Breakdown() map[string]float64 {
	out := make(map[string]float64, len(p.Stages))
	for _, s := range p.Stages {
		out[s.Name] = s.DurationMS
	}
	return out
}

// BreakdownPercent returns the per-stage share of total time, in percent.
func (p *RequestProfile) BreakdownPercent() map[string]float64 {
	if p.TotalDurationMS == 0 {
		return map[string]float64{}
	}
	out := make(map[string]float64, len(p.Stages))
	for _, s := range p.Stages {
		out[s.Name] = s.DurationMS / p.TotalDurationMS * 100
	}
	return out
}

type activeRequest struct {
	start  time.Time
	stages []StageMeasurement
}

// Tracker is shared by all concurrent requests; both the active-request map
// and the profile ring are guarded.
type Tracker struct {
	mu       sync.Mutex
	active   map[string]*activeRequest
	profiles []RequestProfile
	next     int
	filled   bool
	max      int
	now      func() time.Time

	// Expected stage durations in milliseconds, used to grade observed
	// behavior. Tunables, not contracts.
	stageBaselines map[string]float64
	totalBaseline  float64
	modelBaselines map[string]float64
}

// NewTracker creates a tracker retaining at most maxProfiles finished
// profiles; older ones are overwritten.
func NewTracker(maxProfiles int) *Tracker {
	if maxProfiles <= 0 {
		maxProfiles = 1000
	}
	return &Tracker{
		active:   make(map[string]*activeRequest),
		profiles: make([]RequestProfile, maxProfiles),
		max:      maxProfiles,
		now:      time.Now,
		stageBaselines: map[string]float64{
			"redaction":      100,
			"guardrail":      150,
			"medical_safety": 50,
			"routing":        20,
			"cache_lookup":   5,
			"generation":     2000,
			"restore":        30,
			"audit":          20,
		},
		totalBaseline: 2500,
		modelBaselines: map[string]float64{
			"gpt-3.5-turbo": 2000,
			"gpt-4":         4000,
			"gpt-4-turbo":   2800,
		},
	}
}

// Start begins tracking a request.
func (t *Tracker) Start(requestID string) {
	t.mu.Lock()
	t.active[requestID] = &activeRequest{start: t.now()}
	t.mu.Unlock()
}

// Measure times a stage. It returns a finish func to call when the stage
// exits; call it from a defer so the duration is recorded on every path.
func (t *Tracker) Measure(requestID, stage string) func(metadata map[string]string) {
	start := t.now()
	return func(metadata map[string]string) {
		duration := float64(t.now().Sub(start).Microseconds()) / 1000.0

		t.mu.Lock()
		defer t.mu.Unlock()
		req, ok := t.active[requestID]
		if !ok {
			return // request was never started or already finished
		}
		req.stages = append(req.stages, StageMeasurement{
			Name:       stage,
			DurationMS: duration,
			Metadata:   metadata,
		})
	}
}

// Finish finalizes a request's profile and stores it. Returns the profile.
func (t *Tracker) Finish(requestID, role, model string, cacheHit, optimizationApplied bool) *RequestProfile {
	t.mu.Lock()
	defer t.mu.Unlock()

	req, ok := t.active[requestID]
	if !ok {
		return nil
	}
	delete(t.active, requestID)

	profile := RequestProfile{
		RequestID:           requestID,
		Role:                role,
		Model:               model,
		TotalDurationMS:     float64(t.now().Sub(req.start).Microseconds()) / 1000.0,
		Stages:              req.stages,
		CacheHit:            cacheHit,
		OptimizationApplied: optimizationApplied,
		Timestamp:           t.now(),
	}

	t.profiles[t.next] = profile
	t.next = (t.next + 1) % t.max
	if t.next == 0 {
		t.filled = true
	}

	return &profile
}

// snapshot copies out profiles within the period.
func (t *Tracker) snapshot(period time.Duration) []RequestProfile {
	cutoff := t.now().Add(-period)

	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.next
	if t.filled {
		n = t.max
	}
	out := make([]RequestProfile, 0, n)
	for i := 0; i < n; i++ {
		if p := t.profiles[i]; !p.Timestamp.Before(cutoff) {
			out = append(out, p)
		}
	}
	return out
}
