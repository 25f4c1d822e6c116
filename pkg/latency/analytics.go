package latency

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// OverallStats summarize total request latency over a period.
type OverallStats struct {
	AvgMS    float64 `json:"avg_ms"`
	MedianMS float64 `json:"median_ms"`
	P95MS    float64 `json:"p95_ms"`
	P99MS    float64 `json:"p99_ms"`
	MinMS    float64 `json:"min_ms"`
	MaxMS    float64 `json:"max_ms"`
}

// CachePerformance compares cached against uncached request latency.
type CachePerformance struct {
	HitRate       float64 `json:"hit_rate"`
	AvgHitMS      float64 `json:"avg_hit_ms"`
	AvgMissMS     float64 `json:"avg_miss_ms"`
	SpeedupFactor float64 `json:"speedup_factor"`
}

// ModelStats summarize latency for one model.
type ModelStats struct {
	Count      int     `json:"count"`
	AvgMS      float64 `json:"avg_ms"`
	P95MS      float64 `json:"p95_ms"`
	BaselineMS float64 `json:"baseline_ms,omitempty"`
}

// StageStats summarize one pipeline stage against its baseline.
type StageStats struct {
	AvgMS      float64 `json:"avg_ms"`
	P95MS      float64 `json:"p95_ms"`
	MaxMS      float64 `json:"max_ms"`
	Samples    int     `json:"samples"`
	BaselineMS float64 `json:"baseline_ms"`
	Verdict    string  `json:"verdict"` // "good" or "slow"
}

// Score is the 0-100 performance score with letter grade.
type Score struct {
	Value float64 `json:"value"`
	Grade string  `json:"grade"`
}

// Analytics is the aggregated latency report for a period.
type Analytics struct {
	Period          time.Duration         `json:"period"`
	TotalRequests   int                   `json:"total_requests"`
	Overall         OverallStats          `json:"overall"`
	Cache           CachePerformance      `json:"cache"`
	PerModel        map[string]ModelStats `json:"per_model"`
	StageBreakdown  map[string]StageStats `json:"stage_breakdown"`
	Issues          []string              `json:"issues"`
	Recommendations []string              `json:"recommendations"`
	Performance     Score                 `json:"performance"`
}

// Analytics aggregates profiles recorded within the period.
func (t *Tracker) Analytics(period time.Duration) *Analytics {
	profiles := t.snapshot(period)

	a := &Analytics{
		Period:         period,
		TotalRequests:  len(profiles),
		PerModel:       make(map[string]ModelStats),
		StageBreakdown: make(map[string]StageStats),
	}
	if len(profiles) == 0 {
		a.Performance = Score{Grade: "N/A"}
		return a
	}

	totals := make([]float64, len(profiles))
	var hitLatencies, missLatencies []float64
	byModel := make(map[string][]float64)
	byStage := make(map[string][]float64)

	for i, p := range profiles {
		totals[i] = p.TotalDurationMS
		if p.CacheHit {
			hitLatencies = append(hitLatencies, p.TotalDurationMS)
		} else {
			missLatencies = append(missLatencies, p.TotalDurationMS)
		}
		byModel[p.Model] = append(byModel[p.Model], p.TotalDurationMS)
		for _, s := range p.Stages {
			byStage[s.Name] = append(byStage[s.Name], s.DurationMS)
		}
	}

	sort.Float64s(totals)
	a.Overall = OverallStats{
		AvgMS:    mean(totals),
		MedianMS: percentile(totals, 50),
		P95MS:    percentile(totals, 95),
		P99MS:    percentile(totals, 99),
		MinMS:    totals[0],
		MaxMS:    totals[len(totals)-1],
	}

	a.Cache = CachePerformance{
		HitRate:   float64(len(hitLatencies)) / float64(len(profiles)),
		AvgHitMS:  mean(hitLatencies),
		AvgMissMS: mean(missLatencies),
	}
	if len(hitLatencies) > 0 && len(missLatencies) > 0 && a.Cache.AvgHitMS > 0 {
		a.Cache.SpeedupFactor = a.Cache.AvgMissMS / a.Cache.AvgHitMS
	}

	for model, latencies := range byModel {
		sort.Float64s(latencies)
		a.PerModel[model] = ModelStats{
			Count:      len(latencies),
			AvgMS:      mean(latencies),
			P95MS:      percentile(latencies, 95),
			BaselineMS: t.modelBaselines[model],
		}
	}

	for stage, durations := range byStage {
		sort.Float64s(durations)
		baseline := t.stageBaselines[stage]
		verdict := "good"
		if baseline > 0 && mean(durations) > baseline {
			verdict = "slow"
		}
		a.StageBreakdown[stage] = StageStats{
			AvgMS:      mean(durations),
			P95MS:      percentile(durations, 95),
			MaxMS:      durations[len(durations)-1],
			Samples:    len(durations),
			BaselineMS: baseline,
			Verdict:    verdict,
		}
	}

	a.Issues, a.Recommendations = t.assess(a, byStage)
	a.Performance = t.score(a, totals)
	return a
}

// assess flags baseline violations and derives advisory recommendations.
func (t *Tracker) assess(a *Analytics, byStage map[string][]float64) ([]string, []string) {
	var issues, recs []string

	if a.Overall.AvgMS > t.totalBaseline*1.5 {
		issues = append(issues, fmt.Sprintf(
			"average latency %.0fms is %.1fx the %.0fms baseline",
			a.Overall.AvgMS, a.Overall.AvgMS/t.totalBaseline, t.totalBaseline))
		recs = append(recs, "investigate slow pipeline stages; consider caching or a cheaper model tier")
	}

	if a.TotalRequests >= 10 && a.Cache.HitRate < 0.2 {
		issues = append(issues, fmt.Sprintf("cache hit rate is only %.0f%%", a.Cache.HitRate*100))
		recs = append(recs, "review cache TTL and key normalization to raise the hit rate")
	}

	for stage, durations := range byStage {
		baseline := t.stageBaselines[stage]
		if baseline > 0 && mean(durations) > baseline*2 {
			issues = append(issues, fmt.Sprintf(
				"stage %q averaging %.0fms against a %.0fms baseline", stage, mean(durations), baseline))
			if stage == "generation" {
				recs = append(recs, "generation dominates latency; consider routing more traffic to the cheaper tier")
			}
		}
	}

	return issues, recs
}

// score computes the 0-100 performance score: penalties for latency above
// baseline and for high variability, a bonus for cache hits.
func (t *Tracker) score(a *Analytics, totals []float64) Score {
	score := 100.0

	if a.Overall.AvgMS > t.totalBaseline {
		penalty := (a.Overall.AvgMS - t.totalBaseline) / t.totalBaseline * 30
		score -= math.Min(50, penalty)
	}

	score += a.Cache.HitRate * 10

	if len(totals) > 1 {
		cv := stddev(totals) / mean(totals)
		if cv > 0.5 {
			score -= math.Min(20, cv*20)
		}
	}

	score = math.Max(0, math.Min(100, score))

	grade := "F"
	switch {
	case score >= 90:
		grade = "A"
	case score >= 80:
		grade = "B"
	case score >= 70:
		grade = "C"
	case score >= 60:
		grade = "D"
	}
	return Score{Value: score, Grade: grade}
}

// SlowestRequests returns the slowest profiles in the period, most recent
// period first, for debugging.
func (t *Tracker) SlowestRequests(limit int, period time.Duration) []RequestProfile {
	profiles := t.snapshot(period)
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].TotalDurationMS > profiles[j].TotalDurationMS
	})
	if len(profiles) > limit {
		profiles = profiles[:limit]
	}
	return profiles
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// percentile expects sorted input.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func stddev(v []float64) float64 {
	if len(v) < 2 {
		return 0
	}
	m := mean(v)
	sum := 0.0
	for _, x := range v {
		sum += (x - m) * (x - m)
	}
	return math.Sqrt(sum / float64(len(v)-1))
}
