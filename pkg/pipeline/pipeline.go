package pipeline

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/medgate/medgate/pkg/ai"
	"github.com/medgate/medgate/pkg/audit"
	"github.com/medgate/medgate/pkg/cache"
	"github.com/medgate/medgate/pkg/config"
	"github.com/medgate/medgate/pkg/latency"
	"github.com/medgate/medgate/pkg/llm"
	"github.com/medgate/medgate/pkg/router"
	"github.com/medgate/medgate/pkg/security"
)

// Pipeline state labels, in request order.
const (
	StateReceived         = "RECEIVED"
	StateRedacted         = "REDACTED"
	StateGuardrailChecked = "GUARDRAIL_CHECKED"
	StateSafetyChecked    = "SAFETY_CHECKED"
	StateRouted           = "ROUTED"
	StateCacheHit         = "CACHE_HIT"
	StateGenerated        = "GENERATED"
	StateLogged           = "LOGGED"
	StateResponded        = "RESPONDED"
	StateBlocked          = "BLOCKED"
)

// Request is one chat message entering the pipeline.
type Request struct {
	Message   string `json:"message"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
}

// RedactionInfo is the caller-visible summary of the redaction stage.
// Placeholder mappings stay inside the pipeline.
type RedactionInfo struct {
	EntitiesRedacted int      `json:"entities_redacted"`
	EntityTypes      []string `json:"entity_types,omitempty"`
}

// Metadata describes how a response was produced.
type Metadata struct {
	CostUSD          float64            `json:"cost_usd"`
	LatencyMS        float64            `json:"latency_ms"`
	ModelUsed        string             `json:"model_used"`
	RoutingReason    string             `json:"routing_reason"`
	ComplexityScore  float64            `json:"complexity_score"`
	CacheHit         bool               `json:"cache_hit"`
	TokensSaved      int                `json:"tokens_saved"`
	Redaction        RedactionInfo      `json:"redaction_info"`
	SecurityFlags    []string           `json:"security_flags,omitempty"`
	PipelineStages   []string           `json:"pipeline_stages"`
	LatencyBreakdown map[string]float64 `json:"latency_breakdown"`
}

// Result is a completed (non-blocked) pipeline response.
type Result struct {
	RequestID string   `json:"request_id"`
	Response  string   `json:"response"`
	Metadata  Metadata `json:"metadata"`
}

// Pipeline runs each chat request through redaction, security gates,
// routing, cache, generation, and restoration, in that order.
type Pipeline struct {
	cfgStore  *config.Store
	redactor  *security.Redactor
	guardrail *security.GuardrailValidator
	medical   *security.MedicalSafetyGate
	router    *router.Router
	cache     cache.Store
	generator llm.Generator
	tracker   *latency.Tracker
	auditor   audit.Sink
}

func New(
	cfgStore *config.Store,
	redactor *security.Redactor,
	guardrail *security.GuardrailValidator,
	medical *security.MedicalSafetyGate,
	rt *router.Router,
	cacheStore cache.Store,
	generator llm.Generator,
	tracker *latency.Tracker,
	auditor audit.Sink,
) *Pipeline {
	if auditor == nil {
		auditor = audit.NopSink{}
	}
	return &Pipeline{
		cfgStore:  cfgStore,
		redactor:  redactor,
		guardrail: guardrail,
		medical:   medical,
		router:    rt,
		cache:     cacheStore,
		generator: generator,
		tracker:   tracker,
		auditor:   auditor,
	}
}

// Process runs one request through the full pipeline.
//
// Redaction and guardrail detector failures fail open: the request
// continues with a logged warning. Medical safety failures fail closed.
// A blocked request short-circuits before any model or cache traffic;
// only the audit trail sees it.
func (p *Pipeline) Process(ctx context.Context, req Request) (*Result, error) {
	cfg := p.cfgStore.Get()
	if cfg.Role(req.Role) == nil {
		return nil, ErrUnknownRole
	}

	requestID := uuid.New().String()
	p.tracker.Start(requestID)
	stages := []string{StateReceived}

	// Redaction. On detector failure the original text goes forward; the
	// guardrail and safety gates still see it.
	done := p.tracker.Measure(requestID, "redaction")
	start := time.Now()
	redaction, err := p.redactor.Redact(req.Message, req.UserID, req.SessionID)
	stageDuration.WithLabelValues("redaction").Observe(time.Since(start).Seconds())
	redactionOK := err == nil
	if err != nil {
		log.Printf("[PIPELINE] redaction failed, continuing unredacted: %v", err)
		redaction = &security.RedactionResult{RedactedText: req.Message}
	}
	done(map[string]string{"entities": strconv.Itoa(redaction.EntitiesFound)})
	stages = append(stages, StateRedacted)

	redactedText := redaction.RedactedText
	var securityFlags []string

	// Guardrail gate.
	done = p.tracker.Measure(requestID, "guardrail")
	start = time.Now()
	guardResult, err := p.guardrail.Validate(redactedText, req.UserID)
	stageDuration.WithLabelValues("guardrail").Observe(time.Since(start).Seconds())
	done(nil)
	if err != nil {
		log.Printf("[PIPELINE] guardrail check failed, continuing: %v", err)
		guardResult = &security.ValidationResult{}
	}
	if guardResult.Blocked {
		return nil, p.block(requestID, req, redactedText, redactionOK, guardResult, "guardrail")
	}
	securityFlags = append(securityFlags, guardResult.Flags...)
	stages = append(stages, StateGuardrailChecked)

	// Medical safety gate. Fails closed: an unavailable gate blocks.
	done = p.tracker.Measure(requestID, "medical_safety")
	start = time.Now()
	safetyResult, err := p.medical.Validate(redactedText)
	stageDuration.WithLabelValues("medical_safety").Observe(time.Since(start).Seconds())
	done(nil)
	if err != nil {
		log.Printf("[PIPELINE] medical safety check failed, blocking: %v", err)
		safetyResult = &security.ValidationResult{Blocked: true, Reason: "safety_check_unavailable", RiskScore: 1}
	}
	if safetyResult.Blocked {
		return nil, p.block(requestID, req, redactedText, redactionOK, safetyResult, "medical_safety")
	}
	securityFlags = append(securityFlags, safetyResult.Flags...)
	stages = append(stages, StateSafetyChecked)

	// Routing.
	done = p.tracker.Measure(requestID, "routing")
	start = time.Now()
	selection, err := p.router.SelectModel(redactedText, req.Role)
	stageDuration.WithLabelValues("routing").Observe(time.Since(start).Seconds())
	done(nil)
	if err != nil {
		requestsTotal.WithLabelValues("failed").Inc()
		p.tracker.Finish(requestID, req.Role, "", false, false)
		return nil, err
	}
	stages = append(stages, StateRouted)
	model := selection.Decision.SelectedModel

	// Cache lookup. The key covers the redacted text plus the role's model
	// eligibility, so roles with different catalogs never share entries.
	cacheKey := cache.Key(redactedText, cfg.EligibilityClass(req.Role))
	done = p.tracker.Measure(requestID, "cache_lookup")
	start = time.Now()
	entry, hit := p.cache.Get(ctx, cacheKey)
	stageDuration.WithLabelValues("cache_lookup").Observe(time.Since(start).Seconds())
	done(map[string]string{"hit": strconv.FormatBool(hit)})

	var responseText string
	var costUSD float64

	if hit {
		cacheHits.Inc()
		responseText = entry.Response
		model = entry.Model
		stages = append(stages, StateCacheHit)
	} else {
		cacheMisses.Inc()

		modelCfg := cfg.Models[model]
		done = p.tracker.Measure(requestID, "generation")
		start = time.Now()
		gen, err := p.generator.Generate(ctx, selection.Prompt, model, modelCfg.MaxTokens, modelCfg.Temperature)
		stageDuration.WithLabelValues("generation").Observe(time.Since(start).Seconds())
		done(nil)
		if err != nil {
			requestsTotal.WithLabelValues("failed").Inc()
			p.tracker.Finish(requestID, req.Role, model, false, selection.Decision.OptimizationApplied)
			return nil, &GenerationError{Model: model, Err: err}
		}

		responseText = gen.Text
		costUSD = ai.EstimateCost(model, gen.InputTokens, gen.OutputTokens, cfg.Models)
		requestTokenHistogram.Observe(float64(gen.InputTokens + gen.OutputTokens))
		stages = append(stages, StateGenerated)

		if err := p.cache.Put(ctx, cache.Entry{
			Key:        cacheKey,
			Response:   responseText,
			Model:      model,
			CreatedAt:  time.Now(),
			UserRole:   req.Role,
			CostUSD:    costUSD,
			TokenCount: gen.InputTokens + gen.OutputTokens,
		}); err != nil {
			log.Printf("[PIPELINE] cache write failed: %v", err)
		}
	}

	// Restore redacted entities and attach safety guidance.
	done = p.tracker.Measure(requestID, "restore")
	start = time.Now()
	responseText = p.redactor.Restore(responseText, redaction.EntityMappings)
	responseText = p.medical.EnhanceResponse(responseText, req.Message)
	stageDuration.WithLabelValues("restore").Observe(time.Since(start).Seconds())
	done(nil)

	profile := p.tracker.Finish(requestID, req.Role, model, hit, selection.Decision.OptimizationApplied)
	p.recordRequestAudit(requestID, req, redaction, model, costUSD, hit, profile.TotalDurationMS)
	stages = append(stages, StateLogged, StateResponded)
	requestsTotal.WithLabelValues("completed").Inc()

	return &Result{
		RequestID: requestID,
		Response:  responseText,
		Metadata: Metadata{
			CostUSD:         costUSD,
			LatencyMS:       profile.TotalDurationMS,
			ModelUsed:       model,
			RoutingReason:   selection.Decision.RoutingReason,
			ComplexityScore: selection.Decision.ComplexityScore,
			CacheHit:        hit,
			TokensSaved:     selection.Decision.TokensSaved,
			Redaction: RedactionInfo{
				EntitiesRedacted: redaction.EntitiesFound,
				EntityTypes:      redaction.EntityTypes,
			},
			SecurityFlags:    securityFlags,
			PipelineStages:   stages,
			LatencyBreakdown: profile.Breakdown(),
		},
	}, nil
}

// block finalizes a gated request: metrics, latency profile, audit event,
// and the caller-facing BlockedError. No model or cache traffic happens.
// The audit excerpt is only attached when redaction succeeded; if the
// redactor failed open the text may still hold raw identifiers and only
// its hash is recorded.
func (p *Pipeline) block(requestID string, req Request, redactedText string, redactionOK bool, result *security.ValidationResult, gate string) error {
	requestsTotal.WithLabelValues("blocked").Inc()
	blockedTotal.WithLabelValues(result.Reason).Inc()
	p.tracker.Finish(requestID, req.Role, "", false, false)

	event := audit.NewEvent(audit.KindSecurityBlock, req.UserID, req.SessionID).
		WithContent(redactedText)
	if redactionOK {
		event = event.WithPreview(redactedText)
	}
	event.Role = req.Role
	event.ThreatType = result.Reason
	event.RiskScore = result.RiskScore
	event.DetectionMethod = gate

	go func() {
		auditCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		p.auditor.Record(auditCtx, event)
	}()

	return &BlockedError{
		Reason:    result.Reason,
		RiskScore: result.RiskScore,
		Flags:     result.Flags,
	}
}

// recordRequestAudit logs a completed request asynchronously.
func (p *Pipeline) recordRequestAudit(requestID string, req Request, redaction *security.RedactionResult, model string, costUSD float64, cacheHit bool, durationMS float64) {
	event := audit.NewEvent(audit.KindRequest, req.UserID, req.SessionID)
	event.ID = requestID
	event.Role = req.Role
	event.Model = model
	event.CostUSD = costUSD
	event.CacheHit = cacheHit
	event.DurationMS = durationMS
	event.EntityTypes = redaction.EntityTypes

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		p.auditor.Record(ctx, event)
	}()
}

