package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"time"

	"github.com/google/uuid"
)

// Event kinds.
const (
	KindSecurityBlock = "security_block"
	KindRedaction     = "redaction"
	KindRequest       = "request"
)

// Event is a single audit record. Blocked message content is never stored
// raw: only a hash survives, plus a short excerpt when the text already went
// through redaction, so the audit trail cannot become a second copy of
// sensitive or malicious input.
type Event struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	Timestamp       time.Time `json:"timestamp"`
	UserID          string    `json:"user_id,omitempty"`
	SessionID       string    `json:"session_id,omitempty"`
	Role            string    `json:"role,omitempty"`
	ThreatType      string    `json:"threat_type,omitempty"`
	RiskScore       float64   `json:"risk_score,omitempty"`
	DetectionMethod string    `json:"detection_method,omitempty"`
	ContentHash     string    `json:"content_hash,omitempty"`
	ContentPreview  string    `json:"content_preview,omitempty"`
	EntityTypes     []string  `json:"entity_types,omitempty"`
	Model           string    `json:"model,omitempty"`
	CostUSD         float64   `json:"cost_usd,omitempty"`
	CacheHit        bool      `json:"cache_hit,omitempty"`
	DurationMS      float64   `json:"duration_ms,omitempty"`
}

// Sink records audit events. Implementations must never let a recording
// failure propagate into the request path.
type Sink interface {
	Record(ctx context.Context, event Event)
}

// NewEvent fills in the fields every event carries.
func NewEvent(kind, userID, sessionID string) Event {
	return Event{
		ID:        uuid.New().String(),
		Kind:      kind,
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		SessionID: sessionID,
	}
}

// WithContent attaches a hash of message content. The text itself is never
// stored; correlation happens by hash.
func (e Event) WithContent(text string) Event {
	sum := sha256.Sum256([]byte(text))
	e.ContentHash = hex.EncodeToString(sum[:])
	return e
}

// WithPreview attaches a truncated excerpt so flagged phrases are
// recognizable in review. Callers must only pass text that has already been
// through redaction; unredacted input never belongs in the audit store.
func (e Event) WithPreview(redactedText string) Event {
	runes := []rune(redactedText)
	if len(runes) > 48 {
		runes = runes[:48]
	}
	e.ContentPreview = string(runes)
	return e
}

// LogSink writes events to the process log. Used when Redis is not
// configured and as the fallback sink in tests.
type LogSink struct{}

func (LogSink) Record(_ context.Context, event Event) {
	log.Printf("[AUDIT] kind=%s user=%s threat=%s risk=%.2f model=%s",
		event.Kind, event.UserID, event.ThreatType, event.RiskScore, event.Model)
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Record(context.Context, Event) {}
