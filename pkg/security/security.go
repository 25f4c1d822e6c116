// Package security implements the validation chain that gates every request:
// PII redaction, prompt-injection detection, and medical-safety checks.
package security

import (
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// ValidationResult is the outcome of a single validator pass.
type ValidationResult struct {
	Blocked   bool     `json:"blocked"`
	Reason    string   `json:"reason,omitempty"`
	RiskScore float64  `json:"risk_score"`
	Flags     []string `json:"flags,omitempty"`
}

// RedactionResult describes what the redactor found and replaced.
// EntityMappings must never leave the security boundary: not logged in
// plaintext, not sent to the model.
type RedactionResult struct {
	RedactedText     string
	EntitiesFound    int
	EntityTypes      []string
	EntityMappings   map[string]string
	ConfidenceScores map[string]float64
}

// NormalizeForMatching folds the unicode tricks used to smuggle blocked
// phrases past pattern matching: full-width characters, compatibility forms,
// and zero-width insertions. The result is lowercased.
func NormalizeForMatching(text string) string {
	folded := width.Fold.String(norm.NFKC.String(text))

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff': // zero-width runes
			continue
		}
		b.WriteRune(r)
	}

	return strings.ToLower(b.String())
}

func clampRisk(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
