package security

import (
	"fmt"
	"regexp"
	"strings"
)

// InjectionClassifier is an optional ML signal layered on top of pattern
// matching. Score returns a confidence in [0,1] that the text is an attack.
type InjectionClassifier interface {
	Score(text string) (float64, error)
}

// GuardrailValidator detects prompt-injection and jailbreak attempts in a
// single pass: compiled patterns plus an optional classifier, over normalized
// input so full-width and zero-width obfuscation does not slip through.
type GuardrailValidator struct {
	patterns       []*regexp.Regexp
	patternNames   []string
	roleplay       []*regexp.Regexp
	highRiskTerms  []string
	classifier     InjectionClassifier
	blockThreshold float64
}

// NewGuardrailValidator builds the validator with the default pattern set.
// classifier may be nil. blockThreshold is the risk score at and above which
// the request is blocked.
func NewGuardrailValidator(classifier InjectionClassifier, blockThreshold float64) *GuardrailValidator {
	injectionPatterns := []string{
		`ignore\s+(all\s+)?previous\s+instructions?`,
		`forget\s+(everything|all)\s+(above|before)`,
		`disregard\s+(your\s+)?(programming|instructions|guidelines)`,
		`override\s+(your\s+)?(instructions|safety|protocols)`,
		`(act|pretend|roleplay)\s+as\s+(if\s+)?you\s+(are|were)`,
		`simulate\s+being\s+`,
		`you\s+are\s+now\s+(in\s+)?(\w+\s+)?mode`,
		`(dan|developer|unrestricted|jailbreak)\s+mode`,
		`break\s+free\s+from`,
		`remove\s+(all\s+)?(restrictions|limitations)`,
		`bypass\s+(your\s+)?(guidelines|safety|rules)`,
		`no\s+longer\s+bound\s+by`,
		`without\s+(any\s+)?(restrictions|limitations)`,
		`tell\s+me\s+your\s+system\s+prompt`,
		`reveal\s+(your\s+)?(system\s+prompt|instructions)`,
	}

	v := &GuardrailValidator{
		patternNames:   injectionPatterns,
		classifier:     classifier,
		blockThreshold: blockThreshold,
		highRiskTerms: []string{
			"jailbreak", "dan mode", "developer mode", "unrestricted",
			"break free", "ignore safety", "safety unbinding",
			"restriction bypass", "disclaimer bypass",
		},
	}
	for _, p := range injectionPatterns {
		v.patterns = append(v.patterns, regexp.MustCompile(p))
	}
	for _, p := range []string{
		`pretend\s+you\s+are\s+a\s+(doctor|physician|pharmacist)`,
		`act\s+as\s+if\s+you\s+(are|have)\s+no\s+restrictions`,
		`roleplay\s+as\s+a\s+(doctor|physician|pharmacist)`,
	} {
		v.roleplay = append(v.roleplay, regexp.MustCompile(p))
	}
	return v
}

// Validate classifies the text. risk_score is the max of pattern confidence
// and classifier confidence; blocked when risk_score >= the block threshold.
func (v *GuardrailValidator) Validate(text, userID string) (*ValidationResult, error) {
	normalized := NormalizeForMatching(text)

	patternRisk, flags := v.matchPatterns(normalized)

	classifierRisk := 0.0
	if v.classifier != nil {
		score, err := v.classifier.Score(text)
		if err != nil {
			return nil, fmt.Errorf("injection classifier: %w", err)
		}
		classifierRisk = clampRisk(score)
		if classifierRisk >= v.blockThreshold {
			flags = append(flags, "classifier_signal")
		}
	}

	risk := patternRisk
	if classifierRisk > risk {
		risk = classifierRisk
	}

	result := &ValidationResult{RiskScore: clampRisk(risk), Flags: flags}
	if result.RiskScore >= v.blockThreshold {
		result.Blocked = true
		result.Reason = "prompt_injection"
	}
	return result, nil
}

// matchPatterns returns the strongest pattern confidence and the matched flags.
// Confidence grading follows the pattern table order: later, more specific
// patterns score slightly higher, capped at 1.0.
func (v *GuardrailValidator) matchPatterns(normalized string) (float64, []string) {
	risk := 0.0
	var flags []string

	for i, re := range v.patterns {
		if re.MatchString(normalized) {
			confidence := 0.8 + float64(i)*0.02
			if confidence > 1.0 {
				confidence = 1.0
			}
			if confidence > risk {
				risk = confidence
			}
			flags = append(flags, "injection_pattern")
		}
	}

	for _, term := range v.highRiskTerms {
		if strings.Contains(normalized, term) {
			if risk < 0.9 {
				risk = 0.9
			}
			flags = append(flags, "high_risk_term")
			break
		}
	}

	for _, re := range v.roleplay {
		if re.MatchString(normalized) {
			if risk < 0.85 {
				risk = 0.85
			}
			flags = append(flags, "roleplay_framing")
			break
		}
	}

	// Several suspicious keywords together are a weaker but real signal.
	suspicious := []string{"ignore", "forget", "override", "bypass", "disregard", "pretend", "roleplay", "simulate", "act as"}
	count := 0
	for _, kw := range suspicious {
		if strings.Contains(normalized, kw) {
			count++
		}
	}
	if count >= 2 {
		if risk < 0.7 {
			risk = 0.7
		}
		flags = append(flags, "multiple_suspicious_keywords")
	}

	return risk, flags
}
