package security

import (
	"regexp"
	"strings"
)

// MedicalSafetyGate detects disallowed medical requests: explicit
// dosage/prescription asks and medical-impersonation framing. Messages that
// describe an emergency are deliberately not blocked; the downstream response
// must be able to recommend emergency services.
type MedicalSafetyGate struct {
	dosagePatterns        []*regexp.Regexp
	impersonationPatterns []*regexp.Regexp
	dosagePhrases         []string
	medicationNames       []string
	emergencyPhrases      []string
	urgentPhrases         []string
}

const (
	standardDisclaimer = "This information is for educational purposes only and is not intended as medical advice. " +
		"Always consult your healthcare provider for medical advice, diagnosis, or treatment."
	emergencyGuidance = "These symptoms may indicate a medical emergency. " +
		"Call 911 or go to the nearest emergency room immediately."
	urgentGuidance = "These symptoms require prompt medical attention. " +
		"Contact your healthcare provider or consider urgent care."
)

func NewMedicalSafetyGate() *MedicalSafetyGate {
	g := &MedicalSafetyGate{
		dosagePhrases: []string{
			"how much", "what dosage", "how many mg", "prescription for", "dosage of",
		},
		medicationNames: []string{
			"ibuprofen", "aspirin", "tylenol", "acetaminophen", "advil", "motrin",
			"medication", "medicine", "drug", "pill", "tablet",
		},
		emergencyPhrases: []string{
			"chest pain", "heart attack", "can't breathe", "cannot breathe",
			"difficulty breathing", "shortness of breath", "severe bleeding",
			"stroke symptoms", "sudden severe headache", "loss of consciousness", "seizure",
		},
		urgentPhrases: []string{
			"high fever", "persistent vomiting", "severe abdominal pain",
		},
	}

	for _, p := range []string{
		`dosage\s+of\s+\w+`,
		`how\s+much\s+\w+\s+(should|to)\s+take`,
		`how\s+much\s+\w+\s+should\s+i\s+take`,
		`\d+\s*mg\s+of\s+\w+`,
		`prescription\s+for\s+\w+`,
	} {
		g.dosagePatterns = append(g.dosagePatterns, regexp.MustCompile(p))
	}
	for _, p := range []string{
		`(pretend|act|roleplay).{0,40}(doctor|physician|pharmacist).{0,60}(prescribe|prescription|dosage|diagnose)`,
		`as\s+a\s+(doctor|physician|pharmacist),?\s+(prescribe|give\s+me)`,
		`you\s+are\s+(a\s+)?(doctor|physician|pharmacist).{0,60}(prescribe|dosage)`,
	} {
		g.impersonationPatterns = append(g.impersonationPatterns, regexp.MustCompile(p))
	}
	return g
}

// Validate checks the input text. Dosage requests and impersonation framing
// block; emergency descriptions pass with a flag so the response layer can add
// emergency guidance.
func (g *MedicalSafetyGate) Validate(text string) (*ValidationResult, error) {
	normalized := NormalizeForMatching(text)

	if g.containsImpersonation(normalized) {
		return &ValidationResult{
			Blocked:   true,
			Reason:    "medical_impersonation",
			RiskScore: 0.85,
			Flags:     []string{"impersonation_framing"},
		}, nil
	}

	if g.containsDosageRequest(normalized) {
		return &ValidationResult{
			Blocked:   true,
			Reason:    "medication_dosage_request",
			RiskScore: 0.8,
			Flags:     []string{"medication_request_blocked"},
		}, nil
	}

	if level := g.emergencyLevel(normalized); level != "" {
		return &ValidationResult{
			Blocked:   false,
			Reason:    "emergency_detected",
			RiskScore: 0.3,
			Flags:     []string{"emergency_" + level},
		}, nil
	}

	return &ValidationResult{Reason: "medical_safety_passed"}, nil
}

// containsDosageRequest distinguishes "requesting a prescription" from
// "describing an emergency": it needs both a medication mention and a
// dosage-style ask, or an explicit dosage pattern.
func (g *MedicalSafetyGate) containsDosageRequest(normalized string) bool {
	for _, re := range g.dosagePatterns {
		if re.MatchString(normalized) {
			return true
		}
	}

	hasMedication := false
	for _, name := range g.medicationNames {
		if strings.Contains(normalized, name) {
			hasMedication = true
			break
		}
	}
	if !hasMedication {
		return false
	}
	for _, phrase := range g.dosagePhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}

func (g *MedicalSafetyGate) containsImpersonation(normalized string) bool {
	for _, re := range g.impersonationPatterns {
		if re.MatchString(normalized) {
			return true
		}
	}
	return false
}

func (g *MedicalSafetyGate) emergencyLevel(normalized string) string {
	for _, phrase := range g.emergencyPhrases {
		if strings.Contains(normalized, phrase) {
			return "immediate"
		}
	}
	for _, phrase := range g.urgentPhrases {
		if strings.Contains(normalized, phrase) {
			return "urgent"
		}
	}
	return ""
}

// EnhanceResponse appends emergency guidance and the medical disclaimer to an
// outgoing response when the original message calls for them. Idempotent:
// text already carrying the guidance or disclaimer is left alone.
func (g *MedicalSafetyGate) EnhanceResponse(response, originalMessage string) string {
	normalized := NormalizeForMatching(originalMessage)
	enhanced := response

	switch g.emergencyLevel(normalized) {
	case "immediate":
		if !strings.Contains(enhanced, emergencyGuidance) {
			enhanced = enhanced + "\n\nIMPORTANT: " + emergencyGuidance
		}
	case "urgent":
		if !strings.Contains(enhanced, urgentGuidance) {
			enhanced = enhanced + "\n\nIMPORTANT: " + urgentGuidance
		}
	}

	if g.needsDisclaimer(NormalizeForMatching(enhanced)) && !strings.Contains(enhanced, standardDisclaimer) {
		enhanced = enhanced + "\n\n" + standardDisclaimer
	}

	return enhanced
}

func (g *MedicalSafetyGate) needsDisclaimer(normalized string) bool {
	for _, kw := range []string{"symptom", "treatment", "diagnosis", "condition", "disease", "medication", "medical", "health"} {
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}
