package router

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/medgate/medgate/pkg/ai"
)

// OptimizationResult reports what the optimizer did to a message. The
// optimized text is only used when ShouldUseOptimized is true.
type OptimizationResult struct {
	OptimizedMessage     string   `json:"optimized_message"`
	TokensSaved          int      `json:"tokens_saved"`
	SavingsPercentage    float64  `json:"savings_percentage"`
	ShouldUseOptimized   bool     `json:"should_use_optimized"`
	OptimizationsApplied []string `json:"optimizations_applied"`
}

// fillerPhrases are conversational padding that is safe to strip for every
// role. Longer phrases first so substrings do not shadow them.
var fillerPhrases = []string{
	"i would like to know if you could please tell me",
	"i was wondering if you could tell me",
	"could you please help me understand",
	"i would like to know",
	"can you please tell me",
	"i was wondering if",
	"would you mind telling me",
	"please tell me",
	"if possible,",
}

// clinicalAbbreviations compress common medical terms for clinician-tier
// roles. Patient-tier messages keep the full terms for clarity.
var clinicalAbbreviations = map[string]string{
	"blood pressure":        "BP",
	"heart rate":            "HR",
	"shortness of breath":   "SOB",
	"electrocardiogram":     "ECG",
	"myocardial infarction": "MI",
	"history of":            "h/o",
	"as needed":             "PRN",
	"twice daily":           "BID",
	"intravenous":           "IV",
}

var sentenceSplit = regexp.MustCompile(`(?s)[^.!?]+[.!?]?`)

// PromptOptimizer rewrites a message to reduce token count without changing
// medical meaning: lossless for meaning, lossy for tokens only.
type PromptOptimizer struct {
	minTokensSaved    int
	minSavingsPercent float64
	fillerRe          []*regexp.Regexp
	abbrevRe          map[*regexp.Regexp]string
}

// NewPromptOptimizer builds the optimizer. Optimization is only recommended
// when the saving clears both the absolute and the percentage threshold, so
// short text is never "optimized" into nothing smaller.
func NewPromptOptimizer(minTokensSaved int, minSavingsPercent float64) *PromptOptimizer {
	o := &PromptOptimizer{
		minTokensSaved:    minTokensSaved,
		minSavingsPercent: minSavingsPercent,
		abbrevRe:          make(map[*regexp.Regexp]string),
	}
	for _, phrase := range fillerPhrases {
		o.fillerRe = append(o.fillerRe, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(phrase)+`\s*`))
	}
	for term, abbrev := range clinicalAbbreviations {
		o.abbrevRe[regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(term)+`\b`)] = abbrev
	}
	return o
}

// Optimize applies filler stripping, clinician-only abbreviation, and
// multi-question restructuring, in that order. Token accounting uses the
// tokenizer for the given model.
func (o *PromptOptimizer) Optimize(text, model string, clinicalShorthand bool) *OptimizationResult {
	optimized := text
	var applied []string

	if stripped := o.stripFiller(optimized); stripped != optimized {
		optimized = stripped
		applied = append(applied, "redundant_phrase_removal")
	}

	if clinicalShorthand {
		if compressed := o.compressClinicalTerms(optimized); compressed != optimized {
			optimized = compressed
			applied = append(applied, "medical_abbreviation")
		}
	}

	if structured, ok := o.restructureQuestions(optimized); ok {
		optimized = structured
		applied = append(applied, "question_restructuring")
	}

	originalTokens := ai.CountTokens(model, text)
	optimizedTokens := ai.CountTokens(model, optimized)
	saved := originalTokens - optimizedTokens

	savingsPct := 0.0
	if originalTokens > 0 {
		savingsPct = float64(saved) / float64(originalTokens) * 100
	}

	return &OptimizationResult{
		OptimizedMessage:     optimized,
		TokensSaved:          saved,
		SavingsPercentage:    savingsPct,
		ShouldUseOptimized:   saved >= o.minTokensSaved && savingsPct >= o.minSavingsPercent,
		OptimizationsApplied: applied,
	}
}

func (o *PromptOptimizer) stripFiller(text string) string {
	for _, re := range o.fillerRe {
		text = re.ReplaceAllString(text, "")
	}
	text = strings.TrimSpace(text)
	// Stripping a leading phrase can leave a lowercase fragment; that is fine
	// for the model, but collapse any doubled spaces it left behind.
	return strings.Join(strings.Fields(text), " ")
}

func (o *PromptOptimizer) compressClinicalTerms(text string) string {
	for re, abbrev := range o.abbrevRe {
		text = re.ReplaceAllString(text, abbrev)
	}
	return text
}

// restructureQuestions collapses two or more distinct question sentences into
// a numbered block. Non-question sentences are kept, in order, above it.
func (o *PromptOptimizer) restructureQuestions(text string) (string, bool) {
	sentences := sentenceSplit.FindAllString(text, -1)

	var questions, statements []string
	seen := make(map[string]bool)
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if strings.HasSuffix(s, "?") {
			q := strings.TrimSuffix(s, "?")
			if !seen[strings.ToLower(q)] {
				seen[strings.ToLower(q)] = true
				questions = append(questions, q+"?")
			}
			continue
		}
		statements = append(statements, s)
	}

	if len(questions) < 2 {
		return text, false
	}

	var b strings.Builder
	if len(statements) > 0 {
		b.WriteString(strings.Join(statements, " "))
		b.WriteString("\n")
	}
	b.WriteString("Questions:")
	for i, q := range questions {
		b.WriteString(fmt.Sprintf("\n%d. %s", i+1, q))
	}
	return b.String(), true
}
