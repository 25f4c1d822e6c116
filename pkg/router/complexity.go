package router

import (
	"strings"
	"unicode"
)

// ComplexityComponents are the independent sub-scores combined into the
// overall complexity score.
type ComplexityComponents struct {
	Lexical      float64 `json:"lexical"`
	MedicalTerms float64 `json:"medical_terms"`
	Reasoning    float64 `json:"reasoning"`
	Length       float64 `json:"length"`
}

// ComplexityIndicators are the raw counts behind the component scores,
// surfaced for analytics and debugging.
type ComplexityIndicators struct {
	WordCount            int `json:"word_count"`
	SentenceCount        int `json:"sentence_count"`
	QuestionCount        int `json:"question_count"`
	BasicMedicalTerms    int `json:"basic_medical_terms"`
	AdvancedMedicalTerms int `json:"advanced_medical_terms"`
	ReasoningIndicators  int `json:"reasoning_indicators"`
}

// ComplexityAnalysis is a pure function of the message text; it carries no
// persisted identity.
type ComplexityAnalysis struct {
	OverallScore   float64              `json:"overall_score"`
	Components     ComplexityComponents `json:"components"`
	Indicators     ComplexityIndicators `json:"indicators"`
	Recommendation string               `json:"recommendation"`
}

// Component weights for the overall score.
const (
	weightLexical      = 0.2
	weightMedicalTerms = 0.3
	weightReasoning    = 0.3
	weightLength       = 0.2
)

// Recommendation thresholds: below low recommends the cheapest tier, above
// high the most capable, in between the mid tier.
const (
	complexityLow  = 0.3
	complexityHigh = 0.6
)

// basicMedicalTerms are common patient-facing vocabulary; advancedMedicalTerms
// signal clinical-grade queries and weigh heavier.
var basicMedicalTerms = []string{
	"headache", "fever", "pain", "cough", "cold", "flu", "nausea", "dizzy",
	"allergy", "infection", "blood pressure", "diabetes", "asthma",
	"medication", "symptom", "rash", "fatigue",
}

var advancedMedicalTerms = []string{
	"troponin", "myocardial", "infarction", "etiology", "etiologies",
	"pericarditis", "embolism", "ischemia", "stenosis", "neuropathy",
	"pathophysiology", "hemodynamic", "arrhythmia", "sepsis", "creatinine",
	"differential diagnosis", "st-segment", "comorbid", "contraindication",
	"prognosis", "titration",
}

var reasoningPhrases = []string{
	"differential diagnosis", "rule out", "compare", "versus", "workup",
	"risk stratification", "consider both", "pros and cons", "weigh",
	"alternatives", "trade-off",
}

// ComplexityAnalyzer scores a message's linguistic and medical complexity in
// [0,1] and recommends a model tier. Pure and deterministic; no I/O.
type ComplexityAnalyzer struct {
	// orderedModels is the catalog ordered cheapest first.
	orderedModels []string
}

// NewComplexityAnalyzer takes the model catalog ordered cheapest to most
// capable; recommendations are drawn from it.
func NewComplexityAnalyzer(orderedModels []string) *ComplexityAnalyzer {
	return &ComplexityAnalyzer{orderedModels: orderedModels}
}

// Analyze scores the text. Empty or whitespace-only text scores 0 and
// recommends the cheapest model.
func (a *ComplexityAnalyzer) Analyze(text string) *ComplexityAnalysis {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return &ComplexityAnalysis{Recommendation: a.tierFor(0)}
	}

	lower := strings.ToLower(trimmed)
	words := strings.Fields(lower)
	sentences := countSentences(trimmed)
	questions := strings.Count(trimmed, "?")

	basic := countOccurrences(lower, basicMedicalTerms)
	advanced := countOccurrences(lower, advancedMedicalTerms)
	reasoning := countOccurrences(lower, reasoningPhrases)

	components := ComplexityComponents{
		Lexical:      lexicalScore(words, sentences),
		MedicalTerms: capScore(float64(basic)*0.05 + float64(advanced)*0.2),
		Reasoning:    capScore(float64(reasoning) * 0.3),
		Length:       capScore(float64(len(words)) / 150.0),
	}

	overall := components.Lexical*weightLexical +
		components.MedicalTerms*weightMedicalTerms +
		components.Reasoning*weightReasoning +
		components.Length*weightLength

	return &ComplexityAnalysis{
		OverallScore: overall,
		Components:   components,
		Indicators: ComplexityIndicators{
			WordCount:            len(words),
			SentenceCount:        sentences,
			QuestionCount:        questions,
			BasicMedicalTerms:    basic,
			AdvancedMedicalTerms: advanced,
			ReasoningIndicators:  reasoning,
		},
		Recommendation: a.recommend(overall),
	}
}

func (a *ComplexityAnalyzer) recommend(score float64) string {
	switch {
	case score < complexityLow:
		return a.tierFor(0)
	case score > complexityHigh:
		return a.tierFor(len(a.orderedModels) - 1)
	default:
		if len(a.orderedModels) < 3 {
			// No mid tier: fall back to the cheapest.
			return a.tierFor(0)
		}
		return a.tierFor(len(a.orderedModels) / 2)
	}
}

func (a *ComplexityAnalyzer) tierFor(idx int) string {
	if len(a.orderedModels) == 0 {
		return ""
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= len(a.orderedModels) {
		idx = len(a.orderedModels) - 1
	}
	return a.orderedModels[idx]
}

// lexicalScore combines average sentence length with vocabulary diversity.
// Diversity only counts once a message is long enough to mean something.
func lexicalScore(words []string, sentences int) float64 {
	if len(words) == 0 {
		return 0
	}
	if sentences == 0 {
		sentences = 1
	}

	avgSentenceLen := float64(len(words)) / float64(sentences)
	lengthPart := capScore(avgSentenceLen / 25.0)

	unique := make(map[string]bool, len(words))
	for _, w := range words {
		unique[strings.Trim(w, ".,!?;:")] = true
	}
	diversity := float64(len(unique)) / float64(len(words))
	if len(words) < 10 {
		diversity *= float64(len(words)) / 10.0
	}

	return capScore(lengthPart*0.5 + diversity*0.5)
}

func countSentences(text string) int {
	runes := []rune(text)
	count := 0
	for i, r := range runes {
		switch r {
		case '!', '?':
			count++
		case '.':
			// A period between digits is a decimal point ("37.5 degrees",
			// "0.5 mg"), not a sentence boundary.
			if i > 0 && i < len(runes)-1 && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]) {
				continue
			}
			count++
		}
	}
	if count == 0 {
		return 1
	}
	return count
}

func countOccurrences(lower string, terms []string) int {
	count := 0
	for _, term := range terms {
		count += strings.Count(lower, term)
	}
	return count
}

func capScore(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < 0 {
		return 0
	}
	return s
}
