package security

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// EntitySpan is a detected sensitive entity inside a message.
type EntitySpan struct {
	Start      int
	End        int
	Type       string
	Confidence float64
}

// EntityDetector is the pluggable detection capability behind the redactor.
// An NLP-backed implementation and the pattern-based one below satisfy the
// same contract and are selected at construction time.
type EntityDetector interface {
	Detect(text string) ([]EntitySpan, error)
}

// placeholderPattern matches placeholders the redactor itself emits, so that
// already-redacted text is never redacted twice.
var placeholderPattern = regexp.MustCompile(`\[[A-Z_]+_\d+\]`)

// Redactor replaces detected entities with typed placeholders ([PERSON_1],
// [PHONE_NUMBER_1], ...) numbered per distinct value within the message, and
// keeps a request-local mapping for later restoration.
type Redactor struct {
	detector EntityDetector
}

func NewRedactor(detector EntityDetector) *Redactor {
	return &Redactor{detector: detector}
}

// Redact detects and replaces sensitive entities. Idempotent: placeholders in
// the input are left untouched.
func (r *Redactor) Redact(text, userID, sessionID string) (*RedactionResult, error) {
	spans, err := r.detector.Detect(text)
	if err != nil {
		return nil, fmt.Errorf("entity detection: %w", err)
	}

	// Drop spans overlapping an existing placeholder.
	existing := placeholderPattern.FindAllStringIndex(text, -1)
	kept := spans[:0]
	for _, span := range spans {
		if !overlapsAny(span, existing) {
			kept = append(kept, span)
		}
	}
	spans = kept

	// Replace back to front so earlier offsets stay valid.
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start > spans[j].Start })

	result := &RedactionResult{
		RedactedText:     text,
		EntityMappings:   make(map[string]string),
		ConfidenceScores: make(map[string]float64),
	}
	counters := make(map[string]int)
	byValue := make(map[string]string) // distinct value -> placeholder
	typesSeen := make(map[string]bool)

	for _, span := range spans {
		original := text[span.Start:span.End]

		placeholder, ok := byValue[span.Type+"\x00"+original]
		if !ok {
			counters[span.Type]++
			placeholder = fmt.Sprintf("[%s_%d]", span.Type, counters[span.Type])
			byValue[span.Type+"\x00"+original] = placeholder
			result.EntityMappings[placeholder] = original
			result.ConfidenceScores[placeholder] = span.Confidence
			result.EntitiesFound++
		}

		result.RedactedText = result.RedactedText[:span.Start] + placeholder + result.RedactedText[span.End:]
		typesSeen[span.Type] = true
	}

	for t := range typesSeen {
		result.EntityTypes = append(result.EntityTypes, t)
	}
	sort.Strings(result.EntityTypes)

	return result, nil
}

// Restore re-inserts original values into a response before it is returned to
// the caller. The mappings stay request-scoped and are never persisted.
func (r *Redactor) Restore(text string, mappings map[string]string) string {
	for placeholder, original := range mappings {
		text = strings.ReplaceAll(text, placeholder, original)
	}
	return text
}

func overlapsAny(span EntitySpan, ranges [][]int) bool {
	for _, rg := range ranges {
		if span.Start < rg[1] && span.End > rg[0] {
			return true
		}
	}
	return false
}

// PatternDetector is the lightweight, dependency-free EntityDetector variant:
// a table of compiled regexes over a fixed entity-type taxonomy.
type PatternDetector struct {
	patterns map[string]*regexp.Regexp
}

// NewPatternDetector builds the default detector covering the entity types the
// medical context cares about.
func NewPatternDetector() *PatternDetector {
	return &PatternDetector{
		patterns: map[string]*regexp.Regexp{
			"PERSON":        regexp.MustCompile(`\b[A-Z][a-z]+ [A-Z][a-z]+\b`),
			"PHONE_NUMBER":  regexp.MustCompile(`\b\d{3}[-.]\d{3}[-.]\d{4}\b`),
			"EMAIL_ADDRESS": regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`),
			"US_SSN":        regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
			"DATE_TIME":     regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
		},
	}
}

func (d *PatternDetector) Detect(text string) ([]EntitySpan, error) {
	var spans []EntitySpan
	taken := make([][]int, 0)

	// Fixed match order so overlapping candidates resolve deterministically:
	// structured identifiers win over the loose PERSON heuristic.
	order := []string{"US_SSN", "PHONE_NUMBER", "EMAIL_ADDRESS", "DATE_TIME", "PERSON"}

	for _, entityType := range order {
		re, ok := d.patterns[entityType]
		if !ok {
			continue
		}
		for _, loc := range re.FindAllStringIndex(text, -1) {
			span := EntitySpan{Start: loc[0], End: loc[1], Type: entityType, Confidence: 0.8}
			if overlapsAny(span, taken) {
				continue
			}
			spans = append(spans, span)
			taken = append(taken, loc)
		}
	}

	return spans, nil
}
