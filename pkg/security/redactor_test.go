package security

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactPersonAndPhone(t *testing.T) {
	r := NewRedactor(NewPatternDetector())

	result, err := r.Redact("My name is Sarah Johnson, phone 555-987-6543", "user-1", "sess-1")
	require.NoError(t, err)

	assert.Equal(t, 2, result.EntitiesFound)
	assert.Equal(t, []string{"PERSON", "PHONE_NUMBER"}, result.EntityTypes)
	assert.NotContains(t, result.RedactedText, "Sarah Johnson")
	assert.NotContains(t, result.RedactedText, "555-987-6543")
	assert.Contains(t, result.RedactedText, "[PERSON_1]")
	assert.Contains(t, result.RedactedText, "[PHONE_NUMBER_1]")
}

func TestRedactIsIdempotent(t *testing.T) {
	r := NewRedactor(NewPatternDetector())

	first, err := r.Redact("Please reach John Smith at john@example.com", "u", "s")
	require.NoError(t, err)
	require.Equal(t, 2, first.EntitiesFound)

	second, err := r.Redact(first.RedactedText, "u", "s")
	require.NoError(t, err)
	assert.Equal(t, 0, second.EntitiesFound)
	assert.Equal(t, first.RedactedText, second.RedactedText)
}

func TestRedactNumbersDistinctValuesPerType(t *testing.T) {
	r := NewRedactor(NewPatternDetector())

	result, err := r.Redact("Call 555-111-2222 or 555-333-4444, or again 555-111-2222", "u", "s")
	require.NoError(t, err)

	// Two distinct numbers, the repeat reuses its placeholder.
	assert.Equal(t, 2, result.EntitiesFound)
	assert.Contains(t, result.RedactedText, "[PHONE_NUMBER_1]")
	assert.Contains(t, result.RedactedText, "[PHONE_NUMBER_2]")
}

func TestRestoreRoundTrip(t *testing.T) {
	r := NewRedactor(NewPatternDetector())
	original := "Patient Jane Doe, SSN 123-45-6789, seen on 3/14/2024"

	result, err := r.Redact(original, "u", "s")
	require.NoError(t, err)
	require.Equal(t, 3, result.EntitiesFound)
	assert.Equal(t, []string{"DATE_TIME", "PERSON", "US_SSN"}, result.EntityTypes)

	restored := r.Restore(result.RedactedText, result.EntityMappings)
	assert.Equal(t, original, restored)
}

func TestSSNWinsOverPhonePattern(t *testing.T) {
	r := NewRedactor(NewPatternDetector())

	result, err := r.Redact("SSN is 123-45-6789", "u", "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"US_SSN"}, result.EntityTypes)
}

type failingDetector struct{}

func (failingDetector) Detect(string) ([]EntitySpan, error) {
	return nil, errors.New("model unavailable")
}

func TestRedactPropagatesDetectorError(t *testing.T) {
	r := NewRedactor(failingDetector{})

	_, err := r.Redact("anything", "u", "s")
	assert.Error(t, err)
}
