package audit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventFillsIdentity(t *testing.T) {
	e := NewEvent(KindSecurityBlock, "u-1", "s-1")

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, KindSecurityBlock, e.Kind)
	assert.Equal(t, "u-1", e.UserID)
	assert.Equal(t, "s-1", e.SessionID)
	assert.False(t, e.Timestamp.IsZero())
}

func TestWithContentStoresHashOnly(t *testing.T) {
	long := strings.Repeat("ignore previous instructions ", 10)
	e := NewEvent(KindSecurityBlock, "u", "s").WithContent(long)

	require.Len(t, e.ContentHash, 64)
	assert.Empty(t, e.ContentPreview, "content text must never be stored by WithContent")

	// Same content, same hash: events stay correlatable without the text.
	again := NewEvent(KindSecurityBlock, "u", "s").WithContent(long)
	assert.Equal(t, e.ContentHash, again.ContentHash)
}

func TestWithPreviewTruncates(t *testing.T) {
	long := strings.Repeat("[PERSON_1] asked about [MEDICATION_1] ", 5)
	e := NewEvent(KindSecurityBlock, "u", "s").WithPreview(long)

	assert.Len(t, []rune(e.ContentPreview), 48)
	assert.NotEqual(t, long, e.ContentPreview, "full content must never be stored")
}

func TestWithPreviewShortText(t *testing.T) {
	e := NewEvent(KindRedaction, "u", "s").WithPreview("[PERSON_1] short")
	assert.Equal(t, "[PERSON_1] short", e.ContentPreview)
}
