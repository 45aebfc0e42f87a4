package document

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileCodeFormat(t *testing.T) {
	code := NewFileCode()
	assert.Regexp(t, regexp.MustCompile(`^BEO-[0-9A-F]{8}$`), code)
	assert.NotEqual(t, code, NewFileCode())
}

func TestSanitizeCode(t *testing.T) {
	cases := map[string]string{
		"BEO-1A2B3C4D":    "BEO-1A2B3C4D",
		"Café Événement":  "Cafe-Evenement",
		"a/b\\c d*e":      "a-b-c-d-e",
		"under_score-ok9": "under_score-ok9",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeCode(in), "input %q", in)
	}
}

func TestSanitizeCodeIdempotent(t *testing.T) {
	inputs := []string{"BEO-1A2B3C4D", "wild name (v2).pdf", "Grüße/2024"}
	for _, in := range inputs {
		once := SanitizeCode(in)
		assert.Equal(t, once, SanitizeCode(once), "input %q", in)
	}
}

func TestStorageKeyPartitionedByFirstGeneration(t *testing.T) {
	first := time.Date(2025, time.July, 31, 23, 59, 0, 0, time.UTC)
	key := StorageKey("BEO-1A2B3C4D", first)
	assert.Equal(t, "pdfs/orders/2025/07/BEO-1A2B3C4D.pdf", key)

	// The key depends only on the code and the first generation time, so
	// regenerating after a month boundary cannot move the file.
	assert.Equal(t, key, StorageKey("BEO-1A2B3C4D", first))
}

func TestAttachmentKeyKeepsExtensionOnly(t *testing.T) {
	key := AttachmentKey(42, "floor plan (final).PNG")
	require.Regexp(t, `^attachments/42/[0-9a-f-]{36}\.PNG$`, key)
	other := AttachmentKey(42, "floor plan (final).PNG")
	assert.NotEqual(t, key, other, "same original name must not collide")
}
