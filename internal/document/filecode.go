package document

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NewFileCode mints a document file code. The code is assigned once per
// order and survives every regeneration.
func NewFileCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "BEO-" + strings.ToUpper(raw[:8])
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SanitizeCode converts a file code into a filesystem-safe name. Accented
// letters are transliterated first, then every rune outside [A-Za-z0-9_-]
// becomes '-'. The function is idempotent.
func SanitizeCode(code string) string {
	flat, _, err := transform.String(stripMarks, code)
	if err != nil {
		flat = code
	}
	var b strings.Builder
	b.Grow(len(flat))
	for _, r := range flat {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

// StorageKey builds the blob key for a document generated at the given
// time. The key is derived once, at first generation, and reused after
// that so a file code never moves across month boundaries.
func StorageKey(code string, firstGeneratedAt time.Time) string {
	return fmt.Sprintf("pdfs/orders/%04d/%02d/%s.pdf",
		firstGeneratedAt.Year(), int(firstGeneratedAt.Month()), SanitizeCode(code))
}

// AttachmentKey builds the blob key for a raw uploaded attachment. The
// original filename is kept as metadata only; the key is collision-free.
func AttachmentKey(orderID int64, originalName string) string {
	ext := ""
	if idx := strings.LastIndex(originalName, "."); idx >= 0 && idx < len(originalName)-1 {
		ext = "." + SanitizeCode(originalName[idx+1:])
	}
	return fmt.Sprintf("attachments/%d/%s%s", orderID, uuid.NewString(), ext)
}
