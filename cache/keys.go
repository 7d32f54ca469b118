package cache

import (
	"fmt"
	"strings"
	"unicode"
)

// MaxKeyLength is the maximum allowed key length in bytes.
// Normalize truncates to fit; ValidateKey rejects longer keys.
const MaxKeyLength = 512

// emptyTopicSlug is the placeholder slug for topics that normalize to
// nothing. Normalization is total and must always yield a usable key.
const emptyTopicSlug = "topic"

// Qualifiers narrow a topic to a distinct cache entry. Equal topics with
// different qualifiers are different keys.
type Qualifiers struct {
	// Domain scopes the topic, e.g. "typescript" or "security".
	Domain string

	// Priority tags the entry for consumers that cache per priority tier.
	Priority string
}

func (q Qualifiers) empty() bool {
	return q.Domain == "" && q.Priority == ""
}

// Normalize derives the canonical cache key for a topic.
//
// The topic is slugged: lowercased, runs of separators (whitespace, '-',
// '_', '/', ':') collapse to a single '-', all other non-alphanumerics are
// dropped, and leading/trailing separators are trimmed. Qualifier values are
// slugged the same way and appended in fixed order, domain then priority,
// joined by ':'.
//
// Contract:
// - Total: every input yields a usable key; an empty slug becomes "topic".
// - Deterministic: equivalent spellings produce identical keys, so
//   "Security Best-Practices" and "security  best practices" share one entry.
// - Idempotent: slugging an already-slugged topic is a no-op.
// - Bounded: the result never exceeds MaxKeyLength.
func Normalize(topic string, q Qualifiers) string {
	key := slug(topic)
	if key == "" {
		key = emptyTopicSlug
	}
	if !q.empty() {
		key = key + ":" + slug(q.Domain) + ":" + slug(q.Priority)
	}
	if len(key) > MaxKeyLength {
		key = strings.TrimRight(key[:MaxKeyLength], "-:")
		if key == "" {
			key = emptyTopicSlug
		}
	}
	return key
}

// slug folds s to the canonical topic form: lowercase alphanumerics joined
// by single '-'.
func slug(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		r = unicode.ToLower(r)
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
		case isSeparator(r):
			pendingSep = true
		}
	}
	return b.String()
}

func isSeparator(r rune) bool {
	switch r {
	case '-', '_', '/', ':':
		return true
	}
	return unicode.IsSpace(r)
}

// ValidateKey checks that a key is usable by a Store. Keys produced by
// Normalize always pass; the check guards direct Store access.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key is empty", ErrInvalidKey)
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: key is whitespace only", ErrInvalidKey)
	}
	if len(key) > MaxKeyLength {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrKeyTooLong, len(key), MaxKeyLength)
	}
	if strings.ContainsAny(key, "\n\r") {
		return fmt.Errorf("%w: key contains line breaks", ErrInvalidKey)
	}
	return nil
}
