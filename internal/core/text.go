package core

import (
	"strings"

	normalizer "github.com/dimuska139/go-email-normalizer/v5"
)

var emailNormalizer = normalizer.NewNormalizer()

// NormalizeText trims and lowercases a free text value.
func NormalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail lowercases and trims an address. With canonical set it also
// applies provider rules (gmail dots, plus tags and similar) so aliases of the
// same mailbox hash to the same digest.
func NormalizeEmail(s string, canonical bool) string {
	s = NormalizeText(s)
	if !canonical || !strings.Contains(s, "@") {
		return s
	}
	return strings.ToLower(emailNormalizer.Normalize(s))
}
