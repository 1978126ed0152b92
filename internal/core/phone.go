package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var (
	// ErrPhoneNoRegion is returned for numbers without a leading + when no
	// region is known to supply the calling code.
	ErrPhoneNoRegion = errors.New("phone number has no country calling code and no region")

	// ErrPhoneImpossible is returned when the number's length does not fit
	// the numbering plan of its region.
	ErrPhoneImpossible = errors.New("phone number length is not possible for its region")
)

// PhoneNormalizer formats phone numbers as E.164.
type PhoneNormalizer struct {
	defaultRegion string
}

// NewPhoneNormalizer creates a normalizer that falls back to defaultRegion
// when a row has no usable country.
func NewPhoneNormalizer(defaultRegion string) *PhoneNormalizer {
	return &PhoneNormalizer{defaultRegion: strings.ToUpper(strings.TrimSpace(defaultRegion))}
}

// Normalize converts raw to E.164 using region (ISO2) as the dialing context.
// On failure it returns raw unchanged together with the reason; it never
// invents a number.
func (p *PhoneNormalizer) Normalize(raw, region string) (string, error) {
	cleaned := stripPhone(raw)
	if cleaned == "" {
		if strings.TrimSpace(raw) == "" {
			return "", nil
		}
		return raw, fmt.Errorf("phone %q has no digits", raw)
	}

	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = p.defaultRegion
	}
	if !strings.HasPrefix(cleaned, "+") && region == "" {
		return raw, ErrPhoneNoRegion
	}

	num, err := phonenumbers.Parse(cleaned, region)
	if err != nil {
		return raw, fmt.Errorf("parse phone: %w", err)
	}
	if !phonenumbers.IsPossibleNumber(num) {
		return raw, ErrPhoneImpossible
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// stripPhone keeps digits and a leading '+'.
func stripPhone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "+" {
		return ""
	}
	return out
}
