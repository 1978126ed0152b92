package core

import (
	"strings"
)

// NormalizerOptions configures per-field normalization.
type NormalizerOptions struct {
	// DefaultRegion is the ISO2 region used to parse phones on rows whose
	// country could not be resolved.
	DefaultRegion string

	// CanonicalEmail applies provider specific mailbox rules to emails.
	CanonicalEmail bool
}

// Normalizer turns a raw Record into a NormalizedRecord.
type Normalizer struct {
	countries      *CountryNormalizer
	phones         *PhoneNormalizer
	defaultRegion  string
	canonicalEmail bool
}

// NewNormalizer creates a Normalizer. It is safe for concurrent use.
func NewNormalizer(opts NormalizerOptions) *Normalizer {
	return &Normalizer{
		countries:      NewCountryNormalizer(),
		phones:         NewPhoneNormalizer(opts.DefaultRegion),
		defaultRegion:  strings.ToUpper(strings.TrimSpace(opts.DefaultRegion)),
		canonicalEmail: opts.CanonicalEmail,
	}
}

// Country exposes the country normalizer used for rows.
func (n *Normalizer) Country() *CountryNormalizer {
	return n.countries
}

// Normalize formats every output field of rec. row is the CSV line number
// used for warnings. Zip is passed through trimmed; inference happens later.
func (n *Normalizer) Normalize(rec Record, row int) Result[NormalizedRecord] {
	var res Result[NormalizedRecord]
	out := NormalizedRecord{normalized: true}
	_, out.deviceID = rec[MobileDeviceID]

	out = out.withValue(FirstName, NormalizeText(rec.Get(FirstName)))
	out = out.withValue(LastName, NormalizeText(rec.Get(LastName)))
	out = out.withValue(Email, NormalizeEmail(rec.Get(Email), n.canonicalEmail))
	out = out.withValue(Zip, strings.TrimSpace(rec.Get(Zip)))
	out = out.withValue(MobileDeviceID, NormalizeText(rec.Get(MobileDeviceID)))

	rawCountry := rec.Get(Country)
	country, ok := n.countries.Normalize(rawCountry)
	if !ok {
		msg := "country is empty"
		if strings.TrimSpace(rawCountry) != "" {
			msg = "country not recognized"
		}
		res.Warn(Warning{
			Row:     row,
			Field:   Country,
			Kind:    WarnCountryUnresolved,
			Value:   rawCountry,
			Message: msg,
		})
	}
	out = out.withValue(Country, country)

	rawPhone := rec.Get(Phone)
	phone, err := n.phones.Normalize(rawPhone, country)
	if err != nil {
		res.Warn(Warning{
			Row:     row,
			Field:   Phone,
			Kind:    WarnPhoneUnparseable,
			Value:   rawPhone,
			Message: err.Error() + ", keeping original value",
		})
	}
	out = out.withValue(Phone, phone)

	res.Value = out
	return res
}

// PlaceKey builds the zip lookup key for a raw record and its resolved
// country. Rows without a resolved country are looked up in the default
// region, falling back to US.
func (n *Normalizer) PlaceKey(rec Record, country string) PlaceKey {
	if country == "" {
		country = n.defaultRegion
	}
	if country == "" {
		country = "US"
	}
	return NewPlaceKey(rec.Get(City), rec.Get(State), country)
}
