package core

import (
	"fmt"
	"io"
	"maps"
	"strings"

	"gopkg.in/yaml.v3"
)

// TranslationTable maps known header spellings to canonical fields.
// Keys are stored normalized (see normalizeHeader). A table is built once at
// startup and only read afterwards.
type TranslationTable map[string]Field

// defaultTranslations covers the exports we see most often: CRMs, ad platforms
// and SalesQL, which prefixes location columns with "person_".
var defaultTranslations = map[string]Field{
	"first":            FirstName,
	"firstname":        FirstName,
	"first name":       FirstName,
	"fname":            FirstName,
	"given name":       FirstName,
	"forename":         FirstName,
	"last":             LastName,
	"lastname":         LastName,
	"last name":        LastName,
	"lname":            LastName,
	"surname":          LastName,
	"family name":      LastName,
	"phone":            Phone,
	"phone number":     Phone,
	"phonenumber":      Phone,
	"telephone":        Phone,
	"mobile":           Phone,
	"mobile phone":     Phone,
	"cell":             Phone,
	"cell phone":       Phone,
	"person_phone":     Phone,
	"email":            Email,
	"e-mail":           Email,
	"email address":    Email,
	"emailaddress":     Email,
	"person_email":     Email,
	"country":          Country,
	"country code":     Country,
	"country_code":     Country,
	"person_country":   Country,
	"zip":              Zip,
	"zip code":         Zip,
	"zipcode":          Zip,
	"zip_code":         Zip,
	"postal code":      Zip,
	"postalcode":       Zip,
	"postal_code":      Zip,
	"postcode":         Zip,
	"person_zip":       Zip,
	"mobile device id": MobileDeviceID,
	"mobile_device_id": MobileDeviceID,
	"device id":        MobileDeviceID,
	"madid":            MobileDeviceID,
	"idfa":             MobileDeviceID,
	"gaid":             MobileDeviceID,
	"aaid":             MobileDeviceID,
	"state":            State,
	"province":         State,
	"region":           State,
	"state/province":   State,
	"person_state":     State,
	"city":             City,
	"town":             City,
	"locality":         City,
	"person_city":      City,
}

// DefaultTranslations returns a fresh copy of the built-in table.
func DefaultTranslations() TranslationTable {
	t := make(TranslationTable, len(defaultTranslations))
	maps.Copy(t, defaultTranslations)
	return t
}

// Lookup returns the field for a raw header, ignoring case and surrounding whitespace.
// Snake and kebab case spellings also match their space separated entry.
func (t TranslationTable) Lookup(header string) (Field, bool) {
	key := normalizeHeader(header)
	if f, ok := t[key]; ok {
		return f, true
	}
	f, ok := t[separatorReplacer.Replace(key)]
	return f, ok
}

var separatorReplacer = strings.NewReplacer("_", " ", "-", " ")

// Merge returns a new table with extra entries layered over t.
func (t TranslationTable) Merge(extra TranslationTable) TranslationTable {
	out := make(TranslationTable, len(t)+len(extra))
	maps.Copy(out, t)
	maps.Copy(out, extra)
	return out
}

// LoadTranslations reads a YAML document mapping header spellings to
// canonical field names:
//
//	"Customer First": First Name
//	"Mobile #": Phone
func LoadTranslations(r io.Reader) (TranslationTable, error) {
	var raw map[string]string
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if err == io.EOF {
			return TranslationTable{}, nil
		}
		return nil, fmt.Errorf("decode translations: %w", err)
	}

	t := make(TranslationTable, len(raw))
	for header, name := range raw {
		f, ok := ParseField(name)
		if !ok {
			return nil, fmt.Errorf("translation %q: unknown field %q", header, name)
		}
		key := normalizeHeader(header)
		if key == "" {
			return nil, fmt.Errorf("translation for field %q has an empty header", name)
		}
		t[key] = f
	}
	return t, nil
}

// normalizeHeader folds a raw header into the form used as a table key.
func normalizeHeader(h string) string {
	return strings.ToLower(CleanCell(h))
}
