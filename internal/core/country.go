package core

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// countryAliases holds alternate and historical names that the English
// region names do not cover. Keys are folded with foldCountry.
var countryAliases = map[string]string{
	"usa":                              "US",
	"us of a":                          "US",
	"united states of america":         "US",
	"america":                          "US",
	"uk":                               "GB",
	"great britain":                    "GB",
	"britain":                          "GB",
	"england":                          "GB",
	"scotland":                         "GB",
	"wales":                            "GB",
	"northern ireland":                 "GB",
	"holland":                          "NL",
	"the netherlands":                  "NL",
	"south korea":                      "KR",
	"republic of korea":                "KR",
	"korea, republic of":               "KR",
	"korea":                            "KR",
	"north korea":                      "KP",
	"russia":                           "RU",
	"russian federation":               "RU",
	"czech republic":                   "CZ",
	"ivory coast":                      "CI",
	"cote d'ivoire":                    "CI",
	"burma":                            "MM",
	"swaziland":                        "SZ",
	"macedonia":                        "MK",
	"vatican":                          "VA",
	"vatican city":                     "VA",
	"holy see":                         "VA",
	"persia":                           "IR",
	"iran, islamic republic of":        "IR",
	"zaire":                            "CD",
	"drc":                              "CD",
	"democratic republic of the congo": "CD",
	"republic of the congo":            "CG",
	"east timor":                       "TL",
	"cape verde":                       "CV",
	"ceylon":                           "LK",
	"siam":                             "TH",
	"formosa":                          "TW",
	"viet nam":                         "VN",
	"laos":                             "LA",
	"syria":                            "SY",
	"uae":                              "AE",
	"emirates":                         "AE",
	"turkey":                           "TR",
	"turkiye":                          "TR",
	"palestine":                        "PS",
	"macau":                            "MO",
	"brunei":                           "BN",
	"micronesia":                       "FM",
	"saint kitts and nevis":            "KN",
	"saint lucia":                      "LC",
	"saint vincent and the grenadines": "VC",
	"trinidad":                         "TT",
	"bosnia":                           "BA",
	"sao tome and principe":            "ST",
	"deutschland":                      "DE",
	"espana":                           "ES",
	"mexico":                           "MX",
	"united kingdom of great britain and northern ireland": "GB",
}

// CountryNormalizer maps country names and codes to ISO 3166-1 alpha-2 codes.
//
// The region universe is every region the phone metadata knows about, so any
// code it returns can also be used as a phone parsing region.
type CountryNormalizer struct {
	names   map[string]string
	regions map[string]bool
}

// NewCountryNormalizer builds the name table from the English region names
// shipped with golang.org/x/text plus the alias table.
func NewCountryNormalizer() *CountryNormalizer {
	regions := phonenumbers.GetSupportedRegions()
	namer := display.English.Regions()

	names := make(map[string]string, len(regions)+len(countryAliases))
	for code := range regions {
		r, err := language.ParseRegion(code)
		if err != nil {
			continue
		}
		if name := foldCountry(namer.Name(r)); name != "" {
			names[name] = code
		}
	}
	for alias, code := range countryAliases {
		names[foldCountry(alias)] = code
	}

	return &CountryNormalizer{names: names, regions: regions}
}

// Normalize returns the ISO2 code for raw, or "" and false if it cannot be
// resolved. ISO2 input maps to itself.
func (c *CountryNormalizer) Normalize(raw string) (string, bool) {
	s := foldCountry(raw)
	if s == "" {
		return "", false
	}
	if code, ok := c.names[s]; ok {
		return code, true
	}

	// ISO2, ISO3 and UN M.49 numeric codes.
	if n := len(s); n == 2 || n == 3 {
		r, err := language.ParseRegion(strings.ToUpper(s))
		if err == nil && r.IsCountry() {
			if code := r.String(); c.regions[code] {
				return code, true
			}
		}
	}
	return "", false
}

var countryReplacer = strings.NewReplacer(".", "", "&", " and ", "’", "'", "(", " ", ")", " ")

// foldCountry lowercases, strips accents and punctuation noise so that
// "U.S.A." and "usa", or "Côte d’Ivoire" and "cote d'ivoire" compare equal.
func foldCountry(s string) string {
	s = NormalizePlace(s)
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(countryReplacer.Replace(s)), " ")
}
