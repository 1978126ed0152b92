package core

import "testing"

func TestCountryNormalizer_Normalize(t *testing.T) {
	c := NewCountryNormalizer()

	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{name: "english name", input: "United States", want: "US", wantOK: true},
		{name: "lowercase name", input: "germany", want: "DE", wantOK: true},
		{name: "surrounding whitespace", input: "  France  ", want: "FR", wantOK: true},
		{name: "iso2 idempotent", input: "US", want: "US", wantOK: true},
		{name: "iso2 lowercase", input: "gb", want: "GB", wantOK: true},
		{name: "iso3", input: "USA", want: "US", wantOK: true},
		{name: "iso3 other", input: "deu", want: "DE", wantOK: true},
		{name: "numeric m49", input: "840", want: "US", wantOK: true},
		{name: "dotted abbreviation", input: "U.S.A.", want: "US", wantOK: true},
		{name: "historical name", input: "Burma", want: "MM", wantOK: true},
		{name: "alternate name", input: "Great Britain", want: "GB", wantOK: true},
		{name: "uk alias", input: "UK", want: "GB", wantOK: true},
		{name: "holland", input: "Holland", want: "NL", wantOK: true},
		{name: "accented name", input: "Côte d’Ivoire", want: "CI", wantOK: true},
		{name: "unaccented name", input: "cote d'ivoire", want: "CI", wantOK: true},
		{name: "ampersand name", input: "Trinidad & Tobago", want: "TT", wantOK: true},
		{name: "empty", input: "", want: "", wantOK: false},
		{name: "unknown name", input: "Atlantis", want: "", wantOK: false},
		{name: "unknown code", input: "ZZ", want: "", wantOK: false},
		{name: "continent is not a country", input: "150", want: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.Normalize(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Normalize(%q) = %q, %v, want %q, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCountryNormalizer_Idempotent(t *testing.T) {
	c := NewCountryNormalizer()
	for _, input := range []string{"United Kingdom", "Japan", "brasil", "Brazil", "south korea"} {
		first, ok := c.Normalize(input)
		if !ok {
			continue
		}
		second, ok := c.Normalize(first)
		if !ok || second != first {
			t.Errorf("Normalize(Normalize(%q)) = %q, want %q", input, second, first)
		}
	}
}
