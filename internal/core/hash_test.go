package core

import (
	"errors"
	"testing"
)

func TestHashValue(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := HashValue("abc"); got != want {
		t.Errorf("HashValue(abc) = %q, want %q", got, want)
	}
}

func TestHashRecord(t *testing.T) {
	n := NewNormalizer(NormalizerOptions{DefaultRegion: "US"})
	res := n.Normalize(Record{
		FirstName: "Dorothy",
		LastName:  "Gale",
		Phone:     "+1 555-362-2520",
		Email:     "DGale@Emerald.City",
		Country:   "United States",
		Zip:       "",
	}, 2)

	h, err := HashRecord(res.Value)
	if err != nil {
		t.Fatalf("HashRecord error: %v", err)
	}

	tests := []struct {
		field Field
		want  string
	}{
		{FirstName, HashValue("dorothy")},
		{LastName, HashValue("gale")},
		{Phone, HashValue("+15553622520")},
		{Email, HashValue("dgale@emerald.city")},
		{Country, HashValue("US")},
		{Zip, ""},
	}
	for _, tt := range tests {
		if got := h.Get(tt.field); got != tt.want {
			t.Errorf("hashed %s = %q, want %q", tt.field, got, tt.want)
		}
	}
	if got := len(h.Row()); got != 6 {
		t.Errorf("len(Row) = %d, want 6", got)
	}
	if got := h.hashedCount(); got != 5 {
		t.Errorf("hashedCount = %d, want 5", got)
	}
}

func TestHashRecord_RejectsRawRecord(t *testing.T) {
	_, err := HashRecord(NormalizedRecord{})
	if !errors.Is(err, ErrNotNormalized) {
		t.Errorf("HashRecord(zero value) error = %v, want ErrNotNormalized", err)
	}
}
