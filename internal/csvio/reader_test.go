package csvio

import (
	"errors"
	"io"
	"slices"
	"strings"
	"testing"
)

func TestSniff(t *testing.T) {
	tests := []struct {
		name   string
		sample string
		want   rune
	}{
		{name: "comma", sample: "a,b,c\n1,2,3\n", want: ','},
		{name: "semicolon", sample: "a;b;c\n1;2;3\n", want: ';'},
		{name: "tab", sample: "a\tb\tc\n1\t2\t3\n", want: '\t'},
		{name: "pipe", sample: "a|b|c\n1|2|3\n", want: '|'},
		{name: "commas inside quotes ignored", sample: "\"x, y\";b;c\n\"1,2\";3;4\n", want: ';'},
		{name: "single column defaults to comma", sample: "email\na@b.c\n", want: ','},
		{name: "empty defaults to comma", sample: "", want: ','},
		{name: "no trailing newline", sample: "a;b;c", want: ';'},
		{name: "crlf", sample: "a|b\r\n1|2\r\n", want: '|'},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff([]byte(tt.sample)); got != tt.want {
				t.Errorf("Sniff(%q) = %q, want %q", tt.sample, got, tt.want)
			}
		})
	}
}

func TestReader_BOMAndDelimiter(t *testing.T) {
	input := "\xEF\xBB\xBFFirst Name;Email\nDorothy;d@e.city\n"
	r, err := NewReader(strings.NewReader(input))
	if err != nil {
		t.Fatalf("NewReader error: %v", err)
	}

	header, err := r.ReadHeader()
	if err != nil {
		t.Fatalf("ReadHeader error: %v", err)
	}
	if want := []string{"First Name", "Email"}; !slices.Equal(header, want) {
		t.Errorf("header = %q, want %q", header, want)
	}
	if r.Delimiter() != ';' {
		t.Errorf("Delimiter = %q, want ';'", r.Delimiter())
	}

	row, err := r.Read()
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if want := []string{"Dorothy", "d@e.city"}; !slices.Equal(row, want) {
		t.Errorf("row = %q, want %q", row, want)
	}

	if _, err := r.Read(); !errors.Is(err, io.EOF) {
		t.Errorf("Read at end = %v, want io.EOF", err)
	}
	if got := r.BytesRead(); got != int64(len(input)) {
		t.Errorf("BytesRead = %d, want %d", got, len(input))
	}
}

func TestReader_InvalidUTF8Replaced(t *testing.T) {
	r, err := NewReader(strings.NewReader("name\nbad\xffbyte\n"))
	if err != nil {
		t.Fatalf("NewReader error: %v", err)
	}
	if _, err := r.ReadHeader(); err != nil {
		t.Fatalf("ReadHeader error: %v", err)
	}
	row, err := r.Read()
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if row[0] != "bad�byte" {
		t.Errorf("row[0] = %q, want replacement character", row[0])
	}
}

func TestReader_RaggedRows(t *testing.T) {
	r := NewReaderWithDelimiter(strings.NewReader("a,b,c\n1,2\n1,2,3,4\n"), ',')
	for i := 0; i < 3; i++ {
		if _, err := r.Read(); err != nil {
			t.Fatalf("Read #%d error: %v", i, err)
		}
	}
}

func TestReader_EmptyFile(t *testing.T) {
	r, err := NewReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("NewReader error: %v", err)
	}
	if _, err := r.ReadHeader(); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("ReadHeader error = %v, want ErrEmptyFile", err)
	}
}
