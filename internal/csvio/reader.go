// Package csvio reads and writes the CSV files handled by the normalizer.
//
// Input files come from spreadsheets and CRM exports, so the reader is
// lenient: it strips byte order marks (UTF-8 and UTF-16), replaces invalid
// UTF-8 with U+FFFD, sniffs the delimiter and allows ragged rows.
package csvio

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrEmptyFile is returned by ReadHeader when the input has no rows.
var ErrEmptyFile = errors.New("empty file: no header row")

// Delimiters are the separators considered when sniffing, in preference order.
var Delimiters = []rune{',', ';', '\t', '|'}

// sniffLines is how many lines are inspected to pick a delimiter.
const sniffLines = 10

// sniffBytes bounds the prefix read for sniffing.
const sniffBytes = 64 * 1024

// Reader yields CSV rows from a decoded, delimiter-sniffed stream.
type Reader struct {
	csv       *csv.Reader
	counter   *countingReader
	delimiter rune
}

// NewReader wraps r. The delimiter is detected from the first lines.
func NewReader(r io.Reader) (*Reader, error) {
	counter := &countingReader{r: r}
	decoded := transform.NewReader(counter, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	br := bufio.NewReaderSize(decoded, sniffBytes)
	prefix, err := br.Peek(sniffBytes)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("encoding error: %w", err)
	}

	delim := Sniff(prefix)
	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	return &Reader{csv: cr, counter: counter, delimiter: delim}, nil
}

// NewReaderWithDelimiter wraps r with a fixed delimiter.
func NewReaderWithDelimiter(r io.Reader, delim rune) *Reader {
	counter := &countingReader{r: r}
	decoded := transform.NewReader(counter, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	cr := csv.NewReader(decoded)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	return &Reader{csv: cr, counter: counter, delimiter: delim}
}

// Delimiter returns the field separator in use.
func (r *Reader) Delimiter() rune {
	return r.delimiter
}

// BytesRead returns the number of raw bytes consumed so far.
func (r *Reader) BytesRead() int64 {
	return r.counter.n
}

// ReadHeader reads the first row. An input without rows yields ErrEmptyFile.
func (r *Reader) ReadHeader() ([]string, error) {
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	return header, err
}

// Read returns the next row, or io.EOF.
func (r *Reader) Read() ([]string, error) {
	row, err := r.csv.Read()
	if err == nil || errors.Is(err, io.EOF) {
		return row, err
	}
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}
	return nil, err
}

// Sniff picks the delimiter from a sample of the file. The winner is the
// candidate that appears, outside quotes, the same non-zero number of times
// on the most lines. Ties go to the earlier entry in Delimiters; a sample
// without any candidate yields ','.
func Sniff(sample []byte) rune {
	lines := sampleLines(sample)
	if len(lines) == 0 {
		return ','
	}

	best, bestScore := ',', 0
	for _, d := range Delimiters {
		counts := make(map[int]int)
		for _, line := range lines {
			if n := countOutsideQuotes(line, d); n > 0 {
				counts[n]++
			}
		}
		score := 0
		for _, c := range counts {
			score = max(score, c)
		}
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	return best
}

// sampleLines returns up to sniffLines complete, non-blank lines.
func sampleLines(sample []byte) [][]byte {
	var lines [][]byte
	for len(sample) > 0 && len(lines) < sniffLines {
		i := bytes.IndexByte(sample, '\n')
		if i < 0 {
			// A trailing partial line is only trusted if it is all we have.
			if len(lines) == 0 {
				lines = append(lines, sample)
			}
			break
		}
		if line := bytes.TrimRight(sample[:i], "\r"); len(bytes.TrimSpace(line)) > 0 {
			lines = append(lines, line)
		}
		sample = sample[i+1:]
	}
	return lines
}

func countOutsideQuotes(line []byte, d rune) int {
	n := 0
	quoted := false
	for _, r := range string(line) {
		switch {
		case r == '"':
			quoted = !quoted
		case r == d && !quoted:
			n++
		}
	}
	return n
}

// countingReader tracks bytes read for progress reporting.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
