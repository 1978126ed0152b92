package core

// header.go resolves raw CSV header rows into a HeaderMapping.
//
// Resolution per column, first rule that matches wins:
//  1. TranslationTable entry (case and whitespace insensitive)
//  2. snake_case / kebab-case header converted to title case that equals a
//     canonical field name ("first_name" -> "First Name")
//  3. otherwise the column is dropped
//
// When two columns resolve to the same field the first one is kept.

import (
	"fmt"
	"strings"
)

// HeaderMapping maps raw column positions to canonical fields.
// It is built once per file by HeaderResolver and never modified.
type HeaderMapping struct {
	columns []Field       // index: raw column position
	index   map[Field]int // canonical field -> raw column position
	raw     []string
}

// Column returns the raw column position for a field.
func (m HeaderMapping) Column(f Field) (int, bool) {
	pos, ok := m.index[f]
	return pos, ok
}

// Has reports whether some column maps to f.
func (m HeaderMapping) Has(f Field) bool {
	_, ok := m.index[f]
	return ok
}

// FieldAt returns the field for a raw column position.
func (m HeaderMapping) FieldAt(pos int) Field {
	if pos < 0 || pos >= len(m.columns) {
		return FieldUnmapped
	}
	return m.columns[pos]
}

// Len returns the number of raw columns in the header.
func (m HeaderMapping) Len() int {
	return len(m.columns)
}

// RawHeader returns the header string of a column as it appeared in the file.
func (m HeaderMapping) RawHeader(pos int) string {
	if pos < 0 || pos >= len(m.raw) {
		return ""
	}
	return m.raw[pos]
}

// Missing returns the required fields that no column maps to.
func (m HeaderMapping) Missing() []Field {
	var missing []Field
	for _, f := range RequiredFields {
		if !m.Has(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// CanInferZip reports whether state and city columns are both mapped.
func (m HeaderMapping) CanInferZip() bool {
	return m.Has(State) && m.Has(City)
}

// NeedsZipInference reports whether zips must come from the lookup.
func (m HeaderMapping) NeedsZipInference() bool {
	return !m.Has(Zip) && m.CanInferZip()
}

// Record extracts the mapped values of a raw row. Every mapped field is
// present; columns missing from a short row read as "".
func (m HeaderMapping) Record(row []string) Record {
	rec := make(Record, len(m.index))
	for f, pos := range m.index {
		if pos < len(row) {
			rec[f] = row[pos]
		} else {
			rec[f] = ""
		}
	}
	return rec
}

// HeaderResolver maps raw header rows to canonical fields.
type HeaderResolver struct {
	table TranslationTable
}

// NewHeaderResolver creates a resolver backed by the given translation table.
func NewHeaderResolver(table TranslationTable) *HeaderResolver {
	if table == nil {
		table = DefaultTranslations()
	}
	return &HeaderResolver{table: table}
}

// Resolve builds the mapping for a header row.
//
// It fails with *MissingRequiredFieldsError only when required columns are
// missing and the rows also have no way to get a zip code (no zip column and
// no state+city pair). Other missing required columns are reported as warnings.
func (r *HeaderResolver) Resolve(header []string) (HeaderMapping, []Warning, error) {
	m := HeaderMapping{
		columns: make([]Field, len(header)),
		index:   make(map[Field]int, len(AllFields)),
		raw:     append([]string(nil), header...),
	}
	var warnings []Warning

	for pos, h := range header {
		f := r.match(h)
		if f == FieldUnmapped {
			continue
		}
		if first, dup := m.index[f]; dup {
			warnings = append(warnings, Warning{
				Field: f,
				Kind:  WarnDuplicateHeader,
				Value: h,
				Message: fmt.Sprintf("column %q also maps to %s, keeping column %q",
					h, f, header[first]),
			})
			continue
		}
		m.columns[pos] = f
		m.index[f] = pos
	}

	missing := m.Missing()
	zipMissing := !m.Has(Zip)
	var otherMissing []Field
	for _, f := range missing {
		if f != Zip {
			otherMissing = append(otherMissing, f)
		}
	}

	if len(otherMissing) > 0 && zipMissing && !m.CanInferZip() {
		return m, warnings, &MissingRequiredFieldsError{Missing: missing}
	}

	if zipMissing && !m.CanInferZip() {
		otherMissing = append(otherMissing, Zip)
	}
	for _, f := range otherMissing {
		warnings = append(warnings, Warning{
			Field:   f,
			Kind:    WarnMissingColumn,
			Message: "no column maps to this field, values will be empty",
		})
	}

	return m, warnings, nil
}

func (r *HeaderResolver) match(header string) Field {
	if f, ok := r.table.Lookup(header); ok {
		return f
	}
	if f, ok := ParseField(snakeToTitle(CleanCell(header))); ok {
		return f
	}
	return FieldUnmapped
}

// snakeToTitle converts "first_name" or "first-name" to "First Name".
func snakeToTitle(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	for i, w := range words {
		w = strings.ToLower(w)
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// CleanCell removes common CSV artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}
