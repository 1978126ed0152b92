package core

// warnings.go provides the non-fatal diagnostics produced while normalizing.
//
// A bad cell never aborts a run. Instead the affected field falls back to a
// safe value (original phone, empty country, empty zip) and a Warning is
// recorded. Warnings are collected on the RunResult and logged as they occur.

import "fmt"

// WarningKind classifies a recoverable problem.
type WarningKind string

const (
	WarnDuplicateHeader   WarningKind = "duplicate_header"
	WarnMissingColumn     WarningKind = "missing_column"
	WarnCountryUnresolved WarningKind = "country_unresolved"
	WarnPhoneUnparseable  WarningKind = "phone_unparseable"
	WarnZipNotFound       WarningKind = "zip_not_found"
	WarnZipLookupFailed   WarningKind = "zip_lookup_failed"
	WarnZipAmbiguous      WarningKind = "zip_ambiguous"
)

// Warning describes a single degraded value or header problem.
type Warning struct {
	Row     int         `json:"row,omitempty"` // CSV line number, 0 for header-level warnings
	Field   Field       `json:"-"`
	Kind    WarningKind `json:"kind"`
	Value   string      `json:"value,omitempty"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	if w.Row > 0 {
		return fmt.Sprintf("line %d: %s: %s", w.Row, w.Field, w.Message)
	}
	if w.Field != FieldUnmapped {
		return fmt.Sprintf("%s: %s", w.Field, w.Message)
	}
	return w.Message
}

// Result carries a value together with the warnings raised while producing it.
type Result[T any] struct {
	Value    T
	Warnings []Warning
}

// Warn appends a warning to the result.
func (r *Result[T]) Warn(w Warning) {
	r.Warnings = append(r.Warnings, w)
}

// OK reports whether the value was produced without warnings.
func (r Result[T]) OK() bool {
	return len(r.Warnings) == 0
}
