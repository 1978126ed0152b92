package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotNormalized is returned when the hashing pass is handed a record that
// did not come out of the normalizer.
var ErrNotNormalized = errors.New("record has not been normalized")

// ErrNoZipSource is returned when zip inference is requested without a lookup source.
var ErrNoZipSource = errors.New("zip inference requires a lookup source")

// MissingRequiredFieldsError aborts a run when required columns cannot be
// resolved and no zip can be produced for the rows.
type MissingRequiredFieldsError struct {
	Missing []Field
}

func (e *MissingRequiredFieldsError) Error() string {
	names := make([]string, len(e.Missing))
	for i, f := range e.Missing {
		names[i] = f.String()
	}
	return fmt.Sprintf("missing required columns: %s", strings.Join(names, ", "))
}

// MissingZipError is returned when the file has no zip column but does have
// state and city columns, and zip inference was not enabled. Callers may ask
// the user and rerun with inference turned on.
type MissingZipError struct {
	Mapping HeaderMapping
}

func (e *MissingZipError) Error() string {
	return "zip column missing: state and city columns are available for zip inference"
}
