package core

import "strings"

// Field is one of the canonical columns understood by the normalization engine.
type Field int

const (
	FieldUnmapped Field = iota
	FirstName
	LastName
	Phone
	Email
	Country
	Zip
	MobileDeviceID
	State
	City
)

// fieldNames holds the display name of every canonical field. These are also
// the header names written to the output file.
var fieldNames = map[Field]string{
	FirstName:      "First Name",
	LastName:       "Last Name",
	Phone:          "Phone",
	Email:          "Email",
	Country:        "Country",
	Zip:            "Zip",
	MobileDeviceID: "Mobile Device ID",
	State:          "State",
	City:           "City",
}

// AllFields lists every canonical field in declaration order.
var AllFields = []Field{FirstName, LastName, Phone, Email, Country, Zip, MobileDeviceID, State, City}

// RequiredFields must be present in every output row.
var RequiredFields = []Field{FirstName, LastName, Phone, Email, Country, Zip}

// OutputFields is the fixed output column order. MobileDeviceID is only
// written when the input maps it.
var OutputFields = []Field{FirstName, LastName, Phone, Email, Country, Zip, MobileDeviceID}

func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return "unmapped"
}

// Emitted reports whether the field can appear in output. State and City are
// only used for zip inference.
func (f Field) Emitted() bool {
	return f != FieldUnmapped && f != State && f != City
}

// ParseField resolves a canonical display name (case-insensitive).
func ParseField(name string) (Field, bool) {
	name = strings.TrimSpace(name)
	for _, f := range AllFields {
		if strings.EqualFold(fieldNames[f], name) {
			return f, true
		}
	}
	return FieldUnmapped, false
}

// OutputHeader returns the header row for the output file.
func OutputHeader(withDeviceID bool) []string {
	header := make([]string, 0, len(OutputFields))
	for _, f := range OutputFields {
		if f == MobileDeviceID && !withDeviceID {
			continue
		}
		header = append(header, f.String())
	}
	return header
}
