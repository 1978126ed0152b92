package core

// # Error Codes Reference
//
// User-facing errors carry a code that can be quoted to support staff.
//
// # Header Errors (HDR001-HDR099)
//
//	HDR001 - Missing columns: required columns could not be matched and no
//	         zip can be produced for the rows
//	         Action: Rename the columns or add a translations file
//	         Patterns: "missing required columns"
//
//	HDR002 - Missing zip: no zip column, but state and city are present
//	         Action: Enable zip inference to fill zip codes from city and state
//	         Patterns: "zip column missing"
//
// # Translation Errors (TRN001-TRN099)
//
//	TRN001 - Unknown field in translations file
//	         Patterns: "unknown field"
//
//	TRN002 - Translations file is not valid YAML
//	         Patterns: "decode translations"
//
// # Lookup Errors (LKP001-LKP099)
//
//	LKP001 - Zip lookup not configured
//	         Patterns: "requires a lookup source"
//
//	LKP002 - Zip lookup unavailable
//	         Patterns: "connection refused", "connection reset"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large             Patterns: "file too large"
//	FILE002 - Invalid CSV                Patterns: "invalid csv"
//	FILE003 - Encoding error             Patterns: "encoding error"
//	FILE004 - No file                    Patterns: "no file provided"
//	FILE005 - Empty file                 Patterns: "empty file"
//	FILE006 - Output directory missing   Patterns: "output directory"
//
// # Request Errors (REQ001)
//
//	REQ001 - Invalid run options         Patterns: "invalid options"
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - System busy                 Patterns: "too many runs"
//	RUN002 - Run cancelled mid-file      Patterns: "run cancelled"
//	RUN003 - Request cancelled           Patterns: "context canceled"
//	RUN004 - Request timed out           Patterns: "context deadline exceeded"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches. Check the logs for the technical error.
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Header
	{
		pattern: "missing required columns",
		msg: UserMessage{
			Message: "Required columns are missing from the file",
			Action:  "Rename the columns to First Name, Last Name, Phone, Email, Country and Zip, or add a translations file",
			Code:    "HDR001",
		},
	},
	{
		pattern: "zip column missing",
		msg: UserMessage{
			Message: "The file has no zip column",
			Action:  "Enable zip inference to fill zip codes from city and state",
			Code:    "HDR002",
		},
	},

	// Translations
	{
		pattern: "unknown field",
		msg: UserMessage{
			Message: "The translations file names an unknown field",
			Action:  "Use one of: First Name, Last Name, Phone, Email, Country, Zip, Mobile Device ID, State, City",
			Code:    "TRN001",
		},
	},
	{
		pattern: "decode translations",
		msg: UserMessage{
			Message: "The translations file could not be read",
			Action:  "Check that it is a YAML mapping of header to field name",
			Code:    "TRN002",
		},
	},

	// Lookup
	{
		pattern: "requires a lookup source",
		msg: UserMessage{
			Message: "Zip inference is not configured",
			Action:  "Set ZIP_BACKEND to sqlite, postgres, redis or csv",
			Code:    "LKP001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Zip lookup service is unavailable",
			Action:  "Please try again in a few moments",
			Code:    "LKP002",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Zip lookup connection was interrupted",
			Action:  "Please try again",
			Code:    "LKP002",
		},
	},

	// Files
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure the file is delimited consistently and quotes are balanced",
			Code:    "FILE002",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains invalid characters",
			Action:  "Save the file as UTF-8",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The file is empty",
			Action:  "Please provide a CSV file with a header row",
			Code:    "FILE005",
		},
	},
	{
		pattern: "output directory",
		msg: UserMessage{
			Message: "The output directory does not exist",
			Action:  "Create the directory or choose another output path",
			Code:    "FILE006",
		},
	},

	{
		pattern: "invalid options",
		msg: UserMessage{
			Message: "The selected options are invalid",
			Action:  "Choose either hashing or format only, and use a two-letter region code",
			Code:    "REQ001",
		},
	},

	// Runs
	{
		pattern: "too many runs",
		msg: UserMessage{
			Message: "System is busy processing other files",
			Action:  "Please wait a moment and try again",
			Code:    "RUN001",
		},
	},
	{
		pattern: "run cancelled",
		msg: UserMessage{
			Message: "Processing was cancelled before the end of the file",
			Action:  "The output contains the rows processed so far. Run again for the full file",
			Code:    "RUN002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "RUN003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "RUN004",
		},
	},

	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the first pattern match, or ERR000.
//
// Example:
//
//	msg := MapError(&MissingRequiredFieldsError{Missing: []Field{Email}})
//	// msg.Code == "HDR001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
