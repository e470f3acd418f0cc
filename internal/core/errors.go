package core

// errors.go defines the error taxonomy for the import workflow and the
// mapping from internal errors to user-facing messages.
//
// SchemaError, ErrSessionNotFound and CommitError are terminal for the
// current operation. Validation problems are collected per row (see
// validate.go) and never returned as errors, so the review screen stays
// renderable with inline messages.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mvanek/userimport/internal/xlsx"
)

// ErrSessionNotFound is returned when no staged import exists for a token.
var ErrSessionNotFound = errors.New("import session not found")

// ErrEmptySheet is returned when the spreadsheet has a header but no
// user rows.
var ErrEmptySheet = errors.New("spreadsheet does not contain any user rows")

// ErrValidationFailed blocks a commit while rows still carry validation
// errors.
var ErrValidationFailed = errors.New("resolve the highlighted errors before committing")

// SchemaError reports required header columns missing from the sheet.
// It enumerates every missing column, not just the first.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// CommitError indicates that the commit aborted: a referenced account
// vanished mid-flow or a store write failed. Rows written before the
// failure remain committed.
type CommitError struct {
	Email string
	Msg   string
	Err   error
}

func (e *CommitError) Error() string {
	msg := e.Msg
	if e.Email != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Email)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *CommitError) Unwrap() error { return e.Err }

// UserMessage is a user-facing rendering of an error, with a stable code
// that can be quoted to support staff.
type UserMessage struct {
	Code    string
	Message string
}

// MapError maps an internal error to a user-facing message.
func MapError(err error) UserMessage {
	var decodeErr *xlsx.DecodeError
	var schemaErr *SchemaError
	var commitErr *CommitError

	switch {
	case errors.As(err, &decodeErr):
		return UserMessage{Code: "IMP001", Message: "The uploaded file could not be read as an XLSX spreadsheet."}
	case errors.As(err, &schemaErr):
		return UserMessage{Code: "IMP002", Message: schemaErr.Error()}
	case errors.Is(err, ErrEmptySheet):
		return UserMessage{Code: "IMP003", Message: "The spreadsheet does not contain any user rows."}
	case errors.Is(err, ErrSessionNotFound):
		return UserMessage{Code: "IMP004", Message: "The import session could not be found. It may have been committed or abandoned."}
	case errors.Is(err, ErrValidationFailed):
		return UserMessage{Code: "IMP005", Message: "Please resolve the highlighted errors before loading users."}
	case errors.As(err, &commitErr):
		return UserMessage{Code: "IMP006", Message: "The import stopped before all rows were written: " + commitErr.Error()}
	default:
		return UserMessage{Code: "IMP000", Message: "An unexpected error occurred while importing users."}
	}
}
