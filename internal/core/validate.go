package core

// validate.go checks staged records before commit. Errors are collected
// per row, keyed by row number, so the review screen can render every
// problem inline; nothing here is returned as a hard failure.
//
// Validation runs on every submitted edit and once more, read-only, on the
// initial display so pre-existing duplicates are visible immediately.

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	maxNameLength  = 100
	maxEmailLength = 150
)

// ValidationError describes a single per-field validation problem.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

// Validate applies per-row and cross-row rules to the whole batch and
// returns errors keyed by row number. An empty map means the batch is
// ready to commit.
func Validate(records []Record) map[int][]ValidationError {
	errs := make(map[int][]ValidationError)

	addErr := func(rowNumber int, field, message string) {
		errs[rowNumber] = append(errs[rowNumber], ValidationError{Field: field, Message: message})
	}

	for _, rec := range records {
		if rec.RowNumber <= 0 {
			addErr(rec.RowNumber, "rowNumber", "row number is missing")
		}

		validateName(rec.RowNumber, "firstName", rec.FirstName, addErr)
		validateName(rec.RowNumber, "lastName", rec.LastName, addErr)

		switch {
		case rec.Email == "":
			addErr(rec.RowNumber, "email", "email is required")
		case utf8.RuneCountInString(rec.Email) > maxEmailLength:
			addErr(rec.RowNumber, "email", "email can have a maximum length of 150 characters")
		case !validEmail(rec.Email):
			addErr(rec.RowNumber, "email", "email is not a valid address")
		}

		for _, id := range rec.GroupIDs {
			if id < 0 {
				addErr(rec.RowNumber, "groupIds", "group id must be a non-negative integer")
				break
			}
		}
	}

	// Cross-row rule: every row sharing a duplicated email is marked,
	// not just later occurrences.
	counts := make(map[string]int, len(records))
	for _, rec := range records {
		email := strings.ToLower(rec.Email)
		if email != "" {
			counts[email]++
		}
	}
	for _, rec := range records {
		email := strings.ToLower(rec.Email)
		if email != "" && counts[email] > 1 {
			addErr(rec.RowNumber, "email", "duplicate email in the uploaded list")
		}
	}

	return errs
}

func validateName(rowNumber int, field, value string, addErr func(int, string, string)) {
	switch {
	case value == "":
		addErr(rowNumber, field, field+" is required")
	case utf8.RuneCountInString(value) > maxNameLength:
		addErr(rowNumber, field, "names can have a maximum length of 100 characters")
	}
}

// validEmail reports whether value is a syntactically valid bare address.
func validEmail(value string) bool {
	addr, err := mail.ParseAddress(value)
	if err != nil {
		return false
	}
	// Reject display-name forms like "Ada <ada@example.com>"; only the
	// bare address is acceptable in the email column.
	return addr.Address == value
}
