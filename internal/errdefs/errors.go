// Package errdefs defines the error kinds shared across the crawler.
//
// Each kind carries enough context to be logged to the scrape audit
// trail and classified without string matching. Callers use errors.As
// with the typed helpers below.
package errdefs

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input: a bad URL, a missing
// required field, or an unknown enum value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("validation: %s", e.Reason)
}

// Validationf builds a ValidationError with a formatted reason.
func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IntegrityError reports a referential integrity failure: a missing
// parent row or a constraint violation inside the store.
type IntegrityError struct {
	Table  string
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity: %s: %s", e.Table, e.Reason)
}

// Integrityf builds an IntegrityError with a formatted reason.
func Integrityf(table, format string, args ...any) error {
	return &IntegrityError{Table: table, Reason: fmt.Sprintf(format, args...)}
}

// SchemaDriftError reports that a fetched page no longer matches the
// structural contract declared for its entity kind.
type SchemaDriftError struct {
	EntityKind string
	AlertKind  string
	Detail     string
}

func (e *SchemaDriftError) Error() string {
	return fmt.Sprintf("schema drift: %s: %s: %s", e.EntityKind, e.AlertKind, e.Detail)
}

// TransportError reports a network failure that survived the retry
// policy. URL and the final attempt's error are preserved.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsIntegrity reports whether err is an IntegrityError.
func IsIntegrity(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

// IsSchemaDrift reports whether err is a SchemaDriftError.
func IsSchemaDrift(err error) bool {
	var se *SchemaDriftError
	return errors.As(err, &se)
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
