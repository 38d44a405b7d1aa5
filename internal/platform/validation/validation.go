// Package validation holds the field rules shared by the server services and
// the referral form validator in the API client.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/multierr"
)

const (
	MaxNameLength          = 255
	MaxClinicalNotesLength = 2000
	MinClinicalNotesLength = 10
	MinPasswordLength      = 8
)

var (
	EmailPattern     = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	PhonePattern     = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)
	NHSNumberPattern = regexp.MustCompile(`^\d{10}$`)
	TimePattern      = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
	DatePattern      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// FieldError is a rejected input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Errors collects field errors. The zero value is ready to use.
type Errors struct {
	err error
}

func (v *Errors) Add(field, format string, args ...interface{}) {
	v.err = multierr.Append(v.err, &FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v *Errors) Required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "is required")
		return false
	}
	return true
}

func (v *Errors) MaxLength(field, value string, max int) {
	if utf8.RuneCountInString(value) > max {
		v.Add(field, "must be at most %d characters", max)
	}
}

// Match checks value against re when value is non-empty.
func (v *Errors) Match(field, value string, re *regexp.Regexp, what string) {
	if value != "" && !re.MatchString(value) {
		v.Add(field, "must be a valid %s", what)
	}
}

// OneOf checks value is a key of allowed when value is non-empty.
func OneOf[T ~string](v *Errors, field string, value T, allowed map[T]bool) {
	if value != "" && !allowed[value] {
		v.Add(field, "invalid value %q", string(value))
	}
}

// Err returns the combined errors, or nil.
func (v *Errors) Err() error {
	return v.err
}

// Fields flattens err into field -> message, keeping the first message per field.
func Fields(err error) map[string]string {
	out := map[string]string{}
	for _, e := range multierr.Errors(err) {
		var fe *FieldError
		if errors.As(e, &fe) {
			if _, ok := out[fe.Field]; !ok {
				out[fe.Field] = fe.Message
			}
		}
	}
	return out
}

// IsValidation reports whether err carries at least one FieldError.
func IsValidation(err error) bool {
	for _, e := range multierr.Errors(err) {
		var fe *FieldError
		if errors.As(e, &fe) {
			return true
		}
	}
	return false
}

// NormalizePhone strips spaces, dashes and brackets before pattern matching.
func NormalizePhone(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, s)
}

// NormalizeNHSNumber strips spaces and dashes.
func NormalizeNHSNumber(s string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(s)
}
