package contact

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxNameLen    = 100
	maxEmailLen   = 254
	maxSubjectLen = 200
	maxMessageLen = 5000
)

var ErrInvalidSubmission = errors.New("invalid contact submission")

// sanitizeText trims the value and drops control characters and angle brackets.
// Newlines and tabs are kept only when multiline is set.
func sanitizeText(value string, multiline bool) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '<' || r == '>':
			return -1
		case multiline && (r == '\n' || r == '\t'):
			return r
		case r == '\r':
			return -1
		case unicode.IsControl(r):
			if r == '\n' || r == '\t' {
				return ' '
			}
			return -1
		}
		return r
	}, value)
	return strings.TrimSpace(cleaned)
}

func checkLen(field, value string, required bool, maxLen int) error {
	if required && value == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidSubmission, field)
	}
	if utf8.RuneCountInString(value) > maxLen {
		return fmt.Errorf("%w: %s must be at most %d characters", ErrInvalidSubmission, field, maxLen)
	}
	return nil
}

// Sanitize cleans every field of the submission and validates the result.
// The returned error wraps ErrInvalidSubmission and names the offending field.
func Sanitize(s Submission) (Submission, error) {
	if !utf8.ValidString(s.Name + s.Email + s.Subject + s.Message) {
		return Submission{}, fmt.Errorf("%w: invalid utf-8", ErrInvalidSubmission)
	}

	clean := Submission{
		Name:    sanitizeText(s.Name, false),
		Email:   strings.ToLower(sanitizeText(s.Email, false)),
		Subject: sanitizeText(s.Subject, false),
		Message: sanitizeText(s.Message, true),
	}

	if err := checkLen("name", clean.Name, true, maxNameLen); err != nil {
		return Submission{}, err
	}
	if err := checkLen("email", clean.Email, true, maxEmailLen); err != nil {
		return Submission{}, err
	}
	if err := checkLen("subject", clean.Subject, false, maxSubjectLen); err != nil {
		return Submission{}, err
	}
	if err := checkLen("message", clean.Message, true, maxMessageLen); err != nil {
		return Submission{}, err
	}

	// plain address only, no display names
	addr, err := mail.ParseAddress(clean.Email)
	if err != nil || addr.Address != clean.Email || !strings.Contains(addr.Address[strings.LastIndex(addr.Address, "@"):], ".") {
		return Submission{}, fmt.Errorf("%w: email is not valid", ErrInvalidSubmission)
	}

	return clean, nil
}
