package auth

import (
	"regexp"
	"strings"
)

// IdentifierKind is the result of classifying a login identifier.
type IdentifierKind int

const (
	// IdentifierEmail matches local@domain.tld shape.
	IdentifierEmail IdentifierKind = iota
	// IdentifierPhone matches E.164 shape.
	IdentifierPhone
	// IdentifierAmbiguous matches neither; lookup falls back to email OR
	// phone equality.
	IdentifierAmbiguous
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
)

// ClassifyIdentifier decides whether a login identifier is an email address,
// an E.164 phone number, or neither.
func ClassifyIdentifier(identifier string) IdentifierKind {
	switch {
	case emailPattern.MatchString(identifier):
		return IdentifierEmail
	case phonePattern.MatchString(identifier):
		return IdentifierPhone
	default:
		return IdentifierAmbiguous
	}
}

// ValidEmail reports whether the value has email shape.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidPhone reports whether the value is an E.164 phone number.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// NormalizeEmail normalizes an email address by lowercasing and trimming.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
