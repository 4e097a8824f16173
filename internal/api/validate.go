package api

import (
	"regexp"
	"unicode/utf8"
)

// maxNameLen is the maximum length for name fields (tenant names, profile names).
const maxNameLen = 256

// maxHostLen is the maximum length for hostnames and domains.
const maxHostLen = 253

// maxRegexLen is the maximum length for stored patterns and replacements.
const maxRegexLen = 256

// domainRe validates registered domain strings: labels of letters, digits
// and hyphens separated by dots. Structural check only.
var domainRe = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9\-]*[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9\-]*[a-zA-Z0-9])?)*$`)

// validateStringLen checks that a string does not exceed maxLen characters.
// Returns an error message if invalid, empty string if OK.
func validateStringLen(field, value string, maxLen int) string {
	if utf8.RuneCountInString(value) > maxLen {
		return field + " exceeds maximum length"
	}
	return ""
}

// validateRequiredStringLen checks that a non-empty string does not exceed maxLen.
func validateRequiredStringLen(field, value string, maxLen int) string {
	if value == "" {
		return field + " is required"
	}
	return validateStringLen(field, value, maxLen)
}

// validateDomain checks a domain string structurally.
func validateDomain(value string) string {
	if msg := validateRequiredStringLen("domain", value, maxHostLen); msg != "" {
		return msg
	}
	if !domainRe.MatchString(value) {
		return "domain is not a valid hostname"
	}
	return ""
}

// validatePattern checks that a stored regex compiles. Rejecting broken
// patterns at admin time keeps data-integrity errors off the signaling path.
func validatePattern(field, value string) string {
	if msg := validateRequiredStringLen(field, value, maxRegexLen); msg != "" {
		return msg
	}
	if _, err := regexp.Compile(value); err != nil {
		return field + " is not a valid regular expression"
	}
	return ""
}
