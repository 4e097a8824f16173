package normalize

import "strings"

// maxPrefixLen caps the prefix lengths the index looks up. Prefixes longer
// than this never match, so MatchPrefix truncates to the same bound.
const maxPrefixLen = 10

func isAlnum(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// CleanNumber strips every character that is not an ASCII letter or digit.
// Dialed numbers arrive with separators, "+" signs and URI escapes; matching
// and rewriting always operate on the cleaned form.
func CleanNumber(number string) string {
	var b strings.Builder
	b.Grow(len(number))
	for i := 0; i < len(number); i++ {
		if isAlnum(number[i]) {
			b.WriteByte(number[i])
		}
	}
	return b.String()
}

// MatchPrefix extracts the literal prefix of a match pattern: the leading run
// of ASCII letters and digits after stripping a leading "^" anchor. The
// extraction is conservative on purpose: it stops at the first regex
// metacharacter, so the result is always a true literal prefix of every
// string the pattern can match. It must be recomputed whenever the pattern
// changes, or the prefix index silently skips the rule.
func MatchPrefix(matchRegex string) string {
	s := strings.TrimPrefix(matchRegex, "^")
	i := 0
	for i < len(s) && isAlnum(s[i]) {
		i++
	}
	if i > maxPrefixLen {
		i = maxPrefixLen
	}
	return s[:i]
}

// PrefixSet returns every prefix of number with length 0 through
// min(10, len(number)), empty prefix included. A rule or DID is a candidate
// for number exactly when its stored prefix is a member of this set.
func PrefixSet(number string) []string {
	n := len(number)
	if n > maxPrefixLen {
		n = maxPrefixLen
	}
	prefixes := make([]string, 0, n+1)
	for i := 0; i <= n; i++ {
		prefixes = append(prefixes, number[:i])
	}
	return prefixes
}
