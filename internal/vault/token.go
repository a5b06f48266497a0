package vault

import (
	"regexp"
	"strings"
)

// Reference tokens look like [[vault:v-1a2b3c4d]], matched case-insensitively
// anywhere in text. A legacy bare identifier ("v-1a2b3c4d" with no brackets)
// is still accepted wherever a single reference is expected.
var (
	tokenPattern  = regexp.MustCompile(`(?i)\[\[vault:([a-z0-9][a-z0-9_-]*)\]\]`)
	tokenExact    = regexp.MustCompile(`(?i)^\s*\[\[vault:([a-z0-9][a-z0-9_-]*)\]\]\s*$`)
	bareIDPattern = regexp.MustCompile(`^v-[0-9a-f]{8}$`)
)

// Token renders the reference token for a vault identifier.
func Token(id string) string {
	return "[[vault:" + id + "]]"
}

// IsReferenceToken reports whether s is a single vault reference, in either
// token or legacy bare-identifier form.
func IsReferenceToken(s string) bool {
	if tokenExact.MatchString(s) {
		return true
	}
	return bareIDPattern.MatchString(strings.TrimSpace(s))
}

// ExtractID pulls the identifier out of a single reference. It accepts the
// token form and the legacy bare form; ok is false for anything else.
func ExtractID(s string) (string, bool) {
	if m := tokenExact.FindStringSubmatch(s); m != nil {
		return strings.ToLower(m[1]), true
	}
	trimmed := strings.TrimSpace(s)
	if bareIDPattern.MatchString(trimmed) {
		return trimmed, true
	}
	return "", false
}

// FindTokenIDs returns the identifiers of every reference token embedded in
// text, in order of appearance, duplicates included.
func FindTokenIDs(text string) []string {
	var ids []string
	for _, m := range tokenPattern.FindAllStringSubmatch(text, -1) {
		ids = append(ids, strings.ToLower(m[1]))
	}
	return ids
}
