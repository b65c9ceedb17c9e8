package auth

import (
	"slices"
	"strings"
)

// AllowedScopes is every scope this server grants.
var AllowedScopes = []string{"read", "write"}

// parseScope splits a space-delimited scope parameter, dropping
// duplicates.
func parseScope(s string) []string {
	var out []string

	for _, f := range strings.Fields(s) {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}

	return out
}

// sanitizeScopes keeps the allowed scopes of a scope parameter. An
// empty or entirely unknown request gets the full allowed set.
func sanitizeScopes(s string) []string {
	var out []string

	for _, scope := range parseScope(s) {
		if slices.Contains(AllowedScopes, scope) {
			out = append(out, scope)
		}
	}

	if len(out) == 0 {
		return slices.Clone(AllowedScopes)
	}

	return out
}

// subset reports whether every scope in requested is in granted.
func subset(requested, granted []string) bool {
	for _, s := range requested {
		if !slices.Contains(granted, s) {
			return false
		}
	}

	return true
}

func joinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}
