package oauth2

import "strings"

// ParseScopes splits a space-separated scope string into its individual
// scope values, dropping empty entries.
func ParseScopes(scope string) []string {
	if scope == "" {
		return []string{}
	}
	result := []string{}
	for _, s := range strings.Split(scope, " ") {
		if s != "" {
			result = append(result, s)
		}
	}
	return result
}

// JoinScopes renders a scope set back into the wire format.
func JoinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}

// ContainsScope reports whether scopes contains the given scope value.
func ContainsScope(scopes []string, scope string) bool {
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ScopesSubset reports whether every requested scope is present in allowed.
// An empty requested set is trivially a subset.
func ScopesSubset(requested, allowed []string) bool {
	for _, r := range requested {
		if !ContainsScope(allowed, r) {
			return false
		}
	}
	return true
}
