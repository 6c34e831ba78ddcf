package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Scope name rules:
// - Lowercase only.
// - Start and end with [a-z0-9].
// - Middle chars may include [a-z0-9:_.-].
// - Length 1..64.
// - Excludes semicolon and whitespace explicitly.
//
// Examples valid: profile, profile:read, gw2:account, a, a_b-c.d:scope2
// Examples invalid: ;hack, Semicolon;hack, BAD, bad space, :leader, trailer:, "", 65+ chars.
var scopeNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidScopeName returns true if the provided scope name matches the allowed pattern.
func ValidScopeName(name string) bool {
	return scopeNameRe.MatchString(name)
}

// InvalidScopeError reports the first scope that failed ValidScopeName.
type InvalidScopeError struct {
	Scope string
}

func (e *InvalidScopeError) Error() string {
	return fmt.Sprintf("invalid scope name %q", e.Scope)
}

// NormalizeScopes trims, drops empties, de-duplicates and sorts.
// Returns *InvalidScopeError on the first name that does not match the rules.
// The result is never nil so it serializes as [] instead of null.
func NormalizeScopes(scopes []string) ([]string, error) {
	out := make([]string, 0, len(scopes))
	seen := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !ValidScopeName(s) {
			return nil, &InvalidScopeError{Scope: s}
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// ParseScopeString splits an OAuth2 space-delimited scope parameter.
func ParseScopeString(raw string) ([]string, error) {
	return NormalizeScopes(strings.Fields(raw))
}
