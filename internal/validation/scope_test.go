package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidScopeName_Valid(t *testing.T) {
	valids := []string{
		"a",
		"ab",
		"profile",
		"profile:read",
		"gw2:account",
		"email:read:e2e123",
		"a_b-c.d:scope2",
		strings.Repeat("a", 63) + "b", // 64 chars
	}
	for _, v := range valids {
		if !ValidScopeName(v) {
			t.Fatalf("expected valid: %q", v)
		}
	}
}

func TestValidScopeName_Invalid(t *testing.T) {
	invalids := []string{
		"",               // empty
		":lead",          // starts with non-alnum
		"trail:",         // ends with non-alnum
		"bad space",      // space
		"UPPER",          // uppercase
		"semicolon;hack", // semicolon
		strings.Repeat("a", 65),
	}
	for _, v := range invalids {
		if ValidScopeName(v) {
			t.Fatalf("expected invalid: %q", v)
		}
	}
}

func TestNormalizeScopes(t *testing.T) {
	got, err := NormalizeScopes([]string{" profile", "email", "", "profile", "gw2:account "})
	require.NoError(t, err)
	require.Equal(t, []string{"email", "gw2:account", "profile"}, got)

	empty, err := NormalizeScopes(nil)
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)

	_, err = NormalizeScopes([]string{"profile", "Bad"})
	var ise *InvalidScopeError
	require.True(t, errors.As(err, &ise))
	require.Equal(t, "Bad", ise.Scope)
}

func TestParseScopeString(t *testing.T) {
	got, err := ParseScopeString("openid  profile email openid")
	require.NoError(t, err)
	require.Equal(t, []string{"email", "openid", "profile"}, got)
}

func TestScopeSetOps(t *testing.T) {
	require.True(t, Covers([]string{"a", "b"}, []string{"b"}))
	require.True(t, Covers(nil, nil))
	require.False(t, Covers([]string{"a"}, []string{"a", "b"}))
	require.Equal(t, []string{"b", "c"}, Missing([]string{"a"}, []string{"c", "a", "b"}))
	require.Equal(t, []string{"a", "b", "c"}, Union([]string{"c", "a"}, []string{"b", "a"}))
	require.Equal(t, []string{}, Union(nil, nil))
}
