package utils

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateInviteToken(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}$`)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		token, err := GenerateInviteToken()
		require.NoError(t, err)
		assert.Regexp(t, pattern, token)
		assert.False(t, seen[token], "token %s generated twice", token)
		seen[token] = true
	}
}

func TestValidSlug(t *testing.T) {
	valid := []string{"acme", "acme-corp", "a1-b2-c3", "x"}
	for _, s := range valid {
		assert.True(t, ValidSlug(s), "expected %q to be valid", s)
	}

	invalid := []string{"", "Acme", "acme corp", "acme_", "-acme", "acme-", "a--b"}
	for _, s := range invalid {
		assert.False(t, ValidSlug(s), "expected %q to be invalid", s)
	}
}

func TestValidProjectKey(t *testing.T) {
	valid := []string{"CORE", "OPS", "A1", "LONGKEY123"}
	for _, s := range valid {
		assert.True(t, ValidProjectKey(s), "expected %q to be valid", s)
	}

	invalid := []string{"", "C", "core", "1CORE", "TOOLONGAKEY", "KEY-1"}
	for _, s := range invalid {
		assert.False(t, ValidProjectKey(s), "expected %q to be invalid", s)
	}
}
