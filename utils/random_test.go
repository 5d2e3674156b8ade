package utils

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alnum = regexp.MustCompile(`^[A-Za-z0-9]+$`)

func TestRandomAlphanumeric(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := RandomAlphanumeric(8)
		require.NoError(t, err)
		assert.Len(t, code, 8)
		assert.Regexp(t, alnum, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 45)
}

func TestRandomAlphanumeric_InvalidLength(t *testing.T) {
	_, err := RandomAlphanumeric(0)
	assert.Error(t, err)
}
