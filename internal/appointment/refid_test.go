package appointment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReferenceIDShape(t *testing.T) {
	ref, err := NewReferenceID()
	require.NoError(t, err)

	assert.Len(t, ref, len(refIDPrefix)+refIDRandLen)
	assert.True(t, strings.HasPrefix(ref, refIDPrefix))

	for _, r := range ref[len(refIDPrefix):] {
		assert.Contains(t, refIDAlphabet, string(r))
	}
}

func TestNewReferenceIDAlphabetExcludesAmbiguous(t *testing.T) {
	for _, ambiguous := range []string{"0", "O", "1", "I", "L"} {
		assert.NotContains(t, refIDAlphabet, ambiguous)
	}
}

func TestNewReferenceIDDistinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		ref, err := NewReferenceID()
		require.NoError(t, err)
		assert.False(t, seen[ref], "duplicate reference id %s", ref)
		seen[ref] = true
	}
}
