package order

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNumber_Format(t *testing.T) {
	n := NewNumber()

	require.True(t, strings.HasPrefix(n, NumberPrefix), "number %q missing prefix", n)

	body := strings.TrimPrefix(n, NumberPrefix)
	assert.Greater(t, len(body), randomDigits)
	for _, r := range body {
		assert.True(t, (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z'),
			"unexpected character %q in %q", r, n)
	}
}

func TestNewNumber_PairwiseDistinct(t *testing.T) {
	const count = 10_000

	seen := make(map[string]struct{}, count)
	for range count {
		n := NewNumber()
		_, dup := seen[n]
		require.False(t, dup, "duplicate order number %q", n)
		seen[n] = struct{}{}
	}
}
