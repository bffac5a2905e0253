package visitors_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitry/internal/visitors"
)

func TestVisitorAliasStable(t *testing.T) {
	alias := visitors.VisitorAlias("1a2b3c4d")
	assert.Equal(t, alias, visitors.VisitorAlias("1a2b3c4d"))
}

func TestVisitorAliasFormat(t *testing.T) {
	alias := visitors.VisitorAlias("zz99")
	parts := strings.Split(alias, " ")
	require.Len(t, parts, 2)
	assert.NotEmpty(t, parts[0])
	assert.NotEmpty(t, parts[1])
}

func TestVisitorAliasVaries(t *testing.T) {
	seen := map[string]bool{}
	fingerprints := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, fp := range fingerprints {
		seen[visitors.VisitorAlias(fp)] = true
	}
	// Not every pair collides; the name space has 900 combinations.
	assert.Greater(t, len(seen), 1)
}
