package resolve

import (
	"testing"

	pokserrors "github.com/poks-pm/poks/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	out, err := Expand("https://example.com/${name}-${version}_${os}-${arch}.${ext}", Vars{
		"name":    "foo",
		"version": "1.0.0",
		"os":      "linux",
		"arch":    "x86_64",
		"ext":     "tar.gz",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/foo-1.0.0_linux-x86_64.tar.gz", out)
}

func TestExpandNoPlaceholders(t *testing.T) {
	out, err := Expand("https://example.com/static.zip", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/static.zip", out)
}

func TestExpandUnresolved(t *testing.T) {
	_, err := Expand("${missing}", Vars{"version": "1.0.0"})
	require.Error(t, err)
	var pe *pokserrors.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, pokserrors.CodeVariableUnresolved, pe.Code)
}

func TestExpandDoesNotRecurse(t *testing.T) {
	// If expansion recursed, this would try to resolve "${version}" again.
	out, err := Expand("${a}", Vars{"a": "${version}"})
	require.NoError(t, err)
	assert.Equal(t, "${version}", out)
}

func TestExpandUnterminatedPlaceholder(t *testing.T) {
	out, err := Expand("prefix-${unterminated", Vars{})
	require.NoError(t, err)
	assert.Equal(t, "prefix-${unterminated", out)
}
