package goscript

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	var result int
	require.NoError(t, Evaluate("6 * 7", &result))
	assert.Equal(t, 42, result)
}

func TestValidate(t *testing.T) {
	ok, err := Validate(NewModule("/scripts/good.js", "export const x = 1;"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Validate(NewModule("/scripts/bad.js", `throw new Error("nope");`))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Validate(NewModule("/scripts/unparsable.js", "function ("))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolvePath(t *testing.T) {
	resolved, err := ResolvePath("/scripts/main.js")
	require.NoError(t, err)
	assert.Equal(t, "file:///scripts/main.js", resolved)

	relative, err := ResolvePath("scripts/main.js")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(relative, "file:///"))
	assert.True(t, strings.HasSuffix(relative, "/scripts/main.js"))
}
