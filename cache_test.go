package goscript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleTypeFor(t *testing.T) {
	assert.Equal(t, ModuleTypeJSON, moduleTypeFor("file:///data/config.json"))
	assert.Equal(t, ModuleTypeJavaScript, moduleTypeFor("file:///scripts/main.js"))
	assert.Equal(t, ModuleTypeJavaScript, moduleTypeFor("https://example.com/lib.mjs"))
}

func TestNewModuleSource(t *testing.T) {
	source := newModuleSource("file:///scripts/main.js", "export const x = 1;")
	assert.Equal(t, ModuleTypeJavaScript, source.Type)
	assert.Equal(t, []byte("export const x = 1;"), source.Code)
	assert.Equal(t, hash("export const x = 1;"), source.Hash)
}

func TestCloneSourceIsIndependent(t *testing.T) {
	source := newModuleSource("file:///scripts/main.js", "abc")
	clone := CloneSource(source)
	clone.Code[0] = 'x'
	assert.Equal(t, byte('a'), source.Code[0])
}

func TestMemoryCache(t *testing.T) {
	cache := NewMemoryCache()

	_, ok := cache.Get("file:///scripts/main.js")
	assert.False(t, ok)

	source := newModuleSource("file:///scripts/main.js", "export const x = 1;")
	require.NoError(t, cache.Set("file:///scripts/main.js", source))

	cached, ok := cache.Get("file:///scripts/main.js")
	require.True(t, ok)
	assert.Equal(t, source.Code, cached.Code)
	assert.Equal(t, source.Hash, cached.Hash)

	// Readers must not alias the cache's storage.
	cached.Code[0] = 'x'
	again, ok := cache.Get("file:///scripts/main.js")
	require.True(t, ok)
	assert.Equal(t, byte('e'), again.Code[0])
}

func TestNoopCacheAlwaysMisses(t *testing.T) {
	cache := noopCache{}
	require.NoError(t, cache.Set("file:///scripts/main.js", newModuleSource("file:///scripts/main.js", "1")))
	_, ok := cache.Get("file:///scripts/main.js")
	assert.False(t, ok)
}
