package goscript

import (
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSCacheWriteThrough(t *testing.T) {
	filesystem := afero.NewMemMapFs()
	cache := NewFSCache(filesystem, "/cache")

	source := newModuleSource("file:///scripts/main.js", "export const x = 1;")
	require.NoError(t, cache.Set("file:///scripts/main.js", source))

	data, err := afero.ReadFile(filesystem, cache.cacheFile("file:///scripts/main.js"))
	require.NoError(t, err)
	assert.Equal(t, source.Code, data)

	cached, ok := cache.Get("file:///scripts/main.js")
	require.True(t, ok)
	assert.Equal(t, source.Code, cached.Code)
}

func TestFSCacheReadThrough(t *testing.T) {
	filesystem := afero.NewMemMapFs()
	first := NewFSCache(filesystem, "/cache")
	source := newModuleSource("file:///scripts/main.js", "export const x = 1;")
	require.NoError(t, first.Set("file:///scripts/main.js", source))

	// A fresh instance over the same root has a cold memory layer and must
	// fall back to the file.
	second := NewFSCache(filesystem, "/cache")
	cached, ok := second.Get("file:///scripts/main.js")
	require.True(t, ok)
	assert.Equal(t, source.Code, cached.Code)
	assert.Equal(t, ModuleTypeJavaScript, cached.Type)

	// And the memory layer is now warm.
	warm, ok := second.memory.Get("file:///scripts/main.js")
	require.True(t, ok)
	assert.Equal(t, source.Code, warm.Code)
}

func TestFSCacheMiss(t *testing.T) {
	cache := NewFSCache(afero.NewMemMapFs(), "/cache")
	_, ok := cache.Get("file:///scripts/unknown.js")
	assert.False(t, ok)
}

func TestFSCacheHonorsRuntimeLogger(t *testing.T) {
	custom := &log.Logger{Handler: memory.New(), Level: log.WarnLevel}
	cache := NewFSCache(afero.NewMemMapFs(), "/cache")

	_ = newLoader(RuntimeOptions{ModuleCache: cache, Logger: custom}.withDefaults())
	assert.Same(t, log.Interface(custom), cache.logger)
}
