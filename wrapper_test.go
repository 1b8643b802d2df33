package goscript

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWrapper(t *testing.T) *ModuleWrapper {
	t.Helper()
	module := NewModule("/scripts/main.js",
		"export const version = 3;\n"+
			"export function add(a, b) { return a + b; }")
	wrapper, err := NewModuleWrapper(module, RuntimeOptions{})
	require.NoError(t, err)
	t.Cleanup(wrapper.Close)
	return wrapper
}

func TestModuleWrapperGet(t *testing.T) {
	wrapper := newTestWrapper(t)

	var version int
	require.NoError(t, wrapper.Get("version", &version))
	assert.Equal(t, 3, version)
}

func TestModuleWrapperCall(t *testing.T) {
	wrapper := newTestWrapper(t)

	var sum int
	require.NoError(t, wrapper.Call("add", &sum, 20, 22))
	assert.Equal(t, 42, sum)
}

func TestModuleWrapperCallStored(t *testing.T) {
	wrapper := newTestWrapper(t)

	var add StoredFunction
	require.NoError(t, wrapper.Get("add", &add))

	var sum int
	require.NoError(t, wrapper.CallStored(&add, &sum, 1, 2))
	assert.Equal(t, 3, sum)
}

func TestModuleWrapperIsCallable(t *testing.T) {
	wrapper := newTestWrapper(t)

	assert.True(t, wrapper.IsCallable("add"))
	assert.False(t, wrapper.IsCallable("version"))
	assert.False(t, wrapper.IsCallable("missing"))
}

func TestModuleWrapperKeys(t *testing.T) {
	wrapper := newTestWrapper(t)

	keys, err := wrapper.Keys()
	require.NoError(t, err)
	assert.Contains(t, keys, "version")
	assert.Contains(t, keys, "add")
}

func TestNewModuleWrapperFromFile(t *testing.T) {
	filesystem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(filesystem, "/scripts/lib.js",
		[]byte("export const marker = 'file';"), 0o644))

	wrapper, err := NewModuleWrapperFromFile("/scripts/lib.js", RuntimeOptions{Filesystem: filesystem})
	require.NoError(t, err)
	t.Cleanup(wrapper.Close)

	var marker string
	require.NoError(t, wrapper.Get("marker", &marker))
	assert.Equal(t, "file", marker)
}

func TestNewModuleWrapperFailsOnBrokenModule(t *testing.T) {
	module := NewModule("/scripts/broken.js", `throw new Error("broken");`)
	_, err := NewModuleWrapper(module, RuntimeOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}
