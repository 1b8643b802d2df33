package goscript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoredFunctionCapture(t *testing.T) {
	runtime := newTestRuntime(t, RuntimeOptions{})

	module := NewModule("/scripts/main.js", "export const double = (n) => n * 2;")
	handle, err := runtime.LoadModules(module)
	require.NoError(t, err)

	var double StoredFunction
	require.NoError(t, runtime.GetValue(handle, "double", &double))

	var result int
	require.NoError(t, runtime.CallStoredFunction(handle, &double, &result, 21))
	assert.Equal(t, 42, result)
}

func TestStoredFunctionCaptureRequiresCallable(t *testing.T) {
	runtime := newTestRuntime(t, RuntimeOptions{})

	module := NewModule("/scripts/main.js", "export const value = 42;")
	handle, err := runtime.LoadModules(module)
	require.NoError(t, err)

	var fn StoredFunction
	err = runtime.GetValue(handle, "value", &fn)
	var notCallable *ValueNotCallableError
	require.ErrorAs(t, err, &notCallable)
}

func TestStoredFunctionNestedInStruct(t *testing.T) {
	type handlers struct {
		OnAdd StoredFunction `json:"onAdd"`
		Name  string         `json:"name"`
	}

	runtime := newTestRuntime(t, RuntimeOptions{})

	module := NewModule("/scripts/main.js",
		"export function handlers() { return { onAdd: (a, b) => a + b, name: 'adder' }; }")
	handle, err := runtime.LoadModules(module)
	require.NoError(t, err)

	var h handlers
	require.NoError(t, runtime.CallFunction(handle, "handlers", &h))
	assert.Equal(t, "adder", h.Name)

	var sum int
	require.NoError(t, runtime.CallStoredFunction(handle, &h.OnAdd, &sum, 2, 3))
	assert.Equal(t, 5, sum)
}

func TestStoredFunctionNestedInSlice(t *testing.T) {
	runtime := newTestRuntime(t, RuntimeOptions{})

	module := NewModule("/scripts/main.js",
		"export function steps() { return [() => 1, () => 2]; }")
	handle, err := runtime.LoadModules(module)
	require.NoError(t, err)

	var steps []StoredFunction
	require.NoError(t, runtime.CallFunction(handle, "steps", &steps))
	require.Len(t, steps, 2)

	var first, second int
	require.NoError(t, runtime.CallStoredFunction(handle, &steps[0], &first))
	require.NoError(t, runtime.CallStoredFunction(handle, &steps[1], &second))
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestStoredFunctionAsArgument(t *testing.T) {
	runtime := newTestRuntime(t, RuntimeOptions{})

	module := NewModule("/scripts/main.js",
		"export const double = (n) => n * 2;\n"+
			"export function apply(fn, v) { return fn(v); }")
	handle, err := runtime.LoadModules(module)
	require.NoError(t, err)

	var double StoredFunction
	require.NoError(t, runtime.GetValue(handle, "double", &double))

	var result int
	require.NoError(t, runtime.CallFunction(handle, "apply", &result, &double, 10))
	assert.Equal(t, 20, result)
}

func TestStoredFunctionRejectedByForeignRuntime(t *testing.T) {
	first := newTestRuntime(t, RuntimeOptions{})
	second := newTestRuntime(t, RuntimeOptions{})

	module := NewModule("/scripts/main.js", "export const noop = () => {};")
	firstHandle, err := first.LoadModules(module)
	require.NoError(t, err)
	secondHandle, err := second.LoadModules(module)
	require.NoError(t, err)

	var noop StoredFunction
	require.NoError(t, first.GetValue(firstHandle, "noop", &noop))

	err = second.CallStoredFunction(secondHandle, &noop, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid for this runtime")
}
