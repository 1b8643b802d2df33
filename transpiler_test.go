package goscript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lower(t *testing.T, source string) string {
	t.Helper()
	lowered, err := lowerModuleSource(source)
	require.NoError(t, err)
	return lowered
}

func TestLowerNamedImport(t *testing.T) {
	lowered := lower(t, `import { add, sub as minus } from './math.js';`)
	assert.Contains(t, lowered, `const { add, sub: minus } = require("./math.js");`)
}

func TestLowerDefaultImport(t *testing.T) {
	lowered := lower(t, `import math from './math.js';`)
	assert.Contains(t, lowered, `const math = require("./math.js").default;`)
}

func TestLowerNamespaceImport(t *testing.T) {
	lowered := lower(t, `import * as math from './math.js';`)
	assert.Contains(t, lowered, `const math = require("./math.js");`)
}

func TestLowerCombinedImport(t *testing.T) {
	lowered := lower(t, `import math, { add } from './math.js';`)
	assert.Contains(t, lowered, `const math = require("./math.js").default, { add } = require("./math.js");`)
}

func TestLowerBareImport(t *testing.T) {
	lowered := lower(t, `import './side-effect.js';`)
	assert.Contains(t, lowered, `require("./side-effect.js");`)
}

func TestLowerExportDeclaration(t *testing.T) {
	lowered := lower(t, "export const x = 1;\nexport function add(a, b) { return a + b; }")
	assert.Contains(t, lowered, "const x = 1;")
	assert.Contains(t, lowered, "function add(a, b) { return a + b; }")
	assert.Contains(t, lowered, "exports.x = x;")
	assert.Contains(t, lowered, "exports.add = add;")
	assert.NotContains(t, lowered, "export const")
}

func TestLowerExportDefault(t *testing.T) {
	lowered := lower(t, `export default function () { return 42; }`)
	assert.Contains(t, lowered, "exports.default = function () { return 42; }")
}

func TestLowerExportList(t *testing.T) {
	lowered := lower(t, "const a = 1;\nconst b = 2;\nexport { a, b as beta };")
	assert.Contains(t, lowered, "exports.a = a;")
	assert.Contains(t, lowered, "exports.beta = b;")
}

func TestLowerReexport(t *testing.T) {
	lowered := lower(t, `export { add as plus } from './math.js';`)
	assert.Contains(t, lowered, `exports.plus = require("./math.js").add;`)
}

func TestLowerDynamicImport(t *testing.T) {
	lowered := lower(t, `const mod = await import('./math.js');`)
	assert.Contains(t, lowered, `__dynamicImport('./math.js')`)
	assert.NotContains(t, lowered, "import(")
}

func TestLowerPreservesLineNumbers(t *testing.T) {
	source := "import { a } from './a.js';\nconst b = 1;\nexport const c = 2;"
	lowered := lower(t, source)

	// One wrapper line is prepended; everything else stays on its line.
	lines := []string{
		`const { a } = require("./a.js");`,
		"const b = 1;",
		"const c = 2;",
	}
	for i, want := range lines {
		all := splitLines(lowered)
		require.Greater(t, len(all), i+1)
		assert.Contains(t, all[i+1], want)
	}
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return append(lines, s[start:])
}

func TestUsesTopLevelAwait(t *testing.T) {
	assert.True(t, usesTopLevelAwait("const x = await fetchValue();"))
	assert.False(t, usesTopLevelAwait("async function f() { return await g(); }"))
	assert.False(t, usesTopLevelAwait(`const s = "await nothing";`))
	assert.False(t, usesTopLevelAwait("// await in a comment"))
	assert.False(t, usesTopLevelAwait("const awaited = 1;"))
}

func TestLowerTopLevelAwaitWrapsBody(t *testing.T) {
	lowered := lower(t, "const x = await f();")
	assert.Contains(t, lowered, "return (async function() {")
}
