package goscript

import (
	"strings"
)

// lowerModuleSource rewrites ECMAScript-module syntax onto the registry's
// evaluation wrapper: imports become require calls, exports become
// assignments on the exports object, and dynamic import() is routed through
// the loader's permission policy. Rewrites are line-preserving so that
// engine stack traces keep usable line numbers.
//
// A module using top-level await has its body lowered into an awaited async
// wrapper; that is only supported for host-loaded modules, since require is
// synchronous.
func lowerModuleSource(source string) (string, error) {
	lines := strings.Split(source, "\n")
	var exports []exportBinding

	for i, line := range lines {
		rewritten, bindings, err := lowerModuleLine(line)
		if err != nil {
			return "", err
		}
		lines[i] = rewritten
		exports = append(exports, bindings...)
	}

	body := strings.Join(lines, "\n")
	if len(exports) > 0 {
		var assignments []string
		for _, binding := range exports {
			assignments = append(assignments, "exports."+binding.exported+" = "+binding.local+";")
		}
		body += "\n" + strings.Join(assignments, " ")
	}

	if usesTopLevelAwait(source) {
		body = "return (async function() {\n" + body + "\n}).call(this);"
	}

	return "(function(require, exports, module, __dynamicImport) {\n" + body + "\n})", nil
}
