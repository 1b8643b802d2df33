package goscript

import (
	"regexp"
	"strings"

	"github.com/go-errors/errors"
)

// exportBinding is one name exported by a module: `exported` is the name on
// the export namespace, `local` the in-scope expression it is bound to.
type exportBinding struct {
	exported string
	local    string
}

var (
	importFromPattern    = regexp.MustCompile(`^(\s*)import\s+(.+?)\s+from\s+['"]([^'"]+)['"]\s*;?\s*$`)
	importBarePattern    = regexp.MustCompile(`^(\s*)import\s+['"]([^'"]+)['"]\s*;?\s*$`)
	exportFromPattern    = regexp.MustCompile(`^(\s*)export\s+\{([^}]*)\}\s+from\s+['"]([^'"]+)['"]\s*;?\s*$`)
	exportListPattern    = regexp.MustCompile(`^(\s*)export\s+\{([^}]*)\}\s*;?\s*$`)
	exportDefaultPattern = regexp.MustCompile(`^(\s*)export\s+default\s+(.*)$`)
	exportDeclPattern    = regexp.MustCompile(`^(\s*)export\s+((?:async\s+)?function\*?|const|let|var|class)\s+([A-Za-z_$][0-9A-Za-z_$]*)(.*)$`)
	dynamicImportPattern = regexp.MustCompile(`\bimport\s*\(`)
	identifierPattern    = regexp.MustCompile(`^[A-Za-z_$][0-9A-Za-z_$]*$`)
)

func lowerModuleLine(line string) (string, []exportBinding, error) {
	var bindings []exportBinding

	switch {
	case importFromPattern.MatchString(line):
		m := importFromPattern.FindStringSubmatch(line)
		statement, err := lowerImportClause(m[2], m[3])
		if err != nil {
			return "", nil, err
		}
		line = m[1] + statement

	case importBarePattern.MatchString(line):
		m := importBarePattern.FindStringSubmatch(line)
		line = m[1] + `require("` + m[2] + `");`

	case exportFromPattern.MatchString(line):
		m := exportFromPattern.FindStringSubmatch(line)
		reexports, err := parseExportNames(m[2])
		if err != nil {
			return "", nil, err
		}
		var statements []string
		for _, binding := range reexports {
			statements = append(statements,
				"exports."+binding.exported+" = require(\""+m[3]+"\")."+binding.local+";")
		}
		line = m[1] + strings.Join(statements, " ")

	case exportDeclPattern.MatchString(line):
		m := exportDeclPattern.FindStringSubmatch(line)
		line = m[1] + m[2] + " " + m[3] + m[4]
		bindings = append(bindings, exportBinding{exported: m[3], local: m[3]})

	case exportDefaultPattern.MatchString(line):
		m := exportDefaultPattern.FindStringSubmatch(line)
		line = m[1] + "exports.default = " + m[2]

	case exportListPattern.MatchString(line):
		m := exportListPattern.FindStringSubmatch(line)
		names, err := parseExportNames(m[2])
		if err != nil {
			return "", nil, err
		}
		line = m[1] + ";"
		bindings = append(bindings, names...)
	}

	line = dynamicImportPattern.ReplaceAllString(line, "__dynamicImport(")
	return line, bindings, nil
}

// lowerImportClause turns the clause of an `import <clause> from '<spec>'`
// statement into an equivalent require declaration.
func lowerImportClause(clause, specifier string) (string, error) {
	requireCall := `require("` + specifier + `")`

	var declarations []string
	for _, part := range splitImportClause(clause) {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
			continue
		case strings.HasPrefix(part, "* as "):
			declarations = append(declarations, strings.TrimSpace(part[5:])+" = "+requireCall)
		case strings.HasPrefix(part, "{"):
			inner := strings.TrimSuffix(strings.TrimPrefix(part, "{"), "}")
			declarations = append(declarations, "{ "+normalizeDestructure(inner)+" } = "+requireCall)
		case identifierPattern.MatchString(part):
			declarations = append(declarations, part+" = "+requireCall+".default")
		default:
			return "", errors.Errorf("unsupported import clause: %s", clause)
		}
	}
	if len(declarations) == 0 {
		return "", errors.Errorf("unsupported import clause: %s", clause)
	}

	return "const " + strings.Join(declarations, ", ") + ";", nil
}

// splitImportClause splits on top-level commas, leaving `{ a, b }` intact.
func splitImportClause(clause string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range clause {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, clause[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, clause[start:])
}

// normalizeDestructure rewrites `a, b as c` into `a, b: c`.
func normalizeDestructure(inner string) string {
	names := strings.Split(inner, ",")
	for i, name := range names {
		name = strings.TrimSpace(name)
		if fields := strings.Fields(name); len(fields) == 3 && fields[1] == "as" {
			name = fields[0] + ": " + fields[2]
		}
		names[i] = name
	}
	return strings.Join(names, ", ")
}

// parseExportNames parses the inside of an `export { ... }` list.
func parseExportNames(inner string) ([]exportBinding, error) {
	var bindings []exportBinding
	for _, name := range strings.Split(inner, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		fields := strings.Fields(name)
		switch {
		case len(fields) == 1 && identifierPattern.MatchString(fields[0]):
			bindings = append(bindings, exportBinding{exported: fields[0], local: fields[0]})
		case len(fields) == 3 && fields[1] == "as":
			bindings = append(bindings, exportBinding{exported: fields[2], local: fields[0]})
		default:
			return nil, errors.Errorf("unsupported export list entry: %s", name)
		}
	}
	return bindings, nil
}

// usesTopLevelAwait reports whether the source mentions await outside of any
// brace or parenthesis nesting. Function bodies always sit inside braces, so
// depth zero approximates module top level closely enough for lowering.
func usesTopLevelAwait(source string) bool {
	depth := 0
	var quote byte
	inLineComment := false
	inBlockComment := false

	for i := 0; i < len(source); i++ {
		c := source[i]

		if inLineComment {
			if c == '\n' {
				inLineComment = false
			}
			continue
		}
		if inBlockComment {
			if c == '*' && i+1 < len(source) && source[i+1] == '/' {
				inBlockComment = false
				i++
			}
			continue
		}
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}

		switch c {
		case '\'', '"', '`':
			quote = c
		case '/':
			if i+1 < len(source) {
				switch source[i+1] {
				case '/':
					inLineComment = true
					i++
				case '*':
					inBlockComment = true
					i++
				}
			}
		case '{', '(':
			depth++
		case '}', ')':
			depth--
		case 'a':
			if depth == 0 && strings.HasPrefix(source[i:], "await") &&
				!isIdentifierChar(byteAt(source, i-1)) && !isIdentifierChar(byteAt(source, i+5)) {
				return true
			}
		}
	}
	return false
}

func byteAt(s string, i int) byte {
	if i < 0 || i >= len(s) {
		return 0
	}
	return s[i]
}

func isIdentifierChar(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
