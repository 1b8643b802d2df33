package goscript

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path/filepath"
	"regexp"

	"github.com/dop251/goja"
	"github.com/dop251/goja/parser"
	"github.com/go-errors/errors"
)

func isDefined(value goja.Value) bool {
	return value != nil && !goja.IsNull(value) && !goja.IsUndefined(value)
}

func hash(value string) string {
	hasher := sha256.New()
	hasher.Write([]byte(value))
	sum := hasher.Sum(nil)
	return hex.EncodeToString(sum)
}

func compileJavascript(filename, source string) (*goja.Program, error) {
	ast, err := parser.ParseFile(nil, filename, source, 0)
	if err != nil {
		return nil, errors.New(err)
	}
	return goja.CompileAST(ast, true)
}

var schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)

// rootReferrer is the synthetic referrer used for modules the host asked to
// load directly; resolutions against it feed the loader's whitelist.
const rootReferrer = "."

// resolveSpecifier canonicalizes an import specifier against its referrer
// into an absolute locator. Bare relative specifiers resolved against the
// synthetic root become file URLs below the working directory.
func resolveSpecifier(specifier, referrer string) (string, error) {
	if schemePattern.MatchString(specifier) {
		u, err := url.Parse(specifier)
		if err != nil {
			return "", errors.New(err)
		}
		return u.String(), nil
	}

	if referrer == "" || referrer == rootReferrer {
		abs, err := filepath.Abs(specifier)
		if err != nil {
			return "", errors.New(err)
		}
		return "file://" + filepath.ToSlash(abs), nil
	}

	base, err := url.Parse(referrer)
	if err != nil {
		return "", errors.New(err)
	}
	rel, err := url.Parse(specifier)
	if err != nil {
		return "", errors.New(err)
	}
	return base.ResolveReference(rel).String(), nil
}

func specifierScheme(specifier string) string {
	u, err := url.Parse(specifier)
	if err != nil {
		return ""
	}
	return u.Scheme
}

// fileURLPath extracts the filesystem path from a file: specifier.
func fileURLPath(specifier string) (string, error) {
	u, err := url.Parse(specifier)
	if err != nil {
		return "", errors.New(err)
	}
	if u.Scheme != "file" {
		return "", errors.Errorf("%s is not a valid file URL", specifier)
	}
	return filepath.FromSlash(u.Path), nil
}
