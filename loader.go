package goscript

import (
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/apex/log"
	"github.com/go-errors/errors"
	"github.com/spf13/afero"
)

const extensionScheme = "ext"

// loader resolves import specifiers to canonical locators under the runtime's
// security policy and fetches their sources. One loader exists per runtime;
// its whitelist and cache are never shared across instances.
//
// The whitelist grows only from top-level resolutions (referrer = synthetic
// root) and never shrinks. It is what lets the host's own entry modules
// reference sibling files without a blanket filesystem-import grant, while
// dynamic imports of arbitrary paths stay deny-by-default.
type loader struct {
	mu        sync.Mutex
	whitelist map[string]struct{}

	cache       CacheProvider
	filesystem  afero.Fs
	httpClient  *http.Client
	transpile   TranspileFunc
	extModules  map[string]Module
	allowRemote bool
	allowFs     bool
	logger      log.Interface
}

func newLoader(options RuntimeOptions) *loader {
	if aware, ok := options.ModuleCache.(interface{ setLogger(log.Interface) }); ok {
		aware.setLogger(options.Logger)
	}
	return &loader{
		whitelist:   make(map[string]struct{}),
		cache:       options.ModuleCache,
		filesystem:  options.Filesystem,
		httpClient:  options.HTTPClient,
		transpile:   options.Transpiler,
		extModules:  make(map[string]Module),
		allowRemote: options.AllowRemoteImports,
		allowFs:     options.AllowFilesystemImports,
		logger:      options.Logger,
	}
}

// registerExtensionModule makes a script module available under the
// engine-extension scheme as ext:<extension>/<filename>.
func (l *loader) registerExtensionModule(extension string, module Module) string {
	specifier := extensionScheme + ":" + extension + "/" + module.Filename()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.extModules[specifier] = module
	return specifier
}

func (l *loader) whitelistAdd(specifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.whitelist[specifier] = struct{}{}
}

func (l *loader) whitelistHas(specifier string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.whitelist[specifier]
	return ok
}

// resolve canonicalizes a specifier against its referrer and enforces the
// scheme permission policy. Top-level resolutions are whitelisted before the
// policy check so that the host's own modules always pass.
func (l *loader) resolve(specifier, referrer string) (string, error) {
	resolved, err := resolveSpecifier(specifier, referrer)
	if err != nil {
		return "", err
	}

	if referrer == rootReferrer {
		l.whitelistAdd(resolved)
	}

	switch specifierScheme(resolved) {
	case "https", "http":
		if !l.allowRemote {
			return "", &ImportDeniedError{Specifier: specifier, Reason: "web imports are not allowed here"}
		}
	case "file":
		if !l.allowFs && !l.whitelistHas(resolved) {
			return "", &ImportDeniedError{Specifier: specifier, Reason: "requested module is not loaded"}
		}
	case extensionScheme:
		// Extension import - always permitted.
	default:
		return "", &UnrecognizedSchemeError{Specifier: specifier}
	}

	return resolved, nil
}

// load fetches the source for a resolved specifier, consulting the cache
// first. On a miss the raw text is fetched, transpiled, stored back as an
// independent clone, and returned.
func (l *loader) load(specifier string) (*ModuleSource, error) {
	if source, ok := l.cache.Get(specifier); ok {
		l.logger.Debugf("loader: cache hit for %s", specifier)
		return source, nil
	}

	raw, err := l.fetch(specifier)
	if err != nil {
		return nil, err
	}

	code := raw
	if l.transpile != nil {
		code, err = l.transpile(specifier, raw)
		if err != nil {
			return nil, errors.New(err)
		}
	}

	source := newModuleSource(specifier, code)
	if err := l.cache.Set(specifier, CloneSource(source)); err != nil {
		l.logger.Warnf("loader: could not cache %s: %s", specifier, err)
	}

	l.logger.Debugf("loader: fetched %s (%d bytes)", specifier, len(source.Code))
	return &source, nil
}

// fetch dispatches to the scheme's fetch strategy.
func (l *loader) fetch(specifier string) (string, error) {
	switch specifierScheme(specifier) {
	case "https", "http":
		if !l.allowRemote {
			return "", &ImportDeniedError{Specifier: specifier, Reason: "web imports are not allowed here"}
		}
		return l.fetchRemote(specifier)
	case "file":
		path, err := fileURLPath(specifier)
		if err != nil {
			return "", err
		}
		data, err := afero.ReadFile(l.filesystem, path)
		if err != nil {
			return "", errors.New(err)
		}
		return string(data), nil
	case extensionScheme:
		l.mu.Lock()
		module, ok := l.extModules[specifier]
		l.mu.Unlock()
		if !ok {
			return "", &ImportDeniedError{Specifier: specifier, Reason: "unknown extension module"}
		}
		return module.Contents(), nil
	default:
		return "", &ImportDeniedError{
			Specifier: specifier,
			Reason:    strings.SplitN(specifier, ":", 2)[0] + " imports are not allowed here",
		}
	}
}

func (l *loader) fetchRemote(specifier string) (string, error) {
	response, err := l.httpClient.Get(specifier)
	if err != nil {
		return "", errors.New(err)
	}
	defer response.Body.Close()

	if response.StatusCode >= http.StatusBadRequest {
		return "", errors.Errorf("fetching %s failed with status %d", specifier, response.StatusCode)
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return "", errors.New(err)
	}
	return string(body), nil
}
