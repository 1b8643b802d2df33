package goscript

import (
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/spf13/afero"
)

// TranspileFunc is a pure source-to-source transform applied to fetched
// module code before registration, e.g. stripping TypeScript annotations.
// It receives the resolved specifier and the raw source.
type TranspileFunc func(specifier, source string) (string, error)

// RuntimeOptions is the set of options accepted by the runtime constructor.
// The zero value is usable: no extensions, no default entrypoint, unbounded
// timeout, no module cache, imports restricted to the top-level module graph.
type RuntimeOptions struct {
	// Extensions are host-defined native capabilities injected into the
	// engine, bound in order at construction.
	Extensions []Extension

	// DefaultEntrypoint names an export to use as entrypoint when a module
	// does not register one during evaluation.
	DefaultEntrypoint string

	// Timeout bounds every potentially suspending operation. Zero or
	// negative means unbounded.
	Timeout time.Duration

	// ModuleCache caches fetched module sources by resolved specifier.
	// Defaults to a provider that never stores.
	ModuleCache CacheProvider

	// Transpiler is applied to every fetched or host-supplied module source.
	Transpiler TranspileFunc

	// AllowRemoteImports permits http(s) imports.
	AllowRemoteImports bool

	// AllowFilesystemImports permits file imports beyond the whitelist built
	// from the top-level module graph.
	AllowFilesystemImports bool

	// Filesystem serves module files and file imports. Defaults to the OS
	// filesystem.
	Filesystem afero.Fs

	// HTTPClient performs remote import fetches.
	HTTPClient *http.Client

	Logger log.Interface
}

const remoteFetchTimeout = 30 * time.Second

func (o RuntimeOptions) withDefaults() RuntimeOptions {
	if o.ModuleCache == nil {
		o.ModuleCache = noopCache{}
	}
	if o.Filesystem == nil {
		o.Filesystem = afero.NewOsFs()
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: remoteFetchTimeout}
	}
	if o.Logger == nil {
		o.Logger = log.Log
	}
	return o
}
