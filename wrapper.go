package goscript

import (
	"github.com/spf13/afero"
)

// ModuleWrapper bundles a runtime with one loaded module, for callers that
// work against a single script and do not need to manage the runtime
// separately.
type ModuleWrapper struct {
	runtime *Runtime
	handle  *ModuleHandle
}

// NewModuleWrapper builds a runtime from options and loads the module as its
// main module.
func NewModuleWrapper(module Module, options RuntimeOptions) (*ModuleWrapper, error) {
	runtime, err := New(options)
	if err != nil {
		return nil, err
	}

	handle, err := runtime.LoadModules(module)
	if err != nil {
		runtime.Close()
		return nil, err
	}

	return &ModuleWrapper{
		runtime: runtime,
		handle:  handle,
	}, nil
}

// NewModuleWrapperFromFile loads the module source from the options'
// filesystem before wrapping it.
func NewModuleWrapperFromFile(filename string, options RuntimeOptions) (*ModuleWrapper, error) {
	filesystem := options.Filesystem
	if filesystem == nil {
		filesystem = afero.NewOsFs()
	}
	module, err := LoadModuleFile(filesystem, filename)
	if err != nil {
		return nil, err
	}
	return NewModuleWrapper(module, options)
}

func (w *ModuleWrapper) Runtime() *Runtime {
	return w.runtime
}

func (w *ModuleWrapper) Handle() *ModuleHandle {
	return w.handle
}

// Get decodes a global or exported value into target.
func (w *ModuleWrapper) Get(name string, target interface{}) error {
	return w.runtime.GetValue(w.handle, name, target)
}

// Call invokes a global or exported function by name.
func (w *ModuleWrapper) Call(name string, target interface{}, args ...interface{}) error {
	return w.runtime.CallFunction(w.handle, name, target, args...)
}

// CallStored invokes a function handle captured from this wrapper's runtime.
func (w *ModuleWrapper) CallStored(fn *StoredFunction, target interface{}, args ...interface{}) error {
	return w.runtime.CallStoredFunction(w.handle, fn, target, args...)
}

// CallEntrypoint invokes the module's entrypoint.
func (w *ModuleWrapper) CallEntrypoint(target interface{}, args ...interface{}) error {
	return w.runtime.CallEntrypoint(w.handle, target, args...)
}

// IsCallable reports whether name resolves to a function.
func (w *ModuleWrapper) IsCallable(name string) bool {
	var fn StoredFunction
	return w.runtime.GetValue(w.handle, name, &fn) == nil
}

// Keys lists the module's export names.
func (w *ModuleWrapper) Keys() ([]string, error) {
	return w.runtime.inner.exportKeys(w.handle)
}

func (w *ModuleWrapper) Close() {
	w.runtime.Close()
}
