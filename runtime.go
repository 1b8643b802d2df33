package goscript

// Runtime is a single embedded script engine instance with its module
// registry, import policy, and stored-function table. A Runtime is safe for
// use from multiple goroutines; all script execution is serialized on its
// internal event loop.
type Runtime struct {
	inner *innerRuntime
}

// New constructs a runtime from the given options, binds the built-in and
// user extensions, and starts the event loop.
func New(options RuntimeOptions) (*Runtime, error) {
	inner, err := newInnerRuntime(options)
	if err != nil {
		return nil, err
	}
	return &Runtime{inner: inner}, nil
}

// Options returns the effective options the runtime was built with, defaults
// applied.
func (r *Runtime) Options() RuntimeOptions {
	return r.inner.options
}

// Close interrupts any running script and stops the event loop. The runtime
// must not be used afterwards.
func (r *Runtime) Close() {
	r.inner.close()
}

// Eval evaluates a script expression and decodes the settled result into
// target. Pass a nil target to discard the result.
func (r *Runtime) Eval(expression string, target interface{}) error {
	return r.inner.eval(expression, target)
}

// LoadModule evaluates a module without making it the main module; its
// specifier is whitelisted and its exports become importable by later loads.
// The returned handle refers to the module itself.
func (r *Runtime) LoadModule(module Module) (*ModuleHandle, error) {
	return r.inner.loadModules(nil, []Module{module})
}

// LoadModules evaluates the side modules in order followed by main, awaiting
// each before the next. The handle refers to main.
func (r *Runtime) LoadModules(main Module, side ...Module) (*ModuleHandle, error) {
	return r.inner.loadModules(&main, side)
}

// GetValue finds a name in the global scope or the module's exports and
// decodes it into target. Null and undefined values are reported as not
// found.
func (r *Runtime) GetValue(handle *ModuleHandle, name string, target interface{}) error {
	return r.inner.getValue(handle, name, target)
}

// CallFunction finds a function by name in the global scope or the module's
// exports, calls it with args, awaits a returned promise, and decodes the
// result into target.
func (r *Runtime) CallFunction(handle *ModuleHandle, name string, target interface{}, args ...interface{}) error {
	return r.inner.callFunction(handle, name, target, args)
}

// CallEntrypoint invokes the module's entrypoint function.
func (r *Runtime) CallEntrypoint(handle *ModuleHandle, target interface{}, args ...interface{}) error {
	if handle == nil {
		return &RuntimeError{Message: "no module handle"}
	}
	entrypoint := handle.Entrypoint()
	if entrypoint == nil {
		return &MissingEntrypointError{Module: handle.Module()}
	}
	return r.inner.callStoredFunction(handle, entrypoint, target, args)
}

// CallStoredFunction invokes a previously captured function handle. The
// handle must have been minted by this runtime.
func (r *Runtime) CallStoredFunction(handle *ModuleHandle, fn *StoredFunction, target interface{}, args ...interface{}) error {
	return r.inner.callStoredFunction(handle, fn, target, args)
}

// Put stores a host value in the runtime's state, keyed by its dynamic type.
// A later Put of the same type replaces it.
func (r *Runtime) Put(value interface{}) error {
	return r.inner.put(value)
}

// Take removes and returns the stored value whose type matches the target
// pointer's element type. It reports whether a value was present.
func (r *Runtime) Take(target interface{}) bool {
	return r.inner.take(target)
}

// ExecuteModule is the one-shot convenience: build a runtime, load side
// modules and the main module, call the entrypoint with args, decode its
// result into target, and tear the runtime down.
func ExecuteModule(module Module, side []Module, options RuntimeOptions, target interface{}, args ...interface{}) error {
	runtime, err := New(options)
	if err != nil {
		return err
	}
	defer runtime.Close()

	handle, err := runtime.LoadModules(module, side...)
	if err != nil {
		return err
	}
	return runtime.CallEntrypoint(handle, target, args...)
}
