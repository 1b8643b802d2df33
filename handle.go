package goscript

// ModuleHandle identifies one evaluated module on its runtime. It is
// immutable after load; reloading the same file yields a new handle with a
// new id while existing handles keep resolving against the runtime's current
// record for their specifier.
type ModuleHandle struct {
	module     Module
	id         int
	specifier  string
	entrypoint *StoredFunction
}

func newModuleHandle(module Module, id int, specifier string, entrypoint *StoredFunction) *ModuleHandle {
	return &ModuleHandle{
		module:     module,
		id:         id,
		specifier:  specifier,
		entrypoint: entrypoint,
	}
}

// Module returns the source module this handle was created from.
func (h *ModuleHandle) Module() Module {
	return h.module
}

// ID returns the runtime-assigned module id.
func (h *ModuleHandle) ID() int {
	return h.id
}

// Specifier returns the resolved locator the module was registered under.
func (h *ModuleHandle) Specifier() string {
	return h.specifier
}

// Entrypoint returns the module's entrypoint function handle, or nil when the
// module neither registered one nor exported the configured default.
func (h *ModuleHandle) Entrypoint() *StoredFunction {
	return h.entrypoint
}
