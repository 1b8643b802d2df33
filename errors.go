package goscript

import (
	"fmt"
)

// ValueNotFoundError is returned when a requested name is neither declared in
// the global scope nor exported by the module, or resolves to null/undefined.
type ValueNotFoundError struct {
	Name string
}

func (e *ValueNotFoundError) Error() string {
	return fmt.Sprintf("%s could not be found in global, or module exports", e.Name)
}

// ValueNotCallableError is returned when a value was found but cannot be
// invoked as a function.
type ValueNotCallableError struct {
	Name string
}

func (e *ValueNotCallableError) Error() string {
	return fmt.Sprintf("%s is not a function", e.Name)
}

// MissingEntrypointError is returned by CallEntrypoint when the module neither
// registered an entrypoint during evaluation nor exported the configured
// default entrypoint.
type MissingEntrypointError struct {
	Module Module
}

func (e *MissingEntrypointError) Error() string {
	return fmt.Sprintf("module %s has no entrypoint", e.Module.Filename())
}

// TimeoutError is returned when a task did not complete within the runtime's
// configured timeout. The underlying task is abandoned, not rolled back.
type TimeoutError struct {
	Message string
}

func (e *TimeoutError) Error() string {
	return e.Message
}

// RuntimeError represents an uncaught script exception or an engine-level
// failure, formatted as "<file>:<line>: <message>" when location metadata
// is available.
type RuntimeError struct {
	Message string
}

func (e *RuntimeError) Error() string {
	return e.Message
}

// ImportDeniedError is returned by the resolver when the security policy
// rejects an import: remote imports without the remote capability, or
// filesystem imports that are neither whitelisted nor covered by the
// filesystem-import capability.
type ImportDeniedError struct {
	Specifier string
	Reason    string
}

func (e *ImportDeniedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Specifier)
}

// UnrecognizedSchemeError is returned when an import specifier carries a
// scheme the loader does not know how to handle.
type UnrecognizedSchemeError struct {
	Specifier string
}

func (e *UnrecognizedSchemeError) Error() string {
	return fmt.Sprintf("unrecognized schema for module import: %s", e.Specifier)
}
