package goscript

// Evaluate runs a single expression in a throwaway runtime and decodes the
// result into target.
func Evaluate(expression string, target interface{}) error {
	runtime, err := New(RuntimeOptions{})
	if err != nil {
		return err
	}
	defer runtime.Close()
	return runtime.Eval(expression, target)
}

// Validate reports whether the module source evaluates without error. Policy
// and engine construction failures are returned as errors; script failures
// yield false.
func Validate(module Module) (bool, error) {
	runtime, err := New(RuntimeOptions{})
	if err != nil {
		return false, err
	}
	defer runtime.Close()

	if _, err := runtime.LoadModule(module); err != nil {
		if _, ok := err.(*RuntimeError); ok {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Import loads a module file into a fresh wrapped runtime.
func Import(path string) (*ModuleWrapper, error) {
	return NewModuleWrapperFromFile(path, RuntimeOptions{})
}

// ResolvePath canonicalizes a path the way the import resolver would resolve
// a host-loaded module.
func ResolvePath(path string) (string, error) {
	return resolveSpecifier(path, rootReferrer)
}
