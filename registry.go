package goscript

import (
	"encoding/json"

	"github.com/apex/log"
	"github.com/dop251/goja"
	"github.com/go-errors/errors"
)

// moduleRecord is one registered module: its source, its export namespace
// object, and its evaluation state. Records are replaced, not mutated, when
// the same specifier is registered again.
type moduleRecord struct {
	id        int
	specifier string
	source    *ModuleSource
	exports   *goja.Object
	module    *goja.Object
	evaluated bool
	// evaluating marks a record whose body is currently running; a require
	// re-entering it (an import cycle) receives the exports populated so far.
	evaluating bool
}

// moduleRegistry tracks every module registered on a runtime and evaluates
// their lowered sources. It is confined to the event loop goroutine and
// needs no locking of its own.
type moduleRegistry struct {
	loader  *loader
	records map[string]*moduleRecord
	nextID  int
	logger  log.Interface
}

func newModuleRegistry(loader *loader, logger log.Interface) *moduleRegistry {
	return &moduleRegistry{
		loader:  loader,
		records: make(map[string]*moduleRecord),
		logger:  logger,
	}
}

// register installs a source under its resolved specifier. Registering a
// specifier again replaces the previous record; handles pointing at the old
// record keep working because they capture the record, not the specifier.
func (r *moduleRegistry) register(vm *goja.Runtime, specifier string, source ModuleSource) *moduleRecord {
	r.nextID++
	record := &moduleRecord{
		id:        r.nextID,
		specifier: specifier,
		source:    &source,
		exports:   vm.NewObject(),
		module:    vm.NewObject(),
	}
	_ = record.module.Set("exports", record.exports)
	_ = record.module.Set("id", specifier)
	r.records[specifier] = record
	r.logger.Debugf("registry: registered %s as module %d", specifier, record.id)
	return record
}

func (r *moduleRegistry) record(specifier string) (*moduleRecord, bool) {
	record, ok := r.records[specifier]
	return record, ok
}

// require resolves a specifier against its referrer under the loader's
// policy, loading and evaluating the module on first use, and returns its
// export namespace.
func (r *moduleRegistry) require(vm *goja.Runtime, specifier, referrer string) (*goja.Object, error) {
	resolved, err := r.loader.resolve(specifier, referrer)
	if err != nil {
		return nil, err
	}

	if record, ok := r.records[resolved]; ok {
		if record.evaluated || record.evaluating {
			return record.exports, nil
		}
		if _, err := r.evaluate(vm, record); err != nil {
			return nil, err
		}
		return record.exports, nil
	}

	source, err := r.loader.load(resolved)
	if err != nil {
		return nil, err
	}

	record := r.register(vm, resolved, *source)
	if _, err := r.evaluate(vm, record); err != nil {
		return nil, err
	}
	return record.exports, nil
}

// evaluate runs a registered module's body, populating its export namespace.
// For a module lowered with top-level await the returned value is the promise
// of the body; callers driving host loads await it, while synchronous require
// chains cannot and see only the exports assigned before the first suspend.
func (r *moduleRegistry) evaluate(vm *goja.Runtime, record *moduleRecord) (goja.Value, error) {
	if record.evaluated {
		return goja.Undefined(), nil
	}
	record.evaluating = true
	defer func() {
		record.evaluating = false
	}()

	if record.source.Type == ModuleTypeJSON {
		if err := r.evaluateJSON(vm, record); err != nil {
			return nil, err
		}
		record.evaluated = true
		return goja.Undefined(), nil
	}

	lowered, err := lowerModuleSource(string(record.source.Code))
	if err != nil {
		return nil, err
	}

	program, err := compileJavascript(record.specifier, lowered)
	if err != nil {
		return nil, err
	}

	wrapper, err := vm.RunProgram(program)
	if err != nil {
		return nil, errors.New(err)
	}
	body, ok := goja.AssertFunction(wrapper)
	if !ok {
		return nil, errors.Errorf("module %s did not compile to a callable wrapper", record.specifier)
	}

	result, err := body(record.exports,
		r.requireFunc(vm, record.specifier),
		record.exports,
		record.module,
		r.dynamicImportFunc(vm, record.specifier))
	if err != nil {
		return nil, errors.New(err)
	}

	record.evaluated = true
	return result, nil
}

func (r *moduleRegistry) evaluateJSON(vm *goja.Runtime, record *moduleRecord) error {
	var parsed interface{}
	if err := json.Unmarshal(record.source.Code, &parsed); err != nil {
		return errors.New(err)
	}
	return record.exports.Set("default", vm.ToValue(parsed))
}

func (r *moduleRegistry) requireFunc(vm *goja.Runtime, referrer string) goja.Value {
	return vm.ToValue(func(call goja.FunctionCall) goja.Value {
		specifier := call.Argument(0).String()
		exports, err := r.require(vm, specifier, referrer)
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return exports
	})
}

// dynamicImportFunc backs the import() expression: the same resolution and
// policy path as static imports, surfaced as a promise.
func (r *moduleRegistry) dynamicImportFunc(vm *goja.Runtime, referrer string) goja.Value {
	return vm.ToValue(func(call goja.FunctionCall) goja.Value {
		specifier := call.Argument(0).String()
		promise, resolve, reject := vm.NewPromise()
		exports, err := r.require(vm, specifier, referrer)
		if err != nil {
			reject(vm.NewGoError(err))
		} else {
			resolve(exports)
		}
		return vm.ToValue(promise)
	})
}
