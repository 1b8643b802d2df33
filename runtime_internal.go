package goscript

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apex/log"
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/go-errors/errors"
	"github.com/satori/go.uuid"
)

// innerRuntime owns one engine instance and its event loop. All engine access
// happens on the loop goroutine; host goroutines submit work through
// runAsyncTask and wait on a channel, optionally bounded by the configured
// timeout. The entrypoint, function table, and registry are loop-confined and
// therefore unsynchronized.
type innerRuntime struct {
	id      string
	options RuntimeOptions
	logger  log.Interface

	loop     *eventloop.EventLoop
	vm       *goja.Runtime
	loader   *loader
	registry *moduleRegistry

	// entrypoint is the callback most recently registered by script during a
	// load; it is consumed by the load that observes it.
	entrypoint goja.Value

	// functions retains engine function values referenced by StoredFunction
	// handles. Slots are never reused while the runtime lives.
	functions []goja.Value

	stateMu sync.Mutex
	state   map[reflect.Type]interface{}
}

func newInnerRuntime(options RuntimeOptions) (*innerRuntime, error) {
	options = options.withDefaults()

	r := &innerRuntime{
		id:      uuid.NewV4().String(),
		options: options,
		logger:  options.Logger,
		loop:    eventloop.NewEventLoop(eventloop.EnableConsole(false)),
		state:   make(map[reflect.Type]interface{}),
	}
	r.loader = newLoader(options)
	r.loop.Start()

	done := make(chan error, 1)
	r.loop.RunOnLoop(func(vm *goja.Runtime) {
		r.vm = vm
		vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
		r.registry = newModuleRegistry(r.loader, r.logger)
		done <- r.bindExtensions(vm)
	})
	if err := <-done; err != nil {
		r.loop.StopNoWait()
		return nil, err
	}

	r.logger.Debugf("runtime %s ready", r.id)
	return r, nil
}

func (r *innerRuntime) bindExtensions(vm *goja.Runtime) error {
	extensions := append([]Extension{builtinExtension(r)}, r.options.Extensions...)
	for _, extension := range extensions {
		if extension.Binder != nil {
			if err := extension.Binder(vm); err != nil {
				return errors.New(err)
			}
		}
		for _, module := range extension.Modules {
			specifier := r.loader.registerExtensionModule(extension.Name, module)
			r.logger.Debugf("runtime %s: extension module %s", r.id, specifier)
		}
	}
	return nil
}

func (r *innerRuntime) close() {
	if r.vm != nil {
		r.vm.Interrupt("runtime closed")
	}
	r.loop.StopNoWait()
}

// runAsyncTask submits task to the loop, awaits any promise it returns, and
// hands the settled value to decode, still on the loop. The host side blocks
// until completion or the configured timeout; on timeout the task keeps
// running on the loop and is abandoned, not rolled back. The claimed flag
// makes abandonment real for the caller: whichever side claims the task first
// owns the outcome, so a decode that would write into the caller's target
// after a timeout is skipped instead.
func (r *innerRuntime) runAsyncTask(task func(vm *goja.Runtime) (goja.Value, error), decode func(vm *goja.Runtime, value goja.Value) error) error {
	done := make(chan error, 1)
	var claimed atomic.Bool
	r.loop.RunOnLoop(func(vm *goja.Runtime) {
		value, err := task(vm)
		if err != nil {
			done <- err
			return
		}
		r.settle(vm, value, func(vm *goja.Runtime, settled goja.Value, err error) {
			if err != nil || decode == nil {
				done <- err
				return
			}
			if !claimed.CompareAndSwap(false, true) {
				return
			}
			done <- decode(vm, settled)
		})
	})
	return r.await(done, &claimed)
}

func (r *innerRuntime) await(done <-chan error, claimed *atomic.Bool) error {
	if r.options.Timeout <= 0 {
		return <-done
	}

	timer := time.NewTimer(r.options.Timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		if claimed != nil && !claimed.CompareAndSwap(false, true) {
			// Decode already started; its result is moments away.
			return <-done
		}
		return &TimeoutError{Message: "task timed out"}
	}
}

const settlePollInterval = time.Millisecond

// settle drives a possibly-promise value to completion. A pending promise is
// re-polled on a short loop timer so engine timers and microtasks keep
// running in between.
func (r *innerRuntime) settle(vm *goja.Runtime, value goja.Value, then func(*goja.Runtime, goja.Value, error)) {
	if value == nil {
		then(vm, goja.Undefined(), nil)
		return
	}
	promise, ok := value.Export().(*goja.Promise)
	if !ok {
		then(vm, value, nil)
		return
	}

	switch promise.State() {
	case goja.PromiseStatePending:
		r.loop.SetTimeout(func(vm *goja.Runtime) {
			r.settle(vm, value, then)
		}, settlePollInterval)
	case goja.PromiseStateRejected:
		then(vm, nil, rejectionError(promise.Result()))
	default:
		then(vm, promise.Result(), nil)
	}
}

// loadModules evaluates the side modules in order, then the main module, each
// awaited before the next starts. The returned handle refers to the most
// recently evaluated module. Modules evaluated before a failure stay
// registered.
func (r *innerRuntime) loadModules(main *Module, side []Module) (*ModuleHandle, error) {
	if main == nil && len(side) == 0 {
		return nil, &RuntimeError{Message: "attempt to load no modules"}
	}

	modules := make([]Module, 0, len(side)+1)
	modules = append(modules, side...)
	if main != nil {
		modules = append(modules, *main)
	}

	var last *moduleRecord
	done := make(chan error, 1)
	var step func(vm *goja.Runtime, index int)
	step = func(vm *goja.Runtime, index int) {
		if index >= len(modules) {
			done <- nil
			return
		}
		module := modules[index]
		record, result, err := r.evaluateHostModule(vm, module)
		if err != nil {
			done <- r.scriptError(module.Filename(), err)
			return
		}
		r.settle(vm, result, func(vm *goja.Runtime, _ goja.Value, err error) {
			if err != nil {
				done <- r.scriptError(module.Filename(), err)
				return
			}
			last = record
			step(vm, index+1)
		})
	}
	r.loop.RunOnLoop(func(vm *goja.Runtime) {
		step(vm, 0)
	})
	if err := r.await(done, nil); err != nil {
		return nil, err
	}

	handleModule := modules[len(modules)-1]
	var handle *ModuleHandle
	err := r.runAsyncTask(func(vm *goja.Runtime) (goja.Value, error) {
		entrypoint, err := r.resolveEntrypoint(last)
		if err != nil {
			return nil, err
		}
		handle = newModuleHandle(handleModule, last.id, last.specifier, entrypoint)
		return goja.Undefined(), nil
	}, nil)
	if err != nil {
		return nil, err
	}
	return handle, nil
}

// evaluateHostModule registers and evaluates a host-supplied module under the
// synthetic root referrer, which also whitelists its resolved specifier.
func (r *innerRuntime) evaluateHostModule(vm *goja.Runtime, module Module) (*moduleRecord, goja.Value, error) {
	specifier, err := r.loader.resolve(module.Filename(), rootReferrer)
	if err != nil {
		return nil, nil, err
	}

	code := module.Contents()
	if r.options.Transpiler != nil {
		code, err = r.options.Transpiler(specifier, code)
		if err != nil {
			return nil, nil, errors.New(err)
		}
	}

	record := r.registry.register(vm, specifier, newModuleSource(specifier, code))
	result, err := r.registry.evaluate(vm, record)
	if err != nil {
		return nil, nil, err
	}
	return record, result, nil
}

// resolveEntrypoint picks the module's entrypoint: a callback registered
// during evaluation wins and is consumed; otherwise the configured default
// entrypoint export, when present and callable; otherwise none.
func (r *innerRuntime) resolveEntrypoint(record *moduleRecord) (*StoredFunction, error) {
	if isDefined(r.entrypoint) {
		value := r.entrypoint
		r.entrypoint = nil
		return r.captureFunction(value)
	}

	if name := r.options.DefaultEntrypoint; name != "" {
		value := r.vm.GlobalObject().Get(name)
		if !isDefined(value) {
			value = record.exports.Get(name)
		}
		if isDefined(value) {
			if _, ok := goja.AssertFunction(value); ok {
				return r.storeFunction(value), nil
			}
		}
	}
	return nil, nil
}

func (r *innerRuntime) storeFunction(value goja.Value) *StoredFunction {
	r.functions = append(r.functions, value)
	return &StoredFunction{runtimeID: r.id, slot: len(r.functions) - 1}
}

func (r *innerRuntime) storedValue(handle *StoredFunction) (goja.Value, error) {
	if handle == nil {
		return nil, &RuntimeError{Message: "stored function is nil"}
	}
	if handle.runtimeID != r.id || handle.slot < 0 || handle.slot >= len(r.functions) {
		return nil, &RuntimeError{Message: "stored function is not valid for this runtime"}
	}
	return r.functions[handle.slot], nil
}

// lookupValue finds a name in the global scope first, then in the handle's
// current export namespace. Null and undefined count as not found. The second
// return is the receiver a call should use: the export namespace for exported
// values, undefined for globals.
func (r *innerRuntime) lookupValue(vm *goja.Runtime, handle *ModuleHandle, name string) (goja.Value, goja.Value, error) {
	if value := vm.GlobalObject().Get(name); isDefined(value) {
		return value, goja.Undefined(), nil
	}
	if handle != nil {
		if record, ok := r.registry.record(handle.Specifier()); ok {
			if value := record.exports.Get(name); isDefined(value) {
				return value, record.exports, nil
			}
		}
	}
	return nil, nil, &ValueNotFoundError{Name: name}
}

func (r *innerRuntime) eval(expression string, target interface{}) error {
	err := r.runAsyncTask(func(vm *goja.Runtime) (goja.Value, error) {
		value, err := vm.RunScript("eval", expression)
		if err != nil {
			return nil, errors.New(err)
		}
		return value, nil
	}, r.decodeTo(target))
	if err != nil {
		return r.scriptError("eval", err)
	}
	return nil
}

func (r *innerRuntime) getValue(handle *ModuleHandle, name string, target interface{}) error {
	return r.runAsyncTask(func(vm *goja.Runtime) (goja.Value, error) {
		value, _, err := r.lookupValue(vm, handle, name)
		return value, err
	}, r.decodeTo(target))
}

func (r *innerRuntime) callFunction(handle *ModuleHandle, name string, target interface{}, args []interface{}) error {
	err := r.runAsyncTask(func(vm *goja.Runtime) (goja.Value, error) {
		value, self, err := r.lookupValue(vm, handle, name)
		if err != nil {
			return nil, err
		}
		return r.invoke(vm, name, value, self, args)
	}, r.decodeTo(target))
	if err != nil {
		return r.scriptError(handleFilename(handle), err)
	}
	return nil
}

func (r *innerRuntime) callStoredFunction(handle *ModuleHandle, fn *StoredFunction, target interface{}, args []interface{}) error {
	err := r.runAsyncTask(func(vm *goja.Runtime) (goja.Value, error) {
		value, err := r.storedValue(fn)
		if err != nil {
			return nil, err
		}
		return r.invoke(vm, "stored function", value, goja.Undefined(), args)
	}, r.decodeTo(target))
	if err != nil {
		return r.scriptError(handleFilename(handle), err)
	}
	return nil
}

func (r *innerRuntime) invoke(vm *goja.Runtime, name string, value, self goja.Value, args []interface{}) (goja.Value, error) {
	callable, ok := goja.AssertFunction(value)
	if !ok {
		return nil, &ValueNotCallableError{Name: name}
	}

	encoded, err := r.encodeValues(vm, args)
	if err != nil {
		return nil, err
	}
	result, err := callable(self, encoded...)
	if err != nil {
		return nil, errors.New(err)
	}
	return result, nil
}

func (r *innerRuntime) exportKeys(handle *ModuleHandle) ([]string, error) {
	var keys []string
	err := r.runAsyncTask(func(vm *goja.Runtime) (goja.Value, error) {
		record, ok := r.registry.record(handle.Specifier())
		if !ok {
			return nil, &ValueNotFoundError{Name: handle.Specifier()}
		}
		keys = record.exports.Keys()
		return goja.Undefined(), nil
	}, nil)
	return keys, err
}

func (r *innerRuntime) decodeTo(target interface{}) func(vm *goja.Runtime, value goja.Value) error {
	if target == nil {
		return nil
	}
	return func(vm *goja.Runtime, value goja.Value) error {
		return r.decodeValue(vm, value, target)
	}
}

func (r *innerRuntime) put(value interface{}) error {
	if value == nil {
		return errors.Errorf("cannot store a nil value")
	}
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	r.state[reflect.TypeOf(value)] = value
	return nil
}

func (r *innerRuntime) take(target interface{}) bool {
	pointer := reflect.ValueOf(target)
	if pointer.Kind() != reflect.Ptr || pointer.IsNil() {
		return false
	}

	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	value, ok := r.state[pointer.Type().Elem()]
	if !ok {
		return false
	}
	delete(r.state, pointer.Type().Elem())
	pointer.Elem().Set(reflect.ValueOf(value))
	return true
}

var exceptionPosition = regexp.MustCompile(`\(([^()\s]+):(\d+):\d+\(\d+\)\)`)

// scriptError maps an evaluation failure to the public error surface. Typed
// policy and lookup errors pass through; engine exceptions are reformatted
// with their source position.
func (r *innerRuntime) scriptError(filename string, err error) error {
	if err == nil {
		return nil
	}

	var denied *ImportDeniedError
	if errors.As(err, &denied) {
		return denied
	}
	var scheme *UnrecognizedSchemeError
	if errors.As(err, &scheme) {
		return scheme
	}
	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		return timeout
	}
	var notFound *ValueNotFoundError
	if errors.As(err, &notFound) {
		return notFound
	}
	var notCallable *ValueNotCallableError
	if errors.As(err, &notCallable) {
		return notCallable
	}
	var exception *goja.Exception
	if errors.As(err, &exception) {
		return &RuntimeError{Message: formatException(filename, exception)}
	}
	var runtimeErr *RuntimeError
	if errors.As(err, &runtimeErr) {
		return runtimeErr
	}
	return &RuntimeError{Message: fmt.Sprintf("%s: %s", filename, err.Error())}
}

// rejectionError renders a promise rejection the way formatException renders
// thrown exceptions: <file>:<line>: <message> when the reason carries a stack
// with position metadata, the bare message otherwise.
func rejectionError(reason goja.Value) error {
	message := reason.String()
	if object, ok := reason.(*goja.Object); ok {
		if stack := object.Get("stack"); isDefined(stack) {
			if m := exceptionPosition.FindStringSubmatch(stack.String()); m != nil {
				line, _ := strconv.Atoi(m[2])
				return &RuntimeError{Message: fmt.Sprintf("%s:%d: %s", m[1], line, message)}
			}
		}
	}
	return &RuntimeError{Message: message}
}

// formatException renders an uncaught exception as <file>:<line>: <message>,
// falling back to the module filename when the engine reports no position.
func formatException(filename string, exception *goja.Exception) string {
	message := exception.Value().String()
	if m := exceptionPosition.FindStringSubmatch(exception.String()); m != nil {
		line, _ := strconv.Atoi(m[2])
		return fmt.Sprintf("%s:%d: %s", m[1], line, message)
	}
	return fmt.Sprintf("%s: %s", filename, message)
}

func handleFilename(handle *ModuleHandle) string {
	if handle == nil {
		return "eval"
	}
	return handle.Module().Filename()
}
