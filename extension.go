package goscript

import (
	"strings"

	"github.com/apex/log"
	"github.com/dop251/goja"
)

// Extension is a host-defined capability injected into a runtime at
// construction: a binder that installs native values on the engine, plus
// optional script modules importable under ext:<name>/<filename>.
type Extension struct {
	Name    string
	Modules []Module
	Binder  func(vm *goja.Runtime) error
}

const runtimeExtensionName = "goscript"

// runtimeExtensionModule lets scripts reach the host surface through a normal
// import instead of the global.
var runtimeExtensionModule = NewModule("goscript.js", `
export function registerEntrypoint(fn) {
    return goscript.registerEntrypoint(fn);
}
`)

// builtinExtension is bound into every runtime before user extensions. It
// installs the goscript global with registerEntrypoint and a console backed
// by the runtime's logger.
func builtinExtension(r *innerRuntime) Extension {
	return Extension{
		Name:    runtimeExtensionName,
		Modules: []Module{runtimeExtensionModule},
		Binder: func(vm *goja.Runtime) error {
			host := vm.NewObject()
			err := host.Set("registerEntrypoint", func(call goja.FunctionCall) goja.Value {
				value := call.Argument(0)
				if _, ok := goja.AssertFunction(value); !ok {
					panic(vm.NewGoError(&ValueNotCallableError{Name: "entrypoint"}))
				}
				// Last registration before the load completes wins.
				r.entrypoint = value
				return goja.Undefined()
			})
			if err != nil {
				return err
			}
			if err := vm.Set(runtimeExtensionName, host); err != nil {
				return err
			}
			return bindConsole(vm, r.logger)
		},
	}
}

func bindConsole(vm *goja.Runtime, logger log.Interface) error {
	console := vm.NewObject()

	write := func(emit func(string, ...interface{})) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, argument := range call.Arguments {
				parts = append(parts, argument.String())
			}
			emit("%s", strings.Join(parts, " "))
			return goja.Undefined()
		}
	}

	levels := map[string]func(string, ...interface{}){
		"log":   logger.Infof,
		"info":  logger.Infof,
		"debug": logger.Debugf,
		"warn":  logger.Warnf,
		"error": logger.Errorf,
	}
	for name, emit := range levels {
		if err := console.Set(name, write(emit)); err != nil {
			return err
		}
	}

	return vm.Set("console", console)
}
