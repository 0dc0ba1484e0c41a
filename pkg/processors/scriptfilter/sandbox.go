package scriptfilter

import (
	"fmt"

	"github.com/dop251/goja"
)

// hiddenGlobals are removed from every shade runtime.
var hiddenGlobals = []string{
	"require",
	"module",
	"exports",
	"process",
	"global",
	"Buffer",
	"setTimeout",
	"setInterval",
	"setImmediate",
}

// frozenBuiltins cannot be modified by a script.
var frozenBuiltins = []string{"Object", "Array", "Function", "String", "Number", "Math", "JSON"}

// newRuntime creates a restricted runtime: no module system, no timers, no eval.
func newRuntime() (*goja.Runtime, error) {
	vm := goja.New()
	for _, name := range hiddenGlobals {
		if err := vm.Set(name, goja.Undefined()); err != nil {
			return nil, fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}
	if err := vm.Set("eval", func(goja.FunctionCall) goja.Value {
		panic(vm.NewTypeError("eval is not allowed in shade scripts"))
	}); err != nil {
		return nil, fmt.Errorf("failed to restrict eval: %w", err)
	}

	freeze, ok := goja.AssertFunction(vm.Get("Object").ToObject(vm).Get("freeze"))
	if !ok {
		return nil, fmt.Errorf("Object.freeze is not a function")
	}
	for _, name := range frozenBuiltins {
		obj := vm.Get(name)
		if obj == nil || goja.IsUndefined(obj) {
			continue
		}
		// freezing is best effort; a builtin that refuses stays writable
		_, _ = freeze(goja.Undefined(), obj)
		if proto := obj.ToObject(vm).Get("prototype"); proto != nil && !goja.IsUndefined(proto) {
			_, _ = freeze(goja.Undefined(), proto)
		}
	}
	return vm, nil
}
