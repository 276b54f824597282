package vm

import (
	"github.com/kristofer/glox/pkg/bytecode"
	"github.com/kristofer/glox/pkg/heap"
)

// callValue implements the dispatch table §4.4.1 describes: a value
// is callable if it is a closure, a native, a class (construction), or
// a bound method, each handled differently but all converging on the
// same call-frame push for the closure cases.
func (vm *VM) callValue(callee bytecode.Value, argc int) error {
	if callee.Kind != bytecode.KindObj {
		return vm.runtimeError("can only call functions and classes.")
	}

	switch callee.Obj.ObjType() {
	case bytecode.ObjTypeClosure:
		return vm.call(callee.Obj.(*heap.ObjClosure), argc)

	case bytecode.ObjTypeNative:
		native := callee.Obj.(*heap.ObjNative)
		args := vm.stack[len(vm.stack)-argc:]
		result, err := native.Fn(vm.Heap, args)
		if err != nil {
			return vm.runtimeError("%s", err.Error())
		}
		vm.stack = vm.stack[:len(vm.stack)-argc-1]
		vm.push(result)
		return nil

	case bytecode.ObjTypeClass:
		class := callee.Obj.(*heap.ObjClass)
		instance := vm.Heap.NewInstance(class)
		vm.stack[len(vm.stack)-argc-1] = bytecode.FromObj(instance)
		if init, ok := class.Methods[vm.Heap.InitString.Chars]; ok {
			return vm.call(init, argc)
		}
		if argc != 0 {
			return vm.runtimeError("expected 0 arguments but got %d.", argc)
		}
		return nil

	case bytecode.ObjTypeBoundMethod:
		bound := callee.Obj.(*heap.ObjBoundMethod)
		vm.stack[len(vm.stack)-argc-1] = bound.Receiver
		return vm.call(bound.Method, argc)

	default:
		return vm.runtimeError("can only call functions and classes.")
	}
}

// call pushes a new CallFrame for closure, validating arity and the
// frame-count ceiling (§4.4, §8's 64-deep stack-overflow boundary).
func (vm *VM) call(closure *heap.ObjClosure, argc int) error {
	if argc != closure.Function.Arity {
		return vm.runtimeError("expected %d arguments but got %d.", closure.Function.Arity, argc)
	}
	if len(vm.frames) >= framesMax {
		return vm.runtimeError("stack overflow.")
	}
	vm.frames = append(vm.frames, CallFrame{
		closure: closure,
		ip:      0,
		slots:   len(vm.stack) - argc - 1,
	})
	return nil
}

// invoke is the OP_INVOKE fast path (§4.4's optimization): a method
// call compiles straight to "look up and call" without the
// intermediate BoundMethod allocation a plain property-get-then-call
// would need. A field holding a callable still works correctly,
// falling back to an ordinary callValue.
func (vm *VM) invoke(name string, argc int) error {
	receiver := vm.peek(argc)
	if !receiver.Is(bytecode.ObjTypeInstance) {
		return vm.runtimeError("only instances have methods.")
	}
	instance := receiver.Obj.(*heap.ObjInstance)

	if field, ok := instance.Fields[name]; ok {
		vm.stack[len(vm.stack)-argc-1] = field
		return vm.callValue(field, argc)
	}
	return vm.invokeFromClass(instance.Class, name, argc)
}

func (vm *VM) invokeFromClass(class *heap.ObjClass, name string, argc int) error {
	method, ok := class.Methods[name]
	if !ok {
		return vm.runtimeError("undefined property '%s'.", name)
	}
	return vm.call(method, argc)
}
