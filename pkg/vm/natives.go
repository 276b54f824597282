package vm

import (
	"time"

	"github.com/kristofer/glox/pkg/bytecode"
	"github.com/kristofer/glox/pkg/heap"
)

// defineNatives registers the natives §4.5 specifies: `clock`, which
// reports elapsed time since the VM started rather than wall-clock
// time, and `str`, which renders any value the way `print` would and
// returns the empty string when called with no arguments.
func (vm *VM) defineNatives() {
	vm.defineNative("clock", vm.clockNative)
	vm.defineNative("str", vm.strNative)
}

func (vm *VM) defineNative(name string, fn heap.NativeFn) {
	native := vm.Heap.NewNative(name, fn)
	vm.globals[name] = bytecode.FromObj(native)
}

func (vm *VM) clockNative(h *heap.Heap, args []bytecode.Value) (bytecode.Value, error) {
	return bytecode.Number(time.Since(vm.startTime).Seconds()), nil
}

func (vm *VM) strNative(h *heap.Heap, args []bytecode.Value) (bytecode.Value, error) {
	if len(args) < 1 {
		return bytecode.FromObj(h.InternString("")), nil
	}
	return bytecode.FromObj(h.InternString(args[0].String())), nil
}
