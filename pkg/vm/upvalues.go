package vm

import "github.com/kristofer/glox/pkg/heap"

// captureUpvalue returns the open upvalue for the stack slot at
// index, reusing an existing one if some other closure already
// captured that exact slot (§4.4.2: two closures capturing the same
// local must observe each other's writes through one shared upvalue).
// The open-upvalue list is kept sorted by StackIdx descending so the
// search and the later close-on-scope-exit can both stop early.
func (vm *VM) captureUpvalue(stackIdx int) *heap.ObjUpvalue {
	var prev *heap.ObjUpvalue
	curr := vm.openUpvalues
	for curr != nil && curr.StackIdx > stackIdx {
		prev = curr
		curr = curr.Next
	}
	if curr != nil && curr.StackIdx == stackIdx {
		return curr
	}

	created := vm.Heap.NewUpvalue(&vm.stack[stackIdx], stackIdx)
	created.Next = curr
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.Next = created
	}
	return created
}

// closeUpvalues closes every open upvalue pointing at or above
// fromIdx, copying each one's value inline so it survives the stack
// slot being reused or popped (§4.4.2, triggered on scope exit and on
// function return).
func (vm *VM) closeUpvalues(fromIdx int) {
	for vm.openUpvalues != nil && vm.openUpvalues.StackIdx >= fromIdx {
		uv := vm.openUpvalues
		uv.Close()
		vm.openUpvalues = uv.Next
	}
}
