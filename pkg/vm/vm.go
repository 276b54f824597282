// Package vm implements the stack-based bytecode virtual machine: the
// dispatch loop, the call-frame stack, global variables, and the
// bridge between compiled Chunks and the heap's garbage collector
// (§4.4).
package vm

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kristofer/glox/pkg/bytecode"
	"github.com/kristofer/glox/pkg/compiler"
	"github.com/kristofer/glox/pkg/heap"
	"github.com/kristofer/glox/pkg/vmerr"
)

const (
	framesMax = 64
	stackMax  = framesMax * 256
)

// CallFrame is one activation record: the closure being executed, the
// instruction pointer into its chunk, and the base stack slot its
// locals (and, for methods, the receiver) start at (§4.4).
type CallFrame struct {
	closure *heap.ObjClosure
	ip      int
	slots   int
}

// VM executes compiled Lox bytecode (§4.4). It owns the value stack,
// the call-frame stack, the global variable table, and the
// open-upvalue list, and it supplies the Heap with a Roots callback so
// collection always sees the true live set.
type VM struct {
	Heap *heap.Heap

	stack  []bytecode.Value
	frames []CallFrame

	globals      map[string]bytecode.Value
	openUpvalues *heap.ObjUpvalue // sorted by StackIdx, descending

	startTime time.Time
	Out       io.Writer
}

// New constructs a VM backed by h, wiring the heap's root callback and
// registering the native functions §4.5 describes.
func New(h *heap.Heap) *VM {
	vm := &VM{
		Heap:      h,
		stack:     make([]bytecode.Value, 0, stackMax),
		frames:    make([]CallFrame, 0, framesMax),
		globals:   make(map[string]bytecode.Value),
		startTime: time.Now(),
		Out:       os.Stdout,
	}
	h.SetRoots(vm.roots)
	vm.defineNatives()
	return vm
}

// Interpret compiles source and runs it to completion. A compile
// failure returns the aggregated *vmerr.CompileErrors unchanged; a
// runtime failure returns a *vmerr.RuntimeError (§6, §7).
func (vm *VM) Interpret(source string) error {
	fn, err := compiler.Compile(source, vm.Heap)
	if err != nil {
		return err
	}

	vm.Heap.Pin(fn)
	closure := vm.Heap.NewClosure(fn)
	vm.Heap.Unpin()

	vm.push(bytecode.FromObj(closure))
	if err := vm.call(closure, 0); err != nil {
		return err
	}
	return vm.run()
}

// roots implements heap.RootsFunc: every Value currently reachable
// directly from VM state (§4.1).
func (vm *VM) roots() []bytecode.Value {
	out := make([]bytecode.Value, 0, len(vm.stack)+len(vm.globals)+len(vm.frames)*2)
	out = append(out, vm.stack...)
	for _, v := range vm.globals {
		out = append(out, v)
	}
	for _, f := range vm.frames {
		out = append(out, bytecode.FromObj(f.closure))
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.Next {
		out = append(out, bytecode.FromObj(uv))
	}
	return out
}

// --- stack primitives ---

func (vm *VM) push(v bytecode.Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() bytecode.Value {
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) peek(distance int) bytecode.Value {
	return vm.stack[len(vm.stack)-1-distance]
}

// StackTop returns the value currently on top of the stack, mostly
// useful for tests driving the VM directly rather than through print
// statements.
func (vm *VM) StackTop() bytecode.Value {
	if len(vm.stack) == 0 {
		return bytecode.Nil
	}
	return vm.peek(0)
}

func (vm *VM) resetStack() {
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	vm.openUpvalues = nil
}

// frame returns the currently executing call frame.
func (vm *VM) frame() *CallFrame { return &vm.frames[len(vm.frames)-1] }

// runtimeError builds a *vmerr.RuntimeError carrying a frame-by-frame
// trace (innermost first), then resets the stack so a REPL session
// can keep going after an error (§7).
func (vm *VM) runtimeError(format string, args ...interface{}) error {
	message := fmt.Sprintf(format, args...)

	trace := make([]vmerr.StackFrame, 0, len(vm.frames))
	for i := len(vm.frames) - 1; i >= 0; i-- {
		f := vm.frames[i]
		fn := f.closure.Function
		line := fn.Chunk.LineAt(f.ip - 1)
		name := "script"
		if fn.Name != nil {
			name = fn.Name.Chars
		}
		trace = append(trace, vmerr.StackFrame{FunctionName: name, Line: line})
	}

	vm.resetStack()
	return vmerr.NewRuntimeError(message, trace)
}
