package vm

import (
	"fmt"

	"github.com/kristofer/glox/pkg/bytecode"
	"github.com/kristofer/glox/pkg/heap"
)

// run is the bytecode dispatch loop (§4.4): fetch, decode, execute,
// repeat, until the outermost frame returns or a runtime error
// unwinds the whole call stack.
func (vm *VM) run() error {
	frame := vm.frame()

	readByte := func() byte {
		b := frame.closure.Function.Chunk.Code[frame.ip]
		frame.ip++
		return b
	}
	readUint16 := func() uint16 {
		v := frame.closure.Function.Chunk.ReadUint16(frame.ip)
		frame.ip += 2
		return v
	}
	readConstant := func() bytecode.Value {
		return frame.closure.Function.Chunk.Constants[readByte()]
	}
	readString := func() *heap.ObjString {
		return readConstant().Obj.(*heap.ObjString)
	}

	for {
		vm.Heap.CollectIfNeeded()

		op := bytecode.Opcode(readByte())
		switch op {
		case bytecode.OpConstant:
			vm.push(readConstant())

		case bytecode.OpNil:
			vm.push(bytecode.Nil)
		case bytecode.OpTrue:
			vm.push(bytecode.Bool(true))
		case bytecode.OpFalse:
			vm.push(bytecode.Bool(false))
		case bytecode.OpPop:
			vm.pop()

		case bytecode.OpGetLocal:
			slot := readByte()
			vm.push(vm.stack[frame.slots+int(slot)])
		case bytecode.OpSetLocal:
			slot := readByte()
			vm.stack[frame.slots+int(slot)] = vm.peek(0)

		case bytecode.OpGetGlobal:
			name := readString()
			v, ok := vm.globals[name.Chars]
			if !ok {
				return vm.runtimeError("undefined variable '%s'.", name.Chars)
			}
			vm.push(v)
		case bytecode.OpDefineGlobal:
			name := readString()
			vm.globals[name.Chars] = vm.peek(0)
			vm.pop()
		case bytecode.OpSetGlobal:
			name := readString()
			if _, ok := vm.globals[name.Chars]; !ok {
				return vm.runtimeError("undefined variable '%s'.", name.Chars)
			}
			vm.globals[name.Chars] = vm.peek(0)

		case bytecode.OpGetUpvalue:
			slot := readByte()
			vm.push(*frame.closure.Upvalues[slot].Location)
		case bytecode.OpSetUpvalue:
			slot := readByte()
			*frame.closure.Upvalues[slot].Location = vm.peek(0)

		case bytecode.OpGetProperty:
			if err := vm.getProperty(readString()); err != nil {
				return err
			}
		case bytecode.OpSetProperty:
			if err := vm.setProperty(readString()); err != nil {
				return err
			}
		case bytecode.OpGetSuper:
			name := readString()
			superclass := vm.pop().Obj.(*heap.ObjClass)
			receiver := vm.pop()
			bound, err := vm.bindMethod(superclass, name.Chars, receiver)
			if err != nil {
				return err
			}
			vm.push(bound)

		case bytecode.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(bytecode.Bool(a.Equal(b)))
		case bytecode.OpGreater:
			if err := vm.numericBinary(func(a, b float64) bytecode.Value { return bytecode.Bool(a > b) }); err != nil {
				return err
			}
		case bytecode.OpLess:
			if err := vm.numericBinary(func(a, b float64) bytecode.Value { return bytecode.Bool(a < b) }); err != nil {
				return err
			}

		case bytecode.OpAdd:
			if err := vm.add(); err != nil {
				return err
			}
		case bytecode.OpSubtract:
			if err := vm.numericBinary(func(a, b float64) bytecode.Value { return bytecode.Number(a - b) }); err != nil {
				return err
			}
		case bytecode.OpMultiply:
			if err := vm.numericBinary(func(a, b float64) bytecode.Value { return bytecode.Number(a * b) }); err != nil {
				return err
			}
		case bytecode.OpDivide:
			if err := vm.numericBinary(func(a, b float64) bytecode.Value { return bytecode.Number(a / b) }); err != nil {
				return err
			}
		case bytecode.OpNot:
			vm.push(bytecode.Bool(vm.pop().IsFalsey()))
		case bytecode.OpNegate:
			if vm.peek(0).Kind != bytecode.KindNumber {
				return vm.runtimeError("operand must be a number.")
			}
			v := vm.pop()
			vm.push(bytecode.Number(-v.Num))

		case bytecode.OpPrint:
			fmt.Fprintln(vm.Out, vm.pop().String())

		case bytecode.OpJump:
			offset := readUint16()
			frame.ip += int(offset)
		case bytecode.OpJumpIfFalse:
			offset := readUint16()
			if vm.peek(0).IsFalsey() {
				frame.ip += int(offset)
			}
		case bytecode.OpLoop:
			offset := readUint16()
			frame.ip -= int(offset)

		case bytecode.OpCall:
			argc := int(readByte())
			if err := vm.callValue(vm.peek(argc), argc); err != nil {
				return err
			}
			frame = vm.frame()

		case bytecode.OpInvoke:
			name := readString()
			argc := int(readByte())
			if err := vm.invoke(name.Chars, argc); err != nil {
				return err
			}
			frame = vm.frame()

		case bytecode.OpSuperInvoke:
			name := readString()
			argc := int(readByte())
			superclass := vm.pop().Obj.(*heap.ObjClass)
			if err := vm.invokeFromClass(superclass, name.Chars, argc); err != nil {
				return err
			}
			frame = vm.frame()

		case bytecode.OpClosure:
			fn := readConstant().Obj.(*heap.ObjFunction)
			vm.Heap.Pin(fn)
			closure := vm.Heap.NewClosure(fn)
			vm.Heap.Unpin()
			// Pushed before upvalues are captured (§4.4: "the closure
			// must be pushed before capturing") so it's reachable from
			// the stack root for the whole loop below, not just after.
			vm.push(bytecode.FromObj(closure))
			for i := range closure.Upvalues {
				isLocal := readByte()
				index := readByte()
				if isLocal != 0 {
					closure.Upvalues[i] = vm.captureUpvalue(frame.slots + int(index))
				} else {
					closure.Upvalues[i] = frame.closure.Upvalues[index]
				}
			}

		case bytecode.OpCloseUpvalue:
			vm.closeUpvalues(len(vm.stack) - 1)
			vm.pop()

		case bytecode.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.slots)
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) == 0 {
				vm.pop() // the script closure itself
				return nil
			}
			vm.stack = vm.stack[:frame.slots]
			vm.push(result)
			frame = vm.frame()

		case bytecode.OpClass:
			name := readString()
			vm.push(bytecode.FromObj(vm.Heap.NewClass(name)))

		case bytecode.OpInherit:
			superVal := vm.peek(1)
			if !superVal.Is(bytecode.ObjTypeClass) {
				return vm.runtimeError("superclass must be a class.")
			}
			superclass := superVal.Obj.(*heap.ObjClass)
			subclass := vm.peek(0).Obj.(*heap.ObjClass)
			for name, method := range superclass.Methods {
				vm.Heap.SetMethod(subclass, name, method)
			}
			vm.pop() // drop the duplicate subclass reference; superclass remains as the "super" local

		case bytecode.OpMethod:
			name := readString()
			vm.defineMethod(name.Chars)

		default:
			return vm.runtimeError("unknown opcode %v.", op)
		}
	}
}

// add implements `+` (§4.4): numeric addition when both operands are
// numbers, string concatenation when both are strings, a type error
// otherwise. Lox does not coerce across the two.
func (vm *VM) add() error {
	b := vm.peek(0)
	a := vm.peek(1)
	switch {
	case a.Kind == bytecode.KindNumber && b.Kind == bytecode.KindNumber:
		vm.pop()
		vm.pop()
		vm.push(bytecode.Number(a.Num + b.Num))
		return nil
	case a.Is(bytecode.ObjTypeString) && b.Is(bytecode.ObjTypeString):
		vm.pop()
		vm.pop()
		as := a.Obj.(*heap.ObjString).Chars
		bs := b.Obj.(*heap.ObjString).Chars
		vm.push(bytecode.FromObj(vm.Heap.InternString(as + bs)))
		return nil
	default:
		return vm.runtimeError("operands must be two numbers or two strings.")
	}
}

func (vm *VM) numericBinary(op func(a, b float64) bytecode.Value) error {
	if vm.peek(0).Kind != bytecode.KindNumber || vm.peek(1).Kind != bytecode.KindNumber {
		return vm.runtimeError("operands must be numbers.")
	}
	b := vm.pop()
	a := vm.pop()
	vm.push(op(a.Num, b.Num))
	return nil
}

func (vm *VM) getProperty(name *heap.ObjString) error {
	receiver := vm.peek(0)
	if !receiver.Is(bytecode.ObjTypeInstance) {
		return vm.runtimeError("only instances have properties.")
	}
	instance := receiver.Obj.(*heap.ObjInstance)
	if field, ok := instance.Fields[name.Chars]; ok {
		vm.pop()
		vm.push(field)
		return nil
	}
	bound, err := vm.bindMethod(instance.Class, name.Chars, receiver)
	if err != nil {
		return err
	}
	vm.pop()
	vm.push(bound)
	return nil
}

func (vm *VM) setProperty(name *heap.ObjString) error {
	receiver := vm.peek(1)
	if !receiver.Is(bytecode.ObjTypeInstance) {
		return vm.runtimeError("only instances have fields.")
	}
	instance := receiver.Obj.(*heap.ObjInstance)
	value := vm.peek(0)
	vm.Heap.SetField(instance, name.Chars, value)
	vm.pop()
	vm.pop()
	vm.push(value)
	return nil
}

func (vm *VM) bindMethod(class *heap.ObjClass, name string, receiver bytecode.Value) (bytecode.Value, error) {
	method, ok := class.Methods[name]
	if !ok {
		return bytecode.Nil, vm.runtimeError("undefined property '%s'.", name)
	}
	return bytecode.FromObj(vm.Heap.NewBoundMethod(receiver, method)), nil
}

func (vm *VM) defineMethod(name string) {
	method := vm.peek(0).Obj.(*heap.ObjClosure)
	class := vm.peek(1).Obj.(*heap.ObjClass)
	vm.Heap.SetMethod(class, name, method)
	vm.pop()
}
