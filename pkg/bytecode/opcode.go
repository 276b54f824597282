// Package bytecode defines the wire format the compiler emits and the
// VM executes: the Value variant, the opcode set, variable-width
// instruction encoding, and the per-function Chunk container.
//
// Architecture:
//
// Unlike the teacher's Instruction{Op, Operand} pair (one opcode, one
// fixed-width int operand), Lox's bytecode is a genuinely variable-width
// byte stream: a Jump takes a 2-byte offset, a Call takes a 1-byte
// argument count, Nil takes no operand at all. Chunk.Code is a flat
// []byte; pkg/compiler knows how many operand bytes follow each opcode
// it emits, and pkg/vm knows the same when it decodes.
//
// Two-byte operands are stored high byte first on every host. The
// bytecode is never persisted (§4.2), so no serialization round-trip,
// network transfer, or cross-architecture concern exists.
package bytecode

import "fmt"

// Opcode is a single bytecode instruction tag.
type Opcode byte

// The opcode set, grouped the way §4.2 groups it.
const (
	// Stack literals.
	OpNil Opcode = iota
	OpTrue
	OpFalse
	OpConstant // idx byte: push Chunk.Constants[idx]

	// Arithmetic / logic.
	OpNegate
	OpNot
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpEqual
	OpGreater
	OpLess

	// Side effects.
	OpPrint
	OpPop

	// Globals.
	OpDefineGlobal // idx byte: name in Constants
	OpGetGlobal
	OpSetGlobal

	// Locals.
	OpGetLocal // slot byte
	OpSetLocal

	// Control flow.
	OpJumpIfFalse // off16: unsigned forward offset
	OpJump        // off16: unsigned forward offset
	OpLoop        // off16: unsigned backward offset

	// Calls.
	OpCall // argc byte
	OpReturn

	// Closures.
	OpClosure // idx byte (function constant) + per-upvalue (isLocal byte, index byte) pairs
	OpGetUpvalue
	OpSetUpvalue
	OpCloseUpvalue

	// Classes.
	OpClass // idx byte: class name in Constants
	OpMethod
	OpGetProperty
	OpSetProperty
	OpInvoke // idx byte (method name) + argc byte
	OpInherit
	OpGetSuper
	OpSuperInvoke // idx byte (method name) + argc byte
)

var opcodeNames = map[Opcode]string{
	OpNil:          "OP_NIL",
	OpTrue:         "OP_TRUE",
	OpFalse:        "OP_FALSE",
	OpConstant:     "OP_CONSTANT",
	OpNegate:       "OP_NEGATE",
	OpNot:          "OP_NOT",
	OpAdd:          "OP_ADD",
	OpSubtract:     "OP_SUBTRACT",
	OpMultiply:     "OP_MULTIPLY",
	OpDivide:       "OP_DIVIDE",
	OpEqual:        "OP_EQUAL",
	OpGreater:      "OP_GREATER",
	OpLess:         "OP_LESS",
	OpPrint:        "OP_PRINT",
	OpPop:          "OP_POP",
	OpDefineGlobal: "OP_DEFINE_GLOBAL",
	OpGetGlobal:    "OP_GET_GLOBAL",
	OpSetGlobal:    "OP_SET_GLOBAL",
	OpGetLocal:     "OP_GET_LOCAL",
	OpSetLocal:     "OP_SET_LOCAL",
	OpJumpIfFalse:  "OP_JUMP_IF_FALSE",
	OpJump:         "OP_JUMP",
	OpLoop:         "OP_LOOP",
	OpCall:         "OP_CALL",
	OpReturn:       "OP_RETURN",
	OpClosure:      "OP_CLOSURE",
	OpGetUpvalue:   "OP_GET_UPVALUE",
	OpSetUpvalue:   "OP_SET_UPVALUE",
	OpCloseUpvalue: "OP_CLOSE_UPVALUE",
	OpClass:        "OP_CLASS",
	OpMethod:       "OP_METHOD",
	OpGetProperty:  "OP_GET_PROPERTY",
	OpSetProperty:  "OP_SET_PROPERTY",
	OpInvoke:       "OP_INVOKE",
	OpInherit:      "OP_INHERIT",
	OpGetSuper:     "OP_GET_SUPER",
	OpSuperInvoke:  "OP_SUPER_INVOKE",
}

// String renders the opcode's mnemonic, used by the disassembler and
// by error messages that report "unknown opcode" on corrupt state.
func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("OP_UNKNOWN(%d)", byte(op))
}
