package bytecode

import (
	"fmt"
	"math"
	"strconv"
)

// ObjType identifies the concrete kind of a heap-allocated object
// referenced by a Value. The concrete struct types themselves live in
// pkg/heap, which depends on this package for Value and Chunk; Obj is
// declared here, as a narrow interface, purely to break that would-be
// import cycle (heap objects hold Values, Values hold heap objects).
type ObjType byte

const (
	ObjTypeString ObjType = iota
	ObjTypeFunction
	ObjTypeClosure
	ObjTypeUpvalue
	ObjTypeNative
	ObjTypeClass
	ObjTypeInstance
	ObjTypeBoundMethod
)

func (t ObjType) String() string {
	switch t {
	case ObjTypeString:
		return "string"
	case ObjTypeFunction:
		return "function"
	case ObjTypeClosure:
		return "closure"
	case ObjTypeUpvalue:
		return "upvalue"
	case ObjTypeNative:
		return "native"
	case ObjTypeClass:
		return "class"
	case ObjTypeInstance:
		return "instance"
	case ObjTypeBoundMethod:
		return "bound method"
	default:
		return "object"
	}
}

// Obj is satisfied by every heap-allocated value kind (pkg/heap's
// ObjString, ObjFunction, ObjClosure, ObjNative, ObjClass, ObjInstance,
// ObjBoundMethod). ObjType lets Value branch without importing heap;
// String lets Value delegate print formatting to the concrete type,
// which knows how to render itself (e.g. "<fn %s>").
type Obj interface {
	ObjType() ObjType
	String() string
}

// ValueKind tags the case of a Value (§3: Nil, Boolean, Number, and
// the Obj-backed reference kinds collapsed into one tag here since
// Obj.ObjType distinguishes them further).
type ValueKind byte

const (
	KindNil ValueKind = iota
	KindBool
	KindNumber
	KindObj
)

// Value is the tagged variant every VM stack slot, global, field,
// and upvalue holds. It is deliberately small and copyable (§3):
// copying a Value copies the tag and, for Obj, a pointer — never the
// referenced heap object itself.
type Value struct {
	Kind ValueKind
	Num  float64
	Bool bool
	Obj  Obj
}

// Nil is the canonical nil Value.
var Nil = Value{Kind: KindNil}

// Bool constructs a boolean Value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Number constructs a numeric Value.
func Number(n float64) Value { return Value{Kind: KindNumber, Num: n} }

// FromObj constructs a Value wrapping a heap object reference.
func FromObj(o Obj) Value { return Value{Kind: KindObj, Obj: o} }

// IsNil reports whether v is the nil value.
func (v Value) IsNil() bool { return v.Kind == KindNil }

// IsFalsey implements Lox truthiness (§4.4: "neither Nil nor false" is
// truthy, so only those two are falsey — zero and the empty string
// are truthy, unlike some scripting languages).
func (v Value) IsFalsey() bool {
	return v.Kind == KindNil || (v.Kind == KindBool && !v.Bool)
}

// Is reports whether v holds an object of the given ObjType.
func (v Value) Is(t ObjType) bool {
	return v.Kind == KindObj && v.Obj.ObjType() == t
}

// Equal implements Lox's `==`/`Equal` opcode semantics (§4.4):
// values of different tags are never equal; numbers and booleans
// compare by value; Obj values compare by identity — which for
// interned strings means the identity comparison IS the byte-equality
// comparison (§3's intern invariant).
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNil:
		return true
	case KindBool:
		return v.Bool == other.Bool
	case KindNumber:
		return v.Num == other.Num
	case KindObj:
		return v.Obj == other.Obj
	default:
		return false
	}
}

// String renders v the way `print` does. Printing of functions,
// closures, classes, instances and bound methods is implementation
// defined per §9 provided it is human-readable and unambiguous with
// literals; this mirrors clox's convention of angle-bracketed tags.
func (v Value) String() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.Num)
	case KindObj:
		return v.Obj.String()
	default:
		return "<invalid value>"
	}
}

// formatNumber renders a float64 the way Lox numbers print: integral
// values with no trailing fraction, everything else via the shortest
// round-tripping decimal representation.
func formatNumber(n float64) string {
	if math.IsInf(n, 1) {
		return "inf"
	}
	if math.IsInf(n, -1) {
		return "-inf"
	}
	if math.IsNaN(n) {
		return "nan"
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// TypeName returns a short human-readable type name for error
// messages ("can only call functions and classes", "expected a
// number", ...).
func (v Value) TypeName() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindObj:
		return v.Obj.ObjType().String()
	default:
		return fmt.Sprintf("value(kind=%d)", v.Kind)
	}
}
