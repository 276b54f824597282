// Package heap implements Lox's tracing garbage collector and every
// heap-allocated object kind: interned strings, functions, closures,
// upvalues, classes, instances, and bound methods (§3, §4.1).
//
// Object Model:
//
// pkg/bytecode declares a narrow Obj interface (ObjType, String) so
// that Value can reference heap objects without heap importing
// bytecode's Value back into itself circularly. Every concrete type in
// this file implements that interface, plus an unexported `trackable`
// interface (mark/unmark/isMarked/size) that lets the Heap sweep a
// slice of heterogeneous objects uniformly.
//
// Object Lifecycles (§3):
//
//   - InternedString: lives until unreferenced by any live Value.
//   - Function: created during compilation, lives until its owning
//     closure chain is unreachable.
//   - Closure: created by OP_CLOSURE.
//   - Upvalue: created lazily on capture; open until its stack slot
//     leaves scope, then closed.
//   - Class: lives until no instance or binding references it.
//   - Instance: lives until unreachable.
//   - BoundMethod: allocated on every method property access (no
//     caching — §9 leaves caching as an optimization, not done here),
//     discarded when popped.
package heap

import (
	"fmt"

	"github.com/kristofer/glox/pkg/bytecode"
)

// header is embedded in every heap object to carry GC bookkeeping: the
// tri-color mark bit (objects start white/unmarked, marking paints
// them black in one pass since this collector has no grey-object
// requeue beyond the worklist itself) and a logical byte size charged
// against the heap's allocation accounting (§4.1).
type header struct {
	marked bool
	sz     int
}

func (h *header) mark()          { h.marked = true }
func (h *header) unmark()        { h.marked = false }
func (h *header) isMarked() bool { return h.marked }
func (h *header) size() int      { return h.sz }

// trackable is the internal view the Heap needs of any object it owns,
// regardless of concrete kind.
type trackable interface {
	bytecode.Obj
	mark()
	unmark()
	isMarked() bool
	size() int
}

const baseObjectSize = 16 // approximate per-object bookkeeping overhead charged by every allocation

// ObjString is an immutable, interned byte sequence (§3). Two strings
// with equal bytes share identity: the Heap's intern table is the only
// place a *ObjString is constructed, so pointer equality between two
// ObjString values implies byte equality and vice versa.
type ObjString struct {
	header
	Chars string
	Hash  uint32
}

func (s *ObjString) ObjType() bytecode.ObjType { return bytecode.ObjTypeString }
func (s *ObjString) String() string            { return s.Chars }

func hashString(s string) uint32 {
	// FNV-1a, matching clox's stringHash.
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// UpvalueKind distinguishes an upvalue descriptor that captures a
// local slot of the immediately enclosing function from one that
// forwards an upvalue the enclosing function itself captured (§3,
// §4.3's upvalue resolution).
type UpvalueKind byte

const (
	UpvalueLocal UpvalueKind = iota
	UpvalueUpvalue
)

// UpvalueDesc is one entry of a Function's upvalue descriptor list.
type UpvalueDesc struct {
	Kind  UpvalueKind
	Index byte
}

// ObjFunction is immutable after compilation: a Chunk, an arity, a
// name, and the upvalue descriptors closures over it must capture
// (§3).
type ObjFunction struct {
	header
	Arity        int
	UpvalueCount int
	Name         *ObjString // nil for the top-level script
	Chunk        *bytecode.Chunk
	Upvalues     []UpvalueDesc
}

func (f *ObjFunction) ObjType() bytecode.ObjType { return bytecode.ObjTypeFunction }

// NumUpvalues reports how many upvalue descriptors OP_CLOSURE must read
// for this function, letting pkg/bytecode's disassembler skip the
// right number of trailing bytes without importing this package.
func (f *ObjFunction) NumUpvalues() int { return f.UpvalueCount }

func (f *ObjFunction) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Chars)
}

// ObjUpvalue is the indirection an inner function uses to read or
// write a variable owned by an enclosing call frame (§3, §4.4.2).
//
// While Open, Location points at a live VM stack slot and Closed is
// unused; *Location is the slot's value. Once Close is called the
// value is copied into Closed and Location is redirected to point at
// it, so callers that only ever dereference *Location never need to
// know which state the upvalue is in.
type ObjUpvalue struct {
	header
	Location *bytecode.Value
	Closed   bytecode.Value
	Next     *ObjUpvalue // open-upvalue list link, sorted by stack address descending
	StackIdx int         // the stack slot Location points into while open, for list ordering
}

func (u *ObjUpvalue) ObjType() bytecode.ObjType { return bytecode.ObjTypeUpvalue }
func (u *ObjUpvalue) String() string             { return "upvalue" }

// Close transitions the upvalue from open to closed: the stack value
// is copied inline and Location is redirected to point at the inline
// copy. This may only happen once (§3's invariant).
func (u *ObjUpvalue) Close() {
	u.Closed = *u.Location
	u.Location = &u.Closed
}

// ObjClosure pairs a Function with the Upvalue references its upvalue
// descriptors name (§3).
type ObjClosure struct {
	header
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

func (c *ObjClosure) ObjType() bytecode.ObjType { return bytecode.ObjTypeClosure }
func (c *ObjClosure) String() string             { return c.Function.String() }

// NativeFn is the signature every native (host-provided) function
// must implement (§4.5). It receives the heap so natives that must
// allocate (e.g. interning a result string) can do so safely.
type NativeFn func(h *Heap, args []bytecode.Value) (bytecode.Value, error)

// ObjNative wraps a host function so it can be called like any other
// Lox callable (§4.4.1's dispatch table).
type ObjNative struct {
	header
	Name string
	Fn   NativeFn
}

func (n *ObjNative) ObjType() bytecode.ObjType { return bytecode.ObjTypeNative }
func (n *ObjNative) String() string             { return "<native fn>" }

// ObjClass is a name plus a method table (§3). Inheriting a
// superclass's methods (OP_INHERIT) copies entries into this table
// rather than chaining lookups, so method resolution after Inherit is
// a flat map lookup regardless of hierarchy depth.
type ObjClass struct {
	header
	Name    *ObjString
	Methods map[string]*ObjClosure
}

func (c *ObjClass) ObjType() bytecode.ObjType { return bytecode.ObjTypeClass }
func (c *ObjClass) String() string             { return c.Name.Chars }

// ObjInstance is a Class reference plus mutable fields (§3). Field and
// method lookup are distinct: GetProperty checks Fields before
// Methods, so an instance field can shadow a class method of the same
// name.
type ObjInstance struct {
	header
	Class  *ObjClass
	Fields map[string]bytecode.Value
}

func (i *ObjInstance) ObjType() bytecode.ObjType { return bytecode.ObjTypeInstance }
func (i *ObjInstance) String() string             { return fmt.Sprintf("%s instance", i.Class.Name.Chars) }

// ObjBoundMethod pairs a receiver with a method closure (§3). It is
// allocated fresh on every property access that resolves to a method
// (no cache — §9 Open Question, resolved as "don't cache" for
// simplicity) and discarded once popped off the stack.
type ObjBoundMethod struct {
	header
	Receiver bytecode.Value
	Method   *ObjClosure
}

func (b *ObjBoundMethod) ObjType() bytecode.ObjType { return bytecode.ObjTypeBoundMethod }
func (b *ObjBoundMethod) String() string             { return b.Method.String() }

// sizeOfMethods approximates the retained size of a method table for
// allocation accounting.
func sizeOfMethods(methods map[string]*ObjClosure) int {
	size := baseObjectSize
	for name := range methods {
		size += len(name) + 8
	}
	return size
}

// sizeOfFields approximates the retained size of a field table.
func sizeOfFields(fields map[string]bytecode.Value) int {
	size := baseObjectSize
	for name := range fields {
		size += len(name) + 16
	}
	return size
}
