package heap

import (
	"github.com/kristofer/glox/pkg/bytecode"
)

const (
	initialGCThreshold = 1 << 20 // 1 MiB, §4.1's starting nextGC
	gcGrowthFactor     = 2
)

// RootsFunc is supplied by the VM at construction and returns every
// Value currently reachable directly from VM state: the value stack,
// globals, open upvalues (wrapped via bytecode.FromObj), and the
// closures captured by every active call frame. The Heap calls it at
// the start of every collection; this is the callback that lets
// pkg/heap avoid importing pkg/vm (§4.1).
type RootsFunc func() []bytecode.Value

// Heap owns every object allocated while a program runs and drives the
// mark-and-sweep collector described in §4.1. Collection is triggered
// automatically whenever bytesAllocated crosses nextGC, or on every
// allocation when StressGC is set (a test/debug knob, §4.1's "stress
// test mode").
type Heap struct {
	objects []trackable
	strings map[string]*ObjString

	bytesAllocated int
	nextGC         int
	StressGC       bool

	// InitString is the interned "init" method name, cached so the VM
	// and compiler can compare method names against it without
	// re-interning on every call (§4.4's initializer special-casing).
	InitString *ObjString

	roots RootsFunc

	// pinned holds objects kept alive regardless of VM roots: the
	// compiler pins each in-progress ObjFunction while compiling a
	// nested function, the way clox's compiler pushes the partially
	// built function onto the VM stack for the same reason (§4.1) —
	// pkg/compiler has no VM stack of its own to borrow, so it asks
	// the heap directly instead.
	pinned []bytecode.Obj

	// Collections counts completed GC cycles, surfaced for tests and
	// diagnostics (§8's "after GC" invariants need a way to force and
	// observe a cycle).
	Collections int
}

// New constructs an empty Heap. SetRoots must be called once the owning
// VM exists, before any allocation that could trigger a collection.
func New() *Heap {
	h := &Heap{
		strings: make(map[string]*ObjString),
		nextGC:  initialGCThreshold,
	}
	h.InitString = h.InternString("init")
	return h
}

// SetRoots installs the VM's root-enumeration callback.
func (h *Heap) SetRoots(fn RootsFunc) { h.roots = fn }

// Pin marks obj as a temporary root until the matching Unpin. Used by
// the compiler to protect a function it is still filling in, and by
// the VM around multi-step operations (e.g. wrapping a function in a
// new closure) whose inputs aren't yet reachable from any stack slot.
func (h *Heap) Pin(obj bytecode.Obj) { h.pinned = append(h.pinned, obj) }

// Unpin releases the most recently pinned object. Callers must pin
// and unpin in strict LIFO order, mirroring clox's push/pop pattern.
func (h *Heap) Unpin() {
	if len(h.pinned) == 0 {
		return
	}
	h.pinned = h.pinned[:len(h.pinned)-1]
}

// track charges obj's size against the allocation budget, runs the
// stress-mode collection check, and only then links obj into
// h.objects (§4.1's "stress test mode" collects on every allocation,
// not just at coarse safe points). The ordering matters: the check
// runs *before* obj is linked, so obj itself is never a candidate for
// the very collection its own allocation triggers — only objects
// tracked by earlier calls can be swept here. Anything allocated
// earlier in a multi-step construction (the compiler's in-progress
// functions, a closure still capturing upvalues) is still at risk if
// it isn't yet wired into a root by the time this runs; callers doing
// that must Pin it or push it first.
func (h *Heap) track(obj trackable, size int) {
	h.bytesAllocated += size
	h.CollectIfNeeded()
	h.objects = append(h.objects, obj)
}

// CollectIfNeeded runs a collection when bytesAllocated has crossed
// nextGC, or unconditionally when StressGC is set (§4.1's "stress test
// mode"). Called from track() on every allocation, and also from
// VM.run's and Compile's per-instruction/per-declaration safe points
// so a collection is still attempted even across stretches of
// execution that don't themselves allocate.
func (h *Heap) CollectIfNeeded() {
	if h.StressGC || h.bytesAllocated >= h.nextGC {
		h.Collect()
	}
}

// UpdateAllocation charges bytes against the budget without a full
// allocation path. SetField and SetMethod use it when a new table
// entry grows an object that is already tracked.
func (h *Heap) UpdateAllocation(delta int) {
	h.bytesAllocated += delta
}

// SetField inserts or overwrites instance's name field, charging the
// extra bytes a brand-new entry costs against the heap's allocation
// budget (§4.1's update_allocation escape hatch: growing a hash table
// a live object owns must still count towards nextGC, not just the
// allocations that create new objects outright). instance is assumed
// to already be reachable from a root — the caller (OP_SET_PROPERTY)
// always has it on the stack.
func (h *Heap) SetField(instance *ObjInstance, name string, v bytecode.Value) {
	if _, exists := instance.Fields[name]; !exists {
		delta := len(name) + 16
		instance.sz += delta
		h.UpdateAllocation(delta)
	}
	instance.Fields[name] = v
}

// SetMethod inserts method under name in class's method table,
// accounted the same way SetField accounts for a field insert. Used
// both by OP_METHOD and by OP_INHERIT copying a superclass's table
// into its subclass.
func (h *Heap) SetMethod(class *ObjClass, name string, method *ObjClosure) {
	if _, exists := class.Methods[name]; !exists {
		delta := len(name) + 8
		class.sz += delta
		h.UpdateAllocation(delta)
	}
	class.Methods[name] = method
}

// Collect runs one full mark-and-sweep cycle: mark every object
// reachable from Roots (plus InitString, always kept alive), then
// sweep unmarked objects from both the object list and the string
// intern table, then grow nextGC proportionally to what survived
// (§4.1's "threshold scales with live size so long-running heavy
// programs don't thrash").
func (h *Heap) Collect() {
	grey := h.markRoots()
	h.traceReferences(grey)
	h.sweep()
	h.Collections++
	h.nextGC = h.bytesAllocated * gcGrowthFactor
	if h.nextGC < initialGCThreshold {
		h.nextGC = initialGCThreshold
	}
}

func (h *Heap) markRoots() []trackable {
	var grey []trackable
	mark := func(v bytecode.Value) {
		if v.Kind != bytecode.KindObj || v.Obj == nil {
			return
		}
		t, ok := v.Obj.(trackable)
		if !ok || t.isMarked() {
			return
		}
		t.mark()
		grey = append(grey, t)
	}

	if h.roots != nil {
		for _, v := range h.roots() {
			mark(v)
		}
	}
	if h.InitString != nil && !h.InitString.isMarked() {
		h.InitString.mark()
		grey = append(grey, h.InitString)
	}
	for _, obj := range h.pinned {
		if obj == nil {
			continue
		}
		if t, ok := obj.(trackable); ok && !t.isMarked() {
			t.mark()
			grey = append(grey, t)
		}
	}
	return grey
}

// traceReferences drains the grey worklist, blackening each object by
// visiting whatever it references and greying anything newly
// discovered (§4.1's tri-color invariant: an object is marked before
// its own references are walked, so a cycle can never requeue
// indefinitely).
func (h *Heap) traceReferences(grey []trackable) {
	markValue := func(v bytecode.Value, out *[]trackable) {
		if v.Kind != bytecode.KindObj || v.Obj == nil {
			return
		}
		t, ok := v.Obj.(trackable)
		if !ok || t.isMarked() {
			return
		}
		t.mark()
		*out = append(*out, t)
	}
	markObj := func(o bytecode.Obj, out *[]trackable) {
		if o == nil {
			return
		}
		t, ok := o.(trackable)
		if !ok || t.isMarked() {
			return
		}
		t.mark()
		*out = append(*out, t)
	}

	for len(grey) > 0 {
		obj := grey[len(grey)-1]
		grey = grey[:len(grey)-1]

		switch o := obj.(type) {
		case *ObjFunction:
			for _, c := range o.Chunk.Constants {
				markValue(c, &grey)
			}
			if o.Name != nil { // nil for the top-level script
				markObj(o.Name, &grey)
			}
		case *ObjClosure:
			markObj(o.Function, &grey)
			for _, uv := range o.Upvalues {
				// OP_CLOSURE may collect while later slots are still unfilled.
				if uv != nil {
					markObj(uv, &grey)
				}
			}
		case *ObjUpvalue:
			markValue(*o.Location, &grey)
		case *ObjClass:
			markObj(o.Name, &grey)
			for _, m := range o.Methods {
				markObj(m, &grey)
			}
		case *ObjInstance:
			markObj(o.Class, &grey)
			for _, fv := range o.Fields {
				markValue(fv, &grey)
			}
		case *ObjBoundMethod:
			markValue(o.Receiver, &grey)
			markObj(o.Method, &grey)
		case *ObjString, *ObjNative:
			// leaf objects: nothing further to trace.
		}
	}
}

func (h *Heap) sweep() {
	survivors := h.objects[:0]
	for _, obj := range h.objects {
		if obj.isMarked() {
			obj.unmark()
			survivors = append(survivors, obj)
		} else {
			h.bytesAllocated -= obj.size()
		}
	}
	h.objects = survivors

	// Re-derive the intern table from survivors so an evicted string's
	// slot is freed for re-interning (§3's intern invariant must hold
	// across collections, not just within one).
	live := make(map[string]*ObjString, len(h.strings))
	for _, obj := range h.objects {
		if s, ok := obj.(*ObjString); ok {
			live[s.Chars] = s
		}
	}
	h.strings = live
}

// InternString returns the canonical *ObjString for s, allocating and
// tracking a new one only the first time s's bytes are seen (§3's
// intern invariant, §8 invariant 5).
func (h *Heap) InternString(s string) *ObjString {
	if existing, ok := h.strings[s]; ok {
		return existing
	}
	obj := &ObjString{Chars: s, Hash: hashString(s)}
	obj.sz = baseObjectSize + len(s)
	// Registered only after track: a collection inside track rebuilds
	// h.strings from the tracked objects, which do not include obj yet.
	h.track(obj, obj.sz)
	h.strings[s] = obj
	return obj
}

// NewFunction allocates a fresh, as-yet-unnamed function shell for the
// compiler to fill in (§4.3 allocates one per function declaration,
// including the implicit top-level script function).
func (h *Heap) NewFunction() *ObjFunction {
	fn := &ObjFunction{Chunk: bytecode.NewChunk()}
	fn.sz = baseObjectSize
	h.track(fn, fn.sz)
	return fn
}

// NewClosure wraps fn with storage for its upvalues (§4.4: OP_CLOSURE).
func (h *Heap) NewClosure(fn *ObjFunction) *ObjClosure {
	c := &ObjClosure{Function: fn, Upvalues: make([]*ObjUpvalue, fn.UpvalueCount)}
	c.sz = baseObjectSize + fn.UpvalueCount*8
	h.track(c, c.sz)
	return c
}

// NewUpvalue allocates an open upvalue pointing at the given stack
// slot (§4.4.2).
func (h *Heap) NewUpvalue(slot *bytecode.Value, stackIdx int) *ObjUpvalue {
	uv := &ObjUpvalue{Location: slot, StackIdx: stackIdx}
	uv.sz = baseObjectSize
	h.track(uv, uv.sz)
	return uv
}

// NewClass allocates a class with an empty method table (OP_CLASS,
// §4.4).
func (h *Heap) NewClass(name *ObjString) *ObjClass {
	c := &ObjClass{Name: name, Methods: make(map[string]*ObjClosure)}
	c.sz = sizeOfMethods(c.Methods)
	h.track(c, c.sz)
	return c
}

// NewInstance allocates an instance of class (the `ClassName()` call
// expression, §4.4).
func (h *Heap) NewInstance(class *ObjClass) *ObjInstance {
	i := &ObjInstance{Class: class, Fields: make(map[string]bytecode.Value)}
	i.sz = sizeOfFields(i.Fields)
	h.track(i, i.sz)
	return i
}

// NewBoundMethod allocates a receiver/method pair for a property
// access that resolved to a method (§4.4, no cache per §9).
func (h *Heap) NewBoundMethod(receiver bytecode.Value, method *ObjClosure) *ObjBoundMethod {
	b := &ObjBoundMethod{Receiver: receiver, Method: method}
	b.sz = baseObjectSize
	h.track(b, b.sz)
	return b
}

// NewNative registers a host function as a callable Lox value (§4.5).
func (h *Heap) NewNative(name string, fn NativeFn) *ObjNative {
	n := &ObjNative{Name: name, Fn: fn}
	n.sz = baseObjectSize
	h.track(n, n.sz)
	return n
}

// BytesAllocated reports the heap's current accounting total, mostly
// useful to tests verifying §8 invariant 4.
func (h *Heap) BytesAllocated() int { return h.bytesAllocated }

// NextGC reports the next collection threshold.
func (h *Heap) NextGC() int { return h.nextGC }

// ObjectCount reports how many live objects the heap is tracking.
func (h *Heap) ObjectCount() int { return len(h.objects) }
