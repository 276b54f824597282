package compiler

import "github.com/kristofer/glox/pkg/heap"

// FunctionType distinguishes the four contexts a FunctionCompiler can
// compile (§4.3): a plain function, a method, a class initializer
// (which implicitly returns the receiver rather than nil), and the
// implicit top-level function every script compiles into.
type FunctionType int

const (
	TypeFunction FunctionType = iota
	TypeMethod
	TypeInitializer
	TypeScript
)

const maxLocals = 256 // a local's slot is addressed by a single operand byte (§4.3)
const maxUpvalues = 256

// Local tracks one declared local variable's name, the scope depth it
// was declared at, and whether any nested function captures it as an
// upvalue (§4.3: a captured local must be closed over rather than
// simply popped when its scope ends).
type Local struct {
	Name       string
	Depth      int // -1 while the initializer expression is still being compiled
	IsCaptured bool
}

// Upvalue mirrors heap.UpvalueDesc during compilation, before the
// ObjFunction it belongs to is finalized.
type Upvalue struct {
	Index   byte
	IsLocal bool
}

// FunctionCompiler holds all compile-time state scoped to one
// function body: its locals, its upvalue descriptors so far, and a
// link to the enclosing function's compiler so resolveUpvalue can
// walk outward (§4.3's single-pass upvalue resolution — there is no
// separate closure-analysis pass).
type FunctionCompiler struct {
	enclosing *FunctionCompiler
	function  *heap.ObjFunction
	fnType    FunctionType

	locals     []Local
	upvalues   []Upvalue
	scopeDepth int
}

func newFunctionCompiler(enclosing *FunctionCompiler, fn *heap.ObjFunction, fnType FunctionType) *FunctionCompiler {
	fc := &FunctionCompiler{enclosing: enclosing, function: fn, fnType: fnType}
	// Slot 0 is reserved: for methods and initializers it holds the
	// receiver (named "this" so `this` resolves as an ordinary local);
	// for plain functions and the script it holds nothing addressable
	// but must still exist so slot numbering lines up with the value
	// the VM pushes when it sets up the call frame (§4.4).
	receiver := ""
	if fnType == TypeMethod || fnType == TypeInitializer {
		receiver = "this"
	}
	fc.locals = append(fc.locals, Local{Name: receiver, Depth: 0})
	return fc
}

func (fc *FunctionCompiler) beginScope() { fc.scopeDepth++ }

// endScope removes every local declared at the scope being exited and
// returns them, innermost last; it emits no bytecode itself. The
// caller (Parser.endScopeEmit) emits OP_CLOSE_UPVALUE or OP_POP for
// each one (§4.4.2).
func (fc *FunctionCompiler) endScope() []Local {
	fc.scopeDepth--
	cut := len(fc.locals)
	for cut > 0 && fc.locals[cut-1].Depth > fc.scopeDepth {
		cut--
	}
	dropped := fc.locals[cut:]
	fc.locals = fc.locals[:cut]
	return dropped
}

// addLocal declares name in the current scope, uninitialized (Depth
// -1) until the caller marks it initialized once its initializer
// expression has been compiled (§4.3: this is what makes `var a = a;`
// a compile error — resolveLocal returns an error when the nearest
// entry with that name is still uninitialized).
func (fc *FunctionCompiler) addLocal(name string) bool {
	if len(fc.locals) >= maxLocals {
		return false
	}
	fc.locals = append(fc.locals, Local{Name: name, Depth: -1})
	return true
}

func (fc *FunctionCompiler) markInitialized() {
	if fc.scopeDepth == 0 {
		return
	}
	fc.locals[len(fc.locals)-1].Depth = fc.scopeDepth
}

// resolveLocal returns the slot index of name in this function's own
// locals, searching innermost-scope-first so shadowing resolves to
// the nearest declaration.
func (fc *FunctionCompiler) resolveLocal(name string) (int, bool, error) {
	for i := len(fc.locals) - 1; i >= 0; i-- {
		if fc.locals[i].Name == name {
			if fc.locals[i].Depth == -1 {
				return 0, false, errSelfReferentialInitializer
			}
			return i, true, nil
		}
	}
	return 0, false, nil
}

// addUpvalue records (or reuses) a descriptor capturing either a local
// slot of the immediately enclosing function or an upvalue the
// enclosing function itself already captures, coalescing duplicates so
// the same free variable referenced twice only costs one upvalue slot
// (§4.3).
func (fc *FunctionCompiler) addUpvalue(index byte, isLocal bool) (int, bool) {
	for i, uv := range fc.upvalues {
		if uv.Index == index && uv.IsLocal == isLocal {
			return i, true
		}
	}
	if len(fc.upvalues) >= maxUpvalues {
		return 0, false
	}
	fc.upvalues = append(fc.upvalues, Upvalue{Index: index, IsLocal: isLocal})
	fc.function.UpvalueCount = len(fc.upvalues)
	return len(fc.upvalues) - 1, true
}

// resolveUpvalue walks the enclosing-function chain looking for name,
// recording an upvalue descriptor at every level the variable passes
// through on its way to the function that actually needs it (§4.3).
// It is the single-pass substitute for a separate free-variable
// analysis: resolution happens lazily, the first time an identifier
// used inside a nested function is compiled.
func (fc *FunctionCompiler) resolveUpvalue(name string) (int, bool, error) {
	if fc.enclosing == nil {
		return 0, false, nil
	}
	if slot, ok, err := fc.enclosing.resolveLocal(name); err != nil {
		return 0, false, err
	} else if ok {
		fc.enclosing.locals[slot].IsCaptured = true
		idx, ok := fc.addUpvalue(byte(slot), true)
		return idx, ok, nil
	}
	if slot, ok, err := fc.enclosing.resolveUpvalue(name); err != nil {
		return 0, false, err
	} else if ok {
		idx, ok := fc.addUpvalue(byte(slot), false)
		return idx, ok, nil
	}
	return 0, false, nil
}
