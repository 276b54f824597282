package compiler

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kristofer/glox/pkg/bytecode"
	"github.com/kristofer/glox/pkg/heap"
	"github.com/kristofer/glox/pkg/vmerr"
)

func compileOK(t *testing.T, source string) *heap.ObjFunction {
	t.Helper()
	h := heap.New()
	fn, err := Compile(source, h)
	require.NoError(t, err)
	require.NotNil(t, fn)
	return fn
}

func TestCompileNumberLiteralEmitsConstantAndReturn(t *testing.T) {
	fn := compileOK(t, "1;")
	code := fn.Chunk.Code
	require.Equal(t, bytecode.OpConstant, bytecode.Opcode(code[0]))
	require.Equal(t, bytecode.OpPop, bytecode.Opcode(code[2]))
	require.Equal(t, bytecode.OpNil, bytecode.Opcode(code[3]))
	require.Equal(t, bytecode.OpReturn, bytecode.Opcode(code[4]))
	require.Len(t, fn.Chunk.Constants, 1)
	require.Equal(t, 1.0, fn.Chunk.Constants[0].Num)
}

func TestCompileStringLiteralStripsQuotesAndInterns(t *testing.T) {
	h := heap.New()
	fn, err := Compile(`print "hi";`, h)
	require.NoError(t, err)
	require.Len(t, fn.Chunk.Constants, 1)
	require.Equal(t, "hi", fn.Chunk.Constants[0].Obj.String())
}

func TestCompileInvalidAssignmentTargetIsError(t *testing.T) {
	h := heap.New()
	_, err := Compile("1 + 2 = 3;", h)
	require.Error(t, err)
}

func TestCompileSelfReferentialInitializerIsError(t *testing.T) {
	h := heap.New()
	_, err := Compile("{ var a = a; }", h)
	require.Error(t, err)
}

func TestCompileShadowingInSameScopeIsError(t *testing.T) {
	h := heap.New()
	_, err := Compile("{ var a = 1; var a = 2; }", h)
	require.Error(t, err)
}

func TestCompileReturnAtTopLevelIsError(t *testing.T) {
	h := heap.New()
	_, err := Compile("return 1;", h)
	require.Error(t, err)
}

func TestCompileThisOutsideClassIsError(t *testing.T) {
	h := heap.New()
	_, err := Compile("print this;", h)
	require.Error(t, err)
}

func TestCompileSuperWithoutSuperclassIsError(t *testing.T) {
	h := heap.New()
	_, err := Compile("class A { f() { super.f(); } }", h)
	require.Error(t, err)
}

func TestCompileFunctionDeclarationEmitsClosure(t *testing.T) {
	fn := compileOK(t, "fun f(a, b) { return a + b; }")
	found := false
	for _, op := range fn.Chunk.Code {
		if bytecode.Opcode(op) == bytecode.OpClosure {
			found = true
		}
	}
	require.True(t, found)
}

func TestCompileClassWithMethodEmitsClassAndMethod(t *testing.T) {
	fn := compileOK(t, `class A { greet() { print "hi"; } }`)
	var sawClass, sawMethod bool
	for _, op := range fn.Chunk.Code {
		switch bytecode.Opcode(op) {
		case bytecode.OpClass:
			sawClass = true
		case bytecode.OpMethod:
			sawMethod = true
		}
	}
	require.True(t, sawClass)
	require.True(t, sawMethod)
}

func TestCompileTooManyArgumentsIsError(t *testing.T) {
	h := heap.New()
	src := "fun f() {} f("
	for i := 0; i < 256; i++ {
		if i > 0 {
			src += ", "
		}
		src += "1"
	}
	src += ");"
	_, err := Compile(src, h)
	require.Error(t, err)
}

func TestCompileAggregatesMultipleErrors(t *testing.T) {
	h := heap.New()
	_, err := Compile("var 1; var 2;", h)
	require.Error(t, err)
	ce, ok := err.(*vmerr.CompileErrors)
	require.True(t, ok)
	require.True(t, len(ce.Errors) >= 2)
}

func TestCompileClosureCapturesEnclosingLocal(t *testing.T) {
	fn := compileOK(t, `
fun makeCounter() {
  var i = 0;
  fun count() {
    i = i + 1;
    return i;
  }
  return count;
}
`)
	var sawClosureOp bool
	// The script's own chunk emits OP_CLOSURE for makeCounter.
	for _, op := range fn.Chunk.Code {
		if bytecode.Opcode(op) == bytecode.OpClosure {
			sawClosureOp = true
		}
	}
	require.True(t, sawClosureOp)

	// makeCounter's constant pool holds count, whose single upvalue
	// descriptor captures makeCounter's local slot 1 (i).
	var inner *heap.ObjFunction
	for _, c := range fn.Chunk.Constants {
		if outer, ok := c.Obj.(*heap.ObjFunction); ok {
			for _, oc := range outer.Chunk.Constants {
				if f, ok := oc.Obj.(*heap.ObjFunction); ok {
					inner = f
				}
			}
		}
	}
	require.NotNil(t, inner)
	require.Equal(t, []heap.UpvalueDesc{{Kind: heap.UpvalueLocal, Index: 1}}, inner.Upvalues)
}

// localsSource builds a function body declaring n distinct locals, used
// by the two tests below to probe §8's "256 locals compiles; 257
// errors" boundary (slot 0 — the function's reserved receiver/callee
// slot — counts toward the 256, so the body only needs n-1 var decls).
func localsSource(n int) string {
	var b strings.Builder
	b.WriteString("fun f() {")
	for i := 0; i < n-1; i++ {
		fmt.Fprintf(&b, "var v%d = 0;", i)
	}
	b.WriteString("}")
	return b.String()
}

func TestCompile256LocalsInOneFunctionCompiles(t *testing.T) {
	_ = compileOK(t, localsSource(256))
}

func TestCompile257LocalsInOneFunctionIsError(t *testing.T) {
	h := heap.New()
	_, err := Compile(localsSource(257), h)
	require.Error(t, err)
	require.Contains(t, err.Error(), "too many local variables")
}

// jumpSource builds `if (true) { <body> } print 1;` whose then-branch
// compiles to exactly bodyBytes of bytecode, so the OP_JUMP_IF_FALSE
// patched over it carries an offset of bodyBytes+4 (1 byte for the
// condition's OP_POP, 3 for the trailing unconditional OP_JUMP over the
// (absent) else branch) — letting the two tests below land exactly on
// §8's "forward jump of 65535 compiles; 65536 errors" boundary.
func jumpSource(bodyBytes int) string {
	var b strings.Builder
	b.WriteString("if (true) {")
	// "!nil;" compiles to OP_NIL, OP_NOT, OP_POP: 3 bytes, and uses no
	// constant-pool slot (the pool holds at most 256 entries).
	n := bodyBytes / 3
	for i := 0; i < n; i++ {
		b.WriteString("!nil;")
	}
	switch bodyBytes % 3 {
	case 2:
		// "nil;" compiles to OP_NIL, OP_POP: 2 bytes.
		b.WriteString("nil;")
	case 1:
		panic("jumpSource: bodyBytes-n*3 must be 0 or 2")
	}
	b.WriteString("} print 1;")
	return b.String()
}

func TestCompileForwardJumpOf65535Compiles(t *testing.T) {
	_ = compileOK(t, jumpSource(65535-4))
}

func TestCompileForwardJumpOf65536IsError(t *testing.T) {
	h := heap.New()
	_, err := Compile(jumpSource(65536-4), h)
	require.Error(t, err)
	require.Contains(t, err.Error(), "too much code to jump over")
}
