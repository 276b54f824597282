// Package compiler implements Lox's single-pass compiler: a
// hand-written Pratt parser that emits bytecode directly as it
// recognizes each expression and statement, with no intermediate
// AST (§4.3). Scope tracking, local-slot allocation, and upvalue
// resolution all happen inline, the same pass that walks tokens.
package compiler

import (
	"errors"

	"github.com/kristofer/glox/pkg/bytecode"
	"github.com/kristofer/glox/pkg/heap"
	"github.com/kristofer/glox/pkg/lexer"
	"github.com/kristofer/glox/pkg/vmerr"
)

// errSelfReferentialInitializer signals that an identifier resolved to
// a local whose own initializer is still being compiled — the
// compile-time analogue of clox's "Can't read local variable in its
// own initializer." check (§4.3).
var errSelfReferentialInitializer = errors.New("can't read local variable in its own initializer")

// classCompiler tracks nesting of `class` declarations so `this` and
// `super` can be rejected outside any class body, and so `super` can
// be rejected in a class with no superclass (§4.4's static checks).
type classCompiler struct {
	enclosing     *classCompiler
	hasSuperclass bool
}

// Parser drives the single pass: it owns the token stream, the
// current function-compiler chain, the class-nesting stack, and the
// heap used to intern identifiers and string literals and to allocate
// each compiled ObjFunction (§4.3).
type Parser struct {
	lex *lexer.Lexer
	h   *heap.Heap

	current  lexer.Token
	previous lexer.Token

	errs      vmerr.CompileErrors
	panicMode bool

	fn    *FunctionCompiler
	class *classCompiler
}

// Compile compiles source into the implicit top-level script function.
// On success the returned *heap.ObjFunction is ready for the VM to
// wrap in a closure and call; on failure the error is a
// *vmerr.CompileErrors aggregating every diagnostic panic-mode
// recovery let it collect (§4.3, §7).
func Compile(source string, h *heap.Heap) (*heap.ObjFunction, error) {
	p := &Parser{lex: lexer.New(source), h: h}

	script := h.NewFunction()
	h.Pin(script)
	defer h.Unpin()
	p.fn = newFunctionCompiler(nil, script, TypeScript)

	p.advance()
	for !p.match(lexer.TokenEOF) {
		p.declaration()
		// A safe point: every object allocated so far either hangs off
		// the pinned in-progress function chain or off a constant pool
		// already attached to one, so a stress-mode collection here
		// can't sweep anything still needed (§4.1).
		p.h.CollectIfNeeded()
	}
	p.consume(lexer.TokenEOF, "Expect end of expression.")

	fn := p.endFunction()
	if p.errs.HasErrors() {
		return nil, &p.errs
	}
	return fn, nil
}

// --- token stream plumbing ---

func (p *Parser) advance() {
	p.previous = p.current
	for {
		p.current = p.lex.NextToken()
		if p.current.Type != lexer.TokenError {
			break
		}
		p.errorAtCurrent(p.current.Lexeme)
	}
}

func (p *Parser) check(t lexer.TokenType) bool { return p.current.Type == t }

func (p *Parser) match(t lexer.TokenType) bool {
	if !p.check(t) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) consume(t lexer.TokenType, message string) {
	if p.current.Type == t {
		p.advance()
		return
	}
	p.errorAtCurrent(message)
}

// --- error reporting (§4.3, §7) ---

func (p *Parser) errorAtCurrent(message string) { p.errorAt(p.current, message) }
func (p *Parser) error(message string)          { p.errorAt(p.previous, message) }

// errorAt records a diagnostic and enters panic mode, which
// synchronize() later clears. While panicking, further errors are
// suppressed so one bad token doesn't cascade into a wall of
// re-derived complaints (§4.3).
func (p *Parser) errorAt(tok lexer.Token, message string) {
	if p.panicMode {
		return
	}
	p.panicMode = true

	where := tok.Lexeme
	if tok.Type == lexer.TokenEOF {
		where = ""
	}
	p.errs.Add(tok.Line, where, message)
}

// synchronize discards tokens until it reaches a point panic-mode
// recovery considers a safe restart: a statement boundary, or the
// start of a declaration keyword (§4.3).
func (p *Parser) synchronize() {
	p.panicMode = false

	for p.current.Type != lexer.TokenEOF {
		if p.previous.Type == lexer.TokenSemicolon {
			return
		}
		switch p.current.Type {
		case lexer.TokenClass, lexer.TokenFun, lexer.TokenVar, lexer.TokenFor,
			lexer.TokenIf, lexer.TokenWhile, lexer.TokenPrint, lexer.TokenReturn:
			return
		}
		p.advance()
	}
}

// --- emission helpers ---

func (p *Parser) chunk() *bytecode.Chunk { return p.fn.function.Chunk }

func (p *Parser) emitByte(b byte) { p.chunk().WriteByte(b, p.previous.Line) }
func (p *Parser) emitOp(op bytecode.Opcode) { p.chunk().WriteOp(op, p.previous.Line) }

func (p *Parser) emitOpByte(op bytecode.Opcode, operand byte) {
	p.emitOp(op)
	p.emitByte(operand)
}

func (p *Parser) emitConstant(v bytecode.Value) {
	idx, err := p.chunk().AddConstant(v)
	if err != nil {
		p.error(err.Error())
		return
	}
	p.emitOpByte(bytecode.OpConstant, idx)
}

// emitJump emits op followed by a two-byte placeholder offset and
// returns the offset of the first placeholder byte, to be filled in
// later by patchJump once the target address is known (§4.3).
func (p *Parser) emitJump(op bytecode.Opcode) int {
	p.emitOp(op)
	offset := len(p.chunk().Code)
	p.chunk().WriteUint16(0xFFFF, p.previous.Line)
	return offset
}

func (p *Parser) patchJump(offset int) {
	jump := len(p.chunk().Code) - offset - 2
	if jump > 0xFFFF {
		p.error("too much code to jump over")
		return
	}
	p.chunk().PatchUint16(offset, uint16(jump))
}

// emitLoop emits OP_LOOP with the backward offset to loopStart,
// computed now since (unlike a forward jump) the target is already
// known (§4.3).
func (p *Parser) emitLoop(loopStart int) {
	p.emitOp(bytecode.OpLoop)
	offset := len(p.chunk().Code) + 2 - loopStart
	if offset > 0xFFFF {
		p.error("loop body too large")
	}
	p.chunk().WriteUint16(uint16(offset), p.previous.Line)
}

func (p *Parser) emitReturn() {
	if p.fn.fnType == TypeInitializer {
		// `init` always returns the receiver, even on a bare `return;`
		// (§4.4: "calling new returns the instance, regardless of what
		// the initializer body returns").
		p.emitOpByte(bytecode.OpGetLocal, 0)
	} else {
		p.emitOp(bytecode.OpNil)
	}
	p.emitOp(bytecode.OpReturn)
}

// endFunction finalizes the current FunctionCompiler's ObjFunction and
// pops the function-compiler stack, emitting the synthetic trailing
// return every function body implicitly has.
func (p *Parser) endFunction() *heap.ObjFunction {
	p.emitReturn()
	fn := p.fn.function

	upvalues := make([]heap.UpvalueDesc, len(p.fn.upvalues))
	for i, uv := range p.fn.upvalues {
		kind := heap.UpvalueUpvalue
		if uv.IsLocal {
			kind = heap.UpvalueLocal
		}
		upvalues[i] = heap.UpvalueDesc{Kind: kind, Index: uv.Index}
	}
	fn.Upvalues = upvalues

	p.fn = p.fn.enclosing
	return fn
}

func (p *Parser) identifierConstant(name string) byte {
	idx, err := p.chunk().AddConstant(bytecode.FromObj(p.h.InternString(name)))
	if err != nil {
		p.error(err.Error())
		return 0
	}
	return idx
}

// argumentList parses a parenthesized, comma-separated argument list
// for a call, enforcing the 255-argument ceiling an OP_CALL/OP_INVOKE
// operand byte can encode (§4.3, §8 boundary case).
func (p *Parser) argumentList() byte {
	var argc int
	if !p.check(lexer.TokenRightParen) {
		for {
			p.expression()
			if argc == 255 {
				p.error("can't have more than 255 arguments")
			}
			argc++
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRightParen, "Expect ')' after arguments.")
	return byte(argc)
}
