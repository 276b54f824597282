package compiler

import (
	"github.com/kristofer/glox/pkg/bytecode"
	"github.com/kristofer/glox/pkg/lexer"
)

// declaration parses one top-level or block-level declaration and
// resynchronizes on error so one bad statement doesn't abort the rest
// of the file (§4.3).
func (p *Parser) declaration() {
	switch {
	case p.match(lexer.TokenClass):
		p.classDeclaration()
	case p.match(lexer.TokenFun):
		p.funDeclaration()
	case p.match(lexer.TokenVar):
		p.varDeclaration()
	default:
		p.statement()
	}

	if p.panicMode {
		p.synchronize()
	}
}

func (p *Parser) statement() {
	switch {
	case p.match(lexer.TokenPrint):
		p.printStatement()
	case p.match(lexer.TokenIf):
		p.ifStatement()
	case p.match(lexer.TokenWhile):
		p.whileStatement()
	case p.match(lexer.TokenFor):
		p.forStatement()
	case p.match(lexer.TokenReturn):
		p.returnStatement()
	case p.match(lexer.TokenLeftBrace):
		p.beginScope()
		p.block()
		p.endScopeEmit()
	default:
		p.expressionStatement()
	}
}

func (p *Parser) beginScope() { p.fn.beginScope() }

// endScopeEmit closes the current scope and emits the bytecode its
// exit requires: OP_CLOSE_UPVALUE for any local a closure captured
// (so the heap-allocated upvalue detaches from the stack slot before
// the slot is reused), OP_POP for everything else (§4.4.2).
func (p *Parser) endScopeEmit() {
	dropped := p.fn.endScope()
	for _, l := range dropped {
		if l.IsCaptured {
			p.emitOp(bytecode.OpCloseUpvalue)
		} else {
			p.emitOp(bytecode.OpPop)
		}
	}
}

func (p *Parser) block() {
	for !p.check(lexer.TokenRightBrace) && !p.check(lexer.TokenEOF) {
		p.declaration()
	}
	p.consume(lexer.TokenRightBrace, "Expect '}' after block.")
}

func (p *Parser) printStatement() {
	p.expression()
	p.consume(lexer.TokenSemicolon, "Expect ';' after value.")
	p.emitOp(bytecode.OpPrint)
}

func (p *Parser) expressionStatement() {
	p.expression()
	p.consume(lexer.TokenSemicolon, "Expect ';' after expression.")
	p.emitOp(bytecode.OpPop)
}

// ifStatement compiles `if (cond) then [else else]`. The condition's
// truth value is popped right before each branch body so it never
// lingers on the stack mid-execution, and the then-branch ends with an
// unconditional jump over the else-branch (§4.3).
func (p *Parser) ifStatement() {
	p.consume(lexer.TokenLeftParen, "Expect '(' after 'if'.")
	p.expression()
	p.consume(lexer.TokenRightParen, "Expect ')' after condition.")

	thenJump := p.emitJump(bytecode.OpJumpIfFalse)
	p.emitOp(bytecode.OpPop)
	p.statement()

	elseJump := p.emitJump(bytecode.OpJump)
	p.patchJump(thenJump)
	p.emitOp(bytecode.OpPop)

	if p.match(lexer.TokenElse) {
		p.statement()
	}
	p.patchJump(elseJump)
}

func (p *Parser) whileStatement() {
	loopStart := len(p.chunk().Code)
	p.consume(lexer.TokenLeftParen, "Expect '(' after 'while'.")
	p.expression()
	p.consume(lexer.TokenRightParen, "Expect ')' after condition.")

	exitJump := p.emitJump(bytecode.OpJumpIfFalse)
	p.emitOp(bytecode.OpPop)
	p.statement()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emitOp(bytecode.OpPop)
}

// forStatement desugars the C-style for loop into the same
// while-loop bytecode shape clox emits: initializer, then condition
// check, then body, then increment, then loop back to the condition
// (§4.3 — Lox has no dedicated OP_FOR; `for` is pure sugar).
func (p *Parser) forStatement() {
	p.beginScope()
	p.consume(lexer.TokenLeftParen, "Expect '(' after 'for'.")

	switch {
	case p.match(lexer.TokenSemicolon):
		// no initializer
	case p.match(lexer.TokenVar):
		p.varDeclaration()
	default:
		p.expressionStatement()
	}

	loopStart := len(p.chunk().Code)
	exitJump := -1
	if !p.match(lexer.TokenSemicolon) {
		p.expression()
		p.consume(lexer.TokenSemicolon, "Expect ';' after loop condition.")
		exitJump = p.emitJump(bytecode.OpJumpIfFalse)
		p.emitOp(bytecode.OpPop)
	}

	if !p.match(lexer.TokenRightParen) {
		bodyJump := p.emitJump(bytecode.OpJump)
		incrementStart := len(p.chunk().Code)
		p.expression()
		p.emitOp(bytecode.OpPop)
		p.consume(lexer.TokenRightParen, "Expect ')' after for clauses.")

		p.emitLoop(loopStart)
		loopStart = incrementStart
		p.patchJump(bodyJump)
	}

	p.statement()
	p.emitLoop(loopStart)

	if exitJump != -1 {
		p.patchJump(exitJump)
		p.emitOp(bytecode.OpPop)
	}
	p.endScopeEmit()
}

func (p *Parser) returnStatement() {
	if p.fn.fnType == TypeScript {
		p.error("can't return from top-level code")
	}
	if p.match(lexer.TokenSemicolon) {
		p.emitReturn()
		return
	}
	if p.fn.fnType == TypeInitializer {
		p.error("can't return a value from an initializer")
	}
	p.expression()
	p.consume(lexer.TokenSemicolon, "Expect ';' after return value.")
	p.emitOp(bytecode.OpReturn)
}

// --- variable declaration ---

func (p *Parser) varDeclaration() {
	global := p.parseVariable("Expect variable name.")

	if p.match(lexer.TokenEqual) {
		p.expression()
	} else {
		p.emitOp(bytecode.OpNil)
	}
	p.consume(lexer.TokenSemicolon, "Expect ';' after variable declaration.")
	p.defineVariable(global)
}

// parseVariable consumes an identifier and, for a local, declares it
// immediately (uninitialized); for a global it returns the constant
// pool index of its interned name, used later by OP_DEFINE_GLOBAL
// (§4.3).
func (p *Parser) parseVariable(errMsg string) byte {
	p.consume(lexer.TokenIdentifier, errMsg)
	p.declareVariable()
	if p.fn.scopeDepth > 0 {
		return 0
	}
	return p.identifierConstant(p.previous.Lexeme)
}

// declareVariable adds the just-consumed identifier as a local if
// we're inside a scope, rejecting a redeclaration in the same scope
// (§4.3: "Already a variable with this name in this scope."). Globals
// are declared implicitly by OP_DEFINE_GLOBAL at runtime instead.
func (p *Parser) declareVariable() {
	if p.fn.scopeDepth == 0 {
		return
	}
	name := p.previous.Lexeme
	for i := len(p.fn.locals) - 1; i >= 0; i-- {
		l := p.fn.locals[i]
		if l.Depth != -1 && l.Depth < p.fn.scopeDepth {
			break
		}
		if l.Name == name {
			p.error("already a variable with this name in this scope")
		}
	}
	if !p.fn.addLocal(name) {
		p.error("too many local variables in function")
	}
}

func (p *Parser) defineVariable(global byte) {
	if p.fn.scopeDepth > 0 {
		p.fn.markInitialized()
		return
	}
	p.emitOpByte(bytecode.OpDefineGlobal, global)
}

// --- functions ---

func (p *Parser) funDeclaration() {
	global := p.parseVariable("Expect function name.")
	p.fn.markInitialized()
	p.function(TypeFunction)
	p.defineVariable(global)
}

// function compiles one function body (parameter list plus block)
// into a fresh ObjFunction, pinning it against GC while nested
// functions inside it are compiled (§4.1, §4.3), then emits an
// OP_CLOSURE that captures whatever upvalues resolution discovered.
func (p *Parser) function(fnType FunctionType) {
	fn := p.h.NewFunction()
	p.h.Pin(fn)
	defer p.h.Unpin()
	if fnType != TypeScript {
		fn.Name = p.h.InternString(p.previous.Lexeme)
	}

	p.fn = newFunctionCompiler(p.fn, fn, fnType)
	p.beginScope()

	p.consume(lexer.TokenLeftParen, "Expect '(' after function name.")
	if !p.check(lexer.TokenRightParen) {
		for {
			fn.Arity++
			if fn.Arity > 255 {
				p.errorAtCurrent("can't have more than 255 parameters")
			}
			constant := p.parseVariable("Expect parameter name.")
			p.defineVariable(constant)
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRightParen, "Expect ')' after parameters.")
	p.consume(lexer.TokenLeftBrace, "Expect '{' before function body.")
	p.block()

	upvalues := p.fn.upvalues
	compiled := p.endFunction()

	idx, err := p.chunk().AddConstant(bytecode.FromObj(compiled))
	if err != nil {
		p.error(err.Error())
		return
	}
	p.emitOpByte(bytecode.OpClosure, idx)
	for _, uv := range upvalues {
		isLocal := byte(0)
		if uv.IsLocal {
			isLocal = 1
		}
		p.emitByte(isLocal)
		p.emitByte(uv.Index)
	}
}

// --- classes ---

func (p *Parser) classDeclaration() {
	p.consume(lexer.TokenIdentifier, "Expect class name.")
	nameTok := p.previous
	nameConstant := p.identifierConstant(nameTok.Lexeme)
	p.declareVariable()

	p.emitOpByte(bytecode.OpClass, nameConstant)
	p.defineVariable(nameConstant)

	cc := &classCompiler{enclosing: p.class}
	p.class = cc

	if p.match(lexer.TokenLess) {
		p.consume(lexer.TokenIdentifier, "Expect superclass name.")
		p.variable(false)
		if p.previous.Lexeme == nameTok.Lexeme {
			p.error("a class can't inherit from itself")
		}

		p.beginScope()
		p.fn.addLocal("super")
		p.fn.markInitialized()

		p.namedVariable(nameTok, false)
		p.emitOp(bytecode.OpInherit)
		cc.hasSuperclass = true
	}

	p.namedVariable(nameTok, false)
	p.consume(lexer.TokenLeftBrace, "Expect '{' before class body.")
	for !p.check(lexer.TokenRightBrace) && !p.check(lexer.TokenEOF) {
		p.method()
	}
	p.consume(lexer.TokenRightBrace, "Expect '}' after class body.")
	p.emitOp(bytecode.OpPop) // drop the class binding pushed for OP_METHOD's benefit

	if cc.hasSuperclass {
		p.endScopeEmit()
	}
	p.class = cc.enclosing
}

func (p *Parser) method() {
	p.consume(lexer.TokenIdentifier, "Expect method name.")
	name := p.previous.Lexeme
	nameConstant := p.identifierConstant(name)

	fnType := TypeMethod
	if name == "init" {
		fnType = TypeInitializer
	}
	p.function(fnType)
	p.emitOpByte(bytecode.OpMethod, nameConstant)
}
