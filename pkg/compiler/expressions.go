package compiler

import (
	"strconv"

	"github.com/kristofer/glox/pkg/bytecode"
	"github.com/kristofer/glox/pkg/lexer"
)

func (p *Parser) numberLiteral(canAssign bool) {
	n, _ := strconv.ParseFloat(p.previous.Lexeme, 64)
	p.emitConstant(bytecode.Number(n))
}

// stringLiteral interns the literal's text with its surrounding quotes
// stripped. Lox performs no escape processing (§6), so the interned
// bytes are exactly what appeared between the quotes.
func (p *Parser) stringLiteral(canAssign bool) {
	raw := p.previous.Lexeme
	text := raw[1 : len(raw)-1]
	p.emitConstant(bytecode.FromObj(p.h.InternString(text)))
}

func (p *Parser) literal(canAssign bool) {
	switch p.previous.Type {
	case lexer.TokenFalse:
		p.emitOp(bytecode.OpFalse)
	case lexer.TokenTrue:
		p.emitOp(bytecode.OpTrue)
	case lexer.TokenNil:
		p.emitOp(bytecode.OpNil)
	}
}

func (p *Parser) grouping(canAssign bool) {
	p.expression()
	p.consume(lexer.TokenRightParen, "Expect ')' after expression.")
}

func (p *Parser) unary(canAssign bool) {
	op := p.previous.Type
	p.parsePrecedence(PrecUnary)
	switch op {
	case lexer.TokenMinus:
		p.emitOp(bytecode.OpNegate)
	case lexer.TokenBang:
		p.emitOp(bytecode.OpNot)
	}
}

func (p *Parser) binary(canAssign bool) {
	op := p.previous.Type
	rule := ruleFor(op)
	p.parsePrecedence(rule.precedence + 1)

	switch op {
	case lexer.TokenPlus:
		p.emitOp(bytecode.OpAdd)
	case lexer.TokenMinus:
		p.emitOp(bytecode.OpSubtract)
	case lexer.TokenStar:
		p.emitOp(bytecode.OpMultiply)
	case lexer.TokenSlash:
		p.emitOp(bytecode.OpDivide)
	case lexer.TokenBangEqual:
		p.emitOp(bytecode.OpEqual)
		p.emitOp(bytecode.OpNot)
	case lexer.TokenEqualEqual:
		p.emitOp(bytecode.OpEqual)
	case lexer.TokenGreater:
		p.emitOp(bytecode.OpGreater)
	case lexer.TokenGreaterEqual:
		p.emitOp(bytecode.OpLess)
		p.emitOp(bytecode.OpNot)
	case lexer.TokenLess:
		p.emitOp(bytecode.OpLess)
	case lexer.TokenLessEqual:
		p.emitOp(bytecode.OpGreater)
		p.emitOp(bytecode.OpNot)
	}
}

// and/or short-circuit by jumping over the right operand rather than
// evaluating both sides and ANDing/ORing booleans (§4.3: this also
// means the result can be any value, not coerced to a boolean, which
// matches clox).
func (p *Parser) and(canAssign bool) {
	endJump := p.emitJump(bytecode.OpJumpIfFalse)
	p.emitOp(bytecode.OpPop)
	p.parsePrecedence(PrecAnd)
	p.patchJump(endJump)
}

func (p *Parser) or(canAssign bool) {
	elseJump := p.emitJump(bytecode.OpJumpIfFalse)
	endJump := p.emitJump(bytecode.OpJump)
	p.patchJump(elseJump)
	p.emitOp(bytecode.OpPop)
	p.parsePrecedence(PrecOr)
	p.patchJump(endJump)
}

func (p *Parser) call(canAssign bool) {
	argc := p.argumentList()
	p.emitOpByte(bytecode.OpCall, argc)
}

// dot compiles a.b, optionally as an assignment (a.b = v), a plain
// get, or a.b(...) — the last folded into the single OP_INVOKE
// instruction that skips allocating a BoundMethod only to call and
// discard it immediately (§4.4's fast path).
func (p *Parser) dot(canAssign bool) {
	p.consume(lexer.TokenIdentifier, "Expect property name after '.'.")
	name := p.identifierConstant(p.previous.Lexeme)

	switch {
	case canAssign && p.match(lexer.TokenEqual):
		p.expression()
		p.emitOpByte(bytecode.OpSetProperty, name)
	case p.match(lexer.TokenLeftParen):
		argc := p.argumentList()
		p.emitOpByte(bytecode.OpInvoke, name)
		p.emitByte(argc)
	default:
		p.emitOpByte(bytecode.OpGetProperty, name)
	}
}

func (p *Parser) variableExpr(canAssign bool) {
	p.namedVariable(p.previous, canAssign)
}

// variable is used by classDeclaration to read a superclass name as
// an expression (it is never an assignment target).
func (p *Parser) variable(canAssign bool) {
	p.namedVariable(p.previous, canAssign)
}

// namedVariable resolves name against the local/upvalue/global scopes
// in that order and emits the matching get or (if canAssign and an
// `=` follows) set opcode (§4.3).
func (p *Parser) namedVariable(name lexer.Token, canAssign bool) {
	var getOp, setOp bytecode.Opcode
	var operand byte

	if slot, ok, err := p.fn.resolveLocal(name.Lexeme); err != nil {
		p.error("can't read local variable in its own initializer")
		return
	} else if ok {
		getOp, setOp, operand = bytecode.OpGetLocal, bytecode.OpSetLocal, byte(slot)
	} else if slot, ok, err := p.fn.resolveUpvalue(name.Lexeme); err != nil {
		p.error("can't read local variable in its own initializer")
		return
	} else if ok {
		getOp, setOp, operand = bytecode.OpGetUpvalue, bytecode.OpSetUpvalue, byte(slot)
	} else {
		getOp, setOp, operand = bytecode.OpGetGlobal, bytecode.OpSetGlobal, p.identifierConstant(name.Lexeme)
	}

	if canAssign && p.match(lexer.TokenEqual) {
		p.expression()
		p.emitOpByte(setOp, operand)
	} else {
		p.emitOpByte(getOp, operand)
	}
}

func (p *Parser) this(canAssign bool) {
	if p.class == nil {
		p.error("can't use 'this' outside of a class")
		return
	}
	p.variableExpr(false)
}

// super compiles `super.method` and, as an optimization mirroring
// `.method()` calls, folds a trailing call into OP_SUPER_INVOKE
// (§4.4).
func (p *Parser) super(canAssign bool) {
	if p.class == nil {
		p.error("can't use 'super' outside of a class")
	} else if !p.class.hasSuperclass {
		p.error("can't use 'super' in a class with no superclass")
	}

	p.consume(lexer.TokenDot, "Expect '.' after 'super'.")
	p.consume(lexer.TokenIdentifier, "Expect superclass method name.")
	name := p.identifierConstant(p.previous.Lexeme)

	p.namedVariable(lexer.Token{Type: lexer.TokenIdentifier, Lexeme: "this"}, false)
	if p.match(lexer.TokenLeftParen) {
		argc := p.argumentList()
		p.namedVariable(lexer.Token{Type: lexer.TokenIdentifier, Lexeme: "super"}, false)
		p.emitOpByte(bytecode.OpSuperInvoke, name)
		p.emitByte(argc)
	} else {
		p.namedVariable(lexer.Token{Type: lexer.TokenIdentifier, Lexeme: "super"}, false)
		p.emitOpByte(bytecode.OpGetSuper, name)
	}
}
