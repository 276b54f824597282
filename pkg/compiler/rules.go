package compiler

import "github.com/kristofer/glox/pkg/lexer"

// Precedence orders binary operators from loosest to tightest binding,
// the table parsePrecedence climbs (§4.3's Pratt parser).
type Precedence int

const (
	PrecNone Precedence = iota
	PrecAssignment // =
	PrecOr         // or
	PrecAnd        // and
	PrecEquality   // == !=
	PrecComparison // < > <= >=
	PrecTerm       // + -
	PrecFactor     // * /
	PrecUnary      // ! -
	PrecCall       // . ()
	PrecPrimary
)

type parseFn func(p *Parser, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

var rules map[lexer.TokenType]parseRule

func init() {
	rules = map[lexer.TokenType]parseRule{
		lexer.TokenLeftParen:    {(*Parser).grouping, (*Parser).call, PrecCall},
		lexer.TokenRightParen:   {nil, nil, PrecNone},
		lexer.TokenLeftBrace:    {nil, nil, PrecNone},
		lexer.TokenRightBrace:   {nil, nil, PrecNone},
		lexer.TokenComma:        {nil, nil, PrecNone},
		lexer.TokenDot:          {nil, (*Parser).dot, PrecCall},
		lexer.TokenMinus:        {(*Parser).unary, (*Parser).binary, PrecTerm},
		lexer.TokenPlus:         {nil, (*Parser).binary, PrecTerm},
		lexer.TokenSemicolon:    {nil, nil, PrecNone},
		lexer.TokenSlash:        {nil, (*Parser).binary, PrecFactor},
		lexer.TokenStar:         {nil, (*Parser).binary, PrecFactor},
		lexer.TokenBang:         {(*Parser).unary, nil, PrecNone},
		lexer.TokenBangEqual:    {nil, (*Parser).binary, PrecEquality},
		lexer.TokenEqual:        {nil, nil, PrecNone},
		lexer.TokenEqualEqual:   {nil, (*Parser).binary, PrecEquality},
		lexer.TokenGreater:      {nil, (*Parser).binary, PrecComparison},
		lexer.TokenGreaterEqual: {nil, (*Parser).binary, PrecComparison},
		lexer.TokenLess:         {nil, (*Parser).binary, PrecComparison},
		lexer.TokenLessEqual:    {nil, (*Parser).binary, PrecComparison},
		lexer.TokenIdentifier:   {(*Parser).variableExpr, nil, PrecNone},
		lexer.TokenString:       {(*Parser).stringLiteral, nil, PrecNone},
		lexer.TokenNumber:       {(*Parser).numberLiteral, nil, PrecNone},
		lexer.TokenAnd:          {nil, (*Parser).and, PrecAnd},
		lexer.TokenClass:        {nil, nil, PrecNone},
		lexer.TokenElse:         {nil, nil, PrecNone},
		lexer.TokenFalse:        {(*Parser).literal, nil, PrecNone},
		lexer.TokenFor:          {nil, nil, PrecNone},
		lexer.TokenFun:          {nil, nil, PrecNone},
		lexer.TokenIf:           {nil, nil, PrecNone},
		lexer.TokenNil:          {(*Parser).literal, nil, PrecNone},
		lexer.TokenOr:           {nil, (*Parser).or, PrecOr},
		lexer.TokenPrint:        {nil, nil, PrecNone},
		lexer.TokenReturn:       {nil, nil, PrecNone},
		lexer.TokenSuper:        {(*Parser).super, nil, PrecNone},
		lexer.TokenThis:         {(*Parser).this, nil, PrecNone},
		lexer.TokenTrue:         {(*Parser).literal, nil, PrecNone},
		lexer.TokenVar:          {nil, nil, PrecNone},
		lexer.TokenWhile:        {nil, nil, PrecNone},
		lexer.TokenError:        {nil, nil, PrecNone},
		lexer.TokenEOF:          {nil, nil, PrecNone},
	}
}

func ruleFor(t lexer.TokenType) parseRule {
	if r, ok := rules[t]; ok {
		return r
	}
	return parseRule{nil, nil, PrecNone}
}

func (p *Parser) expression() { p.parsePrecedence(PrecAssignment) }

// parsePrecedence is the core of the Pratt parser: it consumes a
// prefix expression then repeatedly consumes infix operators whose
// precedence is at least minPrec, left-associating same-precedence
// runs (§4.3). canAssign is threaded through so `=` is only honored at
// PrecAssignment or looser — `a + b = c` correctly fails to parse the
// trailing `= c` as an assignment.
func (p *Parser) parsePrecedence(minPrec Precedence) {
	p.advance()
	prefix := ruleFor(p.previous.Type).prefix
	if prefix == nil {
		p.error("expect expression")
		return
	}
	canAssign := minPrec <= PrecAssignment
	prefix(p, canAssign)

	for minPrec <= ruleFor(p.current.Type).precedence {
		p.advance()
		infix := ruleFor(p.previous.Type).infix
		infix(p, canAssign)
	}

	if canAssign && p.match(lexer.TokenEqual) {
		p.error("invalid assignment target")
	}
}
