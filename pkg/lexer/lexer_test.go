package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextTokenBasicTokens(t *testing.T) {
	input := `(){};,.-+/*`

	tests := []struct {
		expectedType   TokenType
		expectedLexeme string
	}{
		{TokenLeftParen, "("},
		{TokenRightParen, ")"},
		{TokenLeftBrace, "{"},
		{TokenRightBrace, "}"},
		{TokenSemicolon, ";"},
		{TokenComma, ","},
		{TokenDot, "."},
		{TokenMinus, "-"},
		{TokenPlus, "+"},
		{TokenSlash, "/"},
		{TokenStar, "*"},
		{TokenEOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		require.Equalf(t, tt.expectedType, tok.Type, "token %d", i)
		require.Equalf(t, tt.expectedLexeme, tok.Lexeme, "token %d", i)
	}
}

func TestNextTokenTwoCharOperators(t *testing.T) {
	input := `! != = == < <= > >=`

	tests := []struct {
		expectedType   TokenType
		expectedLexeme string
	}{
		{TokenBang, "!"},
		{TokenBangEqual, "!="},
		{TokenEqual, "="},
		{TokenEqualEqual, "=="},
		{TokenLess, "<"},
		{TokenLessEqual, "<="},
		{TokenGreater, ">"},
		{TokenGreaterEqual, ">="},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		require.Equalf(t, tt.expectedType, tok.Type, "token %d", i)
		require.Equalf(t, tt.expectedLexeme, tok.Lexeme, "token %d", i)
	}
}

func TestNextTokenKeywordsAndIdentifiers(t *testing.T) {
	input := `and class else false for fun if nil or print return super this true var while foo _bar42`

	expectedTypes := []TokenType{
		TokenAnd, TokenClass, TokenElse, TokenFalse, TokenFor, TokenFun,
		TokenIf, TokenNil, TokenOr, TokenPrint, TokenReturn, TokenSuper,
		TokenThis, TokenTrue, TokenVar, TokenWhile, TokenIdentifier, TokenIdentifier,
	}

	l := New(input)
	for i, want := range expectedTypes {
		tok := l.NextToken()
		require.Equalf(t, want, tok.Type, "token %d", i)
	}
}

func TestNextTokenNumbers(t *testing.T) {
	input := `123 45.67`

	l := New(input)

	tok := l.NextToken()
	require.Equal(t, TokenNumber, tok.Type)
	require.Equal(t, "123", tok.Lexeme)

	tok = l.NextToken()
	require.Equal(t, TokenNumber, tok.Type)
	require.Equal(t, "45.67", tok.Lexeme)
}

func TestNextTokenString(t *testing.T) {
	l := New(`"hello world"`)
	tok := l.NextToken()
	require.Equal(t, TokenString, tok.Type)
	require.Equal(t, `"hello world"`, tok.Lexeme)
}

func TestNextTokenUnterminatedString(t *testing.T) {
	l := New(`"hello`)
	tok := l.NextToken()
	require.Equal(t, TokenError, tok.Type)
	require.Contains(t, tok.Lexeme, "unterminated string")
}

func TestNextTokenLineTracking(t *testing.T) {
	input := "var a = 1;\nvar b = 2;"
	l := New(input)

	var lastLine int
	for {
		tok := l.NextToken()
		if tok.Type == TokenEOF {
			break
		}
		lastLine = tok.Line
	}
	require.Equal(t, 2, lastLine)
}

func TestNextTokenSkipsLineComments(t *testing.T) {
	l := New("// a comment\nvar")
	tok := l.NextToken()
	require.Equal(t, TokenVar, tok.Type)
	require.Equal(t, 2, tok.Line)
}

func TestNextTokenKeepsReturningEOF(t *testing.T) {
	l := New("")
	require.Equal(t, TokenEOF, l.NextToken().Type)
	require.Equal(t, TokenEOF, l.NextToken().Type)
	require.Equal(t, TokenEOF, l.NextToken().Type)
}

func TestNextTokenUnexpectedCharacter(t *testing.T) {
	l := New("@")
	tok := l.NextToken()
	require.Equal(t, TokenError, tok.Type)
	require.Contains(t, tok.Lexeme, "unexpected character")
}
