package vmerr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompileErrorFormatsWithLexeme(t *testing.T) {
	e := &CompileError{Line: 3, Where: "+", Message: "Expect expression."}
	require.Equal(t, "[line 3] Error at '+': Expect expression.", e.Error())
}

func TestCompileErrorFormatsWithoutLexeme(t *testing.T) {
	e := &CompileError{Line: 3, Message: "Unterminated string."}
	require.Equal(t, "[line 3] Error: Unterminated string.", e.Error())
}

func TestCompileErrorsAggregatesMultiple(t *testing.T) {
	var errs CompileErrors
	require.False(t, errs.HasErrors())

	errs.Add(1, "", "first")
	errs.Add(2, "x", "second")
	require.True(t, errs.HasErrors())
	require.Len(t, errs.Errors, 2)
	require.Contains(t, errs.Error(), "first")
	require.Contains(t, errs.Error(), "second")
}

func TestRuntimeErrorRendersFrameTrace(t *testing.T) {
	err := NewRuntimeError("Undefined variable 'x'.", []StackFrame{
		{FunctionName: "inner", Line: 5},
		{FunctionName: "script", Line: 10},
	})

	msg := err.Error()
	require.Contains(t, msg, "Undefined variable 'x'.")
	require.Contains(t, msg, "[line 5] in inner()")
	require.Contains(t, msg, "[line 10] in script")
}
