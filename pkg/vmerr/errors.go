// Package vmerr holds the error types shared by the compiler and the
// VM: compile-time diagnostics and runtime errors carrying a call
// stack trace (§7). Keeping these in their own package lets both
// pkg/compiler and pkg/vm depend on a common error shape without
// either depending on the other.
package vmerr

import (
	"fmt"
	"strings"
)

// ExitCode values match the conventions described in §6: a clean run
// exits 0, a compile error exits 65, an uncaught runtime error exits
// 70.
const (
	ExitOK           = 0
	ExitCompileError = 65
	ExitRuntimeError = 70
)

// CompileError is one diagnostic produced during lexing or compiling
// (§4.3's panic-mode recovery collects these rather than stopping at
// the first one).
type CompileError struct {
	Line    int
	Where   string // the lexeme at fault, or "" when not applicable
	Message string
}

func (e *CompileError) Error() string {
	if e.Where != "" {
		return fmt.Sprintf("[line %d] Error at '%s': %s", e.Line, e.Where, e.Message)
	}
	return fmt.Sprintf("[line %d] Error: %s", e.Line, e.Message)
}

// CompileErrors aggregates every diagnostic a single compile produced,
// so a script with several syntax errors reports all of them instead
// of only the first (§4.3).
type CompileErrors struct {
	Errors []*CompileError
}

func (e *CompileErrors) Error() string {
	var b strings.Builder
	for i, ce := range e.Errors {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(ce.Error())
	}
	return b.String()
}

func (e *CompileErrors) Add(line int, where, message string) {
	e.Errors = append(e.Errors, &CompileError{Line: line, Where: where, Message: message})
}

func (e *CompileErrors) HasErrors() bool { return len(e.Errors) > 0 }

// StackFrame captures one call frame's identity at the moment a
// runtime error unwound past it (§7: "the trace must show, for each
// active call, the line currently executing and the function's
// name").
type StackFrame struct {
	FunctionName string // "script" for the top-level frame
	Line         int
}

// RuntimeError is raised by the VM when execution cannot continue:
// type errors, undefined variables, arity mismatches, stack overflow,
// and the like (§4.4, §7). It carries the full call stack at the
// point of failure, innermost frame first.
type RuntimeError struct {
	Message    string
	StackTrace []StackFrame
}

func NewRuntimeError(message string, stack []StackFrame) *RuntimeError {
	return &RuntimeError{Message: message, StackTrace: stack}
}

// Error renders the message followed by a "[line N] in <fn>" trace
// line per frame, innermost first, exactly as §7 specifies so a
// script author can read top-to-bottom from the point of failure back
// to main.
func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for _, frame := range e.StackTrace {
		b.WriteByte('\n')
		if frame.FunctionName == "script" || frame.FunctionName == "" {
			fmt.Fprintf(&b, "[line %d] in script", frame.Line)
		} else {
			fmt.Fprintf(&b, "[line %d] in %s()", frame.Line, frame.FunctionName)
		}
	}
	return b.String()
}
