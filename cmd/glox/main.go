// Command glox is the entry point for the Lox interpreter: it can run
// a script file, disassemble a script to bytecode listings, or drop
// into an interactive REPL with a persistent VM (§6).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/kristofer/glox/pkg/bytecode"
	"github.com/kristofer/glox/pkg/compiler"
	"github.com/kristofer/glox/pkg/heap"
	"github.com/kristofer/glox/pkg/vm"
	"github.com/kristofer/glox/pkg/vmerr"
)

const version = "0.1.0"

func main() {
	cmd := &cli.Command{
		Name:    "glox",
		Usage:   "a bytecode-compiled, class-based scripting language",
		Version: version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "stress-gc",
				Usage: "collect garbage before every bytecode instruction",
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			replCommand(),
			disasmCommand(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() > 0 {
				return runScript(cmd.Args().First(), cmd.Bool("stress-gc"))
			}
			return startREPL(cmd.Bool("stress-gc"))
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(exitCodeFor(err))
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "run a .lox script",
		ArgsUsage: "<file>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() < 1 {
				return cli.Exit("glox run: no file specified", vmerr.ExitCompileError)
			}
			return runScript(cmd.Args().First(), cmd.Bool("stress-gc"))
		},
	}
}

func replCommand() *cli.Command {
	return &cli.Command{
		Name:  "repl",
		Usage: "start an interactive session",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return startREPL(cmd.Bool("stress-gc"))
		},
	}
}

func disasmCommand() *cli.Command {
	return &cli.Command{
		Name:      "disasm",
		Usage:     "compile a .lox script and print its bytecode listing",
		ArgsUsage: "<file>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() < 1 {
				return cli.Exit("glox disasm: no file specified", vmerr.ExitCompileError)
			}
			return disassembleScript(cmd.Args().First())
		},
	}
}

// runScript compiles and executes a single .lox file, exiting with
// §6's code for whichever stage failed.
func runScript(path string, stressGC bool) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("glox: %s", err), vmerr.ExitCompileError)
	}

	h := heap.New()
	h.StressGC = stressGC
	v := vm.New(h)

	if err := v.Interpret(string(source)); err != nil {
		reportError(err)
		return cli.Exit("", exitCodeFor(err))
	}
	return nil
}

// disassembleScript compiles path without running it and prints the
// instruction listing for the top-level script and every nested
// function it defines; this is the `glox disasm` command (§1).
func disassembleScript(path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("glox: %s", err), vmerr.ExitCompileError)
	}

	h := heap.New()
	fn, err := compiler.Compile(string(source), h)
	if err != nil {
		reportError(err)
		return cli.Exit("", vmerr.ExitCompileError)
	}

	disassembleFunction(fn)
	return nil
}

func disassembleFunction(fn *heap.ObjFunction) {
	name := "<script>"
	if fn.Name != nil {
		name = fn.Name.Chars
	}
	bytecode.Disassemble(color.Output, fn.Chunk, name)

	for _, constant := range fn.Chunk.Constants {
		if nested, ok := constant.Obj.(*heap.ObjFunction); ok {
			fmt.Println()
			disassembleFunction(nested)
		}
	}
}

// startREPL runs a read-eval-print loop backed by a persistent VM, so
// variables, functions, and classes declared on one line remain live
// for the next (original_source's repl.rs: one Interpreter for the
// whole session, not one per line).
func startREPL(stressGC bool) error {
	rl, err := newLineReader()
	if err != nil {
		return cli.Exit(fmt.Sprintf("glox: %s", err), vmerr.ExitRuntimeError)
	}
	defer rl.Close()

	h := heap.New()
	h.StressGC = stressGC
	v := vm.New(h)

	fmt.Printf("glox %s\n", version)
	for {
		line, err := rl.Readline()
		if err != nil {
			break
		}
		if line == "" {
			continue
		}
		rl.SaveHistory(line)

		if err := v.Interpret(line); err != nil {
			reportError(err)
		}
	}
	return nil
}

// reportError prints a diagnostic the way §7 describes: compile
// errors in the order they were collected, runtime errors with their
// full call-stack trace, both colorized so they stand out from normal
// program output.
func reportError(err error) {
	red := color.New(color.FgRed)
	red.Fprintln(os.Stderr, err.Error())
}

func exitCodeFor(err error) int {
	if err == nil {
		return vmerr.ExitOK
	}
	if exitErr, ok := err.(cli.ExitCoder); ok {
		return exitErr.ExitCode()
	}
	switch err.(type) {
	case *vmerr.CompileErrors:
		return vmerr.ExitCompileError
	case *vmerr.RuntimeError:
		return vmerr.ExitRuntimeError
	default:
		return vmerr.ExitRuntimeError
	}
}
