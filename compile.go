package main

import (
	"fmt"
	"io"
	"strings"
)

// Compile lexes and parses source and returns the generated IR text.
func Compile(source string) (string, error) {
	tokens, err := Tokenize(source)
	if err != nil {
		return "", err
	}
	return NewParser(tokens).ParseProgram()
}

// Execute runs IR text with no input and returns everything main printed.
func Execute(ir string) (string, error) {
	return ExecuteWithInput(ir, "")
}

// ExecuteWithInput runs IR text, feeding %input from input. On failure the
// output printed before the error is still returned.
func ExecuteWithInput(ir, input string) (string, error) {
	var out strings.Builder
	_, err := ExecuteIR(ir, strings.NewReader(input), &out, DefaultConfig())
	return out.String(), err
}

// ExecuteIR loads ir and runs it on a VM wired to in and out, returning
// main's exit value.
func ExecuteIR(ir string, in io.Reader, out io.Writer, cfg Config) (int32, error) {
	prog, err := ParseIR(ir)
	if err != nil {
		return 0, err
	}
	return NewVM(prog, in, out, cfg).Run()
}

// Run compiles source and executes it with the given input.
func Run(source, input string) (string, error) {
	ir, err := Compile(source)
	if err != nil {
		return "", fmt.Errorf("compiling: %w", err)
	}
	return ExecuteWithInput(ir, input)
}
