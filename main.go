package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const usage = `tac - compile a small imperative language to three-address IR and run it

Usage:
    tac <file>                Print tokens, IR and program output
    tac <command> [arguments]

Commands:
    run <file>      Compile and execute a .tac file
    build <file>    Compile a .tac file to IR text
    exec <file.ir>  Execute an IR text file
    tokens <file>   Print the tokens of a .tac file
    check <file>    Lex and parse a .tac file
    eval <code>     Compile and execute inline code
    help            Show this help message

Examples:
    tac run examples/fib.tac
    tac build -o fib.ir examples/fib.tac
    tac exec -input numbers.txt sum.ir
    tac eval 'func main() { print(6 * 7); }'

Use "tac <command> -h" for more information about a command.
`

// cli carries the streams a command runs against.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func main() {
	c := &cli{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	os.Exit(c.run(os.Args[1:]))
}

// run dispatches args and returns the process exit code.
func (c *cli) run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(c.stdout, "provide an input file")
		return 0
	}

	command, rest := args[0], args[1:]
	switch command {
	case "run":
		return c.runCommand(rest)
	case "build":
		return c.buildCommand(rest)
	case "exec":
		return c.execCommand(rest)
	case "tokens":
		return c.tokensCommand(rest)
	case "check":
		return c.checkCommand(rest)
	case "eval":
		return c.evalCommand(rest)
	case "help", "-h", "--help":
		fmt.Fprint(c.stdout, usage)
		return 0
	}

	if len(args) > 1 {
		fmt.Fprintln(c.stdout, "too many arguments")
		return 0
	}
	c.showAll(args[0])
	return 0
}

// showAll prints the token list, the IR and the program output of one
// file. Every failure is reported on stdout and the exit code stays 0.
func (c *cli) showAll(filename string) {
	source, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintln(c.stdout, err)
		return
	}

	tokens, err := Tokenize(string(source))
	if err != nil {
		fmt.Fprintln(c.stdout, err)
		return
	}
	parts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok.Type != EOF {
			parts = append(parts, tok.String())
		}
	}
	fmt.Fprintf(c.stdout, "[%s]\n", strings.Join(parts, ", "))

	ir, err := NewParser(tokens).ParseProgram()
	if err != nil {
		fmt.Fprintln(c.stdout, err)
		return
	}
	fmt.Fprint(c.stdout, ir)

	if _, err := ExecuteIR(ir, c.stdin, c.stdout, DefaultConfig()); err != nil {
		fmt.Fprintln(c.stdout, err)
	}
}

// newFlagSet builds a subcommand's flag set. Parse errors are returned, not
// fatal, so commands can be driven from tests.
func (c *cli) newFlagSet(name, synopsis, summary string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.Usage = func() {
		fmt.Fprintf(c.stderr, "Usage: tac %s\n", synopsis)
		fmt.Fprintf(c.stderr, "%s\n\n", summary)
		fmt.Fprintf(c.stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	return fs
}

// parseArgs parses a subcommand's flags and requires one positional
// argument, which it returns.
func (c *cli) parseArgs(fs *flag.FlagSet, args []string, what string) (string, bool) {
	if err := fs.Parse(args); err != nil {
		return "", false
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(c.stderr, "Error: expected exactly one %s argument\n", what)
		fs.Usage()
		return "", false
	}
	return fs.Arg(0), true
}

func (c *cli) readSource(filename string) (string, bool) {
	source, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error reading file %s: %v\n", filename, err)
		return "", false
	}
	return string(source), true
}

// openInput returns the reader %input consumes: the named file, or stdin
// when name is empty. The returned func closes the file.
func (c *cli) openInput(name string) (io.Reader, func(), bool) {
	if name == "" {
		return c.stdin, func() {}, true
	}
	f, err := os.Open(name)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error opening input %s: %v\n", name, err)
		return nil, nil, false
	}
	return f, func() { f.Close() }, true
}

func (c *cli) runCommand(args []string) int {
	fs := c.newFlagSet("run", "run [-v] [-input file] [-max-depth n] <file>", "Compile and execute a .tac file")
	verbose := fs.Bool("v", false, "Show verbose compilation details")
	inputFile := fs.String("input", "", "Read program input from file instead of stdin")
	maxDepth := fs.Int("max-depth", DefaultConfig().MaxCallDepth, "Maximum call depth (0 for no limit)")
	filename, ok := c.parseArgs(fs, args, "file")
	if !ok {
		return 1
	}

	if *verbose {
		fmt.Fprintf(c.stdout, "Compiling %s...\n", filename)
	}
	source, ok := c.readSource(filename)
	if !ok {
		return 1
	}
	ir, err := Compile(source)
	if err != nil {
		fmt.Fprintf(c.stderr, "Compilation failed: %v\n", err)
		return 1
	}
	if *verbose {
		fmt.Fprintf(c.stdout, "Generated %d lines of IR\n", strings.Count(ir, "\n"))
		fmt.Fprintf(c.stdout, "Executing...\n")
	}

	in, closeInput, ok := c.openInput(*inputFile)
	if !ok {
		return 1
	}
	defer closeInput()
	return c.execute(ir, in, Config{MaxCallDepth: *maxDepth})
}

func (c *cli) execute(ir string, in io.Reader, cfg Config) int {
	if _, err := ExecuteIR(ir, in, c.stdout, cfg); err != nil {
		fmt.Fprintf(c.stderr, "Execution failed: %v\n", err)
		return 1
	}
	return 0
}

func (c *cli) buildCommand(args []string) int {
	fs := c.newFlagSet("build", "build [-o output] [-v] <file>", "Compile a .tac file to IR text")
	output := fs.String("o", "", "Output file path (default: <filename>.ir)")
	verbose := fs.Bool("v", false, "Show verbose compilation details")
	filename, ok := c.parseArgs(fs, args, "file")
	if !ok {
		return 1
	}

	outputFile := *output
	if outputFile == "" {
		outputFile = strings.TrimSuffix(filename, filepath.Ext(filename)) + ".ir"
	}
	if *verbose {
		fmt.Fprintf(c.stdout, "Compiling %s to %s...\n", filename, outputFile)
	}

	source, ok := c.readSource(filename)
	if !ok {
		return 1
	}
	ir, err := Compile(source)
	if err != nil {
		fmt.Fprintf(c.stderr, "Compilation failed: %v\n", err)
		return 1
	}
	if err := os.WriteFile(outputFile, []byte(ir), 0644); err != nil {
		fmt.Fprintf(c.stderr, "Error writing IR file %s: %v\n", outputFile, err)
		return 1
	}

	fmt.Fprintf(c.stdout, "Generated %s (%d lines)\n", outputFile, strings.Count(ir, "\n"))
	return 0
}

func (c *cli) execCommand(args []string) int {
	fs := c.newFlagSet("exec", "exec [-input file] [-max-depth n] <file.ir>", "Execute an IR text file")
	inputFile := fs.String("input", "", "Read program input from file instead of stdin")
	maxDepth := fs.Int("max-depth", DefaultConfig().MaxCallDepth, "Maximum call depth (0 for no limit)")
	filename, ok := c.parseArgs(fs, args, "file")
	if !ok {
		return 1
	}

	ir, ok := c.readSource(filename)
	if !ok {
		return 1
	}
	in, closeInput, ok := c.openInput(*inputFile)
	if !ok {
		return 1
	}
	defer closeInput()
	return c.execute(ir, in, Config{MaxCallDepth: *maxDepth})
}

func (c *cli) tokensCommand(args []string) int {
	fs := c.newFlagSet("tokens", "tokens <file>", "Print the tokens of a .tac file, one per line")
	filename, ok := c.parseArgs(fs, args, "file")
	if !ok {
		return 1
	}
	source, ok := c.readSource(filename)
	if !ok {
		return 1
	}
	tokens, err := Tokenize(source)
	if err != nil {
		fmt.Fprintf(c.stderr, "Compilation failed: %v\n", err)
		return 1
	}
	for _, tok := range tokens {
		fmt.Fprintln(c.stdout, tok.ToSExpr())
	}
	return 0
}

func (c *cli) checkCommand(args []string) int {
	fs := c.newFlagSet("check", "check [-v] <file>", "Lex and parse a .tac file")
	verbose := fs.Bool("v", false, "Show verbose checking details")
	filename, ok := c.parseArgs(fs, args, "file")
	if !ok {
		return 1
	}

	if *verbose {
		fmt.Fprintf(c.stdout, "Checking %s...\n", filename)
	}
	source, ok := c.readSource(filename)
	if !ok {
		return 1
	}
	tokens, err := Tokenize(source)
	if err != nil {
		fmt.Fprintf(c.stdout, "Lexing errors in %s:\n%v\n", filename, err)
		return 1
	}
	p := NewParser(tokens)
	if _, err := p.ParseProgram(); err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			fmt.Fprintf(c.stdout, "%s errors in %s:\n%v\n", perr.Kind, filename, err)
		} else {
			fmt.Fprintf(c.stdout, "Parsing errors in %s:\n%v\n", filename, err)
		}
		return 1
	}

	fmt.Fprintf(c.stdout, "%s: no errors found\n", filename)
	if *verbose {
		for _, scope := range p.Scopes() {
			fmt.Fprint(c.stdout, scope)
		}
	}
	return 0
}

func (c *cli) evalCommand(args []string) int {
	fs := c.newFlagSet("eval", "eval [-v] <code>", "Compile and execute inline code")
	verbose := fs.Bool("v", false, "Show verbose compilation details")
	code, ok := c.parseArgs(fs, args, "code")
	if !ok {
		return 1
	}

	if *verbose {
		fmt.Fprintf(c.stdout, "Evaluating: %s\n", code)
	}
	ir, err := Compile(code)
	if err != nil {
		fmt.Fprintf(c.stderr, "Compilation failed: %v\n", err)
		return 1
	}
	if *verbose {
		fmt.Fprint(c.stdout, ir)
	}
	return c.execute(ir, c.stdin, DefaultConfig())
}
