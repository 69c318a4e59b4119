package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

// runIR executes hand-written IR lines as the body of main.
func runIR(t *testing.T, input string, lines ...string) (string, int32, error) {
	t.Helper()
	text := "%func main ()\n" + strings.Join(lines, "\n") + "\n%endfunc\n"
	prog, err := ParseIR(text)
	be.Err(t, err, nil)
	var out strings.Builder
	code, err := NewVM(prog, strings.NewReader(input), &out, DefaultConfig()).Run()
	return out.String(), code, err
}

func expectRuntimeError(t *testing.T, err error, kind RuntimeErrorKind) *RuntimeError {
	t.Helper()
	var rerr *RuntimeError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected %s, got %v", kind, err)
	}
	be.Equal(t, rerr.Kind, kind)
	return rerr
}

func TestVMArithmetic(t *testing.T) {
	tests := []struct {
		op   string
		a, b string
		want string
	}{
		{"%add", "2", "3", "5"},
		{"%sub", "2", "3", "-1"},
		{"%mult", "-4", "3", "-12"},
		{"%div", "7", "2", "3"},
		{"%div", "-7", "2", "-3"},
		{"%div", "7", "-2", "-3"},
		{"%mod", "7", "2", "1"},
		{"%mod", "-7", "2", "-1"},
		{"%mod", "7", "-2", "1"},
		{"%add", "2147483647", "1", "-2147483648"},
		{"%sub", "-2147483648", "1", "2147483647"},
		{"%mult", "65536", "65536", "0"},
		{"%div", "-2147483648", "-1", "-2147483648"},
		{"%mod", "-2147483648", "-1", "0"},
		{"%lt", "1", "2", "1"},
		{"%lt", "2", "2", "0"},
		{"%le", "2", "2", "1"},
		{"%gt", "3", "2", "1"},
		{"%gt", "2", "3", "0"},
		{"%ge", "2", "3", "0"},
		{"%eq", "-1", "-1", "1"},
		{"%neq", "-1", "-1", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.op+" "+tt.a+" "+tt.b, func(t *testing.T) {
			out, _, err := runIR(t, "",
				"%int r",
				tt.op+" r, "+tt.a+", "+tt.b,
				"%out r",
			)
			be.Err(t, err, nil)
			be.Equal(t, out, tt.want+"\n")
		})
	}
}

func TestVMDivideByZero(t *testing.T) {
	for _, op := range []string{"%div", "%mod"} {
		out, _, err := runIR(t, "",
			"%out 1",
			"%int r",
			op+" r, 5, 0",
			"%out r",
		)
		rerr := expectRuntimeError(t, err, DivideByZero)
		be.Equal(t, rerr.Line, 4)
		be.Equal(t, rerr.Func, "main")
		be.Equal(t, out, "1\n")
	}
}

func TestVMBranches(t *testing.T) {
	out, _, err := runIR(t, "",
		"%branch_if 0, :a",
		"%out 1",
		":a",
		"%branch_if -3, :b",
		"%out 2",
		":b",
		"%branch_ifn 5, :c",
		"%out 3",
		":c",
		"%branch_ifn 0, :d",
		"%out 4",
		":d",
	)
	be.Err(t, err, nil)
	be.Equal(t, out, "1\n3\n")
}

func TestVMLoop(t *testing.T) {
	out, _, err := runIR(t, "",
		"%int i",
		":top",
		"%int c",
		"%lt c, i, 3",
		"%branch_ifn c, :done",
		"%out i",
		"%add i, i, 1",
		"%jmp :top",
		":done",
	)
	be.Err(t, err, nil)
	be.Equal(t, out, "0\n1\n2\n")
}

func TestVMRedeclareResetsToZero(t *testing.T) {
	out, _, err := runIR(t, "",
		"%int x",
		"%mov x, 9",
		"%out x",
		"%int x",
		"%out x",
	)
	be.Err(t, err, nil)
	be.Equal(t, out, "9\n0\n")
}

func TestVMArrays(t *testing.T) {
	out, _, err := runIR(t, "",
		"%int n",
		"%mov n, 3",
		"%int[] a, n",
		"%int i",
		"%mov i, 2",
		"%mov [a + i], 7",
		"%int x",
		"%mov x, [a + 2]",
		"%out x",
		"%mov x, [a + 0]",
		"%out x",
	)
	be.Err(t, err, nil)
	be.Equal(t, out, "7\n0\n")
}

func TestVMArrayErrors(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		kind  RuntimeErrorKind
	}{
		{"store past end", []string{"%int[] a, 3", "%mov [a + 3], 1"}, IndexOutOfBounds},
		{"load negative", []string{"%int[] a, 3", "%int x", "%mov x, [a + -1]"}, IndexOutOfBounds},
		{"input past end", []string{"%int[] a, 1", "%input [a + 1]"}, IndexOutOfBounds},
		{"empty array", []string{"%int[] a, 0", "%mov [a + 0], 1"}, IndexOutOfBounds},
		{"negative size", []string{"%int[] a, -2"}, NegativeArraySize},
		{"undeclared array", []string{"%mov [a + 0], 1"}, UndeclaredName},
		{"scalar as array", []string{"%int a", "%mov [a + 0], 1"}, UndeclaredName},
		{"array as scalar", []string{"%int[] a, 1", "%out a"}, UndeclaredName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runIR(t, "", tt.lines...)
			expectRuntimeError(t, err, tt.kind)
		})
	}
}

func TestVMUndeclaredName(t *testing.T) {
	tests := [][]string{
		{"%out x"},
		{"%mov x, 1"},
		{"%int y", "%add y, x, 1"},
		{"%input x"},
		{"%branch_if x, :l", ":l"},
	}

	for _, lines := range tests {
		_, _, err := runIR(t, "1", lines...)
		expectRuntimeError(t, err, UndeclaredName)
	}
}

func TestVMInput(t *testing.T) {
	out, _, err := runIR(t, "  12\n-3\t4 ",
		"%int x",
		"%int[] a, 2",
		"%input x",
		"%input [a + 0]",
		"%input [a + 1]",
		"%out x",
		"%int y",
		"%mov y, [a + 0]",
		"%out y",
		"%mov y, [a + 1]",
		"%out y",
	)
	be.Err(t, err, nil)
	be.Equal(t, out, "12\n-3\n4\n")
}

func TestVMInputErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"end of input", ""},
		{"only whitespace", " \n "},
		{"not a number", "abc"},
		{"trailing junk", "12abc"},
		{"too large", "2147483648"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runIR(t, tt.input, "%int x", "%input x")
			rerr := expectRuntimeError(t, err, InputParse)
			be.Equal(t, rerr.Line, 3)
		})
	}
}

func TestVMNilInput(t *testing.T) {
	prog, err := ParseIR("%func main ()\n%int x\n%input x\n%endfunc\n")
	be.Err(t, err, nil)
	var out strings.Builder
	_, err = NewVM(prog, nil, &out, DefaultConfig()).Run()
	expectRuntimeError(t, err, InputParse)
}

const callProgram = `%func add (%int a, %int b)
%int s
%add s, a, b
%ret s
%endfunc
%func main ()
%int r
%call r, add(2, 3)
%out r
%call r, add(r, -10)
%out r
%endfunc
`

func TestVMCall(t *testing.T) {
	out, err := Execute(callProgram)
	be.Err(t, err, nil)
	be.Equal(t, out, "5\n-5\n")
}

func TestVMCallerFrameSurvivesCall(t *testing.T) {
	text := `%func f (%int x)
%int y
%mov y, 100
%mov x, 0
%ret y
%endfunc
%func main ()
%int x
%mov x, 7
%int y
%mov y, 8
%int r
%call r, f(x)
%out x
%out y
%out r
%endfunc
`
	out, err := Execute(text)
	be.Err(t, err, nil)
	be.Equal(t, out, "7\n8\n100\n")
}

func TestVMImplicitReturn(t *testing.T) {
	text := "%func f ()\n%endfunc\n%func main ()\n%int r\n%mov r, 5\n%call r, f()\n%out r\n%endfunc\n"
	out, err := Execute(text)
	be.Err(t, err, nil)
	be.Equal(t, out, "0\n")
}

func TestVMExitValue(t *testing.T) {
	_, code, err := runIR(t, "", "%out 1", "%ret 42", "%out 2")
	be.Err(t, err, nil)
	be.Equal(t, code, int32(42))

	_, code, err = runIR(t, "", "%out 1")
	be.Err(t, err, nil)
	be.Equal(t, code, int32(0))
}

func TestVMEntryPoint(t *testing.T) {
	prog, err := ParseIR("%func start ()\n%endfunc\n")
	be.Err(t, err, nil)
	_, err = NewVM(prog, nil, &strings.Builder{}, DefaultConfig()).Run()
	expectRuntimeError(t, err, UnknownFunction)

	prog, err = ParseIR("%func main (%int argc)\n%endfunc\n")
	be.Err(t, err, nil)
	_, err = NewVM(prog, nil, &strings.Builder{}, DefaultConfig()).Run()
	expectRuntimeError(t, err, ArityMismatch)
}

func TestVMCallErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		kind RuntimeErrorKind
	}{
		{
			"unknown function",
			"%func main ()\n%int r\n%call r, nope()\n%endfunc\n",
			UnknownFunction,
		},
		{
			"too many arguments",
			"%func f (%int a)\n%ret a\n%endfunc\n%func main ()\n%int r\n%call r, f(1, 2)\n%endfunc\n",
			ArityMismatch,
		},
		{
			"too few arguments",
			"%func f (%int a)\n%ret a\n%endfunc\n%func main ()\n%int r\n%call r, f()\n%endfunc\n",
			ArityMismatch,
		},
		{
			"undeclared destination",
			"%func f ()\n%ret 1\n%endfunc\n%func main ()\n%call r, f()\n%endfunc\n",
			UndeclaredName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Execute(tt.text)
			expectRuntimeError(t, err, tt.kind)
		})
	}
}

const recurseForever = `%func down (%int n)
%int m
%add m, n, 1
%int r
%call r, down(m)
%ret r
%endfunc
%func main ()
%int r
%call r, down(0)
%out r
%endfunc
`

func TestVMStackOverflow(t *testing.T) {
	prog, err := ParseIR(recurseForever)
	be.Err(t, err, nil)
	_, err = NewVM(prog, nil, &strings.Builder{}, Config{MaxCallDepth: 50}).Run()
	rerr := expectRuntimeError(t, err, StackOverflow)
	be.Equal(t, rerr.Func, "down")
	be.Equal(t, rerr.Line, 5)
}

func TestVMCallDepthLimitCountsMain(t *testing.T) {
	text := "%func f ()\n%ret 1\n%endfunc\n%func main ()\n%int r\n%call r, f()\n%out r\n%endfunc\n"
	prog, err := ParseIR(text)
	be.Err(t, err, nil)

	_, err = NewVM(prog, nil, &strings.Builder{}, Config{MaxCallDepth: 1}).Run()
	expectRuntimeError(t, err, StackOverflow)

	var out strings.Builder
	_, err = NewVM(prog, nil, &out, Config{MaxCallDepth: 2}).Run()
	be.Err(t, err, nil)
	be.Equal(t, out.String(), "1\n")
}

func TestVMDeepRecursion(t *testing.T) {
	text := `%func sum (%int n)
%int c
%le c, n, 0
%branch_if c, :base
%int m
%sub m, n, 1
%int r
%call r, sum(m)
%add r, r, n
%ret r
:base
%ret 0
%endfunc
%func main ()
%int r
%call r, sum(5000)
%out r
%endfunc
`
	out, err := Execute(text)
	be.Err(t, err, nil)
	be.Equal(t, out, "12502500\n")
}

func TestVMUnknownLabelAtRunTime(t *testing.T) {
	prog := &Program{byName: map[string]*Func{}}
	fn := &Func{
		Name:   "main",
		Labels: map[string]int{},
		Code:   []Inst{{Op: OpJmp, Label: "gone", Line: 1}},
	}
	prog.Funcs = append(prog.Funcs, fn)
	prog.byName["main"] = fn

	_, err := NewVM(prog, nil, &strings.Builder{}, DefaultConfig()).Run()
	expectRuntimeError(t, err, UnknownLabel)
}
