package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func TestParseIREveryInstruction(t *testing.T) {
	text := strings.Join([]string{
		"%func f (%int a, %int b)",
		"%int x",
		"%int[] arr, 3",
		"%mov x, a",
		"%mov [arr + 1], x",
		"%mov x, [arr + b]",
		"%add x, a, b",
		"%sub x, a, -1",
		"%mult x, x, 2",
		"%div x, x, 2",
		"%mod x, x, 2",
		"%lt x, a, b",
		"%le x, a, b",
		"%gt x, a, b",
		"%ge x, a, b",
		"%eq x, a, b",
		"%neq x, a, b",
		":top",
		"%branch_if x, :top",
		"%branch_ifn x, :top",
		"%jmp :top",
		"%call x, f(a, 2)",
		"%call x, g()",
		"%input x",
		"%input [arr + 0]",
		"%out x",
		"%ret x",
		"%endfunc",
		"",
	}, "\n")

	prog, err := ParseIR(text)
	be.Err(t, err, nil)
	be.Equal(t, len(prog.Funcs), 1)

	f, ok := prog.Func("f")
	be.True(t, ok)
	be.Equal(t, f.Params, []string{"a", "b"})
	be.Equal(t, len(f.Code), 26)
	be.Equal(t, f.Labels["top"], 16)
	be.Equal(t, f.Line, 1)

	be.Equal(t, f.Code[0].Op, OpDecl)
	be.Equal(t, f.Code[1].Op, OpDeclArray)
	be.Equal(t, f.Code[2].Op, OpMov)
	be.Equal(t, f.Code[3].Op, OpStore)
	be.Equal(t, f.Code[3].Array, "arr")
	be.Equal(t, f.Code[3].A, Const(1))
	be.Equal(t, f.Code[3].B, Var("x"))
	be.Equal(t, f.Code[4].Op, OpLoad)
	be.Equal(t, f.Code[4].A, Var("b"))
	be.Equal(t, f.Code[6].B, Const(-1))
	be.Equal(t, f.Code[16].Op, OpLabel)
	be.Equal(t, f.Code[17].Op, OpBranchIf)
	be.Equal(t, f.Code[18].Op, OpBranchIfn)
	be.Equal(t, f.Code[19].Op, OpJmp)
	be.Equal(t, f.Code[20].Callee, "f")
	be.Equal(t, f.Code[20].Args, []Operand{Var("a"), Const(2)})
	be.Equal(t, len(f.Code[21].Args), 0)
	be.Equal(t, f.Code[22].Op, OpInput)
	be.Equal(t, f.Code[23].Op, OpInputElem)
	be.Equal(t, f.Code[24].Op, OpOut)
	be.Equal(t, f.Code[25].Op, OpRet)
	be.Equal(t, f.Code[25].Line, 27)

	be.Equal(t, prog.String(), text)
}

func TestParseIRRoundTripsGeneratedCode(t *testing.T) {
	sources := []string{
		"func main() { int a = 3; int b = 4; print(a + b); }",
		"func main() { int i = 0; while (i < 3) { print(i); i = i + 1; } }",
		"func add(int a, int b) { return a + b; } func main() { print(add(2, 3)); }",
		"func main() { int[3] arr; arr[1] = 5; read(arr[2]); print(arr[1]); if arr[1] != 5 { print(0); } else { print(1); } }",
	}

	for _, source := range sources {
		ir, err := Compile(source)
		be.Err(t, err, nil)
		prog, err := ParseIR(ir)
		be.Err(t, err, nil)
		be.Equal(t, prog.String(), ir)
	}
}

func TestParseIRSkipsBlankLinesAndIndentation(t *testing.T) {
	prog, err := ParseIR("\n%func main ()\n\n    %out 1\n  \n%endfunc\n\n")
	be.Err(t, err, nil)
	fn, ok := prog.Func("main")
	be.True(t, ok)
	be.Equal(t, len(fn.Code), 1)
	be.Equal(t, fn.Code[0].Line, 4)
}

func TestParseIRUnknownLabel(t *testing.T) {
	_, err := ParseIR("%func main ()\n%jmp :nowhere\n%endfunc\n")
	var rerr *RuntimeError
	be.True(t, errors.As(err, &rerr))
	be.Equal(t, rerr.Kind, UnknownLabel)
	be.Equal(t, rerr.Line, 2)
	be.Equal(t, rerr.Func, "main")
	be.Equal(t, rerr.Error(), "error: line 2: in main: unknown label :nowhere")
}

func TestParseIRLabelsAreLocalToFunction(t *testing.T) {
	text := "%func f ()\n:here\n%endfunc\n%func main ()\n%jmp :here\n%endfunc\n"
	_, err := ParseIR(text)
	var rerr *RuntimeError
	be.True(t, errors.As(err, &rerr))
	be.Equal(t, rerr.Kind, UnknownLabel)
}

func TestParseIRForwardLabel(t *testing.T) {
	_, err := ParseIR("%func main ()\n%jmp :end\n%out 1\n:end\n%endfunc\n")
	be.Err(t, err, nil)
}

func TestParseIRMalformed(t *testing.T) {
	tests := []struct {
		name string
		text string
		line int
	}{
		{"unknown mnemonic", "%func main ()\n%push 1\n%endfunc\n", 2},
		{"outside function", "%out 1\n", 1},
		{"nested function", "%func main ()\n%func g ()\n%endfunc\n", 2},
		{"missing endfunc", "%func main ()\n%out 1\n", 0},
		{"stray endfunc", "%endfunc\n", 1},
		{"too few operands", "%func main ()\n%int x\n%add x, 1\n%endfunc\n", 3},
		{"too many operands", "%func main ()\n%int x\n%mov x, 1, 2\n%endfunc\n", 3},
		{"bad integer", "%func main ()\n%out 12x\n%endfunc\n", 2},
		{"integer too large", "%func main ()\n%out 2147483648\n%endfunc\n", 2},
		{"bad name", "%func main ()\n%int 1x\n%endfunc\n", 2},
		{"bad label", "%func main ()\n:\n%endfunc\n", 2},
		{"duplicate label", "%func main ()\n:a\n:a\n%endfunc\n", 3},
		{"label reference without colon", "%func main ()\n:a\n%jmp a\n%endfunc\n", 3},
		{"bad header", "%func main\n%endfunc\n", 1},
		{"bad parameter", "%func f (a)\n%endfunc\n", 1},
		{"duplicate function", "%func main ()\n%endfunc\n%func main ()\n%endfunc\n", 3},
		{"unclosed element", "%func main ()\n%int[] a, 1\n%mov [a + 0, 1\n%endfunc\n", 3},
		{"element without plus", "%func main ()\n%int[] a, 1\n%input [a 0]\n%endfunc\n", 3},
		{"call without parens", "%func main ()\n%int x\n%call x, f\n%endfunc\n", 3},
		{"call without dest", "%func main ()\n%call f()\n%endfunc\n", 2},
		{"missing operand", "%func main ()\n%out\n%endfunc\n", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseIR(tt.text)
			var rerr *RuntimeError
			be.True(t, errors.As(err, &rerr))
			be.Equal(t, rerr.Kind, MalformedInstruction)
			be.Equal(t, rerr.Line, tt.line)
		})
	}
}

func TestInstString(t *testing.T) {
	tests := []struct {
		inst Inst
		want string
	}{
		{Inst{Op: OpLabel, Label: "endif3"}, ":endif3"},
		{Inst{Op: OpDecl, Dest: "_temp1"}, "%int _temp1"},
		{Inst{Op: OpDeclArray, Dest: "a", A: Var("n")}, "%int[] a, n"},
		{Inst{Op: OpStore, Array: "a", A: Var("i"), B: Const(-4)}, "%mov [a + i], -4"},
		{Inst{Op: OpLoad, Dest: "x", Array: "a", A: Const(0)}, "%mov x, [a + 0]"},
		{Inst{Op: OpNeq, Dest: "c", A: Var("x"), B: Const(1)}, "%neq c, x, 1"},
		{Inst{Op: OpBranchIfn, A: Var("c"), Label: "endloop1"}, "%branch_ifn c, :endloop1"},
		{Inst{Op: OpCall, Dest: "r", Callee: "f", Args: []Operand{Const(1), Var("y")}}, "%call r, f(1, y)"},
		{Inst{Op: OpInputElem, Array: "a", A: Const(2)}, "%input [a + 2]"},
	}

	for _, tt := range tests {
		be.Equal(t, tt.inst.String(), tt.want)
	}
}

func TestOpcodeString(t *testing.T) {
	be.Equal(t, OpAdd.String(), "%add")
	be.Equal(t, OpBranchIf.String(), "%branch_if")
	be.Equal(t, OpLabel.String(), "label")
	be.Equal(t, Opcode(999).String(), "Opcode(999)")
}
