package main

import (
	"fmt"
	"strconv"
	"strings"
)

// Opcode identifies an IR instruction.
type Opcode int

const (
	OpLabel     Opcode = iota // :name
	OpDecl                    // %int d
	OpDeclArray               // %int[] d, size
	OpMov                     // %mov d, a
	OpStore                   // %mov [arr + a], b
	OpLoad                    // %mov d, [arr + a]
	OpAdd
	OpSub
	OpMult
	OpDiv
	OpMod
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNeq
	OpJmp
	OpBranchIf
	OpBranchIfn
	OpCall
	OpRet
	OpOut
	OpInput     // %input d
	OpInputElem // %input [arr + a]
)

// binaryMnemonics maps three-operand mnemonics to their opcodes.
var binaryMnemonics = map[string]Opcode{
	"%add":  OpAdd,
	"%sub":  OpSub,
	"%mult": OpMult,
	"%div":  OpDiv,
	"%mod":  OpMod,
	"%lt":   OpLt,
	"%le":   OpLe,
	"%gt":   OpGt,
	"%ge":   OpGe,
	"%eq":   OpEq,
	"%neq":  OpNeq,
}

var opcodeMnemonics = map[Opcode]string{
	OpDecl:      "%int",
	OpDeclArray: "%int[]",
	OpMov:       "%mov",
	OpStore:     "%mov",
	OpLoad:      "%mov",
	OpJmp:       "%jmp",
	OpBranchIf:  "%branch_if",
	OpBranchIfn: "%branch_ifn",
	OpCall:      "%call",
	OpRet:       "%ret",
	OpOut:       "%out",
	OpInput:     "%input",
	OpInputElem: "%input",
}

func init() {
	for mnemonic, op := range binaryMnemonics {
		opcodeMnemonics[op] = mnemonic
	}
}

func (op Opcode) String() string {
	if op == OpLabel {
		return "label"
	}
	if m, ok := opcodeMnemonics[op]; ok {
		return m
	}
	return fmt.Sprintf("Opcode(%d)", int(op))
}

// Operand is either an integer literal or a variable name.
type Operand struct {
	Name    string
	Value   int32
	IsConst bool
}

func Const(v int32) Operand   { return Operand{Value: v, IsConst: true} }
func Var(name string) Operand { return Operand{Name: name} }

func (o Operand) String() string {
	if o.IsConst {
		return strconv.Itoa(int(o.Value))
	}
	return o.Name
}

// Inst is one IR line. Which fields are used depends on Op:
//
//	OpLabel              Label
//	OpDecl, OpInput      Dest
//	OpDeclArray          Dest, A (size)
//	OpMov                Dest, A
//	OpStore              Array, A (index), B (value)
//	OpLoad               Dest, Array, A (index)
//	OpAdd ... OpNeq      Dest, A, B
//	OpJmp                Label
//	OpBranchIf(n)        A, Label
//	OpCall               Dest, Callee, Args
//	OpRet, OpOut         A
//	OpInputElem          Array, A (index)
type Inst struct {
	Op     Opcode
	Dest   string
	Array  string
	A, B   Operand
	Label  string
	Callee string
	Args   []Operand
	Line   int // 1-based line in the IR text
}

func (in Inst) String() string {
	m := in.Op.String()
	switch in.Op {
	case OpLabel:
		return ":" + in.Label
	case OpDecl, OpInput:
		return m + " " + in.Dest
	case OpDeclArray:
		return m + " " + in.Dest + ", " + in.A.String()
	case OpMov:
		return m + " " + in.Dest + ", " + in.A.String()
	case OpStore:
		return m + " [" + in.Array + " + " + in.A.String() + "], " + in.B.String()
	case OpLoad:
		return m + " " + in.Dest + ", [" + in.Array + " + " + in.A.String() + "]"
	case OpJmp:
		return m + " :" + in.Label
	case OpBranchIf, OpBranchIfn:
		return m + " " + in.A.String() + ", :" + in.Label
	case OpCall:
		args := make([]string, len(in.Args))
		for i, a := range in.Args {
			args[i] = a.String()
		}
		return m + " " + in.Dest + ", " + in.Callee + "(" + strings.Join(args, ", ") + ")"
	case OpRet, OpOut:
		return m + " " + in.A.String()
	case OpInputElem:
		return m + " [" + in.Array + " + " + in.A.String() + "]"
	default:
		return m + " " + in.Dest + ", " + in.A.String() + ", " + in.B.String()
	}
}

// Func is one %func ... %endfunc block.
type Func struct {
	Name   string
	Params []string
	Code   []Inst
	Labels map[string]int // label name -> index into Code
	Line   int
}

// Program is a parsed IR text.
type Program struct {
	Funcs  []*Func
	byName map[string]*Func
}

// Func returns the function called name.
func (p *Program) Func(name string) (*Func, bool) {
	f, ok := p.byName[name]
	return f, ok
}

// String renders the program back to canonical IR text.
func (p *Program) String() string {
	var sb strings.Builder
	for _, f := range p.Funcs {
		params := make([]string, len(f.Params))
		for i, name := range f.Params {
			params[i] = "%int " + name
		}
		fmt.Fprintf(&sb, "%%func %s (%s)\n", f.Name, strings.Join(params, ", "))
		for _, in := range f.Code {
			sb.WriteString(in.String())
			sb.WriteByte('\n')
		}
		sb.WriteString("%endfunc\n")
	}
	return sb.String()
}

type irReader struct {
	prog *Program
	fn   *Func
	line int
}

// ParseIR reads IR text into a Program, checking that every line is well
// formed and that every jump target exists in its function.
func ParseIR(text string) (*Program, error) {
	r := &irReader{prog: &Program{byName: make(map[string]*Func)}}
	for i, raw := range strings.Split(text, "\n") {
		r.line = i + 1
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if err := r.readLine(line); err != nil {
			return nil, err
		}
	}
	if r.fn != nil {
		return nil, &RuntimeError{Kind: MalformedInstruction, Func: r.fn.Name, Msg: "missing %endfunc"}
	}
	return r.prog, nil
}

func (r *irReader) malformed(format string, args ...any) error {
	err := &RuntimeError{Kind: MalformedInstruction, Msg: fmt.Sprintf(format, args...), Line: r.line}
	if r.fn != nil {
		err.Func = r.fn.Name
	}
	return err
}

func (r *irReader) readLine(line string) error {
	if strings.HasPrefix(line, "%func ") || line == "%func" {
		return r.readHeader(line)
	}
	if r.fn == nil {
		return r.malformed("instruction outside of a function: %s", line)
	}
	if line == "%endfunc" {
		return r.endFunc()
	}

	if strings.HasPrefix(line, ":") {
		label := line[1:]
		if !isIRName(label) {
			return r.malformed("bad label %q", line)
		}
		if _, dup := r.fn.Labels[label]; dup {
			return r.malformed("label %s defined twice", label)
		}
		r.fn.Labels[label] = len(r.fn.Code)
		return r.add(Inst{Op: OpLabel, Label: label})
	}

	mnemonic, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	if op, ok := binaryMnemonics[mnemonic]; ok {
		fields, err := r.fields(rest, 3)
		if err != nil {
			return err
		}
		dest, err := r.name(fields[0])
		if err != nil {
			return err
		}
		a, err := r.operand(fields[1])
		if err != nil {
			return err
		}
		b, err := r.operand(fields[2])
		if err != nil {
			return err
		}
		return r.add(Inst{Op: op, Dest: dest, A: a, B: b})
	}

	switch mnemonic {
	case "%int":
		dest, err := r.name(rest)
		if err != nil {
			return err
		}
		return r.add(Inst{Op: OpDecl, Dest: dest})

	case "%int[]":
		fields, err := r.fields(rest, 2)
		if err != nil {
			return err
		}
		dest, err := r.name(fields[0])
		if err != nil {
			return err
		}
		size, err := r.operand(fields[1])
		if err != nil {
			return err
		}
		return r.add(Inst{Op: OpDeclArray, Dest: dest, A: size})

	case "%mov":
		return r.readMov(rest)

	case "%jmp":
		label, err := r.labelRef(rest)
		if err != nil {
			return err
		}
		return r.add(Inst{Op: OpJmp, Label: label})

	case "%branch_if", "%branch_ifn":
		fields, err := r.fields(rest, 2)
		if err != nil {
			return err
		}
		cond, err := r.operand(fields[0])
		if err != nil {
			return err
		}
		label, err := r.labelRef(fields[1])
		if err != nil {
			return err
		}
		op := OpBranchIf
		if mnemonic == "%branch_ifn" {
			op = OpBranchIfn
		}
		return r.add(Inst{Op: op, A: cond, Label: label})

	case "%call":
		return r.readCall(rest)

	case "%ret", "%out":
		value, err := r.operand(rest)
		if err != nil {
			return err
		}
		op := OpRet
		if mnemonic == "%out" {
			op = OpOut
		}
		return r.add(Inst{Op: op, A: value})

	case "%input":
		if arr, index, ok, err := r.element(rest); ok || err != nil {
			if err != nil {
				return err
			}
			return r.add(Inst{Op: OpInputElem, Array: arr, A: index})
		}
		dest, err := r.name(rest)
		if err != nil {
			return err
		}
		return r.add(Inst{Op: OpInput, Dest: dest})
	}

	return r.malformed("unknown instruction %q", mnemonic)
}

func (r *irReader) readHeader(line string) error {
	if r.fn != nil {
		return r.malformed("%%func inside function %s", r.fn.Name)
	}
	rest := strings.TrimSpace(strings.TrimPrefix(line, "%func"))
	open := strings.IndexByte(rest, '(')
	if open < 0 || !strings.HasSuffix(rest, ")") {
		return r.malformed("bad function header %q", line)
	}
	name := strings.TrimSpace(rest[:open])
	if !isIRName(name) {
		return r.malformed("bad function name %q", name)
	}
	if _, dup := r.prog.byName[name]; dup {
		return r.malformed("function %s defined twice", name)
	}

	fn := &Func{Name: name, Labels: make(map[string]int), Line: r.line}
	params := strings.TrimSpace(rest[open+1 : len(rest)-1])
	if params != "" {
		for _, param := range strings.Split(params, ",") {
			param = strings.TrimSpace(param)
			pname, ok := strings.CutPrefix(param, "%int ")
			pname = strings.TrimSpace(pname)
			if !ok || !isIRName(pname) {
				return r.malformed("bad parameter %q", param)
			}
			fn.Params = append(fn.Params, pname)
		}
	}
	r.fn = fn
	return nil
}

// endFunc closes the current function once all of its jumps resolve.
func (r *irReader) endFunc() error {
	fn := r.fn
	for _, in := range fn.Code {
		switch in.Op {
		case OpJmp, OpBranchIf, OpBranchIfn:
			if _, ok := fn.Labels[in.Label]; !ok {
				return &RuntimeError{Kind: UnknownLabel, Func: fn.Name, Line: in.Line, Msg: fmt.Sprintf("unknown label :%s", in.Label)}
			}
		}
	}
	r.prog.Funcs = append(r.prog.Funcs, fn)
	r.prog.byName[fn.Name] = fn
	r.fn = nil
	return nil
}

func (r *irReader) readMov(rest string) error {
	fields, err := r.fields(rest, 2)
	if err != nil {
		return err
	}
	if arr, index, ok, err := r.element(fields[0]); ok || err != nil {
		if err != nil {
			return err
		}
		value, err := r.operand(fields[1])
		if err != nil {
			return err
		}
		return r.add(Inst{Op: OpStore, Array: arr, A: index, B: value})
	}
	dest, err := r.name(fields[0])
	if err != nil {
		return err
	}
	if arr, index, ok, err := r.element(fields[1]); ok || err != nil {
		if err != nil {
			return err
		}
		return r.add(Inst{Op: OpLoad, Dest: dest, Array: arr, A: index})
	}
	src, err := r.operand(fields[1])
	if err != nil {
		return err
	}
	return r.add(Inst{Op: OpMov, Dest: dest, A: src})
}

func (r *irReader) readCall(rest string) error {
	destText, target, ok := strings.Cut(rest, ",")
	if !ok {
		return r.malformed("bad call %q", rest)
	}
	dest, err := r.name(strings.TrimSpace(destText))
	if err != nil {
		return err
	}
	target = strings.TrimSpace(target)
	open := strings.IndexByte(target, '(')
	if open < 0 || !strings.HasSuffix(target, ")") {
		return r.malformed("bad call target %q", target)
	}
	callee := strings.TrimSpace(target[:open])
	if !isIRName(callee) {
		return r.malformed("bad function name %q", callee)
	}
	var args []Operand
	if argText := strings.TrimSpace(target[open+1 : len(target)-1]); argText != "" {
		for _, a := range strings.Split(argText, ",") {
			arg, err := r.operand(a)
			if err != nil {
				return err
			}
			args = append(args, arg)
		}
	}
	return r.add(Inst{Op: OpCall, Dest: dest, Callee: callee, Args: args})
}

func (r *irReader) add(in Inst) error {
	in.Line = r.line
	r.fn.Code = append(r.fn.Code, in)
	return nil
}

// fields splits comma-separated operands, requiring exactly n of them.
func (r *irReader) fields(rest string, n int) ([]string, error) {
	parts := strings.Split(rest, ",")
	if len(parts) != n {
		return nil, r.malformed("expected %d operands, got %d", n, len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}

func (r *irReader) name(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !isIRName(s) {
		return "", r.malformed("bad variable name %q", s)
	}
	return s, nil
}

func (r *irReader) operand(s string) (Operand, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Operand{}, r.malformed("missing operand")
	}
	if s[0] == '-' || isDigit(s[0]) {
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return Operand{}, r.malformed("bad integer %q", s)
		}
		return Const(int32(v)), nil
	}
	if !isIRName(s) {
		return Operand{}, r.malformed("bad operand %q", s)
	}
	return Var(s), nil
}

func (r *irReader) labelRef(s string) (string, error) {
	s = strings.TrimSpace(s)
	label, ok := strings.CutPrefix(s, ":")
	if !ok || !isIRName(label) {
		return "", r.malformed("bad label reference %q", s)
	}
	return label, nil
}

// element parses "[arr + index]". ok is false when s is not bracketed.
func (r *irReader) element(s string) (arr string, index Operand, ok bool, err error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") {
		return "", Operand{}, false, nil
	}
	if !strings.HasSuffix(s, "]") {
		return "", Operand{}, true, r.malformed("bad array reference %q", s)
	}
	arrText, indexText, found := strings.Cut(s[1:len(s)-1], "+")
	if !found {
		return "", Operand{}, true, r.malformed("bad array reference %q", s)
	}
	arr, err = r.name(arrText)
	if err != nil {
		return "", Operand{}, true, err
	}
	index, err = r.operand(indexText)
	if err != nil {
		return "", Operand{}, true, err
	}
	return arr, index, true, nil
}

func isIRName(s string) bool {
	if s == "" {
		return false
	}
	if !isLetter(s[0]) && s[0] != '_' {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentChar(s[i]) {
			return false
		}
	}
	return true
}
