package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Config controls a VM run.
type Config struct {
	// MaxCallDepth bounds the number of live frames, main included. Zero
	// or less means no limit.
	MaxCallDepth int
}

func DefaultConfig() Config {
	return Config{MaxCallDepth: 10000}
}

// frame is the storage of one function invocation.
type frame struct {
	fn      *Func
	pc      int
	scalars map[string]int32
	arrays  map[string][]int32

	// retDest names the caller's scalar that receives the return value;
	// retLine is the IR line of the %call.
	retDest string
	retLine int
}

func newFrame(fn *Func) *frame {
	return &frame{
		fn:      fn,
		scalars: make(map[string]int32),
		arrays:  make(map[string][]int32),
	}
}

// VM executes a parsed IR program. Each %call pushes a frame on an explicit
// stack, so deep recursion in the program does not grow the Go stack.
type VM struct {
	prog  *Program
	in    *bufio.Scanner
	out   io.Writer
	cfg   Config
	stack []*frame
}

// NewVM prepares prog for execution. in may be nil, in which case any
// %input fails.
func NewVM(prog *Program, in io.Reader, out io.Writer, cfg Config) *VM {
	if in == nil {
		in = strings.NewReader("")
	}
	scanner := bufio.NewScanner(in)
	scanner.Split(bufio.ScanWords)
	return &VM{prog: prog, in: scanner, out: out, cfg: cfg}
}

// Run executes main to completion and returns its exit value: the operand
// of the %ret that left main, or 0 if main fell off its end. Output written
// before a failure stays written.
func (vm *VM) Run() (int32, error) {
	entry, ok := vm.prog.Func("main")
	if !ok {
		return 0, &RuntimeError{Kind: UnknownFunction, Msg: "no 'main' function"}
	}
	if len(entry.Params) != 0 {
		return 0, &RuntimeError{Kind: ArityMismatch, Func: "main", Line: entry.Line, Msg: fmt.Sprintf("main must take no arguments, takes %d", len(entry.Params))}
	}
	vm.stack = []*frame{newFrame(entry)}

	for {
		f := vm.stack[len(vm.stack)-1]
		if f.pc >= len(f.fn.Code) {
			if done, err := vm.ret(0); done || err != nil {
				return 0, err
			}
			continue
		}
		in := &f.fn.Code[f.pc]
		f.pc++

		if in.Op == OpRet {
			v, err := vm.value(f, in, in.A)
			if err != nil {
				return 0, err
			}
			if done, err := vm.ret(v); done || err != nil {
				return v, err
			}
			continue
		}
		if err := vm.step(f, in); err != nil {
			return 0, err
		}
	}
}

// ret pops the current frame and hands v to the caller. done reports that
// main returned.
func (vm *VM) ret(v int32) (done bool, err error) {
	callee := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	if len(vm.stack) == 0 {
		return true, nil
	}
	caller := vm.stack[len(vm.stack)-1]
	if _, ok := caller.scalars[callee.retDest]; !ok {
		return false, &RuntimeError{Kind: UndeclaredName, Func: caller.fn.Name, Line: callee.retLine, Msg: fmt.Sprintf("variable '%s' not declared", callee.retDest)}
	}
	caller.scalars[callee.retDest] = v
	return false, nil
}

func (vm *VM) step(f *frame, in *Inst) error {
	switch in.Op {
	case OpLabel:
		return nil

	case OpDecl:
		delete(f.arrays, in.Dest)
		f.scalars[in.Dest] = 0
		return nil

	case OpDeclArray:
		n, err := vm.value(f, in, in.A)
		if err != nil {
			return err
		}
		if n < 0 {
			return vm.fail(f, in, NegativeArraySize, "array '%s' declared with size %d", in.Dest, n)
		}
		delete(f.scalars, in.Dest)
		f.arrays[in.Dest] = make([]int32, n)
		return nil

	case OpMov:
		v, err := vm.value(f, in, in.A)
		if err != nil {
			return err
		}
		return vm.set(f, in, in.Dest, v)

	case OpLoad:
		slot, err := vm.element(f, in)
		if err != nil {
			return err
		}
		return vm.set(f, in, in.Dest, *slot)

	case OpStore:
		slot, err := vm.element(f, in)
		if err != nil {
			return err
		}
		v, err := vm.value(f, in, in.B)
		if err != nil {
			return err
		}
		*slot = v
		return nil

	case OpAdd, OpSub, OpMult, OpDiv, OpMod, OpLt, OpLe, OpGt, OpGe, OpEq, OpNeq:
		a, err := vm.value(f, in, in.A)
		if err != nil {
			return err
		}
		b, err := vm.value(f, in, in.B)
		if err != nil {
			return err
		}
		v, err := vm.arith(f, in, a, b)
		if err != nil {
			return err
		}
		return vm.set(f, in, in.Dest, v)

	case OpJmp:
		return vm.jump(f, in)

	case OpBranchIf, OpBranchIfn:
		c, err := vm.value(f, in, in.A)
		if err != nil {
			return err
		}
		if (c != 0) == (in.Op == OpBranchIf) {
			return vm.jump(f, in)
		}
		return nil

	case OpCall:
		return vm.call(f, in)

	case OpOut:
		v, err := vm.value(f, in, in.A)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(vm.out, "%d\n", v)
		return err

	case OpInput:
		if _, ok := f.scalars[in.Dest]; !ok {
			return vm.fail(f, in, UndeclaredName, "variable '%s' not declared", in.Dest)
		}
		v, err := vm.readInt(f, in)
		if err != nil {
			return err
		}
		f.scalars[in.Dest] = v
		return nil

	case OpInputElem:
		slot, err := vm.element(f, in)
		if err != nil {
			return err
		}
		v, err := vm.readInt(f, in)
		if err != nil {
			return err
		}
		*slot = v
		return nil
	}
	return vm.fail(f, in, MalformedInstruction, "cannot execute %s", in.Op)
}

func (vm *VM) arith(f *frame, in *Inst, a, b int32) (int32, error) {
	switch in.Op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMult:
		return a * b, nil
	case OpDiv, OpMod:
		if b == 0 {
			return 0, vm.fail(f, in, DivideByZero, "division by zero")
		}
		if in.Op == OpDiv {
			return a / b, nil
		}
		return a % b, nil
	case OpLt:
		return boolToInt(a < b), nil
	case OpLe:
		return boolToInt(a <= b), nil
	case OpGt:
		return boolToInt(a > b), nil
	case OpGe:
		return boolToInt(a >= b), nil
	case OpEq:
		return boolToInt(a == b), nil
	default:
		return boolToInt(a != b), nil
	}
}

func boolToInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func (vm *VM) call(f *frame, in *Inst) error {
	callee, ok := vm.prog.Func(in.Callee)
	if !ok {
		return vm.fail(f, in, UnknownFunction, "function '%s' not defined", in.Callee)
	}
	if len(in.Args) != len(callee.Params) {
		return vm.fail(f, in, ArityMismatch, "function '%s' takes %d arguments, got %d", in.Callee, len(callee.Params), len(in.Args))
	}
	if vm.cfg.MaxCallDepth > 0 && len(vm.stack) >= vm.cfg.MaxCallDepth {
		return vm.fail(f, in, StackOverflow, "call depth exceeds %d", vm.cfg.MaxCallDepth)
	}

	next := newFrame(callee)
	for i, arg := range in.Args {
		v, err := vm.value(f, in, arg)
		if err != nil {
			return err
		}
		next.scalars[callee.Params[i]] = v
	}
	next.retDest = in.Dest
	next.retLine = in.Line
	vm.stack = append(vm.stack, next)
	return nil
}

func (vm *VM) jump(f *frame, in *Inst) error {
	target, ok := f.fn.Labels[in.Label]
	if !ok {
		return vm.fail(f, in, UnknownLabel, "unknown label :%s", in.Label)
	}
	f.pc = target
	return nil
}

func (vm *VM) value(f *frame, in *Inst, op Operand) (int32, error) {
	if op.IsConst {
		return op.Value, nil
	}
	v, ok := f.scalars[op.Name]
	if !ok {
		return 0, vm.fail(f, in, UndeclaredName, "variable '%s' not declared", op.Name)
	}
	return v, nil
}

func (vm *VM) set(f *frame, in *Inst, name string, v int32) error {
	if _, ok := f.scalars[name]; !ok {
		return vm.fail(f, in, UndeclaredName, "variable '%s' not declared", name)
	}
	f.scalars[name] = v
	return nil
}

// element resolves in.Array[in.A] to its storage slot.
func (vm *VM) element(f *frame, in *Inst) (*int32, error) {
	arr, ok := f.arrays[in.Array]
	if !ok {
		return nil, vm.fail(f, in, UndeclaredName, "array '%s' not declared", in.Array)
	}
	i, err := vm.value(f, in, in.A)
	if err != nil {
		return nil, err
	}
	if i < 0 || int(i) >= len(arr) {
		return nil, vm.fail(f, in, IndexOutOfBounds, "index %d out of bounds for array '%s' of length %d", i, in.Array, len(arr))
	}
	return &arr[i], nil
}

func (vm *VM) readInt(f *frame, in *Inst) (int32, error) {
	if !vm.in.Scan() {
		if err := vm.in.Err(); err != nil {
			return 0, vm.fail(f, in, InputParse, "reading input: %v", err)
		}
		return 0, vm.fail(f, in, InputParse, "unexpected end of input")
	}
	word := vm.in.Text()
	v, err := strconv.ParseInt(word, 10, 32)
	if err != nil {
		return 0, vm.fail(f, in, InputParse, "invalid integer %q", word)
	}
	return int32(v), nil
}

func (vm *VM) fail(f *frame, in *Inst, kind RuntimeErrorKind, format string, args ...any) error {
	return &RuntimeError{Kind: kind, Func: f.fn.Name, Line: in.Line, Msg: fmt.Sprintf(format, args...)}
}
