package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Scope holds the names declared in one function. Scalars and arrays share
// a namespace, and there is no block scoping: a name declared inside an if
// or while body stays visible until the end of the function.
type Scope struct {
	function string
	scalars  map[string]bool
	arrays   map[string]bool
}

// NewScope creates the scope for the named function.
func NewScope(function string) *Scope {
	return &Scope{
		function: function,
		scalars:  make(map[string]bool),
		arrays:   make(map[string]bool),
	}
}

func (s *Scope) DeclareScalar(name string) error {
	if err := s.checkFree(name); err != nil {
		return err
	}
	s.scalars[name] = true
	return nil
}

func (s *Scope) DeclareArray(name string) error {
	if err := s.checkFree(name); err != nil {
		return err
	}
	s.arrays[name] = true
	return nil
}

func (s *Scope) checkFree(name string) error {
	if s.scalars[name] {
		return &ParseError{Kind: DuplicateDeclaration, Msg: fmt.Sprintf("variable '%s' already declared in %s", name, s.function)}
	}
	if s.arrays[name] {
		return &ParseError{Kind: DuplicateDeclaration, Msg: fmt.Sprintf("array '%s' already declared in %s", name, s.function)}
	}
	return nil
}

func (s *Scope) IsScalar(name string) bool {
	return s.scalars[name]
}

func (s *Scope) IsArray(name string) bool {
	return s.arrays[name]
}

// String returns a deterministically ordered dump of the scope.
func (s *Scope) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:\n", s.function)
	fmt.Fprintf(&sb, "  scalars: %s\n", strings.Join(sortedKeys(s.scalars), " "))
	fmt.Fprintf(&sb, "  arrays: %s\n", strings.Join(sortedKeys(s.arrays), " "))
	return sb.String()
}

// FunctionTable records every function declared so far in the program,
// keyed by name, with its parameter count.
type FunctionTable struct {
	arity map[string]int
	order []string
}

func NewFunctionTable() *FunctionTable {
	return &FunctionTable{arity: make(map[string]int)}
}

func (ft *FunctionTable) Declare(name string, arity int) error {
	if _, ok := ft.arity[name]; ok {
		return &ParseError{Kind: DuplicateFunction, Msg: fmt.Sprintf("function '%s' already declared", name)}
	}
	ft.arity[name] = arity
	ft.order = append(ft.order, name)
	return nil
}

// Lookup returns the arity of name and whether it has been declared.
func (ft *FunctionTable) Lookup(name string) (int, bool) {
	n, ok := ft.arity[name]
	return n, ok
}

// Names returns the declared functions in declaration order.
func (ft *FunctionTable) Names() []string {
	return append([]string(nil), ft.order...)
}

// Namer mints the names one compilation needs: scratch integers and the
// numbers that tie a control structure's labels together.
type Namer struct {
	temps      int
	structures int
}

// Temp returns a fresh scratch name (_temp1, _temp2, ...).
func (n *Namer) Temp() string {
	n.temps++
	return "_temp" + strconv.Itoa(n.temps)
}

// Structure returns a fresh control-structure number.
func (n *Namer) Structure() int {
	n.structures++
	return n.structures
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
