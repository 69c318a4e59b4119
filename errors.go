package main

import (
	"fmt"
	"strings"
)

// LexErrorKind classifies lexer failures.
type LexErrorKind string

const (
	UnrecognizedSymbol LexErrorKind = "UnrecognizedSymbol"
	NumberOutOfRange   LexErrorKind = "NumberOutOfRange"
)

// LexError aborts lexing. Symbol is the maximal run of non-whitespace
// characters starting where no rule matched.
type LexError struct {
	Kind   LexErrorKind
	Symbol string
	Pos    Position
}

func (e *LexError) Error() string {
	switch e.Kind {
	case NumberOutOfRange:
		return fmt.Sprintf("error: %s: number %s does not fit in 32 bits", e.Pos, e.Symbol)
	default:
		return fmt.Sprintf("error: %s: unrecognized symbol %s", e.Pos, e.Symbol)
	}
}

// ParseErrorKind classifies grammar and semantic failures.
type ParseErrorKind string

const (
	UnexpectedToken            ParseErrorKind = "UnexpectedToken"
	UnexpectedEOF              ParseErrorKind = "UnexpectedEOF"
	ExpectedSemicolon          ParseErrorKind = "ExpectedSemicolon"
	ExpectedRelationalOperator ParseErrorKind = "ExpectedRelationalOperator"
	MissingEntryPoint          ParseErrorKind = "MissingEntryPoint"
	DuplicateFunction          ParseErrorKind = "DuplicateFunction"
	DuplicateDeclaration       ParseErrorKind = "DuplicateDeclaration"
	UndeclaredArray            ParseErrorKind = "UndeclaredArray"
	UndeclaredFunction         ParseErrorKind = "UndeclaredFunction"
	UndeclaredVariable         ParseErrorKind = "UndeclaredVariable"
	CallArityMismatch          ParseErrorKind = "ArityMismatch"
	BreakOutsideLoop           ParseErrorKind = "BreakOutsideLoop"
	ContinueOutsideLoop        ParseErrorKind = "ContinueOutsideLoop"
	NotAssignable              ParseErrorKind = "NotAssignable"
)

// ParseError aborts compilation at the first malformed construct. Context
// holds up to three tokens preceding Token.
type ParseError struct {
	Kind    ParseErrorKind
	Msg     string
	Token   *Token
	Context []Token
}

func (e *ParseError) Error() string {
	var sb strings.Builder
	sb.WriteString("error: ")
	if e.Token != nil && e.Token.Type != EOF {
		sb.WriteString(e.Token.Pos.String())
		sb.WriteString(": ")
	}
	sb.WriteString(e.Msg)
	if e.Token != nil {
		sb.WriteString(" (at ")
		if e.Token.Type == EOF {
			sb.WriteString("end of input")
		} else {
			sb.WriteString(e.Token.String())
		}
		if len(e.Context) > 0 {
			sb.WriteString(", after")
			for _, tok := range e.Context {
				sb.WriteString(" ")
				sb.WriteString(tok.String())
			}
		}
		sb.WriteString(")")
	}
	return sb.String()
}

// RuntimeErrorKind classifies IR loading and execution failures.
type RuntimeErrorKind string

const (
	UnknownLabel         RuntimeErrorKind = "UnknownLabel"
	UnknownFunction      RuntimeErrorKind = "UnknownFunction"
	ArityMismatch        RuntimeErrorKind = "ArityMismatch"
	IndexOutOfBounds     RuntimeErrorKind = "IndexOutOfBounds"
	DivideByZero         RuntimeErrorKind = "DivideByZero"
	InputParse           RuntimeErrorKind = "InputParse"
	UndeclaredName       RuntimeErrorKind = "UndeclaredName"
	NegativeArraySize    RuntimeErrorKind = "NegativeArraySize"
	StackOverflow        RuntimeErrorKind = "StackOverflow"
	MalformedInstruction RuntimeErrorKind = "MalformedInstruction"
)

// RuntimeError aborts execution. Line is the 1-based IR line of the
// instruction that failed, or 0 when no single line is to blame.
type RuntimeError struct {
	Kind RuntimeErrorKind
	Msg  string
	Func string
	Line int
}

func (e *RuntimeError) Error() string {
	var sb strings.Builder
	sb.WriteString("error: ")
	if e.Line > 0 {
		fmt.Fprintf(&sb, "line %d: ", e.Line)
	}
	if e.Func != "" {
		fmt.Fprintf(&sb, "in %s: ", e.Func)
	}
	sb.WriteString(e.Msg)
	return sb.String()
}
