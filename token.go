package main

import (
	"strconv"
	"strings"
)

// TokenType is the type of token (identifier, operator, literal, etc.).
type TokenType string

// Definition of token types
const (
	EOF = "EOF"

	// Identifiers + literals
	IDENT  = "IDENT"  // main, foo, bar_2
	NUMBER = "NUMBER" // 12345

	// Operators
	ASSIGN   = "="
	PLUS     = "+"
	MINUS    = "-"
	ASTERISK = "*"
	SLASH    = "/"
	PERCENT  = "%"

	LT     = "<"
	GT     = ">"
	EQ     = "=="
	NOT_EQ = "!="
	LE     = "<="
	GE     = ">="

	// Delimiters
	COMMA     = ","
	SEMICOLON = ";"
	LPAREN    = "("
	RPAREN    = ")"
	LBRACE    = "{"
	RBRACE    = "}"
	LBRACKET  = "["
	RBRACKET  = "]"

	FUNC     = "FUNC"
	RETURN   = "RETURN"
	INT      = "INT"
	PRINT    = "PRINT"
	READ     = "READ"
	WHILE    = "WHILE"
	IF       = "IF"
	ELSE     = "ELSE"
	BREAK    = "BREAK"
	CONTINUE = "CONTINUE"
)

// keywords lists the reserved spellings in the order the lexer tries them.
var keywords = []struct {
	spelling string
	typ      TokenType
}{
	{"continue", CONTINUE},
	{"return", RETURN},
	{"print", PRINT},
	{"while", WHILE},
	{"break", BREAK},
	{"func", FUNC},
	{"read", READ},
	{"else", ELSE},
	{"int", INT},
	{"if", IF},
}

// Position is a 1-based line and column in the source text.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return strconv.Itoa(p.Line) + ":" + strconv.Itoa(p.Column)
}

// Token is one lexeme. Literal holds the source spelling; Value is only
// meaningful when Type == NUMBER.
type Token struct {
	Type    TokenType
	Literal string
	Value   int32
	Pos     Position
}

// symbolNames gives the s-expression spelling of fixed tokens.
var symbolNames = map[TokenType]string{
	EOF:       "eof",
	ASSIGN:    "assign",
	PLUS:      "plus",
	MINUS:     "minus",
	ASTERISK:  "star",
	SLASH:     "slash",
	PERCENT:   "percent",
	LT:        "lt",
	GT:        "gt",
	EQ:        "eq",
	NOT_EQ:    "neq",
	LE:        "le",
	GE:        "ge",
	COMMA:     "comma",
	SEMICOLON: "semicolon",
	LPAREN:    "lparen",
	RPAREN:    "rparen",
	LBRACE:    "lbrace",
	RBRACE:    "rbrace",
	LBRACKET:  "lbracket",
	RBRACKET:  "rbracket",
	FUNC:      "func",
	RETURN:    "return",
	INT:       "int",
	PRINT:     "print",
	READ:      "read",
	WHILE:     "while",
	IF:        "if",
	ELSE:      "else",
	BREAK:     "break",
	CONTINUE:  "continue",
}

// ToSExpr renders the token as an s-expression: (number 12), (ident "ab"),
// or a bare symbol such as plus for fixed-spelling tokens.
func (t Token) ToSExpr() string {
	switch t.Type {
	case NUMBER:
		return "(number " + strconv.Itoa(int(t.Value)) + ")"
	case IDENT:
		return "(ident " + strconv.Quote(t.Literal) + ")"
	}
	if name, ok := symbolNames[t.Type]; ok {
		return name
	}
	return string(t.Type)
}

func (t Token) String() string {
	switch t.Type {
	case NUMBER:
		return "NumberLiteral(" + t.Literal + ")"
	case IDENT:
		return "Identifier(" + strconv.Quote(t.Literal) + ")"
	}
	return strconv.Quote(t.Literal)
}

// TokensToSExpr renders a token list as one s-expression list.
func TokensToSExpr(tokens []Token) string {
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		parts[i] = tok.ToSExpr()
	}
	return "(" + strings.Join(parts, " ") + ")"
}
