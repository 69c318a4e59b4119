package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Parser is a single-pass recursive-descent parser that validates the
// program and emits IR text as it goes. No syntax tree is built.
//
// Grammar:
//
//	program        = function* EOF
//	function       = "func" IDENT "(" [ "int" IDENT { "," "int" IDENT } ] ")" block
//	block          = "{" statement* "}"
//	statement      = declaration ";" | IDENT "=" expression ";"
//	               | IDENT "[" expression "]" "=" expression ";"
//	               | "return" expression ";" | "print" "(" expression ")" ";"
//	               | "read" "(" lvalue ")" ";" | "break" ";" | "continue" ";"
//	               | "if" condition block [ "else" block ] | "while" condition block
//	declaration    = "int" ( IDENT [ "=" expression ] | "[" term "]" IDENT )
//	condition      = "(" condition ")" | expression relop expression
//	expression     = multiplicative { ("+" | "-") multiplicative }
//	multiplicative = term { ("*" | "/" | "%") term }
//	term           = NUMBER | IDENT | IDENT "[" expression "]"
//	               | IDENT "(" [ expression { "," expression } ] ")" | "(" expression ")"
type Parser struct {
	tokens []Token
	pos    int

	funcs  *FunctionTable
	scope  *Scope
	scopes []*Scope
	names  Namer

	// loops holds the control-structure numbers of the enclosing while
	// statements, innermost last.
	loops []int

	out strings.Builder
}

// NewParser creates a parser over tokens, which must end with EOF.
func NewParser(tokens []Token) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != EOF {
		tokens = append(tokens, Token{Type: EOF})
	}
	return &Parser{tokens: tokens, funcs: NewFunctionTable()}
}

// ParseProgram parses every function and returns the generated IR. No IR is
// returned unless the program declares main.
func (p *Parser) ParseProgram() (string, error) {
	for p.peek().Type != EOF {
		if err := p.parseFunction(); err != nil {
			return "", err
		}
	}
	if _, ok := p.funcs.Lookup("main"); !ok {
		return "", &ParseError{Kind: MissingEntryPoint, Msg: "missing 'main' function"}
	}
	return p.out.String(), nil
}

// Functions returns the program's function table.
func (p *Parser) Functions() *FunctionTable {
	return p.funcs
}

// Scopes returns the scope of every function parsed so far.
func (p *Parser) Scopes() []*Scope {
	return p.scopes
}

func (p *Parser) peek() Token {
	return p.tokens[p.pos]
}

func (p *Parser) advance() Token {
	tok := p.tokens[p.pos]
	if tok.Type != EOF {
		p.pos++
	}
	return tok
}

func (p *Parser) emit(format string, args ...any) {
	fmt.Fprintf(&p.out, format, args...)
	p.out.WriteByte('\n')
}

// failAt builds a ParseError blaming the token at index i.
func (p *Parser) failAt(i int, kind ParseErrorKind, format string, args ...any) error {
	tok := p.tokens[i]
	if tok.Type == EOF && kind == UnexpectedToken {
		kind = UnexpectedEOF
	}
	start := i - 3
	if start < 0 {
		start = 0
	}
	return &ParseError{
		Kind:    kind,
		Msg:     fmt.Sprintf(format, args...),
		Token:   &tok,
		Context: append([]Token(nil), p.tokens[start:i]...),
	}
}

func (p *Parser) fail(kind ParseErrorKind, format string, args ...any) error {
	return p.failAt(p.pos, kind, format, args...)
}

// blame attaches the token at index i to an error raised by a table.
func (p *Parser) blame(err error, i int) error {
	var perr *ParseError
	if errors.As(err, &perr) && perr.Token == nil {
		return p.failAt(i, perr.Kind, "%s", perr.Msg)
	}
	return err
}

// expect consumes the current token if it matches tt.
func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.peek()
	if tok.Type != tt {
		if tt == SEMICOLON {
			return tok, p.fail(ExpectedSemicolon, "expected ';' closing statement")
		}
		return tok, p.fail(UnexpectedToken, "expected '%s'", describe(tt))
	}
	return p.advance(), nil
}

func describe(tt TokenType) string {
	switch tt {
	case IDENT:
		return "identifier"
	case NUMBER:
		return "number"
	}
	return strings.ToLower(string(tt))
}

func (p *Parser) parseFunction() error {
	if p.peek().Type != FUNC {
		return p.fail(UnexpectedToken, "functions must begin with func")
	}
	p.advance()

	nameIdx := p.pos
	nameTok := p.peek()
	if nameTok.Type != IDENT {
		return p.fail(UnexpectedToken, "functions must have a function identifier")
	}
	p.advance()
	name := nameTok.Literal
	if _, ok := p.funcs.Lookup(name); ok {
		return p.failAt(nameIdx, DuplicateFunction, "function '%s' already declared", name)
	}

	p.scope = NewScope(name)
	p.loops = nil

	if _, err := p.expect(LPAREN); err != nil {
		return err
	}
	var params []string
	for p.peek().Type != RPAREN {
		if len(params) > 0 {
			if _, err := p.expect(COMMA); err != nil {
				return err
			}
		}
		if p.peek().Type != INT {
			return p.fail(UnexpectedToken, "expected 'int' keyword or ')'")
		}
		p.advance()
		paramIdx := p.pos
		param, err := p.expect(IDENT)
		if err != nil {
			return err
		}
		if err := p.scope.DeclareScalar(param.Literal); err != nil {
			return p.blame(err, paramIdx)
		}
		params = append(params, "%int "+param.Literal)
	}
	p.advance() // ')'

	// Registered before the body so the function may call itself.
	if err := p.funcs.Declare(name, len(params)); err != nil {
		return p.blame(err, nameIdx)
	}

	p.emit("%%func %s (%s)", name, strings.Join(params, ", "))
	if err := p.parseBlock(); err != nil {
		return err
	}
	p.emit("%%endfunc")
	p.scopes = append(p.scopes, p.scope)
	return nil
}

// parseBlock parses "{" statement* "}".
func (p *Parser) parseBlock() error {
	if _, err := p.expect(LBRACE); err != nil {
		return err
	}
	for {
		switch p.peek().Type {
		case RBRACE:
			p.advance()
			return nil
		case EOF:
			return p.fail(UnexpectedEOF, "expected '}'")
		}
		if err := p.parseStatement(); err != nil {
			return err
		}
	}
}

func (p *Parser) parseStatement() error {
	switch p.peek().Type {
	case INT:
		if err := p.parseDeclaration(); err != nil {
			return err
		}
		_, err := p.expect(SEMICOLON)
		return err

	case IDENT:
		return p.parseAssignment()

	case RETURN:
		p.advance()
		value, err := p.parseExpression()
		if err != nil {
			return err
		}
		p.emit("%%ret %s", value)
		_, err = p.expect(SEMICOLON)
		return err

	case PRINT:
		p.advance()
		if _, err := p.expect(LPAREN); err != nil {
			return err
		}
		value, err := p.parseExpression()
		if err != nil {
			return err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return err
		}
		p.emit("%%out %s", value)
		_, err = p.expect(SEMICOLON)
		return err

	case READ:
		return p.parseRead()

	case BREAK, CONTINUE:
		return p.parseLoopJump()

	case IF:
		return p.parseIf()

	case WHILE:
		return p.parseWhile()

	default:
		return p.fail(UnexpectedToken, "invalid statement")
	}
}

// parseDeclaration parses "int x", "int x = e" or "int[n] a". The
// terminating ';' is left for the caller.
func (p *Parser) parseDeclaration() error {
	p.advance() // 'int'

	if p.peek().Type == LBRACKET {
		p.advance()
		size, err := p.parseTerm()
		if err != nil {
			return err
		}
		if _, err := p.expect(RBRACKET); err != nil {
			return err
		}
		nameIdx := p.pos
		name, err := p.expect(IDENT)
		if err != nil {
			return err
		}
		if err := p.scope.DeclareArray(name.Literal); err != nil {
			return p.blame(err, nameIdx)
		}
		p.emit("%%int[] %s, %s", name.Literal, size)
		return nil
	}

	nameIdx := p.pos
	name, err := p.expect(IDENT)
	if err != nil {
		return err
	}
	if err := p.scope.checkFree(name.Literal); err != nil {
		return p.blame(err, nameIdx)
	}
	p.emit("%%int %s", name.Literal)

	if p.peek().Type == ASSIGN {
		p.advance()
		value, err := p.parseExpression()
		if err != nil {
			return err
		}
		if err := p.scope.DeclareScalar(name.Literal); err != nil {
			return p.blame(err, nameIdx)
		}
		p.emit("%%mov %s, %s", name.Literal, value)
		return nil
	}
	return p.blame(p.scope.DeclareScalar(name.Literal), nameIdx)
}

func (p *Parser) parseAssignment() error {
	nameIdx := p.pos
	name := p.advance().Literal

	switch p.peek().Type {
	case LBRACKET:
		if !p.scope.IsArray(name) {
			return p.failAt(nameIdx, UndeclaredArray, "array '%s' not declared", name)
		}
		p.advance()
		index, err := p.parseExpression()
		if err != nil {
			return err
		}
		if _, err := p.expect(RBRACKET); err != nil {
			return err
		}
		if _, err := p.expect(ASSIGN); err != nil {
			return err
		}
		value, err := p.parseExpression()
		if err != nil {
			return err
		}
		p.emit("%%mov [%s + %s], %s", name, index, value)

	case ASSIGN:
		if !p.scope.IsScalar(name) {
			return p.failAt(nameIdx, UndeclaredVariable, "variable '%s' not declared", name)
		}
		p.advance()
		value, err := p.parseExpression()
		if err != nil {
			return err
		}
		p.emit("%%mov %s, %s", name, value)

	default:
		return p.fail(UnexpectedToken, "expected '[' or '='")
	}

	_, err := p.expect(SEMICOLON)
	return err
}

func (p *Parser) parseRead() error {
	p.advance() // 'read'
	if _, err := p.expect(LPAREN); err != nil {
		return err
	}

	nameIdx := p.pos
	tok := p.peek()
	if tok.Type != IDENT {
		return p.fail(NotAssignable, "read needs a variable or array element")
	}
	p.advance()
	name := tok.Literal

	if p.peek().Type == LBRACKET {
		if !p.scope.IsArray(name) {
			return p.failAt(nameIdx, UndeclaredArray, "array '%s' not declared", name)
		}
		p.advance()
		index, err := p.parseExpression()
		if err != nil {
			return err
		}
		if _, err := p.expect(RBRACKET); err != nil {
			return err
		}
		p.emit("%%input [%s + %s]", name, index)
	} else {
		if p.peek().Type == LPAREN {
			return p.failAt(nameIdx, NotAssignable, "cannot read into a function call")
		}
		if !p.scope.IsScalar(name) {
			return p.failAt(nameIdx, UndeclaredVariable, "variable '%s' not declared", name)
		}
		p.emit("%%input %s", name)
	}

	if _, err := p.expect(RPAREN); err != nil {
		return err
	}
	_, err := p.expect(SEMICOLON)
	return err
}

func (p *Parser) parseLoopJump() error {
	tok := p.peek()
	if len(p.loops) == 0 {
		if tok.Type == BREAK {
			return p.fail(BreakOutsideLoop, "tried to break but not in loop")
		}
		return p.fail(ContinueOutsideLoop, "tried to continue but not in loop")
	}
	p.advance()
	n := p.loops[len(p.loops)-1]
	if tok.Type == BREAK {
		p.emit("%%jmp :endloop%d", n)
	} else {
		p.emit("%%jmp :loopbegin%d", n)
	}
	_, err := p.expect(SEMICOLON)
	return err
}

func (p *Parser) parseIf() error {
	p.advance() // 'if'
	n := p.names.Structure()

	flag, err := p.parseCondition()
	if err != nil {
		return err
	}
	p.emit("%%branch_if %s, :iftrue%d", flag, n)
	p.emit("%%jmp :else%d", n)
	p.emit(":iftrue%d", n)
	if err := p.parseBlock(); err != nil {
		return err
	}
	p.emit("%%jmp :endif%d", n)
	p.emit(":else%d", n)

	if p.peek().Type == ELSE {
		p.advance()
		if err := p.parseBlock(); err != nil {
			return err
		}
	}
	p.emit(":endif%d", n)
	return nil
}

func (p *Parser) parseWhile() error {
	p.advance() // 'while'
	n := p.names.Structure()

	p.emit(":loopbegin%d", n)
	flag, err := p.parseCondition()
	if err != nil {
		return err
	}
	p.emit("%%branch_ifn %s, :endloop%d", flag, n)

	p.loops = append(p.loops, n)
	err = p.parseBlock()
	p.loops = p.loops[:len(p.loops)-1]
	if err != nil {
		return err
	}

	p.emit("%%jmp :loopbegin%d", n)
	p.emit(":endloop%d", n)
	return nil
}

var comparisonOps = map[TokenType]string{
	LT:     "%lt",
	LE:     "%le",
	GT:     "%gt",
	GE:     "%ge",
	EQ:     "%eq",
	NOT_EQ: "%neq",
}

// parseCondition parses a comparison and returns the scratch name holding
// its 0/1 result. A condition may be wrapped in parentheses.
func (p *Parser) parseCondition() (string, error) {
	if p.peek().Type == LPAREN && p.parenthesizedCondition() {
		p.advance()
		flag, err := p.parseCondition()
		if err != nil {
			return "", err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return "", err
		}
		return flag, nil
	}

	left, err := p.parseExpression()
	if err != nil {
		return "", err
	}
	op, ok := comparisonOps[p.peek().Type]
	if !ok {
		return "", p.fail(ExpectedRelationalOperator, "expected a comparison (< <= == != >= >)")
	}
	p.advance()
	right, err := p.parseExpression()
	if err != nil {
		return "", err
	}
	flag := p.names.Temp()
	p.emit("%%int %s", flag)
	p.emit("%s %s, %s, %s", op, flag, left, right)
	return flag, nil
}

// parenthesizedCondition reports whether the '(' at the current position
// encloses a comparison, as in "while (i < 3)", rather than starting an
// arithmetic operand, as in "while (i + 1) < 3".
func (p *Parser) parenthesizedCondition() bool {
	depth := 0
	for i := p.pos; i < len(p.tokens); i++ {
		switch p.tokens[i].Type {
		case LPAREN:
			depth++
		case RPAREN:
			depth--
			if depth == 0 {
				return false
			}
		case EOF, LBRACE, SEMICOLON:
			return false
		default:
			if _, ok := comparisonOps[p.tokens[i].Type]; ok {
				return true
			}
		}
	}
	return false
}

// parseExpression parses a left-associative chain of additive operations
// and returns the operand holding the result.
func (p *Parser) parseExpression() (string, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return "", err
	}
	for p.peek().Type == PLUS || p.peek().Type == MINUS {
		op := "%add"
		if p.advance().Type == MINUS {
			op = "%sub"
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return "", err
		}
		left = p.binary(op, left, right)
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (string, error) {
	left, err := p.parseTerm()
	if err != nil {
		return "", err
	}
	for {
		var op string
		switch p.peek().Type {
		case ASTERISK:
			op = "%mult"
		case SLASH:
			op = "%div"
		case PERCENT:
			op = "%mod"
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseTerm()
		if err != nil {
			return "", err
		}
		left = p.binary(op, left, right)
	}
}

func (p *Parser) binary(op, left, right string) string {
	dest := p.names.Temp()
	p.emit("%%int %s", dest)
	p.emit("%s %s, %s, %s", op, dest, left, right)
	return dest
}

func (p *Parser) parseTerm() (string, error) {
	tok := p.peek()
	switch tok.Type {
	case NUMBER:
		p.advance()
		return strconv.Itoa(int(tok.Value)), nil

	case LPAREN:
		p.advance()
		value, err := p.parseExpression()
		if err != nil {
			return "", err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return "", err
		}
		return value, nil

	case IDENT:
		nameIdx := p.pos
		p.advance()
		switch p.peek().Type {
		case LBRACKET:
			return p.parseArrayRead(nameIdx)
		case LPAREN:
			return p.parseCall(nameIdx)
		}
		if !p.scope.IsScalar(tok.Literal) {
			if p.scope.IsArray(tok.Literal) {
				return "", p.failAt(nameIdx, UndeclaredVariable, "array '%s' used without an index", tok.Literal)
			}
			return "", p.failAt(nameIdx, UndeclaredVariable, "variable '%s' not declared", tok.Literal)
		}
		return tok.Literal, nil

	case EOF:
		return "", p.fail(UnexpectedEOF, "expected an expression")

	default:
		return "", p.fail(UnexpectedToken, "invalid expression")
	}
}

func (p *Parser) parseArrayRead(nameIdx int) (string, error) {
	name := p.tokens[nameIdx].Literal
	if !p.scope.IsArray(name) {
		return "", p.failAt(nameIdx, UndeclaredArray, "array '%s' not declared", name)
	}
	p.advance() // '['
	index, err := p.parseExpression()
	if err != nil {
		return "", err
	}
	if _, err := p.expect(RBRACKET); err != nil {
		return "", err
	}
	dest := p.names.Temp()
	p.emit("%%int %s", dest)
	p.emit("%%mov %s, [%s + %s]", dest, name, index)
	return dest, nil
}

func (p *Parser) parseCall(nameIdx int) (string, error) {
	name := p.tokens[nameIdx].Literal
	arity, ok := p.funcs.Lookup(name)
	if !ok {
		return "", p.failAt(nameIdx, UndeclaredFunction, "function '%s' not declared", name)
	}
	p.advance() // '('

	var args []string
	for p.peek().Type != RPAREN {
		if len(args) > 0 {
			if _, err := p.expect(COMMA); err != nil {
				return "", err
			}
		}
		arg, err := p.parseExpression()
		if err != nil {
			return "", err
		}
		args = append(args, arg)
	}
	p.advance() // ')'

	if len(args) != arity {
		return "", p.failAt(nameIdx, CallArityMismatch, "function '%s' takes %d arguments, got %d", name, arity, len(args))
	}
	dest := p.names.Temp()
	p.emit("%%int %s", dest)
	p.emit("%%call %s, %s(%s)", dest, name, strings.Join(args, ", "))
	return dest, nil
}
