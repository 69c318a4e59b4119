package main

import "strconv"

// Lexer holds all mutable state for a single scanning pass over input.
type Lexer struct {
	input  []byte
	pos    int // index of the next byte to consume
	line   int
	column int
}

// NewLexer creates a lexer positioned at the start of input.
func NewLexer(input []byte) *Lexer {
	return &Lexer{input: input, line: 1, column: 1}
}

// Tokenize scans the whole of source. The returned slice always ends with an
// EOF token.
func Tokenize(source string) ([]Token, error) {
	return NewLexer([]byte(source)).Tokenize()
}

// Tokenize scans the remaining input into tokens, stopping at the first
// position no rule matches.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) peekAt(offset int) byte {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.pos+offset]
}

func (l *Lexer) advance() {
	if l.pos >= len(l.input) {
		return
	}
	if l.input[l.pos] == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
}

func (l *Lexer) position() Position {
	return Position{Line: l.line, Column: l.column}
}

// NextToken scans one token, skipping whitespace and comments first.
func (l *Lexer) NextToken() (Token, error) {
	for {
		c := l.peek()
		if isSpace(c) {
			l.advance()
			continue
		}
		if c == '#' {
			l.skipLineComment()
			continue
		}
		break
	}

	start := l.position()
	if l.pos >= len(l.input) {
		return Token{Type: EOF, Pos: start}, nil
	}

	c := l.peek()
	if isDigit(c) {
		return l.readNumber()
	}

	if tt, ok := twoCharOperator(c, l.peekAt(1)); ok {
		lit := string(l.input[l.pos : l.pos+2])
		l.advance()
		l.advance()
		return Token{Type: tt, Literal: lit, Pos: start}, nil
	}

	if tt, ok := singleCharToken(c); ok {
		l.advance()
		return Token{Type: tt, Literal: string(c), Pos: start}, nil
	}

	if tok, ok := l.readKeyword(); ok {
		return tok, nil
	}

	if isLetter(c) {
		return l.readIdentifier(), nil
	}

	return Token{}, l.unrecognized(start)
}

func (l *Lexer) skipLineComment() {
	for l.pos < len(l.input) && l.peek() != '\n' {
		l.advance()
	}
	l.advance() // the newline itself
}

func (l *Lexer) readNumber() (Token, error) {
	start := l.position()
	begin := l.pos
	for isDigit(l.peek()) {
		l.advance()
	}
	if l.pos < len(l.input) && gluesToNumber(l.peek()) {
		l.pos = begin
		return Token{}, l.unrecognized(start)
	}
	lit := string(l.input[begin:l.pos])
	val, err := strconv.ParseInt(lit, 10, 32)
	if err != nil {
		return Token{}, &LexError{Kind: NumberOutOfRange, Symbol: lit, Pos: start}
	}
	return Token{Type: NUMBER, Literal: lit, Value: int32(val), Pos: start}, nil
}

// readKeyword tries each reserved spelling at the current position. A
// spelling only counts when it is not the prefix of a longer identifier.
func (l *Lexer) readKeyword() (Token, bool) {
	rest := l.input[l.pos:]
	for _, kw := range keywords {
		n := len(kw.spelling)
		if len(rest) < n || string(rest[:n]) != kw.spelling {
			continue
		}
		if n < len(rest) && isIdentChar(rest[n]) {
			continue
		}
		tok := Token{Type: kw.typ, Literal: kw.spelling, Pos: l.position()}
		for i := 0; i < n; i++ {
			l.advance()
		}
		return tok, true
	}
	return Token{}, false
}

func (l *Lexer) readIdentifier() Token {
	start := l.position()
	begin := l.pos
	for isIdentChar(l.peek()) {
		l.advance()
	}
	return Token{Type: IDENT, Literal: string(l.input[begin:l.pos]), Pos: start}
}

// unrecognized reports the run of non-whitespace characters at the current
// position.
func (l *Lexer) unrecognized(start Position) error {
	end := l.pos
	for end < len(l.input) && !isSpace(l.input[end]) {
		end++
	}
	return &LexError{Kind: UnrecognizedSymbol, Symbol: string(l.input[l.pos:end]), Pos: start}
}

func twoCharOperator(c, next byte) (TokenType, bool) {
	if next != '=' {
		return "", false
	}
	switch c {
	case '=':
		return EQ, true
	case '!':
		return NOT_EQ, true
	case '<':
		return LE, true
	case '>':
		return GE, true
	}
	return "", false
}

func singleCharToken(c byte) (TokenType, bool) {
	switch c {
	case '(':
		return LPAREN, true
	case ')':
		return RPAREN, true
	case '{':
		return LBRACE, true
	case '}':
		return RBRACE, true
	case '[':
		return LBRACKET, true
	case ']':
		return RBRACKET, true
	case ',':
		return COMMA, true
	case ';':
		return SEMICOLON, true
	case '+':
		return PLUS, true
	case '-':
		return MINUS, true
	case '*':
		return ASTERISK, true
	case '/':
		return SLASH, true
	case '%':
		return PERCENT, true
	case '=':
		return ASSIGN, true
	case '<':
		return LT, true
	case '>':
		return GT, true
	}
	return "", false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '_'
}

// gluesToNumber reports whether c may not directly follow a number literal.
func gluesToNumber(c byte) bool {
	switch c {
	case '_', '\'', '"', '.', '$', '@', '?', '\\', '`', ':', '|', '~':
		return true
	}
	return isLetter(c) || c >= 0x80
}
