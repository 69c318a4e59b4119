// Package sexy reads the s-expression notation used by the markdown test
// corpus and matches expected patterns against actual values.
package sexy

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// NodeType represents the type of a Node
type NodeType int

const (
	NodeSymbol NodeType = iota
	NodeString
	NodeInteger
	NodeEllipsis
	NodeList
)

func (t NodeType) String() string {
	switch t {
	case NodeSymbol:
		return "symbol"
	case NodeString:
		return "string"
	case NodeInteger:
		return "integer"
	case NodeEllipsis:
		return "ellipsis"
	case NodeList:
		return "list"
	}
	return fmt.Sprintf("NodeType(%d)", int(t))
}

// Node is one datum: an atom or a list.
type Node struct {
	Type  NodeType
	Text  string  // NodeSymbol, NodeString, NodeInteger
	Items []*Node // NodeList
}

func (n *Node) String() string {
	switch n.Type {
	case NodeSymbol, NodeInteger:
		return n.Text
	case NodeString:
		return strconv.Quote(n.Text)
	case NodeEllipsis:
		return "..."
	case NodeList:
		parts := make([]string, len(n.Items))
		for i, item := range n.Items {
			parts[i] = item.String()
		}
		return "(" + strings.Join(parts, " ") + ")"
	}
	return fmt.Sprintf("UNKNOWN_NODE_TYPE_%d", n.Type)
}

func NewSymbol(name string) *Node {
	return &Node{Type: NodeSymbol, Text: name}
}

func NewString(value string) *Node {
	return &Node{Type: NodeString, Text: value}
}

func NewInteger(text string) *Node {
	return &Node{Type: NodeInteger, Text: text}
}

func NewEllipsis() *Node {
	return &Node{Type: NodeEllipsis}
}

func NewList(items []*Node) *Node {
	return &Node{Type: NodeList, Items: items}
}

// IsAtom checks if the node is an atomic value
func (n *Node) IsAtom() bool {
	return n.Type != NodeList
}

// Match checks actual against pattern. Atoms must be equal. A list pattern
// matches a list of the same length item by item; an ellipsis as the last
// item of a pattern list matches any remaining items. path names the
// position being compared and prefixes the returned error.
func Match(pattern, actual *Node, path string) error {
	if pattern.Type == NodeEllipsis {
		return nil
	}
	if pattern.Type != actual.Type {
		return fmt.Errorf("%s: expected %s %s, got %s %s", path, pattern.Type, pattern, actual.Type, actual)
	}
	if pattern.IsAtom() {
		if pattern.Text != actual.Text {
			return fmt.Errorf("%s: expected %s, got %s", path, pattern, actual)
		}
		return nil
	}

	for i, want := range pattern.Items {
		if want.Type == NodeEllipsis && i == len(pattern.Items)-1 {
			return nil
		}
		if i >= len(actual.Items) {
			return fmt.Errorf("%s: expected %s at index %d, got end of list", path, want, i)
		}
		if err := Match(want, actual.Items[i], fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	if len(actual.Items) > len(pattern.Items) {
		return fmt.Errorf("%s: unexpected extra item %s at index %d", path, actual.Items[len(pattern.Items)], len(pattern.Items))
	}
	return nil
}

type parser struct {
	lexer        *lexer
	currentToken token
}

// Parse parses the entire input and returns the top-level datum
func Parse(input string) (*Node, error) {
	p := &parser{lexer: newLexer(input)}
	if err := p.nextToken(); err != nil {
		return nil, err
	}

	result, err := p.parseDatum()
	if err != nil {
		return nil, err
	}
	if p.currentToken.Type != tokenEOF {
		return nil, fmt.Errorf("offset %d: expected EOF but got %s", p.currentToken.Position, p.currentToken.Type)
	}
	return result, nil
}

func (p *parser) nextToken() error {
	tok, err := p.lexer.nextToken()
	if err != nil {
		return err
	}
	p.currentToken = tok
	return nil
}

func (p *parser) parseDatum() (*Node, error) {
	tok := p.currentToken
	var node *Node
	switch tok.Type {
	case tokenSymbol:
		node = NewSymbol(tok.Value)
	case tokenString:
		node = NewString(tok.Value)
	case tokenInteger:
		node = NewInteger(tok.Value)
	case tokenEllipsis:
		node = NewEllipsis()
	case tokenLParen:
		return p.parseList()
	default:
		return nil, fmt.Errorf("offset %d: unexpected token: %s", tok.Position, tok.Type)
	}
	if err := p.nextToken(); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *parser) parseList() (*Node, error) {
	if err := p.nextToken(); err != nil { // consume '('
		return nil, err
	}

	items := []*Node{}
	for p.currentToken.Type != tokenRParen && p.currentToken.Type != tokenEOF {
		item, err := p.parseDatum()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if p.currentToken.Type != tokenRParen {
		return nil, fmt.Errorf("offset %d: expected ')' but got %s", p.currentToken.Position, p.currentToken.Type)
	}
	if err := p.nextToken(); err != nil { // consume ')'
		return nil, err
	}
	return NewList(items), nil
}

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenSymbol
	tokenString
	tokenInteger
	tokenEllipsis
	tokenLParen
	tokenRParen
)

func (t tokenType) String() string {
	switch t {
	case tokenEOF:
		return "EOF"
	case tokenSymbol:
		return "symbol"
	case tokenString:
		return "string"
	case tokenInteger:
		return "integer"
	case tokenEllipsis:
		return "ellipsis"
	case tokenLParen:
		return "'('"
	case tokenRParen:
		return "')'"
	default:
		return fmt.Sprintf("unknown token %d", int(t))
	}
}

type token struct {
	Type     tokenType
	Value    string
	Position int
}

type lexer struct {
	input    string
	position int
}

func newLexer(input string) *lexer {
	return &lexer{input: input}
}

func (l *lexer) peek(offset int) byte {
	if l.position+offset >= len(l.input) {
		return 0
	}
	return l.input[l.position+offset]
}

// nextToken skips whitespace and ';' comments and returns the next token.
func (l *lexer) nextToken() (token, error) {
	for {
		c := l.peek(0)
		if c == ';' {
			for l.position < len(l.input) && l.input[l.position] != '\n' {
				l.position++
			}
			continue
		}
		if c != 0 && unicode.IsSpace(rune(c)) {
			l.position++
			continue
		}
		break
	}

	pos := l.position
	c := l.peek(0)
	switch {
	case l.position >= len(l.input):
		return token{Type: tokenEOF, Position: pos}, nil
	case c == '(':
		l.position++
		return token{Type: tokenLParen, Value: "(", Position: pos}, nil
	case c == ')':
		l.position++
		return token{Type: tokenRParen, Value: ")", Position: pos}, nil
	case c == '"':
		str, err := l.readString()
		if err != nil {
			return token{}, fmt.Errorf("offset %d: %w", pos, err)
		}
		return token{Type: tokenString, Value: str, Position: pos}, nil
	case c == '.':
		if l.peek(1) == '.' && l.peek(2) == '.' {
			l.position += 3
			return token{Type: tokenEllipsis, Value: "...", Position: pos}, nil
		}
		return token{}, fmt.Errorf("offset %d: unexpected character '.'", pos)
	case isDigit(c) || ((c == '-' || c == '+') && isDigit(l.peek(1))):
		l.position++
		for isDigit(l.peek(0)) {
			l.position++
		}
		return token{Type: tokenInteger, Value: l.input[pos:l.position], Position: pos}, nil
	case isSymbolChar(c):
		for isSymbolChar(l.peek(0)) {
			l.position++
		}
		return token{Type: tokenSymbol, Value: l.input[pos:l.position], Position: pos}, nil
	}
	return token{}, fmt.Errorf("offset %d: unexpected character '%c'", pos, c)
}

func (l *lexer) readString() (string, error) {
	var sb strings.Builder
	l.position++ // opening quote
	for {
		c := l.peek(0)
		switch {
		case l.position >= len(l.input):
			return "", fmt.Errorf("unterminated string")
		case c == '"':
			l.position++
			return sb.String(), nil
		case c == '\\':
			switch l.peek(1) {
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			case 'n':
				sb.WriteByte('\n')
			default:
				return "", fmt.Errorf("invalid escape sequence: \\%c", l.peek(1))
			}
			l.position += 2
		default:
			sb.WriteByte(c)
			l.position++
		}
	}
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isSymbolChar(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || isDigit(c) ||
		c == '-' || c == '_' || c == '%' || c == ':' || c == '!' || c == '?' || c == '*'
}
