package pdf

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
)

// Kind classifies content stream tokens.
type Kind int

const (
	KindNumber Kind = iota
	KindName
	KindString    // literal string (...)
	KindHexString // hex string <...>
	KindArrayOpen
	KindArrayClose
	KindDictOpen
	KindDictClose
	KindOperator
	KindInlineImage // BI ... ID data EI as one opaque token
)

var errUnterminated = errors.New("unterminated token")

// Token is one lexical element of a content stream.
//
// Lead holds the whitespace and comments in front of the token so that a
// token list serializes back to the exact input.
type Token struct {
	Kind  Kind
	Lead  []byte
	Raw   []byte
	Value []byte // decoded bytes of string tokens
	Shown bool   // string painted by a text showing operator
	dirty bool
}

// SetValue replaces the decoded bytes of a string token.
func (t *Token) SetValue(v []byte) {
	t.Value = v
	t.dirty = true
}

// Bytes returns the serialized token including its lead.
func (t *Token) Bytes() []byte {
	out := append([]byte(nil), t.Lead...)
	if !t.dirty {
		return append(out, t.Raw...)
	}
	if t.Kind == KindHexString {
		out = append(out, '<')
		out = append(out, bytes.ToUpper([]byte(hex.EncodeToString(t.Value)))...)
		return append(out, '>')
	}
	return append(out, encodeLiteral(t.Value)...)
}

// Op returns the operator or name text of the token.
func (t *Token) Op() string { return string(t.Raw) }

// Content is a tokenized content stream.
type Content struct {
	Tokens []Token
	Trail  []byte
}

// Bytes serializes the content stream.
func (c *Content) Bytes() []byte {
	var buf bytes.Buffer
	for i := range c.Tokens {
		buf.Write(c.Tokens[i].Bytes())
	}
	buf.Write(c.Trail)
	return buf.Bytes()
}

// Shown returns the indexes of tokens painted by text showing operators.
func (c *Content) Shown() []int {
	var out []int
	for i := range c.Tokens {
		if c.Tokens[i].Shown {
			out = append(out, i)
		}
	}
	return out
}

// markShown flags the string operands of Tj, ', " and TJ.
func (c *Content) markShown() {
	operands := make([]int, 0, 8)
	for i := range c.Tokens {
		t := &c.Tokens[i]
		if t.Kind != KindOperator {
			operands = append(operands, i)
			continue
		}
		switch t.Op() {
		case "Tj", "'", `"`:
			if n := len(operands); n > 0 && isString(c.Tokens[operands[n-1]].Kind) {
				c.Tokens[operands[n-1]].Shown = true
			}
		case "TJ":
			for _, k := range operands {
				if isString(c.Tokens[k].Kind) {
					c.Tokens[k].Shown = true
				}
			}
		}
		operands = operands[:0]
	}
}

func isString(k Kind) bool { return k == KindString || k == KindHexString }

// Lex tokenizes a content stream and marks the shown strings.
func Lex(data []byte) (*Content, error) {
	l := &lexer{data: data}
	c := &Content{}
	for {
		tok, ok, err := l.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			c.Trail = tok.Lead
			break
		}
		c.Tokens = append(c.Tokens, tok)
	}
	c.markShown()
	return c, nil
}

type lexer struct {
	data []byte
	pos  int
}

// next returns the next token. At the end of input ok is false and the
// returned token carries only the trailing lead.
func (l *lexer) next() (Token, bool, error) {
	leadStart := l.pos
	l.skipSpace()
	tok := Token{Lead: l.data[leadStart:l.pos]}
	if l.pos >= len(l.data) {
		return tok, false, nil
	}

	start := l.pos
	c := l.data[l.pos]
	var err error
	switch {
	case c == '(':
		tok.Kind = KindString
		tok.Value, err = l.literal()
	case c == '<' && l.peek(1) == '<':
		tok.Kind = KindDictOpen
		l.pos += 2
	case c == '<':
		tok.Kind = KindHexString
		tok.Value, err = l.hexString()
	case c == '>' && l.peek(1) == '>':
		tok.Kind = KindDictClose
		l.pos += 2
	case c == '[':
		tok.Kind = KindArrayOpen
		l.pos++
	case c == ']':
		tok.Kind = KindArrayClose
		l.pos++
	case c == '/':
		tok.Kind = KindName
		l.pos++
		l.regular()
	case c == '{' || c == '}' || c == ')' || c == '>':
		tok.Kind = KindOperator
		l.pos++
	case isNumberStart(c) && l.number():
		tok.Kind = KindNumber
	default:
		tok.Kind = KindOperator
		l.regular()
		if string(l.data[start:l.pos]) == "BI" {
			tok.Kind = KindInlineImage
			err = l.inlineImage()
		}
	}
	if err != nil {
		return Token{}, false, fmt.Errorf("content stream offset %d: %w", start, err)
	}
	tok.Raw = l.data[start:l.pos]
	return tok, true, nil
}

func (l *lexer) peek(n int) byte {
	if l.pos+n < len(l.data) {
		return l.data[l.pos+n]
	}
	return 0
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch {
		case isWhitespace(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.data) && !isEOL(l.data[l.pos]) {
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *lexer) regular() {
	for l.pos < len(l.data) && !isDelimiter(l.data[l.pos]) {
		l.pos++
	}
}

// number consumes a numeric token. It reports false, consuming nothing,
// when the run of sign, dot and digit bytes has no digit.
func (l *lexer) number() bool {
	start := l.pos
	digits := false
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if c >= '0' && c <= '9' {
			digits = true
		} else if c != '+' && c != '-' && c != '.' {
			break
		}
		l.pos++
	}
	if !digits {
		l.pos = start
	}
	return digits
}

func (l *lexer) literal() ([]byte, error) {
	l.pos++ // (
	var buf bytes.Buffer
	depth := 1
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '\\':
			if l.pos >= len(l.data) {
				return nil, errUnterminated
			}
			esc := l.data[l.pos]
			l.pos++
			switch {
			case esc == '\r':
				if l.pos < len(l.data) && l.data[l.pos] == '\n' {
					l.pos++
				}
			case esc == '\n':
			case esc >= '0' && esc <= '7':
				val := int(esc - '0')
				for k := 0; k < 2 && l.pos < len(l.data); k++ {
					d := l.data[l.pos]
					if d < '0' || d > '7' {
						break
					}
					val = val<<3 + int(d-'0')
					l.pos++
				}
				buf.WriteByte(byte(val))
			default:
				buf.WriteByte(translateEscape(esc))
			}
		case '(':
			depth++
			buf.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return buf.Bytes(), nil
			}
			buf.WriteByte(c)
		default:
			buf.WriteByte(c)
		}
	}
	return nil, errUnterminated
}

func (l *lexer) hexString() ([]byte, error) {
	l.pos++ // <
	var digits []byte
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		if c == '>' {
			if len(digits)%2 == 1 {
				digits = append(digits, '0')
			}
			out := make([]byte, len(digits)/2)
			if _, err := hex.Decode(out, digits); err != nil {
				return nil, err
			}
			return out, nil
		}
		if !isWhitespace(c) {
			digits = append(digits, c)
		}
	}
	return nil, errUnterminated
}

// inlineImage consumes the image dictionary, the ID operator and the binary
// data up to and including the EI operator.
func (l *lexer) inlineImage() error {
	for {
		tok, ok, err := l.next()
		if err != nil {
			return err
		}
		if !ok {
			return errUnterminated
		}
		if tok.Kind == KindOperator && tok.Op() == "ID" {
			break
		}
	}
	if l.pos >= len(l.data) || !isWhitespace(l.data[l.pos]) {
		return errors.New("inline image data must follow ID and a whitespace")
	}
	l.pos++
	dataStart := l.pos
	for i := dataStart; i+1 < len(l.data); i++ {
		if l.data[i] != 'E' || l.data[i+1] != 'I' {
			continue
		}
		before := i > dataStart && isWhitespace(l.data[i-1])
		after := i+2 >= len(l.data) || isDelimiter(l.data[i+2])
		if before && after {
			l.pos = i + 2
			return nil
		}
	}
	return errUnterminated
}

func encodeLiteral(v []byte) []byte {
	out := make([]byte, 0, len(v)+2)
	out = append(out, '(')
	for _, c := range v {
		switch c {
		case '(', ')', '\\':
			out = append(out, '\\', c)
		case '\r':
			out = append(out, '\\', 'r')
		case '\n':
			out = append(out, '\\', 'n')
		default:
			out = append(out, c)
		}
	}
	return append(out, ')')
}

func translateEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	default:
		return c
	}
}

func isNumberStart(c byte) bool { return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') }

func isWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}

func isEOL(c byte) bool { return c == '\r' || c == '\n' }

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	default:
		return isWhitespace(c)
	}
}
