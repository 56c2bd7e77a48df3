package token

import (
	"strings"
)

// Lexer tokenizes a query string per §4.6.1. It never allocates per call
// beyond the returned Token's Literal slice — identifiers, numbers and
// operators are substrings of the original source.
type Lexer struct {
	src string
	pos int
}

// NewLexer returns a Lexer positioned at the start of src.
func NewLexer(src string) *Lexer { return &Lexer{src: src} }

func (l *Lexer) peekByte() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) byteAt(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *Lexer) skipSpace() {
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.pos++
		default:
			return
		}
	}
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isIdentStart(b byte) bool {
	return b == '_' || b == '@' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
func isIdentPart(b byte) bool { return isIdentStart(b) || isDigit(b) }

// Next scans and returns the next token, or an EOF token once exhausted.
// A lexical error is reported as an ILLEGAL token carrying the offending
// text; the parser turns that into a SyntaxError status.
func (l *Lexer) Next() Token {
	l.skipSpace()
	start := l.pos
	if l.pos >= len(l.src) {
		return Token{Type: EOF, Pos: Pos(start)}
	}

	c := l.src[l.pos]

	switch {
	case c == '"':
		return l.scanString(start)
	case c == '$':
		return l.scanArgument(start)
	case isDigit(c):
		return l.scanNumber(start)
	case isIdentStart(c):
		return l.scanIdentOrFunctionLiteral(start)
	case c == '[':
		if l.byteAt(1) == 'c' && l.byteAt(2) == ']' {
			l.pos += 3
			return Token{Type: CASE_INSENSITIVE, Literal: "[c]", Pos: Pos(start)}
		}
		l.pos++
		return Token{Type: LBRACKET, Literal: "[", Pos: Pos(start)}
	case c == ']':
		l.pos++
		return Token{Type: RBRACKET, Literal: "]", Pos: Pos(start)}
	case c == '(':
		l.pos++
		return Token{Type: LPAREN, Literal: "(", Pos: Pos(start)}
	case c == ')':
		l.pos++
		return Token{Type: RPAREN, Literal: ")", Pos: Pos(start)}
	case c == '{':
		l.pos++
		return Token{Type: LBRACE, Literal: "{", Pos: Pos(start)}
	case c == '}':
		l.pos++
		return Token{Type: RBRACE, Literal: "}", Pos: Pos(start)}
	case c == ',':
		l.pos++
		return Token{Type: COMMA, Literal: ",", Pos: Pos(start)}
	case c == '.':
		l.pos++
		return Token{Type: DOT, Literal: ".", Pos: Pos(start)}
	case c == '+':
		l.pos++
		return Token{Type: PLUS, Literal: "+", Pos: Pos(start)}
	case c == '-':
		l.pos++
		return Token{Type: MINUS, Literal: "-", Pos: Pos(start)}
	case c == '*':
		l.pos++
		return Token{Type: ASTERISK, Literal: "*", Pos: Pos(start)}
	case c == '/':
		l.pos++
		return Token{Type: SLASH, Literal: "/", Pos: Pos(start)}
	case c == '!':
		if l.byteAt(1) == '=' {
			l.pos += 2
			return Token{Type: NEQ, Literal: "!=", Pos: Pos(start)}
		}
		l.pos++
		return Token{Type: BANG, Literal: "!", Pos: Pos(start)}
	case c == '=':
		if l.byteAt(1) == '=' {
			l.pos += 2
			return Token{Type: EQ, Literal: "==", Pos: Pos(start)}
		}
		l.pos++
		return Token{Type: ILLEGAL, Literal: "=", Pos: Pos(start)}
	case c == '<':
		if l.byteAt(1) == '=' {
			l.pos += 2
			return Token{Type: LE, Literal: "<=", Pos: Pos(start)}
		}
		l.pos++
		return Token{Type: LT, Literal: "<", Pos: Pos(start)}
	case c == '>':
		if l.byteAt(1) == '=' {
			l.pos += 2
			return Token{Type: GE, Literal: ">=", Pos: Pos(start)}
		}
		l.pos++
		return Token{Type: GT, Literal: ">", Pos: Pos(start)}
	case c == '&':
		if l.byteAt(1) == '&' {
			l.pos += 2
			return Token{Type: AND_AND, Literal: "&&", Pos: Pos(start)}
		}
	case c == '|':
		if l.byteAt(1) == '|' {
			l.pos += 2
			return Token{Type: OR_OR, Literal: "||", Pos: Pos(start)}
		}
	}

	l.pos++
	return Token{Type: ILLEGAL, Literal: l.src[start:l.pos], Pos: Pos(start)}
}

func (l *Lexer) scanString(start int) Token {
	l.pos++ // opening quote
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '"' {
			l.pos++
			return Token{Type: STRING, Literal: b.String(), Pos: Pos(start)}
		}
		if c == '\\' && l.pos+1 < len(l.src) {
			l.pos++
			switch l.src[l.pos] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			default:
				b.WriteByte(l.src[l.pos])
			}
			l.pos++
			continue
		}
		b.WriteByte(c)
		l.pos++
	}
	return Token{Type: ILLEGAL, Literal: "unterminated string", Pos: Pos(start)}
}

func (l *Lexer) scanArgument(start int) Token {
	l.pos++ // '$'
	digitsStart := l.pos
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.pos++
	}
	if l.pos == digitsStart {
		return Token{Type: ILLEGAL, Literal: "$", Pos: Pos(start)}
	}
	return Token{Type: ARGUMENT, Literal: l.src[digitsStart:l.pos], Pos: Pos(start)}
}

func (l *Lexer) scanNumber(start int) Token {
	isFloat := false
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.pos++
	}
	if l.peekByte() == '.' && isDigit(l.byteAt(1)) {
		isFloat = true
		l.pos++
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
	}
	if l.peekByte() == 'e' || l.peekByte() == 'E' {
		save := l.pos
		l.pos++
		if l.peekByte() == '+' || l.peekByte() == '-' {
			l.pos++
		}
		if isDigit(l.peekByte()) {
			isFloat = true
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
		} else {
			l.pos = save
		}
	}
	tt := INT
	if isFloat {
		tt = FLOAT
	}
	return Token{Type: tt, Literal: l.src[start:l.pos], Pos: Pos(start)}
}

// scanIdentOrFunctionLiteral scans a bare identifier/keyword, or one of the
// function-call literal forms binary('...')/date('...') which the grammar
// treats as atomic literal tokens rather than IDENT LPAREN STRING RPAREN.
func (l *Lexer) scanIdentOrFunctionLiteral(start int) Token {
	for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
		l.pos++
	}
	word := l.src[start:l.pos]

	if (word == "binary" || word == "date") && l.peekByte() == '(' {
		return l.scanQuotedCallLiteral(start, word)
	}

	switch strings.ToUpper(word) {
	case "NAN":
		return Token{Type: FLOAT, Literal: "NaN", Pos: Pos(start)}
	case "INFINITY", "INF":
		return Token{Type: FLOAT, Literal: "infinity", Pos: Pos(start)}
	}

	tt := LookupIdent(word)
	return Token{Type: tt, Literal: word, Pos: Pos(start)}
}

// scanQuotedCallLiteral scans binary('base64…') / date('iso8601…') as one
// token, Literal holding the inner quoted text verbatim.
func (l *Lexer) scanQuotedCallLiteral(start int, kind string) Token {
	l.pos++ // '('
	for l.pos < len(l.src) && (l.src[l.pos] == ' ' || l.src[l.pos] == '\t') {
		l.pos++
	}
	if l.peekByte() != '\'' {
		return Token{Type: ILLEGAL, Literal: l.src[start:l.pos], Pos: Pos(start)}
	}
	l.pos++
	innerStart := l.pos
	for l.pos < len(l.src) && l.src[l.pos] != '\'' {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return Token{Type: ILLEGAL, Literal: "unterminated literal", Pos: Pos(start)}
	}
	inner := l.src[innerStart:l.pos]
	l.pos++ // closing quote
	for l.pos < len(l.src) && (l.src[l.pos] == ' ' || l.src[l.pos] == '\t') {
		l.pos++
	}
	if l.peekByte() != ')' {
		return Token{Type: ILLEGAL, Literal: l.src[start:l.pos], Pos: Pos(start)}
	}
	l.pos++
	if kind == "binary" {
		return Token{Type: BINARY, Literal: inner, Pos: Pos(start)}
	}
	return Token{Type: DATE, Literal: inner, Pos: Pos(start)}
}
