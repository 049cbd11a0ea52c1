package compiler

import (
	"strings"

	"github.com/jobala/petrosql/util"
)

func NewLexer(query string) *Lexer {
	return &Lexer{query: query, prev: EOI}
}

// Next scans the following token. Once the input is exhausted every call
// returns EOI.
func (l *Lexer) Next() (Token, error) {
	l.skipSpace()
	if l.offset >= len(l.query) {
		return l.emit(Token{Type: EOI})
	}

	ch := l.query[l.offset]
	switch {
	case ch == '"' || ch == '\'':
		return l.scanString(ch)
	case isDigit(ch):
		return l.scanInt(l.offset)
	case ch == '-' && l.negativeLiteral():
		return l.scanInt(l.offset + 1)
	case isIdentStart(ch):
		return l.scanWord()
	}

	l.offset++
	switch ch {
	case '(':
		return l.emit(Token{Type: OPEN_PARENTHESIS})
	case ')':
		return l.emit(Token{Type: CLOSE_PARENTHESIS})
	case ';':
		return l.emit(Token{Type: SEMI_COLON})
	case ',':
		return l.emit(Token{Type: COMMA})
	case '+':
		return l.emit(Token{Type: PLUS})
	case '-':
		return l.emit(Token{Type: MINUS})
	case '*':
		return l.emit(Token{Type: ASTERISK})
	case '/':
		return l.emit(Token{Type: FORWARDS_SLASH})
	case '%':
		return l.emit(Token{Type: MODULO})
	case '<':
		return l.emit(Token{Type: ANGULAR_OPEN})
	case '>':
		return l.emit(Token{Type: ANGULAR_CLOSE})
	case '=':
		if l.accept('=') {
			return l.emit(Token{Type: DOES_EQUAL})
		}
		return l.emit(Token{Type: EQUALS})
	case '!':
		if l.accept('=') {
			return l.emit(Token{Type: DOES_NOT_EQUAL})
		}
		return l.emit(Token{Type: BANG})
	}

	return Token{}, util.NewSyntaxError(string(ch))
}

func (l *Lexer) scanString(quote byte) (Token, error) {
	start := l.offset + 1
	end := strings.IndexByte(l.query[start:], quote)
	if end < 0 {
		return Token{}, util.NewSyntaxError(l.query[l.offset:], "closing "+string(quote))
	}

	l.offset = start + end + 1
	return l.emit(Token{Type: STRING, Data: l.query[start : start+end]})
}

// scanInt reads the digits starting at from. A '-' right before from is
// part of the literal.
func (l *Lexer) scanInt(from int) (Token, error) {
	end := from
	for end < len(l.query) && isDigit(l.query[end]) {
		end++
	}

	data := l.query[l.offset:end]
	l.offset = end
	return l.emit(Token{Type: INT, Data: data})
}

func (l *Lexer) scanWord() (Token, error) {
	start := l.offset
	for l.offset < len(l.query) && isIdentPart(l.query[l.offset]) {
		l.offset++
	}

	word := l.query[start:l.offset]
	upper := strings.ToUpper(word)
	if typ, ok := keywords[upper]; ok {
		return l.emit(Token{Type: typ, Data: upper})
	}

	switch upper {
	case "TRUE":
		return l.emit(Token{Type: INT, Data: "1"})
	case "FALSE":
		return l.emit(Token{Type: INT, Data: "0"})
	}

	return l.emit(Token{Type: ID, Data: word})
}

// negativeLiteral reports whether the '-' at the cursor starts a negative
// number rather than a subtraction. It does when digits follow and the
// previous token cannot end an operand.
func (l *Lexer) negativeLiteral() bool {
	if l.offset+1 >= len(l.query) || !isDigit(l.query[l.offset+1]) {
		return false
	}

	switch l.prev {
	case INT, STRING, ID, CLOSE_PARENTHESIS:
		return false
	}
	return true
}

func (l *Lexer) accept(ch byte) bool {
	if l.offset < len(l.query) && l.query[l.offset] == ch {
		l.offset++
		return true
	}
	return false
}

func (l *Lexer) skipSpace() {
	for l.offset < len(l.query) {
		switch l.query[l.offset] {
		case ' ', '\t', '\n', '\r':
			l.offset++
		default:
			return
		}
	}
}

func (l *Lexer) emit(token Token) (Token, error) {
	l.prev = token.Type
	return token, nil
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '.'
}

type Lexer struct {
	query  string
	offset int
	prev   TokenType
}
