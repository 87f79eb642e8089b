package fhirpath

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind uint8

const (
	tkEOF tokenKind = iota
	tkIdent
	tkDelimIdent // `backtick` or "double quoted" identifier
	tkString     // 'single quoted'
	tkNumber
	tkLongNumber // 123L
	tkDateTime   // @2015-01-01T..., @2015-01-01, @T12:30
	tkDot
	tkComma
	tkColon
	tkLParen
	tkRParen
	tkLBracket
	tkRBracket
	tkLBrace
	tkRBrace
	tkPlus
	tkMinus
	tkStar
	tkSlash
	tkAmp
	tkPipe
	tkEq
	tkNotEq
	tkEquiv
	tkNotEquiv
	tkLess
	tkLessEq
	tkGreater
	tkGreaterEq
	tkPercent
	tkError
)

var keywords = map[string]struct{}{
	"and": {}, "or": {}, "xor": {}, "implies": {},
	"div": {}, "mod": {}, "in": {}, "contains": {},
	"is": {}, "as": {}, "not": {},
	"true": {}, "false": {}, "null": {},
	"where": {}, "return": {}, "sort": {}, "by": {},
	"asc": {}, "ascending": {}, "desc": {}, "descending": {},
	"with": {}, "without": {}, "such": {}, "that": {},
	"exists": {},
}

// calendar duration units accepted after a number literal
var durationUnits = map[string]string{
	"year": "year", "years": "year",
	"month": "month", "months": "month",
	"week": "week", "weeks": "week",
	"day": "day", "days": "day",
	"hour": "hour", "hours": "hour",
	"minute": "minute", "minutes": "minute",
	"second": "second", "seconds": "second",
	"millisecond": "millisecond", "milliseconds": "millisecond",
}

type token struct {
	kind tokenKind
	text string // identifier name, unescaped string value, or number text
	line int
	col  int
}

type lexer struct {
	src    string
	cursor int
	line   int
	col    int
	tok    token
	errs   []error
}

func newLexer(src string) *lexer {
	l := &lexer{src: src, line: 1, col: 1}
	l.next()
	return l
}

func (l *lexer) errorf(f string, args ...any) {
	l.errs = append(l.errs, SyntaxError{
		line:   l.line,
		column: l.col,
		msg:    fmt.Sprintf(f, args...),
	})
}

func (l *lexer) peekRune() rune {
	if l.cursor >= len(l.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.cursor:])
	return r
}

func (l *lexer) peekRuneAt(off int) rune {
	if l.cursor+off >= len(l.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.cursor+off:])
	return r
}

func (l *lexer) advance(n int) {
	for i := 0; i < n && l.cursor < len(l.src); i++ {
		if l.src[l.cursor] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.cursor++
	}
}

func (l *lexer) skipSpaceAndComments() {
	for l.cursor < len(l.src) {
		r := l.peekRune()
		switch {
		case unicode.IsSpace(r):
			l.advance(1)
		case r == '/' && l.peekRuneAt(1) == '/':
			for l.cursor < len(l.src) && l.src[l.cursor] != '\n' {
				l.advance(1)
			}
		case r == '/' && l.peekRuneAt(1) == '*':
			l.advance(2)
			for l.cursor < len(l.src) {
				if l.src[l.cursor] == '*' && l.peekRuneAt(1) == '/' {
					l.advance(2)
					break
				}
				l.advance(1)
			}
		default:
			return
		}
	}
}

func (l *lexer) yield(kind tokenKind, text string, size int) {
	l.tok = token{kind: kind, text: text, line: l.line, col: l.col}
	l.advance(size)
}

// next scans the following token into l.tok.
func (l *lexer) next() {
	l.skipSpaceAndComments()

	if l.cursor >= len(l.src) {
		l.tok = token{kind: tkEOF, line: l.line, col: l.col}
		return
	}

	r := l.peekRune()
	switch {
	case r == '.':
		l.yield(tkDot, ".", 1)
	case r == ',':
		l.yield(tkComma, ",", 1)
	case r == ':':
		l.yield(tkColon, ":", 1)
	case r == '(':
		l.yield(tkLParen, "(", 1)
	case r == ')':
		l.yield(tkRParen, ")", 1)
	case r == '[':
		l.yield(tkLBracket, "[", 1)
	case r == ']':
		l.yield(tkRBracket, "]", 1)
	case r == '{':
		l.yield(tkLBrace, "{", 1)
	case r == '}':
		l.yield(tkRBrace, "}", 1)
	case r == '+':
		l.yield(tkPlus, "+", 1)
	case r == '-':
		l.yield(tkMinus, "-", 1)
	case r == '*':
		l.yield(tkStar, "*", 1)
	case r == '/':
		l.yield(tkSlash, "/", 1)
	case r == '&':
		l.yield(tkAmp, "&", 1)
	case r == '|':
		l.yield(tkPipe, "|", 1)
	case r == '%':
		l.yield(tkPercent, "%", 1)
	case r == '=':
		l.yield(tkEq, "=", 1)
	case r == '~':
		l.yield(tkEquiv, "~", 1)
	case r == '!':
		switch l.peekRuneAt(1) {
		case '=':
			l.yield(tkNotEq, "!=", 2)
		case '~':
			l.yield(tkNotEquiv, "!~", 2)
		default:
			l.errorf("unexpected character %q", "!")
			l.yield(tkError, "!", 1)
		}
	case r == '<':
		if l.peekRuneAt(1) == '=' {
			l.yield(tkLessEq, "<=", 2)
		} else if l.peekRuneAt(1) == '>' {
			// CQL spells not-equal <>
			l.yield(tkNotEq, "!=", 2)
		} else {
			l.yield(tkLess, "<", 1)
		}
	case r == '>':
		if l.peekRuneAt(1) == '=' {
			l.yield(tkGreaterEq, ">=", 2)
		} else {
			l.yield(tkGreater, ">", 1)
		}
	case r == '\'':
		l.scanString()
	case r == '`' || r == '"':
		l.scanDelimitedIdent(r)
	case r == '@':
		l.scanTemporal()
	case unicode.IsDigit(r):
		l.scanNumber()
	case r == '_' || r == '$' || unicode.IsLetter(r):
		// $ starts the implicit iteration variables $this and $total
		l.scanIdent()
	default:
		l.errorf("unexpected character %q", string(r))
		l.yield(tkError, string(r), utf8.RuneLen(r))
	}
}

func (l *lexer) scanIdent() {
	start := l.cursor
	line, col := l.line, l.col
	for l.cursor < len(l.src) {
		r := l.peekRune()
		if r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			l.advance(1)
		} else {
			break
		}
	}
	text := l.src[start:l.cursor]
	l.tok = token{kind: tkIdent, text: text, line: line, col: col}
}

func (l *lexer) scanDelimitedIdent(quote rune) {
	line, col := l.line, l.col
	l.advance(1)
	var b strings.Builder
	for l.cursor < len(l.src) {
		r := l.peekRune()
		if r == quote {
			l.advance(1)
			l.tok = token{kind: tkDelimIdent, text: b.String(), line: line, col: col}
			return
		}
		if r == '\\' {
			b.WriteRune(l.unescapeAt())
			continue
		}
		b.WriteRune(r)
		l.advance(utf8.RuneLen(r))
	}
	l.errorf("unterminated identifier")
	l.tok = token{kind: tkError, text: b.String(), line: line, col: col}
}

func (l *lexer) scanString() {
	line, col := l.line, l.col
	l.advance(1)
	var b strings.Builder
	for l.cursor < len(l.src) {
		r := l.peekRune()
		if r == '\'' {
			l.advance(1)
			l.tok = token{kind: tkString, text: b.String(), line: line, col: col}
			return
		}
		if r == '\\' {
			b.WriteRune(l.unescapeAt())
			continue
		}
		b.WriteRune(r)
		l.advance(utf8.RuneLen(r))
	}
	l.errorf("unterminated string literal")
	l.tok = token{kind: tkError, text: b.String(), line: line, col: col}
}

// unescapeAt consumes the escape sequence at the cursor (which points at the
// backslash) and returns the decoded rune.
func (l *lexer) unescapeAt() rune {
	l.advance(1)
	r := l.peekRune()
	l.advance(utf8.RuneLen(r))
	switch r {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'f':
		return '\f'
	case '\\', '\'', '"', '`', '/':
		return r
	default:
		l.errorf("invalid escape sequence \\%s", string(r))
		return r
	}
}

func (l *lexer) scanNumber() {
	start := l.cursor
	line, col := l.line, l.col
	for l.cursor < len(l.src) && unicode.IsDigit(l.peekRune()) {
		l.advance(1)
	}
	if l.peekRune() == '.' && unicode.IsDigit(l.peekRuneAt(1)) {
		l.advance(1)
		for l.cursor < len(l.src) && unicode.IsDigit(l.peekRune()) {
			l.advance(1)
		}
	}
	if l.peekRune() == 'L' {
		text := l.src[start:l.cursor]
		l.advance(1)
		l.tok = token{kind: tkLongNumber, text: text, line: line, col: col}
		return
	}
	l.tok = token{kind: tkNumber, text: l.src[start:l.cursor], line: line, col: col}
}

// scanTemporal scans @2015-02-04T14:34:28Z style date/time literals. The
// token text keeps everything after the @; the parser splits date from time.
func (l *lexer) scanTemporal() {
	line, col := l.line, l.col
	l.advance(1)
	start := l.cursor
	for l.cursor < len(l.src) {
		r := l.peekRune()
		if unicode.IsDigit(r) || r == '-' || r == ':' || r == 'T' || r == 'Z' || r == '.' || r == '+' {
			l.advance(1)
		} else {
			break
		}
	}
	text := l.src[start:l.cursor]
	if text == "" {
		l.errorf("empty date/time literal")
		l.tok = token{kind: tkError, text: "@", line: line, col: col}
		return
	}
	l.tok = token{kind: tkDateTime, text: text, line: line, col: col}
}
