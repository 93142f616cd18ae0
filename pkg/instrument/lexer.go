package instrument

import (
	"fmt"

	"fortio.org/safecast"
)

// lexer splits JavaScript, TypeScript, and JSX source into tokens. It
// recognizes just enough of the grammar to find call sites, function
// bodies, and expression boundaries: literals, comments, regular
// expressions, template substitutions, and JSX elements are skipped
// correctly; everything else is a punctuator or an identifier.
type lexer struct {
	src   []byte
	off   uint32
	limit uint32
	jsx   bool
	toks  []token
	nl    bool
}

// syntaxError reports a lexing failure at a byte offset.
type syntaxError struct {
	Off uint32
	Msg string
}

func (e *syntaxError) Error() string {
	return fmt.Sprintf("offset %d: %s", e.Off, e.Msg)
}

// lex tokenizes src. The returned slice always ends with an EOF token.
func lex(src []byte, jsx bool) ([]token, error) {
	limit, err := safecast.Conv[uint32](len(src))
	if err != nil {
		return nil, fmt.Errorf("source too large: %w", err)
	}
	l := &lexer{src: src, limit: limit, jsx: jsx}
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		l.toks = append(l.toks, tok)
		if tok.kind == tokEOF {
			return l.toks, nil
		}
	}
}

func (l *lexer) eof() bool { return l.off >= l.limit }

func (l *lexer) peek() byte {
	if l.eof() {
		return 0
	}
	return l.src[l.off]
}

func (l *lexer) peekAt(n uint32) byte {
	if l.off+n >= l.limit {
		return 0
	}
	return l.src[l.off+n]
}

func (l *lexer) errorf(off uint32, format string, args ...any) error {
	return &syntaxError{Off: off, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) next() (token, error) {
	l.nl = false
	if err := l.skipTrivia(); err != nil {
		return token{}, err
	}
	start := l.off
	if l.eof() {
		return token{kind: tokEOF, start: start, end: start, nl: l.nl}, nil
	}

	nl := l.nl
	c := l.peek()
	var kind tokenKind
	var err error
	switch {
	case isIdentStart(c) || (c == '#' && isIdentStart(l.peekAt(1))):
		l.off++
		l.scanIdentRest()
		kind = tokIdent
	case isDigit(c) || (c == '.' && isDigit(l.peekAt(1))):
		l.scanNumber()
		kind = tokNumber
	case c == '"' || c == '\'':
		err = l.scanString(c)
		kind = tokString
	case c == '`':
		err = l.scanTemplate()
		kind = tokTemplate
	case c == '/' && l.exprAllowed():
		err = l.scanRegex()
		kind = tokRegex
	case c == '<' && l.jsx && l.exprAllowed() && l.looksLikeJSX():
		err = l.scanJSXElement()
		kind = tokJSX
	default:
		l.scanPunct()
		kind = tokPunct
	}
	if err != nil {
		return token{}, err
	}
	return token{
		kind:  kind,
		start: start,
		end:   l.off,
		text:  string(l.src[start:l.off]),
		nl:    nl,
	}, nil
}

func (l *lexer) skipTrivia() error {
	if l.off == 0 && l.peek() == '#' && l.peekAt(1) == '!' {
		for !l.eof() && l.peek() != '\n' {
			l.off++
		}
	}
	for !l.eof() {
		switch c := l.peek(); {
		case c == '\n':
			l.nl = true
			l.off++
		case c == ' ' || c == '\t' || c == '\r' || c == '\v' || c == '\f':
			l.off++
		case c == '/' && l.peekAt(1) == '/':
			for !l.eof() && l.peek() != '\n' {
				l.off++
			}
		case c == '/' && l.peekAt(1) == '*':
			start := l.off
			l.off += 2
			for {
				if l.eof() {
					return l.errorf(start, "unterminated comment")
				}
				if l.peek() == '*' && l.peekAt(1) == '/' {
					l.off += 2
					break
				}
				if l.peek() == '\n' {
					l.nl = true
				}
				l.off++
			}
		default:
			return nil
		}
	}
	return nil
}

// exprKeywords are identifiers after which an expression starts.
var exprKeywords = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"do": true, "else": true, "yield": true, "await": true,
}

// exprAllowed reports whether the next token starts an expression, which
// decides between division and regex, and between less-than and JSX.
func (l *lexer) exprAllowed() bool {
	if len(l.toks) == 0 {
		return true
	}
	prev := l.toks[len(l.toks)-1]
	switch prev.kind {
	case tokPunct:
		switch prev.text {
		case ")", "]", "++", "--":
			return false
		}
		return true
	case tokIdent:
		return exprKeywords[prev.text]
	}
	return false
}

func (l *lexer) scanIdentRest() {
	for !l.eof() && isIdentPart(l.peek()) {
		l.off++
	}
}

func (l *lexer) scanNumber() {
	hex := l.peek() == '0' && (l.peekAt(1) == 'x' || l.peekAt(1) == 'X')
	for !l.eof() {
		c := l.peek()
		switch {
		case isIdentPart(c) || c == '.':
			l.off++
		case (c == '+' || c == '-') && !hex && (l.src[l.off-1] == 'e' || l.src[l.off-1] == 'E'):
			l.off++
		default:
			return
		}
	}
}

func (l *lexer) scanString(quote byte) error {
	start := l.off
	l.off++
	for {
		if l.eof() {
			return l.errorf(start, "unterminated string")
		}
		switch c := l.peek(); c {
		case '\\':
			l.off += 2
		case '\n':
			return l.errorf(start, "unterminated string")
		case quote:
			l.off++
			return nil
		default:
			l.off++
		}
	}
}

func (l *lexer) scanTemplate() error {
	start := l.off
	l.off++
	for {
		if l.eof() {
			return l.errorf(start, "unterminated template literal")
		}
		switch c := l.peek(); {
		case c == '\\':
			l.off += 2
		case c == '`':
			l.off++
			return nil
		case c == '$' && l.peekAt(1) == '{':
			l.off += 2
			if err := l.skipBalanced(start); err != nil {
				return err
			}
		default:
			l.off++
		}
	}
}

// skipBalanced lexes and discards tokens up to and including the "}" that
// closes an already consumed "{" or "${".
func (l *lexer) skipBalanced(open uint32) error {
	mark := len(l.toks)
	l.toks = append(l.toks, token{kind: tokPunct, start: open, end: l.off, text: "{"})
	depth := 0
	for {
		tok, err := l.next()
		if err != nil {
			return err
		}
		switch {
		case tok.kind == tokEOF:
			return l.errorf(open, "unbalanced braces")
		case tok.punct("{"):
			depth++
		case tok.punct("}"):
			if depth == 0 {
				l.toks = l.toks[:mark]
				return nil
			}
			depth--
		}
		l.toks = append(l.toks, tok)
	}
}

func (l *lexer) scanRegex() error {
	start := l.off
	l.off++
	inClass := false
	for {
		if l.eof() || l.peek() == '\n' {
			return l.errorf(start, "unterminated regular expression")
		}
		switch c := l.peek(); {
		case c == '\\':
			l.off += 2
			continue
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		case c == '/' && !inClass:
			l.off++
			l.scanIdentRest()
			return nil
		}
		l.off++
	}
}

// puncts lists multi-byte punctuators, longest first. Sequences of ">" are
// left as single bytes so nested type arguments stay balanced.
var puncts = []string{
	"...", "===", "!==", "**=", "&&=", "||=", "??=",
	"=>", "==", "!=", "<=", "&&", "||", "??", "?.", "++", "--",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "**",
}

func (l *lexer) scanPunct() {
	rest := l.src[l.off:]
	for _, p := range puncts {
		if len(rest) >= len(p) && string(rest[:len(p)]) == p {
			if p == "?." && len(rest) > 2 && isDigit(rest[2]) {
				continue
			}
			l.off += uint32(len(p))
			return
		}
	}
	l.off++
}

// looksLikeJSX tells a JSX element from a TypeScript type parameter list
// such as "<T,>" or "<T extends X>" at an expression start.
func (l *lexer) looksLikeJSX() bool {
	c := l.peekAt(1)
	if c == '>' {
		return true
	}
	if !isIdentStart(c) {
		return false
	}
	i := l.off + 1
	for i < l.limit && (isIdentPart(l.src[i]) || l.src[i] == '.' || l.src[i] == ':' || l.src[i] == '-') {
		i++
	}
	for i < l.limit && isSpace(l.src[i]) {
		i++
	}
	if i < l.limit && l.src[i] == ',' {
		return false
	}
	rest := l.src[i:]
	if len(rest) > 7 && string(rest[:7]) == "extends" && !isIdentPart(rest[7]) {
		return false
	}
	return true
}

func (l *lexer) scanJSXElement() error {
	start := l.off
	l.off++
	if l.peek() == '>' {
		l.off++
		return l.scanJSXChildren(start)
	}
	for {
		for !l.eof() && isSpace(l.peek()) {
			l.off++
		}
		if l.eof() {
			return l.errorf(start, "unterminated JSX element")
		}
		switch c := l.peek(); {
		case c == '/' && l.peekAt(1) == '>':
			l.off += 2
			return nil
		case c == '>':
			l.off++
			return l.scanJSXChildren(start)
		case c == '{':
			open := l.off
			l.off++
			if err := l.skipBalanced(open); err != nil {
				return err
			}
		case c == '"' || c == '\'':
			l.off++
			for !l.eof() && l.peek() != c {
				l.off++
			}
			if l.eof() {
				return l.errorf(start, "unterminated JSX attribute")
			}
			l.off++
		case c == '<' && l.looksLikeJSX():
			if err := l.scanJSXElement(); err != nil {
				return err
			}
		default:
			l.off++
		}
	}
}

func (l *lexer) scanJSXChildren(start uint32) error {
	for {
		if l.eof() {
			return l.errorf(start, "unterminated JSX element")
		}
		switch l.peek() {
		case '{':
			open := l.off
			l.off++
			if err := l.skipBalanced(open); err != nil {
				return err
			}
		case '<':
			if l.peekAt(1) == '/' {
				for !l.eof() && l.peek() != '>' {
					l.off++
				}
				if l.eof() {
					return l.errorf(start, "unterminated JSX closing tag")
				}
				l.off++
				return nil
			}
			if err := l.scanJSXElement(); err != nil {
				return err
			}
		default:
			l.off++
		}
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' || c == '$' || c >= 0x80
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
