package instrument

import (
	"fmt"
	"strings"
)

// tokenKind classifies lexed source tokens.
type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokTemplate
	tokNumber
	tokRegex
	tokPunct
	tokJSX
)

var tokenKindNames = [...]string{
	tokEOF:      "EOF",
	tokIdent:    "Ident",
	tokString:   "String",
	tokTemplate: "Template",
	tokNumber:   "Number",
	tokRegex:    "Regex",
	tokPunct:    "Punct",
	tokJSX:      "JSX",
}

func (k tokenKind) String() string {
	if int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return fmt.Sprintf("tokenKind(%d)", k)
}

// token is a lexeme with its byte span. JSX elements are a single opaque
// token spanning the whole element.
type token struct {
	kind  tokenKind
	start uint32
	end   uint32
	text  string
	// nl is set when a line terminator precedes the token.
	nl bool
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

func (t token) punct(text string) bool { return t.is(tokPunct, text) }

func (t token) ident(text string) bool { return t.is(tokIdent, text) }

// stringValue returns the contents of a string literal, or of a template
// literal without substitutions.
func (t token) stringValue() (string, bool) {
	switch t.kind {
	case tokString:
		return unquote(t.text[1 : len(t.text)-1]), true
	case tokTemplate:
		body := t.text[1 : len(t.text)-1]
		for i := 0; i+1 < len(body); i++ {
			if body[i] == '\\' {
				i++
				continue
			}
			if body[i] == '$' && body[i+1] == '{' {
				return "", false
			}
		}
		return unquote(body), true
	}
	return "", false
}

// unquote resolves the simple escapes that can appear in module specifiers.
func unquote(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b = append(b, c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b = append(b, '\n')
		case 't':
			b = append(b, '\t')
		case '\n':
		default:
			b = append(b, s[i])
		}
	}
	return string(b)
}
