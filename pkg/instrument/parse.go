package instrument

import (
	"fmt"
)

// unit is a lexed source file with its bracket pairs resolved.
type unit struct {
	src   []byte
	toks  []token
	match []int
}

func parseUnit(src []byte, jsx bool) (*unit, error) {
	toks, err := lex(src, jsx)
	if err != nil {
		return nil, err
	}
	u := &unit{src: src, toks: toks, match: make([]int, len(toks))}
	var stack []int
	for i, t := range toks {
		u.match[i] = -1
		if t.kind != tokPunct {
			continue
		}
		switch t.text {
		case "(", "[", "{":
			stack = append(stack, i)
		case ")", "]", "}":
			if len(stack) == 0 {
				return nil, &syntaxError{Off: t.start, Msg: fmt.Sprintf("unexpected %q", t.text)}
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if closer[toks[open].text] != t.text {
				return nil, &syntaxError{Off: t.start, Msg: fmt.Sprintf("%q does not close %q", t.text, toks[open].text)}
			}
			u.match[open], u.match[i] = i, open
		}
	}
	if len(stack) > 0 {
		t := toks[stack[len(stack)-1]]
		return nil, &syntaxError{Off: t.start, Msg: fmt.Sprintf("unclosed %q", t.text)}
	}
	return u, nil
}

var closer = map[string]string{"(": ")", "[": "]", "{": "}"}

// tok returns the token at i, or the trailing EOF token when i is out of range.
func (u *unit) tok(i int) token {
	if i < 0 || i >= len(u.toks) {
		return u.toks[len(u.toks)-1]
	}
	return u.toks[i]
}

func (u *unit) isOpen(i int) bool {
	t := u.tok(i)
	return t.punct("(") || t.punct("[") || t.punct("{")
}

// topLevel calls fn with the index of every token outside brackets.
// Iteration stops when fn returns false.
func (u *unit) topLevel(fn func(i int) bool) {
	for i := 0; i < len(u.toks) && u.toks[i].kind != tokEOF; i++ {
		if !fn(i) {
			return
		}
		if u.isOpen(i) {
			i = u.match[i]
		}
	}
}

// =============================================================================
// Lazy-load call sites
// =============================================================================

// lazyImport is a lazy-load declaration such as lazy(() => import("./Card")).
type lazyImport struct {
	spec   string
	callee string
	// at is the index of the specifier token.
	at int
}

var notCallee = map[string]bool{
	"import": true, "if": true, "for": true, "while": true, "switch": true,
	"catch": true, "function": true, "return": true, "typeof": true,
	"await": true, "new": true, "super": true,
}

// lazyImports finds every call whose sole argument is an inline dynamic
// import of a string literal.
func (u *unit) lazyImports() []lazyImport {
	var out []lazyImport
	for i := 0; i+1 < len(u.toks); i++ {
		t := u.toks[i]
		if t.kind != tokIdent || notCallee[t.text] || !u.toks[i+1].punct("(") {
			continue
		}
		if u.tok(i - 1).ident("function") {
			continue
		}
		open := i + 1
		spec, at, ok := u.thunk(open+1, u.match[open], true)
		if ok {
			out = append(out, lazyImport{spec: spec, callee: t.text, at: at})
		}
	}
	return out
}

// thunk matches tokens [from, to) against the accepted lazy argument
// shapes, optionally wrapped in one call such as slow(() => import("x")).
func (u *unit) thunk(from, to int, allowWrap bool) (string, int, bool) {
	if to > from && u.tok(to-1).punct(",") {
		to--
	}
	if from >= to {
		return "", 0, false
	}
	if spec, at, ok := u.importExpr(from, to); ok {
		return spec, at, true
	}

	i := from
	if u.tok(i).ident("async") {
		i++
	}
	switch {
	case u.tok(i).punct("(") && u.match[i] == i+1 && u.tok(i+2).punct("=>"):
		return u.thunkBody(i+3, to)
	case u.tok(i).ident("function") && u.tok(i+1).punct("(") && u.tok(i+2).punct(")") && u.tok(i+3).punct("{"):
		if u.match[i+3] != to-1 {
			return "", 0, false
		}
		return u.returnImport(i+4, to-1)
	}

	if allowWrap {
		j := from
		for u.tok(j).kind == tokIdent && u.tok(j+1).punct(".") {
			j += 2
		}
		if u.tok(j).kind == tokIdent && !notCallee[u.tok(j).text] && u.tok(j+1).punct("(") && u.match[j+1] == to-1 {
			return u.thunk(j+2, to-1, false)
		}
	}
	return "", 0, false
}

// thunkBody matches an arrow body: an import expression, a parenthesized
// one, or a block returning one.
func (u *unit) thunkBody(from, to int) (string, int, bool) {
	if u.tok(from).punct("{") && u.match[from] == to-1 {
		return u.returnImport(from+1, to-1)
	}
	if u.tok(from).punct("(") && u.match[from] == to-1 {
		return u.importExpr(from+1, to-1)
	}
	return u.importExpr(from, to)
}

// returnImport matches "return <import>;" filling [from, to).
func (u *unit) returnImport(from, to int) (string, int, bool) {
	if !u.tok(from).ident("return") {
		return "", 0, false
	}
	if u.tok(to - 1).punct(";") {
		to--
	}
	return u.importExpr(from+1, to)
}

// importExpr matches import("spec") filling [from, to) exactly, with an
// optional trailing .then(...) that picks a named export.
func (u *unit) importExpr(from, to int) (string, int, bool) {
	if !u.tok(from).ident("import") || !u.tok(from+1).punct("(") {
		return "", 0, false
	}
	closeIdx := u.match[from+1]
	if closeIdx != from+3 {
		return "", 0, false
	}
	spec, ok := u.tok(from + 2).stringValue()
	if !ok {
		return "", 0, false
	}
	end := closeIdx + 1
	if end < to && u.tok(end).punct(".") && u.tok(end+1).ident("then") && u.tok(end+2).punct("(") {
		end = u.match[end+2] + 1
	}
	if end != to {
		return "", 0, false
	}
	return spec, from + 2, true
}

// =============================================================================
// Default export shapes
// =============================================================================

type shapeKind int

const (
	shapeMissing shapeKind = iota
	shapeBlock
	shapeConcise
	shapeUnsupported
)

// shape locates the rendering function exported as default.
type shape struct {
	kind shapeKind
	// body is the index of the "{" opening a block body.
	body int
	// [exprStart, exprEnd) is the expression of a concise arrow body.
	exprStart, exprEnd int
	// binding names the identifier the default export refers to, if any.
	binding string
	// desc describes an unsupported shape for diagnostics.
	desc string
	at   int
}

func (u *unit) defaultExport() shape {
	found := shape{kind: shapeMissing}
	u.topLevel(func(i int) bool {
		if !u.toks[i].ident("export") {
			return true
		}
		switch {
		case u.tok(i + 1).ident("default"):
			found = u.exportedValue(i + 2)
			return false
		case u.tok(i + 1).punct("{"):
			if name, ok := u.defaultSpecifier(i+1, u.match[i+1]); ok {
				found = u.bindingShape(name, i)
				return false
			}
		}
		return true
	})
	return found
}

func (u *unit) exportedValue(j int) shape {
	if s, ok := u.functionAt(j); ok {
		return s
	}
	if s, ok := u.arrowAt(j); ok {
		return s
	}
	t := u.tok(j)
	if t.kind == tokIdent && !t.ident("class") && !u.continuesExpr(j+1) {
		return u.bindingShape(t.text, j)
	}
	return shape{kind: shapeUnsupported, desc: describe(u, j), at: j}
}

// continuesExpr reports whether token i extends the expression before it,
// as in "export default memo(Card)" or "export default a.b".
func (u *unit) continuesExpr(i int) bool {
	t := u.tok(i)
	if t.kind == tokEOF || t.punct(";") || t.nl {
		return false
	}
	return t.kind == tokPunct
}

// defaultSpecifier finds "X as default" inside export braces.
func (u *unit) defaultSpecifier(open, closeIdx int) (string, bool) {
	for k := open + 1; k+2 < closeIdx; k++ {
		if u.tok(k).kind == tokIdent && u.tok(k+1).ident("as") && u.tok(k+2).ident("default") {
			return u.tok(k).text, true
		}
	}
	return "", false
}

// bindingShape resolves a top-level binding to the function it holds.
// Only one level of variable initializer is unwrapped.
func (u *unit) bindingShape(name string, at int) shape {
	res := shape{kind: shapeUnsupported, binding: name, desc: fmt.Sprintf("no function binding for %s", name), at: at}
	u.topLevel(func(i int) bool {
		t := u.toks[i]
		switch {
		case t.ident("function") && u.tok(i+1).ident(name),
			t.ident("function") && u.tok(i+1).punct("*") && u.tok(i+2).ident(name):
			start := i
			if u.tok(i - 1).ident("async") {
				start = i - 1
			}
			if s, ok := u.functionAt(start); ok {
				res = s
			}
			res.binding = name
			return false
		case (t.ident("const") || t.ident("let") || t.ident("var")) && u.tok(i+1).ident(name):
			init, ok := u.initializer(i + 2)
			if !ok {
				res.desc = fmt.Sprintf("%s has no initializer", name)
				return false
			}
			if s, ok := u.functionAt(init); ok {
				res = s
			} else if s, ok := u.arrowAt(init); ok {
				res = s
			} else {
				res.desc = fmt.Sprintf("%s is initialized with %s", name, describe(u, init))
				res.at = init
			}
			res.binding = name
			return false
		case t.ident("class") && u.tok(i+1).ident(name):
			res.desc = fmt.Sprintf("%s is a class", name)
			res.at = i
			return false
		}
		return true
	})
	return res
}

// initializer returns the index after "=" in a declarator, skipping a
// type annotation.
func (u *unit) initializer(i int) (int, bool) {
	if u.tok(i).punct("=") {
		return i + 1, true
	}
	if !u.tok(i).punct(":") {
		return 0, false
	}
	for k := i + 1; k < len(u.toks); k++ {
		t := u.toks[k]
		switch {
		case t.kind == tokEOF, t.punct(";"), t.punct(","):
			return 0, false
		case t.punct("="):
			return k + 1, true
		case u.isOpen(k):
			k = u.match[k]
		}
	}
	return 0, false
}

// functionAt matches [async] function [*] [name] [<T>] (params) [: T] { body }.
func (u *unit) functionAt(j int) (shape, bool) {
	i := j
	if u.tok(i).ident("async") {
		i++
	}
	if !u.tok(i).ident("function") {
		return shape{}, false
	}
	i++
	if u.tok(i).punct("*") {
		i++
	}
	if u.tok(i).kind == tokIdent {
		i++
	}
	i = u.skipTypeParams(i)
	if !u.tok(i).punct("(") {
		return shape{}, false
	}
	body, ok := u.blockAfterParams(u.match[i] + 1)
	if !ok {
		return shape{}, false
	}
	return shape{kind: shapeBlock, body: body, at: j}, true
}

// arrowAt matches [async] [<T>] (params) [: T] => body, or x => body.
func (u *unit) arrowAt(j int) (shape, bool) {
	i := j
	if u.tok(i).ident("async") && !u.tok(i+1).nl && !u.tok(i+1).punct("=>") {
		i++
	}
	var arrow int
	switch {
	case u.tok(i).kind == tokIdent && u.tok(i+1).punct("=>"):
		arrow = i + 1
	default:
		i = u.skipTypeParams(i)
		if !u.tok(i).punct("(") {
			return shape{}, false
		}
		var ok bool
		if arrow, ok = u.arrowAfterParams(u.match[i] + 1); !ok {
			return shape{}, false
		}
	}
	if u.tok(arrow + 1).punct("{") {
		return shape{kind: shapeBlock, body: arrow + 1, at: j}, true
	}
	start := arrow + 1
	end := u.exprEnd(start)
	if end == start {
		return shape{}, false
	}
	return shape{kind: shapeConcise, exprStart: start, exprEnd: end, at: j}, true
}

// skipTypeParams skips a "<...>" type parameter list starting at i.
func (u *unit) skipTypeParams(i int) int {
	if !u.tok(i).punct("<") {
		return i
	}
	depth := 0
	for k := i; k < len(u.toks); k++ {
		t := u.toks[k]
		switch {
		case t.kind == tokEOF:
			return k
		case t.punct("<"):
			depth++
		case t.punct(">"):
			depth--
			if depth == 0 {
				return k + 1
			}
		case u.isOpen(k):
			k = u.match[k]
		}
	}
	return i
}

// blockAfterParams finds the "{" of a function body after the parameter
// list, skipping a return type annotation which may itself contain braces.
func (u *unit) blockAfterParams(i int) (int, bool) {
	if u.tok(i).punct("{") {
		return i, true
	}
	if !u.tok(i).punct(":") {
		return 0, false
	}
	angle := 0
	for k := i + 1; k < len(u.toks); k++ {
		t := u.toks[k]
		switch {
		case t.kind == tokEOF, t.punct(";"), t.punct("="):
			return 0, false
		case t.punct("<"):
			angle++
		case t.punct(">"):
			angle--
		case t.punct("{"):
			if angle > 0 || k == i+1 || typeOperator(u.toks[k-1]) {
				k = u.match[k]
				continue
			}
			return k, true
		case u.isOpen(k):
			k = u.match[k]
		}
	}
	return 0, false
}

// arrowAfterParams finds "=>" after an arrow's parameter list, skipping a
// return type annotation.
func (u *unit) arrowAfterParams(i int) (int, bool) {
	if u.tok(i).punct("=>") {
		return i, true
	}
	if !u.tok(i).punct(":") {
		return 0, false
	}
	for k := i + 1; k < len(u.toks); k++ {
		t := u.toks[k]
		switch {
		case t.kind == tokEOF, t.punct(";"), t.punct("="):
			return 0, false
		case t.punct("=>"):
			return k, true
		case u.isOpen(k):
			k = u.match[k]
		}
	}
	return 0, false
}

func typeOperator(t token) bool {
	if t.kind != tokPunct {
		return false
	}
	switch t.text {
	case ":", "|", "&", ",", "<", "=>":
		return true
	}
	return false
}

var statementStart = map[string]bool{
	"export": true, "import": true, "const": true, "let": true, "var": true,
	"function": true, "class": true, "if": true, "for": true, "while": true,
	"return": true, "switch": true, "try": true, "throw": true, "do": true,
	"type": true, "interface": true, "enum": true, "declare": true,
}

// exprEnd returns the index of the first token after the expression
// starting at i. The expression ends at ";", ",", an unmatched closing
// bracket, end of file, or a line break followed by a new statement.
func (u *unit) exprEnd(i int) int {
	for k := i; k < len(u.toks); k++ {
		t := u.toks[k]
		switch {
		case t.kind == tokEOF:
			return k
		case k > i && t.nl && t.kind == tokIdent && statementStart[t.text] && endsExpr(u.toks[k-1]):
			return k
		case t.punct(";"), t.punct(","), t.punct(")"), t.punct("]"), t.punct("}"):
			return k
		case u.isOpen(k):
			k = u.match[k]
		}
	}
	return len(u.toks) - 1
}

func endsExpr(t token) bool {
	switch t.kind {
	case tokIdent, tokNumber, tokString, tokTemplate, tokRegex, tokJSX:
		return true
	case tokPunct:
		return t.text == ")" || t.text == "]" || t.text == "}"
	}
	return false
}

func describe(u *unit, i int) string {
	t := u.tok(i)
	switch {
	case t.kind == tokEOF:
		return "nothing"
	case t.ident("class"):
		return "a class"
	case t.kind == tokIdent && u.tok(i+1).punct("("):
		return "a call to " + t.text
	case t.kind == tokIdent:
		return "expression " + t.text
	}
	return "a " + t.kind.String() + " expression"
}

// =============================================================================
// Module header
// =============================================================================

// imports reports whether the unit imports name from source.
func (u *unit) imports(source, name string) bool {
	found := false
	u.topLevel(func(i int) bool {
		t := u.toks[i]
		if !t.ident("import") || u.tok(i+1).punct("(") || u.tok(i+1).punct(".") {
			return true
		}
		k := i + 1
		hasName := false
		for ; k < len(u.toks); k++ {
			tk := u.toks[k]
			if tk.kind == tokString || tk.kind == tokEOF || tk.punct(";") {
				break
			}
			if tk.punct("{") {
				for m := k + 1; m < u.match[k]; m++ {
					if u.toks[m].ident(name) && !u.tok(m+1).ident("as") {
						hasName = true
					}
				}
				k = u.match[k]
			}
		}
		if v, ok := u.tok(k).stringValue(); ok && v == source && hasName {
			found = true
			return false
		}
		return true
	})
	return found
}

// headerOffset returns the byte offset where an import can be inserted
// without moving the directive prologue or shebang. open is true when the
// last directive has no semicolon, so inserted text must terminate it.
func (u *unit) headerOffset() (off uint32, open bool) {
	if len(u.src) > 1 && u.src[0] == '#' && u.src[1] == '!' {
		for off < uint32(len(u.src)) && u.src[off] != '\n' {
			off++
		}
		if off < uint32(len(u.src)) {
			off++
		}
	}
	for i := 0; u.tok(i).kind == tokString; {
		next := u.tok(i + 1)
		switch {
		case next.punct(";"):
			off, open = next.end, false
			i += 2
		case next.nl || next.kind == tokEOF:
			off, open = u.tok(i).end, true
			i++
		default:
			return off, open
		}
	}
	return off, open
}

// hookCallAt reports whether tokens from i form hook("id").
func (u *unit) hookCallAt(i int, hook, id string) bool {
	if !u.tok(i).ident(hook) || !u.tok(i+1).punct("(") {
		return false
	}
	v, ok := u.tok(i + 2).stringValue()
	return ok && v == id && u.tok(i+3).punct(")")
}
