package instrument

import (
	"strings"
	"testing"
)

func kinds(toks []token) string {
	parts := make([]string, 0, len(toks))
	for _, t := range toks {
		if t.kind == tokEOF {
			break
		}
		parts = append(parts, t.kind.String()+":"+t.text)
	}
	return strings.Join(parts, " ")
}

func TestLex(t *testing.T) {
	tests := []struct {
		name string
		src  string
		jsx  bool
		want string
	}{
		{
			name: "call",
			src:  `lazy(() => import("./Card"))`,
			want: `Ident:lazy Punct:( Punct:( Punct:) Punct:=> Ident:import Punct:( String:"./Card" Punct:) Punct:)`,
		},
		{
			name: "comments",
			src:  "a // import('x')\n/* import('y') */ b",
			want: "Ident:a Ident:b",
		},
		{
			name: "division",
			src:  "x = a / b / c",
			want: "Ident:x Punct:= Ident:a Punct:/ Ident:b Punct:/ Ident:c",
		},
		{
			name: "regex",
			src:  `r = /import\("[a/]"\)/g`,
			want: `Ident:r Punct:= Regex:/import\("[a/]"\)/g`,
		},
		{
			name: "regex after return",
			src:  "return /x/.test(s)",
			want: "Ident:return Regex:/x/ Punct:. Ident:test Punct:( Ident:s Punct:)",
		},
		{
			name: "template with substitution",
			src:  "t = `a${ {b: `c${d}`}.b }e`",
			want: "Ident:t Punct:= Template:`a${ {b: `c${d}`}.b }e`",
		},
		{
			name: "strings with escapes",
			src:  `'it\'s' "q\"q"`,
			want: `String:'it\'s' String:"q\"q"`,
		},
		{
			name: "numbers",
			src:  "1e-3 0xFF .5 1_000n",
			want: "Number:1e-3 Number:0xFF Number:.5 Number:1_000n",
		},
		{
			name: "optional chaining",
			src:  "a?.b ?? c?.5:1",
			want: "Ident:a Punct:?. Ident:b Punct:?? Ident:c Punct:? Number:.5 Punct:: Number:1",
		},
		{
			name: "jsx element",
			src:  `return <div className="x">{items.map(i => <li key={i}>{i}</li>)}</div>;`,
			jsx:  true,
			want: `Ident:return JSX:<div className="x">{items.map(i => <li key={i}>{i}</li>)}</div> Punct:;`,
		},
		{
			name: "jsx fragment",
			src:  "x = <>a</>",
			jsx:  true,
			want: "Ident:x Punct:= JSX:<>a</>",
		},
		{
			name: "less than is not jsx",
			src:  "a < b",
			jsx:  true,
			want: "Ident:a Punct:< Ident:b",
		},
		{
			name: "tsx generic arrow",
			src:  "f = <T,>(x: T) => x",
			jsx:  true,
			want: "Ident:f Punct:= Punct:< Ident:T Punct:, Punct:> Punct:( Ident:x Punct:: Ident:T Punct:) Punct:=> Ident:x",
		},
		{
			name: "type assertion without jsx",
			src:  "y = <Foo>x",
			want: "Ident:y Punct:= Punct:< Ident:Foo Punct:> Ident:x",
		},
		{
			name: "shebang",
			src:  "#!/usr/bin/env node\nrun()",
			want: "Ident:run Punct:( Punct:)",
		},
		{
			name: "private name",
			src:  "this.#count++",
			want: "Ident:this Punct:. Ident:#count Punct:++",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := lex([]byte(tt.src), tt.jsx)
			if err != nil {
				t.Fatalf("lex: %v", err)
			}
			if got := kinds(toks); got != tt.want {
				t.Errorf("tokens:\n got %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestLexNewlineFlag(t *testing.T) {
	toks, err := lex([]byte("a\n/* x\n */ b c"), false)
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].nl || !toks[1].nl || toks[2].nl {
		t.Errorf("nl flags = %v %v %v, want false true false", toks[0].nl, toks[1].nl, toks[2].nl)
	}
	if toks[3].kind != tokEOF {
		t.Errorf("last token = %v, want EOF", toks[3].kind)
	}
}

func TestLexErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		jsx  bool
	}{
		{"unterminated string", `"abc`, false},
		{"newline in string", "'a\nb'", false},
		{"unterminated template", "`abc${x}", false},
		{"unterminated comment", "/* abc", false},
		{"unterminated regex", "x = /abc\n", false},
		{"unterminated jsx", "x = <div>", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := lex([]byte(tt.src), tt.jsx); err == nil {
				t.Error("expected error")
			}
		})
	}
}
