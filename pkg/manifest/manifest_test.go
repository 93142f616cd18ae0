package manifest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	perr "github.com/matzehuels/ssrpreload/pkg/errors"
)

const viteManifest = `{
  "index.html": {
    "file": "assets/index-4f2a.js",
    "src": "index.html",
    "isEntry": true,
    "imports": ["_react-91bc.js"],
    "dynamicImports": ["src/Card.tsx"],
    "css": ["assets/index-0d11.css"]
  },
  "_react-91bc.js": {
    "file": "assets/react-91bc.js"
  },
  "src/Card.tsx": {
    "file": "assets/Card-9f2c.js",
    "src": "src/Card.tsx",
    "isDynamicEntry": true,
    "imports": ["_react-91bc.js", "_missing.js"],
    "css": ["assets/Card-77d1.css"],
    "assets": ["assets/inter-3c1e.woff2"]
  }
}`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(viteManifest))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Len() != 3 {
		t.Errorf("Len = %d, want 3", m.Len())
	}

	want := []string{"_react-91bc.js", "index.html", "src/Card.tsx"}
	got := m.IDs()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("IDs = %v, want %v", got, want)
	}

	c, ok := m.Chunk("/src/Card.tsx")
	if !ok {
		t.Fatal("Chunk with leading slash not found")
	}
	if c.File != "assets/Card-9f2c.js" || !c.IsDynamicEntry || len(c.Assets) != 1 {
		t.Errorf("Chunk = %+v", c)
	}

	if entries := m.Entries(); len(entries) != 1 || entries[0] != "index.html" {
		t.Errorf("Entries = %v, want [index.html]", entries)
	}
	if len(m.Hash()) != 64 {
		t.Errorf("Hash length = %d, want 64", len(m.Hash()))
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", `{"a":`},
		{"not object", `[1,2]`},
		{"null", `null`},
		{"empty file", `{"a":{"file":""}}`},
		{"traversal", `{"a":{"file":"../secret.js"}}`},
		{"bad css", `{"a":{"file":"a.js","css":["a\\b.css"]}}`},
		{"bad asset", `{"a":{"file":"a.js","assets":["x\u0000.png"]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if !perr.Is(err, perr.ErrCodeInvalidManifest) {
				t.Errorf("code = %s, want INVALID_MANIFEST", perr.GetCode(err))
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(path, []byte(viteManifest), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Len() != 3 {
		t.Errorf("Len = %d, want 3", m.Len())
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.json"))
		if !perr.Is(err, perr.ErrCodeConfiguration) {
			t.Errorf("err = %v, want CONFIGURATION", err)
		}
		if !perr.IsFatal(err) {
			t.Error("missing manifest should be fatal")
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		if err := os.WriteFile(bad, []byte("{"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := Load(bad)
		if !perr.Is(err, perr.ErrCodeConfiguration) {
			t.Errorf("err = %v, want CONFIGURATION", err)
		}
	})
}

func TestDOT(t *testing.T) {
	m, err := Parse([]byte(viteManifest))
	if err != nil {
		t.Fatal(err)
	}
	dot := m.DOT()

	for _, want := range []string{
		"digraph manifest {",
		`"src/Card.tsx" -> "_react-91bc.js";`,
		`"index.html" -> "src/Card.tsx" [style=dashed];`,
		`"_missing.js" [style=dotted, color=gray];`,
		`style=bold`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q\n%s", want, dot)
		}
	}
}

func TestRenderGraph(t *testing.T) {
	m, err := Parse([]byte(viteManifest))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	dot, err := m.RenderGraph(ctx, FormatDOT)
	if err != nil || string(dot) != m.DOT() {
		t.Errorf("RenderGraph(dot) = %v", err)
	}

	svg, err := m.RenderGraph(ctx, FormatSVG)
	if err != nil {
		t.Fatalf("RenderGraph(svg) error: %v", err)
	}
	if !strings.Contains(string(svg), "<svg") || !strings.Contains(string(svg), "src/Card.tsx") {
		t.Error("SVG output is missing the graph")
	}

	if _, err := m.RenderGraph(ctx, "gif"); err == nil {
		t.Error("RenderGraph(gif) should fail")
	}
}
