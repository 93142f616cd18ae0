package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/ssrpreload/pkg/config"
	"github.com/matzehuels/ssrpreload/pkg/preload"
)

const testManifest = `{
  "index.html": {"file": "assets/index.js", "isEntry": true, "css": ["assets/index.css"], "dynamicImports": ["src/Card.tsx"]},
  "src/Card.tsx": {"file": "assets/Card.js", "imports": ["_shared.js"], "css": ["assets/Card.css"]},
  "_shared.js": {"file": "assets/shared.js"}
}`

// run executes the root command with args and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, path, data string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func manifestFile(t *testing.T) string {
	return writeFile(t, filepath.Join(t.TempDir(), "manifest.json"), testManifest)
}

func TestResolveLink(t *testing.T) {
	out, err := run(t, "resolve", "-m", manifestFile(t), "-f", "link", "src/Card.tsx", "src/Card.tsx")
	if err != nil {
		t.Fatal(err)
	}
	want := "</assets/Card.css>; rel=preload; as=style; crossorigin, " +
		"</assets/Card.js>; rel=modulepreload; crossorigin, " +
		"</assets/shared.js>; rel=modulepreload; crossorigin\n"
	if out != want {
		t.Errorf("output =\n%s\nwant\n%s", out, want)
	}
}

func TestResolveTags(t *testing.T) {
	out, err := run(t, "resolve", "-m", manifestFile(t), "-f", "tags", "--base", "/static/", "--nonce", "N1", "src/Card.tsx")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `<link rel="stylesheet" href="/static/assets/Card.css" crossorigin nonce="N1" />`) {
		t.Errorf("output:\n%s", out)
	}
}

func TestResolveJSON(t *testing.T) {
	out, err := run(t, "resolve", "-m", manifestFile(t), "-f", "json", "src/Card.tsx", "src/Unknown.tsx")
	if err != nil {
		t.Fatal(err)
	}
	var assets []preload.Asset
	if err := json.Unmarshal([]byte(out), &assets); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(assets) != 3 || assets[0].Kind != preload.KindStylesheet {
		t.Errorf("assets = %+v", assets)
	}
}

func TestResolveEntryAssets(t *testing.T) {
	out, err := run(t, "resolve", "-m", manifestFile(t), "-f", "link", "--entry-assets", "--include-entrypoint")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "</assets/index.css>; rel=preload; as=style") ||
		!strings.Contains(out, "</assets/index.js>; rel=modulepreload") {
		t.Errorf("output = %q", out)
	}
}

func TestResolveTable(t *testing.T) {
	out, err := run(t, "resolve", "-m", manifestFile(t), "src/Card.tsx")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"stylesheet", "assets/Card.css", "Chunk imported by _shared.js", "3 assets"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestResolveErrors(t *testing.T) {
	m := manifestFile(t)
	tests := []struct {
		name string
		args []string
	}{
		{"no ids", []string{"resolve", "-m", m}},
		{"bad format", []string{"resolve", "-m", m, "-f", "yaml", "src/Card.tsx"}},
		{"missing manifest", []string{"resolve", "-m", filepath.Join(t.TempDir(), "none.json"), "src/Card.tsx"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func sourceTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "App.tsx"),
		"import { lazy } from \"react\";\nconst Card = lazy(() => import(\"./Card\"));\nexport default function App() {\n  return null;\n}\n")
	writeFile(t, filepath.Join(root, "src", "Card.tsx"),
		"export default function Card() {\n  return null;\n}\n")
	return root
}

func TestInstrument(t *testing.T) {
	root := sourceTree(t)
	outDir := filepath.Join(t.TempDir(), "out")

	out, err := run(t, "instrument", "--root", root, "--out", outDir)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Instrumented 1 lazy targets") {
		t.Errorf("output:\n%s", out)
	}

	card, err := os.ReadFile(filepath.Join(outDir, "src", "Card.tsx"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`import { __collectModule } from "ssrpreload/__internal";`,
		`__collectModule("src/Card.tsx");`,
		"//# sourceMappingURL=Card.tsx.map",
	} {
		if !strings.Contains(string(card), want) {
			t.Errorf("Card.tsx missing %q:\n%s", want, card)
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, "src", "Card.tsx.map")); err != nil {
		t.Error(err)
	}
}

func TestInstrumentDryRunAndOtherTarget(t *testing.T) {
	root := sourceTree(t)
	outDir := filepath.Join(t.TempDir(), "out")

	if _, err := run(t, "instrument", "--root", root, "--out", outDir, "--dry-run"); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "instrument", "--root", root, "--out", outDir, "--build", "client")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"client" is not instrumented`) {
		t.Errorf("output:\n%s", out)
	}
	if _, err := os.Stat(outDir); !os.IsNotExist(err) {
		t.Error("nothing should be written")
	}
}

func TestInstrumentStrict(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "App.tsx"), "const C = lazy(() => import(\"./C\"));\n")
	writeFile(t, filepath.Join(root, "C.tsx"), "export default class C {}\n")

	if _, err := run(t, "instrument", "--root", root, "--dry-run"); err != nil {
		t.Errorf("non-strict run failed: %v", err)
	}
	if _, err := run(t, "instrument", "--root", root, "--dry-run", "--strict"); err == nil {
		t.Error("strict run should fail on an uninstrumentable target")
	}
}

func TestGraphDOT(t *testing.T) {
	out, err := run(t, "graph", "-m", manifestFile(t))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "digraph manifest {") || !strings.Contains(out, `"src/Card.tsx" -> "_shared.js";`) {
		t.Errorf("output:\n%s", out)
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]string{"": "dot", "g.svg": "svg", "g.png": "png", "g.txt": "dot"}
	for path, want := range tests {
		if got := formatFromPath(path); got != want {
			t.Errorf("formatFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestConfigCommand(t *testing.T) {
	cfgPath := writeFile(t, filepath.Join(t.TempDir(), "ssrpreload.toml"), "[server]\naddr = \":9000\"\n")
	out, err := run(t, "config", "--config", cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"[server]", `addr = ":9000"`, `settle_timeout = "50ms"`} {
		if !strings.Contains(out, want) {
			t.Errorf("config output missing %q:\n%s", want, out)
		}
	}

	var decoded config.Config
	if err := config.Parse([]byte(out), &decoded); err != nil {
		t.Errorf("printed config does not parse back: %v", err)
	}
}

func TestCacheCommands(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	cfgPath := writeFile(t, filepath.Join(t.TempDir(), "ssrpreload.toml"), "[cache]\ndir = \""+filepath.ToSlash(dir)+"\"\n")

	out, err := run(t, "cache", "path", "--config", cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != filepath.ToSlash(dir) {
		t.Errorf("cache path = %q, want %q", out, dir)
	}

	writeFile(t, filepath.Join(dir, "ab", "cdef.json"), "{}")
	writeFile(t, filepath.Join(dir, "ab", "0123.json"), "{}")
	out, err = run(t, "cache", "clear", "--config", cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Cleared 2 cached entries") {
		t.Errorf("output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "ab")); !os.IsNotExist(err) {
		t.Error("empty shard directory was not removed")
	}
	if _, err := os.Stat(dir); err != nil {
		t.Error("cache root should be kept")
	}
}

func TestCompletion(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		out, err := run(t, "completion", shell)
		if err != nil || !strings.Contains(out, "ssrpreload") {
			t.Errorf("completion %s: err = %v, %d bytes", shell, err, len(out))
		}
	}
	if _, err := run(t, "completion", "tcsh"); err == nil {
		t.Error("unknown shell should fail")
	}
}

func TestServeFlagsOverrideConfig(t *testing.T) {
	c := New(io.Discard, LogInfo)
	cmd := c.serveCommand()
	if err := cmd.ParseFlags([]string{"--addr", ":9000", "--dev", "--early-hints=false"}); err != nil {
		t.Fatal(err)
	}

	var opts serveOptions
	opts.addr, _ = cmd.Flags().GetString("addr")
	opts.dev, _ = cmd.Flags().GetBool("dev")
	opts.earlyHints, _ = cmd.Flags().GetBool("early-hints")

	cfg := config.Defaults()
	opts.apply(cmd, &cfg)
	if cfg.Server.Addr != ":9000" || !cfg.Manifest.Dev || cfg.Preload.EarlyHints {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Server.Base != "/" || cfg.Manifest.Path == "" {
		t.Error("unset flags should keep config values")
	}
}

func TestServePreloadAll(t *testing.T) {
	var logs syncBuffer
	c := New(&logs, LogInfo)
	cmd := c.serveCommand()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	cmd.SetContext(ctx)
	cmd.SetErr(io.Discard)

	cfg := config.Defaults()
	cfg.Server.Playground = true
	cfg.Server.Addr = "127.0.0.1:0"

	if err := c.runServe(cmd, cfg, true); err != nil {
		t.Fatal(err)
	}
	if out := logs.String(); !strings.Contains(out, "Preloaded lazy units") || !strings.Contains(out, "units=1") {
		t.Errorf("log output = %q", out)
	}
}

func TestDisplayAddr(t *testing.T) {
	if got := displayAddr(":5173"); got != "http://localhost:5173" {
		t.Errorf("displayAddr = %q", got)
	}
	if got := displayAddr("0.0.0.0:80"); got != "http://0.0.0.0:80" {
		t.Errorf("displayAddr = %q", got)
	}
}

func TestParseAliases(t *testing.T) {
	got, err := parseAliases([]string{"@=src", "~lib=vendor/lib"})
	if err != nil || got["@"] != "src" || got["~lib"] != "vendor/lib" {
		t.Errorf("parseAliases = %v, %v", got, err)
	}
	if _, err := parseAliases([]string{"nope"}); err == nil {
		t.Error("alias without '=' should fail")
	}
}

func TestExampleProject(t *testing.T) {
	root := filepath.Join("..", "..", "examples", "basic")

	out, err := run(t, "instrument", "--root", root, "--dry-run")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Instrumented 2 lazy targets") {
		t.Errorf("instrument output:\n%s", out)
	}

	out, err = run(t, "resolve", "-m", filepath.Join(root, "dist", "client", ".vite", "manifest.json"),
		"-f", "link", "src/Panel.tsx", "src/Card.tsx")
	if err != nil {
		t.Fatal(err)
	}
	want := "</assets/Card-x9Q2.css>; rel=preload; as=style; crossorigin, " +
		"</assets/inter-latin-400.woff2>; rel=preload; as=font; type=font/woff2; crossorigin, " +
		"</assets/Card-A71k.js>; rel=modulepreload; crossorigin, " +
		"</assets/react-Cz81e.js>; rel=modulepreload; crossorigin, " +
		"</assets/Panel-P0o3.js>; rel=modulepreload; crossorigin\n"
	if out != want {
		t.Errorf("resolve output =\n%s\nwant\n%s", out, want)
	}
}
