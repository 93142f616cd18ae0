package stream

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	perr "github.com/matzehuels/ssrpreload/pkg/errors"
)

const page = `<!doctype html><html><head><title>App</title></head>` +
	`<body><div id="app"><!--app-html--></div>` +
	`<script nonce="%NONCE%">boot()</script></body></html>`

func TestParseTemplate(t *testing.T) {
	tmpl, err := ParseTemplate([]byte(page))
	if err != nil {
		t.Fatal(err)
	}

	head := tmpl.Head(`<link rel="x" />`, "N1")
	wantHead := `<!doctype html><html><head><title>App</title><link rel="x" /></head><body><div id="app">`
	if head != wantHead {
		t.Errorf("Head =\n%s\nwant\n%s", head, wantHead)
	}

	tail := tmpl.Tail("N1")
	wantTail := `</div><script nonce="N1">boot()</script></body></html>`
	if tail != wantTail {
		t.Errorf("Tail =\n%s\nwant\n%s", tail, wantTail)
	}
}

func TestParseTemplateErrors(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{"no head", `<body><!--app-html--></body>`},
		{"no body marker", `<head></head><body></body>`},
		{"markers reversed", `<!--app-html--><head></head>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTemplate([]byte(tt.html))
			if !perr.Is(err, perr.ErrCodeInvalidTemplate) {
				t.Errorf("err = %v, want INVALID_TEMPLATE", err)
			}
		})
	}
}

func TestLoadTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.html")
	if err := os.WriteFile(path, []byte(page), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTemplate(path); err != nil {
		t.Fatalf("LoadTemplate: %v", err)
	}

	_, err := LoadTemplate(filepath.Join(t.TempDir(), "missing.html"))
	if !perr.Is(err, perr.ErrCodeConfiguration) {
		t.Errorf("err = %v, want CONFIGURATION", err)
	}
}

func TestIsNavigation(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		headers map[string]string
		want    bool
	}{
		{"fetch metadata navigate", http.MethodGet, map[string]string{"Sec-Fetch-Mode": "navigate"}, true},
		{"fetch metadata cors", http.MethodGet, map[string]string{"Sec-Fetch-Mode": "cors", "Accept": "text/html"}, false},
		{"document destination", http.MethodGet, map[string]string{"Sec-Fetch-Dest": "document"}, true},
		{"accept html", http.MethodGet, map[string]string{"Accept": "text/html,application/xhtml+xml"}, true},
		{"accept json", http.MethodGet, map[string]string{"Accept": "application/json"}, false},
		{"post", http.MethodPost, map[string]string{"Sec-Fetch-Mode": "navigate"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := IsNavigation(r); got != tt.want {
				t.Errorf("IsNavigation = %v, want %v", got, tt.want)
			}
		})
	}
}
