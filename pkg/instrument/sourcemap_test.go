package instrument

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestWriteVLQ(t *testing.T) {
	tests := []struct {
		v    int
		want string
	}{
		{0, "A"},
		{1, "C"},
		{-1, "D"},
		{15, "e"},
		{16, "gB"},
		{123, "2H"},
		{-123, "3H"},
	}
	for _, tt := range tests {
		var b strings.Builder
		writeVLQ(&b, tt.v)
		if got := b.String(); got != tt.want {
			t.Errorf("writeVLQ(%d) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestApplyEdits(t *testing.T) {
	got := applyEdits([]byte("abc"), []edit{{3, "Z"}, {1, "X"}, {1, "Y"}})
	if string(got) != "aXYbcZ" {
		t.Errorf("applyEdits = %q, want %q", got, "aXYbcZ")
	}
}

func TestBuildMappings(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		edits []edit
		want  string
	}{
		{"identity", "x\ny", nil, "AAAA;AACA"},
		{"insertion", "{b}", []edit{{1, "X;"}}, "AAAA,CAAC,EAAA,CAAC"},
		{"blank lines", "a\n\nb", nil, "AAAA;;AAEA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := lex([]byte(tt.src), false)
			if err != nil {
				t.Fatal(err)
			}
			if got := buildMappings([]byte(tt.src), toks, tt.edits); got != tt.want {
				t.Errorf("mappings = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSourceMapJSON(t *testing.T) {
	m := &SourceMap{Version: 3, Sources: []string{"src/Card.tsx"}, Names: []string{}, Mappings: "AAAA"}
	data, err := m.JSON()
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["version"] != float64(3) || decoded["mappings"] != "AAAA" {
		t.Errorf("decoded = %v", decoded)
	}
}
