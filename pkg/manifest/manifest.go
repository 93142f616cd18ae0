// Package manifest loads the bundler's build manifest and expands lazily
// rendered module ids into the physical assets they need.
//
// The manifest is a JSON object keyed by source id:
//
//	{
//	  "src/Card.tsx": {
//	    "file": "assets/Card-9f2c.js",
//	    "imports": ["_vendor-41ab.js"],
//	    "css": ["assets/Card-77d1.css"]
//	  }
//	}
//
// [Parse] turns it into an id-indexed table once. A [Manifest] is immutable
// and safe for concurrent reads; a [Resolver] walks its static import edges.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/matzehuels/ssrpreload/pkg/cache"
	perr "github.com/matzehuels/ssrpreload/pkg/errors"
)

// Chunk is one build output unit as described by the manifest.
type Chunk struct {
	Src            string   `json:"src,omitempty"`
	Name           string   `json:"name,omitempty"`
	File           string   `json:"file"`
	IsEntry        bool     `json:"isEntry,omitempty"`
	IsDynamicEntry bool     `json:"isDynamicEntry,omitempty"`
	Imports        []string `json:"imports,omitempty"`
	DynamicImports []string `json:"dynamicImports,omitempty"`
	CSS            []string `json:"css,omitempty"`
	Assets         []string `json:"assets,omitempty"`
}

// edge is a static import. to is -1 when id has no manifest entry.
type edge struct {
	to int
	id string
}

// Manifest is an immutable table of chunks indexed by source id.
type Manifest struct {
	ids    []string
	chunks []Chunk
	edges  [][]edge
	index  map[string]int
	hash   string
}

// Load reads and parses the manifest at path. Any failure is a
// configuration error: a server cannot start without its manifest.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, perr.Wrap(perr.ErrCodeConfiguration, err, "read manifest %s", path)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, perr.Wrap(perr.ErrCodeConfiguration, err, "load manifest %s", path)
	}
	return m, nil
}

// Parse decodes manifest JSON and builds the id index. Chunk ids are
// ordered lexically so the table does not depend on key order in the file.
func Parse(data []byte) (*Manifest, error) {
	var raw map[string]Chunk
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, perr.Wrap(perr.ErrCodeInvalidManifest, err, "malformed manifest JSON")
	}
	if raw == nil {
		return nil, perr.New(perr.ErrCodeInvalidManifest, "manifest must be a JSON object")
	}

	m := &Manifest{
		ids:   make([]string, 0, len(raw)),
		index: make(map[string]int, len(raw)),
		hash:  cache.Fingerprint(data),
	}
	for id := range raw {
		m.ids = append(m.ids, id)
	}
	slices.Sort(m.ids)

	m.chunks = make([]Chunk, len(m.ids))
	for i, id := range m.ids {
		c := raw[id]
		if err := validateChunk(id, c); err != nil {
			return nil, err
		}
		m.chunks[i] = c
		m.index[normalize(id)] = i
	}

	m.edges = make([][]edge, len(m.chunks))
	for i, c := range m.chunks {
		edges := make([]edge, 0, len(c.Imports))
		for _, imp := range c.Imports {
			to, ok := m.index[normalize(imp)]
			if !ok {
				to = -1
			}
			edges = append(edges, edge{to: to, id: imp})
		}
		m.edges[i] = edges
	}
	return m, nil
}

func validateChunk(id string, c Chunk) error {
	if id == "" {
		return perr.New(perr.ErrCodeInvalidManifest, "empty chunk id")
	}
	if err := perr.ValidateHref(c.File); err != nil {
		return perr.Wrap(perr.ErrCodeInvalidManifest, err, "chunk %q: file", id)
	}
	for _, f := range c.CSS {
		if err := perr.ValidateHref(f); err != nil {
			return perr.Wrap(perr.ErrCodeInvalidManifest, err, "chunk %q: css", id)
		}
	}
	for _, f := range c.Assets {
		if err := perr.ValidateHref(f); err != nil {
			return perr.Wrap(perr.ErrCodeInvalidManifest, err, "chunk %q: assets", id)
		}
	}
	return nil
}

// normalize strips the leading path separator some runtimes report.
func normalize(id string) string {
	return strings.TrimPrefix(id, "/")
}

// Len returns the number of chunks.
func (m *Manifest) Len() int { return len(m.chunks) }

// IDs returns all chunk ids in lexical order.
func (m *Manifest) IDs() []string { return slices.Clone(m.ids) }

// Chunk returns the chunk for id. A leading "/" is ignored.
func (m *Manifest) Chunk(id string) (Chunk, bool) {
	i, ok := m.index[normalize(id)]
	if !ok {
		return Chunk{}, false
	}
	return m.chunks[i], true
}

// Entries returns the ids of chunks flagged isEntry.
func (m *Manifest) Entries() []string {
	var out []string
	for i, c := range m.chunks {
		if c.IsEntry {
			out = append(out, m.ids[i])
		}
	}
	return out
}

// Hash returns the SHA-256 of the manifest source bytes.
func (m *Manifest) Hash() string { return m.hash }

// DOT renders the chunk graph in Graphviz syntax. Static imports are solid
// edges, dynamic imports dashed, and ids missing from the manifest are
// drawn as dotted placeholder nodes.
func (m *Manifest) DOT() string {
	var b strings.Builder
	b.WriteString("digraph manifest {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, fontname=\"Helvetica\", fontsize=10];\n")

	missing := make(map[string]bool)
	for i, id := range m.ids {
		c := m.chunks[i]
		attrs := fmt.Sprintf("label=%q", id+"\n"+c.File)
		switch {
		case c.IsEntry:
			attrs += ", style=bold"
		case c.IsDynamicEntry:
			attrs += ", style=rounded"
		}
		fmt.Fprintf(&b, "  %q [%s];\n", id, attrs)
	}
	for i, id := range m.ids {
		for _, e := range m.edges[i] {
			if e.to < 0 {
				missing[e.id] = true
			}
			fmt.Fprintf(&b, "  %q -> %q;\n", id, e.id)
		}
		for _, d := range m.chunks[i].DynamicImports {
			if _, ok := m.index[normalize(d)]; !ok {
				missing[d] = true
			}
			fmt.Fprintf(&b, "  %q -> %q [style=dashed];\n", id, d)
		}
	}
	gaps := make([]string, 0, len(missing))
	for id := range missing {
		gaps = append(gaps, id)
	}
	slices.Sort(gaps)
	for _, id := range gaps {
		fmt.Fprintf(&b, "  %q [style=dotted, color=gray];\n", id)
	}
	b.WriteString("}\n")
	return b.String()
}
