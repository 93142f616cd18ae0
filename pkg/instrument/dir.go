package instrument

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// skipDirs are never descended into when collecting sources.
var skipDirs = map[string]bool{
	"node_modules": true,
	"dist":         true,
	".git":         true,
}

// Collect reads every file in fsys the pass includes, skipping dependency,
// output, and hidden directories.
func (p *Pass) Collect(ctx context.Context, fsys fs.FS) ([]Source, error) {
	var out []Source
	err := fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if name != "." && (skipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
				return fs.SkipDir
			}
			return nil
		}
		if !p.Includes(name) {
			return nil
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		out = append(out, Source{ID: name, Code: data})
		return nil
	})
	return out, err
}

// WriteResults writes every result below dir, mirroring its id. Changed
// results with a source map also get a ".map" file and a trailing
// sourceMappingURL comment.
func WriteResults(dir string, results []Result) error {
	for _, r := range results {
		dst := filepath.Join(dir, filepath.FromSlash(r.ID))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		code := r.Code
		if r.Map != nil {
			data, err := json.Marshal(r.Map)
			if err != nil {
				return err
			}
			if err := os.WriteFile(dst+".map", data, 0o644); err != nil {
				return err
			}
			code = append(append([]byte(nil), code...), "\n//# sourceMappingURL="+filepath.Base(dst)+".map\n"...)
		}
		if err := os.WriteFile(dst, code, 0o644); err != nil {
			return err
		}
	}
	return nil
}
