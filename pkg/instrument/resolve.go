package instrument

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	perr "github.com/matzehuels/ssrpreload/pkg/errors"
)

// Resolver maps an import specifier to the id of the module it refers to.
type Resolver interface {
	// Resolve returns the root-relative slash path of the module imported
	// as spec by importer. It fails when no such module exists.
	Resolve(spec, importer string) (string, error)
}

// DefaultExtensions is the lookup order for extensionless specifiers.
var DefaultExtensions = []string{".tsx", ".ts", ".jsx", ".js", ".mjs"}

// FSResolver resolves relative specifiers against a file system using the
// bundler's lookup rules: exact file, then each extension, then an index
// file in a directory. A ".js" specifier also matches a TypeScript source
// with the same stem.
type FSResolver struct {
	FS fs.FS

	// Extensions defaults to DefaultExtensions.
	Extensions []string

	// Aliases maps specifier prefixes to root-relative directories,
	// for example {"@/": "src/"}.
	Aliases map[string]string
}

// Resolve implements Resolver.
func (r FSResolver) Resolve(spec, importer string) (string, error) {
	base, ok := r.base(spec, importer)
	if !ok {
		return "", perr.New(perr.ErrCodeResolution, "cannot resolve %q from %s: not a relative or aliased path", spec, importer)
	}
	if base == ".." || strings.HasPrefix(base, "../") {
		return "", perr.New(perr.ErrCodeResolution, "cannot resolve %q from %s: outside the source root", spec, importer)
	}
	for _, candidate := range r.candidates(base) {
		if r.isFile(candidate) {
			return candidate, nil
		}
	}
	return "", perr.New(perr.ErrCodeResolution, "did not find imported module %s (imported from %s)", base, importer)
}

func (r FSResolver) base(spec, importer string) (string, bool) {
	switch {
	case strings.HasPrefix(spec, "./"), strings.HasPrefix(spec, "../"), spec == ".", spec == "..":
		return path.Join(path.Dir(importer), spec), true
	case strings.HasPrefix(spec, "/"):
		return path.Clean(strings.TrimPrefix(spec, "/")), true
	}
	for prefix, dir := range r.Aliases {
		if strings.HasPrefix(spec, prefix) {
			return path.Join(dir, strings.TrimPrefix(spec, prefix)), true
		}
	}
	return "", false
}

func (r FSResolver) candidates(base string) []string {
	exts := r.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	out := []string{base}
	for _, ext := range exts {
		out = append(out, base+ext)
	}
	if stem, ok := strings.CutSuffix(base, ".js"); ok {
		out = append(out, stem+".ts", stem+".tsx")
	}
	for _, ext := range exts {
		out = append(out, path.Join(base, "index"+ext))
	}
	return out
}

func (r FSResolver) isFile(name string) bool {
	if r.FS == nil || !fs.ValidPath(name) {
		return false
	}
	info, err := fs.Stat(r.FS, name)
	return err == nil && !info.IsDir()
}

// Ensure FSResolver implements Resolver.
var _ Resolver = FSResolver{}

// unitID normalizes a file name to a root-relative slash path.
func unitID(name string) (string, error) {
	if name == "" {
		return "", perr.New(perr.ErrCodeInvalidInput, "module id cannot be empty")
	}
	id := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	id = strings.TrimPrefix(id, "./")
	if err := perr.ValidateModuleID(id); err != nil {
		return "", fmt.Errorf("invalid module id %q: %w", name, err)
	}
	return strings.TrimPrefix(id, "/"), nil
}
