package preload

import (
	"fmt"
	"path"
	"strings"
)

// Kind is the resource kind of an [Asset].
type Kind int

const (
	// KindStylesheet is a CSS file emitted as <link rel="stylesheet">.
	KindStylesheet Kind = iota + 1
	// KindEntryModule is the page's entry script emitted as <script type="module">.
	KindEntryModule
	// KindModulePreload is a JS chunk emitted as <link rel="modulepreload">.
	KindModulePreload
	// KindPreload is a generic resource (font, image) emitted as <link rel="preload">.
	KindPreload
)

var kindNames = map[Kind]string{
	KindStylesheet:    "stylesheet",
	KindEntryModule:   "module",
	KindModulePreload: "modulepreload",
	KindPreload:       "preload",
}

// String returns the kind name used in logs and JSON output.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("unknown asset kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown asset kind %q", text)
}

// Asset is a resolved resource ready to be emitted.
//
// Href is relative to the public base path, exactly as it appears in the
// build manifest ("assets/index-BX1.js"). As and Type are only meaningful
// for KindPreload.
type Asset struct {
	Kind    Kind   `json:"kind" msgpack:"kind"`
	Href    string `json:"href" msgpack:"href"`
	Comment string `json:"comment,omitempty" msgpack:"comment,omitempty"`
	As      string `json:"as,omitempty" msgpack:"as,omitempty"`
	Type    string `json:"type,omitempty" msgpack:"type,omitempty"`
	IsEntry bool   `json:"isEntry,omitempty" msgpack:"is_entry,omitempty"`
}

// IsFont reports whether the asset is a font preload.
func (a Asset) IsFont() bool {
	return a.Kind == KindPreload && a.As == "font"
}

// Key identifies an asset for deduplication.
type Key struct {
	Class string
	Href  string
}

// Key returns the deduplication key of the asset. Entry modules and module
// preloads share the "script" class so the same file is never emitted as
// both a <script> and a <link rel="modulepreload">.
func (a Asset) Key() Key {
	var class string
	switch a.Kind {
	case KindStylesheet:
		class = "style"
	case KindEntryModule, KindModulePreload:
		class = "script"
	default:
		class = "preload"
	}
	return Key{Class: class, Href: a.Href}
}

type fileType struct {
	as   string
	mime string
}

var preloadTypes = map[string]fileType{
	".woff2": {"font", "font/woff2"},
	".woff":  {"font", "font/woff"},
	".ttf":   {"font", "font/ttf"},
	".otf":   {"font", "font/otf"},
	".png":   {"image", "image/png"},
	".jpg":   {"image", "image/jpeg"},
	".jpeg":  {"image", "image/jpeg"},
	".gif":   {"image", "image/gif"},
	".webp":  {"image", "image/webp"},
	".avif":  {"image", "image/avif"},
	".svg":   {"image", "image/svg+xml"},
}

// AssetForFile builds a generic preload asset for a static file imported by
// a chunk (the manifest "assets" list). It returns false for file types that
// have no preload destination.
func AssetForFile(file, comment string) (Asset, bool) {
	ft, ok := preloadTypes[strings.ToLower(path.Ext(file))]
	if !ok {
		return Asset{}, false
	}
	return Asset{
		Kind:    KindPreload,
		Href:    file,
		Comment: comment,
		As:      ft.as,
		Type:    ft.mime,
	}, true
}
