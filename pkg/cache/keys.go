package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// ResolveKeyOpts holds the resolver options that change a resolution result.
type ResolveKeyOpts struct {
	IncludeEntrypoint bool   `json:"include_entrypoint"`
	PreloadAssets     bool   `json:"preload_assets"`
	Entry             string `json:"entry,omitempty"`
}

// Keyer builds cache keys.
type Keyer interface {
	// ResolveKey returns the key for the resolved assets of one module id.
	ResolveKey(manifestHash, id string, opts ResolveKeyOpts) string
}

// DefaultKeyer keys a resolution by manifest fingerprint, then by a digest
// of the module id and options. Keys look like "resolve:<manifest>:<digest>"
// so every entry of one build shares a prefix.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ResolveKey implements Keyer.
func (DefaultKeyer) ResolveKey(manifestHash, id string, opts ResolveKeyOpts) string {
	data, _ := json.Marshal(struct {
		ID   string         `json:"id"`
		Opts ResolveKeyOpts `json:"opts"`
	}{id, opts})
	return "resolve:" + manifestHash + ":" + Fingerprint(data)
}

// ScopedKeyer prepends a namespace to another keyer's keys so several
// applications can share one backend.
//
//	shop := NewScopedKeyer(NewDefaultKeyer(), "shop:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner, or the default keyer when inner is nil.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return ScopedKeyer{inner: inner, prefix: prefix}
}

// ResolveKey implements Keyer.
func (k ScopedKeyer) ResolveKey(manifestHash, id string, opts ResolveKeyOpts) string {
	return k.prefix + k.inner.ResolveKey(manifestHash, id, opts)
}

// Fingerprint returns the hex SHA-256 of data. Manifests are identified by
// the fingerprint of their raw bytes.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
