package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	// Get always returns miss
	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit {
		t.Error("NullCache.Get should always return miss")
	}
	if data != nil {
		t.Error("NullCache.Get should return nil data")
	}

	// Set does nothing (no error)
	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}

	// Still a miss after Set
	_, hit, _ = c.Get(ctx, "key")
	if hit {
		t.Error("NullCache should not store data")
	}

	// Delete does nothing (no error)
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Fatal("empty cache should miss")
	}

	value := []byte("assets")
	if err := c.Set(ctx, "k", value, 0); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	value[0] = 'X'

	data, hit, err := c.Get(ctx, "k")
	if err != nil || !hit {
		t.Fatalf("Get = (%v, %v), want hit", hit, err)
	}
	if string(data) != "assets" {
		t.Errorf("Get = %q, stored value must be copied", data)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("deleted key should miss")
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	_ = c.Set(ctx, "short", []byte("v"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if _, hit, _ := c.Get(ctx, "short"); hit {
		t.Error("expired entry should miss")
	}
}

func TestMemoryCacheEvictKeepsFreshEntry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache().(*MemoryCache)

	_ = c.Set(ctx, "k", []byte("old"), time.Millisecond)
	seen := time.Now().Add(time.Second)
	_ = c.Set(ctx, "k", []byte("new"), time.Hour)

	// A reader that saw the old entry expire evicts after the new Set.
	c.evict("k", seen)

	data, hit, err := c.Get(ctx, "k")
	if err != nil || !hit || string(data) != "new" {
		t.Errorf("Get = (%q, %v, %v), want fresh entry", data, hit, err)
	}

	c.evict("k", time.Now().Add(2*time.Hour))
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("entry expired at eviction time should be removed")
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache error: %v", err)
	}

	if err := c.Set(ctx, "resolve:abc", []byte(`payload`), time.Hour); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "resolve:abc")
	if err != nil || !hit || string(data) != "payload" {
		t.Fatalf("Get = (%q, %v, %v)", data, hit, err)
	}
	if err := c.Delete(ctx, "resolve:abc"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := c.Delete(ctx, "resolve:abc"); err != nil {
		t.Errorf("Delete of missing key should not fail: %v", err)
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte(`{"index.html":{}}`))
	if a != Fingerprint([]byte(`{"index.html":{}}`)) {
		t.Error("Fingerprint should be deterministic")
	}
	if a == Fingerprint([]byte(`{"main.js":{}}`)) {
		t.Error("different manifests should have different fingerprints")
	}
	if len(a) != 64 {
		t.Errorf("len(Fingerprint) = %d, want 64", len(a))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	k1 := k.ResolveKey("m1", "src/Card.tsx", ResolveKeyOpts{})
	k2 := k.ResolveKey("m1", "src/Card.tsx", ResolveKeyOpts{IncludeEntrypoint: true})
	k3 := k.ResolveKey("m2", "src/Card.tsx", ResolveKeyOpts{})
	k4 := k.ResolveKey("m1", "src/Page.tsx", ResolveKeyOpts{})

	if k1 == k2 {
		t.Error("Different ResolveKeyOpts should produce different keys")
	}
	if k1 == k3 {
		t.Error("Different manifests should produce different keys")
	}
	if k1 == k4 {
		t.Error("Different ids should produce different keys")
	}
	if k1 != k.ResolveKey("m1", "src/Card.tsx", ResolveKeyOpts{}) {
		t.Error("ResolveKey should be deterministic")
	}
	if !strings.HasPrefix(k1, "resolve:m1:") {
		t.Errorf("ResolveKey = %q, want manifest prefix", k1)
	}
}

func TestScopedKeyer(t *testing.T) {
	inner := NewDefaultKeyer()
	scoped := NewScopedKeyer(inner, "shop:")

	key := scoped.ResolveKey("m", "src/Card.tsx", ResolveKeyOpts{})
	if key != "shop:"+inner.ResolveKey("m", "src/Card.tsx", ResolveKeyOpts{}) {
		t.Errorf("ScopedKeyer key should be prefixed: %s", key)
	}
}

func TestScopedKeyerNilInner(t *testing.T) {
	// Should use DefaultKeyer when inner is nil
	scoped := NewScopedKeyer(nil, "prefix:")
	key := scoped.ResolveKey("m", "id", ResolveKeyOpts{})
	if key[:7] != "prefix:" {
		t.Errorf("Unexpected key with nil inner: %s", key)
	}
}

func TestBackoff(t *testing.T) {
	unavailable := fmt.Errorf("%w: ping", ErrUnavailable)
	plain := errors.New("bad config")

	tests := []struct {
		name      string
		fails     int
		err       error
		wantCalls int
		wantErr   error
	}{
		{"success", 0, nil, 1, nil},
		{"permanent error stops", 5, plain, 1, plain},
		{"recovers", 2, unavailable, 3, nil},
		{"exhausted", 5, unavailable, 3, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			b := Backoff{Attempts: 3, Delay: time.Millisecond}
			err := b.Do(context.Background(), func(context.Context) error {
				calls++
				if calls <= tt.fails {
					return tt.err
				}
				return nil
			})
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Errorf("Do() = %v, want %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestBackoffCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Backoff{Attempts: 5, Delay: time.Hour}.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return ErrUnavailable
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestBackoffDefaults(t *testing.T) {
	var b Backoff
	if b.attempts() != 3 || b.delay() != time.Second {
		t.Errorf("zero Backoff = (%d, %v), want (3, 1s)", b.attempts(), b.delay())
	}
}

func TestNewRedisCacheCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewRedisCache(ctx, RedisConfig{Addr: "127.0.0.1:1"}); err == nil {
		t.Fatal("NewRedisCache should fail when the context is canceled")
	}
}
