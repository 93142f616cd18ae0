// Package config loads ssrpreload settings from a TOML file.
//
// Every field has a default, so an empty or missing file yields a working
// production configuration. Durations are written as strings:
//
//	[preload]
//	settle_timeout = "50ms"
package config

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/ssrpreload/pkg/cache"
	perr "github.com/matzehuels/ssrpreload/pkg/errors"
	"github.com/matzehuels/ssrpreload/pkg/instrument"
	"github.com/matzehuels/ssrpreload/pkg/stream"
)

// Cache backends.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Config is the root of the configuration file.
type Config struct {
	Server     Server     `toml:"server"`
	Manifest   Manifest   `toml:"manifest"`
	Template   Template   `toml:"template"`
	Preload    Preload    `toml:"preload"`
	Cache      Cache      `toml:"cache"`
	Instrument Instrument `toml:"instrument"`
	Log        Log        `toml:"log"`
}

type Server struct {
	Addr       string `toml:"addr"`
	Base       string `toml:"base"`
	StaticDir  string `toml:"static_dir"`
	Playground bool   `toml:"playground"`
}

type Manifest struct {
	Path string `toml:"path"`
	// Dev skips the manifest entirely; no preloads are emitted.
	Dev bool `toml:"dev"`
}

type Template struct {
	Path string `toml:"path"`
}

type Preload struct {
	IncludeEntrypoint bool     `toml:"include_entrypoint"`
	Entry             string   `toml:"entry"`
	PreloadAssets     bool     `toml:"preload_assets"`
	EarlyHints        bool     `toml:"early_hints"`
	SettleTimeout     Duration `toml:"settle_timeout"`
	AsyncEntry        bool     `toml:"async_entry"`
	ErrorPage         string   `toml:"error_page"`
	// StrictContext panics when a unit reports without a collector.
	StrictContext bool `toml:"strict_context"`
}

type Cache struct {
	Backend   string   `toml:"backend"`
	Dir       string   `toml:"dir"`
	RedisAddr string   `toml:"redis_addr"`
	RedisDB   int      `toml:"redis_db"`
	TTL       Duration `toml:"ttl"`
	Prefix    string   `toml:"prefix"`
}

type Instrument struct {
	Root         string `toml:"root"`
	Out          string `toml:"out"`
	Include      string `toml:"include"`
	HelperModule string `toml:"helper_module"`
	Target       string `toml:"target"`
}

type Log struct {
	Level string `toml:"level"`
}

// Duration is a time.Duration written as a string such as "1h" or "50ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Defaults returns the configuration used when no file is given.
func Defaults() Config {
	return Config{
		Server: Server{
			Addr:      ":5173",
			Base:      "/",
			StaticDir: "dist/client",
		},
		Manifest: Manifest{Path: "dist/client/.vite/manifest.json"},
		Template: Template{Path: "dist/client/index.html"},
		Preload: Preload{
			PreloadAssets: true,
			EarlyHints:    true,
			SettleTimeout: Duration(stream.DefaultSettleTimeout),
			ErrorPage:     stream.DefaultErrorPage,
		},
		Cache: Cache{
			Backend:   BackendMemory,
			RedisAddr: "localhost:6379",
			TTL:       Duration(cache.DefaultTTL),
		},
		Instrument: Instrument{
			Root:         ".",
			Out:          "dist/instrumented",
			Include:      instrument.DefaultInclude.String(),
			HelperModule: instrument.DefaultHelperModule,
			Target:       instrument.DefaultTarget,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads path on top of [Defaults] and validates the result. An empty
// path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, perr.Wrap(perr.ErrCodeConfiguration, err, "read config")
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse decodes TOML data into cfg, keeping values the data does not set,
// and validates the result. Unknown keys are rejected.
func Parse(data []byte, cfg *Config) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return perr.Wrap(perr.ErrCodeConfiguration, err, "parse config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return perr.New(perr.ErrCodeConfiguration, "unknown config key %q", undecoded[0].String())
	}
	return cfg.Validate()
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Cache.Backend {
	case BackendNone, BackendMemory, BackendFile, BackendRedis:
	default:
		return perr.New(perr.ErrCodeConfiguration, "unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend == BackendRedis && c.Cache.RedisAddr == "" {
		return perr.New(perr.ErrCodeConfiguration, "cache.redis_addr is required for the redis backend")
	}
	if c.Cache.TTL < 0 {
		return perr.New(perr.ErrCodeConfiguration, "cache.ttl cannot be negative")
	}
	if c.Preload.SettleTimeout < 0 {
		return perr.New(perr.ErrCodeConfiguration, "preload.settle_timeout cannot be negative")
	}
	if _, err := regexp.Compile(c.Instrument.Include); err != nil {
		return perr.Wrap(perr.ErrCodeConfiguration, err, "instrument.include")
	}
	if c.Server.Addr == "" {
		return perr.New(perr.ErrCodeConfiguration, "server.addr cannot be empty")
	}
	if !c.Manifest.Dev && c.Manifest.Path == "" {
		return perr.New(perr.ErrCodeConfiguration, "manifest.path is required outside dev mode")
	}
	if c.Template.Path == "" {
		return perr.New(perr.ErrCodeConfiguration, "template.path cannot be empty")
	}
	return nil
}

// IncludePattern compiles Instrument.Include.
func (c Config) IncludePattern() *regexp.Regexp {
	re, err := regexp.Compile(c.Instrument.Include)
	if err != nil {
		return instrument.DefaultInclude
	}
	return re
}

// OpenCache creates the configured cache backend. The file backend
// defaults to a directory under the user cache dir.
func (c Cache) OpenCache(ctx context.Context) (cache.Cache, error) {
	switch c.Backend {
	case BackendNone:
		return cache.NewNullCache(), nil
	case BackendFile:
		dir := c.Dir
		if dir == "" {
			var err error
			if dir, err = DefaultCacheDir(); err != nil {
				return nil, err
			}
		}
		fc, err := cache.NewFileCache(dir)
		if err != nil {
			return nil, perr.Wrap(perr.ErrCodeConfiguration, err, "open file cache")
		}
		return fc, nil
	case BackendRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: c.RedisAddr, DB: c.RedisDB})
		if err != nil {
			return nil, perr.Wrap(perr.ErrCodeConfiguration, err, "connect to redis")
		}
		return rc, nil
	default:
		return cache.NewMemoryCache(), nil
	}
}

// Keyer returns the resolution cache keyer, scoped by Prefix when set.
func (c Cache) Keyer() cache.Keyer {
	k := cache.NewDefaultKeyer()
	if c.Prefix != "" {
		k = cache.NewScopedKeyer(k, c.Prefix)
	}
	return k
}

// DefaultCacheDir returns the file cache location under the user cache dir.
func DefaultCacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", perr.Wrap(perr.ErrCodeConfiguration, err, "locate user cache dir")
	}
	return filepath.Join(base, "ssrpreload"), nil
}
