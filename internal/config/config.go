package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultAddr           = "0.0.0.0:3923"
	DefaultZipQueryKey    = "zip"
	DefaultThumbQueryKey  = "thumb"
	DefaultCopyBufferSize = 64 * 1024
)

// Config is intentionally small and JSON-friendly.
type Config struct {
	// Root is the directory served read-only.
	Root string `json:"root"`

	// Addr is the main listen address.
	Addr string `json:"addr,omitempty"`

	// MetricsAddr serves /metrics when set. Empty disables the listener.
	MetricsAddr string `json:"metricsAddr,omitempty"`

	LogLevel  string `json:"logLevel,omitempty"`  // debug, info, warn, error
	LogFormat string `json:"logFormat,omitempty"` // json, console

	// FollowSymlinks controls whether symlinks inside the root may be followed.
	// Default: false (symlinks are invisible).
	// If true, only links which resolve to a path still inside the root are followed.
	FollowSymlinks bool `json:"followSymlinks,omitempty"`

	// ZipQueryKey selects the archive handler, e.g. /photos/?zip=a.jpg&zip=b.jpg.
	ZipQueryKey string `json:"zipQueryKey,omitempty"`

	// ThumbQueryKey selects the thumbnail handler, e.g. /photos/a.jpg?thumb=128.
	ThumbQueryKey string `json:"thumbQueryKey,omitempty"`

	// CopyBufferSize is the per-request buffer used when streaming files.
	CopyBufferSize int `json:"copyBufferSize,omitempty"`

	// MaxConns caps simultaneously accepted connections. 0 means unlimited.
	MaxConns int `json:"maxConns,omitempty"`

	ReadHeaderTimeout Duration `json:"readHeaderTimeout,omitempty"`

	// CORSOrigins enables cross-origin GETs from the listed origins ("*" for any).
	CORSOrigins []string `json:"corsOrigins,omitempty"`

	// Autocert serves HTTPS with Let's Encrypt certificates when Domains is set.
	Autocert Autocert `json:"autocert,omitempty"`
}

type Autocert struct {
	Domains []string `json:"domains,omitempty"`
	// CacheDir stores issued certificates. Must live outside Root.
	CacheDir string `json:"cacheDir,omitempty"`
	// HTTPAddr answers ACME http-01 challenges, e.g. ":80". Optional.
	HTTPAddr string `json:"httpAddr,omitempty"`
}

// Duration is a time.Duration that reads "5s" style strings from JSON.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Load reads a JSON config file. Defaults are applied by Validate.
func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate fills defaults, makes Root absolute and checks invariants.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Root) == "" {
		return errors.New("config: root is required")
	}
	absRoot, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("config: abs root: %w", err)
	}
	st, err := os.Stat(absRoot)
	if err != nil {
		return fmt.Errorf("config: root: %w", err)
	}
	if !st.IsDir() {
		return fmt.Errorf("config: root %s is not a directory", absRoot)
	}
	c.Root = absRoot

	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.ZipQueryKey == "" {
		c.ZipQueryKey = DefaultZipQueryKey
	}
	if c.ThumbQueryKey == "" {
		c.ThumbQueryKey = DefaultThumbQueryKey
	}
	if c.ZipQueryKey == c.ThumbQueryKey {
		return fmt.Errorf("config: zipQueryKey and thumbQueryKey must differ (both %q)", c.ZipQueryKey)
	}
	if c.CopyBufferSize == 0 {
		c.CopyBufferSize = DefaultCopyBufferSize
	}
	if c.CopyBufferSize < 0 {
		return fmt.Errorf("config: copyBufferSize must be positive, got %d", c.CopyBufferSize)
	}
	if c.MaxConns < 0 {
		return fmt.Errorf("config: maxConns must not be negative, got %d", c.MaxConns)
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = Duration(10 * time.Second)
	}
	if len(c.Autocert.Domains) > 0 {
		if c.Autocert.CacheDir == "" {
			return errors.New("config: autocert.cacheDir is required with autocert.domains")
		}
		cacheAbs, err := filepath.Abs(c.Autocert.CacheDir)
		if err != nil {
			return fmt.Errorf("config: abs autocert cache: %w", err)
		}
		if cacheAbs == c.Root || strings.HasPrefix(cacheAbs, c.Root+string(filepath.Separator)) {
			return errors.New("config: autocert.cacheDir must be outside root")
		}
		c.Autocert.CacheDir = cacheAbs
	}
	return nil
}
