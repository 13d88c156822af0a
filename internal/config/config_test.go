package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAndValidate(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(t.TempDir(), "cfg.json")
	body := `{
		"root": "` + filepath.ToSlash(root) + `",
		"metricsAddr": "127.0.0.1:9090",
		"followSymlinks": true,
		"readHeaderTimeout": "3s",
		"corsOrigins": ["*"]
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, filepath.Clean(root), cfg.Root)
	assert.Equal(t, DefaultAddr, cfg.Addr)
	assert.Equal(t, "127.0.0.1:9090", cfg.MetricsAddr)
	assert.True(t, cfg.FollowSymlinks)
	assert.Equal(t, "zip", cfg.ZipQueryKey)
	assert.Equal(t, "thumb", cfg.ThumbQueryKey)
	assert.Equal(t, DefaultCopyBufferSize, cfg.CopyBufferSize)
	assert.Equal(t, 3*time.Second, time.Duration(cfg.ReadHeaderTimeout))
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "read config")

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"root": `), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "parse config")

	require.NoError(t, os.WriteFile(path, []byte(`{"root": "/x", "readHeaderTimeout": 5}`), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"missing root", Config{}, "root is required"},
		{"root not found", Config{Root: filepath.Join(root, "nope")}, "root"},
		{"root is file", Config{Root: file}, "not a directory"},
		{"same keys", Config{Root: root, ZipQueryKey: "q", ThumbQueryKey: "q"}, "must differ"},
		{"negative buffer", Config{Root: root, CopyBufferSize: -1}, "copyBufferSize"},
		{"negative conns", Config{Root: root, MaxConns: -2}, "maxConns"},
		{"autocert without cache", Config{Root: root, Autocert: Autocert{Domains: []string{"example.org"}}}, "cacheDir"},
		{"autocert cache in root", Config{Root: root, Autocert: Autocert{Domains: []string{"example.org"}, CacheDir: filepath.Join(root, "certs")}}, "outside root"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
