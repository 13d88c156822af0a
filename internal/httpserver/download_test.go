package httpserver

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fileserver/internal/config"
)

func newDownloadServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ten.txt"), "0123456789")
	writeFile(t, filepath.Join(root, "empty.bin"), "")
	writeFile(t, filepath.Join(root, "my file.txt"), "hello")
	writeFile(t, filepath.Join(root, "docs", "big.bin"), strings.Repeat("x", 200_000))
	// small buffer so copies take several chunks
	return newTestServer(t, config.Config{Root: root, CopyBufferSize: 4096}), root
}

func rangeHeader(v ...string) http.Header {
	return http.Header{"Range": v}
}

func TestDownloadWholeFile(t *testing.T) {
	srv, _ := newDownloadServer(t)

	rec := get(t, srv, "/ten.txt")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0123456789", rec.Body.String())
	assert.Equal(t, "10", rec.Header().Get("Content-Length"))
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, "attachment; filename=ten.txt", rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Empty(t, rec.Header().Get("Content-Range"))

	rec = get(t, srv, "/docs/big.bin")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 200_000, rec.Body.Len())
	assert.Equal(t, strconv.Itoa(200_000), rec.Header().Get("Content-Length"))
}

func TestDownloadRanges(t *testing.T) {
	srv, _ := newDownloadServer(t)

	tests := []struct {
		name         string
		header       http.Header
		status       int
		body         string
		contentRange string
	}{
		{"open from zero", rangeHeader("bytes=0-"), http.StatusPartialContent, "0123456789", "bytes 0-9/10"},
		{"open from middle", rangeHeader("bytes=5-"), http.StatusPartialContent, "56789", "bytes 5-9/10"},
		{"closed", rangeHeader("bytes=2-4"), http.StatusPartialContent, "234", "bytes 2-4/10"},
		{"end clamped", rangeHeader("bytes=7-100"), http.StatusPartialContent, "789", "bytes 7-9/10"},
		{"start at size", rangeHeader("bytes=10-"), http.StatusRequestedRangeNotSatisfiable, "", "bytes */10"},
		{"start past size", rangeHeader("bytes=20-30"), http.StatusRequestedRangeNotSatisfiable, "", "bytes */10"},
		{"multi range", rangeHeader("bytes=0-4,6-9"), http.StatusBadRequest, "", ""},
		{"multi header", rangeHeader("bytes=0-1", "bytes=3-4"), http.StatusBadRequest, "", ""},
		{"wrong unit", rangeHeader("items=0-4"), http.StatusBadRequest, "", ""},
		{"suffix", rangeHeader("bytes=-3"), http.StatusBadRequest, "", ""},
		{"garbage", rangeHeader("nonsense"), http.StatusBadRequest, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, "/ten.txt", tt.header)
			require.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.body, rec.Body.String())
			assert.Equal(t, tt.contentRange, rec.Header().Get("Content-Range"))
			if tt.status == http.StatusPartialContent {
				assert.Equal(t, strconv.Itoa(len(tt.body)), rec.Header().Get("Content-Length"))
			}
		})
	}
}

func TestDownloadLargeRange(t *testing.T) {
	srv, _ := newDownloadServer(t)

	rec := do(t, srv, http.MethodGet, "/docs/big.bin", rangeHeader("bytes=100000-"))
	require.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, 100_000, rec.Body.Len())
	assert.Equal(t, "bytes 100000-199999/200000", rec.Header().Get("Content-Range"))
}

func TestDownloadEmptyFileIgnoresRange(t *testing.T) {
	srv, _ := newDownloadServer(t)

	for _, h := range []http.Header{nil, rangeHeader("bytes=0-"), rangeHeader("bytes=5-9")} {
		rec := do(t, srv, http.MethodGet, "/empty.bin", h)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "0", rec.Header().Get("Content-Length"))
		assert.Empty(t, rec.Body.String())
		assert.Empty(t, rec.Header().Get("Content-Range"))
	}
}

func TestDownloadEscapesFilename(t *testing.T) {
	srv, _ := newDownloadServer(t)

	rec := get(t, srv, "/my%20file.txt")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Equal(t, "attachment; filename=my%20file.txt", rec.Header().Get("Content-Disposition"))
}

func TestDownloadMissing(t *testing.T) {
	srv, _ := newDownloadServer(t)

	for _, target := range []string{"/nope.txt", "/ten.txt/x", "/docs/missing.bin"} {
		rec := get(t, srv, target)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
	}
}

func TestEscapeDataString(t *testing.T) {
	assert.Equal(t, "a-b_c.d~e", escapeDataString("a-b_c.d~e"))
	assert.Equal(t, "my%20file%2B1.txt", escapeDataString("my file+1.txt"))
	assert.Equal(t, "%C3%A9t%C3%A9", escapeDataString("été"))
	assert.Equal(t, "a%2Fb", escapeDataString("a/b"))
}
