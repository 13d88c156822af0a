package httpserver

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"fileserver/internal/config"
	"fileserver/internal/logging"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// useTestLogger routes request logs to t.Log for the duration of the test.
func useTestLogger(t *testing.T) {
	t.Helper()
	prev := logging.L()
	logging.Set(zaptest.NewLogger(t))
	t.Cleanup(func() { logging.Set(prev) })
}

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	useTestLogger(t)
	srv, err := New(Options{Config: cfg})
	require.NoError(t, err)
	return srv
}

// do runs one request through the full handler chain.
func do(t *testing.T, srv *Server, method, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, srv, http.MethodGet, target, nil)
}
