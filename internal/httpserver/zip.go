package httpserver

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"fileserver/internal/fsutil"
	"fileserver/internal/logging"
	"fileserver/internal/metrics"
	"fileserver/internal/stream"
)

// zipHandler streams a query-selected set of files and directories as one
// stored (uncompressed) zip archive.
//
//	GET /photos/?zip            whole directory
//	GET /photos/?zip=a&zip=b/   just a and b, relative to /photos
type zipHandler struct {
	resolver *fsutil.Resolver
	queryKey string
	bufSize  int
}

func (h *zipHandler) Name() string { return "zip" }

func (h *zipHandler) Applies(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	if _, ok := r.URL.Query()[h.queryKey]; !ok {
		return false
	}
	return len(h.selectFiles(r)) > 0
}

func (h *zipHandler) requestRoot(r *http.Request) fsutil.Entry {
	return h.resolver.Stat(h.resolver.Resolve(r.URL.Path))
}

// selectFiles returns the existing, de-duplicated entries named by the query.
// A missing or single blank value selects the request path itself; other
// values are taken relative to the request path, which must be a directory.
func (h *zipHandler) selectFiles(r *http.Request) []fsutil.Entry {
	root := h.requestRoot(r)
	values := r.URL.Query()[h.queryKey]

	var candidates []fsutil.Entry
	if len(values) == 0 || (len(values) == 1 && strings.TrimSpace(values[0]) == "") {
		candidates = []fsutil.Entry{root}
	} else if root.Exists && root.IsDir {
		for _, v := range values {
			if strings.TrimSpace(v) == "" {
				continue
			}
			candidates = append(candidates, h.resolver.ResolveUnder(root.Path, v))
		}
	}

	seen := make(map[string]bool, len(candidates))
	out := make([]fsutil.Entry, 0, len(candidates))
	for _, e := range candidates {
		if !e.Exists || seen[e.Path] {
			continue
		}
		seen[e.Path] = true
		out = append(out, e)
	}
	return out
}

func (h *zipHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.WithContext(ctx)

	entries := h.selectFiles(r)
	if len(entries) == 0 {
		http.NotFound(w, r)
		return
	}
	root := h.requestRoot(r)
	if len(entries) == 1 && entries[0].IsDir {
		// a lone directory becomes the archive root
		root = entries[0]
		kids, err := h.resolver.Children(ctx, root)
		if err != nil {
			log.Warn("zip: list failed", zap.String("dir", root.Path), zap.Error(err))
			http.NotFound(w, r)
			return
		}
		entries = kids
	}
	base := root.Path
	if !root.IsDir {
		base = filepath.Dir(root.Path)
	}

	w.Header().Set("Content-Type", "application/zip")
	setAttachment(w, root.Name+".zip")
	w.WriteHeader(http.StatusOK)

	zw := zip.NewWriter(w)
	n, err := writeArchive(ctx, zw, h.resolver, entries, base, make([]byte, h.bufSize))
	metrics.RecordBytesSent(h.Name(), n)
	if err == nil {
		err = zw.Close()
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.Debug("zip canceled", zap.String("root", base), zap.Int64("sent", n))
		} else {
			log.Warn("zip aborted", zap.String("root", base), zap.Int64("sent", n), zap.Error(err))
		}
		// the archive is unusable; make sure the client sees a broken transfer
		panic(http.ErrAbortHandler)
	}
}

// writeArchive writes every file under entries into zw as a stored entry whose
// name is its path relative to base. Directories only contribute their files.
// A directory whose real path is already one of its own ancestors is a
// symlink loop and is skipped; a name that was already written is skipped too.
// It returns the number of file bytes copied.
func writeArchive(ctx context.Context, zw *zip.Writer, res *fsutil.Resolver, entries []fsutil.Entry, base string, buf []byte) (int64, error) {
	a := &archiveWriter{
		zw:       zw,
		resolver: res,
		base:     base,
		buf:      buf,
		names:    map[string]bool{},
	}
	for _, e := range entries {
		if err := a.write(ctx, e, a.ancestors(e.Path)); err != nil {
			return a.written, err
		}
	}
	return a.written, nil
}

type archiveWriter struct {
	zw       *zip.Writer
	resolver *fsutil.Resolver
	base     string
	buf      []byte
	// archive names already written
	names   map[string]bool
	written int64
}

// ancestors returns the real paths of the directories between base and abs,
// base included, abs excluded.
func (a *archiveWriter) ancestors(abs string) []string {
	var chain []string
	for d := filepath.Dir(abs); fsutil.Within(a.base, d); d = filepath.Dir(d) {
		chain = append(chain, a.resolver.RealPath(fsutil.Entry{Path: d}))
		if d == a.base {
			break
		}
	}
	return chain
}

// write adds e, recursing into directories. chain holds the real paths of the
// directories currently being walked above e.
func (a *archiveWriter) write(ctx context.Context, e fsutil.Entry, chain []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !e.Exists {
		return nil
	}
	if !e.IsDir {
		return a.writeFile(ctx, e)
	}
	real := a.resolver.RealPath(e)
	if slices.Contains(chain, real) {
		return nil
	}
	kids, err := a.resolver.Children(ctx, e)
	if err != nil {
		return fmt.Errorf("list %s: %w", e.Path, err)
	}
	chain = append(slices.Clip(chain), real)
	for _, k := range kids {
		if err := a.write(ctx, k, chain); err != nil {
			return err
		}
	}
	return nil
}

func (a *archiveWriter) writeFile(ctx context.Context, e fsutil.Entry) error {
	name := archivePath(a.base, e.Path)
	if a.names[name] {
		return nil
	}
	a.names[name] = true

	f, err := os.Open(e.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", e.Path, err)
	}
	defer f.Close()

	hdr := &zip.FileHeader{
		Name:     name,
		Method:   zip.Store,
		Modified: e.ModTime,
	}
	hdr.SetMode(0o644)
	wr, err := a.zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("zip header %s: %w", hdr.Name, err)
	}
	n, err := stream.Copy(ctx, wr, f, a.buf)
	a.written += n
	if err != nil {
		return fmt.Errorf("copy %s: %w", e.Path, err)
	}
	metrics.RecordZipEntry()
	return nil
}

// archivePath strips base and exactly one following separator from abs and
// joins the remaining segments with forward slashes. A backslash inside a
// segment becomes '_' so extractors do not read it as a separator.
func archivePath(base, abs string) string {
	if !strings.HasPrefix(abs, base) {
		return segmentName(filepath.Base(abs))
	}
	rel := strings.TrimPrefix(abs, base)
	rel = strings.TrimPrefix(rel, string(filepath.Separator))
	parts := strings.Split(rel, string(filepath.Separator))
	for i, p := range parts {
		parts[i] = segmentName(p)
	}
	return strings.Join(parts, "/")
}

func segmentName(s string) string {
	return strings.ReplaceAll(s, `\`, "_")
}
