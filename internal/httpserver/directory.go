package httpserver

import (
	"bytes"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"fileserver/internal/fsutil"
	"fileserver/internal/logging"
)

// Listing is what a ListingRenderer gets to draw a directory page.
type Listing struct {
	// Path is the request path as sent by the client, e.g. "/docs/".
	Path string
	// Host is the request host without port.
	Host    string
	Entries []fsutil.Entry
}

func (l Listing) HasParent() bool { return HasParent(l.Path) }

func (l Listing) ParentLink() string { return ParentLink(l.Path) }

func (l Listing) ChildLink(e fsutil.Entry) string { return ChildLink(e.Name, l.Path) }

// HasParent is false only for an empty path or the root "/".
func HasParent(currentPath string) bool {
	p := strings.TrimSpace(currentPath)
	return p != "" && p != "/"
}

// ParentLink returns the relative href of the parent directory as a browser
// resolves it against currentPath: "../" from "/docs/", "./" from "/docs".
// It is empty when there is no parent.
func ParentLink(currentPath string) string {
	if !HasParent(currentPath) {
		return ""
	}
	if strings.HasSuffix(currentPath, "/") {
		return "../"
	}
	return "./"
}

// ChildLink returns the relative href of name inside the directory shown at
// currentPath. Without a trailing slash the browser resolves relative links
// against the parent, so the last segment is repeated: "docs/a.txt" from
// "/docs", "a.txt" from "/docs/".
func ChildLink(name, currentPath string) string {
	last := currentPath[strings.LastIndexByte(currentPath, '/')+1:]
	if last == "" {
		return escapeDataString(name)
	}
	return escapeDataString(last) + "/" + escapeDataString(name)
}

// directoryHandler lists an existing directory.
type directoryHandler struct {
	resolver *fsutil.Resolver
	renderer ListingRenderer
}

func (h *directoryHandler) Name() string { return "directory" }

func (h *directoryHandler) Applies(r *http.Request) bool {
	if !isPlainGet(r) {
		return false
	}
	d := h.dir(r)
	return d.Exists && d.IsDir
}

func (h *directoryHandler) dir(r *http.Request) fsutil.Entry {
	return h.resolver.Stat(h.resolver.Resolve(r.URL.Path))
}

func (h *directoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logging.WithContext(r.Context())
	kids, err := h.resolver.Children(r.Context(), h.dir(r))
	if err != nil {
		log.Warn("list failed", zap.String("path", r.URL.Path), zap.Error(err))
		http.NotFound(w, r)
		return
	}
	sort.SliceStable(kids, func(i, j int) bool {
		if kids[i].IsDir != kids[j].IsDir {
			return kids[i].IsDir
		}
		return strings.ToLower(kids[i].Name) < strings.ToLower(kids[j].Name)
	})

	var buf bytes.Buffer
	err = h.renderer.RenderListing(&buf, Listing{
		Path:    r.URL.Path,
		Host:    hostName(r.Host),
		Entries: kids,
	})
	if err != nil {
		log.Error("render listing", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

func hostName(hostport string) string {
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return host
	}
	return hostport
}
