package httpserver

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rs/cors"

	"fileserver/internal/config"
	"fileserver/internal/fsutil"
	"fileserver/internal/logging"
	"fileserver/internal/metrics"
)

type Options struct {
	Config config.Config
	// Renderer draws directory listings. Nil uses the embedded HTML page.
	Renderer ListingRenderer
}

type Server struct {
	cfg      config.Config
	resolver *fsutil.Resolver
	pipeline *Pipeline
}

// New builds the handler pipeline for opts.Config, which must already be
// validated.
func New(opts Options) (*Server, error) {
	cfg := opts.Config
	renderer := opts.Renderer
	if renderer == nil {
		r, err := newHTMLRenderer()
		if err != nil {
			return nil, err
		}
		renderer = r
	}
	bufSize := cfg.CopyBufferSize
	if bufSize <= 0 {
		bufSize = config.DefaultCopyBufferSize
	}
	zipKey := cfg.ZipQueryKey
	if zipKey == "" {
		zipKey = config.DefaultZipQueryKey
	}
	thumbKey := cfg.ThumbQueryKey
	if thumbKey == "" {
		thumbKey = config.DefaultThumbQueryKey
	}

	res := fsutil.NewResolver(cfg.Root, cfg.FollowSymlinks)
	return &Server{
		cfg:      cfg,
		resolver: res,
		pipeline: NewPipeline(notFoundHandler{},
			&directoryHandler{resolver: res, renderer: renderer},
			&downloadHandler{resolver: res, bufSize: bufSize},
			&zipHandler{resolver: res, queryKey: zipKey, bufSize: bufSize},
			&thumbHandler{resolver: res, queryKey: thumbKey},
		),
	}, nil
}

// Pipeline exposes the dispatcher, mainly for tests.
func (s *Server) Pipeline() *Pipeline { return s.pipeline }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// health
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})

	// everything else goes through the file pipeline
	mux.Handle("/", s.pipeline)

	var h http.Handler = withHeaders(mux)
	if len(s.cfg.CORSOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet},
			AllowedHeaders: []string{"Range"},
			ExposedHeaders: []string{"Accept-Ranges", "Content-Range", "Content-Length", "Content-Disposition", "X-Request-ID"},
		}).Handler(h)
	}
	h = metrics.Middleware(h)
	return logging.Middleware(h)
}

func withHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Basic hardening / UX.
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// --- helpers ---

// setAttachment marks the response as a download named filename.
func setAttachment(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Disposition", "attachment; filename="+escapeDataString(filename))
}

// escapeDataString percent-encodes every byte outside the RFC 3986 unreserved
// set, so the result is safe in headers and as a relative URL segment.
func escapeDataString(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
		}
	}
	return b.String()
}

func contentTypeForName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return "application/octet-stream"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	// Fallbacks for systems with sparse mime tables.
	switch ext {
	// images
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	// video
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	// audio
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	// docs/text
	case ".pdf":
		return "application/pdf"
	case ".txt", ".log", ".md", ".json", ".yaml", ".yml", ".toml", ".ini", ".conf", ".go", ".sh":
		return "text/plain; charset=utf-8"
	// archives
	case ".zip":
		return "application/zip"
	case ".tar":
		return "application/x-tar"
	case ".gz":
		return "application/gzip"
	default:
		return "application/octet-stream"
	}
}
