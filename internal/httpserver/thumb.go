package httpserver

import (
	"bytes"
	"image"
	"image/jpeg"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	// decoders
	_ "image/gif"
	_ "image/png"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"fileserver/internal/fsutil"
	"fileserver/internal/logging"
	"fileserver/internal/metrics"
)

const (
	defaultThumbSize = 256
	minThumbSize     = 16
	maxThumbSize     = 1024
)

// thumbHandler renders a JPEG preview of an image file: /a.png?thumb=128.
type thumbHandler struct {
	resolver *fsutil.Resolver
	queryKey string
}

func (h *thumbHandler) Name() string { return "thumb" }

func (h *thumbHandler) Applies(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	if _, ok := r.URL.Query()[h.queryKey]; !ok {
		return false
	}
	f := h.resolver.Stat(h.resolver.Resolve(r.URL.Path))
	return f.IsFile() && isImageExt(strings.ToLower(filepath.Ext(f.Name)))
}

func (h *thumbHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f := h.resolver.Stat(h.resolver.Resolve(r.URL.Path))
	b, err := makeThumb(f.Path, thumbSize(r.URL.Query().Get(h.queryKey)))
	if err != nil {
		logging.WithContext(r.Context()).Debug("thumbnail failed", zap.String("file", f.Path), zap.Error(err))
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	n, _ := w.Write(b)
	metrics.RecordBytesSent(h.Name(), int64(n))
}

func thumbSize(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return defaultThumbSize
	}
	return min(max(n, minThumbSize), maxThumbSize)
}

func isImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	default:
		return false
	}
}

// makeThumb decodes the image at absPath and re-encodes it as a JPEG that
// fits in a box x box square.
func makeThumb(absPath string, box int) ([]byte, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	sb := src.Bounds()
	if sb.Empty() {
		return nil, os.ErrInvalid
	}
	nw, nh := fitBox(sb.Dx(), sb.Dy(), box)
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: 82}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// fitBox scales w x h down, keeping the aspect ratio, so the longer edge is
// at most box. Images already inside the box keep their size.
func fitBox(w, h, box int) (int, int) {
	long := max(w, h)
	if long <= box {
		return w, h
	}
	scale := float64(box) / float64(long)
	return max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale))
}
