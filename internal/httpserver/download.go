package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"fileserver/internal/fsutil"
	"fileserver/internal/logging"
	"fileserver/internal/metrics"
	"fileserver/internal/stream"
)

// downloadHandler serves a single file, honoring one byte range.
type downloadHandler struct {
	resolver *fsutil.Resolver
	bufSize  int
}

func (h *downloadHandler) Name() string { return "download" }

func (h *downloadHandler) Applies(r *http.Request) bool {
	return isPlainGet(r) && h.file(r).IsFile()
}

func (h *downloadHandler) file(r *http.Request) fsutil.Entry {
	return h.resolver.Stat(h.resolver.Resolve(r.URL.Path))
}

func (h *downloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logging.WithContext(r.Context())
	file := h.file(r)
	if !file.IsFile() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Accept-Ranges", "bytes")

	status := http.StatusOK
	offset, length := int64(0), file.Size
	if raw, ok := r.Header["Range"]; ok && file.Size > 0 {
		br, err := resolveRange(strings.Join(raw, ","), file.Size)
		switch {
		case errors.Is(err, errUnsatisfiable):
			metrics.RecordRange("unsatisfiable")
			w.Header().Set("Content-Range", "bytes */"+strconv.FormatInt(file.Size, 10))
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		case err != nil:
			metrics.RecordRange("invalid")
			log.Debug("bad range", zap.Strings("range", raw), zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		metrics.RecordRange("partial")
		status = http.StatusPartialContent
		offset, length = br.offset, br.length
		w.Header().Set("Content-Range", br.contentRange())
	} else {
		metrics.RecordRange("none")
	}

	if length == 0 {
		h.writeHeaders(w, file, 0)
		w.WriteHeader(status)
		return
	}

	f, err := os.Open(file.Path)
	if err != nil {
		log.Warn("open failed", zap.String("file", file.Path), zap.Error(err))
		w.Header().Del("Content-Range")
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			log.Warn("seek failed", zap.String("file", file.Path), zap.Error(err))
			w.Header().Del("Content-Range")
			http.NotFound(w, r)
			return
		}
	}

	h.writeHeaders(w, file, length)
	w.WriteHeader(status)

	n, err := stream.CopyN(r.Context(), w, f, length, make([]byte, h.bufSize))
	metrics.RecordBytesSent(h.Name(), n)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.Debug("download canceled", zap.String("file", file.Path), zap.Int64("sent", n))
			return
		}
		log.Warn("download aborted", zap.String("file", file.Path), zap.Int64("sent", n), zap.Error(err))
	}
}

func (h *downloadHandler) writeHeaders(w http.ResponseWriter, file fsutil.Entry, length int64) {
	setAttachment(w, file.Name)
	w.Header().Set("Content-Type", contentTypeForName(file.Name))
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
}
