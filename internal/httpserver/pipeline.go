package httpserver

import (
	"net/http"

	"go.uber.org/zap"

	"fileserver/internal/logging"
	"fileserver/internal/metrics"
)

// Handler is one capability of the file server. Applies must not touch the
// response; it may stat the filesystem. A handler whose Applies returned true
// owns the whole response.
type Handler interface {
	http.Handler
	Name() string
	Applies(r *http.Request) bool
}

// Pipeline dispatches each request to the first applicable handler, or to the
// fallback when none applies.
type Pipeline struct {
	handlers []Handler
	fallback Handler
}

func NewPipeline(fallback Handler, handlers ...Handler) *Pipeline {
	return &Pipeline{handlers: handlers, fallback: fallback}
}

// Select returns the handler that would serve r.
func (p *Pipeline) Select(r *http.Request) Handler {
	for _, h := range p.handlers {
		if h.Applies(r) {
			return h
		}
	}
	return p.fallback
}

func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h := p.Select(r)
	metrics.RecordDispatch(h.Name())
	logging.WithContext(r.Context()).Debug("dispatch",
		zap.String("handler", h.Name()),
		zap.String("path", r.URL.Path),
	)
	h.ServeHTTP(w, r)
}

// isPlainGet matches GET requests without any query parameters.
func isPlainGet(r *http.Request) bool {
	return r.Method == http.MethodGet && len(r.URL.Query()) == 0
}
