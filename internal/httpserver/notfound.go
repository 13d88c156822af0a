package httpserver

import "net/http"

// notFoundHandler is the pipeline's terminal fallback.
type notFoundHandler struct{}

func (notFoundHandler) Name() string { return "notfound" }

func (notFoundHandler) Applies(*http.Request) bool { return true }

func (notFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotFound)
}
