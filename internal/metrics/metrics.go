// Package metrics provides Prometheus metrics for the file server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fileserver_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fileserver_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fileserver_dispatch_total",
			Help: "Requests dispatched to each pipeline handler",
		},
		[]string{"handler"},
	)

	bytesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fileserver_bytes_sent_total",
			Help: "File bytes written to response bodies",
		},
		[]string{"handler"},
	)

	rangeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fileserver_range_requests_total",
			Help: "Range header outcomes on downloads",
		},
		[]string{"result"},
	)

	zipEntriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fileserver_zip_entries_total",
			Help: "Files written into streamed zip archives",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordDispatch counts a request handled by the named pipeline handler.
func RecordDispatch(handler string) {
	dispatchTotal.WithLabelValues(handler).Inc()
}

// RecordBytesSent adds n body bytes for the named handler.
func RecordBytesSent(handler string, n int64) {
	if n > 0 {
		bytesSent.WithLabelValues(handler).Add(float64(n))
	}
}

// RecordRange records how a download's Range header was answered:
// "none", "partial", "invalid" or "unsatisfiable".
func RecordRange(result string) {
	rangeRequestsTotal.WithLabelValues(result).Inc()
}

// RecordZipEntry counts one file written into an archive.
func RecordZipEntry() {
	zipEntriesTotal.Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		defer func() {
			RecordHTTPRequest(r.Method, rw.statusCode, time.Since(start))
		}()
		next.ServeHTTP(rw, r)
	})
}
