package httpserver

import (
	"embed"
	"html/template"
	"io"
	"math"
	"strconv"
	"time"
)

// ListingRenderer draws a directory listing page.
type ListingRenderer interface {
	RenderListing(w io.Writer, l Listing) error
}

//go:embed web/listing.html
var embeddedWeb embed.FS

type htmlRenderer struct {
	tmpl *template.Template
}

func newHTMLRenderer() (*htmlRenderer, error) {
	t, err := template.New("listing.html").Funcs(template.FuncMap{
		"humanSize": humanSize,
		"mtime":     func(t time.Time) string { return t.Format("2006-01-02 15:04") },
	}).ParseFS(embeddedWeb, "web/listing.html")
	if err != nil {
		return nil, err
	}
	return &htmlRenderer{tmpl: t}, nil
}

func (h *htmlRenderer) RenderListing(w io.Writer, l Listing) error {
	return h.tmpl.Execute(w, l)
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + " B"
	}
	exp := int(math.Log(float64(n)) / math.Log(unit))
	if exp > 6 {
		exp = 6
	}
	v := float64(n) / math.Pow(unit, float64(exp))
	return strconv.FormatFloat(v, 'f', 1, 64) + " " + string("KMGTPE"[exp-1]) + "iB"
}
