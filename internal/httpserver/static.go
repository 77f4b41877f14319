package httpserver

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"
)

//go:embed assets/index.html
var embeddedAssets embed.FS

var assetsRoot, _ = fs.Sub(embeddedAssets, "assets")

// serveStatic serves an embedded static asset, falling back to index.html
// for any path that doesn't match a file (SPA routing). No front-end
// assets are authored in this module (spec.md §1, out of scope); only the
// serving path and fallback behavior are implemented and tested.
func (h *handlers) serveStatic(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/")
	if name == "" {
		name = "index.html"
	}

	if f, err := assetsRoot.Open(name); err == nil {
		f.Close()
		http.ServeFileFS(w, r, assetsRoot, name)
		return
	}
	http.ServeFileFS(w, r, assetsRoot, "index.html")
}
