package http

import (
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
)

// FrontendHandler serves the embedded web UI. Unknown paths fall back
// to index.html so the browser always lands on the app shell.
type FrontendHandler struct {
	assets fs.FS
	logger *slog.Logger
}

// NewFrontendHandler creates a handler over an embedded asset tree
// rooted at the directory containing index.html.
func NewFrontendHandler(assets fs.FS, logger *slog.Logger) *FrontendHandler {
	return &FrontendHandler{
		assets: assets,
		logger: logger.With(slog.String("handler", "frontend")),
	}
}

// Handler returns the file serving handler
func (h *FrontendHandler) Handler() http.Handler {
	fileServer := http.FileServerFS(h.assets)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/")
		if path == "" {
			path = "index.html"
		}

		if _, err := fs.Stat(h.assets, path); err != nil {
			// App-shell fallback for client-side routes.
			h.logger.DebugContext(r.Context(), "serving index fallback",
				slog.String("path", r.URL.Path))
			r.URL.Path = "/"
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
			fileServer.ServeHTTP(w, r)
			return
		}

		if strings.HasSuffix(path, ".html") {
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		}
		fileServer.ServeHTTP(w, r)
	})
}
