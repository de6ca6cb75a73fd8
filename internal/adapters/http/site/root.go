// Package site serves the quiz front end as the catch-all route.
package site

import (
	"context"
	"net/http"
	"path"
)

// Handler serves files from a file system and falls back to index.html for
// paths that do not name a file, so client-side routes resolve.
type Handler struct {
	fs    http.FileSystem
	files http.Handler
}

// New serves dir when set, otherwise the embedded site.
func New(dir string) *Handler {
	fsys := FS()
	if dir != "" {
		fsys = http.Dir(dir)
	}
	return &Handler{fs: fsys, files: http.FileServer(fsys)}
}

// Register attaches the site as the GET fallback on mux.
func Register(_ context.Context, mux *http.ServeMux, dir string) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("GET /", New(dir))
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.isFile(path.Clean("/" + r.URL.Path)) {
		h.files.ServeHTTP(w, r)
		return
	}
	index := r.Clone(r.Context())
	index.URL.Path = "/"
	h.files.ServeHTTP(w, index)
}

func (h *Handler) isFile(name string) bool {
	if name == "/" {
		return false
	}
	f, err := h.fs.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()
	st, err := f.Stat()
	return err == nil && !st.IsDir()
}
