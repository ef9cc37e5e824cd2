package filesystem

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/lines-of-codes/litestore"
)

// Handler serves signed requests for objects below the path of Config.BaseURL:
// GET and HEAD download an object, PUT stores an object or an upload part.
func (s *Store) Handler() http.Handler {
	return http.HandlerFunc(s.serve)
}

func (s *Store) serve(w http.ResponseWriter, r *http.Request) {
	method := r.Method
	if method == http.MethodHead {
		method = http.MethodGet
	}

	if err := s.keys.Verify(method, r.URL.Path, r.URL.Query(), s.now()); err != nil {
		slog.Debug("rejected content request", "path", r.URL.Path, "err", err)
		http.Error(w, "invalid or expired signature", http.StatusForbidden)
		return
	}

	key, ok := strings.CutPrefix(r.URL.Path, s.baseURL.Path+"/")
	if !ok || key == "" || !litestore.IsValidPath(key) {
		http.Error(w, "invalid object key", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.serveObject(w, r, key)
	case http.MethodPut:
		if rest, isPart := strings.CutPrefix(key, partsRoute+"/"); isPart {
			s.putPart(w, r, rest)
			return
		}
		s.putObject(w, r, key)
	default:
		w.Header().Set("Allow", "GET, HEAD, PUT")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Store) serveObject(w http.ResponseWriter, r *http.Request, key string) {
	f, err := s.Open(r.Context(), key)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("failed to close object", "key", key, "err", closeErr)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", detectContentType(key))
	if name := r.URL.Query().Get("filename"); name != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	}

	http.ServeContent(w, r, "", info.ModTime(), f)
}

func (s *Store) putObject(w http.ResponseWriter, r *http.Request, key string) {
	if strings.HasSuffix(key, "/") {
		http.Error(w, "invalid object key", http.StatusBadRequest)
		return
	}

	if _, err := s.Put(r.Context(), key, r.Body); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Store) putPart(w http.ResponseWriter, r *http.Request, rest string) {
	uploadID, partParam, ok := strings.Cut(rest, "/")
	part, err := strconv.Atoi(partParam)
	if !ok || err != nil {
		http.Error(w, "invalid part", http.StatusBadRequest)
		return
	}

	if _, err := s.PutPart(r.Context(), uploadID, part, r.Body); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, litestore.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, litestore.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("content request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func detectContentType(key string) string {
	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		return "application/octet-stream"
	}
	return contentType
}
