package preview

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const DefaultPrefix = "/preview/"

// Registry serves the currently selected audio file to the webview so it can
// be played back before submission. Only the latest selection is reachable.
type Registry struct {
	prefix string

	mu    sync.RWMutex
	token string
	path  string
}

func NewRegistry(prefix string) *Registry {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Registry{prefix: prefix}
}

// Publish makes path playable and returns its URL.
func (r *Registry) Publish(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("cannot preview %q: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("cannot preview %q: not a regular file", path)
	}

	token := uuid.NewString()

	r.mu.Lock()
	r.token = token
	r.path = path
	r.mu.Unlock()

	return r.prefix + token + "/" + url.PathEscape(filepath.Base(path)), nil
}

// Clear withdraws the current preview.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token = ""
	r.path = ""
}

func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest, ok := strings.CutPrefix(req.URL.Path, r.prefix)
	if !ok {
		http.NotFound(w, req)
		return
	}
	token, _, _ := strings.Cut(rest, "/")

	r.mu.RLock()
	current, path := r.token, r.path
	r.mu.RUnlock()

	if token == "" || token != current {
		http.NotFound(w, req)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		http.NotFound(w, req)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "preview unavailable", http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, req, filepath.Base(path), info.ModTime(), f)
}
