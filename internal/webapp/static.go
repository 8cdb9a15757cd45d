package webapp

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// StaticHandler serves the web shell from dir. Paths without a file
// extension fall back to index.html so reader deep links resolve.
func StaticHandler(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rel := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		indexPath := filepath.Join(dir, "index.html")

		if rel == "" || !strings.Contains(filepath.Base(rel), ".") {
			http.ServeFile(w, r, indexPath)
			return
		}

		filePath := filepath.Join(dir, rel)
		if _, err := os.Stat(filePath); err != nil {
			http.ServeFile(w, r, indexPath)
			return
		}
		http.ServeFile(w, r, filePath)
	})
}
