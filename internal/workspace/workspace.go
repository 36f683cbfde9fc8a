package workspace

import (
	"os"
	"path/filepath"
)

// rootMarkers are files that mark a project root, nearest first.
var rootMarkers = []string{
	"islet.yml",
	"islet.yaml",
	"islet.toml",
	"islet.json",
	"package.json",
}

func NormalizeRoot(path string) (string, error) {
	if path == "" {
		path = "."
	}
	return filepath.Abs(path)
}

// FindRoot walks up from start to the nearest directory holding an islet
// config or a package.json. It falls back to start itself.
func FindRoot(start string) (string, error) {
	abs, err := NormalizeRoot(start)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		abs = filepath.Dir(abs)
	}
	for dir := abs; ; dir = filepath.Dir(dir) {
		if hasRootMarker(dir) {
			return dir, nil
		}
		if filepath.Dir(dir) == dir {
			return abs, nil
		}
	}
}

func hasRootMarker(dir string) bool {
	for _, name := range rootMarkers {
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}
