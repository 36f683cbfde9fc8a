package resolve

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ben-ranford/islet/internal/safeio"
)

var probeExtensions = []string{".tsx", ".ts", ".jsx", ".js", ".mjs", ".cjs", ".mts", ".cts", ".mdx"}

type alias struct {
	from string
	to   string
}

type packageJSON struct {
	Main   string `json:"main"`
	Module string `json:"module"`
}

// FS resolves specifiers against a project directory the way a bundler
// would: relative and root-absolute paths with extension and index probing,
// prefix aliases, and packages under node_modules. Results are memoized per
// importer directory.
type FS struct {
	root    string
	aliases []alias

	mu    sync.Mutex
	cache map[string]*ResolvedID
}

func NewFS(root string, aliases map[string]string) *FS {
	ordered := make([]alias, 0, len(aliases))
	for from, to := range aliases {
		if strings.TrimSpace(from) == "" {
			continue
		}
		ordered = append(ordered, alias{from: from, to: to})
	}
	// longest prefix first
	sort.Slice(ordered, func(i, j int) bool {
		if len(ordered[i].from) != len(ordered[j].from) {
			return len(ordered[i].from) > len(ordered[j].from)
		}
		return ordered[i].from < ordered[j].from
	})
	return &FS{
		root:    filepath.Clean(root),
		aliases: ordered,
		cache:   make(map[string]*ResolvedID),
	}
}

func (r *FS) Root() string {
	return r.root
}

func (r *FS) Resolve(ctx context.Context, specifier string, importer string) (*ResolvedID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	specifier = stripQuery(specifier)
	if specifier == "" {
		return nil, nil
	}

	importerDir := r.root
	if strings.TrimSpace(importer) != "" {
		importerDir = filepath.Dir(importer)
	}
	key := importerDir + "\x00" + specifier

	r.mu.Lock()
	cached, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		return copyID(cached), nil
	}

	resolved := r.resolve(specifier, importerDir)
	r.mu.Lock()
	r.cache[key] = resolved
	r.mu.Unlock()
	return copyID(resolved), nil
}

func (r *FS) resolve(specifier string, importerDir string) *ResolvedID {
	specifier = r.applyAlias(specifier)

	var found string
	var ok bool
	switch {
	case isRelative(specifier):
		found, ok = probe(filepath.Join(importerDir, filepath.FromSlash(specifier)))
	case strings.HasPrefix(specifier, "/"):
		found, ok = probe(filepath.Join(r.root, filepath.FromSlash(specifier)))
		if !ok && filepath.IsAbs(specifier) {
			found, ok = probe(filepath.Clean(specifier))
		}
	case isNodeBuiltin(specifier):
		return nil
	default:
		found, ok = r.resolvePackage(specifier, importerDir)
	}
	if !ok {
		return nil
	}
	return &ResolvedID{ID: found}
}

func (r *FS) applyAlias(specifier string) string {
	for _, a := range r.aliases {
		if rest, ok := strings.CutPrefix(specifier, a.from); ok {
			return a.to + rest
		}
	}
	return specifier
}

func (r *FS) resolvePackage(specifier string, importerDir string) (string, bool) {
	name, subpath := splitPackageSpecifier(specifier)
	if name == "" {
		return "", false
	}
	dir := importerDir
	for {
		pkgDir := filepath.Join(dir, "node_modules", filepath.FromSlash(name))
		if info, err := os.Stat(pkgDir); err == nil && info.IsDir() {
			return resolvePackageEntry(pkgDir, subpath)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func resolvePackageEntry(pkgDir string, subpath string) (string, bool) {
	if subpath != "" {
		return probe(filepath.Join(pkgDir, filepath.FromSlash(subpath)))
	}
	data, err := safeio.ReadFileUnder(pkgDir, filepath.Join(pkgDir, "package.json"))
	if err == nil {
		var pkg packageJSON
		if json.Unmarshal(data, &pkg) == nil {
			for _, entry := range []string{pkg.Module, pkg.Main} {
				if strings.TrimSpace(entry) == "" {
					continue
				}
				if found, ok := probe(filepath.Join(pkgDir, filepath.FromSlash(entry))); ok {
					return found, true
				}
			}
		}
	}
	return probe(filepath.Join(pkgDir, "index"))
}

// probe tries path as a file, then with each known extension, then as a
// directory index.
func probe(path string) (string, bool) {
	if isFile(path) {
		return path, true
	}
	for _, ext := range probeExtensions {
		if candidate := path + ext; isFile(candidate) {
			return candidate, true
		}
	}
	for _, ext := range probeExtensions {
		if candidate := filepath.Join(path, "index"+ext); isFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isRelative(specifier string) bool {
	return specifier == "." || specifier == ".." ||
		strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../")
}

func splitPackageSpecifier(specifier string) (string, string) {
	parts := strings.Split(specifier, "/")
	if strings.HasPrefix(specifier, "@") {
		if len(parts) < 2 || parts[1] == "" {
			return "", ""
		}
		return parts[0] + "/" + parts[1], strings.Join(parts[2:], "/")
	}
	return parts[0], strings.Join(parts[1:], "/")
}

func stripQuery(specifier string) string {
	if idx := strings.IndexAny(specifier, "?#"); idx >= 0 {
		specifier = specifier[:idx]
	}
	return strings.TrimSpace(specifier)
}

func copyID(id *ResolvedID) *ResolvedID {
	if id == nil {
		return nil
	}
	clone := *id
	return &clone
}
