package island

import (
	"path"
	"path/filepath"
	"strings"
)

const (
	// DefaultDir is the project-relative directory holding island components.
	DefaultDir = "/app/islands"

	componentExt = ".tsx"
	islandSuffix = ".island"
)

// Path is a project-relative, forward-slash path split into the parts the
// island conventions look at.
type Path struct {
	Segments []string
	Base     string
	Ext      string
}

// Stem returns the base name without its extension.
func (p Path) Stem() string {
	return strings.TrimSuffix(p.Base, p.Ext)
}

func ParsePath(projectRelativePath string) Path {
	trimmed := strings.Trim(projectRelativePath, "/")
	if trimmed == "" {
		return Path{}
	}
	parts := strings.Split(trimmed, "/")
	base := parts[len(parts)-1]
	return Path{
		Segments: parts[:len(parts)-1],
		Base:     base,
		Ext:      path.Ext(base),
	}
}

// Matches reports whether projectRelativePath is an island under DefaultDir.
func Matches(projectRelativePath string) bool {
	return IsIsland(projectRelativePath, DefaultDir)
}

// IsIsland reports whether projectRelativePath follows one of the island
// conventions: a component under islandDir, a `_name.island.tsx` file, or a
// `$name.tsx` file anywhere in the tree.
func IsIsland(projectRelativePath string, islandDir string) bool {
	if !strings.HasPrefix(projectRelativePath, "/") {
		return false
	}
	p := ParsePath(projectRelativePath)
	if p.Base == "" {
		return false
	}
	return underIslandDir(projectRelativePath, islandDir) ||
		isUnderscoreIsland(p) ||
		isDollarIsland(p)
}

func underIslandDir(projectRelativePath string, islandDir string) bool {
	dir := "/" + strings.Trim(islandDir, "/") + "/"
	if !strings.HasPrefix(projectRelativePath, dir) {
		return false
	}
	rest := strings.TrimPrefix(projectRelativePath, dir)
	return len(rest) > len(componentExt) && strings.HasSuffix(rest, componentExt)
}

func isUnderscoreIsland(p Path) bool {
	if p.Ext != componentExt {
		return false
	}
	stem := p.Stem()
	if !strings.HasPrefix(stem, "_") || !strings.HasSuffix(stem, islandSuffix) {
		return false
	}
	name := strings.TrimSuffix(strings.TrimPrefix(stem, "_"), islandSuffix)
	return isComponentName(name)
}

func isDollarIsland(p Path) bool {
	if p.Ext != componentExt {
		return false
	}
	name, ok := strings.CutPrefix(p.Stem(), "$")
	return ok && isComponentName(name)
}

func isComponentName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
		default:
			return false
		}
	}
	return true
}

// RootRelative converts an absolute file path into the leading-slash,
// forward-slash form the conventions expect.
func RootRelative(root, absPath string) string {
	normalized := filepath.ToSlash(absPath)
	if root == "" {
		return "/" + strings.TrimLeft(normalized, "/")
	}
	rel, err := filepath.Rel(root, filepath.FromSlash(normalized))
	if err != nil {
		rel = normalized
	}
	rel = strings.ReplaceAll(filepath.ToSlash(rel), `\`, "/")
	return "/" + strings.TrimLeft(rel, "/")
}
