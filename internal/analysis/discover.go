package analysis

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const (
	contentDir     = "app"
	markupExt      = ".mdx"
	maxScopeNotes  = 5
	scopeWarnLabel = "scan scope"
)

var skipDirectories = map[string]bool{
	".git":         true,
	".idea":        true,
	"node_modules": true,
	"dist":         true,
	"build":        true,
	"vendor":       true,
	".next":        true,
	".turbo":       true,
	"coverage":     true,
}

func shouldSkipDir(name string) bool {
	return skipDirectories[name]
}

type compiledPattern struct {
	pattern string
	regex   *regexp.Regexp
}

// scope filters discovered documents by root-relative glob patterns.
type scope struct {
	include []compiledPattern
	exclude []compiledPattern

	includeMatches map[string]int
	excludeMatches map[string]int
	notes          []string
	kept           int
	total          int
}

func newScope(includePatterns, excludePatterns []string) (*scope, error) {
	include, err := compileGlobPatterns(normalizePatterns(includePatterns))
	if err != nil {
		return nil, err
	}
	exclude, err := compileGlobPatterns(normalizePatterns(excludePatterns))
	if err != nil {
		return nil, err
	}
	return &scope{
		include:        include,
		exclude:        exclude,
		includeMatches: make(map[string]int, len(include)),
		excludeMatches: make(map[string]int, len(exclude)),
	}, nil
}

func (s *scope) active() bool {
	return len(s.include) > 0 || len(s.exclude) > 0
}

func (s *scope) keep(slashed string) bool {
	s.total++
	includeMatched, includePattern := matchFirstCompiledPattern(slashed, s.include)
	excludeMatched, excludePattern := matchFirstCompiledPattern(slashed, s.exclude)
	if includeMatched {
		s.includeMatches[includePattern]++
	}
	if excludeMatched {
		s.excludeMatches[excludePattern]++
	}
	if (len(s.include) > 0 && !includeMatched) || excludeMatched {
		reason := "did not match include patterns"
		if excludeMatched {
			reason = "matched exclude pattern " + excludePattern
		}
		if len(s.notes) < maxScopeNotes {
			s.notes = append(s.notes, slashed+" ("+reason+")")
		}
		return false
	}
	s.kept++
	return true
}

func (s *scope) warnings() []string {
	if !s.active() {
		return nil
	}
	warnings := []string{fmt.Sprintf("%s applied: kept %d/%d documents", scopeWarnLabel, s.kept, s.total)}
	if len(s.include) > 0 {
		warnings = append(warnings, scopeWarnLabel+" include matches: "+formatPatternMatches(s.include, s.includeMatches))
	}
	if len(s.exclude) > 0 {
		warnings = append(warnings, scopeWarnLabel+" exclude matches: "+formatPatternMatches(s.exclude, s.excludeMatches))
	}
	for _, note := range s.notes {
		warnings = append(warnings, scopeWarnLabel+" skipped document: "+note)
	}
	return warnings
}

// discover lists the markup documents under root's app directory in path
// order. Unreadable subdirectories are skipped with a warning.
func discover(ctx context.Context, root string, sc *scope) ([]string, []string, error) {
	base := filepath.Join(root, contentDir)
	info, err := os.Stat(base)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, []string{"no " + contentDir + " directory under " + root}, nil
		}
		return nil, nil, fmt.Errorf("stat content directory: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("content path is not a directory: %s", base)
	}

	var documents []string
	var warnings []string
	err = filepath.WalkDir(base, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path != base && errors.Is(walkErr, fs.ErrPermission) {
				warnings = append(warnings, "skipped unreadable path "+path)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			return walkErr
		}
		if d.IsDir() {
			if path != base && shouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(d.Name()), markupExt) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if sc.keep(filepath.ToSlash(rel)) {
			documents = append(documents, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("discover markup documents: %w", err)
	}
	sort.Strings(documents)
	return documents, append(warnings, sc.warnings()...), nil
}

func normalizePatterns(patterns []string) []string {
	seen := make(map[string]struct{}, len(patterns))
	result := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		trimmed := strings.TrimSpace(pattern)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, strings.TrimPrefix(filepath.ToSlash(trimmed), "/"))
	}
	return result
}

func compileGlobPatterns(patterns []string) ([]compiledPattern, error) {
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, pattern := range patterns {
		regex, err := regexp.Compile(globToRegexp(pattern))
		if err != nil {
			return nil, fmt.Errorf("compile scope pattern %q: %w", pattern, err)
		}
		compiled = append(compiled, compiledPattern{pattern: pattern, regex: regex})
	}
	return compiled, nil
}

func matchFirstCompiledPattern(path string, patterns []compiledPattern) (bool, string) {
	for _, pattern := range patterns {
		if pattern.regex.MatchString(path) {
			return true, pattern.pattern
		}
	}
	return false, ""
}

// globToRegexp supports `*` within a segment, `**` across segments and `?`.
func globToRegexp(pattern string) string {
	var builder strings.Builder
	builder.Grow(len(pattern) * 2)
	builder.WriteString("^")
	for index := 0; index < len(pattern); index++ {
		char := pattern[index]
		if char == '*' {
			segment, next := asteriskSegment(pattern, index)
			builder.WriteString(segment)
			index = next
			continue
		}
		if char == '?' {
			builder.WriteString("[^/]")
			continue
		}
		if strings.ContainsRune(`.+()|[]{}^$\`, rune(char)) {
			builder.WriteByte('\\')
		}
		builder.WriteByte(char)
	}
	builder.WriteString("$")
	return builder.String()
}

func asteriskSegment(pattern string, index int) (string, int) {
	if index+1 < len(pattern) && pattern[index+1] == '*' {
		if index+2 < len(pattern) && pattern[index+2] == '/' {
			return "(?:.*/)?", index + 2
		}
		return ".*", index + 1
	}
	return "[^/]*", index
}

func formatPatternMatches(patterns []compiledPattern, matches map[string]int) string {
	parts := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		parts = append(parts, fmt.Sprintf("%s=%d", pattern.pattern, matches[pattern.pattern]))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
