package walk

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/ben-ranford/islet/internal/lang/js"
	"github.com/ben-ranford/islet/internal/mdx"
	"github.com/ben-ranford/islet/internal/resolve"
)

const (
	markupExt = ".mdx"
	// guessExt is appended to specifiers the resolver could not place.
	guessExt = ".tsx"
)

// Compiler turns markup into code that exposes its imports.
type Compiler interface {
	Compile(ctx context.Context, markup []byte) (mdx.Output, error)
}

// Target is where a recursive walk starts: either an identity the resolver
// produced, or the raw specifier when it produced nothing.
type Target struct {
	Resolved  *resolve.ResolvedID
	Specifier string
}

func Resolved(id string) *Target {
	return &Target{Resolved: &resolve.ResolvedID{ID: id}}
}

func Unresolved(specifier string) *Target {
	return &Target{Specifier: specifier}
}

// Path returns the file the target points at. Unresolved specifiers are
// guessed relative to baseFile's directory.
func (t *Target) Path(baseFile string) string {
	switch {
	case t == nil:
		return baseFile
	case t.Resolved != nil:
		return t.Resolved.ID
	default:
		return filepath.Join(filepath.Dir(baseFile), filepath.FromSlash(t.Specifier)) + guessExt
	}
}

type Walker struct {
	content   *ContentCache
	compiler  Compiler
	extractor js.Extractor
	logger    *log.Logger
}

type Option func(*Walker)

func WithLogger(logger *log.Logger) Option {
	return func(w *Walker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithLoader(loader Loader) Option {
	return func(w *Walker) {
		w.content = NewContentCache(loader)
	}
}

func WithContentCache(cache *ContentCache) Option {
	return func(w *Walker) {
		if cache != nil {
			w.content = cache
		}
	}
}

func WithCompiler(compiler Compiler) Option {
	return func(w *Walker) {
		if compiler != nil {
			w.compiler = compiler
		}
	}
}

func WithExtractor(extractor js.Extractor) Option {
	return func(w *Walker) {
		if extractor != nil {
			w.extractor = extractor
		}
	}
}

func NewWalker(opts ...Option) *Walker {
	w := &Walker{
		content:   NewContentCache(FileLoader{}),
		compiler:  mdx.NewCompiler(mdx.Options{}),
		extractor: js.NewExtractor(),
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Walker) Content() *ContentCache {
	return w.content
}

// Walk lists baseFile (or startFrom, when given) followed by every file
// reachable from it through static imports, depth first in import order.
// Files that cannot be read, compiled or parsed end their branch instead of
// failing the walk, so the only error returned is context cancellation.
// The same file may appear more than once.
func (w *Walker) Walk(ctx context.Context, baseFile string, resolver resolve.Resolver, startFrom *Target) ([]string, error) {
	return w.walk(ctx, baseFile, resolver, startFrom, nil)
}

// ancestry is the chain of files on the current branch.
type ancestry struct {
	path   string
	parent *ancestry
}

func (a *ancestry) contains(path string) bool {
	for node := a; node != nil; node = node.parent {
		if node.path == path {
			return true
		}
	}
	return false
}

func (w *Walker) walk(ctx context.Context, baseFile string, resolver resolve.Resolver, startFrom *Target, active *ancestry) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := startFrom.Path(baseFile)
	deps := []string{path}

	if active.contains(path) {
		w.logger.Debug("import cycle, not descending", "path", path)
		return deps, nil
	}

	specifiers, err := w.specifiers(ctx, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		w.logger.Debug("dependency branch truncated", "path", path, "err", err)
		return deps, nil
	}

	branch := &ancestry{path: path, parent: active}
	children := make([][]string, len(specifiers))
	g, gctx := errgroup.WithContext(ctx)
	for i, specifier := range specifiers {
		g.Go(func() error {
			target := w.resolveTarget(gctx, resolver, specifier, baseFile)
			child, err := w.walk(gctx, path, resolver, target, branch)
			if err != nil {
				return err
			}
			children[i] = child
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, child := range children {
		deps = append(deps, child...)
	}
	return deps, nil
}

func (w *Walker) resolveTarget(ctx context.Context, resolver resolve.Resolver, specifier string, importer string) *Target {
	id, err := resolver.Resolve(ctx, specifier, importer)
	if err != nil {
		w.logger.Debug("resolve failed, guessing path", "specifier", specifier, "importer", importer, "err", err)
		return Unresolved(specifier)
	}
	if id == nil || strings.TrimSpace(id.ID) == "" {
		return Unresolved(specifier)
	}
	return &Target{Resolved: id}
}

// specifiers reads path and lists what it imports. Markup is compiled first
// since its imports only exist in the compiled code.
func (w *Walker) specifiers(ctx context.Context, path string) ([]string, error) {
	content, err := w.content.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	if IsMarkup(path) {
		out, err := w.compiler.Compile(ctx, content)
		if err != nil {
			return nil, err
		}
		return w.extractor.Extract(ctx, []byte(out.Value), js.DialectTSX)
	}
	return w.extractor.Extract(ctx, content, js.DialectForPath(path))
}

// IsMarkup reports whether id names a markup document, ignoring any query.
func IsMarkup(id string) bool {
	if idx := strings.IndexByte(id, '?'); idx >= 0 {
		id = id[:idx]
	}
	return strings.HasSuffix(id, markupExt)
}
