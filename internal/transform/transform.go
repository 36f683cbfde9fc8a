package transform

import (
	"context"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"go.trai.ch/zerr"

	"github.com/ben-ranford/islet/internal/island"
	"github.com/ben-ranford/islet/internal/mdx"
	"github.com/ben-ranford/islet/internal/resolve"
	"github.com/ben-ranford/islet/internal/walk"
)

// HydrationMarker is the export added to documents that depend on an island.
const HydrationMarker = "__importing_islands"

const markerExport = "\nexport const " + HydrationMarker + " = true;"

type Result struct {
	Code string
	// SourceMap is always nil; positions are not tracked.
	SourceMap *string

	Hydrate      bool
	Dependencies []string
	// Islands lists the root-relative island files that set Hydrate.
	Islands     []string
	Resolutions walk.ResolveStats
}

type Stats struct {
	Content walk.ContentStats
	Resolve walk.ResolveStats
	Compile mdx.CacheStats
}

// Transformer compiles markup documents and marks the ones whose imports
// reach an island. Caches live as long as the Transformer and are shared by
// concurrent Transform calls.
type Transformer struct {
	root     string
	resolver *walk.MemoResolver
	compiler *mdx.Compiler
	walker   *walk.Walker
	logger   *log.Logger

	compilerOpts mdx.Options
	loader       walk.Loader
}

type Option func(*Transformer)

func WithLogger(logger *log.Logger) Option {
	return func(t *Transformer) {
		if logger != nil {
			t.logger = logger
		}
	}
}

func WithCompilerOptions(opts mdx.Options) Option {
	return func(t *Transformer) {
		t.compilerOpts = opts
	}
}

func WithLoader(loader walk.Loader) Option {
	return func(t *Transformer) {
		t.loader = loader
	}
}

// New builds a Transformer for the project at root. Walked paths are made
// root-relative before classification.
func New(root string, resolver resolve.Resolver, opts ...Option) *Transformer {
	t := &Transformer{
		root:   root,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.loader == nil {
		t.loader = walk.FileLoader{Root: root}
	}
	t.resolver = walk.NewMemoResolver(resolver)
	t.compiler = mdx.NewCompiler(t.compilerOpts)
	t.walker = walk.NewWalker(
		walk.WithLoader(t.loader),
		walk.WithCompiler(t.compiler),
		walk.WithLogger(t.logger),
	)
	return t
}

func (t *Transformer) Root() string {
	return t.root
}

// Transform returns nil for ids that are not markup documents. A document
// that fails to compile is an error; failures further down its imports are
// not.
func (t *Transformer) Transform(ctx context.Context, source []byte, id string) (*Result, error) {
	if !walk.IsMarkup(id) {
		return nil, nil
	}
	path := stripQuery(id)

	out, err := t.compiler.Compile(ctx, source)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, zerr.With(zerr.Wrap(err, "compile markup document"), "document", path)
	}

	t.walker.Content().Seed(path, source)
	perCall := walk.NewMemoResolver(t.resolver)
	deps, err := t.walker.Walk(ctx, path, perCall, nil)
	if err != nil {
		return nil, err
	}

	islands := t.islands(deps)
	result := &Result{
		Code:         out.Value,
		Hydrate:      len(islands) > 0,
		Dependencies: deps,
		Islands:      islands,
		Resolutions:  perCall.Stats(),
	}
	if result.Hydrate {
		result.Code += markerExport
	}
	t.logger.Debug("transformed document", "document", path, "dependencies", len(deps), "hydrate", result.Hydrate)
	return result, nil
}

// islands returns the sorted, deduplicated root-relative paths in deps that
// follow an island convention.
func (t *Transformer) islands(deps []string) []string {
	var found []string
	for _, dep := range deps {
		rel := island.RootRelative(t.root, dep)
		if island.Matches(rel) {
			found = append(found, rel)
		}
	}
	slices.Sort(found)
	return slices.Compact(found)
}

func (t *Transformer) Stats() Stats {
	return Stats{
		Content: t.walker.Content().Stats(),
		Resolve: t.resolver.Stats(),
		Compile: t.compiler.CacheStats(),
	}
}

// Reset drops every cache, as when the host reloads its configuration.
func (t *Transformer) Reset() {
	t.walker.Content().Reset()
	t.resolver.Reset()
	t.compiler.Reset()
}

func stripQuery(id string) string {
	if idx := strings.IndexByte(id, '?'); idx >= 0 {
		return id[:idx]
	}
	return id
}
