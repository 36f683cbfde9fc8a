package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/ben-ranford/islet/internal/config"
	"github.com/ben-ranford/islet/internal/island"
	"github.com/ben-ranford/islet/internal/report"
	"github.com/ben-ranford/islet/internal/resolve"
	"github.com/ben-ranford/islet/internal/safeio"
	"github.com/ben-ranford/islet/internal/transform"
	"github.com/ben-ranford/islet/internal/workspace"
)

type Analyzer interface {
	Analyse(ctx context.Context, req Request) (report.Report, error)
}

type Service struct {
	Logger *log.Logger
	// Workers bounds how many documents are transformed at once.
	Workers int
	now     func() time.Time
}

func NewService(logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Service{
		Logger:  logger,
		Workers: runtime.NumCPU(),
		now:     time.Now,
	}
}

// NewTransformer builds the transformer a project's config describes.
func NewTransformer(root string, cfg config.Config, logger *log.Logger) (*transform.Transformer, error) {
	opts, err := cfg.CompilerOptions(nil)
	if err != nil {
		return nil, err
	}
	return transform.New(
		root,
		resolve.NewFS(root, cfg.Aliases),
		transform.WithCompilerOptions(opts),
		transform.WithLogger(logger),
	), nil
}

// Analyse transforms every markup document in the project with one shared
// transformer. A document that fails to compile is reported on its page;
// only discovery problems and cancellation fail the scan.
func (s *Service) Analyse(ctx context.Context, req Request) (report.Report, error) {
	if s == nil {
		return report.Report{}, errors.New("analysis service is not configured")
	}
	root, err := workspace.NormalizeRoot(req.Root)
	if err != nil {
		return report.Report{}, fmt.Errorf("resolve root path: %w", err)
	}
	sc, err := newScope(req.Include, req.Exclude)
	if err != nil {
		return report.Report{}, err
	}
	documents, warnings, err := discover(ctx, root, sc)
	if err != nil {
		return report.Report{}, err
	}

	tr, err := NewTransformer(root, req.Config, s.logger())
	if err != nil {
		return report.Report{}, err
	}

	pages := make([]report.Page, len(documents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())
	for i, document := range documents {
		g.Go(func() error {
			page, err := s.analysePage(gctx, tr, root, document)
			if err != nil {
				return err
			}
			pages[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report.Report{}, err
	}

	report.SortPages(pages)
	stats := tr.Stats()
	return report.Report{
		SchemaVersion: report.SchemaVersion,
		GeneratedAt:   s.clock()().UTC(),
		Root:          root,
		Pages:         pages,
		Summary:       report.ComputeSummary(pages),
		Cache: &report.CacheStats{
			ContentHits:    stats.Content.Hits,
			ContentMisses:  stats.Content.Misses,
			ResolveFirst:   stats.Resolve.First,
			ResolveRepeats: stats.Resolve.Repeats,
			CompileHits:    stats.Compile.Hits,
			CompileMisses:  stats.Compile.Misses,
		},
		Warnings: warnings,
	}, nil
}

func (s *Service) analysePage(ctx context.Context, tr *transform.Transformer, root string, document string) (report.Page, error) {
	page := report.Page{ID: island.RootRelative(root, document)}
	source, err := safeio.ReadFileUnder(root, document)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report.Page{}, ctxErr
		}
		page.Error = fmt.Sprintf("read document: %v", err)
		return page, nil
	}

	result, err := tr.Transform(ctx, source, document)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report.Page{}, ctxErr
		}
		s.logger().Debug("document failed to compile", "document", page.ID, "err", err)
		page.Error = err.Error()
		return page, nil
	}
	page.Hydrate = result.Hydrate
	page.Islands = result.Islands
	page.DependencyCount = len(result.Dependencies)
	page.FirstResolutions = result.Resolutions.First
	page.RepeatResolutions = result.Resolutions.Repeats
	return page, nil
}

func (s *Service) logger() *log.Logger {
	if s.Logger == nil {
		return log.New(io.Discard)
	}
	return s.Logger
}

func (s *Service) workers() int {
	if s.Workers < 1 {
		return 1
	}
	return s.Workers
}

func (s *Service) clock() func() time.Time {
	if s.now == nil {
		return time.Now
	}
	return s.now
}
