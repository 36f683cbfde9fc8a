package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/ben-ranford/islet/internal/analysis"
	"github.com/ben-ranford/islet/internal/config"
	"github.com/ben-ranford/islet/internal/logging"
	"github.com/ben-ranford/islet/internal/report"
	"github.com/ben-ranford/islet/internal/safeio"
	"github.com/ben-ranford/islet/internal/workspace"
)

var (
	ErrUnknownMode  = errors.New("unknown mode")
	ErrMissingInput = errors.New("transform requires a document path")
)

type App struct {
	// Analyzer overrides the scan service; nil builds one per run.
	Analyzer  analysis.Analyzer
	Formatter report.Formatter
	ErrOut    io.Writer
}

func New(errOut io.Writer) *App {
	if errOut == nil {
		errOut = io.Discard
	}
	return &App{
		Formatter: report.NewFormatter(),
		ErrOut:    errOut,
	}
}

func (a *App) Execute(ctx context.Context, req Request) (string, error) {
	switch req.Mode {
	case ModeTransform:
		return a.executeTransform(ctx, req)
	case ModeScan:
		return a.executeScan(ctx, req)
	default:
		return "", ErrUnknownMode
	}
}

func (a *App) executeTransform(ctx context.Context, req Request) (string, error) {
	file := strings.TrimSpace(req.Transform.File)
	if file == "" {
		return "", ErrMissingInput
	}
	file, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolve document path: %w", err)
	}

	root, err := a.transformRoot(req.Root, file)
	if err != nil {
		return "", err
	}
	cfg, err := config.Load(root, req.ConfigPath)
	if err != nil {
		return "", err
	}
	logger := a.logger(req.Verbose)
	logConfig(logger, cfg)

	tr, err := analysis.NewTransformer(root, cfg, logger)
	if err != nil {
		return "", err
	}
	source, err := safeio.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	result, err := tr.Transform(ctx, source, file)
	if err != nil {
		return "", err
	}
	if result == nil {
		logger.Debug("not a markup document, nothing to do", "file", file)
		return "", nil
	}

	stats := tr.Stats()
	logger.Debug(
		"transform complete",
		"hydrate", result.Hydrate,
		"dependencies", len(result.Dependencies),
		"islands", strings.Join(result.Islands, ","),
		"content_reads", stats.Content.Misses,
		"resolutions", result.Resolutions.First,
		"repeat_resolutions", result.Resolutions.Repeats,
	)
	return result.Code, nil
}

func (a *App) executeScan(ctx context.Context, req Request) (string, error) {
	root, err := workspace.NormalizeRoot(req.Root)
	if err != nil {
		return "", fmt.Errorf("resolve root path: %w", err)
	}
	cfg, err := config.Load(root, req.ConfigPath)
	if err != nil {
		return "", err
	}
	logger := a.logger(req.Verbose)
	logConfig(logger, cfg)

	analyzer := a.Analyzer
	if analyzer == nil {
		analyzer = analysis.NewService(logger)
	}
	reportData, err := analyzer.Analyse(ctx, analysis.Request{
		Root:    root,
		Config:  cfg,
		Include: req.Scan.IncludePatterns,
		Exclude: req.Scan.ExcludePatterns,
	})
	if err != nil {
		return "", err
	}

	format := req.Scan.Format
	if format == "" {
		format = report.FormatTable
	}
	return a.Formatter.Format(reportData, format)
}

func (a *App) transformRoot(explicit string, file string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return workspace.NormalizeRoot(explicit)
	}
	return workspace.FindRoot(filepath.Dir(file))
}

func (a *App) logger(verbose bool) *log.Logger {
	if a.ErrOut == nil {
		return logging.Discard()
	}
	return logging.New(a.ErrOut, verbose)
}

func logConfig(logger *log.Logger, cfg config.Config) {
	source := cfg.Path
	if source == "" {
		source = "defaults"
	}
	logger.Debug("loaded config", "source", source, "jsx_import_source", cfg.JSXImportSource, "remark_plugins", strings.Join(cfg.RemarkPlugins, ","))
}
