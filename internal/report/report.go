package report

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

const SchemaVersion = "0.1.0"

var ErrUnknownFormat = errors.New("unknown format")

func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, value)
	}
}

type Report struct {
	SchemaVersion string      `json:"schemaVersion"`
	GeneratedAt   time.Time   `json:"generatedAt"`
	Root          string      `json:"root"`
	Pages         []Page      `json:"pages"`
	Summary       *Summary    `json:"summary,omitempty"`
	Cache         *CacheStats `json:"cache,omitempty"`
	Warnings      []string    `json:"warnings,omitempty"`
}

// Page is the outcome for one markup document. Error is set instead of the
// other fields when the document itself failed to compile.
type Page struct {
	ID                string   `json:"id"`
	Hydrate           bool     `json:"hydrate"`
	Islands           []string `json:"islands,omitempty"`
	DependencyCount   int      `json:"dependencyCount"`
	FirstResolutions  int      `json:"firstResolutions"`
	RepeatResolutions int      `json:"repeatResolutions"`
	Error             string   `json:"error,omitempty"`
}

type Summary struct {
	PageCount     int `json:"pageCount"`
	HydratedCount int `json:"hydratedCount"`
	FailedCount   int `json:"failedCount"`
	IslandCount   int `json:"islandCount"`
}

type CacheStats struct {
	ContentHits    int `json:"contentHits"`
	ContentMisses  int `json:"contentMisses"`
	ResolveFirst   int `json:"resolveFirst"`
	ResolveRepeats int `json:"resolveRepeats"`
	CompileHits    int `json:"compileHits"`
	CompileMisses  int `json:"compileMisses"`
}

// ComputeSummary counts pages by outcome. IslandCount is the number of
// distinct island files across all pages.
func ComputeSummary(pages []Page) *Summary {
	summary := &Summary{PageCount: len(pages)}
	var islands []string
	for _, page := range pages {
		switch {
		case page.Error != "":
			summary.FailedCount++
		case page.Hydrate:
			summary.HydratedCount++
		}
		islands = append(islands, page.Islands...)
	}
	slices.Sort(islands)
	summary.IslandCount = len(slices.Compact(islands))
	return summary
}

func SortPages(pages []Page) {
	slices.SortFunc(pages, func(a, b Page) int {
		return strings.Compare(a.ID, b.ID)
	})
}
