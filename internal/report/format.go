package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
)

type Formatter struct{}

func NewFormatter() Formatter {
	return Formatter{}
}

func (f Formatter) Format(report Report, format Format) (string, error) {
	switch format {
	case FormatTable:
		return formatTable(report), nil
	case FormatJSON:
		payload, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return "", err
		}
		return string(payload) + "\n", nil
	default:
		return "", ErrUnknownFormat
	}
}

func formatTable(report Report) string {
	if len(report.Pages) == 0 {
		return formatEmpty(report)
	}

	var buffer bytes.Buffer
	appendSummary(&buffer, report.Summary)

	writer := tabwriter.NewWriter(&buffer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(writer, "Page\tHydrate\tDeps\tIslands")
	for _, page := range report.Pages {
		_, _ = fmt.Fprintln(writer, formatTableRow(page))
	}
	_ = writer.Flush()

	appendCache(&buffer, report.Cache)
	appendWarnings(&buffer, report)
	return buffer.String()
}

func appendSummary(buffer *bytes.Buffer, summary *Summary) {
	if summary == nil {
		return
	}
	_, _ = fmt.Fprintf(
		buffer,
		"Summary: %d pages, %d need hydration, %d failed, %d islands\n\n",
		summary.PageCount,
		summary.HydratedCount,
		summary.FailedCount,
		summary.IslandCount,
	)
}

func formatTableRow(page Page) string {
	if page.Error != "" {
		return fmt.Sprintf("%s\terror\t-\t%s", page.ID, page.Error)
	}
	hydrate := "no"
	if page.Hydrate {
		hydrate = "yes"
	}
	islands := "-"
	if len(page.Islands) > 0 {
		islands = strings.Join(page.Islands, ", ")
	}
	return fmt.Sprintf("%s\t%s\t%d\t%s", page.ID, hydrate, page.DependencyCount, islands)
}

func formatEmpty(report Report) string {
	var buffer bytes.Buffer
	buffer.WriteString("No markup documents found.\n")
	appendWarnings(&buffer, report)
	return buffer.String()
}

func appendCache(buffer *bytes.Buffer, cache *CacheStats) {
	if cache == nil {
		return
	}
	_, _ = fmt.Fprintf(
		buffer,
		"\nCache: content %d hits/%d reads, resolver %d first/%d repeats, compile %d hits/%d misses\n",
		cache.ContentHits,
		cache.ContentMisses,
		cache.ResolveFirst,
		cache.ResolveRepeats,
		cache.CompileHits,
		cache.CompileMisses,
	)
}

func appendWarnings(buffer *bytes.Buffer, report Report) {
	if len(report.Warnings) == 0 {
		return
	}
	buffer.WriteString("\nWarnings:\n")
	for _, warning := range report.Warnings {
		buffer.WriteString("- ")
		buffer.WriteString(warning)
		buffer.WriteString("\n")
	}
}
