package report

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func samplePages() []Page {
	return []Page{
		{ID: "/app/routes/index.mdx", Hydrate: true, Islands: []string{"/app/islands/Counter.tsx"}, DependencyCount: 4, FirstResolutions: 3},
		{ID: "/app/routes/about.mdx", DependencyCount: 2, FirstResolutions: 1},
		{ID: "/app/routes/broken.mdx", Error: "compile markup document: line 1: could not parse import/export statement"},
	}
}

func TestFormatTable(t *testing.T) {
	pages := samplePages()
	reportData := Report{
		Pages:    pages,
		Summary:  ComputeSummary(pages),
		Cache:    &CacheStats{ContentHits: 2, ContentMisses: 5},
		Warnings: []string{"skipped unreadable directory app/private"},
	}

	output, err := NewFormatter().Format(reportData, FormatTable)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"Summary: 3 pages, 1 need hydration, 1 failed, 1 islands",
		"Page",
		"/app/islands/Counter.tsx",
		"/app/routes/broken.mdx",
		"error",
		"Cache: content 2 hits/5 reads",
		"Warnings:",
	} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected output to include %q, got:\n%s", want, output)
		}
	}
}

func TestFormatTableEmpty(t *testing.T) {
	output, err := NewFormatter().Format(Report{Warnings: []string{"no app directory"}}, FormatTable)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(output, "No markup documents found.") || !strings.Contains(output, "no app directory") {
		t.Fatalf("unexpected empty output %q", output)
	}
}

func TestFormatJSON(t *testing.T) {
	reportData := Report{SchemaVersion: SchemaVersion, Root: ".", Pages: samplePages()}
	output, err := NewFormatter().Format(reportData, FormatJSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(output), &decoded); err != nil {
		t.Fatalf("expected valid json: %v", err)
	}
	if decoded["root"] != "." || decoded["schemaVersion"] != SchemaVersion {
		t.Fatalf("unexpected json fields %v", decoded)
	}
	pages, ok := decoded["pages"].([]any)
	if !ok || len(pages) != 3 {
		t.Fatalf("expected three pages, got %v", decoded["pages"])
	}
}

func TestFormatUnknown(t *testing.T) {
	if _, err := NewFormatter().Format(Report{}, Format("sarif")); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected unknown format error, got %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"": FormatTable, "table": FormatTable, " JSON ": FormatJSON}
	for input, want := range cases {
		got, err := ParseFormat(input)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", input, got, err)
		}
	}
	if _, err := ParseFormat("sarif"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected unknown format error, got %v", err)
	}
}

func TestComputeSummaryAndSort(t *testing.T) {
	pages := samplePages()
	pages = append(pages, Page{ID: "/app/routes/blog/post.mdx", Hydrate: true, Islands: []string{"/app/islands/Counter.tsx", "/app/routes/$like.tsx"}})
	summary := ComputeSummary(pages)
	if *summary != (Summary{PageCount: 4, HydratedCount: 2, FailedCount: 1, IslandCount: 2}) {
		t.Fatalf("unexpected summary %+v", *summary)
	}

	SortPages(pages)
	for i := 1; i < len(pages); i++ {
		if pages[i-1].ID > pages[i].ID {
			t.Fatalf("pages not sorted: %q before %q", pages[i-1].ID, pages[i].ID)
		}
	}
}
