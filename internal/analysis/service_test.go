package analysis

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/ben-ranford/islet/internal/config"
	"github.com/ben-ranford/islet/internal/report"
	"github.com/ben-ranford/islet/internal/testutil"
)

func writeSite(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"package.json":                "{}",
		"app/routes/index.mdx":        "---\ntitle: Home\n---\n\nimport Layout from \"@/components/Layout\"\n\n# Home\n\n<Layout />\n",
		"app/routes/about.mdx":        "import Card from \"../components/Card\"\n\n# About\n\n<Card />\n",
		"app/routes/blog/post.mdx":    "import Like from \"./$like\"\n\n<Like />\n",
		"app/routes/blog/$like.tsx":   "export default () => null;\n",
		"app/routes/broken.mdx":       "import { from \"x\"\n",
		"app/components/Layout.tsx":   "import Counter from \"/app/islands/Counter\";\nexport default () => <Counter />;\n",
		"app/components/Card.tsx":     "export default () => <div />;\n",
		"app/islands/Counter.tsx":     "export default () => null;\n",
		"app/node_modules/x/docs.mdx": "# skipped\n",
		"app/dist/page.mdx":           "# skipped\n",
		"content/outside.mdx":         "# not under app\n",
	}
	testutil.WriteTree(t, root, files)
	return root
}

func pageByID(t *testing.T, pages []report.Page, id string) report.Page {
	t.Helper()
	for _, page := range pages {
		if page.ID == id {
			return page
		}
	}
	t.Fatalf("page %s not reported", id)
	return report.Page{}
}

func TestServiceAnalyse(t *testing.T) {
	root := writeSite(t)
	service := NewService(nil)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	service.now = func() time.Time { return fixed }

	reportData, err := service.Analyse(context.Background(), Request{Root: root, Config: config.Defaults()})
	if err != nil {
		t.Fatalf("analyse: %v", err)
	}
	if reportData.SchemaVersion != report.SchemaVersion || !reportData.GeneratedAt.Equal(fixed) {
		t.Fatalf("unexpected report metadata %+v", reportData)
	}

	ids := make([]string, 0, len(reportData.Pages))
	for _, page := range reportData.Pages {
		ids = append(ids, page.ID)
	}
	wantIDs := []string{
		"/app/routes/about.mdx",
		"/app/routes/blog/post.mdx",
		"/app/routes/broken.mdx",
		"/app/routes/index.mdx",
	}
	if !slices.Equal(ids, wantIDs) {
		t.Fatalf("unexpected pages %v", ids)
	}

	index := pageByID(t, reportData.Pages, "/app/routes/index.mdx")
	if !index.Hydrate || !slices.Equal(index.Islands, []string{"/app/islands/Counter.tsx"}) {
		t.Fatalf("expected index to need hydration, got %+v", index)
	}
	if index.DependencyCount < 3 {
		t.Fatalf("expected index to list its dependencies, got %d", index.DependencyCount)
	}

	about := pageByID(t, reportData.Pages, "/app/routes/about.mdx")
	if about.Hydrate || about.Error != "" {
		t.Fatalf("expected about to stay static, got %+v", about)
	}

	post := pageByID(t, reportData.Pages, "/app/routes/blog/post.mdx")
	if !post.Hydrate || !slices.Equal(post.Islands, []string{"/app/routes/blog/$like.tsx"}) {
		t.Fatalf("expected post to need hydration, got %+v", post)
	}

	broken := pageByID(t, reportData.Pages, "/app/routes/broken.mdx")
	if broken.Error == "" || broken.Hydrate {
		t.Fatalf("expected compile error on broken page, got %+v", broken)
	}

	want := report.Summary{PageCount: 4, HydratedCount: 2, FailedCount: 1, IslandCount: 2}
	if reportData.Summary == nil || *reportData.Summary != want {
		t.Fatalf("unexpected summary %+v", reportData.Summary)
	}
	if reportData.Cache == nil || reportData.Cache.ContentMisses == 0 {
		t.Fatalf("expected cache stats, got %+v", reportData.Cache)
	}
}

func TestServiceAnalyseScope(t *testing.T) {
	root := writeSite(t)
	reportData, err := NewService(nil).Analyse(context.Background(), Request{
		Root:    root,
		Config:  config.Defaults(),
		Include: []string{"app/routes/**"},
		Exclude: []string{"**/broken.mdx", "app/routes/blog/*"},
	})
	if err != nil {
		t.Fatalf("analyse: %v", err)
	}
	if len(reportData.Pages) != 2 {
		t.Fatalf("expected two pages in scope, got %+v", reportData.Pages)
	}
	if !strings.Contains(strings.Join(reportData.Warnings, "\n"), "kept 2/4 documents") {
		t.Fatalf("expected scope warning, got %v", reportData.Warnings)
	}
}

func TestServiceAnalyseWithoutContentDir(t *testing.T) {
	reportData, err := NewService(nil).Analyse(context.Background(), Request{Root: t.TempDir(), Config: config.Defaults()})
	if err != nil {
		t.Fatalf("analyse: %v", err)
	}
	if len(reportData.Pages) != 0 || len(reportData.Warnings) != 1 {
		t.Fatalf("expected an empty report with a warning, got %+v", reportData)
	}
}

func TestServiceAnalyseErrors(t *testing.T) {
	root := writeSite(t)
	if _, err := NewService(nil).Analyse(testutil.CanceledContext(), Request{Root: root, Config: config.Defaults()}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	badConfig := config.Defaults()
	badConfig.RemarkPlugins = []string{"remark-math"}
	if _, err := NewService(nil).Analyse(context.Background(), Request{Root: root, Config: badConfig}); err == nil {
		t.Fatalf("expected unknown plugin error")
	}

	notDir := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(notDir, "app"), "file")
	if _, err := NewService(nil).Analyse(context.Background(), Request{Root: notDir, Config: config.Defaults()}); err == nil {
		t.Fatalf("expected error when app is a file")
	}

	var nilService *Service
	if _, err := nilService.Analyse(context.Background(), Request{}); err == nil {
		t.Fatalf("expected error from nil service")
	}
}

func TestServiceWorkersFloor(t *testing.T) {
	service := &Service{}
	if service.workers() != 1 {
		t.Fatalf("expected at least one worker")
	}
	if service.logger() == nil || service.clock() == nil {
		t.Fatalf("expected defaults for zero service")
	}
}
