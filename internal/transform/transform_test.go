package transform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"go.trai.ch/zerr"
	"go.uber.org/goleak"

	"github.com/ben-ranford/islet/internal/mdx"
	"github.com/ben-ranford/islet/internal/resolve"
	"github.com/ben-ranford/islet/internal/testutil"
	"github.com/ben-ranford/islet/internal/walk"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	pagePath    = "/app/routes/page.mdx"
	layoutPath  = "/app/components/Layout.tsx"
	counterPath = "/app/islands/Counter.tsx"
	runtimePath = "/node_modules/hono/jsx/jsx-runtime.js"
	pageSource  = "---\ntitle: Page\n---\n\nimport Layout from \"./Layout\"\n\n# Welcome\n\n<Layout />\n"
)

func memLoader(files map[string]string) walk.Loader {
	return walk.LoaderFunc(func(_ context.Context, path string) ([]byte, error) {
		content, ok := files[path]
		if !ok {
			return nil, os.ErrNotExist
		}
		return []byte(content), nil
	})
}

func compilerOptions() mdx.Options {
	return mdx.Options{
		JSXImportSource: "hono/jsx",
		RemarkPlugins:   []mdx.Plugin{mdx.Frontmatter(), mdx.MDXFrontmatter()},
	}
}

func newScenario(layout string) *Transformer {
	files := map[string]string{
		layoutPath:  layout,
		counterPath: "export default function Counter() { return <button>+</button>; }\n",
		runtimePath: "export const jsx = () => null;\n",
	}
	resolver := resolve.Map{
		"./Layout":                 layoutPath,
		"/app/islands/Counter.tsx": counterPath,
		"hono/jsx/jsx-runtime":     runtimePath,
	}
	return New("", resolver, WithLoader(memLoader(files)), WithCompilerOptions(compilerOptions()))
}

func compiled(t *testing.T, source string) string {
	t.Helper()
	out, err := mdx.NewCompiler(compilerOptions()).Compile(context.Background(), []byte(source))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return out.Value
}

func TestTransformMarksDocumentsReachingIslands(t *testing.T) {
	tr := newScenario("import Counter from \"/app/islands/Counter.tsx\";\nexport default function Layout() { return <Counter />; }\n")
	res, err := tr.Transform(context.Background(), []byte(pageSource), pagePath)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if res == nil {
		t.Fatalf("expected a result for a markup document")
	}
	want := compiled(t, pageSource) + "\nexport const __importing_islands = true;"
	if res.Code != want {
		t.Fatalf("unexpected code:\n%s", res.Code)
	}
	if !res.Hydrate || !slices.Equal(res.Islands, []string{counterPath}) {
		t.Fatalf("expected Counter to flag the page, got %v %v", res.Hydrate, res.Islands)
	}
	if res.SourceMap != nil {
		t.Fatalf("expected no source map")
	}
	wantDeps := []string{pagePath, runtimePath, layoutPath, counterPath}
	if !slices.Equal(res.Dependencies, wantDeps) {
		t.Fatalf("unexpected dependencies %#v", res.Dependencies)
	}
}

func TestTransformMarksIslandsThroughImportChains(t *testing.T) {
	const (
		aPath = "/app/components/A.tsx"
		bPath = "/app/components/B.tsx"
		cPath = "/app/islands/C.tsx"
	)
	files := map[string]string{
		aPath:       "import B from \"./B\";\nexport default () => <B />;\n",
		bPath:       "import C from \"/app/islands/C.tsx\";\nexport default () => <C />;\n",
		cPath:       "export default () => <button />;\n",
		runtimePath: "export const jsx = () => null;\n",
	}
	resolver := resolve.Map{
		"../components/A":      aPath,
		"./B":                  bPath,
		"/app/islands/C.tsx":   cPath,
		"hono/jsx/jsx-runtime": runtimePath,
	}

	cases := []struct {
		name     string
		source   string
		hydrate  bool
		wantDeps []string
	}{
		{
			name:     "direct island",
			source:   "import C from \"/app/islands/C.tsx\"\n\n<C />\n",
			hydrate:  true,
			wantDeps: []string{pagePath, runtimePath, cPath},
		},
		{
			name:     "two intermediate components",
			source:   "import A from \"../components/A\"\n\n<A />\n",
			hydrate:  true,
			wantDeps: []string{pagePath, runtimePath, aPath, bPath, cPath},
		},
		{
			name:     "no island",
			source:   "# Plain\n",
			hydrate:  false,
			wantDeps: []string{pagePath, runtimePath},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := New("", resolver, WithLoader(memLoader(files)), WithCompilerOptions(compilerOptions()))
			res, err := tr.Transform(context.Background(), []byte(tc.source), pagePath)
			if err != nil {
				t.Fatalf("transform: %v", err)
			}
			if !slices.Equal(res.Dependencies, tc.wantDeps) {
				t.Fatalf("unexpected dependencies %#v", res.Dependencies)
			}
			if res.Hydrate != tc.hydrate || strings.HasSuffix(res.Code, "export const __importing_islands = true;") != tc.hydrate {
				t.Fatalf("expected hydrate=%v, got %v\n%s", tc.hydrate, res.Hydrate, res.Code)
			}
		})
	}
}

func TestTransformLeavesOtherDocumentsUnchanged(t *testing.T) {
	tr := newScenario("export default function Layout() { return <main />; }\n")
	res, err := tr.Transform(context.Background(), []byte(pageSource), pagePath)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if res.Code != compiled(t, pageSource) {
		t.Fatalf("expected compiled code unchanged, got:\n%s", res.Code)
	}
	if res.Hydrate || len(res.Islands) != 0 || strings.Contains(res.Code, HydrationMarker) {
		t.Fatalf("expected no hydration marker")
	}
}

func TestTransformIgnoresNonMarkup(t *testing.T) {
	tr := newScenario("")
	for _, id := range []string{"/app/islands/Counter.tsx", "/app/routes/page.md", "/app/routes/page.mdx.js"} {
		res, err := tr.Transform(context.Background(), []byte("export {}"), id)
		if err != nil || res != nil {
			t.Fatalf("expected %q to pass through, got %v %v", id, res, err)
		}
	}
}

func TestTransformAcceptsQuerySuffix(t *testing.T) {
	tr := newScenario("import Counter from \"/app/islands/Counter.tsx\";\n")
	res, err := tr.Transform(context.Background(), []byte(pageSource), pagePath+"?import")
	if err != nil || res == nil {
		t.Fatalf("expected a result, got %v %v", res, err)
	}
	if res.Dependencies[0] != pagePath {
		t.Fatalf("expected query to be stripped from the root, got %q", res.Dependencies[0])
	}
	if !res.Hydrate {
		t.Fatalf("expected hydration")
	}
}

func TestTransformCompileFailureIsFatal(t *testing.T) {
	tr := newScenario("")
	res, err := tr.Transform(context.Background(), []byte("import { from \"x\"\n\n# Broken\n"), pagePath)
	if res != nil {
		t.Fatalf("expected no result")
	}
	if !errors.Is(err, mdx.ErrCompile) {
		t.Fatalf("expected compile error, got %v", err)
	}
	var compileErr *mdx.CompileError
	if !errors.As(err, &compileErr) || compileErr.Line != 1 {
		t.Fatalf("expected compile error at line 1, got %v", err)
	}
	if !strings.Contains(err.Error(), "compile markup document") {
		t.Fatalf("expected context in error message, got %q", err.Error())
	}
	zErr, ok := err.(*zerr.Error)
	if !ok {
		t.Fatalf("expected *zerr.Error, got %T", err)
	}
	if got := zErr.Metadata()["document"]; got != pagePath {
		t.Fatalf("expected document metadata %q, got %v", pagePath, got)
	}
}

func TestTransformToleratesBrokenDependencies(t *testing.T) {
	tr := newScenario("import Counter from \"/app/islands/Counter.tsx\"\nexport default function ( {{{")
	res, err := tr.Transform(context.Background(), []byte(pageSource), pagePath)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if res.Hydrate {
		t.Fatalf("expected the unparsable branch to hide the island")
	}
	if !slices.Contains(res.Dependencies, layoutPath) {
		t.Fatalf("expected the broken layout listed, got %#v", res.Dependencies)
	}
}

func TestTransformIslandConventions(t *testing.T) {
	cases := []struct {
		name      string
		specifier string
		target    string
		want      bool
	}{
		{"island directory", "./Counter", "/app/islands/nested/Counter.tsx", true},
		{"underscore island", "./_toggle.island", "/app/routes/_toggle.island.tsx", true},
		{"dollar island", "./$menu", "/app/routes/$menu.tsx", true},
		{"plain component", "./Card", "/app/components/Card.tsx", false},
		{"underscore without suffix", "./_toggle", "/app/routes/_toggle.tsx", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			source := "import X from \"" + tc.specifier + "\"\n\n<X />\n"
			files := map[string]string{tc.target: "export default () => null;\n"}
			tr := New("", resolve.Map{tc.specifier: tc.target}, WithLoader(memLoader(files)))
			res, err := tr.Transform(context.Background(), []byte(source), pagePath)
			if err != nil {
				t.Fatalf("transform: %v", err)
			}
			if res.Hydrate != tc.want {
				t.Fatalf("Hydrate = %v, want %v (deps %#v)", res.Hydrate, tc.want, res.Dependencies)
			}
		})
	}
}

func TestTransformStatsAndReset(t *testing.T) {
	tr := newScenario("import Counter from \"/app/islands/Counter.tsx\";\n")
	for i := 0; i < 2; i++ {
		res, err := tr.Transform(context.Background(), []byte(pageSource), pagePath)
		if err != nil {
			t.Fatalf("transform %d: %v", i, err)
		}
		if res.Resolutions.First != 3 || res.Resolutions.Repeats != 0 {
			t.Fatalf("unexpected per-call resolutions %+v", res.Resolutions)
		}
	}
	stats := tr.Stats()
	if stats.Resolve.First != 3 || stats.Resolve.Repeats != 3 {
		t.Fatalf("unexpected resolver stats %+v", stats.Resolve)
	}
	if stats.Content.Misses != 3 {
		t.Fatalf("expected three storage reads beyond the seeded page, got %+v", stats.Content)
	}
	if stats.Compile.Misses != 1 || stats.Compile.Hits != 3 {
		t.Fatalf("unexpected compile stats %+v", stats.Compile)
	}

	tr.Reset()
	if got := tr.Stats(); got != (Stats{}) {
		t.Fatalf("expected zero stats after reset, got %+v", got)
	}
}

func TestTransformConcurrentCalls(t *testing.T) {
	tr := newScenario("import Counter from \"/app/islands/Counter.tsx\";\n")
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := tr.Transform(context.Background(), []byte(pageSource), pagePath)
			if err == nil && !res.Hydrate {
				err = errors.New("expected hydration")
			}
			errs[i] = err
		}()
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
}

func TestTransformCanceled(t *testing.T) {
	tr := newScenario("")
	if _, err := tr.Transform(testutil.CanceledContext(), []byte(pageSource), pagePath); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTransformOnDisk(t *testing.T) {
	root := t.TempDir()
	page := filepath.Join(root, "app", "routes", "index.mdx")
	source := "import Nav from \"@/components/Nav\"\n\n<Nav />\n"
	testutil.MustWriteFile(t, page, source)
	testutil.MustWriteFile(t, filepath.Join(root, "app", "components", "Nav.tsx"), "import Menu from \"../islands/Menu\";\nexport default () => <Menu />;\n")
	testutil.MustWriteFile(t, filepath.Join(root, "app", "islands", "Menu.tsx"), "export default () => null;\n")

	tr := New(root, resolve.NewFS(root, map[string]string{"@/": "/app/"}), WithCompilerOptions(compilerOptions()))
	res, err := tr.Transform(context.Background(), []byte(source), page)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if !res.Hydrate || !slices.Equal(res.Islands, []string{"/app/islands/Menu.tsx"}) {
		t.Fatalf("expected Menu island, got %v %#v (deps %#v)", res.Hydrate, res.Islands, res.Dependencies)
	}
}
