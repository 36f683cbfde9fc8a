package mdx

import (
	"errors"
	"slices"
	"testing"
)

func TestDefaultRegistryResolvesNamesAndAliases(t *testing.T) {
	plugins, err := DefaultRegistry().Resolve([]string{"remark-frontmatter", " MDX-Frontmatter ", "gfm"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	names := make([]string, 0, len(plugins))
	for _, plugin := range plugins {
		names = append(names, plugin.Name())
	}
	want := []string{PluginFrontmatter, PluginMDXFrontmatter, PluginGFM}
	if !slices.Equal(names, want) {
		t.Fatalf("unexpected plugin order %#v", names)
	}
}

func TestRegistryUnknownPlugin(t *testing.T) {
	_, err := DefaultRegistry().Resolve([]string{"frontmatter", "remark-math"})
	if !errors.Is(err, ErrUnknownPlugin) {
		t.Fatalf("expected ErrUnknownPlugin, got %v", err)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(GFM); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(GFM); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	if err := registry.Register(Frontmatter, " "); err == nil {
		t.Fatalf("expected empty alias error")
	}
	if err := registry.Register(nil); err == nil {
		t.Fatalf("expected nil factory error")
	}
}

func TestMustRegisterPanicsOnDuplicateAlias(t *testing.T) {
	registry := NewRegistry()
	mustRegister(registry, GFM, "remark-gfm")
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for duplicate alias")
		}
	}()
	mustRegister(registry, Frontmatter, "remark-gfm")
}

func TestRegistryNames(t *testing.T) {
	names := DefaultRegistry().Names()
	want := []string{PluginFrontmatter, PluginGFM, PluginMDXFrontmatter}
	if !slices.Equal(names, want) {
		t.Fatalf("unexpected names %#v", names)
	}
	var nilRegistry *Registry
	if nilRegistry.Names() != nil {
		t.Fatalf("expected nil names from nil registry")
	}
	if _, err := nilRegistry.Lookup("gfm"); err == nil {
		t.Fatalf("expected nil registry lookup error")
	}
}

func TestMDXFrontmatterWithoutFrontmatterIsNoop(t *testing.T) {
	doc := newDocument([]byte("# x\n"))
	if err := MDXFrontmatter().Transform(doc); err != nil {
		t.Fatalf("transform: %v", err)
	}
	if len(doc.Exports) != 0 {
		t.Fatalf("expected no exports, got %#v", doc.Exports)
	}
}
