package mdx

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrUnknownPlugin = errors.New("unknown remark plugin")

type Registry struct {
	plugins map[string]func() Plugin
}

func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]func() Plugin)}
}

// DefaultRegistry holds the built-in plugins. Aliases match the names the
// plugins go by in remark configs.
func DefaultRegistry() *Registry {
	registry := NewRegistry()
	mustRegister(registry, Frontmatter, "remark-frontmatter")
	mustRegister(registry, MDXFrontmatter, "remark-mdx-frontmatter")
	mustRegister(registry, GFM, "remark-gfm")
	return registry
}

func mustRegister(registry *Registry, factory func() Plugin, aliases ...string) {
	if err := registry.Register(factory, aliases...); err != nil {
		panic(err)
	}
}

func (r *Registry) Register(factory func() Plugin, aliases ...string) error {
	if factory == nil {
		return errors.New("plugin factory is nil")
	}
	plugin := factory()
	if plugin == nil {
		return errors.New("plugin factory returned nil")
	}

	ids := append([]string{plugin.Name()}, aliases...)
	for _, id := range ids {
		key := normalizeID(id)
		if key == "" {
			return errors.New("plugin name cannot be empty")
		}
		if _, exists := r.plugins[key]; exists {
			return fmt.Errorf("plugin already registered: %s", id)
		}
	}

	for _, id := range ids {
		r.plugins[normalizeID(id)] = factory
	}
	return nil
}

func (r *Registry) Lookup(name string) (Plugin, error) {
	if r == nil {
		return nil, errors.New("plugin registry is nil")
	}
	factory, ok := r.plugins[normalizeID(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, strings.TrimSpace(name))
	}
	return factory(), nil
}

// Resolve looks up every name, keeping the order given.
func (r *Registry) Resolve(names []string) ([]Plugin, error) {
	plugins := make([]Plugin, 0, len(names))
	for _, name := range names {
		plugin, err := r.Lookup(name)
		if err != nil {
			return nil, err
		}
		plugins = append(plugins, plugin)
	}
	return plugins, nil
}

func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	seen := make(map[string]struct{})
	names := make([]string, 0, len(r.plugins))
	for _, factory := range r.plugins {
		name := factory().Name()
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeID(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
