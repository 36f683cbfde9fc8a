package resolve

import "context"

// ResolvedID is the canonical identity a specifier resolves to.
type ResolvedID struct {
	ID string
}

// Resolver maps a specifier, as written in importer, to a module identity.
// A nil result with a nil error means the specifier could not be resolved.
type Resolver interface {
	Resolve(ctx context.Context, specifier string, importer string) (*ResolvedID, error)
}

type ResolverFunc func(ctx context.Context, specifier string, importer string) (*ResolvedID, error)

func (f ResolverFunc) Resolve(ctx context.Context, specifier string, importer string) (*ResolvedID, error) {
	return f(ctx, specifier, importer)
}

// Map is a fixed specifier to identity table, ignoring the importer.
type Map map[string]string

func (m Map) Resolve(_ context.Context, specifier string, _ string) (*ResolvedID, error) {
	id, ok := m[specifier]
	if !ok {
		return nil, nil
	}
	return &ResolvedID{ID: id}, nil
}
