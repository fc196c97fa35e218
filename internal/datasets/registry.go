// Package datasets holds the built-in dataset specifications and the
// registry that maps converter names to them.
package datasets

import (
	"fmt"
	"sort"

	cerrors "github.com/fieldconv/fieldconv/internal/errors"
	"github.com/fieldconv/fieldconv/internal/spec"
)

// Builder constructs a dataset specification. When sources are given they
// replace the specification's default source locations.
type Builder func(sources ...string) *spec.Spec

var registry = map[string]Builder{}

// Register adds a builder under a converter name. Registering the same name
// twice panics; converter names are wired at init time and must be unique.
func Register(name string, builder Builder) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("datasets: converter %q registered twice", name))
	}
	registry[name] = builder
}

// Get builds the specification for a converter name.
func Get(name string, sources ...string) (*spec.Spec, error) {
	builder, ok := registry[name]
	if !ok {
		return nil, cerrors.NewValidationError(cerrors.CodeInvalidSpec,
			fmt.Sprintf("unknown converter %q", name))
	}
	return builder(sources...), nil
}

// Names returns the registered converter names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func withSources(sp *spec.Spec, sources []string) *spec.Spec {
	if len(sources) > 0 {
		sp.Sources = sources
	}
	return sp
}
