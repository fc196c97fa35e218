package schema

import (
	"context"
	"log"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	cerrors "github.com/fieldconv/fieldconv/internal/errors"
)

// Fetcher resolves an extension identifier to its schema fragment.
// Implementations may read local files, an in-memory registry, or a remote
// catalog; the resolver treats any failure as an unresolvable extension.
type Fetcher interface {
	Fetch(ctx context.Context, extensionID string) (*Fragment, error)
}

// Registry is an in-memory Fetcher keyed by extension identifier.
type Registry struct {
	fragments map[string]*Fragment
}

// NewRegistry creates an empty extension registry.
func NewRegistry() *Registry {
	return &Registry{fragments: make(map[string]*Fragment)}
}

// Register adds a fragment under an extension identifier, replacing any
// previous registration.
func (r *Registry) Register(extensionID string, fragment *Fragment) {
	r.fragments[extensionID] = fragment
}

// Fetch implements Fetcher.
func (r *Registry) Fetch(_ context.Context, extensionID string) (*Fragment, error) {
	fragment, ok := r.fragments[extensionID]
	if !ok {
		return nil, cerrors.NewExtensionError(extensionID, nil)
	}
	return fragment, nil
}

// FileFetcher resolves extension identifiers to local YAML fragment files.
type FileFetcher struct {
	// Paths maps extension identifiers to fragment file paths.
	Paths map[string]string
}

// Fetch implements Fetcher by loading and parsing the mapped YAML file.
func (f *FileFetcher) Fetch(_ context.Context, extensionID string) (*Fragment, error) {
	path, ok := f.Paths[extensionID]
	if !ok {
		return nil, cerrors.NewExtensionError(extensionID, nil)
	}
	return LoadFragmentFile(path)
}

// LoadFragmentFile parses a schema fragment from a YAML file.
func LoadFragmentFile(path string) (*Fragment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCategorySchema, cerrors.CodeInvalidFragment,
			"failed to read schema fragment "+path, err)
	}
	var fragment Fragment
	if err := yaml.Unmarshal(data, &fragment); err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCategorySchema, cerrors.CodeInvalidFragment,
			"failed to parse schema fragment "+path, err)
	}
	return &fragment, nil
}

// Resolve merges the base schema, the fragments of the declared extensions,
// and the dataset-supplied missing-schema fragment into one Resolved schema.
//
// Merging is an ordered override-fold: a property defined in more than one
// layer takes the definition from the highest-precedence layer (fragment
// over extension over base). Overrides are deterministic and logged.
// Required lists accumulate across layers.
func Resolve(ctx context.Context, base *Fragment, extensions []string, fetcher Fetcher, missing *Fragment) (*Resolved, error) {
	layers := make([]*Fragment, 0, len(extensions)+2)
	names := make([]string, 0, len(extensions)+2)
	if base != nil {
		layers = append(layers, base)
		names = append(names, "base")
	}

	for _, id := range extensions {
		if fetcher == nil {
			return nil, cerrors.NewExtensionError(id, nil)
		}
		fragment, err := fetcher.Fetch(ctx, id)
		if err != nil {
			if cerrors.GetCode(err) == cerrors.CodeExtensionUnresolved {
				return nil, err
			}
			return nil, cerrors.NewExtensionError(id, err)
		}
		layers = append(layers, fragment)
		names = append(names, id)
	}

	if missing != nil {
		layers = append(layers, missing)
		names = append(names, "dataset fragment")
	}

	resolved := &Resolved{
		properties: make(map[string]Property),
		required:   make(map[string]bool),
	}
	for i, layer := range layers {
		// Iterate property names in sorted order so override logging
		// is deterministic across runs.
		propNames := make([]string, 0, len(layer.Properties))
		for name := range layer.Properties {
			propNames = append(propNames, name)
		}
		sort.Strings(propNames)

		for _, name := range propNames {
			if _, exists := resolved.properties[name]; exists {
				log.Printf("schema: property %q overridden by %s", name, names[i])
			}
			resolved.properties[name] = layer.Properties[name]
		}
		for _, name := range layer.Required {
			resolved.required[name] = true
		}
	}

	// A column marked required without a property definition has no type
	// to validate against.
	for name := range resolved.required {
		if _, ok := resolved.properties[name]; !ok {
			return nil, cerrors.New(cerrors.ErrCategorySchema, cerrors.CodeInvalidFragment,
				"required column "+name+" has no property definition in any layer")
		}
	}

	return resolved, nil
}
