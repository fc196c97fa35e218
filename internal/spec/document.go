package spec

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	cerrors "github.com/fieldconv/fieldconv/internal/errors"
	"github.com/fieldconv/fieldconv/internal/schema"
)

// document is the YAML shape of the declarative part of a specification.
type document struct {
	ID            string                 `yaml:"id"`
	Title         string                 `yaml:"title"`
	Description   string                 `yaml:"description"`
	Source        string                 `yaml:"source"`
	Sources       []string               `yaml:"sources"`
	Columns       yaml.Node              `yaml:"columns"`
	AddColumns    map[string]interface{} `yaml:"add_columns"`
	Extensions    []string               `yaml:"extensions"`
	MissingSchema *schema.Fragment       `yaml:"missing_schemas"`
	ProviderName  string                 `yaml:"provider_name"`
	ProviderURL   string                 `yaml:"provider_url"`
	Attribution   string                 `yaml:"attribution"`
	License       yaml.Node              `yaml:"license"`
	BBox          []float64              `yaml:"bbox"`
}

// LoadDocument reads the declarative fields of a dataset specification from
// a YAML document. Function-valued fields (filters, migrations) cannot be
// expressed in YAML and are attached by the caller afterwards.
func LoadDocument(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.NewValidationError(cerrors.CodeInvalidSpec,
			"failed to read specification document "+path+": "+err.Error())
	}
	return ParseDocument(data)
}

// ParseDocument parses the declarative fields of a dataset specification
// from YAML bytes.
func ParseDocument(data []byte) (*Spec, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, cerrors.NewValidationError(cerrors.CodeInvalidSpec,
			"failed to parse specification document: "+err.Error())
	}

	s := &Spec{
		ID:             doc.ID,
		Title:          doc.Title,
		Description:    doc.Description,
		Sources:        doc.Sources,
		AddColumns:     doc.AddColumns,
		Extensions:     doc.Extensions,
		MissingSchemas: doc.MissingSchema,
		ProviderName:   doc.ProviderName,
		ProviderURL:    doc.ProviderURL,
		Attribution:    doc.Attribution,
		BBox:           doc.BBox,
	}
	if doc.Source != "" {
		s.Sources = append([]string{doc.Source}, s.Sources...)
	}

	columns, err := parseColumns(&doc.Columns)
	if err != nil {
		return nil, err
	}
	s.Columns = columns

	license, err := parseLicense(&doc.License)
	if err != nil {
		return nil, err
	}
	s.License = license

	return s, nil
}

// parseColumns decodes the rename map. YAML mappings preserve declaration
// order in the node tree, which the pipeline relies on; a plain Go map
// would lose it. Values are a single target name or a list of target names
// (duplication).
func parseColumns(node *yaml.Node) ([]ColumnMapping, error) {
	if node.Kind == 0 || node.IsZero() {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, cerrors.NewValidationError(cerrors.CodeInvalidSpec,
			"columns must be a mapping of source name to target name(s)")
	}

	var columns []ColumnMapping
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		value := node.Content[i+1]

		mapping := ColumnMapping{Source: key.Value}
		switch value.Kind {
		case yaml.ScalarNode:
			mapping.Targets = []string{value.Value}
		case yaml.SequenceNode:
			for _, item := range value.Content {
				mapping.Targets = append(mapping.Targets, item.Value)
			}
		default:
			return nil, cerrors.NewValidationError(cerrors.CodeInvalidSpec,
				fmt.Sprintf("column %q must map to a name or a list of names", key.Value))
		}
		columns = append(columns, mapping)
	}
	return columns, nil
}

// parseLicense decodes the license as either a short-form identifier string
// or a structured link object.
func parseLicense(node *yaml.Node) (interface{}, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		if node.IsZero() {
			return nil, nil
		}
		return node.Value, nil
	case yaml.MappingNode:
		var link Link
		if err := node.Decode(&link); err != nil {
			return nil, cerrors.NewValidationError(cerrors.CodeInvalidSpec,
				"failed to parse license link object: "+err.Error())
		}
		return link, nil
	default:
		return nil, cerrors.NewValidationError(cerrors.CodeInvalidSpec,
			"license must be an identifier string or a link object")
	}
}
