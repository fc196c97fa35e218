// Package spec defines the Dataset Specification: the declarative,
// per-dataset record that drives one conversion run. Declarative fields can
// be loaded from a YAML document; function-valued fields (filters,
// migrations) are attached in code as typed function values so they stay
// checkable at construction time.
package spec

import (
	"fmt"

	cerrors "github.com/fieldconv/fieldconv/internal/errors"
	"github.com/fieldconv/fieldconv/internal/schema"
	"github.com/fieldconv/fieldconv/internal/table"
)

// ColumnMapping maps one source column to one or more target columns.
// More than one target means the column is duplicated before renaming.
type ColumnMapping struct {
	Source  string
	Targets []string
}

// TableMigration is the whole-table escape hatch: an arbitrary
// table-to-table transform applied before any other pipeline stage.
type TableMigration interface {
	Migrate(tbl *table.Table) (*table.Table, error)
}

// TableMigrationFunc adapts a function to the TableMigration interface.
type TableMigrationFunc func(tbl *table.Table) (*table.Table, error)

// Migrate implements TableMigration.
func (f TableMigrationFunc) Migrate(tbl *table.Table) (*table.Table, error) {
	return f(tbl)
}

// FileMigration is applied to each source file's table before concatenation.
type FileMigration interface {
	MigrateFile(tbl *table.Table, path, uri string) (*table.Table, error)
}

// FileMigrationFunc adapts a function to the FileMigration interface.
type FileMigrationFunc func(tbl *table.Table, path, uri string) (*table.Table, error)

// MigrateFile implements FileMigration.
func (f FileMigrationFunc) MigrateFile(tbl *table.Table, path, uri string) (*table.Table, error) {
	return f(tbl, path, uri)
}

// ColumnMigration replaces a column's values with transformed ones. The
// returned slice must have the same length as the input.
type ColumnMigration func(values []interface{}) []interface{}

// ColumnFilter evaluates a row predicate over one column. The returned
// mask marks rows that fail the filter; when invert is true the mask is
// negated before being applied. Rows flagged by any applied filter are
// dropped, so an allow-list membership mask with invert=true keeps exactly
// the matching rows.
type ColumnFilter func(values []interface{}) (mask []bool, invert bool)

// Link is a structured license reference, used when the license is not a
// short-form identifier string.
type Link struct {
	Title string `yaml:"title" json:"title"`
	Href  string `yaml:"href" json:"href"`
	Type  string `yaml:"type,omitempty" json:"type,omitempty"`
	Rel   string `yaml:"rel" json:"rel"`
}

// Spec is the Dataset Specification. It is constructed once per conversion
// run and read-only thereafter.
type Spec struct {
	// ID is the unique collection identifier.
	ID string
	// Title of the collection.
	Title string
	// Description of the collection; may be multiline CommonMark.
	Description string
	// Sources lists one or more source locations (local path or URI),
	// read in this order.
	Sources []string
	// Columns is the ordered source-to-target rename map. Source columns
	// without a mapping entry are dropped after renaming.
	Columns []ColumnMapping
	// AddColumns defines constant-valued columns added to every row.
	AddColumns map[string]interface{}
	// ColumnMigrations are per-source-column value transforms.
	ColumnMigrations map[string]ColumnMigration
	// ColumnFilters are per-source-column row predicates. Filters compose
	// by conjunction; rows failing any filter are dropped.
	ColumnFilters map[string]ColumnFilter
	// Migration is the optional whole-table migration hook.
	Migration TableMigration
	// FileMigration is the optional per-file hook applied before
	// concatenation.
	FileMigration FileMigration
	// Extensions lists the implemented extension schema identifiers.
	Extensions []string
	// MissingSchemas defines the columns not covered by the base schema or
	// any extension. Keys are target column names.
	MissingSchemas *schema.Fragment

	// ProviderName names the data provider; required when ProviderURL is
	// set.
	ProviderName string
	// ProviderURL is the homepage of the data or the provider.
	ProviderURL string
	// Attribution is a free-form attribution notice.
	Attribution string
	// License is either a short-form identifier string or a Link.
	License interface{}
	// BBox is the bounding box in WGS84 [west, south, east, north]. When
	// nil it is computed from the converted geometries.
	BBox []float64
}

// TargetNames returns the set of target column names declared by the rename
// map, in declaration order.
func (s *Spec) TargetNames() []string {
	var names []string
	for _, m := range s.Columns {
		names = append(names, m.Targets...)
	}
	return names
}

// GeometryTarget returns the target name the geometry column maps to, or ""
// if the rename map does not cover a geometry column.
func (s *Spec) GeometryTarget(geomSource string) string {
	for _, m := range s.Columns {
		if m.Source == geomSource && len(m.Targets) > 0 {
			return m.Targets[0]
		}
	}
	return ""
}

// Validate checks the declarative invariants of the specification.
func (s *Spec) Validate() error {
	if s.ID == "" {
		return invalid("id is required")
	}
	if len(s.Sources) == 0 {
		return invalid("at least one source location is required")
	}
	if len(s.Columns) == 0 {
		return invalid("the column rename map must not be empty")
	}
	seen := make(map[string]bool)
	for _, m := range s.Columns {
		if m.Source == "" || len(m.Targets) == 0 {
			return invalid("every rename entry needs a source and at least one target")
		}
		for _, target := range m.Targets {
			if seen[target] {
				return invalid(fmt.Sprintf("target column %q mapped more than once", target))
			}
			seen[target] = true
		}
	}
	if s.ProviderURL != "" && s.ProviderName == "" {
		return invalid("provider_url must not be set without provider_name")
	}
	switch s.License.(type) {
	case nil, string, Link, *Link:
	default:
		return invalid("license must be an identifier string or a link object")
	}
	if s.BBox != nil && len(s.BBox) != 4 {
		return invalid("bbox must have exactly four values")
	}
	return nil
}

func invalid(message string) error {
	return cerrors.NewValidationError(cerrors.CodeInvalidSpec, "invalid dataset specification: "+message)
}
