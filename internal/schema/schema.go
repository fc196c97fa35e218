// Package schema defines the canonical column schema model and resolves the
// authoritative schema for one conversion run by merging three layers:
// base canonical schema < declared extension schemas < dataset fragment.
package schema

// DataType enumerates the supported canonical column types.
type DataType string

const (
	TypeString   DataType = "string"
	TypeInt32    DataType = "int32"
	TypeInt64    DataType = "int64"
	TypeFloat    DataType = "float"
	TypeDouble   DataType = "double"
	TypeBoolean  DataType = "boolean"
	TypeDateTime DataType = "date-time"
	TypeDate     DataType = "date"
	TypeGeometry DataType = "geometry"
)

// Property describes the type and constraints of one target column.
type Property struct {
	// Type is the canonical data type of the column.
	Type DataType `yaml:"type" json:"type"`

	// Enum restricts non-null values to the listed members.
	Enum []interface{} `yaml:"enum,omitempty" json:"enum,omitempty"`

	// Numeric bounds. Nil means unbounded.
	Minimum          *float64 `yaml:"minimum,omitempty" json:"minimum,omitempty"`
	Maximum          *float64 `yaml:"maximum,omitempty" json:"maximum,omitempty"`
	ExclusiveMinimum *float64 `yaml:"exclusiveMinimum,omitempty" json:"exclusiveMinimum,omitempty"`
	ExclusiveMaximum *float64 `yaml:"exclusiveMaximum,omitempty" json:"exclusiveMaximum,omitempty"`
}

// Fragment is one schema layer: a set of property definitions plus the list
// of properties that must be fully non-null.
type Fragment struct {
	Required   []string            `yaml:"required" json:"required"`
	Properties map[string]Property `yaml:"properties" json:"properties"`
}

// Resolved is the merged, authoritative schema for one conversion run.
type Resolved struct {
	properties map[string]Property
	required   map[string]bool
}

// Has reports whether the schema defines the named column.
func (r *Resolved) Has(name string) bool {
	_, ok := r.properties[name]
	return ok
}

// Property returns the definition for the named column.
func (r *Resolved) Property(name string) (Property, bool) {
	p, ok := r.properties[name]
	return p, ok
}

// IsRequired reports whether the named column must be fully non-null.
func (r *Resolved) IsRequired(name string) bool {
	return r.required[name]
}

// RequiredNames returns the names of all required columns.
func (r *Resolved) RequiredNames() []string {
	names := make([]string, 0, len(r.required))
	for name := range r.required {
		names = append(names, name)
	}
	return names
}

// Len returns the number of defined columns.
func (r *Resolved) Len() int {
	return len(r.properties)
}

func exclusiveZero() *float64 {
	zero := 0.0
	return &zero
}

// Base returns the base canonical schema: the core field-boundary columns
// every converted dataset shares.
func Base() *Fragment {
	return &Fragment{
		Required: []string{"id", "geometry", "determination_datetime"},
		Properties: map[string]Property{
			"id":                     {Type: TypeString},
			"geometry":               {Type: TypeGeometry},
			"area":                   {Type: TypeFloat, ExclusiveMinimum: exclusiveZero()},
			"perimeter":              {Type: TypeFloat, ExclusiveMinimum: exclusiveZero()},
			"determination_datetime": {Type: TypeDateTime},
			"determination_method":   {Type: TypeString},
		},
	}
}
