// Package table implements the Working Table: the column-major, geometry-
// carrying tabular structure that flows through the conversion pipeline.
// Null cells are represented as nil values.
package table

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
)

// Column is a single named column of dynamically typed values.
type Column struct {
	Name   string
	Values []interface{}
}

// Table is an ordered collection of columns with equal length. Exactly one
// column, identified by geomName, holds orb.Geometry values and is always
// present.
type Table struct {
	cols     []*Column
	byName   map[string]*Column
	geomName string
}

// New creates an empty table whose geometry column carries the given name.
func New(geomName string, geometries []orb.Geometry) *Table {
	values := make([]interface{}, len(geometries))
	for i, g := range geometries {
		values[i] = g
	}
	t := &Table{byName: make(map[string]*Column), geomName: geomName}
	col := &Column{Name: geomName, Values: values}
	t.cols = append(t.cols, col)
	t.byName[geomName] = col
	return t
}

// NumRows returns the row count.
func (t *Table) NumRows() int {
	return len(t.cols[0].Values)
}

// NumColumns returns the column count, geometry included.
func (t *Table) NumColumns() int {
	return len(t.cols)
}

// Names returns the column names in declaration order.
func (t *Table) Names() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// SortedNames returns the column names in lexicographic order. Used for
// stable column-set comparison across concatenated source files.
func (t *Table) SortedNames() []string {
	names := t.Names()
	sort.Strings(names)
	return names
}

// Has reports whether a column with the given name exists.
func (t *Table) Has(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// Column returns the named column, or nil if absent.
func (t *Table) Column(name string) *Column {
	return t.byName[name]
}

// GeometryName returns the current name of the geometry column.
func (t *Table) GeometryName() string {
	return t.geomName
}

// Geometries returns the geometry column decoded as orb.Geometry values.
// Nil cells stay nil.
func (t *Table) Geometries() []orb.Geometry {
	col := t.byName[t.geomName]
	out := make([]orb.Geometry, len(col.Values))
	for i, v := range col.Values {
		if g, ok := v.(orb.Geometry); ok {
			out[i] = g
		}
	}
	return out
}

// AddColumn appends a new column. The value slice length must match the row
// count of the table.
func (t *Table) AddColumn(name string, values []interface{}) error {
	if _, exists := t.byName[name]; exists {
		return fmt.Errorf("table: column %q already exists", name)
	}
	if len(values) != t.NumRows() {
		return fmt.Errorf("table: column %q has %d values, table has %d rows", name, len(values), t.NumRows())
	}
	col := &Column{Name: name, Values: values}
	t.cols = append(t.cols, col)
	t.byName[name] = col
	return nil
}

// AddConstantColumn appends a column filled with one value for every row.
func (t *Table) AddConstantColumn(name string, value interface{}) error {
	values := make([]interface{}, t.NumRows())
	for i := range values {
		values[i] = value
	}
	return t.AddColumn(name, values)
}

// SetColumn replaces the values of an existing column in place.
func (t *Table) SetColumn(name string, values []interface{}) error {
	col, ok := t.byName[name]
	if !ok {
		return fmt.Errorf("table: column %q does not exist", name)
	}
	if len(values) != t.NumRows() {
		return fmt.Errorf("table: column %q replacement has %d values, table has %d rows", name, len(values), t.NumRows())
	}
	col.Values = values
	return nil
}

// Rename changes a column's name, keeping its position. Renaming the
// geometry column keeps the geometry invariant tracked under the new name.
func (t *Table) Rename(oldName, newName string) error {
	col, ok := t.byName[oldName]
	if !ok {
		return fmt.Errorf("table: column %q does not exist", oldName)
	}
	if oldName == newName {
		return nil
	}
	if _, exists := t.byName[newName]; exists {
		return fmt.Errorf("table: column %q already exists", newName)
	}
	delete(t.byName, oldName)
	col.Name = newName
	t.byName[newName] = col
	if t.geomName == oldName {
		t.geomName = newName
	}
	return nil
}

// Duplicate copies a column's values under a new name, appended at the end.
// The geometry column cannot be duplicated.
func (t *Table) Duplicate(srcName, dstName string) error {
	col, ok := t.byName[srcName]
	if !ok {
		return fmt.Errorf("table: column %q does not exist", srcName)
	}
	if srcName == t.geomName {
		return fmt.Errorf("table: geometry column %q cannot be duplicated", srcName)
	}
	values := make([]interface{}, len(col.Values))
	copy(values, col.Values)
	return t.AddColumn(dstName, values)
}

// Drop removes a column. The geometry column cannot be dropped.
func (t *Table) Drop(name string) error {
	if name == t.geomName {
		return fmt.Errorf("table: geometry column %q cannot be dropped", name)
	}
	if _, ok := t.byName[name]; !ok {
		return fmt.Errorf("table: column %q does not exist", name)
	}
	delete(t.byName, name)
	for i, c := range t.cols {
		if c.Name == name {
			t.cols = append(t.cols[:i], t.cols[i+1:]...)
			break
		}
	}
	return nil
}

// Filter keeps only the rows whose mask entry is true, preserving relative
// order. The mask length must match the row count.
func (t *Table) Filter(mask []bool) error {
	if len(mask) != t.NumRows() {
		return fmt.Errorf("table: mask has %d entries, table has %d rows", len(mask), t.NumRows())
	}
	for _, col := range t.cols {
		kept := col.Values[:0:0]
		for i, keep := range mask {
			if keep {
				kept = append(kept, col.Values[i])
			}
		}
		col.Values = kept
	}
	return nil
}

// Append concatenates another table's rows onto this one. Both tables must
// have identical column sets; column order follows the receiver.
func (t *Table) Append(other *Table) error {
	if len(t.cols) != len(other.cols) {
		return fmt.Errorf("table: column count mismatch: %d vs %d", len(t.cols), len(other.cols))
	}
	for _, col := range t.cols {
		if !other.Has(col.Name) {
			return fmt.Errorf("table: column %q missing from appended table", col.Name)
		}
	}
	for _, col := range t.cols {
		col.Values = append(col.Values, other.byName[col.Name].Values...)
	}
	return nil
}

// Row materializes one row as a name→value map. Intended for serialization
// and tests, not for bulk processing.
func (t *Table) Row(i int) map[string]interface{} {
	row := make(map[string]interface{}, len(t.cols))
	for _, col := range t.cols {
		row[col.Name] = col.Values[i]
	}
	return row
}
