// Package pipeline applies the ordered transform sequence of a dataset
// specification to a Working Table. The stage order is fixed and not
// reconfigurable per dataset: global migration, row filtering, constant
// columns, column migrations, duplication, rename, prune. Stages with no
// configured effect are no-ops.
package pipeline

import (
	"fmt"
	"log"
	"sort"

	cerrors "github.com/fieldconv/fieldconv/internal/errors"
	"github.com/fieldconv/fieldconv/internal/spec"
	"github.com/fieldconv/fieldconv/internal/table"
)

// Run applies all seven stages to the table and returns the transformed
// table. The input table may be mutated; callers must not reuse it.
func Run(tbl *table.Table, sp *spec.Spec) (*table.Table, error) {
	tbl, err := runMigration(tbl, sp)
	if err != nil {
		return nil, err
	}
	if err := runFilters(tbl, sp); err != nil {
		return nil, err
	}
	if err := runConstants(tbl, sp); err != nil {
		return nil, err
	}
	if err := runColumnMigrations(tbl, sp); err != nil {
		return nil, err
	}
	if err := runDuplication(tbl, sp); err != nil {
		return nil, err
	}
	if err := runRename(tbl, sp); err != nil {
		return nil, err
	}
	if err := runPrune(tbl, sp); err != nil {
		return nil, err
	}
	return tbl, nil
}

// runMigration applies the whole-table escape hatch, when configured.
func runMigration(tbl *table.Table, sp *spec.Spec) (*table.Table, error) {
	if sp.Migration == nil {
		return tbl, nil
	}
	migrated, err := sp.Migration.Migrate(tbl)
	if err != nil {
		return nil, cerrors.NewInternalError("global migration failed", err)
	}
	if migrated == nil {
		return nil, cerrors.NewInternalError("global migration returned no table", nil)
	}
	return migrated, nil
}

// runFilters composes the configured row filters by conjunction and drops
// the failing rows. Each filter yields a mask of failing rows plus a
// polarity flag that negates the mask before application. Filtering is
// silent data reduction, never an error.
func runFilters(tbl *table.Table, sp *spec.Spec) error {
	if len(sp.ColumnFilters) == 0 {
		return nil
	}

	keep := make([]bool, tbl.NumRows())
	for i := range keep {
		keep[i] = true
	}

	for _, name := range sortedKeys(sp.ColumnFilters) {
		col := tbl.Column(name)
		if col == nil {
			return cerrors.NewInternalError(
				fmt.Sprintf("row filter references unknown column %q", name), nil)
		}
		mask, invert := sp.ColumnFilters[name](col.Values)
		if len(mask) != tbl.NumRows() {
			return cerrors.NewInternalError(
				fmt.Sprintf("row filter on %q produced %d mask entries for %d rows", name, len(mask), tbl.NumRows()), nil)
		}
		for i, failed := range mask {
			if invert {
				failed = !failed
			}
			if failed {
				keep[i] = false
			}
		}
	}

	before := tbl.NumRows()
	if err := tbl.Filter(keep); err != nil {
		return cerrors.NewInternalError("row filtering failed", err)
	}
	if dropped := before - tbl.NumRows(); dropped > 0 {
		log.Printf("pipeline: filters dropped %d of %d rows", dropped, before)
	}
	return nil
}

// runConstants injects the configured constant-valued columns.
func runConstants(tbl *table.Table, sp *spec.Spec) error {
	for _, name := range sortedKeys(sp.AddColumns) {
		if err := tbl.AddConstantColumn(name, sp.AddColumns[name]); err != nil {
			return cerrors.NewInternalError("constant column injection failed", err)
		}
	}
	return nil
}

// runColumnMigrations replaces column values with the configured per-column
// transforms. A migration must preserve the column length.
func runColumnMigrations(tbl *table.Table, sp *spec.Spec) error {
	for _, name := range sortedKeys(sp.ColumnMigrations) {
		col := tbl.Column(name)
		if col == nil {
			return cerrors.NewInternalError(
				fmt.Sprintf("column migration references unknown column %q", name), nil)
		}
		migrated := sp.ColumnMigrations[name](col.Values)
		if len(migrated) != tbl.NumRows() {
			return cerrors.NewInternalError(
				fmt.Sprintf("column migration on %q produced %d values for %d rows", name, len(migrated), tbl.NumRows()), nil)
		}
		if err := tbl.SetColumn(name, migrated); err != nil {
			return cerrors.NewInternalError("column migration failed", err)
		}
	}
	return nil
}

// runDuplication copies source columns mapped to more than one target name.
// The source column keeps its first target for the rename stage; each
// additional target gets a copy under its final name.
func runDuplication(tbl *table.Table, sp *spec.Spec) error {
	for _, mapping := range sp.Columns {
		if len(mapping.Targets) < 2 || !tbl.Has(mapping.Source) {
			continue
		}
		for _, target := range mapping.Targets[1:] {
			if err := tbl.Duplicate(mapping.Source, target); err != nil {
				return cerrors.NewInternalError("column duplication failed", err)
			}
		}
	}
	return nil
}

// runRename applies the source-to-target name map in declaration order.
// Source columns absent from the table are skipped; they may legitimately
// exist only in some datasets sharing a specification template.
func runRename(tbl *table.Table, sp *spec.Spec) error {
	for _, mapping := range sp.Columns {
		if !tbl.Has(mapping.Source) {
			log.Printf("pipeline: rename source %q not present", mapping.Source)
			continue
		}
		if mapping.Source == mapping.Targets[0] {
			continue
		}
		if err := tbl.Rename(mapping.Source, mapping.Targets[0]); err != nil {
			return cerrors.NewInternalError("column rename failed", err)
		}
	}
	return nil
}

// runPrune drops every remaining column not named as a rename target. The
// geometry column is never dropped; the Working Table invariant keeps it
// present through the whole pipeline.
func runPrune(tbl *table.Table, sp *spec.Spec) error {
	targets := make(map[string]bool)
	for _, name := range sp.TargetNames() {
		targets[name] = true
	}

	for _, name := range tbl.Names() {
		if targets[name] || name == tbl.GeometryName() {
			continue
		}
		if err := tbl.Drop(name); err != nil {
			return cerrors.NewInternalError("column pruning failed", err)
		}
		log.Printf("pipeline: pruned unmapped column %q", name)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
