package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geo"
	"github.com/spaolacci/murmur3"

	"github.com/fieldconv/fieldconv/internal/spec"
	"github.com/fieldconv/fieldconv/internal/table"
)

// Reusable column migrations and filters, covering the transforms that
// recur across dataset specifications: categorical remapping, unit scaling,
// string normalization, datetime reformatting and id synthesis.

// MapValues remaps categorical values through a lookup table. Unmapped
// values become null, not an error; required-ness is enforced later by the
// validator against the target schema.
func MapValues(mapping map[interface{}]interface{}) spec.ColumnMigration {
	return func(values []interface{}) []interface{} {
		out := make([]interface{}, len(values))
		for i, v := range values {
			if v == nil {
				continue
			}
			if mapped, ok := mapping[v]; ok {
				out[i] = mapped
			}
		}
		return out
	}
}

// Scale multiplies numeric values by a constant factor; the usual case is
// 0.0001 for square meters to hectares. Non-numeric values become null.
func Scale(factor float64) spec.ColumnMigration {
	return func(values []interface{}) []interface{} {
		out := make([]interface{}, len(values))
		for i, v := range values {
			if f, ok := asFloat(v); ok {
				out[i] = f * factor
			}
		}
		return out
	}
}

// StripLower trims surrounding whitespace and lowercases string values.
func StripLower() spec.ColumnMigration {
	return func(values []interface{}) []interface{} {
		out := make([]interface{}, len(values))
		for i, v := range values {
			if s, ok := v.(string); ok {
				out[i] = strings.ToLower(strings.TrimSpace(s))
			} else {
				out[i] = v
			}
		}
		return out
	}
}

// ReformatDatetime parses string values with the given layout and rewrites
// them as UTC RFC 3339 with a trailing Z. Unparseable values become null.
func ReformatDatetime(layout string) spec.ColumnMigration {
	return func(values []interface{}) []interface{} {
		out := make([]interface{}, len(values))
		for i, v := range values {
			s, ok := v.(string)
			if !ok {
				continue
			}
			ts, err := time.Parse(layout, s)
			if err != nil {
				continue
			}
			out[i] = ts.UTC().Format("2006-01-02T15:04:05Z")
		}
		return out
	}
}

// HashID derives a stable hexadecimal identifier from each value's string
// form. Equal inputs always produce equal identifiers.
func HashID() spec.ColumnMigration {
	return func(values []interface{}) []interface{} {
		out := make([]interface{}, len(values))
		for i, v := range values {
			if v == nil {
				continue
			}
			h1, h2 := murmur3.Sum128([]byte(fmt.Sprint(v)))
			out[i] = fmt.Sprintf("%016x%016x", h1, h2)
		}
		return out
	}
}

// DeterministicUUID derives a name-based (version 5) UUID for each value
// within the namespace of the dataset identifier, so re-running a
// conversion yields byte-identical ids.
func DeterministicUUID(datasetID string) spec.ColumnMigration {
	namespace := uuid.NewSHA1(uuid.NameSpaceURL, []byte(datasetID))
	return func(values []interface{}) []interface{} {
		out := make([]interface{}, len(values))
		for i, v := range values {
			if v == nil {
				continue
			}
			out[i] = uuid.NewSHA1(namespace, []byte(fmt.Sprint(v))).String()
		}
		return out
	}
}

// AllowList keeps only the rows whose column value is in the allowed set.
// The returned filter reports set membership with polarity set, matching
// the way dataset specifications express allow-lists.
func AllowList(allowed ...interface{}) spec.ColumnFilter {
	set := make(map[interface{}]bool, len(allowed))
	for _, v := range allowed {
		set[v] = true
	}
	return func(values []interface{}) ([]bool, bool) {
		mask := make([]bool, len(values))
		for i, v := range values {
			mask[i] = set[v]
		}
		return mask, true
	}
}

// NotNull drops the rows whose column value is null.
func NotNull() spec.ColumnFilter {
	return func(values []interface{}) ([]bool, bool) {
		mask := make([]bool, len(values))
		for i, v := range values {
			mask[i] = v == nil
		}
		return mask, false
	}
}

// AssignSequentialID is a whole-table migration that writes 1-based row
// numbers into the named column, adding it when absent.
func AssignSequentialID(column string) spec.TableMigration {
	return spec.TableMigrationFunc(func(tbl *table.Table) (*table.Table, error) {
		values := make([]interface{}, tbl.NumRows())
		for i := range values {
			values[i] = int64(i + 1)
		}
		if tbl.Has(column) {
			return tbl, tbl.SetColumn(column, values)
		}
		return tbl, tbl.AddColumn(column, values)
	})
}

// RecomputeAreaHectares is a whole-table migration that replaces the named
// column with the geodesic area of each geometry, in hectares.
func RecomputeAreaHectares(column string) spec.TableMigration {
	return spec.TableMigrationFunc(func(tbl *table.Table) (*table.Table, error) {
		values := make([]interface{}, tbl.NumRows())
		for i, g := range tbl.Geometries() {
			if g == nil {
				continue
			}
			values[i] = geo.Area(g) * 0.0001
		}
		if tbl.Has(column) {
			return tbl, tbl.SetColumn(column, values)
		}
		return tbl, tbl.AddColumn(column, values)
	})
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
