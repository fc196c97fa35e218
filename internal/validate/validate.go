// Package validate coerces a pipeline output table to its resolved schema
// and enforces the schema's constraints. Validation is fail-fast: the first
// violating column aborts the run with the column name, the violation kind
// and the number of offending rows.
package validate

import (
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"

	cerrors "github.com/fieldconv/fieldconv/internal/errors"
	"github.com/fieldconv/fieldconv/internal/schema"
	"github.com/fieldconv/fieldconv/internal/table"
)

// Table casts every column of tbl to the type the resolved schema declares
// for it, then checks required, enum and numeric bound constraints. The
// table is modified in place. Columns are processed in name order so a
// failure is deterministic across runs.
func Table(tbl *table.Table, resolved *schema.Resolved) error {
	for _, name := range tbl.SortedNames() {
		prop, ok := resolved.Property(name)
		if !ok {
			return cerrors.NewValidationError(cerrors.CodeCoercionFailed,
				fmt.Sprintf("column %q is not defined in the resolved schema", name))
		}
		if err := coerceColumn(tbl.Column(name), prop.Type, name == tbl.GeometryName()); err != nil {
			return err
		}
	}

	required := resolved.RequiredNames()
	sort.Strings(required)
	for _, name := range required {
		if !tbl.Has(name) {
			return cerrors.NewValidationError(cerrors.CodeMissingRequiredField,
				fmt.Sprintf("required column %q is absent from the output", name))
		}
	}

	for _, name := range tbl.SortedNames() {
		prop, _ := resolved.Property(name)
		if err := checkConstraints(tbl.Column(name), prop, resolved.IsRequired(name)); err != nil {
			return err
		}
	}

	log.Printf("validate: %d columns, %d rows passed", tbl.NumColumns(), tbl.NumRows())
	return nil
}

func coerceColumn(col *table.Column, typ schema.DataType, isGeometry bool) error {
	if isGeometry {
		if typ != schema.TypeGeometry {
			return cerrors.NewValidationError(cerrors.CodeCoercionFailed,
				fmt.Sprintf("geometry column %q declared as %s", col.Name, typ))
		}
		return nil
	}

	failed := 0
	for i, v := range col.Values {
		if v == nil {
			continue
		}
		cv, ok := coerceValue(v, typ)
		if !ok {
			failed++
			continue
		}
		col.Values[i] = cv
	}
	if failed > 0 {
		return cerrors.NewValidationError(cerrors.CodeCoercionFailed,
			fmt.Sprintf("column %q: %d values cannot be cast to %s", col.Name, failed, typ)).
			WithDetails(map[string]interface{}{"column": col.Name, "rows": failed})
	}
	return nil
}

func coerceValue(v interface{}, typ schema.DataType) (interface{}, bool) {
	switch typ {
	case schema.TypeString:
		return coerceString(v)
	case schema.TypeInt32:
		n, ok := coerceInt(v)
		if !ok || n > 1<<31-1 || n < -(1<<31) {
			return nil, false
		}
		return int32(n), true
	case schema.TypeInt64:
		return passInt(v)
	case schema.TypeFloat:
		f, ok := coerceFloat(v)
		if !ok {
			return nil, false
		}
		return float32(f), true
	case schema.TypeDouble:
		f, ok := coerceFloat(v)
		return f, ok
	case schema.TypeBoolean:
		return coerceBool(v)
	case schema.TypeDateTime:
		return coerceDateTime(v)
	case schema.TypeDate:
		return coerceDate(v)
	case schema.TypeGeometry:
		g, ok := v.(orb.Geometry)
		return g, ok
	}
	return nil, false
}

func passInt(v interface{}) (interface{}, bool) {
	n, ok := coerceInt(v)
	if !ok {
		return nil, false
	}
	return n, true
}

func coerceString(v interface{}) (interface{}, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case bool:
		return strconv.FormatBool(s), true
	case int:
		return strconv.Itoa(s), true
	case int32:
		return strconv.FormatInt(int64(s), 10), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32), true
	case time.Time:
		return s.UTC().Format(time.RFC3339), true
	}
	return nil, false
}

func coerceInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float32:
		return wholeFloat(float64(n))
	case float64:
		return wholeFloat(n)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return parsed, err == nil
	}
	return 0, false
}

// wholeFloat narrows a float to an integer only when no information is lost.
func wholeFloat(f float64) (int64, bool) {
	n := int64(f)
	if float64(n) != f {
		return 0, false
	}
	return n, true
}

func coerceFloat(v interface{}) (float64, bool) {
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
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return parsed, err == nil
	}
	return 0, false
}

func coerceBool(v interface{}) (interface{}, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "t", "yes", "1":
			return true, true
		case "false", "f", "no", "0":
			return false, true
		}
	case int:
		if b == 0 || b == 1 {
			return b == 1, true
		}
	case int64:
		if b == 0 || b == 1 {
			return b == 1, true
		}
	}
	return nil, false
}

// datetimeLayouts are tried in order when parsing datetime strings.
var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func coerceDateTime(v interface{}) (interface{}, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true
	case string:
		for _, layout := range datetimeLayouts {
			parsed, err := time.Parse(layout, strings.TrimSpace(t))
			if err == nil {
				return parsed.UTC(), true
			}
		}
	}
	return nil, false
}

func coerceDate(v interface{}) (interface{}, bool) {
	ts, ok := coerceDateTime(v)
	if !ok {
		return nil, false
	}
	t := ts.(time.Time)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}

func checkConstraints(col *table.Column, prop schema.Property, required bool) error {
	if required {
		nulls := 0
		for _, v := range col.Values {
			if v == nil {
				nulls++
			}
		}
		if nulls > 0 {
			return cerrors.NewValidationError(cerrors.CodeMissingRequiredField,
				fmt.Sprintf("required column %q has %d null values", col.Name, nulls)).
				WithDetails(map[string]interface{}{"column": col.Name, "rows": nulls})
		}
	}

	if len(prop.Enum) > 0 {
		if err := checkEnum(col, prop.Enum); err != nil {
			return err
		}
	}

	return checkBounds(col, prop)
}

func checkEnum(col *table.Column, enum []interface{}) error {
	allowed := make(map[interface{}]bool, len(enum))
	for _, e := range enum {
		allowed[normalizeEnum(e)] = true
	}
	outside := 0
	for _, v := range col.Values {
		if v == nil {
			continue
		}
		if !allowed[normalizeEnum(v)] {
			outside++
		}
	}
	if outside > 0 {
		return cerrors.NewValidationError(cerrors.CodeInvalidEnumValue,
			fmt.Sprintf("column %q: %d values outside the declared enum", col.Name, outside)).
			WithDetails(map[string]interface{}{"column": col.Name, "rows": outside})
	}
	return nil
}

// normalizeEnum folds numeric enum members onto one representation so a
// coerced int32 compares equal to a YAML-parsed int.
func normalizeEnum(v interface{}) interface{} {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case float32:
		return float64(n)
	}
	return v
}

func checkBounds(col *table.Column, prop schema.Property) error {
	if prop.Minimum == nil && prop.Maximum == nil &&
		prop.ExclusiveMinimum == nil && prop.ExclusiveMaximum == nil {
		return nil
	}
	violations := 0
	for _, v := range col.Values {
		if v == nil {
			continue
		}
		f, ok := numericValue(v)
		if !ok {
			continue
		}
		if prop.Minimum != nil && f < *prop.Minimum {
			violations++
			continue
		}
		if prop.ExclusiveMinimum != nil && f <= *prop.ExclusiveMinimum {
			violations++
			continue
		}
		if prop.Maximum != nil && f > *prop.Maximum {
			violations++
			continue
		}
		if prop.ExclusiveMaximum != nil && f >= *prop.ExclusiveMaximum {
			violations++
		}
	}
	if violations > 0 {
		return cerrors.NewValidationError(cerrors.CodeConstraintViolation,
			fmt.Sprintf("column %q: %d values violate numeric bounds", col.Name, violations)).
			WithDetails(map[string]interface{}{"column": col.Name, "rows": violations})
	}
	return nil
}

func numericValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
