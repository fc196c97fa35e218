package pipeline

import (
	"testing"

	"github.com/paulmach/orb"

	cerrors "github.com/fieldconv/fieldconv/internal/errors"
	"github.com/fieldconv/fieldconv/internal/spec"
	"github.com/fieldconv/fieldconv/internal/table"
)

func fieldTable(t *testing.T, columns map[string][]interface{}, rows int) *table.Table {
	t.Helper()
	geoms := make([]orb.Geometry, rows)
	for i := range geoms {
		x := float64(i)
		geoms[i] = orb.Polygon{{{x, 0}, {x + 1, 0}, {x + 1, 1}, {x, 1}, {x, 0}}}
	}
	tbl := table.New("geometry", geoms)
	for name, values := range columns {
		if err := tbl.AddColumn(name, values); err != nil {
			t.Fatal(err)
		}
	}
	return tbl
}

// The concrete area conversion scenario: square meters in, hectares out.
func TestAreaConversionScenario(t *testing.T) {
	tbl := fieldTable(t, map[string][]interface{}{
		"id":   {"a", "b", "c"},
		"area": {10000.0, 20000.0, 5000.0},
	}, 3)

	sp := &spec.Spec{
		ID: "test",
		Columns: []spec.ColumnMapping{
			{Source: "id", Targets: []string{"id"}},
			{Source: "area", Targets: []string{"area"}},
			{Source: "geometry", Targets: []string{"geometry"}},
		},
		ColumnMigrations: map[string]spec.ColumnMigration{
			"area": Scale(0.0001),
		},
	}

	out, err := Run(tbl, sp)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.NumRows() != 3 || out.NumColumns() != 3 {
		t.Fatalf("got %d rows, %d columns, want 3x3", out.NumRows(), out.NumColumns())
	}
	want := []float64{1.0, 2.0, 0.5}
	for i, v := range out.Column("area").Values {
		if v != want[i] {
			t.Errorf("area[%d] = %v, want %v", i, v, want[i])
		}
	}
}

// The polarity allow-list scenario: 5 rows, 3 matching, matching rows kept
// in original relative order.
func TestAllowListFilterScenario(t *testing.T) {
	tbl := fieldTable(t, map[string][]interface{}{
		"crop": {"wheat", "forest", "barley", "urban", "wheat"},
		"n":    {0, 1, 2, 3, 4},
	}, 5)

	sp := &spec.Spec{
		ID: "test",
		Columns: []spec.ColumnMapping{
			{Source: "crop", Targets: []string{"crop"}},
			{Source: "n", Targets: []string{"n"}},
			{Source: "geometry", Targets: []string{"geometry"}},
		},
		ColumnFilters: map[string]spec.ColumnFilter{
			"crop": AllowList("wheat", "barley"),
		},
	}

	out, err := Run(tbl, sp)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.NumRows() != 3 {
		t.Fatalf("NumRows = %d, want 3", out.NumRows())
	}
	wantOrder := []interface{}{0, 2, 4}
	for i, v := range out.Column("n").Values {
		if v != wantOrder[i] {
			t.Errorf("row %d = %v, want %v (original relative order)", i, v, wantOrder[i])
		}
	}
}

// A filter that can never match is legal and yields an empty table, not an
// error.
func TestZeroMatchFilter(t *testing.T) {
	tbl := fieldTable(t, map[string][]interface{}{
		"code": {"ORH", "BTH", "PPR"},
	}, 3)

	sp := &spec.Spec{
		ID: "test",
		Columns: []spec.ColumnMapping{
			{Source: "code", Targets: []string{"code"}},
			{Source: "geometry", Targets: []string{"geometry"}},
		},
		ColumnFilters: map[string]spec.ColumnFilter{
			// The concatenated-literal bug observed in the wild: one long
			// string that no value can equal. Executed faithfully.
			"code": AllowList("ORHBTHPPR"),
		},
	}

	out, err := Run(tbl, sp)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.NumRows() != 0 {
		t.Errorf("NumRows = %d, want 0", out.NumRows())
	}
}

func TestFiltersComposeByConjunction(t *testing.T) {
	tbl := fieldTable(t, map[string][]interface{}{
		"crop": {"wheat", "wheat", "barley", "wheat"},
		"use":  {"arable", "fallow", "arable", "arable"},
	}, 4)

	sp := &spec.Spec{
		ID: "test",
		Columns: []spec.ColumnMapping{
			{Source: "crop", Targets: []string{"crop"}},
			{Source: "use", Targets: []string{"use"}},
			{Source: "geometry", Targets: []string{"geometry"}},
		},
		ColumnFilters: map[string]spec.ColumnFilter{
			"crop": AllowList("wheat"),
			"use":  AllowList("arable"),
		},
	}

	out, err := Run(tbl, sp)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// Rows 0 and 3 pass both filters.
	if out.NumRows() != 2 {
		t.Errorf("NumRows = %d, want 2", out.NumRows())
	}
}

// Constant columns are injected after filtering, so they can never affect
// the filter masks and always match the surviving row count.
func TestConstantsFollowFiltering(t *testing.T) {
	tbl := fieldTable(t, map[string][]interface{}{
		"crop": {"wheat", "forest", "wheat"},
	}, 3)

	sp := &spec.Spec{
		ID: "test",
		Columns: []spec.ColumnMapping{
			{Source: "crop", Targets: []string{"crop"}},
			{Source: "determination_datetime", Targets: []string{"determination_datetime"}},
			{Source: "geometry", Targets: []string{"geometry"}},
		},
		AddColumns: map[string]interface{}{
			"determination_datetime": "2021-01-01T00:00:00Z",
		},
		ColumnFilters: map[string]spec.ColumnFilter{
			"crop": AllowList("wheat"),
		},
	}

	out, err := Run(tbl, sp)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	col := out.Column("determination_datetime")
	if len(col.Values) != 2 {
		t.Fatalf("constant column has %d values, want 2", len(col.Values))
	}
}

// A filter keyed on a constant column fails: stage order guarantees filters
// run before constant injection.
func TestFilterCannotSeeConstants(t *testing.T) {
	tbl := fieldTable(t, nil, 2)
	sp := &spec.Spec{
		ID: "test",
		Columns: []spec.ColumnMapping{
			{Source: "flag", Targets: []string{"flag"}},
			{Source: "geometry", Targets: []string{"geometry"}},
		},
		AddColumns: map[string]interface{}{"flag": true},
		ColumnFilters: map[string]spec.ColumnFilter{
			"flag": AllowList(true),
		},
	}

	_, err := Run(tbl, sp)
	if err == nil {
		t.Fatal("expected error: filters must not see constant columns")
	}
	if cerrors.GetCategory(err) != cerrors.ErrCategoryInternal {
		t.Errorf("category = %q", cerrors.GetCategory(err))
	}
}

func TestDuplicationAndRename(t *testing.T) {
	tbl := fieldTable(t, map[string][]interface{}{
		"IMK_areal": {1.5, 2.5},
	}, 2)

	sp := &spec.Spec{
		ID: "test",
		Columns: []spec.ColumnMapping{
			{Source: "IMK_areal", Targets: []string{"area", "area_reported"}},
			{Source: "geometry", Targets: []string{"geometry"}},
		},
	}

	out, err := Run(tbl, sp)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	a, b := out.Column("area"), out.Column("area_reported")
	if a == nil || b == nil {
		t.Fatalf("expected both target columns, got %v", out.Names())
	}
	for i := range a.Values {
		if a.Values[i] != b.Values[i] {
			t.Errorf("row %d: %v != %v, duplicated columns must be identical", i, a.Values[i], b.Values[i])
		}
	}
}

func TestUnmappedColumnsArePruned(t *testing.T) {
	tbl := fieldTable(t, map[string][]interface{}{
		"keep_me": {"a"},
		"evict":   {"b"},
	}, 1)

	sp := &spec.Spec{
		ID: "test",
		Columns: []spec.ColumnMapping{
			{Source: "keep_me", Targets: []string{"id"}},
			{Source: "geometry", Targets: []string{"geometry"}},
		},
	}

	out, err := Run(tbl, sp)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Has("evict") {
		t.Error("unmapped column should be pruned")
	}
	if !out.Has("id") || !out.Has("geometry") {
		t.Errorf("expected id and geometry, got %v", out.Names())
	}
}

func TestGlobalMigrationRunsFirst(t *testing.T) {
	tbl := fieldTable(t, map[string][]interface{}{
		"crop": {"wheat", "forest"},
	}, 2)

	sp := &spec.Spec{
		ID: "test",
		Columns: []spec.ColumnMapping{
			{Source: "id", Targets: []string{"id"}},
			{Source: "crop", Targets: []string{"crop"}},
			{Source: "geometry", Targets: []string{"geometry"}},
		},
		Migration: AssignSequentialID("id"),
		ColumnFilters: map[string]spec.ColumnFilter{
			"crop": AllowList("forest"),
		},
	}

	out, err := Run(tbl, sp)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// The id was assigned before filtering, so the surviving row keeps its
	// pre-filter id.
	if out.NumRows() != 1 {
		t.Fatalf("NumRows = %d, want 1", out.NumRows())
	}
	if out.Column("id").Values[0] != int64(2) {
		t.Errorf("id = %v, want 2 (assigned before filtering)", out.Column("id").Values[0])
	}
}

func TestMapValuesUnmappedBecomesNull(t *testing.T) {
	migrate := MapValues(map[interface{}]interface{}{
		"OMD": "Rotational crops",
		"PGR": "Permanent grass",
	})
	out := migrate([]interface{}{"OMD", "XXX", nil, "PGR"})

	if out[0] != "Rotational crops" || out[3] != "Permanent grass" {
		t.Errorf("mapped values wrong: %v", out)
	}
	if out[1] != nil {
		t.Error("unmapped value must become null")
	}
	if out[2] != nil {
		t.Error("null stays null")
	}
}

func TestStripLower(t *testing.T) {
	out := StripLower()([]interface{}{"  Wheat ", "BARLEY", 42})
	if out[0] != "wheat" || out[1] != "barley" {
		t.Errorf("got %v", out)
	}
	if out[2] != 42 {
		t.Error("non-strings pass through")
	}
}

func TestReformatDatetime(t *testing.T) {
	migrate := ReformatDatetime("2006/01/02 15:04:05")
	out := migrate([]interface{}{"2021/06/01 12:30:00", "garbage", nil})
	if out[0] != "2021-06-01T12:30:00Z" {
		t.Errorf("got %v", out[0])
	}
	if out[1] != nil || out[2] != nil {
		t.Error("unparseable and null values must be null")
	}
}

func TestDeterministicUUIDStable(t *testing.T) {
	a := DeterministicUUID("ds")([]interface{}{"f1", "f2"})
	b := DeterministicUUID("ds")([]interface{}{"f1", "f2"})
	if a[0] != b[0] || a[1] != b[1] {
		t.Error("same namespace and input must give same UUIDs")
	}
	other := DeterministicUUID("other")([]interface{}{"f1"})
	if a[0] == other[0] {
		t.Error("different namespaces must differ")
	}
}

func TestHashIDStable(t *testing.T) {
	out := HashID()([]interface{}{"f1", "f1", nil})
	if out[0] != out[1] {
		t.Error("equal inputs must hash equally")
	}
	if out[2] != nil {
		t.Error("null stays null")
	}
}
