package datasets

import (
	"testing"

	cerrors "github.com/fieldconv/fieldconv/internal/errors"
)

func TestAllRegisteredSpecsAreValid(t *testing.T) {
	names := Names()
	if len(names) == 0 {
		t.Fatal("no converters registered")
	}
	for _, name := range names {
		sp, err := Get(name)
		if err != nil {
			t.Fatalf("Get(%q): %v", name, err)
		}
		if err := sp.Validate(); err != nil {
			t.Errorf("converter %q has an invalid specification: %v", name, err)
		}
		if sp.ID == "" || len(sp.Columns) == 0 {
			t.Errorf("converter %q is incomplete", name)
		}
	}
}

func TestGetUnknownConverter(t *testing.T) {
	_, err := Get("zz_missing")
	if cerrors.GetCode(err) != cerrors.CodeInvalidSpec {
		t.Fatalf("got %v, want INVALID_SPEC", err)
	}
}

func TestSourcesOverride(t *testing.T) {
	sp, err := Get("fieldscapes_denmark_2021", "/data/custom.gpkg")
	if err != nil {
		t.Fatal(err)
	}
	if len(sp.Sources) != 1 || sp.Sources[0] != "/data/custom.gpkg" {
		t.Errorf("Sources = %v", sp.Sources)
	}

	sp, err = Get("fieldscapes_denmark_2021")
	if err != nil {
		t.Fatal(err)
	}
	if len(sp.Sources) != 1 || sp.Sources[0] == "/data/custom.gpkg" {
		t.Errorf("default sources lost: %v", sp.Sources)
	}
}

func TestFranceCropCodeMigration(t *testing.T) {
	sp := France()
	migrate, ok := sp.ColumnMigrations["CODE_CULTU"]
	if !ok {
		t.Fatal("CODE_CULTU migration missing")
	}
	got := migrate([]interface{}{"  ORH ", "BTH"})
	if got[0] != "orh" || got[1] != "bth" {
		t.Errorf("migrated values = %v, want trimmed lowercase codes", got)
	}
}

func TestFranceFilterMatchesNothing(t *testing.T) {
	sp := France()
	filter := sp.ColumnFilters["CODE_CULTU"]
	mask, invert := filter([]interface{}{"ORH", "BTH", "MAC"})
	if !invert {
		t.Fatal("allow-list filters keep matching rows")
	}
	for i, m := range mask {
		if m {
			t.Errorf("row %d matched the collapsed literal; it must never match", i)
		}
	}
}
