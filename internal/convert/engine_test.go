package convert

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fieldconv/fieldconv/internal/config"
	cerrors "github.com/fieldconv/fieldconv/internal/errors"
	"github.com/fieldconv/fieldconv/internal/pipeline"
	"github.com/fieldconv/fieldconv/internal/schema"
	"github.com/fieldconv/fieldconv/internal/spec"
)

const sourceGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature",
     "geometry": {"type": "Polygon", "coordinates": [[[10,50],[10.01,50],[10.01,50.01],[10,50]]]},
     "properties": {"FIELD_ID": "A-1", "AREA_SQM": 10000.0, "CROP": "wheat"}},
    {"type": "Feature",
     "geometry": {"type": "Polygon", "coordinates": [[[11,51],[11.01,51],[11.01,51.01],[11,51]]]},
     "properties": {"FIELD_ID": "A-2", "AREA_SQM": 20000.0, "CROP": "forest"}},
    {"type": "Feature",
     "geometry": {"type": "Polygon", "coordinates": [[[12,52],[12.01,52],[12.01,52.01],[12,52]]]},
     "properties": {"FIELD_ID": "A-3", "AREA_SQM": 5000.0, "CROP": "barley"}}
  ]
}`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Cache.Enabled = false
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func testSpec(t *testing.T) *spec.Spec {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fields.geojson")
	if err := os.WriteFile(path, []byte(sourceGeoJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	return &spec.Spec{
		ID:      "xx_test",
		Title:   "Test fields",
		License: "CC-BY-4.0",
		Sources: []string{path},
		Columns: []spec.ColumnMapping{
			{Source: "FIELD_ID", Targets: []string{"id"}},
			{Source: "AREA_SQM", Targets: []string{"area"}},
			{Source: "CROP", Targets: []string{"crop_name"}},
			{Source: "determination_datetime", Targets: []string{"determination_datetime"}},
			{Source: "geometry", Targets: []string{"geometry"}},
		},
		AddColumns: map[string]interface{}{
			"determination_datetime": "2021-06-01T00:00:00Z",
		},
		ColumnMigrations: map[string]spec.ColumnMigration{
			"AREA_SQM": pipeline.Scale(0.0001),
		},
		ColumnFilters: map[string]spec.ColumnFilter{
			"CROP": pipeline.AllowList("wheat", "barley"),
		},
		MissingSchemas: &schema.Fragment{
			Properties: map[string]schema.Property{
				"crop_name": {Type: schema.TypeString},
			},
		},
	}
}

func TestConvertEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	engine, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	result, err := engine.Convert(context.Background(), testSpec(t))
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	if result.Rows != 2 {
		t.Errorf("Rows = %d, want 2 (forest filtered out)", result.Rows)
	}
	if _, err := os.Stat(result.OutputPath); err != nil {
		t.Errorf("parquet output missing: %v", err)
	}

	data, err := os.ReadFile(result.CollectionPath)
	if err != nil {
		t.Fatalf("collection output missing: %v", err)
	}
	var coll map[string]interface{}
	if err := json.Unmarshal(data, &coll); err != nil {
		t.Fatal(err)
	}
	if coll["id"] != "xx_test" {
		t.Errorf("collection id = %v", coll["id"])
	}
	if coll["license"] != "CC-BY-4.0" {
		t.Errorf("collection license = %v", coll["license"])
	}
}

func TestConvertInvalidSpec(t *testing.T) {
	engine, err := New(testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	_, err = engine.Convert(context.Background(), &spec.Spec{})
	if cerrors.GetCode(err) != cerrors.CodeInvalidSpec {
		t.Fatalf("got %v, want INVALID_SPEC", err)
	}
}

func TestConvertRequiredNullAbortsBeforeWrite(t *testing.T) {
	cfg := testConfig(t)
	engine, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	sp := testSpec(t)
	// Nulling every id violates the required id column.
	sp.ColumnMigrations["FIELD_ID"] = func(values []interface{}) []interface{} {
		out := make([]interface{}, len(values))
		return out
	}

	_, err = engine.Convert(context.Background(), sp)
	if cerrors.GetCode(err) != cerrors.CodeMissingRequiredField {
		t.Fatalf("got %v, want MISSING_REQUIRED_FIELD", err)
	}
	if _, statErr := os.Stat(cfg.OutputPath(sp.ID)); !os.IsNotExist(statErr) {
		t.Error("validation failure must not leave an output file")
	}
}

func TestConvertUnresolvedExtension(t *testing.T) {
	engine, err := New(testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	sp := testSpec(t)
	sp.Extensions = []string{"https://example.org/nope/v1/schema.yaml"}

	_, err = engine.Convert(context.Background(), sp)
	if cerrors.GetCode(err) != cerrors.CodeExtensionUnresolved {
		t.Fatalf("got %v, want EXTENSION_UNRESOLVED", err)
	}
}

func TestConvertWithRegisteredExtension(t *testing.T) {
	registry := schema.NewRegistry()
	registry.Register("https://example.org/crop/v1/schema.yaml", &schema.Fragment{
		Properties: map[string]schema.Property{
			"crop_name": {Type: schema.TypeString},
		},
	})

	engine, err := New(testConfig(t), WithFetcher(registry))
	if err != nil {
		t.Fatal(err)
	}
	sp := testSpec(t)
	sp.Extensions = []string{"https://example.org/crop/v1/schema.yaml"}
	sp.MissingSchemas = nil

	result, err := engine.Convert(context.Background(), sp)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if result.Rows != 2 {
		t.Errorf("Rows = %d, want 2", result.Rows)
	}
}

func TestAllAggregatesFailures(t *testing.T) {
	cfg := testConfig(t)
	engine, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	good := testSpec(t)
	bad := testSpec(t)
	bad.ID = "xx_bad"
	bad.Sources = []string{"/nonexistent/fields.geojson"}

	results, err := engine.All(context.Background(), []*spec.Spec{good, bad})
	if err == nil {
		t.Fatal("expected aggregate error")
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 successful", len(results))
	}
	if results[0].DatasetID != "xx_test" {
		t.Errorf("surviving result = %s", results[0].DatasetID)
	}
}
