package datasets

import (
	"github.com/fieldconv/fieldconv/internal/pipeline"
	"github.com/fieldconv/fieldconv/internal/schema"
	"github.com/fieldconv/fieldconv/internal/spec"
)

func init() {
	Register("fieldscapes_denmark_2021", Denmark)
}

// Denmark builds the specification for the Danish LPIS field block subset.
// Data source: https://landbrugsgeodata.fvm.dk/
func Denmark(sources ...string) *spec.Spec {
	blockTypes := map[interface{}]interface{}{
		"OMD": "Rotational crops",
		"PGR": "Permanent grass",
		"ING": "None",
		"PAF": "Permanent crops",
		"MIX": "Mixed permanent grass and arable land",
		"VKS": "Plants under greenhouse/ nurseries /potted plants",
		"LDP": "Afforestation",
	}

	exclusiveZero := 0.0
	return withSources(&spec.Spec{
		ID:    "fieldscapes_denmark_2021",
		Title: "Field boundaries for Denmark (FieldScapes)",
		Description: "Danish Land Parcel Identification System (LPIS) data collection " +
			"or (field blocks/ 'Markblokke') is managed by The Danish Agency for " +
			"Agriculture. The field block map is a digital field map, with " +
			"agricultural areas gathered in field blocks. A field block is a " +
			"geographically coherent unit consisting of agricultural land.",
		Sources:      []string{"denmark/all_parcels.gpkg"},
		BBox:         []float64{8.7378109937414692, 55.1917137800704012, 10.4170362955184004, 57.4329738730357988},
		ProviderName: "The Danish Agency for Agriculture",
		ProviderURL:  "https://geodata-info.dk/srv/eng/catalog.search#/metadata/d91b2c99-d9b0-4e6d-b323-20ac80548186",
		Attribution:  "The Danish Agency for Agriculture",
		License:      "CC0-1.0",
		Columns: []spec.ColumnMapping{
			{Source: "MARKBLOKNR", Targets: []string{"id"}},
			{Source: "GEOMETRISK", Targets: []string{"area"}},
			{Source: "TARAAREAL", Targets: []string{"ineligible_area"}},
			{Source: "STOETPROC", Targets: []string{"support_proc"}},
			{Source: "GB_FRADRAG", Targets: []string{"deduction"}},
			{Source: "MB_TYPE", Targets: []string{"block_type"}},
			{Source: "GB_AREAL", Targets: []string{"eligible_area"}},
			{Source: "determination_datetime", Targets: []string{"determination_datetime"}},
			{Source: "geometry", Targets: []string{"geometry"}},
		},
		AddColumns: map[string]interface{}{
			"determination_datetime": "2021-01-01T00:00:00Z",
		},
		ColumnMigrations: map[string]spec.ColumnMigration{
			"MB_TYPE": pipeline.MapValues(blockTypes),
		},
		ColumnFilters: map[string]spec.ColumnFilter{
			"MB_TYPE": pipeline.AllowList("OMD", "PAF", "VKS"),
		},
		MissingSchemas: &schema.Fragment{
			Properties: map[string]schema.Property{
				"eligible_area":   {Type: schema.TypeFloat, ExclusiveMinimum: &exclusiveZero},
				"ineligible_area": {Type: schema.TypeFloat, ExclusiveMinimum: &exclusiveZero},
				"deduction":       {Type: schema.TypeFloat, ExclusiveMinimum: &exclusiveZero},
				"support_proc":    {Type: schema.TypeFloat, ExclusiveMinimum: &exclusiveZero},
				"block_type": {Type: schema.TypeString, Enum: []interface{}{
					"Rotational crops", "Permanent grass", "None", "Permanent crops",
					"Mixed permanent grass and arable land",
					"Plants under greenhouse/ nurseries /potted plants", "Afforestation",
				}},
			},
		},
	}, sources)
}
