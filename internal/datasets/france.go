package datasets

import (
	"github.com/fieldconv/fieldconv/internal/pipeline"
	"github.com/fieldconv/fieldconv/internal/schema"
	"github.com/fieldconv/fieldconv/internal/spec"
)

func init() {
	Register("fs_rpg_fr", France)
}

// The upstream crop selection was written as adjacent string literals
// instead of list elements, collapsing every code into one string that no
// value can equal. The filter is executed as declared: it is legal and
// selects zero rows. Intended codes are listed at
// https://geoservices.ign.fr/sites/default/files/2023-02/REF_CULTURES_2021.csv
const franceCropCodes = "ORH" + "BTH" + "PPR" + "CZH" + "TRN" + "BDH" + "LIP" + "TTH" +
	"ORP" + "CAG" + "EPE" + "SRS" + "MCR" + "SOG" + "MPC" + "AVH" + "BTN" + "RDI" +
	"CEL" + "CHU" + "LDP" + "BTP" + "FLP" + "FVL" + "LEC" + "MLT" + "FLA" + "AVP" +
	"SGH" + "CML" + "PHI" + "MPP" + "SOJ" + "MLS" + "CHT" + "PPO" + "PCH" + "LIH" +
	"OAG" + "CRD" + "NOX" + "FNU" + "PTC" + "CPA" + "CHV" + "HBL" + "MLO" + "BDP" +
	"PPA" + "OIG" + "CSE" + "LDH" + "PAN" + "PTF" + "HAR" + "PPP" + "CHA" + "TOM" +
	"PSL" + "POR" + "CMB" + "CAR" + "ROQ" + "PAG" + "MOT" + "FNO" + "AIL" + "TAB" +
	"SGP" + "FRA" + "POT" + "CCT" + "CMM" + "ANE" + "NVT" + "ART" + "CTG" + "CZP" +
	"BLT" + "NOS" + "PAS" + "LBF" + "LIF" + "MOL" + "EPI" + "TTP" + "OEH" + "PVP" +
	"CES" + "FEV" + "TOP" + "MAC"

// France builds the specification for the French RPG (graphic parcel
// register) subset.
func France(sources ...string) *spec.Spec {
	return withSources(&spec.Spec{
		ID:    "fs_rpg_fr",
		Title: "Field boundaries for France (FieldScapes)",
		Description: "The graphic parcel register is a geographical database used as a " +
			"reference for the processing of aid from the common agricultural policy " +
			"(CAP). The anonymized version contains graphic data for plots (basic land " +
			"unit for farmers' declaration) with their main crop, produced by the " +
			"Services and Payment Agency (ASP) since 2007.",
		Sources:      []string{"france/all_parcels.gpkg"},
		ProviderName: "The Services and Payments Agency(ASP)",
		ProviderURL:  "https://geoservices.ign.fr/rpg#telechargementrpg2021",
		Attribution:  "National Institute of Geographic and Forestry Information (IGN-F)",
		License:      "Open Licence",
		Columns: []spec.ColumnMapping{
			{Source: "ID_PARCEL", Targets: []string{"id"}},
			{Source: "SURF_PARC", Targets: []string{"area"}},
			{Source: "CODE_CULTU", Targets: []string{"crop_code"}},
			{Source: "CODE_GROUP", Targets: []string{"crop_code_i"}},
			{Source: "determination_datetime", Targets: []string{"determination_datetime"}},
			{Source: "geometry", Targets: []string{"geometry"}},
		},
		AddColumns: map[string]interface{}{
			"determination_datetime": "2021-01-01T00:00:00Z",
		},
		ColumnMigrations: map[string]spec.ColumnMigration{
			"CODE_CULTU": pipeline.StripLower(),
		},
		ColumnFilters: map[string]spec.ColumnFilter{
			"CODE_CULTU": pipeline.AllowList(franceCropCodes),
		},
		MissingSchemas: &schema.Fragment{
			Properties: map[string]schema.Property{
				"crop_code":   {Type: schema.TypeString},
				"crop_code_i": {Type: schema.TypeInt32},
			},
		},
	}, sources)
}
