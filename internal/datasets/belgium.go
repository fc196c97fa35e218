package datasets

import (
	"github.com/fieldconv/fieldconv/internal/pipeline"
	"github.com/fieldconv/fieldconv/internal/schema"
	"github.com/fieldconv/fieldconv/internal/spec"
)

func init() {
	Register("fieldscapes_belgium_2021", Belgium)
}

// Belgium builds the specification for the Flemish agricultural use parcels
// subset. The source data has no usable identifier column, so an
// auto-incremented id is assigned before any other stage.
func Belgium(sources ...string) *spec.Spec {
	crops := []interface{}{
		"permanent_crops_perennial", "beans", "parsnips", "asparagus", "brussels_sprouts",
		"onions", "rhubarb", "spinach", "cauliflower", "kale", "red_cabbage", "carrots_daucus",
		"leek", "celeriac", "savoy_cabbage", "celery", "fresh_vegetables", "miscanthus_silvergrass",
		"potatoes", "sweet_potatoes", "sugar_beet", "peas", "pumpkin_squash_gourd", "strawberries",
		"broccoli", "endive", "white_cabbage", "zucchini_courgette", "lambs_lettuce_rapunzel",
		"iceberg", "chrysanthemum", "sod_turf", "tomato", "aubergine_eggplant", "artichoke",
		"parsly", "chervil", "brassica_oleracea_cabbage", "apples", "fibre_crops", "radish",
		"winter_common_soft_wheat", "green_silo_maize", "grain_maize_corn_popcorn",
		"spring_common_soft_wheat", "winter_barley", "spring_barley", "winter_rye", "triticale",
		"spelt", "winter_rapeseed_rape", "sunflower", "rye", "winter_oats", "millet_sorghum",
		"hazelnuts_hazel", "walnuts", "chinese_cabbage", "beetroot_beets", "bell_pepper_paprika",
		"industrial_nonfood_crops", "quinoa", "summer_rapeseed_rape", "turnips", "soy_soybeans",
		"kohlrabi", "blackcurrant_cassis", "fodder_roots", "barley", "hemp_cannabis", "leaf_celery",
		"cucumber_pickle", "hops", "tagetes", "shallot", "rocket_arugula", "blackberry", "mustard",
		"buckwheat", "oilseed_crops", "spring_rye",
	}

	stringProps := map[string]schema.Property{}
	for _, name := range []string{
		"pre_crop_code", "pre_crop_name", "crop_code", "crop_name",
		"second_post_crop_name", "EC_trans_n", "EC_hcat_n",
	} {
		stringProps[name] = schema.Property{Type: schema.TypeString}
	}

	return withSources(&spec.Spec{
		ID:    "fieldscapes_belgium_2021",
		Title: "Field boundaries for Belgium (FieldScapes)",
		Description: "The inventory of these plots is done annually in the context of " +
			"the payment of the (co-financed) European agricultural subsidies and the " +
			"Flemish manure legislation. The dataset has an informative value for a " +
			"generalized use and is in no way intended for control purposes or " +
			"individualized use.",
		Sources:      []string{"belgium/all_parcels.gpkg"},
		ProviderName: "The Agriculture and Sea Fisheries Agency",
		ProviderURL:  "https://github.com/maja601/EuroCrops/wiki/Belgium",
		Attribution:  "The Agriculture and Sea Fisheries Agency",
		License:      "No restrictions on public access",
		Columns: []spec.ColumnMapping{
			{Source: "id", Targets: []string{"id"}},
			{Source: "GRAF_OPP", Targets: []string{"area"}},
			{Source: "GWSCOD_V", Targets: []string{"pre_crop_code"}},
			{Source: "GWSNAM_V", Targets: []string{"pre_crop_name"}},
			{Source: "GWSCOD_H", Targets: []string{"crop_code"}},
			{Source: "GWSNAM_H", Targets: []string{"crop_name"}},
			{Source: "GWSNAM_N2", Targets: []string{"second_post_crop_name"}},
			{Source: "EC_trans_n", Targets: []string{"EC_trans_n"}},
			{Source: "EC_hcat_n", Targets: []string{"EC_hcat_n"}},
			{Source: "determination_datetime", Targets: []string{"determination_datetime"}},
			{Source: "geometry", Targets: []string{"geometry"}},
		},
		AddColumns: map[string]interface{}{
			"determination_datetime": "2021-01-01T00:00:00Z",
		},
		ColumnMigrations: map[string]spec.ColumnMigration{
			"EC_hcat_n": pipeline.StripLower(),
		},
		ColumnFilters: map[string]spec.ColumnFilter{
			"EC_hcat_n": pipeline.AllowList(crops...),
		},
		Migration:      pipeline.AssignSequentialID("id"),
		MissingSchemas: &schema.Fragment{Properties: stringProps},
	}, sources)
}
