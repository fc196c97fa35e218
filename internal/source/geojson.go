package source

import (
	"fmt"
	"os"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/fieldconv/fieldconv/internal/table"
)

// readGeoJSON reads a GeoJSON FeatureCollection into a Working Table. The
// property column set is the union across features, sorted by name so
// repeated runs produce identical column order; properties absent from a
// feature are null.
func readGeoJSON(path string) (*table.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("invalid GeoJSON in %s: %w", path, err)
	}

	geometries := make([]orb.Geometry, len(fc.Features))
	seen := make(map[string]bool)
	for i, feature := range fc.Features {
		geometries[i] = feature.Geometry
		for key := range feature.Properties {
			seen[key] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	tbl := table.New("geometry", geometries)
	for _, key := range keys {
		values := make([]interface{}, len(fc.Features))
		for i, feature := range fc.Features {
			if v, ok := feature.Properties[key]; ok {
				values[i] = v
			}
		}
		if err := tbl.AddColumn(key, values); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}
