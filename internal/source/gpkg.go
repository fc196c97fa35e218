package source

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/fieldconv/fieldconv/internal/table"
)

// readGeoPackage reads the first feature table of a GeoPackage into a
// Working Table. The geometry column is decoded from the GeoPackage binary
// header plus WKB and renamed to "geometry".
func readGeoPackage(path string) (*table.Table, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoPackage %s: %w", path, err)
	}
	defer db.Close()

	var featureTable, geomColumn string
	err = db.QueryRow(`
		SELECT c.table_name, g.column_name
		FROM gpkg_contents c
		JOIN gpkg_geometry_columns g ON g.table_name = c.table_name
		WHERE c.data_type = 'features'
		ORDER BY c.table_name
		LIMIT 1`).Scan(&featureTable, &geomColumn)
	if err != nil {
		return nil, fmt.Errorf("no feature table in GeoPackage %s: %w", path, err)
	}

	rows, err := db.Query(fmt.Sprintf(`SELECT * FROM %q`, featureTable))
	if err != nil {
		return nil, fmt.Errorf("failed to read feature table %q: %w", featureTable, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var geometries []orb.Geometry
	columns := make(map[string][]interface{})
	for rows.Next() {
		cells := make([]interface{}, len(names))
		ptrs := make([]interface{}, len(names))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		for i, name := range names {
			if name == geomColumn {
				blob, _ := cells[i].([]byte)
				geometry, err := decodeGeoPackageGeometry(blob)
				if err != nil {
					return nil, fmt.Errorf("row %d of %q: %w", len(geometries), featureTable, err)
				}
				geometries = append(geometries, geometry)
				continue
			}
			value := cells[i]
			if b, ok := value.([]byte); ok {
				value = string(b)
			}
			columns[name] = append(columns[name], value)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tbl := table.New("geometry", geometries)
	for _, name := range names {
		if name == geomColumn {
			continue
		}
		values := columns[name]
		if values == nil {
			values = make([]interface{}, len(geometries))
		}
		if err := tbl.AddColumn(name, values); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}

// decodeGeoPackageGeometry strips the GeoPackage binary header (magic,
// version, flags, SRS id, optional envelope) and unmarshals the trailing
// WKB payload.
func decodeGeoPackageGeometry(blob []byte) (orb.Geometry, error) {
	if blob == nil {
		return nil, nil
	}
	if len(blob) < 8 || blob[0] != 'G' || blob[1] != 'P' {
		return nil, fmt.Errorf("not a GeoPackage geometry blob")
	}

	flags := blob[3]
	if flags&0x20 != 0 {
		return nil, fmt.Errorf("extended GeoPackage binary encoding is not supported")
	}
	empty := flags&0x10 != 0
	var envelopeBytes int
	switch (flags >> 1) & 0x07 {
	case 0:
		envelopeBytes = 0
	case 1:
		envelopeBytes = 32
	case 2, 3:
		envelopeBytes = 48
	case 4:
		envelopeBytes = 64
	default:
		return nil, fmt.Errorf("invalid envelope indicator %d", (flags>>1)&0x07)
	}

	header := 8 + envelopeBytes
	if len(blob) < header {
		return nil, fmt.Errorf("truncated geometry header")
	}
	if empty {
		return nil, nil
	}
	geometry, err := wkb.Unmarshal(blob[header:])
	if err != nil {
		return nil, fmt.Errorf("invalid WKB payload: %w", err)
	}
	return geometry, nil
}
