package source

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/fieldconv/fieldconv/internal/table"
)

// readCSV reads a CSV file with a header row into a Working Table. The
// column named "geometry" must hold WKT geometries; other cells are
// type-sniffed (int64, then float64, then string; empty cells are null).
func readCSV(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid CSV in %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV file %s has no header row", path)
	}

	header := records[0]
	geomIndex := -1
	for i, name := range header {
		if name == "geometry" {
			geomIndex = i
			break
		}
	}
	if geomIndex < 0 {
		return nil, fmt.Errorf("CSV file %s has no geometry column", path)
	}

	rows := records[1:]
	geometries := make([]orb.Geometry, len(rows))
	for i, row := range rows {
		if row[geomIndex] == "" {
			continue
		}
		geometry, err := wkt.Unmarshal(row[geomIndex])
		if err != nil {
			return nil, fmt.Errorf("row %d of %s: invalid WKT: %w", i+1, path, err)
		}
		geometries[i] = geometry
	}

	tbl := table.New("geometry", geometries)
	for col, name := range header {
		if col == geomIndex {
			continue
		}
		values := make([]interface{}, len(rows))
		for i, row := range rows {
			values[i] = sniffValue(row[col])
		}
		if err := tbl.AddColumn(name, values); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}

// sniffValue converts a CSV cell to the narrowest plausible Go type.
func sniffValue(cell string) interface{} {
	if cell == "" {
		return nil
	}
	if n, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return f
	}
	return cell
}
