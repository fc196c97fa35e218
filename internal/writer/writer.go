// Package writer serializes a validated table to GeoParquet and the
// collection metadata to JSON. Writes are atomic: output goes to a
// temporary file in the target directory and is renamed into place only
// after a successful close, so a failed run never leaves a truncated file
// at the requested path.
package writer

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/fieldconv/fieldconv/internal/collection"
	cerrors "github.com/fieldconv/fieldconv/internal/errors"
	"github.com/fieldconv/fieldconv/internal/schema"
	"github.com/fieldconv/fieldconv/internal/table"
)

// DefaultCompression is applied when no codec is configured.
const DefaultCompression = "snappy"

var codecs = map[string]compress.Codec{
	"uncompressed": &parquet.Uncompressed,
	"snappy":       &parquet.Snappy,
	"gzip":         &parquet.Gzip,
	"brotli":       &parquet.Brotli,
	"zstd":         &parquet.Zstd,
	"lz4":          &parquet.Lz4Raw,
}

// Option configures a Writer.
type Option func(*Writer)

// WithCompression selects the parquet compression codec by name.
func WithCompression(name string) Option {
	return func(w *Writer) { w.compression = name }
}

// Writer writes conversion outputs.
type Writer struct {
	compression string
}

// New creates a Writer.
func New(opts ...Option) *Writer {
	w := &Writer{compression: DefaultCompression}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteTable serializes tbl as GeoParquet at path. Column types follow the
// resolved schema; the geometry column is WKB-encoded and described by a
// "geo" key-value metadata entry.
func (w *Writer) WriteTable(tbl *table.Table, resolved *schema.Resolved, path string) error {
	codec, ok := codecs[w.compression]
	if !ok {
		return cerrors.NewWriteError(
			fmt.Sprintf("unknown compression codec %q", w.compression), nil)
	}

	fields, err := parquetFields(tbl, resolved)
	if err != nil {
		return err
	}
	fileSchema := parquet.NewSchema(filepath.Base(path), fields)

	geoMeta, err := geoMetadata(tbl)
	if err != nil {
		return err
	}

	rows, err := buildRows(tbl, resolved)
	if err != nil {
		return err
	}

	return atomicWrite(path, func(f *os.File) error {
		pw := parquet.NewGenericWriter[map[string]interface{}](f, fileSchema,
			parquet.Compression(codec),
			parquet.KeyValueMetadata("geo", geoMeta),
		)
		for start := 0; start < len(rows); start += writeBatchSize {
			end := start + writeBatchSize
			if end > len(rows) {
				end = len(rows)
			}
			if _, err := pw.Write(rows[start:end]); err != nil {
				return err
			}
		}
		if len(rows) == 0 {
			// Still emit a valid empty file with the full schema.
			if err := pw.Flush(); err != nil {
				return err
			}
		}
		if err := pw.Close(); err != nil {
			return err
		}
		log.Printf("writer: wrote %d rows to %s (%s)", len(rows), path, w.compression)
		return nil
	})
}

const writeBatchSize = 1024

// WriteCollection serializes the collection record as indented JSON at
// path, atomically.
func (w *Writer) WriteCollection(c *collection.Collection, path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return cerrors.NewWriteError("failed to encode collection metadata", err)
	}
	data = append(data, '\n')
	return atomicWrite(path, func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
}

// atomicWrite runs fn against a temporary file next to path and renames it
// into place on success. Any failure removes the temporary file.
func atomicWrite(path string, fn func(*os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cerrors.NewWriteError("failed to create output directory "+dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".fieldconv-*")
	if err != nil {
		return cerrors.NewWriteError("failed to create temporary output file", err)
	}
	tmpPath := tmp.Name()

	if err := fn(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return cerrors.NewWriteError("failed to write "+path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return cerrors.NewWriteError("failed to close "+path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return cerrors.NewWriteError("failed to move output into place at "+path, err)
	}
	return nil
}

// parquetFields maps the table's columns onto a parquet group using the
// resolved schema types. Non-required columns are optional.
func parquetFields(tbl *table.Table, resolved *schema.Resolved) (parquet.Group, error) {
	group := parquet.Group{}
	for _, name := range tbl.SortedNames() {
		prop, ok := resolved.Property(name)
		if !ok {
			return nil, cerrors.NewWriteError(
				fmt.Sprintf("column %q has no resolved schema entry", name), nil)
		}
		node, err := parquetNode(prop.Type)
		if err != nil {
			return nil, err
		}
		if !resolved.IsRequired(name) {
			node = parquet.Optional(node)
		}
		group[name] = node
	}
	return group, nil
}

func parquetNode(typ schema.DataType) (parquet.Node, error) {
	switch typ {
	case schema.TypeString:
		return parquet.String(), nil
	case schema.TypeInt32:
		return parquet.Int(32), nil
	case schema.TypeInt64:
		return parquet.Int(64), nil
	case schema.TypeFloat:
		return parquet.Leaf(parquet.FloatType), nil
	case schema.TypeDouble:
		return parquet.Leaf(parquet.DoubleType), nil
	case schema.TypeBoolean:
		return parquet.Leaf(parquet.BooleanType), nil
	case schema.TypeDateTime:
		return parquet.Timestamp(parquet.Millisecond), nil
	case schema.TypeDate:
		return parquet.Date(), nil
	case schema.TypeGeometry:
		return parquet.Leaf(parquet.ByteArrayType), nil
	}
	return nil, cerrors.NewWriteError(fmt.Sprintf("unsupported column type %q", typ), nil)
}

// buildRows converts the columnar table into row maps for the parquet
// writer. Geometries become WKB, timestamps epoch milliseconds and dates
// epoch days.
func buildRows(tbl *table.Table, resolved *schema.Resolved) ([]map[string]interface{}, error) {
	names := tbl.SortedNames()
	rows := make([]map[string]interface{}, tbl.NumRows())
	for i := range rows {
		rows[i] = make(map[string]interface{}, len(names))
	}
	for _, name := range names {
		prop, _ := resolved.Property(name)
		col := tbl.Column(name)
		for i, v := range col.Values {
			if v == nil {
				continue
			}
			cell, err := parquetValue(v, prop.Type)
			if err != nil {
				return nil, cerrors.NewWriteError(
					fmt.Sprintf("column %q row %d", name, i), err)
			}
			rows[i][name] = cell
		}
	}
	return rows, nil
}

func parquetValue(v interface{}, typ schema.DataType) (interface{}, error) {
	switch typ {
	case schema.TypeGeometry:
		g, ok := v.(orb.Geometry)
		if !ok {
			return nil, fmt.Errorf("geometry cell holds %T", v)
		}
		return wkb.Marshal(g)
	case schema.TypeDateTime:
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("datetime cell holds %T", v)
		}
		return t.UnixMilli(), nil
	case schema.TypeDate:
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("date cell holds %T", v)
		}
		return int32(t.Unix() / 86400), nil
	}
	return v, nil
}

// geoMetadata builds the "geo" file metadata value describing the primary
// geometry column, its encoding and the geometry types present.
func geoMetadata(tbl *table.Table) (string, error) {
	types := make(map[string]bool)
	var bound *orb.Bound
	for _, g := range tbl.Geometries() {
		if g == nil {
			continue
		}
		types[g.GeoJSONType()] = true
		b := g.Bound()
		if bound == nil {
			bound = &b
		} else {
			u := bound.Union(b)
			bound = &u
		}
	}
	typeList := make([]string, 0, len(types))
	for t := range types {
		typeList = append(typeList, t)
	}
	sort.Strings(typeList)

	column := map[string]interface{}{
		"encoding":       "WKB",
		"geometry_types": typeList,
	}
	if bound != nil {
		column["bbox"] = []float64{bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1]}
	}
	meta := map[string]interface{}{
		"version":        "1.0.0",
		"primary_column": tbl.GeometryName(),
		"columns": map[string]interface{}{
			tbl.GeometryName(): column,
		},
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", cerrors.NewWriteError("failed to encode geo metadata", err)
	}
	return string(data), nil
}
