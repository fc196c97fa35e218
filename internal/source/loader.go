// Package source acquires raw tables from a dataset specification's
// declared locations (local paths, HTTP(S) or S3 URIs), applies the
// optional per-file migration hook, and concatenates the result into one
// Working Table.
package source

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	cerrors "github.com/fieldconv/fieldconv/internal/errors"
	"github.com/fieldconv/fieldconv/internal/spec"
	"github.com/fieldconv/fieldconv/internal/table"
)

// Loader acquires and reads source files.
type Loader struct {
	cache      Cache
	httpClient *http.Client
	s3         s3Object
	maxRetries int
	scratchDir string
}

// Option configures a Loader.
type Option func(*Loader)

// WithCache sets the download cache collaborator.
func WithCache(cache Cache) Option {
	return func(l *Loader) { l.cache = cache }
}

// WithHTTPClient replaces the HTTP client used for downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(l *Loader) { l.httpClient = client }
}

// WithS3Client injects an S3 client, mainly for tests.
func WithS3Client(client s3Object) Option {
	return func(l *Loader) { l.s3 = client }
}

// WithMaxRetries bounds the number of download retries.
func WithMaxRetries(n int) Option {
	return func(l *Loader) { l.maxRetries = n }
}

// WithScratchDir sets the directory for transient downloads.
func WithScratchDir(dir string) Option {
	return func(l *Loader) { l.scratchDir = dir }
}

// NewLoader creates a Loader with a pass-through cache and default
// networking.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		cache:      NopCache{},
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		maxRetries: 3,
		scratchDir: os.TempDir(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every source location of the specification, in declared
// order, applies the per-file migration hook, and concatenates the tables.
// Concatenation requires identical column sets; a differing file fails the
// run with a SchemaMismatch error naming the file.
func (l *Loader) Load(ctx context.Context, sp *spec.Spec) (*table.Table, error) {
	if len(sp.Sources) == 0 {
		return nil, cerrors.NewSourceError("dataset specification declares no sources", nil)
	}

	var combined *table.Table
	for _, uri := range sp.Sources {
		local, err := l.acquire(ctx, uri)
		if err != nil {
			return nil, err
		}

		tbl, err := ReadTable(local)
		if err != nil {
			return nil, cerrors.NewSourceError("failed to read source "+uri, err)
		}
		log.Printf("source: read %d rows, %d columns from %s", tbl.NumRows(), tbl.NumColumns(), uri)

		if sp.FileMigration != nil {
			tbl, err = sp.FileMigration.MigrateFile(tbl, local, uri)
			if err != nil {
				return nil, cerrors.NewSourceError("per-file migration failed for "+uri, err)
			}
		}

		if combined == nil {
			combined = tbl
			continue
		}
		if !sameColumnSet(combined, tbl) {
			return nil, cerrors.NewSchemaMismatchError(fmt.Sprintf(
				"source %s has columns %v, expected %v", uri, tbl.SortedNames(), combined.SortedNames()))
		}
		if err := combined.Append(tbl); err != nil {
			return nil, cerrors.NewSchemaMismatchError(fmt.Sprintf(
				"source %s could not be concatenated: %v", uri, err))
		}
	}
	return combined, nil
}

// ReadTable reads one local file into a Working Table, dispatching on the
// file extension.
func ReadTable(path string) (*table.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return readGeoJSON(path)
	case ".gpkg":
		return readGeoPackage(path)
	case ".csv":
		return readCSV(path)
	default:
		return nil, fmt.Errorf("unsupported source format %q", filepath.Ext(path))
	}
}

func sameColumnSet(a, b *table.Table) bool {
	an, bn := a.SortedNames(), b.SortedNames()
	if len(an) != len(bn) {
		return false
	}
	for i := range an {
		if an[i] != bn[i] {
			return false
		}
	}
	return true
}
