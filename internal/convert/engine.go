// Package convert orchestrates one conversion run end to end: acquire
// sources, run the transform pipeline, resolve the schema, validate, build
// the collection metadata and write the outputs.
package convert

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/fieldconv/fieldconv/internal/collection"
	"github.com/fieldconv/fieldconv/internal/config"
	cerrors "github.com/fieldconv/fieldconv/internal/errors"
	"github.com/fieldconv/fieldconv/internal/pipeline"
	"github.com/fieldconv/fieldconv/internal/schema"
	"github.com/fieldconv/fieldconv/internal/source"
	"github.com/fieldconv/fieldconv/internal/spec"
	"github.com/fieldconv/fieldconv/internal/validate"
	"github.com/fieldconv/fieldconv/internal/writer"
)

// Result describes one completed conversion.
type Result struct {
	DatasetID      string
	Rows           int
	Columns        int
	OutputPath     string
	CollectionPath string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLoader replaces the source loader.
func WithLoader(l *source.Loader) Option {
	return func(e *Engine) { e.loader = l }
}

// WithFetcher sets the extension schema fetcher.
func WithFetcher(f schema.Fetcher) Option {
	return func(e *Engine) { e.fetcher = f }
}

// Engine runs conversions. One Engine may run many datasets; each run gets
// an independent table and resolved schema, so runs are safe to execute in
// parallel.
type Engine struct {
	cfg     *config.Config
	loader  *source.Loader
	writer  *writer.Writer
	fetcher schema.Fetcher
}

// New creates an Engine from a resolved configuration.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:    cfg,
		writer: writer.New(writer.WithCompression(cfg.Output.Compression)),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.loader == nil {
		loaderOpts := []source.Option{
			source.WithMaxRetries(cfg.Source.MaxRetries),
			source.WithScratchDir(cfg.Source.ScratchDir),
			source.WithHTTPClient(&http.Client{Timeout: cfg.Source.HTTPTimeout}),
		}
		if cfg.Cache.Enabled {
			cache, err := source.NewFileCache(cfg.Cache.Dir, int64(cfg.Cache.MaxSizeMB)*1024*1024)
			if err != nil {
				return nil, err
			}
			loaderOpts = append(loaderOpts, source.WithCache(cache))
		}
		e.loader = source.NewLoader(loaderOpts...)
	}
	return e, nil
}

// Convert runs one dataset specification to completion and returns where
// the outputs were written.
func (e *Engine) Convert(ctx context.Context, sp *spec.Spec) (*Result, error) {
	if err := sp.Validate(); err != nil {
		return nil, err
	}
	log.Printf("convert: %s: loading %d source(s)", sp.ID, len(sp.Sources))

	tbl, err := e.loader.Load(ctx, sp)
	if err != nil {
		return nil, err
	}

	tbl, err = pipeline.Run(tbl, sp)
	if err != nil {
		return nil, err
	}

	resolved, err := schema.Resolve(ctx, schema.Base(), sp.Extensions, e.fetcher, sp.MissingSchemas)
	if err != nil {
		return nil, err
	}

	if err := validate.Table(tbl, resolved); err != nil {
		return nil, err
	}

	coll, err := collection.Build(sp, tbl)
	if err != nil {
		return nil, err
	}

	result := &Result{
		DatasetID:  sp.ID,
		Rows:       tbl.NumRows(),
		Columns:    tbl.NumColumns(),
		OutputPath: e.cfg.OutputPath(sp.ID),
	}
	if err := e.writer.WriteTable(tbl, resolved, result.OutputPath); err != nil {
		return nil, err
	}
	if e.cfg.Output.WriteCollection {
		result.CollectionPath = e.cfg.CollectionPath(sp.ID)
		if err := e.writer.WriteCollection(coll, result.CollectionPath); err != nil {
			return nil, err
		}
	}

	log.Printf("convert: %s: %d rows, %d columns -> %s", sp.ID, result.Rows, result.Columns, result.OutputPath)
	return result, nil
}

// All converts many dataset specifications with bounded parallelism. Every
// specification is attempted; the returned slice holds the results of the
// successful runs and the error aggregates the failures.
func (e *Engine) All(ctx context.Context, specs []*spec.Spec) ([]*Result, error) {
	sem := semaphore.NewWeighted(int64(e.cfg.Convert.Concurrency))

	var (
		mu      sync.Mutex
		results []*Result
		failed  []string
	)
	var wg sync.WaitGroup
	for _, sp := range specs {
		if err := sem.Acquire(ctx, 1); err != nil {
			return results, cerrors.NewInternalError("conversion run aborted", err)
		}
		wg.Add(1)
		go func(sp *spec.Spec) {
			defer wg.Done()
			defer sem.Release(1)
			result, err := e.Convert(ctx, sp)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("convert: %s failed: %v", sp.ID, err)
				failed = append(failed, fmt.Sprintf("%s: %v", sp.ID, err))
				return
			}
			results = append(results, result)
		}(sp)
	}
	wg.Wait()

	if len(failed) > 0 {
		return results, cerrors.New(cerrors.ErrCategoryInternal, cerrors.CodeUnexpected,
			fmt.Sprintf("%d of %d conversions failed", len(failed), len(specs))).
			WithDetails(map[string]interface{}{"failures": failed})
	}
	return results, nil
}
