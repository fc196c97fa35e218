// Package collection builds the collection metadata record that accompanies
// a converted dataset: identity, provenance, license and extent, encoded as
// a STAC-like collection document.
package collection

import (
	"fmt"
	"log"
	"time"

	"github.com/paulmach/orb"

	cerrors "github.com/fieldconv/fieldconv/internal/errors"
	"github.com/fieldconv/fieldconv/internal/spec"
	"github.com/fieldconv/fieldconv/internal/table"
)

// Provider describes one party involved in producing or hosting the data.
type Provider struct {
	Name  string   `json:"name"`
	URL   string   `json:"url,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// SpatialExtent holds one or more bounding boxes in WGS84.
type SpatialExtent struct {
	BBox [][]float64 `json:"bbox"`
}

// TemporalExtent holds one or more RFC3339 intervals; nil endpoints are
// open.
type TemporalExtent struct {
	Interval [][]*string `json:"interval"`
}

// Extent combines the spatial and temporal extents.
type Extent struct {
	Spatial  SpatialExtent  `json:"spatial"`
	Temporal TemporalExtent `json:"temporal"`
}

// Collection is the metadata record for one converted dataset.
type Collection struct {
	Type        string      `json:"type"`
	ID          string      `json:"id"`
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	License     interface{} `json:"license,omitempty"`
	Attribution string      `json:"attribution,omitempty"`
	Extensions  []string    `json:"extensions,omitempty"`
	Providers   []Provider  `json:"providers,omitempty"`
	Extent      Extent      `json:"extent"`
}

// Build assembles the collection record for a validated table. The bounding
// box comes from the specification when supplied, otherwise it is computed
// as the union extent of all geometries. The temporal extent spans the
// determination_datetime column when present.
func Build(sp *spec.Spec, tbl *table.Table) (*Collection, error) {
	if sp.ProviderURL != "" && sp.ProviderName == "" {
		return nil, cerrors.NewValidationError(cerrors.CodeInvalidSpec,
			"provider_url must not be set without provider_name")
	}

	c := &Collection{
		Type:        "Collection",
		ID:          sp.ID,
		Title:       sp.Title,
		Description: sp.Description,
		License:     sp.License,
		Attribution: sp.Attribution,
		Extensions:  sp.Extensions,
	}
	if sp.ProviderName != "" {
		c.Providers = []Provider{{
			Name:  sp.ProviderName,
			URL:   sp.ProviderURL,
			Roles: []string{"producer", "licensor"},
		}}
	}

	bbox := sp.BBox
	if bbox == nil {
		bbox = unionExtent(tbl.Geometries())
		log.Printf("collection: computed bbox %v from %d geometries", bbox, tbl.NumRows())
	}
	if len(bbox) != 4 {
		return nil, cerrors.NewValidationError(cerrors.CodeInvalidSpec,
			fmt.Sprintf("bbox must have four values, got %d", len(bbox)))
	}
	c.Extent.Spatial.BBox = [][]float64{bbox}
	c.Extent.Temporal.Interval = [][]*string{temporalInterval(tbl)}

	return c, nil
}

// unionExtent folds all geometry bounds into one [west, south, east, north]
// box. Zero geometries yield the zero extent.
func unionExtent(geoms []orb.Geometry) []float64 {
	var bound *orb.Bound
	for _, g := range geoms {
		if g == nil {
			continue
		}
		b := g.Bound()
		if bound == nil {
			bound = &b
		} else {
			u := bound.Union(b)
			bound = &u
		}
	}
	if bound == nil {
		return []float64{0, 0, 0, 0}
	}
	return []float64{bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1]}
}

// temporalInterval scans determination_datetime for the earliest and latest
// timestamps. Both endpoints are open when the column is absent or empty.
func temporalInterval(tbl *table.Table) []*string {
	col := tbl.Column("determination_datetime")
	if col == nil {
		return []*string{nil, nil}
	}
	var earliest, latest time.Time
	found := false
	for _, v := range col.Values {
		t, ok := timestampValue(v)
		if !ok {
			continue
		}
		if !found || t.Before(earliest) {
			earliest = t
		}
		if !found || t.After(latest) {
			latest = t
		}
		found = true
	}
	if !found {
		return []*string{nil, nil}
	}
	lo := earliest.UTC().Format(time.RFC3339)
	hi := latest.UTC().Format(time.RFC3339)
	return []*string{&lo, &hi}
}

func timestampValue(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		return parsed, err == nil
	}
	return time.Time{}, false
}
