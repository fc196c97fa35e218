package collection

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/fieldconv/fieldconv/internal/errors"
	"github.com/fieldconv/fieldconv/internal/spec"
	"github.com/fieldconv/fieldconv/internal/table"
)

func testTable(t *testing.T, geoms []orb.Geometry) *table.Table {
	t.Helper()
	return table.New("geometry", geoms)
}

func TestBuildComputesBBoxFromGeometries(t *testing.T) {
	tbl := testTable(t, []orb.Geometry{
		orb.Polygon{{{10, 50}, {11, 50}, {11, 51}, {10, 50}}},
		orb.Polygon{{{8, 47}, {9, 47}, {9, 48}, {8, 47}}},
	})

	c, err := Build(&spec.Spec{ID: "de_test"}, tbl)
	require.NoError(t, err)

	require.Len(t, c.Extent.Spatial.BBox, 1)
	assert.Equal(t, []float64{8, 47, 11, 51}, c.Extent.Spatial.BBox[0])
	assert.Equal(t, "Collection", c.Type)
	assert.Equal(t, "de_test", c.ID)
}

func TestBuildPrefersSpecBBox(t *testing.T) {
	tbl := testTable(t, []orb.Geometry{
		orb.Polygon{{{10, 50}, {11, 50}, {11, 51}, {10, 50}}},
	})

	c, err := Build(&spec.Spec{ID: "x", BBox: []float64{5, 45, 15, 55}}, tbl)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 45, 15, 55}, c.Extent.Spatial.BBox[0])
}

func TestBuildEmptyTableZeroExtent(t *testing.T) {
	c, err := Build(&spec.Spec{ID: "x"}, testTable(t, nil))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0}, c.Extent.Spatial.BBox[0])
	assert.Nil(t, c.Extent.Temporal.Interval[0][0])
	assert.Nil(t, c.Extent.Temporal.Interval[0][1])
}

func TestBuildTemporalExtent(t *testing.T) {
	tbl := testTable(t, []orb.Geometry{orb.Point{0, 0}, orb.Point{1, 1}, orb.Point{2, 2}})
	require.NoError(t, tbl.AddColumn("determination_datetime", []interface{}{
		time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC),
		nil,
		time.Date(2020, 6, 15, 12, 0, 0, 0, time.UTC),
	}))

	c, err := Build(&spec.Spec{ID: "x"}, tbl)
	require.NoError(t, err)

	interval := c.Extent.Temporal.Interval[0]
	require.NotNil(t, interval[0])
	require.NotNil(t, interval[1])
	assert.Equal(t, "2020-06-15T12:00:00Z", *interval[0])
	assert.Equal(t, "2021-03-01T00:00:00Z", *interval[1])
}

func TestBuildProviderURLRequiresName(t *testing.T) {
	_, err := Build(&spec.Spec{ID: "x", ProviderURL: "https://example.org"}, testTable(t, nil))
	require.Error(t, err)
	assert.Equal(t, cerrors.CodeInvalidSpec, cerrors.GetCode(err))

	c, err := Build(&spec.Spec{
		ID:           "x",
		ProviderName: "Example Agency",
		ProviderURL:  "https://example.org",
	}, testTable(t, nil))
	require.NoError(t, err)
	require.Len(t, c.Providers, 1)
	assert.Equal(t, "Example Agency", c.Providers[0].Name)
}

func TestBuildLicensePassthrough(t *testing.T) {
	c, err := Build(&spec.Spec{ID: "x", License: "CC-BY-4.0"}, testTable(t, nil))
	require.NoError(t, err)
	assert.Equal(t, "CC-BY-4.0", c.License)

	link := spec.Link{Title: "Terms", Href: "https://example.org/terms", Rel: "license"}
	c, err = Build(&spec.Spec{ID: "x", License: link}, testTable(t, nil))
	require.NoError(t, err)
	assert.Equal(t, link, c.License)
}

func TestCollectionJSONShape(t *testing.T) {
	tbl := testTable(t, []orb.Geometry{orb.Point{3, 4}})
	c, err := Build(&spec.Spec{
		ID:          "at",
		Title:       "Field boundaries Austria",
		License:     "CC-BY-4.0",
		Extensions:  []string{"https://example.org/flik/v1/schema.yaml"},
		Attribution: "© Agrarmarkt Austria",
	}, tbl)
	require.NoError(t, err)

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Collection", decoded["type"])
	assert.Equal(t, "at", decoded["id"])
	assert.Contains(t, decoded, "extent")
	assert.NotContains(t, decoded, "providers")
}
