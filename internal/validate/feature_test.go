package validate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geoload/internal/geojson"
)

func rawFeature(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func TestFeature_DropsElevation(t *testing.T) {
	raw := rawFeature(t, `{"type":"Feature","properties":{"name":"hill"},"geometry":{"type":"Point","coordinates":[1.0,2.0,50.0]}}`)

	f, err := Feature("a.geojson", raw)
	require.NoError(t, err)
	assert.Equal(t, geojson.Point, f.Geometry.Type)
	assert.Equal(t, []any{1.0, 2.0}, f.Geometry.Coordinates.Position())
	assert.Equal(t, map[string]any{"name": "hill"}, f.Properties)
}

func TestFeature_NonNumericCoordinates(t *testing.T) {
	raw := rawFeature(t, `{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":["a","b"]}}`)

	_, err := Feature("c.geojson", raw)
	var nn *NonNumericCoordinates
	require.ErrorAs(t, err, &nn)
	assert.Equal(t, "c.geojson", nn.Filename)
	assert.Equal(t, []any{"a", "b"}, nn.Value)
}

func TestFeature_LineStringDropsElevation(t *testing.T) {
	raw := rawFeature(t, `{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[1,2,3],[4,5,6]]}}`)

	f, err := Feature("d.geojson", raw)
	require.NoError(t, err)
	assert.JSONEq(t, `[[1,2],[4,5]]`, f.Geometry.Coordinates.String())
}

func TestFeature_PropertiesCheckedFirst(t *testing.T) {
	// Geometry is deliberately broken too: properties must be checked first.
	raw := rawFeature(t, `{"type":"Feature","geometry":{"type":"Point","coordinates":["x"]}}`)

	_, err := Feature("e.geojson", raw)
	var mp *MissingProperties
	require.ErrorAs(t, err, &mp)
	assert.Equal(t, "e.geojson", mp.Filename)
}

func TestFeature_MissingGeometry(t *testing.T) {
	_, err := Feature("g.geojson", rawFeature(t, `{"type":"Feature","properties":{}}`))
	var mg *MissingGeometry
	require.ErrorAs(t, err, &mg)
	assert.Equal(t, "g.geojson", mg.File())
}

func TestFeature_NullGeometry(t *testing.T) {
	_, err := Feature("g.geojson", rawFeature(t, `{"type":"Feature","properties":{},"geometry":null}`))
	var mg *MissingGeometry
	assert.ErrorAs(t, err, &mg)
}

func TestFeature_MissingCoordinates(t *testing.T) {
	raw := rawFeature(t, `{"type":"Feature","properties":{"id":7},"geometry":{"type":"Polygon"}}`)

	_, err := Feature("m.geojson", raw)
	var mc *MissingCoordinates
	require.ErrorAs(t, err, &mc)
	assert.Equal(t, map[string]any{"id": 7.0}, mc.Properties)
}

func TestFeature_MissingCoordinatesInCollectionMember(t *testing.T) {
	raw := rawFeature(t, `{"type":"Feature","properties":{},"geometry":{"type":"GeometryCollection","geometries":[
		{"type":"Point","coordinates":[1,2]},
		{"type":"LineString"}
	]}}`)

	_, err := Feature("gc.geojson", raw)
	var mc *MissingCoordinates
	assert.ErrorAs(t, err, &mc)
}

func TestFeature_ShortPosition(t *testing.T) {
	raw := rawFeature(t, `{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[1,2],[3]]}}`)

	_, err := Feature("short.geojson", raw)
	var dims *InvalidCoordinateDimensions
	require.ErrorAs(t, err, &dims)
	assert.Equal(t, 1, dims.Dimensions)
}

func TestFeature_NonNumericBeatsShortPosition(t *testing.T) {
	raw := rawFeature(t, `{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[1],["a","b"]]}}`)

	_, err := Feature("x.geojson", raw)
	var nn *NonNumericCoordinates
	assert.ErrorAs(t, err, &nn)
}

func TestFeature_NonNumericAfterTruncation(t *testing.T) {
	// The third component is discarded before the numeric check.
	raw := rawFeature(t, `{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[1,2,"tall"]}}`)

	f, err := Feature("z.geojson", raw)
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0}, f.Geometry.Coordinates.Position())
}

func TestFeature_InvalidShape(t *testing.T) {
	tests := []struct {
		name  string
		geom  string
		gtype string
	}{
		{"point with nested positions", `{"type":"Point","coordinates":[[1,2]]}`, "Point"},
		{"linestring with one position", `{"type":"LineString","coordinates":[1,2]}`, "LineString"},
		{"polygon one level short", `{"type":"Polygon","coordinates":[[1,2],[3,4]]}`, "Polygon"},
		{"multipolygon two levels short", `{"type":"MultiPolygon","coordinates":[[1,2]]}`, "MultiPolygon"},
		{"multipoint too deep", `{"type":"MultiPoint","coordinates":[[[1,2]]]}`, "MultiPoint"},
		{"empty position in linestring", `{"type":"LineString","coordinates":[[],[1,2]]}`, "LineString"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := rawFeature(t, `{"type":"Feature","properties":{},"geometry":`+tt.geom+`}`)
			_, err := Feature("shape.geojson", raw)

			var shape *InvalidGeometryShape
			require.ErrorAs(t, err, &shape)
			assert.Equal(t, tt.gtype, shape.Type)
			assert.NotEmpty(t, shape.Reason)
		})
	}
}

func TestFeature_EmptySequencesAccepted(t *testing.T) {
	geoms := []string{
		`{"type":"Point","coordinates":[]}`,
		`{"type":"LineString","coordinates":[]}`,
		`{"type":"Polygon","coordinates":[[]]}`,
		`{"type":"MultiPolygon","coordinates":[]}`,
		`{"type":"GeometryCollection","geometries":[]}`,
	}
	for _, g := range geoms {
		raw := rawFeature(t, `{"type":"Feature","properties":{},"geometry":`+g+`}`)
		_, err := Feature("empty.geojson", raw)
		assert.NoError(t, err, g)
	}
}

func TestFeature_UnknownType(t *testing.T) {
	raw := rawFeature(t, `{"type":"Feature","properties":{},"geometry":{"type":"Circle","coordinates":[1,2]}}`)
	_, err := Feature("u.geojson", raw)
	var shape *InvalidGeometryShape
	require.ErrorAs(t, err, &shape)
	assert.Equal(t, "Circle", shape.Type)
}

func TestFeature_GeometryCollection(t *testing.T) {
	raw := rawFeature(t, `{"type":"Feature","properties":{},"geometry":{"type":"GeometryCollection","geometries":[
		{"type":"Point","coordinates":[1,2,3]},
		{"type":"Polygon","coordinates":[[[0,0,1],[1,0,1],[1,1,1],[0,0,1]]]}
	]}}`)

	f, err := Feature("gc.geojson", raw)
	require.NoError(t, err)
	require.Len(t, f.Geometry.Geometries, 2)
	assert.JSONEq(t, `[1,2]`, f.Geometry.Geometries[0].Coordinates.String())
	assert.JSONEq(t, `[[[0,0],[1,0],[1,1],[0,0]]]`, f.Geometry.Geometries[1].Coordinates.String())
}

func TestFeature_DoesNotMutateInput(t *testing.T) {
	raw := rawFeature(t, `{"type":"Feature","properties":{"a":1},"geometry":{"type":"LineString","coordinates":[[1,2,3],[4,5,6]]}}`)

	f, err := Feature("d.geojson", raw)
	require.NoError(t, err)

	coords := raw["geometry"].(map[string]any)["coordinates"].([]any)
	assert.Len(t, coords[0], 3)

	f.Properties["b"] = 2
	assert.NotContains(t, raw["properties"], "b")
}

func TestFaults_Classification(t *testing.T) {
	store := &PersistenceFault{Filename: "f", Err: assert.AnError}
	src := &SourceUnreadable{Filename: "f", Err: assert.AnError}

	faults := []Fault{
		&SchemaViolation{Filename: "f"},
		&MissingProperties{Filename: "f"},
		&MissingGeometry{Filename: "f"},
		&MissingCoordinates{Filename: "f"},
		&NonNumericCoordinates{Filename: "f"},
		&InvalidCoordinateDimensions{Filename: "f"},
		&InvalidGeometryShape{Filename: "f"},
		src,
		store,
	}
	kinds := map[string]bool{}
	for _, f := range faults {
		assert.Equal(t, "f", f.File())
		assert.Contains(t, f.Error(), "f:")
		kinds[f.Kind()] = true
	}
	assert.Len(t, kinds, len(faults), "kinds must be distinct")

	assert.Equal(t, CategoryStore, store.Category())
	assert.Equal(t, CategorySource, src.Category())
	assert.Equal(t, CategoryInput, (&SchemaViolation{}).Category())
	assert.ErrorIs(t, store, assert.AnError)
}

func TestAsFault(t *testing.T) {
	wrapped := &PersistenceFault{Filename: "p.geojson", Err: assert.AnError}
	f, ok := AsFault(wrapped)
	require.True(t, ok)
	assert.Equal(t, "persistence", f.Kind())

	_, ok = AsFault(assert.AnError)
	assert.False(t, ok)
}
