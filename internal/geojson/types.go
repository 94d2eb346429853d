// Package geojson holds the in-memory model of GeoJSON feature collections,
// the coordinate normalizer that reduces every position to two dimensions,
// and encoders that turn a normalized geometry into GeoJSON text or EWKB.
package geojson

// SRID is the spatial reference every stored geometry is tagged with (WGS84).
const SRID = 4326

// Object type tags.
const (
	TypeFeatureCollection = "FeatureCollection"
	TypeFeature           = "Feature"
)

// GeometryType is the "type" tag of a geometry object.
type GeometryType string

// Recognized geometry kinds.
const (
	Point              GeometryType = "Point"
	LineString         GeometryType = "LineString"
	Polygon            GeometryType = "Polygon"
	MultiPoint         GeometryType = "MultiPoint"
	MultiLineString    GeometryType = "MultiLineString"
	MultiPolygon       GeometryType = "MultiPolygon"
	GeometryCollection GeometryType = "GeometryCollection"
)

// GeometryTypes lists every recognized geometry kind.
var GeometryTypes = []GeometryType{
	Point, LineString, Polygon,
	MultiPoint, MultiLineString, MultiPolygon,
	GeometryCollection,
}

// positionDepth is the number of array levels above a single position.
var positionDepth = map[GeometryType]int{
	Point:           0,
	LineString:      1,
	MultiPoint:      1,
	Polygon:         2,
	MultiLineString: 2,
	MultiPolygon:    3,
}

// Valid reports whether t is one of the recognized geometry kinds.
func (t GeometryType) Valid() bool {
	for _, k := range GeometryTypes {
		if t == k {
			return true
		}
	}
	return false
}

// PositionDepth returns how many array levels sit above a position for t.
// ok is false for GeometryCollection, which has no coordinates of its own.
func (t GeometryType) PositionDepth() (depth int, ok bool) {
	depth, ok = positionDepth[t]
	return depth, ok
}

// FeatureCollection is one source file's collection after its container
// shape has been accepted. Features are the raw decoded objects; they are
// checked one by one afterwards.
type FeatureCollection struct {
	Features []map[string]any
}

// Feature is a validated feature ready to be loaded.
type Feature struct {
	Properties map[string]any
	Geometry   Geometry
}

// Geometry is a typed shape with normalized coordinates. Geometries is only
// used by GeometryCollection.
type Geometry struct {
	Type        GeometryType
	Coordinates Coordinates
	Geometries  []Geometry
}
