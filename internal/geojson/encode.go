package geojson

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	geomjson "github.com/twpayne/go-geom/encoding/geojson"
)

// Geom converts a normalized geometry to a go-geom value in the XY layout.
// It fails when the nesting of the coordinates does not match the type or a
// position is not two numbers.
func (g Geometry) Geom() (geom.T, error) {
	switch g.Type {
	case Point:
		if !g.Coordinates.IsLeaf() && g.Coordinates.Len() == 0 {
			return geom.NewPointEmpty(geom.XY), nil
		}
		c, err := toCoord(g.Coordinates)
		if err != nil {
			return nil, err
		}
		return geom.NewPoint(geom.XY).SetCoords(c)

	case LineString:
		cs, err := toCoords1(g.Coordinates)
		if err != nil {
			return nil, err
		}
		return geom.NewLineString(geom.XY).SetCoords(cs)

	case MultiPoint:
		cs, err := toCoords1(g.Coordinates)
		if err != nil {
			return nil, err
		}
		return geom.NewMultiPoint(geom.XY).SetCoords(cs)

	case Polygon:
		cs, err := toCoords2(g.Coordinates)
		if err != nil {
			return nil, err
		}
		return geom.NewPolygon(geom.XY).SetCoords(cs)

	case MultiLineString:
		cs, err := toCoords2(g.Coordinates)
		if err != nil {
			return nil, err
		}
		return geom.NewMultiLineString(geom.XY).SetCoords(cs)

	case MultiPolygon:
		cs, err := toCoords3(g.Coordinates)
		if err != nil {
			return nil, err
		}
		return geom.NewMultiPolygon(geom.XY).SetCoords(cs)

	case GeometryCollection:
		gc := geom.NewGeometryCollection()
		for i, member := range g.Geometries {
			t, err := member.Geom()
			if err != nil {
				return nil, eris.Wrapf(err, "geometries[%d]", i)
			}
			if err := gc.Push(t); err != nil {
				return nil, eris.Wrapf(err, "geometries[%d]", i)
			}
		}
		return gc, nil

	default:
		return nil, eris.Errorf("unsupported geometry type %q", g.Type)
	}
}

// EncodeGeoJSON renders g as GeoJSON geometry text.
func EncodeGeoJSON(g Geometry) (string, error) {
	t, err := g.Geom()
	if err != nil {
		return "", eris.Wrap(err, "geojson: build geometry")
	}
	data, err := geomjson.Marshal(t)
	if err != nil {
		return "", eris.Wrap(err, "geojson: marshal geometry")
	}
	return string(data), nil
}

// EncodeEWKB renders g as little-endian EWKB tagged with SRID 4326.
func EncodeEWKB(g Geometry) ([]byte, error) {
	t, err := g.Geom()
	if err != nil {
		return nil, eris.Wrap(err, "geojson: build geometry")
	}
	data, err := ewkb.Marshal(withSRID(t), ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geojson: encode EWKB")
	}
	return data, nil
}

func withSRID(t geom.T) geom.T {
	switch g := t.(type) {
	case *geom.Point:
		return g.SetSRID(SRID)
	case *geom.LineString:
		return g.SetSRID(SRID)
	case *geom.Polygon:
		return g.SetSRID(SRID)
	case *geom.MultiPoint:
		return g.SetSRID(SRID)
	case *geom.MultiLineString:
		return g.SetSRID(SRID)
	case *geom.MultiPolygon:
		return g.SetSRID(SRID)
	case *geom.GeometryCollection:
		return g.SetSRID(SRID)
	default:
		return t
	}
}

func toCoord(c Coordinates) (geom.Coord, error) {
	if !c.IsLeaf() {
		return nil, eris.New("expected a position, found a nested array")
	}
	fs, ok := c.Float64s()
	if !ok {
		return nil, eris.Errorf("position %s is not numeric", c)
	}
	if len(fs) != Dimensions {
		return nil, eris.Errorf("position %s has %d components, want %d", c, len(fs), Dimensions)
	}
	return geom.Coord(fs), nil
}

func toCoords1(c Coordinates) ([]geom.Coord, error) {
	if c.IsLeaf() {
		return nil, eris.New("expected an array of positions, found a single position")
	}
	out := make([]geom.Coord, len(c.Children()))
	for i, child := range c.Children() {
		coord, err := toCoord(child)
		if err != nil {
			return nil, eris.Wrapf(err, "[%d]", i)
		}
		out[i] = coord
	}
	return out, nil
}

func toCoords2(c Coordinates) ([][]geom.Coord, error) {
	if c.IsLeaf() {
		return nil, eris.New("expected an array of position arrays, found a single position")
	}
	out := make([][]geom.Coord, len(c.Children()))
	for i, child := range c.Children() {
		cs, err := toCoords1(child)
		if err != nil {
			return nil, eris.Wrapf(err, "[%d]", i)
		}
		out[i] = cs
	}
	return out, nil
}

func toCoords3(c Coordinates) ([][][]geom.Coord, error) {
	if c.IsLeaf() {
		return nil, eris.New("expected an array of polygons, found a single position")
	}
	out := make([][][]geom.Coord, len(c.Children()))
	for i, child := range c.Children() {
		cs, err := toCoords2(child)
		if err != nil {
			return nil, eris.Wrapf(err, "[%d]", i)
		}
		out[i] = cs
	}
	return out, nil
}
