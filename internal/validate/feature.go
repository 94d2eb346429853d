package validate

import (
	"fmt"
	"maps"

	"github.com/sells-group/geoload/internal/geojson"
)

// Feature checks one decoded feature and returns it with normalized
// coordinates. Checks run in a fixed order: the properties key, the
// geometry key, the coordinates key, then (after normalization) numeric
// values, position dimensions and nesting depth. raw is not modified.
func Feature(filename string, raw map[string]any) (geojson.Feature, error) {
	props, ok := raw["properties"]
	if !ok {
		return geojson.Feature{}, &MissingProperties{Filename: filename}
	}
	rawGeom, ok := raw["geometry"]
	if !ok || rawGeom == nil {
		return geojson.Feature{}, &MissingGeometry{Filename: filename}
	}

	propMap, _ := props.(map[string]any)
	propMap = maps.Clone(propMap)
	if propMap == nil {
		propMap = map[string]any{}
	}

	obj, ok := rawGeom.(map[string]any)
	if !ok {
		return geojson.Feature{}, &InvalidGeometryShape{Filename: filename, Reason: fmt.Sprintf("geometry is %T, not an object", rawGeom)}
	}

	g, err := geometry(filename, obj, propMap)
	if err != nil {
		return geojson.Feature{}, err
	}
	return geojson.Feature{Properties: propMap, Geometry: g}, nil
}

func geometry(filename string, obj map[string]any, props map[string]any) (geojson.Geometry, error) {
	typ, _ := obj["type"].(string)
	kind := geojson.GeometryType(typ)

	if kind == geojson.GeometryCollection {
		return collectionMembers(filename, obj, props)
	}
	if !kind.Valid() {
		return geojson.Geometry{}, &InvalidGeometryShape{Filename: filename, Type: typ, Reason: "unsupported geometry type"}
	}

	rawCoords, ok := obj["coordinates"]
	if !ok {
		return geojson.Geometry{}, &MissingCoordinates{Filename: filename, Properties: props}
	}

	coords := geojson.Normalize(geojson.ParseCoordinates(rawCoords))

	if err := coords.Walk(func(leaf geojson.Coordinates) error {
		if _, ok := leaf.Float64s(); !ok {
			return &NonNumericCoordinates{Filename: filename, Value: leaf.Value()}
		}
		return nil
	}); err != nil {
		return geojson.Geometry{}, err
	}

	if err := coords.Walk(func(leaf geojson.Coordinates) error {
		if leaf.Len() < geojson.Dimensions {
			return &InvalidCoordinateDimensions{Filename: filename, Dimensions: leaf.Len()}
		}
		return nil
	}); err != nil {
		return geojson.Geometry{}, err
	}

	depth, _ := kind.PositionDepth()
	if reason := checkDepth(coords, depth, true); reason != "" {
		return geojson.Geometry{}, &InvalidGeometryShape{Filename: filename, Type: typ, Reason: reason}
	}

	return geojson.Geometry{Type: kind, Coordinates: coords}, nil
}

func collectionMembers(filename string, obj map[string]any, props map[string]any) (geojson.Geometry, error) {
	rawMembers, ok := obj["geometries"].([]any)
	if !ok {
		return geojson.Geometry{}, &InvalidGeometryShape{
			Filename: filename,
			Type:     string(geojson.GeometryCollection),
			Reason:   "geometries must be an array",
		}
	}

	out := geojson.Geometry{Type: geojson.GeometryCollection, Geometries: make([]geojson.Geometry, 0, len(rawMembers))}
	for i, m := range rawMembers {
		member, ok := m.(map[string]any)
		if !ok {
			return geojson.Geometry{}, &InvalidGeometryShape{
				Filename: filename,
				Type:     string(geojson.GeometryCollection),
				Reason:   fmt.Sprintf("geometries[%d] is not an object", i),
			}
		}
		g, err := geometry(filename, member, props)
		if err != nil {
			return geojson.Geometry{}, err
		}
		out.Geometries = append(out.Geometries, g)
	}
	return out, nil
}

// checkDepth verifies that positions sit exactly depth array levels below
// c. Empty arrays are accepted wherever an array is expected, and as a
// whole empty Point.
func checkDepth(c geojson.Coordinates, depth int, top bool) string {
	if depth == 0 {
		if c.IsLeaf() || (top && c.Len() == 0) {
			return ""
		}
		return "expected a position, found a nested array"
	}
	if c.IsLeaf() {
		return fmt.Sprintf("expected %d more level(s) of nesting, found a position", depth)
	}
	for i, child := range c.Children() {
		if reason := checkDepth(child, depth-1, false); reason != "" {
			return fmt.Sprintf("[%d]: %s", i, reason)
		}
	}
	return ""
}
