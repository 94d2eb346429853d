package geojson

// Dimensions is the number of components every stored position keeps.
const Dimensions = 2

// Normalize returns a copy of c with every position cut down to its first
// two components (longitude, latitude). Sequence lengths are unchanged,
// empty sequences stay empty and positions that are already short are
// passed through as they are. The input is never modified.
func Normalize(c Coordinates) Coordinates {
	if c.leaf {
		n := len(c.position)
		if n > Dimensions {
			n = Dimensions
		}
		values := make([]any, n)
		copy(values, c.position[:n])
		return Leaf(values...)
	}

	if len(c.children) == 0 {
		return Nested()
	}
	children := make([]Coordinates, len(c.children))
	for i, child := range c.children {
		children[i] = Normalize(child)
	}
	return Nested(children...)
}

// NormalizeGeometry normalizes g and, for collections, every member.
func NormalizeGeometry(g Geometry) Geometry {
	out := Geometry{Type: g.Type, Coordinates: Normalize(g.Coordinates)}
	if len(g.Geometries) > 0 {
		out.Geometries = make([]Geometry, len(g.Geometries))
		for i, member := range g.Geometries {
			out.Geometries[i] = NormalizeGeometry(member)
		}
	}
	return out
}
