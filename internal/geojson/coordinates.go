package geojson

import (
	"encoding/json"
	"strconv"
)

// Coordinates is one node of a coordinate tree. A node is either a leaf
// holding the values of a single position, or a nested sequence of child
// nodes. Leaf values are kept as decoded so that non-numeric input survives
// until it is checked.
type Coordinates struct {
	position []any
	children []Coordinates
	leaf     bool
}

// Leaf builds a leaf node from position values.
func Leaf(values ...any) Coordinates {
	return Coordinates{position: values, leaf: true}
}

// Nested builds a sequence node.
func Nested(children ...Coordinates) Coordinates {
	return Coordinates{children: children}
}

// ParseCoordinates builds a coordinate tree from a decoded JSON value. An
// array whose first element is itself an array is a sequence; any other
// non-empty array is a position. Empty arrays become empty sequences and
// scalars become one-value positions.
func ParseCoordinates(v any) Coordinates {
	arr, ok := v.([]any)
	if !ok {
		return Leaf(v)
	}
	if len(arr) == 0 {
		return Nested()
	}
	if _, nested := arr[0].([]any); !nested {
		values := make([]any, len(arr))
		copy(values, arr)
		return Leaf(values...)
	}

	children := make([]Coordinates, len(arr))
	for i, el := range arr {
		children[i] = ParseCoordinates(el)
	}
	return Nested(children...)
}

// IsLeaf reports whether c is a single position.
func (c Coordinates) IsLeaf() bool { return c.leaf }

// Position returns the values of a leaf, nil for a sequence.
func (c Coordinates) Position() []any { return c.position }

// Children returns the nodes of a sequence, nil for a leaf.
func (c Coordinates) Children() []Coordinates { return c.children }

// Len is the number of components of a leaf or the number of children of a
// sequence.
func (c Coordinates) Len() int {
	if c.leaf {
		return len(c.position)
	}
	return len(c.children)
}

// Float64s returns a leaf's values as float64s. ok is false when c is not a
// leaf or any value is not a number.
func (c Coordinates) Float64s() ([]float64, bool) {
	if !c.leaf {
		return nil, false
	}
	out := make([]float64, len(c.position))
	for i, v := range c.position {
		f, ok := toFloat(v)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

// Walk calls fn for every leaf in depth-first order and stops at the first
// error.
func (c Coordinates) Walk(fn func(leaf Coordinates) error) error {
	if c.leaf {
		return fn(c)
	}
	for _, child := range c.children {
		if err := child.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// Value converts the tree back to plain nested slices.
func (c Coordinates) Value() any {
	if c.leaf {
		out := make([]any, len(c.position))
		copy(out, c.position)
		return out
	}
	out := make([]any, len(c.children))
	for i, child := range c.children {
		out[i] = child.Value()
	}
	return out
}

// MarshalJSON encodes the tree as nested JSON arrays.
func (c Coordinates) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Value())
}

// String renders the tree as JSON for diagnostics.
func (c Coordinates) String() string {
	b, err := c.MarshalJSON()
	if err != nil {
		return "<unprintable coordinates>"
	}
	return string(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
