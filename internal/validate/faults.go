// Package validate checks decoded GeoJSON documents before they are loaded.
// Every rejection is reported as one of a closed set of Fault types that
// carry the source file and the details of the violation.
package validate

import (
	"errors"
	"fmt"
)

// Category groups faults by who has to act on them.
type Category string

// Fault categories.
const (
	CategoryInput  Category = "input"  // the file content is bad
	CategoryStore  Category = "store"  // the database refused or went away
	CategorySource Category = "source" // the file could not be read
)

// Fault is a per-file failure. The set of implementations is closed.
type Fault interface {
	error
	File() string
	Kind() string
	Category() Category
	fault()
}

// AsFault finds the Fault in err's chain.
func AsFault(err error) (Fault, bool) {
	var f Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// SchemaViolation means the file is not a well-formed feature collection.
type SchemaViolation struct {
	Filename string
	Path     string // JSON pointer of the offending value, empty for the document
	Reason   string
}

func (e *SchemaViolation) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: schema violation: %s", e.Filename, e.Reason)
	}
	return fmt.Sprintf("%s: schema violation at %s: %s", e.Filename, e.Path, e.Reason)
}
func (e *SchemaViolation) File() string       { return e.Filename }
func (e *SchemaViolation) Kind() string       { return "schema_violation" }
func (e *SchemaViolation) Category() Category { return CategoryInput }
func (*SchemaViolation) fault()               {}

// MissingProperties means a feature has no "properties" key.
type MissingProperties struct {
	Filename string
}

func (e *MissingProperties) Error() string {
	return fmt.Sprintf("%s: feature has no properties", e.Filename)
}
func (e *MissingProperties) File() string       { return e.Filename }
func (e *MissingProperties) Kind() string       { return "missing_properties" }
func (e *MissingProperties) Category() Category { return CategoryInput }
func (*MissingProperties) fault()               {}

// MissingGeometry means a feature has no "geometry" key.
type MissingGeometry struct {
	Filename string
}

func (e *MissingGeometry) Error() string {
	return fmt.Sprintf("%s: feature has no geometry", e.Filename)
}
func (e *MissingGeometry) File() string       { return e.Filename }
func (e *MissingGeometry) Kind() string       { return "missing_geometry" }
func (e *MissingGeometry) Category() Category { return CategoryInput }
func (*MissingGeometry) fault()               {}

// MissingCoordinates means a geometry has no "coordinates" key. Properties
// identifies the feature it belongs to.
type MissingCoordinates struct {
	Filename   string
	Properties map[string]any
}

func (e *MissingCoordinates) Error() string {
	return fmt.Sprintf("%s: geometry has no coordinates (properties %v)", e.Filename, e.Properties)
}
func (e *MissingCoordinates) File() string       { return e.Filename }
func (e *MissingCoordinates) Kind() string       { return "missing_coordinates" }
func (e *MissingCoordinates) Category() Category { return CategoryInput }
func (*MissingCoordinates) fault()               {}

// NonNumericCoordinates means a normalized position holds a value that is
// not a number. Value is that position.
type NonNumericCoordinates struct {
	Filename string
	Value    any
}

func (e *NonNumericCoordinates) Error() string {
	return fmt.Sprintf("%s: coordinates are not numeric: %v", e.Filename, e.Value)
}
func (e *NonNumericCoordinates) File() string       { return e.Filename }
func (e *NonNumericCoordinates) Kind() string       { return "non_numeric_coordinates" }
func (e *NonNumericCoordinates) Category() Category { return CategoryInput }
func (*NonNumericCoordinates) fault()               {}

// InvalidCoordinateDimensions means a position has fewer than two
// components.
type InvalidCoordinateDimensions struct {
	Filename   string
	Dimensions int
}

func (e *InvalidCoordinateDimensions) Error() string {
	return fmt.Sprintf("%s: position has %d components, need at least 2", e.Filename, e.Dimensions)
}
func (e *InvalidCoordinateDimensions) File() string       { return e.Filename }
func (e *InvalidCoordinateDimensions) Kind() string       { return "invalid_coordinate_dimensions" }
func (e *InvalidCoordinateDimensions) Category() Category { return CategoryInput }
func (*InvalidCoordinateDimensions) fault()               {}

// InvalidGeometryShape means the nesting of the coordinates does not fit
// the geometry type.
type InvalidGeometryShape struct {
	Filename string
	Type     string
	Reason   string
}

func (e *InvalidGeometryShape) Error() string {
	return fmt.Sprintf("%s: invalid %s: %s", e.Filename, e.Type, e.Reason)
}
func (e *InvalidGeometryShape) File() string       { return e.Filename }
func (e *InvalidGeometryShape) Kind() string       { return "invalid_geometry_shape" }
func (e *InvalidGeometryShape) Category() Category { return CategoryInput }
func (*InvalidGeometryShape) fault()               {}

// SourceUnreadable means the file could not be read.
type SourceUnreadable struct {
	Filename string
	Err      error
}

func (e *SourceUnreadable) Error() string {
	return fmt.Sprintf("%s: read failed: %v", e.Filename, e.Err)
}
func (e *SourceUnreadable) Unwrap() error      { return e.Err }
func (e *SourceUnreadable) File() string       { return e.Filename }
func (e *SourceUnreadable) Kind() string       { return "source_unreadable" }
func (e *SourceUnreadable) Category() Category { return CategorySource }
func (*SourceUnreadable) fault()               {}

// PersistenceFault means the store rejected a write. Rows already written
// for the file are rolled back by the caller.
type PersistenceFault struct {
	Filename string
	Err      error
}

func (e *PersistenceFault) Error() string {
	return fmt.Sprintf("%s: store write failed: %v", e.Filename, e.Err)
}
func (e *PersistenceFault) Unwrap() error      { return e.Err }
func (e *PersistenceFault) File() string       { return e.Filename }
func (e *PersistenceFault) Kind() string       { return "persistence" }
func (e *PersistenceFault) Category() Category { return CategoryStore }
func (*PersistenceFault) fault()               {}
