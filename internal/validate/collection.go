package validate

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sells-group/geoload/internal/geojson"
)

//go:embed schema.json
var schemaJSON string

var collectionSchema = jsonschema.MustCompileString("https://geoload.local/feature-collection.schema.json", schemaJSON)

// Parse decodes one file's bytes and checks the collection shape. Bytes
// that are not a single JSON document are reported as a SchemaViolation for
// the document. Numbers stay json.Number so property values keep their
// exact text.
func Parse(filename string, data []byte) (*geojson.FeatureCollection, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &SchemaViolation{Filename: filename, Reason: "malformed JSON: " + err.Error()}
	}
	if _, err := dec.Token(); err != io.EOF {
		reason := "malformed JSON: unexpected data after top-level value"
		if err != nil {
			reason = "malformed JSON: " + err.Error()
		}
		return nil, &SchemaViolation{Filename: filename, Reason: reason}
	}
	return Collection(filename, doc)
}

// Collection checks that doc is a FeatureCollection whose features each
// carry a geometry of a known type with coordinates (or member geometries
// for a GeometryCollection). Coordinate values are not inspected here.
func Collection(filename string, doc any) (*geojson.FeatureCollection, error) {
	if err := collectionSchema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return nil, &SchemaViolation{Filename: filename, Reason: err.Error()}
		}
		leaf := deepestCause(ve)
		return nil, &SchemaViolation{Filename: filename, Path: leaf.InstanceLocation, Reason: leaf.Message}
	}

	// The schema guarantees these assertions hold.
	obj := doc.(map[string]any)
	raw := obj["features"].([]any)

	fc := &geojson.FeatureCollection{Features: make([]map[string]any, len(raw))}
	for i, f := range raw {
		fc.Features[i] = f.(map[string]any)
	}
	return fc, nil
}

// deepestCause returns the leaf error whose instance location is nested
// furthest into the document. Ties keep the first one found.
func deepestCause(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return ve
	}
	var best *jsonschema.ValidationError
	for _, c := range ve.Causes {
		leaf := deepestCause(c)
		if best == nil || pointerDepth(leaf.InstanceLocation) > pointerDepth(best.InstanceLocation) {
			best = leaf
		}
	}
	return best
}

func pointerDepth(ptr string) int {
	return strings.Count(ptr, "/")
}
