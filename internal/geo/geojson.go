// Package geo decodes, measures and re-encodes GeoJSON geometries.
package geo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

var ErrInvalidFormat = errors.New("invalid GeoJSON")

const (
	TypePolygon           = "Polygon"
	TypeFeature           = "Feature"
	TypeFeatureCollection = "FeatureCollection"
)

// Shape is a decoded geometry together with the GeoJSON type it declared.
// Geometry is nil for declared types that carry no single geometry
// (FeatureCollection).
type Shape struct {
	Type     string
	Geometry orb.Geometry
}

// Parse decodes raw GeoJSON. raw may be a GeoJSON object, a Feature wrapping
// one, or a JSON string whose content is either of those.
func Parse(raw []byte) (*Shape, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		raw = bytes.TrimSpace([]byte(text))
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidFormat)
	}

	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	switch envelope.Type {
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrInvalidFormat)
	case TypeFeature:
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		if f.Geometry == nil {
			return nil, fmt.Errorf("%w: feature has no geometry", ErrInvalidFormat)
		}
		var wrapper struct {
			Geometry json.RawMessage `json:"geometry"`
		}
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		if err := checkPositions(f.Geometry.GeoJSONType(), wrapper.Geometry); err != nil {
			return nil, err
		}
		return &Shape{Type: f.Geometry.GeoJSONType(), Geometry: f.Geometry}, nil
	case TypeFeatureCollection:
		return &Shape{Type: TypeFeatureCollection}, nil
	default:
		g, err := geojson.UnmarshalGeometry(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		if g.Geometry() == nil {
			return nil, fmt.Errorf("%w: unsupported type %q", ErrInvalidFormat, envelope.Type)
		}
		if err := checkPositions(envelope.Type, raw); err != nil {
			return nil, err
		}
		return &Shape{Type: envelope.Type, Geometry: g.Geometry()}, nil
	}
}

// positionDepth is how many arrays enclose each position in a geometry's
// coordinates member.
var positionDepth = map[string]int{
	"Point":           0,
	"MultiPoint":      1,
	"LineString":      1,
	"MultiLineString": 2,
	"Polygon":         2,
	"MultiPolygon":    3,
}

// checkPositions rejects positions that are not exactly [longitude, latitude].
// The decoder pads short positions with zeros and drops extra ordinates, so
// this runs on the raw coordinates.
func checkPositions(typ string, geometry json.RawMessage) error {
	depth, ok := positionDepth[typ]
	if !ok {
		return nil
	}
	var g struct {
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(geometry, &g); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return walkPositions(g.Coordinates, depth)
}

func walkPositions(raw json.RawMessage, depth int) error {
	if depth == 0 {
		var pos []float64
		if err := json.Unmarshal(raw, &pos); err != nil {
			return fmt.Errorf("%w: position must be an array of numbers", ErrInvalidFormat)
		}
		if len(pos) != 2 {
			return fmt.Errorf("%w: position has %d values, want 2", ErrInvalidFormat, len(pos))
		}
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("%w: coordinates must be nested arrays", ErrInvalidFormat)
	}
	for _, item := range items {
		if err := walkPositions(item, depth-1); err != nil {
			return err
		}
	}
	return nil
}

// Polygon returns the shape as a polygon when it is one.
func (s *Shape) Polygon() (orb.Polygon, bool) {
	p, ok := s.Geometry.(orb.Polygon)
	return p, ok
}

// RingArea is the unsigned planar area of r in squared coordinate units
// (square degrees for WGS84). Rings with fewer than three positions have no area.
func RingArea(r orb.Ring) float64 {
	if len(r) < 3 {
		return 0
	}
	return math.Abs(planar.Area(r))
}

// OuterArea is the area of the polygon's outer ring.
func OuterArea(p orb.Polygon) float64 {
	if len(p) == 0 {
		return 0
	}
	return RingArea(p[0])
}

// Canonical encodes p as a bare GeoJSON Polygon geometry.
func Canonical(p orb.Polygon) ([]byte, error) {
	return json.Marshal(geojson.NewGeometry(p))
}
