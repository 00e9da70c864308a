package main

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Boundary is one reference region ready for insertion.
type Boundary struct {
	GeoID    string
	Name     string
	MTFCC    string
	Geometry []byte
}

// TIGER/Line exports name their columns after the vintage; the 2010 names
// win over the unsuffixed ones.
var (
	geoidKeys = []string{"GEOID10", "GEOID"}
	nameKeys  = []string{"NAMELSAD10", "NAME10", "NAMELSAD", "NAME"}
	mtfccKeys = []string{"MTFCC10", "MTFCC"}
)

// parseBoundaries reads a FeatureCollection. Features without a geoid or
// without polygonal geometry are skipped and described in skipped; a later
// feature with the same geoid replaces an earlier one.
func parseBoundaries(data []byte) (boundaries []Boundary, skipped []string, err error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid FeatureCollection: %w", err)
	}

	index := map[string]int{}
	for i, f := range fc.Features {
		geoid := firstString(f.Properties, geoidKeys)
		if geoid == "" {
			skipped = append(skipped, fmt.Sprintf("feature %d: no GEOID property", i))
			continue
		}

		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			skipped = append(skipped, fmt.Sprintf("feature %d (%s): geometry is %s, not polygonal", i, geoid, geometryType(f.Geometry)))
			continue
		}

		raw, err := geojson.NewGeometry(f.Geometry).MarshalJSON()
		if err != nil {
			return nil, nil, fmt.Errorf("feature %d (%s): %w", i, geoid, err)
		}

		b := Boundary{
			GeoID:    geoid,
			Name:     firstString(f.Properties, nameKeys),
			MTFCC:    firstString(f.Properties, mtfccKeys),
			Geometry: raw,
		}
		if at, ok := index[geoid]; ok {
			boundaries[at] = b
			continue
		}
		index[geoid] = len(boundaries)
		boundaries = append(boundaries, b)
	}
	return boundaries, skipped, nil
}

func firstString(p geojson.Properties, keys []string) string {
	for _, k := range keys {
		if s := p.MustString(k, ""); s != "" {
			return s
		}
	}
	return ""
}

func geometryType(g orb.Geometry) string {
	if g == nil {
		return "null"
	}
	return g.GeoJSONType()
}
