package places

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Region is a reference geometry intersecting a place.
type Region struct {
	GeoID    string
	Name     string
	Geometry orb.Geometry
}

// GeoidSource finds the reference regions a GeoJSON geometry intersects.
type GeoidSource interface {
	Intersecting(ctx context.Context, geometry []byte) ([]Region, error)
}

// PostGISSource queries census.geoid_boundaries, loaded by cmd/import-geoids.
type PostGISSource struct {
	db *gorm.DB
}

func NewPostGISSource(d *gorm.DB) *PostGISSource {
	return &PostGISSource{db: d}
}

// Intersecting performs a PostGIS polygon intersection against the census
// reference table.
func (s *PostGISSource) Intersecting(ctx context.Context, geometry []byte) ([]Region, error) {
	query := `
		SELECT geoid10, name, ST_AsGeoJSON(geometry) AS geometry
		FROM census.geoid_boundaries
		WHERE ST_Intersects(
			geometry,
			ST_SetSRID(ST_GeomFromGeoJSON(?), 4326)
		)
		ORDER BY geoid10
	`

	rows, err := s.db.WithContext(ctx).Raw(query, string(geometry)).Rows()
	if err != nil {
		return nil, fmt.Errorf("geoid intersection query failed: %w", err)
	}
	defer rows.Close()

	var regions []Region
	for rows.Next() {
		var geoid, name, raw string
		if err := rows.Scan(&geoid, &name, &raw); err != nil {
			return nil, fmt.Errorf("scan geoid region: %w", err)
		}
		g, err := geojson.UnmarshalGeometry([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("decode region %s geometry: %w", geoid, err)
		}
		regions = append(regions, Region{GeoID: geoid, Name: name, Geometry: g.Geometry()})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate geoid regions: %w", err)
	}

	return regions, nil
}

// regionCollection encodes regions as a FeatureCollection with the geoid in
// each feature's properties.
func regionCollection(regions []Region) (datatypes.JSON, error) {
	fc := geojson.NewFeatureCollection()
	for _, r := range regions {
		if r.Geometry == nil {
			continue
		}
		f := geojson.NewFeature(r.Geometry)
		f.Properties["geoid10"] = r.GeoID
		f.Properties["name"] = r.Name
		fc.Append(f)
	}
	raw, err := fc.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
