package places

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
	"gorm.io/datatypes"

	"github.com/EmpoweredVote/EV-Profiles/internal/config"
	"github.com/EmpoweredVote/EV-Profiles/internal/geo"
	"github.com/EmpoweredVote/EV-Profiles/internal/validation"
)

// minRingPositions is three distinct vertices plus the closing position.
const minRingPositions = 4

// Limits are the bounds a place must respect to be saved.
type Limits struct {
	MinArea          float64
	MaxArea          float64
	MaxGeometryBytes int
	MinGeoids        int
	MaxGeoids        int

	NameMin        int
	NameMax        int
	DescriptionMin int
	DescriptionMax int
}

func LimitsFromConfig(g config.GeometryConfig, p config.PlaceConfig) Limits {
	return Limits{
		MinArea:          g.MinArea,
		MaxArea:          g.MaxArea,
		MaxGeometryBytes: g.MaxBytes,
		MinGeoids:        g.MinGeoids,
		MaxGeoids:        g.MaxGeoids,
		NameMin:          p.NameMin,
		NameMax:          p.NameMax,
		DescriptionMin:   p.DescriptionMin,
		DescriptionMax:   p.DescriptionMax,
	}
}

// DefaultLimits mirrors the configuration defaults.
func DefaultLimits() Limits {
	return Limits{
		MinArea:          1e-8,
		MaxArea:          0.5,
		MaxGeometryBytes: 64 * 1024,
		MinGeoids:        1,
		MaxGeoids:        100,
		NameMin:          5,
		NameMax:          70,
		DescriptionMin:   10,
		DescriptionMax:   140,
	}
}

// Validator runs the save-time rules for a place. It normalizes the geometry
// and derives geoids as side effects of a passing geometry.
type Validator struct {
	limits Limits
	source GeoidSource
	logger *zap.Logger
}

// NewValidator builds a validator. source may be nil, in which case geoids
// supplied by the caller are kept and only checked.
func NewValidator(limits Limits, source GeoidSource, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{limits: limits, source: source, logger: logger}
}

// Validate checks p and returns validation.Errors holding every failure, or
// nil. On a valid geometry p.Geometry is replaced by its canonical Polygon and
// p.Geoids / p.UnderlyingGeometries are re-derived.
func (v *Validator) Validate(ctx context.Context, p *Place) error {
	var errs validation.Errors

	if p.IsComplete() {
		v.checkLength(&errs, "name", p.Name, v.limits.NameMin, v.limits.NameMax)
		v.checkLength(&errs, "description", p.Description, v.limits.DescriptionMin, v.limits.DescriptionMax)
	}

	if !p.HasGeometry() {
		errs.Add("geometry", validation.MissingRequiredField, "can't be blank")
		p.UnderlyingGeometries = nil
		return errs.Err()
	}

	canonical, ok := v.checkGeometry(&errs, p.Geometry)
	if ok {
		p.Geometry = canonical
		if !v.deriveGeoids(ctx, &errs, p) {
			return errs.Err()
		}
	}

	p.Geoids = uniqueGeoids(p.Geoids)
	if n := len(p.Geoids); n < v.limits.MinGeoids || n > v.limits.MaxGeoids {
		errs.Add("geoids", validation.GeoidCountOutOfRange,
			"has %d entries, must have between %d and %d", n, v.limits.MinGeoids, v.limits.MaxGeoids)
	}

	return errs.Err()
}

// checkGeometry returns the canonical encoding and whether every geometry
// rule passed.
func (v *Validator) checkGeometry(errs *validation.Errors, raw datatypes.JSON) (datatypes.JSON, bool) {
	before := len(*errs)

	shape, err := geo.Parse(raw)
	if err != nil {
		errs.Add("geometry", validation.InvalidFormat, "is not valid GeoJSON")
		return nil, false
	}

	if shape.Type != geo.TypePolygon {
		errs.Add("geometry", validation.WrongGeometryType, "must be a Polygon, got %s", shape.Type)
	}

	poly, isPolygon := shape.Polygon()
	if !isPolygon {
		if len(raw) > v.limits.MaxGeometryBytes {
			errs.Add("geometry", validation.PayloadTooLarge,
				"is %d bytes, maximum is %d", len(raw), v.limits.MaxGeometryBytes)
		}
		return nil, false
	}

	if len(poly) == 0 {
		errs.Add("geometry", validation.TooFewVertices, "must contain at least one ring")
	}
	for i, ring := range poly {
		if len(ring) < minRingPositions {
			errs.Add("geometry", validation.TooFewVertices,
				"ring %d has %d positions, needs at least %d", i, len(ring), minRingPositions)
		}
	}

	if len(poly) > 0 {
		area := geo.OuterArea(poly)
		if area < v.limits.MinArea || area > v.limits.MaxArea {
			errs.Add("geometry", validation.AreaOutOfRange,
				"area %g is outside [%g, %g]", area, v.limits.MinArea, v.limits.MaxArea)
		}
	}

	canonical, err := geo.Canonical(poly)
	if err != nil {
		errs.Add("geometry", validation.InvalidFormat, "could not be encoded")
		return nil, false
	}
	if len(canonical) > v.limits.MaxGeometryBytes {
		errs.Add("geometry", validation.PayloadTooLarge,
			"is %d bytes, maximum is %d", len(canonical), v.limits.MaxGeometryBytes)
	}

	return datatypes.JSON(canonical), len(*errs) == before
}

// deriveGeoids replaces p.Geoids from the reference source. It returns false
// when the source failed; p keeps its previous geoids in that case.
func (v *Validator) deriveGeoids(ctx context.Context, errs *validation.Errors, p *Place) bool {
	if v.source == nil {
		return true
	}

	regions, err := v.source.Intersecting(ctx, p.Geometry)
	if err != nil {
		v.logger.Warn("Geoid reference lookup failed",
			zap.String("place_id", p.ID.String()),
			zap.Error(err),
		)
		errs.Add("geoids", validation.ReferenceDataUnavailable, "could not be derived: reference data unavailable")
		return false
	}

	seen := make(map[string]struct{}, len(regions))
	unique := make([]Region, 0, len(regions))
	ids := make([]string, 0, len(regions))
	for _, r := range regions {
		if _, dup := seen[r.GeoID]; dup {
			continue
		}
		seen[r.GeoID] = struct{}{}
		unique = append(unique, r)
		ids = append(ids, r.GeoID)
	}
	p.Geoids = ids

	fc, err := regionCollection(unique)
	if err != nil {
		v.logger.Warn("Failed to encode underlying geometries", zap.Error(err))
		p.UnderlyingGeometries = nil
	} else {
		p.UnderlyingGeometries = fc
	}
	return true
}

func (v *Validator) checkLength(errs *validation.Errors, field, value string, lo, hi int) {
	n := utf8.RuneCountInString(norm.NFC.String(value))
	switch {
	case n == 0:
		errs.Add(field, validation.MissingRequiredField, "can't be blank")
	case n < lo:
		errs.Add(field, validation.MissingRequiredField, "is too short (minimum is %d characters)", lo)
	case n > hi:
		errs.Add(field, validation.MissingRequiredField, "is too long (maximum is %d characters)", hi)
	}
}

// uniqueGeoids drops blanks and repeats, keeping first-seen order.
func uniqueGeoids(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, id := range in {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
