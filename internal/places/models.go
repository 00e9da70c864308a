package places

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// Place is a user-drawn area. Geometry holds a GeoJSON Polygon; Geoids are
// the census regions it intersects.
type Place struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	UserID      string    `gorm:"index" json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Completed   bool      `gorm:"not null;default:false" json:"completed"`

	// GeoJSON Polygon in WGS84, normalized by the validator.
	Geometry datatypes.JSON `gorm:"type:jsonb" json:"geometry"`

	Geoids pq.StringArray `gorm:"type:text[]" json:"geoids"`

	// FeatureCollection of the reference regions behind Geoids.
	UnderlyingGeometries datatypes.JSON `gorm:"type:jsonb" json:"underlying_geometries,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Place) TableName() string {
	return "places.places"
}

func (p *Place) IsComplete() bool   { return p.Completed }
func (p *Place) IsIncomplete() bool { return !p.Completed }

func (p *Place) Title() string { return p.Name }

// HasGeometry reports whether a geometry value was supplied at all.
func (p *Place) HasGeometry() bool {
	return len(p.Geometry) > 0 && string(p.Geometry) != "null"
}
