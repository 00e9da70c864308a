package profiles

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/EmpoweredVote/EV-Profiles/internal/places"
	"github.com/EmpoweredVote/EV-Profiles/internal/reports"
)

// Profile pairs a place with a report. A profile holding both is complete
// and is evaluated every time it is saved.
type Profile struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	UserID string    `gorm:"index" json:"user_id"`

	PlaceID  *uuid.UUID      `gorm:"type:uuid;index" json:"place_id"`
	Place    *places.Place   `gorm:"foreignKey:PlaceID;constraint:OnDelete:SET NULL" json:"place,omitempty"`
	ReportID *uuid.UUID      `gorm:"type:uuid;index" json:"report_id"`
	Report   *reports.Report `gorm:"foreignKey:ReportID;constraint:OnDelete:SET NULL" json:"report,omitempty"`

	Evaluation  datatypes.JSON `gorm:"type:jsonb" json:"evaluation"`
	EvaluatedAt *time.Time     `json:"evaluated_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles.profiles"
}

func (p *Profile) IsComplete() bool   { return p.Place != nil && p.Report != nil }
func (p *Profile) IsIncomplete() bool { return !p.IsComplete() }
func (p *Profile) IsEvaluated() bool  { return p.EvaluatedAt != nil }

// Title reads "<report title> in <place title>"; a missing half renders empty.
func (p *Profile) Title() string {
	var report, place string
	if p.Report != nil {
		report = p.Report.Title
	}
	if p.Place != nil {
		place = p.Place.Title()
	}
	return fmt.Sprintf("%s in %s", report, place)
}
