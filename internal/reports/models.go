package reports

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Report struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	Title       string      `gorm:"not null" json:"title"`
	Description string      `json:"description"`
	DataPoints  []DataPoint `gorm:"many2many:reports.data_points_reports;" json:"data_points,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// DataPoint maps the fields of one aggregator into a report.
type DataPoint struct {
	ID           uuid.UUID   `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	Name         string      `json:"name"`
	AggregatorID *uuid.UUID  `gorm:"type:uuid;index" json:"aggregator_id"`
	Aggregator   *Aggregator `gorm:"foreignKey:AggregatorID" json:"aggregator,omitempty"`
	TopicID      *uuid.UUID  `gorm:"type:uuid;index" json:"topic_id"`
	Topic        *Topic      `gorm:"foreignKey:TopicID" json:"topic,omitempty"`

	// FieldMappings is a JSON object keyed by aggregator field name.
	FieldMappings datatypes.JSON `gorm:"type:jsonb" json:"field_mappings"`

	DataCollections []DataCollection `gorm:"many2many:reports.data_collections_data_points;" json:"data_collections,omitempty"`
	Reports         []Report         `gorm:"many2many:reports.data_points_reports;" json:"reports,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Aggregator struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	URL       string    `json:"url"`
	Fields    []Field   `gorm:"foreignKey:AggregatorID;constraint:OnDelete:CASCADE" json:"fields,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Field struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	AggregatorID uuid.UUID `gorm:"type:uuid;not null;index" json:"aggregator_id"`
	Name         string    `gorm:"not null" json:"name"`
	Label        string    `json:"label"`
	DataType     string    `gorm:"default:'string'" json:"data_type"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type DataCollection struct {
	ID         uuid.UUID   `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	Name       string      `gorm:"not null" json:"name"`
	DataPoints []DataPoint `gorm:"many2many:reports.data_collections_data_points;" json:"data_points,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

type Topic struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	Name      string    `gorm:"not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Report) TableName() string         { return "reports.reports" }
func (DataPoint) TableName() string      { return "reports.data_points" }
func (Aggregator) TableName() string     { return "reports.aggregators" }
func (Field) TableName() string          { return "reports.fields" }
func (DataCollection) TableName() string { return "reports.data_collections" }
func (Topic) TableName() string          { return "reports.topics" }

