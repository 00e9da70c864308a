package reports

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/EmpoweredVote/EV-Profiles/internal/db"
)

func Init(d *gorm.DB) error {
	if err := db.EnsureSchema(d, "reports"); err != nil {
		return fmt.Errorf("ensure reports schema: %w", err)
	}

	if err := d.AutoMigrate(&Topic{}, &Aggregator{}, &Field{}, &Report{}, &DataCollection{}, &DataPoint{}); err != nil {
		return fmt.Errorf("auto-migrate reports: %w", err)
	}
	return nil
}
