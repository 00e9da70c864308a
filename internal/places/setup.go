package places

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/EmpoweredVote/EV-Profiles/internal/db"
)

func Init(d *gorm.DB) error {
	if err := db.EnsureSchema(d, "places"); err != nil {
		return fmt.Errorf("ensure places schema: %w", err)
	}

	if err := d.AutoMigrate(&Place{}); err != nil {
		return fmt.Errorf("auto-migrate places: %w", err)
	}
	return nil
}
