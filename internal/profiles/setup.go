package profiles

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/EmpoweredVote/EV-Profiles/internal/db"
)

// Init must run after places.Init and reports.Init; profiles reference both.
func Init(d *gorm.DB) error {
	if err := db.EnsureSchema(d, "profiles"); err != nil {
		return fmt.Errorf("ensure profiles schema: %w", err)
	}

	if err := d.AutoMigrate(&Profile{}); err != nil {
		return fmt.Errorf("auto-migrate profiles: %w", err)
	}
	return nil
}
