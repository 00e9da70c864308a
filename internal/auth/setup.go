package auth

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/EmpoweredVote/EV-Profiles/internal/db"
)

func Init(d *gorm.DB) error {
	if err := db.EnsureSchema(d, "app_auth"); err != nil {
		return fmt.Errorf("ensure app_auth schema: %w", err)
	}

	if err := d.AutoMigrate(&User{}, &Session{}); err != nil {
		return fmt.Errorf("auto-migrate auth tables: %w", err)
	}
	return nil
}
