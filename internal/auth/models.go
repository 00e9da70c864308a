package auth

import "time"

type Session struct {
	SessionID string    `gorm:"primaryKey" json:"-"`
	UserID    string    `gorm:"not null;unique" json:"-"`
	ExpiresAt time.Time `gorm:"not null"`
}

type User struct {
	UserID         string `gorm:"primaryKey" json:"user_id"`
	Email          string `gorm:"not null;uniqueIndex" json:"email"`
	Password       string `gorm:"-" json:"password"`
	HashedPassword string `json:"-"`

	// TokenDigest is the SHA-256 of the user's API token; the token itself
	// is only ever shown once, when issued.
	TokenDigest *string `gorm:"uniqueIndex" json:"-"`

	Role    string  `gorm:"default:'user'" json:"role"`
	Session Session `gorm:"foreignKey:UserID" json:"-"`
}

func (Session) TableName() string { return "app_auth.sessions" }
func (User) TableName() string    { return "app_auth.users" }
