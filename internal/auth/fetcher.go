package auth

import (
	"crypto/sha256"
	"encoding/hex"

	"gorm.io/gorm"

	"github.com/EmpoweredVote/EV-Profiles/internal/utils"
)

// SessionInfo resolves sessions and API tokens for the middleware.
type SessionInfo struct {
	DB *gorm.DB
}

func (si SessionInfo) FindSessionByID(id string) (utils.SessionData, error) {
	var session Session

	err := si.DB.First(&session, "session_id = ?", id).Error
	if err != nil {
		return utils.SessionData{}, err
	}

	return utils.SessionData{
		UserID:    session.UserID,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// FindSessionByToken authorizes an API token. Tokens do not expire.
func (si SessionInfo) FindSessionByToken(token string) (utils.SessionData, error) {
	var user User

	err := si.DB.Select("user_id").First(&user, "token_digest = ?", tokenDigest(token)).Error
	if err != nil {
		return utils.SessionData{}, err
	}

	return utils.SessionData{UserID: user.UserID}, nil
}

func (si SessionInfo) RoleOf(userID string) (string, error) {
	var user User
	if err := si.DB.Select("role").First(&user, "user_id = ?", userID).Error; err != nil {
		return "", err
	}
	return user.Role, nil
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
