package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/EmpoweredVote/EV-Profiles/internal/utils"
	"github.com/EmpoweredVote/EV-Profiles/internal/validation"
)

const (
	sessionTTL        = 6 * time.Hour
	minPasswordLength = 8
)

// OwnedLister returns the ids of the records a user owns.
type OwnedLister func(ctx context.Context, userID string) ([]string, error)

type Handler struct {
	db            *gorm.DB
	places        OwnedLister
	profiles      OwnedLister
	secureCookies bool
	logger        *zap.Logger
}

func NewHandler(d *gorm.DB, places, profiles OwnedLister, secureCookies bool, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		db:            d,
		places:        places,
		profiles:      profiles,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

func (h *Handler) sessionCookie(value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     "session_id",
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if h.secureCookies {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var input credentials
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid Data", http.StatusBadRequest)
		return
	}

	var user User
	if err := h.db.WithContext(r.Context()).First(&user, "email = ?", normalizeEmail(input.Email)).Error; err != nil {
		http.Error(w, "Invalid Credentials", http.StatusUnauthorized)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(input.Password)); err != nil {
		http.Error(w, "Invalid Credentials", http.StatusUnauthorized)
		return
	}

	session := Session{
		SessionID: utils.GenerateUUID(),
		UserID:    user.UserID,
		ExpiresAt: time.Now().Add(sessionTTL),
	}
	// One session per user; logging in again replaces it.
	err := h.db.WithContext(r.Context()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"session_id", "expires_at"}),
	}).Create(&session).Error
	if err != nil {
		h.logger.Error("Failed to store session", zap.String("user_id", user.UserID), zap.Error(err))
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, h.sessionCookie(session.SessionID, int(sessionTTL.Seconds())))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"user_id": user.UserID,
		"email":   user.Email,
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	if err := h.db.WithContext(r.Context()).Where("user_id = ?", userID).Delete(&Session{}).Error; err != nil {
		h.logger.Error("Failed to delete session", zap.String("user_id", userID), zap.Error(err))
		http.Error(w, "Failed to log out", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, h.sessionCookie("", -1))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Logout successful\n"))
}

// Me renders the session user as a users resource.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	h.showUser(w, r, userID)
}

func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var input struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Current and new password are required", http.StatusBadRequest)
		return
	}

	userID, _ := utils.GetUserIDFromContext(r.Context())
	var user User
	if err := h.db.WithContext(r.Context()).First(&user, "user_id = ?", userID).Error; err != nil {
		http.Error(w, "Couldn't find user", http.StatusUnauthorized)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(input.CurrentPassword)); err != nil {
		http.Error(w, "Invalid current password", http.StatusUnauthorized)
		return
	}
	if len(input.NewPassword) < minPasswordLength {
		http.Error(w, "New password is too short", http.StatusUnprocessableEntity)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Server error hashing password", http.StatusInternalServerError)
		return
	}
	if err := h.db.WithContext(r.Context()).Model(&user).Update("hashed_password", string(hashed)).Error; err != nil {
		http.Error(w, "Failed to update password", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Password updated\n"))
}

// IssueToken rotates the session user's API token and returns it. Only its
// digest is stored.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	token, err := newToken()
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	digest := tokenDigest(token)
	res := h.db.WithContext(r.Context()).Model(&User{}).Where("user_id = ?", userID).Update("token_digest", digest)
	if res.Error != nil || res.RowsAffected == 0 {
		h.logger.Error("Failed to store token", zap.String("user_id", userID), zap.Error(res.Error))
		http.Error(w, "Failed to store token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateUser checks the fields a client may set on a user.
func validateUser(email, password string, requirePassword bool) error {
	var errs validation.Errors
	switch {
	case email == "":
		errs.Add("email", validation.MissingRequiredField, "can't be blank")
	case !strings.Contains(email, "@") || strings.HasPrefix(email, "@") || strings.HasSuffix(email, "@"):
		errs.Add("email", validation.InvalidFormat, "is not an email address")
	}
	if requirePassword || password != "" {
		if len(password) < minPasswordLength {
			errs.Add("password", validation.InvalidFormat, "is too short (minimum is %d characters)", minPasswordLength)
		}
	}
	return errs.Err()
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "duplicate key value") ||
		strings.Contains(err.Error(), "SQLSTATE 23505")
}
