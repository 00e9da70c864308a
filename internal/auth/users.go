package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/EmpoweredVote/EV-Profiles/internal/apperrors"
	"github.com/EmpoweredVote/EV-Profiles/internal/jsonapi"
	"github.com/EmpoweredVote/EV-Profiles/internal/utils"
)

const maxUserBodyBytes = 64 << 10

// UsersSchema exposes only the email. Passwords are write-only and the API
// token is issued through /auth/token, never through this resource.
var UsersSchema = jsonapi.Schema{
	Type:       "users",
	Attributes: []string{"email"},
	Creatable:  []string{"email", "password"},
	Updatable:  []string{"email"},
	ToMany:     map[string]string{"places": "places", "profiles": "profiles"},
}

// Register creates a user from a users resource document.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	payload, err := UsersSchema.Decode(http.MaxBytesReader(w, r.Body, maxUserBodyBytes), jsonapi.Create)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var email, password string
	if _, err := payload.Attr("email", &email); err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := payload.Attr("password", &password); err != nil {
		h.fail(w, r, err)
		return
	}
	email = normalizeEmail(email)

	if err := validateUser(email, password, true); err != nil {
		h.fail(w, r, err)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		h.fail(w, r, fmt.Errorf("hash password: %w", err))
		return
	}

	user := User{
		UserID:         utils.GenerateUUID(),
		Email:          email,
		HashedPassword: string(hashed),
		Role:           "user",
	}
	if err := h.db.WithContext(r.Context()).Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			err = fmt.Errorf("email %s is taken: %w", email, apperrors.ErrConflict)
		}
		h.fail(w, r, err)
		return
	}

	h.logger.Info("User registered", zap.String("user_id", user.UserID))
	_ = jsonapi.WriteResource(w, http.StatusCreated, RenderUser(&user, nil, nil))
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.self(w, r)
	if !ok {
		return
	}
	h.showUser(w, r, id)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.self(w, r)
	if !ok {
		return
	}

	payload, err := UsersSchema.Decode(http.MaxBytesReader(w, r.Body, maxUserBodyBytes), jsonapi.Update)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	user, err := h.findUser(r, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if ok, err := payload.Attr("email", &user.Email); err != nil {
		h.fail(w, r, err)
		return
	} else if ok {
		user.Email = normalizeEmail(user.Email)
		if err := validateUser(user.Email, "", false); err != nil {
			h.fail(w, r, err)
			return
		}
		if err := h.db.WithContext(r.Context()).Model(user).Update("email", user.Email).Error; err != nil {
			if isUniqueViolation(err) {
				err = fmt.Errorf("email %s is taken: %w", user.Email, apperrors.ErrConflict)
			}
			h.fail(w, r, err)
			return
		}
	}

	h.showUser(w, r, id)
}

// RenderUser builds the users resource. Nil id lists render as empty
// relationships.
func RenderUser(u *User, placeIDs, profileIDs []string) jsonapi.Resource {
	return UsersSchema.Render(u.UserID, map[string]interface{}{
		"email": u.Email,
	}, map[string]jsonapi.Relationship{
		"places":   jsonapi.ToMany("places", placeIDs),
		"profiles": jsonapi.ToMany("profiles", profileIDs),
	})
}

func (h *Handler) showUser(w http.ResponseWriter, r *http.Request, id string) {
	user, err := h.findUser(r, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var placeIDs, profileIDs []string
	if h.places != nil {
		if placeIDs, err = h.places(r.Context(), id); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	if h.profiles != nil {
		if profileIDs, err = h.profiles(r.Context(), id); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	_ = jsonapi.WriteResource(w, http.StatusOK, RenderUser(user, placeIDs, profileIDs))
}

func (h *Handler) findUser(r *http.Request, id string) (*User, error) {
	var user User
	err := h.db.WithContext(r.Context()).First(&user, "user_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// self resolves the {id} URL parameter, allowing only the session user.
func (h *Handler) self(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if id == "me" {
		id = userID
	}
	if id != userID {
		h.fail(w, r, fmt.Errorf("user %s: %w", id, apperrors.ErrForbidden))
		return "", false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status := UsersSchema.WriteErr(w, err); status >= http.StatusInternalServerError {
		h.logger.Error("User request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
}
