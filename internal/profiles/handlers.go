package profiles

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/EmpoweredVote/EV-Profiles/internal/jsonapi"
	"github.com/EmpoweredVote/EV-Profiles/internal/utils"
)

const maxBodyBytes = 64 << 10

var Schema = jsonapi.Schema{
	Type: "profiles",
	Attributes: []string{
		"title", "complete", "evaluated", "evaluation", "evaluated_at",
		"created_at", "updated_at",
	},
	Creatable: []string{"place", "report"},
	Updatable: []string{"place", "report"},
	ToOne: map[string]string{
		"place":  "places",
		"report": "reports",
		"user":   "users",
	},
}

type Handler struct {
	svc    *Service
	logger *zap.Logger
}

func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

func Render(p *Profile) jsonapi.Resource {
	return Schema.Render(p.ID.String(), map[string]interface{}{
		"title":        p.Title(),
		"complete":     p.IsComplete(),
		"evaluated":    p.IsEvaluated(),
		"evaluation":   json.RawMessage(p.Evaluation),
		"evaluated_at": p.EvaluatedAt,
		"created_at":   p.CreatedAt,
		"updated_at":   p.UpdatedAt,
	}, map[string]jsonapi.Relationship{
		"place":  jsonapi.ToOne("places", idString(p.PlaceID)),
		"report": jsonapi.ToOne("reports", idString(p.ReportID)),
		"user":   jsonapi.ToOne("users", p.UserID),
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	profiles, err := h.svc.List(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]jsonapi.Resource, 0, len(profiles))
	for i := range profiles {
		out = append(out, Render(&profiles[i]))
	}
	_ = jsonapi.WriteCollection(w, out)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	p, ok := h.load(w, r)
	if !ok {
		return
	}
	_ = jsonapi.WriteResource(w, http.StatusOK, Render(p))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	payload, err := Schema.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes), jsonapi.Create)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	p := &Profile{UserID: userID}
	if err := apply(p, payload); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.Save(r.Context(), p); err != nil {
		h.fail(w, r, err)
		return
	}
	_ = jsonapi.WriteResource(w, http.StatusCreated, Render(p))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := h.load(w, r)
	if !ok {
		return
	}

	payload, err := Schema.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes), jsonapi.Update)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := apply(p, payload); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.Save(r.Context(), p); err != nil {
		h.fail(w, r, err)
		return
	}
	_ = jsonapi.WriteResource(w, http.StatusOK, Render(p))
}

// Evaluate re-saves a complete profile so its evaluation is recomputed.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	id, ok := h.id(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Reevaluate(r.Context(), userID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = jsonapi.WriteResource(w, http.StatusOK, Render(p))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	id, ok := h.id(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), userID, id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) id(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = jsonapi.WriteErrorStatus(w, http.StatusNotFound, "Not Found", "profile not found")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*Profile, bool) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	id, ok := h.id(w, r)
	if !ok {
		return nil, false
	}
	p, err := h.svc.Get(r.Context(), userID, id)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return p, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status := Schema.WriteErr(w, err); status >= http.StatusInternalServerError {
		h.logger.Error("Profile request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
}

func apply(p *Profile, payload *jsonapi.Payload) error {
	if id, ok, err := relID(payload, "place"); err != nil {
		return err
	} else if ok {
		p.PlaceID = id
	}
	if id, ok, err := relID(payload, "report"); err != nil {
		return err
	} else if ok {
		p.ReportID = id
	}
	return nil
}

func relID(p *jsonapi.Payload, name string) (*uuid.UUID, bool, error) {
	raw, ok, err := p.ToOneID(name)
	if err != nil || !ok {
		return nil, ok, err
	}
	if raw == "" {
		return nil, true, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, true, fmt.Errorf("%w: relationship %s: invalid id %q", jsonapi.ErrMalformed, name, raw)
	}
	return &id, true, nil
}

func idString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
