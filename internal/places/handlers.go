package places

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/EmpoweredVote/EV-Profiles/internal/jsonapi"
	"github.com/EmpoweredVote/EV-Profiles/internal/utils"
)

// maxBodyBytes bounds a request document; the geometry limit applies
// separately to the canonical polygon.
const maxBodyBytes = 1 << 20

var Schema = jsonapi.Schema{
	Type: "places",
	Attributes: []string{
		"name", "description", "completed", "geometry", "geoids",
		"underlying_geometries", "created_at", "updated_at",
	},
	Creatable: []string{"name", "description", "completed", "geometry", "geoids"},
	Updatable: []string{"name", "description", "completed", "geometry", "geoids"},
	ToOne:     map[string]string{"user": "users"},
	Aliases:   map[string]string{"complete": "completed"},
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

// Render builds the JSON:API resource for p.
func Render(p *Place) jsonapi.Resource {
	geoids := []string(p.Geoids)
	if geoids == nil {
		geoids = []string{}
	}
	return Schema.Render(p.ID.String(), map[string]interface{}{
		"name":                  p.Name,
		"description":           p.Description,
		"completed":             p.Completed,
		"geometry":              json.RawMessage(p.Geometry),
		"geoids":                geoids,
		"underlying_geometries": json.RawMessage(p.UnderlyingGeometries),
		"created_at":            p.CreatedAt,
		"updated_at":            p.UpdatedAt,
	}, map[string]jsonapi.Relationship{
		"user": jsonapi.ToOne("users", p.UserID),
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	places, err := h.svc.List(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]jsonapi.Resource, 0, len(places))
	for i := range places {
		out = append(out, Render(&places[i]))
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

	p := &Place{UserID: userID}
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

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = jsonapi.WriteErrorStatus(w, http.StatusNotFound, "Not Found", "place not found")
		return
	}

	if err := h.svc.Delete(r.Context(), userID, id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// load fetches the place named in the URL for the session user, writing the
// error response itself when it cannot.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*Place, bool) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = jsonapi.WriteErrorStatus(w, http.StatusNotFound, "Not Found", "place not found")
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
		h.logger.Error("Place request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
}

func apply(p *Place, payload *jsonapi.Payload) error {
	if _, err := payload.Attr("name", &p.Name); err != nil {
		return err
	}
	if _, err := payload.Attr("description", &p.Description); err != nil {
		return err
	}
	if _, err := payload.Attr("completed", &p.Completed); err != nil {
		return err
	}

	var geometry json.RawMessage
	if ok, err := payload.Attr("geometry", &geometry); err != nil {
		return err
	} else if ok {
		p.Geometry = datatypes.JSON(geometry)
	}

	var geoids []string
	if ok, err := payload.Attr("geoids", &geoids); err != nil {
		return err
	} else if ok {
		p.Geoids = geoids
	}
	return nil
}
