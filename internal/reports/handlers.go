package reports

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/EmpoweredVote/EV-Profiles/internal/jsonapi"
)

const maxBodyBytes = 1 << 20

// Handler serves JSON:API CRUD for one entity kind.
type Handler[T any] struct {
	kind   Kind[T]
	store  Store[T]
	refs   RefChecker
	logger *zap.Logger
}

func NewHandler[T any](kind Kind[T], store Store[T], refs RefChecker, logger *zap.Logger) *Handler[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler[T]{kind: kind, store: store, refs: refs, logger: logger}
}

func (h *Handler[T]) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]jsonapi.Resource, 0, len(items))
	for i := range items {
		out = append(out, h.kind.Render(&items[i]))
	}
	_ = jsonapi.WriteCollection(w, out)
}

func (h *Handler[T]) Show(w http.ResponseWriter, r *http.Request) {
	v, ok := h.load(w, r)
	if !ok {
		return
	}
	_ = jsonapi.WriteResource(w, http.StatusOK, h.kind.Render(v))
}

func (h *Handler[T]) Create(w http.ResponseWriter, r *http.Request) {
	v := new(T)
	if !h.write(w, r, v, jsonapi.Create) {
		return
	}
	_ = jsonapi.WriteResource(w, http.StatusCreated, h.kind.Render(v))
}

func (h *Handler[T]) Update(w http.ResponseWriter, r *http.Request) {
	v, ok := h.load(w, r)
	if !ok {
		return
	}
	if !h.write(w, r, v, jsonapi.Update) {
		return
	}
	_ = jsonapi.WriteResource(w, http.StatusOK, h.kind.Render(v))
}

func (h *Handler[T]) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = jsonapi.WriteErrorStatus(w, http.StatusNotFound, "Not Found", h.kind.Schema.Type+" not found")
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// write decodes the request onto v, validates and saves it. It writes the
// error response itself and reports whether the caller should continue.
func (h *Handler[T]) write(w http.ResponseWriter, r *http.Request, v *T, op jsonapi.Operation) bool {
	payload, err := h.kind.Schema.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes), op)
	if err != nil {
		h.fail(w, r, err)
		return false
	}

	links := map[string][]interface{}{}
	if err := h.kind.Apply(v, payload, links); err != nil {
		h.fail(w, r, err)
		return false
	}
	if err := h.kind.Validate(r.Context(), h.refs, v); err != nil {
		h.fail(w, r, err)
		return false
	}
	if err := h.store.Save(r.Context(), v, links); err != nil {
		h.fail(w, r, err)
		return false
	}
	return true
}

func (h *Handler[T]) load(w http.ResponseWriter, r *http.Request) (*T, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = jsonapi.WriteErrorStatus(w, http.StatusNotFound, "Not Found", h.kind.Schema.Type+" not found")
		return nil, false
	}
	v, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return v, true
}

func (h *Handler[T]) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status := h.kind.Schema.WriteErr(w, err); status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("resource", h.kind.Schema.Type),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
}
