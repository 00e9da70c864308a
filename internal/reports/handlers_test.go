package reports_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmpoweredVote/EV-Profiles/internal/apperrors"
	"github.com/EmpoweredVote/EV-Profiles/internal/middleware"
	"github.com/EmpoweredVote/EV-Profiles/internal/reports"
	"github.com/EmpoweredVote/EV-Profiles/internal/utils"
)

type memStore[T any] struct {
	items map[uuid.UUID]T
	id    func(*T) *uuid.UUID
	links []map[string][]interface{}
}

func newMemStore[T any](id func(*T) *uuid.UUID) *memStore[T] {
	return &memStore[T]{items: map[uuid.UUID]T{}, id: id}
}

func (m *memStore[T]) List(ctx context.Context) ([]T, error) {
	out := make([]T, 0, len(m.items))
	for _, v := range m.items {
		out = append(out, v)
	}
	return out, nil
}

func (m *memStore[T]) Get(ctx context.Context, id uuid.UUID) (*T, error) {
	v, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, apperrors.ErrNotFound)
	}
	return &v, nil
}

func (m *memStore[T]) Save(ctx context.Context, v *T, links map[string][]interface{}) error {
	id := m.id(v)
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	m.items[*id] = *v
	m.links = append(m.links, links)
	return nil
}

func (m *memStore[T]) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

type fakeRefs struct {
	known map[uuid.UUID]bool
	err   error
}

func (f fakeRefs) Exists(ctx context.Context, model interface{}, id uuid.UUID) (bool, error) {
	return f.known[id], f.err
}

type sessions struct{}

func (sessions) FindSessionByID(id string) (utils.SessionData, error) {
	return utils.SessionData{UserID: id, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (sessions) FindSessionByToken(token string) (utils.SessionData, error) {
	return utils.SessionData{}, errors.New("no tokens")
}

type fixture struct {
	router      http.Handler
	reports     *memStore[reports.Report]
	dataPoints  *memStore[reports.DataPoint]
	aggregators *memStore[reports.Aggregator]
	fields      *memStore[reports.Field]
	topics      *memStore[reports.Topic]
}

func newFixture(refs reports.RefChecker, guard ...func(http.Handler) http.Handler) *fixture {
	f := &fixture{
		reports:     newMemStore(func(v *reports.Report) *uuid.UUID { return &v.ID }),
		dataPoints:  newMemStore(func(v *reports.DataPoint) *uuid.UUID { return &v.ID }),
		aggregators: newMemStore(func(v *reports.Aggregator) *uuid.UUID { return &v.ID }),
		fields:      newMemStore(func(v *reports.Field) *uuid.UUID { return &v.ID }),
		topics:      newMemStore(func(v *reports.Topic) *uuid.UUID { return &v.ID }),
	}
	collections := newMemStore(func(v *reports.DataCollection) *uuid.UUID { return &v.ID })

	res := &reports.Resources{
		Reports:         reports.NewHandler[reports.Report](reports.ReportKind, f.reports, refs, nil),
		DataPoints:      reports.NewHandler[reports.DataPoint](reports.DataPointKind, f.dataPoints, refs, nil),
		Aggregators:     reports.NewHandler[reports.Aggregator](reports.AggregatorKind, f.aggregators, refs, nil),
		Fields:          reports.NewHandler[reports.Field](reports.FieldKind, f.fields, refs, nil),
		DataCollections: reports.NewHandler[reports.DataCollection](reports.DataCollectionKind, collections, refs, nil),
		Topics:          reports.NewHandler[reports.Topic](reports.TopicKind, f.topics, refs, nil),
	}

	if len(guard) > 0 {
		res.CatalogGuard = guard[0]
	}

	r := chi.NewRouter()
	res.Mount(r, sessions{}, func(next http.Handler) http.Handler { return next })
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.AddCookie(&http.Cookie{Name: "session_id", Value: user})
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

type errorDoc struct {
	Errors []struct {
		Code   string `json:"code"`
		Source struct {
			Pointer string `json:"pointer"`
		} `json:"source"`
	} `json:"errors"`
}

func decodeErrors(t *testing.T, rec *httptest.ResponseRecorder) errorDoc {
	t.Helper()
	var doc errorDoc
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc), rec.Body.String())
	return doc
}

func TestDataPoint_RequiresAggregator(t *testing.T) {
	f := newFixture(fakeRefs{})

	rec := f.do(t, http.MethodPost, "/data_points", "u1",
		`{"data":{"type":"data_points","attributes":{"name":"Median income","field_mappings":{"income":"B19013_001E"}}}}`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	doc := decodeErrors(t, rec)
	require.Len(t, doc.Errors, 1)
	assert.Equal(t, "missing_required_field", doc.Errors[0].Code)
	assert.Equal(t, "/data/relationships/aggregator", doc.Errors[0].Source.Pointer)
	assert.Empty(t, f.dataPoints.items)
}

func TestDataPoint_RequiresFieldMappingsObject(t *testing.T) {
	agg := uuid.New()
	f := newFixture(fakeRefs{known: map[uuid.UUID]bool{agg: true}})

	tests := []struct {
		name  string
		attrs string
		code  string
	}{
		{"missing", `{"name":"x"}`, "missing_required_field"},
		{"null", `{"field_mappings":null}`, "missing_required_field"},
		{"array", `{"field_mappings":["income"]}`, "invalid_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := fmt.Sprintf(`{"data":{"type":"data_points","attributes":%s,"relationships":{"aggregator":{"data":{"type":"aggregators","id":"%s"}}}}}`, tt.attrs, agg)
			rec := f.do(t, http.MethodPost, "/data_points", "u1", body)

			require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
			doc := decodeErrors(t, rec)
			require.Len(t, doc.Errors, 1)
			assert.Equal(t, tt.code, doc.Errors[0].Code)
			assert.Equal(t, "/data/attributes/field_mappings", doc.Errors[0].Source.Pointer)
		})
	}
}

func TestDataPoint_UnknownReferences(t *testing.T) {
	f := newFixture(fakeRefs{})

	body := fmt.Sprintf(`{"data":{"type":"data_points","attributes":{"field_mappings":{}},"relationships":{
		"aggregator":{"data":{"type":"aggregators","id":"%s"}},
		"reports":{"data":[{"type":"reports","id":"%s"}]}
	}}}`, uuid.New(), uuid.New())
	rec := f.do(t, http.MethodPost, "/data_points", "u1", body)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	doc := decodeErrors(t, rec)
	require.Len(t, doc.Errors, 2)
	for _, e := range doc.Errors {
		assert.Equal(t, "unknown_reference", e.Code)
	}
}

func TestDataPoint_CreateWithLinks(t *testing.T) {
	agg, topic, report, collection := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	f := newFixture(fakeRefs{known: map[uuid.UUID]bool{agg: true, topic: true, report: true, collection: true}})

	body := fmt.Sprintf(`{"data":{"type":"data_points","attributes":{"name":"Median income","field_mappings":{"income":"B19013_001E"}},"relationships":{
		"aggregator":{"data":{"type":"aggregators","id":"%s"}},
		"topic":{"data":{"type":"topics","id":"%s"}},
		"reports":{"data":[{"type":"reports","id":"%s"}]},
		"data_collections":{"data":[{"type":"data_collections","id":"%s"}]}
	}}}`, agg, topic, report, collection)
	rec := f.do(t, http.MethodPost, "/data_points", "u1", body)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var doc struct {
		Data struct {
			ID            string                     `json:"id"`
			Relationships map[string]json.RawMessage `json:"relationships"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.JSONEq(t, fmt.Sprintf(`{"data":{"type":"aggregators","id":"%s"}}`, agg), string(doc.Data.Relationships["aggregator"]))
	assert.JSONEq(t, fmt.Sprintf(`{"data":[{"type":"reports","id":"%s"}]}`, report), string(doc.Data.Relationships["reports"]))

	require.Len(t, f.dataPoints.links, 1)
	links := f.dataPoints.links[0]
	assert.Len(t, links["Reports"], 1)
	assert.Len(t, links["DataCollections"], 1)

	saved := f.dataPoints.items[uuid.MustParse(doc.Data.ID)]
	require.NotNil(t, saved.AggregatorID)
	assert.Equal(t, agg, *saved.AggregatorID)
	require.NotNil(t, saved.TopicID)
	assert.Equal(t, topic, *saved.TopicID)
}

func TestDataPoint_MalformedRelationshipID(t *testing.T) {
	f := newFixture(fakeRefs{})

	rec := f.do(t, http.MethodPost, "/data_points", "u1",
		`{"data":{"type":"data_points","relationships":{"aggregator":{"data":{"type":"aggregators","id":"nope"}}}}}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReport_RequiresTitle(t *testing.T) {
	f := newFixture(fakeRefs{})

	rec := f.do(t, http.MethodPost, "/reports", "u1", `{"data":{"type":"reports","attributes":{"title":"   "}}}`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	doc := decodeErrors(t, rec)
	require.Len(t, doc.Errors, 1)
	assert.Equal(t, "/data/attributes/title", doc.Errors[0].Source.Pointer)
}

func TestReport_ReadsArePublicWritesAreNot(t *testing.T) {
	f := newFixture(fakeRefs{})

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/reports", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized,
		f.do(t, http.MethodPost, "/reports", "", `{"data":{"type":"reports","attributes":{"title":"Income"}}}`).Code)
}

func TestReport_UpdateAndDelete(t *testing.T) {
	f := newFixture(fakeRefs{})

	rec := f.do(t, http.MethodPost, "/reports", "u1", `{"data":{"type":"reports","attributes":{"title":"Income","description":"ACS"}}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var doc struct {
		Data struct {
			ID         string                 `json:"id"`
			Attributes map[string]interface{} `json:"attributes"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	path := "/reports/" + doc.Data.ID

	rec = f.do(t, http.MethodPatch, path, "u1", `{"data":{"type":"reports","id":"`+doc.Data.ID+`","attributes":{"title":"Household income"}}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "Household income", doc.Data.Attributes["title"])
	assert.Equal(t, "ACS", doc.Data.Attributes["description"])

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, path, "u1", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, path, "", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, path, "u1", "").Code)
}

func TestField_AggregatorFixedAfterCreate(t *testing.T) {
	agg := uuid.New()
	f := newFixture(fakeRefs{known: map[uuid.UUID]bool{agg: true}})

	body := fmt.Sprintf(`{"data":{"type":"fields","attributes":{"name":"income","label":"Median income"},"relationships":{"aggregator":{"data":{"type":"aggregators","id":"%s"}}}}}`, agg)
	rec := f.do(t, http.MethodPost, "/fields", "u1", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var doc struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))

	patch := fmt.Sprintf(`{"data":{"type":"fields","id":"%s","relationships":{"aggregator":{"data":{"type":"aggregators","id":"%s"}}}}}`, doc.Data.ID, uuid.New())
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPatch, "/fields/"+doc.Data.ID, "u1", patch).Code)
}

func TestReferenceLookupFailureIsServerError(t *testing.T) {
	f := newFixture(fakeRefs{err: errors.New("connection reset")})

	body := fmt.Sprintf(`{"data":{"type":"fields","attributes":{"name":"income"},"relationships":{"aggregator":{"data":{"type":"aggregators","id":"%s"}}}}}`, uuid.New())
	rec := f.do(t, http.MethodPost, "/fields", "u1", body)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, f.fields.items)
}

func TestTopic_CRUD(t *testing.T) {
	f := newFixture(fakeRefs{})

	assert.Equal(t, http.StatusUnprocessableEntity,
		f.do(t, http.MethodPost, "/topics", "u1", `{"data":{"type":"topics","attributes":{"name":""}}}`).Code)

	rec := f.do(t, http.MethodPost, "/topics", "u1", `{"data":{"type":"topics","attributes":{"name":"Housing"}}}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	list := f.do(t, http.MethodGet, "/topics", "", "")
	require.Equal(t, http.StatusOK, list.Code)
	var doc struct {
		Data []struct {
			Type       string            `json:"type"`
			Attributes map[string]string `json:"attributes"`
		} `json:"data"`
		Meta map[string]int `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &doc))
	require.Len(t, doc.Data, 1)
	assert.Equal(t, "topics", doc.Data[0].Type)
	assert.Equal(t, "Housing", doc.Data[0].Attributes["name"])
	assert.Equal(t, 1, doc.Meta["count"])
}

type roles map[string]string

func (r roles) RoleOf(userID string) (string, error) {
	role, ok := r[userID]
	if !ok {
		return "", errors.New("user not found")
	}
	return role, nil
}

func TestCatalogGuard(t *testing.T) {
	f := newFixture(fakeRefs{}, middleware.AdminMiddleware(roles{"admin-1": "admin", "u1": "user"}))
	topic := `{"data":{"type":"topics","attributes":{"name":"Housing"}}}`

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, "/topics", "u1", topic).Code)
	assert.Empty(t, f.topics.items)

	assert.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/topics", "admin-1", topic).Code)

	// Reports are not part of the catalog.
	assert.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/reports", "u1",
		`{"data":{"type":"reports","attributes":{"title":"Median income"}}}`).Code)
}
