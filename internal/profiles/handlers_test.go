package profiles_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmpoweredVote/EV-Profiles/internal/profiles"
	"github.com/EmpoweredVote/EV-Profiles/internal/utils"
)

type cookieSessions struct{}

func (cookieSessions) FindSessionByID(id string) (utils.SessionData, error) {
	return utils.SessionData{UserID: id, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (cookieSessions) FindSessionByToken(token string) (utils.SessionData, error) {
	return utils.SessionData{}, errors.New("no tokens")
}

func (e *env) router() http.Handler {
	return profiles.SetupRoutes(profiles.NewHandler(e.svc, nil), cookieSessions{},
		func(next http.Handler) http.Handler { return next })
}

func request(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "user-1"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type profileDoc struct {
	Data struct {
		ID         string                     `json:"id"`
		Attributes map[string]json.RawMessage `json:"attributes"`
	} `json:"data"`
}

func (e *env) createBody() string {
	return `{"data":{"type":"profiles","relationships":{
		"place":{"data":{"type":"places","id":"` + e.place.ID.String() + `"}},
		"report":{"data":{"type":"reports","id":"` + e.report.ID.String() + `"}}
	}}}`
}

func TestHandler_CreateCompleteProfileIsEvaluated(t *testing.T) {
	e := newEnv()
	h := e.router()

	rec := request(t, h, http.MethodPost, "/", e.createBody())

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var doc profileDoc
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.JSONEq(t, `"Median income in Dudley"`, string(doc.Data.Attributes["title"]))
	assert.JSONEq(t, `true`, string(doc.Data.Attributes["complete"]))
	assert.JSONEq(t, `true`, string(doc.Data.Attributes["evaluated"]))
	assert.NotEqual(t, "null", string(doc.Data.Attributes["evaluation"]))
}

func TestHandler_CreateIncompleteProfile(t *testing.T) {
	e := newEnv()
	h := e.router()

	rec := request(t, h, http.MethodPost, "/", `{"data":{"type":"profiles"}}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var doc profileDoc
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.JSONEq(t, `false`, string(doc.Data.Attributes["complete"]))
	assert.JSONEq(t, `null`, string(doc.Data.Attributes["evaluated_at"]))
	assert.JSONEq(t, `" in "`, string(doc.Data.Attributes["title"]))
}

func TestHandler_EvaluationAttributesAreReadOnly(t *testing.T) {
	e := newEnv()
	h := e.router()

	rec := request(t, h, http.MethodPost, "/", `{"data":{"type":"profiles","attributes":{"evaluated_at":"2020-01-01T00:00:00Z"}}}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_EvaluationFailureIsServerError(t *testing.T) {
	e := newEnv()
	e.evaluator.err = errors.New("boom")
	h := e.router()

	rec := request(t, h, http.MethodPost, "/", e.createBody())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, e.store.profiles)
}

func TestHandler_EvaluateEndpoint(t *testing.T) {
	e := newEnv()
	h := e.router()

	rec := request(t, h, http.MethodPost, "/", e.createBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var doc profileDoc
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))

	rec = request(t, h, http.MethodPost, "/"+doc.Data.ID+"/evaluate", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, e.evaluator.calls)
}

func TestHandler_UnknownPlace(t *testing.T) {
	e := newEnv()
	h := e.router()

	rec := request(t, h, http.MethodPost, "/",
		`{"data":{"type":"profiles","relationships":{"place":{"data":{"type":"places","id":"6f1c2a6e-2f0e-4a8b-9f53-7f2c7d0d2b11"}}}}}`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pointer":"/data/relationships/place"`)
	assert.Contains(t, rec.Body.String(), `"code":"unknown_reference"`)
}
