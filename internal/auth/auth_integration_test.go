package auth_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/EmpoweredVote/EV-Profiles/internal/auth"
	"github.com/EmpoweredVote/EV-Profiles/internal/config"
	"github.com/EmpoweredVote/EV-Profiles/internal/db"
	"github.com/EmpoweredVote/EV-Profiles/internal/middleware"
)

var (
	testDB     *gorm.DB
	testServer *httptest.Server
)

func TestMain(m *testing.M) {
	// .env.local lives at the repository root, two directories up.
	_ = godotenv.Load("../../.env.local")

	if os.Getenv("DATABASE_URL") == "" {
		os.Exit(m.Run())
	}

	cfg, err := config.Load("../../config.yaml")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	testDB, err = db.Connect(cfg.Database, zap.NewNop())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := auth.Init(testDB); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	sessions := auth.SessionInfo{DB: testDB}
	h := auth.NewHandler(testDB, nil, nil, false, zap.NewNop())
	passthrough := func(next http.Handler) http.Handler { return next }

	r := chi.NewRouter()
	r.Mount("/auth", auth.SetupRoutes(h, sessions, passthrough))
	r.Mount("/users", auth.SetupUserRoutes(h, sessions, passthrough))

	testServer = httptest.NewServer(r)
	code := m.Run()
	testServer.Close()
	os.Exit(code)
}

// createTestUser inserts a unique user and removes it when the test ends.
func createTestUser(t *testing.T) (email, password string) {
	t.Helper()
	if testDB == nil || testing.Short() {
		t.Skip("skipping integration test (requires DATABASE_URL)")
	}

	email = fmt.Sprintf("testuser_%s@example.com", uuid.New().String()[:8])
	password = "TestPass123!"
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)

	user := auth.User{
		UserID:         uuid.New().String(),
		Email:          email,
		HashedPassword: string(hashed),
	}
	require.NoError(t, testDB.Create(&user).Error)

	t.Cleanup(func() {
		testDB.Where("user_id = ?", user.UserID).Delete(&auth.Session{})
		testDB.Where("user_id = ?", user.UserID).Delete(&auth.User{})
	})
	return email, password
}

func newClientWithJar(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func loginUser(t *testing.T, client *http.Client, email, password string) (*http.Response, string) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := client.Post(testServer.URL+"/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestLoginReturnsSessionCookie(t *testing.T) {
	email, password := createTestUser(t)
	client := newClientWithJar(t)

	resp, body := loginUser(t, client, email, password)

	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Contains(t, resp.Header.Get("Set-Cookie"), "session_id")

	var result map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &result))
	assert.NotEmpty(t, result["user_id"])
	assert.Equal(t, email, result["email"])
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	email, _ := createTestUser(t)

	resp, _ := loginUser(t, newClientWithJar(t), email, "wrong password")

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSessionPersistsAcrossRequests(t *testing.T) {
	email, password := createTestUser(t)
	client := newClientWithJar(t)

	resp, body := loginUser(t, client, email, password)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	// Twice, as a tab reload would.
	for i := 0; i < 2; i++ {
		meResp, err := client.Get(testServer.URL + "/auth/me")
		require.NoError(t, err)
		meBody := readBody(t, meResp)
		require.Equal(t, http.StatusOK, meResp.StatusCode, meBody)

		var doc struct {
			Data struct {
				Attributes map[string]string `json:"attributes"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(meBody), &doc))
		assert.Equal(t, email, doc.Data.Attributes["email"])
	}
}

func TestLogoutClearsSession(t *testing.T) {
	email, password := createTestUser(t)
	client := newClientWithJar(t)

	resp, body := loginUser(t, client, email, password)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	logoutResp, err := client.Post(testServer.URL+"/auth/logout", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, logoutResp.StatusCode, readBody(t, logoutResp))

	meResp, err := client.Get(testServer.URL + "/auth/me")
	require.NoError(t, err)
	readBody(t, meResp)
	assert.Equal(t, http.StatusUnauthorized, meResp.StatusCode)
}

func TestExpiredSessionRejected(t *testing.T) {
	email, password := createTestUser(t)
	client := newClientWithJar(t)

	resp, body := loginUser(t, client, email, password)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var login map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &login))

	require.NoError(t, testDB.Model(&auth.Session{}).
		Where("user_id = ?", login["user_id"]).
		Update("expires_at", time.Now().Add(-time.Hour)).Error)

	meResp, err := client.Get(testServer.URL + "/auth/me")
	require.NoError(t, err)
	meBody := readBody(t, meResp)
	assert.Equal(t, http.StatusUnauthorized, meResp.StatusCode)
	assert.Contains(t, meBody, "Session expired")
}

func TestIssuedTokenAuthorizesRequests(t *testing.T) {
	email, password := createTestUser(t)
	client := newClientWithJar(t)

	resp, body := loginUser(t, client, email, password)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	tokenResp, err := client.Post(testServer.URL+"/auth/token", "application/json", nil)
	require.NoError(t, err)
	tokenBody := readBody(t, tokenResp)
	require.Equal(t, http.StatusCreated, tokenResp.StatusCode, tokenBody)

	var issued map[string]string
	require.NoError(t, json.Unmarshal([]byte(tokenBody), &issued))
	require.NotEmpty(t, issued["token"])

	req, err := http.NewRequest(http.MethodGet, testServer.URL+"/auth/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+issued["token"])
	meResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	meBody := readBody(t, meResp)
	assert.Equal(t, http.StatusOK, meResp.StatusCode, meBody)
	assert.True(t, strings.Contains(meBody, email))
}

func TestRegisterRejectsTakenEmail(t *testing.T) {
	email, _ := createTestUser(t)

	body := fmt.Sprintf(`{"data":{"type":"users","attributes":{"email":%q,"password":"long enough"}}}`, email)
	resp, err := http.Post(testServer.URL+"/users", "application/vnd.api+json", strings.NewReader(body))
	require.NoError(t, err)
	readBody(t, resp)

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

var _ middleware.SessionFetcher = auth.SessionInfo{}
