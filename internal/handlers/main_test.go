package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fairwayhq/playgroup-api/internal/config"
	"github.com/fairwayhq/playgroup-api/internal/middleware"
	"github.com/fairwayhq/playgroup-api/internal/models"
	"github.com/fairwayhq/playgroup-api/internal/websocket"
)

// testSecret signs the JWTs minted for tests; the test app verifies with the same key.
const testSecret = "test-secret"

// newTestDB opens an in-memory SQLite database and migrates every model into it.
// Each test gets its own database, so tests can't interfere with each other.
// TranslateError matches the production connection: unique-key violations come
// back as gorm.ErrDuplicatedKey, which the handlers map to 409.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite in-memory db: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Playgroup{},
		&models.PlaygroupMember{},
		&models.Session{},
		&models.Foursome{},
		&models.FoursomePlayer{},
		&models.Scorecard{},
	); err != nil {
		t.Fatalf("failed to migrate models: %v", err)
	}

	return db
}

// newTestApp builds a Fiber app with the same authenticated route table the
// real server registers in cmd/server/main.go.
func newTestApp(db *gorm.DB) *fiber.App {
	cfg := &config.Config{JWTSecret: testSecret, Env: "test"}

	hub := websocket.NewHub()
	go hub.Run()

	app := fiber.New()
	app.Get("/health", HealthCheck)

	api := app.Group("/api/v1", middleware.Auth(cfg, db))
	api.Get("/users", GetUsers(db))
	api.Post("/users", middleware.RequireRole(models.UserRoleAdmin), UpdateUserRole(db))
	api.Get("/playgroups", GetPlaygroups(db))
	api.Post("/playgroups", PostPlaygroups(db))
	api.Get("/sessions", GetSessions(db))
	api.Post("/sessions", CreateSession(db))
	api.Get("/foursomes", GetFoursomes(db))
	api.Put("/foursomes", UpdateFoursome(db))
	api.Post("/foursomes/regenerate", RegenerateFoursomes(db))
	api.Get("/scores", GetScores(db))
	api.Put("/scores", PutScore(db, hub))
	api.Get("/leaderboard", GetLeaderboard(db))

	return app
}

// seedUser inserts a user row directly, the way the lazy sync in the Auth
// middleware would have. The external ID doubles as the JWT subject, so a
// token minted with the same id authenticates as this user.
func seedUser(t *testing.T, db *gorm.DB, externalID, email string, role models.UserRole) *models.User {
	t.Helper()

	user := models.User{
		ExternalID:  &externalID,
		DisplayName: externalID,
		Email:       email,
		Role:        role,
	}
	require.NoError(t, db.Create(&user).Error, "seed user %s", externalID)
	return &user
}

// mintToken signs a JWT the way the identity provider would: HS256, subject,
// and the custom claims the Auth middleware reads.
func mintToken(t *testing.T, externalID, email string, role models.UserRole) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":         externalID,
		"email":       email,
		"name":        externalID,
		"custom:role": string(role),
		"exp":         time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err, "sign token")
	return signed
}

// doJSON performs one request against the test app and decodes the JSON
// response body into a generic map. body may be nil for GETs.
func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err, "marshal request body")
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, 5000)
	require.NoError(t, err, "%s %s", method, path)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "read response body")

	decoded := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "decode response: %s", raw)
	}
	return resp.StatusCode, decoded
}

// mustCreatePlaygroup drives POST /playgroups and returns the new playgroup's id.
func mustCreatePlaygroup(t *testing.T, app *fiber.App, token, name string) string {
	t.Helper()

	status, body := doJSON(t, app, http.MethodPost, "/api/v1/playgroups", token, fiber.Map{
		"name": name,
	})
	require.Equal(t, http.StatusCreated, status, "create playgroup: %v", body)

	pg := body["playgroup"].(map[string]any)
	return pg["playgroupId"].(string)
}

// mustAddMember drives the addMember action of POST /playgroups.
func mustAddMember(t *testing.T, app *fiber.App, token, playgroupID string, userID uuid.UUID) {
	t.Helper()

	status, body := doJSON(t, app, http.MethodPost, "/api/v1/playgroups", token, fiber.Map{
		"action":      "addMember",
		"playgroupId": playgroupID,
		"userId":      userID.String(),
	})
	require.Equal(t, http.StatusOK, status, "add member: %v", body)
}

// mustCreateSession drives POST /sessions and returns the session id plus the
// generated foursomes.
func mustCreateSession(t *testing.T, app *fiber.App, token, playgroupID string) (string, []any) {
	t.Helper()

	status, body := doJSON(t, app, http.MethodPost, "/api/v1/sessions", token, fiber.Map{
		"playgroupId": playgroupID,
		"date":        "2026-09-05",
		"time":        "08:30",
		"courseName":  "Pebble Creek",
	})
	require.Equal(t, http.StatusCreated, status, "create session: %v", body)

	session := body["session"].(map[string]any)
	return session["sessionId"].(string), body["foursomes"].([]any)
}

// repeatHoles builds an 18-hole array with the same score on every hole.
func repeatHoles(score int) []int {
	holes := make([]int, 18)
	for i := range holes {
		holes[i] = score
	}
	return holes
}
