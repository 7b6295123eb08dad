// cmd/server/main.go
// This is the entry point for the Playgroup API server.
// In Go, the "main" package and its "main()" function is where the program starts executing.
// The "cmd/server" directory follows a common Go convention: the cmd/ folder holds executable
// binaries, and internal/ holds reusable packages that are not meant to be imported by other projects.
package main

import (
	"os"

	// fiber is a fast HTTP web framework inspired by Express.js
	"github.com/gofiber/fiber/v2"
	// cors handles Cross-Origin Resource Sharing — allows the web app to talk to
	// the API even though they're running on different origins (hosts/ports)
	"github.com/gofiber/fiber/v2/middleware/cors"
	// logger prints request details (method, path, status, duration) to stdout
	"github.com/gofiber/fiber/v2/middleware/logger"
	// zerolog provides structured, leveled application logging (JSON in production,
	// pretty console output in development)
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	// Internal packages — our own code, imported by module path
	"github.com/fairwayhq/playgroup-api/internal/config"
	"github.com/fairwayhq/playgroup-api/internal/database"
	"github.com/fairwayhq/playgroup-api/internal/handlers"
	"github.com/fairwayhq/playgroup-api/internal/middleware"
	"github.com/fairwayhq/playgroup-api/internal/models"
	"github.com/fairwayhq/playgroup-api/internal/websocket"
)

func main() {
	// Load configuration from environment variables (and optionally a .env file).
	// cfg is a pointer (*Config) containing all runtime settings like port, database URL, etc.
	cfg := config.Load()

	// Configure the application logger. In development, human-readable console
	// output is friendlier; everywhere else, zerolog's default JSON lines go to
	// whatever log shipper is watching stdout.
	if cfg.Env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	// Connect to the PostgreSQL database.
	// We store the returned *gorm.DB — it's used by middleware and handlers to run queries.
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Run any pending SQL migration files (in the migrations/ directory).
	// Migrations are SQL scripts that create or alter tables. Running them on startup
	// ensures the database schema is always in sync when the server starts.
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Create a new WebSocket Hub and start it in a goroutine.
	// The Hub manages all live WebSocket connections — people watching a session's
	// scores come in live. "go hub.Run()" starts Run() as a goroutine: a lightweight
	// concurrent function that runs in the background without blocking the rest of startup.
	hub := websocket.NewHub()
	go hub.Run()

	// Create a new Fiber app (our HTTP server).
	app := fiber.New(fiber.Config{
		AppName: "Playgroup API",
	})

	// --- Global middleware ---
	// These run on every request before any route handler.
	// logger.New() logs each HTTP request: method, path, status code, and duration.
	app.Use(logger.New())
	// cors.New() allows requests from any origin (needed for the web app in development).
	// In production, lock this down to your specific domain.
	app.Use(cors.New())

	// --- Public routes (no auth required) ---
	// GET /health is a liveness check used by load balancers to verify the server is running.
	app.Get("/health", handlers.HealthCheck)

	// --- Authenticated API routes ---
	// All routes under /api/v1 require a valid identity-provider JWT.
	// middleware.Auth(cfg, db) verifies the token AND syncs the user to our database.
	//
	// Route group pattern: app.Group(prefix, middlewares...) applies the middleware
	// to every route registered on the returned group — we don't have to repeat it per route.
	api := app.Group("/api/v1", middleware.Auth(cfg, db))

	// User routes
	// GET  /api/v1/users — admins list everyone; others look up by exact email or see themselves
	// POST /api/v1/users — change a user's role (admin only; also gated in the handler by policy)
	api.Get("/users", handlers.GetUsers(db))
	api.Post("/users", middleware.RequireRole(models.UserRoleAdmin), handlers.UpdateUserRole(db))

	// Playgroup routes
	// GET  /api/v1/playgroups — one playgroup by id, or the caller's playgroups
	// POST /api/v1/playgroups — create a playgroup, or {"action":"addMember"} to add a member.
	// No RequireRole here: creation needs GroupLeader/Admin but addMember is decided by
	// ownership, so both checks live in the policy table consulted by the handler.
	api.Get("/playgroups", handlers.GetPlaygroups(db))
	api.Post("/playgroups", handlers.PostPlaygroups(db))

	// Session routes
	// POST /api/v1/sessions creates the session AND auto-generates its foursomes.
	api.Get("/sessions", handlers.GetSessions(db))
	api.Post("/sessions", handlers.CreateSession(db))

	// Foursome routes
	// PUT replaces one foursome's roster; regenerate re-partitions the whole session.
	api.Get("/foursomes", handlers.GetFoursomes(db))
	api.Put("/foursomes", handlers.UpdateFoursome(db))
	api.Post("/foursomes/regenerate", handlers.RegenerateFoursomes(db))

	// Score routes
	// PUT /api/v1/scores broadcasts every accepted write to the session's live watchers.
	api.Get("/scores", handlers.GetScores(db))
	api.Put("/scores", handlers.PutScore(db, hub))
	api.Get("/leaderboard", handlers.GetLeaderboard(db))

	// Live score updates: upgrade to a WebSocket and register with the Hub.
	api.Get("/ws/sessions/:sessionId", websocket.Upgrade, websocket.ServeSession(hub))

	// Start listening for HTTP connections on the configured port.
	// ":" + cfg.Port produces a string like ":8080" — listen on all network interfaces.
	log.Info().Str("port", cfg.Port).Msg("starting server")
	log.Fatal().Err(app.Listen(":" + cfg.Port)).Msg("server stopped")
}
