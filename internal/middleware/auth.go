// Package middleware contains HTTP middleware functions for the Playgroup API.
// Middleware sits between the HTTP server and route handlers — it runs on every
// request that passes through it, making it the right place for cross-cutting
// concerns like authentication, logging, and rate limiting.
package middleware

import (
	"fmt"
	"strings"

	// fiber is the HTTP framework; fiber.Handler is the function signature for middleware
	"github.com/gofiber/fiber/v2"
	// jwt is used to parse and verify JSON Web Tokens (JWTs) from the Authorization header
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/fairwayhq/playgroup-api/internal/config"
	"github.com/fairwayhq/playgroup-api/internal/models"
)

// Claims defines the data we expect inside an identity-provider JWT payload.
// The token includes standard fields (Subject = the provider's user ID, expiry, etc.)
// plus the custom attributes the provider attaches:
//
//	"custom:role" — the user's permission level ("Player", "GroupLeader", "Admin")
//	"email"       — used to populate our users table
//	"name"        — display name for our users table
//
// If the role claim is missing the user defaults to "Player" (least privileged),
// matching the provider's behavior for accounts created before roles existed.
type Claims struct {
	jwt.RegisteredClaims        // Standard JWT fields: Subject (user ID), ExpiresAt, IssuedAt, etc.
	Role                 string `json:"custom:role"` // Custom claim: "Player", "GroupLeader", or "Admin"
	Email                string `json:"email"`       // Custom claim: the user's primary email address
	Name                 string `json:"name"`        // Custom claim: the user's full name
}

// Auth returns a Fiber middleware handler that:
//  1. Verifies the JWT from the "Authorization: Bearer <token>" header
//  2. Finds the matching user in our database (or creates one on first visit)
//  3. Syncs the user's role from the JWT into the database
//  4. Stores the user's internal UUID and role in the request context (c.Locals)
//     so downstream handlers can read them without re-parsing the token
//
// This is a closure — a function that returns another function, capturing cfg and db
// in its scope so they're available every time a request comes in.
func Auth(cfg *config.Config, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// --- Step 1: Extract the token from the Authorization header ---

		authHeader := c.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing or invalid authorization header",
			})
		}

		// Strip the "Bearer " prefix to get just the raw JWT string
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		// --- Step 2: Parse and verify the JWT ---
		// The key function hands the HS256 shared secret to the parser and rejects
		// any token that declares a different signing method — without that check,
		// an attacker could send an unsigned ("none" algorithm) token.
		token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid token",
			})
		}

		claims, ok := token.Claims.(*Claims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid token claims",
			})
		}

		// claims.Subject is the standard JWT "sub" field — the identity provider
		// sets it to its own user ID for this person
		externalID := claims.Subject
		if externalID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "token missing subject",
			})
		}

		// --- Step 3: Find or create the user in our database ---
		// This is "lazy user sync": the first time a user hits any authenticated endpoint,
		// we create their record in our database. On subsequent requests we just look them up.

		// Determine the role from the JWT claim, defaulting to "Player" if not set
		role := roleFromClaim(claims.Role)

		// Build placeholder email and name in case the token doesn't include them.
		// These use the provider's user ID so they're deterministic and unique.
		email := claims.Email
		if email == "" {
			// Placeholder: "<sub>@idp.local" — clearly not real, and unique per user
			email = fmt.Sprintf("%s@idp.local", externalID)
		}

		name := claims.Name
		if name == "" {
			name = "Player" // Generic fallback display name
		}

		var user models.User

		// Try to find an existing user by their identity-provider ID
		result := db.Where("external_id = ?", externalID).First(&user)

		if result.Error != nil {
			// User not found — create a new record for them
			// gorm.ErrRecordNotFound is the expected "not found" error; anything else is a DB problem
			if result.Error != gorm.ErrRecordNotFound {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "database error",
				})
			}

			// Create the user row — the BeforeCreate hook populates user.ID with a new UUID
			user = models.User{
				ExternalID:  &externalID,
				DisplayName: name,
				Email:       email,
				Role:        role,
			}
			if err := db.Create(&user).Error; err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "failed to create user record",
				})
			}
		} else {
			// User found — sync their role in case it changed at the provider
			// (e.g. an admin promoted someone to GroupLeader via the users endpoint)
			if user.Role != role && claims.Role != "" {
				db.Model(&user).Update("role", role)
				user.Role = role
			}
		}

		// --- Step 4: Store user info in the request context ---
		// c.Locals is a key-value store scoped to this single request.
		// Handlers read "userID" (our internal UUID) and "userRole" from here.
		c.Locals("userID", user.ID.String())
		c.Locals("userRole", string(user.Role))

		// Pass control to the next middleware or route handler
		return c.Next()
	}
}

// roleFromClaim converts the raw role string from the JWT into our typed UserRole enum.
// If the claim is missing or unrecognised, it defaults to "Player" (least privileged).
func roleFromClaim(s string) models.UserRole {
	switch s {
	case string(models.UserRoleAdmin):
		return models.UserRoleAdmin
	case string(models.UserRoleGroupLeader):
		return models.UserRoleGroupLeader
	default:
		// Unknown or empty role — default to regular player
		return models.UserRolePlayer
	}
}
