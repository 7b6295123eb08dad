// Package handlers contains HTTP route handler functions for the Playgroup API.
// This file holds the small pieces shared by every handler: the request-body
// validator, reading the authenticated actor out of the request context, and
// building the policy resource context for a playgroup.
//
// Each exported handler follows the "handler factory" pattern: it takes a
// *gorm.DB (and sometimes the websocket hub) and returns a fiber.Handler.
// This lets us inject dependencies without using global variables.
package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/fairwayhq/playgroup-api/internal/models"
	"github.com/fairwayhq/playgroup-api/internal/policy"
)

// validate is the shared validator instance. validator.New is expensive
// (it builds a tag cache), so the package keeps a single instance — the
// library is safe for concurrent use.
var validate = validator.New()

// currentActor reads the authenticated user's identity out of the request
// context. The Auth middleware stored "userID" (internal UUID as a string)
// and "userRole" there; if either is missing or malformed, the middleware
// chain was misconfigured and the request cannot be attributed to anyone.
func currentActor(c *fiber.Ctx) (policy.Actor, error) {
	userIDStr, _ := c.Locals("userID").(string)
	userRole, _ := c.Locals("userRole").(string)

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return policy.Actor{}, err
	}

	return policy.Actor{ID: userID, Role: models.UserRole(userRole)}, nil
}

// playgroupResource builds the policy resource context from a playgroup
// loaded with its Members association.
func playgroupResource(pg *models.Playgroup) policy.Resource {
	memberIDs := make([]uuid.UUID, 0, len(pg.Members))
	for _, m := range pg.Members {
		memberIDs = append(memberIDs, m.UserID)
	}
	return policy.Resource{LeaderID: pg.LeaderID, MemberIDs: memberIDs}
}

// forbidden is the uniform authorization failure. Every denied action gets
// the same body — the response never explains which rule failed.
func forbidden(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"error": "forbidden",
	})
}
