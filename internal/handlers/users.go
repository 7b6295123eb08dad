// This file handles the /api/v1/users routes — looking up users and changing roles.
//
// --- Permission model ---
// Listing all users is admin-only. Everyone else can either look up a user by
// exact email (that's how a GroupLeader finds a player to add to a playgroup)
// or see only themselves. The scope narrows silently for non-admins — this is
// the one place the policy narrows results instead of returning 403.
//
// Changing a role is admin-only and restricted to the three known values.
package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fairwayhq/playgroup-api/internal/models"
	"github.com/fairwayhq/playgroup-api/internal/policy"
)

// UserResponse is what we send back for a user record.
// A dedicated response struct (instead of the raw GORM model) controls exactly
// which fields are serialised — ExternalID in particular stays internal.
type UserResponse struct {
	ID          string `json:"userId"`
	Email       string `json:"email"`
	DisplayName string `json:"name"`
	Role        string `json:"role"`
	CreatedAt   string `json:"createdAt"` // ISO 8601 timestamp string
}

// UpdateUserRoleRequest is the JSON body we expect on POST /api/v1/users.
type UpdateUserRoleRequest struct {
	UserID string `json:"userId" validate:"required,uuid4"`
	Role   string `json:"role" validate:"required"`
}

func userToResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:          u.ID.String(),
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        string(u.Role),
		CreatedAt:   u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// GetUsers returns a handler for GET /api/v1/users.
//   - Admins see all users, optionally filtered by ?role= or ?email=.
//   - Non-admins may look up by exact ?email= (to find players for a playgroup)
//     or, with no email filter, see only their own record.
func GetUsers(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := currentActor(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid user ID",
			})
		}

		emailFilter := c.Query("email") // empty string if not provided
		roleFilter := c.Query("role")

		var users []models.User

		if !policy.Allows(actor, policy.ActionListAllUsers, policy.Resource{}) {
			if emailFilter != "" {
				// Exact-email lookup is open to everyone — it's how leaders find
				// players to add. Returns zero or one user.
				if err := db.Where("email = ?", emailFilter).Find(&users).Error; err != nil {
					return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
						"error": "failed to query user",
					})
				}
			} else {
				// No filter: a non-admin only sees themselves.
				if err := db.Where("id = ?", actor.ID).Find(&users).Error; err != nil {
					return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
						"error": "failed to fetch user data",
					})
				}
			}
		} else {
			// Admin: list all, with optional filters.
			query := db
			if emailFilter != "" {
				query = query.Where("email = ?", emailFilter)
			}
			if roleFilter != "" {
				query = query.Where("role = ?", roleFilter)
			}
			if err := query.Find(&users).Error; err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "failed to list users",
				})
			}
		}

		response := make([]UserResponse, 0, len(users))
		for i := range users {
			response = append(response, userToResponse(&users[i]))
		}

		return c.JSON(fiber.Map{"users": response})
	}
}

// UpdateUserRole returns a handler for POST /api/v1/users.
// Admin-only: changes a user's global role. The role value is restricted to
// the closed {Player, GroupLeader, Admin} set. The identity provider's copy
// of the role attribute is updated out-of-band; this endpoint owns our local
// record, which is what every authorization decision reads.
func UpdateUserRole(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := currentActor(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid user ID",
			})
		}

		if !policy.Allows(actor, policy.ActionChangeUserRole, policy.Resource{}) {
			return forbidden(c)
		}

		var req UpdateUserRoleRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}
		if err := validate.Struct(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "userId and role are required",
			})
		}

		role := models.UserRole(req.Role)
		if !role.Valid() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "role must be Player, GroupLeader, or Admin",
			})
		}

		targetID, err := uuid.Parse(req.UserID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid userId",
			})
		}

		var user models.User
		if err := db.First(&user, "id = ?", targetID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "user not found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "database error",
			})
		}

		if err := db.Model(&user).Update("role", role).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to update user role",
			})
		}
		user.Role = role

		return c.JSON(fiber.Map{"user": userToResponse(&user)})
	}
}
