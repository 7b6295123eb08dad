// This file handles the /api/v1/playgroups routes — creating playgroups,
// listing them, and adding members.
//
// A playgroup is a persistent group of golfers with one leader (its creator
// and owner) and a member roster. The leader is implicitly a member and is
// never stored in the playgroup_members table.
//
// POST /playgroups doubles as two operations, mirroring the original API:
// a plain body creates a playgroup, while {"action": "addMember", ...}
// adds a member to an existing one.
package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fairwayhq/playgroup-api/internal/models"
	"github.com/fairwayhq/playgroup-api/internal/policy"
)

// PlaygroupResponse is what we send back for a playgroup.
type PlaygroupResponse struct {
	ID          string   `json:"playgroupId"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	LeaderID    string   `json:"leaderId"`
	LeaderName  string   `json:"leaderName,omitempty"` // Present when the leader was preloaded
	MemberIDs   []string `json:"memberIds"`            // Excludes the leader, like the stored roster
	CreatedAt   string   `json:"createdAt"`
}

// PostPlaygroupRequest covers both shapes of the POST body. Which operation
// runs is decided by the Action field; the validator runs per-operation
// because the required fields differ.
type PostPlaygroupRequest struct {
	Action      string `json:"action"` // "" = create, "addMember" = add a member
	Name        string `json:"name"`
	Description string `json:"description"`
	PlaygroupID string `json:"playgroupId"`
	UserID      string `json:"userId"`
}

func playgroupToResponse(pg *models.Playgroup) PlaygroupResponse {
	memberIDs := make([]string, 0, len(pg.Members))
	for _, m := range pg.Members {
		memberIDs = append(memberIDs, m.UserID.String())
	}
	return PlaygroupResponse{
		ID:          pg.ID.String(),
		Name:        pg.Name,
		Description: pg.Description,
		LeaderID:    pg.LeaderID.String(),
		LeaderName:  pg.Leader.DisplayName,
		MemberIDs:   memberIDs,
		CreatedAt:   pg.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// GetPlaygroups returns a handler for GET /api/v1/playgroups.
//   - ?playgroupId=<uuid> fetches one playgroup (member, leader, or admin only).
//   - With no filter, returns the caller's playgroups: the ones they lead plus
//     the ones they're a member of.
func GetPlaygroups(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := currentActor(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid user ID",
			})
		}

		if idParam := c.Query("playgroupId"); idParam != "" {
			playgroupID, err := uuid.Parse(idParam)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid playgroupId",
				})
			}

			var pg models.Playgroup
			if err := db.Preload("Members").Preload("Leader").First(&pg, "id = ?", playgroupID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
						"error": "playgroup not found",
					})
				}
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "failed to fetch playgroup",
				})
			}

			if !policy.Allows(actor, policy.ActionReadPlaygroup, playgroupResource(&pg)) {
				return forbidden(c)
			}

			return c.JSON(fiber.Map{"playgroup": playgroupToResponse(&pg)})
		}

		// No filter: gather the caller's playgroups. Two queries (led groups via
		// the leader index, joined groups via the membership table), then
		// deduplicate by primary key.
		var ledGroups []models.Playgroup
		if err := db.Preload("Members").Preload("Leader").
			Where("leader_id = ?", actor.ID).Find(&ledGroups).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch playgroups",
			})
		}

		var memberGroups []models.Playgroup
		if err := db.Preload("Members").Preload("Leader").
			Joins("JOIN playgroup_members ON playgroup_members.playgroup_id = playgroups.id").
			Where("playgroup_members.user_id = ?", actor.ID).
			Find(&memberGroups).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch playgroups",
			})
		}

		seen := make(map[uuid.UUID]bool, len(ledGroups)+len(memberGroups))
		response := make([]PlaygroupResponse, 0, len(ledGroups)+len(memberGroups))
		for _, groups := range [][]models.Playgroup{ledGroups, memberGroups} {
			for i := range groups {
				if seen[groups[i].ID] {
					continue
				}
				seen[groups[i].ID] = true
				response = append(response, playgroupToResponse(&groups[i]))
			}
		}

		return c.JSON(fiber.Map{"playgroups": response})
	}
}

// PostPlaygroups returns a handler for POST /api/v1/playgroups.
// Dispatches on the "action" field: create a playgroup, or add a member.
func PostPlaygroups(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := currentActor(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid user ID",
			})
		}

		var req PostPlaygroupRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}

		if req.Action == "addMember" {
			return addMember(c, db, actor, &req)
		}
		return createPlaygroup(c, db, actor, &req)
	}
}

// createPlaygroup handles the plain-body form of POST /playgroups.
// Only GroupLeaders and Admins can create playgroups; the creator becomes the
// immutable leader.
func createPlaygroup(c *fiber.Ctx, db *gorm.DB, actor policy.Actor, req *PostPlaygroupRequest) error {
	if !policy.Allows(actor, policy.ActionCreatePlaygroup, policy.Resource{}) {
		return forbidden(c)
	}

	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name is required",
		})
	}

	pg := models.Playgroup{
		Name:        req.Name,
		Description: req.Description,
		LeaderID:    actor.ID,
	}
	if err := db.Create(&pg).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create playgroup",
		})
	}

	// Preload the leader for the response's LeaderName
	db.Preload("Leader").First(&pg, "id = ?", pg.ID)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"playgroup": playgroupToResponse(&pg),
	})
}

// addMember handles {"action": "addMember", "playgroupId": ..., "userId": ...}.
// Only the playgroup's leader (or an admin) may add members. The membership
// row's composite primary key makes the insert atomic: a duplicate add — or
// the second of two racing adds — fails at the database with a unique-key
// violation, which we report as 409 Conflict. No read-modify-write involved.
func addMember(c *fiber.Ctx, db *gorm.DB, actor policy.Actor, req *PostPlaygroupRequest) error {
	if req.PlaygroupID == "" || req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "playgroupId and userId are required",
		})
	}

	playgroupID, err := uuid.Parse(req.PlaygroupID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid playgroupId",
		})
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid userId",
		})
	}

	var pg models.Playgroup
	if err := db.Preload("Members").First(&pg, "id = ?", playgroupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "playgroup not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch playgroup",
		})
	}

	if !policy.Allows(actor, policy.ActionAddPlaygroupMember, playgroupResource(&pg)) {
		return forbidden(c)
	}

	// The leader is implicitly a member — adding them as a member row would
	// make them "appear twice" in the roster.
	if userID == pg.LeaderID {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "user is already a member of this playgroup",
		})
	}

	// Verify the user actually exists before adding them.
	var target models.User
	if err := db.First(&target, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "user not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "database error",
		})
	}

	member := models.PlaygroupMember{PlaygroupID: playgroupID, UserID: userID}
	if err := db.Create(&member).Error; err != nil {
		// TranslateError is enabled on the connection, so a unique-key violation
		// comes back as gorm.ErrDuplicatedKey on both Postgres and SQLite.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "user is already a member of this playgroup",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to add member",
		})
	}

	// Return the updated playgroup, roster included.
	if err := db.Preload("Members").Preload("Leader").First(&pg, "id = ?", playgroupID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch playgroup",
		})
	}

	return c.JSON(fiber.Map{"playgroup": playgroupToResponse(&pg)})
}
