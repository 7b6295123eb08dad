// This file handles the /api/v1/foursomes routes — reading a session's
// foursomes, replacing one foursome's roster, and regenerating the whole set.
//
// --- Partition invariant ---
// At creation time the foursomes are a true partition of the session roster:
// every player in exactly one group. Manual edits are then constrained so the
// invariant survives: a replacement roster must have 1–4 existing users, and
// a player who already sits in ANOTHER foursome of the same session is
// rejected with 409 — moving someone means removing them from their old
// group first. The check and the replacement run in one transaction.
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

// FoursomePlayerResponse is one roster slot in a foursome response.
type FoursomePlayerResponse struct {
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"` // Present when the player association was preloaded
}

// FoursomeResponse is what we send back for a foursome.
type FoursomeResponse struct {
	ID             string                   `json:"foursomeId"`
	SessionID      string                   `json:"sessionId"`
	FoursomeNumber int                      `json:"foursomeNumber"`
	Players        []FoursomePlayerResponse `json:"players"`
	UpdatedBy      *string                  `json:"updatedBy,omitempty"`
	CreatedAt      string                   `json:"createdAt"`
	UpdatedAt      string                   `json:"updatedAt"`
}

// UpdateFoursomeRequest is the JSON body we expect on PUT /api/v1/foursomes.
// A foursome can never be emptied (min=1) or overfilled (max=4).
type UpdateFoursomeRequest struct {
	FoursomeID string   `json:"foursomeId" validate:"required,uuid4"`
	PlayerIDs  []string `json:"playerIds" validate:"required,min=1,max=4,dive,uuid4"`
}

// RegenerateFoursomesRequest is the JSON body for POST /api/v1/foursomes/regenerate.
type RegenerateFoursomesRequest struct {
	SessionID string `json:"sessionId" validate:"required,uuid4"`
}

// errFoursomeClash aborts the roster-replacement transaction when a listed
// player is already assigned elsewhere in the same session.
var errFoursomeClash = errors.New("player already assigned in this session")

func foursomeToResponse(f *models.Foursome) FoursomeResponse {
	players := make([]FoursomePlayerResponse, 0, len(f.Players))
	for _, fp := range f.Players {
		players = append(players, FoursomePlayerResponse{
			UserID: fp.UserID.String(),
			Name:   fp.User.DisplayName,
		})
	}

	var updatedBy *string
	if f.UpdatedBy != nil {
		s := f.UpdatedBy.String()
		updatedBy = &s
	}

	return FoursomeResponse{
		ID:             f.ID.String(),
		SessionID:      f.SessionID.String(),
		FoursomeNumber: f.FoursomeNumber,
		Players:        players,
		UpdatedBy:      updatedBy,
		CreatedAt:      f.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      f.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// GetFoursomes returns a handler for GET /api/v1/foursomes?sessionId=<uuid>.
// Lists a session's foursomes in foursome-number order, rosters included.
// Caller must be a member or leader of the owning playgroup (or an admin).
func GetFoursomes(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := currentActor(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid user ID",
			})
		}

		idParam := c.Query("sessionId")
		if idParam == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "sessionId query parameter is required",
			})
		}
		sessionID, err := uuid.Parse(idParam)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid sessionId",
			})
		}

		var session models.Session
		if err := db.First(&session, "id = ?", sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "session not found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch session",
			})
		}

		pg, status, msg := loadPlaygroup(db, session.PlaygroupID)
		if pg == nil {
			return c.Status(status).JSON(fiber.Map{"error": msg})
		}
		if !policy.Allows(actor, policy.ActionReadSession, playgroupResource(pg)) {
			return forbidden(c)
		}

		var foursomes []models.Foursome
		if err := db.Preload("Players", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position ASC") // Keep roster order stable across reads
		}).Preload("Players.User").
			Where("session_id = ?", sessionID).
			Order("foursome_number ASC").
			Find(&foursomes).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch foursomes",
			})
		}

		response := make([]FoursomeResponse, 0, len(foursomes))
		for i := range foursomes {
			response = append(response, foursomeToResponse(&foursomes[i]))
		}
		return c.JSON(fiber.Map{"foursomes": response})
	}
}

// UpdateFoursome returns a handler for PUT /api/v1/foursomes.
// Fully replaces one foursome's roster. Only the leader of the session's
// playgroup (or an admin) may edit; every listed player must be an existing
// user; the roster size must be 1–4; and a player already placed in a
// different foursome of the same session is a conflict.
func UpdateFoursome(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := currentActor(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid user ID",
			})
		}

		var req UpdateFoursomeRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}
		if err := validate.Struct(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "foursomeId and 1-4 playerIds are required",
			})
		}

		foursomeID, err := uuid.Parse(req.FoursomeID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid foursomeId",
			})
		}

		// Parse the roster, rejecting repeats within the list itself.
		playerIDs := make([]uuid.UUID, 0, len(req.PlayerIDs))
		seen := make(map[uuid.UUID]bool, len(req.PlayerIDs))
		for _, raw := range req.PlayerIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid player ID",
				})
			}
			if seen[id] {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "playerIds contains a duplicate",
				})
			}
			seen[id] = true
			playerIDs = append(playerIDs, id)
		}

		var foursome models.Foursome
		if err := db.First(&foursome, "id = ?", foursomeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "foursome not found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch foursome",
			})
		}

		var session models.Session
		if err := db.First(&session, "id = ?", foursome.SessionID).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch session",
			})
		}
		pg, status, msg := loadPlaygroup(db, session.PlaygroupID)
		if pg == nil {
			return c.Status(status).JSON(fiber.Map{"error": msg})
		}
		if !policy.Allows(actor, policy.ActionEditFoursome, playgroupResource(pg)) {
			return forbidden(c)
		}

		// Every listed player must be a genuinely existing user. Arbitrary known
		// users can be inserted — the roster is deliberately not restricted to
		// the session's original partition, so a leader can slot in a substitute.
		var count int64
		if err := db.Model(&models.User{}).Where("id IN ?", playerIDs).Count(&count).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "database error",
			})
		}
		if count != int64(len(playerIDs)) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "user not found",
			})
		}

		txErr := db.Transaction(func(tx *gorm.DB) error {
			// A player already sitting in another foursome of this session would
			// break the partition invariant — the caller must remove them from
			// their old group first.
			var clashes int64
			if err := tx.Model(&models.FoursomePlayer{}).
				Joins("JOIN foursomes ON foursomes.id = foursome_players.foursome_id").
				Where("foursomes.session_id = ? AND foursome_players.foursome_id <> ? AND foursome_players.user_id IN ?",
					foursome.SessionID, foursomeID, playerIDs).
				Count(&clashes).Error; err != nil {
				return err
			}
			if clashes > 0 {
				return errFoursomeClash // Mapped to 409 below
			}

			// Replace the roster wholesale: delete the old rows, insert the new.
			if err := tx.Where("foursome_id = ?", foursomeID).
				Delete(&models.FoursomePlayer{}).Error; err != nil {
				return err
			}
			for pos, playerID := range playerIDs {
				fp := models.FoursomePlayer{FoursomeID: foursomeID, UserID: playerID, Position: pos}
				if err := tx.Create(&fp).Error; err != nil {
					return err
				}
			}

			return tx.Model(&foursome).Update("updated_by", actor.ID).Error
		})
		if txErr != nil {
			if errors.Is(txErr, errFoursomeClash) {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"error": "a player is already assigned to another foursome in this session",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to update foursome",
			})
		}

		// Reload with the fresh roster for the response.
		if err := db.Preload("Players", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position ASC")
		}).Preload("Players.User").First(&foursome, "id = ?", foursomeID).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch foursome",
			})
		}

		return c.JSON(fiber.Map{"foursome": foursomeToResponse(&foursome)})
	}
}

// RegenerateFoursomes returns a handler for POST /api/v1/foursomes/regenerate.
// Discards the session's entire foursome set — including any manual edits and
// the scorecards attached to the old foursomes — and re-partitions the
// playgroup's current roster from scratch. This is an explicit, destructive
// action; the client asks the leader to confirm before calling it.
func RegenerateFoursomes(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := currentActor(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid user ID",
			})
		}

		var req RegenerateFoursomesRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}
		if err := validate.Struct(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "sessionId is required",
			})
		}

		sessionID, err := uuid.Parse(req.SessionID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid sessionId",
			})
		}

		var session models.Session
		if err := db.First(&session, "id = ?", sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "session not found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch session",
			})
		}

		pg, status, msg := loadPlaygroup(db, session.PlaygroupID)
		if pg == nil {
			return c.Status(status).JSON(fiber.Map{"error": msg})
		}
		if !policy.Allows(actor, policy.ActionEditFoursome, playgroupResource(pg)) {
			return forbidden(c)
		}

		// Re-partition the playgroup's CURRENT roster — members added since the
		// session was created are picked up here.
		roster := make([]uuid.UUID, 0, len(pg.Members)+1)
		roster = append(roster, pg.LeaderID)
		for _, m := range pg.Members {
			roster = append(roster, m.UserID)
		}

		var foursomes []models.Foursome
		txErr := db.Transaction(func(tx *gorm.DB) error {
			// Tear down the old set: scorecards first (they reference foursomes),
			// then roster rows, then the foursomes themselves.
			if err := tx.Where("session_id = ?", sessionID).
				Delete(&models.Scorecard{}).Error; err != nil {
				return err
			}
			if err := tx.Where("foursome_id IN (?)",
				tx.Model(&models.Foursome{}).Select("id").Where("session_id = ?", sessionID),
			).Delete(&models.FoursomePlayer{}).Error; err != nil {
				return err
			}
			if err := tx.Where("session_id = ?", sessionID).
				Delete(&models.Foursome{}).Error; err != nil {
				return err
			}

			var err error
			foursomes, err = createFoursomes(tx, sessionID, roster)
			return err
		})
		if txErr != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to regenerate foursomes",
			})
		}

		response := make([]FoursomeResponse, 0, len(foursomes))
		for i := range foursomes {
			response = append(response, foursomeToResponse(&foursomes[i]))
		}
		return c.JSON(fiber.Map{"foursomes": response})
	}
}
