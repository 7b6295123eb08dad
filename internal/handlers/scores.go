// This file handles the /api/v1/scores and /api/v1/leaderboard routes —
// submitting 18-hole scorecards and reading them back, individually or
// rolled up into a ranked session leaderboard.
//
// A scorecard is keyed by (foursomeId, playerId) and written whole:
// submitting again overwrites the previous card unconditionally —
// last-write-wins, no merging, no conflict detection. The one exception is
// finality: once a player marks their card "submitted", they can no longer
// overwrite it themselves; the playgroup leader or an admin still can.
package handlers

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fairwayhq/playgroup-api/internal/models"
	"github.com/fairwayhq/playgroup-api/internal/policy"
	"github.com/fairwayhq/playgroup-api/internal/scoring"
	"github.com/fairwayhq/playgroup-api/internal/websocket"
)

// ScoreResponse is what we send back for one scorecard.
// FrontNine and BackNine are derived on the way out — never stored.
type ScoreResponse struct {
	FoursomeID string `json:"foursomeId"`
	PlayerID   string `json:"playerId"`
	SessionID  string `json:"sessionId"`
	Holes      []int  `json:"holes"`
	TotalScore int    `json:"totalScore"`
	FrontNine  int    `json:"frontNine"`
	BackNine   int    `json:"backNine"`
	Status     string `json:"status"`
	UpdatedBy  string `json:"updatedBy"`
	UpdatedAt  string `json:"updatedAt"`
}

// PutScoreRequest is the JSON body we expect on PUT /api/v1/scores.
// Status is optional: omitted or "draft" saves a draft, "submitted" finalizes.
type PutScoreRequest struct {
	FoursomeID string `json:"foursomeId" validate:"required,uuid4"`
	PlayerID   string `json:"playerId" validate:"required,uuid4"`
	Holes      []int  `json:"holes" validate:"required"`
	Status     string `json:"status" validate:"omitempty,oneof=draft submitted"`
}

// LeaderboardRow is one ranked entry of the session leaderboard response.
type LeaderboardRow struct {
	Rank       int    `json:"rank"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Holes      []int  `json:"holes"`
	TotalScore int    `json:"totalScore"`
	FrontNine  int    `json:"frontNine"`
	BackNine   int    `json:"backNine"`
}

func scoreToResponse(sc *models.Scorecard) ScoreResponse {
	return ScoreResponse{
		FoursomeID: sc.FoursomeID.String(),
		PlayerID:   sc.PlayerID.String(),
		SessionID:  sc.SessionID.String(),
		Holes:      sc.Holes,
		TotalScore: sc.TotalScore,
		FrontNine:  scoring.FrontNine(sc.Holes),
		BackNine:   scoring.BackNine(sc.Holes),
		Status:     string(sc.Status),
		UpdatedBy:  sc.UpdatedBy.String(),
		UpdatedAt:  sc.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// GetScores returns a handler for GET /api/v1/scores.
// Exactly one filter is expected; they are tried in priority order:
//   - ?foursomeId= — that foursome's cards
//   - ?sessionId=  — every card in the session
//   - ?playerId=   — one player's cards across sessions (self or admin only)
//
// A player with no card yet is simply absent from the result — "not yet
// entered" is an empty slot for the client to offer a blank form, never an error.
func GetScores(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := currentActor(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid user ID",
			})
		}

		if idParam := c.Query("foursomeId"); idParam != "" {
			foursomeID, err := uuid.Parse(idParam)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid foursomeId",
				})
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

			if ok, resp := authorizeSessionRead(c, db, actor, foursome.SessionID); !ok {
				return resp
			}

			return respondScores(c, db, db.Where("foursome_id = ?", foursomeID))
		}

		if idParam := c.Query("sessionId"); idParam != "" {
			sessionID, err := uuid.Parse(idParam)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid sessionId",
				})
			}

			if ok, resp := authorizeSessionRead(c, db, actor, sessionID); !ok {
				return resp
			}

			return respondScores(c, db, db.Where("session_id = ?", sessionID))
		}

		if idParam := c.Query("playerId"); idParam != "" {
			playerID, err := uuid.Parse(idParam)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid playerId",
				})
			}

			// Cross-session history is personal: only the player themself or an
			// admin can pull it (there's no single playgroup to scope a member
			// check to).
			if actor.ID != playerID && actor.Role != models.UserRoleAdmin {
				return forbidden(c)
			}

			return respondScores(c, db, db.Where("player_id = ?", playerID))
		}

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "foursomeId, sessionId, or playerId query parameter required",
		})
	}
}

// respondScores runs the filtered scorecard query and writes the JSON list.
func respondScores(c *fiber.Ctx, db *gorm.DB, query *gorm.DB) error {
	var cards []models.Scorecard
	if err := query.Find(&cards).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch scores",
		})
	}

	response := make([]ScoreResponse, 0, len(cards))
	for i := range cards {
		response = append(response, scoreToResponse(&cards[i]))
	}
	return c.JSON(fiber.Map{"scores": response})
}

// authorizeSessionRead checks that the actor may read score data for the
// session (playgroup member, leader, or admin). Returns (false, response)
// when the request should stop.
func authorizeSessionRead(c *fiber.Ctx, db *gorm.DB, actor policy.Actor, sessionID uuid.UUID) (bool, error) {
	var session models.Session
	if err := db.First(&session, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "session not found",
			})
		}
		return false, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch session",
		})
	}

	pg, status, msg := loadPlaygroup(db, session.PlaygroupID)
	if pg == nil {
		return false, c.Status(status).JSON(fiber.Map{"error": msg})
	}
	if !policy.Allows(actor, policy.ActionReadScores, playgroupResource(pg)) {
		return false, forbidden(c)
	}
	return true, nil
}

// PutScore returns a handler for PUT /api/v1/scores.
// Validates the 18-hole array, checks the target player is actually in the
// foursome, authorizes the write (the player themself, the playgroup's
// leader, or an admin), recomputes the total server-side, and upserts the
// card. Every successful write is broadcast to clients watching the session.
func PutScore(db *gorm.DB, hub *websocket.Hub) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := currentActor(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid user ID",
			})
		}

		var req PutScoreRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}
		if err := validate.Struct(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "foursomeId, playerId, and holes are required",
			})
		}

		// Shape-check the scorecard itself: exactly 18 entries, none negative.
		// (A non-numeric entry never reaches this point — Fiber's JSON parsing
		// rejects the body outright.)
		if err := scoring.ValidateHoles(req.Holes); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		foursomeID, err := uuid.Parse(req.FoursomeID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid foursomeId",
			})
		}
		playerID, err := uuid.Parse(req.PlayerID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid playerId",
			})
		}

		var foursome models.Foursome
		if err := db.Preload("Players").First(&foursome, "id = ?", foursomeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "foursome not found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch foursome",
			})
		}

		// The target player must currently be on the foursome's roster.
		inFoursome := false
		for _, fp := range foursome.Players {
			if fp.UserID == playerID {
				inFoursome = true
				break
			}
		}
		if !inFoursome {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "player is not in this foursome",
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

		res := playgroupResource(pg)
		res.TargetPlayerID = playerID
		if !policy.Allows(actor, policy.ActionSubmitScore, res) {
			return forbidden(c)
		}

		// Finality check: a player cannot overwrite their own submitted card.
		// The leader and admins can — that's the correction path for a card
		// submitted with a typo.
		var existing models.Scorecard
		findErr := db.Where("foursome_id = ? AND player_id = ?", foursomeID, playerID).
			First(&existing).Error
		if findErr != nil && !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "database error",
			})
		}
		if findErr == nil && existing.Status == models.ScorecardStatusSubmitted &&
			actor.ID == playerID && actor.Role != models.UserRoleAdmin && actor.ID != pg.LeaderID {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "scorecard has already been submitted",
			})
		}

		cardStatus := models.ScorecardStatus(req.Status)
		if cardStatus == "" {
			cardStatus = models.ScorecardStatusDraft
		}

		card := models.Scorecard{
			FoursomeID: foursomeID,
			PlayerID:   playerID,
			SessionID:  foursome.SessionID,
			Holes:      req.Holes,
			TotalScore: scoring.Total(req.Holes), // Derived — the caller never supplies it
			Status:     cardStatus,
			UpdatedBy:  actor.ID,
		}

		// Upsert keyed on (foursome_id, player_id): one atomic statement, so two
		// racing writes resolve to whichever reaches the database last —
		// last-write-wins by design, no read-modify-write window.
		if err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "foursome_id"}, {Name: "player_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"holes", "total_score", "status", "updated_by", "updated_at",
			}),
		}).Create(&card).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to save score",
			})
		}

		// Reload so the response carries the stored timestamps.
		if err := db.Where("foursome_id = ? AND player_id = ?", foursomeID, playerID).
			First(&card).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch score",
			})
		}

		// Push the update to everyone watching this session live.
		if hub != nil {
			if payload, err := json.Marshal(fiber.Map{
				"type":       "score",
				"sessionId":  card.SessionID.String(),
				"playerId":   card.PlayerID.String(),
				"totalScore": card.TotalScore,
				"status":     string(card.Status),
			}); err == nil {
				hub.BroadcastToSession(card.SessionID.String(), payload)
			}
		}

		return c.JSON(fiber.Map{"score": scoreToResponse(&card)})
	}
}

// GetLeaderboard returns a handler for GET /api/v1/leaderboard?sessionId=<uuid>.
// Gathers the session's SUBMITTED scorecards and ranks them ascending by
// total score (lower is better). Drafts stay off the board until their player
// finalizes them.
func GetLeaderboard(db *gorm.DB) fiber.Handler {
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

		if ok, resp := authorizeSessionRead(c, db, actor, sessionID); !ok {
			return resp
		}

		var cards []models.Scorecard
		if err := db.Preload("Player").
			Where("session_id = ? AND status = ?", sessionID, models.ScorecardStatusSubmitted).
			Find(&cards).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch scores",
			})
		}

		entries := make([]scoring.LeaderboardEntry, 0, len(cards))
		for i := range cards {
			entries = append(entries, scoring.LeaderboardEntry{
				PlayerID:   cards[i].PlayerID,
				PlayerName: cards[i].Player.DisplayName,
				Holes:      cards[i].Holes,
				TotalScore: cards[i].TotalScore,
				FrontNine:  scoring.FrontNine(cards[i].Holes),
				BackNine:   scoring.BackNine(cards[i].Holes),
			})
		}

		ranked := scoring.Rank(entries)

		response := make([]LeaderboardRow, 0, len(ranked))
		for _, e := range ranked {
			response = append(response, LeaderboardRow{
				Rank:       e.Rank,
				PlayerID:   e.PlayerID.String(),
				PlayerName: e.PlayerName,
				Holes:      e.Holes,
				TotalScore: e.TotalScore,
				FrontNine:  e.FrontNine,
				BackNine:   e.BackNine,
			})
		}

		return c.JSON(fiber.Map{"leaderboard": response})
	}
}
