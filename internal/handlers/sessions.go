// This file handles the /api/v1/sessions routes — listing sessions and
// creating a session, which immediately partitions the playgroup's roster
// into foursomes.
//
// Session creation is the one multi-record write in the system: the session
// row plus all of its foursome rows go into a single database transaction,
// so a half-written foursome set can never be left behind.
package handlers

import (
	"errors"
	"math/rand"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fairwayhq/playgroup-api/internal/models"
	"github.com/fairwayhq/playgroup-api/internal/partition"
	"github.com/fairwayhq/playgroup-api/internal/policy"
)

// SessionResponse is what we send back for a session.
type SessionResponse struct {
	ID          string `json:"sessionId"`
	PlaygroupID string `json:"playgroupId"`
	Date        string `json:"date"` // "YYYY-MM-DD"
	TeeTime     string `json:"time"` // "HH:MM"
	CourseName  string `json:"courseName"`
	Status      string `json:"status"`
	CreatedBy   string `json:"createdBy"`
	CreatedAt   string `json:"createdAt"`
}

// CreateSessionRequest is the JSON body we expect on POST /api/v1/sessions.
// The validate tags do the shape checking: date must parse as YYYY-MM-DD and
// time as HH:MM before the handler touches the database.
type CreateSessionRequest struct {
	PlaygroupID string `json:"playgroupId" validate:"required,uuid4"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	TeeTime     string `json:"time" validate:"required,datetime=15:04"`
	CourseName  string `json:"courseName"`
}

func sessionToResponse(s *models.Session) SessionResponse {
	return SessionResponse{
		ID:          s.ID.String(),
		PlaygroupID: s.PlaygroupID.String(),
		Date:        s.Date.UTC().Format("2006-01-02"),
		TeeTime:     s.TeeTime,
		CourseName:  s.CourseName,
		Status:      string(s.Status),
		CreatedBy:   s.CreatedBy.String(),
		CreatedAt:   s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// newRosterRNG builds the random source for a partition run. Each call gets
// its own *rand.Rand because rand.Rand is not safe for concurrent use and
// handlers run on many goroutines.
func newRosterRNG() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// GetSessions returns a handler for GET /api/v1/sessions.
//   - ?sessionId=<uuid> fetches one session.
//   - ?playgroupId=<uuid> lists a playgroup's sessions, newest date first.
//
// Either way the caller must be a member or leader of the owning playgroup
// (or an admin).
func GetSessions(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := currentActor(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid user ID",
			})
		}

		if idParam := c.Query("sessionId"); idParam != "" {
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

			return c.JSON(fiber.Map{"session": sessionToResponse(&session)})
		}

		if idParam := c.Query("playgroupId"); idParam != "" {
			playgroupID, err := uuid.Parse(idParam)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid playgroupId",
				})
			}

			pg, status, msg := loadPlaygroup(db, playgroupID)
			if pg == nil {
				return c.Status(status).JSON(fiber.Map{"error": msg})
			}
			if !policy.Allows(actor, policy.ActionReadSession, playgroupResource(pg)) {
				return forbidden(c)
			}

			var sessions []models.Session
			if err := db.Where("playgroup_id = ?", playgroupID).
				Order("date DESC").Find(&sessions).Error; err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "failed to fetch sessions",
				})
			}

			response := make([]SessionResponse, 0, len(sessions))
			for i := range sessions {
				response = append(response, sessionToResponse(&sessions[i]))
			}
			return c.JSON(fiber.Map{"sessions": response})
		}

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "sessionId or playgroupId query parameter required",
		})
	}
}

// CreateSession returns a handler for POST /api/v1/sessions.
// Only the playgroup's leader (or an admin) can schedule a session.
// Creating the session immediately partitions the full roster — leader plus
// all members — into random foursomes, all inside one transaction.
func CreateSession(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := currentActor(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid user ID",
			})
		}

		var req CreateSessionRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}
		if err := validate.Struct(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "playgroupId, date (YYYY-MM-DD), and time (HH:MM) are required",
			})
		}

		playgroupID, err := uuid.Parse(req.PlaygroupID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid playgroupId",
			})
		}

		pg, status, msg := loadPlaygroup(db, playgroupID)
		if pg == nil {
			return c.Status(status).JSON(fiber.Map{"error": msg})
		}
		if !policy.Allows(actor, policy.ActionCreateSession, playgroupResource(pg)) {
			return forbidden(c)
		}

		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "date must be in YYYY-MM-DD format",
			})
		}

		courseName := req.CourseName
		if courseName == "" {
			courseName = "Default Course"
		}

		// The session roster is the leader plus every member.
		roster := make([]uuid.UUID, 0, len(pg.Members)+1)
		roster = append(roster, pg.LeaderID)
		for _, m := range pg.Members {
			roster = append(roster, m.UserID)
		}

		// Create the session and its foursomes in one transaction: if any
		// foursome insert fails, the session rolls back with it — there is no
		// partially-generated state to repair.
		var session models.Session
		var foursomes []models.Foursome

		txErr := db.Transaction(func(tx *gorm.DB) error {
			session = models.Session{
				PlaygroupID: playgroupID,
				Date:        date,
				TeeTime:     req.TeeTime,
				CourseName:  courseName,
				Status:      models.SessionStatusScheduled,
				CreatedBy:   actor.ID,
			}
			if err := tx.Create(&session).Error; err != nil {
				return err // Returning an error causes the transaction to roll back
			}

			var err error
			foursomes, err = createFoursomes(tx, session.ID, roster)
			return err
		})
		if txErr != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to create session",
			})
		}

		response := make([]FoursomeResponse, 0, len(foursomes))
		for i := range foursomes {
			response = append(response, foursomeToResponse(&foursomes[i]))
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"session":   sessionToResponse(&session),
			"foursomes": response,
		})
	}
}

// createFoursomes partitions the roster and inserts the resulting foursome
// records inside the caller's transaction. Shared by session creation and
// foursome regeneration. Returns the created foursomes with their Players
// association populated.
func createFoursomes(tx *gorm.DB, sessionID uuid.UUID, roster []uuid.UUID) ([]models.Foursome, error) {
	groups := partition.Partition(roster, newRosterRNG())

	foursomes := make([]models.Foursome, 0, len(groups))
	for i, group := range groups {
		f := models.Foursome{
			SessionID:      sessionID,
			FoursomeNumber: i + 1, // Numbering is the chunk's position in the shuffled sequence
		}
		if err := tx.Create(&f).Error; err != nil {
			return nil, err
		}

		for pos, playerID := range group {
			fp := models.FoursomePlayer{
				FoursomeID: f.ID,
				UserID:     playerID,
				Position:   pos,
			}
			if err := tx.Create(&fp).Error; err != nil {
				return nil, err
			}
			f.Players = append(f.Players, fp)
		}

		foursomes = append(foursomes, f)
	}

	return foursomes, nil
}

// loadPlaygroup fetches a playgroup with its members for policy checks.
// Returns (nil, status, message) on failure so callers can respond directly.
func loadPlaygroup(db *gorm.DB, playgroupID uuid.UUID) (*models.Playgroup, int, string) {
	var pg models.Playgroup
	if err := db.Preload("Members").First(&pg, "id = ?", playgroupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.StatusNotFound, "playgroup not found"
		}
		return nil, fiber.StatusInternalServerError, "failed to fetch playgroup"
	}
	return &pg, 0, ""
}
