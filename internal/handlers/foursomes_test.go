package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fairwayhq/playgroup-api/internal/models"
)

// tenPlayerSession seeds a leader plus nine members, creates a playgroup and
// a session, and returns the leader's token, the session id, and the
// generated foursomes.
func tenPlayerSession(t *testing.T, db *gorm.DB, app *fiber.App) (string, string, []any) {
	t.Helper()

	seedUser(t, db, "leader-1", "leader@example.com", models.UserRoleGroupLeader)
	leaderToken := mintToken(t, "leader-1", "leader@example.com", models.UserRoleGroupLeader)
	playgroupID := mustCreatePlaygroup(t, app, leaderToken, "Saturday Crew")

	for i := 0; i < 9; i++ {
		member := seedUser(t, db,
			fmt.Sprintf("player-%d", i),
			fmt.Sprintf("player%d@example.com", i),
			models.UserRolePlayer)
		mustAddMember(t, app, leaderToken, playgroupID, member.ID)
	}

	sessionID, foursomes := mustCreateSession(t, app, leaderToken, playgroupID)
	return leaderToken, sessionID, foursomes
}

func foursomePlayers(f any) []string {
	raw := f.(map[string]any)["players"].([]any)
	ids := make([]string, 0, len(raw))
	for _, p := range raw {
		ids = append(ids, p.(map[string]any)["userId"].(string))
	}
	return ids
}

func TestGetFoursomes(t *testing.T) {
	db := newTestDB(t)
	app := newTestApp(db)

	leaderToken, sessionID, created := tenPlayerSession(t, db, app)

	status, body := doJSON(t, app, http.MethodGet, "/api/v1/foursomes?sessionId="+sessionID, leaderToken, nil)
	require.Equal(t, http.StatusOK, status)

	foursomes := body["foursomes"].([]any)
	require.Len(t, foursomes, len(created))
	for i, f := range foursomes {
		assert.Equal(t, float64(i+1), f.(map[string]any)["foursomeNumber"])
	}

	status, _ = doJSON(t, app, http.MethodGet, "/api/v1/foursomes", leaderToken, nil)
	assert.Equal(t, http.StatusBadRequest, status, "sessionId is required")
}

func TestUpdateFoursomeReplacesRoster(t *testing.T) {
	db := newTestDB(t)
	app := newTestApp(db)

	leaderToken, _, foursomes := tenPlayerSession(t, db, app)

	first := foursomes[0].(map[string]any)
	foursomeID := first["foursomeId"].(string)
	players := foursomePlayers(first)
	require.Len(t, players, 4)

	// Shrink the group to its first two players.
	status, body := doJSON(t, app, http.MethodPut, "/api/v1/foursomes", leaderToken, fiber.Map{
		"foursomeId": foursomeID,
		"playerIds":  players[:2],
	})
	require.Equal(t, http.StatusOK, status, "%v", body)

	updated := body["foursome"].(map[string]any)
	assert.ElementsMatch(t, players[:2], foursomePlayers(updated))
	assert.NotNil(t, updated["updatedBy"], "manual edits record the editor")
}

func TestUpdateFoursomeRejectsCrossFoursomeClash(t *testing.T) {
	db := newTestDB(t)
	app := newTestApp(db)

	leaderToken, _, foursomes := tenPlayerSession(t, db, app)
	require.GreaterOrEqual(t, len(foursomes), 2)

	first := foursomes[0].(map[string]any)
	second := foursomes[1].(map[string]any)

	// Try to pull a player from the second foursome into the first without
	// removing them from the second: that's two seats for one player.
	poached := foursomePlayers(second)[0]
	newRoster := append(foursomePlayers(first)[:3], poached)

	status, body := doJSON(t, app, http.MethodPut, "/api/v1/foursomes", leaderToken, fiber.Map{
		"foursomeId": first["foursomeId"],
		"playerIds":  newRoster,
	})
	assert.Equal(t, http.StatusConflict, status, "%v", body)
}

func TestUpdateFoursomeMoveAfterRemoval(t *testing.T) {
	db := newTestDB(t)
	app := newTestApp(db)

	leaderToken, _, foursomes := tenPlayerSession(t, db, app)

	first := foursomes[0].(map[string]any)
	second := foursomes[1].(map[string]any)
	moving := foursomePlayers(second)[0]

	// Step 1: remove the player from their old foursome.
	remaining := foursomePlayers(second)[1:]
	require.NotEmpty(t, remaining)
	status, _ := doJSON(t, app, http.MethodPut, "/api/v1/foursomes", leaderToken, fiber.Map{
		"foursomeId": second["foursomeId"],
		"playerIds":  remaining,
	})
	require.Equal(t, http.StatusOK, status)

	// Step 2: the move is now allowed.
	status, body := doJSON(t, app, http.MethodPut, "/api/v1/foursomes", leaderToken, fiber.Map{
		"foursomeId": first["foursomeId"],
		"playerIds":  append(foursomePlayers(first)[:3], moving),
	})
	assert.Equal(t, http.StatusOK, status, "%v", body)
}

func TestUpdateFoursomeValidation(t *testing.T) {
	db := newTestDB(t)
	app := newTestApp(db)

	leaderToken, _, foursomes := tenPlayerSession(t, db, app)
	first := foursomes[0].(map[string]any)
	foursomeID := first["foursomeId"].(string)
	players := foursomePlayers(first)

	// Five players can't share a tee time.
	five := append([]string{}, players...)
	five = append(five, foursomePlayers(foursomes[1])[0])
	status, _ := doJSON(t, app, http.MethodPut, "/api/v1/foursomes", leaderToken, fiber.Map{
		"foursomeId": foursomeID,
		"playerIds":  five,
	})
	assert.Equal(t, http.StatusBadRequest, status, "max four players")

	status, _ = doJSON(t, app, http.MethodPut, "/api/v1/foursomes", leaderToken, fiber.Map{
		"foursomeId": foursomeID,
		"playerIds":  []string{},
	})
	assert.Equal(t, http.StatusBadRequest, status, "a foursome can't be emptied")

	status, _ = doJSON(t, app, http.MethodPut, "/api/v1/foursomes", leaderToken, fiber.Map{
		"foursomeId": foursomeID,
		"playerIds":  []string{players[0], players[0]},
	})
	assert.Equal(t, http.StatusBadRequest, status, "duplicate player in the list")

	status, _ = doJSON(t, app, http.MethodPut, "/api/v1/foursomes", leaderToken, fiber.Map{
		"foursomeId": foursomeID,
		"playerIds":  []string{"0dbd2178-66c2-4e8e-8c27-000000000000"},
	})
	assert.Equal(t, http.StatusNotFound, status, "unknown user")
}

func TestUpdateFoursomeForbiddenForMember(t *testing.T) {
	db := newTestDB(t)
	app := newTestApp(db)

	_, _, foursomes := tenPlayerSession(t, db, app)
	first := foursomes[0].(map[string]any)

	// player-0 was seeded as a member by tenPlayerSession.
	memberToken := mintToken(t, "player-0", "player0@example.com", models.UserRolePlayer)
	status, _ := doJSON(t, app, http.MethodPut, "/api/v1/foursomes", memberToken, fiber.Map{
		"foursomeId": first["foursomeId"],
		"playerIds":  foursomePlayers(first)[:2],
	})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestRegenerateFoursomes(t *testing.T) {
	db := newTestDB(t)
	app := newTestApp(db)

	leaderToken, sessionID, original := tenPlayerSession(t, db, app)

	originalIDs := make(map[string]bool, len(original))
	rosterIDs := make(map[string]bool)
	for _, f := range original {
		originalIDs[f.(map[string]any)["foursomeId"].(string)] = true
		for _, id := range foursomePlayers(f) {
			rosterIDs[id] = true
		}
	}

	status, body := doJSON(t, app, http.MethodPost, "/api/v1/foursomes/regenerate", leaderToken, fiber.Map{
		"sessionId": sessionID,
	})
	require.Equal(t, http.StatusOK, status, "%v", body)

	regenerated := body["foursomes"].([]any)
	require.Len(t, regenerated, len(original))

	covered := make(map[string]bool)
	for _, f := range regenerated {
		assert.False(t, originalIDs[f.(map[string]any)["foursomeId"].(string)],
			"regeneration builds fresh foursome records")
		for _, id := range foursomePlayers(f) {
			require.False(t, covered[id], "player %s placed twice", id)
			covered[id] = true
		}
	}
	assert.Len(t, covered, len(rosterIDs), "regeneration still covers the full roster")

	// The old foursomes are gone from reads too.
	status, body = doJSON(t, app, http.MethodGet, "/api/v1/foursomes?sessionId="+sessionID, leaderToken, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["foursomes"].([]any), len(regenerated))
}

func TestRegenerateFoursomesDiscardsScorecards(t *testing.T) {
	db := newTestDB(t)
	app := newTestApp(db)

	leaderToken, sessionID, foursomes := tenPlayerSession(t, db, app)
	first := foursomes[0].(map[string]any)

	// Enter a score for one player, then regenerate.
	status, _ := doJSON(t, app, http.MethodPut, "/api/v1/scores", leaderToken, fiber.Map{
		"foursomeId": first["foursomeId"],
		"playerId":   foursomePlayers(first)[0],
		"holes":      repeatHoles(4),
	})
	require.Equal(t, http.StatusOK, status)

	status, _ = doJSON(t, app, http.MethodPost, "/api/v1/foursomes/regenerate", leaderToken, fiber.Map{
		"sessionId": sessionID,
	})
	require.Equal(t, http.StatusOK, status)

	status, body := doJSON(t, app, http.MethodGet, "/api/v1/scores?sessionId="+sessionID, leaderToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["scores"].([]any), "scorecards attached to discarded foursomes go with them")
}
