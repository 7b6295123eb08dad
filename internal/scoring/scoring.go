// Package scoring holds the score aggregation logic: scorecard validation,
// total/front-nine/back-nine derivations, and the session leaderboard ranking.
//
// Everything in this package is a pure function over in-memory values.
// Persistence and authorization live in the handlers; this package never
// sees a database handle.
package scoring

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// HolesPerRound is the number of holes on a full scorecard.
// Nine-hole rounds are not supported — a card is always exactly 18 entries.
const HolesPerRound = 18

// ValidateHoles checks that a submitted holes array is well-formed:
// exactly 18 entries, each a non-negative integer. A zero is allowed
// (it represents a hole not yet played on a draft card).
func ValidateHoles(holes []int) error {
	if len(holes) != HolesPerRound {
		return fmt.Errorf("holes must contain exactly %d scores, got %d", HolesPerRound, len(holes))
	}
	for i, strokes := range holes {
		if strokes < 0 {
			return fmt.Errorf("hole %d has a negative score", i+1)
		}
	}
	return nil
}

// Total returns the sum of all hole scores. This is the stored TotalScore —
// recomputed on every write, never trusted from the caller.
func Total(holes []int) int {
	sum := 0
	for _, strokes := range holes {
		sum += strokes
	}
	return sum
}

// FrontNine returns the total for holes 1–9.
// Derived on demand for display; never stored separately.
func FrontNine(holes []int) int {
	if len(holes) < 9 {
		return Total(holes)
	}
	return Total(holes[:9])
}

// BackNine returns the total for holes 10–18.
func BackNine(holes []int) int {
	if len(holes) < 9 {
		return 0
	}
	return Total(holes[9:])
}

// LeaderboardEntry is one ranked row of a session leaderboard.
type LeaderboardEntry struct {
	PlayerID   uuid.UUID
	PlayerName string
	Holes      []int
	TotalScore int
	FrontNine  int
	BackNine   int
	Rank       int // 1-based position after sorting; tied totals share a rank
}

// Rank sorts leaderboard entries ascending by total score — lower is better,
// standard golf stroke play — and assigns 1-based ranks with ties sharing a
// rank (two players on 72 are both rank 1; the next player is rank 3).
//
// Ties on total score break deterministically by player ID string, so the
// same set of cards always produces the same ordering regardless of the
// order they came back from the database.
//
// The input slice is sorted in place and returned for convenience.
func Rank(entries []LeaderboardEntry) []LeaderboardEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].TotalScore != entries[j].TotalScore {
			return entries[i].TotalScore < entries[j].TotalScore
		}
		return entries[i].PlayerID.String() < entries[j].PlayerID.String()
	})

	for i := range entries {
		if i > 0 && entries[i].TotalScore == entries[i-1].TotalScore {
			entries[i].Rank = entries[i-1].Rank // Tied — share the previous rank
		} else {
			entries[i].Rank = i + 1
		}
	}

	return entries
}
