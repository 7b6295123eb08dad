// Package partition implements the foursome partitioner: splitting a session's
// player roster into random groups of at most four.
//
// This is a pure function — it touches no database and keeps no state. The
// caller (the sessions handler) is responsible for persisting the resulting
// groups as Foursome records and for numbering them.
package partition

import (
	// math/rand (not crypto/rand) is the right tool here: pairings need to be
	// unpredictable to players, not cryptographically secure. Taking a *rand.Rand
	// as a parameter lets production pass a time-seeded source while tests pass
	// a fixed seed and assert the exact output.
	"math/rand"

	"github.com/google/uuid"
)

// GroupSize is the maximum number of players per foursome.
const GroupSize = 4

// Partition shuffles the roster uniformly at random and slices it into
// consecutive groups of four. The final group holds the remainder (1–4
// players), so group sizes are 4,4,...,4,r — no group is ever empty, and a
// roster smaller than four still produces exactly one group containing
// everyone. An empty roster produces an empty result.
//
// Note the distribution is deliberately NOT balanced: 9 players yields
// groups of 4,4,1 rather than 3,3,3. Simplicity over fairness — leaders can
// hand-edit the groups afterwards.
//
// The input slice is not modified; the shuffle operates on a copy.
func Partition(playerIDs []uuid.UUID, rng *rand.Rand) [][]uuid.UUID {
	if len(playerIDs) == 0 {
		return nil
	}

	// Copy before shuffling so the caller's slice is left untouched.
	shuffled := make([]uuid.UUID, len(playerIDs))
	copy(shuffled, playerIDs)

	// Fisher–Yates shuffle via the injected random source.
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	// Slice the shuffled roster into consecutive chunks of four.
	groups := make([][]uuid.UUID, 0, (len(shuffled)+GroupSize-1)/GroupSize)
	for start := 0; start < len(shuffled); start += GroupSize {
		end := start + GroupSize
		if end > len(shuffled) {
			end = len(shuffled) // Final chunk: the remainder (1–4 players)
		}
		groups = append(groups, shuffled[start:end])
	}

	return groups
}
