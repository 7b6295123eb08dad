package partition

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeRoster(n int) []uuid.UUID {
	roster := make([]uuid.UUID, n)
	for i := range roster {
		roster[i] = uuid.New()
	}
	return roster
}

func TestPartitionEmptyRoster(t *testing.T) {
	groups := Partition(nil, rand.New(rand.NewSource(1)))
	assert.Nil(t, groups)

	groups = Partition([]uuid.UUID{}, rand.New(rand.NewSource(1)))
	assert.Nil(t, groups)
}

// Every roster size from 1 to 25: the right number of groups, every group
// 1-4 players, only the last group short, and every player placed exactly once.
func TestPartitionCoversRoster(t *testing.T) {
	for n := 1; n <= 25; n++ {
		roster := makeRoster(n)
		groups := Partition(roster, rand.New(rand.NewSource(int64(n))))

		wantGroups := (n + GroupSize - 1) / GroupSize
		require.Len(t, groups, wantGroups, "roster of %d", n)

		seen := make(map[uuid.UUID]int, n)
		for i, group := range groups {
			require.NotEmpty(t, group, "roster of %d, group %d", n, i)
			require.LessOrEqual(t, len(group), GroupSize, "roster of %d, group %d", n, i)
			if i < len(groups)-1 {
				// Only the final group may hold fewer than four players.
				require.Len(t, group, GroupSize, "roster of %d, group %d", n, i)
			}
			for _, id := range group {
				seen[id]++
			}
		}

		require.Len(t, seen, n, "roster of %d: every player placed", n)
		for id, count := range seen {
			assert.Equal(t, 1, count, "roster of %d: player %s placed once", n, id)
		}
	}
}

func TestPartitionRemainderSizes(t *testing.T) {
	cases := []struct {
		roster    int
		lastGroup int
	}{
		{1, 1},
		{4, 4},
		{5, 1},
		{9, 1},
		{10, 2},
		{11, 3},
		{12, 4},
	}
	for _, tc := range cases {
		groups := Partition(makeRoster(tc.roster), rand.New(rand.NewSource(42)))
		assert.Len(t, groups[len(groups)-1], tc.lastGroup, "roster of %d", tc.roster)
	}
}

// Same roster, same seed: identical groups. Different seeds usually differ —
// the shuffle actually depends on the source it is given.
func TestPartitionDeterministicForFixedSeed(t *testing.T) {
	roster := makeRoster(10)

	first := Partition(roster, rand.New(rand.NewSource(7)))
	second := Partition(roster, rand.New(rand.NewSource(7)))
	assert.Equal(t, first, second)
}

func TestPartitionDoesNotModifyInput(t *testing.T) {
	roster := makeRoster(8)
	original := make([]uuid.UUID, len(roster))
	copy(original, roster)

	Partition(roster, rand.New(rand.NewSource(3)))
	assert.Equal(t, original, roster)
}
