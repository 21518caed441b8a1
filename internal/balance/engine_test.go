package balance

import (
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePlayers(ratings ...int) []Player {
	players := make([]Player, len(ratings))
	for i, r := range ratings {
		players[i] = Player{ID: int64(i + 1), Name: fmt.Sprintf("p%d", i+1), MMR: r}
	}
	return players
}

// bruteForceMinDiff checks every 5-subset, mirrors included.
func bruteForceMinDiff(players []Player) float64 {
	best := math.Inf(1)
	for mask := 0; mask < 1<<QueueSize; mask++ {
		var a, b, n int
		for i := range QueueSize {
			if mask&(1<<i) != 0 {
				a += players[i].MMR
				n++
			} else {
				b += players[i].MMR
			}
		}
		if n != TeamSize {
			continue
		}
		best = math.Min(best, math.Abs(float64(a-b))/TeamSize)
	}
	return best
}

func TestPartitionCount(t *testing.T) {
	assert.Len(t, partitions, 126)
	for _, p := range partitions {
		assert.Equal(t, 0, p[0])
	}
}

func TestBalance_PanicsOnWrongPlayerCount(t *testing.T) {
	e := New(Options{})
	assert.Panics(t, func() { e.Balance(makePlayers(1, 2, 3, 4, 5, 6, 7, 8, 9)) })
	assert.Panics(t, func() { e.Balance(makePlayers(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11)) })
}

func TestBalance_AllPartitionsAreDistinct(t *testing.T) {
	answers := New(Options{TopK: 500}).Balance(makePlayers(1000, 1100, 1200, 1300, 1400, 1500, 1600, 1700, 1800, 1900))
	require.Len(t, answers, 126)

	seen := map[string]bool{}
	for _, a := range answers {
		require.Len(t, a.Teams[0].Players, TeamSize)
		require.Len(t, a.Teams[1].Players, TeamSize)
		assert.Equal(t, int64(1), a.Teams[0].Players[0].PlayerID, "side 0 always holds the first player")
		key := fmt.Sprint(a.PlayerIDs(0))
		assert.False(t, seen[key], "duplicate partition %s", key)
		seen[key] = true
	}
}

func TestBalance_IdenticalRatings(t *testing.T) {
	answers := New(Options{}).Balance(makePlayers(3000, 3000, 3000, 3000, 3000, 3000, 3000, 3000, 3000, 3000))
	require.Len(t, answers, 1)
	assert.Zero(t, answers[0].MMRDiff)
	assert.Equal(t, 3000, answers[0].Teams[0].AvgMMR)
	assert.Equal(t, 3000, answers[0].Teams[1].AvgMMR)
}

func TestBalance_Deterministic(t *testing.T) {
	players := makePlayers(4200, 1800, 3300, 2950, 5100, 2400, 3600, 4100, 2000, 3900)
	players[2].Roles = &[TeamSize]int{1, 5, 5, 5, 5}
	players[7].Roles = &[TeamSize]int{5, 1, 2, 4, 5}
	e := New(Options{TopK: 20, UseRoles: true, RoleWeight: 5, TieEpsilon: 10})

	first := e.Balance(players)
	for range 5 {
		assert.Empty(t, cmp.Diff(first, e.Balance(players)))
	}
}

func TestBalance_TopCandidateHasMinimalDiff(t *testing.T) {
	players := makePlayers(4200, 1800, 3300, 2950, 5100, 2400, 3600, 4100, 2000, 3900)
	answers := New(Options{TopK: 126}).Balance(players)
	for _, a := range answers[1:] {
		assert.LessOrEqual(t, answers[0].MMRDiff, a.MMRDiff)
	}
	assert.InDelta(t, bruteForceMinDiff(players), answers[0].MMRDiff, 1e-9)
	for i := 1; i < len(answers); i++ {
		assert.LessOrEqual(t, answers[i-1].Cost, answers[i].Cost, "answers must be ranked by cost")
		assert.Equal(t, i, answers[i].Rank)
	}
}

func TestBalance_TwoRatingClusters(t *testing.T) {
	players := makePlayers(5000, 5000, 5000, 5000, 5000, 3000, 3000, 3000, 3000, 3000)
	best := New(Options{}).Balance(players)[0]

	assert.InDelta(t, bruteForceMinDiff(players), best.MMRDiff, 1e-9)
	assert.Equal(t, 400.0, best.MMRDiff)
	assert.Equal(t, 400, best.MMRDiffRounded())

	highs := 0
	for _, p := range best.Teams[0].Players {
		if p.MMR == 5000 {
			highs++
		}
	}
	assert.Contains(t, []int{2, 3}, highs, "the high cluster must be split across both sides")
}

func TestBalance_RoleFitBreaksTies(t *testing.T) {
	players := makePlayers(3000, 3000, 3000, 3000, 3000, 3000, 3000, 3000, 3000, 3000)
	for i := range players {
		prefs := [TeamSize]int{5, 5, 5, 5, 5}
		prefs[i%TeamSize] = 1
		players[i].Roles = &prefs
	}

	best := New(Options{UseRoles: true}).Balance(players)[0]
	assert.Zero(t, best.MMRDiff)
	assert.Zero(t, best.RoleCost)
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, best.PlayerIDs(0))
	for i, e := range best.Teams[0].Players {
		assert.Equal(t, RoleNames[i], e.Role)
	}
	require.NotNil(t, best.Teams[1].RoleScoreSum)
	assert.Zero(t, *best.Teams[1].RoleScoreSum)

	withoutRoles := New(Options{}).Balance(players)[0]
	assert.Nil(t, withoutRoles.Teams[0].RoleScoreSum)
	assert.Empty(t, withoutRoles.Teams[0].Players[0].Role)
}

func TestBalance_RoleWeightTradesMMRForFit(t *testing.T) {
	// Two carries (ids 1 and 2) whose ratings cancel out when they play
	// together. Splitting them costs 40 mmr diff but saves 4 role points.
	players := makePlayers(3100, 2900, 3000, 3000, 3000, 3000, 3000, 3000, 3000, 3000)
	players[0].Roles = &[TeamSize]int{1, 5, 5, 5, 5}
	players[1].Roles = &[TeamSize]int{1, 5, 5, 5, 5}

	mmrFirst := New(Options{UseRoles: true}).Balance(players)[0]
	assert.Zero(t, mmrFirst.MMRDiff)
	assert.Equal(t, 0, mmrFirst.SideOf(2), "without weight the carries stay together")

	fitFirst := New(Options{UseRoles: true, RoleWeight: 20}).Balance(players)[0]
	assert.Equal(t, 40.0, fitFirst.MMRDiff)
	assert.Equal(t, 1, fitFirst.SideOf(2), "carries should be split")

	bucketed := New(Options{UseRoles: true, TieEpsilon: 50}).Balance(players)[0]
	assert.Equal(t, 1, bucketed.SideOf(2), "within epsilon role fit decides")
}

func TestTier_RelativeToCheapest(t *testing.T) {
	candidates := []candidate{
		{index: 0, cost: 1.01},
		{index: 1, cost: 0.99},
		{index: 2, cost: 2.5},
		{index: 3, cost: 3.0},
		{index: 4, cost: 0.99},
	}
	tier(candidates, 1)

	tiers := map[int]float64{}
	for _, c := range candidates {
		tiers[c.index] = c.bucket
	}
	assert.Equal(t, map[int]float64{0: 0, 1: 0, 4: 0, 2: 1, 3: 1}, tiers, "costs on either side of a multiple of epsilon still tie")
	assert.Equal(t, 1, candidates[0].index, "equal costs keep partition order")
}

func TestAssignRoles_NoPreferences(t *testing.T) {
	players := makePlayers(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	assign, cost := assignRoles(players, []int{0, 1, 2, 3, 4})
	assert.Equal(t, []int{0, 1, 2, 3, 4}, assign, "all ties resolve to the identity assignment")
	assert.Equal(t, TeamSize*neutralRoleCost, cost)
}

func TestAssignRoles_DuplicatePreferences(t *testing.T) {
	players := makePlayers(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	for i := range TeamSize {
		players[i].Roles = &[TeamSize]int{1, 1, 2, 2, 2}
	}
	assign, cost := assignRoles(players, []int{0, 1, 2, 3, 4})
	assert.Equal(t, []int{0, 1, 2, 3, 4}, assign)
	assert.Equal(t, 3, cost)
}

func TestCustom(t *testing.T) {
	players := makePlayers(4000, 4000, 4000, 4000, 4000, 3000, 3000, 3000, 3000, 3000)
	a := New(Options{}).Custom(players[:5], players[5:])

	assert.Equal(t, []int64{1, 2, 3, 4, 5}, a.PlayerIDs(0))
	assert.Equal(t, []int64{6, 7, 8, 9, 10}, a.PlayerIDs(1))
	assert.Equal(t, 1000.0, a.MMRDiff)
	assert.Equal(t, 4000, a.Teams[0].AvgMMR)
	assert.Equal(t, 3000, a.Teams[1].AvgMMR)

	assert.Panics(t, func() { New(Options{}).Custom(players[:4], players[4:]) })
}

func TestUnderdog(t *testing.T) {
	a := Answer{Teams: [2]Team{{AvgMMR: 3000}, {AvgMMR: 3250}}}
	assert.Equal(t, 0, a.Underdog(200))
	assert.Equal(t, NoUnderdog, a.Underdog(300))
	assert.Equal(t, NoUnderdog, a.Underdog(0))

	a.Teams[0].AvgMMR, a.Teams[1].AvgMMR = 3500, 3000
	assert.Equal(t, 1, a.Underdog(500))
}

func TestAvgMMRIsRounded(t *testing.T) {
	a := New(Options{}).Custom(makePlayers(1, 1, 1, 1, 3)[:5], makePlayers(2, 2, 2, 2, 2))
	assert.Equal(t, 1, a.Teams[0].AvgMMR, "7/5 rounds down")
	assert.Equal(t, 2, a.Teams[1].AvgMMR)
	assert.Equal(t, -1, a.SideOf(99))
}
