package balance

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/combin"
)

// neutralRoleCost is charged for any position a player expressed no
// preference for (priority 3).
const neutralRoleCost = 2

var (
	// partitions holds the 126 index sets for side 0. Each contains index 0,
	// so a split and its mirror are not both enumerated.
	partitions = lo.Filter(combin.Combinations(QueueSize, TeamSize), func(c []int, _ int) bool {
		return c[0] == 0
	})
	rolePermutations = combin.Permutations(TeamSize, TeamSize)
)

// Engine ranks 5v5 splits. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	opts Options
}

func New(opts Options) *Engine {
	if opts.TopK <= 0 {
		opts.TopK = 1
	}
	if opts.TopK > len(partitions) {
		opts.TopK = len(partitions)
	}
	return &Engine{opts: opts}
}

func (e *Engine) Options() Options {
	return e.opts
}

type candidate struct {
	index    int
	side     [2][]int
	sumDiff  int
	roleCost int
	cost     float64
	bucket   float64
	roles    [2][]int
}

// Balance returns the TopK best splits of exactly ten players, best first.
// Any other number of players is a caller bug and panics.
func (e *Engine) Balance(players []Player) []Answer {
	if len(players) != QueueSize {
		panic(fmt.Sprintf("balance: need exactly %d players, got %d", QueueSize, len(players)))
	}

	candidates := make([]candidate, 0, len(partitions))
	for i, sideA := range partitions {
		sideB := complement(sideA)
		c := candidate{index: i, side: [2][]int{sideA, sideB}}
		c.sumDiff = abs(sumMMR(players, sideA) - sumMMR(players, sideB))
		if e.opts.UseRoles {
			for s := range c.side {
				assign, cost := assignRoles(players, c.side[s])
				c.roles[s] = assign
				c.roleCost += cost
			}
		}
		c.cost = float64(c.sumDiff)/TeamSize + e.opts.RoleWeight*float64(c.roleCost)
		c.bucket = c.cost
		candidates = append(candidates, c)
	}
	if e.opts.TieEpsilon > 0 {
		tier(candidates, e.opts.TieEpsilon)
	}

	slices.SortFunc(candidates, func(a, b candidate) int {
		return cmp.Or(
			cmp.Compare(a.bucket, b.bucket),
			cmp.Compare(a.roleCost, b.roleCost),
			cmp.Compare(a.sumDiff, b.sumDiff),
			cmp.Compare(a.index, b.index),
		)
	})

	answers := make([]Answer, 0, e.opts.TopK)
	for rank, c := range candidates[:e.opts.TopK] {
		a := e.answer(players, c)
		a.Rank = rank
		answers = append(answers, a)
	}
	return answers
}

// tier groups candidates by cost. A tier opens at the cheapest candidate not
// yet placed and holds every candidate within eps of it.
func tier(candidates []candidate, eps float64) {
	slices.SortFunc(candidates, func(a, b candidate) int {
		return cmp.Or(cmp.Compare(a.cost, b.cost), cmp.Compare(a.index, b.index))
	})
	level, anchor := 0, candidates[0].cost
	for i := range candidates {
		if candidates[i].cost > anchor+eps {
			level, anchor = level+1, candidates[i].cost
		}
		candidates[i].bucket = float64(level)
	}
}

// Custom wraps two fixed five-player groups into an answer without searching.
func (e *Engine) Custom(teamA, teamB []Player) Answer {
	if len(teamA) != TeamSize || len(teamB) != TeamSize {
		panic(fmt.Sprintf("balance: custom teams need %d players each, got %d and %d", TeamSize, len(teamA), len(teamB)))
	}
	players := append(slices.Clone(teamA), teamB...)
	c := candidate{side: [2][]int{{0, 1, 2, 3, 4}, {5, 6, 7, 8, 9}}}
	c.sumDiff = abs(sumMMR(players, c.side[0]) - sumMMR(players, c.side[1]))
	if e.opts.UseRoles {
		for s := range c.side {
			assign, cost := assignRoles(players, c.side[s])
			c.roles[s] = assign
			c.roleCost += cost
		}
	}
	c.cost = float64(c.sumDiff)/TeamSize + e.opts.RoleWeight*float64(c.roleCost)
	return e.answer(players, c)
}

func (e *Engine) answer(players []Player, c candidate) Answer {
	a := Answer{
		MMRDiff:  float64(c.sumDiff) / TeamSize,
		RoleCost: c.roleCost,
		Cost:     c.cost,
	}
	for s, idx := range c.side {
		team := Team{Players: make([]Entry, 0, TeamSize)}
		ratings := make([]float64, 0, TeamSize)
		for pos, i := range idx {
			p := players[i]
			entry := Entry{PlayerID: p.ID, Name: p.Name, MMR: p.MMR}
			if c.roles[s] != nil {
				entry.Role = RoleNames[c.roles[s][pos]]
			}
			team.Players = append(team.Players, entry)
			ratings = append(ratings, float64(p.MMR))
		}
		team.AvgMMR = int(math.Round(stat.Mean(ratings, nil)))
		if e.opts.UseRoles {
			sum := teamRoleCost(players, idx, c.roles[s])
			team.RoleScoreSum = &sum
		}
		a.Teams[s] = team
	}
	return a
}

// assignRoles picks the role permutation with the lowest total cost for one
// team. Equal costs resolve to the lexicographically smallest permutation,
// read in player order.
func assignRoles(players []Player, team []int) ([]int, int) {
	var best []int
	bestCost := math.MaxInt
	for _, perm := range rolePermutations {
		cost := teamRoleCost(players, team, perm)
		if cost < bestCost || (cost == bestCost && slices.Compare(perm, best) < 0) {
			best, bestCost = perm, cost
		}
	}
	return slices.Clone(best), bestCost
}

func teamRoleCost(players []Player, team []int, roles []int) int {
	total := 0
	for pos, i := range team {
		total += roleCost(players[i], roles[pos])
	}
	return total
}

func roleCost(p Player, role int) int {
	if p.Roles == nil {
		return neutralRoleCost
	}
	return p.Roles[role] - 1
}

func complement(side []int) []int {
	out := make([]int, 0, QueueSize-len(side))
	for i := range QueueSize {
		if !slices.Contains(side, i) {
			out = append(out, i)
		}
	}
	return out
}

func sumMMR(players []Player, idx []int) int {
	return lo.SumBy(idx, func(i int) int { return players[i].MMR })
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
