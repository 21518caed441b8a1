package balance

// TeamSize is the number of players on each side.
const TeamSize = 5

// QueueSize is the number of players a balance is computed for.
const QueueSize = 2 * TeamSize

// RoleNames lists positions in preference-vector order.
var RoleNames = [TeamSize]string{"carry", "mid", "offlane", "pos4", "pos5"}

// Player is one balancing input. Roles holds priorities from 1 (most wanted)
// to 5 in RoleNames order; nil means no preference.
type Player struct {
	ID    int64
	Name  string
	MMR   int
	Roles *[TeamSize]int
}

// Entry is a player as placed on a team.
type Entry struct {
	PlayerID int64  `json:"playerId"`
	Name     string `json:"name"`
	MMR      int    `json:"mmr"`
	Role     string `json:"role,omitempty"`
}

type Team struct {
	AvgMMR       int     `json:"avgMmr"`
	Players      []Entry `json:"players"`
	RoleScoreSum *int    `json:"roleScoreSum,omitempty"`
}

// Answer is one candidate 5v5 split. Side 0 always holds the first input player.
type Answer struct {
	ID       string  `json:"id,omitempty"`
	Rank     int     `json:"rank"`
	Teams    [2]Team `json:"teams"`
	MMRDiff  float64 `json:"mmrDiff"`
	RoleCost int     `json:"roleCost"`
	Cost     float64 `json:"cost"`
}

// Options tunes ranking.
//
// Cost is MMRDiff + RoleWeight*RoleCost. With TieEpsilon > 0 every split
// within TieEpsilon of the cheapest one ties with it, and role cost decides
// within the tie. With the zero value ranking is by MMR difference alone and role
// cost only breaks exact ties.
type Options struct {
	TopK       int     `json:"topK"`
	UseRoles   bool    `json:"useRoles"`
	RoleWeight float64 `json:"roleWeight"`
	TieEpsilon float64 `json:"tieEpsilon"`
}
