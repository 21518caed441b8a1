package roster

import (
	"errors"
	"fmt"
	"time"
)

// BanStatus is the moderation state of a player.
type BanStatus string

const (
	BanNone    BanStatus = "none"
	BanPlaying BanStatus = "playing"
	BanOther   BanStatus = "other"
)

func (b BanStatus) Valid() bool {
	switch b {
	case BanNone, BanPlaying, BanOther:
		return true
	}
	return false
}

// Role priorities run from 1 (most wanted) to 5 (least wanted).
const (
	MinRolePriority = 1
	MaxRolePriority = 5
	DefaultRole     = 3
)

// Roles holds a player's preference for each of the five positions.
type Roles struct {
	Carry   int `json:"carry"`
	Mid     int `json:"mid"`
	Offlane int `json:"offlane"`
	Pos4    int `json:"pos4"`
	Pos5    int `json:"pos5"`
}

// RoleNames lists the positions in the order used by Values.
var RoleNames = [5]string{"carry", "mid", "offlane", "pos4", "pos5"}

func DefaultRoles() Roles {
	return Roles{Carry: DefaultRole, Mid: DefaultRole, Offlane: DefaultRole, Pos4: DefaultRole, Pos5: DefaultRole}
}

func (r Roles) Values() [5]int {
	return [5]int{r.Carry, r.Mid, r.Offlane, r.Pos4, r.Pos5}
}

func RolesFromValues(v [5]int) Roles {
	return Roles{Carry: v[0], Mid: v[1], Offlane: v[2], Pos4: v[3], Pos5: v[4]}
}

func (r Roles) Validate() error {
	for i, v := range r.Values() {
		if v < MinRolePriority || v > MaxRolePriority {
			return fmt.Errorf("%w: %s=%d", ErrInvalidRole, RoleNames[i], v)
		}
	}
	return nil
}

// Player is a registered ladder participant.
type Player struct {
	ID        int64     `json:"id"`
	DiscordID string    `json:"discordId,omitempty"`
	Name      string    `json:"name"`
	DotaID    string    `json:"dotaId"`
	DotaMMR   int       `json:"dotaMmr"`
	LadderMMR int       `json:"ladderMmr"`
	Banned    BanStatus `json:"banned"`
	Vouched   bool      `json:"vouched"`
	Roles     Roles     `json:"roles"`
	FilterMMR int       `json:"filterMmr"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p Player) IsBanned() bool {
	return p.Banned != "" && p.Banned != BanNone
}

// FilterPolicy derives the MMR a channel's min/max range is checked against.
type FilterPolicy func(p Player) int

// LadderFilter uses the ladder rating as-is.
func LadderFilter(p Player) int {
	return p.LadderMMR
}

// MaxFilter uses the higher of the ladder and the reported rating, so a
// strong player cannot farm a low channel by losing ladder points.
func MaxFilter(p Player) int {
	return max(p.LadderMMR, p.DotaMMR)
}

// FilterByName maps a configuration value to a FilterPolicy. The empty
// name selects LadderFilter.
func FilterByName(name string) (FilterPolicy, error) {
	switch name {
	case "", "ladder":
		return LadderFilter, nil
	case "max":
		return MaxFilter, nil
	}
	return nil, fmt.Errorf("unknown filter policy %q", name)
}

type RegisterParams struct {
	Name      string `json:"name"`
	DotaMMR   int    `json:"dotaMmr"`
	DotaID    string `json:"dotaId"`
	DiscordID string `json:"discordId,omitempty"`
}

// MaxRegisterMMR is the exclusive upper bound for a self reported rating.
const MaxRegisterMMR = 12000

// Standing is one leaderboard row for a season.
type Standing struct {
	Player Player `json:"player"`
	Rank   int    `json:"rank"`
	Wins   int    `json:"wins"`
	Losses int    `json:"losses"`
	Score  int    `json:"score"`
}

// MaxLeaderboardLimit caps a leaderboard page.
const MaxLeaderboardLimit = 15

var (
	ErrPlayerNotFound    = errors.New("player not found")
	ErrAlreadyRegistered = errors.New("player already registered")
	ErrNameTaken         = errors.New("player name already taken")
	ErrInvalidName       = errors.New("invalid player name")
	ErrMissingDotaID     = errors.New("dota id is required")
	ErrInvalidMMR        = errors.New("invalid mmr")
	ErrInvalidRole       = errors.New("invalid role")
	ErrInvalidBanStatus  = errors.New("invalid ban status")
	ErrInvalidLimit      = errors.New("invalid leaderboard limit")
)
