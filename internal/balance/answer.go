package balance

import (
	"math"

	"github.com/samber/lo"
)

// NoUnderdog is returned by Underdog when neither side trails enough.
const NoUnderdog = -1

// Underdog returns the side whose average rating trails the other by at
// least threshold, or NoUnderdog. A threshold <= 0 disables the marker.
func (a Answer) Underdog(threshold int) int {
	if threshold <= 0 {
		return NoUnderdog
	}
	diff := a.Teams[1].AvgMMR - a.Teams[0].AvgMMR
	switch {
	case diff >= threshold:
		return 0
	case -diff >= threshold:
		return 1
	}
	return NoUnderdog
}

// MMRDiffRounded is the display value of MMRDiff.
func (a Answer) MMRDiffRounded() int {
	return int(math.Round(a.MMRDiff))
}

// PlayerIDs returns the ids on one side, in team order.
func (a Answer) PlayerIDs(side int) []int64 {
	return lo.Map(a.Teams[side].Players, func(e Entry, _ int) int64 { return e.PlayerID })
}

// SideOf reports the side a player is on, or -1.
func (a Answer) SideOf(playerID int64) int {
	for s, team := range a.Teams {
		if lo.ContainsBy(team.Players, func(e Entry) bool { return e.PlayerID == playerID }) {
			return s
		}
	}
	return -1
}
