package match

import (
	"fmt"
	"math"
)

// RatingPolicy returns the points gained by the winners and lost by the
// losers, given each side's average rating. Both values are non-negative.
type RatingPolicy func(winnerAvg, loserAvg int) (gain, loss int)

const DefaultK = 25

// FlatDelta moves every player by k regardless of the ratings involved.
func FlatDelta(k int) RatingPolicy {
	return func(int, int) (int, int) { return k, k }
}

// EloDelta scales k by how unexpected the result was, using the Elo expected
// score of the team averages. Upsets pay more than k/2, favourites less.
func EloDelta(k int) RatingPolicy {
	return func(winnerAvg, loserAvg int) (int, int) {
		expected := 1 / (1 + math.Pow(10, float64(loserAvg-winnerAvg)/400))
		d := int(math.Round(float64(k) * (1 - expected)))
		return d, d
	}
}

// PolicyByName resolves a configured policy name.
func PolicyByName(name string, k int) (RatingPolicy, error) {
	if k <= 0 {
		k = DefaultK
	}
	switch name {
	case "", "flat":
		return FlatDelta(k), nil
	case "elo":
		return EloDelta(k), nil
	}
	return nil, fmt.Errorf("unknown rating policy %q", name)
}
