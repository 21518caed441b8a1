package match

// Streak is the signed length of the run at the head of outcomes, which are
// ordered most recent first.
func Streak(outcomes []Outcome) int {
	if len(outcomes) == 0 {
		return 0
	}
	n := 1
	for n < len(outcomes) && outcomes[n] == outcomes[0] {
		n++
	}
	if outcomes[0] == Loss {
		return -n
	}
	return n
}

// MaxStreak returns the longest winning and losing runs.
func MaxStreak(outcomes []Outcome) (wins, losses int) {
	run := 0
	for i, o := range outcomes {
		if i > 0 && o == outcomes[i-1] {
			run++
		} else {
			run = 1
		}
		if o == Win {
			wins = max(wins, run)
		} else {
			losses = max(losses, run)
		}
	}
	return wins, losses
}

func summarize(outcomes []Outcome) Streaks {
	s := Streaks{Current: Streak(outcomes)}
	s.LongestWin, s.LongestLoss = MaxStreak(outcomes)
	for _, o := range outcomes {
		if o == Win {
			s.Wins++
		} else {
			s.Losses++
		}
	}
	return s
}
