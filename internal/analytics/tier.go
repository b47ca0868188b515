package analytics

import "math/rand/v2"

// Tier is a coarse classification of user consistency.
type Tier string

const (
	TierChampion   Tier = "champion"
	TierConsistent Tier = "consistent"
	TierBuilding   Tier = "building"
	TierStarter    Tier = "starter"
)

// TierFor classifies a global streak and a completion rate (percent).
func TierFor(streak int, rate float64) Tier {
	switch {
	case streak >= 21 && rate >= 85:
		return TierChampion
	case streak >= 7 && rate >= 70:
		return TierConsistent
	case streak >= 3 || rate >= 50:
		return TierBuilding
	default:
		return TierStarter
	}
}

var messages = map[Tier][]string{
	TierChampion: {
		"Unstoppable. Three weeks and counting.",
		"Your habits run on autopilot now. Keep the engine warm.",
		"Champion form. Protect the streak.",
	},
	TierConsistent: {
		"A full week of follow-through. That's a pattern, not luck.",
		"Consistency is compounding. Stay the course.",
		"Solid rhythm. Aim for 21 days.",
	},
	TierBuilding: {
		"Momentum is building. Show up again tomorrow.",
		"Small wins stack up. Keep going.",
		"You're past the hardest part: starting.",
	},
	TierStarter: {
		"Every streak starts with day one.",
		"Pick one habit and finish it today.",
		"Fresh start. Check off something small.",
	},
}

// Picker chooses an index in [0, n).
type Picker interface {
	IntN(n int) int
}

type globalPicker struct{}

func (globalPicker) IntN(n int) int { return rand.IntN(n) }

// NewPicker returns a seeded, reproducible Picker.
func NewPicker(seed uint64) Picker {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// MessageFor picks a motivational message for tier. A nil picker uses the
// process-wide source. Unknown tiers fall back to the starter pool.
func MessageFor(tier Tier, picker Picker) string {
	pool, ok := messages[tier]
	if !ok {
		pool = messages[TierStarter]
	}
	if picker == nil {
		picker = globalPicker{}
	}
	return pool[picker.IntN(len(pool))]
}
