// Package enrollment implements participant enrollment: weighted
// randomization over a trial's arms, participant code generation, and the
// precondition chain that gates admission into an active trial.
package enrollment

import (
	"math/rand/v2"

	dErrors "trialgate/pkg/domain-errors"
)

// Randomizer assigns arm indexes by weighted draw. The draw is uniform over
// the total weight; an arm with weight w out of total W is chosen with
// probability w/W.
type Randomizer struct {
	intn func(n int) int
}

// NewRandomizer returns a Randomizer backed by the default random source.
func NewRandomizer() *Randomizer {
	return &Randomizer{intn: rand.IntN}
}

// Assign draws a group index from the weighted ratio. The ratio must be
// non-empty with strictly positive weights; anything else is a configuration
// error, not a caller error.
func (r *Randomizer) Assign(ratio []int) (int, error) {
	if len(ratio) == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidConfiguration, "randomization ratio is empty")
	}
	total := 0
	for _, w := range ratio {
		if w <= 0 {
			return 0, dErrors.New(dErrors.CodeInvalidConfiguration, "randomization weights must be positive")
		}
		total += w
	}

	draw := r.intn(total)
	cumulative := 0
	for group, w := range ratio {
		cumulative += w
		if draw < cumulative {
			return group, nil
		}
	}
	return 0, nil
}
