package game

import (
	"math"
	"math/rand"

	"quizzy-service/internal/domain"
)

// Score computes the points awarded for a submission. Incorrect or absent
// answers score zero regardless of timing. Correct answers earn the
// question's point value scaled linearly from full credit at zero elapsed
// time down to zero at the time limit, then doubled if the double-points
// modifier is active. Same inputs always yield the same result.
func Score(q domain.Question, answerIndex, elapsedMs, timeLimitMs int, modifiers []string) int {
	if answerIndex != q.CorrectIndex {
		return 0
	}

	points := q.Points
	if points == 0 {
		points = domain.DefaultQuestionPoints
	}

	awarded := points
	if timeLimitMs > 0 {
		remaining := 1 - float64(elapsedMs)/float64(timeLimitMs)
		if remaining < 0 {
			remaining = 0
		}
		if remaining > 1 {
			remaining = 1
		}
		awarded = int(math.Round(float64(points) * remaining))
	}

	if hasModifier(modifiers, domain.ModifierDoublePoints) {
		awarded *= 2
	}
	return awarded
}

func hasModifier(modifiers []string, kind string) bool {
	for _, m := range modifiers {
		if m == kind {
			return true
		}
	}
	return false
}

// ReduceOptions implements the fifty-fifty modifier: the correct index plus
// one uniformly-chosen incorrect index, in randomized order. The draw comes
// from the caller's rand source so tests can fix the seed.
func ReduceOptions(q domain.Question, rnd *rand.Rand) ([]int, error) {
	if len(q.Options) < 2 {
		return nil, domain.ErrInsufficientOptions
	}

	wrong := rnd.Intn(len(q.Options) - 1)
	if wrong >= q.CorrectIndex {
		wrong++
	}

	pair := []int{q.CorrectIndex, wrong}
	if rnd.Intn(2) == 1 {
		pair[0], pair[1] = pair[1], pair[0]
	}
	return pair, nil
}
