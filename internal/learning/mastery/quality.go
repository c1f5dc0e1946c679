package mastery

import (
	"errors"
	"fmt"
)

const (
	MinDifficulty = 1
	MaxDifficulty = 10
)

var ErrInvalidDifficulty = errors.New("difficulty level out of range")

// QualityFor maps an outcome to an SM-2 quality grade. Incorrect answers are
// always 0 and correct ones grade 3..5 by difficulty, so 1 and 2 never occur.
func QualityFor(wasCorrect bool, difficulty int) (int, error) {
	if difficulty < MinDifficulty || difficulty > MaxDifficulty {
		return 0, fmt.Errorf("%w: %d not in [%d,%d]", ErrInvalidDifficulty, difficulty, MinDifficulty, MaxDifficulty)
	}
	switch {
	case !wasCorrect:
		return 0, nil
	case difficulty >= 8:
		return 5, nil
	case difficulty >= 6:
		return 4, nil
	default:
		return 3, nil
	}
}
