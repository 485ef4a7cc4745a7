package scoring

import (
	"math"
)

// Rating classifies a hit for feedback display. Boundaries are exclusive
// on the tighter class: exactly 10 cents is Great, exactly 50 is a miss.
type Rating string

const (
	RatingPerfect Rating = "PERFECT"
	RatingGreat   Rating = "GREAT"
	RatingGood    Rating = "GOOD"
	RatingMiss    Rating = "MISS"
)

const (
	hitWindowCents     = 50
	perfectWindowCents = 10
	greatWindowCents   = 25
)

// Judgment is the outcome of comparing one live estimate against the
// simultaneous reference frequency.
type Judgment struct {
	Cents    float64 `json:"cents"`
	Accuracy float64 `json:"accuracy"`
	Points   int     `json:"points"`
	Rating   Rating  `json:"rating"`
	Hit      bool    `json:"hit"`
}

// Judge scores a single frame. Pitch distance is measured in cents
// (1200 per octave); accuracy decays linearly, one point per cent.
func Judge(userFreq, targetFreq float64) Judgment {
	cents := 1200 * math.Log2(userFreq/targetFreq)
	abs := math.Abs(cents)
	acc := math.Max(0, 100-abs)

	j := Judgment{Cents: cents, Accuracy: acc, Rating: RatingMiss}
	if abs >= hitWindowCents {
		return j
	}

	j.Hit = true
	j.Points = int(math.Round(acc))
	switch {
	case abs < perfectWindowCents:
		j.Rating = RatingPerfect
	case abs < greatWindowCents:
		j.Rating = RatingGreat
	default:
		j.Rating = RatingGood
	}
	return j
}

// Grade maps a cumulative score to its final letter grade.
func Grade(score int) string {
	switch {
	case score >= 95000:
		return "S+"
	case score >= 90000:
		return "S"
	case score >= 80000:
		return "A"
	case score >= 70000:
		return "B"
	case score >= 60000:
		return "C"
	default:
		return "D"
	}
}

// Tracker accumulates one participant's score over a song. Score is
// monotonically non-decreasing; only a reset makes it drop.
type Tracker struct {
	Score    int
	Combo    int
	MaxCombo int

	frames      int
	accuracySum float64
}

// Apply folds one judgment into the running totals. A miss resets the
// combo and awards nothing.
func (t *Tracker) Apply(j Judgment) {
	t.frames++
	t.accuracySum += j.Accuracy

	if !j.Hit {
		t.Combo = 0
		return
	}
	t.Score += j.Points
	t.Combo++
	if t.Combo > t.MaxCombo {
		t.MaxCombo = t.Combo
	}
}

// MeanAccuracy reports the average per-frame accuracy so far.
func (t *Tracker) MeanAccuracy() float64 {
	if t.frames == 0 {
		return 0
	}
	return t.accuracySum / float64(t.frames)
}

// Reset clears all progress for a new song.
func (t *Tracker) Reset() {
	*t = Tracker{}
}
