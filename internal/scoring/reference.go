package scoring

import "sort"

// lookupTolerance is how far (seconds) a frame timestamp may sit from a
// reference point and still be judged against it.
const lookupTolerance = 0.05

// RefPoint is one target frequency on the producer-supplied pitch track.
type RefPoint struct {
	Time      float64 `json:"time"`
	Frequency float64 `json:"frequency"`
}

// Reference is a time-indexed target pitch track for one song.
type Reference struct {
	points []RefPoint
}

// NewReference builds a reference from producer output. Points are sorted
// by time; the producer emits one target per short interval.
func NewReference(points []RefPoint) *Reference {
	sorted := make([]RefPoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
	return &Reference{points: sorted}
}

// Len reports the number of reference points.
func (r *Reference) Len() int { return len(r.points) }

// At returns the target frequency nearest t, or false when no point lies
// within the lookup tolerance (gaps between sung lines).
func (r *Reference) At(t float64) (float64, bool) {
	if len(r.points) == 0 {
		return 0, false
	}
	i := sort.Search(len(r.points), func(i int) bool { return r.points[i].Time >= t })

	best, bestDist := -1, lookupTolerance
	if i < len(r.points) {
		if d := r.points[i].Time - t; d < bestDist {
			best, bestDist = i, d
		}
	}
	if i > 0 {
		if d := t - r.points[i-1].Time; d < bestDist {
			best = i - 1
		}
	}
	if best < 0 {
		return 0, false
	}
	return r.points[best].Frequency, true
}
