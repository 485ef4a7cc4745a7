package pitch

import (
	"fmt"
	"math"
)

const (
	// rmsGate is the minimum RMS energy of a window. Anything quieter is
	// reported unvoiced so silence never produces a false detection.
	rmsGate = 0.01

	// trimThreshold is the amplitude below which leading/trailing samples
	// are cut before correlating, to reduce edge artifacts.
	trimThreshold = 0.2
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Sample is one pitch estimate at audio-frame rate. It is ephemeral: the
// scoring window consumes it and nothing persists it.
type Sample struct {
	Time      float64 `json:"time"`
	Frequency float64 `json:"frequency"`
	Note      string  `json:"note"`
	MIDI      int     `json:"midi"`
	Voiced    bool    `json:"voiced"`
}

// NewSample derives note name and MIDI number from a raw estimate.
// A non-positive frequency yields an unvoiced sample.
func NewSample(t, freq float64) Sample {
	if freq <= 0 {
		return Sample{Time: t, Note: "-"}
	}
	midi := MIDINumber(freq)
	return Sample{
		Time:      t,
		Frequency: freq,
		Note:      NoteName(freq),
		MIDI:      midi,
		Voiced:    true,
	}
}

// Estimate returns the fundamental frequency of a time-domain sample window
// using the autocorrelation method. ok is false when the window is silent
// or no periodic component was found.
func Estimate(buf []float32, sampleRate int) (float64, bool) {
	size := len(buf)
	if size < 2 || sampleRate <= 0 {
		return 0, false
	}

	var rms float64
	for _, v := range buf {
		rms += float64(v) * float64(v)
	}
	rms = math.Sqrt(rms / float64(size))
	if rms < rmsGate {
		return 0, false
	}

	// Trim the near-silent edges of the window.
	r1, r2 := 0, size-1
	for i := 0; i < size/2; i++ {
		if math.Abs(float64(buf[i])) < trimThreshold {
			r1 = i
			break
		}
	}
	for i := 1; i < size/2; i++ {
		if math.Abs(float64(buf[size-i])) < trimThreshold {
			r2 = size - i
			break
		}
	}
	buf = buf[r1:r2]
	size = len(buf)
	if size < 2 {
		return 0, false
	}

	// Autocorrelation for every lag.
	c := make([]float64, size)
	for i := 0; i < size; i++ {
		for j := 0; j < size-i; j++ {
			c[i] += float64(buf[j]) * float64(buf[j+i])
		}
	}

	// Walk off the zero-lag peak to the first local minimum, then take the
	// global maximum from there. Searching from lag 0 would always land on
	// the trivial peak at the origin.
	d := 0
	for d < size-1 && c[d] > c[d+1] {
		d++
	}

	maxVal, maxPos := -1.0, -1
	for i := d; i < size; i++ {
		if c[i] > maxVal {
			maxVal = c[i]
			maxPos = i
		}
	}
	if maxPos <= 0 {
		return 0, false
	}

	return float64(sampleRate) / float64(maxPos), true
}

// MIDINumber maps a frequency to the nearest MIDI note number (A4 = 69).
func MIDINumber(freq float64) int {
	return int(math.Round(69 + 12*math.Log2(freq/440)))
}

// NoteName renders a frequency as a note name with octave, e.g. "A4".
func NoteName(freq float64) string {
	if freq <= 0 {
		return "-"
	}
	midi := MIDINumber(freq)
	idx := ((midi % 12) + 12) % 12
	octave := midi/12 - 1
	return fmt.Sprintf("%s%d", noteNames[idx], octave)
}
