package pitch

import (
	"math"
	"testing"
)

func sine(freq float64, sampleRate, n int, amp float64) []float32 {
	buf := make([]float32, n)
	for i := range buf {
		buf[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return buf
}

func TestEstimate_PureTones(t *testing.T) {
	cases := []struct {
		name string
		freq float64
	}{
		{"A4", 440},
		{"A3", 220},
		{"E4", 329.63},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := sine(tc.freq, 44100, 2048, 0.5)
			got, ok := Estimate(buf, 44100)
			if !ok {
				t.Fatalf("expected a voiced estimate for %.2f Hz", tc.freq)
			}
			// Lag quantization limits resolution to a few Hz in this range.
			if math.Abs(got-tc.freq) > 10 {
				t.Fatalf("estimate for %.2f Hz off by too much: got %.2f", tc.freq, got)
			}
		})
	}
}

func TestEstimate_SilenceIsUnvoiced(t *testing.T) {
	buf := make([]float32, 2048)
	if _, ok := Estimate(buf, 44100); ok {
		t.Fatalf("silence must not produce a pitch")
	}

	// Low-level noise under the RMS gate is silence too.
	quiet := sine(440, 44100, 2048, 0.005)
	if _, ok := Estimate(quiet, 44100); ok {
		t.Fatalf("sub-threshold signal must not produce a pitch")
	}
}

func TestEstimate_DegenerateInput(t *testing.T) {
	if _, ok := Estimate(nil, 44100); ok {
		t.Fatalf("empty window must not produce a pitch")
	}
	if _, ok := Estimate(sine(440, 44100, 2048, 0.5), 0); ok {
		t.Fatalf("zero sample rate must not produce a pitch")
	}
}

func TestNoteName(t *testing.T) {
	cases := []struct {
		freq float64
		want string
	}{
		{440, "A4"},
		{261.63, "C4"},
		{880, "A5"},
		{466.16, "A#4"},
		{0, "-"},
	}
	for _, tc := range cases {
		if got := NoteName(tc.freq); got != tc.want {
			t.Fatalf("NoteName(%.2f): got %q, want %q", tc.freq, got, tc.want)
		}
	}
}

func TestNewSample(t *testing.T) {
	s := NewSample(12.5, 440)
	if !s.Voiced || s.Note != "A4" || s.MIDI != 69 || s.Time != 12.5 {
		t.Fatalf("unexpected sample: %+v", s)
	}

	unvoiced := NewSample(1, 0)
	if unvoiced.Voiced || unvoiced.Note != "-" {
		t.Fatalf("expected unvoiced sample, got %+v", unvoiced)
	}
}
