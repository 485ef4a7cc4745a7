package game

import (
	"time"

	"github.com/kero-live/kero-server/internal/pitch"
	"github.com/kero-live/kero-server/internal/scoring"
)

// micSession is one participant's scoped microphone state. The mic is
// acquired by an explicit toggle and released on toggle-off, mode change,
// or permission denial; frames that arrive outside an open session are
// dropped so stale estimates never score against the current song.
type micSession struct {
	tracker scoring.Tracker
	micOn   bool
	denied  bool
}

// ScoreMode judges live pitch frames against the song's reference track
// and keeps per-participant score, combo and accuracy.
type ScoreMode struct {
	status   Status
	song     *Song
	ref      *scoring.Reference
	sessions map[string]*micSession
}

// NewScoreMode returns a score-mode session in Waiting.
func NewScoreMode() *ScoreMode {
	return &ScoreMode{
		status:   StatusWaiting,
		sessions: map[string]*micSession{},
	}
}

func (m *ScoreMode) Kind() Kind     { return KindPerfectScore }
func (m *ScoreMode) Status() Status { return m.status }

func (m *ScoreMode) Start(song *Song, now time.Time) ([]Event, bool) {
	if m.status == StatusPlaying {
		return nil, false
	}
	m.status = StatusPlaying
	m.song = song
	m.ref = scoring.NewReference(song.Pitch)
	// New song, new trackers; mic state survives the transition.
	for _, s := range m.sessions {
		s.tracker.Reset()
	}
	return []Event{{
		Name: "score:game-started",
		Payload: map[string]any{
			"song":       songPayload(song),
			"pitchTrack": song.Pitch,
		},
	}}, true
}

func (m *ScoreMode) Handle(cmd Command, now time.Time) []Event {
	switch cmd.Name {
	case CmdMicOn:
		s := m.session(cmd.Participant)
		s.micOn = true
		s.denied = false
		return []Event{{
			Name:    "score:mic",
			Payload: map[string]any{"participantId": cmd.Participant, "on": true},
		}}

	case CmdMicOff:
		m.session(cmd.Participant).micOn = false
		return []Event{{
			Name:    "score:mic",
			Payload: map[string]any{"participantId": cmd.Participant, "on": false},
		}}

	case CmdMicDenied:
		// Degraded mode: the participant keeps playing, score stays zero.
		s := m.session(cmd.Participant)
		s.micOn = false
		s.denied = true
		return []Event{{
			Name:    "score:mic-denied",
			Payload: map[string]any{"participantId": cmd.Participant},
		}}

	case CmdFrame:
		return m.handleFrame(cmd)

	case CmdEndSong:
		return m.Finish(now)
	}
	return nil
}

func (m *ScoreMode) handleFrame(cmd Command) []Event {
	if m.status != StatusPlaying {
		return nil
	}
	s := m.session(cmd.Participant)
	if !s.micOn {
		return nil
	}

	freq, ok := pitch.Estimate(cmd.Samples, cmd.SampleRate)
	if !ok {
		return nil
	}
	target, ok := m.ref.At(cmd.Time)
	if !ok {
		return nil
	}

	j := scoring.Judge(freq, target)
	s.tracker.Apply(j)

	sample := pitch.NewSample(cmd.Time, freq)
	events := []Event{{
		Name: "score:judgment",
		Payload: map[string]any{
			"rating":   j.Rating,
			"points":   j.Points,
			"accuracy": j.Accuracy,
			"combo":    s.tracker.Combo,
			"score":    s.tracker.Score,
			"note":     sample.Note,
			"target":   pitch.NoteName(target),
		},
		Only: cmd.Participant,
	}}
	if j.Hit {
		events = append(events, Event{
			Name: "score:update",
			Payload: map[string]any{
				"participantId": cmd.Participant,
				"score":         s.tracker.Score,
				"combo":         s.tracker.Combo,
			},
		})
	}
	return events
}

func (m *ScoreMode) Finish(now time.Time) []Event {
	if m.status != StatusPlaying {
		return nil
	}
	m.status = StatusFinished

	type result struct {
		ParticipantID string  `json:"participantId"`
		Score         int     `json:"score"`
		MaxCombo      int     `json:"maxCombo"`
		Accuracy      float64 `json:"accuracy"`
		Grade         string  `json:"grade"`
	}
	results := make([]result, 0, len(m.sessions))
	for id, s := range m.sessions {
		results = append(results, result{
			ParticipantID: id,
			Score:         s.tracker.Score,
			MaxCombo:      s.tracker.MaxCombo,
			Accuracy:      s.tracker.MeanAccuracy(),
			Grade:         scoring.Grade(s.tracker.Score),
		})
	}
	return []Event{
		{Name: "score:song-ended"},
		{Name: "score:results", Payload: map[string]any{"results": results}},
	}
}

func (m *ScoreMode) Deadline() (time.Time, bool)       { return time.Time{}, false }
func (m *ScoreMode) HandleTimer(now time.Time) []Event { return nil }

// Forget drops the departed singer's mic session so finished-game results
// only list current members.
func (m *ScoreMode) Forget(participant string) {
	delete(m.sessions, participant)
}

func (m *ScoreMode) Scores() map[string]int {
	out := make(map[string]int, len(m.sessions))
	for id, s := range m.sessions {
		out[id] = s.tracker.Score
	}
	return out
}

// Accuracies reports per-participant mean accuracy for result persistence.
func (m *ScoreMode) Accuracies() map[string]float64 {
	out := make(map[string]float64, len(m.sessions))
	for id, s := range m.sessions {
		out[id] = s.tracker.MeanAccuracy()
	}
	return out
}

func (m *ScoreMode) session(id string) *micSession {
	s, ok := m.sessions[id]
	if !ok {
		s = &micSession{}
		m.sessions[id] = s
	}
	return s
}
