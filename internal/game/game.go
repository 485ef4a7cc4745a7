// Package game implements the per-mode session state machine shared by
// every room: free play, pitch-scored play, and the timed lyric quiz. A
// mode is a pure-ish state holder; the room actor owns the only goroutine
// that touches it, so no mode locks anything.
package game

import (
	"time"

	"github.com/kero-live/kero-server/internal/scoring"
)

// Status is the session life cycle. Start is only valid from Waiting or
// Finished; re-entrant starts while Playing are ignored.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Kind selects the mode variant bound to a room.
type Kind string

const (
	KindNormal       Kind = "normal"
	KindPerfectScore Kind = "perfect_score"
	KindLyricsQuiz   Kind = "lyrics_quiz"
)

// ValidKind reports whether s names a known mode.
func ValidKind(s string) bool {
	switch Kind(s) {
	case KindNormal, KindPerfectScore, KindLyricsQuiz:
		return true
	}
	return false
}

// LyricLine is one timed line of the lyric timeline.
type LyricLine struct {
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
	Text      string  `json:"text"`
}

// Question is one fill-in-the-blank quiz item: a lyric line with a blanked
// span, the correct option among decoys, and its time/point budget.
type Question struct {
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	TimeLimit    int      `json:"timeLimit"`
	Points       int      `json:"points"`
}

// Song is the resolved playable payload a mode broadcasts on start.
type Song struct {
	ID              string             `json:"id"`
	Title           string             `json:"title"`
	Artist          string             `json:"artist"`
	VocalsURL       string             `json:"vocalsUrl,omitempty"`
	InstrumentalURL string             `json:"instrumentalUrl,omitempty"`
	Duration        float64            `json:"duration,omitempty"`
	Lyrics          []LyricLine        `json:"lyrics,omitempty"`
	Pitch           []scoring.RefPoint `json:"-"`
	Questions       []Question         `json:"-"`
}

// Command names routed to the active mode.
const (
	CmdReady     = "ready"
	CmdPlay      = "play"
	CmdPause     = "pause"
	CmdSeek      = "seek"
	CmdEndSong   = "end-song"
	CmdMicOn     = "mic-on"
	CmdMicOff    = "mic-off"
	CmdMicDenied = "mic-denied"
	CmdFrame     = "frame"
	CmdAnswer    = "answer"
)

// Command is an inbound participant intent, already routed by the room.
// Fields beyond Name are populated per command, mirroring the wire shape.
type Command struct {
	Participant   string
	Name          string
	Time          float64
	Samples       []float32
	SampleRate    int
	QuestionIndex int
	AnswerIndex   int
}

// Event is an outbound broadcast a mode hands back to the room. Only and
// Except narrow delivery; both zero means everyone.
type Event struct {
	Name    string
	Payload any
	Only    string
	Except  string
}

// Mode is the life cycle contract every variant shares.
type Mode interface {
	Kind() Kind
	Status() Status

	// Start begins playback of song. Returns false (and no events) when
	// the session is already playing.
	Start(song *Song, now time.Time) ([]Event, bool)

	// Handle applies one participant intent.
	Handle(cmd Command, now time.Time) []Event

	// Finish forces the session to Finished (explicit skip or a stuck
	// song); a no-op unless playing.
	Finish(now time.Time) []Event

	// Deadline reports when the room must next deliver a timer fire.
	Deadline() (time.Time, bool)

	// HandleTimer advances time-driven sub-state at its deadline.
	HandleTimer(now time.Time) []Event

	// Forget drops a departed participant's session state so they no
	// longer appear in scores or results.
	Forget(participant string)

	// Scores returns cumulative per-participant scores for this session.
	Scores() map[string]int
}

// NewMode builds the variant for kind.
func NewMode(kind Kind) Mode {
	switch kind {
	case KindPerfectScore:
		return NewScoreMode()
	case KindLyricsQuiz:
		return NewQuizMode()
	default:
		return NewFreePlay()
	}
}

// startedSong is the song payload shared by every game-started event.
type startedSong struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Artist          string      `json:"artist"`
	VocalsURL       string      `json:"vocalsUrl,omitempty"`
	InstrumentalURL string      `json:"instrumentalUrl,omitempty"`
	Duration        float64     `json:"duration,omitempty"`
	Lyrics          []LyricLine `json:"lyrics"`
}

func songPayload(s *Song) startedSong {
	return startedSong{
		ID:              s.ID,
		Title:           s.Title,
		Artist:          s.Artist,
		VocalsURL:       s.VocalsURL,
		InstrumentalURL: s.InstrumentalURL,
		Duration:        s.Duration,
		Lyrics:          s.Lyrics,
	}
}
