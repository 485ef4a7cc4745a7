// Package types holds the websocket wire envelopes shared by the server
// and its clients.
package types

// ClientMessage is the inbound envelope. Type selects the action; the
// remaining fields are a union populated per action.
type ClientMessage struct {
	Type string `json:"type"`

	// request-song / remove-song / start-game
	LocalID string `json:"localId,omitempty"`
	Title   string `json:"title,omitempty"`
	Artist  string `json:"artist,omitempty"`

	// playback sync (normal:play / normal:pause / normal:seek)
	Time float64 `json:"time,omitempty"`

	// score:frame
	Samples    []float32 `json:"samples,omitempty"`
	SampleRate int       `json:"sampleRate,omitempty"`

	// quiz:answer
	QuestionIndex int `json:"questionIndex"`
	AnswerIndex   int `json:"answerIndex"`
}

// ServerMessage is the outbound envelope. Event carries room and game
// broadcasts; Error carries a human-readable failure.
type ServerMessage struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}
