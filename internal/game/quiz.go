package game

import (
	"math"
	"time"
)

type quizPhase int

const (
	phaseQuestion quizPhase = iota
	phaseReveal
)

const (
	defaultTimeLimit = 20
	revealDelay      = 3 * time.Second
)

type quizAnswer struct {
	Index   int  `json:"answerIndex"`
	Correct bool `json:"correct"`
	Points  int  `json:"points"`
}

// QuizMode runs the timed lyric quiz. Deadlines are server-authoritative:
// the award is computed from the server-side remaining time, not a
// client-reported countdown, so every participant races the same clock.
type QuizMode struct {
	status    Status
	song      *Song
	questions []Question

	index    int
	phase    quizPhase
	deadline time.Time

	answers []map[string]quizAnswer
	scores  map[string]int
}

// NewQuizMode returns a quiz session in Waiting.
func NewQuizMode() *QuizMode {
	return &QuizMode{status: StatusWaiting, scores: map[string]int{}}
}

func (m *QuizMode) Kind() Kind     { return KindLyricsQuiz }
func (m *QuizMode) Status() Status { return m.status }

func (m *QuizMode) Start(song *Song, now time.Time) ([]Event, bool) {
	if m.status == StatusPlaying {
		return nil, false
	}
	if len(song.Questions) == 0 {
		return nil, false
	}
	m.status = StatusPlaying
	m.song = song
	m.questions = song.Questions
	m.index = 0
	m.phase = phaseQuestion
	m.answers = make([]map[string]quizAnswer, len(m.questions))
	for i := range m.answers {
		m.answers[i] = map[string]quizAnswer{}
	}
	m.scores = map[string]int{}
	m.deadline = now.Add(m.limit(0))

	return []Event{
		{
			Name: "quiz:game-started",
			Payload: map[string]any{
				"song":           songPayload(song),
				"totalQuestions": len(m.questions),
			},
		},
		m.questionEvent(),
	}, true
}

func (m *QuizMode) Handle(cmd Command, now time.Time) []Event {
	switch cmd.Name {
	case CmdAnswer:
		return m.handleAnswer(cmd, now)
	case CmdEndSong:
		return m.Finish(now)
	}
	return nil
}

func (m *QuizMode) handleAnswer(cmd Command, now time.Time) []Event {
	if m.status != StatusPlaying || m.phase != phaseQuestion {
		return nil
	}
	if cmd.QuestionIndex != m.index {
		return nil
	}
	// One answer per question per participant; later attempts are ignored
	// silently rather than rejected with an error.
	if _, done := m.answers[m.index][cmd.Participant]; done {
		return nil
	}

	q := m.questions[m.index]
	remaining := m.deadline.Sub(now)
	if remaining < 0 {
		remaining = 0
	}

	correct := cmd.AnswerIndex == q.CorrectIndex
	points := 0
	if correct {
		limit := m.limit(m.index)
		points = int(math.Round(float64(m.points(q)) * remaining.Seconds() / limit.Seconds()))
	}

	m.answers[m.index][cmd.Participant] = quizAnswer{Index: cmd.AnswerIndex, Correct: correct, Points: points}
	m.scores[cmd.Participant] += points

	return []Event{{
		Name: "quiz:answered",
		Payload: map[string]any{
			"participantId": cmd.Participant,
			"questionIndex": m.index,
		},
	}}
}

func (m *QuizMode) HandleTimer(now time.Time) []Event {
	if m.status != StatusPlaying || now.Before(m.deadline) {
		return nil
	}

	if m.phase == phaseQuestion {
		// Time is up: reveal, then advance after a fixed delay.
		m.phase = phaseReveal
		m.deadline = now.Add(revealDelay)

		type outcome struct {
			ParticipantID string `json:"participantId"`
			Correct       bool   `json:"correct"`
			Points        int    `json:"points"`
		}
		results := make([]outcome, 0, len(m.answers[m.index]))
		for id, a := range m.answers[m.index] {
			results = append(results, outcome{ParticipantID: id, Correct: a.Correct, Points: a.Points})
		}
		return []Event{{
			Name: "quiz:reveal",
			Payload: map[string]any{
				"questionIndex": m.index,
				"correctIndex":  m.questions[m.index].CorrectIndex,
				"results":       results,
			},
		}}
	}

	m.index++
	if m.index >= len(m.questions) {
		return m.finishEvents()
	}
	m.phase = phaseQuestion
	m.deadline = now.Add(m.limit(m.index))
	return []Event{m.questionEvent()}
}

func (m *QuizMode) Finish(now time.Time) []Event {
	if m.status != StatusPlaying {
		return nil
	}
	return m.finishEvents()
}

func (m *QuizMode) finishEvents() []Event {
	m.status = StatusFinished
	return []Event{{
		Name:    "quiz:game-ended",
		Payload: map[string]any{"scores": m.scores},
	}}
}

func (m *QuizMode) Deadline() (time.Time, bool) {
	return m.deadline, m.status == StatusPlaying
}

// Forget drops a departed participant's answers and points.
func (m *QuizMode) Forget(participant string) {
	delete(m.scores, participant)
	for _, byParticipant := range m.answers {
		delete(byParticipant, participant)
	}
}

func (m *QuizMode) Scores() map[string]int {
	out := make(map[string]int, len(m.scores))
	for id, s := range m.scores {
		out[id] = s
	}
	return out
}

// Answered reports per-participant correct and total counts for result
// persistence.
func (m *QuizMode) Answered() (correct map[string]int, total int) {
	correct = map[string]int{}
	for _, byParticipant := range m.answers {
		for id, a := range byParticipant {
			if a.Correct {
				correct[id]++
			}
		}
	}
	return correct, len(m.questions)
}

func (m *QuizMode) questionEvent() Event {
	q := m.questions[m.index]
	return Event{
		Name: "quiz:question",
		Payload: map[string]any{
			"questionIndex": m.index,
			"text":          q.Text,
			"options":       q.Options,
			"timeLimit":     int(m.limit(m.index).Seconds()),
			"deadline":      m.deadline.UnixMilli(),
			"points":        m.points(q),
		},
	}
}

func (m *QuizMode) limit(i int) time.Duration {
	if m.questions[i].TimeLimit <= 0 {
		return defaultTimeLimit * time.Second
	}
	return time.Duration(m.questions[i].TimeLimit) * time.Second
}

func (m *QuizMode) points(q Question) int {
	if q.Points <= 0 {
		return 1000
	}
	return q.Points
}
