package store

import "time"

// RoomRecord is the persisted half of a room: identity and listing
// metadata. Live membership and game state stay in the room actor.
type RoomRecord struct {
	ID              uint   `gorm:"primaryKey"`
	Code            string `gorm:"uniqueIndex;size:12"`
	Name            string
	GameMode        string `gorm:"index"`
	Status          string
	HostUserID      string
	Private         bool
	Passphrase      string
	MaxParticipants int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SongRecord is a processed (or in-flight) karaoke track.
type SongRecord struct {
	ID              string `gorm:"primaryKey;size:36"`
	SourceID        string `gorm:"index"`
	Title           string
	Artist          string
	Status          string `gorm:"index"`
	VocalsURL       string
	InstrumentalURL string
	Duration        float64
	Lyrics          []LyricsLineRecord   `gorm:"foreignKey:SongID"`
	PitchPoints     []PitchPointRecord   `gorm:"foreignKey:SongID"`
	Questions       []QuizQuestionRecord `gorm:"foreignKey:SongID"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LyricsLineRecord is one timed line, ordered by Seq.
type LyricsLineRecord struct {
	ID        uint   `gorm:"primaryKey"`
	SongID    string `gorm:"index;size:36"`
	Seq       int
	StartTime float64
	EndTime   float64
	Text      string
}

// PitchPointRecord is one point of the vocal pitch reference.
type PitchPointRecord struct {
	ID        uint   `gorm:"primaryKey"`
	SongID    string `gorm:"index;size:36"`
	Time      float64
	Frequency float64
}

// QuizQuestionRecord is one fill-in-the-blank item, ordered by Seq.
type QuizQuestionRecord struct {
	ID           uint   `gorm:"primaryKey"`
	SongID       string `gorm:"index;size:36"`
	Seq          int
	Text         string
	Options      []string `gorm:"serializer:json"`
	CorrectIndex int
	TimeLimit    int
	Points       int
}

// ScoreRecord is one participant's final line for a finished game.
type ScoreRecord struct {
	ID            uint   `gorm:"primaryKey"`
	SongID        string `gorm:"index;size:36"`
	GameMode      string
	ParticipantID string
	UserID        string `gorm:"index"`
	Score         int
	Accuracy      float64
	Correct       int
	Total         int
	CreatedAt     time.Time
}
