// Package store persists rooms, processed songs and game results behind
// gorm. The Store also adapts its records into the playable song payload
// the game engine runs on.
package store

import (
	"context"
	"errors"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kero-live/kero-server/internal/game"
	"github.com/kero-live/kero-server/internal/scoring"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrUnauthorized = errors.New("not the owner")
)

// ProcessingResult is what the media worker reports for a finished job.
type ProcessingResult struct {
	Status          string             `json:"status"`
	VocalsURL       string             `json:"vocalsUrl"`
	InstrumentalURL string             `json:"instrumentalUrl"`
	Duration        float64            `json:"duration"`
	Lyrics          []game.LyricLine   `json:"lyrics"`
	Pitch           []scoring.RefPoint `json:"pitch"`
	Questions       []game.Question    `json:"questions"`
}

type Store struct {
	db   *gorm.DB
	refs ReferenceCache
}

// Open connects to postgres and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return New(db)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	err := db.AutoMigrate(
		&RoomRecord{}, &SongRecord{}, &LyricsLineRecord{},
		&PitchPointRecord{}, &QuizQuestionRecord{}, &ScoreRecord{},
	)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) CreateRoom(ctx context.Context, rec *RoomRecord) error {
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *Store) RoomByCode(ctx context.Context, code string) (*RoomRecord, error) {
	var rec RoomRecord
	err := s.db.WithContext(ctx).Where("code = ?", code).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// PublicRooms lists non-private rooms, newest first, optionally filtered
// by game mode.
func (s *Store) PublicRooms(ctx context.Context, mode string) ([]RoomRecord, error) {
	q := s.db.WithContext(ctx).Where("private = ?", false).Order("created_at DESC")
	if mode != "" {
		q = q.Where("game_mode = ?", mode)
	}
	var recs []RoomRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *Store) UpdateRoomStatus(ctx context.Context, code, status string) error {
	res := s.db.WithContext(ctx).Model(&RoomRecord{}).Where("code = ?", code).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRoom removes a room on behalf of userID; only the creating host
// may delete.
func (s *Store) DeleteRoom(ctx context.Context, code, userID string) error {
	rec, err := s.RoomByCode(ctx, code)
	if err != nil {
		return err
	}
	if rec.HostUserID != userID {
		return ErrUnauthorized
	}
	return s.db.WithContext(ctx).Delete(rec).Error
}

func (s *Store) CreateSong(ctx context.Context, rec *SongRecord) error {
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *Store) SongByID(ctx context.Context, id string) (*SongRecord, error) {
	var rec SongRecord
	err := s.db.WithContext(ctx).
		Preload("Lyrics").Preload("PitchPoints").Preload("Questions").
		First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) SongStatus(ctx context.Context, id string) (string, error) {
	var rec SongRecord
	err := s.db.WithContext(ctx).Select("status").First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return rec.Status, nil
}

// UpdateProcessingResult applies a worker callback: song fields plus the
// derived lyric, pitch and quiz rows, atomically.
func (s *Store) UpdateProcessingResult(ctx context.Context, id string, res ProcessingResult) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upd := tx.Model(&SongRecord{}).Where("id = ?", id).Updates(map[string]any{
			"status":           res.Status,
			"vocals_url":       res.VocalsURL,
			"instrumental_url": res.InstrumentalURL,
			"duration":         res.Duration,
		})
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return ErrNotFound
		}

		for i, ln := range res.Lyrics {
			rec := LyricsLineRecord{SongID: id, Seq: i, StartTime: ln.StartTime, EndTime: ln.EndTime, Text: ln.Text}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
		}
		for _, p := range res.Pitch {
			rec := PitchPointRecord{SongID: id, Time: p.Time, Frequency: p.Frequency}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
		}
		for i, q := range res.Questions {
			rec := QuizQuestionRecord{
				SongID: id, Seq: i, Text: q.Text, Options: q.Options,
				CorrectIndex: q.CorrectIndex, TimeLimit: q.TimeLimit, Points: q.Points,
			}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// QuizQuestions returns the quiz items for a song in presentation order.
func (s *Store) QuizQuestions(ctx context.Context, songID string) ([]QuizQuestionRecord, error) {
	var recs []QuizQuestionRecord
	err := s.db.WithContext(ctx).Where("song_id = ?", songID).Order("seq").Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// PitchReference returns the song's pitch track ordered by time.
func (s *Store) PitchReference(ctx context.Context, songID string) ([]scoring.RefPoint, error) {
	var recs []PitchPointRecord
	err := s.db.WithContext(ctx).Where("song_id = ?", songID).Order("time").Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]scoring.RefPoint, len(recs))
	for i, r := range recs {
		out[i] = scoring.RefPoint{Time: r.Time, Frequency: r.Frequency}
	}
	return out, nil
}
