package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/kero-live/kero-server/internal/game"
	"github.com/kero-live/kero-server/internal/room"
	"github.com/kero-live/kero-server/internal/scoring"
)

// ReferenceCache serves pitch reference tracks ahead of the database.
type ReferenceCache interface {
	Reference(ctx context.Context, songID string) ([]scoring.RefPoint, error)
}

// UseReferenceCache makes Resolve consult c for pitch tracks before the
// durable rows.
func (s *Store) UseReferenceCache(c ReferenceCache) { s.refs = c }

// Resolve loads a processed song and assembles the playable payload for
// kind. It satisfies the room's song source.
func (s *Store) Resolve(ctx context.Context, songID string, kind game.Kind) (*game.Song, error) {
	rec, err := s.SongByID(ctx, songID)
	if err != nil {
		return nil, err
	}
	if rec.Status != "completed" {
		return nil, fmt.Errorf("song %s is not processed (status %s)", songID, rec.Status)
	}

	song := toGameSong(rec, kind)
	if kind == game.KindPerfectScore {
		song.Pitch = s.pitchFor(ctx, songID, song.Pitch)
	}
	return song, nil
}

// pitchFor prefers the cached reference; the rows already loaded with the
// record are the fallback.
func (s *Store) pitchFor(ctx context.Context, songID string, fromRecord []scoring.RefPoint) []scoring.RefPoint {
	if s.refs == nil {
		return fromRecord
	}
	points, err := s.refs.Reference(ctx, songID)
	if err != nil || len(points) == 0 {
		return fromRecord
	}
	return points
}

// RecordResult writes one score row per participant for a finished game.
// It satisfies the room's recorder.
func (s *Store) RecordResult(ctx context.Context, songID string, kind game.Kind, entries []room.ResultEntry) error {
	recs := make([]ScoreRecord, len(entries))
	for i, e := range entries {
		recs[i] = ScoreRecord{
			SongID:        songID,
			GameMode:      string(kind),
			ParticipantID: e.ParticipantID,
			UserID:        e.UserID,
			Score:         e.Score,
			Accuracy:      e.Accuracy,
			Correct:       e.Correct,
			Total:         e.Total,
		}
	}
	return s.db.WithContext(ctx).Create(&recs).Error
}

// toGameSong flattens a song record into the engine payload. The pitch
// reference only rides along for scored play and questions only for the
// quiz, so free play broadcasts stay small.
func toGameSong(rec *SongRecord, kind game.Kind) *game.Song {
	song := &game.Song{
		ID:              rec.ID,
		Title:           rec.Title,
		Artist:          rec.Artist,
		VocalsURL:       rec.VocalsURL,
		InstrumentalURL: rec.InstrumentalURL,
		Duration:        rec.Duration,
	}

	lines := append([]LyricsLineRecord(nil), rec.Lyrics...)
	sort.Slice(lines, func(i, j int) bool { return lines[i].Seq < lines[j].Seq })
	for _, ln := range lines {
		song.Lyrics = append(song.Lyrics, game.LyricLine{StartTime: ln.StartTime, EndTime: ln.EndTime, Text: ln.Text})
	}

	switch kind {
	case game.KindPerfectScore:
		points := append([]PitchPointRecord(nil), rec.PitchPoints...)
		sort.Slice(points, func(i, j int) bool { return points[i].Time < points[j].Time })
		for _, p := range points {
			song.Pitch = append(song.Pitch, scoring.RefPoint{Time: p.Time, Frequency: p.Frequency})
		}
	case game.KindLyricsQuiz:
		qs := append([]QuizQuestionRecord(nil), rec.Questions...)
		sort.Slice(qs, func(i, j int) bool { return qs[i].Seq < qs[j].Seq })
		for _, q := range qs {
			song.Questions = append(song.Questions, game.Question{
				Text:         q.Text,
				Options:      q.Options,
				CorrectIndex: q.CorrectIndex,
				TimeLimit:    q.TimeLimit,
				Points:       q.Points,
			})
		}
	}
	return song
}
