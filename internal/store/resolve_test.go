package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kero-live/kero-server/internal/game"
	"github.com/kero-live/kero-server/internal/scoring"
)

func processedSong() *SongRecord {
	return &SongRecord{
		ID:              "song-1",
		Title:           "Test Song",
		Artist:          "Tester",
		Status:          "completed",
		VocalsURL:       "https://cdn.example/v.mp3",
		InstrumentalURL: "https://cdn.example/i.mp3",
		Duration:        180,
		Lyrics: []LyricsLineRecord{
			{Seq: 1, StartTime: 5, EndTime: 9, Text: "second line"},
			{Seq: 0, StartTime: 0, EndTime: 4, Text: "first line"},
		},
		PitchPoints: []PitchPointRecord{
			{Time: 1.0, Frequency: 220},
			{Time: 0.5, Frequency: 440},
		},
		Questions: []QuizQuestionRecord{
			{Seq: 0, Text: "____ line", Options: []string{"first", "last"}, CorrectIndex: 0, TimeLimit: 15, Points: 1000},
		},
	}
}

func TestToGameSong_LyricsOrderedBySeq(t *testing.T) {
	song := toGameSong(processedSong(), game.KindNormal)

	require.Len(t, song.Lyrics, 2)
	assert.Equal(t, "first line", song.Lyrics[0].Text)
	assert.Equal(t, "second line", song.Lyrics[1].Text)
	assert.Empty(t, song.Pitch)
	assert.Empty(t, song.Questions)
}

func TestToGameSong_ScoredPlayCarriesPitchOrderedByTime(t *testing.T) {
	song := toGameSong(processedSong(), game.KindPerfectScore)

	require.Len(t, song.Pitch, 2)
	assert.Equal(t, 0.5, song.Pitch[0].Time)
	assert.Equal(t, 440.0, song.Pitch[0].Frequency)
	assert.Empty(t, song.Questions)
}

type fakeReferenceCache struct {
	points []scoring.RefPoint
	err    error
	calls  int
}

func (f *fakeReferenceCache) Reference(ctx context.Context, songID string) ([]scoring.RefPoint, error) {
	f.calls++
	return f.points, f.err
}

func TestPitchFor_CacheServedFirst(t *testing.T) {
	cached := []scoring.RefPoint{{Time: 0.1, Frequency: 330}}
	refs := &fakeReferenceCache{points: cached}
	s := &Store{refs: refs}

	fromRecord := []scoring.RefPoint{{Time: 0.5, Frequency: 440}}
	got := s.pitchFor(context.Background(), "song-1", fromRecord)

	assert.Equal(t, cached, got)
	assert.Equal(t, 1, refs.calls)
}

func TestPitchFor_FallsBackToRecordRows(t *testing.T) {
	fromRecord := []scoring.RefPoint{{Time: 0.5, Frequency: 440}}

	miss := &Store{refs: &fakeReferenceCache{err: errors.New("cache miss")}}
	assert.Equal(t, fromRecord, miss.pitchFor(context.Background(), "song-1", fromRecord))

	empty := &Store{refs: &fakeReferenceCache{}}
	assert.Equal(t, fromRecord, empty.pitchFor(context.Background(), "song-1", fromRecord))

	uncached := &Store{}
	assert.Equal(t, fromRecord, uncached.pitchFor(context.Background(), "song-1", fromRecord))
}

func TestToGameSong_QuizCarriesQuestions(t *testing.T) {
	song := toGameSong(processedSong(), game.KindLyricsQuiz)

	require.Len(t, song.Questions, 1)
	assert.Equal(t, []string{"first", "last"}, song.Questions[0].Options)
	assert.Equal(t, 15, song.Questions[0].TimeLimit)
	assert.Empty(t, song.Pitch)
}
