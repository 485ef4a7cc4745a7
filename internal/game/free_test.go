package game

import (
	"testing"
	"time"
)

func testSong() *Song {
	return &Song{
		ID:     "song-1",
		Title:  "Test Song",
		Artist: "Tester",
		Lyrics: []LyricLine{{StartTime: 0, EndTime: 2, Text: "la la"}},
	}
}

func containsEvent(events []Event, name string) bool {
	for _, e := range events {
		if e.Name == name {
			return true
		}
	}
	return false
}

func TestFreePlay_StartBroadcastsSongOnce(t *testing.T) {
	f := NewFreePlay()
	now := time.Now()

	events, ok := f.Start(testSong(), now)
	if !ok || !containsEvent(events, "normal:game-started") {
		t.Fatalf("expected game-started broadcast, got %+v (ok=%v)", events, ok)
	}
	if f.Status() != StatusPlaying {
		t.Fatalf("want playing, got %s", f.Status())
	}

	// Re-entrant start while playing is ignored: no duplicate broadcast,
	// no progress reset.
	if events, ok := f.Start(testSong(), now); ok || events != nil {
		t.Fatalf("duplicate start must be a no-op, got %+v (ok=%v)", events, ok)
	}
}

func TestFreePlay_RelaysExcludeSender(t *testing.T) {
	f := NewFreePlay()
	f.Start(testSong(), time.Now())

	cases := []struct {
		cmd  string
		want string
	}{
		{CmdPlay, "normal:sync-play"},
		{CmdPause, "normal:sync-pause"},
		{CmdSeek, "normal:sync-seek"},
	}
	for _, tc := range cases {
		t.Run(tc.cmd, func(t *testing.T) {
			events := f.Handle(Command{Participant: "p1", Name: tc.cmd, Time: 12.3}, time.Now())
			if len(events) != 1 || events[0].Name != tc.want {
				t.Fatalf("want single %s relay, got %+v", tc.want, events)
			}
			if events[0].Except != "p1" {
				t.Fatalf("relay must exclude the sender, got Except=%q", events[0].Except)
			}
		})
	}
}

func TestFreePlay_NoRelayBeforeStart(t *testing.T) {
	f := NewFreePlay()
	if events := f.Handle(Command{Participant: "p1", Name: CmdPlay}, time.Now()); events != nil {
		t.Fatalf("transport relay before start must be ignored, got %+v", events)
	}
}

func TestFreePlay_EndSongFinishes(t *testing.T) {
	f := NewFreePlay()
	f.Start(testSong(), time.Now())

	events := f.Handle(Command{Participant: "p1", Name: CmdEndSong}, time.Now())
	if !containsEvent(events, "normal:song-ended") {
		t.Fatalf("expected song-ended, got %+v", events)
	}
	if f.Status() != StatusFinished {
		t.Fatalf("want finished, got %s", f.Status())
	}

	// Finished -> restartable.
	if _, ok := f.Start(testSong(), time.Now()); !ok {
		t.Fatalf("start from finished must be valid")
	}
}
