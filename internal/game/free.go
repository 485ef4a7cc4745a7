package game

import "time"

// FreePlay is the unscored sing-along mode. Transport controls from one
// participant are relayed to every other member with the reported
// timestamp; the relay is advisory, there is no server-side clock
// authority and clients tolerate divergence.
type FreePlay struct {
	status Status
	song   *Song
}

// NewFreePlay returns a free-play session in Waiting.
func NewFreePlay() *FreePlay {
	return &FreePlay{status: StatusWaiting}
}

func (f *FreePlay) Kind() Kind     { return KindNormal }
func (f *FreePlay) Status() Status { return f.status }

func (f *FreePlay) Start(song *Song, now time.Time) ([]Event, bool) {
	if f.status == StatusPlaying {
		return nil, false
	}
	f.status = StatusPlaying
	f.song = song
	return []Event{{
		Name:    "normal:game-started",
		Payload: map[string]any{"song": songPayload(song)},
	}}, true
}

func (f *FreePlay) Handle(cmd Command, now time.Time) []Event {
	switch cmd.Name {
	case CmdReady:
		return []Event{{
			Name:    "normal:player-ready",
			Payload: map[string]any{"participantId": cmd.Participant},
		}}

	case CmdPlay, CmdPause, CmdSeek:
		if f.status != StatusPlaying {
			return nil
		}
		return []Event{{
			Name: "normal:sync-" + cmd.Name,
			Payload: map[string]any{
				"currentTime":   cmd.Time,
				"participantId": cmd.Participant,
			},
			Except: cmd.Participant,
		}}

	case CmdEndSong:
		return f.Finish(now)
	}
	return nil
}

func (f *FreePlay) Finish(now time.Time) []Event {
	if f.status != StatusPlaying {
		return nil
	}
	f.status = StatusFinished
	return []Event{{Name: "normal:song-ended"}}
}

func (f *FreePlay) Deadline() (time.Time, bool)       { return time.Time{}, false }
func (f *FreePlay) HandleTimer(now time.Time) []Event { return nil }
func (f *FreePlay) Forget(participant string)         {}
func (f *FreePlay) Scores() map[string]int            { return nil }
