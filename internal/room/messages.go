package room

import (
	"github.com/kero-live/kero-server/internal/game"
	"github.com/kero-live/kero-server/internal/queue"
)

// Msg is the sealed set of room inbox messages.
type Msg interface{ isRoomMsg() }

// JoinReply answers a Join. Err is RoomFull when capacity is reached.
type JoinReply struct {
	Participant *Participant
	Err         error
}

// Join registers a member and its outbox. The caller receives the full
// room snapshot; every member receives participant-joined.
type Join struct {
	ParticipantID string
	UserID        string
	Nickname      string
	Outbox        chan Envelope
	Reply         chan JoinReply
}

// Leave removes the participant entity (explicit departure).
type Leave struct{ ParticipantID string }

// Disconnect marks the participant disconnected but keeps the entity for
// reconnection. Idempotent after a Leave. Outbox, when set, identifies
// the disconnecting transport; a stale Disconnect whose outbox has been
// superseded by a reconnect is dropped.
type Disconnect struct {
	ParticipantID string
	Outbox        chan Envelope
}

// RequestSong enqueues a song request; the pipeline resolves it
// asynchronously. LocalID must be unique for the life of the queue.
type RequestSong struct {
	ParticipantID string
	LocalID       string
	Title         string
	Artist        string
}

// RemoveSong deletes a queued item that has not been consumed.
type RemoveSong struct {
	ParticipantID string
	LocalID       string
}

// StartGame consumes a Ready queue item and starts the active mode. An
// empty LocalID selects the first Ready item in arrival order. Reply is
// optional; failures are surfaced only to the caller.
type StartGame struct {
	ParticipantID string
	LocalID       string
	Reply         chan error
}

func (s StartGame) reply(err error) {
	if s.Reply != nil {
		s.Reply <- err
	}
}

// FromClient routes a mode-specific intent to the active game session.
type FromClient struct{ Cmd game.Command }

// GetState is the snapshot query clients use to reconcile after a missed
// broadcast.
type GetState struct{ Reply chan View }

// Shutdown tears the room down and closes every member stream.
type Shutdown struct{}

type timerFired struct{ gen uint64 }

func (Join) isRoomMsg()        {}
func (Leave) isRoomMsg()       {}
func (Disconnect) isRoomMsg()  {}
func (RequestSong) isRoomMsg() {}
func (RemoveSong) isRoomMsg()  {}
func (StartGame) isRoomMsg()   {}
func (FromClient) isRoomMsg()  {}
func (GetState) isRoomMsg()    {}
func (Shutdown) isRoomMsg()    {}
func (timerFired) isRoomMsg()  {}

// View is a consistent read of room state, taken inside the loop.
type View struct {
	Version      int
	Code         string
	Name         string
	Kind         game.Kind
	Status       game.Status
	Participants []Participant
	Queue        []queue.Item
	NumClients   int
}
