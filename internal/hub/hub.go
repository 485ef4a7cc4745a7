// Package hub owns the live room registry. Like a room, the hub is a
// single-goroutine actor: creation, lookup and teardown of rooms are
// serialized through its inbox, so two concurrent creates for the same
// code can never race.
package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/kero-live/kero-server/internal/queue"
	"github.com/kero-live/kero-server/internal/room"
)

// Msg is the sealed set of hub messages.
type Msg interface{ isHubMsg() }

// CreateRoom registers a room actor for cfg.Code. Creating an existing
// code returns the existing room.
type CreateRoom struct {
	Cfg   room.Config
	Reply chan *room.Room
}

// GetRoom looks up a live room. Reply receives nil when the code is
// unknown.
type GetRoom struct {
	Code  string
	Reply chan *room.Room
}

// RemoveRoom shuts the room down and drops it from the registry.
type RemoveRoom struct {
	Code string
}

// ListRooms returns every live room, for occupancy reporting.
type ListRooms struct {
	Reply chan []*room.Room
}

// Shutdown stops every room and then the hub itself.
type Shutdown struct{}

func (CreateRoom) isHubMsg() {}
func (GetRoom) isHubMsg()    {}
func (RemoveRoom) isHubMsg() {}
func (ListRooms) isHubMsg()  {}
func (Shutdown) isHubMsg()   {}

// Hub routes room lifecycle messages and holds the shared collaborators
// every room is built with.
type Hub struct {
	inbox chan Msg
	rooms map[string]*room.Room

	pipeline *queue.Pipeline
	songs    room.SongSource
	recorder room.Recorder
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New starts the hub actor.
func New(parent context.Context, pipeline *queue.Pipeline, songs room.SongSource, recorder room.Recorder, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan Msg, 64),
		rooms:    make(map[string]*room.Room),
		pipeline: pipeline,
		songs:    songs,
		recorder: recorder,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- Msg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				if r := h.rooms[msg.Cfg.Code]; r != nil {
					msg.Reply <- r
					break
				}
				r := room.New(h.ctx, msg.Cfg, h.pipeline, h.songs, h.recorder, h.log)
				h.rooms[msg.Cfg.Code] = r
				h.log.Info("room created",
					zap.String("room", msg.Cfg.Code), zap.String("mode", string(msg.Cfg.Kind)))
				msg.Reply <- r

			case GetRoom:
				msg.Reply <- h.rooms[msg.Code] // may be nil

			case RemoveRoom:
				if r, ok := h.rooms[msg.Code]; ok {
					r.Inbox() <- room.Shutdown{}
					delete(h.rooms, msg.Code)
					h.log.Info("room removed", zap.String("room", msg.Code))
				}

			case ListRooms:
				out := make([]*room.Room, 0, len(h.rooms))
				for _, r := range h.rooms {
					out = append(out, r)
				}
				msg.Reply <- out

			case Shutdown:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for _, r := range h.rooms {
		r.Inbox() <- room.Shutdown{}
	}
	clear(h.rooms)
	h.cancel()
}
