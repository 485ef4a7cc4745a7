// Package ws bridges websocket connections to room actors. Each
// connection runs one reader loop and one writer goroutine; all room
// state stays behind the room's inbox.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kero-live/kero-server/internal/game"
	"github.com/kero-live/kero-server/internal/hub"
	"github.com/kero-live/kero-server/internal/room"
	"github.com/kero-live/kero-server/internal/types"
)

const writeTimeout = 3 * time.Second

// Handler upgrades the request and joins the participant to the room in
// the code query param. participant may carry a previous id to pick a
// disconnected entity back up.
func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		nickname := r.URL.Query().Get("nickname")
		if code == "" || nickname == "" {
			http.Error(w, "missing code or nickname", http.StatusBadRequest)
			return
		}

		reply := make(chan *room.Room, 1)
		h.Inbox() <- hub.GetRoom{Code: code, Reply: reply}
		rm := <-reply
		if rm == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		participantID := r.URL.Query().Get("participant")
		if participantID == "" {
			participantID = uuid.NewString()
		}

		out := make(chan room.Envelope, 32)
		joinReply := make(chan room.JoinReply, 1)
		rm.Inbox() <- room.Join{
			ParticipantID: participantID,
			UserID:        r.URL.Query().Get("user"),
			Nickname:      nickname,
			Outbox:        out,
			Reply:         joinReply,
		}
		jr := <-joinReply
		if jr.Err != nil {
			writeError(r.Context(), conn, jr.Err.Error())
			conn.Close(websocket.StatusPolicyViolation, jr.Err.Error())
			return
		}
		// Disconnect, not Leave: the entity stays for the reconnect grace
		// unless the client said goodbye explicitly. The outbox identifies
		// this transport so a reconnect that already took the entity over
		// is not torn down by our exit.
		defer func() { rm.Inbox() <- room.Disconnect{ParticipantID: participantID, Outbox: out} }()

		log.Debug("client connected",
			zap.String("room", code), zap.String("participant", participantID))

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for env := range out {
				payload, err := json.Marshal(types.ServerMessage{Event: env.Event, Payload: env.Payload})
				if err != nil {
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				werr := conn.Write(ctx, websocket.MessageText, payload)
				cancel()
				if werr != nil {
					return
				}
			}
			// Outbox closed: the room dropped us (slow) or shut down.
			conn.Close(websocket.StatusGoingAway, "room closed stream")
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeError(r.Context(), conn, "bad json")
				continue
			}

			switch cm.Type {
			case "leave-room":
				rm.Inbox() <- room.Leave{ParticipantID: participantID}
				return

			case "request-song":
				localID := cm.LocalID
				if localID == "" {
					localID = uuid.NewString()
				}
				rm.Inbox() <- room.RequestSong{
					ParticipantID: participantID,
					LocalID:       localID,
					Title:         cm.Title,
					Artist:        cm.Artist,
				}

			case "remove-song":
				rm.Inbox() <- room.RemoveSong{ParticipantID: participantID, LocalID: cm.LocalID}

			case "start-game":
				errReply := make(chan error, 1)
				rm.Inbox() <- room.StartGame{ParticipantID: participantID, LocalID: cm.LocalID, Reply: errReply}
				if serr := <-errReply; serr != nil {
					writeError(r.Context(), conn, serr.Error())
				}

			default:
				cmd, ok := toCommand(participantID, cm)
				if !ok {
					writeError(r.Context(), conn, "unknown type")
					continue
				}
				rm.Inbox() <- room.FromClient{Cmd: cmd}
			}
		}
	}
}

// toCommand maps a prefixed wire type ("normal:play", "score:frame",
// "quiz:answer") to a game command for the room's active mode.
func toCommand(participantID string, m types.ClientMessage) (game.Command, bool) {
	_, name, ok := strings.Cut(m.Type, ":")
	if !ok {
		return game.Command{}, false
	}

	cmd := game.Command{Participant: participantID, Name: name}
	switch name {
	case game.CmdReady, game.CmdEndSong, game.CmdMicOn, game.CmdMicOff, game.CmdMicDenied:
		return cmd, true
	case game.CmdPlay, game.CmdPause, game.CmdSeek:
		cmd.Time = m.Time
		return cmd, true
	case game.CmdFrame:
		cmd.Time = m.Time
		cmd.Samples = m.Samples
		cmd.SampleRate = m.SampleRate
		return cmd, true
	case game.CmdAnswer:
		cmd.QuestionIndex = m.QuestionIndex
		cmd.AnswerIndex = m.AnswerIndex
		return cmd, true
	}
	return game.Command{}, false
}

func writeError(ctx context.Context, conn *websocket.Conn, msg string) {
	payload, _ := json.Marshal(types.ServerMessage{Event: "error", Error: msg})
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, payload)
}
