// Package httpapi is the REST surface: room lifecycle, song lookups,
// catalog search and the media worker callback. Live session traffic
// goes over the websocket endpoint instead.
package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kero-live/kero-server/internal/catalog"
	"github.com/kero-live/kero-server/internal/game"
	"github.com/kero-live/kero-server/internal/hub"
	"github.com/kero-live/kero-server/internal/media"
	"github.com/kero-live/kero-server/internal/room"
	"github.com/kero-live/kero-server/internal/store"
)

// API bundles the collaborators the REST handlers need.
type API struct {
	Hub     *hub.Hub
	Store   *store.Store
	Media   *media.Service
	Catalog *catalog.Client
	Log     *zap.Logger
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Message: msg})
}

// GenerateCode returns a 6-character room code.
func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

type createRoomRequest struct {
	Name            string `json:"name"`
	GameMode        string `json:"gameMode"`
	HostUserID      string `json:"hostUserId"`
	Private         bool   `json:"private"`
	Passphrase      string `json:"passphrase"`
	MaxParticipants int    `json:"maxParticipants"`
}

func (a *API) createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.GameMode == "" {
		req.GameMode = string(game.KindNormal)
	}
	if !game.ValidKind(req.GameMode) {
		writeErr(w, http.StatusBadRequest, "unknown game mode")
		return
	}

	var code string
	for {
		c, err := GenerateCode()
		if err != nil {
			writeErr(w, http.StatusInternalServerError, "failed to generate code")
			return
		}
		reply := make(chan *room.Room, 1)
		a.Hub.Inbox() <- hub.GetRoom{Code: c, Reply: reply}
		if <-reply == nil {
			code = c
			break
		}
		a.Log.Debug("room code collision, regenerating", zap.String("code", c))
	}

	rec := &store.RoomRecord{
		Code:            code,
		Name:            req.Name,
		GameMode:        req.GameMode,
		Status:          string(game.StatusWaiting),
		HostUserID:      req.HostUserID,
		Private:         req.Private,
		Passphrase:      req.Passphrase,
		MaxParticipants: req.MaxParticipants,
	}
	if err := a.Store.CreateRoom(r.Context(), rec); err != nil {
		a.Log.Error("room persistence failed", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	reply := make(chan *room.Room, 1)
	a.Hub.Inbox() <- hub.CreateRoom{
		Cfg: room.Config{
			Code:       code,
			Name:       req.Name,
			Kind:       game.Kind(req.GameMode),
			HostUserID: req.HostUserID,
			Capacity:   req.MaxParticipants,
			Private:    req.Private,
		},
		Reply: reply,
	}
	if <-reply == nil {
		writeErr(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"code": code, "gameMode": req.GameMode})
}

func (a *API) listRooms(w http.ResponseWriter, r *http.Request) {
	recs, err := a.Store.PublicRooms(r.Context(), r.URL.Query().Get("gameMode"))
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to list rooms")
		return
	}

	type listedRoom struct {
		Code            string `json:"code"`
		Name            string `json:"name"`
		GameMode        string `json:"gameMode"`
		Status          string `json:"status"`
		MaxParticipants int    `json:"maxParticipants"`
		Participants    int    `json:"participants"`
	}
	out := make([]listedRoom, 0, len(recs))
	for _, rec := range recs {
		lr := listedRoom{
			Code:            rec.Code,
			Name:            rec.Name,
			GameMode:        rec.GameMode,
			Status:          rec.Status,
			MaxParticipants: rec.MaxParticipants,
		}
		if v, ok := a.liveView(rec.Code); ok {
			lr.Status = string(v.Status)
			lr.Participants = len(v.Participants)
		}
		out = append(out, lr)
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": out})
}

func (a *API) getRoom(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if v, ok := a.liveView(code); ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"code":         v.Code,
			"name":         v.Name,
			"gameMode":     v.Kind,
			"status":       v.Status,
			"participants": v.Participants,
			"queue":        v.Queue,
		})
		return
	}

	rec, err := a.Store.RoomByCode(r.Context(), code)
	if errors.Is(err, store.ErrNotFound) {
		writeErr(w, http.StatusNotFound, "room not found")
		return
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to load room")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"code":     rec.Code,
		"name":     rec.Name,
		"gameMode": rec.GameMode,
		"status":   rec.Status,
	})
}

func (a *API) deleteRoom(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	userID := r.URL.Query().Get("user")

	err := a.Store.DeleteRoom(r.Context(), code, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeErr(w, http.StatusNotFound, "room not found")
		return
	case errors.Is(err, store.ErrUnauthorized):
		writeErr(w, http.StatusForbidden, "only the host can delete a room")
		return
	case err != nil:
		writeErr(w, http.StatusInternalServerError, "failed to delete room")
		return
	}

	a.Hub.Inbox() <- hub.RemoveRoom{Code: code}
	writeJSON(w, http.StatusOK, map[string]any{"code": code})
}

func (a *API) liveView(code string) (room.View, bool) {
	reply := make(chan *room.Room, 1)
	a.Hub.Inbox() <- hub.GetRoom{Code: code, Reply: reply}
	rm := <-reply
	if rm == nil {
		return room.View{}, false
	}
	vr := make(chan room.View, 1)
	rm.Inbox() <- room.GetState{Reply: vr}
	return <-vr, true
}

type submitSongRequest struct {
	SourceID string `json:"sourceId"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
}

func (a *API) submitSong(w http.ResponseWriter, r *http.Request) {
	var req submitSongRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.Title == "" {
		writeErr(w, http.StatusBadRequest, "title is required")
		return
	}

	songID, err := a.Media.Submit(r.Context(), req.SourceID, req.Title, req.Artist)
	if err != nil {
		a.Log.Error("song submission failed", zap.Error(err))
		writeErr(w, http.StatusBadGateway, "failed to submit song for processing")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"songId": songID})
}

func (a *API) getSong(w http.ResponseWriter, r *http.Request) {
	rec, err := a.Store.SongByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeErr(w, http.StatusNotFound, "song not found")
		return
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to load song")
		return
	}

	type line struct {
		StartTime float64 `json:"startTime"`
		EndTime   float64 `json:"endTime"`
		Text      string  `json:"text"`
	}
	lyrics := make([]line, 0, len(rec.Lyrics))
	for _, ln := range rec.Lyrics {
		lyrics = append(lyrics, line{StartTime: ln.StartTime, EndTime: ln.EndTime, Text: ln.Text})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":              rec.ID,
		"title":           rec.Title,
		"artist":          rec.Artist,
		"status":          rec.Status,
		"vocalsUrl":       rec.VocalsURL,
		"instrumentalUrl": rec.InstrumentalURL,
		"duration":        rec.Duration,
		"lyrics":          lyrics,
	})
}

func (a *API) songStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := a.Media.Status(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeErr(w, http.StatusNotFound, "song not found")
		return
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to load status")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"songId": id, "status": st})
}

func (a *API) songQuiz(w http.ResponseWriter, r *http.Request) {
	recs, err := a.Store.QuizQuestions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to load questions")
		return
	}

	// Answers stay server-side; clients only get what they must render.
	type question struct {
		Text      string   `json:"text"`
		Options   []string `json:"options"`
		TimeLimit int      `json:"timeLimit"`
		Points    int      `json:"points"`
	}
	out := make([]question, 0, len(recs))
	for _, q := range recs {
		out = append(out, question{Text: q.Text, Options: q.Options, TimeLimit: q.TimeLimit, Points: q.Points})
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": out})
}

func (a *API) processingCallback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var res store.ProcessingResult
	if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
		writeErr(w, http.StatusBadRequest, "bad json")
		return
	}

	err := a.Media.Complete(r.Context(), id, res)
	if errors.Is(err, store.ErrNotFound) {
		writeErr(w, http.StatusNotFound, "song not found")
		return
	}
	if err != nil {
		a.Log.Error("processing callback failed", zap.String("songId", id), zap.Error(err))
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"songId": id})
}

func (a *API) searchSongs(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	artist := r.URL.Query().Get("artist")
	if title == "" && artist == "" {
		writeErr(w, http.StatusBadRequest, "title or artist is required")
		return
	}

	var (
		songs []catalog.Song
		err   error
	)
	switch {
	case title != "" && artist != "":
		songs, err = a.Catalog.Search(r.Context(), title, artist)
	case title != "":
		songs, err = a.Catalog.SearchByTitle(r.Context(), title)
	default:
		songs, err = a.Catalog.SearchBySinger(r.Context(), artist)
	}
	if err != nil {
		writeErr(w, http.StatusBadGateway, "catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"songs": songs})
}

func (a *API) searchByNumber(w http.ResponseWriter, r *http.Request) {
	number := r.URL.Query().Get("no")
	if number == "" {
		writeErr(w, http.StatusBadRequest, "no is required")
		return
	}
	songs, err := a.Catalog.SearchByNumber(r.Context(), number)
	if err != nil {
		writeErr(w, http.StatusBadGateway, "catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"songs": songs})
}

func (a *API) popularSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := a.Catalog.Popular(r.Context())
	if err != nil {
		writeErr(w, http.StatusBadGateway, "catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"songs": songs})
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
