// Package room hosts the per-room session authority. One goroutine drains
// each room's inbox, so membership, queue and game transitions for a room
// are applied serially and every member observes broadcasts in the order
// the authority emitted them. Rooms are independent of each other.
package room

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kero-live/kero-server/internal/game"
	"github.com/kero-live/kero-server/internal/queue"
)

var (
	ErrRoomFull = errors.New("room is full")
	ErrNotReady = errors.New("song is not ready")
)

const defaultCapacity = 8

// Participant is one member of a room. The entity survives a transport
// disconnect (connected flips false) so a reconnect can pick it back up;
// only an explicit leave or room teardown removes it.
type Participant struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	Nickname  string    `json:"nickname"`
	Host      bool      `json:"isHost"`
	Connected bool      `json:"isConnected"`
	Score     int       `json:"score"`
	JoinedAt  time.Time `json:"-"`
}

// Envelope is one outbound event on a member's ordered stream.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// SongSource resolves a prepared song id into the playable payload
// (metadata, lyric timeline, pitch reference, quiz questions).
type SongSource interface {
	Resolve(ctx context.Context, songID string, kind game.Kind) (*game.Song, error)
}

// Recorder mirrors room outcomes to durable storage: status transitions
// and final game results. A nil recorder skips persistence.
type Recorder interface {
	RecordResult(ctx context.Context, songID string, kind game.Kind, entries []ResultEntry) error
	UpdateRoomStatus(ctx context.Context, code, status string) error
}

// ResultEntry is one participant's final line for a finished game.
type ResultEntry struct {
	ParticipantID string
	UserID        string
	Score         int
	Accuracy      float64
	Correct       int
	Total         int
}

// Config fixes a room's identity at creation time.
type Config struct {
	Code       string
	Name       string
	Kind       game.Kind
	HostUserID string
	Capacity   int
	Private    bool
}

// Room is the single authority for one session. All interaction goes
// through Inbox; direct field access outside the loop goroutine is not
// allowed.
type Room struct {
	cfg    Config
	status game.Status
	mode   game.Mode

	participants map[string]*Participant
	order        []string // join order, for host reassignment
	clients      map[string]chan Envelope

	items         []*queue.Item
	pipeline      *queue.Pipeline
	updates       chan queue.Update
	currentSongID string

	songs    SongSource
	recorder Recorder

	inbox    chan Msg
	version  int
	timerGen uint64

	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New starts a room actor. It runs until Shutdown or parent cancellation.
func New(parent context.Context, cfg Config, pipeline *queue.Pipeline, songs SongSource, recorder Recorder, log *zap.Logger) *Room {
	if cfg.Capacity <= 0 {
		cfg.Capacity = defaultCapacity
	}
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		cfg:          cfg,
		status:       game.StatusWaiting,
		mode:         game.NewMode(cfg.Kind),
		participants: map[string]*Participant{},
		clients:      map[string]chan Envelope{},
		pipeline:     pipeline,
		updates:      make(chan queue.Update, 16),
		songs:        songs,
		recorder:     recorder,
		inbox:        make(chan Msg, 64),
		log:          log.With(zap.String("room", cfg.Code)),
		ctx:          ctx,
		cancel:       cancel,
	}
	go r.loop()
	return r
}

// Inbox is where the transport layer and tests send room messages.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Code returns the room's join code.
func (r *Room) Code() string { return r.cfg.Code }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case u := <-r.updates:
			r.handleQueueUpdate(u)

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.handleJoin(msg)
			case Leave:
				r.removeParticipant(msg.ParticipantID, true)
			case Disconnect:
				r.handleDisconnect(msg)
			case RequestSong:
				r.handleRequestSong(msg)
			case RemoveSong:
				r.handleRemoveSong(msg)
			case StartGame:
				r.handleStartGame(msg)
			case FromClient:
				r.dispatch(r.mode.Handle(msg.Cmd, time.Now()))
				r.afterModeEvents()
			case timerFired:
				if msg.gen != r.timerGen {
					break // stale fire from a superseded deadline
				}
				r.dispatch(r.mode.HandleTimer(time.Now()))
				r.afterModeEvents()
			case GetState:
				msg.Reply <- r.view()
			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) handleJoin(msg Join) {
	// Reconnection grace: a same-id Join picks the existing entity back
	// up. The entity may still read as connected when the new transport
	// races the old one's teardown, so this is a takeover either way:
	// the old stream is closed and replaced, and the entity (host flag
	// included) is never duplicated.
	if p, ok := r.participants[msg.ParticipantID]; ok {
		if ch, live := r.clients[p.ID]; live {
			close(ch)
		}
		p.Connected = true
		r.clients[p.ID] = msg.Outbox
		msg.Reply <- JoinReply{Participant: p}
		r.send(p.ID, Envelope{Event: "room-joined", Payload: r.snapshotPayload(p)})
		r.broadcast(Envelope{Event: "participant-joined", Payload: map[string]any{"participant": p}})
		return
	}

	if r.connectedCount() >= r.cfg.Capacity {
		msg.Reply <- JoinReply{Err: ErrRoomFull}
		return
	}

	p := &Participant{
		ID:        msg.ParticipantID,
		UserID:    msg.UserID,
		Nickname:  msg.Nickname,
		Connected: true,
		JoinedAt:  time.Now(),
	}
	if r.connectedCount() == 0 {
		p.Host = true
	}
	r.participants[p.ID] = p
	r.order = append(r.order, p.ID)
	r.clients[p.ID] = msg.Outbox

	msg.Reply <- JoinReply{Participant: p}

	r.log.Info("participant joined",
		zap.String("participant", p.ID), zap.String("nickname", p.Nickname))

	// The caller gets the full snapshot; everyone (caller included, so a
	// client can render its own entry) gets the join broadcast.
	r.send(p.ID, Envelope{Event: "room-joined", Payload: r.snapshotPayload(p)})
	r.broadcast(Envelope{Event: "participant-joined", Payload: map[string]any{"participant": p}})
}

// handleDisconnect ignores a transport that no longer owns the
// participant's stream: a reconnect takeover replaces the outbox, and the
// superseded connection's teardown must not mark the new one gone.
func (r *Room) handleDisconnect(msg Disconnect) {
	if msg.Outbox != nil && r.clients[msg.ParticipantID] != msg.Outbox {
		return
	}
	r.removeParticipant(msg.ParticipantID, false)
}

// removeParticipant implements leave (drop the entity) and disconnect
// (keep it for reconnection). Both are idempotent: a second leave or a
// disconnect after leave is a no-op.
func (r *Room) removeParticipant(id string, drop bool) {
	p, ok := r.participants[id]
	if !ok {
		return
	}
	if !drop && !p.Connected {
		return
	}

	if ch, ok := r.clients[id]; ok {
		close(ch)
		delete(r.clients, id)
	}
	p.Connected = false
	wasHost := p.Host
	if drop {
		p.Host = false
		delete(r.participants, id)
		for i, oid := range r.order {
			if oid == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
		// The entity is gone for good; the active mode must not keep
		// scoring or listing it.
		r.mode.Forget(id)
	}

	// A room must never be left host-less: hand the flag to the
	// earliest-joined connected participant before broadcasting.
	if wasHost {
		r.reassignHost()
	}

	r.log.Info("participant left", zap.String("participant", id), zap.Bool("explicit", drop))
	r.broadcast(Envelope{Event: "participant-left", Payload: map[string]any{"participantId": id}})
}

func (r *Room) reassignHost() {
	for _, p := range r.participants {
		p.Host = false
	}
	for _, id := range r.order {
		if p, ok := r.participants[id]; ok && p.Connected {
			p.Host = true
			r.broadcast(Envelope{Event: "host-changed", Payload: map[string]any{"participantId": id}})
			return
		}
	}
}

func (r *Room) handleRequestSong(msg RequestSong) {
	it := &queue.Item{
		LocalID:     msg.LocalID,
		Title:       msg.Title,
		Artist:      msg.Artist,
		SubmittedBy: msg.ParticipantID,
		Status:      queue.StatusProcessing,
	}
	r.items = append(r.items, it)
	r.broadcastQueue()
	r.pipeline.Track(r.ctx, r.cfg.Code, *it, r.updates)
}

func (r *Room) handleRemoveSong(msg RemoveSong) {
	for i, it := range r.items {
		if it.LocalID == msg.LocalID {
			r.items = append(r.items[:i], r.items[i+1:]...)
			r.broadcastQueue()
			return
		}
	}
}

func (r *Room) handleQueueUpdate(u queue.Update) {
	it := r.item(u.LocalID)
	if it == nil {
		return // removed while in flight
	}
	// Ready and WaitingFallback are terminal for the queue; a late or
	// duplicate report must not regress them.
	if it.Status != queue.StatusProcessing {
		return
	}
	it.Status = u.Status
	if u.SongID != "" {
		it.SongID = u.SongID
	}
	if u.SourceID != "" {
		it.SourceID = u.SourceID
	}
	r.broadcastQueue()
}

func (r *Room) handleStartGame(msg StartGame) {
	localID := msg.LocalID
	if localID == "" {
		// "Skip to next": the first Ready item in arrival order.
		for _, it := range r.items {
			if it.Status == queue.StatusReady {
				localID = it.LocalID
				break
			}
		}
	}

	it := r.item(localID)
	if it == nil {
		// Already consumed (or never existed): duplicate start calls are
		// a no-op rather than an error.
		msg.reply(nil)
		return
	}
	if it.Status != queue.StatusReady {
		msg.reply(ErrNotReady)
		return
	}

	song, err := r.songs.Resolve(r.ctx, it.SongID, r.cfg.Kind)
	if err != nil {
		r.log.Warn("song resolve failed", zap.String("songId", it.SongID), zap.Error(err))
		msg.reply(err)
		return
	}

	events, started := r.mode.Start(song, time.Now())
	if !started {
		msg.reply(nil)
		return
	}

	// Consume exactly once, then the authoritative status flip.
	r.consume(it.LocalID)
	r.status = game.StatusPlaying
	r.currentSongID = song.ID
	r.persistStatus()
	msg.reply(nil)

	r.log.Info("game started",
		zap.String("songId", song.ID), zap.String("mode", string(r.cfg.Kind)))

	r.broadcastQueue()
	r.dispatch(events)
	r.armTimer()
}

// afterModeEvents syncs room status with the session and re-arms the
// mode's deadline timer after any command or timer fire.
func (r *Room) afterModeEvents() {
	if r.status == game.StatusPlaying && r.mode.Status() == game.StatusFinished {
		r.status = game.StatusFinished
		r.persistStatus()
		r.applyScores()
		r.persistResult()
	}
	r.armTimer()
}

func (r *Room) applyScores() {
	for id, score := range r.mode.Scores() {
		if p, ok := r.participants[id]; ok {
			p.Score += score
		}
	}
}

func (r *Room) persistStatus() {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.UpdateRoomStatus(r.ctx, r.cfg.Code, string(r.status)); err != nil {
		r.log.Warn("room status persistence failed", zap.Error(err))
	}
}

func (r *Room) persistResult() {
	if r.recorder == nil {
		return
	}
	entries := r.resultEntries()
	if len(entries) == 0 {
		return
	}
	if err := r.recorder.RecordResult(r.ctx, r.currentSongID, r.cfg.Kind, entries); err != nil {
		r.log.Warn("result persistence failed", zap.Error(err))
	}
}

func (r *Room) resultEntries() []ResultEntry {
	scores := r.mode.Scores()
	if len(scores) == 0 {
		return nil
	}

	var accuracies map[string]float64
	var correct map[string]int
	total := 0
	switch m := r.mode.(type) {
	case *game.ScoreMode:
		accuracies = m.Accuracies()
	case *game.QuizMode:
		correct, total = m.Answered()
	}

	entries := make([]ResultEntry, 0, len(scores))
	for id, score := range scores {
		e := ResultEntry{ParticipantID: id, Score: score, Accuracy: accuracies[id], Correct: correct[id], Total: total}
		if p, ok := r.participants[id]; ok {
			e.UserID = p.UserID
		}
		entries = append(entries, e)
	}
	return entries
}

// armTimer schedules the mode's next deadline as an inbox message. Each
// arm bumps the generation so a fire scheduled for a superseded deadline
// is dropped on receipt.
func (r *Room) armTimer() {
	r.timerGen++
	deadline, ok := r.mode.Deadline()
	if !ok {
		return
	}
	gen := r.timerGen
	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}
	time.AfterFunc(d, func() {
		select {
		case r.inbox <- timerFired{gen: gen}:
		case <-r.ctx.Done():
		}
	})
}

func (r *Room) dispatch(events []game.Event) {
	for _, e := range events {
		env := Envelope{Event: e.Name, Payload: e.Payload}
		switch {
		case e.Only != "":
			r.send(e.Only, env)
		case e.Except != "":
			r.broadcastExcept(e.Except, env)
		default:
			r.broadcast(env)
		}
	}
}

func (r *Room) broadcastQueue() {
	r.broadcast(Envelope{Event: "queue-updated", Payload: map[string]any{"queue": r.queueSnapshot()}})
}

func (r *Room) broadcast(env Envelope) {
	r.version++
	for id := range r.clients {
		r.send(id, env)
	}
}

func (r *Room) broadcastExcept(except string, env Envelope) {
	r.version++
	for id := range r.clients {
		if id == except {
			continue
		}
		r.send(id, env)
	}
}

// send never blocks the authority: a member that cannot keep up with its
// ordered stream is dropped and reconciles via the snapshot query on
// reconnect.
func (r *Room) send(id string, env Envelope) {
	ch, ok := r.clients[id]
	if !ok {
		return
	}
	select {
	case ch <- env:
	default:
		close(ch)
		delete(r.clients, id)
		if p, ok := r.participants[id]; ok {
			p.Connected = false
		}
		r.log.Warn("dropped slow client", zap.String("participant", id))
	}
}

func (r *Room) shutdown() {
	for id, ch := range r.clients {
		close(ch)
		delete(r.clients, id)
	}
	r.cancel()
}

func (r *Room) item(localID string) *queue.Item {
	for _, it := range r.items {
		if it.LocalID == localID {
			return it
		}
	}
	return nil
}

func (r *Room) consume(localID string) {
	for i, it := range r.items {
		if it.LocalID == localID {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return
		}
	}
}

func (r *Room) connectedCount() int {
	n := 0
	for _, p := range r.participants {
		if p.Connected {
			n++
		}
	}
	return n
}

func (r *Room) queueSnapshot() []queue.Item {
	out := make([]queue.Item, len(r.items))
	for i, it := range r.items {
		out[i] = *it
	}
	return out
}

func (r *Room) participantList() []Participant {
	out := make([]Participant, 0, len(r.participants))
	for _, id := range r.order {
		if p, ok := r.participants[id]; ok {
			out = append(out, *p)
		}
	}
	return out
}

func (r *Room) snapshotPayload(me *Participant) map[string]any {
	return map[string]any{
		"room": map[string]any{
			"code":            r.cfg.Code,
			"name":            r.cfg.Name,
			"gameMode":        r.cfg.Kind,
			"status":          r.status,
			"maxParticipants": r.cfg.Capacity,
			"participants":    r.participantList(),
			"queue":           r.queueSnapshot(),
		},
		"participant": me,
	}
}

func (r *Room) view() View {
	return View{
		Version:      r.version,
		Code:         r.cfg.Code,
		Name:         r.cfg.Name,
		Kind:         r.cfg.Kind,
		Status:       r.status,
		Participants: r.participantList(),
		Queue:        r.queueSnapshot(),
		NumClients:   len(r.clients),
	}
}
