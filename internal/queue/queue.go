// Package queue bridges "song requested" to "song playable" without
// blocking room interaction. Each requested item runs one resolver
// goroutine: catalog match, media submission, then a fixed-interval status
// poll until the preparation pipeline reports a terminal state.
package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status is an item's lifecycle state. Processing transitions exactly once,
// to Ready or WaitingFallback; both are terminal for the pipeline (a Ready
// item's next transition is consumption by the game mode).
type Status string

const (
	StatusProcessing      Status = "processing"
	StatusWaitingFallback Status = "waiting_fallback"
	StatusReady           Status = "ready"
)

// JobStatus is the media-preparation service's view of a submitted job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Item is one queued song request. LocalID is assigned at request time and
// stays stable across every pipeline transition; SongID is assigned once
// the request is matched and submitted.
type Item struct {
	LocalID     string `json:"localId"`
	SongID      string `json:"songId,omitempty"`
	SourceID    string `json:"sourceId,omitempty"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	SubmittedBy string `json:"submittedBy"`
	Status      Status `json:"status"`
}

// Update reports a pipeline transition back to the item's owner.
type Update struct {
	LocalID  string
	Status   Status
	SongID   string
	SourceID string
}

// Catalog resolves a request against the external song catalog.
type Catalog interface {
	Match(ctx context.Context, title, artist string) (sourceID string, err error)
}

// Media submits matched sources for preparation and reports job status.
type Media interface {
	Submit(ctx context.Context, sourceID, title, artist string) (songID string, err error)
	Status(ctx context.Context, songID string) (JobStatus, error)
}

const (
	defaultPollInterval = 3 * time.Second
	defaultMaxAttempts  = 100
)

// Pipeline tracks requested items through preparation. It is safe for use
// by many rooms; state per item is only the tracked-ID latch that keeps a
// second Track call for the same item from spawning a duplicate poller.
type Pipeline struct {
	catalog     Catalog
	media       Media
	interval    time.Duration
	maxAttempts int
	log         *zap.Logger

	mu      sync.Mutex
	tracked map[string]bool
}

// Option adjusts pipeline behavior.
type Option func(*Pipeline)

// WithPollInterval overrides the status poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(p *Pipeline) { p.interval = d }
}

// WithMaxAttempts bounds polling; a job still pending after this many
// checks is forced to WaitingFallback rather than polled forever.
func WithMaxAttempts(n int) Option {
	return func(p *Pipeline) { p.maxAttempts = n }
}

// New builds a pipeline over the catalog and media collaborators.
func New(catalog Catalog, media Media, log *zap.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		catalog:     catalog,
		media:       media,
		interval:    defaultPollInterval,
		maxAttempts: defaultMaxAttempts,
		log:         log,
		tracked:     map[string]bool{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Track resolves and prepares it, delivering transitions on updates until a
// terminal status is sent. owner scopes the request: local ids are only
// unique within one room, and the pipeline is shared by all of them.
// Tracking the same owner+LocalID twice while a poller is live is a no-op;
// once a terminal status is sent the pair may be tracked again (delete and
// resubmit). The goroutine stops on ctx cancellation without emitting
// further updates.
func (p *Pipeline) Track(ctx context.Context, owner string, it Item, updates chan<- Update) {
	key := owner + "/" + it.LocalID
	p.mu.Lock()
	if p.tracked[key] {
		p.mu.Unlock()
		return
	}
	p.tracked[key] = true
	p.mu.Unlock()

	go func() {
		defer func() {
			p.mu.Lock()
			delete(p.tracked, key)
			p.mu.Unlock()
		}()
		p.run(ctx, it, updates)
	}()
}

func (p *Pipeline) run(ctx context.Context, it Item, updates chan<- Update) {
	sourceID, err := p.catalog.Match(ctx, it.Title, it.Artist)
	if err != nil || sourceID == "" {
		if err != nil {
			p.log.Warn("catalog match failed",
				zap.String("localId", it.LocalID), zap.Error(err))
		}
		p.send(ctx, updates, Update{LocalID: it.LocalID, Status: StatusWaitingFallback})
		return
	}

	songID, err := p.media.Submit(ctx, sourceID, it.Title, it.Artist)
	if err != nil {
		p.log.Warn("media submission failed",
			zap.String("localId", it.LocalID), zap.Error(err))
		p.send(ctx, updates, Update{LocalID: it.LocalID, Status: StatusWaitingFallback, SourceID: sourceID})
		return
	}

	// The item now has a pipeline identity; the owner needs it before the
	// job finishes so deletes and retries can reference the song record.
	p.send(ctx, updates, Update{LocalID: it.LocalID, Status: StatusProcessing, SongID: songID, SourceID: sourceID})

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		st, err := p.media.Status(ctx, songID)
		if err != nil {
			p.log.Warn("status poll failed",
				zap.String("songId", songID), zap.Error(err))
			st = JobProcessing
		}

		switch st {
		case JobCompleted:
			p.send(ctx, updates, Update{LocalID: it.LocalID, Status: StatusReady, SongID: songID, SourceID: sourceID})
			return
		case JobFailed:
			p.send(ctx, updates, Update{LocalID: it.LocalID, Status: StatusWaitingFallback, SongID: songID, SourceID: sourceID})
			return
		}

		if attempt >= p.maxAttempts {
			p.log.Warn("preparation exceeded poll budget",
				zap.String("songId", songID), zap.Int("attempts", attempt))
			p.send(ctx, updates, Update{LocalID: it.LocalID, Status: StatusWaitingFallback, SongID: songID, SourceID: sourceID})
			return
		}
	}
}

func (p *Pipeline) send(ctx context.Context, updates chan<- Update, u Update) {
	select {
	case updates <- u:
	case <-ctx.Done():
	}
}
