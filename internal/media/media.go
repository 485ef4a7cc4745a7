// Package media drives the external processing worker that separates
// vocals, aligns lyrics and extracts the pitch reference for a requested
// song. Jobs are tracked through the store with Redis in front for the
// queue pipeline's status polls.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kero-live/kero-server/internal/cache"
	"github.com/kero-live/kero-server/internal/queue"
	"github.com/kero-live/kero-server/internal/store"
)

const submitTimeout = 15 * time.Second

// Song processing statuses as persisted on the song record.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type Service struct {
	workerURL string
	http      *http.Client
	store     *store.Store
	cache     *cache.Cache
	log       *zap.Logger
}

func New(workerURL string, st *store.Store, c *cache.Cache, log *zap.Logger) *Service {
	return &Service{
		workerURL: workerURL,
		http:      &http.Client{Timeout: submitTimeout},
		store:     st,
		cache:     c,
		log:       log,
	}
}

// Submit registers a song row and hands the job to the worker. The
// returned id identifies the song from here on.
func (s *Service) Submit(ctx context.Context, sourceID, title, artist string) (string, error) {
	songID := uuid.NewString()
	rec := &store.SongRecord{
		ID:       songID,
		SourceID: sourceID,
		Title:    title,
		Artist:   artist,
		Status:   StatusPending,
	}
	if err := s.store.CreateSong(ctx, rec); err != nil {
		return "", fmt.Errorf("media: create song: %w", err)
	}

	body, err := json.Marshal(map[string]string{
		"songId":   songID,
		"sourceId": sourceID,
		"title":    title,
		"artist":   artist,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.workerURL+"/jobs", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("media: submit: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("media: worker rejected job with status %d", resp.StatusCode)
	}

	s.setStatus(ctx, songID, StatusProcessing)
	s.log.Info("processing job submitted",
		zap.String("songId", songID), zap.String("sourceId", sourceID))
	return songID, nil
}

// Status reports the job state for the queue pipeline. The cache answers
// most polls; the store is the fallback and the source of truth.
func (s *Service) Status(ctx context.Context, songID string) (queue.JobStatus, error) {
	status, err := s.cache.Status(ctx, songID)
	if errors.Is(err, cache.ErrMiss) {
		status, err = s.store.SongStatus(ctx, songID)
		if err == nil {
			_ = s.cache.SetStatus(ctx, songID, status)
		}
	}
	if err != nil {
		return "", err
	}
	return toJobStatus(status), nil
}

// Complete applies a worker callback, persisting the processing result
// and warming the cache for the sessions about to play it.
func (s *Service) Complete(ctx context.Context, songID string, res store.ProcessingResult) error {
	if res.Status != StatusCompleted && res.Status != StatusFailed {
		return fmt.Errorf("media: callback with unexpected status %q", res.Status)
	}
	if err := s.store.UpdateProcessingResult(ctx, songID, res); err != nil {
		return err
	}

	s.setStatus(ctx, songID, res.Status)
	if res.Status == StatusCompleted && len(res.Pitch) > 0 {
		if err := s.cache.SetReference(ctx, songID, res.Pitch); err != nil {
			s.log.Warn("pitch reference cache write failed",
				zap.String("songId", songID), zap.Error(err))
		}
	}

	s.log.Info("processing finished",
		zap.String("songId", songID), zap.String("status", res.Status))
	return nil
}

func (s *Service) setStatus(ctx context.Context, songID, status string) {
	if err := s.cache.SetStatus(ctx, songID, status); err != nil {
		s.log.Warn("status cache write failed", zap.String("songId", songID), zap.Error(err))
	}
}

func toJobStatus(status string) queue.JobStatus {
	switch status {
	case StatusCompleted:
		return queue.JobCompleted
	case StatusFailed:
		return queue.JobFailed
	case StatusProcessing:
		return queue.JobProcessing
	default:
		return queue.JobPending
	}
}
