package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeCatalog struct {
	sourceID string
	err      error
}

func (f *fakeCatalog) Match(ctx context.Context, title, artist string) (string, error) {
	return f.sourceID, f.err
}

type fakeMedia struct {
	songID    string
	submitErr error

	statuses []JobStatus // consumed one per poll; last repeats
	polls    atomic.Int32
}

func (f *fakeMedia) Submit(ctx context.Context, sourceID, title, artist string) (string, error) {
	return f.songID, f.submitErr
}

func (f *fakeMedia) Status(ctx context.Context, songID string) (JobStatus, error) {
	n := int(f.polls.Add(1)) - 1
	if n >= len(f.statuses) {
		n = len(f.statuses) - 1
	}
	return f.statuses[n], nil
}

// recvUpdate fails the test instead of hanging when no update arrives.
func recvUpdate(t *testing.T, ch <-chan Update, within time.Duration) Update {
	t.Helper()
	select {
	case u := <-ch:
		return u
	case <-time.After(within):
		t.Fatalf("timed out waiting for update")
		return Update{} // unreachable
	}
}

func recvNoUpdate(t *testing.T, ch <-chan Update, within time.Duration) {
	t.Helper()
	select {
	case u := <-ch:
		t.Fatalf("expected no update within %v, got %+v", within, u)
	case <-time.After(within):
	}
}

func newTestPipeline(c Catalog, m Media) *Pipeline {
	return New(c, m, zap.NewNop(), WithPollInterval(5*time.Millisecond), WithMaxAttempts(10))
}

func TestTrack_CompletedJobBecomesReady(t *testing.T) {
	media := &fakeMedia{songID: "song-1", statuses: []JobStatus{JobProcessing, JobCompleted}}
	p := newTestPipeline(&fakeCatalog{sourceID: "vid-1"}, media)

	updates := make(chan Update, 4)
	p.Track(context.Background(), "room1", Item{LocalID: "q1", Title: "t", Artist: "a"}, updates)

	first := recvUpdate(t, updates, time.Second)
	if first.Status != StatusProcessing || first.SongID != "song-1" {
		t.Fatalf("want processing update carrying song id, got %+v", first)
	}

	final := recvUpdate(t, updates, time.Second)
	if final.Status != StatusReady || final.LocalID != "q1" {
		t.Fatalf("want ready, got %+v", final)
	}

	// Terminal means terminal: the poller must not keep reporting.
	recvNoUpdate(t, updates, 50*time.Millisecond)
}

func TestTrack_NoCatalogMatchFallsBack(t *testing.T) {
	p := newTestPipeline(&fakeCatalog{sourceID: ""}, &fakeMedia{statuses: []JobStatus{JobCompleted}})

	updates := make(chan Update, 2)
	p.Track(context.Background(), "room1", Item{LocalID: "q1", Title: "unknown"}, updates)

	u := recvUpdate(t, updates, time.Second)
	if u.Status != StatusWaitingFallback {
		t.Fatalf("want waiting_fallback on no match, got %+v", u)
	}
}

func TestTrack_FailedJobFallsBack(t *testing.T) {
	media := &fakeMedia{songID: "song-2", statuses: []JobStatus{JobFailed}}
	p := newTestPipeline(&fakeCatalog{sourceID: "vid-2"}, media)

	updates := make(chan Update, 4)
	p.Track(context.Background(), "room1", Item{LocalID: "q2"}, updates)

	_ = recvUpdate(t, updates, time.Second) // processing
	u := recvUpdate(t, updates, time.Second)
	if u.Status != StatusWaitingFallback {
		t.Fatalf("want waiting_fallback on failed job, got %+v", u)
	}
}

func TestTrack_SubmitErrorFallsBack(t *testing.T) {
	media := &fakeMedia{submitErr: errors.New("worker down"), statuses: []JobStatus{JobPending}}
	p := newTestPipeline(&fakeCatalog{sourceID: "vid-3"}, media)

	updates := make(chan Update, 2)
	p.Track(context.Background(), "room1", Item{LocalID: "q3"}, updates)

	u := recvUpdate(t, updates, time.Second)
	if u.Status != StatusWaitingFallback {
		t.Fatalf("want waiting_fallback on submit error, got %+v", u)
	}
}

func TestTrack_PollBudgetForcesFallback(t *testing.T) {
	media := &fakeMedia{songID: "stuck", statuses: []JobStatus{JobProcessing}}
	p := New(&fakeCatalog{sourceID: "vid-4"}, media, zap.NewNop(),
		WithPollInterval(2*time.Millisecond), WithMaxAttempts(3))

	updates := make(chan Update, 4)
	p.Track(context.Background(), "room1", Item{LocalID: "q4"}, updates)

	_ = recvUpdate(t, updates, time.Second) // processing
	u := recvUpdate(t, updates, time.Second)
	if u.Status != StatusWaitingFallback {
		t.Fatalf("stuck job must be forced to waiting_fallback, got %+v", u)
	}
	if got := media.polls.Load(); got != 3 {
		t.Fatalf("want exactly 3 polls, got %d", got)
	}
}

func TestTrack_DuplicateTrackIsNoop(t *testing.T) {
	media := &fakeMedia{songID: "song-5", statuses: []JobStatus{JobCompleted}}
	p := newTestPipeline(&fakeCatalog{sourceID: "vid-5"}, media)

	updates := make(chan Update, 8)
	it := Item{LocalID: "q5"}
	p.Track(context.Background(), "room1", it, updates)
	p.Track(context.Background(), "room1", it, updates)

	_ = recvUpdate(t, updates, time.Second) // processing
	_ = recvUpdate(t, updates, time.Second) // ready
	recvNoUpdate(t, updates, 50*time.Millisecond)
}

func TestTrack_SameLocalIDInAnotherRoomTracksSeparately(t *testing.T) {
	media := &fakeMedia{songID: "song-7", statuses: []JobStatus{JobCompleted}}
	p := newTestPipeline(&fakeCatalog{sourceID: "vid-7"}, media)

	// Local ids are only unique within one room; a shared pipeline must
	// not latch one room's id against another room's request.
	aUpdates := make(chan Update, 4)
	p.Track(context.Background(), "roomA", Item{LocalID: "q1"}, aUpdates)
	_ = recvUpdate(t, aUpdates, time.Second) // processing
	if u := recvUpdate(t, aUpdates, time.Second); u.Status != StatusReady {
		t.Fatalf("room A item must complete, got %+v", u)
	}

	bUpdates := make(chan Update, 4)
	p.Track(context.Background(), "roomB", Item{LocalID: "q1"}, bUpdates)
	_ = recvUpdate(t, bUpdates, time.Second) // processing
	if u := recvUpdate(t, bUpdates, time.Second); u.Status != StatusReady {
		t.Fatalf("room B item with the same local id must complete, got %+v", u)
	}
}

func TestTrack_RetrackableAfterTerminalState(t *testing.T) {
	media := &fakeMedia{songID: "song-8", statuses: []JobStatus{JobCompleted}}
	p := newTestPipeline(&fakeCatalog{sourceID: "vid-8"}, media)

	updates := make(chan Update, 4)
	p.Track(context.Background(), "room1", Item{LocalID: "q1"}, updates)
	_ = recvUpdate(t, updates, time.Second) // processing
	_ = recvUpdate(t, updates, time.Second) // ready

	// Deleted and resubmitted under the same local id: the latch must
	// have been released when the first run reached a terminal state.
	deadline := time.After(time.Second)
	for {
		p.Track(context.Background(), "room1", Item{LocalID: "q1"}, updates)
		select {
		case u := <-updates:
			if u.Status != StatusProcessing {
				t.Fatalf("want processing for the resubmitted item, got %+v", u)
			}
			return
		case <-deadline:
			t.Fatalf("resubmitted item was never re-tracked")
		default:
			time.Sleep(2 * time.Millisecond)
		}
	}
}

func TestTrack_CancelStopsPolling(t *testing.T) {
	media := &fakeMedia{songID: "song-6", statuses: []JobStatus{JobProcessing}}
	p := newTestPipeline(&fakeCatalog{sourceID: "vid-6"}, media)

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan Update, 2)
	p.Track(ctx, "room1", Item{LocalID: "q6"}, updates)

	_ = recvUpdate(t, updates, time.Second) // processing
	cancel()

	time.Sleep(20 * time.Millisecond)
	polled := media.polls.Load()
	time.Sleep(30 * time.Millisecond)
	if media.polls.Load() > polled+1 {
		t.Fatalf("poller kept running after cancellation")
	}
}
