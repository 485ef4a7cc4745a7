package media

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kero-live/kero-server/internal/cache"
	"github.com/kero-live/kero-server/internal/queue"
)

func testService(t *testing.T) (*Service, *cache.Cache) {
	t.Helper()
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	c := cache.NewWithClient(rdb)
	return New("http://worker.invalid", nil, c, zap.NewNop()), c
}

func TestStatus_ServedFromCache(t *testing.T) {
	s, c := testService(t)
	ctx := context.Background()

	require.NoError(t, c.SetStatus(ctx, "song-1", StatusProcessing))
	st, err := s.Status(ctx, "song-1")
	require.NoError(t, err)
	assert.Equal(t, queue.JobProcessing, st)

	require.NoError(t, c.SetStatus(ctx, "song-1", StatusCompleted))
	st, err = s.Status(ctx, "song-1")
	require.NoError(t, err)
	assert.Equal(t, queue.JobCompleted, st)
}

func TestToJobStatus(t *testing.T) {
	cases := map[string]queue.JobStatus{
		StatusPending:    queue.JobPending,
		StatusProcessing: queue.JobProcessing,
		StatusCompleted:  queue.JobCompleted,
		StatusFailed:     queue.JobFailed,
		"garbage":        queue.JobPending,
	}
	for in, want := range cases {
		assert.Equal(t, want, toJobStatus(in), in)
	}
}
