package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestQueue(t *testing.T, opts Options) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	if opts.PollInterval == 0 {
		opts.PollInterval = 20 * time.Millisecond
	}
	return New(rdb, zap.NewNop(), opts), mr
}

func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

type payload struct {
	MessageID string `json:"messageId"`
}

func TestEnqueueDeliver(t *testing.T) {
	q, _ := newTestQueue(t, Options{})

	var mu sync.Mutex
	var got []string
	q.Subscribe("stage-a", 2, func(ctx context.Context, raw []byte) error {
		var p payload
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		mu.Lock()
		got = append(got, p.MessageID)
		mu.Unlock()
		return nil
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(context.Background(), "stage-a", payload{MessageID: "m1"}, ""))
	require.NoError(t, q.Enqueue(context.Background(), "stage-a", payload{MessageID: "m2"}, ""))

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	})
}

func TestIdempotencyCollapsesDuplicates(t *testing.T) {
	q, _ := newTestQueue(t, Options{})

	var delivered atomic.Int32
	q.Subscribe("stage-a", 1, func(ctx context.Context, raw []byte) error {
		delivered.Add(1)
		return nil
	})
	q.Start(context.Background())
	defer q.Stop()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(context.Background(), "stage-a", payload{MessageID: "m1"}, "msg-m1"))
	}

	waitFor(t, 2*time.Second, func() bool { return delivered.Load() >= 1 })
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), delivered.Load())
}

func TestRetryThenSucceed(t *testing.T) {
	q, _ := newTestQueue(t, Options{
		Stages: map[string]StageConfig{
			"stage-a": {Attempts: 3, Backoff: 50 * time.Millisecond},
		},
	})

	var calls atomic.Int32
	q.Subscribe("stage-a", 1, func(ctx context.Context, raw []byte) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(context.Background(), "stage-a", payload{MessageID: "m1"}, ""))

	waitFor(t, 3*time.Second, func() bool { return calls.Load() >= 3 })

	dead, err := q.DeadCount(context.Background(), "stage-a")
	require.NoError(t, err)
	assert.Zero(t, dead)
}

func TestExhaustedJobGoesDead(t *testing.T) {
	q, mr := newTestQueue(t, Options{
		Stages: map[string]StageConfig{
			"stage-a": {Attempts: 2, Backoff: 20 * time.Millisecond},
		},
	})

	var calls atomic.Int32
	q.Subscribe("stage-a", 1, func(ctx context.Context, raw []byte) error {
		calls.Add(1)
		return errors.New("permanent")
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(context.Background(), "stage-a", payload{MessageID: "m1"}, "msg-m1"))

	waitFor(t, 3*time.Second, func() bool { return calls.Load() >= 2 })

	waitFor(t, 2*time.Second, func() bool {
		n, err := q.DeadCount(context.Background(), "stage-a")
		return err == nil && n == 1
	})

	// Exhaustion releases the idempotency key so the work can be resubmitted.
	waitFor(t, 2*time.Second, func() bool {
		return !mr.Exists("gw:q:idem:msg-m1")
	})
}

func TestStagesAreIsolated(t *testing.T) {
	q, _ := newTestQueue(t, Options{})

	var aCount, bCount atomic.Int32
	q.Subscribe("stage-a", 1, func(ctx context.Context, raw []byte) error {
		aCount.Add(1)
		return nil
	})
	q.Subscribe("stage-b", 1, func(ctx context.Context, raw []byte) error {
		bCount.Add(1)
		return nil
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(context.Background(), "stage-a", payload{MessageID: "a"}, ""))
	require.NoError(t, q.Enqueue(context.Background(), "stage-b", payload{MessageID: "b"}, ""))

	waitFor(t, 2*time.Second, func() bool {
		return aCount.Load() == 1 && bCount.Load() == 1
	})
}

func TestStopDrains(t *testing.T) {
	q, _ := newTestQueue(t, Options{})

	started := make(chan struct{})
	var finished atomic.Bool
	q.Subscribe("stage-a", 1, func(ctx context.Context, raw []byte) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(context.Background(), "stage-a", payload{MessageID: "m1"}, ""))
	<-started
	q.Stop()
	assert.True(t, finished.Load())
}
