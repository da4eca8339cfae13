// Package queue implements the durable job transport on Redis: per-stage
// lists for ready jobs, a sorted set for delayed retries, and SETNX keys
// for enqueue idempotency. Delivery is at-least-once.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/guildwatch/bot/internal/biz/repo"
)

const (
	readyKey   = "gw:q:%s"         // list, LPUSH in / BRPOP out
	delayedKey = "gw:q:%s:delayed" // zset scored by ready time (unix ms)
	deadKey    = "gw:q:%s:dead"    // list of permanently failed jobs
	idemKey    = "gw:q:idem:%s"
)

// StageConfig bounds a stage's retry behavior.
type StageConfig struct {
	// Attempts is the total number of tries before a job is dead.
	Attempts int
	// Backoff is the first retry delay; it doubles per attempt.
	Backoff time.Duration
}

// Options tunes the queue. Zero values get sane defaults.
type Options struct {
	// Stages maps stage names to retry configs; unlisted stages use
	// 3 attempts with a 2s base backoff.
	Stages map[string]StageConfig
	// IdempotencyTTL is how long an idempotency key collapses duplicate
	// enqueues after the job completes (or is lost).
	IdempotencyTTL time.Duration
	// PollInterval paces the BRPOP timeout and the delayed-job mover.
	PollInterval time.Duration
}

type job struct {
	ID      string          `json:"id"`
	Key     string          `json:"key,omitempty"`
	Attempt int             `json:"attempt"`
	Payload json.RawMessage `json:"payload"`
}

type subscription struct {
	concurrency int
	handler     repo.Handler
}

// Queue is the Redis-backed implementation of the durable queue port.
type Queue struct {
	rdb  *redis.Client
	log  *zap.Logger
	opts Options

	mu   sync.Mutex
	subs map[string]subscription

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a queue on an existing Redis client.
func New(rdb *redis.Client, log *zap.Logger, opts Options) *Queue {
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = time.Hour
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	return &Queue{rdb: rdb, log: log, opts: opts, subs: make(map[string]subscription)}
}

func (q *Queue) stageConfig(stage string) StageConfig {
	if cfg, ok := q.opts.Stages[stage]; ok {
		if cfg.Attempts <= 0 {
			cfg.Attempts = 3
		}
		if cfg.Backoff <= 0 {
			cfg.Backoff = 2 * time.Second
		}
		return cfg
	}
	return StageConfig{Attempts: 3, Backoff: 2 * time.Second}
}

// Enqueue submits a payload to a stage. When idempotencyKey is non-empty
// and already held, the enqueue collapses silently; the key is claimed
// before the push, so a duplicate seen mid-flight cannot double-deliver.
func (q *Queue) Enqueue(ctx context.Context, stage string, payload any, idempotencyKey string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", stage, err)
	}

	if idempotencyKey != "" {
		claimed, err := q.rdb.SetNX(ctx, fmt.Sprintf(idemKey, idempotencyKey), "1", q.opts.IdempotencyTTL).Result()
		if err != nil {
			return fmt.Errorf("claim idempotency key: %w", err)
		}
		if !claimed {
			return nil
		}
	}

	j := job{ID: uuid.NewString(), Key: idempotencyKey, Attempt: 1, Payload: body}
	raw, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.rdb.LPush(ctx, fmt.Sprintf(readyKey, stage), raw).Err(); err != nil {
		return fmt.Errorf("push %s job: %w", stage, err)
	}
	return nil
}

// Subscribe registers the stage's handler and worker-pool size.
func (q *Queue) Subscribe(stage string, concurrency int, handler repo.Handler) {
	if concurrency <= 0 {
		concurrency = 1
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.subs[stage] = subscription{concurrency: concurrency, handler: handler}
}

// Start launches the worker pools and the delayed-job mover. It returns
// immediately; Stop waits for in-flight jobs.
func (q *Queue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)

	q.mu.Lock()
	defer q.mu.Unlock()
	for stage, sub := range q.subs {
		for i := 0; i < sub.concurrency; i++ {
			q.wg.Add(1)
			go q.worker(ctx, stage, sub.handler)
		}
		q.wg.Add(1)
		go q.mover(ctx, stage)
	}
	q.log.Info("queue started", zap.Int("stages", len(q.subs)))
}

// Stop cancels delivery and waits for workers to drain.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
	q.log.Info("queue stopped")
}

func (q *Queue) worker(ctx context.Context, stage string, handler repo.Handler) {
	defer q.wg.Done()
	key := fmt.Sprintf(readyKey, stage)

	for {
		if ctx.Err() != nil {
			return
		}
		res, err := q.rdb.BRPop(ctx, q.opts.PollInterval, key).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			q.log.Warn("queue pop failed", zap.String("stage", stage), zap.Error(err))
			time.Sleep(q.opts.PollInterval)
			continue
		}

		var j job
		if err := json.Unmarshal([]byte(res[1]), &j); err != nil {
			q.log.Error("dropping undecodable job", zap.String("stage", stage), zap.Error(err))
			continue
		}
		q.run(ctx, stage, handler, j)
	}
}

func (q *Queue) run(ctx context.Context, stage string, handler repo.Handler, j job) {
	err := handler(ctx, j.Payload)
	if err == nil {
		return
	}

	cfg := q.stageConfig(stage)
	if j.Attempt >= cfg.Attempts {
		q.log.Error("job permanently failed",
			zap.String("stage", stage),
			zap.String("job", j.ID),
			zap.Int("attempts", j.Attempt),
			zap.Error(err))
		raw, _ := json.Marshal(j)
		if err := q.rdb.LPush(ctx, fmt.Sprintf(deadKey, stage), raw).Err(); err != nil {
			q.log.Warn("dead-letter push failed", zap.Error(err))
		}
		// Release the key so an operator resubmission is not collapsed.
		if j.Key != "" {
			q.rdb.Del(ctx, fmt.Sprintf(idemKey, j.Key))
		}
		return
	}

	delay := cfg.Backoff << (j.Attempt - 1)
	j.Attempt++
	raw, _ := json.Marshal(j)
	score := float64(time.Now().Add(delay).UnixMilli())
	if err := q.rdb.ZAdd(ctx, fmt.Sprintf(delayedKey, stage), redis.Z{Score: score, Member: raw}).Err(); err != nil {
		q.log.Warn("retry schedule failed", zap.String("stage", stage), zap.Error(err))
		return
	}
	q.log.Warn("job retry scheduled",
		zap.String("stage", stage),
		zap.String("job", j.ID),
		zap.Int("attempt", j.Attempt),
		zap.Duration("delay", delay),
		zap.Error(err))
}

// mover promotes due delayed jobs back onto the ready list. ZREM acts as
// the claim: whichever mover removes the member gets to push it.
func (q *Queue) mover(ctx context.Context, stage string) {
	defer q.wg.Done()
	dkey := fmt.Sprintf(delayedKey, stage)
	rkey := fmt.Sprintf(readyKey, stage)

	ticker := time.NewTicker(q.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		now := fmt.Sprintf("%d", time.Now().UnixMilli())
		due, err := q.rdb.ZRangeByScore(ctx, dkey, &redis.ZRangeBy{Min: "-inf", Max: now, Count: 100}).Result()
		if err != nil {
			if ctx.Err() == nil {
				q.log.Warn("delayed scan failed", zap.String("stage", stage), zap.Error(err))
			}
			continue
		}
		for _, member := range due {
			removed, err := q.rdb.ZRem(ctx, dkey, member).Result()
			if err != nil || removed == 0 {
				continue
			}
			if err := q.rdb.LPush(ctx, rkey, member).Err(); err != nil {
				q.log.Warn("promote failed", zap.String("stage", stage), zap.Error(err))
			}
		}
	}
}

// DeadCount reports how many jobs a stage has permanently failed, an
// operator signal alongside rows stuck in queued or failed state.
func (q *Queue) DeadCount(ctx context.Context, stage string) (int64, error) {
	return q.rdb.LLen(ctx, fmt.Sprintf(deadKey, stage)).Result()
}
