package repo

import "context"

// Stage names the pipeline queues.
const (
	StageResolve = "url-resolution"
	StageCheck   = "blocklist-check"
	StageAct     = "message-actions"
)

// Handler consumes one delivered job payload. A non-nil error triggers the
// queue's own retry policy; exhausting it marks the job permanently failed.
type Handler func(ctx context.Context, payload []byte) error

// Queue is the durable job transport: at-least-once delivery, per-job
// idempotency keys, bounded retries with exponential backoff. The queue is
// authoritative for pipeline progress; the record store only exists so
// recovery can replay lost work.
type Queue interface {
	// Enqueue submits payload to a stage. Two enqueues with the same
	// idempotency key collapse into one delivery while the key is held.
	Enqueue(ctx context.Context, stage string, payload any, idempotencyKey string) error

	// Subscribe registers the handler and worker concurrency for a stage.
	// Delivery begins once the queue is started.
	Subscribe(stage string, concurrency int, handler Handler)
}
