package service

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/guildwatch/bot/internal/biz/repo"
)

// recoveryBatchSize bounds one sweep. Anything beyond it is picked up on
// the next pass.
const recoveryBatchSize = 1000

// Recovery re-enqueues messages stranded in the queued state. The row
// store keeps every message until a terminal state is written, so a crash
// between the row write and any queue hand-off leaves a queued row behind;
// the sweep turns those back into resolution jobs. Idempotency keys absorb
// sweeps that race live deliveries.
type Recovery struct {
	messages repo.MessageRepo
	pipeline *Pipeline
	log      *zap.Logger

	cron *cron.Cron
}

// NewRecovery creates the recovery sweeper.
func NewRecovery(messages repo.MessageRepo, pipeline *Pipeline, log *zap.Logger) *Recovery {
	return &Recovery{
		messages: messages,
		pipeline: pipeline,
		log:      log,
	}
}

// Sweep runs one recovery pass.
func (r *Recovery) Sweep(ctx context.Context) error {
	pending, err := r.messages.ListQueued(ctx, recoveryBatchSize)
	if err != nil {
		return fmt.Errorf("failed to list queued messages: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	r.log.Info("recovering in-flight messages", zap.Int("count", len(pending)))

	recovered := 0
	for _, msg := range pending {
		if err := r.pipeline.enqueueResolve(ctx, msg); err != nil {
			r.log.Warn("failed to re-enqueue message",
				zap.String("message_id", msg.MessageID), zap.Error(err))
			continue
		}
		recovered++
	}

	r.log.Info("recovery sweep complete",
		zap.Int("recovered", recovered), zap.Int("skipped", len(pending)-recovered))
	return nil
}

// Start runs an immediate sweep and then schedules periodic ones on the
// given cron expression.
func (r *Recovery) Start(ctx context.Context, schedule string) error {
	if err := r.Sweep(ctx); err != nil {
		r.log.Error("startup recovery sweep failed", zap.Error(err))
	}

	r.cron = cron.New()
	_, err := r.cron.AddFunc(schedule, func() {
		if err := r.Sweep(ctx); err != nil {
			r.log.Error("recovery sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule recovery sweep: %w", err)
	}
	r.cron.Start()
	return nil
}

// Stop halts the periodic sweeps and waits for a running one to finish.
func (r *Recovery) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}
