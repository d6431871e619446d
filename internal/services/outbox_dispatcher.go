package services

import (
	"context"
	"fmt"
	"time"

	"dutch-auction-system/internal/domain"
	"dutch-auction-system/pkg/logger"

	"github.com/robfig/cron/v3"
)

// OutboxDispatcher drains the mysql outbox in insertion order and
// publishes each entry to the event channel. Delivery is at-least-once:
// a crash between publish and mark re-publishes, and consumers dedupe
// on event id. Only the leader instance dispatches, which preserves the
// per-command event order downstream.
type OutboxDispatcher struct {
	cron           *cron.Cron
	outbox         domain.OutboxRepository
	publisher      domain.EventPublisher
	leaderElection domain.LeaderElection
	instanceID     string
	interval       time.Duration
	batchSize      int
	log            logger.Logger
}

func NewOutboxDispatcher(
	outbox domain.OutboxRepository,
	publisher domain.EventPublisher,
	leaderElection domain.LeaderElection,
	instanceID string,
	interval time.Duration,
	batchSize int,
	log logger.Logger,
) *OutboxDispatcher {
	if interval <= 0 {
		interval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxDispatcher{
		cron:           cron.New(cron.WithSeconds()),
		outbox:         outbox,
		publisher:      publisher,
		leaderElection: leaderElection,
		instanceID:     instanceID,
		interval:       interval,
		batchSize:      batchSize,
		log:            log,
	}
}

func (d *OutboxDispatcher) Start(ctx context.Context) error {
	d.log.Info("Starting outbox dispatcher", "interval", d.interval, "batch_size", d.batchSize)

	_, err := d.cron.AddFunc(fmt.Sprintf("@every %s", d.interval), func() {
		d.dispatchBatch(ctx)
	})
	if err != nil {
		return err
	}

	d.cron.Start()
	return nil
}

func (d *OutboxDispatcher) Stop() error {
	d.log.Info("Stopping outbox dispatcher")
	d.cron.Stop()
	return nil
}

func (d *OutboxDispatcher) dispatchBatch(ctx context.Context) {
	isLeader, err := d.leaderElection.IsLeader(ctx, d.instanceID)
	if err != nil {
		d.log.Error("Leader check failed", "error", err)
		return
	}
	if !isLeader {
		return
	}

	entries, err := d.outbox.FetchUndispatched(ctx, d.batchSize)
	if err != nil {
		d.log.Error("Failed to fetch outbox entries", "error", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	// Stop at the first publish failure so later events never overtake
	// earlier ones.
	var published []string
	for _, entry := range entries {
		if err := d.publisher.Publish(ctx, entry); err != nil {
			d.log.Error("Failed to publish event", "event_id", entry.EventID, "error", err)
			break
		}
		published = append(published, entry.EventID)
	}

	if len(published) == 0 {
		return
	}

	if err := d.outbox.MarkDispatched(ctx, published); err != nil {
		d.log.Error("Failed to mark events dispatched", "error", err)
		return
	}

	d.log.Debug("Dispatched outbox batch", "count", len(published))
}
