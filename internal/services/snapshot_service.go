package services

import (
	"context"
	"fmt"
	"time"

	"dutch-auction-system/internal/domain"
	"dutch-auction-system/pkg/logger"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// SnapshotService periodically computes the current price of every
// running auction through the pure CurrentPrice query and publishes a
// PriceSnapshot event for live viewers. Snapshots are transient UI
// state, so they go straight to the event channel instead of through
// the outbox table; a missed tick is simply replaced by the next one.
type SnapshotService struct {
	cron           *cron.Cron
	repo           domain.AuctionRepository
	publisher      domain.EventPublisher
	leaderElection domain.LeaderElection
	instanceID     string
	interval       time.Duration
	log            logger.Logger
}

func NewSnapshotService(
	repo domain.AuctionRepository,
	publisher domain.EventPublisher,
	leaderElection domain.LeaderElection,
	instanceID string,
	interval time.Duration,
	log logger.Logger,
) *SnapshotService {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &SnapshotService{
		cron:           cron.New(cron.WithSeconds()),
		repo:           repo,
		publisher:      publisher,
		leaderElection: leaderElection,
		instanceID:     instanceID,
		interval:       interval,
		log:            log,
	}
}

func (s *SnapshotService) Start(ctx context.Context) error {
	s.log.Info("Starting price snapshot service", "interval", s.interval)

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.publishSnapshots(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *SnapshotService) Stop() error {
	s.log.Info("Stopping price snapshot service")
	s.cron.Stop()
	return nil
}

func (s *SnapshotService) publishSnapshots(ctx context.Context) {
	isLeader, err := s.leaderElection.IsLeader(ctx, s.instanceID)
	if err != nil || !isLeader {
		return
	}

	auctions, err := s.repo.ListRunning(ctx)
	if err != nil {
		s.log.Error("Failed to list running auctions", "error", err)
		return
	}

	now := time.Now().UTC()
	for _, auction := range auctions {
		price, err := auction.CurrentPrice(now)
		if err != nil {
			// Scheduled auctions and exhausted sequences have no price.
			continue
		}

		slot := auction.Sequencer.CurrentSlot()
		event := domain.PriceSnapshotEvent{
			EventMeta: domain.EventMeta{
				ID:         uuid.NewString(),
				TenantID:   auction.TenantID,
				AuctionID:  auction.ID,
				OccurredAt: now,
			},
			SlotID:       slot.ID,
			CurrentPrice: price.Amount().String(),
			Currency:     price.Currency(),
		}

		entry, err := domain.NewOutboxEntry(event)
		if err != nil {
			s.log.Error("Failed to encode snapshot", "auction_id", auction.ID, "error", err)
			continue
		}

		if err := s.publisher.Publish(ctx, entry); err != nil {
			s.log.Error("Failed to publish snapshot", "auction_id", auction.ID, "error", err)
		}
	}
}
