package services

import (
	"context"
	"errors"
	"time"

	"dutch-auction-system/internal/domain"
	"dutch-auction-system/pkg/logger"
	"dutch-auction-system/pkg/utils"
)

const defaultSaveRetries = 3

// AuctionService is the host command handler around the aggregate: it
// loads the auction, runs one command in memory, and persists the
// result with a compare-and-swap on the loaded version. Conflicts are
// retried a bounded number of times before being surfaced as
// ErrConcurrencyConflict.
type AuctionService struct {
	repo        domain.AuctionRepository
	stateCache  domain.AuctionStateCache
	scheduler   domain.AuctionScheduler
	tolerance   time.Duration
	saveRetries int
	log         logger.Logger
}

func NewAuctionService(
	repo domain.AuctionRepository,
	stateCache domain.AuctionStateCache,
	scheduler domain.AuctionScheduler,
	tolerance time.Duration,
	saveRetries int,
	log logger.Logger,
) *AuctionService {
	if saveRetries <= 0 {
		saveRetries = defaultSaveRetries
	}
	return &AuctionService{
		repo:        repo,
		stateCache:  stateCache,
		scheduler:   scheduler,
		tolerance:   tolerance,
		saveRetries: saveRetries,
		log:         log,
	}
}

func (s *AuctionService) SetScheduler(scheduler domain.AuctionScheduler) {
	s.scheduler = scheduler
}

type CreateAuctionParams struct {
	TenantID    string
	Title       string
	Description string

	Currency            string
	StartPrice          string
	EndPrice            string
	DropType            domain.DropType
	DropValue           string
	DropIntervalSeconds int64
	DurationSeconds     int64

	PublishAt *time.Time
	EndAt     time.Time

	ItemRefs []string
}

// CreateAuction accepts a fully-formed draft. Item availability has
// already been confirmed by the inventory collaborator; bidder identity
// is someone else's problem too.
func (s *AuctionService) CreateAuction(ctx context.Context, params CreateAuctionParams) (*domain.Auction, error) {
	startPrice, err := domain.NewMoneyFromString(params.StartPrice, params.Currency)
	if err != nil {
		return nil, err
	}
	endPrice, err := domain.NewMoneyFromString(params.EndPrice, params.Currency)
	if err != nil {
		return nil, err
	}
	dropValue, err := domain.NewMoneyFromString(params.DropValue, params.Currency)
	if err != nil {
		return nil, err
	}

	dropRate, err := domain.NewPriceDropRate(params.DropType, dropValue.Amount(), params.DropIntervalSeconds)
	if err != nil {
		return nil, err
	}

	schedule, err := domain.NewPriceSchedule(startPrice, endPrice, dropRate,
		time.Duration(params.DurationSeconds)*time.Second)
	if err != nil {
		return nil, err
	}

	slots := make([]domain.SlotSpec, 0, len(params.ItemRefs))
	for _, itemRef := range params.ItemRefs {
		slots = append(slots, domain.SlotSpec{
			SlotID:  utils.GenerateID("slot"),
			ItemRef: itemRef,
		})
	}

	now := time.Now().UTC()
	auction, err := domain.NewAuction(
		utils.GenerateID("auction"),
		params.TenantID, params.Title, params.Description,
		schedule, slots, params.PublishAt, params.EndAt, now)
	if err != nil {
		return nil, err
	}
	if s.tolerance > 0 {
		auction.BidTolerance = s.tolerance
	}

	if err := s.repo.Insert(ctx, auction, nil); err != nil {
		return nil, err
	}

	if err := s.stateCache.SetAuctionStatus(ctx, auction.ID, auction.Status); err != nil {
		s.log.Warn("Failed to cache auction status", "auction_id", auction.ID, "error", err)
	}

	if params.PublishAt != nil {
		if err := s.scheduler.SchedulePublish(ctx, auction.TenantID, auction.ID, *params.PublishAt); err != nil {
			return nil, err
		}
	}
	if err := s.scheduler.ScheduleEnd(ctx, auction.TenantID, auction.ID, params.EndAt); err != nil {
		return nil, err
	}

	s.log.Info("Auction created", "auction_id", auction.ID, "tenant_id", auction.TenantID,
		"items", auction.TotalItems())
	return auction, nil
}

func (s *AuctionService) GetAuction(ctx context.Context, tenantID, auctionID string) (*domain.Auction, error) {
	return s.repo.Get(ctx, tenantID, auctionID)
}

func (s *AuctionService) PublishAuction(ctx context.Context, tenantID, auctionID string) (*domain.Auction, error) {
	return s.execute(ctx, tenantID, auctionID, func(a *domain.Auction) error {
		return a.Publish(time.Now().UTC())
	})
}

func (s *AuctionService) EndAuction(ctx context.Context, tenantID, auctionID string, reason domain.EndReason) (*domain.Auction, error) {
	auction, err := s.execute(ctx, tenantID, auctionID, func(a *domain.Auction) error {
		return a.End(time.Now().UTC(), reason)
	})
	if err != nil {
		return nil, err
	}

	if err := s.scheduler.CancelSchedule(ctx, auctionID); err != nil {
		s.log.Warn("Failed to cancel scheduled jobs", "auction_id", auctionID, "error", err)
	}
	return auction, nil
}

func (s *AuctionService) CancelAuction(ctx context.Context, tenantID, auctionID, reason string) (*domain.Auction, error) {
	auction, err := s.execute(ctx, tenantID, auctionID, func(a *domain.Auction) error {
		return a.Cancel(time.Now().UTC(), reason)
	})
	if err != nil {
		return nil, err
	}

	if err := s.scheduler.CancelSchedule(ctx, auctionID); err != nil {
		s.log.Warn("Failed to cancel scheduled jobs", "auction_id", auctionID, "error", err)
	}
	return auction, nil
}

func (s *AuctionService) WithdrawSlot(ctx context.Context, tenantID, auctionID, slotID string) (*domain.Auction, error) {
	return s.execute(ctx, tenantID, auctionID, func(a *domain.Auction) error {
		return a.WithdrawSlot(slotID, time.Now().UTC())
	})
}

// CurrentPrice is the pure query; it never mutates or persists.
func (s *AuctionService) CurrentPrice(ctx context.Context, tenantID, auctionID string, now time.Time) (domain.Money, error) {
	auction, err := s.repo.Get(ctx, tenantID, auctionID)
	if err != nil {
		return domain.Money{}, err
	}
	return auction.CurrentPrice(now)
}

// execute runs one command under the CAS protocol. Commands that leave
// the version untouched (idempotent no-ops) skip the write entirely.
func (s *AuctionService) execute(ctx context.Context, tenantID, auctionID string,
	cmd func(*domain.Auction) error) (*domain.Auction, error) {

	for attempt := 0; attempt < s.saveRetries; attempt++ {
		auction, err := s.repo.Get(ctx, tenantID, auctionID)
		if err != nil {
			return nil, err
		}

		loadedVersion := auction.Version
		if err := cmd(auction); err != nil {
			return nil, err
		}

		if auction.Version == loadedVersion {
			return auction, nil
		}

		entries, err := domain.NewOutboxEntries(auction.PullEvents())
		if err != nil {
			return nil, err
		}

		err = s.repo.Save(ctx, auction, loadedVersion, entries)
		if err == nil {
			if cerr := s.stateCache.SetAuctionStatus(ctx, auction.ID, auction.Status); cerr != nil {
				s.log.Warn("Failed to cache auction status", "auction_id", auction.ID, "error", cerr)
			}
			return auction, nil
		}
		if !errors.Is(err, domain.ErrConcurrencyConflict) {
			return nil, err
		}

		s.log.Debug("Version conflict, retrying command", "auction_id", auctionID, "attempt", attempt+1)
		backoff(attempt)
	}

	return nil, domain.ErrConcurrencyConflict
}

func backoff(attempt int) {
	time.Sleep(time.Duration(attempt+1) * 20 * time.Millisecond)
}
