package services

import (
	"context"
	"errors"
	"time"

	"dutch-auction-system/internal/domain"
	"dutch-auction-system/pkg/logger"
)

// BidService is the host path for AcceptBid. It keeps two fast paths in
// front of the aggregate: a bid-outcome cache for idempotent
// resubmission and a status cache for bids against auctions known to be
// closed. The aggregate remains the single arbiter; under concurrency,
// only the bid whose CAS write commits wins the slot.
type BidService struct {
	repo         domain.AuctionRepository
	outcomeCache domain.BidOutcomeCache
	stateCache   domain.AuctionStateCache
	userNotifier domain.UserNotifier
	saveRetries  int
	log          logger.Logger
}

func NewBidService(
	repo domain.AuctionRepository,
	outcomeCache domain.BidOutcomeCache,
	stateCache domain.AuctionStateCache,
	userNotifier domain.UserNotifier,
	saveRetries int,
	log logger.Logger,
) *BidService {
	if saveRetries <= 0 {
		saveRetries = defaultSaveRetries
	}
	return &BidService{
		repo:         repo,
		outcomeCache: outcomeCache,
		stateCache:   stateCache,
		userNotifier: userNotifier,
		saveRetries:  saveRetries,
		log:          log,
	}
}

type PlaceBidParams struct {
	BidID     string
	BidderRef string
	Amount    string
	Currency  string
	PlacedAt  time.Time
}

// PlaceBid returns the bid's outcome; a rejection is a normal outcome,
// not an error. The error return is reserved for infrastructure
// failures and exhausted CAS retries.
func (s *BidService) PlaceBid(ctx context.Context, tenantID, auctionID string, params PlaceBidParams) (*domain.BidOutcome, error) {
	if cached, ok, err := s.outcomeCache.GetOutcome(ctx, params.BidID); err != nil {
		s.log.Warn("Outcome cache lookup failed", "bid_id", params.BidID, "error", err)
	} else if ok {
		return cached, nil
	}

	if status, ok, err := s.stateCache.GetAuctionStatus(ctx, auctionID); err != nil {
		s.log.Warn("Status cache lookup failed", "auction_id", auctionID, "error", err)
	} else if ok && status.Terminal() {
		return &domain.BidOutcome{BidID: params.BidID, Reason: domain.ReasonAuctionTerminated}, nil
	}

	bidPrice, err := domain.NewMoneyFromString(params.Amount, params.Currency)
	if err != nil {
		return nil, err
	}

	outcome, err := s.acceptWithRetry(ctx, tenantID, auctionID, params, bidPrice)
	if err != nil {
		return nil, err
	}

	if cerr := s.outcomeCache.PutOutcome(ctx, params.BidID, outcome); cerr != nil {
		s.log.Warn("Failed to cache bid outcome", "bid_id", params.BidID, "error", cerr)
	}
	s.notifyBidder(ctx, params.BidderRef, auctionID, outcome)

	return outcome, nil
}

func (s *BidService) acceptWithRetry(ctx context.Context, tenantID, auctionID string,
	params PlaceBidParams, bidPrice domain.Money) (*domain.BidOutcome, error) {

	for attempt := 0; attempt < s.saveRetries; attempt++ {
		auction, err := s.repo.Get(ctx, tenantID, auctionID)
		if err != nil {
			return nil, err
		}

		loadedVersion := auction.Version
		accepted, bidErr := auction.AcceptBid(params.BidID, params.BidderRef, bidPrice, params.PlacedAt)

		var outcome *domain.BidOutcome
		if bidErr != nil {
			reason, ok := domain.RejectionOf(bidErr)
			if !ok {
				return nil, bidErr
			}
			outcome = &domain.BidOutcome{BidID: params.BidID, Reason: reason}
		} else {
			outcome = &domain.BidOutcome{BidID: params.BidID, Accepted: true, Result: accepted}
		}

		// Terminal rejections and idempotent replays mutate nothing, so
		// there is no version to race on.
		if auction.Version == loadedVersion {
			return outcome, nil
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
			if outcome.Accepted {
				s.log.Info("Bid accepted", "auction_id", auctionID, "bid_id", params.BidID,
					"slot_id", outcome.Result.SlotID, "price", outcome.Result.WinningPrice.String())
			} else {
				s.log.Info("Bid rejected", "auction_id", auctionID, "bid_id", params.BidID,
					"reason", outcome.Reason)
			}
			return outcome, nil
		}
		if !errors.Is(err, domain.ErrConcurrencyConflict) {
			return nil, err
		}

		// Another bid committed first; reload and revalidate. If the
		// slot is gone the next round rejects with NoItemsAvailable.
		s.log.Debug("Bid lost version race, retrying", "auction_id", auctionID,
			"bid_id", params.BidID, "attempt", attempt+1)
		backoff(attempt)
	}

	return nil, domain.ErrConcurrencyConflict
}

func (s *BidService) notifyBidder(ctx context.Context, bidderRef, auctionID string, outcome *domain.BidOutcome) {
	var message map[string]interface{}
	if outcome.Accepted {
		message = map[string]interface{}{
			"type":       "bid_accepted",
			"auction_id": auctionID,
			"bid_id":     outcome.BidID,
			"slot_id":    outcome.Result.SlotID,
			"price":      outcome.Result.WinningPrice.String(),
			"item_ref":   outcome.Result.ReservationHint,
		}
	} else {
		message = map[string]interface{}{
			"type":       "bid_rejected",
			"auction_id": auctionID,
			"bid_id":     outcome.BidID,
			"reason":     string(outcome.Reason),
		}
	}

	if err := s.userNotifier.NotifyUser(ctx, bidderRef, message); err != nil {
		s.log.Warn("Failed to notify bidder", "bidder_ref", bidderRef, "error", err)
	}
}
