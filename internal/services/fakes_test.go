package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"dutch-auction-system/internal/domain"
)

// In-memory repository with the same compare-and-swap contract as the
// MySQL implementation. Get returns an independent copy of the stored
// snapshot so concurrent callers race on Save, not on shared memory.
type fakeRepo struct {
	mu       sync.Mutex
	rows     map[string][]byte
	versions map[string]int64
	outbox   []*domain.OutboxEntry

	getCalls  int
	failSaves bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		rows:     make(map[string][]byte),
		versions: make(map[string]int64),
	}
}

func repoKey(tenantID, auctionID string) string { return tenantID + "/" + auctionID }

func (r *fakeRepo) Insert(ctx context.Context, auction *domain.Auction, entries []*domain.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(auction)
	if err != nil {
		return err
	}
	key := repoKey(auction.TenantID, auction.ID)
	r.rows[key] = data
	r.versions[key] = auction.Version
	r.outbox = append(r.outbox, entries...)
	return nil
}

func (r *fakeRepo) Get(ctx context.Context, tenantID, auctionID string) (*domain.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.getCalls++
	data, ok := r.rows[repoKey(tenantID, auctionID)]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}

	var auction domain.Auction
	if err := json.Unmarshal(data, &auction); err != nil {
		return nil, err
	}
	return &auction, nil
}

func (r *fakeRepo) Save(ctx context.Context, auction *domain.Auction, loadedVersion int64, entries []*domain.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failSaves {
		return domain.ErrConcurrencyConflict
	}

	key := repoKey(auction.TenantID, auction.ID)
	if r.versions[key] != loadedVersion {
		return domain.ErrConcurrencyConflict
	}

	data, err := json.Marshal(auction)
	if err != nil {
		return err
	}
	r.rows[key] = data
	r.versions[key] = auction.Version
	r.outbox = append(r.outbox, entries...)
	return nil
}

func (r *fakeRepo) ListRunning(ctx context.Context) ([]*domain.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Auction
	for _, data := range r.rows {
		var auction domain.Auction
		if err := json.Unmarshal(data, &auction); err != nil {
			return nil, err
		}
		switch auction.Status {
		case domain.AuctionScheduled, domain.AuctionPublished, domain.AuctionActive:
			out = append(out, &auction)
		}
	}
	return out, nil
}

func (r *fakeRepo) outboxTypes() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()

	types := make([]domain.EventType, 0, len(r.outbox))
	for _, entry := range r.outbox {
		types = append(types, entry.EventType)
	}
	return types
}

type fakeStateCache struct {
	mu       sync.Mutex
	statuses map[string]domain.AuctionStatus
}

func newFakeStateCache() *fakeStateCache {
	return &fakeStateCache{statuses: make(map[string]domain.AuctionStatus)}
}

func (c *fakeStateCache) SetAuctionStatus(ctx context.Context, auctionID string, status domain.AuctionStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[auctionID] = status
	return nil
}

func (c *fakeStateCache) GetAuctionStatus(ctx context.Context, auctionID string) (domain.AuctionStatus, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	status, ok := c.statuses[auctionID]
	return status, ok, nil
}

type fakeOutcomeCache struct {
	mu       sync.Mutex
	outcomes map[string]*domain.BidOutcome
}

func newFakeOutcomeCache() *fakeOutcomeCache {
	return &fakeOutcomeCache{outcomes: make(map[string]*domain.BidOutcome)}
}

func (c *fakeOutcomeCache) GetOutcome(ctx context.Context, bidID string) (*domain.BidOutcome, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	outcome, ok := c.outcomes[bidID]
	return outcome, ok, nil
}

func (c *fakeOutcomeCache) PutOutcome(ctx context.Context, bidID string, outcome *domain.BidOutcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes[bidID] = outcome
	return nil
}

type fakeScheduler struct {
	mu        sync.Mutex
	published []string
	ended     []string
	cancelled []string
}

func (s *fakeScheduler) SchedulePublish(ctx context.Context, tenantID, auctionID string, publishAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, auctionID)
	return nil
}

func (s *fakeScheduler) ScheduleEnd(ctx context.Context, tenantID, auctionID string, endAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = append(s.ended, auctionID)
	return nil
}

func (s *fakeScheduler) CancelSchedule(ctx context.Context, auctionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, auctionID)
	return nil
}

func (s *fakeScheduler) Start(ctx context.Context) error { return nil }
func (s *fakeScheduler) Stop() error                     { return nil }

type fakeNotifier struct {
	mu       sync.Mutex
	messages []interface{}
}

func (n *fakeNotifier) NotifyUser(ctx context.Context, userID string, message interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Fatal(msg string, keysAndValues ...interface{}) {}
