package domain

import (
	"context"
	"time"
)

// Repository interfaces

// AuctionRepository persists the aggregate snapshot. Save performs the
// compare-and-swap on the version the aggregate was loaded at and
// appends the command's outbox entries in the same transaction; it
// returns ErrConcurrencyConflict when the stored version has moved.
type AuctionRepository interface {
	Insert(ctx context.Context, auction *Auction, entries []*OutboxEntry) error
	Get(ctx context.Context, tenantID, auctionID string) (*Auction, error)
	Save(ctx context.Context, auction *Auction, loadedVersion int64, entries []*OutboxEntry) error
	ListRunning(ctx context.Context) ([]*Auction, error)
}

// OutboxRepository drains the append-only outbox for publication.
type OutboxRepository interface {
	FetchUndispatched(ctx context.Context, limit int) ([]*OutboxEntry, error)
	MarkDispatched(ctx context.Context, eventIDs []string) error
}

type SchedulerRepository interface {
	CreateJob(ctx context.Context, job *ScheduledJob) error
	GetPendingJobs(ctx context.Context, before time.Time) ([]*ScheduledJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus) error
	CancelJobsForAuction(ctx context.Context, auctionID string) error
}

// Cache interfaces

// AuctionStateCache keeps a fast-path copy of each auction's status so
// hosts can reject bids against closed auctions without loading the
// aggregate. The snapshot row stays the source of truth.
type AuctionStateCache interface {
	SetAuctionStatus(ctx context.Context, auctionID string, status AuctionStatus) error
	GetAuctionStatus(ctx context.Context, auctionID string) (AuctionStatus, bool, error)
}

// BidOutcomeCache is the fast path for idempotent bid resubmission; the
// aggregate's own outcome ledger remains authoritative.
type BidOutcomeCache interface {
	GetOutcome(ctx context.Context, bidID string) (*BidOutcome, bool, error)
	PutOutcome(ctx context.Context, bidID string, outcome *BidOutcome) error
}

// Event interfaces

type EventPublisher interface {
	Publish(ctx context.Context, entry *OutboxEntry) error
}

type EventHandler func(entry *OutboxEntry) error

type EventSubscriber interface {
	Subscribe(ctx context.Context, handler EventHandler) error
}

// Notification interfaces

type UserNotifier interface {
	NotifyUser(ctx context.Context, userID string, message interface{}) error
}

type AuctionBroadcaster interface {
	BroadcastToAuction(ctx context.Context, auctionID string, message interface{}) error
}

// WebSocket interfaces

type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	UserID() string
	AuctionID() string
}

type ConnectionManager interface {
	RegisterConnection(userID, auctionID string, conn WebSocketConnection) error
	UnregisterConnection(userID, auctionID string) error
	GetConnectionsForAuction(auctionID string) []WebSocketConnection
	BroadcastToAuction(auctionID string, message interface{}) error
	NotifyUser(userID string, message interface{}) error
	CloseAndUnregisterConnections(auctionID string) error
}

// Leader election interface

type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}
