package domain

import (
	"context"
	"time"
)

type ScheduledJob struct {
	ID        string
	TenantID  string
	AuctionID string
	JobType   JobType
	RunAt     time.Time
	Status    JobStatus
	CreatedAt time.Time
}

type JobType string

const (
	JobPublishAuction JobType = "publish_auction"
	JobEndAuction     JobType = "end_auction"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobExecuted  JobStatus = "executed"
	JobCancelled JobStatus = "cancelled"
)

// AuctionScheduler drives the two time-based transitions the aggregate
// cannot perform on its own: publication at publishAt and closing at
// endAt. It is just another caller of the aggregate's commands.
type AuctionScheduler interface {
	SchedulePublish(ctx context.Context, tenantID, auctionID string, publishAt time.Time) error
	ScheduleEnd(ctx context.Context, tenantID, auctionID string, endAt time.Time) error
	CancelSchedule(ctx context.Context, auctionID string) error
	Start(ctx context.Context) error
	Stop() error
}
