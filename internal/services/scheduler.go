package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dutch-auction-system/internal/domain"
	"dutch-auction-system/pkg/logger"
	"dutch-auction-system/pkg/utils"

	"github.com/robfig/cron/v3"
)

// CronAuctionScheduler executes the durable time-based transitions:
// publishing a Scheduled auction when publishAt elapses and closing a
// running one at endAt. Jobs live in mysql so they survive restarts;
// only the leader instance processes them.
type CronAuctionScheduler struct {
	cron           *cron.Cron
	repo           domain.SchedulerRepository
	auctionService *AuctionService
	leaderElection domain.LeaderElection
	instanceID     string
	interval       time.Duration
	log            logger.Logger
}

func NewCronAuctionScheduler(
	repo domain.SchedulerRepository,
	auctionService *AuctionService,
	leaderElection domain.LeaderElection,
	instanceID string,
	interval time.Duration,
	log logger.Logger,
) *CronAuctionScheduler {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &CronAuctionScheduler{
		cron:           cron.New(cron.WithSeconds()),
		repo:           repo,
		auctionService: auctionService,
		leaderElection: leaderElection,
		instanceID:     instanceID,
		interval:       interval,
		log:            log,
	}
}

func (s *CronAuctionScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting auction scheduler", "interval", s.interval)

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.processPendingJobs(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *CronAuctionScheduler) Stop() error {
	s.log.Info("Stopping auction scheduler")
	s.cron.Stop()
	return nil
}

func (s *CronAuctionScheduler) SchedulePublish(ctx context.Context, tenantID, auctionID string, publishAt time.Time) error {
	job := &domain.ScheduledJob{
		ID:        utils.GenerateID("job"),
		TenantID:  tenantID,
		AuctionID: auctionID,
		JobType:   domain.JobPublishAuction,
		RunAt:     publishAt,
		Status:    domain.JobPending,
		CreatedAt: time.Now(),
	}

	return s.repo.CreateJob(ctx, job)
}

func (s *CronAuctionScheduler) ScheduleEnd(ctx context.Context, tenantID, auctionID string, endAt time.Time) error {
	job := &domain.ScheduledJob{
		ID:        utils.GenerateID("job"),
		TenantID:  tenantID,
		AuctionID: auctionID,
		JobType:   domain.JobEndAuction,
		RunAt:     endAt,
		Status:    domain.JobPending,
		CreatedAt: time.Now(),
	}

	return s.repo.CreateJob(ctx, job)
}

func (s *CronAuctionScheduler) CancelSchedule(ctx context.Context, auctionID string) error {
	return s.repo.CancelJobsForAuction(ctx, auctionID)
}

func (s *CronAuctionScheduler) processPendingJobs(ctx context.Context) {
	isLeader, err := s.leaderElection.IsLeader(ctx, s.instanceID)
	if err != nil {
		s.log.Error("Leader check failed", "error", err)
		return
	}
	if !isLeader {
		return
	}

	jobs, err := s.repo.GetPendingJobs(ctx, time.Now())
	if err != nil {
		s.log.Error("Failed to get pending jobs", "error", err)
		return
	}

	for _, job := range jobs {
		s.log.Info("Processing job", "job_id", job.ID, "type", job.JobType, "auction_id", job.AuctionID)

		var err error
		switch job.JobType {
		case domain.JobPublishAuction:
			_, err = s.auctionService.PublishAuction(ctx, job.TenantID, job.AuctionID)
		case domain.JobEndAuction:
			_, err = s.auctionService.EndAuction(ctx, job.TenantID, job.AuctionID, domain.EndReasonTimeElapsed)
		}

		if err != nil && !jobAlreadySatisfied(err) {
			s.log.Error("Failed to execute job", "job_id", job.ID, "error", err)
			continue
		}

		if err := s.repo.UpdateJobStatus(ctx, job.ID, domain.JobExecuted); err != nil {
			s.log.Error("Failed to mark job executed", "job_id", job.ID, "error", err)
		}
	}
}

// jobAlreadySatisfied reports whether the transition the job asked for
// has already happened: the auction sold out or was closed by hand
// (terminal rejection), or someone published it manually first.
func jobAlreadySatisfied(err error) bool {
	if _, terminal := domain.RejectionOf(err); terminal {
		return true
	}
	return errors.Is(err, domain.ErrAlreadyPublished)
}
