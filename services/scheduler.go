package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yeremiapane/library-seat-app/utils"
)

const jobTimeout = 4 * time.Minute

// Scheduler runs the periodic maintenance jobs.
type Scheduler struct {
	cron        *cron.Cron
	bookings    *BookingService
	memberships *MembershipService
	pendingTTL  time.Duration
}

func NewScheduler(bookings *BookingService, memberships *MembershipService, pendingTTL time.Duration) *Scheduler {
	return &Scheduler{
		cron:        cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		bookings:    bookings,
		memberships: memberships,
		pendingTTL:  pendingTTL,
	}
}

func (s *Scheduler) Start() error {
	jobs := []struct {
		spec string
		name string
		run  func(ctx context.Context) (int64, error)
	}{
		{"@every 5m", "complete-bookings", s.bookings.CompleteEnded},
		{"@hourly", "expire-memberships", s.memberships.ExpireMemberships},
		{"@every 15m", "expire-payments", func(ctx context.Context) (int64, error) {
			n, err := s.memberships.FailStalePayments(ctx, s.pendingTTL)
			return int64(n), err
		}},
		{"@hourly", "purge-token-blacklist", func(context.Context) (int64, error) {
			return int64(utils.PurgeBlacklist(time.Now())), nil
		}},
	}

	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.spec, func() { runJob(job.name, job.run) }); err != nil {
			return err
		}
		utils.InfoLogger.Printf("[SCHEDULER] %s scheduled %q", job.name, job.spec)
	}
	s.cron.Start()
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func runJob(name string, run func(ctx context.Context) (int64, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := run(ctx)
	if err != nil {
		utils.ErrorLogger.Printf("[SCHEDULER] %s failed: %v", name, err)
		return
	}
	if n > 0 {
		utils.InfoLogger.Printf("[SCHEDULER] %s updated %d record(s)", name, n)
	}
}
