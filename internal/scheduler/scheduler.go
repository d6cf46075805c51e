package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/tomszw/gallerysync/internal/ingest"
)

// Syncer runs one full ingestion pass over all active communities.
type Syncer interface {
	SyncAllActive(ctx context.Context) (ingest.Summary, error)
}

// Scheduler runs periodic full syncs on a cron schedule.
type Scheduler struct {
	coordinator Syncer
	log         *zap.SugaredLogger
	spec        string
	syncOnStart bool
}

// New creates a Scheduler firing on the given cron spec.
func New(coordinator Syncer, log *zap.SugaredLogger, spec string, syncOnStart bool) *Scheduler {
	if spec == "" {
		spec = "0 */6 * * *"
	}
	return &Scheduler{
		coordinator: coordinator,
		log:         log,
		spec:        spec,
		syncOnStart: syncOnStart,
	}
}

// Run blocks until ctx is cancelled, syncing all active communities
// on every cron tick.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.spec, func() { s.syncAll(ctx) }); err != nil {
		return fmt.Errorf("schedule %q: %w", s.spec, err)
	}

	if s.syncOnStart {
		s.log.Infow("initial sync")
		s.syncAll(ctx)
	}

	c.Start()
	s.log.Infow("scheduler running", "cron", s.spec)

	<-ctx.Done()
	<-c.Stop().Done()
	s.log.Infow("scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) syncAll(ctx context.Context) {
	summary, err := s.coordinator.SyncAllActive(ctx)
	if err != nil {
		s.log.Errorw("sync failed", "error", err)
		return
	}
	s.log.Infow("sync complete",
		"communities", summary.Communities,
		"created", summary.Created,
		"skipped", summary.Skipped,
		"ignored", summary.Ignored,
		"assets", summary.Assets,
		"galleries", summary.Galleries,
		"failed_batches", summary.FailedBatches)
}
