package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/reclaim/backend/internal/models"
)

// orphanGracePeriod keeps the job away from complaints whose transfer is
// still being issued by an in-flight request
const orphanGracePeriod = 5 * time.Minute

// OrphanLister finds pending complaints that never got a transaction
type OrphanLister interface {
	ListOrphaned(ctx context.Context, createdBefore time.Time) ([]models.Complaint, error)
}

// ReconcileJob periodically reports complaints left without a transaction
// after the gateway failed during creation. It never modifies them.
type ReconcileJob struct {
	complaints OrphanLister
	interval   time.Duration
	scheduler  *gocron.Scheduler
	now        func() time.Time
}

// NewReconcileJob creates a new reconcile job
func NewReconcileJob(complaints OrphanLister, interval time.Duration) *ReconcileJob {
	return &ReconcileJob{
		complaints: complaints,
		interval:   interval,
		scheduler:  gocron.NewScheduler(time.UTC),
		now:        time.Now,
	}
}

// Start schedules the job
func (j *ReconcileJob) Start() error {
	if j.interval <= 0 {
		return fmt.Errorf("reconcile interval must be positive, got %s", j.interval)
	}

	_, err := j.scheduler.Every(j.interval).Do(func() {
		if _, err := j.Run(context.Background()); err != nil {
			log.Printf("Error reconciling complaints: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("error scheduling reconcile job: %w", err)
	}

	j.scheduler.StartAsync()
	log.Printf("Reconcile job scheduled every %s", j.interval)
	return nil
}

// Stop stops the scheduler
func (j *ReconcileJob) Stop() {
	j.scheduler.Stop()
}

// Run logs every orphaned complaint and returns them
func (j *ReconcileJob) Run(ctx context.Context) ([]models.Complaint, error) {
	orphans, err := j.complaints.ListOrphaned(ctx, j.now().Add(-orphanGracePeriod))
	if err != nil {
		return nil, err
	}

	for _, c := range orphans {
		log.Printf("Complaint %d (complainer %d, amount %s) is pending without a transaction since %s",
			c.ID, c.ComplainerID, c.Amount.String(), c.CreatedAt.Format(time.RFC3339))
	}
	if len(orphans) > 0 {
		log.Printf("Found %d complaints without a transaction", len(orphans))
	}
	return orphans, nil
}
