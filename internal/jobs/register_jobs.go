package jobs

import (
	"github.com/reclaim/backend/internal/queue"
)

// Runner is a background component with a start/stop lifecycle
type Runner interface {
	Stop()
}

// StartAll starts the notification workers and the reconcile job. The
// returned runners must be stopped on shutdown.
func StartAll(notifications *queue.Worker, reconcile *ReconcileJob) ([]Runner, error) {
	notifications.Start()

	if err := reconcile.Start(); err != nil {
		notifications.Stop()
		return nil, err
	}

	return []Runner{notifications, reconcile}, nil
}

// StopAll stops runners in reverse start order
func StopAll(runners []Runner) {
	for i := len(runners) - 1; i >= 0; i-- {
		runners[i].Stop()
	}
}
