package jobs

import (
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/remedian/remedian/internal/database"
)

// Enqueuer schedules an alert for pipeline processing. Satisfied by
// *pipeline.Pipeline.
type Enqueuer interface {
	Enqueue(alertUUID string) bool
}

// PendingReconciler re-enqueues alerts left pending past the grace
// period. This recovers deliveries deferred by a full queue and work
// dropped by a crash before the claim was made.
type PendingReconciler struct {
	db    *gorm.DB
	queue Enqueuer
	grace time.Duration
}

// NewPendingReconciler creates a new pending reconciler
func NewPendingReconciler(db *gorm.DB, queue Enqueuer, grace time.Duration) *PendingReconciler {
	return &PendingReconciler{db: db, queue: queue, grace: grace}
}

// Reconcile finds stale pending alerts and re-enqueues them. Returns
// the number actually accepted by the queue.
func (r *PendingReconciler) Reconcile() (int, error) {
	stale, err := database.StalePending(r.db, r.grace)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, alert := range stale {
		if r.queue.Enqueue(alert.UUID) {
			enqueued++
		} else {
			// Queue is full again; the rest can wait for the next pass
			break
		}
	}
	return enqueued, nil
}

// Start begins the periodic reconciliation
func (r *PendingReconciler) Start(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			enqueued, err := r.Reconcile()
			if err != nil {
				log.Printf("Pending reconciler error: %v", err)
			} else if enqueued > 0 {
				log.Printf("Pending reconciler: re-enqueued %d stale alerts", enqueued)
			}
		case <-stop:
			log.Println("Pending reconciler stopped")
			return
		}
	}
}
