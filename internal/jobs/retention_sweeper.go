// Package jobs holds the periodic background tasks: retention sweeping
// and pending-alert reconciliation.
package jobs

import (
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/remedian/remedian/internal/database"
)

// RetentionSweeper purges alerts past their retention window
type RetentionSweeper struct {
	db *gorm.DB
}

// NewRetentionSweeper creates a new retention sweeper
func NewRetentionSweeper(db *gorm.DB) *RetentionSweeper {
	return &RetentionSweeper{db: db}
}

// Sweep deletes every expired alert together with its activity logs.
// Returns the number of alerts removed.
func (s *RetentionSweeper) Sweep() (int, error) {
	return database.DeleteExpired(s.db, time.Now())
}

// Start begins the periodic sweep
func (s *RetentionSweeper) Start(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deleted, err := s.Sweep()
			if err != nil {
				log.Printf("Retention sweeper error: %v", err)
			} else if deleted > 0 {
				log.Printf("Retention sweeper: purged %d expired alerts", deleted)
			}
		case <-stop:
			log.Println("Retention sweeper stopped")
			return
		}
	}
}
