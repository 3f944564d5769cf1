package cron

import (
	"log"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// CronManager owns the background job scheduler
type CronManager struct {
	cron *cron.Cron
	db   *gorm.DB
}

// NewCronManager creates a new cron manager
func NewCronManager(db *gorm.DB) *CronManager {
	return &CronManager{
		cron: cron.New(cron.WithSeconds()),
		db:   db,
	}
}

// Start registers all jobs and starts the scheduler
func (cm *CronManager) Start() error {
	// Materialize yesterday's and today's progress roll-ups shortly after
	// midnight, so the dashboard serves precomputed rows.
	if _, err := cm.cron.AddFunc("0 5 0 * * *", func() {
		if err := cm.refreshDailyProgress(); err != nil {
			log.Printf("cron: daily progress refresh failed: %v", err)
		}
	}); err != nil {
		return err
	}

	// Purge expired password reset tokens hourly
	if _, err := cm.cron.AddFunc("0 0 * * * *", func() {
		if err := cm.cleanupExpiredTokens(); err != nil {
			log.Printf("cron: token cleanup failed: %v", err)
		}
	}); err != nil {
		return err
	}

	cm.cron.Start()
	log.Println("cron: background jobs started")
	return nil
}

// Stop stops the scheduler, waiting for running jobs to finish
func (cm *CronManager) Stop() {
	ctx := cm.cron.Stop()
	<-ctx.Done()
	log.Println("cron: background jobs stopped")
}
