package cron

import (
	"log"
	"time"

	"github.com/studyplanner/api/model"
	"github.com/studyplanner/api/services"
)

// refreshDailyProgress re-materializes yesterday's and today's roll-up rows
// for every user with schedule entries covering those days. Status changes
// refresh their own days synchronously; this job back-fills days nobody
// touched (e.g. a day that passed with everything left scheduled, which bumps
// the next day's pending-from-previous count).
func (cm *CronManager) refreshDailyProgress() error {
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	var userIDs []uint
	err := cm.db.Model(&model.ScheduleEntry{}).
		Distinct("user_id").
		Where("from_date <= ? AND to_date >= ?", today, yesterday).
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return err
	}

	progressService := services.NewProgressService(cm.db)

	refreshed := 0
	for _, userID := range userIDs {
		if err := progressService.RefreshRange(userID, yesterday, today); err != nil {
			log.Printf("cron: progress refresh failed for user %d: %v", userID, err)
			continue
		}
		refreshed++
	}

	log.Printf("cron: refreshed daily progress for %d/%d users", refreshed, len(userIDs))
	return nil
}

// cleanupExpiredTokens hard-deletes password reset tokens past their expiry
func (cm *CronManager) cleanupExpiredTokens() error {
	result := cm.db.Unscoped().
		Where("expires_at < ?", time.Now()).
		Delete(&model.PasswordResetToken{})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		log.Printf("cron: removed %d expired password reset tokens", result.RowsAffected)
	}
	return nil
}
