package model

import (
	"math"
	"time"
)

// DailyProgress is the materialized roll-up of schedule entries for one user
// and one calendar day. It is a derived view: the progress service can always
// recompute it from the schedule entries, and refreshes the row whenever an
// entry's status changes for a day in range.
type DailyProgress struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
	UserID              uint      `gorm:"uniqueIndex:idx_user_day;not null" json:"user_id"`
	Day                 time.Time `gorm:"uniqueIndex:idx_user_day;type:date;not null" json:"day"`
	TotalTasks          int       `gorm:"default:0" json:"total_tasks"`
	CompletedTasks      int       `gorm:"default:0" json:"completed_tasks"`
	PendingFromPrevious int       `gorm:"default:0" json:"pending_from_previous"`

	// Relationships
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// CompletionPercent returns round(completed/total*100), and 0 when there are
// no tasks for the day.
func (d *DailyProgress) CompletionPercent() int {
	return Percent(d.CompletedTasks, d.TotalTasks)
}

// PendingPercent returns the pending-from-previous share of the day's tasks
func (d *DailyProgress) PendingPercent() int {
	return Percent(d.PendingFromPrevious, d.TotalTasks)
}

// Percent computes round(part/total*100) with the zero-total rule from the
// dashboard: no tasks means 0%, never an error or NaN.
func Percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}
