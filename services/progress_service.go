package services

import (
	"fmt"
	"time"

	"github.com/studyplanner/api/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgressService owns schedule entry status transitions and the materialized
// per-day roll-ups derived from them.
type ProgressService struct {
	db *gorm.DB
}

// NewProgressService creates a new progress service
func NewProgressService(db *gorm.DB) *ProgressService {
	return &ProgressService{db: db}
}

// RecordStatusChange moves an entry from scheduled to the given terminal
// status. The transition is one-way: replaying the same terminal status is an
// idempotent no-op, asking for the other terminal status returns
// ErrAlreadyFinalized.
//
// After a real transition the roll-up rows for every day the entry covers are
// refreshed, so the dashboard never reads stale counts.
func (p *ProgressService) RecordStatusChange(userID, entryID uint, target model.EntryStatus) (*model.ScheduleEntry, error) {
	if !target.IsTerminal() {
		return nil, fmt.Errorf("invalid target status %q", target)
	}

	// Conditional update so two concurrent requests cannot both win. Only a
	// scheduled entry can move.
	result := p.db.Model(&model.ScheduleEntry{}).
		Where("id = ? AND user_id = ? AND status = ?", entryID, userID, model.EntryStatusScheduled).
		Update("status", target)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update entry status: %w", result.Error)
	}

	var entry model.ScheduleEntry
	err := p.db.Where("id = ? AND user_id = ?", entryID, userID).First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load entry: %w", err)
	}

	if result.RowsAffected == 0 {
		// Nothing moved: either an idempotent replay or a conflicting
		// terminal state.
		if entry.Status == target {
			return &entry, nil
		}
		return nil, ErrAlreadyFinalized
	}

	if err := p.RefreshRange(userID, entry.FromDate, entry.ToDate); err != nil {
		return nil, err
	}

	// Every materialized day after the entry's window counts it in
	// pending_from_previous while it stays scheduled, so a late finalization
	// has to recompute those rows too.
	if err := p.refreshMaterializedAfter(userID, entry.ToDate); err != nil {
		return nil, err
	}

	return &entry, nil
}

// refreshMaterializedAfter recomputes every already-materialized roll-up row
// later than day. Days without a row are computed fresh on read and cannot go
// stale.
func (p *ProgressService) refreshMaterializedAfter(userID uint, day time.Time) error {
	var staleDays []time.Time
	err := p.db.Model(&model.DailyProgress{}).
		Where("user_id = ? AND day > ?", userID, truncateToDay(day)).
		Pluck("day", &staleDays).Error
	if err != nil {
		return fmt.Errorf("failed to find stale roll-up rows: %w", err)
	}

	for _, stale := range staleDays {
		if _, err := p.RollupDay(userID, stale); err != nil {
			return err
		}
	}
	return nil
}

// RollupDay recomputes the roll-up for one (user, day) from the schedule
// entries and upserts the materialized row.
//
// Totals count entries whose window contains the day. Pending-from-previous
// counts entries still scheduled whose window already closed before the day.
func (p *ProgressService) RollupDay(userID uint, day time.Time) (*model.DailyProgress, error) {
	day = truncateToDay(day)

	var total, completed, pendingPrevious int64

	err := p.db.Model(&model.ScheduleEntry{}).
		Where("user_id = ? AND from_date <= ? AND to_date >= ?", userID, day, day).
		Count(&total).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count entries for day: %w", err)
	}

	err = p.db.Model(&model.ScheduleEntry{}).
		Where("user_id = ? AND from_date <= ? AND to_date >= ? AND status = ?",
			userID, day, day, model.EntryStatusCompleted).
		Count(&completed).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count completed entries: %w", err)
	}

	err = p.db.Model(&model.ScheduleEntry{}).
		Where("user_id = ? AND to_date < ? AND status = ?",
			userID, day, model.EntryStatusScheduled).
		Count(&pendingPrevious).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count pending entries: %w", err)
	}

	progress := model.DailyProgress{
		UserID:              userID,
		Day:                 day,
		TotalTasks:          int(total),
		CompletedTasks:      int(completed),
		PendingFromPrevious: int(pendingPrevious),
	}

	err = p.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "day"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_tasks", "completed_tasks", "pending_from_previous", "updated_at",
		}),
	}).Create(&progress).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert daily progress: %w", err)
	}

	return &progress, nil
}

// RefreshRange re-materializes every day in [from, to] for the user
func (p *ProgressService) RefreshRange(userID uint, from, to time.Time) error {
	from = truncateToDay(from)
	to = truncateToDay(to)

	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if _, err := p.RollupDay(userID, day); err != nil {
			return err
		}
	}
	return nil
}

// GetDay returns the materialized roll-up for a day, computing it on demand
// when no row exists yet.
func (p *ProgressService) GetDay(userID uint, day time.Time) (*model.DailyProgress, error) {
	day = truncateToDay(day)

	var progress model.DailyProgress
	err := p.db.Where("user_id = ? AND day = ?", userID, day).First(&progress).Error
	if err == nil {
		return &progress, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to load daily progress: %w", err)
	}

	return p.RollupDay(userID, day)
}

// GetSeries returns roll-ups for the `days` days ending at `end`, oldest
// first. Missing days are computed on demand.
func (p *ProgressService) GetSeries(userID uint, end time.Time, days int) ([]model.DailyProgress, error) {
	end = truncateToDay(end)
	series := make([]model.DailyProgress, 0, days)

	for i := days - 1; i >= 0; i-- {
		progress, err := p.GetDay(userID, end.AddDate(0, 0, -i))
		if err != nil {
			return nil, err
		}
		series = append(series, *progress)
	}

	return series, nil
}

// OverallCounters sums entry counts per status across all of a user's plans
type OverallCounters struct {
	Total     int64 `json:"total"`
	Completed int64 `json:"completed"`
	Skipped   int64 `json:"skipped"`
	Scheduled int64 `json:"scheduled"`
}

// Overall returns lifetime entry counters for the dashboard
func (p *ProgressService) Overall(userID uint) (*OverallCounters, error) {
	var counters OverallCounters

	err := p.db.Model(&model.ScheduleEntry{}).
		Where("user_id = ?", userID).
		Count(&counters.Total).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}

	type statusCount struct {
		Status model.EntryStatus
		Count  int64
	}
	var rows []statusCount
	err = p.db.Model(&model.ScheduleEntry{}).
		Select("status, count(*) as count").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count entries by status: %w", err)
	}

	for _, row := range rows {
		switch row.Status {
		case model.EntryStatusCompleted:
			counters.Completed = row.Count
		case model.EntryStatusSkipped:
			counters.Skipped = row.Count
		case model.EntryStatusScheduled:
			counters.Scheduled = row.Count
		}
	}

	return &counters, nil
}

// truncateToDay pins a timestamp to its calendar date at UTC midnight, the
// same representation entry dates get from parsing.
func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
