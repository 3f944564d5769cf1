package services

import (
	"errors"
	"testing"
	"time"

	"github.com/studyplanner/api/model"
	"gorm.io/gorm"
)

func seedEntry(t *testing.T, db *gorm.DB, user *model.User, plan *model.Plan, from, to time.Time, status model.EntryStatus) *model.ScheduleEntry {
	t.Helper()

	var subject model.Subject
	if err := db.Where("plan_id = ?", plan.ID).First(&subject).Error; err != nil {
		t.Fatalf("failed to load subject: %v", err)
	}
	var topic model.Topic
	if err := db.Where("subject_id = ?", subject.ID).First(&topic).Error; err != nil {
		t.Fatalf("failed to load topic: %v", err)
	}

	entry := model.ScheduleEntry{
		UserID:              user.ID,
		PlanID:              plan.ID,
		SubjectID:           subject.ID,
		TopicID:             topic.ID,
		SubjectName:         subject.Name,
		TopicName:           topic.Name,
		FromDate:            from,
		ToDate:              to,
		NormalizedWeightage: 50,
		Status:              status,
	}
	if err := db.Create(&entry).Error; err != nil {
		t.Fatalf("failed to create entry: %v", err)
	}
	return &entry
}

func TestRecordStatusChangeCompletes(t *testing.T) {
	db := setupTestDB(t)
	user, plan := seedPlan(t, db)

	from := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC)
	entry := seedEntry(t, db, user, plan, from, to, model.EntryStatusScheduled)

	svc := NewProgressService(db)
	updated, err := svc.RecordStatusChange(user.ID, entry.ID, model.EntryStatusCompleted)
	if err != nil {
		t.Fatalf("RecordStatusChange failed: %v", err)
	}
	if updated.Status != model.EntryStatusCompleted {
		t.Errorf("status = %q, want completed", updated.Status)
	}

	// The roll-ups for every covered day must reflect the change
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		var progress model.DailyProgress
		err := db.Where("user_id = ? AND day = ?", user.ID, day).First(&progress).Error
		if err != nil {
			t.Fatalf("no roll-up row for %s: %v", day.Format("2006-01-02"), err)
		}
		if progress.TotalTasks != 1 || progress.CompletedTasks != 1 {
			t.Errorf("day %s: total=%d completed=%d, want 1/1",
				day.Format("2006-01-02"), progress.TotalTasks, progress.CompletedTasks)
		}
	}
}

func TestRecordStatusChangeIdempotentReplay(t *testing.T) {
	db := setupTestDB(t)
	user, plan := seedPlan(t, db)

	from := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	entry := seedEntry(t, db, user, plan, from, from, model.EntryStatusScheduled)

	svc := NewProgressService(db)
	if _, err := svc.RecordStatusChange(user.ID, entry.ID, model.EntryStatusCompleted); err != nil {
		t.Fatalf("first transition failed: %v", err)
	}

	// Replaying the same terminal status is a no-op, not an error
	updated, err := svc.RecordStatusChange(user.ID, entry.ID, model.EntryStatusCompleted)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if updated.Status != model.EntryStatusCompleted {
		t.Errorf("status = %q, want completed", updated.Status)
	}
}

func TestRecordStatusChangeConflictingTerminal(t *testing.T) {
	db := setupTestDB(t)
	user, plan := seedPlan(t, db)

	from := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	entry := seedEntry(t, db, user, plan, from, from, model.EntryStatusScheduled)

	svc := NewProgressService(db)
	if _, err := svc.RecordStatusChange(user.ID, entry.ID, model.EntryStatusCompleted); err != nil {
		t.Fatalf("first transition failed: %v", err)
	}

	_, err := svc.RecordStatusChange(user.ID, entry.ID, model.EntryStatusSkipped)
	if !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("error = %v, want ErrAlreadyFinalized", err)
	}
}

func TestRecordStatusChangeNotFound(t *testing.T) {
	db := setupTestDB(t)
	user, _ := seedPlan(t, db)

	svc := NewProgressService(db)
	_, err := svc.RecordStatusChange(user.ID, 9999, model.EntryStatusCompleted)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestRecordStatusChangeRejectsNonTerminalTarget(t *testing.T) {
	db := setupTestDB(t)
	user, plan := seedPlan(t, db)

	from := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	entry := seedEntry(t, db, user, plan, from, from, model.EntryStatusScheduled)

	svc := NewProgressService(db)
	_, err := svc.RecordStatusChange(user.ID, entry.ID, model.EntryStatusScheduled)
	if err == nil {
		t.Fatal("expected error for non-terminal target status")
	}
}

func TestRecordStatusChangeRefreshesLaterMaterializedDays(t *testing.T) {
	db := setupTestDB(t)
	user, plan := seedPlan(t, db)

	// An overdue entry plus one due on the later day
	past := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)
	overdue := seedEntry(t, db, user, plan, past, past, model.EntryStatusScheduled)

	later := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	seedEntry(t, db, user, plan, later, later, model.EntryStatusScheduled)

	svc := NewProgressService(db)

	// Materialize the later day; the overdue entry counts as pending
	progress, err := svc.GetDay(user.ID, later)
	if err != nil {
		t.Fatalf("GetDay failed: %v", err)
	}
	if progress.PendingFromPrevious != 1 {
		t.Fatalf("pending_from_previous = %d, want 1 before completion", progress.PendingFromPrevious)
	}

	// Completing the overdue entry must also refresh the later day's row,
	// not just the entry's own window
	if _, err := svc.RecordStatusChange(user.ID, overdue.ID, model.EntryStatusCompleted); err != nil {
		t.Fatalf("RecordStatusChange failed: %v", err)
	}

	progress, err = svc.GetDay(user.ID, later)
	if err != nil {
		t.Fatalf("GetDay failed: %v", err)
	}
	if progress.PendingFromPrevious != 0 {
		t.Errorf("pending_from_previous = %d after late completion, want 0", progress.PendingFromPrevious)
	}
}

func TestTruncateToDayNormalizesToUTC(t *testing.T) {
	offset := time.FixedZone("UTC+5:30", 5*3600+1800)
	local := time.Date(2025, 1, 10, 23, 45, 0, 0, offset)

	got := truncateToDay(local)
	want := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) || got.Location() != time.UTC {
		t.Errorf("truncateToDay(%v) = %v, want %v in UTC", local, got, want)
	}
}

func TestRollupDayWithNoTasks(t *testing.T) {
	db := setupTestDB(t)
	user, _ := seedPlan(t, db)

	svc := NewProgressService(db)
	progress, err := svc.RollupDay(user.ID, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("RollupDay failed: %v", err)
	}

	if progress.TotalTasks != 0 {
		t.Errorf("total = %d, want 0", progress.TotalTasks)
	}
	if progress.CompletionPercent() != 0 {
		t.Errorf("completion = %d%%, want 0%%", progress.CompletionPercent())
	}
}

func TestRollupDayCountsPendingFromPrevious(t *testing.T) {
	db := setupTestDB(t)
	user, plan := seedPlan(t, db)

	// One entry whose window closed before the day, still scheduled
	past := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)
	seedEntry(t, db, user, plan, past, past, model.EntryStatusScheduled)

	// One entry covering the day
	day := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	seedEntry(t, db, user, plan, day, day, model.EntryStatusScheduled)

	svc := NewProgressService(db)
	progress, err := svc.RollupDay(user.ID, day)
	if err != nil {
		t.Fatalf("RollupDay failed: %v", err)
	}

	if progress.TotalTasks != 1 {
		t.Errorf("total = %d, want 1", progress.TotalTasks)
	}
	if progress.PendingFromPrevious != 1 {
		t.Errorf("pending_from_previous = %d, want 1", progress.PendingFromPrevious)
	}
}

func TestRollupDayUpsertsExistingRow(t *testing.T) {
	db := setupTestDB(t)
	user, plan := seedPlan(t, db)

	day := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	entry := seedEntry(t, db, user, plan, day, day, model.EntryStatusScheduled)

	svc := NewProgressService(db)
	if _, err := svc.RollupDay(user.ID, day); err != nil {
		t.Fatalf("first rollup failed: %v", err)
	}

	db.Model(entry).Update("status", model.EntryStatusCompleted)

	if _, err := svc.RollupDay(user.ID, day); err != nil {
		t.Fatalf("second rollup failed: %v", err)
	}

	// Still exactly one row per (user, day)
	var count int64
	db.Model(&model.DailyProgress{}).Where("user_id = ?", user.ID).Count(&count)
	if count != 1 {
		t.Errorf("roll-up rows = %d, want 1", count)
	}

	var progress model.DailyProgress
	db.Where("user_id = ? AND day = ?", user.ID, day).First(&progress)
	if progress.CompletedTasks != 1 {
		t.Errorf("completed = %d, want 1", progress.CompletedTasks)
	}
}

func TestGetSeriesReturnsOldestFirst(t *testing.T) {
	db := setupTestDB(t)
	user, _ := seedPlan(t, db)

	end := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	svc := NewProgressService(db)
	series, err := svc.GetSeries(user.ID, end, 3)
	if err != nil {
		t.Fatalf("GetSeries failed: %v", err)
	}

	if len(series) != 3 {
		t.Fatalf("series length = %d, want 3", len(series))
	}
	for i := 1; i < len(series); i++ {
		if !series[i-1].Day.Before(series[i].Day) {
			t.Errorf("series out of order at %d: %v >= %v", i, series[i-1].Day, series[i].Day)
		}
	}
	if !series[2].Day.Equal(end) {
		t.Errorf("last day = %v, want %v", series[2].Day, end)
	}
}

func TestPercentRounding(t *testing.T) {
	cases := []struct {
		part, total, want int
	}{
		{0, 0, 0},
		{5, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 1, 100},
		{1, 2, 50},
	}
	for _, tc := range cases {
		if got := model.Percent(tc.part, tc.total); got != tc.want {
			t.Errorf("Percent(%d, %d) = %d, want %d", tc.part, tc.total, got, tc.want)
		}
	}
}
