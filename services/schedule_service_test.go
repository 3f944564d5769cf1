package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/studyplanner/api/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeGenerator struct {
	response string
	err      error
}

func (f *fakeGenerator) GenerateContent(_ context.Context, _ string) (string, error) {
	return f.response, f.err
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&model.User{},
		&model.Plan{},
		&model.Subject{},
		&model.Topic{},
		&model.ScheduleEntry{},
		&model.DailyProgress{},
		&model.PasswordResetToken{},
		&model.AccountChange{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// seedPlan creates a user with one draft plan (Jan 2025) holding a Math
// subject with Algebra and Geometry topics.
func seedPlan(t *testing.T, db *gorm.DB) (*model.User, *model.Plan) {
	t.Helper()

	user := model.User{Name: "Test User", Email: "test@example.com", PasswordHash: "x"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	plan := model.Plan{
		UserID:    user.ID,
		Name:      "January Plan",
		StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		Status:    model.PlanStatusDraft,
	}
	if err := db.Create(&plan).Error; err != nil {
		t.Fatalf("failed to create plan: %v", err)
	}

	subject := model.Subject{UserID: user.ID, PlanID: plan.ID, Name: "Math"}
	if err := db.Create(&subject).Error; err != nil {
		t.Fatalf("failed to create subject: %v", err)
	}

	topics := []model.Topic{
		{SubjectID: subject.ID, Name: "Algebra", InitialWeightage: 40},
		{SubjectID: subject.ID, Name: "Geometry", InitialWeightage: 60},
	}
	if err := db.Create(&topics).Error; err != nil {
		t.Fatalf("failed to create topics: %v", err)
	}

	return &user, &plan
}

func TestGenerateScheduleKeepsWeightagesWithinTolerance(t *testing.T) {
	db := setupTestDB(t)
	user, plan := seedPlan(t, db)

	gen := &fakeGenerator{response: `[
		{"subject":"Math","topic":"Algebra","from_date":"2025-01-01","to_date":"2025-01-10","weightage":33},
		{"subject":"Math","topic":"Geometry","from_date":"2025-01-11","to_date":"2025-01-20","weightage":67}
	]`}

	svc := NewScheduleService(db, gen)
	result, err := svc.GenerateSchedule(context.Background(), user.ID, plan.ID)
	if err != nil {
		t.Fatalf("GenerateSchedule failed: %v", err)
	}

	if result.EntriesSaved != 2 {
		t.Fatalf("expected 2 entries, got %d", result.EntriesSaved)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", result.Warnings)
	}

	// Sum is exactly 100, so the individual values must be untouched
	if result.Entries[0].NormalizedWeightage != 33 || result.Entries[1].NormalizedWeightage != 67 {
		t.Errorf("weightages were rescaled: %v, %v",
			result.Entries[0].NormalizedWeightage, result.Entries[1].NormalizedWeightage)
	}

	var reloaded model.Plan
	if err := db.First(&reloaded, plan.ID).Error; err != nil {
		t.Fatalf("failed to reload plan: %v", err)
	}
	if reloaded.Status != model.PlanStatusSubmitted {
		t.Errorf("plan status = %q, want submitted", reloaded.Status)
	}
}

func TestGenerateScheduleRescalesWeightages(t *testing.T) {
	db := setupTestDB(t)
	user, plan := seedPlan(t, db)

	gen := &fakeGenerator{response: `[
		{"subject":"Math","topic":"Algebra","from_date":"2025-01-01","to_date":"2025-01-10","weightage":20},
		{"subject":"Math","topic":"Geometry","from_date":"2025-01-11","to_date":"2025-01-20","weightage":20}
	]`}

	svc := NewScheduleService(db, gen)
	result, err := svc.GenerateSchedule(context.Background(), user.ID, plan.ID)
	if err != nil {
		t.Fatalf("GenerateSchedule failed: %v", err)
	}

	sum := 0.0
	for _, e := range result.Entries {
		if e.NormalizedWeightage != 50 {
			t.Errorf("entry weightage = %v, want 50", e.NormalizedWeightage)
		}
		sum += e.NormalizedWeightage
	}
	if math.Abs(sum-100) > 0.001 {
		t.Errorf("weightage sum = %v, want 100", sum)
	}
}

func TestGenerateScheduleEqualSplitForAllZeroWeightages(t *testing.T) {
	db := setupTestDB(t)
	user, plan := seedPlan(t, db)

	gen := &fakeGenerator{response: `[
		{"subject":"Math","topic":"Algebra","from_date":"2025-01-01","to_date":"2025-01-10","weightage":0},
		{"subject":"Math","topic":"Geometry","from_date":"2025-01-11","to_date":"2025-01-20","weightage":0}
	]`}

	svc := NewScheduleService(db, gen)
	result, err := svc.GenerateSchedule(context.Background(), user.ID, plan.ID)
	if err != nil {
		t.Fatalf("GenerateSchedule failed: %v", err)
	}

	for _, e := range result.Entries {
		if e.NormalizedWeightage != 50 {
			t.Errorf("entry weightage = %v, want equal split of 50", e.NormalizedWeightage)
		}
	}
}

func TestGenerateScheduleRejectsUndeclaredPairButKeepsRest(t *testing.T) {
	db := setupTestDB(t)
	user, plan := seedPlan(t, db)

	gen := &fakeGenerator{response: `[
		{"subject":"Math","topic":"Algebra","from_date":"2025-01-01","to_date":"2025-01-10","weightage":50},
		{"subject":"History","topic":"WW2","from_date":"2025-01-11","to_date":"2025-01-20","weightage":50}
	]`}

	svc := NewScheduleService(db, gen)
	result, err := svc.GenerateSchedule(context.Background(), user.ID, plan.ID)
	if err != nil {
		t.Fatalf("GenerateSchedule failed: %v", err)
	}

	if result.EntriesSaved != 1 {
		t.Fatalf("expected 1 entry, got %d", result.EntriesSaved)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", result.Warnings)
	}
	// The surviving entry is rescaled to carry the full weight
	if result.Entries[0].NormalizedWeightage != 100 {
		t.Errorf("survivor weightage = %v, want 100", result.Entries[0].NormalizedWeightage)
	}

	var reloaded model.Plan
	db.First(&reloaded, plan.ID)
	if reloaded.Status != model.PlanStatusSubmitted {
		t.Errorf("plan status = %q, want submitted", reloaded.Status)
	}
}

func TestGenerateScheduleDropsOutOfWindowEntries(t *testing.T) {
	db := setupTestDB(t)
	user, plan := seedPlan(t, db)

	gen := &fakeGenerator{response: `[
		{"subject":"Math","topic":"Algebra","from_date":"2025-01-01","to_date":"2025-01-10","weightage":60},
		{"subject":"Math","topic":"Geometry","from_date":"2025-01-25","to_date":"2025-02-05","weightage":40}
	]`}

	svc := NewScheduleService(db, gen)
	result, err := svc.GenerateSchedule(context.Background(), user.ID, plan.ID)
	if err != nil {
		t.Fatalf("GenerateSchedule failed: %v", err)
	}

	if result.EntriesSaved != 1 {
		t.Fatalf("expected 1 entry, got %d", result.EntriesSaved)
	}
	if result.Entries[0].TopicName != "Algebra" {
		t.Errorf("kept entry = %q, want Algebra", result.Entries[0].TopicName)
	}
}

func TestGenerateScheduleUpstreamError(t *testing.T) {
	db := setupTestDB(t)
	user, plan := seedPlan(t, db)

	gen := &fakeGenerator{err: errors.New("connection refused")}

	svc := NewScheduleService(db, gen)
	_, err := svc.GenerateSchedule(context.Background(), user.ID, plan.ID)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("error = %v, want ErrUpstreamUnavailable", err)
	}

	// Plan must stay draft with no entries
	var reloaded model.Plan
	db.First(&reloaded, plan.ID)
	if reloaded.Status != model.PlanStatusDraft {
		t.Errorf("plan status = %q, want draft", reloaded.Status)
	}

	var count int64
	db.Model(&model.ScheduleEntry{}).Where("plan_id = ?", plan.ID).Count(&count)
	if count != 0 {
		t.Errorf("found %d entries, want 0", count)
	}
}

func TestGenerateScheduleMalformedResponse(t *testing.T) {
	db := setupTestDB(t)
	user, plan := seedPlan(t, db)

	gen := &fakeGenerator{response: "I'm sorry, I cannot produce a schedule right now."}

	svc := NewScheduleService(db, gen)
	_, err := svc.GenerateSchedule(context.Background(), user.ID, plan.ID)
	if !errors.Is(err, ErrUpstreamMalformed) {
		t.Fatalf("error = %v, want ErrUpstreamMalformed", err)
	}

	var reloaded model.Plan
	db.First(&reloaded, plan.ID)
	if reloaded.Status != model.PlanStatusDraft {
		t.Errorf("plan status = %q, want draft", reloaded.Status)
	}
}

func TestGenerateScheduleEmptyProposalIsNoValidEntries(t *testing.T) {
	// A parseable but empty list is a zero-survivor batch, not a malformed
	// response
	for _, resp := range []string{"[]", `{"schedule": []}`} {
		db := setupTestDB(t)
		user, plan := seedPlan(t, db)

		svc := NewScheduleService(db, &fakeGenerator{response: resp})
		_, err := svc.GenerateSchedule(context.Background(), user.ID, plan.ID)
		if !errors.Is(err, ErrNoValidEntries) {
			t.Errorf("response %q: error = %v, want ErrNoValidEntries", resp, err)
		}

		var reloaded model.Plan
		db.First(&reloaded, plan.ID)
		if reloaded.Status != model.PlanStatusDraft {
			t.Errorf("response %q: plan status = %q, want draft", resp, reloaded.Status)
		}
	}
}

func TestGenerateScheduleObjectWithoutScheduleListIsMalformed(t *testing.T) {
	db := setupTestDB(t)
	user, plan := seedPlan(t, db)

	svc := NewScheduleService(db, &fakeGenerator{response: `{"message": "here you go"}`})
	_, err := svc.GenerateSchedule(context.Background(), user.ID, plan.ID)
	if !errors.Is(err, ErrUpstreamMalformed) {
		t.Fatalf("error = %v, want ErrUpstreamMalformed", err)
	}
}

func TestGenerateScheduleNoValidEntries(t *testing.T) {
	db := setupTestDB(t)
	user, plan := seedPlan(t, db)

	// Every entry rejected: unknown pair plus an unparseable date
	gen := &fakeGenerator{response: `[
		{"subject":"History","topic":"WW2","from_date":"2025-01-01","to_date":"2025-01-10","weightage":50},
		{"subject":"Math","topic":"Algebra","from_date":"not-a-date","to_date":"2025-01-20","weightage":50}
	]`}

	svc := NewScheduleService(db, gen)
	_, err := svc.GenerateSchedule(context.Background(), user.ID, plan.ID)
	if !errors.Is(err, ErrNoValidEntries) {
		t.Fatalf("error = %v, want ErrNoValidEntries", err)
	}

	var reloaded model.Plan
	db.First(&reloaded, plan.ID)
	if reloaded.Status != model.PlanStatusDraft {
		t.Errorf("plan status = %q, want draft", reloaded.Status)
	}
}

func TestGenerateScheduleSubmittedPlanConflicts(t *testing.T) {
	db := setupTestDB(t)
	user, plan := seedPlan(t, db)

	db.Model(plan).Update("status", model.PlanStatusSubmitted)

	svc := NewScheduleService(db, &fakeGenerator{response: "[]"})
	_, err := svc.GenerateSchedule(context.Background(), user.ID, plan.ID)
	if !errors.Is(err, ErrPlanSubmitted) {
		t.Fatalf("error = %v, want ErrPlanSubmitted", err)
	}
}

func TestGenerateSchedulePlanNotFound(t *testing.T) {
	db := setupTestDB(t)
	user, _ := seedPlan(t, db)

	svc := NewScheduleService(db, &fakeGenerator{response: "[]"})
	_, err := svc.GenerateSchedule(context.Background(), user.ID, 9999)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestGenerateScheduleAcceptsFencedEnvelope(t *testing.T) {
	db := setupTestDB(t)
	user, plan := seedPlan(t, db)

	gen := &fakeGenerator{response: "Here is your schedule:\n```json\n" +
		`{"schedule":[{"subject":"Math","topic":"Algebra","from_date":"2025-01-01","to_date":"2025-01-15","weightage":100}]}` +
		"\n```"}

	svc := NewScheduleService(db, gen)
	result, err := svc.GenerateSchedule(context.Background(), user.ID, plan.ID)
	if err != nil {
		t.Fatalf("GenerateSchedule failed: %v", err)
	}
	if result.EntriesSaved != 1 {
		t.Fatalf("expected 1 entry, got %d", result.EntriesSaved)
	}
}
