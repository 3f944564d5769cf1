package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/studyplanner/api/model"
	"github.com/studyplanner/api/utils"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// weightageTolerance is how far the accepted entries' weightage sum may drift
// from 100 before the whole set is rescaled.
const weightageTolerance = 0.5

// ContentGenerator produces free-form text for a prompt. Satisfied by the
// gemini client; tests plug in a canned generator.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// ScheduleService turns a draft plan into persisted schedule entries by asking
// an upstream generative model for a day-by-day proposal and normalizing
// whatever comes back.
type ScheduleService struct {
	db        *gorm.DB
	generator ContentGenerator
}

// NewScheduleService creates a new schedule service
func NewScheduleService(db *gorm.DB, generator ContentGenerator) *ScheduleService {
	return &ScheduleService{
		db:        db,
		generator: generator,
	}
}

// proposedEntry mirrors one element of the upstream JSON proposal
type proposedEntry struct {
	Subject   string  `json:"subject"`
	Topic     string  `json:"topic"`
	FromDate  string  `json:"from_date"`
	ToDate    string  `json:"to_date"`
	Weightage float64 `json:"weightage"`
}

// proposalEnvelope accepts the {"schedule": [...]} wrapper some model
// responses use instead of a bare array.
type proposalEnvelope struct {
	Schedule []proposedEntry `json:"schedule"`
}

// GenerateResult is what a successful generation returns to the handler
type GenerateResult struct {
	PlanID       uint                  `json:"plan_id"`
	EntriesSaved int                   `json:"entries_saved"`
	Entries      []model.ScheduleEntry `json:"entries"`
	Warnings     []string              `json:"warnings,omitempty"`
}

// GenerateSchedule runs the full pipeline for one plan: load, prompt, call
// upstream, validate and normalize the proposal, then persist entries and flip
// the plan to submitted in a single transaction.
//
// On any error the plan stays draft and no entries are written, so the caller
// can simply retry.
func (s *ScheduleService) GenerateSchedule(ctx context.Context, userID, planID uint) (*GenerateResult, error) {
	var plan model.Plan
	err := s.db.Preload("Subjects.Topics").
		Where("id = ? AND user_id = ?", planID, userID).
		First(&plan).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}

	if !plan.IsDraft() {
		return nil, ErrPlanSubmitted
	}

	topicCount := 0
	for _, subject := range plan.Subjects {
		topicCount += len(subject.Topics)
	}
	if topicCount == 0 {
		return nil, ErrPlanHasNoTopics
	}

	prompt := buildSchedulePrompt(&plan)

	raw, err := s.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	// Malformed means no schedule list could be parsed at all. A list that
	// parses but holds nothing falls under the no-valid-entries taxonomy below.
	var proposal []proposedEntry
	if extractErr := utils.ExtractJSONTo(raw, &proposal); extractErr != nil {
		var envelope proposalEnvelope
		if utils.ExtractJSONTo(raw, &envelope) != nil || envelope.Schedule == nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamMalformed, extractErr)
		}
		proposal = envelope.Schedule
	}

	if len(proposal) == 0 {
		return nil, fmt.Errorf("%w: proposal contained no entries", ErrNoValidEntries)
	}

	accepted, warnings := validateProposal(&plan, proposal)
	if len(accepted) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoValidEntries, strings.Join(warnings, "; "))
	}

	normalizeWeightages(accepted)

	saved, err := s.persistEntries(&plan, accepted)
	if err != nil {
		return nil, err
	}

	return &GenerateResult{
		PlanID:       plan.ID,
		EntriesSaved: len(saved),
		Entries:      saved,
		Warnings:     warnings,
	}, nil
}

// buildSchedulePrompt renders the plan into the instruction the upstream
// model answers. Subject/topic names and the date window are the model's
// only vocabulary, so the prompt pins the exact JSON shape expected back.
func buildSchedulePrompt(plan *model.Plan) string {
	var b strings.Builder

	b.WriteString("You are a study planner. Create a day-by-day study schedule as JSON.\n\n")
	fmt.Fprintf(&b, "Study period: %s to %s\n", plan.StartDate.Format(dateLayout), plan.EndDate.Format(dateLayout))

	if len(plan.PreferredDays) > 0 {
		fmt.Fprintf(&b, "Preferred study days: %s\n", string(plan.PreferredDays))
	}

	b.WriteString("\nSubjects and topics with their relative importance:\n")
	for _, subject := range plan.Subjects {
		for _, topic := range subject.Topics {
			fmt.Fprintf(&b, "- Subject: %s | Topic: %s | Weightage: %.1f\n",
				subject.Name, topic.Name, topic.InitialWeightage)
		}
	}

	b.WriteString(`
Respond with ONLY a JSON array. Each element must have exactly these keys:
  "subject": the subject name, copied verbatim from the list above
  "topic": the topic name, copied verbatim from the list above
  "from_date": start date in YYYY-MM-DD format
  "to_date": end date in YYYY-MM-DD format
  "weightage": a number, all weightages summing to 100

All dates must fall inside the study period. Do not invent subjects or topics.
Do not include any text outside the JSON array.`)

	return b.String()
}

// topicRef points an accepted proposal entry at its declared subject/topic
type topicRef struct {
	subjectID uint
	topicID   uint
}

// validateProposal checks every proposed entry against the plan and returns
// the survivors plus one warning per reject. Rejects never fail the run; only
// an empty survivor set does.
func validateProposal(plan *model.Plan, proposal []proposedEntry) ([]model.ScheduleEntry, []string) {
	// Resolve (subject, topic) name pairs to IDs. Duplicate names resolve to
	// the first declared pair.
	refs := make(map[string]topicRef)
	for _, subject := range plan.Subjects {
		for _, topic := range subject.Topics {
			key := pairKey(subject.Name, topic.Name)
			if _, exists := refs[key]; !exists {
				refs[key] = topicRef{subjectID: subject.ID, topicID: topic.ID}
			}
		}
	}

	var accepted []model.ScheduleEntry
	var warnings []string

	for i, entry := range proposal {
		label := fmt.Sprintf("entry %d (%s / %s)", i+1, entry.Subject, entry.Topic)

		ref, declared := refs[pairKey(entry.Subject, entry.Topic)]
		if !declared {
			warnings = append(warnings, label+": subject/topic pair not declared in plan")
			continue
		}

		fromDate, err := time.Parse(dateLayout, entry.FromDate)
		if err != nil {
			warnings = append(warnings, label+": invalid from_date "+entry.FromDate)
			continue
		}

		toDate, err := time.Parse(dateLayout, entry.ToDate)
		if err != nil {
			warnings = append(warnings, label+": invalid to_date "+entry.ToDate)
			continue
		}

		if toDate.Before(fromDate) {
			warnings = append(warnings, label+": to_date is before from_date")
			continue
		}

		if !plan.ContainsRange(fromDate, toDate) {
			warnings = append(warnings, label+": dates fall outside the plan period")
			continue
		}

		if entry.Weightage < 0 {
			warnings = append(warnings, label+": negative weightage")
			continue
		}

		accepted = append(accepted, model.ScheduleEntry{
			UserID:              plan.UserID,
			PlanID:              plan.ID,
			SubjectID:           ref.subjectID,
			TopicID:             ref.topicID,
			SubjectName:         entry.Subject,
			TopicName:           entry.Topic,
			FromDate:            fromDate,
			ToDate:              toDate,
			NormalizedWeightage: entry.Weightage,
			Status:              model.EntryStatusScheduled,
		})
	}

	return accepted, warnings
}

func pairKey(subject, topic string) string {
	return strings.ToLower(strings.TrimSpace(subject)) + "\x00" + strings.ToLower(strings.TrimSpace(topic))
}

// normalizeWeightages rescales the accepted entries in place so their
// weightages sum to 100. A sum already within tolerance is left untouched;
// an all-zero proposal gets an equal split.
func normalizeWeightages(entries []model.ScheduleEntry) {
	sum := 0.0
	for _, e := range entries {
		sum += e.NormalizedWeightage
	}

	if sum == 0 {
		share := 100.0 / float64(len(entries))
		for i := range entries {
			entries[i].NormalizedWeightage = share
		}
		return
	}

	if math.Abs(sum-100) <= weightageTolerance {
		return
	}

	factor := 100.0 / sum
	for i := range entries {
		entries[i].NormalizedWeightage *= factor
	}
}

// persistEntries writes the entries and flips the plan to submitted in one
// transaction. The plan-status update is guarded so a concurrent generation
// cannot double-submit.
func (s *ScheduleService) persistEntries(plan *model.Plan, entries []model.ScheduleEntry) ([]model.ScheduleEntry, error) {
	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(&entries).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to save schedule entries: %w", err)
	}

	result := tx.Model(&model.Plan{}).
		Where("id = ? AND status = ?", plan.ID, model.PlanStatusDraft).
		Update("status", model.PlanStatusSubmitted)
	if result.Error != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to submit plan: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return nil, ErrPlanSubmitted
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit schedule: %w", err)
	}

	plan.Status = model.PlanStatusSubmitted
	return entries, nil
}
