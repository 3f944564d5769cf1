package schedule

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/studyplanner/api/model"
	"github.com/studyplanner/api/services"
	"github.com/studyplanner/api/utils/middleware"
	"github.com/studyplanner/api/utils/response"
	"github.com/studyplanner/api/utils/validation"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// Handler holds dependencies for schedule endpoints
type Handler struct {
	db              *gorm.DB
	progressService *services.ProgressService
	validator       *validation.Validator
}

// NewHandler creates a new schedule handler
func NewHandler(db *gorm.DB, progressService *services.ProgressService) *Handler {
	return &Handler{
		db:              db,
		progressService: progressService,
		validator:       validation.NewValidator(),
	}
}

// ListForPlan returns all schedule entries of one plan
func (h *Handler) ListForPlan(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	planID, err := parseID(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid plan ID")
	}

	var entries []model.ScheduleEntry
	err = h.db.Where("plan_id = ? AND user_id = ?", planID, userID).
		Order("from_date, id").
		Find(&entries).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to load schedule")
	}

	return response.Success(c, entries)
}

// Today returns the entries whose window covers today, plus the day's
// progress roll-up. An optional ?date=YYYY-MM-DD overrides the day.
func (h *Handler) Today(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	// Entry dates are stored as UTC midnights, so "today" must be the UTC
	// calendar date too.
	day := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			return response.BadRequest(c, "date must be in YYYY-MM-DD format")
		}
		day = parsed
	}
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	var entries []model.ScheduleEntry
	err := h.db.Where("user_id = ? AND from_date <= ? AND to_date >= ?", userID, day, day).
		Order("from_date, id").
		Find(&entries).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to load schedule")
	}

	progress, err := h.progressService.GetDay(userID, day)
	if err != nil {
		return response.InternalServerError(c, "Failed to load progress")
	}

	return response.Success(c, fiber.Map{
		"date":               day.Format(dateLayout),
		"entries":            entries,
		"total_tasks":        progress.TotalTasks,
		"completed_tasks":    progress.CompletedTasks,
		"completion_percent": progress.CompletionPercent(),
		"pending_from_previous": fiber.Map{
			"count":   progress.PendingFromPrevious,
			"percent": progress.PendingPercent(),
		},
	})
}

// Complete marks an entry completed
func (h *Handler) Complete(c *fiber.Ctx) error {
	return h.finalize(c, model.EntryStatusCompleted)
}

// Skip marks an entry skipped
func (h *Handler) Skip(c *fiber.Ctx) error {
	return h.finalize(c, model.EntryStatusSkipped)
}

func (h *Handler) finalize(c *fiber.Ctx, target model.EntryStatus) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	entryID, err := parseID(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid entry ID")
	}

	entry, err := h.progressService.RecordStatusChange(userID, entryID, target)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			return response.NotFound(c, "Schedule entry not found")
		case errors.Is(err, services.ErrAlreadyFinalized):
			return response.Conflict(c, "Entry has already been finalized with a different status")
		default:
			return response.InternalServerError(c, "Failed to update entry")
		}
	}

	return response.SuccessWithMessage(c, "Entry updated", entry)
}

// UpdateDatesRequest carries a new date window for an entry
type UpdateDatesRequest struct {
	FromDate string `json:"from_date" validate:"required"`
	ToDate   string `json:"to_date" validate:"required"`
}

// UpdateDates moves a scheduled entry's window. The new window must stay
// inside the plan period, and finalized entries cannot move.
func (h *Handler) UpdateDates(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	entryID, err := parseID(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid entry ID")
	}

	var req UpdateDatesRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	fromDate, err := time.Parse(dateLayout, req.FromDate)
	if err != nil {
		return response.BadRequest(c, "from_date must be in YYYY-MM-DD format")
	}
	toDate, err := time.Parse(dateLayout, req.ToDate)
	if err != nil {
		return response.BadRequest(c, "to_date must be in YYYY-MM-DD format")
	}
	if toDate.Before(fromDate) {
		return response.BadRequest(c, "to_date must not be before from_date")
	}

	var entry model.ScheduleEntry
	err = h.db.Preload("Plan").
		Where("id = ? AND user_id = ?", entryID, userID).
		First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Schedule entry not found")
		}
		return response.InternalServerError(c, "Failed to load entry")
	}

	if entry.Status.IsTerminal() {
		return response.Conflict(c, "Finalized entries cannot be rescheduled")
	}

	if !entry.Plan.ContainsRange(fromDate, toDate) {
		return response.BadRequest(c, "Dates must fall inside the plan period")
	}

	oldFrom, oldTo := entry.FromDate, entry.ToDate

	err = h.db.Model(&entry).Updates(map[string]interface{}{
		"from_date": fromDate,
		"to_date":   toDate,
	}).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to update entry")
	}

	// Refresh roll-ups for both the old and the new window
	if err := h.progressService.RefreshRange(userID, oldFrom, oldTo); err != nil {
		return response.InternalServerError(c, "Failed to refresh progress")
	}
	if err := h.progressService.RefreshRange(userID, fromDate, toDate); err != nil {
		return response.InternalServerError(c, "Failed to refresh progress")
	}

	return response.SuccessWithMessage(c, "Entry rescheduled", entry)
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}
