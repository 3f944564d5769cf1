package dashboard

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/studyplanner/api/model"
	"github.com/studyplanner/api/services"
	"github.com/studyplanner/api/utils/middleware"
	"github.com/studyplanner/api/utils/response"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// seriesDays is how many trailing days the dashboard chart shows
const seriesDays = 7

// Handler holds dependencies for dashboard endpoints
type Handler struct {
	db              *gorm.DB
	progressService *services.ProgressService
}

// NewHandler creates a new dashboard handler
func NewHandler(db *gorm.DB, progressService *services.ProgressService) *Handler {
	return &Handler{
		db:              db,
		progressService: progressService,
	}
}

// Overview assembles the dashboard: greeting, today's completion, a trailing
// 7-day series, lifetime counters and the most recent entries.
func (h *Handler) Overview(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	// Day math runs on UTC dates to match how entry dates are stored; only
	// the greeting follows the server clock.
	now := time.Now()
	utcNow := now.UTC()
	today := time.Date(utcNow.Year(), utcNow.Month(), utcNow.Day(), 0, 0, 0, 0, time.UTC)

	todayProgress, err := h.progressService.GetDay(user.ID, today)
	if err != nil {
		return response.InternalServerError(c, "Failed to load progress")
	}

	series, err := h.progressService.GetSeries(user.ID, today, seriesDays)
	if err != nil {
		return response.InternalServerError(c, "Failed to load progress series")
	}

	seriesOut := make([]fiber.Map, 0, len(series))
	for _, day := range series {
		seriesOut = append(seriesOut, fiber.Map{
			"day":                day.Day.Format(dateLayout),
			"total_tasks":        day.TotalTasks,
			"completed_tasks":    day.CompletedTasks,
			"completion_percent": day.CompletionPercent(),
		})
	}

	overall, err := h.progressService.Overall(user.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to load counters")
	}

	var recent []model.ScheduleEntry
	err = h.db.Where("user_id = ?", user.ID).
		Order("updated_at DESC").
		Limit(5).
		Find(&recent).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to load recent entries")
	}

	return response.Success(c, fiber.Map{
		"greeting": greeting(now) + ", " + user.Name,
		"today": fiber.Map{
			"date":               today.Format(dateLayout),
			"total_tasks":        todayProgress.TotalTasks,
			"completed_tasks":    todayProgress.CompletedTasks,
			"completion_percent": todayProgress.CompletionPercent(),
			"pending_from_previous": fiber.Map{
				"count":   todayProgress.PendingFromPrevious,
				"percent": todayProgress.PendingPercent(),
			},
		},
		"last_7_days":    seriesOut,
		"overall":        overall,
		"recent_entries": recent,
	})
}

func greeting(t time.Time) string {
	switch hour := t.Hour(); {
	case hour < 12:
		return "Good morning"
	case hour < 17:
		return "Good afternoon"
	default:
		return "Good evening"
	}
}
