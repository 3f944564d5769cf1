package plan

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
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

var validWeekdays = map[string]bool{
	"Mon": true, "Tue": true, "Wed": true, "Thu": true,
	"Fri": true, "Sat": true, "Sun": true,
}

// Handler holds dependencies for plan endpoints
type Handler struct {
	db              *gorm.DB
	scheduleService *services.ScheduleService
	validator       *validation.Validator
}

// NewHandler creates a new plan handler
func NewHandler(db *gorm.DB, scheduleService *services.ScheduleService) *Handler {
	return &Handler{
		db:              db,
		scheduleService: scheduleService,
		validator:       validation.NewValidator(),
	}
}

// CreatePlanRequest is the plan creation payload
type CreatePlanRequest struct {
	Name          string   `json:"name" validate:"required,min=2,max=200"`
	StartDate     string   `json:"start_date" validate:"required"`
	EndDate       string   `json:"end_date" validate:"required"`
	PreferredDays []string `json:"preferred_days" validate:"omitempty,max=7"`
}

// Create creates a new draft plan
func (h *Handler) Create(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var req CreatePlanRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	startDate, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return response.BadRequest(c, "start_date must be in YYYY-MM-DD format")
	}
	endDate, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		return response.BadRequest(c, "end_date must be in YYYY-MM-DD format")
	}
	if endDate.Before(startDate) {
		return response.BadRequest(c, "end_date must not be before start_date")
	}

	for _, day := range req.PreferredDays {
		if !validWeekdays[day] {
			return response.BadRequest(c, "preferred_days must use Mon..Sun tokens")
		}
	}

	preferredDays, err := json.Marshal(req.PreferredDays)
	if err != nil {
		return response.InternalServerError(c, "Failed to encode preferred days")
	}

	plan := model.Plan{
		UserID:        userID,
		Name:          strings.TrimSpace(req.Name),
		StartDate:     startDate,
		EndDate:       endDate,
		PreferredDays: preferredDays,
		Status:        model.PlanStatusDraft,
	}

	if err := h.db.Create(&plan).Error; err != nil {
		return response.InternalServerError(c, "Failed to create plan")
	}

	return response.Created(c, plan)
}

// List returns all of the user's plans, newest first
func (h *Handler) List(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var plans []model.Plan
	err := h.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&plans).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to load plans")
	}

	return response.Success(c, plans)
}

// Get returns one plan with its subjects and topics
func (h *Handler) Get(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	planID, err := parseID(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid plan ID")
	}

	var plan model.Plan
	err = h.db.Preload("Subjects.Topics").
		Where("id = ? AND user_id = ?", planID, userID).
		First(&plan).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Plan not found")
		}
		return response.InternalServerError(c, "Failed to load plan")
	}

	return response.Success(c, plan)
}

// UpdatePlanRequest carries editable plan fields
type UpdatePlanRequest struct {
	Name          string   `json:"name" validate:"omitempty,min=2,max=200"`
	StartDate     string   `json:"start_date"`
	EndDate       string   `json:"end_date"`
	PreferredDays []string `json:"preferred_days" validate:"omitempty,max=7"`
}

// Update edits a plan. Only drafts are editable: a submitted plan's window is
// what its schedule entries were validated against.
func (h *Handler) Update(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	planID, err := parseID(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid plan ID")
	}

	var plan model.Plan
	err = h.db.Where("id = ? AND user_id = ?", planID, userID).First(&plan).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Plan not found")
		}
		return response.InternalServerError(c, "Failed to load plan")
	}

	if !plan.IsDraft() {
		return response.Conflict(c, "Plan has already been submitted and cannot be edited")
	}

	var req UpdatePlanRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	startDate := plan.StartDate
	endDate := plan.EndDate

	if req.StartDate != "" {
		startDate, err = time.Parse(dateLayout, req.StartDate)
		if err != nil {
			return response.BadRequest(c, "start_date must be in YYYY-MM-DD format")
		}
	}
	if req.EndDate != "" {
		endDate, err = time.Parse(dateLayout, req.EndDate)
		if err != nil {
			return response.BadRequest(c, "end_date must be in YYYY-MM-DD format")
		}
	}
	if endDate.Before(startDate) {
		return response.BadRequest(c, "end_date must not be before start_date")
	}

	updates := map[string]interface{}{
		"start_date": startDate,
		"end_date":   endDate,
	}
	if req.Name != "" {
		updates["name"] = strings.TrimSpace(req.Name)
	}
	if req.PreferredDays != nil {
		for _, day := range req.PreferredDays {
			if !validWeekdays[day] {
				return response.BadRequest(c, "preferred_days must use Mon..Sun tokens")
			}
		}
		encoded, err := json.Marshal(req.PreferredDays)
		if err != nil {
			return response.InternalServerError(c, "Failed to encode preferred days")
		}
		updates["preferred_days"] = encoded
	}

	if err := h.db.Model(&plan).Updates(updates).Error; err != nil {
		return response.InternalServerError(c, "Failed to update plan")
	}

	return response.SuccessWithMessage(c, "Plan updated", plan)
}

// AddSubjectRequest is the subject creation payload
type AddSubjectRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

// AddSubject adds a subject to a draft plan
func (h *Handler) AddSubject(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	planID, err := parseID(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid plan ID")
	}

	var plan model.Plan
	err = h.db.Where("id = ? AND user_id = ?", planID, userID).First(&plan).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Plan not found")
		}
		return response.InternalServerError(c, "Failed to load plan")
	}

	if !plan.IsDraft() {
		return response.Conflict(c, "Plan has already been submitted and cannot be edited")
	}

	var req AddSubjectRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	subject := model.Subject{
		UserID: userID,
		PlanID: plan.ID,
		Name:   strings.TrimSpace(req.Name),
	}
	if err := h.db.Create(&subject).Error; err != nil {
		return response.InternalServerError(c, "Failed to create subject")
	}

	return response.Created(c, subject)
}

// ListSubjects returns a plan's subjects with their topics
func (h *Handler) ListSubjects(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	planID, err := parseID(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid plan ID")
	}

	var subjects []model.Subject
	err = h.db.Preload("Topics").
		Where("plan_id = ? AND user_id = ?", planID, userID).
		Order("id").
		Find(&subjects).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to load subjects")
	}

	return response.Success(c, subjects)
}

// AddTopicsRequest adds one or more topics to a subject
type AddTopicsRequest struct {
	Topics []TopicInput `json:"topics" validate:"required,min=1,dive"`
}

// TopicInput is one topic in an AddTopicsRequest
type TopicInput struct {
	Name             string  `json:"name" validate:"required,min=1,max=200"`
	InitialWeightage float64 `json:"initial_weightage" validate:"gte=0,lte=100"`
}

// AddTopics adds topics to a subject under a draft plan
func (h *Handler) AddTopics(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	subjectID, err := parseID(c.Params("subjectId"))
	if err != nil {
		return response.BadRequest(c, "Invalid subject ID")
	}

	var subject model.Subject
	err = h.db.Preload("Plan").
		Where("id = ? AND user_id = ?", subjectID, userID).
		First(&subject).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Subject not found")
		}
		return response.InternalServerError(c, "Failed to load subject")
	}

	if !subject.Plan.IsDraft() {
		return response.Conflict(c, "Plan has already been submitted and cannot be edited")
	}

	var req AddTopicsRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	topics := make([]model.Topic, 0, len(req.Topics))
	for _, t := range req.Topics {
		topics = append(topics, model.Topic{
			SubjectID:        subject.ID,
			Name:             strings.TrimSpace(t.Name),
			InitialWeightage: t.InitialWeightage,
		})
	}

	if err := h.db.Create(&topics).Error; err != nil {
		return response.InternalServerError(c, "Failed to create topics")
	}

	return response.Created(c, topics)
}

// Generate asks the upstream model for a schedule proposal, normalizes it and
// persists the result. On success the plan flips to submitted.
func (h *Handler) Generate(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	planID, err := parseID(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid plan ID")
	}

	result, err := h.scheduleService.GenerateSchedule(c.Context(), userID, planID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			return response.NotFound(c, "Plan not found")
		case errors.Is(err, services.ErrPlanSubmitted):
			return response.Conflict(c, "Plan already has a generated schedule")
		case errors.Is(err, services.ErrPlanHasNoTopics):
			return response.BadRequest(c, "Plan has no topics to schedule")
		case errors.Is(err, services.ErrUpstreamUnavailable):
			return response.BadGateway(c, "Schedule service is unavailable. Please try again.", "UPSTREAM_UNAVAILABLE")
		case errors.Is(err, services.ErrUpstreamMalformed):
			return response.BadGateway(c, "Schedule service returned an unusable response. Please try again.", "UPSTREAM_MALFORMED")
		case errors.Is(err, services.ErrNoValidEntries):
			return response.ErrorWithDetails(c, fiber.StatusUnprocessableEntity,
				"No valid schedule entries could be produced", "NO_VALID_ENTRIES", err.Error())
		default:
			return response.InternalServerError(c, "Failed to generate schedule")
		}
	}

	return response.SuccessWithMessage(c, "Schedule generated", result)
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}
