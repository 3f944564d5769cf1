package auth

import (
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/studyplanner/api/model"
	"github.com/studyplanner/api/utils/auth"
	"github.com/studyplanner/api/utils/middleware"
	"github.com/studyplanner/api/utils/response"
	"gorm.io/gorm"
)

// Me returns the authenticated user's profile
func (h *Handler) Me(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	return response.Success(c, fiber.Map{
		"id":         user.ID,
		"name":       user.Name,
		"email":      user.Email,
		"phone":      user.Phone,
		"created_at": user.CreatedAt,
	})
}

// UpdateProfileRequest carries editable profile fields
type UpdateProfileRequest struct {
	Name  string `json:"name" validate:"omitempty,min=2,max=100"`
	Phone string `json:"phone" validate:"omitempty,max=25"`
}

// UpdateProfile updates name and phone. Each changed field leaves an audit
// row in account_changes.
func (h *Handler) UpdateProfile(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	updates := map[string]interface{}{}
	var changes []model.AccountChange

	if req.Name != "" && req.Name != user.Name {
		updates["name"] = req.Name
		changes = append(changes, model.AccountChange{
			UserID:       user.ID,
			FieldChanged: "name",
			OldValue:     user.Name,
			NewValue:     req.Name,
		})
	}
	if req.Phone != "" && req.Phone != user.Phone {
		updates["phone"] = req.Phone
		changes = append(changes, model.AccountChange{
			UserID:       user.ID,
			FieldChanged: "phone",
			OldValue:     user.Phone,
			NewValue:     req.Phone,
		})
	}

	if len(updates) == 0 {
		return response.SuccessWithMessage(c, "Nothing to update", nil)
	}

	tx := h.db.Begin()
	if tx.Error != nil {
		return response.InternalServerError(c, "Failed to update profile")
	}

	if err := tx.Model(user).Updates(updates).Error; err != nil {
		tx.Rollback()
		return response.InternalServerError(c, "Failed to update profile")
	}

	if err := tx.Create(&changes).Error; err != nil {
		tx.Rollback()
		return response.InternalServerError(c, "Failed to update profile")
	}

	if err := tx.Commit().Error; err != nil {
		return response.InternalServerError(c, "Failed to update profile")
	}

	return response.SuccessWithMessage(c, "Profile updated", fiber.Map{
		"name":  firstNonEmpty(req.Name, user.Name),
		"phone": firstNonEmpty(req.Phone, user.Phone),
	})
}

// ChangeEmailRequest carries the new address plus the password re-check
type ChangeEmailRequest struct {
	NewEmail string `json:"new_email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ChangeEmail starts an email change. Nothing is applied here: a confirmation
// link goes to the NEW address, and the change only lands when it is followed.
func (h *Handler) ChangeEmail(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var req ChangeEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	req.NewEmail = strings.ToLower(strings.TrimSpace(req.NewEmail))

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		return response.Unauthorized(c, "Password is incorrect")
	}

	if req.NewEmail == user.Email {
		return response.BadRequest(c, "New email is the same as the current one")
	}

	var existing model.User
	if err := h.db.Where("email = ?", req.NewEmail).First(&existing).Error; err == nil {
		return response.Conflict(c, "Email is already registered")
	} else if err != gorm.ErrRecordNotFound {
		return response.InternalServerError(c, "Failed to check email")
	}

	token, err := h.tokenService.Issue(map[string]string{
		"user_id":   strconv.FormatUint(uint64(user.ID), 10),
		"old_email": user.Email,
		"new_email": req.NewEmail,
	}, auth.PurposeEmailChange, emailChangeTokenTTL)
	if err != nil {
		return response.InternalServerError(c, "Failed to issue confirmation token")
	}

	if err := h.emailService.SendEmailChangeConfirmation(req.NewEmail, user.Name, token); err != nil {
		log.Printf("auth: failed to send email change confirmation to %s: %v", req.NewEmail, err)
		return response.InternalServerError(c, "Failed to send confirmation email")
	}

	return response.SuccessWithMessage(c,
		"Confirmation email sent to the new address.", fiber.Map{
			"new_email": req.NewEmail,
		})
}

// VerifyEmailChange applies a pending email change from the emailed link
func (h *Handler) VerifyEmailChange(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return response.BadRequest(c, "Missing confirmation token")
	}

	payload, err := h.tokenService.Verify(token, auth.PurposeEmailChange)
	if err != nil {
		if err == auth.ErrTokenExpired {
			return response.Error(c, fiber.StatusGone, "Confirmation link has expired.", "TOKEN_EXPIRED")
		}
		return response.BadRequest(c, "Invalid confirmation token")
	}

	userID, err := strconv.ParseUint(payload["user_id"], 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid confirmation token")
	}

	var user model.User
	if err := h.db.First(&user, uint(userID)).Error; err != nil {
		return response.NotFound(c, "User not found")
	}

	// Stale link: the address already moved on since this token was issued
	if user.Email != payload["old_email"] {
		return response.Conflict(c, "This confirmation link is no longer valid")
	}

	var existing model.User
	if err := h.db.Where("email = ?", payload["new_email"]).First(&existing).Error; err == nil {
		return response.Conflict(c, "Email is already registered")
	} else if err != gorm.ErrRecordNotFound {
		return response.InternalServerError(c, "Failed to check email")
	}

	tx := h.db.Begin()
	if tx.Error != nil {
		return response.InternalServerError(c, "Failed to change email")
	}

	err = tx.Model(&user).Updates(map[string]interface{}{
		"email":         payload["new_email"],
		"token_version": gorm.Expr("token_version + 1"),
	}).Error
	if err != nil {
		tx.Rollback()
		return response.InternalServerError(c, "Failed to change email")
	}

	change := model.AccountChange{
		UserID:       user.ID,
		FieldChanged: "email",
		OldValue:     payload["old_email"],
		NewValue:     payload["new_email"],
	}
	if err := tx.Create(&change).Error; err != nil {
		tx.Rollback()
		return response.InternalServerError(c, "Failed to change email")
	}

	if err := tx.Commit().Error; err != nil {
		return response.InternalServerError(c, "Failed to change email")
	}

	return response.SuccessWithMessage(c, "Email changed. Please log in again.", fiber.Map{
		"email": payload["new_email"],
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
