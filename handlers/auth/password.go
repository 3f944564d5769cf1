package auth

import (
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/studyplanner/api/model"
	"github.com/studyplanner/api/utils/auth"
	"github.com/studyplanner/api/utils/middleware"
	"github.com/studyplanner/api/utils/response"
	"gorm.io/gorm"
)

const resetTokenTTL = 1 * time.Hour

// ForgotPasswordRequest carries the account email
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ForgotPassword issues a single-use reset token and emails the link. The
// response is identical whether or not the email exists, so the endpoint
// cannot be used to probe for accounts.
func (h *Handler) ForgotPassword(c *fiber.Ctx) error {
	var req ForgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	neutral := func() error {
		return response.SuccessWithMessage(c,
			"If an account exists for that email, a reset link has been sent.", nil)
	}

	var user model.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return neutral()
	}

	resetToken := model.PasswordResetToken{
		UserID:    user.ID,
		Token:     uuid.New().String(),
		ExpiresAt: time.Now().Add(resetTokenTTL),
	}
	if err := h.db.Create(&resetToken).Error; err != nil {
		return response.InternalServerError(c, "Failed to create reset token")
	}

	if err := h.emailService.SendPasswordResetEmail(user.Email, user.Name, resetToken.Token); err != nil {
		log.Printf("auth: failed to send reset email to %s: %v", user.Email, err)
	}

	return neutral()
}

// ResetPasswordRequest carries the reset token and new password
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// ResetPassword consumes a reset token and sets the new password. All
// outstanding sessions are invalidated.
func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var req ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	var resetToken model.PasswordResetToken
	err := h.db.Where("token = ?", req.Token).First(&resetToken).Error
	if err != nil {
		return response.BadRequest(c, "Invalid or expired reset token")
	}

	if resetToken.IsUsed() || resetToken.IsExpired() {
		return response.BadRequest(c, "Invalid or expired reset token")
	}

	passwordHash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return response.InternalServerError(c, "Failed to process password")
	}

	tx := h.db.Begin()
	if tx.Error != nil {
		return response.InternalServerError(c, "Failed to reset password")
	}

	err = tx.Model(&model.User{}).
		Where("id = ?", resetToken.UserID).
		Updates(map[string]interface{}{
			"password_hash": passwordHash,
			"token_version": gorm.Expr("token_version + 1"),
		}).Error
	if err != nil {
		tx.Rollback()
		return response.InternalServerError(c, "Failed to reset password")
	}

	resetToken.MarkAsUsed()
	if err := tx.Save(&resetToken).Error; err != nil {
		tx.Rollback()
		return response.InternalServerError(c, "Failed to reset password")
	}

	if err := tx.Commit().Error; err != nil {
		return response.InternalServerError(c, "Failed to reset password")
	}

	return response.SuccessWithMessage(c, "Password reset successfully. Please log in again.", nil)
}

// ChangePasswordRequest carries the current and new password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// ChangePassword updates the password for the authenticated user
func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var req ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	if err := auth.VerifyPassword(user.PasswordHash, req.CurrentPassword); err != nil {
		return response.Unauthorized(c, "Current password is incorrect")
	}

	passwordHash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return response.InternalServerError(c, "Failed to process password")
	}

	err = h.db.Model(user).Updates(map[string]interface{}{
		"password_hash": passwordHash,
		"token_version": gorm.Expr("token_version + 1"),
	}).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to change password")
	}

	return response.SuccessWithMessage(c, "Password changed. Please log in again.", nil)
}
