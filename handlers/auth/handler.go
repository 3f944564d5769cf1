package auth

import (
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/studyplanner/api/model"
	"github.com/studyplanner/api/services"
	"github.com/studyplanner/api/utils/auth"
	"github.com/studyplanner/api/utils/middleware"
	"github.com/studyplanner/api/utils/response"
	"github.com/studyplanner/api/utils/validation"
	"gorm.io/gorm"
)

const (
	verifyTokenTTL      = 24 * time.Hour
	emailChangeTokenTTL = 24 * time.Hour
)

// Handler holds dependencies for auth endpoints
type Handler struct {
	db           *gorm.DB
	jwtManager   *auth.JWTManager
	tokenService *auth.TokenService
	emailService *services.EmailService
	validator    *validation.Validator
	bruteForce   *middleware.BruteForceProtection
}

// NewHandler creates a new auth handler
func NewHandler(
	db *gorm.DB,
	jwtManager *auth.JWTManager,
	tokenService *auth.TokenService,
	emailService *services.EmailService,
	bruteForce *middleware.BruteForceProtection,
) *Handler {
	return &Handler{
		db:           db,
		jwtManager:   jwtManager,
		tokenService: tokenService,
		emailService: emailService,
		validator:    validation.NewValidator(),
		bruteForce:   bruteForce,
	}
}

// RegisterRequest is the registration payload
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Register starts registration. No account row is written here: the payload
// travels inside a signed, purpose-scoped token in the verification email and
// the user is only created when the link is followed.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	var existing model.User
	if err := h.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return response.Conflict(c, "Email is already registered")
	} else if err != gorm.ErrRecordNotFound {
		return response.InternalServerError(c, "Failed to check email")
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return response.InternalServerError(c, "Failed to process password")
	}

	token, err := h.tokenService.Issue(map[string]string{
		"name":          req.Name,
		"email":         req.Email,
		"password_hash": passwordHash,
	}, auth.PurposeEmailVerify, verifyTokenTTL)
	if err != nil {
		return response.InternalServerError(c, "Failed to issue verification token")
	}

	if err := h.emailService.SendVerificationEmail(req.Email, req.Name, token); err != nil {
		log.Printf("auth: failed to send verification email to %s: %v", req.Email, err)
		return response.InternalServerError(c, "Failed to send verification email")
	}

	return response.SuccessWithMessage(c, "Verification email sent. Please check your inbox.", fiber.Map{
		"email": req.Email,
	})
}

// Verify completes registration from the emailed link
func (h *Handler) Verify(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return response.BadRequest(c, "Missing verification token")
	}

	payload, err := h.tokenService.Verify(token, auth.PurposeEmailVerify)
	if err != nil {
		if err == auth.ErrTokenExpired {
			return response.Error(c, fiber.StatusGone, "Verification link has expired. Please register again.", "TOKEN_EXPIRED")
		}
		return response.BadRequest(c, "Invalid verification token")
	}

	// The email may have been taken between registration and verification
	var existing model.User
	if err := h.db.Where("email = ?", payload["email"]).First(&existing).Error; err == nil {
		return response.Conflict(c, "Email is already registered")
	} else if err != gorm.ErrRecordNotFound {
		return response.InternalServerError(c, "Failed to check email")
	}

	user := model.User{
		Name:         payload["name"],
		Email:        payload["email"],
		PasswordHash: payload["password_hash"],
	}
	if err := h.db.Create(&user).Error; err != nil {
		return response.InternalServerError(c, "Failed to create account")
	}

	return response.SuccessWithMessage(c, "Email verified. Your account is ready.", fiber.Map{
		"user_id": user.ID,
		"email":   user.Email,
	})
}

// LoginRequest is the login payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login authenticates a user and returns access/refresh tokens
func (h *Handler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	var user model.User
	err := h.db.Where("email = ?", req.Email).First(&user).Error
	if err != nil {
		if h.bruteForce != nil {
			h.bruteForce.RecordFailedAttempt(c, c.IP())
		}
		return response.Unauthorized(c, "Invalid email or password")
	}

	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		if h.bruteForce != nil {
			h.bruteForce.RecordFailedAttempt(c, c.IP())
		}
		return response.Unauthorized(c, "Invalid email or password")
	}

	if h.bruteForce != nil {
		h.bruteForce.RecordSuccessfulAttempt(c, c.IP())
	}

	accessToken, _, err := h.jwtManager.GenerateAccessToken(user.ID, user.Email, user.TokenVersion)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate token")
	}

	refreshToken, _, err := h.jwtManager.GenerateRefreshToken(user.ID, user.Email, user.TokenVersion)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate token")
	}

	return response.Success(c, fiber.Map{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"user": fiber.Map{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
		},
	})
}

// RefreshRequest carries the refresh token
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Refresh exchanges a valid refresh token for a new access token
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	claims, err := h.jwtManager.ValidateToken(req.RefreshToken)
	if err != nil || claims.TokenType != "refresh" {
		return response.Unauthorized(c, "Invalid refresh token")
	}

	var user model.User
	if err := h.db.First(&user, claims.UserID).Error; err != nil {
		return response.Unauthorized(c, "User not found")
	}

	if user.TokenVersion != claims.TokenVersion {
		return response.Unauthorized(c, "Token has been invalidated")
	}

	accessToken, _, err := h.jwtManager.GenerateAccessToken(user.ID, user.Email, user.TokenVersion)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate token")
	}

	return response.Success(c, fiber.Map{
		"access_token": accessToken,
	})
}

// Logout invalidates every outstanding token by bumping the token version
func (h *Handler) Logout(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	err := h.db.Model(user).Update("token_version", gorm.Expr("token_version + 1")).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to log out")
	}

	return response.SuccessWithMessage(c, "Logged out successfully", nil)
}
