package handlers

import (
	"errors"

	"spamguard/internal/metrics"
	"spamguard/internal/models"
	"spamguard/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AuthHandler handles HTTP requests for signup and login.
type AuthHandler struct {
	accountService *services.AccountService
	validate       *validator.Validate
	log            *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(accountService *services.AccountService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		accountService: accountService,
		validate:       newValidator(),
		log:            log,
	}
}

// RegisterRoutes registers the signup and login routes.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/signup", h.HandleSignup)
	router.Post("/login", h.HandleLogin)
}

// SignupRequest represents the request body for signup.
type SignupRequest struct {
	Username string `json:"username" validate:"required,max=150"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleSignup validates and stores a new account.
func (h *AuthHandler) HandleSignup(c *fiber.Ctx) error {
	var req SignupRequest
	if err := c.BodyParser(&req); err != nil {
		metrics.Signups.WithLabelValues("invalid").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		metrics.Signups.WithLabelValues("invalid").Inc()
		return validationFailed(c, validationMessages(err))
	}

	account := &models.Account{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}
	if err := h.accountService.Signup(account); err != nil {
		var fieldErrs services.FieldErrors
		if errors.As(err, &fieldErrs) {
			metrics.Signups.WithLabelValues("invalid").Inc()
			return validationFailed(c, fieldErrs)
		}
		metrics.Signups.WithLabelValues("error").Inc()
		h.log.Error("signup failed", zap.String("request_id", requestID(c)), zap.String("username", req.Username), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not create user",
		})
	}

	metrics.Signups.WithLabelValues("created").Inc()
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User created successfully!",
	})
}

// HandleLogin verifies a username and password. No token is issued.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, validationMessages(err))
	}

	_, err := h.accountService.Login(req.Username, req.Password)
	switch {
	case err == nil:
		metrics.Logins.WithLabelValues("ok").Inc()
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Login successful!",
		})
	case errors.Is(err, services.ErrAccountNotFound):
		metrics.Logins.WithLabelValues("not_found").Inc()
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found.",
		})
	case errors.Is(err, services.ErrInvalidPassword):
		metrics.Logins.WithLabelValues("bad_password").Inc()
		h.log.Info("login rejected", zap.String("request_id", requestID(c)), zap.String("username", req.Username))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid password.",
		})
	default:
		metrics.Logins.WithLabelValues("error").Inc()
		h.log.Error("login failed", zap.String("request_id", requestID(c)), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not verify credentials.",
		})
	}
}
