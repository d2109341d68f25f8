package handlers

import (
	"errors"

	"spamguard/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ClassifyHandler handles HTTP requests for spam classification.
type ClassifyHandler struct {
	service *services.ClassifyService
	log     *zap.Logger
}

// NewClassifyHandler creates a new ClassifyHandler.
func NewClassifyHandler(service *services.ClassifyService, log *zap.Logger) *ClassifyHandler {
	return &ClassifyHandler{
		service: service,
		log:     log,
	}
}

// RegisterRoutes registers the classify route.
func (h *ClassifyHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/classify", h.HandleClassify)
}

// ClassifyRequest represents the request body for classification.
type ClassifyRequest struct {
	Text string `json:"text"`
}

// HandleClassify labels the submitted text as spam or not spam.
func (h *ClassifyHandler) HandleClassify(c *fiber.Ctx) error {
	var req ClassifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body.",
		})
	}

	result, err := h.service.Classify(req.Text)
	if err != nil {
		if errors.Is(err, services.ErrEmptyText) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Text input is required.",
			})
		}
		rid := requestID(c)
		h.log.Error("classification failed", zap.String("request_id", rid), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "An error occurred during classification.",
			"details": "request " + rid,
		})
	}
	return c.Status(fiber.StatusOK).JSON(result)
}
