package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/jumppguru/backend/internal/ingestion"
	"github.com/jumppguru/backend/pkg/logger"
)

type IngestHandler struct {
	processor *ingestion.Processor
}

func NewIngestHandler(processor *ingestion.Processor) *IngestHandler {
	return &IngestHandler{processor: processor}
}

func (h *IngestHandler) HandleIngest(c *fiber.Ctx) error {
	var req struct {
		Subject     string   `json:"subject"`
		ContentType string   `json:"contentType"`
		Texts       []string `json:"texts"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse ingest request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if len(req.Texts) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "texts is required",
		})
	}

	count, err := h.processor.Ingest(c.Context(), req.Subject, req.ContentType, req.Texts)
	if err != nil {
		logger.Error("Failed to ingest material", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to ingest material",
		})
	}

	return c.JSON(fiber.Map{
		"chunksIndexed": count,
	})
}
