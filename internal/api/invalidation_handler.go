package api

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"vitalstats/internal/invalidation"
)

// InvalidationPublisher queues cache invalidations.
type InvalidationPublisher interface {
	Publish(ctx context.Context, req *invalidation.Request) (*invalidation.Message, error)
}

// InvalidationHandler accepts cache invalidation requests.
type InvalidationHandler struct {
	publisher InvalidationPublisher
	logger    *slog.Logger
}

// NewInvalidationHandler creates a new invalidation handler.
func NewInvalidationHandler(publisher InvalidationPublisher, logger *slog.Logger) *InvalidationHandler {
	return &InvalidationHandler{
		publisher: publisher,
		logger:    logger,
	}
}

// Create handles POST /v1/cache/invalidations
// The invalidation is applied asynchronously; the response carries its id
// and the resolved keys.
func (h *InvalidationHandler) Create(c *fiber.Ctx) error {
	var req invalidation.Request
	if err := c.BodyParser(&req); err != nil {
		h.logger.Debug("failed to parse request body", "error", err)
		return BadRequest(c, "invalid request body")
	}

	msg, err := h.publisher.Publish(c.Context(), &req)
	if err != nil {
		return HandleError(c, h.logger, err)
	}
	return Accepted(c, msg)
}
