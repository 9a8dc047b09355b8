package api

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"vitalstats/internal/domain"
)

// CartorioGateway is the backend CRUD surface for cartórios.
type CartorioGateway interface {
	ListCartorios(ctx context.Context) ([]domain.Cartorio, error)
	GetCartorio(ctx context.Context, id int64) (*domain.Cartorio, error)
	CreateCartorio(ctx context.Context, in *domain.CartorioInput) (*domain.Cartorio, error)
	UpdateCartorio(ctx context.Context, id int64, in *domain.CartorioInput) (*domain.Cartorio, error)
	DeleteCartorio(ctx context.Context, id int64) error
}

// CartorioHandler proxies cartório CRUD to the backend after validation.
type CartorioHandler struct {
	gateway CartorioGateway
	logger  *slog.Logger
}

// NewCartorioHandler creates a new cartório handler.
func NewCartorioHandler(gateway CartorioGateway, logger *slog.Logger) *CartorioHandler {
	return &CartorioHandler{
		gateway: gateway,
		logger:  logger,
	}
}

// List handles GET /v1/cartorios
func (h *CartorioHandler) List(c *fiber.Ctx) error {
	cartorios, err := h.gateway.ListCartorios(c.Context())
	if err != nil {
		return HandleError(c, h.logger, err)
	}
	return Success(c, cartorios)
}

// GetByID handles GET /v1/cartorios/:id
func (h *CartorioHandler) GetByID(c *fiber.Ctx) error {
	id, err := idParam(c, "id", "id")
	if err != nil {
		return HandleError(c, h.logger, err)
	}

	cartorio, err := h.gateway.GetCartorio(c.Context(), id)
	if err != nil {
		return HandleError(c, h.logger, err)
	}
	return Success(c, cartorio)
}

// Create handles POST /v1/cartorios
func (h *CartorioHandler) Create(c *fiber.Ctx) error {
	var in domain.CartorioInput
	if err := c.BodyParser(&in); err != nil {
		h.logger.Debug("failed to parse request body", "error", err)
		return BadRequest(c, "invalid request body")
	}

	cartorio, err := h.gateway.CreateCartorio(c.Context(), &in)
	if err != nil {
		return HandleError(c, h.logger, err)
	}

	h.logger.Info("created cartorio", "id", cartorio.ID, "cnpj", cartorio.CNPJ)
	return Created(c, cartorio)
}

// Update handles PUT /v1/cartorios/:id
func (h *CartorioHandler) Update(c *fiber.Ctx) error {
	id, err := idParam(c, "id", "id")
	if err != nil {
		return HandleError(c, h.logger, err)
	}

	var in domain.CartorioInput
	if err := c.BodyParser(&in); err != nil {
		h.logger.Debug("failed to parse request body", "error", err)
		return BadRequest(c, "invalid request body")
	}

	cartorio, err := h.gateway.UpdateCartorio(c.Context(), id, &in)
	if err != nil {
		return HandleError(c, h.logger, err)
	}

	h.logger.Info("updated cartorio", "id", id)
	return Success(c, cartorio)
}

// Delete handles DELETE /v1/cartorios/:id
func (h *CartorioHandler) Delete(c *fiber.Ctx) error {
	id, err := idParam(c, "id", "id")
	if err != nil {
		return HandleError(c, h.logger, err)
	}

	if err := h.gateway.DeleteCartorio(c.Context(), id); err != nil {
		return HandleError(c, h.logger, err)
	}

	h.logger.Info("deleted cartorio", "id", id)
	return NoContent(c)
}
