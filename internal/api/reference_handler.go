package api

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"vitalstats/internal/domain"
)

// ReferenceLoader serves cached reference data and statistics.
type ReferenceLoader interface {
	Regions(ctx context.Context) ([]domain.Region, error)
	States(ctx context.Context, year int, region domain.RegionFilter) ([]domain.State, error)
	StateStatistics(ctx context.Context, stateID int64, year int) ([]domain.StatisticRecord, error)
	Municipalities(ctx context.Context, stateID int64) ([]domain.Municipality, error)
	MunicipalityStatistics(ctx context.Context, stateID int64, year int) ([]domain.StatisticRecord, error)
}

// ReferenceHandler exposes the cached backend reads.
type ReferenceHandler struct {
	loader      ReferenceLoader
	defaultYear int
	logger      *slog.Logger
}

// NewReferenceHandler creates a new reference handler.
func NewReferenceHandler(loader ReferenceLoader, defaultYear int, logger *slog.Logger) *ReferenceHandler {
	return &ReferenceHandler{
		loader:      loader,
		defaultYear: defaultYear,
		logger:      logger,
	}
}

// Regions handles GET /v1/regioes
func (h *ReferenceHandler) Regions(c *fiber.Ctx) error {
	regions, err := h.loader.Regions(c.Context())
	if err != nil {
		return HandleError(c, h.logger, err)
	}
	return Success(c, regions)
}

// States handles GET /v1/ufs?ano=&regiao_id=
// The year only scopes the cache entry; it defaults to the dashboard year.
func (h *ReferenceHandler) States(c *fiber.Ctx) error {
	year := h.defaultYear
	if raw := c.Query("ano"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return ValidationError(c, domain.NewValidationError("ano", "must be a positive integer"))
		}
		year = n
	}

	region, err := domain.ParseRegionFilter(c.Query("regiao_id"))
	if err != nil {
		return ValidationError(c, domain.NewValidationError("regiao_id", "must be a region id or todas"))
	}

	states, err := h.loader.States(c.Context(), year, region)
	if err != nil {
		return HandleError(c, h.logger, err)
	}
	return Success(c, states)
}

// StateStatistics handles GET /v1/ufs/:id/:ano/estatisticas
func (h *ReferenceHandler) StateStatistics(c *fiber.Ctx) error {
	stateID, year, err := stateYearParams(c)
	if err != nil {
		return HandleError(c, h.logger, err)
	}

	records, err := h.loader.StateStatistics(c.Context(), stateID, year)
	if err != nil {
		return HandleError(c, h.logger, err)
	}
	return Success(c, records)
}

// MunicipalityStatistics handles GET /v1/ufs/:id/:ano/municipios/estatisticas
func (h *ReferenceHandler) MunicipalityStatistics(c *fiber.Ctx) error {
	stateID, year, err := stateYearParams(c)
	if err != nil {
		return HandleError(c, h.logger, err)
	}

	records, err := h.loader.MunicipalityStatistics(c.Context(), stateID, year)
	if err != nil {
		return HandleError(c, h.logger, err)
	}
	return Success(c, records)
}

// Municipalities handles GET /v1/ufs/:id/municipios
func (h *ReferenceHandler) Municipalities(c *fiber.Ctx) error {
	stateID, err := idParam(c, "id", "uf")
	if err != nil {
		return HandleError(c, h.logger, err)
	}

	municipalities, err := h.loader.Municipalities(c.Context(), stateID)
	if err != nil {
		return HandleError(c, h.logger, err)
	}
	return Success(c, municipalities)
}

// idParam parses a positive integer route parameter.
func idParam(c *fiber.Ctx, name, field string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError(field, "must be a positive integer")
	}
	return id, nil
}

func stateYearParams(c *fiber.Ctx) (int64, int, error) {
	stateID, err := idParam(c, "id", "uf")
	if err != nil {
		return 0, 0, err
	}
	year, err := idParam(c, "ano", "ano")
	if err != nil {
		return 0, 0, err
	}
	return stateID, int(year), nil
}
