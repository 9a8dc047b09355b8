package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"vitalstats/internal/dashboard"
	"vitalstats/internal/domain"
)

// DashboardHandler handles HTTP requests for dashboard sessions.
type DashboardHandler struct {
	sessions *dashboard.Sessions
	logger   *slog.Logger
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(sessions *dashboard.Sessions, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// SessionResponse is a session's view together with one table page.
type SessionResponse struct {
	ID    string               `json:"id"`
	View  *dashboard.View      `json:"view"`
	Table *dashboard.TablePage `json:"table"`
}

// stateRequest is the body of the selection and hover endpoints.
type stateRequest struct {
	UF int64 `json:"uf"`
}

// Create handles POST /v1/sessions
// The body is an optional initial filter.
func (h *DashboardHandler) Create(c *fiber.Ctx) error {
	var initial *domain.FilterState
	if len(c.Body()) > 0 {
		var f domain.FilterState
		if err := c.BodyParser(&f); err != nil {
			h.logger.Debug("failed to parse request body", "error", err)
			return BadRequest(c, "invalid request body")
		}
		initial = &f
	}

	ctrl, err := h.sessions.Create(c.Context(), initial)
	if err != nil {
		return HandleError(c, h.logger, err)
	}

	resp, err := respond(ctrl, dashboard.TableQuery{})
	if err != nil {
		return HandleError(c, h.logger, err)
	}
	return Created(c, resp)
}

// Get handles GET /v1/sessions/:id?busca=&ordenar=&direcao=&pagina=
func (h *DashboardHandler) Get(c *fiber.Ctx) error {
	ctrl, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return HandleError(c, h.logger, err)
	}

	var q dashboard.TableQuery
	if err := c.QueryParser(&q); err != nil {
		return BadRequest(c, "invalid query parameters")
	}

	resp, err := respond(ctrl, q)
	if err != nil {
		return HandleError(c, h.logger, err)
	}
	return Success(c, resp)
}

// ApplyFilters handles PUT /v1/sessions/:id/filters
func (h *DashboardHandler) ApplyFilters(c *fiber.Ctx) error {
	ctrl, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return HandleError(c, h.logger, err)
	}

	var f domain.FilterState
	if err := c.BodyParser(&f); err != nil {
		h.logger.Debug("failed to parse request body", "error", err)
		return BadRequest(c, "invalid request body")
	}

	if err := ctrl.Apply(c.Context(), f); err != nil {
		return HandleError(c, h.logger, err)
	}
	return h.view(c, ctrl)
}

// Reload handles POST /v1/sessions/:id/reload
func (h *DashboardHandler) Reload(c *fiber.Ctx) error {
	ctrl, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return HandleError(c, h.logger, err)
	}

	if err := ctrl.Reload(c.Context()); err != nil {
		return HandleError(c, h.logger, err)
	}
	return h.view(c, ctrl)
}

// Select handles PUT /v1/sessions/:id/selection
// Drills into the state given as {"uf": id}.
func (h *DashboardHandler) Select(c *fiber.Ctx) error {
	ctrl, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return HandleError(c, h.logger, err)
	}

	uf, err := parseState(c)
	if err != nil {
		return HandleError(c, h.logger, err)
	}

	if err := ctrl.SelectState(c.Context(), uf); err != nil {
		return HandleError(c, h.logger, err)
	}
	return h.view(c, ctrl)
}

// ClearSelection handles DELETE /v1/sessions/:id/selection
func (h *DashboardHandler) ClearSelection(c *fiber.Ctx) error {
	ctrl, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return HandleError(c, h.logger, err)
	}

	if err := ctrl.ClearSelection(c.Context()); err != nil {
		return HandleError(c, h.logger, err)
	}
	return h.view(c, ctrl)
}

// HoverEnter handles PUT /v1/sessions/:id/hover
func (h *DashboardHandler) HoverEnter(c *fiber.Ctx) error {
	ctrl, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return HandleError(c, h.logger, err)
	}

	uf, err := parseState(c)
	if err != nil {
		return HandleError(c, h.logger, err)
	}

	if err := ctrl.HoverEnter(uf); err != nil {
		return HandleError(c, h.logger, err)
	}
	return Success(c, ctrl.View().Hover)
}

// HoverLeave handles DELETE /v1/sessions/:id/hover
func (h *DashboardHandler) HoverLeave(c *fiber.Ctx) error {
	ctrl, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return HandleError(c, h.logger, err)
	}

	ctrl.HoverLeave()
	return Success(c, ctrl.View().Hover)
}

// Delete handles DELETE /v1/sessions/:id
func (h *DashboardHandler) Delete(c *fiber.Ctx) error {
	if err := h.sessions.Delete(c.Params("id")); err != nil {
		return HandleError(c, h.logger, err)
	}
	return NoContent(c)
}

func (h *DashboardHandler) view(c *fiber.Ctx, ctrl *dashboard.Controller) error {
	resp, err := respond(ctrl, dashboard.TableQuery{})
	if err != nil {
		return HandleError(c, h.logger, err)
	}
	return Success(c, resp)
}

// parseState reads {"uf": id}.
func parseState(c *fiber.Ctx) (int64, error) {
	var req stateRequest
	if err := c.BodyParser(&req); err != nil {
		return 0, domain.NewValidationError("body", "must be a JSON object with uf")
	}
	if req.UF <= 0 {
		return 0, domain.NewValidationError("uf", "must be a positive integer")
	}
	return req.UF, nil
}

func respond(ctrl *dashboard.Controller, q dashboard.TableQuery) (*SessionResponse, error) {
	view := ctrl.View()
	page, err := dashboard.Paginate(view.Rows, q)
	if err != nil {
		return nil, err
	}
	return &SessionResponse{ID: ctrl.ID(), View: view, Table: page}, nil
}
