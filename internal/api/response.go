// Package api provides HTTP handlers and routing for the vitalstats REST API.
package api

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"vitalstats/internal/domain"
	"vitalstats/internal/invalidation"
)

// APIResponse is the standard response envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError represents an error response. Details lists problems per field
// for validation failures.
type APIError struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details map[string][]string `json:"details,omitempty"`
}

// Common error codes for consistent API responses.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeBadGateway         = "BAD_GATEWAY"
	ErrCodeTooManySessions    = "TOO_MANY_SESSIONS"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// Success sends a successful JSON response with the given data.
func Success(c *fiber.Ctx, data interface{}) error {
	return c.JSON(APIResponse{
		Success: true,
		Data:    data,
	})
}

// SuccessWithStatus sends a successful JSON response with a custom status code.
func SuccessWithStatus(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(APIResponse{
		Success: true,
		Data:    data,
	})
}

// Created sends a 201 Created response with the given data.
func Created(c *fiber.Ctx, data interface{}) error {
	return SuccessWithStatus(c, fiber.StatusCreated, data)
}

// Accepted sends a 202 Accepted response with the given data.
func Accepted(c *fiber.Ctx, data interface{}) error {
	return SuccessWithStatus(c, fiber.StatusAccepted, data)
}

// NoContent sends a 204 No Content response.
func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

// Error sends an error JSON response with the given status code.
func Error(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
	})
}

// BadRequest sends a 400 Bad Request error response.
func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, ErrCodeBadRequest, message)
}

// ValidationError sends a 400 with the per-field problems of err.
func ValidationError(c *fiber.Ctx, err *domain.ValidationError) error {
	return c.Status(fiber.StatusBadRequest).JSON(APIResponse{
		Success: false,
		Error: &APIError{
			Code:    ErrCodeValidationFailed,
			Message: err.Error(),
			Details: err.Problems,
		},
	})
}

// NotFound sends a 404 Not Found error response.
func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, ErrCodeNotFound, message)
}

// Conflict sends a 409 Conflict error response.
func Conflict(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusConflict, ErrCodeConflict, message)
}

// BadGateway sends a 502 for a failed backend request.
func BadGateway(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadGateway, ErrCodeBadGateway, message)
}

// InternalError sends a 500 Internal Server Error response.
func InternalError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, ErrCodeInternalError, message)
}

// HandleError maps a service error onto the envelope.
func HandleError(c *fiber.Ctx, logger *slog.Logger, err error) error {
	var (
		validationErr *domain.ValidationError
		fetchErr      *domain.RemoteFetchError
	)

	switch {
	case errors.As(err, &validationErr):
		return ValidationError(c, validationErr)
	case errors.Is(err, domain.ErrInvalidFilter):
		return Error(c, fiber.StatusBadRequest, ErrCodeValidationFailed, err.Error())
	case errors.Is(err, domain.ErrSessionNotFound):
		return NotFound(c, "dashboard session not found")
	case errors.Is(err, domain.ErrSessionLimit):
		return Error(c, fiber.StatusTooManyRequests, ErrCodeTooManySessions, err.Error())
	case errors.Is(err, domain.ErrStateNotInView):
		return Conflict(c, err.Error())
	case errors.As(err, &fetchErr):
		if fetchErr.NotFound() {
			return NotFound(c, fmt.Sprintf("backend has no data for %s", fetchErr.Endpoint))
		}
		logger.Warn("backend request failed", "endpoint", fetchErr.Endpoint, "status", fetchErr.Status)
		return BadGateway(c, fmt.Sprintf("backend request to %s failed", fetchErr.Endpoint))
	case errors.Is(err, invalidation.ErrPublishFailed):
		logger.Error("invalidation queue unavailable", "error", err)
		return Error(c, fiber.StatusServiceUnavailable, ErrCodeServiceUnavailable, "invalidation queue unavailable")
	default:
		logger.Error("unexpected error", "path", c.Path(), "error", err)
		return InternalError(c, "internal error")
	}
}
