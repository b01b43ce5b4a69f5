package response

import (
	"errors"

	"loanbook/internal/core/domain"

	"github.com/gofiber/fiber/v2"
)

// Response represents a standard API response
type Response struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    interface{}  `json:"data,omitempty"`
	Error   string       `json:"error,omitempty"`
	Kind    string       `json:"kind,omitempty"`
	Details *ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail carries the machine-readable parts of a domain error
type ErrorDetail struct {
	Field         string `json:"field,omitempty"`
	Reason        string `json:"reason,omitempty"`
	BlockingCount int64  `json:"blocking_count,omitempty"`
	Excess        string `json:"excess,omitempty"`
}

// Success sends a success response
func Success(c *fiber.Ctx, message string, data interface{}) error {
	return c.JSON(Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Created sends a 201 created response
func Created(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Degraded sends a 202 response: the mutation committed but its audit entry
// is still pending, so the caller should alert an operator.
func Degraded(c *fiber.Ctx, err *domain.Error, data interface{}) error {
	return c.Status(fiber.StatusAccepted).JSON(Response{
		Success: true,
		Message: err.Message,
		Data:    data,
		Kind:    string(err.Kind),
	})
}

// Error sends an error response
func Error(c *fiber.Ctx, statusCode int, message string) error {
	return c.Status(statusCode).JSON(Response{
		Success: false,
		Error:   message,
	})
}

// BadRequest sends a 400 bad request response
func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, message)
}

// Unauthorized sends a 401 unauthorized response
func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, message)
}

// Forbidden sends a 403 forbidden response
func Forbidden(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusForbidden, message)
}

// NotFound sends a 404 not found response
func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, message)
}

// Conflict sends a 409 conflict response
func Conflict(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusConflict, message)
}

// InternalServerError sends a 500 internal server error response
func InternalServerError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, message)
}

// StatusFor maps an error kind to its HTTP status
func StatusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return fiber.StatusBadRequest
	case domain.KindAuthentication:
		return fiber.StatusUnauthorized
	case domain.KindAuthorization:
		return fiber.StatusForbidden
	case domain.KindNotFound:
		return fiber.StatusNotFound
	case domain.KindReferentialIntegrity, domain.KindConflict:
		return fiber.StatusConflict
	case domain.KindOverpayment:
		return fiber.StatusUnprocessableEntity
	case domain.KindAuditPersistence:
		return fiber.StatusAccepted
	case domain.KindStorageUnavailable:
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// FromError renders any error returned by a service. Domain errors keep their
// kind and details; anything else is a 500.
func FromError(c *fiber.Ctx, err error) error {
	var de *domain.Error
	if !errors.As(err, &de) {
		return InternalServerError(c, "internal server error")
	}

	body := Response{
		Success: false,
		Error:   de.Message,
		Kind:    string(de.Kind),
	}
	if de.Field != "" || de.Reason != "" || de.BlockingCount > 0 || !de.Excess.IsZero() {
		body.Details = &ErrorDetail{
			Field:         de.Field,
			Reason:        de.Reason,
			BlockingCount: de.BlockingCount,
		}
		if !de.Excess.IsZero() {
			body.Details.Excess = de.Excess.StringFixed(2)
		}
	}
	return c.Status(StatusFor(de.Kind)).JSON(body)
}
