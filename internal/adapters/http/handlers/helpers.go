package handlers

import (
	"errors"
	"strconv"

	"loanbook/internal/adapters/http/middleware"
	"loanbook/internal/core/domain"
	"loanbook/internal/core/services"
	"loanbook/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// paramID parses a positive numeric path parameter
func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		return 0, domain.NewValidationError(name, "invalid "+name)
	}
	return uint(id), nil
}

// queryID parses an optional numeric query parameter
func queryID(c *fiber.Ctx, name string) (*uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, domain.NewValidationError(name, "invalid "+name)
	}
	v := uint(id)
	return &v, nil
}

func clientMeta(c *fiber.Ctx) domain.ClientMeta {
	return domain.ClientMeta{
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
}

// mutationRequest builds the request for an audited mutation. The remark comes
// from the X-Audit-Remark header.
func mutationRequest(c *fiber.Ctx) *services.MutationRequest {
	return &services.MutationRequest{
		Actor:  middleware.Actor(c),
		Meta:   clientMeta(c),
		Remark: c.Get("X-Audit-Remark"),
	}
}

// mutationResult renders the outcome of an audited mutation. A committed
// mutation whose audit entry is still pending answers 202 with the data.
func mutationResult(c *fiber.Ctx, status int, message string, data interface{}, err error) error {
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) && de.Kind == domain.KindAuditPersistence {
			return response.Degraded(c, de, data)
		}
		return response.FromError(c, err)
	}
	if status == fiber.StatusCreated {
		return response.Created(c, message, data)
	}
	return response.Success(c, message, data)
}

func badBody(c *fiber.Ctx) error {
	return response.BadRequest(c, "Invalid request body")
}
