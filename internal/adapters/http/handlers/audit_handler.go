package handlers

import (
	"strings"

	"loanbook/internal/adapters/http/middleware"
	"loanbook/internal/adapters/persistence/repositories"
	"loanbook/internal/core/services"
	"loanbook/internal/pkg/pagination"
	"loanbook/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AuditHandler serves the audit log
type AuditHandler struct {
	auditService *services.AuditService
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// List handles listing audit entries
// @Summary List audit log
// @Description Newest first, ADMIN only
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Param entity_type query string false "USER, CUSTOMER, LOAN, COLLECTION or BORROWING"
// @Param entity_id query int false "Entity ID"
// @Param actor_id query int false "Actor user ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /audit-logs [get]
func (h *AuditHandler) List(c *fiber.Ctx) error {
	params, err := pagination.GetParams(c)
	if err != nil {
		return response.FromError(c, err)
	}

	entityID, err := queryID(c, "entity_id")
	if err != nil {
		return response.FromError(c, err)
	}
	actorID, err := queryID(c, "actor_id")
	if err != nil {
		return response.FromError(c, err)
	}
	filter := repositories.AuditFilter{
		EntityType: strings.ToUpper(c.Query("entity_type")),
		EntityID:   entityID,
		ActorID:    actorID,
	}

	entries, total, err := h.auditService.List(c.UserContext(), middleware.Actor(c), filter, params.Offset, params.Limit)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Audit log retrieved successfully", pagination.NewResponse(entries, params, total))
}

// Pending reports how many audit entries wait in the outbox
// @Summary Pending audit entries
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /audit-logs/pending [get]
func (h *AuditHandler) Pending(c *fiber.Ctx) error {
	count, err := h.auditService.PendingCount(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Pending audit entries", fiber.Map{"pending": count})
}
