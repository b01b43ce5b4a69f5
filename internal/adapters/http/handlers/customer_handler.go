package handlers

import (
	"loanbook/internal/adapters/http/middleware"
	"loanbook/internal/core/domain"
	"loanbook/internal/core/services"
	"loanbook/internal/pkg/pagination"
	"loanbook/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// CustomerHandler handles customer endpoints
type CustomerHandler struct {
	customerService *services.CustomerService
	mutationService *services.MutationService
}

// NewCustomerHandler creates a new customer handler
func NewCustomerHandler(customerService *services.CustomerService, mutationService *services.MutationService) *CustomerHandler {
	return &CustomerHandler{
		customerService: customerService,
		mutationService: mutationService,
	}
}

// UpdateKYCRequest represents a KYC status change
type UpdateKYCRequest struct {
	KYCStatus string `json:"kyc_status"`
}

// AssignAgentRequest names the agent to assign
type AssignAgentRequest struct {
	AgentID uint `json:"agent_id"`
}

// SetAssignmentRequest toggles an assignment
type SetAssignmentRequest struct {
	IsActive bool `json:"is_active"`
}

// Create handles creating a customer and its login
// @Summary Create customer
// @Tags Customers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateCustomerInput true "Customer data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /customers [post]
func (h *CustomerHandler) Create(c *fiber.Ctx) error {
	var req services.CreateCustomerInput
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	customer, err := h.customerService.Create(c.UserContext(), middleware.Actor(c), &req)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Created(c, "Customer created successfully", customer)
}

// List handles listing customers
// @Summary List customers
// @Description Agents only see customers assigned to them
// @Tags Customers
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Param kyc_status query string false "Filter by KYC status"
// @Success 200 {object} response.Response
// @Router /customers [get]
func (h *CustomerHandler) List(c *fiber.Ctx) error {
	params, err := pagination.GetParams(c)
	if err != nil {
		return response.FromError(c, err)
	}

	customers, total, err := h.customerService.List(c.UserContext(), middleware.Actor(c), c.Query("kyc_status"), params.Offset, params.Limit)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Customers retrieved successfully", pagination.NewResponse(customers, params, total))
}

// Get handles getting a customer
// @Summary Get customer
// @Tags Customers
// @Produce json
// @Security BearerAuth
// @Param id path int true "Customer ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /customers/{id} [get]
func (h *CustomerHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	customer, err := h.customerService.Get(c.UserContext(), middleware.Actor(c), id)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Customer retrieved successfully", customer)
}

// GetOwn handles a customer reading their own profile
// @Summary Get own customer profile
// @Tags Customers
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /customers/me [get]
func (h *CustomerHandler) GetOwn(c *fiber.Ctx) error {
	customer, err := h.customerService.GetOwn(c.UserContext(), middleware.Actor(c))
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Customer retrieved successfully", customer)
}

// UpdateKYC handles a KYC status change
// @Summary Update KYC status
// @Tags Customers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Customer ID"
// @Param body body UpdateKYCRequest true "KYC status"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /customers/{id}/kyc [put]
func (h *CustomerHandler) UpdateKYC(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	var req UpdateKYCRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	customer, err := h.customerService.UpdateKYC(c.UserContext(), middleware.Actor(c), id, domain.KYCStatus(req.KYCStatus))
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "KYC status updated successfully", customer)
}

// AssignAgent handles assigning an agent to a customer
// @Summary Assign agent
// @Tags Customers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Customer ID"
// @Param body body AssignAgentRequest true "Agent"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /customers/{id}/agents [post]
func (h *CustomerHandler) AssignAgent(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	var req AssignAgentRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	assignment, err := h.customerService.AssignAgent(c.UserContext(), middleware.Actor(c), id, req.AgentID)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Agent assigned successfully", assignment)
}

// SetAssignment handles activating or deactivating an assignment
// @Summary Toggle agent assignment
// @Tags Customers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Customer ID"
// @Param agentId path int true "Agent user ID"
// @Param body body SetAssignmentRequest true "State"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /customers/{id}/agents/{agentId} [patch]
func (h *CustomerHandler) SetAssignment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	agentID, err := paramID(c, "agentId")
	if err != nil {
		return response.FromError(c, err)
	}

	var req SetAssignmentRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	assignment, err := h.customerService.SetAssignmentActive(c.UserContext(), middleware.Actor(c), id, agentID, req.IsActive)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Assignment updated successfully", assignment)
}

// Delete handles deleting a customer
// @Summary Delete customer
// @Description Soft delete a customer and its login once no active or pending loans remain
// @Tags Customers
// @Produce json
// @Security BearerAuth
// @Param id path int true "Customer ID"
// @Success 200 {object} response.Response
// @Success 202 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /customers/{id} [delete]
func (h *CustomerHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	err = h.mutationService.DeleteCustomer(c.UserContext(), mutationRequest(c), id)
	return mutationResult(c, fiber.StatusOK, "Customer deleted successfully", nil, err)
}

// DeletionCheck reports whether a customer could be deleted right now
// @Summary Check customer deletion
// @Tags Customers
// @Produce json
// @Security BearerAuth
// @Param id path int true "Customer ID"
// @Success 200 {object} response.Response
// @Router /customers/{id}/deletion-check [get]
func (h *CustomerHandler) DeletionCheck(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	decision, err := h.mutationService.CustomerDeletionCheck(c.UserContext(), middleware.Actor(c), id)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Deletion check completed", decision)
}
