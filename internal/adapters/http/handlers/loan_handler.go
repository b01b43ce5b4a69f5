package handlers

import (
	"loanbook/internal/adapters/http/middleware"
	"loanbook/internal/adapters/persistence/repositories"
	"loanbook/internal/core/services"
	"loanbook/internal/pkg/pagination"
	"loanbook/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// LoanHandler handles loan and collection endpoints
type LoanHandler struct {
	loanService     *services.LoanService
	mutationService *services.MutationService
}

// NewLoanHandler creates a new loan handler
func NewLoanHandler(loanService *services.LoanService, mutationService *services.MutationService) *LoanHandler {
	return &LoanHandler{
		loanService:     loanService,
		mutationService: mutationService,
	}
}

// Create handles originating a loan
// @Summary Originate loan
// @Description Create a PENDING loan whose outstanding principal equals its principal
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateLoanInput true "Loan data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /loans [post]
func (h *LoanHandler) Create(c *fiber.Ctx) error {
	var req services.CreateLoanInput
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	loan, err := h.loanService.Create(c.UserContext(), middleware.Actor(c), &req)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Created(c, "Loan created successfully", loan)
}

// Activate handles moving a PENDING loan to ACTIVE
// @Summary Activate loan
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /loans/{id}/activate [post]
func (h *LoanHandler) Activate(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	loan, err := h.loanService.Activate(c.UserContext(), middleware.Actor(c), id)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Loan activated successfully", loan)
}

// Get handles getting a loan
// @Summary Get loan
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/{id} [get]
func (h *LoanHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	loan, err := h.loanService.Get(c.UserContext(), middleware.Actor(c), id)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Loan retrieved successfully", loan)
}

// List handles listing loans
// @Summary List loans
// @Description Customers see their own loans; agents must name an assigned customer
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Param status query string false "Filter by status"
// @Param customer_id query int false "Filter by customer"
// @Success 200 {object} response.Response
// @Router /loans [get]
func (h *LoanHandler) List(c *fiber.Ctx) error {
	params, err := pagination.GetParams(c)
	if err != nil {
		return response.FromError(c, err)
	}

	customerID, err := queryID(c, "customer_id")
	if err != nil {
		return response.FromError(c, err)
	}
	filter := repositories.LoanFilter{CustomerID: customerID, Status: c.Query("status")}

	loans, total, err := h.loanService.List(c.UserContext(), middleware.Actor(c), filter, params.Offset, params.Limit)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Loans retrieved successfully", pagination.NewResponse(loans, params, total))
}

// ListCollections handles listing the collections of a loan
// @Summary List loan collections
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} response.Response
// @Router /loans/{id}/collections [get]
func (h *LoanHandler) ListCollections(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	collections, err := h.loanService.ListCollections(c.UserContext(), middleware.Actor(c), id)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Collections retrieved successfully", collections)
}

// PostCollection handles recording a repayment
// @Summary Post collection
// @Description Apply a repayment interest-first. Overpayments are rejected.
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Param body body services.PostCollectionInput true "Collection data"
// @Success 201 {object} response.Response
// @Success 202 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /loans/{id}/collections [post]
func (h *LoanHandler) PostCollection(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	var req services.PostCollectionInput
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	req.LoanID = id

	result, err := h.mutationService.PostCollection(c.UserContext(), mutationRequest(c), &req)
	var data interface{}
	if result != nil {
		data = result
	}
	return mutationResult(c, fiber.StatusCreated, "Collection posted successfully", data, err)
}

// GetCollection handles getting a collection
// @Summary Get collection
// @Tags Collections
// @Produce json
// @Security BearerAuth
// @Param id path int true "Collection ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /collections/{id} [get]
func (h *LoanHandler) GetCollection(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	collection, err := h.loanService.GetCollection(c.UserContext(), middleware.Actor(c), id)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Collection retrieved successfully", collection)
}

// ListAllCollections handles listing every collection
// @Summary List collections
// @Tags Collections
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /collections [get]
func (h *LoanHandler) ListAllCollections(c *fiber.Ctx) error {
	params, err := pagination.GetParams(c)
	if err != nil {
		return response.FromError(c, err)
	}

	collections, total, err := h.loanService.ListAllCollections(c.UserContext(), middleware.Actor(c), params.Offset, params.Limit)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Collections retrieved successfully", pagination.NewResponse(collections, params, total))
}
