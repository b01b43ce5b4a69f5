package handlers

import (
	"loanbook/internal/adapters/http/middleware"
	"loanbook/internal/core/services"
	"loanbook/internal/pkg/pagination"
	"loanbook/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// BorrowingHandler handles the lender's own borrowings
type BorrowingHandler struct {
	borrowingService *services.BorrowingService
	mutationService  *services.MutationService
}

// NewBorrowingHandler creates a new borrowing handler
func NewBorrowingHandler(borrowingService *services.BorrowingService, mutationService *services.MutationService) *BorrowingHandler {
	return &BorrowingHandler{
		borrowingService: borrowingService,
		mutationService:  mutationService,
	}
}

// RepayRequest represents a borrowing repayment
type RepayRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Create handles recording a borrowing
// @Summary Create borrowing
// @Tags Borrowings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateBorrowingInput true "Borrowing data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /borrowings [post]
func (h *BorrowingHandler) Create(c *fiber.Ctx) error {
	var req services.CreateBorrowingInput
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	borrowing, err := h.borrowingService.Create(c.UserContext(), middleware.Actor(c), &req)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Created(c, "Borrowing created successfully", borrowing)
}

// Get handles getting a borrowing
// @Summary Get borrowing
// @Tags Borrowings
// @Produce json
// @Security BearerAuth
// @Param id path int true "Borrowing ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /borrowings/{id} [get]
func (h *BorrowingHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	borrowing, err := h.borrowingService.Get(c.UserContext(), middleware.Actor(c), id)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Borrowing retrieved successfully", borrowing)
}

// List handles listing borrowings
// @Summary List borrowings
// @Tags Borrowings
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Response
// @Router /borrowings [get]
func (h *BorrowingHandler) List(c *fiber.Ctx) error {
	params, err := pagination.GetParams(c)
	if err != nil {
		return response.FromError(c, err)
	}

	borrowings, total, err := h.borrowingService.List(c.UserContext(), middleware.Actor(c), c.Query("status"), params.Offset, params.Limit)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Borrowings retrieved successfully", pagination.NewResponse(borrowings, params, total))
}

// Repay handles paying down a borrowing
// @Summary Repay borrowing
// @Tags Borrowings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Borrowing ID"
// @Param body body RepayRequest true "Amount"
// @Success 200 {object} response.Response
// @Success 202 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /borrowings/{id}/repayments [post]
func (h *BorrowingHandler) Repay(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	var req RepayRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	result, err := h.mutationService.RepayBorrowing(c.UserContext(), mutationRequest(c), id, req.Amount)
	var data interface{}
	if result != nil {
		data = result
	}
	return mutationResult(c, fiber.StatusOK, "Borrowing repaid successfully", data, err)
}
