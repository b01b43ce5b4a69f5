package handlers

import (
	"strconv"

	"loanbook/internal/adapters/http/middleware"
	"loanbook/internal/core/domain"
	"loanbook/internal/core/services"
	"loanbook/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// UserHandler handles user management endpoints
type UserHandler struct {
	userService     *services.UserService
	mutationService *services.MutationService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService, mutationService *services.MutationService) *UserHandler {
	return &UserHandler{
		userService:     userService,
		mutationService: mutationService,
	}
}

// ListUsers handles listing users
// @Summary List users
// @Description Get a paginated list of users (ADMIN, MANAGER)
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(10)
// @Param role query string false "Filter by role"
// @Param search query string false "Search name or email"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /users [get]
func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "10"))

	result, err := h.userService.ListUsers(c.UserContext(), middleware.Actor(c), &services.ListUsersInput{
		Page:   page,
		Limit:  limit,
		Role:   c.Query("role"),
		Search: c.Query("search"),
	})
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Users retrieved successfully", result)
}

// GetUser handles getting a user by ID
// @Summary Get user by ID
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	user, err := h.userService.GetUserByID(c.UserContext(), middleware.Actor(c), id)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "User retrieved successfully", fiber.Map{
		"user": user,
	})
}

// CreateUser handles creating a staff account
// @Summary Create staff user
// @Description Create an ADMIN, MANAGER or AGENT account. Managers cannot create admins.
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateUserInput true "User data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /users [post]
func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	var req services.CreateUserInput
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	user, err := h.userService.CreateUser(c.UserContext(), middleware.Actor(c), &req)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Created(c, "User created successfully", fiber.Map{
		"user": user,
	})
}

// UpdateUser handles updating a user
// @Summary Update user
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param body body services.UpdateUserInput true "Update data"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /users/{id} [put]
func (h *UserHandler) UpdateUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	var req services.UpdateUserInput
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	user, err := h.userService.UpdateUser(c.UserContext(), middleware.Actor(c), id, &req)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "User updated successfully", fiber.Map{
		"user": user,
	})
}

// UpdateGrants handles replacing a manager's delete grants
// @Summary Update manager grants
// @Description Replace the delete grants of a MANAGER (ADMIN only, audited)
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param body body domain.ManagerGrants true "Grants"
// @Success 200 {object} response.Response
// @Success 202 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /users/{id}/grants [put]
func (h *UserHandler) UpdateGrants(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	var grants domain.ManagerGrants
	if err := c.BodyParser(&grants); err != nil {
		return badBody(c)
	}

	user, err := h.mutationService.UpdateGrants(c.UserContext(), mutationRequest(c), id, grants)
	var data interface{}
	if user != nil {
		data = fiber.Map{"user": user.ToResponse()}
	}
	return mutationResult(c, fiber.StatusOK, "Grants updated successfully", data, err)
}

// ChangeRoleRequest represents change role request body
type ChangeRoleRequest struct {
	Role string `json:"role"`
}

// ChangeRole handles moving a staff account to another role
// @Summary Change user role
// @Description Move a staff account between ADMIN, MANAGER and AGENT (audited; leaving MANAGER clears grants)
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param body body ChangeRoleRequest true "New role"
// @Success 200 {object} response.Response
// @Success 202 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /users/{id}/role [put]
func (h *UserHandler) ChangeRole(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	var req ChangeRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return response.FromError(c, domain.NewValidationError("role", err.Error()))
	}

	user, err := h.mutationService.ChangeRole(c.UserContext(), mutationRequest(c), id, role)
	var data interface{}
	if user != nil {
		data = fiber.Map{"user": user.ToResponse()}
	}
	return mutationResult(c, fiber.StatusOK, "Role changed successfully", data, err)
}

// DeleteUser handles deleting a user
// @Summary Delete user
// @Description Soft delete a user once no loans, collections or active customer loans depend on it
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} response.Response
// @Success 202 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /users/{id} [delete]
func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	err = h.mutationService.DeleteUser(c.UserContext(), mutationRequest(c), id)
	return mutationResult(c, fiber.StatusOK, "User deleted successfully", nil, err)
}

// DeletionCheck reports whether a user could be deleted right now
// @Summary Check user deletion
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} response.Response
// @Router /users/{id}/deletion-check [get]
func (h *UserHandler) DeletionCheck(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	decision, err := h.mutationService.UserDeletionCheck(c.UserContext(), middleware.Actor(c), id)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Deletion check completed", decision)
}

// GetProfile handles getting own profile
// @Summary Get own profile
// @Tags Profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /profile [get]
func (h *UserHandler) GetProfile(c *fiber.Ctx) error {
	user, err := h.userService.GetProfile(c.UserContext(), middleware.Actor(c))
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Profile retrieved successfully", fiber.Map{
		"user": user,
	})
}

// UpdateProfile handles updating own profile
// @Summary Update own profile
// @Tags Profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.UpdateProfileInput true "Profile data"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /profile [put]
func (h *UserHandler) UpdateProfile(c *fiber.Ctx) error {
	var req services.UpdateProfileInput
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	user, err := h.userService.UpdateProfile(c.UserContext(), middleware.Actor(c), &req)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Profile updated successfully", fiber.Map{
		"user": user,
	})
}

// ChangePassword handles changing own password
// @Summary Change password
// @Description Change own password and end every session
// @Tags Profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.ChangePasswordInput true "Passwords"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /profile/password [put]
func (h *UserHandler) ChangePassword(c *fiber.Ctx) error {
	var req services.ChangePasswordInput
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	if err := h.userService.ChangePassword(c.UserContext(), middleware.Actor(c), &req); err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Password changed successfully", nil)
}
