package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"loanbook/internal/adapters/persistence/models"
	"loanbook/internal/adapters/persistence/repositories"
	"loanbook/internal/core/domain"
	"loanbook/internal/pkg/password"

	"gorm.io/gorm"
)

// UserService handles user management business logic
type UserService struct {
	store repositories.Store
}

// NewUserService creates a new user service
func NewUserService(store repositories.Store) *UserService {
	return &UserService{store: store}
}

// ListUsersInput represents list users input
type ListUsersInput struct {
	Page   int
	Limit  int
	Role   string
	Search string
}

// ListUsersOutput represents list users output
type ListUsersOutput struct {
	Users      []*models.UserResponse `json:"users"`
	Total      int64                  `json:"total"`
	Page       int                    `json:"page"`
	Limit      int                    `json:"limit"`
	TotalPages int                    `json:"total_pages"`
}

// CreateUserInput represents create user input (staff accounts)
type CreateUserInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// UpdateUserInput represents update user input (for admin and managers).
// Role is accepted only when it is the user's current role.
type UpdateUserInput struct {
	Name     *string `json:"name"`
	Phone    *string `json:"phone"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

// UpdateProfileInput represents update profile input (for self)
type UpdateProfileInput struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

// ChangePasswordInput represents change password input
type ChangePasswordInput struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ListUsers lists users with pagination
func (s *UserService) ListUsers(ctx context.Context, actor *domain.Actor, input *ListUsersInput) (*ListUsersOutput, error) {
	if err := authorize(actor, domain.ActionReadUser, nil); err != nil {
		return nil, err
	}

	// Set defaults
	if input.Page < 1 {
		input.Page = 1
	}
	if input.Limit < 1 {
		input.Limit = 10
	}
	if input.Limit > 100 {
		input.Limit = 100
	}

	offset := (input.Page - 1) * input.Limit

	filter := repositories.UserFilter{Role: strings.ToUpper(input.Role), Search: input.Search}
	users, total, err := s.store.Users().List(ctx, filter, offset, input.Limit)
	if err != nil {
		return nil, storageError(err, "user")
	}

	userResponses := make([]*models.UserResponse, len(users))
	for i, user := range users {
		userResponses[i] = user.ToResponse()
	}

	totalPages := int(total) / input.Limit
	if int(total)%input.Limit > 0 {
		totalPages++
	}

	return &ListUsersOutput{
		Users:      userResponses,
		Total:      total,
		Page:       input.Page,
		Limit:      input.Limit,
		TotalPages: totalPages,
	}, nil
}

// GetUserByID gets a user by ID
func (s *UserService) GetUserByID(ctx context.Context, actor *domain.Actor, id uint) (*models.UserResponse, error) {
	if err := authorize(actor, domain.ActionReadUser, &domain.Target{OwnerUserID: id}); err != nil {
		return nil, err
	}

	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "user")
	}

	return user.ToResponse(), nil
}

// CreateUser creates a staff or customer login. A MANAGER cannot create ADMINs.
func (s *UserService) CreateUser(ctx context.Context, actor *domain.Actor, input *CreateUserInput) (*models.UserResponse, error) {
	if err := authorize(actor, domain.ActionCreateUser, nil); err != nil {
		return nil, err
	}

	role, err := domain.ParseRole(input.Role)
	if err != nil {
		return nil, domain.NewValidationError("role", err.Error())
	}
	if role == domain.RoleAdmin && actor.Role != domain.RoleAdmin {
		return nil, domain.NewAuthorizationError(domain.ReasonAdminOnly)
	}
	if role == domain.RoleCustomer {
		return nil, domain.NewValidationError("role", "customers are created with their profile")
	}

	user, err := newUser(input.Name, input.Email, input.Phone, input.Password, role)
	if err != nil {
		return nil, err
	}
	createdBy := actor.ID
	user.CreatedByID = &createdBy

	if err := s.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.NewConflictError("email already exists", err)
		}
		return nil, storageError(err, "user")
	}

	log.Printf("✅ User created: %s (%s) by #%d", user.Email, user.Role, actor.ID)
	return user.ToResponse(), nil
}

// newUser validates the fields shared by every account and hashes the password
func newUser(name, email, phone, plain string, role domain.Role) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if name == "" {
		return nil, domain.NewValidationError("name", "name is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.NewValidationError("email", "a valid email is required")
	}
	if !password.ValidatePassword(plain) {
		return nil, domain.NewValidationError("password", "password must be 8 to 72 characters long")
	}

	hashedPassword, err := password.Hash(plain)
	if err != nil {
		return nil, err
	}

	return &models.User{
		Name:     name,
		Email:    email,
		Phone:    strings.TrimSpace(phone),
		Password: hashedPassword,
		Role:     string(role),
		IsActive: true,
	}, nil
}

// UpdateUser updates another user's account
func (s *UserService) UpdateUser(ctx context.Context, actor *domain.Actor, id uint, input *UpdateUserInput) (*models.UserResponse, error) {
	if err := authorize(actor, domain.ActionUpdateUser, &domain.Target{OwnerUserID: id}); err != nil {
		return nil, err
	}

	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "user")
	}

	// Prevent changing own role or deactivating self
	if id == actor.ID && (input.Role != nil || input.IsActive != nil) {
		return nil, domain.NewValidationError("role", "cannot change your own role or status")
	}
	if actor.Role != domain.RoleAdmin && domain.Role(user.Role) == domain.RoleAdmin {
		return nil, domain.NewAuthorizationError(domain.ReasonAdminOnly)
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, domain.NewValidationError("name", "name is required")
		}
		user.Name = name
	}
	if input.Phone != nil {
		user.Phone = strings.TrimSpace(*input.Phone)
	}
	if input.Role != nil {
		// role moves touch grants and customer profiles, so they are audited
		// through PUT /users/{id}/role
		role, err := domain.ParseRole(*input.Role)
		if err != nil {
			return nil, domain.NewValidationError("role", err.Error())
		}
		if role != domain.Role(user.Role) {
			return nil, domain.NewValidationError("role", "change roles with PUT /users/{id}/role")
		}
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}

	if err := s.store.Users().Update(ctx, user); err != nil {
		return nil, storageError(err, "user")
	}

	return user.ToResponse(), nil
}

// GetProfile gets own profile
func (s *UserService) GetProfile(ctx context.Context, actor *domain.Actor) (*models.UserResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return s.GetUserByID(ctx, actor, actor.ID)
}

// UpdateProfile updates own profile
func (s *UserService) UpdateProfile(ctx context.Context, actor *domain.Actor, input *UpdateProfileInput) (*models.UserResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	user, err := s.store.Users().GetByID(ctx, actor.ID)
	if err != nil {
		return nil, storageError(err, "user")
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, domain.NewValidationError("name", "name is required")
		}
		user.Name = name
	}
	if input.Phone != nil {
		user.Phone = strings.TrimSpace(*input.Phone)
	}

	if err := s.store.Users().Update(ctx, user); err != nil {
		return nil, storageError(err, "user")
	}

	return user.ToResponse(), nil
}

// ChangePassword changes user's password and ends every other session
func (s *UserService) ChangePassword(ctx context.Context, actor *domain.Actor, input *ChangePasswordInput) error {
	if err := requireActor(actor); err != nil {
		return err
	}

	user, err := s.store.Users().GetByID(ctx, actor.ID)
	if err != nil {
		return storageError(err, "user")
	}

	// Verify old password
	if !password.Verify(input.OldPassword, user.Password) {
		return domain.NewValidationError("old_password", "old password is incorrect")
	}

	// Validate new password
	if !password.ValidatePassword(input.NewPassword) {
		return domain.NewValidationError("new_password", "new password must be 8 to 72 characters long")
	}

	// Hash new password
	hashedPassword, err := password.Hash(input.NewPassword)
	if err != nil {
		return err
	}

	user.Password = hashedPassword
	return storageError(s.store.Transaction(ctx, func(tx repositories.Store) error {
		if err := tx.Users().Update(ctx, user); err != nil {
			return err
		}
		return tx.RefreshTokens().RevokeAllByUserID(ctx, user.ID, time.Now())
	}), "user")
}
