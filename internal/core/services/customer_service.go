package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"loanbook/internal/adapters/persistence/models"
	"loanbook/internal/adapters/persistence/repositories"
	"loanbook/internal/core/domain"

	"gorm.io/gorm"
)

// CustomerService manages customer profiles and agent assignments
type CustomerService struct {
	store repositories.Store
}

// NewCustomerService creates a new customer service
func NewCustomerService(store repositories.Store) *CustomerService {
	return &CustomerService{store: store}
}

// CreateCustomerInput creates the login and the profile together
type CreateCustomerInput struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Password   string `json:"password"`
	Address    string `json:"address"`
	NationalID string `json:"national_id"`
}

// CustomerResponse is a customer with its active agents
type CustomerResponse struct {
	*models.Customer
	AgentIDs []uint `json:"agent_ids"`
}

// Create creates a CUSTOMER user and its profile in one transaction
func (s *CustomerService) Create(ctx context.Context, actor *domain.Actor, input *CreateCustomerInput) (*CustomerResponse, error) {
	if err := authorize(actor, domain.ActionCreateCustomer, nil); err != nil {
		return nil, err
	}

	user, err := newUser(input.Name, input.Email, input.Phone, input.Password, domain.RoleCustomer)
	if err != nil {
		return nil, err
	}
	createdBy := actor.ID
	user.CreatedByID = &createdBy

	customer := &models.Customer{
		KYCStatus:  string(domain.KYCPending),
		Address:    strings.TrimSpace(input.Address),
		NationalID: strings.TrimSpace(input.NationalID),
	}

	err = s.store.Transaction(ctx, func(tx repositories.Store) error {
		if err := tx.Users().Create(ctx, user); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.NewConflictError("email already exists", err)
			}
			return err
		}
		customer.UserID = user.ID
		return tx.Customers().Create(ctx, customer)
	})
	if err != nil {
		return nil, storageError(err, "customer")
	}

	customer.User = user
	log.Printf("✅ Customer created: #%d %s by #%d", customer.ID, user.Email, actor.ID)
	return &CustomerResponse{Customer: customer, AgentIDs: []uint{}}, nil
}

// Get gets a customer
func (s *CustomerService) Get(ctx context.Context, actor *domain.Actor, id uint) (*CustomerResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	target, err := customerTarget(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, domain.ActionReadCustomer, target); err != nil {
		return nil, err
	}

	customer, err := s.store.Customers().GetByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "customer")
	}
	return &CustomerResponse{Customer: customer, AgentIDs: nonNil(target.AssignedAgentIDs)}, nil
}

// GetOwn returns the profile of a CUSTOMER actor
func (s *CustomerService) GetOwn(ctx context.Context, actor *domain.Actor) (*CustomerResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	customer, err := s.store.Customers().GetByUserID(ctx, actor.ID)
	if err != nil {
		return nil, storageError(err, "customer")
	}
	return s.Get(ctx, actor, customer.ID)
}

// List lists customers. Agents only see customers assigned to them.
func (s *CustomerService) List(ctx context.Context, actor *domain.Actor, kycStatus string, offset, limit int) ([]*models.Customer, int64, error) {
	if err := authorize(actor, domain.ActionReadCustomer, nil); err != nil {
		return nil, 0, err
	}

	filter := repositories.CustomerFilter{KYCStatus: strings.ToUpper(kycStatus)}
	if actor.Role == domain.RoleAgent {
		agentID := actor.ID
		filter.AgentID = &agentID
	}

	offset, limit = pageBounds(offset, limit)
	customers, total, err := s.store.Customers().List(ctx, filter, offset, limit)
	if err != nil {
		return nil, 0, storageError(err, "customer")
	}
	return customers, total, nil
}

// UpdateKYC sets the KYC status of a customer
func (s *CustomerService) UpdateKYC(ctx context.Context, actor *domain.Actor, id uint, status domain.KYCStatus) (*models.Customer, error) {
	if !status.Valid() {
		return nil, domain.NewValidationError("kyc_status", "kyc_status must be PENDING, VERIFIED or REJECTED")
	}
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	target, err := customerTarget(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, domain.ActionUpdateCustomer, target); err != nil {
		return nil, err
	}

	customer, err := s.store.Customers().GetByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "customer")
	}
	customer.KYCStatus = string(status)
	if err := s.store.Customers().Update(ctx, customer); err != nil {
		return nil, storageError(err, "customer")
	}

	log.Printf("🪪 KYC of customer #%d set to %s by #%d", id, status, actor.ID)
	return customer, nil
}

// AssignAgent assigns an active AGENT to a customer, or reactivates an
// existing assignment
func (s *CustomerService) AssignAgent(ctx context.Context, actor *domain.Actor, customerID, agentID uint) (*models.CustomerAgent, error) {
	return s.setAssignment(ctx, actor, customerID, agentID, true)
}

// SetAssignmentActive activates or deactivates an existing assignment
func (s *CustomerService) SetAssignmentActive(ctx context.Context, actor *domain.Actor, customerID, agentID uint, active bool) (*models.CustomerAgent, error) {
	return s.setAssignment(ctx, actor, customerID, agentID, active)
}

func (s *CustomerService) setAssignment(ctx context.Context, actor *domain.Actor, customerID, agentID uint, active bool) (*models.CustomerAgent, error) {
	if err := authorize(actor, domain.ActionAssignAgent, nil); err != nil {
		return nil, err
	}

	var out *models.CustomerAgent
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		if _, err := tx.Customers().GetByID(ctx, customerID); err != nil {
			return storageError(err, "customer")
		}

		assignment, err := tx.Customers().GetAssignment(ctx, customerID, agentID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if !active {
				return domain.NewNotFoundError("assignment")
			}
			agent, err := tx.Users().GetByID(ctx, agentID)
			if err != nil {
				return storageError(err, "agent")
			}
			if domain.Role(agent.Role) != domain.RoleAgent || !agent.IsActive {
				return domain.NewValidationError("agent_id", "user is not an active agent")
			}
			assignment = &models.CustomerAgent{CustomerID: customerID, AgentID: agentID}
		case err != nil:
			return err
		}

		assignment.IsActive = active
		assignment.AssignedBy = actor.ID
		if err := tx.Customers().SaveAssignment(ctx, assignment); err != nil {
			return err
		}
		out = assignment
		return nil
	})
	if err != nil {
		return nil, storageError(err, "assignment")
	}

	log.Printf("👥 Agent #%d assignment on customer #%d active=%t by #%d", agentID, customerID, active, actor.ID)
	return out, nil
}

func nonNil(ids []uint) []uint {
	if ids == nil {
		return []uint{}
	}
	return ids
}
