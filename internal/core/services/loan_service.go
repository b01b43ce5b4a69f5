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

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LoanService originates loans and serves loan and collection reads.
// Postings go through MutationService.
type LoanService struct {
	store repositories.Store
}

// NewLoanService creates a new loan service
func NewLoanService(store repositories.Store) *LoanService {
	return &LoanService{store: store}
}

// CreateLoanInput for originating a loan
type CreateLoanInput struct {
	CustomerID   uint             `json:"customer_id"`
	Principal    decimal.Decimal  `json:"principal"`
	InterestRate decimal.Decimal  `json:"interest_rate"`
	Frequency    domain.Frequency `json:"frequency"`
	StartDate    time.Time        `json:"start_date"`
	Purpose      string           `json:"purpose"`
}

// Validate checks the input without touching storage
func (in *CreateLoanInput) Validate() error {
	if in.CustomerID == 0 {
		return domain.NewValidationError("customer_id", "customer_id is required")
	}
	if err := validateMoney("principal", in.Principal); err != nil {
		return err
	}
	if in.InterestRate.Sign() < 0 || in.InterestRate.GreaterThan(hundred) {
		return domain.NewValidationError("interest_rate", "interest_rate must be between 0 and 100")
	}
	in.Frequency = domain.Frequency(strings.ToUpper(string(in.Frequency)))
	if !in.Frequency.Valid() {
		return domain.NewValidationError("frequency", "frequency must be DAILY, WEEKLY, BIWEEKLY or MONTHLY")
	}
	if in.StartDate.IsZero() {
		return domain.NewValidationError("start_date", "start_date is required")
	}
	return nil
}

// Create originates a PENDING loan with outstanding equal to principal. The
// customer's and the creator's user rows are share-locked so a concurrent
// deletion of either waits for this loan and then sees it.
func (s *LoanService) Create(ctx context.Context, actor *domain.Actor, input *CreateLoanInput) (*models.Loan, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	loan := &models.Loan{
		CustomerID:           input.CustomerID,
		CreatedByID:          actor.ID,
		Principal:            input.Principal,
		InterestRate:         input.InterestRate,
		Frequency:            string(input.Frequency),
		OutstandingPrincipal: input.Principal,
		Status:               string(domain.LoanPending),
		StartDate:            input.StartDate,
		Purpose:              strings.TrimSpace(input.Purpose),
	}

	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		target, err := customerTarget(ctx, tx, input.CustomerID)
		if err != nil {
			return err
		}
		if err := authorize(actor, domain.ActionCreateLoan, target); err != nil {
			return err
		}

		if _, err := tx.Users().GetByIDForShare(ctx, target.OwnerUserID); err != nil {
			return storageError(err, "customer")
		}
		if _, err := tx.Users().GetByIDForShare(ctx, actor.ID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewAuthenticationError("user no longer exists")
			}
			return err
		}

		return tx.Loans().Create(ctx, loan)
	})
	if err != nil {
		return nil, storageError(err, "loan")
	}

	log.Printf("📄 Loan #%d originated for customer #%d: %s by #%d",
		loan.ID, loan.CustomerID, loan.Principal.StringFixed(2), actor.ID)
	return loan, nil
}

// Activate moves a PENDING loan to ACTIVE
func (s *LoanService) Activate(ctx context.Context, actor *domain.Actor, id uint) (*models.Loan, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var loan *models.Loan
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		l, err := tx.Loans().GetByIDForUpdate(ctx, id)
		if err != nil {
			return storageError(err, "loan")
		}
		target, err := customerTarget(ctx, tx, l.CustomerID)
		if err != nil {
			return err
		}
		if err := authorize(actor, domain.ActionUpdateLoan, target); err != nil {
			return err
		}
		if l.Status != string(domain.LoanPending) {
			return domain.NewValidationError("status", "only PENDING loans can be activated")
		}
		l.Status = string(domain.LoanActive)
		if err := tx.Loans().Update(ctx, l); err != nil {
			return storageError(err, "loan")
		}
		loan = l
		return nil
	})
	if err != nil {
		return nil, storageError(err, "loan")
	}

	log.Printf("✅ Loan #%d activated by #%d", id, actor.ID)
	return loan, nil
}

// Get gets a loan
func (s *LoanService) Get(ctx context.Context, actor *domain.Actor, id uint) (*models.Loan, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	loan, err := s.store.Loans().GetByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "loan")
	}
	if err := s.authorizeLoan(ctx, actor, domain.ActionReadLoan, loan); err != nil {
		return nil, err
	}
	return loan, nil
}

// List lists loans. Customers only see their own, agents only those of
// assigned customers.
func (s *LoanService) List(ctx context.Context, actor *domain.Actor, filter repositories.LoanFilter, offset, limit int) ([]*models.Loan, int64, error) {
	if err := requireActor(actor); err != nil {
		return nil, 0, err
	}
	filter.Status = strings.ToUpper(filter.Status)

	var target *domain.Target
	switch {
	case actor.Role == domain.RoleCustomer:
		customer, err := s.store.Customers().GetByUserID(ctx, actor.ID)
		if err != nil {
			return nil, 0, storageError(err, "customer")
		}
		id := customer.ID
		filter.CustomerID = &id
		target = &domain.Target{OwnerUserID: actor.ID, CustomerID: id}
	case filter.CustomerID != nil:
		t, err := customerTarget(ctx, s.store, *filter.CustomerID)
		if err != nil {
			return nil, 0, err
		}
		target = t
	case actor.Role == domain.RoleAgent:
		// an agent must name one of their customers
		return nil, 0, domain.NewValidationError("customer_id", "customer_id is required")
	}
	if err := authorize(actor, domain.ActionReadLoan, target); err != nil {
		return nil, 0, err
	}

	offset, limit = pageBounds(offset, limit)
	loans, total, err := s.store.Loans().List(ctx, filter, offset, limit)
	if err != nil {
		return nil, 0, storageError(err, "loan")
	}
	return loans, total, nil
}

// ListCollections lists every collection of a loan, oldest first
func (s *LoanService) ListCollections(ctx context.Context, actor *domain.Actor, loanID uint) ([]*models.Collection, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	loan, err := s.store.Loans().GetByID(ctx, loanID)
	if err != nil {
		return nil, storageError(err, "loan")
	}
	if err := s.authorizeLoan(ctx, actor, domain.ActionReadCollection, loan); err != nil {
		return nil, err
	}

	collections, err := s.store.Collections().ListByLoan(ctx, loanID)
	if err != nil {
		return nil, storageError(err, "collection")
	}
	return collections, nil
}

// GetCollection gets a single collection
func (s *LoanService) GetCollection(ctx context.Context, actor *domain.Actor, id uint) (*models.Collection, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	collection, err := s.store.Collections().GetByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "collection")
	}
	loan, err := s.store.Loans().GetByID(ctx, collection.LoanID)
	if err != nil {
		return nil, storageError(err, "loan")
	}
	if err := s.authorizeLoan(ctx, actor, domain.ActionReadCollection, loan); err != nil {
		return nil, err
	}
	return collection, nil
}

// ListAllCollections lists every collection, newest first. Staff above AGENT only.
func (s *LoanService) ListAllCollections(ctx context.Context, actor *domain.Actor, offset, limit int) ([]*models.Collection, int64, error) {
	if err := requireActor(actor); err != nil {
		return nil, 0, err
	}
	if actor.Role != domain.RoleAdmin && actor.Role != domain.RoleManager {
		return nil, 0, domain.NewAuthorizationError(domain.ReasonInsufficientRole)
	}
	if err := authorize(actor, domain.ActionReadCollection, nil); err != nil {
		return nil, 0, err
	}

	offset, limit = pageBounds(offset, limit)
	collections, total, err := s.store.Collections().List(ctx, offset, limit)
	if err != nil {
		return nil, 0, storageError(err, "collection")
	}
	return collections, total, nil
}

func (s *LoanService) authorizeLoan(ctx context.Context, actor *domain.Actor, action domain.Action, loan *models.Loan) error {
	target, err := customerTarget(ctx, s.store, loan.CustomerID)
	if err != nil {
		return err
	}
	return authorize(actor, action, target)
}
