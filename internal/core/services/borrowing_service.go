package services

import (
	"context"
	"log"
	"strings"
	"time"

	"loanbook/internal/adapters/persistence/models"
	"loanbook/internal/adapters/persistence/repositories"
	"loanbook/internal/core/domain"

	"github.com/shopspring/decimal"
)

// BorrowingService records funds raised from lenders.
// Repayments go through MutationService.
type BorrowingService struct {
	store repositories.Store
}

// NewBorrowingService creates a new borrowing service
func NewBorrowingService(store repositories.Store) *BorrowingService {
	return &BorrowingService{store: store}
}

// CreateBorrowingInput for recording a new borrowing
type CreateBorrowingInput struct {
	LenderName    string          `json:"lender_name"`
	LenderContact string          `json:"lender_contact"`
	Amount        decimal.Decimal `json:"amount"`
	InterestRate  decimal.Decimal `json:"interest_rate"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       *time.Time      `json:"end_date"`
}

// Validate checks the input without touching storage
func (in *CreateBorrowingInput) Validate() error {
	in.LenderName = strings.TrimSpace(in.LenderName)
	if in.LenderName == "" {
		return domain.NewValidationError("lender_name", "lender_name is required")
	}
	if err := validateMoney("amount", in.Amount); err != nil {
		return err
	}
	if in.InterestRate.Sign() < 0 || in.InterestRate.GreaterThan(hundred) {
		return domain.NewValidationError("interest_rate", "interest_rate must be between 0 and 100")
	}
	if in.StartDate.IsZero() {
		return domain.NewValidationError("start_date", "start_date is required")
	}
	if in.EndDate != nil && in.EndDate.Before(in.StartDate) {
		return domain.NewValidationError("end_date", "end_date is before start_date")
	}
	return nil
}

// Create records a new ACTIVE borrowing with nothing repaid
func (s *BorrowingService) Create(ctx context.Context, actor *domain.Actor, input *CreateBorrowingInput) (*models.Borrowing, error) {
	if err := authorize(actor, domain.ActionCreateBorrowing, nil); err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	b := &models.Borrowing{
		LenderName:    input.LenderName,
		LenderContact: strings.TrimSpace(input.LenderContact),
		Amount:        input.Amount,
		InterestRate:  input.InterestRate,
		StartDate:     input.StartDate,
		EndDate:       input.EndDate,
		Status:        string(domain.BorrowingActive),
		Outstanding:   input.Amount,
		TotalRepaid:   decimal.Zero,
		CreatedByID:   actor.ID,
	}
	if err := s.store.Borrowings().Create(ctx, b); err != nil {
		return nil, storageError(err, "borrowing")
	}

	log.Printf("🏦 Borrowing #%d recorded from %s: %s by #%d", b.ID, b.LenderName, b.Amount.StringFixed(2), actor.ID)
	return b, nil
}

// Get gets a borrowing
func (s *BorrowingService) Get(ctx context.Context, actor *domain.Actor, id uint) (*models.Borrowing, error) {
	if err := authorize(actor, domain.ActionReadBorrowing, nil); err != nil {
		return nil, err
	}
	b, err := s.store.Borrowings().GetByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "borrowing")
	}
	return b, nil
}

// List lists borrowings, optionally by status
func (s *BorrowingService) List(ctx context.Context, actor *domain.Actor, status string, offset, limit int) ([]*models.Borrowing, int64, error) {
	if err := authorize(actor, domain.ActionReadBorrowing, nil); err != nil {
		return nil, 0, err
	}
	offset, limit = pageBounds(offset, limit)
	list, total, err := s.store.Borrowings().List(ctx, strings.ToUpper(status), offset, limit)
	if err != nil {
		return nil, 0, storageError(err, "borrowing")
	}
	return list, total, nil
}
