package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"loanbook/internal/adapters/persistence/models"
	"loanbook/internal/adapters/persistence/repositories"
	"loanbook/internal/core/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerEngine applies repayments to loans and borrowings. Every method takes
// the Store of an open transaction and locks the row it modifies, so postings
// against the same loan or borrowing serialize.
type LedgerEngine struct {
	accrue AccrualFunc
}

// NewLedgerEngine creates a ledger using accrue for interest-first allocation
func NewLedgerEngine(accrue AccrualFunc) *LedgerEngine {
	if accrue == nil {
		accrue = SimpleInterestAccrual
	}
	return &LedgerEngine{accrue: accrue}
}

// PostCollectionInput describes one repayment received against a loan.
// PrincipalAmount and InterestAmount are optional; when sent they must match
// the server-side allocation.
type PostCollectionInput struct {
	LoanID          uint                 `json:"loan_id"`
	Amount          decimal.Decimal      `json:"amount"`
	PaymentMethod   domain.PaymentMethod `json:"payment_method"`
	ReceiptNumber   string               `json:"receipt_number"`
	CollectionDate  time.Time            `json:"collection_date"`
	PrincipalAmount *decimal.Decimal     `json:"principal_amount,omitempty"`
	InterestAmount  *decimal.Decimal     `json:"interest_amount,omitempty"`
}

// PostingResult is the outcome of a collection posting
type PostingResult struct {
	Loan       *models.Loan        `json:"loan"`
	Collection *models.Collection  `json:"collection"`
	Before     domain.LoanSnapshot `json:"-"`
}

// Validate checks the input without touching storage
func (in *PostCollectionInput) Validate() error {
	in.ReceiptNumber = strings.TrimSpace(in.ReceiptNumber)
	if in.LoanID == 0 {
		return domain.NewValidationError("loan_id", "loan_id is required")
	}
	if err := validateMoney("amount", in.Amount); err != nil {
		return err
	}
	if !in.PaymentMethod.Valid() {
		return domain.NewValidationError("payment_method", "unknown payment method")
	}
	if in.ReceiptNumber == "" {
		return domain.NewValidationError("receipt_number", "receipt_number is required")
	}
	if len(in.ReceiptNumber) > 64 {
		return domain.NewValidationError("receipt_number", "receipt_number is longer than 64 characters")
	}
	if in.CollectionDate.IsZero() {
		return domain.NewValidationError("collection_date", "collection_date is required")
	}
	return nil
}

// validateMoney requires a positive amount with at most two decimals
func validateMoney(field string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return domain.NewValidationError(field, field+" must be greater than zero")
	}
	if !amount.Round(2).Equal(amount) {
		return domain.NewValidationError(field, field+" has more than two decimal places")
	}
	return nil
}

// Allocate splits amount interest-first. It returns the overpayment excess
// when the principal portion would exceed the outstanding principal.
func Allocate(amount, accrued, outstanding decimal.Decimal) (interest, principal, excess decimal.Decimal) {
	interest = decimal.Min(amount, accrued)
	if interest.Sign() < 0 {
		interest = decimal.Zero
	}
	principal = amount.Sub(interest)
	if principal.GreaterThan(outstanding) {
		excess = principal.Sub(outstanding)
		principal = outstanding
	}
	return interest, principal, excess
}

// PostCollection posts a repayment against a loan inside tx. On any error
// nothing has been written through tx that the caller should keep; the
// caller rolls the transaction back.
func (e *LedgerEngine) PostCollection(ctx context.Context, tx repositories.Store, in *PostCollectionInput, postedBy *domain.Actor) (*PostingResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	loan, err := tx.Loans().GetByIDForUpdate(ctx, in.LoanID)
	if err != nil {
		return nil, storageError(err, "loan")
	}
	if !domain.LoanStatus(loan.Status).Protected() {
		return nil, domain.NewValidationError("loan_id", "loan is "+strings.ToLower(loan.Status)+" and accepts no payments")
	}

	used, err := tx.Collections().ExistsByReceiptNumber(ctx, in.ReceiptNumber)
	if err != nil {
		return nil, storageError(err, "collection")
	}
	if used {
		return nil, domain.NewConflictError("receipt number "+in.ReceiptNumber+" already used", nil)
	}

	// the posting user must still exist at commit; deleting them waits on this lock
	if _, err := tx.Users().GetByIDForShare(ctx, postedBy.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewAuthenticationError("user no longer exists")
		}
		return nil, storageError(err, "user")
	}

	accrued := e.accrue(loan, in.CollectionDate)
	interest, principal, excess := Allocate(in.Amount, accrued.Interest, loan.OutstandingPrincipal)
	if excess.Sign() > 0 {
		return nil, domain.NewOverpaymentError(excess)
	}

	if in.PrincipalAmount != nil && !in.PrincipalAmount.Equal(principal) {
		return nil, domain.NewValidationError("principal_amount",
			"principal_amount does not match allocation "+principal.StringFixed(2))
	}
	if in.InterestAmount != nil && !in.InterestAmount.Equal(interest) {
		return nil, domain.NewValidationError("interest_amount",
			"interest_amount does not match allocation "+interest.StringFixed(2))
	}

	before := loan.Snapshot()

	loan.OutstandingPrincipal = loan.OutstandingPrincipal.Sub(principal)
	switch {
	case loan.OutstandingPrincipal.IsZero():
		loan.Status = string(domain.LoanClosed)
	case loan.Status == string(domain.LoanPending):
		loan.Status = string(domain.LoanActive)
	}
	// periods already charged stay charged; what the payment did not cover is carried
	if accrued.Periods > loan.AccruedPeriods {
		loan.AccruedPeriods = accrued.Periods
	}
	loan.InterestArrears = accrued.Interest.Sub(interest)
	if loan.InterestArrears.Sign() < 0 {
		loan.InterestArrears = decimal.Zero
	}
	if loan.LastPaymentAt == nil || in.CollectionDate.After(*loan.LastPaymentAt) {
		paidAt := in.CollectionDate
		loan.LastPaymentAt = &paidAt
	}
	if err := tx.Loans().Update(ctx, loan); err != nil {
		return nil, storageError(err, "loan")
	}

	collection := &models.Collection{
		LoanID:          loan.ID,
		AgentID:         postedBy.ID,
		Amount:          in.Amount,
		PrincipalAmount: principal,
		InterestAmount:  interest,
		PaymentMethod:   string(in.PaymentMethod),
		ReceiptNumber:   in.ReceiptNumber,
		CollectionDate:  in.CollectionDate,
	}
	if err := tx.Collections().Create(ctx, collection); err != nil {
		return nil, storageError(err, "collection")
	}

	return &PostingResult{Loan: loan, Collection: collection, Before: before}, nil
}

// BorrowingResult is the outcome of a borrowing repayment
type BorrowingResult struct {
	Borrowing *models.Borrowing        `json:"borrowing"`
	Before    domain.BorrowingSnapshot `json:"-"`
}

// RepayBorrowing pays down a borrowing inside tx
func (e *LedgerEngine) RepayBorrowing(ctx context.Context, tx repositories.Store, borrowingID uint, amount decimal.Decimal) (*BorrowingResult, error) {
	if err := validateMoney("amount", amount); err != nil {
		return nil, err
	}

	b, err := tx.Borrowings().GetByIDForUpdate(ctx, borrowingID)
	if err != nil {
		return nil, storageError(err, "borrowing")
	}
	if b.Status == string(domain.BorrowingClosed) {
		return nil, domain.NewValidationError("borrowing_id", "borrowing is closed")
	}
	if amount.GreaterThan(b.Outstanding) {
		return nil, domain.NewOverpaymentError(amount.Sub(b.Outstanding))
	}

	before := b.Snapshot()

	b.Outstanding = b.Outstanding.Sub(amount)
	b.TotalRepaid = b.TotalRepaid.Add(amount)
	if b.Outstanding.IsZero() {
		b.Status = string(domain.BorrowingClosed)
	}
	if err := tx.Borrowings().Update(ctx, b); err != nil {
		return nil, storageError(err, "borrowing")
	}

	return &BorrowingResult{Borrowing: b, Before: before}, nil
}
