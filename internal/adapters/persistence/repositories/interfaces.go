package repositories

import (
	"context"
	"time"

	"loanbook/internal/adapters/persistence/models"
)

// Store groups every repository behind one transactional boundary.
// Repositories obtained from the Store passed to fn share fn's transaction.
type Store interface {
	Users() UserRepository
	Customers() CustomerRepository
	Loans() LoanRepository
	Collections() CollectionRepository
	Borrowings() BorrowingRepository
	AuditLogs() AuditLogRepository
	RefreshTokens() RefreshTokenRepository

	// Transaction runs fn atomically. A non-nil error from fn, a panic or a
	// cancelled ctx rolls everything back.
	Transaction(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}

// UserFilter narrows user listings
type UserFilter struct {
	Role   string
	Search string
}

// UserRepository defines user repository interface
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	// GetByIDForUpdate locks the row exclusively until the transaction ends
	GetByIDForUpdate(ctx context.Context, id uint) (*models.User, error)
	// GetByIDForShare locks the row against deletion until the transaction ends
	GetByIDForShare(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter UserFilter, offset, limit int) ([]*models.User, int64, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// CustomerFilter narrows customer listings
type CustomerFilter struct {
	AgentID   *uint
	KYCStatus string
}

// CustomerRepository defines customer repository interface
type CustomerRepository interface {
	Create(ctx context.Context, customer *models.Customer) error
	GetByID(ctx context.Context, id uint) (*models.Customer, error)
	GetByUserID(ctx context.Context, userID uint) (*models.Customer, error)
	Update(ctx context.Context, customer *models.Customer) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter CustomerFilter, offset, limit int) ([]*models.Customer, int64, error)

	GetAssignment(ctx context.Context, customerID, agentID uint) (*models.CustomerAgent, error)
	SaveAssignment(ctx context.Context, assignment *models.CustomerAgent) error
	ActiveAgentIDs(ctx context.Context, customerID uint) ([]uint, error)
}

// LoanFilter narrows loan listings
type LoanFilter struct {
	CustomerID *uint
	Status     string
}

// LoanRepository defines loan repository interface
type LoanRepository interface {
	Create(ctx context.Context, loan *models.Loan) error
	GetByID(ctx context.Context, id uint) (*models.Loan, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends
	GetByIDForUpdate(ctx context.Context, id uint) (*models.Loan, error)
	Update(ctx context.Context, loan *models.Loan) error
	List(ctx context.Context, filter LoanFilter, offset, limit int) ([]*models.Loan, int64, error)
	CountByCustomerAndStatus(ctx context.Context, customerID uint, statuses ...string) (int64, error)
	CountByCreator(ctx context.Context, userID uint) (int64, error)
}

// CollectionRepository defines collection repository interface.
// Collections are immutable, so there is no Update.
type CollectionRepository interface {
	Create(ctx context.Context, collection *models.Collection) error
	GetByID(ctx context.Context, id uint) (*models.Collection, error)
	ExistsByReceiptNumber(ctx context.Context, receipt string) (bool, error)
	ListByLoan(ctx context.Context, loanID uint) ([]*models.Collection, error)
	List(ctx context.Context, offset, limit int) ([]*models.Collection, int64, error)
	CountByAgent(ctx context.Context, agentID uint) (int64, error)
}

// BorrowingRepository defines borrowing repository interface
type BorrowingRepository interface {
	Create(ctx context.Context, borrowing *models.Borrowing) error
	GetByID(ctx context.Context, id uint) (*models.Borrowing, error)
	GetByIDForUpdate(ctx context.Context, id uint) (*models.Borrowing, error)
	Update(ctx context.Context, borrowing *models.Borrowing) error
	List(ctx context.Context, status string, offset, limit int) ([]*models.Borrowing, int64, error)
}

// AuditFilter narrows audit listings
type AuditFilter struct {
	EntityType string
	EntityID   *uint
	ActorID    *uint
}

// AuditLogRepository is append-only
type AuditLogRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, filter AuditFilter, offset, limit int) ([]*models.AuditLog, int64, error)
	ExistsByCorrelationID(ctx context.Context, correlationID string) (bool, error)
}

// RefreshTokenRepository defines refresh token repository interface
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	RevokeByTokenHash(ctx context.Context, tokenHash string, at time.Time) error
	RevokeAllByUserID(ctx context.Context, userID uint, at time.Time) error
	DeleteExpired(ctx context.Context, before time.Time) error
}
