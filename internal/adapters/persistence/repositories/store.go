package repositories

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gormStore implements Store on top of a *gorm.DB, which may be a transaction
type gormStore struct {
	db *gorm.DB
}

// NewStore creates a new GORM backed store
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Users() UserRepository                 { return &userRepository{db: s.db} }
func (s *gormStore) Customers() CustomerRepository         { return &customerRepository{db: s.db} }
func (s *gormStore) Loans() LoanRepository                 { return &loanRepository{db: s.db} }
func (s *gormStore) Collections() CollectionRepository     { return &collectionRepository{db: s.db} }
func (s *gormStore) Borrowings() BorrowingRepository       { return &borrowingRepository{db: s.db} }
func (s *gormStore) AuditLogs() AuditLogRepository         { return &auditLogRepository{db: s.db} }
func (s *gormStore) RefreshTokens() RefreshTokenRepository { return &refreshTokenRepository{db: s.db} }

// Transaction runs fn inside a database transaction. Nested calls reuse
// GORM's savepoint handling.
func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := fn(&gormStore{db: tx}); err != nil {
			return err
		}
		// a cancelled caller must not commit
		return ctx.Err()
	})
}

// Ping checks the underlying connection
func (s *gormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// forUpdate adds SELECT ... FOR UPDATE
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func forShare(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "SHARE"})
}

func paginate(db *gorm.DB, offset, limit int) *gorm.DB {
	if limit > 0 {
		db = db.Limit(limit)
	}
	if offset > 0 {
		db = db.Offset(offset)
	}
	return db
}
