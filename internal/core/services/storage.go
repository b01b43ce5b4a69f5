package services

import (
	"context"
	"errors"

	"loanbook/internal/adapters/persistence/repositories"
	"loanbook/internal/core/domain"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// storageError converts a repository error into a domain error. Domain errors
// pass through untouched.
func storageError(err error, entity string) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.NewNotFoundError(entity)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.NewConflictError(entity+" already exists", err)
	case lockConflict(err):
		return domain.NewConflictError(entity+" is being changed concurrently, retry", err)
	}
	return domain.NewStorageUnavailable(err)
}

// lockConflict reports lock wait timeouts, deadlocks and serialization
// failures. The transaction was rolled back and can be retried as a whole.
func lockConflict(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		// ER_LOCK_WAIT_TIMEOUT, ER_LOCK_DEADLOCK
		return myErr.Number == 1205 || myErr.Number == 1213
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected, lock_not_available
		return pgErr.Code == "40001" || pgErr.Code == "40P01" || pgErr.Code == "55P03"
	}
	return false
}

// customerTarget builds the permission target of a customer's records
func customerTarget(ctx context.Context, store repositories.Store, customerID uint) (*domain.Target, error) {
	customer, err := store.Customers().GetByID(ctx, customerID)
	if err != nil {
		return nil, storageError(err, "customer")
	}
	agents, err := store.Customers().ActiveAgentIDs(ctx, customerID)
	if err != nil {
		return nil, storageError(err, "customer")
	}
	return &domain.Target{
		OwnerUserID:      customer.UserID,
		CustomerID:       customer.ID,
		AssignedAgentIDs: agents,
	}, nil
}

// requireActor fails with AuthenticationError for a missing or inactive actor
func requireActor(actor *domain.Actor) error {
	if actor == nil || !actor.Active {
		return domain.NewAuthenticationError("authentication required")
	}
	return nil
}

// pageBounds normalizes offset and limit for repository listings
func pageBounds(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return offset, limit
}
