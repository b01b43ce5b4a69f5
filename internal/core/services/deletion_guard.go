package services

import (
	"context"
	"errors"

	"loanbook/internal/adapters/persistence/repositories"
	"loanbook/internal/core/domain"

	"gorm.io/gorm"
)

// protectedLoanStatuses block deletion of the loan's customer
var protectedLoanStatuses = []string{string(domain.LoanActive), string(domain.LoanPending)}

// CanDeleteUser decides whether actor may delete the user targetID. Every
// check is a count against the ledger, so the decision can be re-derived at
// any time. Run it with the Store of the transaction that performs the delete:
// the target row is locked there, and loan origination and collection posting
// share-lock the same row, so no blocking record can appear before commit.
func CanDeleteUser(ctx context.Context, store repositories.Store, actor *domain.Actor, targetID uint) (domain.Decision, error) {
	if actor == nil {
		return domain.Deny(domain.ReasonUnauthenticated), nil
	}

	// 1. never yourself, admins included
	if targetID == actor.ID {
		return domain.Deny(domain.ReasonSelfDeletion), nil
	}

	// 2. target exists
	target, err := store.Users().GetByIDForUpdate(ctx, targetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Deny(domain.ReasonNotFound), nil
		}
		return domain.Decision{}, err
	}

	// 3. managers cannot remove admins
	if actor.Role == domain.RoleManager && domain.Role(target.Role) == domain.RoleAdmin {
		return domain.Deny(domain.ReasonManagerVsAdmin), nil
	}

	// 4. customers with live loans, judged by the profile rather than the role
	customer, err := store.Customers().GetByUserID(ctx, targetID)
	switch {
	case err == nil:
		n, err := store.Loans().CountByCustomerAndStatus(ctx, customer.ID, protectedLoanStatuses...)
		if err != nil {
			return domain.Decision{}, err
		}
		if n > 0 {
			return domain.DenyCount(domain.ReasonProtectedLoans, n), nil
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return domain.Decision{}, err
	}

	// 5. loan originators
	n, err := store.Loans().CountByCreator(ctx, targetID)
	if err != nil {
		return domain.Decision{}, err
	}
	if n > 0 {
		return domain.DenyCount(domain.ReasonCreatedLoans, n), nil
	}

	// 6. agents who recorded collections
	n, err = store.Collections().CountByAgent(ctx, targetID)
	if err != nil {
		return domain.Decision{}, err
	}
	if n > 0 {
		return domain.DenyCount(domain.ReasonRecordedCollection, n), nil
	}

	return domain.Allow(), nil
}

// CanDeleteCustomer applies the user rules to the customer's user account
func CanDeleteCustomer(ctx context.Context, store repositories.Store, actor *domain.Actor, customerID uint) (domain.Decision, error) {
	customer, err := store.Customers().GetByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Deny(domain.ReasonNotFound), nil
		}
		return domain.Decision{}, err
	}
	return CanDeleteUser(ctx, store, actor, customer.UserID)
}

// denialError turns a negative guard decision into the error reported to callers
func denialError(d domain.Decision, entity string) error {
	switch d.Reason {
	case domain.ReasonNotFound:
		return domain.NewNotFoundError(entity)
	case domain.ReasonUnauthenticated:
		return domain.NewAuthenticationError("authentication required")
	case domain.ReasonSelfDeletion, domain.ReasonManagerVsAdmin:
		return domain.NewAuthorizationError(d.Reason)
	}
	return domain.NewReferentialIntegrityError(d.Reason, d.BlockingCount)
}
