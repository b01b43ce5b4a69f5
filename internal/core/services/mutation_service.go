package services

import (
	"context"
	"errors"
	"log"
	"time"

	"loanbook/internal/adapters/persistence/models"
	"loanbook/internal/adapters/persistence/repositories"
	"loanbook/internal/core/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MutationRequest carries who is asking and from where
type MutationRequest struct {
	Actor  *domain.Actor
	Meta   domain.ClientMeta
	Remark string
}

// MutationService runs every sensitive state change:
// authenticate, authorize, guard, apply, record, then publish.
//
// In transactional mode the audit entry is written inside the mutation's
// transaction and a failed write rolls the mutation back. In deferred mode it
// is written right after commit; a failed write is parked in the outbox and
// reported as AuditPersistenceFailure together with the committed result.
type MutationService struct {
	store     repositories.Store
	ledger    *LedgerEngine
	recorder  *AuditRecorder
	outbox    AuditOutbox
	publisher EventPublisher
	deferred  bool
	now       func() time.Time
}

// MutationConfig wires a MutationService
type MutationConfig struct {
	Store     repositories.Store
	Ledger    *LedgerEngine
	Recorder  *AuditRecorder
	Outbox    AuditOutbox
	Publisher EventPublisher
	Deferred  bool
	Now       func() time.Time
}

// NewMutationService creates a new mutation service
func NewMutationService(cfg MutationConfig) *MutationService {
	s := &MutationService{
		store:     cfg.Store,
		ledger:    cfg.Ledger,
		recorder:  cfg.Recorder,
		outbox:    cfg.Outbox,
		publisher: cfg.Publisher,
		deferred:  cfg.Deferred,
		now:       cfg.Now,
	}
	if s.ledger == nil {
		s.ledger = NewLedgerEngine(nil)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.recorder == nil {
		s.recorder = NewAuditRecorder(s.now)
	}
	if s.outbox == nil {
		s.outbox = NewMemoryAuditOutbox()
	}
	if s.publisher == nil {
		s.publisher = NoopPublisher{}
	}
	return s
}

// mutation applies a guarded effect inside tx and describes it for the audit log
type mutation func(tx repositories.Store) (*domain.AuditEntry, error)

// execute runs apply atomically and records its audit entry. A nil error or
// an AuditPersistenceFailure both mean the effect committed.
func (s *MutationService) execute(ctx context.Context, req *MutationRequest, apply mutation) error {
	if err := requireActor(req.Actor); err != nil {
		return err
	}

	var entry *domain.AuditEntry
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		e, err := apply(tx)
		if err != nil {
			return err
		}
		e.ActorID = req.Actor.ID
		e.Meta = req.Meta
		e.Remark = req.Remark
		entry = e

		if s.deferred {
			return nil
		}
		if err := s.recorder.Record(ctx, tx.AuditLogs(), e); err != nil {
			log.Printf("❌ Audit write failed, rolling back %s %s #%d: %v", e.Action, e.EntityType, e.EntityID, err)
			return domain.NewStorageUnavailable(err)
		}
		return nil
	})
	if err != nil {
		return storageError(err, "record")
	}

	if s.deferred {
		return s.recordAfterCommit(context.WithoutCancel(ctx), entry)
	}
	return nil
}

// recordAfterCommit writes the entry outside the mutation's transaction
func (s *MutationService) recordAfterCommit(ctx context.Context, entry *domain.AuditEntry) error {
	row, err := s.recorder.Prepare(entry)
	if err != nil {
		log.Printf("🚨 Audit entry for %s %s #%d could not be encoded: %v", entry.Action, entry.EntityType, entry.EntityID, err)
		return domain.NewAuditPersistenceFailure(err)
	}

	writeErr := s.store.AuditLogs().Create(ctx, row)
	if writeErr == nil {
		return nil
	}

	// the write may have landed even though the call failed
	if ok, err := s.store.AuditLogs().ExistsByCorrelationID(ctx, row.CorrelationID); err == nil && ok {
		return nil
	}

	pending := &PendingAudit{Entry: row, Attempts: 1, LastError: writeErr.Error()}
	if err := s.outbox.Push(ctx, pending); err != nil {
		log.Printf("🚨 Audit entry %s (%s %s #%d) lost its outbox too: write=%v outbox=%v",
			row.CorrelationID, row.Action, row.EntityType, row.EntityID, writeErr, err)
	} else {
		log.Printf("⚠️ Audit entry %s (%s) queued for retry: %v", row.CorrelationID, row.Action, writeErr)
	}
	return domain.NewAuditPersistenceFailure(writeErr)
}

// committed reports whether err still means the mutation took effect
func committed(err error) bool {
	return err == nil || domain.IsKind(err, domain.KindAuditPersistence)
}

func (s *MutationService) publish(ctx context.Context, key string, event interface{}) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), key, event); err != nil {
		log.Printf("⚠️ Publish %s failed: %v", key, err)
	}
}

// ============================================================
// Ledger postings
// ============================================================

// PostCollection records a repayment against a loan
func (s *MutationService) PostCollection(ctx context.Context, req *MutationRequest, in *PostCollectionInput) (*PostingResult, error) {
	var result *PostingResult
	err := s.execute(ctx, req, func(tx repositories.Store) (*domain.AuditEntry, error) {
		if err := in.Validate(); err != nil {
			return nil, err
		}
		loan, err := tx.Loans().GetByID(ctx, in.LoanID)
		if err != nil {
			return nil, storageError(err, "loan")
		}
		target, err := customerTarget(ctx, tx, loan.CustomerID)
		if err != nil {
			return nil, err
		}
		if err := authorize(req.Actor, domain.ActionCreateCollection, target); err != nil {
			return nil, err
		}

		res, err := s.ledger.PostCollection(ctx, tx, in, req.Actor)
		if err != nil {
			return nil, err
		}
		result = res

		return &domain.AuditEntry{
			Action:     domain.AuditCollectionPost,
			EntityType: domain.EntityCollection,
			EntityID:   res.Collection.ID,
			Before:     res.Before,
			After: domain.PostingSnapshot{
				Loan:       res.Loan.Snapshot(),
				Collection: res.Collection.Snapshot(),
			},
		}, nil
	})
	if !committed(err) {
		return nil, err
	}

	log.Printf("💰 Collection %s posted on loan #%d: %s (principal %s, interest %s)",
		result.Collection.ReceiptNumber, result.Loan.ID, result.Collection.Amount.StringFixed(2),
		result.Collection.PrincipalAmount.StringFixed(2), result.Collection.InterestAmount.StringFixed(2))

	s.publish(ctx, EventCollectionPosted, CollectionPostedEvent{
		CollectionID:         result.Collection.ID,
		LoanID:               result.Loan.ID,
		AgentID:              result.Collection.AgentID,
		Amount:               result.Collection.Amount,
		PrincipalAmount:      result.Collection.PrincipalAmount,
		InterestAmount:       result.Collection.InterestAmount,
		OutstandingPrincipal: result.Loan.OutstandingPrincipal,
		LoanStatus:           result.Loan.Status,
		ReceiptNumber:        result.Collection.ReceiptNumber,
		OccurredAt:           s.now(),
	})
	return result, err
}

// RepayBorrowing pays down a borrowing
func (s *MutationService) RepayBorrowing(ctx context.Context, req *MutationRequest, borrowingID uint, amount decimal.Decimal) (*BorrowingResult, error) {
	var result *BorrowingResult
	err := s.execute(ctx, req, func(tx repositories.Store) (*domain.AuditEntry, error) {
		if err := authorize(req.Actor, domain.ActionRepayBorrowing, nil); err != nil {
			return nil, err
		}
		res, err := s.ledger.RepayBorrowing(ctx, tx, borrowingID, amount)
		if err != nil {
			return nil, err
		}
		result = res

		return &domain.AuditEntry{
			Action:     domain.AuditBorrowingRepay,
			EntityType: domain.EntityBorrowing,
			EntityID:   res.Borrowing.ID,
			Before:     res.Before,
			After:      res.Borrowing.Snapshot(),
		}, nil
	})
	if !committed(err) {
		return nil, err
	}

	log.Printf("🏦 Borrowing #%d repaid %s, outstanding %s",
		result.Borrowing.ID, amount.StringFixed(2), result.Borrowing.Outstanding.StringFixed(2))

	s.publish(ctx, EventBorrowingRepaid, BorrowingRepaidEvent{
		BorrowingID: result.Borrowing.ID,
		Amount:      amount,
		Outstanding: result.Borrowing.Outstanding,
		Status:      result.Borrowing.Status,
		OccurredAt:  s.now(),
	})
	return result, err
}

// ============================================================
// Permissions
// ============================================================

// UpdateGrants replaces a manager's delete grants. ADMIN only.
func (s *MutationService) UpdateGrants(ctx context.Context, req *MutationRequest, userID uint, grants domain.ManagerGrants) (*models.User, error) {
	var user *models.User
	err := s.execute(ctx, req, func(tx repositories.Store) (*domain.AuditEntry, error) {
		if err := authorize(req.Actor, domain.ActionUpdateGrants, &domain.Target{OwnerUserID: userID}); err != nil {
			return nil, err
		}

		u, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return nil, storageError(err, "user")
		}
		if domain.Role(u.Role) != domain.RoleManager {
			return nil, domain.NewValidationError("user_id", "grants only apply to managers")
		}

		before := domain.GrantsSnapshot{UserID: u.ID, Role: domain.Role(u.Role), Grants: u.Grants()}
		u.SetGrants(grants)
		if err := tx.Users().Update(ctx, u); err != nil {
			return nil, storageError(err, "user")
		}
		user = u

		return &domain.AuditEntry{
			Action:     domain.AuditGrantsUpdate,
			EntityType: domain.EntityUser,
			EntityID:   u.ID,
			Before:     before,
			After:      domain.GrantsSnapshot{UserID: u.ID, Role: domain.Role(u.Role), Grants: u.Grants()},
		}, nil
	})
	if !committed(err) {
		return nil, err
	}

	log.Printf("🔑 Grants updated for user #%d by #%d", user.ID, req.Actor.ID)
	return user, err
}

// ChangeRole moves a staff account to another staff role. Customer accounts
// keep their role for life because their ledger records hang off the customer
// profile. Only an ADMIN may move a MANAGER or ADMIN, or promote to ADMIN.
// A MANAGER who leaves the role loses every grant, so that change is recorded
// as a grants update; every other move is recorded as a role change.
func (s *MutationService) ChangeRole(ctx context.Context, req *MutationRequest, userID uint, role domain.Role) (*models.User, error) {
	var user *models.User
	var from domain.Role
	err := s.execute(ctx, req, func(tx repositories.Store) (*domain.AuditEntry, error) {
		if err := authorize(req.Actor, domain.ActionUpdateUser, &domain.Target{OwnerUserID: userID}); err != nil {
			return nil, err
		}
		if userID == req.Actor.ID {
			return nil, domain.NewValidationError("role", "cannot change your own role")
		}

		u, err := tx.Users().GetByIDForUpdate(ctx, userID)
		if err != nil {
			return nil, storageError(err, "user")
		}
		from = domain.Role(u.Role)

		switch {
		case from == domain.RoleCustomer || role == domain.RoleCustomer:
			return nil, domain.NewValidationError("role", "customer accounts cannot change role")
		case from == role:
			return nil, domain.NewValidationError("role", "user already has role "+string(role))
		case req.Actor.Role != domain.RoleAdmin &&
			(from == domain.RoleManager || from == domain.RoleAdmin || role == domain.RoleAdmin):
			return nil, domain.NewAuthorizationError(domain.ReasonAdminOnly)
		}

		before := u.Snapshot()
		beforeGrants := domain.GrantsSnapshot{UserID: u.ID, Role: domain.Role(u.Role), Grants: u.Grants()}
		u.Role = string(role)
		u.SetGrants(domain.ManagerGrants{})
		if err := tx.Users().Update(ctx, u); err != nil {
			return nil, storageError(err, "user")
		}
		user = u

		if from == domain.RoleManager {
			return &domain.AuditEntry{
				Action:     domain.AuditGrantsUpdate,
				EntityType: domain.EntityUser,
				EntityID:   u.ID,
				Before:     beforeGrants,
				After:      domain.GrantsSnapshot{UserID: u.ID, Role: domain.Role(u.Role), Grants: u.Grants()},
			}, nil
		}
		return &domain.AuditEntry{
			Action:     domain.AuditRoleChange,
			EntityType: domain.EntityUser,
			EntityID:   u.ID,
			Before:     before,
			After:      u.Snapshot(),
		}, nil
	})
	if !committed(err) {
		return nil, err
	}

	log.Printf("🔁 User #%d moved from %s to %s by #%d", user.ID, from, role, req.Actor.ID)
	return user, err
}

// ============================================================
// Deletions
// ============================================================

// DeleteUser removes a user once the deletion guard clears it
func (s *MutationService) DeleteUser(ctx context.Context, req *MutationRequest, userID uint) error {
	var deleted *models.User
	err := s.execute(ctx, req, func(tx repositories.Store) (*domain.AuditEntry, error) {
		if err := authorize(req.Actor, domain.ActionDeleteUser, &domain.Target{OwnerUserID: userID}); err != nil {
			return nil, err
		}

		d, err := CanDeleteUser(ctx, tx, req.Actor, userID)
		if err != nil {
			return nil, storageError(err, "user")
		}
		if !d.Allowed {
			return nil, denialError(d, "user")
		}

		u, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return nil, storageError(err, "user")
		}
		if err := s.deleteCustomerProfile(ctx, tx, u.ID); err != nil {
			return nil, err
		}
		if err := s.deleteAccount(ctx, tx, u.ID); err != nil {
			return nil, err
		}
		deleted = u

		return &domain.AuditEntry{
			Action:     domain.AuditUserDelete,
			EntityType: domain.EntityUser,
			EntityID:   u.ID,
			Before:     u.Snapshot(),
		}, nil
	})
	if !committed(err) {
		return err
	}

	log.Printf("🗑️ User #%d (%s) deleted by #%d", deleted.ID, deleted.Role, req.Actor.ID)
	s.publish(ctx, EventUserDeleted, UserDeletedEvent{
		UserID:     deleted.ID,
		Role:       deleted.Role,
		DeletedBy:  req.Actor.ID,
		OccurredAt: s.now(),
	})
	return err
}

// DeleteCustomer removes a customer and its user account
func (s *MutationService) DeleteCustomer(ctx context.Context, req *MutationRequest, customerID uint) error {
	var deleted *models.Customer
	err := s.execute(ctx, req, func(tx repositories.Store) (*domain.AuditEntry, error) {
		target, err := customerTarget(ctx, tx, customerID)
		if err != nil {
			return nil, err
		}
		if err := authorize(req.Actor, domain.ActionDeleteCustomer, target); err != nil {
			return nil, err
		}

		d, err := CanDeleteCustomer(ctx, tx, req.Actor, customerID)
		if err != nil {
			return nil, storageError(err, "customer")
		}
		if !d.Allowed {
			return nil, denialError(d, "customer")
		}

		c, err := tx.Customers().GetByID(ctx, customerID)
		if err != nil {
			return nil, storageError(err, "customer")
		}
		if err := tx.Customers().Delete(ctx, c.ID); err != nil {
			return nil, storageError(err, "customer")
		}
		if err := s.deleteAccount(ctx, tx, c.UserID); err != nil {
			return nil, err
		}
		deleted = c

		return &domain.AuditEntry{
			Action:     domain.AuditCustomerDelete,
			EntityType: domain.EntityCustomer,
			EntityID:   c.ID,
			Before:     c.Snapshot(),
		}, nil
	})
	if !committed(err) {
		return err
	}

	log.Printf("🗑️ Customer #%d (user #%d) deleted by #%d", deleted.ID, deleted.UserID, req.Actor.ID)
	s.publish(ctx, EventUserDeleted, UserDeletedEvent{
		UserID:     deleted.UserID,
		Role:       string(domain.RoleCustomer),
		DeletedBy:  req.Actor.ID,
		OccurredAt: s.now(),
	})
	return err
}

func (s *MutationService) deleteCustomerProfile(ctx context.Context, tx repositories.Store, userID uint) error {
	c, err := tx.Customers().GetByUserID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return storageError(err, "customer")
	}
	return storageError(tx.Customers().Delete(ctx, c.ID), "customer")
}

// deleteAccount soft deletes the user and ends every session
func (s *MutationService) deleteAccount(ctx context.Context, tx repositories.Store, userID uint) error {
	if err := tx.Users().Delete(ctx, userID); err != nil {
		return storageError(err, "user")
	}
	if err := tx.RefreshTokens().RevokeAllByUserID(ctx, userID, s.now()); err != nil {
		return storageError(err, "user")
	}
	return nil
}

// ============================================================
// Pre-checks
// ============================================================

// UserDeletionCheck runs the permission gate and deletion guard without
// deleting anything
func (s *MutationService) UserDeletionCheck(ctx context.Context, actor *domain.Actor, userID uint) (domain.Decision, error) {
	if err := requireActor(actor); err != nil {
		return domain.Decision{}, err
	}
	if d := Authorize(actor, domain.ActionDeleteUser, &domain.Target{OwnerUserID: userID}); !d.Allowed {
		return d, nil
	}
	d, err := CanDeleteUser(ctx, s.store, actor, userID)
	if err != nil {
		return domain.Decision{}, storageError(err, "user")
	}
	return d, nil
}

// CustomerDeletionCheck is UserDeletionCheck for customers
func (s *MutationService) CustomerDeletionCheck(ctx context.Context, actor *domain.Actor, customerID uint) (domain.Decision, error) {
	if err := requireActor(actor); err != nil {
		return domain.Decision{}, err
	}
	target, err := customerTarget(ctx, s.store, customerID)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return domain.Deny(domain.ReasonNotFound), nil
		}
		return domain.Decision{}, err
	}
	if d := Authorize(actor, domain.ActionDeleteCustomer, target); !d.Allowed {
		return d, nil
	}
	d, err := CanDeleteCustomer(ctx, s.store, actor, customerID)
	if err != nil {
		return domain.Decision{}, storageError(err, "customer")
	}
	return d, nil
}
