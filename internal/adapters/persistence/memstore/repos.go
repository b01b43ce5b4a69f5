package memstore

import (
	"context"
	"strings"
	"time"

	"loanbook/internal/adapters/persistence/models"
	"loanbook/internal/adapters/persistence/repositories"

	"gorm.io/gorm"
)

// ---------------------------------------------------------------- users

type userRepo struct{ s *Store }

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	return r.s.write(ctx, func(t *tables) error {
		for _, u := range t.users {
			if strings.EqualFold(u.Email, user.Email) {
				return gorm.ErrDuplicatedKey
			}
		}
		now := r.s.sh.now()
		user.ID = t.next("users")
		user.CreatedAt, user.UpdatedAt = now, now
		t.users[user.ID] = *user
		return nil
	})
}

func (r *userRepo) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var out *models.User
	err := r.s.read(ctx, func(t *tables) error {
		u, ok := t.users[id]
		if !ok || !live(u.DeletedAt) {
			return gorm.ErrRecordNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

// Row locks need nothing extra: transactions are already serialized
func (r *userRepo) GetByIDForUpdate(ctx context.Context, id uint) (*models.User, error) {
	return r.GetByID(ctx, id)
}

func (r *userRepo) GetByIDForShare(ctx context.Context, id uint) (*models.User, error) {
	return r.GetByID(ctx, id)
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var out *models.User
	err := r.s.read(ctx, func(t *tables) error {
		for _, u := range t.users {
			if live(u.DeletedAt) && strings.EqualFold(u.Email, email) {
				u := u
				out = &u
				return nil
			}
		}
		return gorm.ErrRecordNotFound
	})
	return out, err
}

func (r *userRepo) Update(ctx context.Context, user *models.User) error {
	return r.s.write(ctx, func(t *tables) error {
		for id, u := range t.users {
			if id != user.ID && strings.EqualFold(u.Email, user.Email) {
				return gorm.ErrDuplicatedKey
			}
		}
		user.UpdatedAt = r.s.sh.now()
		t.users[user.ID] = *user
		return nil
	})
}

func (r *userRepo) Delete(ctx context.Context, id uint) error {
	return r.s.write(ctx, func(t *tables) error {
		u, ok := t.users[id]
		if !ok || !live(u.DeletedAt) {
			return nil
		}
		u.DeletedAt = gorm.DeletedAt{Time: r.s.sh.now(), Valid: true}
		t.users[id] = u
		return nil
	})
}

func (r *userRepo) List(ctx context.Context, filter repositories.UserFilter, offset, limit int) ([]*models.User, int64, error) {
	var out []*models.User
	var total int64
	err := r.s.read(ctx, func(t *tables) error {
		search := strings.ToLower(filter.Search)
		ids := sortedIDs(t.users, func(u models.User) bool {
			if !live(u.DeletedAt) {
				return false
			}
			if filter.Role != "" && u.Role != filter.Role {
				return false
			}
			if search != "" &&
				!strings.Contains(strings.ToLower(u.Name), search) &&
				!strings.Contains(strings.ToLower(u.Email), search) {
				return false
			}
			return true
		})
		total = int64(len(ids))
		for _, id := range page(ids, offset, limit) {
			u := t.users[id]
			out = append(out, &u)
		}
		return nil
	})
	return out, total, err
}

func (r *userRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	return err == nil, err
}

// ---------------------------------------------------------------- refresh tokens

type tokenRepo struct{ s *Store }

func (r *tokenRepo) Create(ctx context.Context, token *models.RefreshToken) error {
	return r.s.write(ctx, func(t *tables) error {
		token.ID = t.next("refresh_tokens")
		token.CreatedAt = r.s.sh.now()
		t.tokens[token.ID] = *token
		return nil
	})
}

func (r *tokenRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	var out *models.RefreshToken
	err := r.s.read(ctx, func(t *tables) error {
		for _, tok := range t.tokens {
			if tok.TokenHash == tokenHash && tok.RevokedAt == nil {
				tok := tok
				out = &tok
				return nil
			}
		}
		return gorm.ErrRecordNotFound
	})
	return out, err
}

func (r *tokenRepo) revokeWhere(ctx context.Context, at time.Time, match func(models.RefreshToken) bool) error {
	return r.s.write(ctx, func(t *tables) error {
		for id, tok := range t.tokens {
			if tok.RevokedAt == nil && match(tok) {
				at := at
				tok.RevokedAt = &at
				t.tokens[id] = tok
			}
		}
		return nil
	})
}

func (r *tokenRepo) RevokeByTokenHash(ctx context.Context, tokenHash string, at time.Time) error {
	return r.revokeWhere(ctx, at, func(tok models.RefreshToken) bool { return tok.TokenHash == tokenHash })
}

func (r *tokenRepo) RevokeAllByUserID(ctx context.Context, userID uint, at time.Time) error {
	return r.revokeWhere(ctx, at, func(tok models.RefreshToken) bool { return tok.UserID == userID })
}

func (r *tokenRepo) DeleteExpired(ctx context.Context, before time.Time) error {
	return r.s.write(ctx, func(t *tables) error {
		for id, tok := range t.tokens {
			if tok.ExpiresAt.Before(before) {
				delete(t.tokens, id)
			}
		}
		return nil
	})
}

// ---------------------------------------------------------------- customers

type customerRepo struct{ s *Store }

func (r *customerRepo) withUser(t *tables, c models.Customer) *models.Customer {
	if u, ok := t.users[c.UserID]; ok {
		c.User = &u
	}
	return &c
}

func (r *customerRepo) Create(ctx context.Context, customer *models.Customer) error {
	return r.s.write(ctx, func(t *tables) error {
		for _, c := range t.customers {
			if c.UserID == customer.UserID {
				return gorm.ErrDuplicatedKey
			}
		}
		now := r.s.sh.now()
		customer.ID = t.next("customers")
		customer.CreatedAt, customer.UpdatedAt = now, now
		row := *customer
		row.User = nil
		t.customers[row.ID] = row
		return nil
	})
}

func (r *customerRepo) GetByID(ctx context.Context, id uint) (*models.Customer, error) {
	var out *models.Customer
	err := r.s.read(ctx, func(t *tables) error {
		c, ok := t.customers[id]
		if !ok || !live(c.DeletedAt) {
			return gorm.ErrRecordNotFound
		}
		out = r.withUser(t, c)
		return nil
	})
	return out, err
}

func (r *customerRepo) GetByUserID(ctx context.Context, userID uint) (*models.Customer, error) {
	var out *models.Customer
	err := r.s.read(ctx, func(t *tables) error {
		for _, c := range t.customers {
			if c.UserID == userID && live(c.DeletedAt) {
				out = r.withUser(t, c)
				return nil
			}
		}
		return gorm.ErrRecordNotFound
	})
	return out, err
}

func (r *customerRepo) Update(ctx context.Context, customer *models.Customer) error {
	return r.s.write(ctx, func(t *tables) error {
		customer.UpdatedAt = r.s.sh.now()
		row := *customer
		row.User = nil
		t.customers[row.ID] = row
		return nil
	})
}

func (r *customerRepo) Delete(ctx context.Context, id uint) error {
	return r.s.write(ctx, func(t *tables) error {
		c, ok := t.customers[id]
		if !ok || !live(c.DeletedAt) {
			return nil
		}
		c.DeletedAt = gorm.DeletedAt{Time: r.s.sh.now(), Valid: true}
		t.customers[id] = c
		return nil
	})
}

func (r *customerRepo) List(ctx context.Context, filter repositories.CustomerFilter, offset, limit int) ([]*models.Customer, int64, error) {
	var out []*models.Customer
	var total int64
	err := r.s.read(ctx, func(t *tables) error {
		assigned := map[uint]bool{}
		if filter.AgentID != nil {
			for _, a := range t.assignments {
				if a.AgentID == *filter.AgentID && a.IsActive {
					assigned[a.CustomerID] = true
				}
			}
		}
		ids := sortedIDs(t.customers, func(c models.Customer) bool {
			if !live(c.DeletedAt) {
				return false
			}
			if filter.AgentID != nil && !assigned[c.ID] {
				return false
			}
			return filter.KYCStatus == "" || c.KYCStatus == filter.KYCStatus
		})
		total = int64(len(ids))
		for _, id := range page(ids, offset, limit) {
			out = append(out, r.withUser(t, t.customers[id]))
		}
		return nil
	})
	return out, total, err
}

func (r *customerRepo) GetAssignment(ctx context.Context, customerID, agentID uint) (*models.CustomerAgent, error) {
	var out *models.CustomerAgent
	err := r.s.read(ctx, func(t *tables) error {
		for _, a := range t.assignments {
			if a.CustomerID == customerID && a.AgentID == agentID {
				a := a
				out = &a
				return nil
			}
		}
		return gorm.ErrRecordNotFound
	})
	return out, err
}

func (r *customerRepo) SaveAssignment(ctx context.Context, assignment *models.CustomerAgent) error {
	return r.s.write(ctx, func(t *tables) error {
		for id, a := range t.assignments {
			if id != assignment.ID && a.CustomerID == assignment.CustomerID && a.AgentID == assignment.AgentID {
				return gorm.ErrDuplicatedKey
			}
		}
		now := r.s.sh.now()
		if assignment.ID == 0 {
			assignment.ID = t.next("customer_agents")
			assignment.CreatedAt = now
		}
		assignment.UpdatedAt = now
		t.assignments[assignment.ID] = *assignment
		return nil
	})
}

func (r *customerRepo) ActiveAgentIDs(ctx context.Context, customerID uint) ([]uint, error) {
	var out []uint
	err := r.s.read(ctx, func(t *tables) error {
		for _, id := range sortedIDs(t.assignments, func(a models.CustomerAgent) bool {
			return a.CustomerID == customerID && a.IsActive
		}) {
			out = append(out, t.assignments[id].AgentID)
		}
		return nil
	})
	return out, err
}

// ---------------------------------------------------------------- loans

type loanRepo struct{ s *Store }

func (r *loanRepo) Create(ctx context.Context, loan *models.Loan) error {
	return r.s.write(ctx, func(t *tables) error {
		now := r.s.sh.now()
		loan.ID = t.next("loans")
		loan.CreatedAt, loan.UpdatedAt = now, now
		t.loans[loan.ID] = *loan
		return nil
	})
}

func (r *loanRepo) GetByID(ctx context.Context, id uint) (*models.Loan, error) {
	var out *models.Loan
	err := r.s.read(ctx, func(t *tables) error {
		l, ok := t.loans[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		out = &l
		return nil
	})
	return out, err
}

// GetByIDForUpdate needs no extra locking: transactions are already serialized
func (r *loanRepo) GetByIDForUpdate(ctx context.Context, id uint) (*models.Loan, error) {
	return r.GetByID(ctx, id)
}

func (r *loanRepo) Update(ctx context.Context, loan *models.Loan) error {
	return r.s.write(ctx, func(t *tables) error {
		if _, ok := t.loans[loan.ID]; !ok {
			return gorm.ErrRecordNotFound
		}
		loan.UpdatedAt = r.s.sh.now()
		t.loans[loan.ID] = *loan
		return nil
	})
}

func (r *loanRepo) List(ctx context.Context, filter repositories.LoanFilter, offset, limit int) ([]*models.Loan, int64, error) {
	var out []*models.Loan
	var total int64
	err := r.s.read(ctx, func(t *tables) error {
		ids := reverse(sortedIDs(t.loans, func(l models.Loan) bool {
			if filter.CustomerID != nil && l.CustomerID != *filter.CustomerID {
				return false
			}
			return filter.Status == "" || l.Status == filter.Status
		}))
		total = int64(len(ids))
		for _, id := range page(ids, offset, limit) {
			l := t.loans[id]
			out = append(out, &l)
		}
		return nil
	})
	return out, total, err
}

func (r *loanRepo) CountByCustomerAndStatus(ctx context.Context, customerID uint, statuses ...string) (int64, error) {
	var n int64
	err := r.s.read(ctx, func(t *tables) error {
		for _, l := range t.loans {
			if l.CustomerID != customerID {
				continue
			}
			if len(statuses) == 0 {
				n++
				continue
			}
			for _, st := range statuses {
				if l.Status == st {
					n++
					break
				}
			}
		}
		return nil
	})
	return n, err
}

func (r *loanRepo) CountByCreator(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := r.s.read(ctx, func(t *tables) error {
		for _, l := range t.loans {
			if l.CreatedByID == userID {
				n++
			}
		}
		return nil
	})
	return n, err
}

// ---------------------------------------------------------------- collections

type collectionRepo struct{ s *Store }

func (r *collectionRepo) Create(ctx context.Context, collection *models.Collection) error {
	return r.s.write(ctx, func(t *tables) error {
		for _, c := range t.collections {
			if c.ReceiptNumber == collection.ReceiptNumber {
				return gorm.ErrDuplicatedKey
			}
		}
		collection.ID = t.next("collections")
		collection.CreatedAt = r.s.sh.now()
		t.collections[collection.ID] = *collection
		return nil
	})
}

func (r *collectionRepo) GetByID(ctx context.Context, id uint) (*models.Collection, error) {
	var out *models.Collection
	err := r.s.read(ctx, func(t *tables) error {
		c, ok := t.collections[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

func (r *collectionRepo) ExistsByReceiptNumber(ctx context.Context, receipt string) (bool, error) {
	var found bool
	err := r.s.read(ctx, func(t *tables) error {
		for _, c := range t.collections {
			if c.ReceiptNumber == receipt {
				found = true
				break
			}
		}
		return nil
	})
	return found, err
}

func (r *collectionRepo) ListByLoan(ctx context.Context, loanID uint) ([]*models.Collection, error) {
	var out []*models.Collection
	err := r.s.read(ctx, func(t *tables) error {
		for _, id := range sortedIDs(t.collections, func(c models.Collection) bool { return c.LoanID == loanID }) {
			c := t.collections[id]
			out = append(out, &c)
		}
		return nil
	})
	return out, err
}

func (r *collectionRepo) List(ctx context.Context, offset, limit int) ([]*models.Collection, int64, error) {
	var out []*models.Collection
	var total int64
	err := r.s.read(ctx, func(t *tables) error {
		ids := reverse(sortedIDs(t.collections, func(models.Collection) bool { return true }))
		total = int64(len(ids))
		for _, id := range page(ids, offset, limit) {
			c := t.collections[id]
			out = append(out, &c)
		}
		return nil
	})
	return out, total, err
}

func (r *collectionRepo) CountByAgent(ctx context.Context, agentID uint) (int64, error) {
	var n int64
	err := r.s.read(ctx, func(t *tables) error {
		for _, c := range t.collections {
			if c.AgentID == agentID {
				n++
			}
		}
		return nil
	})
	return n, err
}

// ---------------------------------------------------------------- borrowings

type borrowingRepo struct{ s *Store }

func (r *borrowingRepo) Create(ctx context.Context, borrowing *models.Borrowing) error {
	return r.s.write(ctx, func(t *tables) error {
		now := r.s.sh.now()
		borrowing.ID = t.next("borrowings")
		borrowing.CreatedAt, borrowing.UpdatedAt = now, now
		t.borrowings[borrowing.ID] = *borrowing
		return nil
	})
}

func (r *borrowingRepo) GetByID(ctx context.Context, id uint) (*models.Borrowing, error) {
	var out *models.Borrowing
	err := r.s.read(ctx, func(t *tables) error {
		b, ok := t.borrowings[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		out = &b
		return nil
	})
	return out, err
}

func (r *borrowingRepo) GetByIDForUpdate(ctx context.Context, id uint) (*models.Borrowing, error) {
	return r.GetByID(ctx, id)
}

func (r *borrowingRepo) Update(ctx context.Context, borrowing *models.Borrowing) error {
	return r.s.write(ctx, func(t *tables) error {
		if _, ok := t.borrowings[borrowing.ID]; !ok {
			return gorm.ErrRecordNotFound
		}
		borrowing.UpdatedAt = r.s.sh.now()
		t.borrowings[borrowing.ID] = *borrowing
		return nil
	})
}

func (r *borrowingRepo) List(ctx context.Context, status string, offset, limit int) ([]*models.Borrowing, int64, error) {
	var out []*models.Borrowing
	var total int64
	err := r.s.read(ctx, func(t *tables) error {
		ids := reverse(sortedIDs(t.borrowings, func(b models.Borrowing) bool {
			return status == "" || b.Status == status
		}))
		total = int64(len(ids))
		for _, id := range page(ids, offset, limit) {
			b := t.borrowings[id]
			out = append(out, &b)
		}
		return nil
	})
	return out, total, err
}

// ---------------------------------------------------------------- audit

type auditRepo struct{ s *Store }

func (r *auditRepo) Create(ctx context.Context, entry *models.AuditLog) error {
	if r.s.sh.failAudit.Load() {
		return ErrAuditWriteFailed
	}
	return r.s.write(ctx, func(t *tables) error {
		for _, a := range t.audits {
			if a.CorrelationID == entry.CorrelationID {
				return gorm.ErrDuplicatedKey
			}
		}
		entry.ID = t.next("audit_logs")
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = r.s.sh.now()
		}
		t.audits[entry.ID] = *entry
		return nil
	})
}

func (r *auditRepo) List(ctx context.Context, filter repositories.AuditFilter, offset, limit int) ([]*models.AuditLog, int64, error) {
	var out []*models.AuditLog
	var total int64
	err := r.s.read(ctx, func(t *tables) error {
		ids := reverse(sortedIDs(t.audits, func(a models.AuditLog) bool {
			if filter.EntityType != "" && a.EntityType != filter.EntityType {
				return false
			}
			if filter.EntityID != nil && a.EntityID != *filter.EntityID {
				return false
			}
			return filter.ActorID == nil || a.ActorID == *filter.ActorID
		}))
		total = int64(len(ids))
		for _, id := range page(ids, offset, limit) {
			a := t.audits[id]
			out = append(out, &a)
		}
		return nil
	})
	return out, total, err
}

func (r *auditRepo) ExistsByCorrelationID(ctx context.Context, correlationID string) (bool, error) {
	var found bool
	err := r.s.read(ctx, func(t *tables) error {
		for _, a := range t.audits {
			if a.CorrelationID == correlationID {
				found = true
				break
			}
		}
		return nil
	})
	return found, err
}
