package services

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"loanbook/internal/adapters/persistence/memstore"
	"loanbook/internal/adapters/persistence/models"
	"loanbook/internal/adapters/persistence/repositories"
	"loanbook/internal/core/domain"
	"loanbook/internal/pkg/password"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	password.Cost = bcrypt.MinCost
	os.Exit(m.Run())
}

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *memstore.Store
	admin *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{t: t, ctx: context.Background(), store: memstore.New()}
	f.admin = f.user("Admin", domain.RoleAdmin, domain.ManagerGrants{})
	return f
}

func (f *fixture) user(name string, role domain.Role, grants domain.ManagerGrants) *models.User {
	f.t.Helper()
	u, err := newUser(name, name+"@loanbook.test", "", "password123", role)
	if err != nil {
		f.t.Fatalf("new user: %v", err)
	}
	u.SetGrants(grants)
	if err := f.store.Users().Create(f.ctx, u); err != nil {
		f.t.Fatalf("create user: %v", err)
	}
	return u
}

func (f *fixture) customer(name string, agents ...*models.User) *models.Customer {
	f.t.Helper()
	u := f.user(name, domain.RoleCustomer, domain.ManagerGrants{})
	c := &models.Customer{UserID: u.ID, KYCStatus: string(domain.KYCVerified)}
	if err := f.store.Customers().Create(f.ctx, c); err != nil {
		f.t.Fatalf("create customer: %v", err)
	}
	for _, a := range agents {
		err := f.store.Customers().SaveAssignment(f.ctx, &models.CustomerAgent{
			CustomerID: c.ID, AgentID: a.ID, IsActive: true, AssignedBy: f.admin.ID,
		})
		if err != nil {
			f.t.Fatalf("assign agent: %v", err)
		}
	}
	return c
}

func (f *fixture) loan(customerID uint, principal, outstanding string, status domain.LoanStatus) *models.Loan {
	f.t.Helper()
	l := &models.Loan{
		CustomerID:           customerID,
		CreatedByID:          f.admin.ID,
		Principal:            decimal.RequireFromString(principal),
		InterestRate:         decimal.NewFromInt(12),
		Frequency:            string(domain.FrequencyMonthly),
		OutstandingPrincipal: decimal.RequireFromString(outstanding),
		Status:               string(status),
		StartDate:            testStart,
	}
	if err := f.store.Loans().Create(f.ctx, l); err != nil {
		f.t.Fatalf("create loan: %v", err)
	}
	return l
}

func (f *fixture) setLoanStatus(id uint, status domain.LoanStatus) {
	f.t.Helper()
	l, err := f.store.Loans().GetByID(f.ctx, id)
	if err != nil {
		f.t.Fatalf("get loan: %v", err)
	}
	l.Status = string(status)
	if status == domain.LoanClosed {
		l.OutstandingPrincipal = decimal.Zero
	}
	if err := f.store.Loans().Update(f.ctx, l); err != nil {
		f.t.Fatalf("update loan: %v", err)
	}
}

func (f *fixture) auditCount(filter repositories.AuditFilter) int64 {
	f.t.Helper()
	_, total, err := f.store.AuditLogs().List(f.ctx, filter, 0, 0)
	if err != nil {
		f.t.Fatalf("list audit: %v", err)
	}
	return total
}

func (f *fixture) mutations(deferred bool, outbox AuditOutbox) *MutationService {
	return NewMutationService(MutationConfig{
		Store:    f.store,
		Ledger:   NewLedgerEngine(NoAccrual),
		Outbox:   outbox,
		Deferred: deferred,
	})
}

func actorOf(u *models.User) *domain.Actor {
	return u.ToActor()
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func wantKind(t *testing.T, err error, kind domain.ErrorKind) *domain.Error {
	t.Helper()
	if !domain.IsKind(err, kind) {
		t.Fatalf("expected %s, got %v", kind, err)
	}
	var de *domain.Error
	errors.As(err, &de)
	return de
}
