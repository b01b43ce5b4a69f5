package services

import (
	"testing"
	"time"

	"loanbook/internal/adapters/persistence/repositories"
	"loanbook/internal/core/domain"
)

func TestCreateAndActivateLoan(t *testing.T) {
	f := newFixture(t)
	agent := f.user("gil", domain.RoleAgent, domain.ManagerGrants{})
	c := f.customer("hana", agent)
	svc := NewLoanService(f.store)

	in := &CreateLoanInput{
		CustomerID:   c.ID,
		Principal:    dec("2500.50"),
		InterestRate: dec("18"),
		Frequency:    domain.Frequency("weekly"),
		StartDate:    testStart,
	}
	loan, err := svc.Create(f.ctx, actorOf(agent), in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if loan.Status != string(domain.LoanPending) || !loan.OutstandingPrincipal.Equal(loan.Principal) || loan.Frequency != "WEEKLY" {
		t.Errorf("loan = %+v", loan)
	}
	if loan.CreatedByID != agent.ID {
		t.Errorf("created by = %d", loan.CreatedByID)
	}

	active, err := svc.Activate(f.ctx, actorOf(agent), loan.ID)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if active.Status != string(domain.LoanActive) {
		t.Errorf("status = %s", active.Status)
	}
	_, err = svc.Activate(f.ctx, actorOf(agent), loan.ID)
	wantKind(t, err, domain.KindValidation)
}

func TestCreateLoanRejects(t *testing.T) {
	f := newFixture(t)
	agent := f.user("ian", domain.RoleAgent, domain.ManagerGrants{})
	mine := f.customer("jade", agent)
	other := f.customer("kim")
	svc := NewLoanService(f.store)

	base := func() *CreateLoanInput {
		return &CreateLoanInput{CustomerID: mine.ID, Principal: dec("100"), InterestRate: dec("10"), Frequency: domain.FrequencyMonthly, StartDate: testStart}
	}

	tests := []struct {
		name   string
		mutate func(*CreateLoanInput)
		kind   domain.ErrorKind
	}{
		{"zero principal", func(in *CreateLoanInput) { in.Principal = dec("0") }, domain.KindValidation},
		{"three decimals", func(in *CreateLoanInput) { in.Principal = dec("1.005") }, domain.KindValidation},
		{"rate above 100", func(in *CreateLoanInput) { in.InterestRate = dec("101") }, domain.KindValidation},
		{"unknown frequency", func(in *CreateLoanInput) { in.Frequency = "YEARLY" }, domain.KindValidation},
		{"no start date", func(in *CreateLoanInput) { in.StartDate = time.Time{} }, domain.KindValidation},
		{"unassigned customer", func(in *CreateLoanInput) { in.CustomerID = other.ID }, domain.KindAuthorization},
		{"missing customer", func(in *CreateLoanInput) { in.CustomerID = 999 }, domain.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base()
			tt.mutate(in)
			_, err := svc.Create(f.ctx, actorOf(agent), in)
			wantKind(t, err, tt.kind)
		})
	}
}

func TestLoanListScoping(t *testing.T) {
	f := newFixture(t)
	agent := f.user("lara", domain.RoleAgent, domain.ManagerGrants{})
	mine := f.customer("milo", agent)
	other := f.customer("nora")
	f.loan(mine.ID, "100", "100", domain.LoanActive)
	f.loan(mine.ID, "200", "0", domain.LoanClosed)
	f.loan(other.ID, "300", "300", domain.LoanActive)
	svc := NewLoanService(f.store)

	t.Run("admin sees all", func(t *testing.T) {
		_, total, err := svc.List(f.ctx, actorOf(f.admin), repositories.LoanFilter{}, 0, 0)
		if err != nil || total != 3 {
			t.Errorf("total = %d, %v", total, err)
		}
	})
	t.Run("status filter", func(t *testing.T) {
		_, total, err := svc.List(f.ctx, actorOf(f.admin), repositories.LoanFilter{Status: "active"}, 0, 0)
		if err != nil || total != 2 {
			t.Errorf("total = %d, %v", total, err)
		}
	})
	t.Run("agent names an assigned customer", func(t *testing.T) {
		id := mine.ID
		_, total, err := svc.List(f.ctx, actorOf(agent), repositories.LoanFilter{CustomerID: &id}, 0, 0)
		if err != nil || total != 2 {
			t.Errorf("total = %d, %v", total, err)
		}
	})
	t.Run("agent without customer", func(t *testing.T) {
		_, _, err := svc.List(f.ctx, actorOf(agent), repositories.LoanFilter{}, 0, 0)
		wantKind(t, err, domain.KindValidation)
	})
	t.Run("agent on foreign customer", func(t *testing.T) {
		id := other.ID
		_, _, err := svc.List(f.ctx, actorOf(agent), repositories.LoanFilter{CustomerID: &id}, 0, 0)
		wantKind(t, err, domain.KindAuthorization)
	})
	t.Run("customer sees own loans only", func(t *testing.T) {
		owner, _ := f.store.Users().GetByID(f.ctx, other.UserID)
		id := mine.ID
		loans, total, err := svc.List(f.ctx, actorOf(owner), repositories.LoanFilter{CustomerID: &id}, 0, 0)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if total != 1 || loans[0].CustomerID != other.ID {
			t.Errorf("customer listing = %d rows", total)
		}
	})
}

func TestCollectionReads(t *testing.T) {
	f := newFixture(t)
	agent := f.user("omar", domain.RoleAgent, domain.ManagerGrants{})
	c := f.customer("pia", agent)
	loan := f.loan(c.ID, "500", "500", domain.LoanActive)
	res, err := f.mutations(false, nil).PostCollection(f.ctx, &MutationRequest{Actor: actorOf(agent)}, collectionInput(loan.ID, "50", "R-P"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	svc := NewLoanService(f.store)

	list, err := svc.ListCollections(f.ctx, actorOf(agent), loan.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %d, %v", len(list), err)
	}
	got, err := svc.GetCollection(f.ctx, actorOf(agent), res.Collection.ID)
	if err != nil || got.ReceiptNumber != "R-P" {
		t.Fatalf("get = %+v, %v", got, err)
	}

	_, _, err = svc.ListAllCollections(f.ctx, actorOf(agent), 0, 0)
	wantKind(t, err, domain.KindAuthorization)
	_, total, err := svc.ListAllCollections(f.ctx, actorOf(f.admin), 0, 0)
	if err != nil || total != 1 {
		t.Errorf("all collections = %d, %v", total, err)
	}

	stranger := f.user("quin", domain.RoleAgent, domain.ManagerGrants{})
	_, err = svc.GetCollection(f.ctx, actorOf(stranger), res.Collection.ID)
	wantKind(t, err, domain.KindAuthorization)
}
