package services

import (
	"testing"

	"loanbook/internal/core/domain"
)

func TestCreateCustomer(t *testing.T) {
	f := newFixture(t)
	manager := f.user("wendy", domain.RoleManager, domain.ManagerGrants{})
	svc := NewCustomerService(f.store)

	in := &CreateCustomerInput{Name: "Xavier", Email: "Xavier@Example.com", Password: "password123", NationalID: " 123 "}
	resp, err := svc.Create(f.ctx, actorOf(manager), in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if resp.KYCStatus != string(domain.KYCPending) || resp.NationalID != "123" || len(resp.AgentIDs) != 0 {
		t.Errorf("customer = %+v", resp.Customer)
	}
	u, err := f.store.Users().GetByID(f.ctx, resp.UserID)
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	if u.Role != string(domain.RoleCustomer) || u.Email != "xavier@example.com" || u.CreatedByID == nil || *u.CreatedByID != manager.ID {
		t.Errorf("user = %+v", u)
	}

	_, err = svc.Create(f.ctx, actorOf(manager), &CreateCustomerInput{Name: "X2", Email: "xavier@example.com", Password: "password123"})
	wantKind(t, err, domain.KindConflict)

	_, err = svc.Create(f.ctx, actorOf(manager), &CreateCustomerInput{Name: "X3", Email: "x3@example.com", Password: "short"})
	wantKind(t, err, domain.KindValidation)
}

func TestAgentSeesOnlyAssignedCustomers(t *testing.T) {
	f := newFixture(t)
	agent := f.user("yuri", domain.RoleAgent, domain.ManagerGrants{})
	mine := f.customer("mine", agent)
	other := f.customer("other")
	svc := NewCustomerService(f.store)

	list, total, err := svc.List(f.ctx, actorOf(agent), "", 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(list) != 1 || list[0].ID != mine.ID {
		t.Errorf("agent listing = %d rows, total %d", len(list), total)
	}

	if _, err := svc.Get(f.ctx, actorOf(agent), mine.ID); err != nil {
		t.Errorf("get assigned: %v", err)
	}
	_, err = svc.Get(f.ctx, actorOf(agent), other.ID)
	de := wantKind(t, err, domain.KindAuthorization)
	if de.Reason != domain.ReasonNotAssigned {
		t.Errorf("reason = %q", de.Reason)
	}

	// deactivating the assignment removes access
	if _, err := svc.SetAssignmentActive(f.ctx, actorOf(f.admin), mine.ID, agent.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err = svc.Get(f.ctx, actorOf(agent), mine.ID)
	wantKind(t, err, domain.KindAuthorization)

	// and reactivating restores it
	if _, err := svc.AssignAgent(f.ctx, actorOf(f.admin), mine.ID, agent.ID); err != nil {
		t.Fatalf("reassign: %v", err)
	}
	got, err := svc.Get(f.ctx, actorOf(agent), mine.ID)
	if err != nil {
		t.Fatalf("get after reassign: %v", err)
	}
	if len(got.AgentIDs) != 1 || got.AgentIDs[0] != agent.ID {
		t.Errorf("agent ids = %v", got.AgentIDs)
	}
}

func TestCustomerReadsOnlyOwnProfile(t *testing.T) {
	f := newFixture(t)
	zoe := f.customer("zoe")
	other := f.customer("adam")
	owner, _ := f.store.Users().GetByID(f.ctx, zoe.UserID)
	svc := NewCustomerService(f.store)

	got, err := svc.GetOwn(f.ctx, actorOf(owner))
	if err != nil {
		t.Fatalf("get own: %v", err)
	}
	if got.ID != zoe.ID {
		t.Errorf("own profile = #%d", got.ID)
	}

	_, err = svc.Get(f.ctx, actorOf(owner), other.ID)
	wantKind(t, err, domain.KindAuthorization)
	_, _, err = svc.List(f.ctx, actorOf(owner), "", 0, 0)
	wantKind(t, err, domain.KindAuthorization)
}

func TestAssignmentRules(t *testing.T) {
	f := newFixture(t)
	c := f.customer("bella")
	notAgent := f.user("carl", domain.RoleManager, domain.ManagerGrants{})
	agent := f.user("dina", domain.RoleAgent, domain.ManagerGrants{})
	svc := NewCustomerService(f.store)

	_, err := svc.AssignAgent(f.ctx, actorOf(f.admin), c.ID, notAgent.ID)
	wantKind(t, err, domain.KindValidation)

	_, err = svc.SetAssignmentActive(f.ctx, actorOf(f.admin), c.ID, agent.ID, false)
	wantKind(t, err, domain.KindNotFound)

	_, err = svc.AssignAgent(f.ctx, actorOf(agent), c.ID, agent.ID)
	wantKind(t, err, domain.KindAuthorization)

	_, err = svc.AssignAgent(f.ctx, actorOf(f.admin), 999, agent.ID)
	wantKind(t, err, domain.KindNotFound)
}

func TestUpdateKYC(t *testing.T) {
	f := newFixture(t)
	agent := f.user("eve", domain.RoleAgent, domain.ManagerGrants{})
	c := f.customer("fred", agent)
	svc := NewCustomerService(f.store)

	got, err := svc.UpdateKYC(f.ctx, actorOf(agent), c.ID, domain.KYCRejected)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.KYCStatus != string(domain.KYCRejected) {
		t.Errorf("kyc = %s", got.KYCStatus)
	}

	_, err = svc.UpdateKYC(f.ctx, actorOf(agent), c.ID, domain.KYCStatus("MAYBE"))
	wantKind(t, err, domain.KindValidation)
}
