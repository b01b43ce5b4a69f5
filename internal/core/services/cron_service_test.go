package services

import (
	"testing"

	"loanbook/internal/core/domain"
)

func TestNewCronServiceRejectsBadSpec(t *testing.T) {
	f := newFixture(t)
	audit := NewAuditService(f.store, NewMemoryAuditOutbox(), 3)

	if _, err := NewCronService(audit, NewReconcileService(f.store), nil, CronSchedule{AuditRetry: "every minute", Reconcile: "@daily"}); err == nil {
		t.Error("expected an error for an invalid audit retry spec")
	}
	if _, err := NewCronService(audit, NewReconcileService(f.store), nil, CronSchedule{AuditRetry: "@every 1m", Reconcile: "61 * * * *"}); err == nil {
		t.Error("expected an error for an invalid reconcile spec")
	}
}

func TestCronJobs(t *testing.T) {
	f := newFixture(t)
	c := f.customer("rosa")
	loan := f.loan(c.ID, "100", "100", domain.LoanActive)
	outbox := NewMemoryAuditOutbox()
	audit := NewAuditService(f.store, outbox, 3)

	f.store.SetFailAuditWrites(true)
	if _, err := f.mutations(true, outbox).PostCollection(f.ctx, &MutationRequest{Actor: actorOf(f.admin)}, collectionInput(loan.ID, "10", "R-CRON")); !domain.IsKind(err, domain.KindAuditPersistence) {
		t.Fatalf("post = %v", err)
	}
	f.store.SetFailAuditWrites(false)

	svc, err := NewCronService(audit, NewReconcileService(f.store), NewAuthService(f.store, testAuthConfig()), CronSchedule{AuditRetry: "@every 1m", Reconcile: "0 2 * * *"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if n := len(svc.cron.Entries()); n != 3 {
		t.Errorf("entries = %d, want 3", n)
	}

	svc.retryAudit()
	if n, _ := audit.PendingCount(f.ctx); n != 0 {
		t.Errorf("pending after retry job = %d", n)
	}
	svc.runReconcile()
	svc.purgeTokens()

	svc.Start()
	svc.Stop()
}
