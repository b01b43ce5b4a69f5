package services

import (
	"fmt"
	"strings"
	"testing"

	"loanbook/internal/adapters/persistence/models"
	"loanbook/internal/core/domain"
)

func TestCheckLoan(t *testing.T) {
	collection := func(amount, principal, interest string) *models.Collection {
		return &models.Collection{ID: 7, Amount: dec(amount), PrincipalAmount: dec(principal), InterestAmount: dec(interest)}
	}

	tests := []struct {
		name        string
		outstanding string
		status      domain.LoanStatus
		collections []*models.Collection
		want        []string
	}{
		{"fresh", "1000", domain.LoanPending, nil, nil},
		{"paid down", "700", domain.LoanActive, []*models.Collection{collection("350", "300", "50")}, nil},
		{"closed", "0", domain.LoanClosed, []*models.Collection{collection("1000", "1000", "0")}, nil},
		{"closed with balance", "100", domain.LoanClosed, []*models.Collection{collection("900", "900", "0")}, []string{"status CLOSED"}},
		{"zero but active", "0", domain.LoanActive, []*models.Collection{collection("1000", "1000", "0")}, []string{"status ACTIVE"}},
		{"split mismatch", "800", domain.LoanActive, []*models.Collection{collection("250", "200", "40")}, []string{"collection #7"}},
		{"balance drift", "650", domain.LoanActive, []*models.Collection{collection("300", "300", "0")}, []string{"collections leave 700.00"}},
		{"above principal", "1200", domain.LoanActive, nil, []string{"outside", "collections leave"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loan := &models.Loan{ID: 1, Principal: dec("1000"), OutstandingPrincipal: dec(tt.outstanding), Status: string(tt.status)}
			got := CheckLoan(loan, tt.collections)
			if len(got) != len(tt.want) {
				t.Fatalf("violations = %q, want %d", got, len(tt.want))
			}
			for i, w := range tt.want {
				if !strings.Contains(got[i], w) {
					t.Errorf("violation %d = %q, want it to mention %q", i, got[i], w)
				}
			}
		})
	}
}

func TestCheckBorrowing(t *testing.T) {
	ok := &models.Borrowing{ID: 1, Amount: dec("500"), Outstanding: dec("200"), TotalRepaid: dec("300"), Status: string(domain.BorrowingActive)}
	if v := CheckBorrowing(ok); len(v) != 0 {
		t.Errorf("healthy borrowing: %q", v)
	}

	drift := &models.Borrowing{ID: 2, Amount: dec("500"), Outstanding: dec("250"), TotalRepaid: dec("300"), Status: string(domain.BorrowingActive)}
	if v := CheckBorrowing(drift); len(v) != 1 {
		t.Errorf("drifted borrowing: %q", v)
	}

	closed := &models.Borrowing{ID: 3, Amount: dec("500"), Outstanding: dec("100"), TotalRepaid: dec("400"), Status: string(domain.BorrowingClosed)}
	if v := CheckBorrowing(closed); len(v) != 1 || !strings.Contains(v[0], "closed") {
		t.Errorf("closed borrowing: %q", v)
	}
}

func TestReconcileRun(t *testing.T) {
	f := newFixture(t)
	c := f.customer("quinn")
	healthy := f.loan(c.ID, "1000", "1000", domain.LoanActive)
	if _, err := f.mutations(false, nil).PostCollection(f.ctx, &MutationRequest{Actor: actorOf(f.admin)}, collectionInput(healthy.ID, "400", "R-Q1")); err != nil {
		t.Fatalf("post: %v", err)
	}
	broken := f.loan(c.ID, "1000", "500", domain.LoanActive)

	b := &models.Borrowing{
		LenderName:   "Bank",
		Amount:       dec("300"),
		InterestRate: dec("5"),
		StartDate:    testStart,
		Status:       string(domain.BorrowingActive),
		Outstanding:  dec("300"),
		TotalRepaid:  dec("0"),
		CreatedByID:  f.admin.ID,
	}
	if err := f.store.Borrowings().Create(f.ctx, b); err != nil {
		t.Fatalf("create borrowing: %v", err)
	}

	report, err := NewReconcileService(f.store).Run(f.ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.LoansChecked != 2 || report.BorrowingsChecked != 1 {
		t.Errorf("checked %d loans, %d borrowings", report.LoansChecked, report.BorrowingsChecked)
	}
	if len(report.Violations) != 1 || !strings.Contains(report.Violations[0], fmt.Sprintf("loan #%d ", broken.ID)) {
		t.Errorf("violations = %q", report.Violations)
	}
}
