package services

import (
	"sync"
	"testing"
	"time"

	"loanbook/internal/adapters/persistence/models"
	"loanbook/internal/adapters/persistence/repositories"
	"loanbook/internal/core/domain"

	"github.com/shopspring/decimal"
)

func fixedAccrual(amount string) AccrualFunc {
	return func(l *models.Loan, _ time.Time) Accrual {
		return Accrual{Interest: dec(amount), Periods: l.AccruedPeriods}
	}
}

func collectionInput(loanID uint, amount, receipt string) *PostCollectionInput {
	return &PostCollectionInput{
		LoanID:         loanID,
		Amount:         dec(amount),
		PaymentMethod:  domain.PaymentCash,
		ReceiptNumber:  receipt,
		CollectionDate: testStart.AddDate(0, 1, 0),
	}
}

func post(f *fixture, ledger *LedgerEngine, in *PostCollectionInput) (*PostingResult, error) {
	var res *PostingResult
	err := f.store.Transaction(f.ctx, func(tx repositories.Store) error {
		r, err := ledger.PostCollection(f.ctx, tx, in, actorOf(f.admin))
		res = r
		return err
	})
	return res, err
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		amount, accrued, outstanding string
		interest, principal, excess  string
	}{
		{"300", "200", "10000", "200", "100", "0"},
		{"150", "0", "100", "0", "100", "50"},
		{"100", "0", "100", "0", "100", "0"},
		{"50", "80", "1000", "50", "0", "0"},
		{"10", "-5", "100", "0", "10", "0"},
	}
	for _, tt := range tests {
		interest, principal, excess := Allocate(dec(tt.amount), dec(tt.accrued), dec(tt.outstanding))
		if !interest.Equal(dec(tt.interest)) || !principal.Equal(dec(tt.principal)) || !excess.Equal(dec(tt.excess)) {
			t.Errorf("Allocate(%s, %s, %s) = %s/%s/%s, want %s/%s/%s",
				tt.amount, tt.accrued, tt.outstanding, interest, principal, excess,
				tt.interest, tt.principal, tt.excess)
		}
	}
}

func TestPostCollectionInterestFirst(t *testing.T) {
	f := newFixture(t)
	c := f.customer("alice")
	loan := f.loan(c.ID, "10000", "10000", domain.LoanActive)

	res, err := post(f, NewLedgerEngine(fixedAccrual("200")), collectionInput(loan.ID, "300", "R-A"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}

	if !res.Collection.InterestAmount.Equal(dec("200")) || !res.Collection.PrincipalAmount.Equal(dec("100")) {
		t.Errorf("split = %s interest / %s principal", res.Collection.InterestAmount, res.Collection.PrincipalAmount)
	}
	got, _ := f.store.Loans().GetByID(f.ctx, loan.ID)
	if !got.OutstandingPrincipal.Equal(dec("9900")) {
		t.Errorf("outstanding = %s, want 9900", got.OutstandingPrincipal)
	}
	if got.Status != string(domain.LoanActive) {
		t.Errorf("status = %s, want ACTIVE", got.Status)
	}
	if got.LastPaymentAt == nil {
		t.Error("last payment date not set")
	}
}

func TestPostCollectionOverpaymentChangesNothing(t *testing.T) {
	f := newFixture(t)
	c := f.customer("bob")
	loan := f.loan(c.ID, "100", "100", domain.LoanActive)

	_, err := post(f, NewLedgerEngine(NoAccrual), collectionInput(loan.ID, "150", "R-B"))
	de := wantKind(t, err, domain.KindOverpayment)
	if !de.Excess.Equal(dec("50")) {
		t.Errorf("excess = %s, want 50", de.Excess)
	}

	got, _ := f.store.Loans().GetByID(f.ctx, loan.ID)
	if !got.OutstandingPrincipal.Equal(dec("100")) {
		t.Errorf("outstanding changed to %s", got.OutstandingPrincipal)
	}
	if used, _ := f.store.Collections().ExistsByReceiptNumber(f.ctx, "R-B"); used {
		t.Error("collection was stored")
	}
}

func TestPostCollectionClosesLoan(t *testing.T) {
	f := newFixture(t)
	c := f.customer("carol")
	loan := f.loan(c.ID, "100", "100", domain.LoanActive)

	res, err := post(f, NewLedgerEngine(NoAccrual), collectionInput(loan.ID, "100", "R-C"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if !res.Loan.OutstandingPrincipal.IsZero() || res.Loan.Status != string(domain.LoanClosed) {
		t.Errorf("loan = %s %s, want 0 CLOSED", res.Loan.OutstandingPrincipal, res.Loan.Status)
	}

	_, err = post(f, NewLedgerEngine(NoAccrual), collectionInput(loan.ID, "1", "R-C2"))
	wantKind(t, err, domain.KindValidation)
}

func TestPostCollectionActivatesPendingLoan(t *testing.T) {
	f := newFixture(t)
	c := f.customer("dave")
	loan := f.loan(c.ID, "500", "500", domain.LoanPending)

	res, err := post(f, NewLedgerEngine(NoAccrual), collectionInput(loan.ID, "100", "R-P"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if res.Loan.Status != string(domain.LoanActive) {
		t.Errorf("status = %s, want ACTIVE", res.Loan.Status)
	}
}

func TestPostCollectionRejects(t *testing.T) {
	f := newFixture(t)
	c := f.customer("erin")
	loan := f.loan(c.ID, "1000", "1000", domain.LoanActive)
	ledger := NewLedgerEngine(fixedAccrual("10"))

	if _, err := post(f, ledger, collectionInput(loan.ID, "100", "R-1")); err != nil {
		t.Fatalf("first post: %v", err)
	}

	t.Run("duplicate receipt", func(t *testing.T) {
		_, err := post(f, ledger, collectionInput(loan.ID, "100", "R-1"))
		wantKind(t, err, domain.KindConflict)
	})
	t.Run("three decimals", func(t *testing.T) {
		_, err := post(f, ledger, collectionInput(loan.ID, "10.005", "R-2"))
		wantKind(t, err, domain.KindValidation)
	})
	t.Run("zero amount", func(t *testing.T) {
		_, err := post(f, ledger, collectionInput(loan.ID, "0", "R-3"))
		wantKind(t, err, domain.KindValidation)
	})
	t.Run("unknown method", func(t *testing.T) {
		in := collectionInput(loan.ID, "10", "R-4")
		in.PaymentMethod = "GOLD"
		_, err := post(f, ledger, in)
		wantKind(t, err, domain.KindValidation)
	})
	t.Run("client split disagrees", func(t *testing.T) {
		in := collectionInput(loan.ID, "100", "R-5")
		p := dec("100")
		in.PrincipalAmount = &p
		_, err := post(f, ledger, in)
		de := wantKind(t, err, domain.KindValidation)
		if de.Field != "principal_amount" {
			t.Errorf("field = %q", de.Field)
		}
	})
	t.Run("client split agrees", func(t *testing.T) {
		in := collectionInput(loan.ID, "100", "R-6")
		p, i := dec("90"), dec("10")
		in.PrincipalAmount, in.InterestAmount = &p, &i
		if _, err := post(f, ledger, in); err != nil {
			t.Fatalf("post: %v", err)
		}
	})
	t.Run("missing loan", func(t *testing.T) {
		_, err := post(f, ledger, collectionInput(999, "10", "R-7"))
		wantKind(t, err, domain.KindNotFound)
	})
}

func TestConcurrentPostingsNeverBothSucceed(t *testing.T) {
	f := newFixture(t)
	agent := f.user("agent", domain.RoleAgent, domain.ManagerGrants{})
	c := f.customer("frank", agent)
	loan := f.loan(c.ID, "60", "60", domain.LoanActive)
	svc := f.mutations(false, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := &MutationRequest{Actor: actorOf(agent)}
			_, errs[i] = svc.PostCollection(f.ctx, req, collectionInput(loan.ID, "50", []string{"R-F1", "R-F2"}[i]))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case domain.IsKind(err, domain.KindOverpayment):
			de := wantKind(t, err, domain.KindOverpayment)
			if !de.Excess.Equal(dec("40")) {
				t.Errorf("excess = %s, want 40", de.Excess)
			}
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("%d postings succeeded, want exactly 1", ok)
	}

	got, _ := f.store.Loans().GetByID(f.ctx, loan.ID)
	if !got.OutstandingPrincipal.Equal(dec("10")) {
		t.Errorf("outstanding = %s, want 10", got.OutstandingPrincipal)
	}
}

func TestRepayBorrowing(t *testing.T) {
	f := newFixture(t)
	b := &models.Borrowing{
		LenderName:  "Bank",
		Amount:      dec("1000"),
		Outstanding: dec("1000"),
		TotalRepaid: decimal.Zero,
		Status:      string(domain.BorrowingActive),
		StartDate:   testStart,
	}
	if err := f.store.Borrowings().Create(f.ctx, b); err != nil {
		t.Fatalf("create: %v", err)
	}
	ledger := NewLedgerEngine(nil)

	repay := func(amount string) (*BorrowingResult, error) {
		var res *BorrowingResult
		err := f.store.Transaction(f.ctx, func(tx repositories.Store) error {
			r, err := ledger.RepayBorrowing(f.ctx, tx, b.ID, dec(amount))
			res = r
			return err
		})
		return res, err
	}

	res, err := repay("400")
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if !res.Borrowing.Outstanding.Equal(dec("600")) || !res.Borrowing.TotalRepaid.Equal(dec("400")) {
		t.Errorf("after 400: outstanding %s repaid %s", res.Borrowing.Outstanding, res.Borrowing.TotalRepaid)
	}
	if !res.Before.Outstanding.Equal(dec("1000")) {
		t.Errorf("before snapshot = %s", res.Before.Outstanding)
	}

	_, err = repay("700")
	de := wantKind(t, err, domain.KindOverpayment)
	if !de.Excess.Equal(dec("100")) {
		t.Errorf("excess = %s, want 100", de.Excess)
	}

	res, err = repay("600")
	if err != nil {
		t.Fatalf("final repay: %v", err)
	}
	if res.Borrowing.Status != string(domain.BorrowingClosed) {
		t.Errorf("status = %s, want CLOSED", res.Borrowing.Status)
	}
	if len(CheckBorrowing(res.Borrowing)) != 0 {
		t.Errorf("closed borrowing breaks invariants: %v", CheckBorrowing(res.Borrowing))
	}

	_, err = repay("1")
	wantKind(t, err, domain.KindValidation)
}
