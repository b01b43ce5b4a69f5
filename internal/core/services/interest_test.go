package services

import (
	"fmt"
	"testing"
	"time"

	"loanbook/internal/adapters/persistence/models"
	"loanbook/internal/core/domain"

	"github.com/shopspring/decimal"
)

func TestSimpleInterestAccrual(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name        string
		outstanding string
		rate        string
		freq        domain.Frequency
		charged     int
		arrears     string
		asOf        time.Time
		want        string
		wantPeriods int
	}{
		{"two months", "1200", "12", domain.FrequencyMonthly, 0, "0", day(2024, 3, 1), "24", 2},
		{"partial month", "1200", "12", domain.FrequencyMonthly, 0, "0", day(2024, 1, 31), "0", 0},
		{"one month already charged", "1200", "12", domain.FrequencyMonthly, 1, "0", day(2024, 3, 15), "12", 2},
		{"nothing new to charge", "1200", "12", domain.FrequencyMonthly, 2, "0", day(2024, 3, 15), "0", 2},
		{"arrears carried", "1200", "12", domain.FrequencyMonthly, 1, "5", day(2024, 3, 15), "17", 2},
		{"arrears only", "1200", "12", domain.FrequencyMonthly, 2, "5", day(2024, 3, 15), "5", 2},
		{"two weeks", "5200", "10", domain.FrequencyWeekly, 0, "0", day(2024, 1, 15), "20", 2},
		{"one biweek", "2600", "10", domain.FrequencyBiweekly, 0, "0", day(2024, 1, 20), "10", 1},
		{"daily rounds", "1000", "10", domain.FrequencyDaily, 0, "0", day(2024, 1, 4), "0.82", 3},
		{"zero rate", "1000", "0", domain.FrequencyMonthly, 0, "0", day(2025, 1, 1), "0", 0},
		{"nothing outstanding", "0", "12", domain.FrequencyMonthly, 0, "0", day(2025, 1, 1), "0", 0},
		{"date before start", "1000", "12", domain.FrequencyMonthly, 0, "0", day(2023, 6, 1), "0", 0},
		{"unknown frequency", "1000", "12", domain.Frequency("YEARLY"), 0, "0", day(2025, 1, 1), "0", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loan := &models.Loan{
				OutstandingPrincipal: dec(tt.outstanding),
				InterestRate:         dec(tt.rate),
				Frequency:            string(tt.freq),
				StartDate:            testStart,
				AccruedPeriods:       tt.charged,
				InterestArrears:      dec(tt.arrears),
			}
			got := SimpleInterestAccrual(loan, tt.asOf)
			if !got.Interest.Equal(dec(tt.want)) {
				t.Errorf("accrued = %s, want %s", got.Interest, tt.want)
			}
			if got.Periods != tt.wantPeriods {
				t.Errorf("periods = %d, want %d", got.Periods, tt.wantPeriods)
			}
		})
	}
}

func TestElapsedMonthsAtMonthEnd(t *testing.T) {
	from := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	if n := elapsedPeriods(domain.FrequencyMonthly, from, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)); n != 0 {
		t.Errorf("Jan 31 to Feb 29 = %d periods, want 0", n)
	}
	if n := elapsedPeriods(domain.FrequencyMonthly, from, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)); n != 2 {
		t.Errorf("Jan 31 to Mar 31 = %d periods, want 2", n)
	}
}

func TestNoAccrual(t *testing.T) {
	loan := &models.Loan{OutstandingPrincipal: decimal.NewFromInt(100), InterestRate: decimal.NewFromInt(50)}
	if got := NoAccrual(loan, testStart.AddDate(5, 0, 0)); !got.Interest.IsZero() || got.Periods != 0 {
		t.Errorf("NoAccrual = %+v", got)
	}
}

// Paying more often than the repayment period must not skip interest: each
// month is charged once, and the part a payment does not cover is carried.
func TestFrequentPaymentsStillAccrueInterest(t *testing.T) {
	f := newFixture(t)
	c := f.customer("paula")
	loan := f.loan(c.ID, "10000", "10000", domain.LoanActive)
	ledger := NewLedgerEngine(SimpleInterestAccrual)

	interestPaid := decimal.Zero
	for i := 0; i < 12; i++ {
		in := collectionInput(loan.ID, "50", fmt.Sprintf("R-FREQ-%d", i))
		in.CollectionDate = testStart.AddDate(0, 0, 50+25*i)
		res, err := post(f, ledger, in)
		if err != nil {
			t.Fatalf("posting %d: %v", i, err)
		}
		interestPaid = interestPaid.Add(res.Collection.InterestAmount)
	}

	got, _ := f.store.Loans().GetByID(f.ctx, loan.ID)
	// ten months at 1% of 10000, every payment fully absorbed by interest
	if !interestPaid.Equal(dec("600")) {
		t.Errorf("interest paid = %s, want 600", interestPaid)
	}
	if !got.InterestArrears.Equal(dec("400")) {
		t.Errorf("arrears = %s, want 400", got.InterestArrears)
	}
	if got.AccruedPeriods != 10 {
		t.Errorf("accrued periods = %d, want 10", got.AccruedPeriods)
	}
	if !got.OutstandingPrincipal.Equal(dec("10000")) {
		t.Errorf("outstanding = %s, want 10000", got.OutstandingPrincipal)
	}
}
