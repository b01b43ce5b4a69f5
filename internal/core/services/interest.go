package services

import (
	"time"

	"loanbook/internal/adapters/persistence/models"
	"loanbook/internal/core/domain"

	"github.com/shopspring/decimal"
)

// Accrual is the interest owed on a loan at a date. Periods is the number of
// repayment periods since the start date that the interest covers; the ledger
// stores it on the loan so the next accrual only charges newer periods.
type Accrual struct {
	Interest decimal.Decimal
	Periods  int
}

// AccrualFunc returns the interest owed on a loan as of a date. It must be
// pure: the ledger calls it inside the posting transaction.
type AccrualFunc func(loan *models.Loan, asOf time.Time) Accrual

var hundred = decimal.NewFromInt(100)

// SimpleInterestAccrual charges simple interest on the current outstanding
// principal for each full repayment period since the start date that has not
// been charged yet, plus interest charged earlier and still unpaid.
// InterestRate is an annual percentage.
func SimpleInterestAccrual(loan *models.Loan, asOf time.Time) Accrual {
	owed := Accrual{Interest: loan.InterestArrears, Periods: loan.AccruedPeriods}

	f := domain.Frequency(loan.Frequency)
	ppy := f.PeriodsPerYear()
	if ppy == 0 || loan.OutstandingPrincipal.Sign() <= 0 || loan.InterestRate.Sign() <= 0 {
		return owed
	}

	elapsed := elapsedPeriods(f, loan.StartDate, asOf)
	fresh := elapsed - loan.AccruedPeriods
	if fresh <= 0 {
		return owed
	}

	interest := loan.OutstandingPrincipal.
		Mul(loan.InterestRate).
		Div(hundred).
		Div(decimal.NewFromInt(int64(ppy))).
		Mul(decimal.NewFromInt(int64(fresh))).
		Round(2)
	return Accrual{Interest: owed.Interest.Add(interest), Periods: elapsed}
}

// elapsedPeriods counts complete periods between from and to
func elapsedPeriods(f domain.Frequency, from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	days := int(to.Sub(from).Hours() / 24)

	switch f {
	case domain.FrequencyDaily:
		return days
	case domain.FrequencyWeekly:
		return days / 7
	case domain.FrequencyBiweekly:
		return days / 14
	case domain.FrequencyMonthly:
		months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
		if from.AddDate(0, months, 0).After(to) {
			months--
		}
		return months
	}
	return 0
}

// NoAccrual never charges interest
func NoAccrual(loan *models.Loan, _ time.Time) Accrual {
	return Accrual{Interest: decimal.Zero, Periods: loan.AccruedPeriods}
}
