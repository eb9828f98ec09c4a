package ledger

import (
	"math"
	"time"

	"github.com/prahthana5/LendManager/pkg/models"
	"github.com/shopspring/decimal"
)

// delinquencyTolerance absorbs rounding noise when comparing cumulative
// repayments against the expected schedule. Fixed at one currency unit;
// existing loans were flagged against this value, so changing it needs a
// migration note.
var delinquencyTolerance = decimal.NewFromInt(1)

// ComputeSnapshot derives the point-in-time financial state of a loan from
// its terms and full repayment history. It is pure: no I/O, no mutation of
// inputs, and the evaluation time is an explicit parameter, so production
// callers pass the current time while tests pass fixed instants. The order of
// the repayments slice does not affect the result.
//
// Repayments are applied interest-first in the aggregate only: cumulative
// repaid is compared against cumulative expected interest, without splitting
// any individual payment between interest and principal. A large early
// repayment can therefore mask later missed periods until the shortfall
// reaccumulates past it.
func ComputeSnapshot(loan *models.Loan, repayments []*models.Repayment, now time.Time) models.LoanSnapshot {
	totalRepaid := decimal.Zero
	for _, r := range repayments {
		totalRepaid = totalRepaid.Add(r.Amount)
	}

	principal := loan.Principal.InexactFloat64()
	rate := loan.InterestRate.InexactFloat64() / 100
	elapsed := monthsBetween(now, loan.StartDate)

	var interestAccrued decimal.Decimal
	if loan.InterestType == models.InterestCompound {
		// A = P(1 + r)^t, interest is A - P
		interestAccrued = decimal.NewFromFloat(principal*math.Pow(1+rate, elapsed) - principal)
	} else {
		interestAccrued = decimal.NewFromFloat(principal * rate * elapsed)
	}

	totalDue := loan.Principal.Add(interestAccrued)
	remainingBalance := totalDue.Sub(totalRepaid)

	// Delinquency: has the borrower kept up with interest-only payments for
	// the completed periods of their schedule? CLOSED loans and loans with no
	// schedule (FLOATING) are never delayed.
	isDelayed := false
	if loan.Status == models.StatusActive && loan.PaymentFrequency != models.FrequencyFloating {
		var periodsElapsed int
		var interestPerPeriod float64

		switch loan.PaymentFrequency {
		case models.FrequencyWeekly:
			periodsElapsed = daysBetween(now, loan.StartDate) / 7
			interestPerPeriod = principal * rate / 4
		case models.FrequencyBiweekly:
			periodsElapsed = daysBetween(now, loan.StartDate) / 14
			interestPerPeriod = principal * rate / 2
		default: // MONTHLY
			periodsElapsed = wholeMonthsBetween(now, loan.StartDate)
			interestPerPeriod = principal * rate
		}

		expectedRepayment := decimal.NewFromFloat(float64(periodsElapsed) * interestPerPeriod)
		isDelayed = totalRepaid.LessThan(expectedRepayment.Sub(delinquencyTolerance))
	}

	return models.LoanSnapshot{
		Principal:        loan.Principal,
		TotalRepaid:      totalRepaid,
		InterestAccrued:  interestAccrued,
		TotalDue:         totalDue,
		RemainingBalance: remainingBalance,
		IsDelayed:        isDelayed,
	}
}

// monthsBetween approximates the months elapsed from start to now as whole
// calendar months plus a (total days mod 30)/30 remainder. The 30-day divisor
// is deliberately not calendar-exact: it is the established accounting
// behavior, and stored balances were quoted against it. A calendar-exact
// replacement would swap this one function, not its callers.
func monthsBetween(now, start time.Time) float64 {
	return float64(wholeMonthsBetween(now, start)) + float64(daysBetween(now, start)%30)/30
}

// wholeMonthsBetween counts full calendar months from start to now.
func wholeMonthsBetween(now, start time.Time) int {
	months := (now.Year()-start.Year())*12 + int(now.Month()) - int(start.Month())
	if now.Day() < start.Day() {
		months--
	}
	return months
}

// daysBetween counts full 24-hour periods from start to now.
func daysBetween(now, start time.Time) int {
	return int(now.Sub(start).Hours() / 24)
}
