package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/prahthana5/LendManager/pkg/models"
	"github.com/prahthana5/LendManager/pkg/store"
)

// Ledger handles the business logic for loans and their repayment ledgers.
type Ledger struct {
	storage store.Storage // Use the Storage interface
	now     func() time.Time
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage) *Ledger {
	return &Ledger{
		storage: s,
		now:     time.Now,
	}
}

// Now reports the ledger's evaluation clock. Snapshots and aggregations taken
// through the ledger use this instant.
func (l *Ledger) Now() time.Time {
	return l.now()
}

// validateTerms checks the user-editable fields of a loan.
func validateTerms(loan *models.Loan) error {
	if loan.BorrowerName == "" {
		return fmt.Errorf("%w: borrower name is required", models.ErrValidation)
	}
	if loan.Principal.IsNegative() {
		return fmt.Errorf("%w: principal must not be negative", models.ErrValidation)
	}
	if loan.InterestRate.IsNegative() {
		return fmt.Errorf("%w: interest rate must not be negative", models.ErrValidation)
	}
	if loan.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", models.ErrValidation)
	}
	return nil
}

// CreateLoan validates the supplied terms and persists a new ACTIVE loan for
// the owner. The store assigns the id and timestamps; missing interest type
// and payment frequency fall back to SIMPLE and MONTHLY.
func (l *Ledger) CreateLoan(ownerID string, loan *models.Loan) (*models.Loan, error) {
	if err := validateTerms(loan); err != nil {
		return nil, err
	}
	if loan.InterestType == "" {
		loan.InterestType = models.InterestSimple
	}
	if loan.PaymentFrequency == "" {
		loan.PaymentFrequency = models.FrequencyMonthly
	}
	loan.OwnerID = ownerID
	loan.Status = models.StatusActive

	if _, err := l.storage.CreateLoan(ownerID, loan); err != nil {
		return nil, fmt.Errorf("failed to store loan: %w", err)
	}
	return loan, nil
}

// UpdateLoan overwrites a loan's editable terms. Status is not among them;
// the only path to CLOSED is CloseLoan.
//
// NOTE: a CLOSED loan can still be edited here. This mirrors the reference
// behavior and may be a policy gap; guarding it would be a behavior change,
// not a refactor.
func (l *Ledger) UpdateLoan(ownerID, loanID string, terms *models.Loan) (*models.Loan, error) {
	if err := validateTerms(terms); err != nil {
		return nil, err
	}
	loan, err := l.storage.GetLoan(ownerID, loanID)
	if err != nil {
		return nil, err
	}

	loan.BorrowerName = terms.BorrowerName
	loan.Principal = terms.Principal
	loan.InterestRate = terms.InterestRate
	loan.InterestType = terms.InterestType
	loan.PaymentFrequency = terms.PaymentFrequency
	loan.StartDate = terms.StartDate

	if err := l.storage.UpdateLoan(ownerID, loan); err != nil {
		return nil, fmt.Errorf("failed to update loan: %w", err)
	}
	return loan, nil
}

// AddRepayment appends a repayment to a loan's ledger. Repayments are never
// edited or deleted afterwards.
//
// NOTE: loan status is not checked, so repayments can land on CLOSED loans.
// Mirrors the reference behavior; candidate policy gap, same caveat as
// UpdateLoan.
func (l *Ledger) AddRepayment(ownerID, loanID string, repayment *models.Repayment) (*models.Repayment, error) {
	if !repayment.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: repayment amount must be positive", models.ErrValidation)
	}
	if repayment.Date.IsZero() {
		return nil, fmt.Errorf("%w: repayment date is required", models.ErrValidation)
	}
	if _, err := l.storage.AddRepayment(ownerID, loanID, repayment); err != nil {
		return nil, err
	}
	return repayment, nil
}

// CloseLoan transitions a loan to CLOSED, optionally recording one final
// repayment first. The two writes are sequential, not atomic: if the process
// dies between them, the loan stays ACTIVE with the final repayment already
// recorded, and a retry without the final payload completes the transition.
// Closing an already-CLOSED loan re-applies the transition and leaves the
// repayment ledger untouched.
func (l *Ledger) CloseLoan(ownerID, loanID string, final *models.Repayment) (*models.Loan, error) {
	loan, err := l.storage.GetLoan(ownerID, loanID)
	if err != nil {
		return nil, err
	}

	if final != nil && final.Amount.IsPositive() {
		if _, err := l.AddRepayment(ownerID, loanID, final); err != nil {
			return nil, err
		}
	}

	loan.Status = models.StatusClosed
	if err := l.storage.UpdateLoan(ownerID, loan); err != nil {
		return nil, fmt.Errorf("failed to close loan: %w", err)
	}
	return loan, nil
}

// GetLoanWithRepayments loads one loan together with its full repayment
// ledger.
func (l *Ledger) GetLoanWithRepayments(ownerID, loanID string) (*models.LoanWithRepayments, error) {
	loan, err := l.storage.GetLoan(ownerID, loanID)
	if err != nil {
		return nil, err
	}
	repayments, err := l.storage.ListRepayments(ownerID, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list repayments: %w", err)
	}
	return &models.LoanWithRepayments{Loan: *loan, Repayments: repayments}, nil
}

// GetAllLoansWithRepayments loads every loan for an owner together with its
// full repayment ledger. The per-loan repayment reads are independent and run
// concurrently; any single failure fails the whole fetch, so callers never
// observe a partial view.
func (l *Ledger) GetAllLoansWithRepayments(ownerID string) ([]*models.LoanWithRepayments, error) {
	loans, err := l.storage.ListLoans(ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}

	out := make([]*models.LoanWithRepayments, len(loans))
	errs := make(chan error, len(loans))
	var wg sync.WaitGroup
	for i, loan := range loans {
		wg.Add(1)
		go func(i int, loan *models.Loan) {
			defer wg.Done()
			repayments, err := l.storage.ListRepayments(ownerID, loan.ID)
			if err != nil {
				errs <- fmt.Errorf("failed to list repayments for loan %s: %w", loan.ID, err)
				return
			}
			out[i] = &models.LoanWithRepayments{Loan: *loan, Repayments: repayments}
		}(i, loan)
	}
	wg.Wait()
	close(errs)
	if err := <-errs; err != nil {
		return nil, err
	}
	return out, nil
}

// Snapshot computes a loan's financial state as of the ledger clock.
func (l *Ledger) Snapshot(loan *models.Loan, repayments []*models.Repayment) models.LoanSnapshot {
	return ComputeSnapshot(loan, repayments, l.now())
}
