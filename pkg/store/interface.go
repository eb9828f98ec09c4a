package store

import (
	"github.com/prahthana5/LendManager/pkg/models"
)

// Storage defines the owner-scoped persistence contract for loans and their
// repayment ledgers. Every operation is namespaced by owner id; a loan id from
// one owner is not visible to another.
//
// Implementations assign record ids and the created_at/updated_at timestamps
// at write time, so callers never stamp their own clocks into stored records.
// Listings are ordered: loans by creation time descending, repayments by
// payment date descending. Repayments are append-only; there is no update or
// delete for them.
type Storage interface {
	CreateLoan(ownerID string, loan *models.Loan) (string, error)
	GetLoan(ownerID, loanID string) (*models.Loan, error)
	UpdateLoan(ownerID string, loan *models.Loan) error
	ListLoans(ownerID string) ([]*models.Loan, error)

	AddRepayment(ownerID, loanID string, repayment *models.Repayment) (string, error)
	ListRepayments(ownerID, loanID string) ([]*models.Repayment, error)

	Close() error
}
