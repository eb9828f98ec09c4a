package models

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InterestType selects how interest accrues on a loan.
type InterestType string

const (
	InterestSimple   InterestType = "SIMPLE"
	InterestCompound InterestType = "COMPOUND"
)

// PaymentFrequency is the expected repayment schedule. FLOATING means no
// schedule at all, so such loans are never considered delayed.
type PaymentFrequency string

const (
	FrequencyWeekly   PaymentFrequency = "WEEKLY"
	FrequencyBiweekly PaymentFrequency = "BIWEEKLY"
	FrequencyMonthly  PaymentFrequency = "MONTHLY"
	FrequencyFloating PaymentFrequency = "FLOATING"
)

// LoanStatus transitions one way, ACTIVE to CLOSED, and is never reversed.
type LoanStatus string

const (
	StatusActive LoanStatus = "ACTIVE"
	StatusClosed LoanStatus = "CLOSED"
)

var (
	ErrLoanNotFound = errors.New("loan not found")
	ErrValidation   = errors.New("invalid input")
)

// Loan is a single lent amount tracked per owner. BorrowerName is a
// denormalized label, not a reference to a borrower record; it is the only
// grouping key for per-borrower views. InterestRate is percent per month.
type Loan struct {
	ID               string           `json:"id"`
	OwnerID          string           `json:"owner_id"`
	BorrowerName     string           `json:"borrower_name"`
	Principal        decimal.Decimal  `json:"principal"`
	InterestRate     decimal.Decimal  `json:"interest_rate"`
	InterestType     InterestType     `json:"interest_type"`
	PaymentFrequency PaymentFrequency `json:"payment_frequency"`
	StartDate        time.Time        `json:"start_date"`
	Status           LoanStatus       `json:"status"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Repayment is one entry in a loan's append-only ledger. Date is the
// user-supplied payment date used for accounting and ordering; CreatedAt is
// when the record was written and plays no part in any calculation.
type Repayment struct {
	ID        string          `json:"id"`
	LoanID    string          `json:"loan_id"`
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
	Remarks   string          `json:"remarks,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// LoanWithRepayments is a loan together with its full repayment ledger, the
// unit every snapshot and aggregation is computed from.
type LoanWithRepayments struct {
	Loan
	Repayments []*Repayment `json:"repayments"`
}

// LoanSnapshot is the derived financial state of a loan at one instant. It is
// never persisted: interest accrues continuously relative to the evaluation
// time, so two snapshots of the same loan taken at different instants differ.
type LoanSnapshot struct {
	Principal        decimal.Decimal `json:"principal"`
	TotalRepaid      decimal.Decimal `json:"total_repaid"`
	InterestAccrued  decimal.Decimal `json:"interest_accrued"`
	TotalDue         decimal.Decimal `json:"total_due"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	IsDelayed        bool            `json:"is_delayed"`
}

// ParseAmount decodes a stored numeric field. Malformed text is coerced to
// zero rather than rejected: stored documents predate input validation, and
// downstream accounting relies on the zero fallback.
func ParseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
