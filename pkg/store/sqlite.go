package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/prahthana5/LendManager/pkg/models"
)

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore and initializes the database.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	// Manually enable foreign keys and WAL mode
	_, err = db.Exec("PRAGMA foreign_keys = ON;")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	_, err = db.Exec("PRAGMA journal_mode = WAL;")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	log.Println("Database connection established and schema initialized.")
	return s, nil
}

// initSchema creates the database tables if they don't already exist.
// We use TEXT for decimal fields in SQLite to ensure no precision is lost.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		borrower_name TEXT NOT NULL,
		principal TEXT NOT NULL,
		interest_rate TEXT NOT NULL,
		interest_type TEXT NOT NULL,
		payment_frequency TEXT NOT NULL,
		start_date DATETIME NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_loans_owner ON loans(owner_id);
	CREATE TABLE IF NOT EXISTS repayments (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		loan_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		date DATETIME NOT NULL,
		remarks TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY(loan_id) REFERENCES loans(id)
	);
	CREATE INDEX IF NOT EXISTS idx_repayments_loan ON repayments(owner_id, loan_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateLoan inserts a new loan, assigning its id and timestamps. The
// assigned values are written back into the supplied loan.
func (s *SQLiteStore) CreateLoan(ownerID string, loan *models.Loan) (string, error) {
	now := time.Now()
	loan.ID = uuid.New().String()
	loan.OwnerID = ownerID
	loan.CreatedAt = now
	loan.UpdatedAt = now

	_, err := s.db.Exec(
		`INSERT INTO loans (id, owner_id, borrower_name, principal, interest_rate, interest_type, payment_frequency, start_date, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID, loan.OwnerID, loan.BorrowerName, loan.Principal, loan.InterestRate, string(loan.InterestType), string(loan.PaymentFrequency), loan.StartDate, string(loan.Status), loan.CreatedAt, loan.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create loan: %w", err)
	}
	return loan.ID, nil
}

// GetLoan retrieves a loan by its ID within an owner's namespace.
func (s *SQLiteStore) GetLoan(ownerID, loanID string) (*models.Loan, error) {
	row := s.db.QueryRow(
		`SELECT id, owner_id, borrower_name, principal, interest_rate, interest_type, payment_frequency, start_date, status, created_at, updated_at
		FROM loans WHERE owner_id = ? AND id = ?`, ownerID, loanID)

	loan, err := scanLoan(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrLoanNotFound
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

// UpdateLoan overwrites a loan's stored fields and bumps updated_at. The new
// updated_at is written back into the supplied loan.
func (s *SQLiteStore) UpdateLoan(ownerID string, loan *models.Loan) error {
	loan.UpdatedAt = time.Now()
	result, err := s.db.Exec(
		`UPDATE loans SET borrower_name = ?, principal = ?, interest_rate = ?, interest_type = ?, payment_frequency = ?, start_date = ?, status = ?, updated_at = ?
		WHERE owner_id = ? AND id = ?`,
		loan.BorrowerName, loan.Principal, loan.InterestRate, string(loan.InterestType), string(loan.PaymentFrequency), loan.StartDate, string(loan.Status), loan.UpdatedAt, ownerID, loan.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.ErrLoanNotFound
	}
	return nil
}

// ListLoans retrieves all loans for an owner, newest first.
func (s *SQLiteStore) ListLoans(ownerID string) ([]*models.Loan, error) {
	rows, err := s.db.Query(
		`SELECT id, owner_id, borrower_name, principal, interest_rate, interest_type, payment_frequency, start_date, status, created_at, updated_at
		FROM loans WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	var loans []*models.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return loans, nil
}

// scannable covers both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...interface{}) error
}

// scanLoan reads one loan row. Numeric columns are scanned as text and decoded
// through models.ParseAmount, so malformed stored values become zero instead
// of failing the read.
func scanLoan(row scannable) (*models.Loan, error) {
	var loan models.Loan
	var principal, rate, interestType, frequency, status string
	err := row.Scan(&loan.ID, &loan.OwnerID, &loan.BorrowerName, &principal, &rate, &interestType, &frequency, &loan.StartDate, &status, &loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		return nil, err
	}
	loan.Principal = models.ParseAmount(principal)
	loan.InterestRate = models.ParseAmount(rate)
	loan.InterestType = models.InterestType(interestType)
	loan.PaymentFrequency = models.PaymentFrequency(frequency)
	loan.Status = models.LoanStatus(status)
	return &loan, nil
}

// AddRepayment appends a repayment under a loan, assigning its id and
// creation timestamp. The assigned values are written back into the supplied
// repayment.
func (s *SQLiteStore) AddRepayment(ownerID, loanID string, repayment *models.Repayment) (string, error) {
	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM loans WHERE owner_id = ? AND id = ?`, ownerID, loanID).Scan(&exists)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", models.ErrLoanNotFound
		}
		return "", fmt.Errorf("failed to check loan: %w", err)
	}

	repayment.ID = uuid.New().String()
	repayment.LoanID = loanID
	repayment.CreatedAt = time.Now()

	_, err = s.db.Exec(
		`INSERT INTO repayments (id, owner_id, loan_id, amount, date, remarks, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		repayment.ID, ownerID, repayment.LoanID, repayment.Amount, repayment.Date, repayment.Remarks, repayment.CreatedAt,
	)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		// Loan row vanished between the check and the insert.
		return "", models.ErrLoanNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to create repayment: %w", err)
	}
	return repayment.ID, nil
}

// ListRepayments retrieves all repayments for a loan, newest payment date
// first.
func (s *SQLiteStore) ListRepayments(ownerID, loanID string) ([]*models.Repayment, error) {
	rows, err := s.db.Query(
		`SELECT id, loan_id, amount, date, remarks, created_at
		FROM repayments WHERE owner_id = ? AND loan_id = ? ORDER BY date DESC`, ownerID, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list repayments for loan %s: %w", loanID, err)
	}
	defer rows.Close()

	var repayments []*models.Repayment
	for rows.Next() {
		var repayment models.Repayment
		var amount string
		if err := rows.Scan(&repayment.ID, &repayment.LoanID, &amount, &repayment.Date, &repayment.Remarks, &repayment.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan repayment row: %w", err)
		}
		repayment.Amount = models.ParseAmount(amount)
		repayments = append(repayments, &repayment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return repayments, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
