package main

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gorilla/mux"
	"github.com/prahthana5/LendManager/pkg/ledger"
	"github.com/prahthana5/LendManager/pkg/models"
	"github.com/prahthana5/LendManager/pkg/store"
	"github.com/shopspring/decimal"
)

// Config is read from the environment at startup.
type Config struct {
	Addr   string `env:"ADDR" envDefault:":8080"`
	DBPath string `env:"DB_PATH" envDefault:"lendmanager.db"`
}

// Server holds the ledger instance.
type Server struct {
	ledger  *ledger.Ledger
	storage store.Storage // Keep a reference to the storage to close it
}

func NewServer(s store.Storage) *Server {
	return &Server{
		ledger:  ledger.NewLedger(s),
		storage: s,
	}
}

type loanRequest struct {
	BorrowerName     string                  `json:"borrower_name"`
	Principal        decimal.Decimal         `json:"principal"`
	InterestRate     decimal.Decimal         `json:"interest_rate"`
	InterestType     models.InterestType     `json:"interest_type"`
	PaymentFrequency models.PaymentFrequency `json:"payment_frequency"`
	StartDate        time.Time               `json:"start_date"`
}

func (r loanRequest) toLoan() *models.Loan {
	return &models.Loan{
		BorrowerName:     r.BorrowerName,
		Principal:        r.Principal,
		InterestRate:     r.InterestRate,
		InterestType:     r.InterestType,
		PaymentFrequency: r.PaymentFrequency,
		StartDate:        r.StartDate,
	}
}

type repaymentRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	Date    time.Time       `json:"date"`
	Remarks string          `json:"remarks"`
}

func (r repaymentRequest) toRepayment() *models.Repayment {
	return &models.Repayment{
		Amount:  r.Amount,
		Date:    r.Date,
		Remarks: r.Remarks,
	}
}

// loanResponse is a loan with its repayments and a snapshot computed at
// request time.
type loanResponse struct {
	*models.LoanWithRepayments
	Snapshot models.LoanSnapshot `json:"snapshot"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrLoanNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	ownerID := mux.Vars(r)["ownerID"]

	var req loanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	loan, err := s.ledger.CreateLoan(ownerID, req.toLoan())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	ownerID := mux.Vars(r)["ownerID"]

	loans, err := s.ledger.GetAllLoansWithRepayments(ownerID)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]loanResponse, 0, len(loans))
	for _, loan := range loans {
		out = append(out, loanResponse{
			LoanWithRepayments: loan,
			Snapshot:           s.ledger.Snapshot(&loan.Loan, loan.Repayments),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	loan, err := s.ledger.GetLoanWithRepayments(vars["ownerID"], vars["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loanResponse{
		LoanWithRepayments: loan,
		Snapshot:           s.ledger.Snapshot(&loan.Loan, loan.Repayments),
	})
}

func (s *Server) updateLoanHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req loanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	loan, err := s.ledger.UpdateLoan(vars["ownerID"], vars["id"], req.toLoan())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) addRepaymentHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req repaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	repayment, err := s.ledger.AddRepayment(vars["ownerID"], vars["id"], req.toRepayment())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, repayment)
}

func (s *Server) closeLoanHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	// The final repayment is optional; an empty body closes without one.
	var req struct {
		FinalRepayment *repaymentRequest `json:"final_repayment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var final *models.Repayment
	if req.FinalRepayment != nil {
		final = req.FinalRepayment.toRepayment()
	}

	loan, err := s.ledger.CloseLoan(vars["ownerID"], vars["id"], final)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	ownerID := mux.Vars(r)["ownerID"]

	loans, err := s.ledger.GetAllLoansWithRepayments(ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ledger.Portfolio(loans, s.ledger.Now()))
}

func (s *Server) borrowersHandler(w http.ResponseWriter, r *http.Request) {
	ownerID := mux.Vars(r)["ownerID"]

	loans, err := s.ledger.GetAllLoansWithRepayments(ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ledger.BorrowerSummaries(loans, s.ledger.Now()))
}

func (s *Server) timelineHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	loans, err := s.ledger.GetAllLoansWithRepayments(vars["ownerID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ledger.BorrowerTimeline(loans, vars["name"]))
}

func (s *Server) activityHandler(w http.ResponseWriter, r *http.Request) {
	ownerID := mux.Vars(r)["ownerID"]

	loans, err := s.ledger.GetAllLoansWithRepayments(ownerID)
	if err != nil {
		writeError(w, err)
		return
	}

	events := ledger.ActivityFeed(loans)
	// Truncation is a presentation concern; the dashboard asks for limit=5.
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		if limit < len(events) {
			events = events[:limit]
		}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/users/{ownerID}/loans", s.listLoansHandler).Methods("GET")
	router.HandleFunc("/users/{ownerID}/loans", s.createLoanHandler).Methods("POST")
	router.HandleFunc("/users/{ownerID}/loans/{id}", s.getLoanHandler).Methods("GET")
	router.HandleFunc("/users/{ownerID}/loans/{id}", s.updateLoanHandler).Methods("PUT")
	router.HandleFunc("/users/{ownerID}/loans/{id}/repayments", s.addRepaymentHandler).Methods("POST")
	router.HandleFunc("/users/{ownerID}/loans/{id}/close", s.closeLoanHandler).Methods("POST")
	router.HandleFunc("/users/{ownerID}/summary", s.summaryHandler).Methods("GET")
	router.HandleFunc("/users/{ownerID}/borrowers", s.borrowersHandler).Methods("GET")
	router.HandleFunc("/users/{ownerID}/borrowers/{name}/timeline", s.timelineHandler).Methods("GET")
	router.HandleFunc("/users/{ownerID}/activity", s.activityHandler).Methods("GET")

	return router
}

func main() {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("Failed to parse config: %v", err)
	}

	// Initialize SQLite Store
	sqliteStore, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize SQLite store: %v", err)
	}
	defer sqliteStore.Close()

	server := NewServer(sqliteStore)

	log.Printf("Server starting on %s", cfg.Addr)
	log.Fatal(http.ListenAndServe(cfg.Addr, server.routes()))
}
