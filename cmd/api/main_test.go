package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prahthana5/LendManager/pkg/models"
	"github.com/prahthana5/LendManager/pkg/store"
	"github.com/shopspring/decimal"
)

func setupTestServer(t *testing.T, dbFile string) (*Server, *mux.Router) {
	os.Remove(dbFile)
	t.Cleanup(func() { os.Remove(dbFile) })

	s, err := store.NewSQLiteStore(dbFile)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	server := NewServer(s)
	return server, server.routes()
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestAPI_LoanLifecycle(t *testing.T) {
	_, router := setupTestServer(t, "test_api_lifecycle.db")

	// Create
	rr := doJSON(t, router, "POST", "/users/owner-1/loans", map[string]interface{}{
		"borrower_name": "Ravi",
		"principal":     "10000",
		"interest_rate": "2",
		"start_date":    "2024-01-15T00:00:00Z",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created models.Loan
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("Failed to decode loan: %v", err)
	}
	if created.ID == "" || created.Status != models.StatusActive {
		t.Fatalf("Unexpected created loan: %+v", created)
	}
	if created.InterestType != models.InterestSimple || created.PaymentFrequency != models.FrequencyMonthly {
		t.Errorf("Expected defaults applied, got %s/%s", created.InterestType, created.PaymentFrequency)
	}

	// Repay
	rr = doJSON(t, router, "POST", "/users/owner-1/loans/"+created.ID+"/repayments", map[string]interface{}{
		"amount":  "1200",
		"date":    "2024-03-15T00:00:00Z",
		"remarks": "interest for two months",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	// Detail with snapshot
	rr = doJSON(t, router, "GET", "/users/owner-1/loans/"+created.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var detail struct {
		models.LoanWithRepayments
		Snapshot models.LoanSnapshot `json:"snapshot"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&detail); err != nil {
		t.Fatalf("Failed to decode detail: %v", err)
	}
	if len(detail.Repayments) != 1 {
		t.Fatalf("Expected 1 embedded repayment, got %d", len(detail.Repayments))
	}
	if !detail.Snapshot.TotalRepaid.Equal(decimal.NewFromInt(1200)) {
		t.Errorf("Expected snapshot total repaid 1200, got %s", detail.Snapshot.TotalRepaid)
	}
	if !detail.Snapshot.RemainingBalance.Equal(detail.Snapshot.TotalDue.Sub(detail.Snapshot.TotalRepaid)) {
		t.Error("Snapshot balance arithmetic out of agreement")
	}

	// Close with a final repayment
	rr = doJSON(t, router, "POST", "/users/owner-1/loans/"+created.ID+"/close", map[string]interface{}{
		"final_repayment": map[string]interface{}{
			"amount": "9000",
			"date":   "2024-06-01T00:00:00Z",
		},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var closed models.Loan
	json.NewDecoder(rr.Body).Decode(&closed)
	if closed.Status != models.StatusClosed {
		t.Errorf("Expected CLOSED, got %s", closed.Status)
	}

	// Re-close without a payload is accepted and changes nothing.
	rr = doJSON(t, router, "POST", "/users/owner-1/loans/"+created.ID+"/close", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200 on re-close, got %d: %s", rr.Code, rr.Body.String())
	}

	// List with embedded repayments
	rr = doJSON(t, router, "GET", "/users/owner-1/loans", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var list []struct {
		models.LoanWithRepayments
		Snapshot models.LoanSnapshot `json:"snapshot"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil {
		t.Fatalf("Failed to decode list: %v", err)
	}
	if len(list) != 1 || len(list[0].Repayments) != 2 {
		t.Fatalf("Expected 1 loan with 2 repayments, got %+v", list)
	}
}

func TestAPI_ValidationAndNotFound(t *testing.T) {
	_, router := setupTestServer(t, "test_api_errors.db")

	rr := doJSON(t, router, "POST", "/users/owner-1/loans", map[string]interface{}{
		"borrower_name": "Ravi",
		"principal":     "-5",
		"interest_rate": "2",
		"start_date":    "2024-01-15T00:00:00Z",
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for negative principal, got %d", rr.Code)
	}

	rr = doJSON(t, router, "GET", "/users/owner-1/loans/does-not-exist", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown loan, got %d", rr.Code)
	}

	rr = doJSON(t, router, "POST", "/users/owner-1/loans/does-not-exist/repayments", map[string]interface{}{
		"amount": "100",
		"date":   "2024-03-15T00:00:00Z",
	})
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for repayment on unknown loan, got %d", rr.Code)
	}
}

func TestAPI_SummaryBorrowersActivity(t *testing.T) {
	_, router := setupTestServer(t, "test_api_summary.db")

	for _, body := range []map[string]interface{}{
		{"borrower_name": "Ravi", "principal": "10000", "interest_rate": "2", "start_date": "2024-01-15T00:00:00Z"},
		{"borrower_name": "ravi", "principal": "5000", "interest_rate": "0", "payment_frequency": "FLOATING", "start_date": "2024-02-01T00:00:00Z"},
	} {
		rr := doJSON(t, router, "POST", "/users/owner-1/loans", body)
		if rr.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", rr.Code, rr.Body.String())
		}
	}

	rr := doJSON(t, router, "GET", "/users/owner-1/summary", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var summary struct {
		ActiveCount int `json:"active_count"`
	}
	json.NewDecoder(rr.Body).Decode(&summary)
	if summary.ActiveCount != 2 {
		t.Errorf("Expected 2 active loans, got %d", summary.ActiveCount)
	}

	rr = doJSON(t, router, "GET", "/users/owner-1/borrowers", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var borrowers []struct {
		BorrowerName string `json:"borrower_name"`
	}
	json.NewDecoder(rr.Body).Decode(&borrowers)
	if len(borrowers) != 2 {
		t.Errorf(`Expected "Ravi" and "ravi" as distinct groups, got %d`, len(borrowers))
	}

	// The feed is full by default; the dashboard truncates via limit.
	rr = doJSON(t, router, "GET", "/users/owner-1/activity", nil)
	var feed []json.RawMessage
	json.NewDecoder(rr.Body).Decode(&feed)
	if len(feed) != 2 {
		t.Errorf("Expected 2 events, got %d", len(feed))
	}

	rr = doJSON(t, router, "GET", "/users/owner-1/activity?limit=1", nil)
	feed = nil
	json.NewDecoder(rr.Body).Decode(&feed)
	if len(feed) != 1 {
		t.Errorf("Expected truncated feed of 1 event, got %d", len(feed))
	}
}
