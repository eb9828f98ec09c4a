package ledger

import (
	"sort"
	"time"

	"github.com/prahthana5/LendManager/pkg/models"
	"github.com/shopspring/decimal"
)

// EventType labels entries in activity feeds and borrower timelines.
type EventType string

const (
	EventLoanCreated EventType = "LOAN_CREATED"
	EventRepayment   EventType = "REPAYMENT"
	EventLent        EventType = "LENT" // borrower-timeline name for a loan creation
)

// ActivityEvent is one money movement in a date-descending feed.
type ActivityEvent struct {
	LoanID       string          `json:"loan_id"`
	Type         EventType       `json:"type"`
	BorrowerName string          `json:"borrower_name"`
	Amount       decimal.Decimal `json:"amount"`
	Date         time.Time       `json:"date"`
}

// BorrowerSummary totals all loans sharing one exact borrower name.
type BorrowerSummary struct {
	BorrowerName string          `json:"borrower_name"`
	TotalLent    decimal.Decimal `json:"total_lent"`
	TotalPending decimal.Decimal `json:"total_pending"`
	LoanCount    int             `json:"loan_count"`
}

// PortfolioSummary rolls every loan of an owner into dashboard totals.
type PortfolioSummary struct {
	ActiveCount           int             `json:"active_count"`
	TotalOutstanding      decimal.Decimal `json:"total_outstanding"`
	DelayedCount          int             `json:"delayed_count"`
	TotalInterestReceived decimal.Decimal `json:"total_interest_received"`
}

// BorrowerSummaries groups loans by borrower name and totals each group,
// sorted by pending balance descending (name ascending on ties). Grouping is
// an exact string match: "Ravi" and "ravi" are distinct borrowers, since the
// name is a free-text label on each loan rather than a borrower record.
// Pending balance counts ACTIVE loans only.
func BorrowerSummaries(loans []*models.LoanWithRepayments, now time.Time) []*BorrowerSummary {
	groups := make(map[string]*BorrowerSummary)
	for _, loan := range loans {
		snap := ComputeSnapshot(&loan.Loan, loan.Repayments, now)
		g, ok := groups[loan.BorrowerName]
		if !ok {
			g = &BorrowerSummary{
				BorrowerName: loan.BorrowerName,
				TotalLent:    decimal.Zero,
				TotalPending: decimal.Zero,
			}
			groups[loan.BorrowerName] = g
		}
		g.TotalLent = g.TotalLent.Add(snap.Principal)
		if loan.Status == models.StatusActive {
			g.TotalPending = g.TotalPending.Add(snap.RemainingBalance)
		}
		g.LoanCount++
	}

	out := make([]*BorrowerSummary, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].TotalPending.Cmp(out[j].TotalPending); c != 0 {
			return c > 0
		}
		return out[i].BorrowerName < out[j].BorrowerName
	})
	return out
}

// Portfolio totals every loan of an owner. Outstanding balance and the
// delayed count only consider ACTIVE loans; interest received is attributed
// interest-first and capped at each loan's accrued interest, so it never
// exceeds what has accrued.
func Portfolio(loans []*models.LoanWithRepayments, now time.Time) PortfolioSummary {
	summary := PortfolioSummary{
		TotalOutstanding:      decimal.Zero,
		TotalInterestReceived: decimal.Zero,
	}
	for _, loan := range loans {
		snap := ComputeSnapshot(&loan.Loan, loan.Repayments, now)
		if loan.Status == models.StatusActive {
			summary.ActiveCount++
			summary.TotalOutstanding = summary.TotalOutstanding.Add(snap.RemainingBalance)
			if snap.IsDelayed {
				summary.DelayedCount++
			}
		}
		summary.TotalInterestReceived = summary.TotalInterestReceived.Add(decimal.Min(snap.TotalRepaid, snap.InterestAccrued))
	}
	return summary
}

// ActivityFeed merges loan creations and repayments across all loans into one
// date-descending sequence. The full feed is returned; views showing only the
// most recent entries truncate it themselves.
func ActivityFeed(loans []*models.LoanWithRepayments) []*ActivityEvent {
	events := []*ActivityEvent{}
	for _, loan := range loans {
		events = append(events, &ActivityEvent{
			LoanID:       loan.ID,
			Type:         EventLoanCreated,
			BorrowerName: loan.BorrowerName,
			Amount:       loan.Principal,
			Date:         loan.StartDate,
		})
		for _, rep := range loan.Repayments {
			events = append(events, &ActivityEvent{
				LoanID:       loan.ID,
				Type:         EventRepayment,
				BorrowerName: loan.BorrowerName,
				Amount:       rep.Amount,
				Date:         rep.Date,
			})
		}
	}
	sortEventsByDateDesc(events)
	return events
}

// BorrowerTimeline is the activity feed scoped to a single borrower's loans,
// with loan creations labeled LENT. It is unbounded.
func BorrowerTimeline(loans []*models.LoanWithRepayments, borrowerName string) []*ActivityEvent {
	events := []*ActivityEvent{}
	for _, loan := range loans {
		if loan.BorrowerName != borrowerName {
			continue
		}
		events = append(events, &ActivityEvent{
			LoanID:       loan.ID,
			Type:         EventLent,
			BorrowerName: loan.BorrowerName,
			Amount:       loan.Principal,
			Date:         loan.StartDate,
		})
		for _, rep := range loan.Repayments {
			events = append(events, &ActivityEvent{
				LoanID:       loan.ID,
				Type:         EventRepayment,
				BorrowerName: loan.BorrowerName,
				Amount:       rep.Amount,
				Date:         rep.Date,
			})
		}
	}
	sortEventsByDateDesc(events)
	return events
}

func sortEventsByDateDesc(events []*ActivityEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date.After(events[j].Date)
	})
}
