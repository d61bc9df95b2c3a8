package domain

import "github.com/shopspring/decimal"

// PortfolioSnapshot is the aggregate view fed to the improvement-suggestions prompt
type PortfolioSnapshot struct {
	TotalLoans      int             `json:"totalLoans"`
	ActiveLoans     int             `json:"activeLoans"`
	HighRiskClients int             `json:"highRiskClients"`
	DefaultRate     decimal.Decimal `json:"defaultRate"`
}

// NewPortfolioSnapshot computes the snapshot. DefaultRate is a percentage with 2 decimals.
func NewPortfolioSnapshot(loans []*Loan, clients []*Client) PortfolioSnapshot {
	snap := PortfolioSnapshot{
		TotalLoans:  len(loans),
		DefaultRate: decimal.Zero,
	}
	defaulted := 0
	for _, l := range loans {
		switch l.Status {
		case LoanActive:
			snap.ActiveLoans++
		case LoanDefault:
			defaulted++
		}
	}
	for _, c := range clients {
		if c.RiskLevel == RiskHigh {
			snap.HighRiskClients++
		}
	}
	if snap.TotalLoans > 0 {
		snap.DefaultRate = decimal.NewFromInt(int64(defaulted)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(snap.TotalLoans))).
			Round(2)
	}
	return snap
}
