package domain

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrFeeNotFound      = errors.New("fee not found")
	ErrFeeNameEmpty     = errors.New("fee name is required")
	ErrFeeNameTooLong   = errors.New("fee name must be 100 characters or less")
	ErrFeeValueNegative = errors.New("fee value must be non-negative")
	ErrInvalidFeeKind   = errors.New("fee type must be 'Fixed Amount' or 'Percentage Based'")
)

// FeeKind decides how a fee value is turned into an amount
type FeeKind string

const (
	FeeFixedAmount     FeeKind = "Fixed Amount"
	FeePercentageBased FeeKind = "Percentage Based"
)

// ParseFeeKind accepts "Fixed Amount", "fixed", "Percentage Based", "percentage", "percent"
func ParseFeeKind(s string) (FeeKind, error) {
	switch normalizeEnum(s) {
	case "fixedamount", "fixed":
		return FeeFixedAmount, nil
	case "percentagebased", "percentage", "percent":
		return FeePercentageBased, nil
	}
	return "", ErrInvalidFeeKind
}

func (k FeeKind) IsValid() bool {
	return k == FeeFixedAmount || k == FeePercentageBased
}

type Fee struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Kind       FeeKind         `json:"type"`
	Value      decimal.Decimal `json:"value"`
	Deductible bool            `json:"isDeductible"`
}

func (f *Fee) Validate() error {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return ErrFeeNameEmpty
	}
	if len(name) > 100 {
		return ErrFeeNameTooLong
	}
	if !f.Kind.IsValid() {
		return ErrInvalidFeeKind
	}
	if f.Value.LessThan(decimal.Zero) {
		return ErrFeeValueNegative
	}
	return nil
}

// Amount returns the currency amount of the fee for the given principal
func (f *Fee) Amount(principal decimal.Decimal) decimal.Decimal {
	if f.Kind == FeePercentageBased {
		return principal.Mul(f.Value).Div(decimal.NewFromInt(100)).Round(2)
	}
	return f.Value.Round(2)
}

// FeeSummary splits fees into those taken from the disbursement and those added to repayment
type FeeSummary struct {
	Deductible decimal.Decimal `json:"deductible"`
	Added      decimal.Decimal `json:"added"`
	Total      decimal.Decimal `json:"total"`
	Disbursed  decimal.Decimal `json:"disbursed"`
}

// SummarizeFees totals fees against a principal. Disbursed never goes below zero.
func SummarizeFees(principal decimal.Decimal, fees []Fee) FeeSummary {
	summary := FeeSummary{
		Deductible: decimal.Zero,
		Added:      decimal.Zero,
	}
	for i := range fees {
		amount := fees[i].Amount(principal)
		if fees[i].Deductible {
			summary.Deductible = summary.Deductible.Add(amount)
		} else {
			summary.Added = summary.Added.Add(amount)
		}
	}
	summary.Total = summary.Deductible.Add(summary.Added)
	summary.Disbursed = principal.Sub(summary.Deductible)
	if summary.Disbursed.LessThan(decimal.Zero) {
		summary.Disbursed = decimal.Zero
	}
	return summary
}
