package service

import (
	"time"

	"github.com/innovators/mlms/mlms-backend/internal/domain"
	"github.com/innovators/mlms/mlms-backend/internal/util"
	"github.com/shopspring/decimal"
)

const (
	// MaxTermDays bounds the loan length accepted by the generator (100 years)
	MaxTermDays = 100 * domain.DaysPerYear
	// MaxInstallments bounds the schedule length (ten years of daily repayments)
	MaxInstallments = 3660
)

var hundred = decimal.NewFromInt(100)

// GenerateSchedule turns loan terms into an ordered list of installments.
//
// Period count and interest time use a fixed calendar (7-day week, 30-day month,
// 365-day year); due dates advance on the real calendar, with monthly steps clamped
// to the last day of shorter months. No installment falls due after maturity: a
// cycle date reaching it is moved onto maturity and ends the schedule. There are
// never more installments than cents of principal, so every installment is positive.
// Principal and interest are each rounded to 2 decimals with the final installment
// absorbing the residual, so the amounts always sum to principal plus total interest.
//
// Input that cannot produce a schedule (non-positive principal, zero duration,
// negative rate, unknown enum, term too long) yields an empty, non-nil slice.
// The function has no side effects and is safe for concurrent use.
func GenerateSchedule(terms domain.LoanTerms) []domain.Installment {
	principal := terms.Principal.Round(2)
	if !isSchedulable(terms, principal) {
		return []domain.Installment{}
	}

	n := periodCount(terms)
	if n < 1 || n > MaxInstallments {
		return []domain.Installment{}
	}

	dates := capToCents(dueDates(terms, n), principal)
	termRate := terms.InterestRate.Div(hundred).Mul(interestPeriods(terms))

	if terms.InterestMethod == domain.ReducingBalance {
		return reducingBalanceSchedule(principal, termRate, dates)
	}
	return flatSchedule(principal, termRate, dates)
}

func isSchedulable(terms domain.LoanTerms, principal decimal.Decimal) bool {
	if principal.LessThanOrEqual(decimal.Zero) {
		return false
	}
	if terms.Duration < 1 || terms.InterestRate.LessThan(decimal.Zero) {
		return false
	}
	if !terms.DurationUnit.IsValid() || !terms.InterestMethod.IsValid() ||
		!terms.InterestCycle.IsValid() || !terms.RepaymentCycle.IsValid() {
		return false
	}
	// Checked before multiplying so a huge duration cannot overflow
	if terms.Duration > MaxTermDays/terms.DurationUnit.Days() {
		return false
	}
	return true
}

// periodCount is 1 for a single repayment, otherwise the number of whole
// repayment cycles that fit in the term
func periodCount(terms domain.LoanTerms) int {
	if terms.RepaymentCycle == domain.RepaymentOnce {
		return 1
	}
	return terms.DurationDays() / terms.RepaymentCycle.Days()
}

// interestPeriods is how many times the quoted rate applies over the term
func interestPeriods(terms domain.LoanTerms) decimal.Decimal {
	days := decimal.NewFromInt(int64(terms.DurationDays()))
	switch terms.InterestCycle {
	case domain.InterestMonthly:
		return days.Div(decimal.NewFromInt(domain.DaysPerMonth))
	case domain.InterestYearly:
		return days.Div(decimal.NewFromInt(domain.DaysPerYear))
	default:
		return decimal.NewFromInt(1)
	}
}

func dueDates(terms domain.LoanTerms, n int) []time.Time {
	start := util.DateOnly(terms.StartDate)
	maturity := advance(start, terms.DurationUnit, terms.Duration)
	if terms.RepaymentCycle == domain.RepaymentOnce {
		return []time.Time{maturity}
	}

	dates := make([]time.Time, 0, n)
	for k := 1; k <= n; k++ {
		var due time.Time
		switch terms.RepaymentCycle {
		case domain.RepaymentDaily:
			due = util.AddDays(start, k)
		case domain.RepaymentWeekly:
			due = util.AddDays(start, k*domain.DaysPerWeek)
		case domain.RepaymentMonthly:
			due = util.AddMonthsClamped(start, k)
		}
		// Fixed-calendar counts can overrun the real calendar on long terms
		if !due.Before(maturity) {
			dates = append(dates, maturity)
			break
		}
		dates = append(dates, due)
	}
	return dates
}

// capToCents keeps only the last dates when the principal has fewer cents than
// due dates, folding the earlier periods into later ones
func capToCents(dates []time.Time, principal decimal.Decimal) []time.Time {
	cents := principal.Shift(2).IntPart()
	if int64(len(dates)) <= cents {
		return dates
	}
	return dates[len(dates)-int(cents):]
}

// advance moves start forward by count units on the real calendar
func advance(start time.Time, unit domain.DurationUnit, count int) time.Time {
	switch unit {
	case domain.DurationWeeks:
		return util.AddDays(start, count*domain.DaysPerWeek)
	case domain.DurationMonths:
		return util.AddMonthsClamped(start, count)
	case domain.DurationYears:
		return util.AddMonthsClamped(start, count*12)
	default:
		return util.AddDays(start, count)
	}
}

// splitEvenly divides total into n parts rounded to 2 decimals, the last part
// taking the signed residual. If rounding up would leave a positive total with a
// last part at or below zero the parts are truncated instead.
func splitEvenly(total decimal.Decimal, n int) (each, last decimal.Decimal) {
	count := decimal.NewFromInt(int64(n))
	rest := decimal.NewFromInt(int64(n - 1))

	each = total.Div(count).Round(2)
	last = total.Sub(each.Mul(rest))
	if last.LessThan(decimal.Zero) || (last.IsZero() && total.IsPositive()) {
		each = total.Div(count).Truncate(2)
		last = total.Sub(each.Mul(rest))
	}
	return each, last
}

// flatSchedule charges termRate once on the original principal and splits
// principal and interest evenly on their own, so neither part goes negative
func flatSchedule(principal, termRate decimal.Decimal, dates []time.Time) []domain.Installment {
	n := len(dates)
	totalInterest := principal.Mul(termRate).Round(2)

	principalEach, principalLast := splitEvenly(principal, n)
	interestEach, interestLast := splitEvenly(totalInterest, n)

	installments := make([]domain.Installment, n)
	for i := range dates {
		principalPart, interest := principalEach, interestEach
		if i == n-1 {
			principalPart, interest = principalLast, interestLast
		}
		installments[i] = domain.Installment{
			Number:    i + 1,
			DueDate:   dates[i],
			Principal: principalPart,
			Interest:  interest,
			Amount:    principalPart.Add(interest),
		}
	}
	return installments
}

// reducingBalanceSchedule repays equal principal each period and charges the
// periodic rate on the balance still outstanding at the start of the period.
// Total interest is the sum of the rounded period interests.
func reducingBalanceSchedule(principal, termRate decimal.Decimal, dates []time.Time) []domain.Installment {
	n := len(dates)
	count := decimal.NewFromInt(int64(n))
	periodicRate := termRate.Div(count)
	principalExact := principal.Div(count)
	principalEach, principalLast := splitEvenly(principal, n)

	remaining := principal
	installments := make([]domain.Installment, n)
	for i := range dates {
		interest := remaining.Mul(periodicRate).Round(2)
		principalPart := principalEach
		if i == n-1 {
			principalPart = principalLast
		}
		installments[i] = domain.Installment{
			Number:    i + 1,
			DueDate:   dates[i],
			Principal: principalPart,
			Interest:  interest,
			Amount:    principalPart.Add(interest),
		}
		remaining = remaining.Sub(principalExact)
	}
	return installments
}

// ScheduleSummary totals a schedule
type ScheduleSummary struct {
	Count          int             `json:"count"`
	TotalPrincipal decimal.Decimal `json:"totalPrincipal"`
	TotalInterest  decimal.Decimal `json:"totalInterest"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	FirstDueDate   *time.Time      `json:"firstDueDate,omitempty"`
	LastDueDate    *time.Time      `json:"lastDueDate,omitempty"`
}

// SummarizeSchedule adds up the installments of a schedule
func SummarizeSchedule(installments []domain.Installment) ScheduleSummary {
	summary := ScheduleSummary{
		Count:          len(installments),
		TotalPrincipal: decimal.Zero,
		TotalInterest:  decimal.Zero,
		TotalAmount:    decimal.Zero,
	}
	for _, inst := range installments {
		summary.TotalPrincipal = summary.TotalPrincipal.Add(inst.Principal)
		summary.TotalInterest = summary.TotalInterest.Add(inst.Interest)
		summary.TotalAmount = summary.TotalAmount.Add(inst.Amount)
	}
	if len(installments) > 0 {
		first := installments[0].DueDate
		last := installments[len(installments)-1].DueDate
		summary.FirstDueDate = &first
		summary.LastDueDate = &last
	}
	return summary
}
