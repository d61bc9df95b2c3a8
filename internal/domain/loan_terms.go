package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidDurationUnit   = errors.New("duration unit must be one of Days, Weeks, Months, Years")
	ErrInvalidInterestMethod = errors.New("interest method must be 'Flat Interest' or 'Reducing Balance'")
	ErrInvalidInterestCycle  = errors.New("interest cycle must be one of Once, Monthly, Yearly")
	ErrInvalidRepaymentCycle = errors.New("repayment cycle must be one of Once, Daily, Weekly, Monthly")
	ErrPrincipalInvalid      = errors.New("principal must be positive")
	ErrDurationInvalid       = errors.New("duration must be at least 1")
	ErrInterestRateNegative  = errors.New("interest rate must be non-negative")
	ErrStartDateRequired     = errors.New("start date is required")
)

// DurationUnit is the unit the loan duration is expressed in
type DurationUnit string

const (
	DurationDays   DurationUnit = "Days"
	DurationWeeks  DurationUnit = "Weeks"
	DurationMonths DurationUnit = "Months"
	DurationYears  DurationUnit = "Years"
)

// InterestMethod selects how interest is charged over the term
type InterestMethod string

const (
	FlatInterest    InterestMethod = "Flat Interest"
	ReducingBalance InterestMethod = "Reducing Balance"
)

// InterestCycle is the cadence the quoted rate applies to
type InterestCycle string

const (
	InterestOnce    InterestCycle = "Once"
	InterestMonthly InterestCycle = "Monthly"
	InterestYearly  InterestCycle = "Yearly"
)

// RepaymentCycle is the cadence installments fall due at
type RepaymentCycle string

const (
	RepaymentOnce    RepaymentCycle = "Once"
	RepaymentDaily   RepaymentCycle = "Daily"
	RepaymentWeekly  RepaymentCycle = "Weekly"
	RepaymentMonthly RepaymentCycle = "Monthly"
)

// Fixed calendar model used when converting between units.
// Months are 30 days and years 365 days regardless of the actual calendar.
const (
	DaysPerWeek  = 7
	DaysPerMonth = 30
	DaysPerYear  = 365
)

// normalizeEnum lowercases and strips spaces, dashes and underscores so that
// "Reducing Balance", "reducing_balance" and "reducingbalance" compare equal
func normalizeEnum(s string) string {
	r := strings.NewReplacer(" ", "", "-", "", "_", "")
	return strings.ToLower(r.Replace(strings.TrimSpace(s)))
}

// ParseDurationUnit accepts singular and plural spellings in any case
func ParseDurationUnit(s string) (DurationUnit, error) {
	switch normalizeEnum(s) {
	case "day", "days":
		return DurationDays, nil
	case "week", "weeks":
		return DurationWeeks, nil
	case "month", "months":
		return DurationMonths, nil
	case "year", "years":
		return DurationYears, nil
	}
	return "", ErrInvalidDurationUnit
}

// Days returns the length of one unit in the fixed calendar model
func (u DurationUnit) Days() int {
	switch u {
	case DurationDays:
		return 1
	case DurationWeeks:
		return DaysPerWeek
	case DurationMonths:
		return DaysPerMonth
	case DurationYears:
		return DaysPerYear
	}
	return 0
}

func (u DurationUnit) IsValid() bool {
	return u.Days() > 0
}

// ParseInterestMethod accepts "Flat Interest", "flat", "Reducing Balance", "reducing" and variants
func ParseInterestMethod(s string) (InterestMethod, error) {
	switch normalizeEnum(s) {
	case "flatinterest", "flat":
		return FlatInterest, nil
	case "reducingbalance", "reducing", "decliningbalance":
		return ReducingBalance, nil
	}
	return "", ErrInvalidInterestMethod
}

func (m InterestMethod) IsValid() bool {
	return m == FlatInterest || m == ReducingBalance
}

// ParseInterestCycle accepts Once, Monthly, Yearly in any case
func ParseInterestCycle(s string) (InterestCycle, error) {
	switch normalizeEnum(s) {
	case "once":
		return InterestOnce, nil
	case "monthly":
		return InterestMonthly, nil
	case "yearly", "annually", "annual":
		return InterestYearly, nil
	}
	return "", ErrInvalidInterestCycle
}

func (c InterestCycle) IsValid() bool {
	return c == InterestOnce || c == InterestMonthly || c == InterestYearly
}

// ParseRepaymentCycle accepts Once, Daily, Weekly, Monthly in any case
func ParseRepaymentCycle(s string) (RepaymentCycle, error) {
	switch normalizeEnum(s) {
	case "once":
		return RepaymentOnce, nil
	case "daily":
		return RepaymentDaily, nil
	case "weekly":
		return RepaymentWeekly, nil
	case "monthly":
		return RepaymentMonthly, nil
	}
	return "", ErrInvalidRepaymentCycle
}

// Days returns the cycle length in the fixed calendar model, 0 for Once
func (c RepaymentCycle) Days() int {
	switch c {
	case RepaymentDaily:
		return 1
	case RepaymentWeekly:
		return DaysPerWeek
	case RepaymentMonthly:
		return DaysPerMonth
	}
	return 0
}

func (c RepaymentCycle) IsValid() bool {
	return c == RepaymentOnce || c.Days() > 0
}

// LoanTerms is the immutable input to schedule generation
type LoanTerms struct {
	Principal      decimal.Decimal `json:"principal"`
	Duration       int             `json:"duration"`
	DurationUnit   DurationUnit    `json:"durationUnit"`
	InterestRate   decimal.Decimal `json:"interestRate"`
	InterestMethod InterestMethod  `json:"interestMethod"`
	InterestCycle  InterestCycle   `json:"interestCycle"`
	RepaymentCycle RepaymentCycle  `json:"repaymentCycle"`
	StartDate      time.Time       `json:"startDate"`
}

// Validate is the strict check applied when a loan is submitted.
// Schedule generation itself never fails and degrades to an empty schedule instead.
func (t LoanTerms) Validate() error {
	if t.Principal.LessThanOrEqual(decimal.Zero) {
		return ErrPrincipalInvalid
	}
	if t.Duration < 1 {
		return ErrDurationInvalid
	}
	if !t.DurationUnit.IsValid() {
		return ErrInvalidDurationUnit
	}
	if t.InterestRate.LessThan(decimal.Zero) {
		return ErrInterestRateNegative
	}
	if !t.InterestMethod.IsValid() {
		return ErrInvalidInterestMethod
	}
	if !t.InterestCycle.IsValid() {
		return ErrInvalidInterestCycle
	}
	if !t.RepaymentCycle.IsValid() {
		return ErrInvalidRepaymentCycle
	}
	if t.StartDate.IsZero() {
		return ErrStartDateRequired
	}
	return nil
}

// DurationDays is the loan length in the fixed calendar model
func (t LoanTerms) DurationDays() int {
	return t.Duration * t.DurationUnit.Days()
}

// Installment is one obligation in a repayment schedule
type Installment struct {
	Number    int             `json:"number"`
	DueDate   time.Time       `json:"dueDate"`
	Principal decimal.Decimal `json:"principal"`
	Interest  decimal.Decimal `json:"interest"`
	Amount    decimal.Decimal `json:"amount"`
}
