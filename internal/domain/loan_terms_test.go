package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseDurationUnit(t *testing.T) {
	tests := []struct {
		input    string
		expected DurationUnit
		wantErr  bool
	}{
		{"Days", DurationDays, false},
		{"day", DurationDays, false},
		{" WEEKS ", DurationWeeks, false},
		{"month", DurationMonths, false},
		{"Months", DurationMonths, false},
		{"years", DurationYears, false},
		{"fortnights", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDurationUnit(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDurationUnit) {
					t.Errorf("ParseDurationUnit(%q) error = %v, want ErrInvalidDurationUnit", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDurationUnit(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ParseDurationUnit(%q) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseInterestMethod(t *testing.T) {
	tests := []struct {
		input    string
		expected InterestMethod
		wantErr  bool
	}{
		{"Flat Interest", FlatInterest, false},
		{"flat", FlatInterest, false},
		{"flat_interest", FlatInterest, false},
		{"Reducing Balance", ReducingBalance, false},
		{"reducing-balance", ReducingBalance, false},
		{"reducing", ReducingBalance, false},
		{"Declining Balance", ReducingBalance, false},
		{"compound", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseInterestMethod(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInterestMethod) {
					t.Errorf("ParseInterestMethod(%q) error = %v, want ErrInvalidInterestMethod", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseInterestMethod(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ParseInterestMethod(%q) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseCycles(t *testing.T) {
	interest := map[string]InterestCycle{
		"once":     InterestOnce,
		"Monthly":  InterestMonthly,
		"YEARLY":   InterestYearly,
		"annually": InterestYearly,
		"annual":   InterestYearly,
	}
	for input, want := range interest {
		got, err := ParseInterestCycle(input)
		if err != nil || got != want {
			t.Errorf("ParseInterestCycle(%q) = %s, %v; want %s", input, got, err, want)
		}
	}
	if _, err := ParseInterestCycle("daily"); !errors.Is(err, ErrInvalidInterestCycle) {
		t.Errorf("Expected ErrInvalidInterestCycle for daily, got %v", err)
	}

	repayment := map[string]RepaymentCycle{
		"Once":    RepaymentOnce,
		"daily":   RepaymentDaily,
		"Weekly":  RepaymentWeekly,
		"monthly": RepaymentMonthly,
	}
	for input, want := range repayment {
		got, err := ParseRepaymentCycle(input)
		if err != nil || got != want {
			t.Errorf("ParseRepaymentCycle(%q) = %s, %v; want %s", input, got, err, want)
		}
	}
	if _, err := ParseRepaymentCycle("yearly"); !errors.Is(err, ErrInvalidRepaymentCycle) {
		t.Errorf("Expected ErrInvalidRepaymentCycle for yearly, got %v", err)
	}
}

func TestFixedCalendarDays(t *testing.T) {
	units := []struct {
		unit DurationUnit
		days int
	}{
		{DurationDays, 1},
		{DurationWeeks, 7},
		{DurationMonths, 30},
		{DurationYears, 365},
		{"Fortnights", 0},
	}
	for _, tt := range units {
		if got := tt.unit.Days(); got != tt.days {
			t.Errorf("%s.Days() = %d, want %d", tt.unit, got, tt.days)
		}
		if tt.unit.IsValid() != (tt.days > 0) {
			t.Errorf("%s.IsValid() = %v", tt.unit, tt.unit.IsValid())
		}
	}

	cycles := []struct {
		cycle RepaymentCycle
		days  int
		valid bool
	}{
		{RepaymentOnce, 0, true},
		{RepaymentDaily, 1, true},
		{RepaymentWeekly, 7, true},
		{RepaymentMonthly, 30, true},
		{"Biweekly", 0, false},
	}
	for _, tt := range cycles {
		if got := tt.cycle.Days(); got != tt.days {
			t.Errorf("%s.Days() = %d, want %d", tt.cycle, got, tt.days)
		}
		if got := tt.cycle.IsValid(); got != tt.valid {
			t.Errorf("%s.IsValid() = %v, want %v", tt.cycle, got, tt.valid)
		}
	}

	terms := LoanTerms{Duration: 2, DurationUnit: DurationYears}
	if got := terms.DurationDays(); got != 730 {
		t.Errorf("DurationDays() = %d, want 730", got)
	}
}

func validTerms() LoanTerms {
	return LoanTerms{
		Principal:      decimal.NewFromInt(5000),
		Duration:       6,
		DurationUnit:   DurationMonths,
		InterestRate:   decimal.RequireFromString("2.5"),
		InterestMethod: ReducingBalance,
		InterestCycle:  InterestMonthly,
		RepaymentCycle: RepaymentMonthly,
		StartDate:      time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestLoanTermsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*LoanTerms)
		wantErr error
	}{
		{"valid", func(lt *LoanTerms) {}, nil},
		{"zero rate is allowed", func(lt *LoanTerms) { lt.InterestRate = decimal.Zero }, nil},
		{"zero principal", func(lt *LoanTerms) { lt.Principal = decimal.Zero }, ErrPrincipalInvalid},
		{"negative principal", func(lt *LoanTerms) { lt.Principal = decimal.NewFromInt(-1) }, ErrPrincipalInvalid},
		{"zero duration", func(lt *LoanTerms) { lt.Duration = 0 }, ErrDurationInvalid},
		{"unknown unit", func(lt *LoanTerms) { lt.DurationUnit = "Fortnights" }, ErrInvalidDurationUnit},
		{"negative rate", func(lt *LoanTerms) { lt.InterestRate = decimal.RequireFromString("-0.5") }, ErrInterestRateNegative},
		{"unknown method", func(lt *LoanTerms) { lt.InterestMethod = "Compound" }, ErrInvalidInterestMethod},
		{"unknown interest cycle", func(lt *LoanTerms) { lt.InterestCycle = "Hourly" }, ErrInvalidInterestCycle},
		{"unknown repayment cycle", func(lt *LoanTerms) { lt.RepaymentCycle = "Biweekly" }, ErrInvalidRepaymentCycle},
		{"missing start date", func(lt *LoanTerms) { lt.StartDate = time.Time{} }, ErrStartDateRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms := validTerms()
			tt.mutate(&terms)
			if err := terms.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoanDueDates(t *testing.T) {
	loan := &Loan{}
	if !loan.FirstDueDate().IsZero() || !loan.MaturityDate().IsZero() {
		t.Error("Expected zero dates for a loan without installments")
	}

	first := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	loan.Installments = []Installment{{Number: 1, DueDate: first}, {Number: 2}, {Number: 3, DueDate: last}}
	if !loan.FirstDueDate().Equal(first) {
		t.Errorf("FirstDueDate() = %s, want %s", loan.FirstDueDate(), first)
	}
	if !loan.MaturityDate().Equal(last) {
		t.Errorf("MaturityDate() = %s, want %s", loan.MaturityDate(), last)
	}
}
