package domain

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrSessionNotFound    = errors.New("form session not found")
	ErrInvalidView        = errors.New("unknown view")
	ErrInvalidAmount      = errors.New("amount must be a decimal number")
	ErrInvalidDuration    = errors.New("duration must be a whole number")
	ErrInvalidReleaseDate = errors.New("release date must be in YYYY-MM-DD format")
	ErrInvalidClientID    = errors.New("borrower must be a client ID")
	ErrNotOnLoanForm      = errors.New("action requires the add-loan view")
)

// DateLayout is the wire format for calendar dates
const DateLayout = "2006-01-02"

// View is a screen of the navigation shell
type View string

const (
	ViewWelcome        View = "welcome"
	ViewDashboard      View = "dashboard"
	ViewClients        View = "clients"
	ViewLoans          View = "loans"
	ViewLoanRequests   View = "loanRequests"
	ViewCollections    View = "collections"
	ViewReports        View = "reports"
	ViewLoanProducts   View = "loanProducts"
	ViewAddLoanProduct View = "addLoanProduct"
	ViewAddLoan        View = "addLoan"
	ViewSettings       View = "settings"
)

var views = []View{
	ViewWelcome, ViewDashboard, ViewClients, ViewLoans, ViewLoanRequests, ViewCollections,
	ViewReports, ViewLoanProducts, ViewAddLoanProduct, ViewAddLoan, ViewSettings,
}

// ParseView matches view names case-insensitively
func ParseView(s string) (View, error) {
	n := normalizeEnum(s)
	for _, v := range views {
		if normalizeEnum(string(v)) == n {
			return v, nil
		}
	}
	return "", ErrInvalidView
}

// NavSection returns the sidebar entry a view highlights
func (v View) NavSection() View {
	if v == ViewAddLoanProduct {
		return ViewLoanProducts
	}
	if v == ViewAddLoan {
		return ViewLoans
	}
	return v
}

// Loan form field names accepted by LoanForm.Set
const (
	FieldStatus         = "status"
	FieldClientID       = "clientId"
	FieldAmount         = "amount"
	FieldReleaseDate    = "releaseDate"
	FieldDuration       = "duration"
	FieldDurationPeriod = "durationPeriod"
	FieldInterestMethod = "interestMethod"
	FieldInterestRate   = "interestRate"
	FieldInterestCycle  = "interestCycle"
	FieldRepaymentCycle = "repaymentCycle"
	FieldAccount        = "account"
)

// LoanForm holds the add-loan form fields with their enumerations already resolved
type LoanForm struct {
	Status         LoanStatus          `json:"status"`
	ClientID       int32               `json:"clientId"`
	Amount         decimal.Decimal     `json:"amount"`
	ReleaseDate    time.Time           `json:"releaseDate"`
	Duration       int                 `json:"duration"`
	DurationUnit   DurationUnit        `json:"durationPeriod"`
	InterestMethod InterestMethod      `json:"interestMethod"`
	InterestRate   decimal.Decimal     `json:"interestRate"`
	InterestCycle  InterestCycle       `json:"interestCycle"`
	RepaymentCycle RepaymentCycle      `json:"repaymentCycle"`
	Account        DisbursementAccount `json:"account"`
}

// NewLoanForm returns the form in its initial state
func NewLoanForm(today time.Time) LoanForm {
	y, m, d := today.Date()
	return LoanForm{
		Status:         LoanProcessing,
		Amount:         decimal.Zero,
		ReleaseDate:    time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Duration:       1,
		DurationUnit:   DurationMonths,
		InterestMethod: FlatInterest,
		InterestRate:   decimal.Zero,
		InterestCycle:  InterestOnce,
		RepaymentCycle: RepaymentOnce,
		Account:        AccountCash,
	}
}

// Set applies one raw field edit. Enumerations are normalized or rejected; an
// empty numeric field is accepted as zero so half-typed input does not fail.
func (f *LoanForm) Set(field, value string) error {
	value = strings.TrimSpace(value)
	switch field {
	case FieldStatus:
		s, err := ParseLoanStatus(value)
		if err != nil {
			return err
		}
		f.Status = s
	case FieldClientID:
		if value == "" {
			f.ClientID = 0
			return nil
		}
		id, err := strconv.ParseInt(value, 10, 32)
		if err != nil || id < 0 {
			return ErrInvalidClientID
		}
		f.ClientID = int32(id)
	case FieldAmount:
		d, err := parseDecimalField(value)
		if err != nil {
			return ErrInvalidAmount
		}
		f.Amount = d
	case FieldReleaseDate:
		t, err := time.Parse(DateLayout, value)
		if err != nil {
			return ErrInvalidReleaseDate
		}
		f.ReleaseDate = t
	case FieldDuration:
		if value == "" {
			f.Duration = 0
			return nil
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return ErrInvalidDuration
		}
		f.Duration = n
	case FieldDurationPeriod, "durationUnit":
		u, err := ParseDurationUnit(value)
		if err != nil {
			return err
		}
		f.DurationUnit = u
	case FieldInterestMethod:
		m, err := ParseInterestMethod(value)
		if err != nil {
			return err
		}
		f.InterestMethod = m
	case FieldInterestRate:
		d, err := parseDecimalField(value)
		if err != nil {
			return ErrInvalidAmount
		}
		f.InterestRate = d
	case FieldInterestCycle:
		c, err := ParseInterestCycle(value)
		if err != nil {
			return err
		}
		f.InterestCycle = c
	case FieldRepaymentCycle:
		c, err := ParseRepaymentCycle(value)
		if err != nil {
			return err
		}
		f.RepaymentCycle = c
	case FieldAccount:
		a, err := ParseDisbursementAccount(value)
		if err != nil {
			return err
		}
		f.Account = a
	default:
		return ErrUnknownField
	}
	return nil
}

func parseDecimalField(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}

// Terms projects the form onto schedule inputs
func (f *LoanForm) Terms() LoanTerms {
	return LoanTerms{
		Principal:      f.Amount,
		Duration:       f.Duration,
		DurationUnit:   f.DurationUnit,
		InterestRate:   f.InterestRate,
		InterestMethod: f.InterestMethod,
		InterestCycle:  f.InterestCycle,
		RepaymentCycle: f.RepaymentCycle,
		StartDate:      f.ReleaseDate,
	}
}

// FormSession is the server-held state of one user's navigation shell and loan form
type FormSession struct {
	ID        string     `json:"id"`
	View      View       `json:"view"`
	Form      LoanForm   `json:"form"`
	Fees      []Fee      `json:"fees"`
	RiskScore *float64   `json:"riskScore,omitempty"`
	RiskLevel *RiskLevel `json:"riskLevel,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// LoanData builds the submission payload from the current form state
func (s *FormSession) LoanData() NewLoanData {
	fees := make([]Fee, len(s.Fees))
	copy(fees, s.Fees)
	return NewLoanData{
		ClientID: s.Form.ClientID,
		Status:   s.Form.Status,
		LoanType: DefaultLoanType,
		Account:  s.Form.Account,
		Terms:    s.Form.Terms(),
		Fees:     fees,
	}
}

type SessionRepository interface {
	Get(id string) (*FormSession, error)
	Save(session *FormSession) error
	Delete(id string) error
}
