package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrLoanNotFound       = errors.New("loan not found")
	ErrLoanClientRequired = errors.New("borrower is required")
	ErrInvalidLoanStatus  = errors.New("loan status must be one of Processing, Active, Completed, Default, Denied")
	ErrInvalidAccount     = errors.New("account must be one of Cash, Bank Transfer, Mobile Money")
	ErrLoanTypeTooLong    = errors.New("loan type must be 50 characters or less")
	ErrLoanScheduleEmpty  = errors.New("loan terms produce no installments")
	ErrTooManyFees        = errors.New("a loan can carry at most 20 fees")
)

// MaxFeesPerLoan caps the fee list of a single loan
const MaxFeesPerLoan = 20

// DefaultLoanType is used when the form does not ask for one
const DefaultLoanType = "Personal"

type LoanStatus string

const (
	LoanProcessing LoanStatus = "Processing"
	LoanActive     LoanStatus = "Active"
	LoanCompleted  LoanStatus = "Completed"
	LoanDefault    LoanStatus = "Default"
	LoanDenied     LoanStatus = "Denied"
)

// ParseLoanStatus accepts the status names in any case
func ParseLoanStatus(s string) (LoanStatus, error) {
	switch normalizeEnum(s) {
	case "processing":
		return LoanProcessing, nil
	case "active":
		return LoanActive, nil
	case "completed", "paid":
		return LoanCompleted, nil
	case "default", "defaulted":
		return LoanDefault, nil
	case "denied", "rejected":
		return LoanDenied, nil
	}
	return "", ErrInvalidLoanStatus
}

func (s LoanStatus) IsValid() bool {
	switch s {
	case LoanProcessing, LoanActive, LoanCompleted, LoanDefault, LoanDenied:
		return true
	}
	return false
}

// DisbursementAccount is the source the principal is paid out from
type DisbursementAccount string

const (
	AccountCash         DisbursementAccount = "Cash"
	AccountBankTransfer DisbursementAccount = "Bank Transfer"
	AccountMobileMoney  DisbursementAccount = "Mobile Money"
)

func ParseDisbursementAccount(s string) (DisbursementAccount, error) {
	switch normalizeEnum(s) {
	case "cash":
		return AccountCash, nil
	case "banktransfer", "bank":
		return AccountBankTransfer, nil
	case "mobilemoney", "mobile":
		return AccountMobileMoney, nil
	}
	return "", ErrInvalidAccount
}

func (a DisbursementAccount) IsValid() bool {
	return a == AccountCash || a == AccountBankTransfer || a == AccountMobileMoney
}

// NewLoanData is what the loan form submits
type NewLoanData struct {
	ClientID int32               `json:"clientId"`
	Status   LoanStatus          `json:"status"`
	LoanType string              `json:"loanType"`
	Account  DisbursementAccount `json:"account"`
	Terms    LoanTerms           `json:"terms"`
	Fees     []Fee               `json:"fees"`
}

func (d *NewLoanData) Validate() error {
	if d.ClientID <= 0 {
		return ErrLoanClientRequired
	}
	if !d.Status.IsValid() {
		return ErrInvalidLoanStatus
	}
	if len(d.LoanType) > 50 {
		return ErrLoanTypeTooLong
	}
	if !d.Account.IsValid() {
		return ErrInvalidAccount
	}
	if err := d.Terms.Validate(); err != nil {
		return err
	}
	if len(d.Fees) > MaxFeesPerLoan {
		return ErrTooManyFees
	}
	for i := range d.Fees {
		if err := d.Fees[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

type Loan struct {
	ID              int32               `json:"id"`
	ClientID        int32               `json:"clientId"`
	Status          LoanStatus          `json:"status"`
	LoanType        string              `json:"loanType"`
	Account         DisbursementAccount `json:"account"`
	Terms           LoanTerms           `json:"terms"`
	Fees            []Fee               `json:"fees"`
	Installments    []Installment       `json:"installments"`
	TotalInterest   decimal.Decimal     `json:"totalInterest"`
	DeductibleFees  decimal.Decimal     `json:"deductibleFees"`
	AddedFees       decimal.Decimal     `json:"addedFees"`
	DisbursedAmount decimal.Decimal     `json:"disbursedAmount"`
	TotalRepayable  decimal.Decimal     `json:"totalRepayable"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// FirstDueDate returns the due date of the first installment, zero if none
func (l *Loan) FirstDueDate() time.Time {
	if len(l.Installments) == 0 {
		return time.Time{}
	}
	return l.Installments[0].DueDate
}

// MaturityDate returns the due date of the last installment, zero if none
func (l *Loan) MaturityDate() time.Time {
	if len(l.Installments) == 0 {
		return time.Time{}
	}
	return l.Installments[len(l.Installments)-1].DueDate
}

// LoanFilter restricts a loan listing. Empty Status means all loans.
type LoanFilter struct {
	Status   LoanStatus
	ClientID int32
}

type LoanRepository interface {
	// Create stores the loan with its fees and installments atomically
	Create(loan *Loan) (*Loan, error)
	GetByID(id int32) (*Loan, error)
	GetAll(filter LoanFilter) ([]*Loan, error)
	UpdateStatus(id int32, status LoanStatus) (*Loan, error)
}
