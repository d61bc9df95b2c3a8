package service

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/innovators/mlms/mlms-backend/internal/domain"
	"github.com/innovators/mlms/mlms-backend/internal/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// LoanService handles loan registration and retrieval
type LoanService struct {
	loanRepo       domain.LoanRepository
	clientRepo     domain.ClientRepository
	eventPublisher websocket.EventPublisher
}

// NewLoanService creates a new LoanService
func NewLoanService(loanRepo domain.LoanRepository, clientRepo domain.ClientRepository) *LoanService {
	return &LoanService{
		loanRepo:   loanRepo,
		clientRepo: clientRepo,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *LoanService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *LoanService) publishEvent(event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(websocket.TopicPortfolio, event)
	}
}

// SchedulePreview is a schedule with its totals and the fee breakdown
type SchedulePreview struct {
	Installments   []domain.Installment `json:"installments"`
	Summary        ScheduleSummary      `json:"summary"`
	Fees           domain.FeeSummary    `json:"fees"`
	TotalRepayable decimal.Decimal      `json:"totalRepayable"`
}

// PreviewSchedule computes the schedule without validating or storing anything.
// Incomplete terms yield an empty schedule.
func (s *LoanService) PreviewSchedule(terms domain.LoanTerms, fees []domain.Fee) SchedulePreview {
	return buildPreview(terms, fees)
}

func buildPreview(terms domain.LoanTerms, fees []domain.Fee) SchedulePreview {
	installments := GenerateSchedule(terms)
	summary := SummarizeSchedule(installments)
	feeSummary := domain.SummarizeFees(terms.Principal.Round(2), fees)

	total := decimal.Zero
	if summary.Count > 0 {
		total = summary.TotalAmount.Add(feeSummary.Added)
	}

	return SchedulePreview{
		Installments:   installments,
		Summary:        summary,
		Fees:           feeSummary,
		TotalRepayable: total,
	}
}

// AddLoan validates the submission, builds the schedule and stores the loan
func (s *LoanService) AddLoan(data domain.NewLoanData) (*domain.Loan, error) {
	data.LoanType = strings.TrimSpace(data.LoanType)
	if data.LoanType == "" {
		data.LoanType = domain.DefaultLoanType
	}
	fees := make([]domain.Fee, len(data.Fees))
	for i, f := range data.Fees {
		f.Name = strings.TrimSpace(f.Name)
		if f.ID == "" {
			f.ID = uuid.New().String()
		}
		fees[i] = f
	}
	data.Fees = fees

	if err := data.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.clientRepo.GetByID(data.ClientID); err != nil {
		return nil, err
	}

	preview := buildPreview(data.Terms, data.Fees)
	if preview.Summary.Count == 0 {
		return nil, domain.ErrLoanScheduleEmpty
	}

	terms := data.Terms
	terms.Principal = terms.Principal.Round(2)

	loan := &domain.Loan{
		ClientID:        data.ClientID,
		Status:          data.Status,
		LoanType:        data.LoanType,
		Account:         data.Account,
		Terms:           terms,
		Fees:            fees,
		Installments:    preview.Installments,
		TotalInterest:   preview.Summary.TotalInterest,
		DeductibleFees:  preview.Fees.Deductible,
		AddedFees:       preview.Fees.Added,
		DisbursedAmount: preview.Fees.Disbursed,
		TotalRepayable:  preview.TotalRepayable,
	}

	created, err := s.loanRepo.Create(loan)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int32("loan_id", created.ID).
		Int32("client_id", created.ClientID).
		Str("principal", created.Terms.Principal.StringFixed(2)).
		Int("installments", len(created.Installments)).
		Msg("Loan registered")

	s.publishEvent(websocket.LoanCreated(created))
	return created, nil
}

// GetLoan retrieves a loan by ID
func (s *LoanService) GetLoan(id int32) (*domain.Loan, error) {
	return s.loanRepo.GetByID(id)
}

// ListLoans returns loans matching the filter
func (s *LoanService) ListLoans(filter domain.LoanFilter) ([]*domain.Loan, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, domain.ErrInvalidLoanStatus
	}
	return s.loanRepo.GetAll(filter)
}

// GetSchedule returns a stored loan's installments with totals
func (s *LoanService) GetSchedule(id int32) (*SchedulePreview, error) {
	loan, err := s.loanRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	return &SchedulePreview{
		Installments:   loan.Installments,
		Summary:        SummarizeSchedule(loan.Installments),
		Fees:           domain.SummarizeFees(loan.Terms.Principal, loan.Fees),
		TotalRepayable: loan.TotalRepayable,
	}, nil
}

// UpdateStatus moves a loan to a new status
func (s *LoanService) UpdateStatus(id int32, status domain.LoanStatus) (*domain.Loan, error) {
	if !status.IsValid() {
		return nil, domain.ErrInvalidLoanStatus
	}

	loan, err := s.loanRepo.UpdateStatus(id, status)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}

	s.publishEvent(websocket.LoanUpdated(loan))
	return loan, nil
}
