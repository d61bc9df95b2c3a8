package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/innovators/mlms/mlms-backend/internal/domain"
	"github.com/innovators/mlms/mlms-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// ScheduleHandler serves schedule previews for terms that are not stored yet
type ScheduleHandler struct {
	loanService *service.LoanService
}

// NewScheduleHandler creates a new ScheduleHandler
func NewScheduleHandler(loanService *service.LoanService) *ScheduleHandler {
	return &ScheduleHandler{loanService: loanService}
}

// LoanTermsRequest carries loan terms as typed into the form
type LoanTermsRequest struct {
	Principal      string `json:"principal" example:"1000.00"`
	Duration       int    `json:"duration" example:"3"`
	DurationUnit   string `json:"durationUnit" example:"Months"`
	InterestRate   string `json:"interestRate" example:"10"`
	InterestMethod string `json:"interestMethod" example:"Flat Interest"`
	InterestCycle  string `json:"interestCycle" example:"Once"`
	RepaymentCycle string `json:"repaymentCycle" example:"Monthly"`
	StartDate      string `json:"startDate" example:"2024-03-10"`
}

// FeeRequest is a fee in a request body
type FeeRequest struct {
	Name       string `json:"name"`
	Type       string `json:"type" example:"Percentage Based"`
	Value      string `json:"value" example:"2"`
	Deductible bool   `json:"isDeductible"`
}

// PreviewScheduleRequest represents the schedule preview request body
type PreviewScheduleRequest struct {
	LoanTermsRequest
	Fees []FeeRequest `json:"fees,omitempty"`
}

// InstallmentResponse represents one installment in API responses
type InstallmentResponse struct {
	Number    int    `json:"number"`
	DueDate   string `json:"dueDate"`
	Principal string `json:"principal"`
	Interest  string `json:"interest"`
	Amount    string `json:"amount"`
}

// ScheduleSummaryResponse represents schedule totals in API responses
type ScheduleSummaryResponse struct {
	Count          int     `json:"count"`
	TotalPrincipal string  `json:"totalPrincipal"`
	TotalInterest  string  `json:"totalInterest"`
	TotalAmount    string  `json:"totalAmount"`
	FirstDueDate   *string `json:"firstDueDate,omitempty"`
	LastDueDate    *string `json:"lastDueDate,omitempty"`
}

// FeeSummaryResponse represents the fee breakdown in API responses
type FeeSummaryResponse struct {
	Deductible string `json:"deductible"`
	Added      string `json:"added"`
	Total      string `json:"total"`
	Disbursed  string `json:"disbursed"`
}

// ScheduleResponse represents a schedule with its totals
type ScheduleResponse struct {
	Installments   []InstallmentResponse   `json:"installments"`
	Summary        ScheduleSummaryResponse `json:"summary"`
	Fees           FeeSummaryResponse      `json:"fees"`
	TotalRepayable string                  `json:"totalRepayable"`
}

// toTerms parses the request into domain terms. Enumerations must be known values.
func (r LoanTermsRequest) toTerms() (domain.LoanTerms, []ValidationError) {
	var (
		terms domain.LoanTerms
		errs  []ValidationError
		err   error
	)

	if terms.Principal, err = decimal.NewFromString(strings.TrimSpace(r.Principal)); err != nil {
		errs = append(errs, ValidationError{Field: "principal", Message: "Must be a valid decimal number"})
	}
	terms.Duration = r.Duration
	if terms.DurationUnit, err = domain.ParseDurationUnit(r.DurationUnit); err != nil {
		errs = append(errs, ValidationError{Field: "durationUnit", Message: err.Error()})
	}
	terms.InterestRate = decimal.Zero
	if strings.TrimSpace(r.InterestRate) != "" {
		if terms.InterestRate, err = decimal.NewFromString(strings.TrimSpace(r.InterestRate)); err != nil {
			errs = append(errs, ValidationError{Field: "interestRate", Message: "Must be a valid decimal number"})
		}
	}
	if terms.InterestMethod, err = domain.ParseInterestMethod(r.InterestMethod); err != nil {
		errs = append(errs, ValidationError{Field: "interestMethod", Message: err.Error()})
	}
	if terms.InterestCycle, err = domain.ParseInterestCycle(r.InterestCycle); err != nil {
		errs = append(errs, ValidationError{Field: "interestCycle", Message: err.Error()})
	}
	if terms.RepaymentCycle, err = domain.ParseRepaymentCycle(r.RepaymentCycle); err != nil {
		errs = append(errs, ValidationError{Field: "repaymentCycle", Message: err.Error()})
	}
	if terms.StartDate, err = time.Parse(domain.DateLayout, strings.TrimSpace(r.StartDate)); err != nil {
		errs = append(errs, ValidationError{Field: "startDate", Message: "Must be in YYYY-MM-DD format"})
	}
	return terms, errs
}

func toFees(reqs []FeeRequest) ([]domain.Fee, []ValidationError) {
	fees := make([]domain.Fee, 0, len(reqs))
	var errs []ValidationError
	for _, r := range reqs {
		kind, err := domain.ParseFeeKind(r.Type)
		if err != nil {
			errs = append(errs, ValidationError{Field: "fees.type", Message: err.Error()})
			continue
		}
		value, err := decimal.NewFromString(strings.TrimSpace(r.Value))
		if err != nil {
			errs = append(errs, ValidationError{Field: "fees.value", Message: "Must be a valid decimal number"})
			continue
		}
		fees = append(fees, domain.Fee{
			Name:       r.Name,
			Kind:       kind,
			Value:      value,
			Deductible: r.Deductible,
		})
	}
	return fees, errs
}

func formatDate(t time.Time) string {
	return t.Format(domain.DateLayout)
}

func toInstallmentResponses(installments []domain.Installment) []InstallmentResponse {
	out := make([]InstallmentResponse, len(installments))
	for i, inst := range installments {
		out[i] = InstallmentResponse{
			Number:    inst.Number,
			DueDate:   formatDate(inst.DueDate),
			Principal: inst.Principal.StringFixed(2),
			Interest:  inst.Interest.StringFixed(2),
			Amount:    inst.Amount.StringFixed(2),
		}
	}
	return out
}

func toFeeSummaryResponse(f domain.FeeSummary) FeeSummaryResponse {
	return FeeSummaryResponse{
		Deductible: f.Deductible.StringFixed(2),
		Added:      f.Added.StringFixed(2),
		Total:      f.Total.StringFixed(2),
		Disbursed:  f.Disbursed.StringFixed(2),
	}
}

func toScheduleResponse(p *service.SchedulePreview) ScheduleResponse {
	summary := ScheduleSummaryResponse{
		Count:          p.Summary.Count,
		TotalPrincipal: p.Summary.TotalPrincipal.StringFixed(2),
		TotalInterest:  p.Summary.TotalInterest.StringFixed(2),
		TotalAmount:    p.Summary.TotalAmount.StringFixed(2),
	}
	if p.Summary.FirstDueDate != nil {
		first := formatDate(*p.Summary.FirstDueDate)
		summary.FirstDueDate = &first
	}
	if p.Summary.LastDueDate != nil {
		last := formatDate(*p.Summary.LastDueDate)
		summary.LastDueDate = &last
	}
	return ScheduleResponse{
		Installments:   toInstallmentResponses(p.Installments),
		Summary:        summary,
		Fees:           toFeeSummaryResponse(p.Fees),
		TotalRepayable: p.TotalRepayable.StringFixed(2),
	}
}

// PreviewSchedule godoc
// @Summary Preview a repayment schedule
// @Description Generate installments and totals for loan terms without storing anything. Terms that cannot produce a schedule yield an empty installment list.
// @Tags schedules
// @Accept json
// @Produce json
// @Param request body PreviewScheduleRequest true "Loan terms"
// @Success 200 {object} ScheduleResponse
// @Failure 400 {object} ProblemDetails
// @Router /schedules/preview [post]
func (h *ScheduleHandler) PreviewSchedule(c echo.Context) error {
	var req PreviewScheduleRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	terms, errs := req.toTerms()
	fees, feeErrs := toFees(req.Fees)
	errs = append(errs, feeErrs...)
	if len(errs) > 0 {
		return NewValidationError(c, "Validation failed", errs)
	}

	preview := h.loanService.PreviewSchedule(terms, fees)
	return c.JSON(http.StatusOK, toScheduleResponse(&preview))
}
