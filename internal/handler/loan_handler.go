package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/innovators/mlms/mlms-backend/internal/domain"
	"github.com/innovators/mlms/mlms-backend/internal/repository/storage"
	"github.com/innovators/mlms/mlms-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// LoanHandler handles loan-related HTTP requests
type LoanHandler struct {
	loanService   *service.LoanService
	exportService *service.ExportService
}

// NewLoanHandler creates a new LoanHandler
func NewLoanHandler(loanService *service.LoanService, exportService *service.ExportService) *LoanHandler {
	return &LoanHandler{loanService: loanService, exportService: exportService}
}

// CreateLoanRequest represents the create loan request body
type CreateLoanRequest struct {
	ClientID int32  `json:"clientId"`
	Status   string `json:"status" example:"Processing"`
	LoanType string `json:"loanType,omitempty" example:"Personal"`
	Account  string `json:"account" example:"Cash"`
	LoanTermsRequest
	Fees []FeeRequest `json:"fees,omitempty"`
}

// UpdateLoanStatusRequest represents the status update request body
type UpdateLoanStatusRequest struct {
	Status string `json:"status" example:"Active"`
}

// FeeResponse represents a fee in API responses
type FeeResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Value      string `json:"value"`
	Deductible bool   `json:"isDeductible"`
}

// LoanResponse represents a loan in API responses
type LoanResponse struct {
	ID              int32         `json:"id"`
	ClientID        int32         `json:"clientId"`
	Status          string        `json:"status"`
	LoanType        string        `json:"loanType"`
	Account         string        `json:"account"`
	Principal       string        `json:"principal"`
	Duration        int           `json:"duration"`
	DurationUnit    string        `json:"durationUnit"`
	InterestRate    string        `json:"interestRate"`
	InterestMethod  string        `json:"interestMethod"`
	InterestCycle   string        `json:"interestCycle"`
	RepaymentCycle  string        `json:"repaymentCycle"`
	StartDate       string        `json:"startDate"`
	MaturityDate    *string       `json:"maturityDate,omitempty"`
	Fees            []FeeResponse `json:"fees"`
	Installments    int           `json:"installments"`
	TotalInterest   string        `json:"totalInterest"`
	DeductibleFees  string        `json:"deductibleFees"`
	AddedFees       string        `json:"addedFees"`
	DisbursedAmount string        `json:"disbursedAmount"`
	TotalRepayable  string        `json:"totalRepayable"`
	CreatedAt       string        `json:"createdAt"`
	UpdatedAt       string        `json:"updatedAt"`
}

// ExportLinkResponse is a link to an uploaded schedule export
type ExportLinkResponse struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expiresAt"`
}

func toFeeResponses(fees []domain.Fee) []FeeResponse {
	out := make([]FeeResponse, len(fees))
	for i, f := range fees {
		out[i] = FeeResponse{
			ID:         f.ID,
			Name:       f.Name,
			Type:       string(f.Kind),
			Value:      f.Value.String(),
			Deductible: f.Deductible,
		}
	}
	return out
}

func toLoanResponse(l *domain.Loan) LoanResponse {
	resp := LoanResponse{
		ID:              l.ID,
		ClientID:        l.ClientID,
		Status:          string(l.Status),
		LoanType:        l.LoanType,
		Account:         string(l.Account),
		Principal:       l.Terms.Principal.StringFixed(2),
		Duration:        l.Terms.Duration,
		DurationUnit:    string(l.Terms.DurationUnit),
		InterestRate:    l.Terms.InterestRate.String(),
		InterestMethod:  string(l.Terms.InterestMethod),
		InterestCycle:   string(l.Terms.InterestCycle),
		RepaymentCycle:  string(l.Terms.RepaymentCycle),
		StartDate:       formatDate(l.Terms.StartDate),
		Fees:            toFeeResponses(l.Fees),
		Installments:    len(l.Installments),
		TotalInterest:   l.TotalInterest.StringFixed(2),
		DeductibleFees:  l.DeductibleFees.StringFixed(2),
		AddedFees:       l.AddedFees.StringFixed(2),
		DisbursedAmount: l.DisbursedAmount.StringFixed(2),
		TotalRepayable:  l.TotalRepayable.StringFixed(2),
		CreatedAt:       l.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       l.UpdatedAt.Format(time.RFC3339),
	}
	if maturity := l.MaturityDate(); !maturity.IsZero() {
		m := formatDate(maturity)
		resp.MaturityDate = &m
	}
	return resp
}

// CreateLoan godoc
// @Summary Register a loan
// @Description Validates the loan, generates its repayment schedule and stores both
// @Tags loans
// @Accept json
// @Produce json
// @Param request body CreateLoanRequest true "Loan details"
// @Success 201 {object} LoanResponse
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Failure 500 {object} ProblemDetails
// @Router /loans [post]
func (h *LoanHandler) CreateLoan(c echo.Context) error {
	var req CreateLoanRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	terms, errs := req.toTerms()
	fees, feeErrs := toFees(req.Fees)
	errs = append(errs, feeErrs...)

	status := domain.LoanProcessing
	if req.Status != "" {
		s, err := domain.ParseLoanStatus(req.Status)
		if err != nil {
			errs = append(errs, ValidationError{Field: "status", Message: err.Error()})
		}
		status = s
	}
	account, err := domain.ParseDisbursementAccount(req.Account)
	if err != nil {
		errs = append(errs, ValidationError{Field: "account", Message: err.Error()})
	}
	if len(errs) > 0 {
		return NewValidationError(c, "Validation failed", errs)
	}

	loan, err := h.loanService.AddLoan(domain.NewLoanData{
		ClientID: req.ClientID,
		Status:   status,
		LoanType: req.LoanType,
		Account:  account,
		Terms:    terms,
		Fees:     fees,
	})
	if err != nil {
		if errors.Is(err, domain.ErrClientNotFound) {
			return NewNotFoundError(c, "Client not found")
		}
		if handled, resp := newDomainValidationError(c, err); handled {
			return resp
		}
		log.Error().Err(err).Int32("client_id", req.ClientID).Msg("Failed to create loan")
		return NewInternalError(c, "Failed to create loan")
	}

	return c.JSON(http.StatusCreated, toLoanResponse(loan))
}

// GetLoans godoc
// @Summary List loans
// @Tags loans
// @Produce json
// @Param status query string false "Filter by status: Processing, Active, Completed, Default, Denied"
// @Param clientId query int false "Filter by client"
// @Success 200 {array} LoanResponse
// @Failure 400 {object} ProblemDetails
// @Failure 500 {object} ProblemDetails
// @Router /loans [get]
func (h *LoanHandler) GetLoans(c echo.Context) error {
	var filter domain.LoanFilter

	if raw := c.QueryParam("status"); raw != "" && raw != "all" {
		status, err := domain.ParseLoanStatus(raw)
		if err != nil {
			return NewValidationError(c, "Invalid status filter", []ValidationError{
				{Field: "status", Message: err.Error()},
			})
		}
		filter.Status = status
	}
	if raw := c.QueryParam("clientId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || id <= 0 {
			return NewInvalidIDError(c, "clientId")
		}
		filter.ClientID = int32(id)
	}

	loans, err := h.loanService.ListLoans(filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list loans")
		return NewInternalError(c, "Failed to list loans")
	}

	response := make([]LoanResponse, len(loans))
	for i, loan := range loans {
		response[i] = toLoanResponse(loan)
	}
	return c.JSON(http.StatusOK, response)
}

// GetLoan godoc
// @Summary Get a loan
// @Tags loans
// @Produce json
// @Param id path int true "Loan ID"
// @Success 200 {object} LoanResponse
// @Failure 404 {object} ProblemDetails
// @Router /loans/{id} [get]
func (h *LoanHandler) GetLoan(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return NewInvalidIDError(c, "id")
	}

	loan, err := h.loanService.GetLoan(id)
	if err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return NewNotFoundError(c, "Loan not found")
		}
		log.Error().Err(err).Int32("loan_id", id).Msg("Failed to get loan")
		return NewInternalError(c, "Failed to get loan")
	}
	return c.JSON(http.StatusOK, toLoanResponse(loan))
}

// UpdateLoanStatus godoc
// @Summary Change a loan's status
// @Tags loans
// @Accept json
// @Produce json
// @Param id path int true "Loan ID"
// @Param request body UpdateLoanStatusRequest true "New status"
// @Success 200 {object} LoanResponse
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Router /loans/{id}/status [patch]
func (h *LoanHandler) UpdateLoanStatus(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return NewInvalidIDError(c, "id")
	}

	var req UpdateLoanStatusRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	status, err := domain.ParseLoanStatus(req.Status)
	if err != nil {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "status", Message: err.Error()},
		})
	}

	loan, err := h.loanService.UpdateStatus(id, status)
	if err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return NewNotFoundError(c, "Loan not found")
		}
		log.Error().Err(err).Int32("loan_id", id).Msg("Failed to update loan status")
		return NewInternalError(c, "Failed to update loan status")
	}

	log.Info().Int32("loan_id", id).Str("status", string(status)).Msg("Loan status updated")
	return c.JSON(http.StatusOK, toLoanResponse(loan))
}

// GetSchedule godoc
// @Summary Get a loan's repayment schedule
// @Tags loans
// @Produce json
// @Param id path int true "Loan ID"
// @Success 200 {object} ScheduleResponse
// @Failure 404 {object} ProblemDetails
// @Router /loans/{id}/schedule [get]
func (h *LoanHandler) GetSchedule(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return NewInvalidIDError(c, "id")
	}

	schedule, err := h.loanService.GetSchedule(id)
	if err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return NewNotFoundError(c, "Loan not found")
		}
		log.Error().Err(err).Int32("loan_id", id).Msg("Failed to get schedule")
		return NewInternalError(c, "Failed to get schedule")
	}
	return c.JSON(http.StatusOK, toScheduleResponse(schedule))
}

// ExportSchedule godoc
// @Summary Export a loan's schedule as XLSX
// @Description Streams the workbook, or with upload=true stores it in object storage and returns a temporary link
// @Tags loans
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Produce json
// @Param id path int true "Loan ID"
// @Param upload query bool false "Upload to object storage instead of streaming"
// @Success 200 {file} file
// @Success 201 {object} ExportLinkResponse
// @Failure 404 {object} ProblemDetails
// @Failure 503 {object} ProblemDetails
// @Router /loans/{id}/schedule/export [get]
func (h *LoanHandler) ExportSchedule(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return NewInvalidIDError(c, "id")
	}

	if upload, _ := strconv.ParseBool(c.QueryParam("upload")); upload {
		url, err := h.exportService.UploadSchedule(c.Request().Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrLoanNotFound):
				return NewNotFoundError(c, "Loan not found")
			case errors.Is(err, service.ErrExportStorageNotConfigured):
				return NewServiceUnavailableError(c, "Export uploads are disabled (storage not configured)")
			}
			log.Error().Err(err).Int32("loan_id", id).Msg("Failed to upload schedule export")
			return NewInternalError(c, "Failed to export schedule")
		}
		return c.JSON(http.StatusCreated, ExportLinkResponse{
			URL:       url,
			ExpiresAt: time.Now().UTC().Add(service.ExportLinkExpiry).Format(time.RFC3339),
		})
	}

	export, err := h.exportService.ExportSchedule(id)
	if err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return NewNotFoundError(c, "Loan not found")
		}
		log.Error().Err(err).Int32("loan_id", id).Msg("Failed to export schedule")
		return NewInternalError(c, "Failed to export schedule")
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", export.FileName))
	return c.Blob(http.StatusOK, storage.ContentTypeXLSX, export.Data)
}
