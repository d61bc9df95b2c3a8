package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/innovators/mlms/mlms-backend/internal/domain"
	"github.com/innovators/mlms/mlms-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// SessionHandler exposes the navigation shell and add-loan form as server-held sessions
type SessionHandler struct {
	sessionService *service.SessionService
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// SetViewRequest represents the navigation request body
type SetViewRequest struct {
	View string `json:"view" example:"addLoan"`
}

// SetFieldsRequest carries raw form edits keyed by field name
type SetFieldsRequest struct {
	Fields map[string]string `json:"fields"`
}

// LoanFormResponse represents the add-loan form fields
type LoanFormResponse struct {
	Status         string `json:"status"`
	ClientID       int32  `json:"clientId"`
	Amount         string `json:"amount"`
	ReleaseDate    string `json:"releaseDate"`
	Duration       int    `json:"duration"`
	DurationPeriod string `json:"durationPeriod"`
	InterestMethod string `json:"interestMethod"`
	InterestRate   string `json:"interestRate"`
	InterestCycle  string `json:"interestCycle"`
	RepaymentCycle string `json:"repaymentCycle"`
	Account        string `json:"account"`
}

// SessionResponse represents a form session in API responses
type SessionResponse struct {
	ID         string           `json:"id"`
	View       string           `json:"view"`
	NavSection string           `json:"navSection"`
	Form       LoanFormResponse `json:"form"`
	Fees       []FeeResponse    `json:"fees"`
	RiskScore  *float64         `json:"riskScore,omitempty"`
	RiskLevel  *string          `json:"riskLevel,omitempty"`
	UpdatedAt  string           `json:"updatedAt"`
}

// AddFeeResponse is the session after a fee was added, with the new fee
type AddFeeResponse struct {
	Session SessionResponse `json:"session"`
	Fee     FeeResponse     `json:"fee"`
}

// SubmitResponse is the session after submission with the registered loan
type SubmitResponse struct {
	Session SessionResponse `json:"session"`
	Loan    LoanResponse    `json:"loan"`
}

func toSessionResponse(s *domain.FormSession) SessionResponse {
	resp := SessionResponse{
		ID:         s.ID,
		View:       string(s.View),
		NavSection: string(s.View.NavSection()),
		Form: LoanFormResponse{
			Status:         string(s.Form.Status),
			ClientID:       s.Form.ClientID,
			Amount:         s.Form.Amount.String(),
			ReleaseDate:    formatDate(s.Form.ReleaseDate),
			Duration:       s.Form.Duration,
			DurationPeriod: string(s.Form.DurationUnit),
			InterestMethod: string(s.Form.InterestMethod),
			InterestRate:   s.Form.InterestRate.String(),
			InterestCycle:  string(s.Form.InterestCycle),
			RepaymentCycle: string(s.Form.RepaymentCycle),
			Account:        string(s.Form.Account),
		},
		Fees:      toFeeResponses(s.Fees),
		RiskScore: s.RiskScore,
		UpdatedAt: s.UpdatedAt.Format(time.RFC3339),
	}
	if s.RiskLevel != nil {
		level := string(*s.RiskLevel)
		resp.RiskLevel = &level
	}
	return resp
}

// sessionError maps session action errors to problem details
func sessionError(c echo.Context, err error, action string) error {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return NewNotFoundError(c, "Session not found")
	case errors.Is(err, domain.ErrFeeNotFound):
		return NewNotFoundError(c, "Fee not found")
	case errors.Is(err, domain.ErrClientNotFound):
		return NewNotFoundError(c, "Client not found")
	case errors.Is(err, domain.ErrNotOnLoanForm):
		return NewConflictError(c, "Open the add-loan view first")
	case errors.Is(err, service.ErrRiskRequestCancelled):
		return NewConflictError(c, "Risk score request was cancelled")
	case errors.Is(err, service.ErrRiskScorerUnavailable),
		errors.Is(err, service.ErrRiskScoreInvalid),
		errors.Is(err, context.DeadlineExceeded):
		return NewServiceUnavailableError(c, "Risk scoring is currently unavailable")
	}
	if handled, resp := newDomainValidationError(c, err); handled {
		return resp
	}
	log.Error().Err(err).Str("session_id", c.Param("id")).Msgf("Failed to %s", action)
	return NewInternalError(c, "Failed to "+action)
}

// CreateSession godoc
// @Summary Open a form session
// @Description Starts a navigation session on the welcome view with an empty loan form
// @Tags sessions
// @Produce json
// @Success 201 {object} SessionResponse
// @Failure 500 {object} ProblemDetails
// @Router /sessions [post]
func (h *SessionHandler) CreateSession(c echo.Context) error {
	session, err := h.sessionService.CreateSession()
	if err != nil {
		return sessionError(c, err, "create session")
	}
	return c.JSON(http.StatusCreated, toSessionResponse(session))
}

// GetSession godoc
// @Summary Get a form session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} SessionResponse
// @Failure 404 {object} ProblemDetails
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c echo.Context) error {
	session, err := h.sessionService.GetSession(c.Param("id"))
	if err != nil {
		return sessionError(c, err, "get session")
	}
	return c.JSON(http.StatusOK, toSessionResponse(session))
}

// DeleteSession godoc
// @Summary Close a form session
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 204
// @Failure 404 {object} ProblemDetails
// @Router /sessions/{id} [delete]
func (h *SessionHandler) DeleteSession(c echo.Context) error {
	if err := h.sessionService.DeleteSession(c.Param("id")); err != nil {
		return sessionError(c, err, "delete session")
	}
	return c.NoContent(http.StatusNoContent)
}

// SetView godoc
// @Summary Navigate to a view
// @Description Leaving the add-loan view cancels any pending risk request; entering it resets the form
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body SetViewRequest true "Target view"
// @Success 200 {object} SessionResponse
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Router /sessions/{id}/view [put]
func (h *SessionHandler) SetView(c echo.Context) error {
	var req SetViewRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	session, err := h.sessionService.SetView(c.Param("id"), req.View)
	if err != nil {
		return sessionError(c, err, "change view")
	}
	return c.JSON(http.StatusOK, toSessionResponse(session))
}

// SetFields godoc
// @Summary Edit loan form fields
// @Description Applies all edits or none. Enumerations are normalized; unknown values are rejected.
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body SetFieldsRequest true "Field edits"
// @Success 200 {object} SessionResponse
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Router /sessions/{id}/fields [put]
func (h *SessionHandler) SetFields(c echo.Context) error {
	var req SetFieldsRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	if len(req.Fields) == 0 {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "fields", Message: "At least one field is required"},
		})
	}

	session, err := h.sessionService.SetFields(c.Param("id"), req.Fields)
	if err != nil {
		return sessionError(c, err, "update form")
	}
	return c.JSON(http.StatusOK, toSessionResponse(session))
}

// AddFee godoc
// @Summary Add a fee to the loan form
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body FeeRequest true "Fee"
// @Success 201 {object} AddFeeResponse
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Router /sessions/{id}/fees [post]
func (h *SessionHandler) AddFee(c echo.Context) error {
	var req FeeRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	session, fee, err := h.sessionService.AddFee(c.Param("id"), service.AddFeeInput{
		Name:       req.Name,
		Kind:       req.Type,
		Value:      req.Value,
		Deductible: req.Deductible,
	})
	if err != nil {
		return sessionError(c, err, "add fee")
	}

	return c.JSON(http.StatusCreated, AddFeeResponse{
		Session: toSessionResponse(session),
		Fee:     toFeeResponses([]domain.Fee{*fee})[0],
	})
}

// RemoveFee godoc
// @Summary Remove a fee from the loan form
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Param feeId path string true "Fee ID"
// @Success 200 {object} SessionResponse
// @Failure 404 {object} ProblemDetails
// @Router /sessions/{id}/fees/{feeId} [delete]
func (h *SessionHandler) RemoveFee(c echo.Context) error {
	session, err := h.sessionService.RemoveFee(c.Param("id"), c.Param("feeId"))
	if err != nil {
		return sessionError(c, err, "remove fee")
	}
	return c.JSON(http.StatusOK, toSessionResponse(session))
}

// PreviewSchedule godoc
// @Summary Preview the schedule of the form in progress
// @Description Incomplete input yields an empty schedule rather than an error
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} ScheduleResponse
// @Failure 404 {object} ProblemDetails
// @Router /sessions/{id}/schedule [get]
func (h *SessionHandler) PreviewSchedule(c echo.Context) error {
	preview, err := h.sessionService.PreviewSchedule(c.Param("id"))
	if err != nil {
		return sessionError(c, err, "preview schedule")
	}
	return c.JSON(http.StatusOK, toScheduleResponse(preview))
}

// RequestRiskScore godoc
// @Summary Score the selected borrower
// @Description Blocks until the score arrives. Fails with 409 when navigation or a borrower change cancels the request.
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} SessionResponse
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Failure 503 {object} ProblemDetails
// @Router /sessions/{id}/risk-score [post]
func (h *SessionHandler) RequestRiskScore(c echo.Context) error {
	session, err := h.sessionService.RequestRiskScore(c.Request().Context(), c.Param("id"))
	if err != nil {
		return sessionError(c, err, "score borrower")
	}
	return c.JSON(http.StatusOK, toSessionResponse(session))
}

// Submit godoc
// @Summary Submit the loan form
// @Description Registers the loan and moves the session to the loans view
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 201 {object} SubmitResponse
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Router /sessions/{id}/submit [post]
func (h *SessionHandler) Submit(c echo.Context) error {
	session, loan, err := h.sessionService.Submit(c.Param("id"))
	if err != nil {
		return sessionError(c, err, "submit loan")
	}
	return c.JSON(http.StatusCreated, SubmitResponse{
		Session: toSessionResponse(session),
		Loan:    toLoanResponse(loan),
	})
}

// Cancel godoc
// @Summary Abandon the loan form
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} SessionResponse
// @Failure 404 {object} ProblemDetails
// @Router /sessions/{id}/cancel [post]
func (h *SessionHandler) Cancel(c echo.Context) error {
	session, err := h.sessionService.Cancel(c.Param("id"))
	if err != nil {
		return sessionError(c, err, "cancel form")
	}
	return c.JSON(http.StatusOK, toSessionResponse(session))
}
