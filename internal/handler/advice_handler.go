package handler

import (
	"errors"
	"net/http"

	"github.com/innovators/mlms/mlms-backend/internal/domain"
	"github.com/innovators/mlms/mlms-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// Advice outcome values
const (
	AdviceStatusOK            = "ok"
	AdviceStatusNotConfigured = "not_configured"
	AdviceStatusFailed        = "failed"
)

// AdviceHandler serves AI-generated portfolio and risk advice
type AdviceHandler struct {
	adviceService    *service.AdviceService
	portfolioService *service.PortfolioService
	clientService    *service.ClientService
}

// NewAdviceHandler creates a new AdviceHandler
func NewAdviceHandler(adviceService *service.AdviceService, portfolioService *service.PortfolioService, clientService *service.ClientService) *AdviceHandler {
	return &AdviceHandler{
		adviceService:    adviceService,
		portfolioService: portfolioService,
		clientService:    clientService,
	}
}

// AdviceResponse is displayable advice text. When Status is not "ok" the text
// is the fixed message for that outcome.
type AdviceResponse struct {
	Text   string `json:"text"`
	Status string `json:"status"`
}

// PortfolioAdviceResponse carries suggestions with the snapshot they were based on
type PortfolioAdviceResponse struct {
	AdviceResponse
	TotalLoans      int    `json:"totalLoans"`
	ActiveLoans     int    `json:"activeLoans"`
	HighRiskClients int    `json:"highRiskClients"`
	DefaultRate     string `json:"defaultRate"`
}

func toAdviceResponse(text string, err error) AdviceResponse {
	if err == nil {
		return AdviceResponse{Text: text, Status: AdviceStatusOK}
	}
	var aiErr *service.AIProviderError
	if errors.As(err, &aiErr) {
		status := AdviceStatusFailed
		if aiErr.Kind == service.AIMissingCredential {
			status = AdviceStatusNotConfigured
		}
		return AdviceResponse{Text: aiErr.Message(), Status: status}
	}
	return AdviceResponse{Text: service.MsgSuggestionsFailed, Status: AdviceStatusFailed}
}

// GetSuggestions godoc
// @Summary Portfolio improvement suggestions
// @Description Summarizes the loan portfolio and asks the text generator for actionable suggestions. Without a configured API key the fixed not-configured message is returned and no call is made.
// @Tags advice
// @Produce json
// @Success 200 {object} PortfolioAdviceResponse
// @Failure 429 {object} ProblemDetails
// @Failure 500 {object} ProblemDetails
// @Router /advice/suggestions [get]
func (h *AdviceHandler) GetSuggestions(c echo.Context) error {
	ctx := c.Request().Context()

	snap, err := h.portfolioService.Snapshot(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build portfolio snapshot")
		return NewInternalError(c, "Failed to load portfolio")
	}

	text, err := h.adviceService.GenerateSuggestions(ctx, snap)
	return c.JSON(http.StatusOK, PortfolioAdviceResponse{
		AdviceResponse:  toAdviceResponse(text, err),
		TotalLoans:      snap.TotalLoans,
		ActiveLoans:     snap.ActiveLoans,
		HighRiskClients: snap.HighRiskClients,
		DefaultRate:     snap.DefaultRate.StringFixed(2),
	})
}

// GetRiskExplanation godoc
// @Summary Explain a client's risk score
// @Tags advice
// @Produce json
// @Param id path int true "Client ID"
// @Success 200 {object} AdviceResponse
// @Failure 404 {object} ProblemDetails
// @Failure 429 {object} ProblemDetails
// @Router /advice/clients/{id}/risk-explanation [get]
func (h *AdviceHandler) GetRiskExplanation(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return NewInvalidIDError(c, "id")
	}

	client, err := h.clientService.GetClient(id)
	if err != nil {
		if errors.Is(err, domain.ErrClientNotFound) {
			return NewNotFoundError(c, "Client not found")
		}
		log.Error().Err(err).Int32("client_id", id).Msg("Failed to get client")
		return NewInternalError(c, "Failed to get client")
	}

	text, err := h.adviceService.ExplainRisk(c.Request().Context(), client)
	return c.JSON(http.StatusOK, toAdviceResponse(text, err))
}
