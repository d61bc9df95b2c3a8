package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/innovators/mlms/mlms-backend/internal/domain"
	"github.com/innovators/mlms/mlms-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// ClientHandler handles client-related HTTP requests
type ClientHandler struct {
	clientService   *service.ClientService
	riskService     *service.RiskService
	documentService *service.DocumentService
}

// NewClientHandler creates a new ClientHandler. documentService may be nil when storage is not configured.
func NewClientHandler(clientService *service.ClientService, riskService *service.RiskService, documentService *service.DocumentService) *ClientHandler {
	return &ClientHandler{
		clientService:   clientService,
		riskService:     riskService,
		documentService: documentService,
	}
}

// CreateClientRequest represents the create client request body
type CreateClientRequest struct {
	Name           string  `json:"name"`
	Phone          *string `json:"phone,omitempty"`
	PreviousLoans  int32   `json:"previousLoans"`
	MissedPayments int32   `json:"missedPayments"`
	CNICVerified   bool    `json:"cnicVerified"`
}

// ClientResponse represents a client in API responses
type ClientResponse struct {
	ID             int32   `json:"id"`
	Name           string  `json:"name"`
	Phone          *string `json:"phone,omitempty"`
	PreviousLoans  int32   `json:"previousLoans"`
	MissedPayments int32   `json:"missedPayments"`
	CNICVerified   bool    `json:"cnicVerified"`
	RiskScore      float64 `json:"riskScore"`
	RiskLevel      string  `json:"riskLevel"`
	HasCNICScan    bool    `json:"hasCnicDocument"`
	CreatedAt      string  `json:"createdAt"`
	UpdatedAt      string  `json:"updatedAt"`
}

// DocumentURLResponse is a short-lived link to a stored document
type DocumentURLResponse struct {
	URL string `json:"url"`
}

func toClientResponse(c *domain.Client) ClientResponse {
	return ClientResponse{
		ID:             c.ID,
		Name:           c.Name,
		Phone:          c.Phone,
		PreviousLoans:  c.PreviousLoans,
		MissedPayments: c.MissedPayments,
		CNICVerified:   c.CNICVerified,
		RiskScore:      c.RiskScore,
		RiskLevel:      string(c.RiskLevel),
		HasCNICScan:    c.CNICDocumentKey != nil,
		CreatedAt:      c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      c.UpdatedAt.Format(time.RFC3339),
	}
}

// CreateClient godoc
// @Summary Register a client
// @Tags clients
// @Accept json
// @Produce json
// @Param request body CreateClientRequest true "Client details"
// @Success 201 {object} ClientResponse
// @Failure 400 {object} ProblemDetails
// @Failure 500 {object} ProblemDetails
// @Router /clients [post]
func (h *ClientHandler) CreateClient(c echo.Context) error {
	var req CreateClientRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	client, err := h.clientService.CreateClient(service.CreateClientInput{
		Name:           req.Name,
		Phone:          req.Phone,
		PreviousLoans:  req.PreviousLoans,
		MissedPayments: req.MissedPayments,
		CNICVerified:   req.CNICVerified,
	})
	if err != nil {
		if handled, resp := newDomainValidationError(c, err); handled {
			return resp
		}
		log.Error().Err(err).Msg("Failed to create client")
		return NewInternalError(c, "Failed to create client")
	}

	return c.JSON(http.StatusCreated, toClientResponse(client))
}

// GetClients godoc
// @Summary List clients
// @Tags clients
// @Produce json
// @Success 200 {array} ClientResponse
// @Failure 500 {object} ProblemDetails
// @Router /clients [get]
func (h *ClientHandler) GetClients(c echo.Context) error {
	clients, err := h.clientService.ListClients()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list clients")
		return NewInternalError(c, "Failed to list clients")
	}

	response := make([]ClientResponse, len(clients))
	for i, client := range clients {
		response[i] = toClientResponse(client)
	}
	return c.JSON(http.StatusOK, response)
}

// GetClient godoc
// @Summary Get a client
// @Tags clients
// @Produce json
// @Param id path int true "Client ID"
// @Success 200 {object} ClientResponse
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Router /clients/{id} [get]
func (h *ClientHandler) GetClient(c echo.Context) error {
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
	return c.JSON(http.StatusOK, toClientResponse(client))
}

// ScoreClient godoc
// @Summary Recompute a client's risk score
// @Description Runs the configured risk scorer and stores the score and level on the client
// @Tags clients
// @Produce json
// @Param id path int true "Client ID"
// @Success 200 {object} ClientResponse
// @Failure 404 {object} ProblemDetails
// @Failure 503 {object} ProblemDetails
// @Router /clients/{id}/risk-score [post]
func (h *ClientHandler) ScoreClient(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return NewInvalidIDError(c, "id")
	}

	client, err := h.riskService.ScoreClient(c.Request().Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrClientNotFound):
			return NewNotFoundError(c, "Client not found")
		case errors.Is(err, service.ErrRiskScorerUnavailable),
			errors.Is(err, service.ErrRiskScoreInvalid),
			errors.Is(err, context.DeadlineExceeded):
			return NewServiceUnavailableError(c, "Risk scoring is currently unavailable")
		}
		log.Error().Err(err).Int32("client_id", id).Msg("Failed to score client")
		return NewInternalError(c, "Failed to score client")
	}
	return c.JSON(http.StatusOK, toClientResponse(client))
}

// UploadCNICDocument godoc
// @Summary Upload a CNIC scan
// @Description Accepts a JPEG or PNG scan of the client's national identity card
// @Tags clients
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Client ID"
// @Param file formData file true "CNIC scan"
// @Success 201 {object} ClientResponse
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Failure 503 {object} ProblemDetails
// @Router /clients/{id}/cnic-document [post]
func (h *ClientHandler) UploadCNICDocument(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return NewInvalidIDError(c, "id")
	}

	// Without storage there is nowhere to put the scan
	if h.documentService == nil || !h.documentService.IsEnabled() {
		return NewServiceUnavailableError(c, "Document uploads are disabled (storage not configured)")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return NewValidationError(c, "No file provided", []ValidationError{
			{Field: "file", Message: "File is required"},
		})
	}
	if file.Size > service.MaxDocumentSize {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "file", Message: service.ErrDocumentTooLarge.Error()},
		})
	}

	src, err := file.Open()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open uploaded file")
		return NewInternalError(c, "Failed to process file")
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, service.MaxDocumentSize+1))
	if err != nil {
		log.Error().Err(err).Msg("Failed to read uploaded file")
		return NewInternalError(c, "Failed to read file")
	}

	client, err := h.documentService.UploadCNIC(c.Request().Context(), id, data, file.Filename)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrClientNotFound):
			return NewNotFoundError(c, "Client not found")
		case errors.Is(err, service.ErrDocumentTooLarge),
			errors.Is(err, service.ErrInvalidFormat),
			errors.Is(err, service.ErrImageTooSmall),
			errors.Is(err, service.ErrInvalidImageData):
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "file", Message: err.Error()},
			})
		}
		log.Error().Err(err).Int32("client_id", id).Msg("Failed to upload CNIC document")
		return NewInternalError(c, "Failed to upload document")
	}

	return c.JSON(http.StatusCreated, toClientResponse(client))
}

// GetCNICDocument godoc
// @Summary Get a link to the CNIC scan
// @Tags clients
// @Produce json
// @Param id path int true "Client ID"
// @Success 200 {object} DocumentURLResponse
// @Failure 404 {object} ProblemDetails
// @Failure 503 {object} ProblemDetails
// @Router /clients/{id}/cnic-document [get]
func (h *ClientHandler) GetCNICDocument(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return NewInvalidIDError(c, "id")
	}
	if h.documentService == nil || !h.documentService.IsEnabled() {
		return NewServiceUnavailableError(c, "Document storage is not configured")
	}

	url, err := h.documentService.CNICDocumentURL(c.Request().Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrClientNotFound):
			return NewNotFoundError(c, "Client not found")
		case errors.Is(err, service.ErrNoCNICDocument):
			return NewNotFoundError(c, "Client has no CNIC document")
		}
		log.Error().Err(err).Int32("client_id", id).Msg("Failed to sign CNIC document link")
		return NewInternalError(c, "Failed to get document link")
	}
	return c.JSON(http.StatusOK, DocumentURLResponse{URL: url})
}
