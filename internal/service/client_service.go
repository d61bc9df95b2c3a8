package service

import (
	"strings"

	"github.com/innovators/mlms/mlms-backend/internal/domain"
	"github.com/innovators/mlms/mlms-backend/internal/websocket"
)

// ClientService handles borrower registry logic
type ClientService struct {
	clientRepo     domain.ClientRepository
	eventPublisher websocket.EventPublisher
}

// NewClientService creates a new ClientService
func NewClientService(clientRepo domain.ClientRepository) *ClientService {
	return &ClientService{clientRepo: clientRepo}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *ClientService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *ClientService) publishEvent(event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(websocket.TopicPortfolio, event)
	}
}

// CreateClientInput contains input for registering a client
type CreateClientInput struct {
	Name           string
	Phone          *string
	PreviousLoans  int32
	MissedPayments int32
	CNICVerified   bool
}

// CreateClient registers a new client with an unscored (Low, 0) risk profile
func (s *ClientService) CreateClient(input CreateClientInput) (*domain.Client, error) {
	client := &domain.Client{
		Name:           strings.TrimSpace(input.Name),
		PreviousLoans:  input.PreviousLoans,
		MissedPayments: input.MissedPayments,
		CNICVerified:   input.CNICVerified,
		RiskLevel:      domain.RiskLow,
	}
	if input.Phone != nil {
		phone := strings.TrimSpace(*input.Phone)
		if phone != "" {
			client.Phone = &phone
		}
	}
	if err := client.Validate(); err != nil {
		return nil, err
	}

	created, err := s.clientRepo.Create(client)
	if err != nil {
		return nil, err
	}

	s.publishEvent(websocket.ClientCreated(created))
	return created, nil
}

// GetClient retrieves a client by ID
func (s *ClientService) GetClient(id int32) (*domain.Client, error) {
	return s.clientRepo.GetByID(id)
}

// ListClients returns all clients
func (s *ClientService) ListClients() ([]*domain.Client, error) {
	return s.clientRepo.GetAll()
}
