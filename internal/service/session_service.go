package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/innovators/mlms/mlms-backend/internal/domain"
	"github.com/innovators/mlms/mlms-backend/internal/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var ErrRiskRequestCancelled = errors.New("risk score request was cancelled")

// DefaultRiskRequestTimeout bounds a single session risk request
const DefaultRiskRequestTimeout = 10 * time.Second

// riskRequest is one in-flight scoring call; compared by pointer
type riskRequest struct {
	cancel   context.CancelFunc
	clientID int32
}

// SessionService owns the navigation shell and loan form state.
// All mutations go through its actions; each one loads, changes and saves the session.
type SessionService struct {
	repo        domain.SessionRepository
	loans       *LoanService
	clientRepo  domain.ClientRepository
	scorer      RiskScorer
	riskTimeout time.Duration

	eventPublisher websocket.EventPublisher
	now            func() time.Time

	// mu serializes load-modify-save cycles
	mu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]*riskRequest
}

// NewSessionService creates a new SessionService
func NewSessionService(repo domain.SessionRepository, loans *LoanService, clientRepo domain.ClientRepository, scorer RiskScorer) *SessionService {
	return &SessionService{
		repo:        repo,
		loans:       loans,
		clientRepo:  clientRepo,
		scorer:      scorer,
		riskTimeout: DefaultRiskRequestTimeout,
		now:         time.Now,
		pending:     make(map[string]*riskRequest),
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *SessionService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

// SetRiskTimeout overrides the per-request scoring timeout
func (s *SessionService) SetRiskTimeout(timeout time.Duration) {
	if timeout > 0 {
		s.riskTimeout = timeout
	}
}

func (s *SessionService) publishEvent(sessionID string, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(websocket.SessionTopic(sessionID), event)
	}
}

func (s *SessionService) resetForm(session *domain.FormSession) {
	session.Form = domain.NewLoanForm(s.now())
	session.Fees = []domain.Fee{}
	session.RiskScore = nil
	session.RiskLevel = nil
}

// CreateSession starts a session on the welcome page with an empty form
func (s *SessionService) CreateSession() (*domain.FormSession, error) {
	now := s.now().UTC()
	session := &domain.FormSession{
		ID:        uuid.New().String(),
		View:      domain.ViewWelcome,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.resetForm(session)

	if err := s.repo.Save(session); err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession returns the current session state
func (s *SessionService) GetSession(id string) (*domain.FormSession, error) {
	return s.repo.Get(id)
}

// DeleteSession removes a session, cancels its pending work and disconnects its subscribers
func (s *SessionService) DeleteSession(id string) error {
	s.cancelRiskRequest(id)
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	if closer, ok := s.eventPublisher.(websocket.TopicCloser); ok {
		closer.CloseTopic(websocket.SessionTopic(id), websocket.CloseReasonSessionEnded)
	}
	return nil
}

// update runs fn on the stored session and saves the result
func (s *SessionService) update(id string, fn func(session *domain.FormSession) error) (*domain.FormSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.repo.Get(id)
	if err != nil {
		return nil, err
	}
	if err := fn(session); err != nil {
		return nil, err
	}
	session.UpdatedAt = s.now().UTC()
	if err := s.repo.Save(session); err != nil {
		return nil, err
	}

	s.publishEvent(id, websocket.SessionUpdated(session))
	return session, nil
}

// SetView navigates the shell. Entering the add-loan view starts a fresh form;
// leaving it cancels any in-flight risk request.
func (s *SessionService) SetView(id, rawView string) (*domain.FormSession, error) {
	view, err := domain.ParseView(rawView)
	if err != nil {
		return nil, err
	}

	return s.update(id, func(session *domain.FormSession) error {
		s.applyView(session, view)
		return nil
	})
}

func (s *SessionService) applyView(session *domain.FormSession, view domain.View) {
	if session.View == domain.ViewAddLoan && view != domain.ViewAddLoan {
		s.cancelRiskRequest(session.ID)
	}
	if view == domain.ViewAddLoan && session.View != domain.ViewAddLoan {
		s.resetForm(session)
	}
	session.View = view
}

// SetField applies one raw form edit
func (s *SessionService) SetField(id, field, value string) (*domain.FormSession, error) {
	return s.update(id, func(session *domain.FormSession) error {
		if session.View != domain.ViewAddLoan {
			return domain.ErrNotOnLoanForm
		}

		previousClient := session.Form.ClientID
		if err := session.Form.Set(field, value); err != nil {
			return err
		}

		if session.Form.ClientID != previousClient {
			s.cancelRiskRequest(session.ID)
			session.RiskScore = nil
			session.RiskLevel = nil
		}
		return nil
	})
}

// SetFields applies several edits atomically; the first invalid one aborts all
func (s *SessionService) SetFields(id string, fields map[string]string) (*domain.FormSession, error) {
	return s.update(id, func(session *domain.FormSession) error {
		if session.View != domain.ViewAddLoan {
			return domain.ErrNotOnLoanForm
		}

		previousClient := session.Form.ClientID
		form := session.Form
		for field, value := range fields {
			if err := form.Set(field, value); err != nil {
				return err
			}
		}
		session.Form = form

		if session.Form.ClientID != previousClient {
			s.cancelRiskRequest(session.ID)
			session.RiskScore = nil
			session.RiskLevel = nil
		}
		return nil
	})
}

// AddFeeInput is a fee as typed into the fee dialog
type AddFeeInput struct {
	Name       string
	Kind       string
	Value      string
	Deductible bool
}

// AddFee appends a validated fee to the form
func (s *SessionService) AddFee(id string, input AddFeeInput) (*domain.FormSession, *domain.Fee, error) {
	kind, err := domain.ParseFeeKind(input.Kind)
	if err != nil {
		return nil, nil, err
	}
	value, err := parseFeeValue(input.Value)
	if err != nil {
		return nil, nil, err
	}

	fee := domain.Fee{
		ID:         uuid.New().String(),
		Name:       strings.TrimSpace(input.Name),
		Kind:       kind,
		Value:      value,
		Deductible: input.Deductible,
	}
	if err := fee.Validate(); err != nil {
		return nil, nil, err
	}

	session, err := s.update(id, func(session *domain.FormSession) error {
		if session.View != domain.ViewAddLoan {
			return domain.ErrNotOnLoanForm
		}
		if len(session.Fees) >= domain.MaxFeesPerLoan {
			return domain.ErrTooManyFees
		}
		session.Fees = append(session.Fees, fee)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return session, &fee, nil
}

func parseFeeValue(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, domain.ErrInvalidAmount
	}
	return v, nil
}

// RemoveFee drops a fee by ID
func (s *SessionService) RemoveFee(id, feeID string) (*domain.FormSession, error) {
	return s.update(id, func(session *domain.FormSession) error {
		for i := range session.Fees {
			if session.Fees[i].ID == feeID {
				session.Fees = append(session.Fees[:i], session.Fees[i+1:]...)
				return nil
			}
		}
		return domain.ErrFeeNotFound
	})
}

// PreviewSchedule recomputes the schedule from the current fields.
// It never fails on incomplete input; the schedule is simply empty.
func (s *SessionService) PreviewSchedule(id string) (*SchedulePreview, error) {
	session, err := s.repo.Get(id)
	if err != nil {
		return nil, err
	}
	preview := buildPreview(session.Form.Terms(), session.Fees)
	return &preview, nil
}

// RequestRiskScore scores the selected borrower. The call blocks until the
// score arrives, the context ends, or another action cancels the request.
func (s *SessionService) RequestRiskScore(ctx context.Context, id string) (*domain.FormSession, error) {
	session, err := s.repo.Get(id)
	if err != nil {
		return nil, err
	}
	if session.View != domain.ViewAddLoan {
		return nil, domain.ErrNotOnLoanForm
	}
	if session.Form.ClientID <= 0 {
		return nil, domain.ErrLoanClientRequired
	}

	client, err := s.clientRepo.GetByID(session.Form.ClientID)
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.riskTimeout)
	defer cancel()
	req := s.startRiskRequest(id, client.ID, cancel)
	defer s.finishRiskRequest(id, req)

	score, err := s.scorer.ComputeRiskScore(reqCtx, client)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			return nil, ErrRiskRequestCancelled
		}
		return nil, err
	}

	level := domain.ScoreToRiskLevel(score)
	return s.update(id, func(session *domain.FormSession) error {
		if session.View != domain.ViewAddLoan || session.Form.ClientID != client.ID || !s.isCurrent(id, req) {
			return ErrRiskRequestCancelled
		}
		session.RiskScore = &score
		session.RiskLevel = &level
		return nil
	})
}

// startRiskRequest registers a request, cancelling any earlier one for the session
func (s *SessionService) startRiskRequest(id string, clientID int32, cancel context.CancelFunc) *riskRequest {
	req := &riskRequest{cancel: cancel, clientID: clientID}

	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if prev, ok := s.pending[id]; ok {
		prev.cancel()
	}
	s.pending[id] = req
	return req
}

func (s *SessionService) finishRiskRequest(id string, req *riskRequest) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if s.pending[id] == req {
		delete(s.pending, id)
	}
}

func (s *SessionService) isCurrent(id string, req *riskRequest) bool {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return s.pending[id] == req
}

func (s *SessionService) cancelRiskRequest(id string) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if req, ok := s.pending[id]; ok {
		req.cancel()
		delete(s.pending, id)
		log.Debug().Str("session_id", id).Int32("client_id", req.clientID).Msg("Risk request cancelled")
	}
}

// PendingRiskRequests reports how many scoring calls are in flight
func (s *SessionService) PendingRiskRequests() int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return len(s.pending)
}

// Submit registers the loan from the form and moves the shell to the loans view
func (s *SessionService) Submit(id string) (*domain.FormSession, *domain.Loan, error) {
	var loan *domain.Loan
	session, err := s.update(id, func(session *domain.FormSession) error {
		if session.View != domain.ViewAddLoan {
			return domain.ErrNotOnLoanForm
		}
		if session.Form.ClientID <= 0 {
			return domain.ErrLoanClientRequired
		}

		created, err := s.loans.AddLoan(session.LoanData())
		if err != nil {
			return err
		}
		loan = created

		s.cancelRiskRequest(session.ID)
		s.resetForm(session)
		session.View = domain.ViewLoans
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.publishEvent(id, websocket.SessionSubmitted(map[string]interface{}{
		"session": session,
		"loan":    loan,
	}))
	return session, loan, nil
}

// Cancel abandons the form and returns to the dashboard
func (s *SessionService) Cancel(id string) (*domain.FormSession, error) {
	return s.update(id, func(session *domain.FormSession) error {
		s.applyView(session, domain.ViewDashboard)
		return nil
	})
}
