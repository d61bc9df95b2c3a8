package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/innovators/mlms/mlms-backend/internal/domain"
	"github.com/innovators/mlms/mlms-backend/internal/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrRiskScorerUnavailable = errors.New("risk scorer unavailable")
	ErrRiskScoreInvalid      = errors.New("risk scorer returned a score outside 0..1")
)

// RiskScorer computes a 0..1 probability of default for a client
type RiskScorer interface {
	ComputeRiskScore(ctx context.Context, client *domain.Client) (float64, error)
}

// Heuristic weights. The intercept puts a new, unverified borrower with no history near 0.27.
const (
	riskIntercept         = -1.0
	riskMissedRatioWeight = 3.0
	riskMissedWeight      = 0.35
	riskHistoryWeight     = -0.15
	riskVerifiedWeight    = -0.9
	riskHistoryCap        = 10
)

// HeuristicRiskScorer is a logistic model over the client's repayment history
type HeuristicRiskScorer struct{}

// ComputeRiskScore implements RiskScorer
func (HeuristicRiskScorer) ComputeRiskScore(ctx context.Context, client *domain.Client) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	history := math.Min(float64(client.PreviousLoans), riskHistoryCap)
	missed := float64(client.MissedPayments)
	missedRatio := 0.0
	if client.PreviousLoans > 0 {
		missedRatio = math.Min(missed/float64(client.PreviousLoans), 1)
	}

	z := riskIntercept +
		riskMissedRatioWeight*missedRatio +
		riskMissedWeight*missed +
		riskHistoryWeight*history
	if client.CNICVerified {
		z += riskVerifiedWeight
	}

	return roundScore(1 / (1 + math.Exp(-z))), nil
}

func roundScore(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// RemoteRiskScorer asks an external scoring endpoint for the score
type RemoteRiskScorer struct {
	url    string
	client *http.Client
}

// NewRemoteRiskScorer creates a scorer that POSTs the client profile to url
func NewRemoteRiskScorer(url string, timeout time.Duration) *RemoteRiskScorer {
	return &RemoteRiskScorer{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type riskScoreRequest struct {
	PreviousLoans  int32 `json:"previousLoans"`
	MissedPayments int32 `json:"missedPayments"`
	CNICVerified   bool  `json:"cnicVerified"`
}

type riskScoreResponse struct {
	Score float64 `json:"score"`
}

// ComputeRiskScore implements RiskScorer
func (s *RemoteRiskScorer) ComputeRiskScore(ctx context.Context, client *domain.Client) (float64, error) {
	body, err := json.Marshal(riskScoreRequest{
		PreviousLoans:  client.PreviousLoans,
		MissedPayments: client.MissedPayments,
		CNICVerified:   client.CNICVerified,
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%w: %v", ErrRiskScorerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return 0, fmt.Errorf("%w: status %d", ErrRiskScorerUnavailable, resp.StatusCode)
	}

	var out riskScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRiskScorerUnavailable, err)
	}
	if out.Score < 0 || out.Score > 1 || math.IsNaN(out.Score) {
		return 0, ErrRiskScoreInvalid
	}
	return roundScore(out.Score), nil
}

// RiskAssessment is a computed score with its level
type RiskAssessment struct {
	ClientID int32            `json:"clientId"`
	Score    float64          `json:"score"`
	Level    domain.RiskLevel `json:"level"`
}

// RiskService scores clients and persists the result
type RiskService struct {
	clientRepo     domain.ClientRepository
	scorer         RiskScorer
	eventPublisher websocket.EventPublisher
}

// NewRiskService creates a new RiskService
func NewRiskService(clientRepo domain.ClientRepository, scorer RiskScorer) *RiskService {
	return &RiskService{
		clientRepo: clientRepo,
		scorer:     scorer,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *RiskService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *RiskService) publishEvent(event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(websocket.TopicPortfolio, event)
	}
}

// Assess computes a score without storing it
func (s *RiskService) Assess(ctx context.Context, clientID int32) (*RiskAssessment, error) {
	client, err := s.clientRepo.GetByID(clientID)
	if err != nil {
		return nil, err
	}

	score, err := s.scorer.ComputeRiskScore(ctx, client)
	if err != nil {
		return nil, err
	}

	return &RiskAssessment{
		ClientID: clientID,
		Score:    score,
		Level:    domain.ScoreToRiskLevel(score),
	}, nil
}

// ScoreClient computes, stores and announces a client's risk score
func (s *RiskService) ScoreClient(ctx context.Context, clientID int32) (*domain.Client, error) {
	assessment, err := s.Assess(ctx, clientID)
	if err != nil {
		return nil, err
	}

	client, err := s.clientRepo.UpdateRisk(clientID, assessment.Score, assessment.Level)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int32("client_id", clientID).
		Float64("score", assessment.Score).
		Str("level", string(assessment.Level)).
		Msg("Client risk scored")

	s.publishEvent(websocket.ClientRiskScored(client))
	return client, nil
}
