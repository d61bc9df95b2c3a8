package domain

import (
	"errors"
	"time"
)

var (
	ErrClientNotFound        = errors.New("client not found")
	ErrClientNameEmpty       = errors.New("client name is required")
	ErrClientNameTooLong     = errors.New("client name must be 200 characters or less")
	ErrClientHistoryNegative = errors.New("loan history counts must be non-negative")
	ErrRiskScoreOutOfRange   = errors.New("risk score must be between 0 and 1")
)

// RiskLevel buckets a risk score for display and portfolio metrics
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Risk level thresholds on a 0..1 default-risk score
const (
	MediumRiskThreshold = 0.3
	HighRiskThreshold   = 0.6
)

// ScoreToRiskLevel maps a 0..1 score to its level
func ScoreToRiskLevel(score float64) RiskLevel {
	switch {
	case score >= HighRiskThreshold:
		return RiskHigh
	case score >= MediumRiskThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

type Client struct {
	ID              int32     `json:"id"`
	Name            string    `json:"name"`
	Phone           *string   `json:"phone,omitempty"`
	PreviousLoans   int32     `json:"previousLoans"`
	MissedPayments  int32     `json:"missedPayments"`
	CNICVerified    bool      `json:"cnicVerified"`
	RiskScore       float64   `json:"riskScore"`
	RiskLevel       RiskLevel `json:"riskLevel"`
	CNICDocumentKey *string   `json:"cnicDocumentKey,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (c *Client) Validate() error {
	if c.Name == "" {
		return ErrClientNameEmpty
	}
	if len(c.Name) > 200 {
		return ErrClientNameTooLong
	}
	if c.PreviousLoans < 0 || c.MissedPayments < 0 {
		return ErrClientHistoryNegative
	}
	if c.RiskScore < 0 || c.RiskScore > 1 {
		return ErrRiskScoreOutOfRange
	}
	return nil
}

type ClientRepository interface {
	Create(client *Client) (*Client, error)
	GetByID(id int32) (*Client, error)
	GetAll() ([]*Client, error)
	UpdateRisk(id int32, score float64, level RiskLevel) (*Client, error)
	SetCNICDocumentKey(id int32, key string) (*Client, error)
}
