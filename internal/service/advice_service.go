package service

import (
	"context"
	"fmt"
	"time"

	"github.com/innovators/mlms/mlms-backend/internal/ai"
	"github.com/innovators/mlms/mlms-backend/internal/domain"
	"github.com/rs/zerolog/log"
)

// AIErrorKind distinguishes why advice could not be produced
type AIErrorKind string

const (
	AIMissingCredential AIErrorKind = "missing_credential"
	AIProviderFailure   AIErrorKind = "provider_error"
)

// Advice topics, used to pick the user-facing message
type adviceTopic int

const (
	topicSuggestions adviceTopic = iota
	topicRiskExplanation
)

// Fixed user-facing messages
const (
	MsgSuggestionsNotConfigured = "Gemini API key is not configured. Please set the GEMINI_API_KEY environment variable to enable AI-powered suggestions."
	MsgExplanationNotConfigured = "Gemini API key is not configured. Please set the GEMINI_API_KEY environment variable to enable AI features."
	MsgSuggestionsFailed        = "An error occurred while fetching AI suggestions. Please try again later."
	MsgExplanationFailed        = "An error occurred while generating the risk explanation."
)

// AIProviderError reports a failed advice request
type AIProviderError struct {
	Kind  AIErrorKind
	Err   error
	topic adviceTopic
}

func (e *AIProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ai %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("ai %s", e.Kind)
}

func (e *AIProviderError) Unwrap() error {
	return e.Err
}

// Message renders the fixed string shown to the user instead of advice
func (e *AIProviderError) Message() string {
	switch {
	case e.Kind == AIMissingCredential && e.topic == topicRiskExplanation:
		return MsgExplanationNotConfigured
	case e.Kind == AIMissingCredential:
		return MsgSuggestionsNotConfigured
	case e.topic == topicRiskExplanation:
		return MsgExplanationFailed
	default:
		return MsgSuggestionsFailed
	}
}

// ResponseCache stores generated text by model and prompt
type ResponseCache interface {
	Get(ctx context.Context, model, prompt string) (string, bool, error)
	Set(ctx context.Context, model, prompt, response string) error
}

// AdviceService builds advice prompts and forwards them to a text generator.
// A nil generator means no credential is configured; no call is ever made then.
type AdviceService struct {
	generator ai.TextGenerator
	model     string
	timeout   time.Duration
	cache     ResponseCache
}

// NewAdviceService creates a new AdviceService
func NewAdviceService(generator ai.TextGenerator, model string, timeout time.Duration) *AdviceService {
	if model == "" {
		model = ai.DefaultModel
	}
	return &AdviceService{
		generator: generator,
		model:     model,
		timeout:   timeout,
	}
}

// SetResponseCache enables response caching
func (s *AdviceService) SetResponseCache(cache ResponseCache) {
	s.cache = cache
}

// Enabled reports whether a generator is configured
func (s *AdviceService) Enabled() bool {
	return s.generator != nil
}

// SuggestionsPrompt renders the portfolio-improvement prompt
func SuggestionsPrompt(snap domain.PortfolioSnapshot) string {
	return fmt.Sprintf(`As an expert microfinance consultant, analyze the following dashboard data for a Microfinance Loan Management System and provide actionable suggestions for improvement.

Current System State:
- Total Loans: %d
- Active Loans: %d
- Number of High-Risk Clients: %d
- Loan Default Rate: %s%%

Based on this data, provide 3-5 concise, actionable recommendations focusing on:
1. Risk Mitigation Strategies.
2. Client Engagement & Support.
3. Operational Efficiency.

Format the response in markdown. Use headings for each category.`,
		snap.TotalLoans, snap.ActiveLoans, snap.HighRiskClients, snap.DefaultRate.StringFixed(2))
}

// RiskExplanationPrompt renders the per-client risk explanation prompt
func RiskExplanationPrompt(client *domain.Client) string {
	verified := "No"
	if client.CNICVerified {
		verified = "Yes"
	}
	return fmt.Sprintf(`Act as an expert loan risk analyst for a microfinance institution.
A client named "%s" has a calculated default risk score of **%.1f%%**.

Their key risk profile data is:
- Previous Loans: %d
- Missed Payments on Past Loans: %d
- National ID (CNIC) Verified: %s

Based *only* on this data, provide a concise, easy-to-understand explanation for this risk score.
- Start with a summary sentence.
- Use bullet points to highlight the main positive and negative factors influencing the score.
- Conclude with a brief, actionable suggestion for the client if their risk is medium or high.
- Keep the entire explanation to under 100 words.
- Format the response in markdown.`,
		client.Name, client.RiskScore*100, client.PreviousLoans, client.MissedPayments, verified)
}

// GenerateSuggestions returns portfolio suggestions or an *AIProviderError
func (s *AdviceService) GenerateSuggestions(ctx context.Context, snap domain.PortfolioSnapshot) (string, error) {
	return s.generate(ctx, topicSuggestions, SuggestionsPrompt(snap))
}

// ExplainRisk returns a risk explanation or an *AIProviderError
func (s *AdviceService) ExplainRisk(ctx context.Context, client *domain.Client) (string, error) {
	return s.generate(ctx, topicRiskExplanation, RiskExplanationPrompt(client))
}

// Suggestions always returns displayable text: advice, or the fixed failure message
func (s *AdviceService) Suggestions(ctx context.Context, snap domain.PortfolioSnapshot) string {
	return textOrMessage(s.GenerateSuggestions(ctx, snap))
}

// RiskExplanation always returns displayable text: advice, or the fixed failure message
func (s *AdviceService) RiskExplanation(ctx context.Context, client *domain.Client) string {
	return textOrMessage(s.ExplainRisk(ctx, client))
}

func textOrMessage(text string, err error) string {
	if err == nil {
		return text
	}
	if aiErr, ok := err.(*AIProviderError); ok {
		return aiErr.Message()
	}
	return MsgSuggestionsFailed
}

func (s *AdviceService) generate(ctx context.Context, topic adviceTopic, prompt string) (string, error) {
	if s.generator == nil {
		return "", &AIProviderError{Kind: AIMissingCredential, topic: topic}
	}

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, s.model, prompt)
		if err != nil {
			log.Warn().Err(err).Msg("AI response cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, err := s.generator.Generate(callCtx, prompt)
	if err != nil {
		log.Error().Err(err).Str("model", s.model).Msg("Text generation failed")
		return "", &AIProviderError{Kind: AIProviderFailure, Err: err, topic: topic}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, s.model, prompt, text); err != nil {
			log.Warn().Err(err).Msg("AI response cache write failed")
		}
	}

	return text, nil
}
