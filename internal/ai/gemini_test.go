package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestNewGeminiGenerator_RequiresKey(t *testing.T) {
	gen, err := NewGeminiGenerator(context.Background(), "", "")
	assert.Nil(t, gen)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestNewGeminiGenerator_DefaultModel(t *testing.T) {
	gen, err := NewGeminiGenerator(context.Background(), "test-key", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, gen.Model())
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []*genai.Part{
						{Text: "thinking...", Thought: true},
						{Text: "### Risk Mitigation\n"},
						{Text: "- Verify CNIC early\n"},
					},
				},
			},
		},
	}

	text, err := responseText(resp)
	require.NoError(t, err)
	assert.Equal(t, "### Risk Mitigation\n- Verify CNIC early", text)
}

func TestResponseText_Empty(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
	}{
		{"nil response", nil},
		{"no candidates", &genai.GenerateContentResponse{}},
		{"no content", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}},
		{"blank parts", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: "  "}}}},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := responseText(tt.resp)
			assert.ErrorIs(t, err, ErrEmptyResponse)
		})
	}
}
