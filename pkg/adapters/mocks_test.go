package adapters

import (
	"context"

	"google.golang.org/genai"
)

// mockContentGenerator は ContentGenerator のテスト用モックです。
type mockContentGenerator struct {
	generateFunc func(model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *mockContentGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if m.generateFunc != nil {
		return m.generateFunc(model, contents, config)
	}
	return &genai.GenerateContentResponse{}, nil
}

func imageCandidate(data string) *genai.Candidate {
	return &genai.Candidate{
		Content: &genai.Content{
			Parts: []*genai.Part{
				{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte(data)}},
			},
		},
		FinishReason: genai.FinishReasonStop,
	}
}
