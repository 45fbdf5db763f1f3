package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultVisionQuestion = "Describe what is visible on this screen."

type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Analyzer answers questions about a single image with a one-shot model call
type Analyzer struct {
	models generator
	model  string
}

// Analyze sends the image and question and returns the model's answer
func (a *Analyzer) Analyze(ctx context.Context, image []byte, mimeType, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		question = defaultVisionQuestion
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, mimeType),
			genai.NewPartFromText(question),
		}, genai.RoleUser),
	}

	resp, err := a.models.GenerateContent(ctx, a.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("analyze screen with %s: %w", a.model, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("analyze screen with %s: empty response", a.model)
	}
	return text, nil
}
