package providers

import (
	"context"
	"fmt"
	"os"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAI completes prompts through an OpenAI-compatible chat API.
type OpenAI struct {
	model llms.Model
}

// NewOpenAI creates a backend against api.openai.com. Requires
// OPENAI_API_KEY.
func NewOpenAI(model string) (*OpenAI, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create OpenAI client: %w", err)
	}
	return &OpenAI{model: llm}, nil
}

// NewGitHubModels creates a backend against the GitHub Models inference
// endpoint, which speaks the OpenAI API. Requires GITHUB_TOKEN.
func NewGitHubModels(model string) (*OpenAI, error) {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("GITHUB_TOKEN environment variable not set")
	}

	llm, err := openai.New(
		openai.WithToken(token),
		openai.WithModel(model),
		openai.WithBaseURL("https://models.inference.ai.azure.com"),
	)
	if err != nil {
		return nil, fmt.Errorf("create GitHub Models client: %w", err)
	}
	return &OpenAI{model: llm}, nil
}

// Complete implements Completer.
func (p *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, p.model, prompt,
		llms.WithTemperature(0),
		llms.WithMaxTokens(32),
	)
}
