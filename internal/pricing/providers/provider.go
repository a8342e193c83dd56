// Package providers holds the chat-model backends available to the price
// estimator. Each backend reduces to a single-prompt completion; the
// estimator neither streams nor holds conversations.
package providers

import (
	"context"
	"fmt"
)

// Completer answers one prompt with one text completion.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// New returns the named backend, configured from the environment.
// Supported names: openai (default), azure, github.
func New(name, model string) (Completer, error) {
	switch name {
	case "", "openai":
		return NewOpenAI(model)
	case "azure":
		return NewAzureOpenAI()
	case "github":
		return NewGitHubModels(model)
	default:
		return nil, fmt.Errorf("unknown pricing provider %q", name)
	}
}
