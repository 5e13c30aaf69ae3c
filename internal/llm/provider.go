package llm

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/codesentinel/codesentinel/pkg/shared/config"
	"github.com/codesentinel/codesentinel/pkg/shared/errors"
)

// ClassifyRequest carries one file to a provider.
type ClassifyRequest struct {
	Path      string
	Extension string
	Content   string
}

// Classification is a provider's structured verdict on one file, tagged
// with which provider and model actually produced it.
type Classification struct {
	Purpose           string
	Category          string
	Confidence        float64
	SecurityRelevance string
	Reasoning         string
	Provider          string
	Model             string
	InputTokens       int
	OutputTokens      int
}

// Provider is a concrete LLM backend. Implementations keep authentication,
// throttling detection and region routing to themselves and report
// throttling as RateLimitedError so the analyzer can back off.
type Provider interface {
	Name() string
	Model() string
	TestConnection(ctx context.Context) error
	Classify(ctx context.Context, req ClassifyRequest) (*Classification, error)
}

// New builds a provider by name. Unknown names are a configuration error.
func New(name string, cfg *config.Config, logger hclog.Logger) (Provider, error) {
	switch name {
	case "openai":
		return newOpenAIProvider(cfg, logger)
	case "bedrock":
		return newBedrockProvider(cfg, logger)
	default:
		return nil, errors.NewConfigError("unknown LLM provider %q", name)
	}
}
