package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"

	"github.com/hashicorp/go-hclog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/codesentinel/codesentinel/pkg/shared/config"
	"github.com/codesentinel/codesentinel/pkg/shared/errors"
	"github.com/codesentinel/codesentinel/pkg/shared/httpclient"
)

type openAIProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	logger      hclog.Logger
}

func newOpenAIProvider(cfg *config.Config, logger hclog.Logger) (Provider, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.NewConfigError("OpenAI API key not found; set OPENAI_API_KEY")
	}

	pc := cfg.LLM.Providers["openai"]
	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.HTTPClient = httpclient.HTTPClient(logger, cfg)

	p := &openAIProvider{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       pc.Model,
		maxTokens:   pc.MaxTokens,
		temperature: pc.Temperature,
		logger:      logger.Named("openai-provider"),
	}
	p.logger.Debug("provider initialized", "model", p.model)
	return p, nil
}

func (p *openAIProvider) Name() string  { return "openai" }
func (p *openAIProvider) Model() string { return p.model }

func (p *openAIProvider) TestConnection(ctx context.Context) error {
	_, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "Test connection"},
		},
		MaxTokens:   10,
		Temperature: p.temperature,
	})
	if err != nil {
		return p.classify(err)
	}
	return nil
}

func (p *openAIProvider) Classify(ctx context.Context, req ClassifyRequest) (*Classification, error) {
	content := TruncateContent(req.Content, p.contentBudget())
	prompt := AnalysisPrompt(req.Path, req.Extension, content)

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:      p.maxTokens,
		Temperature:    p.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, p.classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &errors.MalformedResponseError{Provider: p.Name(), Reason: "empty choices"}
	}

	classification, err := ParseClassification(p.Name(), resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	classification.Model = p.model
	classification.InputTokens = resp.Usage.PromptTokens
	classification.OutputTokens = resp.Usage.CompletionTokens
	return classification, nil
}

// contentBudget leaves room for the prompt scaffolding and the response
// within a conservative context window.
func (p *openAIProvider) contentBudget() int {
	const contextWindow = 128000
	budget := contextWindow - p.maxTokens - 1000
	if budget > 100000 {
		budget = 100000
	}
	return budget
}

// classify maps go-openai errors onto the taxonomy. HTTP 429 and explicit
// rate-limit codes are retryable.
func (p *openAIProvider) classify(err error) error {
	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return &errors.RateLimitedError{Err: err}
		}
		if code, ok := apiErr.Code.(string); ok && code == "rate_limit_exceeded" {
			return &errors.RateLimitedError{Err: err}
		}
	}
	return fmt.Errorf("openai request failed: %w", err)
}
