package llm

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/bedrockruntime"
	"github.com/hashicorp/go-hclog"

	"github.com/codesentinel/codesentinel/pkg/shared/config"
	"github.com/codesentinel/codesentinel/pkg/shared/errors"
)

const anthropicVersion = "bedrock-2023-05-31"

type bedrockProvider struct {
	client      *bedrockruntime.BedrockRuntime
	model       string
	maxTokens   int
	temperature float32
	logger      hclog.Logger
}

// anthropicRequest is the InvokeModel body for Anthropic models on Bedrock.
type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float32            `json:"temperature,omitempty"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func newBedrockProvider(cfg *config.Config, logger hclog.Logger) (Provider, error) {
	sc := cfg.SecondaryProvider

	profile := os.Getenv("AWS_PROFILE")
	if profile == "" {
		profile = sc.CredentialProfile
	}

	sess, err := session.NewSessionWithOptions(session.Options{
		Profile:           profile,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, errors.NewConfigError("failed to initialize AWS session for profile %q: %v", profile, err)
	}

	pc := cfg.LLM.Providers["bedrock"]
	model := config.SetThen(sc.Model, pc.Model)

	p := &bedrockProvider{
		client:      bedrockruntime.New(sess, aws.NewConfig().WithRegion(sc.Region)),
		model:       model,
		maxTokens:   pc.MaxTokens,
		temperature: pc.Temperature,
		logger:      logger.Named("bedrock-provider"),
	}
	p.logger.Debug("provider initialized", "model", p.model, "region", sc.Region, "profile", profile)
	return p, nil
}

func (p *bedrockProvider) Name() string  { return "bedrock" }
func (p *bedrockProvider) Model() string { return p.model }

func (p *bedrockProvider) TestConnection(ctx context.Context) error {
	_, err := p.invoke(ctx, anthropicRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        10,
		Messages: []anthropicMessage{
			{Role: "user", Content: []anthropicContent{{Type: "text", Text: "Test connection"}}},
		},
	})
	return err
}

func (p *bedrockProvider) Classify(ctx context.Context, req ClassifyRequest) (*Classification, error) {
	content := TruncateContent(req.Content, p.contentBudget())
	prompt := AnalysisPrompt(req.Path, req.Extension, content) +
		"\n\nProvide only the JSON response, no additional text."

	resp, err := p.invoke(ctx, anthropicRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        p.maxTokens,
		Temperature:      p.temperature,
		System:           SystemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: []anthropicContent{{Type: "text", Text: prompt}}},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Content) == 0 {
		return nil, &errors.MalformedResponseError{Provider: p.Name(), Reason: "empty content"}
	}

	classification, err := ParseClassification(p.Name(), resp.Content[0].Text)
	if err != nil {
		return nil, err
	}
	classification.Model = p.model
	classification.InputTokens = resp.Usage.InputTokens
	classification.OutputTokens = resp.Usage.OutputTokens
	return classification, nil
}

func (p *bedrockProvider) invoke(ctx context.Context, body anthropicRequest) (*anthropicResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bedrock request: %w", err)
	}

	out, err := p.client.InvokeModelWithContext(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.model),
		Body:        payload,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, p.classify(err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, &errors.MalformedResponseError{Provider: p.Name(), Reason: "invalid response body: " + err.Error()}
	}
	return &resp, nil
}

func (p *bedrockProvider) contentBudget() int {
	const contextWindow = 200000
	budget := contextWindow - p.maxTokens - 1000
	if budget > 100000 {
		budget = 100000
	}
	return budget
}

func (p *bedrockProvider) classify(err error) error {
	var aerr awserr.Error
	if stderrors.As(err, &aerr) {
		switch aerr.Code() {
		case bedrockruntime.ErrCodeThrottlingException, "TooManyRequestsException":
			return &errors.RateLimitedError{Err: err}
		}
	}
	return fmt.Errorf("bedrock request failed: %w", err)
}
