package tokens

import (
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/pkoukk/tiktoken-go"

	"github.com/codesentinel/codesentinel/internal/llm"
	"github.com/codesentinel/codesentinel/internal/manifest"
	"github.com/codesentinel/codesentinel/pkg/shared/config"
)

// encoderName is the tokenizer used for exact counting. It matches the
// GPT-4-class models the default provider runs.
const encoderName = "cl100k_base"

// EstimatedResponseTokens is the fixed allowance for a classification reply.
const EstimatedResponseTokens = 150

// fallbackBytesPerToken approximates token counts when the encoder cannot
// be loaded.
const fallbackBytesPerToken = 4

// Accountant counts tokens and prices them against one provider's rates.
// A nil encoder switches every count to the byte heuristic and marks the
// resulting stats as approximate.
type Accountant struct {
	encoder     *tiktoken.Tiktoken
	model       string
	inputRate   float64
	outputRate  float64
	approximate bool
	logger      hclog.Logger
}

// NewAccountant builds an accountant priced for the named provider. Encoder
// load failures degrade to approximate counting rather than failing the run.
func NewAccountant(cfg *config.Config, provider string, logger hclog.Logger) *Accountant {
	pc := cfg.LLM.Providers[provider]
	a := &Accountant{
		model:      pc.Model,
		inputRate:  pc.InputRatePer1K,
		outputRate: pc.OutputRatePer1K,
		logger:     logger.Named("token-accountant"),
	}

	enc, err := tiktoken.GetEncoding(encoderName)
	if err != nil {
		a.logger.Warn("encoder unavailable, falling back to byte heuristic", "encoder", encoderName, "error", err)
		a.approximate = true
		return a
	}
	a.encoder = enc
	return a
}

// Model returns the model the accountant prices against.
func (a *Accountant) Model() string { return a.model }

// Encoder names the tokenizer in use, or "approximate" when degraded.
func (a *Accountant) Encoder() string {
	if a.approximate {
		return "approximate"
	}
	return encoderName
}

// Rates returns the per-1K-token input and output prices in USD.
func (a *Accountant) Rates() (input, output float64) {
	return a.inputRate, a.outputRate
}

// Count produces the full token accounting record for one file: the raw
// content tokens, the tokens of the complete analysis prompt wrapping that
// content, a fixed response allowance, and the priced total.
func (a *Accountant) Count(path, extension, content string) manifest.TokenStats {
	// Invalid UTF-8 trips the encoder; replace rather than fail.
	content = strings.ToValidUTF8(content, "�")

	contentTokens := a.countText(content)
	promptTokens := a.countText(llm.AnalysisPrompt(path, extension, content))

	total := promptTokens + EstimatedResponseTokens
	cost := float64(promptTokens)/1000*a.inputRate +
		float64(EstimatedResponseTokens)/1000*a.outputRate

	return manifest.TokenStats{
		ContentTokens:           contentTokens,
		PromptTokens:            promptTokens,
		EstimatedResponseTokens: EstimatedResponseTokens,
		TotalTokens:             total,
		EstimatedCost:           roundCost(cost),
		Approximate:             a.approximate,
	}
}

func (a *Accountant) countText(text string) int {
	if a.encoder == nil {
		return len(text) / fallbackBytesPerToken
	}
	return len(a.encoder.Encode(text, nil, nil))
}

// roundCost keeps costs at six decimal places, enough for sub-cent rates.
func roundCost(v float64) float64 {
	const scale = 1e6
	return float64(int64(v*scale+0.5)) / scale
}
