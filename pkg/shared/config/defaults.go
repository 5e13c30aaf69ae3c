package config

import (
	"os"
	"time"
)

// Built-in defaults. Every value can be overridden by the config file.
const (
	DefaultMaxFileSize    = 1 << 20 // 1 MiB
	DefaultBatchSize      = 4
	DefaultSampleSize     = 3
	DefaultRequestTimeout = 60 * time.Second
	DefaultScannerTimeout = 120 * time.Second

	DefaultOutputDir             = "analysis-results"
	DefaultManifestFilename      = "manifest.json"
	DefaultTokenAnalysisFilename = "token-analysis.json"

	DefaultProvider        = "openai"
	DefaultOpenAIModel     = "gpt-4o-mini"
	DefaultBedrockModel    = "anthropic.claude-3-5-sonnet-20240620-v1:0"
	DefaultBedrockRegion   = "us-east-1"
	DefaultBedrockProfile  = "bedrock-dev"
	DefaultMaxOutputTokens = 1000

	DefaultMaxFindingsPerFile = 100
)

// defaultExtensions is the whitelist applied when the analysis section does
// not name one.
var defaultExtensions = []string{
	".py", ".js", ".jsx", ".ts", ".tsx", ".java", ".go", ".rb", ".php",
	".c", ".cpp", ".h", ".cs", ".sql", ".html", ".css", ".json", ".yaml",
	".yml", ".xml",
}

// DefaultRiskScoring returns the score tables and weights used when no
// risk_scoring section is configured.
func DefaultRiskScoring() RiskScoring {
	return RiskScoring{
		Weights: RiskWeights{
			Vulnerability:     0.40,
			Category:          0.35,
			SecurityRelevance: 0.25,
		},
		VulnerabilitySeverityScores: map[string]float64{
			"critical": 10, "high": 7, "medium": 4, "low": 1, "info": 0,
		},
		FileCategoryScores: map[string]float64{
			"authentication": 10, "api": 8, "data-processing": 7,
			"config": 6, "frontend": 4, "build": 3, "test": 2,
			"documentation": 1, "other": 3,
		},
		SecurityRelevanceScores: map[string]float64{
			"high": 10, "medium": 5, "low": 2,
		},
		PriorityThresholds: []PriorityThreshold{
			{Priority: "CRITICAL", MinScore: 8.0, SLAHours: 4},
			{Priority: "HIGH", MinScore: 6.0, SLAHours: 24},
			{Priority: "MEDIUM", MinScore: 4.0, SLAHours: 72},
			{Priority: "LOW", MinScore: 2.0, SLAHours: 168},
			{Priority: "INFO", MinScore: 0.0, SLAHours: 720},
		},
	}
}

// ApplyDefaults fills unset fields in place.
func ApplyDefaults(cfg *Config) {
	if len(cfg.Analysis.FileExtensions) == 0 {
		cfg.Analysis.FileExtensions = append([]string(nil), defaultExtensions...)
	}
	cfg.Analysis.MaxFileSize = SetThen(cfg.Analysis.MaxFileSize, int64(DefaultMaxFileSize))
	cfg.Analysis.BatchSize = SetThen(cfg.Analysis.BatchSize, DefaultBatchSize)

	cfg.LLM.DefaultProvider = SetThen(cfg.LLM.DefaultProvider, DefaultProvider)
	cfg.LLM.RequestTimeout = SetThen(cfg.LLM.RequestTimeout, DefaultRequestTimeout)
	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = map[string]ProviderConfig{}
	}

	openai := cfg.LLM.Providers["openai"]
	openai.Model = SetThen(openai.Model, DefaultOpenAIModel)
	openai.MaxTokens = SetThen(openai.MaxTokens, DefaultMaxOutputTokens)
	openai.Temperature = SetThen(openai.Temperature, float32(0.1))
	openai.InputRatePer1K = SetThen(openai.InputRatePer1K, 0.00015)
	openai.OutputRatePer1K = SetThen(openai.OutputRatePer1K, 0.0006)
	cfg.LLM.Providers["openai"] = openai

	bedrock := cfg.LLM.Providers["bedrock"]
	bedrock.Model = SetThen(bedrock.Model, DefaultBedrockModel)
	bedrock.MaxTokens = SetThen(bedrock.MaxTokens, DefaultMaxOutputTokens)
	bedrock.Temperature = SetThen(bedrock.Temperature, float32(0.1))
	bedrock.InputRatePer1K = SetThen(bedrock.InputRatePer1K, 0.003)
	bedrock.OutputRatePer1K = SetThen(bedrock.OutputRatePer1K, 0.015)
	cfg.LLM.Providers["bedrock"] = bedrock

	cfg.SecondaryProvider.Name = SetThen(cfg.SecondaryProvider.Name, "bedrock")
	cfg.SecondaryProvider.Region = SetThen(cfg.SecondaryProvider.Region, DefaultBedrockRegion)
	cfg.SecondaryProvider.Model = SetThen(cfg.SecondaryProvider.Model, DefaultBedrockModel)
	cfg.SecondaryProvider.CredentialProfile = SetThen(cfg.SecondaryProvider.CredentialProfile, DefaultBedrockProfile)

	cfg.VulnerabilityScanning.MaxFindingsPerFile = SetThen(cfg.VulnerabilityScanning.MaxFindingsPerFile, DefaultMaxFindingsPerFile)
	if cfg.VulnerabilityScanning.Scanners == nil {
		cfg.VulnerabilityScanning.Scanners = map[string]ScannerConfig{}
	}
	for name, sc := range cfg.VulnerabilityScanning.Scanners {
		sc.Timeout = SetThen(sc.Timeout, DefaultScannerTimeout)
		cfg.VulnerabilityScanning.Scanners[name] = sc
	}

	if cfg.RiskScoring.VulnerabilitySeverityScores == nil &&
		cfg.RiskScoring.FileCategoryScores == nil &&
		cfg.RiskScoring.SecurityRelevanceScores == nil &&
		len(cfg.RiskScoring.PriorityThresholds) == 0 &&
		cfg.RiskScoring.Weights == (RiskWeights{}) {
		rs := DefaultRiskScoring()
		rs.ConfigFile = cfg.RiskScoring.ConfigFile
		cfg.RiskScoring = rs
	}

	cfg.Output.DefaultDir = SetThen(cfg.Output.DefaultDir, DefaultOutputDir)
	cfg.Output.ManifestFilename = SetThen(cfg.Output.ManifestFilename, DefaultManifestFilename)
	cfg.Output.TokenAnalysisFilename = SetThen(cfg.Output.TokenAnalysisFilename, DefaultTokenAnalysisFilename)
}

// ScannerTimeout returns the wall-clock budget for the named scanner.
func (c *Config) ScannerTimeout(name string) time.Duration {
	if sc, ok := c.VulnerabilityScanning.Scanners[name]; ok && sc.Timeout > 0 {
		return sc.Timeout
	}
	return DefaultScannerTimeout
}

// ScannerEnabled reports whether the named scanner is enabled. Scanners are
// enabled by default; an explicit enabled: false disables them.
func (c *Config) ScannerEnabled(name string) bool {
	sc, ok := c.VulnerabilityScanning.Scanners[name]
	if !ok {
		return true
	}
	return GetBoolValue(sc, "Enabled", true)
}

// SourceToken resolves the host API token: environment first, then the
// config file (directly or through token_env indirection).
func (c *Config) SourceToken(envVar string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	if c.Source.TokenEnv != "" {
		if v := os.Getenv(c.Source.TokenEnv); v != "" {
			return v
		}
	}
	return c.Source.Token
}
