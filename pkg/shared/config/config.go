package config

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// Config is the root of the application configuration. Every section is
// optional in the file; ApplyDefaults fills the gaps before validation.
type Config struct {
	Source                SourceConfig     `yaml:"source"`
	Analysis              AnalysisConfig   `yaml:"analysis"`
	LLM                   LLMConfig        `yaml:"llm"`
	SecondaryProvider     SecondaryConfig  `yaml:"secondary_provider"`
	VulnerabilityScanning ScanningConfig   `yaml:"vulnerability_scanning"`
	RiskScoring           RiskScoring      `yaml:"risk_scoring"`
	Output                OutputConfig     `yaml:"output"`
	Logger                Logger           `yaml:"logger"`
	HTTPClient            HTTPClientConfig `yaml:"http_client"`
}

type Logger struct {
	Level string `yaml:"level"`
}

// SourceConfig configures access to the repository host API.
type SourceConfig struct {
	APIBaseURL string `yaml:"api_base_url"`
	Token      string `yaml:"token"`
	TokenEnv   string `yaml:"token_env"`
}

// AnalysisConfig gates which files become analysis candidates.
type AnalysisConfig struct {
	FileExtensions []string `yaml:"file_extensions"`
	MaxFileSize    int64    `yaml:"max_file_size"`
	BatchSize      int      `yaml:"batch_size"`
}

// LLMConfig selects and tunes the classification providers.
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider"`
	RequestTimeout  time.Duration             `yaml:"request_timeout"`
	Providers       map[string]ProviderConfig `yaml:"providers"`
}

// ProviderConfig holds per-provider model and pricing settings.
type ProviderConfig struct {
	Model           string  `yaml:"model"`
	MaxTokens       int     `yaml:"max_tokens"`
	Temperature     float32 `yaml:"temperature"`
	InputRatePer1K  float64 `yaml:"input_rate_per_1k"`
	OutputRatePer1K float64 `yaml:"output_rate_per_1k"`
}

// SecondaryConfig describes the fallback provider used when the primary
// one is exhausted mid-run.
type SecondaryConfig struct {
	Name              string `yaml:"name"`
	Region            string `yaml:"region"`
	Model             string `yaml:"model"`
	CredentialProfile string `yaml:"credential_profile"`
}

// ScanningConfig configures the vulnerability scanner runner.
type ScanningConfig struct {
	AutoInstall        bool                     `yaml:"auto_install"`
	MaxFindingsPerFile int                      `yaml:"max_findings_per_file"`
	Scanners           map[string]ScannerConfig `yaml:"scanners"`
}

// ScannerConfig holds per-scanner invocation settings.
type ScannerConfig struct {
	Enabled         *bool         `yaml:"enabled"`
	Timeout         time.Duration `yaml:"timeout"`
	ExcludePatterns []string      `yaml:"exclude_patterns"`
	ConfidenceLevel string        `yaml:"confidence_level"`
	SeverityLevel   string        `yaml:"severity_level"`
}

// RiskScoring drives the deterministic risk scorer. The section may point
// at a separate YAML file via config_file; its contents replace the inline
// values.
type RiskScoring struct {
	ConfigFile                  string              `yaml:"config_file"`
	Weights                     RiskWeights         `yaml:"weights"`
	VulnerabilitySeverityScores map[string]float64  `yaml:"vulnerability_severity_scores"`
	FileCategoryScores          map[string]float64  `yaml:"file_category_scores"`
	SecurityRelevanceScores     map[string]float64  `yaml:"security_relevance_scores"`
	PriorityThresholds          []PriorityThreshold `yaml:"priority_thresholds"`
}

// RiskWeights are the three component weights; they must sum to 1.
type RiskWeights struct {
	Vulnerability     float64 `yaml:"vulnerability"`
	Category          float64 `yaml:"category"`
	SecurityRelevance float64 `yaml:"security_relevance"`
}

// PriorityThreshold assigns a priority tier and SLA to scores at or above
// MinScore. Thresholds are evaluated in descending MinScore order.
type PriorityThreshold struct {
	Priority string  `yaml:"priority"`
	MinScore float64 `yaml:"min_score"`
	SLAHours int     `yaml:"sla_hours"`
}

// OutputConfig controls where artifacts land on disk.
type OutputConfig struct {
	DefaultDir            string `yaml:"default_dir"`
	ManifestFilename      string `yaml:"manifest_filename"`
	TokenAnalysisFilename string `yaml:"token_analysis_filename"`
}

// HTTPClientConfig tunes the shared resty HTTP client.
type HTTPClientConfig struct {
	Debug            bool            `yaml:"debug"`
	RetryCount       int             `yaml:"retry_count"`
	RetryWaitTime    time.Duration   `yaml:"retry_wait_time"`
	RetryMaxWaitTime time.Duration   `yaml:"retry_max_wait_time"`
	Timeout          time.Duration   `yaml:"timeout"`
	TLSClientConfig  TLSClientConfig `yaml:"tls_client_config"`
	Proxy            Proxy           `yaml:"proxy"`
}

type TLSClientConfig struct {
	Verify *bool `yaml:"verify"`
}

type Proxy struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

// ValidateConfigPath checks that the given path points at a regular file.
func ValidateConfigPath(path string) error {
	s, err := os.Stat(path)
	if err != nil {
		return err
	}
	if s.IsDir() {
		return fmt.Errorf("'%s' is a directory, not a file", path)
	}
	return nil
}

// LoadYAML decodes a YAML document from configPath into data.
func LoadYAML(configPath string, data interface{}) error {
	if err := ValidateConfigPath(configPath); err != nil {
		return err
	}

	file, err := os.Open(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)
	if err := d.Decode(data); err != nil {
		return err
	}

	return nil
}

// LoadConfig reads the configuration file, resolves a separate risk-scoring
// file when one is referenced, and fills defaults. A missing file is not an
// error: the defaults form a complete configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(configPath); err == nil {
		if err := LoadYAML(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config %q: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config %q: %w", configPath, err)
	}

	if cfg.RiskScoring.ConfigFile != "" {
		var rs RiskScoring
		if err := LoadYAML(cfg.RiskScoring.ConfigFile, &rs); err != nil {
			return nil, fmt.Errorf("failed to load risk scoring config %q: %w", cfg.RiskScoring.ConfigFile, err)
		}
		rs.ConfigFile = cfg.RiskScoring.ConfigFile
		cfg.RiskScoring = rs
	}

	ApplyDefaults(cfg)
	return cfg, nil
}
