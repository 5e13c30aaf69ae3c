package config

import (
	"math"
	"sort"
	"strings"

	"github.com/codesentinel/codesentinel/pkg/shared/errors"
)

// WeightTolerance is the allowed deviation of the weight sum from 1.0.
const WeightTolerance = 1e-6

var knownCategories = map[string]bool{
	"authentication": true, "data-processing": true, "api": true,
	"frontend": true, "config": true, "test": true, "build": true,
	"documentation": true, "other": true,
}

var knownSeverities = map[string]bool{
	"critical": true, "high": true, "medium": true, "low": true, "info": true,
}

var knownRelevances = map[string]bool{
	"high": true, "medium": true, "low": true,
}

var knownPriorities = map[string]bool{
	"CRITICAL": true, "HIGH": true, "MEDIUM": true, "LOW": true, "INFO": true,
}

var knownProviders = map[string]bool{
	"openai": true, "bedrock": true,
}

// ValidateConfig checks every section. It runs once at load time, before
// any phase; all violations map to exit code 2.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return errors.NewConfigError("configuration object is nil")
	}
	if err := validateAnalysis(&cfg.Analysis); err != nil {
		return err
	}
	if err := validateLLM(&cfg.LLM); err != nil {
		return err
	}
	if err := validateScanning(&cfg.VulnerabilityScanning); err != nil {
		return err
	}
	if err := ValidateRiskScoring(&cfg.RiskScoring); err != nil {
		return err
	}
	return nil
}

func validateAnalysis(a *AnalysisConfig) error {
	if a.MaxFileSize <= 0 {
		return errors.NewConfigError("analysis.max_file_size must be positive, got %d", a.MaxFileSize)
	}
	if a.BatchSize <= 0 {
		return errors.NewConfigError("analysis.batch_size must be positive, got %d", a.BatchSize)
	}
	for _, ext := range a.FileExtensions {
		if !strings.HasPrefix(ext, ".") {
			return errors.NewConfigError("analysis.file_extensions entry %q must start with a dot", ext)
		}
	}
	return nil
}

func validateLLM(l *LLMConfig) error {
	if !knownProviders[l.DefaultProvider] {
		return errors.NewConfigError("llm.default_provider %q is not recognized", l.DefaultProvider)
	}
	if l.RequestTimeout <= 0 {
		return errors.NewConfigError("llm.request_timeout must be positive, got %v", l.RequestTimeout)
	}
	for name, p := range l.Providers {
		if p.MaxTokens <= 0 {
			return errors.NewConfigError("llm.providers.%s.max_tokens must be positive, got %d", name, p.MaxTokens)
		}
		if p.InputRatePer1K < 0 || p.OutputRatePer1K < 0 {
			return errors.NewConfigError("llm.providers.%s pricing rates cannot be negative", name)
		}
	}
	return nil
}

func validateScanning(s *ScanningConfig) error {
	if s.MaxFindingsPerFile <= 0 {
		return errors.NewConfigError("vulnerability_scanning.max_findings_per_file must be positive, got %d", s.MaxFindingsPerFile)
	}
	for name, sc := range s.Scanners {
		if sc.Timeout <= 0 {
			return errors.NewConfigError("vulnerability_scanning.scanners.%s.timeout must be positive, got %v", name, sc.Timeout)
		}
	}
	return nil
}

// ValidateRiskScoring checks the weight sum and the score-table domains.
func ValidateRiskScoring(rs *RiskScoring) error {
	sum := rs.Weights.Vulnerability + rs.Weights.Category + rs.Weights.SecurityRelevance
	if math.Abs(sum-1.0) > WeightTolerance {
		return errors.NewConfigError("risk_scoring.weights must sum to 1.0 (got %g)", sum)
	}
	if rs.Weights.Vulnerability < 0 || rs.Weights.Category < 0 || rs.Weights.SecurityRelevance < 0 {
		return errors.NewConfigError("risk_scoring.weights cannot be negative")
	}

	for cat := range rs.FileCategoryScores {
		if !knownCategories[cat] {
			return errors.NewConfigError("risk_scoring.file_category_scores contains unknown category %q", cat)
		}
	}
	for sev := range rs.VulnerabilitySeverityScores {
		if !knownSeverities[sev] {
			return errors.NewConfigError("risk_scoring.vulnerability_severity_scores contains unknown severity %q", sev)
		}
	}
	for rel := range rs.SecurityRelevanceScores {
		if !knownRelevances[rel] {
			return errors.NewConfigError("risk_scoring.security_relevance_scores contains unknown relevance %q", rel)
		}
	}

	if len(rs.PriorityThresholds) == 0 {
		return errors.NewConfigError("risk_scoring.priority_thresholds cannot be empty")
	}
	for _, t := range rs.PriorityThresholds {
		if !knownPriorities[t.Priority] {
			return errors.NewConfigError("risk_scoring.priority_thresholds contains unknown priority %q", t.Priority)
		}
		if t.MinScore < 0 || t.MinScore > 10 {
			return errors.NewConfigError("risk_scoring threshold for %s is out of the [0,10] range: %g", t.Priority, t.MinScore)
		}
		if t.SLAHours <= 0 {
			return errors.NewConfigError("risk_scoring SLA for %s must be positive, got %d", t.Priority, t.SLAHours)
		}
	}

	// Descending order keeps threshold evaluation a single pass.
	sort.Slice(rs.PriorityThresholds, func(i, j int) bool {
		return rs.PriorityThresholds[i].MinScore > rs.PriorityThresholds[j].MinScore
	})
	return nil
}
