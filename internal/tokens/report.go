package tokens

import (
	"sort"
	"time"

	"github.com/codesentinel/codesentinel/internal/manifest"
)

// RepoTokenStats aggregates per-file token accounting over a manifest.
type RepoTokenStats struct {
	TotalFiles          int     `json:"total_files"`
	TotalContentTokens  int     `json:"total_content_tokens"`
	TotalPromptTokens   int     `json:"total_prompt_tokens"`
	TotalResponseTokens int     `json:"total_response_tokens"`
	TotalTokens         int     `json:"total_tokens"`
	TotalEstimatedCost  float64 `json:"total_estimated_cost"`
	MeanTokensPerFile   float64 `json:"mean_tokens_per_file"`
	MedianTokensPerFile float64 `json:"median_tokens_per_file"`
	LargestFile         string  `json:"largest_file,omitempty"`
	LargestFileTokens   int     `json:"largest_file_tokens,omitempty"`
}

// FileTokenStats is one row of the report, keyed by path.
type FileTokenStats struct {
	Path string `json:"path"`
	manifest.TokenStats
}

// PricingInfo records the rates the report was priced at.
type PricingInfo struct {
	Model            string  `json:"model"`
	InputPricePer1K  float64 `json:"input_price_per_1k_tokens"`
	OutputPricePer1K float64 `json:"output_price_per_1k_tokens"`
	Currency         string  `json:"currency"`
}

// ReportMetadata describes how the counts were produced.
type ReportMetadata struct {
	Encoder           string `json:"encoder"`
	AnalysisTimestamp string `json:"analysis_timestamp"`
}

// Report is the standalone token-analysis document written next to the
// manifest.
type Report struct {
	RepositoryStats  RepoTokenStats   `json:"repository_stats"`
	FileStats        []FileTokenStats `json:"file_stats"`
	PricingInfo      PricingInfo      `json:"pricing_info"`
	AnalysisMetadata ReportMetadata   `json:"analysis_metadata"`
}

// Aggregate folds the token stats present on a manifest into repository
// totals. Entries that have not been counted yet are skipped.
func Aggregate(m *manifest.Manifest) RepoTokenStats {
	var stats RepoTokenStats
	var totals []int

	for i := range m.Files {
		ts := m.Files[i].TokenStats
		if ts == nil {
			continue
		}
		stats.TotalFiles++
		stats.TotalContentTokens += ts.ContentTokens
		stats.TotalPromptTokens += ts.PromptTokens
		stats.TotalResponseTokens += ts.EstimatedResponseTokens
		stats.TotalTokens += ts.TotalTokens
		stats.TotalEstimatedCost += ts.EstimatedCost
		totals = append(totals, ts.TotalTokens)

		if ts.TotalTokens > stats.LargestFileTokens {
			stats.LargestFileTokens = ts.TotalTokens
			stats.LargestFile = m.Files[i].Path
		}
	}

	if stats.TotalFiles > 0 {
		stats.MeanTokensPerFile = float64(stats.TotalTokens) / float64(stats.TotalFiles)
		stats.MedianTokensPerFile = median(totals)
	}
	stats.TotalEstimatedCost = roundCost(stats.TotalEstimatedCost)
	return stats
}

// BuildReport assembles the full token-analysis document for a counted
// manifest.
func BuildReport(m *manifest.Manifest, a *Accountant) *Report {
	inputRate, outputRate := a.Rates()
	report := &Report{
		RepositoryStats: Aggregate(m),
		FileStats:       []FileTokenStats{},
		PricingInfo: PricingInfo{
			Model:            a.Model(),
			InputPricePer1K:  inputRate,
			OutputPricePer1K: outputRate,
			Currency:         "USD",
		},
		AnalysisMetadata: ReportMetadata{
			Encoder:           a.Encoder(),
			AnalysisTimestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	for i := range m.Files {
		if ts := m.Files[i].TokenStats; ts != nil {
			report.FileStats = append(report.FileStats, FileTokenStats{
				Path:       m.Files[i].Path,
				TokenStats: *ts,
			})
		}
	}
	return report
}

func median(values []int) float64 {
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}
