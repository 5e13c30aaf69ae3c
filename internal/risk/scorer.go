package risk

import (
	"fmt"
	"math"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/codesentinel/codesentinel/internal/manifest"
	"github.com/codesentinel/codesentinel/pkg/shared/config"
)

// Defaults applied when a file carries no classification. "other" scores 3
// and "low" relevance scores 2 in the default tables; unknown values fall
// back to the same neutral middle ground.
const (
	defaultCategoryScore  = 3.0
	defaultRelevanceScore = 2.0
)

// Scorer computes deterministic per-file risk assessments from the
// configured weights and score tables. It holds no mutable state: the same
// entry always produces the same assessment.
type Scorer struct {
	weights    config.RiskWeights
	severity   map[string]float64
	category   map[string]float64
	relevance  map[string]float64
	thresholds []config.PriorityThreshold
	logger     hclog.Logger
}

// NewScorer validates the risk scoring configuration and builds a scorer.
// Weights that do not sum to 1 are rejected.
func NewScorer(rs config.RiskScoring, logger hclog.Logger) (*Scorer, error) {
	if err := config.ValidateRiskScoring(&rs); err != nil {
		return nil, err
	}
	return &Scorer{
		weights:    rs.Weights,
		severity:   rs.VulnerabilitySeverityScores,
		category:   rs.FileCategoryScores,
		relevance:  rs.SecurityRelevanceScores,
		thresholds: rs.PriorityThresholds,
		logger:     logger.Named("risk-scorer"),
	}, nil
}

// Assess scores one file entry. The vulnerability component takes the
// highest severity present; no findings (or no scan at all) score zero.
func (s *Scorer) Assess(e *manifest.FileEntry) manifest.RiskAssessment {
	vulnScore := s.maxSeverityScore(e.Vulnerabilities)
	categoryScore := s.lookup(s.category, e.Category, defaultCategoryScore)
	relevanceScore := s.lookup(s.relevance, e.SecurityRelevance, defaultRelevanceScore)

	vulnComponent := s.weights.Vulnerability * vulnScore
	categoryComponent := s.weights.Category * categoryScore
	relevanceComponent := s.weights.SecurityRelevance * relevanceScore

	score := clamp(vulnComponent+categoryComponent+relevanceComponent, 0, 10)
	score = round2(score)

	priority, slaHours := s.priorityFor(score)

	return manifest.RiskAssessment{
		RiskScore: score,
		Priority:  priority,
		SLAHours:  slaHours,
		Components: map[string]float64{
			"vulnerability":      round2(vulnComponent),
			"category":           round2(categoryComponent),
			"security_relevance": round2(relevanceComponent),
		},
		Reasoning: s.reasoning(e, vulnScore, categoryScore, relevanceScore),
	}
}

// maxSeverityScore returns the score of the most severe finding. Absent
// scan results and clean scans both contribute nothing.
func (s *Scorer) maxSeverityScore(findings *[]manifest.Finding) float64 {
	if findings == nil {
		return 0
	}
	max := 0.0
	for _, f := range *findings {
		if v, ok := s.severity[strings.ToLower(f.Severity)]; ok && v > max {
			max = v
		}
	}
	return max
}

func (s *Scorer) lookup(table map[string]float64, key string, fallback float64) float64 {
	if v, ok := table[strings.ToLower(key)]; ok {
		return v
	}
	return fallback
}

// priorityFor walks the thresholds in descending order and returns the
// first tier the score reaches.
func (s *Scorer) priorityFor(score float64) (string, int) {
	for _, t := range s.thresholds {
		if score >= t.MinScore {
			return t.Priority, t.SLAHours
		}
	}
	last := s.thresholds[len(s.thresholds)-1]
	return last.Priority, last.SLAHours
}

func (s *Scorer) reasoning(e *manifest.FileEntry, vuln, category, relevance float64) string {
	findingCount := 0
	if e.Vulnerabilities != nil {
		findingCount = len(*e.Vulnerabilities)
	}
	return fmt.Sprintf("vulnerability=%.1f (%d findings), category=%.1f (%s), security_relevance=%.1f (%s)",
		vuln, findingCount,
		category, orUnclassified(e.Category),
		relevance, orUnclassified(e.SecurityRelevance))
}

func orUnclassified(v string) string {
	if v == "" {
		return "unclassified"
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
