package risk

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesentinel/codesentinel/internal/manifest"
	"github.com/codesentinel/codesentinel/pkg/shared/config"
	"github.com/codesentinel/codesentinel/pkg/shared/errors"
)

func testScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := NewScorer(config.DefaultRiskScoring(), hclog.NewNullLogger())
	require.NoError(t, err)
	return s
}

func TestNewScorerRejectsBadWeights(t *testing.T) {
	rs := config.DefaultRiskScoring()
	rs.Weights = config.RiskWeights{Vulnerability: 0.5, Category: 0.5, SecurityRelevance: 0.5}

	_, err := NewScorer(rs, hclog.NewNullLogger())
	require.Error(t, err)
	var cerr *errors.ConfigError
	assert.ErrorAs(t, err, &cerr)
}

func TestAssessCleanLowRiskFile(t *testing.T) {
	// Scanned with no findings, category scoring 1, relevance scoring 2:
	// 0.4*0 + 0.35*1 + 0.25*2 = 0.85 -> INFO.
	s := testScorer(t)
	findings := []manifest.Finding{}
	e := &manifest.FileEntry{
		Path:              "docs/readme.md",
		Category:          "documentation",
		SecurityRelevance: "low",
		Vulnerabilities:   &findings,
	}

	ra := s.Assess(e)

	assert.InDelta(t, 0.85, ra.RiskScore, 1e-9)
	assert.Equal(t, "INFO", ra.Priority)
	assert.Equal(t, 720, ra.SLAHours)
}

func TestAssessMaxedComponents(t *testing.T) {
	// All components at 10: 0.4*10 + 0.35*10 + 0.25*10 = 10 -> CRITICAL.
	s := testScorer(t)
	findings := []manifest.Finding{
		{Severity: "low"},
		{Severity: "critical"},
		{Severity: "medium"},
	}
	e := &manifest.FileEntry{
		Path:              "src/auth.py",
		Category:          "authentication",
		SecurityRelevance: "high",
		Vulnerabilities:   &findings,
	}

	ra := s.Assess(e)

	assert.InDelta(t, 10.0, ra.RiskScore, 1e-9)
	assert.Equal(t, "CRITICAL", ra.Priority)
	assert.Equal(t, 4, ra.SLAHours)
	assert.InDelta(t, 4.0, ra.Components["vulnerability"], 1e-9,
		"max severity wins, not the average")
}

func TestAssessUnclassifiedDefaults(t *testing.T) {
	// No classification, not scanned: 0.4*0 + 0.35*3 + 0.25*2 = 1.55 -> INFO.
	s := testScorer(t)
	e := &manifest.FileEntry{Path: "scripts/migrate.sql"}

	ra := s.Assess(e)

	assert.InDelta(t, 1.55, ra.RiskScore, 1e-9)
	assert.Equal(t, "INFO", ra.Priority)
	assert.Contains(t, ra.Reasoning, "unclassified")
}

func TestAssessPriorityBoundaries(t *testing.T) {
	s := testScorer(t)
	tests := []struct {
		score    float64
		priority string
		sla      int
	}{
		{8.0, "CRITICAL", 4},
		{7.99, "HIGH", 24},
		{6.0, "HIGH", 24},
		{4.0, "MEDIUM", 72},
		{2.0, "LOW", 168},
		{0.0, "INFO", 720},
	}
	for _, tt := range tests {
		priority, sla := s.priorityFor(tt.score)
		assert.Equal(t, tt.priority, priority, "score %.2f", tt.score)
		assert.Equal(t, tt.sla, sla, "score %.2f", tt.score)
	}
}

func TestAssessClamp(t *testing.T) {
	rs := config.DefaultRiskScoring()
	rs.VulnerabilitySeverityScores["critical"] = 100
	s, err := NewScorer(rs, hclog.NewNullLogger())
	require.NoError(t, err)

	findings := []manifest.Finding{{Severity: "critical"}}
	ra := s.Assess(&manifest.FileEntry{Vulnerabilities: &findings})
	assert.LessOrEqual(t, ra.RiskScore, 10.0)
}

func TestAssessIsPure(t *testing.T) {
	s := testScorer(t)
	findings := []manifest.Finding{{Severity: "high"}}
	e := &manifest.FileEntry{
		Category:          "api",
		SecurityRelevance: "medium",
		Vulnerabilities:   &findings,
	}

	first := s.Assess(e)
	second := s.Assess(e)
	assert.Equal(t, first, second)
}
