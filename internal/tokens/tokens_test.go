package tokens

import (
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesentinel/codesentinel/internal/manifest"
	"github.com/codesentinel/codesentinel/pkg/shared/config"
)

func testAccountant(t *testing.T) *Accountant {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return NewAccountant(cfg, "openai", hclog.NewNullLogger())
}

func TestCount(t *testing.T) {
	a := testAccountant(t)

	stats := a.Count("src/auth.py", ".py", "def login(user, password):\n    return check(user, password)\n")

	assert.Greater(t, stats.ContentTokens, 0)
	assert.Greater(t, stats.PromptTokens, stats.ContentTokens,
		"prompt wraps the content so it must count more tokens")
	assert.Equal(t, EstimatedResponseTokens, stats.EstimatedResponseTokens)
	assert.Equal(t, stats.PromptTokens+EstimatedResponseTokens, stats.TotalTokens)
	assert.Greater(t, stats.EstimatedCost, 0.0)
}

func TestCountInvalidUTF8(t *testing.T) {
	a := testAccountant(t)

	stats := a.Count("bin/blob", ".py", "valid\xff\xfeinvalid")
	assert.Greater(t, stats.ContentTokens, 0)
}

func TestFallbackCounting(t *testing.T) {
	a := &Accountant{approximate: true, inputRate: 0.00015, outputRate: 0.0006}

	stats := a.Count("x.py", ".py", strings.Repeat("a", 400))
	assert.Equal(t, 100, stats.ContentTokens)
	assert.True(t, stats.Approximate)
	assert.Equal(t, "approximate", a.Encoder())
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name      string
		extension string
		size      int64
		want      int
	}{
		{"small python file halves the base", ".py", 500, 900 + promptOverheadTokens},
		{"mid-size file keeps the base", ".py", 3 * 1024, 1800 + promptOverheadTokens},
		{"over 5KB scales 1.2x", ".py", 10 * 1024, 2160 + promptOverheadTokens},
		{"over 20KB scales 1.5x", ".py", 30 * 1024, 2700 + promptOverheadTokens},
		{"over 50KB doubles", ".py", 100 * 1024, 3600 + promptOverheadTokens},
		{"unknown extension uses default", ".zig", 3 * 1024, 1000 + promptOverheadTokens},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateTokens(tt.extension, tt.size))
		})
	}
}

func TestAggregate(t *testing.T) {
	m := manifest.New(manifest.Repository{URL: "https://github.com/acme/app"})
	m.Files = []manifest.FileEntry{
		{Path: "a.py"}, {Path: "b.py"}, {Path: "c.py"}, {Path: "skipped.py"},
	}
	require.True(t, m.SetTokenStats("a.py", manifest.TokenStats{
		ContentTokens: 100, PromptTokens: 350, EstimatedResponseTokens: 150,
		TotalTokens: 500, EstimatedCost: 0.001,
	}))
	require.True(t, m.SetTokenStats("b.py", manifest.TokenStats{
		ContentTokens: 200, PromptTokens: 450, EstimatedResponseTokens: 150,
		TotalTokens: 600, EstimatedCost: 0.002,
	}))
	require.True(t, m.SetTokenStats("c.py", manifest.TokenStats{
		ContentTokens: 900, PromptTokens: 1150, EstimatedResponseTokens: 150,
		TotalTokens: 1300, EstimatedCost: 0.004,
	}))

	stats := Aggregate(m)

	assert.Equal(t, 3, stats.TotalFiles, "uncounted entries are skipped")
	assert.Equal(t, 1200, stats.TotalContentTokens)
	assert.Equal(t, 2400, stats.TotalTokens)
	assert.InDelta(t, 0.007, stats.TotalEstimatedCost, 1e-9)
	assert.InDelta(t, 800.0, stats.MeanTokensPerFile, 1e-9)
	assert.InDelta(t, 600.0, stats.MedianTokensPerFile, 1e-9)
	assert.Equal(t, "c.py", stats.LargestFile)
	assert.Equal(t, 1300, stats.LargestFileTokens)
}

func TestAggregateEmpty(t *testing.T) {
	m := manifest.New(manifest.Repository{})
	stats := Aggregate(m)
	assert.Equal(t, 0, stats.TotalFiles)
	assert.Zero(t, stats.MeanTokensPerFile)
}

func TestBuildReport(t *testing.T) {
	a := testAccountant(t)
	m := manifest.New(manifest.Repository{URL: "https://github.com/acme/app"})
	m.Files = []manifest.FileEntry{{Path: "a.py"}}
	m.SetTokenStats("a.py", manifest.TokenStats{TotalTokens: 500})

	report := BuildReport(m, a)

	assert.Len(t, report.FileStats, 1)
	assert.Equal(t, "a.py", report.FileStats[0].Path)
	assert.Equal(t, "USD", report.PricingInfo.Currency)
	assert.Equal(t, a.Model(), report.PricingInfo.Model)
	assert.NotEmpty(t, report.AnalysisMetadata.AnalysisTimestamp)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, median(nil))
	assert.Equal(t, 5.0, median([]int{5}))
	assert.Equal(t, 4.5, median([]int{1, 4, 5, 9}))
	assert.Equal(t, 4.0, median([]int{9, 1, 4}))
}
