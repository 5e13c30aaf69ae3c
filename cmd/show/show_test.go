package show

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codesentinel/codesentinel/internal/manifest"
)

func TestRender(t *testing.T) {
	m := manifest.New(manifest.Repository{
		URL:           "https://github.com/acme/app",
		DefaultBranch: "main",
		CommitSHA:     "abc123",
	})
	m.Files = []manifest.FileEntry{
		{
			Path:           "src/auth.py",
			Category:       "authentication",
			TokenStats:     &manifest.TokenStats{TotalTokens: 500, EstimatedCost: 0.002},
			RiskAssessment: &manifest.RiskAssessment{RiskScore: 9.1, Priority: "CRITICAL", SLAHours: 4},
		},
		{
			Path:           "docs/readme.md",
			Category:       "documentation",
			RiskAssessment: &manifest.RiskAssessment{RiskScore: 0.85, Priority: "INFO", SLAHours: 720},
		},
	}

	var out strings.Builder
	render(&out, m, 5)
	got := out.String()

	assert.Contains(t, got, "https://github.com/acme/app")
	assert.Contains(t, got, "commit:   abc123")
	assert.Contains(t, got, "authentication")
	assert.Contains(t, got, "CRITICAL")
	assert.Contains(t, got, "Top risks:")
	assert.Contains(t, got, "src/auth.py (SLA 4h)")

	// Highest risk listed first.
	assert.Less(t, strings.Index(got, "src/auth.py"), strings.Index(got, "docs/readme.md"))
}

func TestRenderEmptyManifest(t *testing.T) {
	m := manifest.New(manifest.Repository{URL: "u"})
	var out strings.Builder
	render(&out, m, 5)
	assert.Contains(t, out.String(), "files:    0")
	assert.NotContains(t, out.String(), "Top risks")
}
